package main_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPaymentsEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PaymentsEngine Suite")
}
