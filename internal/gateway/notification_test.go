package gateway_test

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/awakery/payments-engine/internal/gateway"
)

var _ = Describe("ParseNotification", func() {
	var values url.Values

	BeforeEach(func() {
		values = url.Values{}
		values.Set("m_payment_id", "AWK-1700000000-a1b2c3d4")
		values.Set("pf_payment_id", "1089250")
		values.Set("payment_status", "COMPLETE")
		values.Set("amount_gross", "200.00")
		values.Set("signature", "deadbeefdeadbeefdeadbeefdeadbeef")
	})

	Context("when the notification is well formed", func() {
		It("should map every field", func() {
			n, err := gateway.ParseNotification(values)

			Expect(err).ToNot(HaveOccurred())
			Expect(n.OrderReference).To(Equal("AWK-1700000000-a1b2c3d4"))
			Expect(n.GatewayTransactionID).To(Equal("1089250"))
			Expect(n.PaymentStatus).To(Equal(gateway.StatusComplete))
			Expect(n.AmountGross.Equal(decimal.RequireFromString("200.00"))).To(BeTrue())
			Expect(n.Signature).To(Equal("deadbeefdeadbeefdeadbeefdeadbeef"))
		})

		It("should keep every delivered field in Raw", func() {
			values.Set("custom_str1", "promo-42")

			n, err := gateway.ParseNotification(values)

			Expect(err).ToNot(HaveOccurred())
			Expect(n.Raw).To(HaveKeyWithValue("custom_str1", "promo-42"))
		})

		It("should keep an unrecognized status verbatim", func() {
			values.Set("payment_status", "CHARGEBACK")

			n, err := gateway.ParseNotification(values)

			Expect(err).ToNot(HaveOccurred())
			Expect(n.PaymentStatus).To(Equal("CHARGEBACK"))
			Expect(n.IsComplete()).To(BeFalse())
			Expect(n.IsFailed()).To(BeFalse())
		})
	})

	Context("when the notification is malformed", func() {
		It("should reject a missing order reference", func() {
			values.Del("m_payment_id")

			n, err := gateway.ParseNotification(values)

			Expect(err).To(HaveOccurred())
			Expect(n).To(BeNil())
		})

		It("should reject an unparseable amount", func() {
			values.Set("amount_gross", "two hundred")

			n, err := gateway.ParseNotification(values)

			Expect(err).To(HaveOccurred())
			Expect(n).To(BeNil())
		})
	})

	Describe("status predicates", func() {
		It("should recognize COMPLETE and FAILED only", func() {
			values.Set("payment_status", gateway.StatusComplete)
			n, err := gateway.ParseNotification(values)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.IsComplete()).To(BeTrue())

			values.Set("payment_status", gateway.StatusFailed)
			n, err = gateway.ParseNotification(values)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.IsFailed()).To(BeTrue())

			values.Set("payment_status", gateway.StatusPending)
			n, err = gateway.ParseNotification(values)
			Expect(err).ToNot(HaveOccurred())
			Expect(n.IsComplete()).To(BeFalse())
			Expect(n.IsFailed()).To(BeFalse())
		})
	})
})
