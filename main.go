package main

import "github.com/awakery/payments-engine/cmd"

func main() {
	cmd.Execute()
}
