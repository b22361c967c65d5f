package gateway

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// Gateway payment status values as delivered on the wire. Only
// StatusComplete moves an order to paid; StatusFailed marks it failed;
// everything else is an intermediate notification that is acknowledged
// and dropped.
const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusPending   = "PENDING"
	StatusCancelled = "CANCELLED"
)

// Notification is the narrow parsed view of an inbound gateway
// notification. Raw keeps every delivered field, but only for signature
// canonicalization; unknown fields are never interpreted.
type Notification struct {
	PaymentStatus        string
	AmountGross          decimal.Decimal
	OrderReference       string
	GatewayTransactionID string
	Signature            string
	Raw                  map[string]string
}

// ParseNotification maps a form-encoded notification body to a
// Notification. It fails only on structural problems (missing reference,
// unparseable amount); status values it does not recognize are kept
// verbatim for the handler's status gate to deal with.
func ParseNotification(values url.Values) (*Notification, error) {
	raw := make(map[string]string, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}

	n := &Notification{
		PaymentStatus:        raw["payment_status"],
		OrderReference:       raw["m_payment_id"],
		GatewayTransactionID: raw["pf_payment_id"],
		Signature:            raw["signature"],
		Raw:                  raw,
	}

	if n.OrderReference == "" {
		return nil, fmt.Errorf("notification missing m_payment_id")
	}

	if gross := raw["amount_gross"]; gross != "" {
		amount, err := decimal.NewFromString(gross)
		if err != nil {
			return nil, fmt.Errorf("invalid amount_gross %q: %w", gross, err)
		}
		n.AmountGross = amount
	}

	return n, nil
}

// VerifySignature checks the notification's own signature field against
// the rest of its delivered parameters.
func (n *Notification) VerifySignature(passphrase string) bool {
	return Verify(n.Raw, n.Signature, passphrase)
}

func (n *Notification) IsComplete() bool {
	return n.PaymentStatus == StatusComplete
}

func (n *Notification) IsFailed() bool {
	return n.PaymentStatus == StatusFailed
}
