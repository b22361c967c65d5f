package order_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/awakery/payments-engine/internal"
	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
	"github.com/awakery/payments-engine/internal/gateway"
	"github.com/awakery/payments-engine/internal/order"
	"github.com/awakery/payments-engine/internal/transport"
)

// Mock service recording which transition the handler requested.
type mockOrderService struct {
	confirmCalls int
	failCalls    int
	confirmError error
	failError    error
	lastRef      string
	lastTxnID    string
	lastAmount   decimal.Decimal
}

func (m *mockOrderService) GetByReference(_ context.Context, reference string) (*ordermodel.Order, error) {
	return nil, apperrors.ErrOrderNotFound
}

func (m *mockOrderService) TransactionsByReference(_ context.Context, reference string) ([]*ordermodel.PaymentTransaction, error) {
	return nil, nil
}

func (m *mockOrderService) ConfirmPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error {
	m.confirmCalls++
	m.lastRef = reference
	m.lastTxnID = gatewayTransactionID
	m.lastAmount = amount
	return m.confirmError
}

func (m *mockOrderService) FailPayment(ctx context.Context, reference, gatewayTransactionID string, amount decimal.Decimal) error {
	m.failCalls++
	m.lastRef = reference
	m.lastTxnID = gatewayTransactionID
	m.lastAmount = amount
	return m.failError
}

func (m *mockOrderService) RefundOrder(ctx context.Context, reference string) (*ordermodel.Order, error) {
	return nil, apperrors.ErrInvalidStatus
}

var _ = Describe("WebhookHandler", func() {
	const passphrase = "secret-phrase"

	var (
		handler     *order.WebhookHandler
		mockService *mockOrderService
	)

	newNotification := func(status, amount string) url.Values {
		params := map[string]string{
			"m_payment_id":   "AWK-1700000000-a1b2c3d4",
			"pf_payment_id":  "1089250",
			"payment_status": status,
			"amount_gross":   amount,
		}
		params["signature"] = gateway.Signature(params, passphrase)

		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		return values
	}

	postNotification := func(values url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/notify", strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		recorder := httptest.NewRecorder()
		handler.HandleNotify(recorder, req)
		return recorder
	}

	BeforeEach(func() {
		mockService = &mockOrderService{}
		logger := newTestLogger()
		handler = order.NewWebhookHandler(transport.NewBaseHandler(logger), mockService, passphrase, 5*time.Second, logger)
	})

	Context("when a COMPLETE notification arrives with a valid signature", func() {
		It("should confirm the payment and respond 200", func() {
			recorder := postNotification(newNotification("COMPLETE", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockService.confirmCalls).To(Equal(1))
			Expect(mockService.failCalls).To(Equal(0))
			Expect(mockService.lastRef).To(Equal("AWK-1700000000-a1b2c3d4"))
			Expect(mockService.lastTxnID).To(Equal("1089250"))
			Expect(mockService.lastAmount.Equal(decimal.RequireFromString("200.00"))).To(BeTrue())
		})
	})

	Context("when a FAILED notification arrives", func() {
		It("should fail the payment and respond 200", func() {
			recorder := postNotification(newNotification("FAILED", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockService.failCalls).To(Equal(1))
			Expect(mockService.confirmCalls).To(Equal(0))
		})
	})

	Context("when the signature does not verify", func() {
		It("should respond 401 without touching the ledger", func() {
			values := newNotification("COMPLETE", "200.00")
			values.Set("amount_gross", "9999.00")

			recorder := postNotification(values)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(mockService.confirmCalls).To(Equal(0))
			Expect(mockService.failCalls).To(Equal(0))
		})

		It("should respond 401 when the signature field is missing", func() {
			values := newNotification("COMPLETE", "200.00")
			values.Del("signature")

			recorder := postNotification(values)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(mockService.confirmCalls).To(Equal(0))
		})
	})

	Context("when the status is non-terminal", func() {
		It("should acknowledge PENDING without a transition", func() {
			recorder := postNotification(newNotification("PENDING", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Body.String()).To(ContainSubstring("ignored"))
			Expect(mockService.confirmCalls).To(Equal(0))
			Expect(mockService.failCalls).To(Equal(0))
		})

		It("should acknowledge an unknown status without a transition", func() {
			recorder := postNotification(newNotification("CHARGEBACK", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockService.confirmCalls).To(Equal(0))
			Expect(mockService.failCalls).To(Equal(0))
		})
	})

	Context("when the notification is malformed", func() {
		It("should respond 400 for a missing order reference", func() {
			values := newNotification("COMPLETE", "200.00")
			values.Del("m_payment_id")

			recorder := postNotification(values)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.confirmCalls).To(Equal(0))
		})

		It("should respond 400 for a terminal status without a transaction id", func() {
			params := map[string]string{
				"m_payment_id":   "AWK-1700000000-a1b2c3d4",
				"payment_status": "COMPLETE",
				"amount_gross":   "200.00",
			}
			params["signature"] = gateway.Signature(params, passphrase)
			values := url.Values{}
			for k, v := range params {
				values.Set(k, v)
			}

			recorder := postNotification(values)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(mockService.confirmCalls).To(Equal(0))
		})
	})

	Context("when reconciliation fails", func() {
		It("should surface 404 for an unknown order so the gateway redelivers", func() {
			mockService.confirmError = apperrors.ErrOrderNotFound

			recorder := postNotification(newNotification("COMPLETE", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})

		It("should surface 400 for an amount mismatch", func() {
			mockService.confirmError = apperrors.ErrAmountMismatch

			recorder := postNotification(newNotification("COMPLETE", "200.00"))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
