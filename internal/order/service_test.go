package order_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	apperrors "github.com/awakery/payments-engine/internal"
	ordermodel "github.com/awakery/payments-engine/internal/core/datamodel/order"
	"github.com/awakery/payments-engine/internal/order"
)

func TestOrder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Order Module Suite")
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Mock repository implementing the conditional-update contract. The
// mutex makes each mutator atomic the way a database row update is.
type mockOrderRepository struct {
	mu           sync.Mutex
	orders       map[string]*ordermodel.Order
	transactions []*ordermodel.PaymentTransaction
	getError     error
	updateError  error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[string]*ordermodel.Order),
	}
}

func (m *mockOrderRepository) addOrder(reference, total, status string) *ordermodel.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	ord := &ordermodel.Order{
		ID:             int64(len(m.orders) + 1),
		OrderReference: reference,
		Total:          decimal.RequireFromString(total),
		PaymentStatus:  status,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.orders[reference] = ord
	return ord
}

func (m *mockOrderRepository) GetByReference(_ context.Context, reference string) (*ordermodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	ord, exists := m.orders[reference]
	if !exists {
		return nil, errors.New("record not found")
	}
	copied := *ord
	return &copied, nil
}

func (m *mockOrderRepository) MarkPaidIfPending(_ context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return false, m.updateError
	}
	ord, exists := m.orders[orderReference]
	if !exists || ord.ID != orderID || ord.PaymentStatus != ordermodel.StatusPending {
		return false, nil
	}
	now := time.Now()
	ord.PaymentStatus = ordermodel.StatusPaid
	ord.PaymentGatewayID = &gatewayTransactionID
	ord.PaidAt = &now
	m.transactions = append(m.transactions, &ordermodel.PaymentTransaction{
		OrderReference:       orderReference,
		Gateway:              gateway,
		GatewayTransactionID: gatewayTransactionID,
		Amount:               amount,
		Status:               ordermodel.TransactionCompleted,
		RecordedAt:           now,
	})
	return true, nil
}

func (m *mockOrderRepository) MarkFailedIfPending(_ context.Context, orderID int64, orderReference, gatewayTransactionID, gateway string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return false, m.updateError
	}
	ord, exists := m.orders[orderReference]
	if !exists || ord.ID != orderID || ord.PaymentStatus != ordermodel.StatusPending {
		return false, nil
	}
	ord.PaymentStatus = ordermodel.StatusFailed
	m.transactions = append(m.transactions, &ordermodel.PaymentTransaction{
		OrderReference:       orderReference,
		Gateway:              gateway,
		GatewayTransactionID: gatewayTransactionID,
		Amount:               amount,
		Status:               ordermodel.TransactionFailed,
		RecordedAt:           time.Now(),
	})
	return true, nil
}

func (m *mockOrderRepository) MarkRefundedIfPaid(_ context.Context, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return false, m.updateError
	}
	for _, ord := range m.orders {
		if ord.ID == orderID && ord.PaymentStatus == ordermodel.StatusPaid {
			ord.PaymentStatus = ordermodel.StatusRefunded
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderRepository) TransactionsByReference(_ context.Context, reference string) ([]*ordermodel.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ordermodel.PaymentTransaction
	for _, txn := range m.transactions {
		if txn.OrderReference == reference {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) transactionCount(reference string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, txn := range m.transactions {
		if txn.OrderReference == reference {
			count++
		}
	}
	return count
}

var _ = Describe("OrderService", func() {
	var (
		service  *order.Service
		mockRepo *mockOrderRepository
		logger   *slog.Logger
		ctx      context.Context
	)

	const reference = "AWK-1700000000-a1b2c3d4"

	BeforeEach(func() {
		mockRepo = newMockOrderRepository()
		logger = newTestLogger()
		service = order.NewService(mockRepo, "payfast", decimal.RequireFromString("0.01"), nil, logger)
		ctx = context.Background()
	})

	Describe("ConfirmPayment", func() {
		Context("when the order is pending and the amount matches", func() {
			It("should mark the order paid and append one transaction", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				err := service.ConfirmPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.00"))

				Expect(err).ToNot(HaveOccurred())
				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPaid))
				Expect(ord.PaymentGatewayID).ToNot(BeNil())
				Expect(*ord.PaymentGatewayID).To(Equal("pf-1089250"))
				Expect(mockRepo.transactionCount(reference)).To(Equal(1))
			})
		})

		Context("when the same notification is delivered twice", func() {
			It("should succeed both times but record only one transaction", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)
				amount := decimal.RequireFromString("200.00")

				Expect(service.ConfirmPayment(ctx, reference, "pf-1089250", amount)).To(Succeed())
				Expect(service.ConfirmPayment(ctx, reference, "pf-1089250", amount)).To(Succeed())

				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPaid))
				Expect(mockRepo.transactionCount(reference)).To(Equal(1))
			})
		})

		Context("when deliveries race concurrently", func() {
			It("should let exactly one delivery win the transition", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)
				amount := decimal.RequireFromString("200.00")

				var wg sync.WaitGroup
				errs := make([]error, 10)
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						errs[i] = service.ConfirmPayment(ctx, reference, "pf-1089250", amount)
					}(i)
				}
				wg.Wait()

				for _, err := range errs {
					Expect(err).ToNot(HaveOccurred())
				}
				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPaid))
				Expect(mockRepo.transactionCount(reference)).To(Equal(1))
			})
		})

		Context("when the notified amount is inside the tolerance", func() {
			It("should accept a one cent under-payment", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				err := service.ConfirmPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("199.99"))

				Expect(err).ToNot(HaveOccurred())
				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPaid))
			})

			It("should accept a one cent over-payment", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				err := service.ConfirmPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.01"))

				Expect(err).ToNot(HaveOccurred())
				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPaid))
			})
		})

		Context("when the notified amount is outside the tolerance", func() {
			expectMismatch := func(notified string) {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				err := service.ConfirmPayment(ctx, reference, "pf-1089250", decimal.RequireFromString(notified))

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeAmountMismatch))

				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusPending))
				Expect(mockRepo.transactionCount(reference)).To(Equal(0))
			}

			It("should reject a two cent under-payment and leave the order pending", func() {
				expectMismatch("199.98")
			})

			It("should reject a two cent over-payment and leave the order pending", func() {
				expectMismatch("200.02")
			})
		})

		Context("when the order does not exist", func() {
			It("should return a not found error", func() {
				err := service.ConfirmPayment(ctx, "AWK-unknown", "pf-1", decimal.RequireFromString("10.00"))

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeOrderNotFound))
			})
		})

		Context("when the order already failed", func() {
			It("should reject the transition", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusFailed)

				err := service.ConfirmPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.00"))

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidPaymentStatus))
			})
		})
	})

	Describe("FailPayment", func() {
		Context("when the order is pending", func() {
			It("should mark the order failed with a failed transaction row", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				err := service.FailPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.00"))

				Expect(err).ToNot(HaveOccurred())
				ord, _ := mockRepo.GetByReference(ctx, reference)
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusFailed))
				Expect(mockRepo.transactionCount(reference)).To(Equal(1))
			})
		})

		Context("when the order already failed", func() {
			It("should be a no-op success", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusFailed)

				err := service.FailPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.00"))

				Expect(err).ToNot(HaveOccurred())
				Expect(mockRepo.transactionCount(reference)).To(Equal(0))
			})
		})

		Context("when the order is already paid", func() {
			It("should reject the late failure notification", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPaid)

				err := service.FailPayment(ctx, reference, "pf-1089250", decimal.RequireFromString("200.00"))

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidPaymentStatus))
			})
		})
	})

	Describe("RefundOrder", func() {
		Context("when the order is paid", func() {
			It("should transition it to refunded", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPaid)

				ord, err := service.RefundOrder(ctx, reference)

				Expect(err).ToNot(HaveOccurred())
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusRefunded))
			})
		})

		Context("when the order is already refunded", func() {
			It("should be a no-op success", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusRefunded)

				ord, err := service.RefundOrder(ctx, reference)

				Expect(err).ToNot(HaveOccurred())
				Expect(ord.PaymentStatus).To(Equal(ordermodel.StatusRefunded))
			})
		})

		Context("when the order is still pending", func() {
			It("should reject the refund", func() {
				mockRepo.addOrder(reference, "200.00", ordermodel.StatusPending)

				_, err := service.RefundOrder(ctx, reference)

				Expect(err).To(HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidPaymentStatus))
			})
		})
	})
})
