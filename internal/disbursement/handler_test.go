package disbursement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	apperrors "github.com/awakery/payments-engine/internal"
	"github.com/awakery/payments-engine/internal/transport"
)

var _ = ginkgo.Describe("Handler", func() {
	var (
		handler *Handler
		store   *mockScheduleStore
	)

	ginkgo.BeforeEach(func() {
		store = newMockScheduleStore()
		registry := NewRegistry()
		registry.Register(MethodEFT, &scriptedAdapter{result: &PaymentResult{Success: true, PaymentReference: "proc-001"}})

		logger := testLogger()
		worker := NewWorker(store, &mockInvoiceStore{}, registry, nil, 3, 0, logger)
		handler = NewHandler(transport.NewBaseHandler(logger), worker, logger)
	})

	ginkgo.Context("when the tenant comes from the request body", func() {
		ginkgo.It("should run the worker and return the summary", func() {
			store.addEntry(1, MethodEFT, 0)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/disbursements/run", strings.NewReader(`{"tenant_id":"tenant-demo"}`))
			req.Header.Set("Content-Type", "application/json")
			recorder := httptest.NewRecorder()

			handler.RunDisbursements(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(recorder.Body.String()).To(gomega.ContainSubstring(`"tenant_id":"tenant-demo"`))
			gomega.Expect(recorder.Body.String()).To(gomega.ContainSubstring(`"successful":1`))
		})
	})

	ginkgo.Context("when the tenant comes from the service token", func() {
		ginkgo.It("should fall back to the tenant in context", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/disbursements/run", nil)
			req = req.WithContext(apperrors.ContextWithTenantID(context.Background(), "tenant-from-token"))
			recorder := httptest.NewRecorder()

			handler.RunDisbursements(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(recorder.Body.String()).To(gomega.ContainSubstring(`"tenant_id":"tenant-from-token"`))
		})
	})

	ginkgo.Context("when no tenant is available", func() {
		ginkgo.It("should reject the request", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/disbursements/run", nil)
			recorder := httptest.NewRecorder()

			handler.RunDisbursements(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Context("when the body is not valid JSON", func() {
		ginkgo.It("should reject the request", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/disbursements/run", strings.NewReader(`{tenant`))
			recorder := httptest.NewRecorder()

			handler.RunDisbursements(recorder, req)

			gomega.Expect(recorder.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})
})
