package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/bus"
	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/provider"
	"github.com/wali-delivery/ms-go-payments/app/service"
	"github.com/wali-delivery/ms-go-payments/app/types"
	"github.com/wali-delivery/ms-go-payments/config"
)

type controllerTxRepo struct {
	createFn            func(ctx context.Context, tx *entity.Transaction) error
	findByIDFn          func(ctx context.Context, id string) (*entity.Transaction, error)
	findByProviderTxFn  func(ctx context.Context, p types.Provider, providerTxID string) (*entity.Transaction, error)
	findOpenByOrderFn   func(ctx context.Context, orderID string) (*entity.Transaction, error)
	listByUserFn        func(ctx context.Context, userID string, limit, offset int32) ([]*entity.Transaction, error)
	updateStatusFn      func(ctx context.Context, id string, newStatus types.TransactionStatus, patch *entity.StatusPatch) (*entity.Transaction, bool, error)
	listExpiredFn       func(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
	listForReconcileFn  func(ctx context.Context, staleBefore time.Time, limit int32) ([]*entity.Transaction, error)
}

func (r *controllerTxRepo) Create(ctx context.Context, tx *entity.Transaction) error {
	if r.createFn != nil {
		return r.createFn(ctx, tx)
	}
	return nil
}

func (r *controllerTxRepo) FindByID(ctx context.Context, id string) (*entity.Transaction, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (r *controllerTxRepo) FindByProviderTransactionID(ctx context.Context, p types.Provider, providerTxID string) (*entity.Transaction, error) {
	if r.findByProviderTxFn != nil {
		return r.findByProviderTxFn(ctx, p, providerTxID)
	}
	return nil, nil
}

func (r *controllerTxRepo) FindOpenByOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	if r.findOpenByOrderFn != nil {
		return r.findOpenByOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (r *controllerTxRepo) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*entity.Transaction, error) {
	if r.listByUserFn != nil {
		return r.listByUserFn(ctx, userID, limit, offset)
	}
	return []*entity.Transaction{}, nil
}

func (r *controllerTxRepo) UpdateStatus(ctx context.Context, id string, newStatus types.TransactionStatus, patch *entity.StatusPatch) (*entity.Transaction, bool, error) {
	if r.updateStatusFn != nil {
		return r.updateStatusFn(ctx, id, newStatus, patch)
	}
	return nil, false, nil
}

func (r *controllerTxRepo) ListExpired(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	if r.listExpiredFn != nil {
		return r.listExpiredFn(ctx, now, limit)
	}
	return []*entity.Transaction{}, nil
}

func (r *controllerTxRepo) ListForReconcile(ctx context.Context, staleBefore time.Time, limit int32) ([]*entity.Transaction, error) {
	if r.listForReconcileFn != nil {
		return r.listForReconcileFn(ctx, staleBefore, limit)
	}
	return []*entity.Transaction{}, nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.TransactionEvent) error {
	return nil
}

type controllerAuditRepo struct{}

func (r *controllerAuditRepo) Create(context.Context, *entity.WebhookAudit) error {
	return nil
}

type controllerMethodRepo struct {
	findByIDFn func(ctx context.Context, id string) (*entity.PaymentMethod, error)
}

func (r *controllerMethodRepo) FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error) {
	if r.findByIDFn != nil {
		return r.findByIDFn(ctx, id)
	}
	return nil, nil
}

type controllerPublisher struct{}

func (p *controllerPublisher) Publish(bus.Event) {}

func wavePaymentMethod() *entity.PaymentMethod {
	phone := "771234567"
	return &entity.PaymentMethod{
		ID:          "pm-1",
		UserID:      "user-1",
		Provider:    types.ProviderWave,
		Label:       "Wave",
		PhoneNumber: &phone,
		CreatedAt:   time.Now().UTC(),
	}
}

func newControllerForTest(repo *controllerTxRepo, methodRepo *controllerMethodRepo) *PaymentController {
	logrus.SetLevel(logrus.ErrorLevel)
	paymentService := service.NewPaymentService(
		logrus.WithField("module", "payments-service"),
		repo,
		&controllerEventRepo{},
		&controllerAuditRepo{},
		methodRepo,
		provider.NewRegistry(provider.NewSimulatedAdapter(types.ProviderWave)),
		&controllerPublisher{},
		config.PaymentsConfig{PendingTTL: 30 * time.Minute, ReconcileStaleAfter: time.Minute, JobBatchSize: 100},
		"https://payments.wali.local",
	)
	return NewPaymentController(paymentService)
}

func TestInitiatePaymentBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.InitiatePayment(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInitiatePaymentSuccess(t *testing.T) {
	methodRepo := &controllerMethodRepo{findByIDFn: func(context.Context, string) (*entity.PaymentMethod, error) {
		return wavePaymentMethod(), nil
	}}
	ctrl := newControllerForTest(&controllerTxRepo{}, methodRepo)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(`{"order_id":"order-1","order_ref":"WL-1001","user_id":"user-1","payment_method_id":"pm-1","amount":2500,"currency":"XOF"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.InitiatePayment(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.InitiatePaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !payload.Success {
		t.Fatalf("expected success, got %+v", payload)
	}
	if payload.PaymentURL == "" {
		t.Fatalf("expected a wave launch url, got %+v", payload)
	}
}

func TestInitiatePaymentMethodNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewBufferString(`{"order_id":"order-1","order_ref":"WL-1001","user_id":"user-1","payment_method_id":"missing","amount":2500,"currency":"XOF"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.InitiatePayment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/payments/tx-9", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("tx-9")

	_ = ctrl.GetTransaction(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListTransactionsRequiresUser(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/payments?limit=10", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ListTransactions(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCancelPaymentAlreadyTerminal(t *testing.T) {
	repo := &controllerTxRepo{findByIDFn: func(_ context.Context, id string) (*entity.Transaction, error) {
		now := time.Now().UTC()
		return &entity.Transaction{
			ID:          id,
			Provider:    types.ProviderWave,
			Status:      types.StatusCompleted,
			InitiatedAt: now,
			ExpiresAt:   now.Add(time.Hour),
		}, nil
	}}
	ctrl := newControllerForTest(repo, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/tx-3/cancel", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("tx-3")

	_ = ctrl.CancelPayment(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleProviderWebhookRejected(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/providers/wave", bytes.NewBufferString(`{"reference":"sim_1","status":"COMPLETED"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Provider-Signature", "forged")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("wave")

	_ = ctrl.HandleProviderWebhook(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProviderWebhookUnknownReferenceIsAccepted(t *testing.T) {
	ctrl := newControllerForTest(&controllerTxRepo{}, &controllerMethodRepo{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/providers/wave", bytes.NewBufferString(`{"reference":"sim_unknown","status":"COMPLETED"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Provider-Signature", "simulated")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("wave")

	_ = ctrl.HandleProviderWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}
