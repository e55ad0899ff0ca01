package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/bus"
	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/provider"
	"github.com/wali-delivery/ms-go-payments/app/repository"
	"github.com/wali-delivery/ms-go-payments/app/types"
	"github.com/wali-delivery/ms-go-payments/config"
)

const (
	defaultListLimit = int32(50)
	defaultBatchSize = int32(100)
)

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByID(ctx context.Context, id string) (*entity.Transaction, error)
	FindByProviderTransactionID(ctx context.Context, provider types.Provider, providerTxID string) (*entity.Transaction, error)
	FindOpenByOrderID(ctx context.Context, orderID string) (*entity.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*entity.Transaction, error)
	UpdateStatus(ctx context.Context, id string, newStatus types.TransactionStatus, patch *entity.StatusPatch) (*entity.Transaction, bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
	ListForReconcile(ctx context.Context, staleBefore time.Time, limit int32) ([]*entity.Transaction, error)
}

type transactionEventRepository interface {
	Create(ctx context.Context, event *entity.TransactionEvent) error
}

type webhookAuditRepository interface {
	Create(ctx context.Context, audit *entity.WebhookAudit) error
}

type paymentMethodLookup interface {
	FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error)
}

type eventPublisher interface {
	Publish(event bus.Event)
}

// tracker is the reconciler's surface as the orchestrator sees it. Wired after
// construction via SetTracker because the reconciler needs the service too.
type tracker interface {
	Track(transactionID string, expiresAt time.Time)
	Untrack(transactionID string)
}

type PaymentService struct {
	logger      *logrus.Entry
	txRepo      transactionRepository
	eventRepo   transactionEventRepository
	auditRepo   webhookAuditRepository
	methodRepo  paymentMethodLookup
	providerReg *provider.Registry
	events      eventPublisher
	paymentsCfg config.PaymentsConfig
	baseURL     string
	tracker     tracker
}

func NewPaymentService(
	logger *logrus.Entry,
	txRepo transactionRepository,
	eventRepo transactionEventRepository,
	auditRepo webhookAuditRepository,
	methodRepo paymentMethodLookup,
	providerReg *provider.Registry,
	events eventPublisher,
	paymentsCfg config.PaymentsConfig,
	baseURL string,
) *PaymentService {
	return &PaymentService{
		logger:      logger,
		txRepo:      txRepo,
		eventRepo:   eventRepo,
		auditRepo:   auditRepo,
		methodRepo:  methodRepo,
		providerReg: providerReg,
		events:      events,
		paymentsCfg: paymentsCfg,
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (s *PaymentService) SetTracker(t tracker) {
	s.tracker = t
}

// InitiatePayment resolves the stored payment method, hands the charge to the
// provider adapter, and persists the resulting transaction. Re-initiating an
// order that still has an open transaction returns that transaction unchanged.
func (s *PaymentService) InitiatePayment(ctx context.Context, req *types.InitiatePaymentRequest) (*entity.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	existing, err := s.txRepo.FindOpenByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	method, err := s.methodRepo.FindByID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method == nil || method.UserID != req.UserID {
		return nil, ErrPaymentMethodNotFound
	}
	if !method.Provider.IsValid() {
		return nil, ErrProviderUnsupported
	}

	now := time.Now().UTC()
	tx := &entity.Transaction{
		ID:              uuid.NewString(),
		OrderID:         req.OrderID,
		OrderRef:        req.OrderRef,
		UserID:          req.UserID,
		PaymentMethodID: method.ID,
		Provider:        method.Provider,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          types.StatusPending,
		ProviderPayload: map[string]string{},
		InitiatedAt:     now,
		ExpiresAt:       now.Add(s.pendingTTL()),
		UpdatedAt:       now,
	}

	if method.Provider == types.ProviderCash {
		tx.Message = "Cash payment recorded, settlement on delivery"
		if err := s.txRepo.Create(ctx, tx); err != nil {
			return nil, err
		}
		s.recordEvent(ctx, tx, nil, "payment_initiated", nil, nil)
		s.publish(bus.EventPaymentInitiated, tx)
		return tx, nil
	}

	adapter, err := s.providerReg.Get(method.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	output, err := adapter.Initiate(ctx, s.buildInitiateInput(tx, req, method))
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) && perr.Code != provider.FailureProviderError {
			// Instrument and bounds violations are caller mistakes. No
			// transaction is created for them.
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, perr.Message)
		}

		errorCode := string(provider.FailureProviderError)
		errorMessage := err.Error()
		if errors.As(err, &perr) {
			errorCode = string(perr.Code)
			errorMessage = perr.Message
		}

		tx.Status = types.StatusFailed
		tx.Message = "Payment could not be started with the provider"
		tx.ErrorCode = &errorCode
		tx.ErrorMessage = &errorMessage
		if err := s.txRepo.Create(ctx, tx); err != nil {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"provider":       string(tx.Provider),
			"error_code":     errorCode,
		}).Warn("provider initiate failed")

		s.recordEvent(ctx, tx, nil, "payment_initiated", nil, nil)
		s.publish(bus.EventPaymentFailed, tx)
		return tx, nil
	}

	tx.ProviderTransactionID = output.ProviderTransactionID
	tx.Message = output.Message
	if output.Status.IsValid() {
		tx.Status = output.Status
	}
	if len(output.Payload) > 0 {
		tx.ProviderPayload = output.Payload
	}
	if tx.Status == types.StatusCompleted {
		completedAt := now
		tx.CompletedAt = &completedAt
	}

	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, tx, nil, "payment_initiated", nil, nil)
	s.publish(bus.EventPaymentInitiated, tx)

	if !tx.Status.IsTerminal() && tx.Provider.IsPollable() && s.tracker != nil {
		s.tracker.Track(tx.ID, tx.ExpiresAt)
	}

	return tx, nil
}

func (s *PaymentService) GetTransaction(ctx context.Context, id string) (*entity.Transaction, error) {
	tx, err := s.txRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *PaymentService) ListUserTransactions(ctx context.Context, req *types.ListTransactionsRequest) ([]*entity.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.txRepo.ListByUser(ctx, req.UserID, limit, req.Offset)
}

// CheckStatus polls provider-side truth and folds any change through the
// status choke point. Poll failures fall back to the stored status.
func (s *PaymentService) CheckStatus(ctx context.Context, id string) (*entity.Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() || !tx.Provider.IsPollable() || tx.ProviderTransactionID == nil {
		return tx, nil
	}

	adapter, err := s.providerReg.Get(tx.Provider)
	if err != nil {
		return tx, nil
	}

	liveStatus, err := adapter.Verify(ctx, *tx.ProviderTransactionID)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"provider":       string(tx.Provider),
		}).WithError(err).Warn("provider verify failed, returning stored status")
		return tx, nil
	}
	if liveStatus == tx.Status || liveStatus == types.StatusPending {
		return tx, nil
	}

	updated, _, err := s.UpdateTransactionStatus(ctx, tx.ID, liveStatus, nil, "payment_verified")
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelPayment aborts an open transaction. Providers without a cancel
// operation reject with ErrCancelUnsupported and the transaction stays open.
func (s *PaymentService) CancelPayment(ctx context.Context, id string) (*entity.Transaction, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: transaction is already %s", ErrInvalidStatus, tx.Status)
	}

	if tx.Provider != types.ProviderCash {
		adapter, err := s.providerReg.Get(tx.Provider)
		if err != nil {
			if errors.Is(err, provider.ErrProviderNotSupported) {
				return nil, ErrProviderUnsupported
			}
			return nil, err
		}

		providerTxID := ""
		if tx.ProviderTransactionID != nil {
			providerTxID = *tx.ProviderTransactionID
		}
		if err := adapter.Cancel(ctx, providerTxID); err != nil {
			if errors.Is(err, provider.ErrCancelUnsupported) {
				return nil, ErrCancelUnsupported
			}
			return nil, err
		}
	}

	updated, _, err := s.UpdateTransactionStatus(ctx, tx.ID, types.StatusCancelled, nil, "payment_cancelled")
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpireTransaction forces the expiry outcome on a transaction whose deadline
// has passed. A no-op when another path already reached a terminal state.
func (s *PaymentService) ExpireTransaction(ctx context.Context, id string) error {
	_, _, err := s.UpdateTransactionStatus(ctx, id, types.StatusExpired, nil, "payment_expired")
	if errors.Is(err, ErrTransactionNotFound) {
		return nil
	}
	return err
}

// UpdateTransactionStatus is the single choke point every status change goes
// through, whichever path observed it. The store applies the change only while
// the row is open; the returned flag reports whether this call won, and
// terminal events are emitted exactly once, by the winner.
func (s *PaymentService) UpdateTransactionStatus(ctx context.Context, id string, newStatus types.TransactionStatus, patch *entity.StatusPatch, eventType string) (*entity.Transaction, bool, error) {
	if !newStatus.IsValid() || newStatus == types.StatusPending {
		return nil, false, fmt.Errorf("%w: cannot transition to %q", ErrInvalidStatus, newStatus)
	}

	before, err := s.txRepo.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if before == nil {
		return nil, false, ErrTransactionNotFound
	}

	if patch == nil {
		patch = &entity.StatusPatch{}
	}
	if newStatus == types.StatusCompleted && patch.CompletedAt == nil {
		completedAt := time.Now().UTC()
		patch.CompletedAt = &completedAt
	}

	tx, applied, err := s.txRepo.UpdateStatus(ctx, id, newStatus, patch)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, false, ErrTransactionNotFound
		}
		return nil, false, err
	}
	if !applied {
		return tx, false, nil
	}

	oldStatus := before.Status
	s.recordEvent(ctx, tx, &oldStatus, eventType, nil, nil)

	if kind := bus.KindForStatus(tx.Status); kind != "" {
		s.publish(kind, tx)
	}
	if tx.Status.IsTerminal() && s.tracker != nil {
		s.tracker.Untrack(tx.ID)
	}

	return tx, true, nil
}

func (s *PaymentService) buildInitiateInput(tx *entity.Transaction, req *types.InitiatePaymentRequest, method *entity.PaymentMethod) *provider.InitiateInput {
	phone := req.CustomerPhone
	if method.PhoneNumber != nil && *method.PhoneNumber != "" {
		phone = *method.PhoneNumber
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" && s.baseURL != "" {
		callbackURL = s.baseURL + "/webhooks/providers/" + string(tx.Provider)
	}

	return &provider.InitiateInput{
		TransactionID: tx.ID,
		OrderRef:      tx.OrderRef,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Phone:         phone,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Description:   req.Description,
		CallbackURL:   callbackURL,
		ReturnURL:     req.ReturnURL,
	}
}

func (s *PaymentService) recordEvent(ctx context.Context, tx *entity.Transaction, oldStatus *types.TransactionStatus, eventType string, providerEventID, payloadJSON *string) {
	if err := s.eventRepo.Create(ctx, &entity.TransactionEvent{
		TransactionID:   tx.ID,
		EventType:       eventType,
		OldStatus:       oldStatus,
		NewStatus:       tx.Status,
		ProviderEventID: providerEventID,
		PayloadJSON:     payloadJSON,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"event_type":     eventType,
		}).WithError(err).Error("failed to record transaction event")
	}
}

func (s *PaymentService) publish(kind bus.EventKind, tx *entity.Transaction) {
	if s.events == nil {
		return
	}
	s.events.Publish(bus.Event{
		Kind:          kind,
		TransactionID: tx.ID,
		OrderRef:      tx.OrderRef,
		UserID:        tx.UserID,
		Provider:      tx.Provider.DisplayName(),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Message:       tx.Message,
	})
}

func (s *PaymentService) pendingTTL() time.Duration {
	if s.paymentsCfg.PendingTTL > 0 {
		return s.paymentsCfg.PendingTTL
	}
	return 30 * time.Minute
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}
