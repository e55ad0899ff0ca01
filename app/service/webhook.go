package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/provider"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

// HandleProviderWebhook ingests an asynchronous provider push. Every payload
// is audited, including rejected ones. Authentic pushes for unknown references
// or already-terminal transactions are accepted no-ops: the provider must not
// keep retrying them.
func (s *PaymentService) HandleProviderWebhook(ctx context.Context, req *types.ProviderWebhookRequest) (*entity.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	adapter, err := s.providerReg.Get(req.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	event, err := adapter.HandleCallback(ctx, req.Payload, req.Signature)
	if err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			s.auditWebhook(ctx, nil, req, entity.WebhookAuditRejected, "signature verification failed")
			s.logger.WithField("provider", string(req.Provider)).Warn("rejected webhook with invalid signature")
			return nil, ErrWebhookRejected
		}
		s.auditWebhook(ctx, nil, req, entity.WebhookAuditRejected, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	providerTxID := strings.TrimSpace(event.ProviderTransactionID)
	if providerTxID == "" {
		s.auditWebhook(ctx, nil, req, entity.WebhookAuditRejected, "callback carries no provider transaction id")
		return nil, fmt.Errorf("%w: callback carries no provider transaction id", ErrInvalidRequest)
	}

	tx, err := s.txRepo.FindByProviderTransactionID(ctx, req.Provider, providerTxID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		s.auditWebhook(ctx, nil, req, entity.WebhookAuditIgnored, "no transaction matches the provider reference")
		s.logger.WithFields(logrus.Fields{
			"provider":                string(req.Provider),
			"provider_transaction_id": providerTxID,
		}).Info("ignoring webhook for unknown provider reference")
		return nil, nil
	}

	if !event.NewStatus.IsValid() || event.NewStatus == types.StatusPending {
		s.auditWebhook(ctx, &tx.ID, req, entity.WebhookAuditIgnored, "callback status requires no transition")
		return tx, nil
	}

	patch := &entity.StatusPatch{}
	if event.Message != "" {
		message := event.Message
		patch.Message = &message
	}
	if event.NewStatus == types.StatusFailed {
		errorCode := string(provider.FailureProviderError)
		patch.ErrorCode = &errorCode
		if event.Message != "" {
			errorMessage := event.Message
			patch.ErrorMessage = &errorMessage
		}
	}

	eventType := strings.TrimSpace(event.EventType)
	if eventType == "" {
		eventType = "provider_webhook"
	}

	updated, applied, err := s.UpdateTransactionStatus(ctx, tx.ID, event.NewStatus, patch, eventType)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			s.auditWebhook(ctx, &tx.ID, req, entity.WebhookAuditIgnored, err.Error())
			return tx, nil
		}
		return nil, err
	}

	if applied {
		s.auditWebhook(ctx, &updated.ID, req, entity.WebhookAuditProcessed, "")
	} else {
		s.auditWebhook(ctx, &updated.ID, req, entity.WebhookAuditIgnored, "transaction already terminal")
	}

	return updated, nil
}

func (s *PaymentService) auditWebhook(ctx context.Context, transactionID *string, req *types.ProviderWebhookRequest, status int32, reason string) {
	audit := &entity.WebhookAudit{
		TransactionID: transactionID,
		Provider:      req.Provider,
		Signature:     req.Signature,
		PayloadJSON:   string(req.Payload),
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		trimmed := truncate(reason, 1024)
		audit.Error = &trimmed
	}

	if err := s.auditRepo.Create(ctx, audit); err != nil {
		s.logger.WithField("provider", string(req.Provider)).WithError(err).Error("failed to record webhook audit")
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
