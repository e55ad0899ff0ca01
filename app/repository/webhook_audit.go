package repository

import (
	"context"

	"github.com/wali-delivery/ms-go-payments/app/entity"
)

type WebhookAuditRepository struct {
	db DBTX
}

func NewWebhookAuditRepository(db DBTX) *WebhookAuditRepository {
	return &WebhookAuditRepository{db: db}
}

func (r *WebhookAuditRepository) Create(ctx context.Context, audit *entity.WebhookAudit) error {
	query := `
		INSERT INTO webhook_audits (
			transaction_id, provider, signature, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(audit.TransactionID),
		string(audit.Provider),
		audit.Signature,
		audit.PayloadJSON,
		audit.Status,
		nullableStringValue(audit.Error),
		audit.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	audit.ID = uint64(id)
	return nil
}
