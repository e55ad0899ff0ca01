package repository

import (
	"context"
	"database/sql"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

type TransactionEventRepository struct {
	db DBTX
}

func NewTransactionEventRepository(db DBTX) *TransactionEventRepository {
	return &TransactionEventRepository{db: db}
}

func (r *TransactionEventRepository) Create(ctx context.Context, event *entity.TransactionEvent) error {
	query := `
		INSERT INTO transaction_events (
			transaction_id, event_type, old_status, new_status,
			provider_event_id, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var oldStatus interface{}
	if event.OldStatus != nil {
		oldStatus = string(*event.OldStatus)
	}

	result, err := r.db.ExecContext(ctx, query,
		event.TransactionID,
		event.EventType,
		oldStatus,
		string(event.NewStatus),
		nullableStringValue(event.ProviderEventID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func (r *TransactionEventRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*entity.TransactionEvent, error) {
	query := `
		SELECT id, transaction_id, event_type, old_status, new_status,
			provider_event_id, payload_json, created_at
		FROM transaction_events
		WHERE transaction_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.TransactionEvent, 0)
	for rows.Next() {
		item := &entity.TransactionEvent{}
		var oldStatus sql.NullString
		var providerEventID sql.NullString
		var payloadJSON sql.NullString
		var newStatus string

		err := rows.Scan(
			&item.ID,
			&item.TransactionID,
			&item.EventType,
			&oldStatus,
			&newStatus,
			&providerEventID,
			&payloadJSON,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if oldStatus.Valid {
			status := types.TransactionStatus(oldStatus.String)
			item.OldStatus = &status
		}
		item.NewStatus = types.TransactionStatus(newStatus)
		item.ProviderEventID = stringPtrFromNull(providerEventID)
		item.PayloadJSON = stringPtrFromNull(payloadJSON)

		events = append(events, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
