package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
)

const transactionColumns = `
	id, provider_transaction_id, order_id, order_ref, user_id, payment_method_id,
	provider, amount, currency, status, message, error_code, error_message,
	provider_payload_json, initiated_at, completed_at, expires_at, updated_at
`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *entity.Transaction) error {
	payloadJSON, err := serializePayload(tx.ProviderPayload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		tx.ID,
		nullableStringValue(tx.ProviderTransactionID),
		tx.OrderID,
		tx.OrderRef,
		tx.UserID,
		tx.PaymentMethodID,
		string(tx.Provider),
		tx.Amount,
		tx.Currency,
		string(tx.Status),
		tx.Message,
		nullableStringValue(tx.ErrorCode),
		nullableStringValue(tx.ErrorMessage),
		payloadJSON,
		tx.InitiatedAt,
		nullableTimeValue(tx.CompletedAt),
		tx.ExpiresAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	tx := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, id), tx); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) FindByProviderTransactionID(ctx context.Context, provider types.Provider, providerTxID string) (*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE provider = ? AND provider_transaction_id = ?
		LIMIT 1
	`

	tx := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, string(provider), providerTxID), tx); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return tx, nil
}

// FindOpenByOrderID returns the newest non-terminal transaction for an order,
// used to make initiation idempotent per order.
func (r *TransactionRepository) FindOpenByOrderID(ctx context.Context, orderID string) (*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = ? AND status IN (?, ?)
		ORDER BY initiated_at DESC
		LIMIT 1
	`

	tx := &entity.Transaction{}
	err := scanTransaction(r.db.QueryRowContext(ctx, query, orderID,
		string(types.StatusPending), string(types.StatusProcessing)), tx)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY initiated_at DESC
		LIMIT ? OFFSET ?
	`
	return r.list(ctx, query, userID, limit, offset)
}

// UpdateStatus applies a status change only while the row is still open. The
// WHERE clause is the whole concurrency story: the row lock serializes racing
// writers and the status guard makes terminal states immutable. The returned
// flag reports whether this call won; callers key event emission on it.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, newStatus types.TransactionStatus, patch *entity.StatusPatch) (*entity.Transaction, bool, error) {
	if patch == nil {
		patch = &entity.StatusPatch{}
	}

	query := `
		UPDATE transactions SET
			status = ?,
			provider_transaction_id = COALESCE(?, provider_transaction_id),
			message = COALESCE(?, message),
			error_code = COALESCE(?, error_code),
			error_message = COALESCE(?, error_message),
			completed_at = COALESCE(?, completed_at),
			updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		string(newStatus),
		nullableStringValue(patch.ProviderTransactionID),
		nullableStringValue(patch.Message),
		nullableStringValue(patch.ErrorCode),
		nullableStringValue(patch.ErrorMessage),
		nullableTimeValue(patch.CompletedAt),
		time.Now().UTC(),
		id,
		string(types.StatusPending),
		string(types.StatusProcessing),
	)
	if err != nil {
		return nil, false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	tx, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if tx == nil {
		return nil, false, ErrTransactionNotFound
	}

	return tx, affected > 0, nil
}

// SetProviderPayload replaces the stored provider artifacts after initiation.
func (r *TransactionRepository) SetProviderPayload(ctx context.Context, id string, payload map[string]string) error {
	payloadJSON, err := serializePayload(payload)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET provider_payload_json = ?, updated_at = ? WHERE id = ?`,
		payloadJSON, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ListExpired returns open transactions whose deadline has passed, oldest
// first. Feeds the expiry sweep after restarts.
func (r *TransactionRepository) ListExpired(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status IN (?, ?)
		  AND expires_at <= ?
		ORDER BY expires_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, string(types.StatusPending), string(types.StatusProcessing), now, limit)
}

// ListForReconcile returns open transactions that have a provider reference
// and have not been touched since the given cutoff.
func (r *TransactionRepository) ListForReconcile(ctx context.Context, staleBefore time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status IN (?, ?)
		  AND provider_transaction_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, string(types.StatusPending), string(types.StatusProcessing), staleBefore, limit)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]*entity.Transaction, 0)
	for rows.Next() {
		item := &entity.Transaction{}
		if err := scanTransaction(rows, item); err != nil {
			return nil, err
		}
		transactions = append(transactions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func scanTransaction(scan rowScanner, tx *entity.Transaction) error {
	var providerTxID sql.NullString
	var provider string
	var status string
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var payloadJSON string
	var completedAt sql.NullTime

	err := scan.Scan(
		&tx.ID,
		&providerTxID,
		&tx.OrderID,
		&tx.OrderRef,
		&tx.UserID,
		&tx.PaymentMethodID,
		&provider,
		&tx.Amount,
		&tx.Currency,
		&status,
		&tx.Message,
		&errorCode,
		&errorMessage,
		&payloadJSON,
		&tx.InitiatedAt,
		&completedAt,
		&tx.ExpiresAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return err
	}

	tx.ProviderTransactionID = stringPtrFromNull(providerTxID)
	tx.Provider = types.Provider(provider)
	tx.Status = types.TransactionStatus(status)
	tx.ErrorCode = stringPtrFromNull(errorCode)
	tx.ErrorMessage = stringPtrFromNull(errorMessage)
	tx.CompletedAt = timePtrFromNull(completedAt)

	payload, err := parsePayload(payloadJSON)
	if err != nil {
		return err
	}
	tx.ProviderPayload = payload

	return nil
}
