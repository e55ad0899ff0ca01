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
	ErrPaymentMethodNotFound      = errors.New("payment method not found")
	ErrPaymentMethodAlreadyExists = errors.New("payment method already exists")
)

const paymentMethodColumns = `
	id, user_id, provider, label, phone_number, card_token, card_last4,
	is_default, created_at, updated_at
`

type PaymentMethodRepository struct {
	db *sql.DB
}

func NewPaymentMethodRepository(db *sql.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

func (r *PaymentMethodRepository) Create(ctx context.Context, method *entity.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (` + paymentMethodColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		method.ID,
		method.UserID,
		string(method.Provider),
		method.Label,
		nullableStringValue(method.PhoneNumber),
		nullableStringValue(method.CardToken),
		nullableStringValue(method.CardLast4),
		method.IsDefault,
		method.CreatedAt,
		method.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentMethodAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PaymentMethodRepository) FindByID(ctx context.Context, id string) (*entity.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = ?`

	method := &entity.PaymentMethod{}
	if err := scanPaymentMethod(r.db.QueryRowContext(ctx, query, id), method); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return method, nil
}

func (r *PaymentMethodRepository) ListByUser(ctx context.Context, userID string) ([]*entity.PaymentMethod, error) {
	query := `
		SELECT ` + paymentMethodColumns + `
		FROM payment_methods
		WHERE user_id = ?
		ORDER BY is_default DESC, created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	methods := make([]*entity.PaymentMethod, 0)
	for rows.Next() {
		item := &entity.PaymentMethod{}
		if err := scanPaymentMethod(rows, item); err != nil {
			return nil, err
		}
		methods = append(methods, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return methods, nil
}

// SetDefault promotes one method and demotes the user's others in a single
// transaction so the single-default invariant holds.
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, userID, methodID string) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC()

	if _, err := sqlTx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = ? WHERE user_id = ? AND is_default = TRUE`,
		now, userID); err != nil {
		return err
	}

	result, err := sqlTx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = ? WHERE id = ? AND user_id = ?`,
		now, methodID, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentMethodNotFound
	}

	return sqlTx.Commit()
}

func (r *PaymentMethodRepository) Delete(ctx context.Context, userID, methodID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM payment_methods WHERE id = ? AND user_id = ?`, methodID, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentMethodNotFound
	}
	return nil
}

func scanPaymentMethod(scan rowScanner, method *entity.PaymentMethod) error {
	var provider string
	var phoneNumber sql.NullString
	var cardToken sql.NullString
	var cardLast4 sql.NullString

	err := scan.Scan(
		&method.ID,
		&method.UserID,
		&provider,
		&method.Label,
		&phoneNumber,
		&cardToken,
		&cardLast4,
		&method.IsDefault,
		&method.CreatedAt,
		&method.UpdatedAt,
	)
	if err != nil {
		return err
	}

	method.Provider = types.Provider(provider)
	method.PhoneNumber = stringPtrFromNull(phoneNumber)
	method.CardToken = stringPtrFromNull(cardToken)
	method.CardLast4 = stringPtrFromNull(cardLast4)
	return nil
}
