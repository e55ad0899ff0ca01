package entity

import (
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// PaymentMethod is a stored, reusable payment instrument: a wallet phone
// number or a tokenized card. Card numbers are never stored, only the
// gateway token and the last four digits.
type PaymentMethod struct {
	ID     string
	UserID string

	Provider types.Provider
	Label    string

	PhoneNumber *string
	CardToken   *string
	CardLast4   *string

	// At most one method per user carries the default flag at any time.
	IsDefault bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
