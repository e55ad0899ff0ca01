package entity

import (
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// Transaction is the unit of work of the payment core. The repository owns its
// lifetime; everything else holds only the ID.
type Transaction struct {
	ID                    string
	ProviderTransactionID *string

	OrderID         string
	OrderRef        string
	UserID          string
	PaymentMethodID string

	Provider types.Provider

	Amount   int64
	Currency string

	Status       types.TransactionStatus
	Message      string
	ErrorCode    *string
	ErrorMessage *string

	// ProviderPayload holds provider-specific artifacts (redirect URL, QR
	// code, USSD code) needed to resume the interaction. Opaque to the core.
	ProviderPayload map[string]string

	InitiatedAt time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
	UpdatedAt   time.Time
}

// StatusPatch is the optional set of fields applied together with a status
// change. Nil fields are left untouched.
type StatusPatch struct {
	ProviderTransactionID *string
	Message               *string
	ErrorCode             *string
	ErrorMessage          *string
	CompletedAt           *time.Time
}
