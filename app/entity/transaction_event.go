package entity

import (
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// TransactionEvent is an audit row recorded for every observed status change,
// whichever path (initiate, poll, webhook, expiry) caused it.
type TransactionEvent struct {
	ID uint64

	TransactionID string
	EventType     string

	OldStatus *types.TransactionStatus
	NewStatus types.TransactionStatus

	ProviderEventID *string
	PayloadJSON     *string

	CreatedAt time.Time
}
