package entity

import (
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

const (
	WebhookAuditProcessed int32 = 10
	WebhookAuditIgnored   int32 = 15
	WebhookAuditRejected  int32 = 20
)

// WebhookAudit records every inbound provider push, including rejected ones.
// Rejected rows are the operational trail for authenticity failures.
type WebhookAudit struct {
	ID uint64

	TransactionID *string

	Provider    types.Provider
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
