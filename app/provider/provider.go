package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// ErrCancelUnsupported is returned by adapters whose backend has no way to
// cancel an in-flight charge. Callers must treat it as a definitive answer,
// not a failure.
var ErrCancelUnsupported = errors.New("cancel is not supported by this provider")

// ErrSignatureInvalid marks a webhook payload that failed authentication.
var ErrSignatureInvalid = errors.New("webhook signature is invalid")

type FailureCode string

const (
	FailureInvalidAmount   FailureCode = "invalid_amount"
	FailureInvalidPhone    FailureCode = "invalid_phone"
	FailureInvalidCard     FailureCode = "invalid_card"
	FailureInvalidCurrency FailureCode = "invalid_currency"
	FailureProviderError   FailureCode = "provider_error"
)

// Error is the structured failure adapters return for expected failure modes.
// Anything else escaping an adapter is a programming error.
type Error struct {
	Code    FailureCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code FailureCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

type InitiateInput struct {
	TransactionID string
	OrderRef      string
	Amount        int64
	Currency      string
	Phone         string
	CustomerName  string
	CustomerEmail string
	Description   string

	// CallbackURL receives the provider's asynchronous push; ReturnURL is
	// where hosted flows send the customer back.
	CallbackURL string
	ReturnURL   string
}

type InitiateOutput struct {
	ProviderTransactionID *string
	Status                types.TransactionStatus
	Message               string

	// Payload carries presentation artifacts (types.PayloadPaymentURL,
	// types.PayloadQRCode, types.PayloadUSSDCode, ...) passed through to the
	// caller without interpretation.
	Payload map[string]string
}

type CallbackEvent struct {
	ProviderTransactionID string
	EventType             string
	NewStatus             types.TransactionStatus
	Message               string
}

// Adapter is the uniform contract every payment backend is normalized into.
// Implementations are stateless between calls.
type Adapter interface {
	Code() types.Provider

	// Initiate validates amount bounds and instrument format before any
	// network call, then submits the charge.
	Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error)

	// Verify is an idempotent poll of provider-side truth; it has no side
	// effects beyond returning the current status.
	Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error)

	// HandleCallback authenticates an inbound push and maps the provider's
	// native status vocabulary to the common enum. It returns
	// ErrSignatureInvalid for payloads that fail authentication.
	HandleCallback(ctx context.Context, payload []byte, signature string) (*CallbackEvent, error)

	// Cancel aborts an in-flight charge where the backend supports it and
	// returns ErrCancelUnsupported otherwise.
	Cancel(ctx context.Context, providerTxID string) error
}
