package service

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrMethodAlreadyExists   = errors.New("payment method already exists")
	ErrProviderUnsupported   = errors.New("provider is not supported")
	ErrProviderMismatch      = errors.New("payment method does not match the requested provider")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrCancelUnsupported     = errors.New("cancel is not supported by this provider")
	ErrWebhookRejected       = errors.New("webhook rejected")
)
