package types

type HealthResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InitiatePaymentResponse is the synchronous outcome of an initiate call. The
// presentation artifacts (payment_url, qr_code, ussd_code) are provider
// payload passed through untouched.
type InitiatePaymentResponse struct {
	Success               bool              `json:"success"`
	TransactionID         string            `json:"transaction_id,omitempty"`
	ProviderTransactionID string            `json:"provider_transaction_id,omitempty"`
	Status                TransactionStatus `json:"status,omitempty"`
	Message               string            `json:"message,omitempty"`
	PaymentURL            string            `json:"payment_url,omitempty"`
	QRCode                string            `json:"qr_code,omitempty"`
	USSDCode              string            `json:"ussd_code,omitempty"`
	ExpiresAt             string            `json:"expires_at,omitempty"`
	Error                 *ErrorDetail      `json:"error,omitempty"`
}

type Transaction struct {
	ID                    string            `json:"id"`
	ProviderTransactionID string            `json:"provider_transaction_id,omitempty"`
	OrderID               string            `json:"order_id"`
	OrderRef              string            `json:"order_ref"`
	UserID                string            `json:"user_id"`
	PaymentMethodID       string            `json:"payment_method_id"`
	Provider              Provider          `json:"provider"`
	ProviderName          string            `json:"provider_name"`
	Amount                int64             `json:"amount"`
	Currency              string            `json:"currency"`
	Status                TransactionStatus `json:"status"`
	Message               string            `json:"message,omitempty"`
	ErrorCode             string            `json:"error_code,omitempty"`
	ErrorMessage          string            `json:"error_message,omitempty"`
	ProviderPayload       map[string]string `json:"provider_payload,omitempty"`
	InitiatedAt           string            `json:"initiated_at"`
	CompletedAt           string            `json:"completed_at,omitempty"`
	ExpiresAt             string            `json:"expires_at"`
}

type TransactionEnvelopeResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type StatusResponse struct {
	TransactionID string            `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
}

type PaymentMethod struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Provider    Provider `json:"provider"`
	Label       string   `json:"label,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	CardLast4   string   `json:"card_last4,omitempty"`
	IsDefault   bool     `json:"is_default"`
	CreatedAt   string   `json:"created_at"`
}

type PaymentMethodEnvelopeResponse struct {
	PaymentMethod *PaymentMethod `json:"payment_method"`
}

type ListPaymentMethodsResponse struct {
	PaymentMethods []*PaymentMethod `json:"payment_methods"`
}
