package types

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type InitiatePaymentRequest struct {
	OrderID         string `json:"order_id"`
	OrderRef        string `json:"order_ref"`
	UserID          string `json:"user_id"`
	PaymentMethodID string `json:"payment_method_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CallbackURL     string `json:"callback_url"`
	ReturnURL       string `json:"return_url"`
}

func NewInitiatePaymentRequestFromContext(ctx echo.Context) (*InitiatePaymentRequest, error) {
	var body InitiatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderID = strings.TrimSpace(body.OrderID)
	body.OrderRef = strings.TrimSpace(body.OrderRef)
	body.UserID = strings.TrimSpace(body.UserID)
	body.PaymentMethodID = strings.TrimSpace(body.PaymentMethodID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.Currency == "" {
		body.Currency = "XOF"
	}
	body.Description = strings.TrimSpace(body.Description)
	body.CustomerPhone = strings.TrimSpace(body.CustomerPhone)
	body.CustomerName = strings.TrimSpace(body.CustomerName)
	body.CustomerEmail = strings.TrimSpace(body.CustomerEmail)
	body.CallbackURL = strings.TrimSpace(body.CallbackURL)
	body.ReturnURL = strings.TrimSpace(body.ReturnURL)

	return &body, nil
}

func (r *InitiatePaymentRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	if r.OrderRef == "" {
		return errors.New("order_ref is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.PaymentMethodID == "" {
		return errors.New("payment_method_id is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be > 0")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

type TransactionIDRequest struct {
	TransactionID string
}

func NewTransactionIDRequestFromContext(ctx echo.Context) (*TransactionIDRequest, error) {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return nil, errors.New("transaction id is required")
	}
	return &TransactionIDRequest{TransactionID: id}, nil
}

type ListTransactionsRequest struct {
	UserID string
	Limit  int32
	Offset int32
}

func NewListTransactionsRequestFromContext(ctx echo.Context) (*ListTransactionsRequest, error) {
	req := &ListTransactionsRequest{
		UserID: strings.TrimSpace(ctx.QueryParam("user_id")),
		Limit:  50,
		Offset: 0,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListTransactionsRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.Limit <= 0 || r.Limit > 200 {
		return errors.New("limit must be between 1 and 200")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

// ProviderWebhookRequest carries a raw provider push exactly as received, the
// signature pulled from whichever header the provider uses.
type ProviderWebhookRequest struct {
	Provider  Provider
	Signature string
	Payload   []byte
}

var signatureHeaders = []string{
	"Wave-Signature",
	"X-Orange-Signature",
	"X-PayDunya-Signature",
	"X-Token",
	"X-Provider-Signature",
}

func NewProviderWebhookRequestFromContext(ctx echo.Context) (*ProviderWebhookRequest, error) {
	providerRaw := strings.ToLower(strings.TrimSpace(ctx.Param("provider")))
	if providerRaw == "" {
		return nil, errors.New("provider is required")
	}

	var signature string
	for _, header := range signatureHeaders {
		if v := strings.TrimSpace(ctx.Request().Header.Get(header)); v != "" {
			signature = v
			break
		}
	}

	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.New("payload is required")
	}

	return &ProviderWebhookRequest{
		Provider:  Provider(providerRaw),
		Signature: signature,
		Payload:   payload,
	}, nil
}

func (r *ProviderWebhookRequest) Validate() error {
	if !r.Provider.IsValid() || r.Provider == ProviderCash {
		return errors.New("unknown webhook provider")
	}
	return nil
}

type CreatePaymentMethodRequest struct {
	UserID      string   `json:"user_id"`
	Provider    Provider `json:"provider"`
	Label       string   `json:"label"`
	PhoneNumber string   `json:"phone_number"`
	CardToken   string   `json:"card_token"`
	CardLast4   string   `json:"card_last4"`
	SetDefault  bool     `json:"set_default"`
}

func NewCreatePaymentMethodRequestFromContext(ctx echo.Context) (*CreatePaymentMethodRequest, error) {
	var body CreatePaymentMethodRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = strings.TrimSpace(body.UserID)
	body.Provider = Provider(strings.ToLower(strings.TrimSpace(string(body.Provider))))
	body.Label = strings.TrimSpace(body.Label)
	body.PhoneNumber = strings.TrimSpace(body.PhoneNumber)
	body.CardToken = strings.TrimSpace(body.CardToken)
	body.CardLast4 = strings.TrimSpace(body.CardLast4)
	return &body, nil
}

func (r *CreatePaymentMethodRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if !r.Provider.IsValid() {
		return errors.New("provider is invalid")
	}
	switch r.Provider {
	case ProviderOrangeMoney, ProviderWave, ProviderFreeMoney:
		if r.PhoneNumber == "" {
			return errors.New("phone_number is required for wallet providers")
		}
	case ProviderPayDunya, ProviderCinetPay:
		if r.CardToken == "" {
			return errors.New("card_token is required for card providers")
		}
		if len(r.CardLast4) != 4 {
			return errors.New("card_last4 must be 4 digits")
		}
	}
	return nil
}
