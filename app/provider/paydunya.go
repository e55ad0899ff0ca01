package provider

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

const (
	payDunyaMinAmount int64 = 500
	payDunyaMaxAmount int64 = 5_000_000
)

type PayDunyaConfig struct {
	MasterKey   string
	PrivateKey  string
	Token       string
	BaseURL     string
	HTTPTimeout time.Duration
	TestMode    bool
}

// PayDunyaAdapter drives the hosted checkout-invoice flow: the customer is
// redirected to PayDunya's card page and sent back via the return URL.
type PayDunyaAdapter struct {
	cfg    PayDunyaConfig
	client *http.Client
}

func NewPayDunyaAdapter(cfg PayDunyaConfig) *PayDunyaAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PayDunyaAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *PayDunyaAdapter) Code() types.Provider {
	return types.ProviderPayDunya
}

func (a *PayDunyaAdapter) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, payDunyaMinAmount, payDunyaMaxAmount); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, newError(FailureInvalidCard, "customer name is required for card payments")
	}
	if strings.TrimSpace(a.cfg.MasterKey) == "" {
		return nil, errors.New("paydunya master key is not configured")
	}

	reqBody := map[string]interface{}{
		"invoice": map[string]interface{}{
			"total_amount": input.Amount,
			"description":  input.Description,
		},
		"store": map[string]string{
			"name": "Wali",
		},
		"custom_data": map[string]string{
			"transaction_id": input.TransactionID,
			"order_ref":      input.OrderRef,
		},
		"actions": map[string]string{
			"callback_url": input.CallbackURL,
			"return_url":   input.ReturnURL,
			"cancel_url":   input.ReturnURL,
		},
	}

	body, err := a.postJSON(ctx, "/v1/checkout-invoice/create", reqBody)
	if err != nil {
		return nil, newError(FailureProviderError, "paydunya initiate failed: %v", err)
	}

	var payload struct {
		ResponseCode string `json:"response_code"`
		ResponseText string `json:"response_text"`
		Token        string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(FailureProviderError, "paydunya returned a malformed response")
	}
	if payload.ResponseCode != "00" {
		return nil, newError(FailureProviderError, "paydunya rejected the invoice: code=%s", payload.ResponseCode)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return nil, newError(FailureProviderError, "paydunya response is missing an invoice token")
	}

	providerTxID := strings.TrimSpace(payload.Token)
	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                types.StatusPending,
		Message:               "Follow the payment link to complete the card payment",
		Payload: map[string]string{
			types.PayloadAuthorizationCode: providerTxID,
		},
	}
	if checkoutURL := strings.TrimSpace(payload.ResponseText); strings.HasPrefix(checkoutURL, "http") {
		output.Payload[types.PayloadPaymentURL] = checkoutURL
	}

	return output, nil
}

func (a *PayDunyaAdapter) Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error) {
	if strings.TrimSpace(providerTxID) == "" {
		return "", errors.New("provider transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/v1/checkout-invoice/confirm/"+url.PathEscape(providerTxID), nil)
	if err != nil {
		return "", err
	}
	a.setAuthHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("paydunya verify failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	status := mapPayDunyaStatus(payload.Status)
	if status == "" {
		return "", fmt.Errorf("paydunya returned unknown status %q", payload.Status)
	}
	return status, nil
}

// HandleCallback authenticates PayDunya's IPN by its hash field: the SHA-512
// of the merchant master key, carried inside the payload rather than a header.
func (a *PayDunyaAdapter) HandleCallback(_ context.Context, payload []byte, _ string) (*CallbackEvent, error) {
	var event struct {
		Data struct {
			Hash    string `json:"hash"`
			Status  string `json:"status"`
			Invoice struct {
				Token string `json:"token"`
			} `json:"invoice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("paydunya callback payload is malformed: %w", err)
	}

	if !a.cfg.TestMode {
		if strings.TrimSpace(a.cfg.MasterKey) == "" {
			return nil, errors.New("paydunya master key is not configured")
		}
		digest := sha512.Sum512([]byte(a.cfg.MasterKey))
		expected := hex.EncodeToString(digest[:])
		received := strings.ToLower(strings.TrimSpace(event.Data.Hash))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			return nil, ErrSignatureInvalid
		}
	}

	status := mapPayDunyaStatus(event.Data.Status)
	if status == "" {
		return nil, fmt.Errorf("paydunya callback carries unknown status %q", event.Data.Status)
	}

	return &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.Data.Invoice.Token),
		EventType:             "invoice.status_changed",
		NewStatus:             status,
	}, nil
}

func (a *PayDunyaAdapter) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

func (a *PayDunyaAdapter) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.BaseURL, "/")+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.setAuthHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (a *PayDunyaAdapter) setAuthHeaders(req *http.Request) {
	req.Header.Set("PAYDUNYA-MASTER-KEY", a.cfg.MasterKey)
	req.Header.Set("PAYDUNYA-PRIVATE-KEY", a.cfg.PrivateKey)
	req.Header.Set("PAYDUNYA-TOKEN", a.cfg.Token)
}

func mapPayDunyaStatus(raw string) types.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return types.StatusPending
	case "processing":
		return types.StatusProcessing
	case "completed":
		return types.StatusCompleted
	case "failed":
		return types.StatusFailed
	case "cancelled", "canceled":
		return types.StatusCancelled
	case "expired":
		return types.StatusExpired
	default:
		return ""
	}
}
