package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

const (
	cinetPayMinAmount int64 = 500
	cinetPayMaxAmount int64 = 3_000_000
)

type CinetPayConfig struct {
	APIKey        string
	SecretKey     string
	SiteID        string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

// CinetPayAdapter drives the hosted card-checkout flow. CinetPay keys charges
// by the merchant transaction ID, so the provider transaction ID is our own
// ID echoed back.
type CinetPayAdapter struct {
	cfg    CinetPayConfig
	client *http.Client
}

func NewCinetPayAdapter(cfg CinetPayConfig) *CinetPayAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CinetPayAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *CinetPayAdapter) Code() types.Provider {
	return types.ProviderCinetPay
}

func (a *CinetPayAdapter) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, cinetPayMinAmount, cinetPayMaxAmount); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, newError(FailureInvalidCard, "customer name is required for card payments")
	}
	if strings.TrimSpace(a.cfg.APIKey) == "" || strings.TrimSpace(a.cfg.SiteID) == "" {
		return nil, errors.New("cinetpay credentials are not configured")
	}

	reqBody := map[string]interface{}{
		"apikey":         a.cfg.APIKey,
		"site_id":        a.cfg.SiteID,
		"transaction_id": input.TransactionID,
		"amount":         input.Amount,
		"currency":       strings.ToUpper(input.Currency),
		"description":    input.Description,
		"customer_name":  input.CustomerName,
		"customer_email": input.CustomerEmail,
		"channels":       "CREDIT_CARD",
		"notify_url":     input.CallbackURL,
		"return_url":     input.ReturnURL,
	}

	body, err := a.postJSON(ctx, "/v2/payment", reqBody)
	if err != nil {
		return nil, newError(FailureProviderError, "cinetpay initiate failed: %v", err)
	}

	var payload struct {
		Code string `json:"code"`
		Data struct {
			PaymentURL   string `json:"payment_url"`
			PaymentToken string `json:"payment_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(FailureProviderError, "cinetpay returned a malformed response")
	}
	if payload.Code != "201" {
		return nil, newError(FailureProviderError, "cinetpay rejected the charge: code=%s", payload.Code)
	}

	providerTxID := input.TransactionID
	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                types.StatusPending,
		Message:               "Follow the payment link to complete the card payment",
		Payload:               map[string]string{},
	}
	if paymentURL := strings.TrimSpace(payload.Data.PaymentURL); paymentURL != "" {
		output.Payload[types.PayloadPaymentURL] = paymentURL
	}
	if token := strings.TrimSpace(payload.Data.PaymentToken); token != "" {
		output.Payload[types.PayloadAuthorizationCode] = token
	}

	return output, nil
}

func (a *CinetPayAdapter) Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error) {
	if strings.TrimSpace(providerTxID) == "" {
		return "", errors.New("provider transaction id is required")
	}

	reqBody := map[string]string{
		"apikey":         a.cfg.APIKey,
		"site_id":        a.cfg.SiteID,
		"transaction_id": providerTxID,
	}

	body, err := a.postJSON(ctx, "/v2/payment/check", reqBody)
	if err != nil {
		return "", err
	}

	var payload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	status := mapCinetPayStatus(payload.Data.Status)
	if status == "" {
		return "", fmt.Errorf("cinetpay returned unknown status %q", payload.Data.Status)
	}
	return status, nil
}

func (a *CinetPayAdapter) HandleCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if !a.cfg.TestMode {
		if strings.TrimSpace(a.cfg.SecretKey) == "" {
			return nil, errors.New("cinetpay secret key is not configured")
		}
		if !verifyHMACHex(payload, signature, a.cfg.SecretKey) {
			return nil, ErrSignatureInvalid
		}
	}

	var event struct {
		TransactionID string `json:"cpm_trans_id"`
		Status        string `json:"cpm_trans_status"`
		ErrorMessage  string `json:"cpm_error_message"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("cinetpay callback payload is malformed: %w", err)
	}

	status := mapCinetPayStatus(event.Status)
	if status == "" {
		return nil, fmt.Errorf("cinetpay callback carries unknown status %q", event.Status)
	}

	return &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.TransactionID),
		EventType:             "payment.status_changed",
		NewStatus:             status,
		Message:               strings.TrimSpace(event.ErrorMessage),
	}, nil
}

func (a *CinetPayAdapter) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

func (a *CinetPayAdapter) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
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
		return nil, fmt.Errorf("cinetpay request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func mapCinetPayStatus(raw string) types.TransactionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "WAITING_FOR_CUSTOMER", "PENDING":
		return types.StatusPending
	case "PROCESSING":
		return types.StatusProcessing
	case "ACCEPTED", "SUCCES", "SUCCESS":
		return types.StatusCompleted
	case "REFUSED", "FAILED":
		return types.StatusFailed
	case "CANCELED", "CANCELLED":
		return types.StatusCancelled
	case "EXPIRED":
		return types.StatusExpired
	default:
		return ""
	}
}
