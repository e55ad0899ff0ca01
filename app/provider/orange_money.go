package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
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

// Orange Money eWallet bounds, in XOF minor units.
const (
	orangeMoneyMinAmount int64 = 100
	orangeMoneyMaxAmount int64 = 1_000_000
)

type OrangeMoneyConfig struct {
	APIKey        string
	APISecret     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

// OrangeMoneyAdapter drives the Sonatel eWallet USSD flow: the customer
// confirms the charge by dialing the code returned at initiation.
type OrangeMoneyAdapter struct {
	cfg    OrangeMoneyConfig
	client *http.Client
}

func NewOrangeMoneyAdapter(cfg OrangeMoneyConfig) *OrangeMoneyAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OrangeMoneyAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *OrangeMoneyAdapter) Code() types.Provider {
	return types.ProviderOrangeMoney
}

func (a *OrangeMoneyAdapter) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, orangeMoneyMinAmount, orangeMoneyMaxAmount); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	phone, verr := validateWalletPhone(input.Phone, "77", "78")
	if verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return nil, errors.New("orange money api key is not configured")
	}

	reqBody := map[string]interface{}{
		"amount": map[string]interface{}{
			"value": input.Amount,
			"unit":  strings.ToUpper(input.Currency),
		},
		"customer": map[string]string{
			"idType": "MSISDN",
			"id":     phone,
		},
		"reference":   input.TransactionID,
		"description": input.Description,
		"callbackUrl": input.CallbackURL,
	}

	body, err := a.postJSON(ctx, "/api/eWallet/v1/payments", reqBody)
	if err != nil {
		return nil, newError(FailureProviderError, "orange money initiate failed: %v", err)
	}

	var payload struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		ValidationCode string `json:"validationCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(FailureProviderError, "orange money returned a malformed response")
	}
	if strings.TrimSpace(payload.TransactionID) == "" {
		return nil, newError(FailureProviderError, "orange money response is missing a transaction id")
	}

	providerTxID := strings.TrimSpace(payload.TransactionID)
	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                mapOrangeMoneyStatus(payload.Status),
		Message:               "Dial the USSD code to confirm the payment",
		Payload:               map[string]string{},
	}
	if code := strings.TrimSpace(payload.ValidationCode); code != "" {
		output.Payload[types.PayloadUSSDCode] = fmt.Sprintf("#144#391*%s#", code)
		output.Payload[types.PayloadAuthorizationCode] = code
	}
	if output.Status == "" {
		output.Status = types.StatusPending
	}

	return output, nil
}

func (a *OrangeMoneyAdapter) Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error) {
	if strings.TrimSpace(providerTxID) == "" {
		return "", errors.New("provider transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/api/eWallet/v1/payments/"+url.PathEscape(providerTxID), nil)
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
		return "", fmt.Errorf("orange money verify failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	status := mapOrangeMoneyStatus(payload.Status)
	if status == "" {
		return "", fmt.Errorf("orange money returned unknown status %q", payload.Status)
	}
	return status, nil
}

func (a *OrangeMoneyAdapter) HandleCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if !a.cfg.TestMode {
		if strings.TrimSpace(a.cfg.WebhookSecret) == "" {
			return nil, errors.New("orange money webhook secret is not configured")
		}
		if !verifyHMACHex(payload, signature, a.cfg.WebhookSecret) {
			return nil, ErrSignatureInvalid
		}
	}

	var event struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		EventType     string `json:"eventType"`
		Description   string `json:"description"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("orange money callback payload is malformed: %w", err)
	}

	status := mapOrangeMoneyStatus(event.Status)
	if status == "" {
		return nil, fmt.Errorf("orange money callback carries unknown status %q", event.Status)
	}

	eventType := strings.TrimSpace(event.EventType)
	if eventType == "" {
		eventType = "payment.status_changed"
	}

	return &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.TransactionID),
		EventType:             eventType,
		NewStatus:             status,
		Message:               strings.TrimSpace(event.Description),
	}, nil
}

func (a *OrangeMoneyAdapter) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

func (a *OrangeMoneyAdapter) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
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

func (a *OrangeMoneyAdapter) setAuthHeaders(req *http.Request) {
	req.Header.Set("X-API-Key", a.cfg.APIKey)
	req.Header.Set("X-API-Secret", a.cfg.APISecret)
}

func mapOrangeMoneyStatus(raw string) types.TransactionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "INITIATED", "PENDING":
		return types.StatusPending
	case "PROCESSING":
		return types.StatusProcessing
	case "SUCCESS", "SUCCESSFUL":
		return types.StatusCompleted
	case "FAILED", "REJECTED":
		return types.StatusFailed
	case "CANCELLED":
		return types.StatusCancelled
	case "EXPIRED":
		return types.StatusExpired
	default:
		return ""
	}
}

// verifyHMACHex checks a lowercase hex HMAC-SHA256 of the raw payload, the
// scheme shared by the Orange Money, Free Money, and CinetPay notifications.
func verifyHMACHex(payload []byte, signature, secret string) bool {
	signature = strings.TrimSpace(strings.ToLower(signature))
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, expected)
}
