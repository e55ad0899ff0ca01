package provider

import (
	"bytes"
	"context"
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
	freeMoneyMinAmount int64 = 100
	freeMoneyMaxAmount int64 = 300_000
)

type FreeMoneyConfig struct {
	APIKey        string
	APISecret     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

// FreeMoneyAdapter drives the Free Money cash-in flow over USSD, same model
// as Orange Money but on the Free network (76 numbers).
type FreeMoneyAdapter struct {
	cfg    FreeMoneyConfig
	client *http.Client
}

func NewFreeMoneyAdapter(cfg FreeMoneyConfig) *FreeMoneyAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FreeMoneyAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *FreeMoneyAdapter) Code() types.Provider {
	return types.ProviderFreeMoney
}

func (a *FreeMoneyAdapter) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, freeMoneyMinAmount, freeMoneyMaxAmount); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	phone, verr := validateWalletPhone(input.Phone, "76")
	if verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return nil, errors.New("free money api key is not configured")
	}

	reqBody := map[string]interface{}{
		"amount":       input.Amount,
		"currency":     strings.ToUpper(input.Currency),
		"msisdn":       phone,
		"external_ref": input.TransactionID,
		"description":  input.Description,
		"notify_url":   input.CallbackURL,
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/api/v1/cashin", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.cfg.APIKey)
	req.Header.Set("X-API-Secret", a.cfg.APISecret)

	body, err := a.do(req)
	if err != nil {
		return nil, newError(FailureProviderError, "free money initiate failed: %v", err)
	}

	var payload struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		USSD      string `json:"ussd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(FailureProviderError, "free money returned a malformed response")
	}
	if strings.TrimSpace(payload.Reference) == "" {
		return nil, newError(FailureProviderError, "free money response is missing a reference")
	}

	providerTxID := strings.TrimSpace(payload.Reference)
	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                mapFreeMoneyStatus(payload.Status),
		Message:               "Dial the USSD code to confirm the payment",
		Payload:               map[string]string{},
	}
	if ussd := strings.TrimSpace(payload.USSD); ussd != "" {
		output.Payload[types.PayloadUSSDCode] = ussd
	}
	if output.Status == "" {
		output.Status = types.StatusPending
	}

	return output, nil
}

func (a *FreeMoneyAdapter) Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error) {
	if strings.TrimSpace(providerTxID) == "" {
		return "", errors.New("provider transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(a.cfg.BaseURL, "/")+"/api/v1/transactions/"+url.PathEscape(providerTxID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", a.cfg.APIKey)
	req.Header.Set("X-API-Secret", a.cfg.APISecret)

	body, err := a.do(req)
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	status := mapFreeMoneyStatus(payload.Status)
	if status == "" {
		return "", fmt.Errorf("free money returned unknown status %q", payload.Status)
	}
	return status, nil
}

func (a *FreeMoneyAdapter) HandleCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if !a.cfg.TestMode {
		if strings.TrimSpace(a.cfg.WebhookSecret) == "" {
			return nil, errors.New("free money webhook secret is not configured")
		}
		if !verifyHMACHex(payload, signature, a.cfg.WebhookSecret) {
			return nil, ErrSignatureInvalid
		}
	}

	var event struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("free money callback payload is malformed: %w", err)
	}

	status := mapFreeMoneyStatus(event.Status)
	if status == "" {
		return nil, fmt.Errorf("free money callback carries unknown status %q", event.Status)
	}

	return &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.Reference),
		EventType:             "cashin.status_changed",
		NewStatus:             status,
		Message:               strings.TrimSpace(event.Message),
	}, nil
}

func (a *FreeMoneyAdapter) Cancel(context.Context, string) error {
	return ErrCancelUnsupported
}

func (a *FreeMoneyAdapter) do(req *http.Request) ([]byte, error) {
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

func mapFreeMoneyStatus(raw string) types.TransactionStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CREATED", "PENDING":
		return types.StatusPending
	case "PROCESSING":
		return types.StatusProcessing
	case "SUCCESS", "COMPLETED":
		return types.StatusCompleted
	case "FAILED":
		return types.StatusFailed
	case "CANCELLED":
		return types.StatusCancelled
	case "EXPIRED", "TIMEOUT":
		return types.StatusExpired
	default:
		return ""
	}
}
