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
	"strconv"
	"strings"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

const (
	waveMinAmount int64 = 100
	waveMaxAmount int64 = 500_000

	// Wave timestamps its signatures; pushes older than this are replays.
	waveSignatureTolerance = 300 * time.Second
)

type WaveConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

// WaveAdapter drives the hosted checkout-session flow: the customer is handed
// a launch URL (also rendered as a QR code) and confirms in the Wave app.
type WaveAdapter struct {
	cfg    WaveConfig
	client *http.Client
}

func NewWaveAdapter(cfg WaveConfig) *WaveAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WaveAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *WaveAdapter) Code() types.Provider {
	return types.ProviderWave
}

func (a *WaveAdapter) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, waveMinAmount, waveMaxAmount); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	phone, verr := validateWalletPhone(input.Phone)
	if verr != nil {
		return nil, verr
	}
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return nil, errors.New("wave api key is not configured")
	}

	reqBody := map[string]interface{}{
		"amount":             strconv.FormatInt(input.Amount, 10),
		"currency":           strings.ToUpper(input.Currency),
		"client_reference":   input.TransactionID,
		"restrict_payer_mobile": "+221" + phone,
		"success_url":        input.ReturnURL,
		"error_url":          input.ReturnURL,
	}

	body, err := a.doJSON(ctx, http.MethodPost, "/v1/checkout/sessions", reqBody)
	if err != nil {
		return nil, newError(FailureProviderError, "wave initiate failed: %v", err)
	}

	var payload struct {
		ID            string `json:"id"`
		LaunchURL     string `json:"wave_launch_url"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, newError(FailureProviderError, "wave returned a malformed response")
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, newError(FailureProviderError, "wave response is missing a session id")
	}

	providerTxID := strings.TrimSpace(payload.ID)
	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                mapWaveStatus(payload.PaymentStatus),
		Message:               "Open the Wave link or scan the QR code to confirm the payment",
		Payload:               map[string]string{},
	}
	if launchURL := strings.TrimSpace(payload.LaunchURL); launchURL != "" {
		output.Payload[types.PayloadPaymentURL] = launchURL
		output.Payload[types.PayloadQRCode] = launchURL
	}
	if output.Status == "" {
		output.Status = types.StatusPending
	}

	return output, nil
}

func (a *WaveAdapter) Verify(ctx context.Context, providerTxID string) (types.TransactionStatus, error) {
	if strings.TrimSpace(providerTxID) == "" {
		return "", errors.New("provider transaction id is required")
	}

	body, err := a.doJSON(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(providerTxID), nil)
	if err != nil {
		return "", err
	}

	var payload struct {
		PaymentStatus string `json:"payment_status"`
		CheckoutStatus string `json:"checkout_status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}

	if strings.EqualFold(payload.CheckoutStatus, "expired") {
		return types.StatusExpired, nil
	}
	status := mapWaveStatus(payload.PaymentStatus)
	if status == "" {
		return "", fmt.Errorf("wave returned unknown payment status %q", payload.PaymentStatus)
	}
	return status, nil
}

func (a *WaveAdapter) HandleCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if !a.cfg.TestMode {
		if strings.TrimSpace(a.cfg.WebhookSecret) == "" {
			return nil, errors.New("wave webhook secret is not configured")
		}
		if !verifyWaveSignature(payload, signature, a.cfg.WebhookSecret, waveSignatureTolerance) {
			return nil, ErrSignatureInvalid
		}
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
			LastPaymentError struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("wave callback payload is malformed: %w", err)
	}

	result := &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.Data.ID),
		EventType:             strings.TrimSpace(event.Type),
		Message:               strings.TrimSpace(event.Data.LastPaymentError.Message),
	}

	switch event.Type {
	case "checkout.session.completed":
		result.NewStatus = types.StatusCompleted
	case "checkout.session.payment_failed":
		result.NewStatus = types.StatusFailed
	case "checkout.session.expired":
		result.NewStatus = types.StatusExpired
	default:
		if result.NewStatus = mapWaveStatus(event.Data.PaymentStatus); result.NewStatus == "" {
			return nil, fmt.Errorf("wave callback carries unknown event type %q", event.Type)
		}
	}

	return result, nil
}

// Cancel expires the checkout session so the customer can no longer pay it.
func (a *WaveAdapter) Cancel(ctx context.Context, providerTxID string) error {
	if strings.TrimSpace(providerTxID) == "" {
		return errors.New("provider transaction id is required")
	}
	_, err := a.doJSON(ctx, http.MethodPost, "/v1/checkout/sessions/"+url.PathEscape(providerTxID)+"/expire", nil)
	return err
}

func (a *WaveAdapter) doJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.cfg.BaseURL, "/")+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
		return nil, fmt.Errorf("wave request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func mapWaveStatus(raw string) types.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return types.StatusPending
	case "processing":
		return types.StatusProcessing
	case "succeeded":
		return types.StatusCompleted
	case "failed":
		return types.StatusFailed
	case "cancelled":
		return types.StatusCancelled
	case "expired":
		return types.StatusExpired
	default:
		return ""
	}
}

// verifyWaveSignature checks the "t=<unix>,v1=<hex>" header scheme: an
// HMAC-SHA256 over "<timestamp>.<payload>" with a replay-protection window.
func verifyWaveSignature(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration) bool {
	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" || strings.TrimSpace(webhookSecret) == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "t=") {
			ts = strings.TrimSpace(strings.TrimPrefix(part, "t="))
		}
		if strings.HasPrefix(part, "v1=") {
			v1 = append(v1, strings.TrimSpace(strings.TrimPrefix(part, "v1=")))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	now := time.Now().Unix()
	toleranceSeconds := int64(tolerance / time.Second)
	if now-tsUnix > toleranceSeconds || tsUnix-now > toleranceSeconds {
		return false
	}

	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}
	return false
}
