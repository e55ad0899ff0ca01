package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// SimulatedAdapter implements the full adapter contract without any network
// calls. It stands in for a real backend in local environments and tests:
// initiated charges live in an in-memory map and flip status via SetStatus or
// via HandleCallback with a JSON payload.
//
// Deterministic failure hooks, keyed on the amount's last two digits:
//
//	..13  Initiate returns a provider error
//	..77  Initiate succeeds but the charge lands in FAILED on first Verify
type SimulatedAdapter struct {
	code   types.Provider
	bounds struct{ min, max int64 }

	mu       sync.Mutex
	sessions map[string]types.TransactionStatus
}

func NewSimulatedAdapter(code types.Provider) *SimulatedAdapter {
	a := &SimulatedAdapter{
		code:     code,
		sessions: make(map[string]types.TransactionStatus),
	}
	a.bounds.min, a.bounds.max = simulatedBounds(code)
	return a
}

func (a *SimulatedAdapter) Code() types.Provider {
	return a.code
}

func (a *SimulatedAdapter) Initiate(_ context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if verr := validateAmount(input.Amount, a.bounds.min, a.bounds.max); verr != nil {
		return nil, verr
	}
	if verr := validateCurrency(input.Currency); verr != nil {
		return nil, verr
	}
	if a.code == types.ProviderOrangeMoney || a.code == types.ProviderWave || a.code == types.ProviderFreeMoney {
		if _, verr := validateWalletPhone(input.Phone); verr != nil {
			return nil, verr
		}
	}
	if input.Amount%100 == 13 {
		return nil, newError(FailureProviderError, "simulated provider rejected the charge")
	}

	providerTxID := "sim_" + uuid.New().String()
	initial := types.StatusPending
	if input.Amount%100 == 77 {
		initial = types.StatusFailed
	}

	a.mu.Lock()
	a.sessions[providerTxID] = initial
	a.mu.Unlock()

	output := &InitiateOutput{
		ProviderTransactionID: &providerTxID,
		Status:                types.StatusPending,
		Message:               "Simulated charge created",
		Payload:               map[string]string{},
	}
	switch a.code {
	case types.ProviderOrangeMoney:
		output.Payload[types.PayloadUSSDCode] = fmt.Sprintf("#144#391*%06d#", input.Amount%1_000_000)
	case types.ProviderFreeMoney:
		output.Payload[types.PayloadUSSDCode] = fmt.Sprintf("#555*%06d#", input.Amount%1_000_000)
	case types.ProviderWave:
		launchURL := "https://pay.simulated.local/c/" + providerTxID
		output.Payload[types.PayloadPaymentURL] = launchURL
		output.Payload[types.PayloadQRCode] = launchURL
	default:
		output.Payload[types.PayloadPaymentURL] = "https://checkout.simulated.local/" + providerTxID
	}

	return output, nil
}

func (a *SimulatedAdapter) Verify(_ context.Context, providerTxID string) (types.TransactionStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status, ok := a.sessions[providerTxID]
	if !ok {
		return "", fmt.Errorf("simulated provider has no charge %q", providerTxID)
	}
	return status, nil
}

// HandleCallback accepts {"reference": ..., "status": ...} and requires the
// signature to equal "simulated", so tests can exercise the rejection path.
func (a *SimulatedAdapter) HandleCallback(_ context.Context, payload []byte, signature string) (*CallbackEvent, error) {
	if strings.TrimSpace(signature) != "simulated" {
		return nil, ErrSignatureInvalid
	}

	var event struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("simulated callback payload is malformed: %w", err)
	}

	status := types.TransactionStatus(strings.ToUpper(strings.TrimSpace(event.Status)))
	if !status.IsValid() {
		return nil, fmt.Errorf("simulated callback carries unknown status %q", event.Status)
	}

	a.mu.Lock()
	if _, ok := a.sessions[event.Reference]; ok {
		a.sessions[event.Reference] = status
	}
	a.mu.Unlock()

	return &CallbackEvent{
		ProviderTransactionID: strings.TrimSpace(event.Reference),
		EventType:             "simulated.status_changed",
		NewStatus:             status,
		Message:               strings.TrimSpace(event.Message),
	}, nil
}

func (a *SimulatedAdapter) Cancel(_ context.Context, providerTxID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	status, ok := a.sessions[providerTxID]
	if !ok {
		return fmt.Errorf("simulated provider has no charge %q", providerTxID)
	}
	if status.IsTerminal() {
		return fmt.Errorf("simulated charge %q is already %s", providerTxID, status)
	}
	a.sessions[providerTxID] = types.StatusCancelled
	return nil
}

// SetStatus forces a charge into a given status, for driving test scenarios.
func (a *SimulatedAdapter) SetStatus(providerTxID string, status types.TransactionStatus) {
	a.mu.Lock()
	a.sessions[providerTxID] = status
	a.mu.Unlock()
}

func simulatedBounds(code types.Provider) (int64, int64) {
	switch code {
	case types.ProviderOrangeMoney:
		return orangeMoneyMinAmount, orangeMoneyMaxAmount
	case types.ProviderWave:
		return waveMinAmount, waveMaxAmount
	case types.ProviderFreeMoney:
		return freeMoneyMinAmount, freeMoneyMaxAmount
	case types.ProviderPayDunya:
		return payDunyaMinAmount, payDunyaMaxAmount
	case types.ProviderCinetPay:
		return cinetPayMinAmount, cinetPayMaxAmount
	default:
		return 1, 10_000_000
	}
}
