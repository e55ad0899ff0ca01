package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

func TestSimulatedAdapterLifecycle(t *testing.T) {
	adapter := NewSimulatedAdapter(types.ProviderWave)
	ctx := context.Background()

	out, err := adapter.Initiate(ctx, &InitiateInput{
		TransactionID: "tx-1",
		Amount:        1500,
		Currency:      "XOF",
		Phone:         "771234567",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if out.ProviderTransactionID == nil {
		t.Fatal("expected a provider transaction id")
	}
	if out.Payload[types.PayloadPaymentURL] == "" || out.Payload[types.PayloadQRCode] == "" {
		t.Errorf("expected launch url and qr code artifacts, got %v", out.Payload)
	}

	ref := *out.ProviderTransactionID
	if status, err := adapter.Verify(ctx, ref); err != nil || status != types.StatusPending {
		t.Fatalf("Verify = (%s, %v), want PENDING", status, err)
	}

	adapter.SetStatus(ref, types.StatusCompleted)
	if status, _ := adapter.Verify(ctx, ref); status != types.StatusCompleted {
		t.Errorf("expected COMPLETED after SetStatus, got %s", status)
	}
}

func TestSimulatedAdapterDeterministicFailures(t *testing.T) {
	adapter := NewSimulatedAdapter(types.ProviderOrangeMoney)
	ctx := context.Background()

	_, err := adapter.Initiate(ctx, &InitiateInput{
		TransactionID: "tx-1",
		Amount:        1113,
		Currency:      "XOF",
		Phone:         "771234567",
	})
	var perr *Error
	if !errors.As(err, &perr) || perr.Code != FailureProviderError {
		t.Fatalf("expected provider_error for an amount ending in 13, got %v", err)
	}

	out, err := adapter.Initiate(ctx, &InitiateInput{
		TransactionID: "tx-2",
		Amount:        1177,
		Currency:      "XOF",
		Phone:         "771234567",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if status, _ := adapter.Verify(ctx, *out.ProviderTransactionID); status != types.StatusFailed {
		t.Errorf("expected FAILED on first verify for an amount ending in 77, got %s", status)
	}
}

func TestSimulatedAdapterCallback(t *testing.T) {
	adapter := NewSimulatedAdapter(types.ProviderFreeMoney)
	ctx := context.Background()

	out, err := adapter.Initiate(ctx, &InitiateInput{
		TransactionID: "tx-1",
		Amount:        500,
		Currency:      "XOF",
		Phone:         "761234567",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	ref := *out.ProviderTransactionID

	payload := []byte(`{"reference":"` + ref + `","status":"COMPLETED"}`)
	event, err := adapter.HandleCallback(ctx, payload, "simulated")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if event.NewStatus != types.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", event.NewStatus)
	}
	if status, _ := adapter.Verify(ctx, ref); status != types.StatusCompleted {
		t.Errorf("expected the callback to advance the stored status, got %s", status)
	}

	if _, err := adapter.HandleCallback(ctx, payload, "forged"); !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("expected ErrSignatureInvalid for a bad signature, got %v", err)
	}
}

func TestSimulatedAdapterCancel(t *testing.T) {
	adapter := NewSimulatedAdapter(types.ProviderWave)
	ctx := context.Background()

	out, err := adapter.Initiate(ctx, &InitiateInput{
		TransactionID: "tx-1",
		Amount:        1000,
		Currency:      "XOF",
		Phone:         "771234567",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	ref := *out.ProviderTransactionID

	if err := adapter.Cancel(ctx, ref); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if status, _ := adapter.Verify(ctx, ref); status != types.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", status)
	}
	if err := adapter.Cancel(ctx, ref); err == nil {
		t.Error("expected cancelling a terminal charge to fail")
	}
}
