package service

import (
	"context"
	"errors"
	"testing"

	"github.com/wali-delivery/ms-go-payments/app/entity"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

func webhookRequest(providerCode types.Provider, payload, signature string) *types.ProviderWebhookRequest {
	return &types.ProviderWebhookRequest{
		Provider:  providerCode,
		Signature: signature,
		Payload:   []byte(payload),
	}
}

func TestHandleProviderWebhookApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.InitiatePayment(ctx, initiateRequest("pm-orange", 2500))
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	payload := `{"reference":"` + *tx.ProviderTransactionID + `","status":"COMPLETED"}`
	updated, err := env.svc.HandleProviderWebhook(ctx, webhookRequest(types.ProviderOrangeMoney, payload, "simulated"))
	if err != nil {
		t.Fatalf("HandleProviderWebhook: %v", err)
	}

	if updated.Status != types.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", updated.Status)
	}
	if got := env.auditRepo.byStatus(entity.WebhookAuditProcessed); len(got) != 1 {
		t.Errorf("expected one processed audit row, got %d", len(got))
	}
}

func TestHandleProviderWebhookIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.InitiatePayment(ctx, initiateRequest("pm-orange", 2500))
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	payload := `{"reference":"` + *tx.ProviderTransactionID + `","status":"COMPLETED"}`
	for i := 0; i < 3; i++ {
		if _, err := env.svc.HandleProviderWebhook(ctx, webhookRequest(types.ProviderOrangeMoney, payload, "simulated")); err != nil {
			t.Fatalf("HandleProviderWebhook #%d: %v", i+1, err)
		}
	}

	if got := env.publisher.byKind("payment.completed"); len(got) != 1 {
		t.Errorf("expected exactly one completed event across redeliveries, got %d", len(got))
	}
	if got := env.auditRepo.byStatus(entity.WebhookAuditProcessed); len(got) != 1 {
		t.Errorf("expected one processed audit row, got %d", len(got))
	}
	if got := env.auditRepo.byStatus(entity.WebhookAuditIgnored); len(got) != 2 {
		t.Errorf("expected two ignored audit rows, got %d", len(got))
	}
}

func TestHandleProviderWebhookBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.InitiatePayment(ctx, initiateRequest("pm-orange", 2500))
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	payload := `{"reference":"` + *tx.ProviderTransactionID + `","status":"COMPLETED"}`
	if _, err := env.svc.HandleProviderWebhook(ctx, webhookRequest(types.ProviderOrangeMoney, payload, "forged")); !errors.Is(err, ErrWebhookRejected) {
		t.Fatalf("expected ErrWebhookRejected, got %v", err)
	}

	if got := env.auditRepo.byStatus(entity.WebhookAuditRejected); len(got) != 1 {
		t.Errorf("expected one rejected audit row, got %d", len(got))
	}

	stored, err := env.svc.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if stored.Status != types.StatusPending {
		t.Errorf("a rejected payload must not move the transaction, got %s", stored.Status)
	}
}

func TestHandleProviderWebhookUnknownReference(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"reference":"sim_unknown","status":"COMPLETED"}`
	tx, err := env.svc.HandleProviderWebhook(context.Background(), webhookRequest(types.ProviderOrangeMoney, payload, "simulated"))
	if err != nil {
		t.Fatalf("an authentic push for an unknown reference must be accepted, got %v", err)
	}
	if tx != nil {
		t.Errorf("expected no transaction, got %+v", tx)
	}
	if got := env.auditRepo.byStatus(entity.WebhookAuditIgnored); len(got) != 1 {
		t.Errorf("expected one ignored audit row, got %d", len(got))
	}
}

func TestHandleProviderWebhookMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.HandleProviderWebhook(context.Background(), webhookRequest(types.ProviderOrangeMoney, "{not json", "simulated")); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for a malformed payload, got %v", err)
	}
	if got := env.auditRepo.byStatus(entity.WebhookAuditRejected); len(got) != 1 {
		t.Errorf("expected one rejected audit row, got %d", len(got))
	}
}

func TestHandleProviderWebhookUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	req := webhookRequest(types.Provider("mystery"), `{}`, "simulated")
	if _, err := env.svc.HandleProviderWebhook(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an unknown provider, got %v", err)
	}
}
