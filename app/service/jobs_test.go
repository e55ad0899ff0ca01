package service

import (
	"context"
	"testing"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/bus"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

func TestRunExpirePendingBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.InitiatePayment(ctx, initiateRequest("pm-orange", 2500))
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	cashReq := initiateRequest("pm-cash", 4500)
	cashReq.OrderID = "order-cash"
	cashTx, err := env.svc.InitiatePayment(ctx, cashReq)
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	// Push both past their deadline.
	env.txRepo.mu.Lock()
	for _, item := range env.txRepo.transactions {
		item.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	}
	env.txRepo.mu.Unlock()

	if err := env.svc.RunExpirePendingBatch(ctx); err != nil {
		t.Fatalf("RunExpirePendingBatch: %v", err)
	}

	expired, _ := env.svc.GetTransaction(ctx, tx.ID)
	if expired.Status != types.StatusExpired {
		t.Errorf("expected the wallet transaction to expire, got %s", expired.Status)
	}

	cash, _ := env.svc.GetTransaction(ctx, cashTx.ID)
	if cash.Status != types.StatusPending {
		t.Errorf("cash must never expire, got %s", cash.Status)
	}

	if got := env.publisher.byKind(bus.EventPaymentExpired); len(got) != 1 {
		t.Errorf("expected one expired event, got %d", len(got))
	}
}

func TestRunReconcileBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tx, err := env.svc.InitiatePayment(ctx, initiateRequest("pm-orange", 2500))
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}

	env.adapters[types.ProviderOrangeMoney].SetStatus(*tx.ProviderTransactionID, types.StatusCompleted)

	// Age the row so the stale filter picks it up.
	env.txRepo.mu.Lock()
	env.txRepo.transactions[tx.ID].UpdatedAt = time.Now().UTC().Add(-time.Hour)
	env.txRepo.mu.Unlock()

	if err := env.svc.RunReconcileBatch(ctx); err != nil {
		t.Fatalf("RunReconcileBatch: %v", err)
	}

	reconciled, _ := env.svc.GetTransaction(ctx, tx.ID)
	if reconciled.Status != types.StatusCompleted {
		t.Errorf("expected COMPLETED after reconciliation, got %s", reconciled.Status)
	}
	if got := env.publisher.byKind(bus.EventPaymentCompleted); len(got) != 1 {
		t.Errorf("expected one completed event, got %d", len(got))
	}

	// A second sweep changes nothing.
	env.txRepo.mu.Lock()
	env.txRepo.transactions[tx.ID].UpdatedAt = time.Now().UTC().Add(-time.Hour)
	env.txRepo.mu.Unlock()
	if err := env.svc.RunReconcileBatch(ctx); err != nil {
		t.Fatalf("RunReconcileBatch: %v", err)
	}
	if got := env.publisher.byKind(bus.EventPaymentCompleted); len(got) != 1 {
		t.Errorf("expected the completed event to stay at one, got %d", len(got))
	}
}
