package service

import (
	"context"
	"strings"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

// RunReconcileBatch sweeps open transactions the live tracker has not touched
// recently and re-verifies them against the provider. Covers transactions
// whose in-memory tracking was lost to a restart.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	staleBefore := now.Add(-s.reconcileStaleAfter())
	items, err := s.txRepo.ListForReconcile(ctx, staleBefore, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, tx := range items {
		if tx == nil || !tx.Provider.IsPollable() {
			continue
		}
		if tx.ProviderTransactionID == nil || strings.TrimSpace(*tx.ProviderTransactionID) == "" {
			continue
		}

		adapter, err := s.providerReg.Get(tx.Provider)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		liveStatus, err := adapter.Verify(ctx, strings.TrimSpace(*tx.ProviderTransactionID))
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if liveStatus == tx.Status || liveStatus == types.StatusPending {
			continue
		}

		if _, _, err := s.UpdateTransactionStatus(ctx, tx.ID, liveStatus, nil, "payment_reconciled"); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpirePendingBatch forces the expiry outcome on open transactions whose
// deadline has passed. Cash transactions settle out of band and never expire.
func (s *PaymentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.txRepo.ListExpired(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, tx := range items {
		if tx == nil || tx.Provider == types.ProviderCash {
			continue
		}
		if err := s.ExpireTransaction(ctx, tx.ID); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *PaymentService) reconcileStaleAfter() time.Duration {
	if s.paymentsCfg.ReconcileStaleAfter > 0 {
		return s.paymentsCfg.ReconcileStaleAfter
	}
	return 5 * time.Minute
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
