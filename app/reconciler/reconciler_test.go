package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/entity"
)

type fakeService struct {
	mu      sync.Mutex
	checked map[string]int
	expired map[string]int

	reconciler *Reconciler
	terminalOn map[string]bool
}

func newFakeService() *fakeService {
	return &fakeService{
		checked:    map[string]int{},
		expired:    map[string]int{},
		terminalOn: map[string]bool{},
	}
}

func (s *fakeService) CheckStatus(_ context.Context, id string) (*entity.Transaction, error) {
	s.mu.Lock()
	s.checked[id]++
	terminal := s.terminalOn[id]
	s.mu.Unlock()

	// The real orchestrator untracks when a poll lands on a terminal status.
	if terminal && s.reconciler != nil {
		s.reconciler.Untrack(id)
	}
	return &entity.Transaction{ID: id}, nil
}

func (s *fakeService) ExpireTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	s.expired[id]++
	s.mu.Unlock()
	return nil
}

func (s *fakeService) checkedCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[id]
}

func (s *fakeService) expiredCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired[id]
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestReconcilerPollsTrackedTransactions(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, 200*time.Millisecond, 2)
	svc.reconciler = r

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	r.Track("tx-1", time.Now().Add(time.Hour))

	waitFor(t, 3*time.Second, func() bool { return svc.checkedCount("tx-1") >= 2 })
	if svc.expiredCount("tx-1") != 0 {
		t.Errorf("expected no expiry before the deadline, got %d", svc.expiredCount("tx-1"))
	}
}

func TestReconcilerExpiresAtDeadline(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, 200*time.Millisecond, 2)
	svc.reconciler = r

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	r.Track("tx-1", time.Now().Add(150*time.Millisecond))

	waitFor(t, 3*time.Second, func() bool { return svc.expiredCount("tx-1") == 1 })
	waitFor(t, time.Second, func() bool { return r.TrackedCount() == 0 })

	// Once untracked the transaction is never touched again.
	expiredBefore := svc.expiredCount("tx-1")
	time.Sleep(500 * time.Millisecond)
	if got := svc.expiredCount("tx-1"); got != expiredBefore {
		t.Errorf("expected no further expiry calls, got %d", got)
	}
}

func TestReconcilerUntrackStopsPolling(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, 100*time.Millisecond, 2)
	svc.reconciler = r

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	r.Track("tx-1", time.Now().Add(time.Hour))
	waitFor(t, 3*time.Second, func() bool { return svc.checkedCount("tx-1") >= 1 })

	r.Untrack("tx-1")
	checkedBefore := svc.checkedCount("tx-1")
	time.Sleep(400 * time.Millisecond)
	// One in-flight poll may still land; the count must settle.
	if got := svc.checkedCount("tx-1"); got > checkedBefore+1 {
		t.Errorf("polling continued after untrack: %d -> %d", checkedBefore, got)
	}
}

func TestReconcilerTerminalPollUntracks(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, 100*time.Millisecond, 2)
	svc.reconciler = r
	svc.terminalOn["tx-1"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	r.Track("tx-1", time.Now().Add(time.Hour))
	waitFor(t, 3*time.Second, func() bool { return r.TrackedCount() == 0 })
}

func TestReconcilerStopIsClean(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, 100*time.Millisecond, 4)
	svc.reconciler = r

	r.Start(context.Background())
	r.Track("tx-1", time.Now().Add(time.Hour))

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestTrackRefreshesDeadlineOnly(t *testing.T) {
	svc := newFakeService()
	r := New(testLogger(), svc, time.Hour, 1)

	r.Track("tx-1", time.Now().Add(time.Hour))
	r.Track("tx-1", time.Now().Add(2*time.Hour))
	if r.TrackedCount() != 1 {
		t.Errorf("expected one tracked entry, got %d", r.TrackedCount())
	}
}
