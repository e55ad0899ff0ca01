package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/entity"
)

// Service is the orchestrator surface the reconciler drives. Both calls fold
// through the orchestrator's status choke point, so a poll that loses to a
// webhook is a harmless no-op.
type Service interface {
	CheckStatus(ctx context.Context, transactionID string) (*entity.Transaction, error)
	ExpireTransaction(ctx context.Context, transactionID string) error
}

type entry struct {
	id         string
	nextPollAt time.Time
	expiresAt  time.Time
}

// Reconciler owns the set of open transactions being polled. One scheduler
// goroutine scans the set on a ticker and dispatches due IDs to a fixed pool
// of workers; no per-transaction timers exist anywhere.
type Reconciler struct {
	logger       *logrus.Entry
	svc          Service
	pollInterval time.Duration
	workers      int

	mu      sync.Mutex
	tracked map[string]*entry

	jobs chan string
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func New(logger *logrus.Entry, svc Service, pollInterval time.Duration, workers int) *Reconciler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Reconciler{
		logger:       logger,
		svc:          svc,
		pollInterval: pollInterval,
		workers:      workers,
		tracked:      map[string]*entry{},
		jobs:         make(chan string, workers*4),
		stop:         make(chan struct{}),
	}
}

// Track registers an open transaction for polling until its deadline.
// Re-tracking an ID only refreshes its deadline.
func (r *Reconciler) Track(transactionID string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tracked[transactionID]; ok {
		existing.expiresAt = expiresAt
		return
	}
	r.tracked[transactionID] = &entry{
		id:         transactionID,
		nextPollAt: time.Now().Add(r.pollInterval),
		expiresAt:  expiresAt,
	}
}

func (r *Reconciler) Untrack(transactionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracked, transactionID)
}

// TrackedCount reports how many transactions are currently polled.
func (r *Reconciler) TrackedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracked)
}

// Start launches the scheduler and the worker pool. Stop shuts them down.
func (r *Reconciler) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}

	r.wg.Add(1)
	go r.schedule(ctx)
}

func (r *Reconciler) Stop() {
	r.once.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}

func (r *Reconciler) schedule(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.jobs)

	// The tick is finer than the poll interval so deadlines are not missed
	// by a whole interval.
	tick := r.pollInterval / 4
	if tick < 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case now := <-ticker.C:
			for _, id := range r.due(now) {
				select {
				case r.jobs <- id:
				case <-ctx.Done():
					return
				case <-r.stop:
					return
				}
			}
		}
	}
}

// due collects the IDs whose poll time has arrived and pushes their next poll
// forward so an in-flight check is not dispatched twice.
func (r *Reconciler) due(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0)
	for _, item := range r.tracked {
		if item.nextPollAt.After(now) && item.expiresAt.After(now) {
			continue
		}
		item.nextPollAt = now.Add(r.pollInterval)
		ids = append(ids, item.id)
	}
	return ids
}

func (r *Reconciler) worker(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case id, ok := <-r.jobs:
			if !ok {
				return
			}
			r.process(ctx, id)
		}
	}
}

func (r *Reconciler) process(ctx context.Context, id string) {
	r.mu.Lock()
	item, ok := r.tracked[id]
	var expired bool
	if ok {
		expired = !item.expiresAt.After(time.Now())
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	if expired {
		if err := r.svc.ExpireTransaction(ctx, id); err != nil {
			r.logger.WithField("transaction_id", id).WithError(err).Warn("failed to expire transaction")
			return
		}
		// The orchestrator untracks on the terminal transition; this is the
		// fallback should that path have been skipped.
		r.Untrack(id)
		return
	}

	if _, err := r.svc.CheckStatus(ctx, id); err != nil {
		r.logger.WithField("transaction_id", id).WithError(err).Warn("status poll failed")
	}
}
