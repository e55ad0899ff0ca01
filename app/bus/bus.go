package bus

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

type EventKind string

const (
	EventPaymentInitiated EventKind = "payment.initiated"
	EventPaymentCompleted EventKind = "payment.completed"
	EventPaymentFailed    EventKind = "payment.failed"
	EventPaymentCancelled EventKind = "payment.cancelled"
	EventPaymentExpired   EventKind = "payment.expired"
)

// Event is the notification payload published on every transaction lifecycle
// change. It carries display-ready fields so consumers never need a second
// lookup.
type Event struct {
	Kind          EventKind
	TransactionID string
	OrderRef      string
	UserID        string
	Provider      string
	Amount        int64
	Currency      string
	Message       string
	OccurredAt    time.Time
}

// KindForStatus maps a transaction status to the event kind announcing it.
// Returns "" for statuses that carry no notification (PROCESSING).
func KindForStatus(status types.TransactionStatus) EventKind {
	switch status {
	case types.StatusCompleted:
		return EventPaymentCompleted
	case types.StatusFailed:
		return EventPaymentFailed
	case types.StatusCancelled:
		return EventPaymentCancelled
	case types.StatusExpired:
		return EventPaymentExpired
	default:
		return ""
	}
}

// Bus is an in-process fan-out of lifecycle events. Publishing never blocks:
// a subscriber that cannot keep up loses events and the drop is logged, the
// payment path is never held up by a slow consumer.
type Bus struct {
	logger *logrus.Entry
	buffer int

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func New(logger *logrus.Entry, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		logger: logger,
		buffer: buffer,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a consumer and returns its channel plus an unsubscribe
// function. The channel is closed on unsubscribe and on bus Close.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

func (b *Bus) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, sub := range b.subs {
		select {
		case sub <- event:
		default:
			if b.logger != nil {
				b.logger.WithFields(logrus.Fields{
					"subscriber_id":  id,
					"event_kind":     string(event.Kind),
					"transaction_id": event.TransactionID,
				}).Warn("event bus subscriber is full, dropping event")
			}
		}
	}
}

// Close shuts the bus down; all subscriber channels are closed and further
// publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}
