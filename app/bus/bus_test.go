package bus

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/types"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestBusFanOut(t *testing.T) {
	b := New(testLogger(), 4)
	defer b.Close()

	first, unsubFirst := b.Subscribe()
	defer unsubFirst()
	second, unsubSecond := b.Subscribe()
	defer unsubSecond()

	b.Publish(Event{Kind: EventPaymentCompleted, TransactionID: "tx-1"})

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case event := <-ch:
			if event.Kind != EventPaymentCompleted || event.TransactionID != "tx-1" {
				t.Errorf("%s subscriber got unexpected event %+v", name, event)
			}
			if event.OccurredAt.IsZero() {
				t.Errorf("%s subscriber got an event without a timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber never received the event", name)
		}
	}
}

func TestBusPublishNeverBlocks(t *testing.T) {
	b := New(testLogger(), 1)
	defer b.Close()

	ch, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.Publish(Event{Kind: EventPaymentInitiated, TransactionID: "tx-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// The buffered event is still deliverable after the overflow.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected at least one buffered event")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := New(testLogger(), 4)
	defer b.Close()

	ch, unsub := b.Subscribe()
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected the channel to be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Kind: EventPaymentFailed, TransactionID: "tx-1"})
}

func TestBusClose(t *testing.T) {
	b := New(testLogger(), 4)
	ch, _ := b.Subscribe()

	b.Close()
	b.Close() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channels to be closed on bus close")
	}

	b.Publish(Event{Kind: EventPaymentExpired, TransactionID: "tx-1"})

	late, _ := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected a subscription after close to be immediately closed")
	}
}

func TestKindForStatus(t *testing.T) {
	cases := map[types.TransactionStatus]EventKind{
		types.StatusCompleted:  EventPaymentCompleted,
		types.StatusFailed:     EventPaymentFailed,
		types.StatusCancelled:  EventPaymentCancelled,
		types.StatusExpired:    EventPaymentExpired,
		types.StatusProcessing: "",
		types.StatusPending:    "",
	}
	for status, want := range cases {
		if got := KindForStatus(status); got != want {
			t.Errorf("KindForStatus(%s) = %q, want %q", status, got, want)
		}
	}
}
