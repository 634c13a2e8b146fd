package subscription

import (
	"errors"
	"testing"
	"time"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
)

func sampleEvent(id string) model.Event {
	return model.Event{ID: id, Type: model.EventPersonOnboarded, OccurredAt: time.Now().UTC(), RecordedAt: time.Now().UTC()}
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	h := New()
	var order []string
	h.Subscribe("first", SubscriberFunc(func(e model.Event) error {
		order = append(order, "first")
		return nil
	}))
	h.Subscribe("second", SubscriberFunc(func(e model.Event) error {
		order = append(order, "second")
		return nil
	}))

	h.Publish(sampleEvent("evt_1"))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected delivery in registration order, got %v", order)
	}
}

func TestPublishContinuesAfterSubscriberError(t *testing.T) {
	h := New()
	var secondCalled bool
	h.Subscribe("broken", SubscriberFunc(func(e model.Event) error { return errors.New("boom") }))
	h.Subscribe("ok", SubscriberFunc(func(e model.Event) error { secondCalled = true; return nil }))

	h.Publish(sampleEvent("evt_1"))

	if !secondCalled {
		t.Fatal("expected delivery to continue past a failing subscriber")
	}
	stats := h.Stats()
	if stats.Failed != 1 || stats.Delivered != 1 {
		t.Errorf("expected 1 failed and 1 delivered, got %+v", stats)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New()
	var calls int
	h.Subscribe("sub", SubscriberFunc(func(e model.Event) error { calls++; return nil }))
	h.Unsubscribe("sub")

	h.Publish(sampleEvent("evt_1"))

	if calls != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", calls)
	}
	if h.Stats().SubscriberCount != 0 {
		t.Errorf("expected subscriber count 0, got %d", h.Stats().SubscriberCount)
	}
}

func TestSubscribeReplacesExistingID(t *testing.T) {
	h := New()
	h.Subscribe("sub", SubscriberFunc(func(e model.Event) error { return errors.New("old") }))
	h.Subscribe("sub", SubscriberFunc(func(e model.Event) error { return nil }))

	h.Publish(sampleEvent("evt_1"))

	if h.Stats().SubscriberCount != 1 {
		t.Fatalf("expected replacement, not a second registration, got count %d", h.Stats().SubscriberCount)
	}
	if h.Stats().Failed != 0 {
		t.Error("expected the replaced subscriber's error not to fire")
	}
}
