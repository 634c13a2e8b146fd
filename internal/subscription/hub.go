// Package subscription implements the optional event-subscription
// external interface named in spec.md §6: an in-process publish/
// subscribe broadcaster delivering each event passed to Publish to
// registered subscribers in registration order. The Event Store does not
// publish to a Hub itself; the hosting process calls Publish. It attaches
// no network transport —
// HTTP/REST is explicitly out of scope — so it is a Go-level interface
// only, meant to be called directly by whatever process hosts the core.
package subscription

import (
	"sync"

	"github.com/cmvayette/digitalbackbone-sub002/internal/model"
	"github.com/cmvayette/digitalbackbone-sub002/pkg/logger"
)

// Subscriber receives every published event, in the order Publish is
// called. A Subscriber that errors is logged and skipped for that event;
// it does not block or unregister other subscribers.
type Subscriber interface {
	HandleEvent(event model.Event) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(event model.Event) error

func (f SubscriberFunc) HandleEvent(event model.Event) error { return f(event) }

// registration pairs a subscriber with the id it was registered under,
// so registration order (not map iteration order) drives dispatch order.
type registration struct {
	id         string
	subscriber Subscriber
}

// Hub is the in-process handler registry: register → ordered dispatch →
// unregister, adapted from the teacher's system/events.Dispatcher
// handler-registration pattern, stripped of the worker-pool/queue
// machinery since the core's event submission path is itself synchronous.
type Hub struct {
	mu            sync.RWMutex
	registrations []registration

	delivered int64
	failed    int64

	log *logger.Logger
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{log: logger.NewDefault("subscription")}
}

// Subscribe registers a subscriber under id, replacing any existing
// registration with the same id.
func (h *Hub) Subscribe(id string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.registrations {
		if r.id == id {
			h.registrations[i].subscriber = sub
			return
		}
	}
	h.registrations = append(h.registrations, registration{id: id, subscriber: sub})
}

// Unsubscribe removes the subscriber registered under id, if any.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.registrations {
		if r.id == id {
			h.registrations = append(h.registrations[:i], h.registrations[i+1:]...)
			return
		}
	}
}

// Publish delivers event to every registered subscriber, in registration
// order. A subscriber's error is recorded and logged but does not halt
// delivery to the remaining subscribers.
func (h *Hub) Publish(event model.Event) {
	h.mu.RLock()
	subs := make([]registration, len(h.registrations))
	copy(subs, h.registrations)
	h.mu.RUnlock()

	for _, r := range subs {
		if err := r.subscriber.HandleEvent(event); err != nil {
			h.mu.Lock()
			h.failed++
			h.mu.Unlock()
			h.log.WithField("subscriber_id", r.id).WithField("event_id", event.ID).WithError(err).Error("subscriber failed to handle event")
			continue
		}
		h.mu.Lock()
		h.delivered++
		h.mu.Unlock()
	}
}

// Stats reports lifetime delivery counters, mainly for diagnostics.
type Stats struct {
	SubscriberCount int
	Delivered       int64
	Failed          int64
}

// Stats returns the hub's current subscriber count and lifetime delivery
// counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{SubscriberCount: len(h.registrations), Delivered: h.delivered, Failed: h.failed}
}
