package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mbocsi/lightwaverf/proto"
)

type subscription struct {
	ch    chan proto.Event
	kinds map[proto.EventKind]struct{}
}

func (s *subscription) wants(kind proto.EventKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

type Broker struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]*subscription),
	}
}

// Subscribe registers a buffered channel for the given kinds, or for every
// kind when none are named.
func (b *Broker) Subscribe(buffer int, kinds ...proto.EventKind) (string, <-chan proto.Event) {
	id := uuid.NewString()
	sub := &subscription{
		ch:    make(chan proto.Event, buffer),
		kinds: make(map[proto.EventKind]struct{}, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}

	slog.Debug("Subscribing", "id", id, "kinds", kinds)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = sub
	return id, sub.ch
}

// Publish never blocks; events for a full subscriber are dropped.
func (b *Broker) Publish(ev proto.Event) {
	slog.Debug("Publishing event", "kind", ev.Kind, "room", ev.Room, "device", ev.Device)
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Error("Dropped event (buffer full)", "subscriber", id, "kind", ev.Kind)
		}
	}
}

// Unsubscribe closes the subscriber's channel.
func (b *Broker) Unsubscribe(id string) {
	slog.Debug("Unsubscribing", "id", id)
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		slog.Warn("Did not find subscriber", "id", id)
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Run publishes everything read from src until it closes or ctx ends, then
// closes every remaining subscription.
func (b *Broker) Run(ctx context.Context, src <-chan proto.Event) {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			b.Publish(ev)
		}
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
