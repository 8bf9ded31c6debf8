package auth

import (
	"context"
	"sync"
	"time"
)

// EventType names a change in a user's session state.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// SessionEvent is published whenever a user signs in or out.
type SessionEvent struct {
	Type   EventType `json:"type"`
	UserID uint      `json:"user_id"`
	At     time.Time `json:"at"`
}

// Broker fans session events out to subscribers. Subscriptions end when ctx
// is done or the returned cancel func is called; the channel is then closed.
type Broker interface {
	Publish(ctx context.Context, ev SessionEvent) error
	Subscribe(ctx context.Context, userID uint) (<-chan SessionEvent, func())
	SubscribeAll(ctx context.Context) (<-chan SessionEvent, func())
}

const subscriberBuffer = 16

// MemoryBroker delivers events within one process. Slow subscribers miss
// events rather than block publishers.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	userID uint // 0 receives every user's events
	ch     chan SessionEvent
	once   sync.Once
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[*memorySub]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, ev SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if s.userID != 0 && s.userID != ev.UserID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, userID uint) (<-chan SessionEvent, func()) {
	return b.subscribe(ctx, userID)
}

func (b *MemoryBroker) SubscribeAll(ctx context.Context) (<-chan SessionEvent, func()) {
	return b.subscribe(ctx, 0)
}

func (b *MemoryBroker) subscribe(ctx context.Context, userID uint) (<-chan SessionEvent, func()) {
	s := &memorySub{userID: userID, ch: make(chan SessionEvent, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return s.ch, cancel
}
