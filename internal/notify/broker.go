package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 32

// Subscription receives events for one user and, optionally, one family
type Subscription struct {
	C <-chan Event

	ch       chan Event
	userID   string
	familyID string
	broker   *Broker
	once     sync.Once
}

// Close detaches the subscription and closes C
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

func (s *Subscription) wants(e Event) bool {
	if s.userID != "" && e.UserID == s.userID {
		return true
	}
	return s.familyID != "" && e.FamilyID == s.familyID
}

// Broker fans events out to in-process subscribers such as SSE streams.
// Slow subscribers lose events instead of blocking publishers.
type Broker struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Int64
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in events about userID or familyID.
// Either may be empty.
func (b *Broker) Subscribe(userID, familyID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, familyID: familyID, broker: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Notify delivers the event to every matching subscriber without blocking
func (b *Broker) Notify(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}
