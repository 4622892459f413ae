package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/maghand/pkg"
)

// Message is one item received from a subscription. A message with
// Lagged > 0 carries no value; it reports how many messages were dropped
// from this subscriber's queue since the last delivered one.
type Message[T any] struct {
	Value  T
	Lagged uint64
}

// IsLag reports whether m is a lag notice.
func (m Message[T]) IsLag() bool {
	return m.Lagged > 0
}

// Stats holds bus counters.
type Stats struct {
	Published uint64 // TryPublish calls
	Dropped   uint64 // per-subscriber copies dropped on a full queue
}

// Bus is a bounded broadcast channel. Every subscriber owns a fixed ring
// of the bus capacity; publishing never blocks and a full ring drops the
// newest message for that subscriber only.
type Bus[T any] struct {
	capacity       int
	maxSubscribers int
	maxPublishers  int

	mutex      sync.RWMutex
	subs       []*Subscriber[T]
	publishers int
	nextID     int

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a bus whose subscriber queues hold capacity messages, with
// room for the given number of subscribers and publishers.
func New[T any](capacity, subscribers, publishers int) *Bus[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus[T]{
		capacity:       capacity,
		maxSubscribers: subscribers,
		maxPublishers:  publishers,
		subs:           make([]*Subscriber[T], 0, subscribers),
	}
}

// Capacity returns the per-subscriber queue capacity.
func (b *Bus[T]) Capacity() int {
	return b.capacity
}

// Stats returns a snapshot of the bus counters.
func (b *Bus[T]) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Publisher claims a publisher slot.
func (b *Bus[T]) Publisher() (*Publisher[T], error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.publishers >= b.maxPublishers {
		return nil, fmt.Errorf("%w: limit %d", pkg.ErrTooManyPublishers, b.maxPublishers)
	}
	b.publishers++
	return &Publisher[T]{bus: b}, nil
}

// Subscribe claims a subscriber slot. The subscriber receives every
// message published after it subscribed.
func (b *Bus[T]) Subscribe() (*Subscriber[T], error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.subs) >= b.maxSubscribers {
		return nil, fmt.Errorf("%w: limit %d", pkg.ErrTooManySubscribers, b.maxSubscribers)
	}
	s := &Subscriber[T]{
		bus:    b,
		id:     b.nextID,
		ring:   make([]entry[T], b.capacity),
		notify: make(chan struct{}, 1),
	}
	b.nextID++
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *Bus[T]) unsubscribe(s *Subscriber[T]) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus[T]) releasePublisher() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.publishers > 0 {
		b.publishers--
	}
}

// Publisher publishes messages onto a bus.
type Publisher[T any] struct {
	bus    *Bus[T]
	closed atomic.Bool
}

// TryPublish offers v to every subscriber without blocking. It returns an
// error wrapping ErrBusFull if any subscriber's queue was full; the message
// was still delivered to the others.
func (p *Publisher[T]) TryPublish(v T) error {
	if p.closed.Load() {
		return pkg.ErrInvalidState
	}
	b := p.bus
	b.published.Add(1)

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	full := 0
	for _, s := range b.subs {
		if !s.push(v) {
			full++
			pkg.LogDebug(pkg.ComponentBus, "subscriber queue full", "subscriber", s.id)
		}
	}
	if full > 0 {
		b.dropped.Add(uint64(full))
		return fmt.Errorf("%w: %d of %d subscribers", pkg.ErrBusFull, full, len(b.subs))
	}
	return nil
}

// Close releases the publisher slot.
func (p *Publisher[T]) Close() {
	if p.closed.CompareAndSwap(false, true) {
		p.bus.releasePublisher()
	}
}

type entry[T any] struct {
	value     T
	lagBefore uint64
}

// Subscriber receives messages from a bus in publish order.
type Subscriber[T any] struct {
	bus *Bus[T]
	id  int

	mutex  sync.Mutex
	ring   []entry[T]
	head   int
	count  int
	missed uint64 // dropped since the last enqueued entry

	lagged atomic.Uint64
	notify chan struct{}
}

func (s *Subscriber[T]) push(v T) bool {
	s.mutex.Lock()
	if s.count == len(s.ring) {
		s.missed++
		s.mutex.Unlock()
		return false
	}
	s.ring[(s.head+s.count)%len(s.ring)] = entry[T]{value: v, lagBefore: s.missed}
	s.missed = 0
	s.count++
	s.mutex.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// TryReceive returns the next message if one is ready.
// A run of dropped messages is reported as a single lag notice, delivered
// in order before the first message that was queued after the drops.
func (s *Subscriber[T]) TryReceive() (Message[T], bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.count > 0 {
		e := &s.ring[s.head]
		if e.lagBefore > 0 {
			n := e.lagBefore
			e.lagBefore = 0
			s.lagged.Add(n)
			return Message[T]{Lagged: n}, true
		}
		m := Message[T]{Value: e.value}
		var zero T
		e.value = zero
		s.head = (s.head + 1) % len(s.ring)
		s.count--
		return m, true
	}
	if s.missed > 0 {
		n := s.missed
		s.missed = 0
		s.lagged.Add(n)
		return Message[T]{Lagged: n}, true
	}
	return Message[T]{}, false
}

// Receive waits for the next message or ctx cancellation.
func (s *Subscriber[T]) Receive(ctx context.Context) (Message[T], error) {
	for {
		if m, ok := s.TryReceive(); ok {
			return m, nil
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return Message[T]{}, ctx.Err()
		}
	}
}

// Len returns the number of queued messages.
func (s *Subscriber[T]) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.count
}

// Lagged returns the total number of messages this subscriber has missed.
func (s *Subscriber[T]) Lagged() uint64 {
	return s.lagged.Load()
}

// Close removes the subscriber from the bus.
func (s *Subscriber[T]) Close() {
	s.bus.unsubscribe(s)
}
