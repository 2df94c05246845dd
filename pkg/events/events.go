package events

import (
	"sync"
	"time"

	"github.com/cuemby/failwatch/pkg/log"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// EventFailedHostsUpdated fires after every persisted ledger mutation
	EventFailedHostsUpdated EventType = "failed_hosts_updated"
)

// Event is a change notification. It carries no ledger payload; receivers re-query.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Listener is a callback invoked for every event
type Listener func(*Event)

// Broker fans events out to subscribers and listeners, best-effort
type Broker struct {
	subscribers map[Subscriber]bool
	listeners   []Listener
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Listen registers a callback. A panicking listener is recovered and does
// not prevent delivery to the others.
func (b *Broker) Listen(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Publish queues an event for delivery. It never blocks: when the queue is
// full or the broker is stopped the event is dropped.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.eventCh <- event:
	default:
		log.Logger.Warn().
			Str("component", "events").
			Str("type", string(event.Type)).
			Msg("event queue full, dropping notification")
	}
}

// Notify publishes a failed_hosts_updated event
func (b *Broker) Notify() {
	b.Publish(&Event{Type: EventFailedHostsUpdated})
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}

	for _, fn := range b.listeners {
		b.invoke(fn, event)
	}
}

func (b *Broker) invoke(fn Listener, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Error().
				Str("component", "events").
				Interface("panic", r).
				Msg("listener panicked")
		}
	}()
	fn(event)
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
