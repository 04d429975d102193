package memory

import (
	"context"
	"errors"
	"sync"

	"fleet-tracker/internal/general/contracts"
)

const subscriptionBuffer = 256

var ErrBusClosed = errors.New("bus closed")

// Broker is an in-process stand-in for a pub/sub server. Every gateway in the process gets
// its own Bus from the same Broker, which gives multi-instance fanout without a network.
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	channels map[string]struct{}
	ch       chan contracts.Envelope
	done     chan struct{}
	once     sync.Once
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscription]struct{})}
}

// Bus returns a new client handle on the broker.
func (b *Broker) Bus() *Bus {
	return &Bus{broker: b, subs: make(map[*subscription]struct{})}
}

// publish delivers to every matching subscriber without blocking; a full buffer drops the message.
func (b *Broker) publish(channel string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if _, ok := sub.channels[channel]; !ok {
			continue
		}
		env := contracts.Envelope{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case sub.ch <- env:
		default:
		}
	}
}

func (b *Broker) add(sub *subscription) {
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
}

func (b *Broker) remove(sub *subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.once.Do(func() {
		close(sub.ch)
		close(sub.done)
	})
}

// Bus implements the event bus on top of a Broker.
type Bus struct {
	broker *Broker

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func (bus *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	bus.mu.Lock()
	closed := bus.closed
	bus.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	bus.broker.publish(channel, payload)
	return nil
}

func (bus *Bus) Subscribe(ctx context.Context, channels ...string) (<-chan contracts.Envelope, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.closed {
		return nil, ErrBusClosed
	}

	sub := &subscription{
		channels: make(map[string]struct{}, len(channels)),
		ch:       make(chan contracts.Envelope, subscriptionBuffer),
		done:     make(chan struct{}),
	}
	for _, c := range channels {
		sub.channels[c] = struct{}{}
	}
	bus.subs[sub] = struct{}{}
	bus.broker.add(sub)

	go func() {
		select {
		case <-ctx.Done():
			bus.drop(sub)
		case <-sub.done:
		}
	}()

	return sub.ch, nil
}

func (bus *Bus) drop(sub *subscription) {
	bus.mu.Lock()
	delete(bus.subs, sub)
	bus.mu.Unlock()
	bus.broker.remove(sub)
}

// Close ends every subscription opened through this bus.
func (bus *Bus) Close() error {
	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return nil
	}
	bus.closed = true
	subs := bus.subs
	bus.subs = make(map[*subscription]struct{})
	bus.mu.Unlock()

	for sub := range subs {
		bus.broker.remove(sub)
	}
	return nil
}
