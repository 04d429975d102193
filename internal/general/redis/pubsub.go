package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"fleet-tracker/internal/general/contracts"
)

const envelopeBuffer = 256

var ErrBusClosed = errors.New("redis bus closed")

// Bus publishes through the shared client and subscribes through a dedicated one,
// because a subscribed connection cannot serve ordinary commands.
type Bus struct {
	publisher  *goredis.Client
	subscriber *goredis.Client

	mu     sync.Mutex
	subs   map[*goredis.PubSub]struct{}
	closed bool
}

func NewBus(publisher, subscriber *goredis.Client) *Bus {
	return &Bus{
		publisher:  publisher,
		subscriber: subscriber,
		subs:       make(map[*goredis.PubSub]struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.publisher.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the server's confirmation, so an unreachable broker fails here
// instead of silently delivering nothing.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (<-chan contracts.Envelope, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.mu.Unlock()

	ps := b.subscriber.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = ps.Close()
		return nil, ErrBusClosed
	}
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	out := make(chan contracts.Envelope, envelopeBuffer)
	go b.forward(ctx, ps, out)
	return out, nil
}

func (b *Bus) forward(ctx context.Context, ps *goredis.PubSub, out chan<- contracts.Envelope) {
	defer func() {
		b.mu.Lock()
		delete(b.subs, ps)
		b.mu.Unlock()
		_ = ps.Close()
		close(out)
	}()

	in := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			env := contracts.Envelope{Channel: msg.Channel, Payload: []byte(msg.Payload)}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close ends every subscription. The clients are owned by the caller.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := b.subs
	b.subs = make(map[*goredis.PubSub]struct{})
	b.mu.Unlock()

	var errs []error
	for ps := range subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
