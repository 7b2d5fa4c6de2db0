// Package inmem provides an in-memory implementation of bus.Bus for testing
// and local development. Messages live in per-topic queues with no durability
// across process restarts; the ack/nak, dedup and ordering contracts match
// what the Redis Streams adapter (features/bus/pulse) provides so suites can
// run against either.
package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

// Bus implements bus.Bus in memory. Publish appends to per-topic FIFO queues
// atomically for the whole batch; Subscribe drains the queues one message at
// a time, acking on handler success and requeueing at the head on failure so
// redelivery preserves order. Envelope ids seen once are never enqueued again
// and ids processed once are skipped on redelivery, mirroring a broker dedup
// window that spans the bus lifetime.
type Bus struct {
	mu        sync.Mutex
	queues    map[bus.Topic][]bus.Envelope
	log       map[bus.Topic][]bus.Envelope
	enqueued  map[timer.EnvelopeID]bool
	processed map[timer.EnvelopeID]bool
	wake      chan struct{}

	// redeliveryDelay spaces redeliveries of nak'd messages so a persistently
	// failing handler cannot spin the subscription loop.
	redeliveryDelay time.Duration
}

// New constructs an empty Bus ready for use.
func New() *Bus {
	return &Bus{
		queues:          make(map[bus.Topic][]bus.Envelope),
		log:             make(map[bus.Topic][]bus.Envelope),
		enqueued:        make(map[timer.EnvelopeID]bool),
		processed:       make(map[timer.EnvelopeID]bool),
		wake:            make(chan struct{}, 1),
		redeliveryDelay: 5 * time.Millisecond,
	}
}

// Publish places all envelopes on their topics in one atomic step. Envelopes
// whose id was already published are dropped (dedup); empty input is
// rejected.
func (b *Bus) Publish(_ context.Context, envelopes []bus.Envelope) error {
	if len(envelopes) == 0 {
		return &bus.PublishError{Err: errEmptyBatch}
	}
	topics := make([]bus.Topic, len(envelopes))
	for i, env := range envelopes {
		topic, err := bus.TopicFor(env.Type)
		if err != nil {
			return &bus.PublishError{Err: err}
		}
		topics[i] = topic
	}

	b.mu.Lock()
	for i, env := range envelopes {
		if b.enqueued[env.ID] {
			continue
		}
		b.enqueued[env.ID] = true
		b.queues[topics[i]] = append(b.queues[topics[i]], env)
		b.log[topics[i]] = append(b.log[topics[i]], env)
	}
	b.mu.Unlock()
	b.signal()
	return nil
}

// Subscribe delivers queued envelopes for the given topics to handler, one at
// a time. A nil handler result acks the message; an error requeues it at the
// head of its topic for redelivery. Subscribe blocks until ctx is done and
// then returns nil.
func (b *Bus) Subscribe(ctx context.Context, topics []bus.Topic, handler bus.Handler) error {
	if len(topics) == 0 {
		return &bus.SubscribeError{Err: errNoTopics}
	}
	for {
		env, topic, ok := b.next(topics)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-b.wake:
				continue
			}
		}
		if b.alreadyProcessed(env.ID) {
			continue
		}
		if err := handler(ctx, env); err != nil {
			b.requeue(topic, env)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.redeliveryDelay):
			}
			continue
		}
		b.markProcessed(env.ID)
	}
}

// Events returns a snapshot of everything ever published on the topic, in
// publish order, including messages already consumed. Test helper; not part
// of the bus.Bus interface.
func (b *Bus) Events(topic bus.Topic) []bus.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bus.Envelope, len(b.log[topic]))
	copy(out, b.log[topic])
	return out
}

// Pending reports how many messages are queued and not yet acked on the
// topic. Test helper.
func (b *Bus) Pending(topic bus.Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[topic])
}

// Reset drops all queues, logs and dedup state. Test helper.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = make(map[bus.Topic][]bus.Envelope)
	b.log = make(map[bus.Topic][]bus.Envelope)
	b.enqueued = make(map[timer.EnvelopeID]bool)
	b.processed = make(map[timer.EnvelopeID]bool)
}

// next pops the head of the first non-empty queue among topics.
func (b *Bus) next(topics []bus.Topic) (bus.Envelope, bus.Topic, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		q := b.queues[topic]
		if len(q) == 0 {
			continue
		}
		env := q[0]
		b.queues[topic] = q[1:]
		return env, topic, true
	}
	return bus.Envelope{}, "", false
}

// requeue puts a nak'd envelope back at the head of its topic so redelivery
// preserves per-aggregate order.
func (b *Bus) requeue(topic bus.Topic, env bus.Envelope) {
	b.mu.Lock()
	b.queues[topic] = append([]bus.Envelope{env}, b.queues[topic]...)
	b.mu.Unlock()
	b.signal()
}

func (b *Bus) alreadyProcessed(id timer.EnvelopeID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed[id]
}

func (b *Bus) markProcessed(id timer.EnvelopeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processed[id] = true
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

var (
	errEmptyBatch = errors.New("empty envelope batch")
	errNoTopics   = errors.New("no topics to subscribe")
)
