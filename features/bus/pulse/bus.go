// Package pulse runs the timer event bus over Redis Streams via
// goa.design/pulse. Each topic maps to one stream; replicas of the service
// share a durable sink (consumer group) so the command stream is split
// between them.
//
// Delivery is at-least-once: messages are acked only after the handler
// returns nil, so a crash mid-handling leaves the message pending and Pulse
// redelivers it. The subscriber keeps a bounded window of processed envelope
// ids to absorb the duplicates this produces.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
	"golang.org/x/time/rate"

	clientspulse "github.com/suddenlyGiovanni/event-service-agent-kata-sub001/features/bus/pulse/clients/pulse"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/bus"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/telemetry"
	"github.com/suddenlyGiovanni/event-service-agent-kata-sub001/runtime/timer"
)

const (
	defaultSinkName    = "timer-service"
	defaultDedupWindow = 4096
)

type (
	// Options configures the Pulse bus adapter.
	Options struct {
		// Client is the Pulse client used to publish and consume. Required.
		Client clientspulse.Client
		// SinkName identifies the durable consumer group. Replicas sharing
		// the name split the streams between them. Defaults to
		// "timer-service".
		SinkName string
		// PublishRate throttles outbound publishes to this many envelopes
		// per second. Zero means unlimited.
		PublishRate float64
		// PublishBurst is the throttle burst size. Only meaningful when
		// PublishRate is set.
		PublishBurst int
		// DedupWindow is the number of processed envelope ids remembered to
		// absorb redeliveries. Defaults to 4096.
		DedupWindow int
		// Logger receives subscription diagnostics. Defaults to no-op.
		Logger telemetry.Logger
	}

	// Bus implements bus.Bus over Pulse streams.
	Bus struct {
		client   clientspulse.Client
		sinkName string
		limiter  *rate.Limiter
		log      telemetry.Logger
		dedup    *dedupWindow

		mu      sync.Mutex
		streams map[bus.Topic]clientspulse.Stream
	}

	// sinkEvent pairs a delivered event with the sink it must be acked on.
	sinkEvent struct {
		event *streaming.Event
		sink  clientspulse.Sink
	}
)

// New constructs a Pulse-backed bus.
func New(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		sinkName = defaultSinkName
	}
	window := opts.DedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	var limiter *rate.Limiter
	if opts.PublishRate > 0 {
		burst := opts.PublishBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.PublishRate), burst)
	}
	return &Bus{
		client:   opts.Client,
		sinkName: sinkName,
		limiter:  limiter,
		log:      logger,
		dedup:    newDedupWindow(window),
		streams:  make(map[bus.Topic]clientspulse.Stream),
	}, nil
}

// streamName maps a topic onto its Redis stream.
func streamName(topic bus.Topic) (string, error) {
	switch topic {
	case bus.TopicTimerCommands:
		return "timer-commands", nil
	case bus.TopicTimerEvents:
		return "timer-events", nil
	default:
		return "", fmt.Errorf("unknown topic %q", topic)
	}
}

// Publish appends the envelopes to their topic streams in order. The whole
// batch is resolved and marshaled before the first append so a malformed
// envelope fails the call without partial writes; a broker failure mid-batch
// still leaves a prefix appended, which the at-least-once contract allows.
func (b *Bus) Publish(ctx context.Context, envelopes []bus.Envelope) error {
	if len(envelopes) == 0 {
		return &bus.PublishError{Err: errors.New("empty envelope batch")}
	}

	type pending struct {
		stream  clientspulse.Stream
		event   string
		payload []byte
	}
	batch := make([]pending, len(envelopes))
	for i, env := range envelopes {
		topic, err := bus.TopicFor(env.Type)
		if err != nil {
			return &bus.PublishError{Err: err}
		}
		stream, err := b.stream(topic)
		if err != nil {
			return &bus.PublishError{Err: err}
		}
		payload, err := bus.MarshalEnvelope(env)
		if err != nil {
			return &bus.PublishError{Err: err}
		}
		batch[i] = pending{stream: stream, event: env.Type, payload: payload}
	}

	for _, p := range batch {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return &bus.PublishError{Err: err}
			}
		}
		if _, err := p.stream.Add(ctx, p.event, p.payload); err != nil {
			return &bus.PublishError{Err: err}
		}
	}
	return nil
}

// Subscribe joins the durable sink on each topic's stream and feeds delivered
// envelopes to handler one at a time. Messages that cannot be decoded are
// poison: they are logged and acked because redelivery can never fix them. A
// handler error leaves the message unacked so Pulse redelivers it. Subscribe
// blocks until ctx is done (returning nil) or sink setup fails.
func (b *Bus) Subscribe(ctx context.Context, topics []bus.Topic, handler bus.Handler) error {
	if len(topics) == 0 {
		return &bus.SubscribeError{Err: errors.New("no topics to subscribe")}
	}

	sinks := make([]clientspulse.Sink, 0, len(topics))
	defer func() {
		for _, sink := range sinks {
			sink.Close(context.Background())
		}
	}()
	for _, topic := range topics {
		stream, err := b.stream(topic)
		if err != nil {
			return &bus.SubscribeError{Err: err}
		}
		sink, err := stream.NewSink(ctx, b.sinkName, streamopts.WithSinkStartAtOldest())
		if err != nil {
			return &bus.SubscribeError{Err: fmt.Errorf("create sink for %s: %w", topic, err)}
		}
		sinks = append(sinks, sink)
	}

	merged := make(chan sinkEvent)
	forwardCtx, stopForwarding := context.WithCancel(ctx)
	defer stopForwarding()
	for _, sink := range sinks {
		go forward(forwardCtx, sink, merged)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery := <-merged:
			b.handle(ctx, delivery, handler)
		}
	}
}

// forward copies events from one sink onto the merged channel until ctx is
// done or the sink channel closes.
func forward(ctx context.Context, sink clientspulse.Sink, merged chan<- sinkEvent) {
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			select {
			case merged <- sinkEvent{event: event, sink: sink}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bus) handle(ctx context.Context, delivery sinkEvent, handler bus.Handler) {
	env, err := bus.DecodeEnvelope(delivery.event.Payload)
	if err != nil {
		// Poison: no future delivery can decode any better.
		b.log.Warn(ctx, "dropping undecodable message",
			"stream_event_id", delivery.event.ID,
			"event_name", delivery.event.EventName,
			"error", err.Error(),
		)
		b.ack(ctx, delivery)
		return
	}

	if b.dedup.seen(env.ID) {
		b.log.Debug(ctx, "skipping duplicate delivery",
			"envelope_id", env.ID.String(),
			"stream_event_id", delivery.event.ID,
		)
		b.ack(ctx, delivery)
		return
	}

	if err := handler(ctx, env); err != nil {
		// No ack: Pulse redelivers after the ack grace period.
		b.log.Warn(ctx, "handler failed, leaving message for redelivery",
			"envelope_id", env.ID.String(),
			"type", env.Type,
			"error", err.Error(),
		)
		return
	}

	b.dedup.add(env.ID)
	b.ack(ctx, delivery)
}

func (b *Bus) ack(ctx context.Context, delivery sinkEvent) {
	if err := delivery.sink.Ack(ctx, delivery.event); err != nil {
		b.log.Error(ctx, "ack failed",
			"stream_event_id", delivery.event.ID,
			"error", err.Error(),
		)
	}
}

// stream returns the cached handle for topic, opening it on first use.
func (b *Bus) stream(topic bus.Topic) (clientspulse.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stream, ok := b.streams[topic]; ok {
		return stream, nil
	}
	name, err := streamName(topic)
	if err != nil {
		return nil, err
	}
	stream, err := b.client.Stream(name)
	if err != nil {
		return nil, err
	}
	b.streams[topic] = stream
	return stream, nil
}

// dedupWindow remembers the last capacity processed envelope ids. Older ids
// fall out in insertion order, matching a broker-side dedup window.
type dedupWindow struct {
	mu       sync.Mutex
	capacity int
	order    []timer.EnvelopeID
	members  map[timer.EnvelopeID]bool
	next     int
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		capacity: capacity,
		order:    make([]timer.EnvelopeID, 0, capacity),
		members:  make(map[timer.EnvelopeID]bool, capacity),
	}
}

func (w *dedupWindow) seen(id timer.EnvelopeID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.members[id]
}

func (w *dedupWindow) add(id timer.EnvelopeID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.members[id] {
		return
	}
	if len(w.order) < w.capacity {
		w.order = append(w.order, id)
	} else {
		delete(w.members, w.order[w.next])
		w.order[w.next] = id
		w.next = (w.next + 1) % w.capacity
	}
	w.members[id] = true
}
