package domain

import "context"

// EventBus publishes pipeline lifecycle events (batch completion, ring
// detection) and is the transport the worker pool uses to dispatch
// queued batches across goroutines. Backed by Go channels (single
// process) or NATS (multi-process), mirroring the Community/Pro split
// this module's teacher used for its own event bus.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string
	Topic     string
	Payload   []byte
	Timestamp int64
}

// Subscription represents an active subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// Standard topic names.
const (
	TopicBatchSubmitted = "muleguard.batch.submitted"
	TopicBatchCompleted = "muleguard.batch.completed"
	TopicRingDetected    = "muleguard.ring.detected"
)
