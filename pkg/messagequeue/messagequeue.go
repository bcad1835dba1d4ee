package messagequeue

import "context"

// Handler processes one message. Returning an error requeues the message.
type Handler func(ctx context.Context, body []byte) error

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(queueName string, body []byte) error
	// Consume delivers messages to handler until ctx is cancelled or the
	// queue is drained when drain is true.
	Consume(ctx context.Context, queueName string, drain bool, handler Handler) (int, error)
	Close() error
}
