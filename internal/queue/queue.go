// Package queue is the article work queue: durable delivery of persistent
// messages with manual ack, consumed by the Ingestion Worker and published
// to by the Source Scheduler.
package queue

import (
	"context"

	"newsradar/internal/core"
)

// Publisher emits newly-discovered articles onto the queue.
type Publisher interface {
	Publish(ctx context.Context, msg core.QueueMessage) error
}

// Delivery wraps one queue message with its ack/nack controls. The consumer
// must ack after successful processing, or nack to request redelivery
// (capped at a configured maximum before the message is routed to a
// dead-letter subject).
type Delivery struct {
	Message core.QueueMessage
	Ack     func() error
	Nack    func() error
	// Attempt is the 1-indexed delivery attempt count. The NATS Nack control
	// compares it with the redelivery cap to decide between redelivery and
	// routing to the dead-letter subject.
	Attempt int
}

// Consumer pulls deliveries with bounded prefetch.
type Consumer interface {
	// Fetch blocks for up to the context's deadline, returning up to max
	// deliveries. An empty, nil-error result means no messages were
	// available in time.
	Fetch(ctx context.Context, max int) ([]Delivery, error)
	Close() error
}
