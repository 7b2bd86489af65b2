package queue

import "context"

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Handler consumes one message. A returned error is logged by the consumer;
// messages are not redelivered by the in-process queue.
type Handler func(ctx context.Context, msg Message) error
