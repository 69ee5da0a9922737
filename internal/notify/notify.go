package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Action is an optional call to action attached to a notification.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Notification is a short shopper-facing message (a toast).
type Notification struct {
	SessionID   string  `json:"sessionId,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DurationMs  int     `json:"durationMs"`
	Action      *Action `json:"action,omitempty"`
}

// Sink delivers notifications. Delivery is fire-and-forget for callers.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Queue buffers notifications produced during one state transition so they
// are delivered once, after the transition is complete.
type Queue struct {
	pending []Notification
}

func (q *Queue) Push(n Notification) {
	q.pending = append(q.pending, n)
}

func (q *Queue) Len() int { return len(q.pending) }

// Drain delivers and forgets every pending notification. Sink errors are
// logged and dropped. It returns how many notifications were drained.
func (q *Queue) Drain(ctx context.Context, sink Sink) int {
	pending := q.pending
	q.pending = nil
	if sink == nil {
		return len(pending)
	}
	for _, n := range pending {
		if err := sink.Notify(ctx, n); err != nil {
			log.Printf("Warning: failed to deliver notification %q for session %s: %v", n.Title, n.SessionID, err)
		}
	}
	return len(pending)
}

// LogSink writes notifications to the standard logger.
type LogSink struct{}

func (LogSink) Notify(_ context.Context, n Notification) error {
	log.Printf("[notify] session=%s %s: %s", n.SessionID, n.Title, n.Description)
	return nil
}

// Publisher is the subset of a message broker client the broker sink needs.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// BrokerSink publishes notifications as JSON to a broker exchange using the
// routing key "notification.<session id>".
type BrokerSink struct {
	publisher Publisher
	exchange  string
}

func NewBrokerSink(p Publisher, exchange string) *BrokerSink {
	return &BrokerSink{publisher: p, exchange: exchange}
}

func (s *BrokerSink) Notify(_ context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	key := "notification." + n.SessionID
	if n.SessionID == "" {
		key = "notification.broadcast"
	}
	if err := s.publisher.Publish(s.exchange, key, body); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
