// Package events publishes finance events after their transaction commits.
// Delivery is best effort; the database stays the source of truth.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	KeyPaymentVerified = "payment.verified"
	KeyPayoutRequested = "payout.requested"
	KeyPayoutProcessed = "payout.processed"
	KeyPayoutRejected  = "payout.rejected"
)

type PaymentVerified struct {
	PaymentID       uint      `json:"paymentId"`
	UserID          uint      `json:"userId"`
	CourseID        uint      `json:"courseId"`
	InstructorID    uint      `json:"instructorId"`
	Amount          int64     `json:"amount"`
	InstructorShare int64     `json:"instructorShare"`
	Currency        string    `json:"currency"`
	Provider        string    `json:"provider"`
	OccurredAt      time.Time `json:"occurredAt"`
}

type PayoutChanged struct {
	PayoutID       uint      `json:"payoutId"`
	InstructorID   uint      `json:"instructorId"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	TransactionRef string    `json:"transactionRef,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Message is an event captured by Memory.
type Message struct {
	Key  string
	Body any
}

// Memory keeps published events in order. Useful in tests and local runs.
type Memory struct {
	mu   sync.Mutex
	msgs []Message
}

func (m *Memory) Publish(_ context.Context, routingKey string, msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, Message{Key: routingKey, Body: msg})
	return nil
}

func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Keys lists routing keys in publish order.
func (m *Memory) Keys() []string {
	msgs := m.Messages()
	keys := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		keys = append(keys, msg.Key)
	}
	return keys
}
