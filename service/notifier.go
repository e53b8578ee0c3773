package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payverify/dto/model"
	"payverify/poller"

	"github.com/go-redis/redis/v8"
)

const (
	EventStateChanged = "state_changed"
	EventWarning      = "warning"
	EventNavigate     = "navigate"
)

// VerificationEvent is published on every state change of a verification
// session.
type VerificationEvent struct {
	Type              string    `json:"type"`
	TransactionID     string    `json:"transaction_id"`
	State             string    `json:"state"`
	Reason            string    `json:"reason,omitempty"`
	Message           string    `json:"message"`
	PollingCount      int       `json:"polling_count"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	Degraded          bool      `json:"degraded"`
	Navigated         bool      `json:"navigated"`
	At                time.Time `json:"at"`
}

func NewVerificationEvent(kind string, s poller.Snapshot, at time.Time) VerificationEvent {
	return VerificationEvent{
		Type:              kind,
		TransactionID:     s.TransactionID,
		State:             s.State.String(),
		Reason:            s.Reason.String(),
		Message:           s.Message,
		PollingCount:      s.PollingCount,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Degraded:          s.Degraded,
		Navigated:         s.Navigated,
		At:                at,
	}
}

type Notifier interface {
	Notify(ctx context.Context, event VerificationEvent) error
}

// Publisher is the part of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func VerificationChannel(transactionID string) string {
	return "payments:verification:" + transactionID
}

type RedisNotifier struct {
	client Publisher
}

func NewRedisNotifier(client Publisher) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, event VerificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal verification event: %w", err)
	}
	if err := n.client.Publish(ctx, VerificationChannel(event.TransactionID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish verification event: %w", err)
	}
	return nil
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, VerificationEvent) error { return nil }

// Recorder stores verification attempts and outcomes.
type Recorder interface {
	Insert(ctx context.Context, entry model.VerificationLog) error
}

type NopRecorder struct{}

func (NopRecorder) Insert(context.Context, model.VerificationLog) error { return nil }

// Metrics counts poll attempts and verification outcomes.
type Metrics interface {
	PollAttempt(result string)
	Verification(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) PollAttempt(string)  {}
func (nopMetrics) Verification(string) {}
