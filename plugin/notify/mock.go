package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

// MockNotifier logs messages instead of delivering them and keeps them in an outbox.
type MockNotifier struct {
	logger *slog.Logger

	mu     sync.RWMutex
	outbox []Message
}

// NewMockNotifier creates a MockNotifier that logs through logger.
func NewMockNotifier(logger *slog.Logger) *MockNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockNotifier{logger: logger}
}

// Send records msg and returns a receipt.
func (m *MockNotifier) Send(ctx context.Context, msg Message) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == "" {
		return nil, errors.New("recipient required")
	}

	receipt := &Receipt{
		ID:     "email_" + shortuuid.New(),
		To:     msg.To,
		Kind:   msg.Kind,
		SentAt: time.Now(),
	}

	m.mu.Lock()
	m.outbox = append(m.outbox, msg)
	m.mu.Unlock()

	m.logger.Info("email sent",
		slog.String("id", receipt.ID),
		slog.String("to", msg.To),
		slog.String("kind", string(msg.Kind)),
		slog.String("subject", msg.Subject),
	)
	return receipt, nil
}

// Sent returns a copy of all recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.outbox...)
}

// Reset clears the outbox.
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = nil
}

var _ Notifier = (*MockNotifier)(nil)
