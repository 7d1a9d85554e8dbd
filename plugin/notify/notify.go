// Package notify sends library notifications to students.
package notify

import (
	"context"
	"time"
)

// Kind identifies which template a message is rendered from.
type Kind string

const (
	KindWelcome            Kind = "welcome"
	KindBorrowConfirmation Kind = "borrow_confirmation"
	KindReturnConfirmation Kind = "return_confirmation"
	KindOverdueNotice      Kind = "overdue_notice"
	KindGeneral            Kind = "notification"
)

// Message is an email ready to be sent.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    Kind   `json:"kind"`
}

// Receipt describes a sent message.
type Receipt struct {
	ID     string    `json:"id"`
	To     string    `json:"to"`
	Kind   Kind      `json:"kind"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// BulkResult summarizes a batch send.
type BulkResult struct {
	Sent     int        `json:"sent"`
	Failed   int        `json:"failed"`
	Receipts []*Receipt `json:"receipts"`
}

// SendAll sends every message, continuing past individual failures.
// It stops early only if ctx is done.
func SendAll(ctx context.Context, n Notifier, msgs []Message) (*BulkResult, error) {
	result := &BulkResult{Receipts: make([]*Receipt, 0, len(msgs))}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		receipt, err := n.Send(ctx, msg)
		if err != nil {
			result.Failed++
			continue
		}
		result.Sent++
		result.Receipts = append(result.Receipts, receipt)
	}
	return result, nil
}
