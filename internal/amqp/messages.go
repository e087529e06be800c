package amqp

import (
	"context"
	"encoding/json"
	"time"

	"contas/internal/core"
)

// AllocationCommittedMessage announces a persisted ALLOCATION
// transaction. The amount carries the wire sign convention: positive
// allocates collateral to the card, negative releases it.
type AllocationCommittedMessage struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	CreditCardID  string    `json:"credit_card_id"`
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAllocationCommittedMessage builds the event for a committed row.
func NewAllocationCommittedMessage(t core.Transaction) *AllocationCommittedMessage {
	return &AllocationCommittedMessage{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		CreditCardID:  t.RelatedEntityID,
		Amount:        t.Amount.String(),
		Date:          t.Date,
		Description:   t.Description,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AllocationCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AllocationCommittedMessageFromJSON creates a message from JSON bytes
func AllocationCommittedMessageFromJSON(data []byte) (*AllocationCommittedMessage, error) {
	var msg AllocationCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PublishAllocationCommitted implements services.EventPublisher.
func (c *Client) PublishAllocationCommitted(ctx context.Context, t core.Transaction) error {
	return c.PublishAllocationCommittedMessage(ctx, NewAllocationCommittedMessage(t))
}
