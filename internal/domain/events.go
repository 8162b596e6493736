/**
 * @description
 * Event payloads published to RabbitMQ for the discussion/activity feed and the
 * notification service. Both collaborators are best-effort consumers: a failed
 * publish never rolls back the engine operation that produced the event.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity event types consumed by the discussion feed.
const (
	EventPaymentReceived = "PAYMENT_RECEIVED"
	EventPayoutSent      = "PAYOUT_SENT"
	EventMemberJoined    = "MEMBER_JOINED"
	EventRoundStarted    = "ROUND_STARTED"
)

// ActivityEvent is the payload published for the pool's discussion feed.
type ActivityEvent struct {
	Type       string            `json:"type"`
	PoolID     uuid.UUID         `json:"pool_id"`
	MemberID   *uuid.UUID        `json:"member_id,omitempty"`
	MemberName string            `json:"member_name,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	Round      int               `json:"round,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// PayoutIssuedEvent informs the notification service that a payout record was
// created, so the recipient can be told their pot arrived.
type PayoutIssuedEvent struct {
	PoolID         uuid.UUID `json:"pool_id"`
	PayoutID       uuid.UUID `json:"payout_id"`
	Round          int       `json:"round"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	RecipientName  string    `json:"recipient_name"`
	Amount         int64     `json:"amount"`
	WasEarlyPayout bool      `json:"was_early_payout"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoundAdvancedEvent informs the notification service that a pool moved on to
// a new round (or finished) after a payout was issued.
type RoundAdvancedEvent struct {
	PoolID      uuid.UUID `json:"pool_id"`
	Round       int       `json:"round"`
	NextRound   int       `json:"next_round"`
	IsComplete  bool      `json:"is_complete"`
	PayoutID    uuid.UUID `json:"payout_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}
