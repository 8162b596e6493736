/**
 * @description
 * This file defines the core domain models for the pool-service. These structs
 * represent the rotating savings pool aggregate: the pool itself, its member
 * roster, the per-round contribution ledger, and the issued payout records.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit to avoid
 *   floating-point inaccuracies with financial data.
 * - A Pool is loaded as a full aggregate (members, contributions, payouts) so
 *   that recipient derivation and completeness checks are pure functions of a
 *   single snapshot.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pool statuses.
const (
	PoolStatusActive    = "active"
	PoolStatusCompleted = "completed"
	PoolStatusCancelled = "cancelled"
)

// Contribution frequencies.
const (
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

// Member roles.
const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// Member statuses. A removed member keeps its row for audit but drops out of
// the active roster and the position permutation.
const (
	MemberStatusCurrent   = "current"
	MemberStatusUpcoming  = "upcoming"
	MemberStatusCompleted = "completed"
	MemberStatusRemoved   = "removed"
)

// Contribution statuses.
const (
	ContributionStatusPending   = "pending"
	ContributionStatusConfirmed = "confirmed"
	ContributionStatusFailed    = "failed"
)

// Allowed bounds for the fixed per-round contribution amount.
const (
	MinContributionAmount int64 = 1
	MaxContributionAmount int64 = 20
)

// Pool is the aggregate root for one rotating savings circle. CurrentRound
// runs from 1 to TotalRounds+1, where TotalRounds+1 means every round has been
// paid out and the pool is completed.
type Pool struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	ContributionAmount int64     `json:"contribution_amount"`
	Frequency          string    `json:"frequency"`
	TotalRounds        int       `json:"total_rounds"`
	CurrentRound       int       `json:"current_round"`
	MemberCount        int       `json:"member_count"`
	Status             string    `json:"status"`
	ShareableLink      string    `json:"shareable_link,omitempty"`
	QRCodeContent      string    `json:"qr_code_content,omitempty"`
	Version            int64     `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Members       []Member       `json:"members,omitempty"`
	Contributions []Contribution `json:"contributions,omitempty"`
	Payouts       []Transaction  `json:"payouts,omitempty"`
}

// Member is one participant in a pool. Position determines payout order and is
// fixed once assigned except through an explicit roster reorder.
type Member struct {
	ID        uuid.UUID  `json:"id"`
	PoolID    uuid.UUID  `json:"pool_id"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Position  int        `json:"position"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Contribution is a self-reported attestation that a member has paid into a
// given round's pot. Method and ExternalTxID are metadata only, never proof of
// an actual fund movement.
type Contribution struct {
	PoolID        uuid.UUID  `json:"pool_id"`
	MemberID      uuid.UUID  `json:"member_id"`
	Round         int        `json:"round"`
	Status        string     `json:"status"`
	Method        *string    `json:"method,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ExternalTxID  *string    `json:"external_transaction_id,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
}

// Transaction is the immutable record of an issued payout for one round. It is
// the single source of truth for "this round is closed". RecipientName is a
// snapshot taken at issuance so later roster reorders never rewrite who a past
// payout went to.
type Transaction struct {
	ID                uuid.UUID `json:"id"`
	PoolID            uuid.UUID `json:"pool_id"`
	Round             int       `json:"round"`
	RecipientMemberID uuid.UUID `json:"recipient_member_id"`
	RecipientName     string    `json:"recipient_name"`
	Amount            int64     `json:"amount"`
	WasEarlyPayout    bool      `json:"was_early_payout"`
	Reason            *string   `json:"reason,omitempty"`
	IssuedAt          time.Time `json:"issued_at"`
}

// ValidFrequency reports whether f is one of the supported cycle frequencies.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// NewConfirmedContribution builds a confirmed attestation for (memberID, round)
// stamped at now. Keeping construction here enforces the closed shape of the
// confirmed variant: a confirmed record always carries a timestamp and method.
func NewConfirmedContribution(poolID, memberID uuid.UUID, round int, method string, now time.Time) Contribution {
	return Contribution{
		PoolID:      poolID,
		MemberID:    memberID,
		Round:       round,
		Status:      ContributionStatusConfirmed,
		Method:      &method,
		ConfirmedAt: &now,
	}
}
