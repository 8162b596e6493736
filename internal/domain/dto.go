/**
 * @description
 * Data transfer objects for the pool-service API layer. These mirror the
 * payloads the mobile and web clients exchange with the service, keeping the
 * wire shapes separate from the persisted aggregate models.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreatePoolRequest is the DTO for creating a new pool. The creator becomes
// the admin member and always takes position 1.
type CreatePoolRequest struct {
	Name               string      `json:"name"`
	ContributionAmount int64       `json:"contribution_amount"`
	Frequency          string      `json:"frequency"`
	TotalRounds        int         `json:"total_rounds"`
	MemberCount        int         `json:"member_count"`
	Admin              JoinRequest `json:"admin"`
}

// JoinRequest is the DTO for adding a member to a pool's roster.
type JoinRequest struct {
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
}

// ReorderRequest carries a full permutation of the active members' ids in the
// desired new payout order.
type ReorderRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// ConfirmContributionRequest attests that a member has paid into the current
// round. Either MemberID or Email identifies the contributor.
type ConfirmContributionRequest struct {
	MemberID     *uuid.UUID `json:"member_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	Method       string     `json:"method"`
	ExternalTxID *string    `json:"external_transaction_id,omitempty"`
}

// MemberSummary is the compact member shape embedded in status responses.
type MemberSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
}

// ContributionView is one member's ledger entry for the current round as shown
// to callers of the contribution-status endpoint.
type ContributionView struct {
	MemberID    uuid.UUID  `json:"member_id"`
	MemberName  string     `json:"member_name"`
	Position    int        `json:"position"`
	Status      string     `json:"status"`
	Method      *string    `json:"method,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	IsRecipient bool       `json:"is_recipient"`
}

// ContributionStatusResponse is the full contribution picture for the current
// round of a pool.
type ContributionStatusResponse struct {
	PoolID                   uuid.UUID          `json:"pool_id"`
	CurrentRound             int                `json:"current_round"`
	TotalRounds              int                `json:"total_rounds"`
	ContributionAmount       int64              `json:"contribution_amount"`
	Recipient                *MemberSummary     `json:"recipient,omitempty"`
	Contributions            []ContributionView `json:"contributions"`
	AllContributionsReceived bool               `json:"all_contributions_received"`
}

// EarlyPayoutStatusResponse answers "could the current round pay out right
// now, and if not, why not". MissingContributions names the members still
// pending so the caller can act instead of polling blindly.
type EarlyPayoutStatusResponse struct {
	Allowed              bool            `json:"allowed"`
	Reason               string          `json:"reason,omitempty"`
	MissingContributions []MemberSummary `json:"missing_contributions,omitempty"`
	Recipient            *MemberSummary  `json:"recipient,omitempty"`
	PayoutAmount         int64           `json:"payout_amount,omitempty"`
	ScheduledDate        *time.Time      `json:"scheduled_date,omitempty"`
	CurrentRound         int             `json:"current_round"`
}

// InitiateEarlyPayoutRequest carries the optional free-text audit reason for
// triggering a payout ahead of schedule.
type InitiateEarlyPayoutRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// PayoutResult is returned after a payout has been issued, early or natural.
type PayoutResult struct {
	Transaction *Transaction `json:"transaction"`
	NextRound   int          `json:"next_round"`
	IsComplete  bool         `json:"is_complete"`
}
