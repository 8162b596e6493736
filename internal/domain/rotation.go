/**
 * @description
 * Pure rotation logic over the Pool aggregate snapshot: roster lookups, payout
 * position derivation, contribution-ledger completeness, payout amounts, and
 * schedule derivation. Nothing in this file touches storage or clocks beyond
 * the values already on the aggregate, so every function here is deterministic
 * for a given snapshot.
 */

package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActiveMembers returns the roster members that participate in the rotation,
// ordered by position. Removed members are excluded.
func (p *Pool) ActiveMembers() []Member {
	active := make([]Member, 0, len(p.Members))
	for _, m := range p.Members {
		if m.Status != MemberStatusRemoved {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Position < active[j].Position })
	return active
}

// MemberByID resolves a roster member by id.
func (p *Pool) MemberByID(id uuid.UUID) (*Member, bool) {
	for i := range p.Members {
		if p.Members[i].ID == id {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// MemberByEmail resolves a roster member by email, case-insensitively.
func (p *Pool) MemberByEmail(email string) (*Member, bool) {
	needle := strings.TrimSpace(email)
	for i := range p.Members {
		if strings.EqualFold(p.Members[i].Email, needle) {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// ActiveMemberByEmail resolves a non-removed roster member by email,
// case-insensitively. A removed member's email does not count as taken, which
// keeps rejoining possible and matches the partial unique index on the roster.
func (p *Pool) ActiveMemberByEmail(email string) (*Member, bool) {
	needle := strings.TrimSpace(email)
	for i := range p.Members {
		if p.Members[i].Status != MemberStatusRemoved && strings.EqualFold(p.Members[i].Email, needle) {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// RecipientPosition returns the roster position designated to receive round r.
// Rounds beyond the member count wrap back to position 1, so a pool with more
// rounds than members simply repeats the rotation.
func (p *Pool) RecipientPosition(round int) int {
	if p.MemberCount == 0 {
		return 0
	}
	return ((round - 1) % p.MemberCount) + 1
}

// Recipient returns the active member at the designated position for round r,
// computed purely from the current roster snapshot. A mid-pool reorder
// therefore changes the recipient only for rounds that have not been paid yet.
func (p *Pool) Recipient(round int) (*Member, bool) {
	position := p.RecipientPosition(round)
	for i := range p.Members {
		if p.Members[i].Status != MemberStatusRemoved && p.Members[i].Position == position {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// PayoutAmount computes the pot for any round: the fixed contribution times the
// full member count. The recipient's own slot still counts toward the pot even
// though they are exempt from contributing to their own round.
func (p *Pool) PayoutAmount() int64 {
	return p.ContributionAmount * int64(p.MemberCount)
}

// PayoutForRound returns the issued payout record for round r, if any.
func (p *Pool) PayoutForRound(round int) (*Transaction, bool) {
	for i := range p.Payouts {
		if p.Payouts[i].Round == round {
			return &p.Payouts[i], true
		}
	}
	return nil, false
}

// RoundClosed reports whether round r already has an issued payout.
func (p *Pool) RoundClosed(round int) bool {
	_, closed := p.PayoutForRound(round)
	return closed
}

// ContributionFor returns the ledger record for (memberID, round), if one has
// been created. Records are created lazily, so absence means pending.
func (p *Pool) ContributionFor(memberID uuid.UUID, round int) (*Contribution, bool) {
	for i := range p.Contributions {
		if p.Contributions[i].MemberID == memberID && p.Contributions[i].Round == round {
			return &p.Contributions[i], true
		}
	}
	return nil, false
}

// HasConfirmedContribution reports whether the member has a confirmed
// attestation for round r.
func (p *Pool) HasConfirmedContribution(memberID uuid.UUID, round int) bool {
	c, ok := p.ContributionFor(memberID, round)
	return ok && c.Status == ContributionStatusConfirmed
}

// IsRoundComplete reports whether every active member other than the round's
// recipient has confirmed a contribution for round r. The recipient is never
// required to contribute to their own payout round.
func (p *Pool) IsRoundComplete(round int) bool {
	recipient, ok := p.Recipient(round)
	if !ok {
		return false
	}
	for _, m := range p.ActiveMembers() {
		if m.ID == recipient.ID {
			continue
		}
		if !p.HasConfirmedContribution(m.ID, round) {
			return false
		}
	}
	return true
}

// MissingContributors lists the active members (recipient excluded) that have
// not yet confirmed a contribution for round r, ordered by position.
func (p *Pool) MissingContributors(round int) []Member {
	var missing []Member
	recipient, ok := p.Recipient(round)
	for _, m := range p.ActiveMembers() {
		if ok && m.ID == recipient.ID {
			continue
		}
		if !p.HasConfirmedContribution(m.ID, round) {
			missing = append(missing, m)
		}
	}
	return missing
}

// IsCompleted reports whether every round has been paid out.
func (p *Pool) IsCompleted() bool {
	return p.CurrentRound > p.TotalRounds
}

// NextFreePosition returns the lowest position in 1..MemberCount not held by an
// active member. ok is false when the roster is already full.
func (p *Pool) NextFreePosition() (int, bool) {
	taken := make(map[int]bool, p.MemberCount)
	for _, m := range p.Members {
		if m.Status != MemberStatusRemoved {
			taken[m.Position] = true
		}
	}
	for pos := 1; pos <= p.MemberCount; pos++ {
		if !taken[pos] {
			return pos, true
		}
	}
	return 0, false
}

// HasValidPositionPermutation reports whether the active members' positions
// form exactly the set {1..n} for n active members, with no gaps or duplicates.
func (p *Pool) HasValidPositionPermutation() bool {
	active := p.ActiveMembers()
	seen := make(map[int]bool, len(active))
	for _, m := range active {
		if m.Position < 1 || m.Position > len(active) || seen[m.Position] {
			return false
		}
		seen[m.Position] = true
	}
	return len(seen) == len(active)
}

// IsReorderPermutation reports whether order is a full permutation of the
// current active members' ids: same size, no duplicates, no strangers.
func (p *Pool) IsReorderPermutation(order []uuid.UUID) bool {
	active := p.ActiveMembers()
	if len(order) != len(active) {
		return false
	}
	activeIDs := make(map[uuid.UUID]bool, len(active))
	for _, m := range active {
		activeIDs[m.ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		if !activeIDs[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// FrequencyInterval advances t by one contribution cycle. Monthly uses
// calendar-month arithmetic rather than a fixed number of days.
func FrequencyInterval(t time.Time, frequency string) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 7)
	}
}

// NextScheduledPayout derives when the current round's payout would fire on the
// natural schedule: one frequency interval after the previous round's payout,
// or after pool creation for round one. Early payouts run ahead of this date.
func (p *Pool) NextScheduledPayout() time.Time {
	anchor := p.CreatedAt
	if prev, ok := p.PayoutForRound(p.CurrentRound - 1); ok {
		anchor = prev.IssuedAt
	}
	return FrequencyInterval(anchor, p.Frequency)
}
