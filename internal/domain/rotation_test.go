package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func poolWithMembers(n int) *Pool {
	pool := &Pool{
		ID:                 uuid.New(),
		ContributionAmount: 5,
		Frequency:          FrequencyWeekly,
		TotalRounds:        n,
		CurrentRound:       1,
		MemberCount:        n,
		Status:             PoolStatusActive,
		CreatedAt:          time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= n; i++ {
		pool.Members = append(pool.Members, Member{
			ID:       uuid.New(),
			PoolID:   pool.ID,
			Name:     "m" + string(rune('0'+i)),
			Email:    "m" + string(rune('0'+i)) + "@example.com",
			Position: i,
			Status:   MemberStatusUpcoming,
		})
	}
	return pool
}

func TestRecipientPositionWrapsAround(t *testing.T) {
	pool := poolWithMembers(4)
	cases := []struct{ round, want int }{
		{1, 1}, {2, 2}, {3, 3}, {4, 4},
		{5, 1}, {6, 2}, {8, 4}, {9, 1},
	}
	for _, tc := range cases {
		if got := pool.RecipientPosition(tc.round); got != tc.want {
			t.Errorf("round %d: got position %d, want %d", tc.round, got, tc.want)
		}
	}
}

func TestRecipientIgnoresRemovedMembers(t *testing.T) {
	pool := poolWithMembers(3)
	pool.Members[1].Status = MemberStatusRemoved

	recipient, ok := pool.Recipient(2)
	if ok {
		t.Fatalf("position 2 is vacated, expected no recipient, got %s", recipient.Name)
	}
	recipient, ok = pool.Recipient(1)
	if !ok || recipient.ID != pool.Members[0].ID {
		t.Fatal("position 1 should still resolve")
	}
}

func TestRecipientResolvesCompletedMemberOnWrapAround(t *testing.T) {
	pool := poolWithMembers(3)
	pool.TotalRounds = 6
	for i := range pool.Members {
		pool.Members[i].Status = MemberStatusCompleted
	}

	// Round 4 wraps back to position 1; the member already received round 1's
	// payout but gets a repeat turn.
	recipient, ok := pool.Recipient(4)
	if !ok || recipient.ID != pool.Members[0].ID {
		t.Fatalf("round 4 should wrap to the position-1 member, got %+v ok=%t", recipient, ok)
	}
}

func TestActiveMemberByEmailSkipsRemoved(t *testing.T) {
	pool := poolWithMembers(3)
	pool.Members[1].Status = MemberStatusRemoved

	if _, ok := pool.ActiveMemberByEmail(pool.Members[1].Email); ok {
		t.Fatal("a removed member's email should be free to reuse")
	}
	m, ok := pool.ActiveMemberByEmail("  M1@EXAMPLE.COM ")
	if !ok || m.ID != pool.Members[0].ID {
		t.Fatal("active member should resolve with trim and case fold")
	}
}

func TestPayoutAmount(t *testing.T) {
	pool := poolWithMembers(4)
	if got := pool.PayoutAmount(); got != 20 {
		t.Fatalf("got %d, want 20", got)
	}

	pool = poolWithMembers(5)
	pool.ContributionAmount = 100
	if got := pool.PayoutAmount(); got != 500 {
		t.Fatalf("got %d, want 500", got)
	}
}

func TestIsRoundCompleteExemptsRecipient(t *testing.T) {
	pool := poolWithMembers(3)
	now := time.Now().UTC()
	method := "cash"
	// Positions 2 and 3 confirm; position 1 is the round-1 recipient.
	for _, m := range pool.Members[1:] {
		pool.Contributions = append(pool.Contributions, Contribution{
			PoolID: pool.ID, MemberID: m.ID, Round: 1,
			Status: ContributionStatusConfirmed, Method: &method, ConfirmedAt: &now,
		})
	}
	if !pool.IsRoundComplete(1) {
		t.Fatal("round should be complete without the recipient's own contribution")
	}
	if missing := pool.MissingContributors(1); len(missing) != 0 {
		t.Fatalf("expected no missing contributors, got %+v", missing)
	}
}

func TestIsRoundCompletePendingContributor(t *testing.T) {
	pool := poolWithMembers(3)
	now := time.Now().UTC()
	method := "cash"
	pool.Contributions = append(pool.Contributions, Contribution{
		PoolID: pool.ID, MemberID: pool.Members[1].ID, Round: 1,
		Status: ContributionStatusConfirmed, Method: &method, ConfirmedAt: &now,
	})
	// A pending (undone) record does not count.
	pool.Contributions = append(pool.Contributions, Contribution{
		PoolID: pool.ID, MemberID: pool.Members[2].ID, Round: 1,
		Status: ContributionStatusPending,
	})

	if pool.IsRoundComplete(1) {
		t.Fatal("round must not be complete with a pending contributor")
	}
	missing := pool.MissingContributors(1)
	if len(missing) != 1 || missing[0].ID != pool.Members[2].ID {
		t.Fatalf("expected the pending member missing, got %+v", missing)
	}
}

func TestReorderChangesFutureRecipientsOnly(t *testing.T) {
	pool := poolWithMembers(3)
	a, b, c := pool.Members[0], pool.Members[1], pool.Members[2]

	// Round 1 already paid to the original position-1 holder.
	pool.Payouts = append(pool.Payouts, Transaction{
		ID: uuid.New(), PoolID: pool.ID, Round: 1,
		RecipientMemberID: a.ID, RecipientName: a.Name, Amount: pool.PayoutAmount(),
	})
	pool.CurrentRound = 2

	// Reorder: c moves to position 2, b to position 3.
	pool.Members[2].Position = 2
	pool.Members[1].Position = 3

	recipient, ok := pool.Recipient(2)
	if !ok || recipient.ID != c.ID {
		t.Fatalf("round 2 should now go to the new position-2 holder, got %+v", recipient)
	}
	// The issued payout record is untouched by the reorder.
	paid, ok := pool.PayoutForRound(1)
	if !ok || paid.RecipientMemberID != a.ID || paid.RecipientName != a.Name {
		t.Fatalf("past payout record must keep its snapshot, got %+v", paid)
	}
	_ = b
}

func TestHasValidPositionPermutation(t *testing.T) {
	pool := poolWithMembers(3)
	if !pool.HasValidPositionPermutation() {
		t.Fatal("fresh roster should be a valid permutation")
	}

	pool.Members[2].Position = 2
	if pool.HasValidPositionPermutation() {
		t.Fatal("duplicate position should invalidate the permutation")
	}

	pool.Members[2].Position = 5
	if pool.HasValidPositionPermutation() {
		t.Fatal("gap in positions should invalidate the permutation")
	}

	// A removed member's position drops out of the check.
	pool.Members[2].Status = MemberStatusRemoved
	pool.Members[0].Position = 1
	pool.Members[1].Position = 2
	if !pool.HasValidPositionPermutation() {
		t.Fatal("two active members at 1,2 is a valid permutation")
	}
}

func TestIsReorderPermutation(t *testing.T) {
	pool := poolWithMembers(3)
	ids := []uuid.UUID{pool.Members[2].ID, pool.Members[0].ID, pool.Members[1].ID}
	if !pool.IsReorderPermutation(ids) {
		t.Fatal("full shuffle of active ids should be accepted")
	}
	if pool.IsReorderPermutation(ids[:2]) {
		t.Fatal("partial order should be rejected")
	}
	if pool.IsReorderPermutation([]uuid.UUID{ids[0], ids[0], ids[1]}) {
		t.Fatal("duplicate id should be rejected")
	}
	if pool.IsReorderPermutation([]uuid.UUID{ids[0], ids[1], uuid.New()}) {
		t.Fatal("stranger id should be rejected")
	}
}

func TestNextFreePosition(t *testing.T) {
	pool := poolWithMembers(3)
	pool.MemberCount = 5

	pos, ok := pool.NextFreePosition()
	if !ok || pos != 4 {
		t.Fatalf("expected position 4, got %d ok=%t", pos, ok)
	}

	pool.Members[1].Status = MemberStatusRemoved
	pos, ok = pool.NextFreePosition()
	if !ok || pos != 2 {
		t.Fatalf("removed member's slot should free up, got %d ok=%t", pos, ok)
	}

	pool.MemberCount = 2
	pool.Members[1].Status = MemberStatusUpcoming
	if _, ok := pool.NextFreePosition(); ok {
		t.Fatal("full roster should report no free position")
	}
}

func TestFrequencyInterval(t *testing.T) {
	base := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	if got := FrequencyInterval(base, FrequencyWeekly); got != base.AddDate(0, 0, 7) {
		t.Fatalf("weekly: got %v", got)
	}
	if got := FrequencyInterval(base, FrequencyBiweekly); got != base.AddDate(0, 0, 14) {
		t.Fatalf("biweekly: got %v", got)
	}
	// Calendar-month arithmetic, including end-of-month normalization.
	if got := FrequencyInterval(base, FrequencyMonthly); got != base.AddDate(0, 1, 0) {
		t.Fatalf("monthly: got %v", got)
	}
}

func TestNextScheduledPayout(t *testing.T) {
	pool := poolWithMembers(3)

	// Round 1: anchored on creation.
	want := pool.CreatedAt.AddDate(0, 0, 7)
	if got := pool.NextScheduledPayout(); !got.Equal(want) {
		t.Fatalf("round 1 schedule: got %v, want %v", got, want)
	}

	// Round 2: anchored on round 1's payout.
	issued := pool.CreatedAt.AddDate(0, 0, 5)
	pool.Payouts = append(pool.Payouts, Transaction{ID: uuid.New(), PoolID: pool.ID, Round: 1, IssuedAt: issued})
	pool.CurrentRound = 2
	want = issued.AddDate(0, 0, 7)
	if got := pool.NextScheduledPayout(); !got.Equal(want) {
		t.Fatalf("round 2 schedule: got %v, want %v", got, want)
	}
}

func TestMemberByEmailCaseInsensitive(t *testing.T) {
	pool := poolWithMembers(2)
	m, ok := pool.MemberByEmail("  M1@EXAMPLE.COM ")
	if !ok || m.ID != pool.Members[0].ID {
		t.Fatal("lookup should trim whitespace and fold case")
	}
	if _, ok := pool.MemberByEmail("stranger@example.com"); ok {
		t.Fatal("unknown email should not resolve")
	}
}

func TestValidFrequency(t *testing.T) {
	for _, f := range []string{FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly} {
		if !ValidFrequency(f) {
			t.Errorf("%s should be valid", f)
		}
	}
	if ValidFrequency("daily") || ValidFrequency("") {
		t.Error("unsupported frequencies accepted")
	}
}
