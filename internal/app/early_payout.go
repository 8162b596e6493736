/**
 * @description
 * Early payout flow: the status check that answers "could this round pay out
 * right now", and the trigger that issues the payout ahead of the natural
 * schedule. The status check is advisory only; the trigger re-validates ledger
 * completeness inside the store transaction, so a contribution undone between
 * the check and the trigger still blocks the payout.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
)

// CheckEarlyPayoutStatus reports whether the current round could pay out early,
// and if not, exactly why: which members are still pending, or which state rule
// blocks it. The response always carries the recipient, pot size and the
// natural schedule date so clients can render the full picture.
func (s *Service) CheckEarlyPayoutStatus(ctx context.Context, poolID uuid.UUID) (*domain.EarlyPayoutStatusResponse, error) {
	pool, err := s.repo.FindPoolByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	resp := &domain.EarlyPayoutStatusResponse{CurrentRound: pool.CurrentRound}

	if pool.Status != domain.PoolStatusActive || pool.IsCompleted() {
		resp.Reason = ReasonPoolNotActive
		return resp, nil
	}
	if pool.RoundClosed(pool.CurrentRound) {
		resp.Reason = ReasonRoundAlreadyPaid
		return resp, nil
	}

	recipient, ok := pool.Recipient(pool.CurrentRound)
	if !ok {
		resp.Reason = "No recipient is assigned for the current round"
		return resp, nil
	}
	resp.Recipient = &domain.MemberSummary{ID: recipient.ID, Name: recipient.Name, Position: recipient.Position}
	resp.PayoutAmount = pool.PayoutAmount()
	scheduled := pool.NextScheduledPayout()
	resp.ScheduledDate = &scheduled

	if missing := pool.MissingContributors(pool.CurrentRound); len(missing) > 0 {
		resp.Reason = ReasonNotAllContributions
		resp.MissingContributions = make([]domain.MemberSummary, 0, len(missing))
		for _, m := range missing {
			resp.MissingContributions = append(resp.MissingContributions, domain.MemberSummary{ID: m.ID, Name: m.Name, Position: m.Position})
		}
		return resp, nil
	}

	resp.Allowed = true
	return resp, nil
}

// InitiateEarlyPayout issues the current round's payout ahead of schedule. The
// store re-checks ledger completeness under the pool lock, so the operation is
// safe against concurrent undos and double triggers; an incomplete ledger
// surfaces as an early-payout-not-allowed state error carrying the same reason
// string the status check reports.
func (s *Service) InitiateEarlyPayout(ctx context.Context, poolID uuid.UUID, req domain.InitiateEarlyPayoutRequest) (*domain.PayoutResult, error) {
	if err := s.checkRate(ctx, "early_payout:"+poolID.String(), s.limits.EarlyPayoutPerMinute, time.Minute); err != nil {
		return nil, err
	}

	pool, err := s.repo.FindPoolByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	result, err := s.issuePayout(ctx, store.IssuePayoutParams{
		PoolID:          poolID,
		Round:           pool.CurrentRound,
		RequireComplete: true,
		WasEarlyPayout:  true,
		Reason:          req.Reason,
	})
	if err != nil {
		if errors.Is(err, store.ErrRoundNotComplete) {
			return nil, fmt.Errorf("%w: %s", ErrEarlyPayoutNotAllowed, ReasonNotAllContributions)
		}
		return nil, err
	}

	log.Printf("level=info component=pool_service msg=\"early payout initiated\" pool_id=%s round=%d", poolID, result.Transaction.Round)
	return result, nil
}
