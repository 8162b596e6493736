/**
 * @description
 * Natural (scheduled) payout issuance. A payout closes the current round:
 * the recipient is derived from the roster positions, the immutable payout
 * record is written, and the pool advances to the next round or completes.
 * The store performs all of this atomically under the pool lock; this layer
 * drives the operation, retries transient conflicts, and publishes the
 * PAYOUT_SENT / ROUND_STARTED activity events plus the round-advanced
 * notification.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
	"github.com/ajopool/pool-service/pkg/rabbitmq"
)

// IssuePayout issues the current round's payout on the natural schedule. The
// ledger must be complete; an incomplete round fails with the store's
// round-not-complete error. Calling twice for the same round is idempotent in
// effect: the second call reports a duplicate action and no second record is
// ever written.
func (s *Service) IssuePayout(ctx context.Context, poolID uuid.UUID, round int) (*domain.PayoutResult, error) {
	return s.issuePayout(ctx, store.IssuePayoutParams{
		PoolID:          poolID,
		Round:           round,
		RequireComplete: true,
	})
}

func (s *Service) issuePayout(ctx context.Context, params store.IssuePayoutParams) (*domain.PayoutResult, error) {
	var result *store.IssuePayoutResult
	err := retryOnConflict(ctx, func() error {
		var opErr error
		result, opErr = s.repo.IssuePayout(ctx, params)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	payout := result.Transaction
	log.Printf("level=info component=pool_service msg=\"payout issued\" pool_id=%s round=%d recipient_id=%s amount=%d early=%t complete=%t",
		payout.PoolID, payout.Round, payout.RecipientMemberID, payout.Amount, payout.WasEarlyPayout, result.IsComplete)

	s.publishPayoutEvents(payout, result)

	return &domain.PayoutResult{
		Transaction: payout,
		NextRound:   result.NextRound,
		IsComplete:  result.IsComplete,
	}, nil
}

// publishPayoutEvents emits the activity-feed and notification events for an
// issued payout. All best-effort.
func (s *Service) publishPayoutEvents(payout *domain.Transaction, result *store.IssuePayoutResult) {
	recipientID := payout.RecipientMemberID
	s.publishActivity(rabbitmq.RouteActivityPayoutSent, domain.ActivityEvent{
		Type:       domain.EventPayoutSent,
		PoolID:     payout.PoolID,
		MemberID:   &recipientID,
		MemberName: payout.RecipientName,
		Amount:     payout.Amount,
		Round:      payout.Round,
		Timestamp:  time.Now().UTC(),
	})
	if !result.IsComplete {
		s.publishActivity(rabbitmq.RouteActivityRoundStarted, domain.ActivityEvent{
			Type:      domain.EventRoundStarted,
			PoolID:    payout.PoolID,
			Round:     result.NextRound,
			Timestamp: time.Now().UTC(),
		})
	}

	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		issued := domain.PayoutIssuedEvent{
			PoolID:         payout.PoolID,
			PayoutID:       payout.ID,
			Round:          payout.Round,
			RecipientID:    payout.RecipientMemberID,
			RecipientName:  payout.RecipientName,
			Amount:         payout.Amount,
			WasEarlyPayout: payout.WasEarlyPayout,
			Timestamp:      time.Now().UTC(),
		}
		if err := s.producer.Publish(ctx, rabbitmq.EventsExchange, rabbitmq.RouteNotifyPayoutIssued, issued); err != nil {
			log.Printf("level=error component=pool_service msg=\"failed to publish payout issued event\" pool_id=%s round=%d err=%v", payout.PoolID, payout.Round, err)
		}

		event := domain.RoundAdvancedEvent{
			PoolID:      payout.PoolID,
			Round:       payout.Round,
			NextRound:   result.NextRound,
			IsComplete:  result.IsComplete,
			PayoutID:    payout.ID,
			RecipientID: payout.RecipientMemberID,
			Amount:      payout.Amount,
			Timestamp:   time.Now().UTC(),
		}
		if err := s.producer.PublishRoundAdvancedEvent(ctx, event); err != nil {
			log.Printf("level=error component=pool_service msg=\"failed to publish round advanced event\" pool_id=%s round=%d err=%v", payout.PoolID, payout.Round, err)
		}
	}()
}
