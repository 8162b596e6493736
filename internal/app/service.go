/**
 * @description
 * This file contains the core business logic for the rotation engine's
 * contribution ledger: reading the current round's status, confirming a
 * member's contribution, and undoing a confirmation. The service coordinates
 * between the repository (which serializes all pool mutations on the pool row
 * lock) and the event producer; transient serialization failures from the
 * store are retried a bounded number of times before surfacing as a conflict.
 *
 * @dependencies
 * - internal/store: Repository interface and sentinel errors.
 * - internal/domain: Aggregate models, DTOs and rotation logic.
 * - pkg/rabbitmq: Best-effort event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
	"github.com/ajopool/pool-service/pkg/rabbitmq"
)

// conflictRetryAttempts bounds how often a serialization failure is retried
// before the caller sees ErrConflict.
const conflictRetryAttempts = 3

// publishTimeout bounds the fire-and-forget event publishes so a slow broker
// never holds up a request goroutine.
const publishTimeout = 5 * time.Second

// RateLimiter guards the hot mutation endpoints. Implementations return true
// when the caller is within budget; a Redis-backed fixed window is used in
// production and tests substitute a permissive stub.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimits carries the per-minute budgets for the guarded endpoints. Values
// come from configuration; zero or negative entries fall back to the defaults.
type RateLimits struct {
	ContributionPerMinute int
	JoinPerMinute         int
	EarlyPayoutPerMinute  int
}

// DefaultRateLimits returns the budgets used when nothing is configured.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		ContributionPerMinute: 30,
		JoinPerMinute:         10,
		EarlyPayoutPerMinute:  5,
	}
}

func (l RateLimits) normalized() RateLimits {
	defaults := DefaultRateLimits()
	if l.ContributionPerMinute <= 0 {
		l.ContributionPerMinute = defaults.ContributionPerMinute
	}
	if l.JoinPerMinute <= 0 {
		l.JoinPerMinute = defaults.JoinPerMinute
	}
	if l.EarlyPayoutPerMinute <= 0 {
		l.EarlyPayoutPerMinute = defaults.EarlyPayoutPerMinute
	}
	return l
}

// Service encapsulates the business logic of the rotation engine.
type Service struct {
	repo         store.Repository
	producer     rabbitmq.Publisher
	limiter      RateLimiter
	limits       RateLimits
	shareBaseURL string
}

// NewService creates a new instance of the Service.
func NewService(repo store.Repository, producer rabbitmq.Publisher, limiter RateLimiter, shareBaseURL string, limits RateLimits) *Service {
	return &Service{
		repo:         repo,
		producer:     producer,
		limiter:      limiter,
		limits:       limits.normalized(),
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
	}
}

// retryOnConflict runs op, retrying on transient serialization failures with a
// short backoff. Anything else passes through untouched; exhausting the
// attempts yields ErrConflict. The final failure returns immediately, no
// backoff is spent on an attempt that will not happen.
func retryOnConflict(ctx context.Context, op func() error) error {
	var err error
	for attempt := 1; attempt <= conflictRetryAttempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, store.ErrSerialization) {
			return err
		}
		if attempt == conflictRetryAttempts {
			break
		}
		log.Printf("level=warn component=pool_service msg=\"serialization conflict, retrying\" attempt=%d", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

// checkRate applies the limiter if one is configured. Limiter outages fail
// open: the engine keeps serving rather than rejecting everything.
func (s *Service) checkRate(ctx context.Context, key string, limit int, window time.Duration) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		log.Printf("level=warn component=pool_service msg=\"rate limiter unavailable, failing open\" err=%v", err)
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// publishActivity fires an activity event without blocking the caller.
func (s *Service) publishActivity(routingKey string, event domain.ActivityEvent) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.producer.PublishActivityEvent(ctx, routingKey, event); err != nil {
			log.Printf("level=error component=pool_service msg=\"failed to publish activity event\" type=%s pool_id=%s err=%v", event.Type, event.PoolID, err)
		}
	}()
}

// resolveContributor maps the request's member id or email onto a roster
// member. Email lookup exists for invite-link flows where the client never
// learned the member id.
func resolveContributor(pool *domain.Pool, req domain.ConfirmContributionRequest) (*domain.Member, error) {
	if req.MemberID != nil {
		member, ok := pool.MemberByID(*req.MemberID)
		if !ok || member.Status == domain.MemberStatusRemoved {
			return nil, store.ErrMemberNotFound
		}
		return member, nil
	}
	if strings.TrimSpace(req.Email) != "" {
		member, ok := pool.ActiveMemberByEmail(req.Email)
		if !ok {
			return nil, store.ErrMemberNotFound
		}
		return member, nil
	}
	return nil, ErrMissingMemberIdentity
}

// GetContributionStatus reports the current round's full contribution picture:
// the designated recipient, one ledger row per active member, and whether the
// round is complete.
func (s *Service) GetContributionStatus(ctx context.Context, poolID uuid.UUID) (*domain.ContributionStatusResponse, error) {
	pool, err := s.repo.FindPoolByID(ctx, poolID)
	if err != nil {
		return nil, err
	}

	resp := &domain.ContributionStatusResponse{
		PoolID:             pool.ID,
		CurrentRound:       pool.CurrentRound,
		TotalRounds:        pool.TotalRounds,
		ContributionAmount: pool.ContributionAmount,
	}
	if pool.IsCompleted() {
		resp.Contributions = []domain.ContributionView{}
		return resp, nil
	}

	recipient, hasRecipient := pool.Recipient(pool.CurrentRound)
	if hasRecipient {
		resp.Recipient = &domain.MemberSummary{ID: recipient.ID, Name: recipient.Name, Position: recipient.Position}
	}

	views := make([]domain.ContributionView, 0, len(pool.Members))
	for _, m := range pool.ActiveMembers() {
		view := domain.ContributionView{
			MemberID:    m.ID,
			MemberName:  m.Name,
			Position:    m.Position,
			Status:      domain.ContributionStatusPending,
			IsRecipient: hasRecipient && m.ID == recipient.ID,
		}
		if c, ok := pool.ContributionFor(m.ID, pool.CurrentRound); ok {
			view.Status = c.Status
			view.Method = c.Method
			view.ConfirmedAt = c.ConfirmedAt
		}
		views = append(views, view)
	}
	resp.Contributions = views
	resp.AllContributionsReceived = hasRecipient && pool.IsRoundComplete(pool.CurrentRound)
	return resp, nil
}

// ConfirmContribution records a member's attestation that they paid into the
// current round, then publishes a PAYMENT_RECEIVED activity event. Confirming
// twice without an undo in between is a duplicate action; confirming after the
// round's payout went out fails because the ledger is frozen.
func (s *Service) ConfirmContribution(ctx context.Context, poolID uuid.UUID, req domain.ConfirmContributionRequest) (*domain.Contribution, error) {
	if err := s.checkRate(ctx, "contribute:"+poolID.String(), s.limits.ContributionPerMinute, time.Minute); err != nil {
		return nil, err
	}

	pool, err := s.repo.FindPoolByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	member, err := resolveContributor(pool, req)
	if err != nil {
		return nil, err
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "manual"
	}

	var contribution *domain.Contribution
	err = retryOnConflict(ctx, func() error {
		var opErr error
		contribution, opErr = s.repo.ConfirmContribution(ctx, poolID, member.ID, pool.CurrentRound, method, req.ExternalTxID)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=pool_service msg=\"contribution confirmed\" pool_id=%s member_id=%s round=%d method=%s", poolID, member.ID, contribution.Round, method)

	memberID := member.ID
	s.publishActivity(rabbitmq.RouteActivityPaymentReceived, domain.ActivityEvent{
		Type:       domain.EventPaymentReceived,
		PoolID:     poolID,
		MemberID:   &memberID,
		MemberName: member.Name,
		Amount:     pool.ContributionAmount,
		Round:      contribution.Round,
		Timestamp:  time.Now().UTC(),
	})

	return contribution, nil
}

// UndoContribution reverts a member's confirmed attestation for the current
// round, restoring the pending state. Only confirmed attestations can be
// undone, and only while the round's payout has not been issued.
func (s *Service) UndoContribution(ctx context.Context, poolID, memberID uuid.UUID) error {
	if err := s.checkRate(ctx, "contribute:"+poolID.String(), s.limits.ContributionPerMinute, time.Minute); err != nil {
		return err
	}

	pool, err := s.repo.FindPoolByID(ctx, poolID)
	if err != nil {
		return err
	}

	err = retryOnConflict(ctx, func() error {
		return s.repo.UndoContribution(ctx, poolID, memberID, pool.CurrentRound)
	})
	if err != nil {
		return err
	}

	log.Printf("level=info component=pool_service msg=\"contribution undone\" pool_id=%s member_id=%s round=%d", poolID, memberID, pool.CurrentRound)
	return nil
}
