/**
 * @description
 * Pool lifecycle and roster management: creating a pool with its admin,
 * joining via the shareable link, reordering the payout positions, cancelling,
 * and reading the aggregate. Position assignment and permutation validation
 * live in the store under the pool lock; this layer validates request shapes
 * and publishes the roster activity events.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/pkg/rabbitmq"
)

func validateJoinRequest(req domain.JoinRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return ErrMissingMemberDetails
	}
	return nil
}

// CreatePool validates the pool parameters, persists the pool with its admin
// member at position 1, and derives the shareable invite link and QR content.
func (s *Service) CreatePool(ctx context.Context, req domain.CreatePoolRequest) (*domain.Pool, error) {
	if req.ContributionAmount < domain.MinContributionAmount || req.ContributionAmount > domain.MaxContributionAmount {
		return nil, ErrInvalidContributionAmount
	}
	if !domain.ValidFrequency(req.Frequency) {
		return nil, ErrInvalidFrequency
	}
	if req.TotalRounds <= 0 {
		return nil, ErrInvalidTotalRounds
	}
	if req.MemberCount <= 0 {
		return nil, ErrInvalidMemberCount
	}
	if err := validateJoinRequest(req.Admin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: pool name is required", ErrValidation)
	}

	now := time.Now().UTC()
	pool := &domain.Pool{
		ID:                 uuid.New(),
		Name:               name,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		TotalRounds:        req.TotalRounds,
		CurrentRound:       1,
		MemberCount:        req.MemberCount,
		Status:             domain.PoolStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	pool.ShareableLink = fmt.Sprintf("%s/pools/%s/join", s.shareBaseURL, pool.ID)
	pool.QRCodeContent = pool.ShareableLink

	admin := &domain.Member{
		ID:        uuid.New(),
		PoolID:    pool.ID,
		AccountID: req.Admin.AccountID,
		Name:      strings.TrimSpace(req.Admin.Name),
		Email:     strings.TrimSpace(req.Admin.Email),
		Role:      domain.MemberRoleAdmin,
		Position:  1,
		Status:    domain.MemberStatusCurrent,
		CreatedAt: now,
	}

	if err := s.repo.CreatePool(ctx, pool, admin); err != nil {
		return nil, err
	}
	pool.Members = []domain.Member{*admin}

	log.Printf("level=info component=pool_service msg=\"pool created\" pool_id=%s rounds=%d members=%d frequency=%s", pool.ID, pool.TotalRounds, pool.MemberCount, pool.Frequency)
	return pool, nil
}

// GetPool loads the full pool aggregate.
func (s *Service) GetPool(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	return s.repo.FindPoolByID(ctx, poolID)
}

// JoinPool adds a member to the roster at the lowest free position and
// publishes a MEMBER_JOINED activity event. Joining a full or inactive pool
// fails.
func (s *Service) JoinPool(ctx context.Context, poolID uuid.UUID, req domain.JoinRequest) (*domain.Member, error) {
	if err := s.checkRate(ctx, "join:"+poolID.String(), s.limits.JoinPerMinute, time.Minute); err != nil {
		return nil, err
	}
	if err := validateJoinRequest(req); err != nil {
		return nil, err
	}

	member := &domain.Member{
		ID:        uuid.New(),
		PoolID:    poolID,
		AccountID: req.AccountID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Role:      domain.MemberRoleMember,
		Status:    domain.MemberStatusUpcoming,
		CreatedAt: time.Now().UTC(),
	}

	err := retryOnConflict(ctx, func() error {
		return s.repo.AddMember(ctx, poolID, member)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=pool_service msg=\"member joined\" pool_id=%s member_id=%s position=%d", poolID, member.ID, member.Position)

	memberID := member.ID
	s.publishActivity(rabbitmq.RouteActivityMemberJoined, domain.ActivityEvent{
		Type:       domain.EventMemberJoined,
		PoolID:     poolID,
		MemberID:   &memberID,
		MemberName: member.Name,
		Metadata:   map[string]string{"position": fmt.Sprintf("%d", member.Position)},
		Timestamp:  time.Now().UTC(),
	})

	return member, nil
}

// ReorderMembers replaces the payout order with the given permutation of the
// active members' ids. Past payouts are untouched; recipients of unpaid rounds
// are re-derived from the new positions.
func (s *Service) ReorderMembers(ctx context.Context, poolID uuid.UUID, req domain.ReorderRequest) (*domain.Pool, error) {
	if len(req.MemberIDs) == 0 {
		return nil, fmt.Errorf("%w: member order is required", ErrValidation)
	}

	err := retryOnConflict(ctx, func() error {
		return s.repo.ReorderMembers(ctx, poolID, req.MemberIDs)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=pool_service msg=\"roster reordered\" pool_id=%s members=%d", poolID, len(req.MemberIDs))
	return s.repo.FindPoolByID(ctx, poolID)
}

// CancelPool stops an active pool. Cancelled pools accept no further
// contributions or payouts.
func (s *Service) CancelPool(ctx context.Context, poolID uuid.UUID) error {
	err := retryOnConflict(ctx, func() error {
		return s.repo.CancelPool(ctx, poolID)
	})
	if err != nil {
		return err
	}
	log.Printf("level=info component=pool_service msg=\"pool cancelled\" pool_id=%s", poolID)
	return nil
}

// ListPayouts returns the pool's issued payout history, most recent round
// first.
func (s *Service) ListPayouts(ctx context.Context, poolID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.repo.FindPoolByID(ctx, poolID); err != nil {
		return nil, err
	}
	return s.repo.ListPayouts(ctx, poolID)
}
