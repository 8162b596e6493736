package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
)

type stubFinder struct {
	due []uuid.UUID
}

func (s *stubFinder) FindPoolsDueForPayout(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	return s.due, nil
}

type stubIssuer struct {
	pools  map[uuid.UUID]*domain.Pool
	errs   map[uuid.UUID]error
	issued []uuid.UUID
}

func (s *stubIssuer) GetPool(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	pool, ok := s.pools[poolID]
	if !ok {
		return nil, store.ErrPoolNotFound
	}
	return pool, nil
}

func (s *stubIssuer) IssuePayout(ctx context.Context, poolID uuid.UUID, round int) (*domain.PayoutResult, error) {
	if err, ok := s.errs[poolID]; ok {
		return nil, err
	}
	s.issued = append(s.issued, poolID)
	return &domain.PayoutResult{
		Transaction: &domain.Transaction{ID: uuid.New(), PoolID: poolID, Round: round},
		NextRound:   round + 1,
	}, nil
}

func activePool(round int) *domain.Pool {
	return &domain.Pool{
		ID:           uuid.New(),
		Status:       domain.PoolStatusActive,
		CurrentRound: round,
		TotalRounds:  4,
	}
}

func TestSweepDuePayouts(t *testing.T) {
	ready := activePool(2)
	incomplete := activePool(1)
	cancelled := activePool(1)
	cancelled.Status = domain.PoolStatusCancelled

	issuer := &stubIssuer{
		pools: map[uuid.UUID]*domain.Pool{
			ready.ID:      ready,
			incomplete.ID: incomplete,
			cancelled.ID:  cancelled,
		},
		errs: map[uuid.UUID]error{
			incomplete.ID: store.ErrRoundNotComplete,
		},
	}
	finder := &stubFinder{due: []uuid.UUID{ready.ID, incomplete.ID, cancelled.ID}}

	jobs := NewJobs(finder, issuer, slog.Default())
	jobs.SweepDuePayouts()

	if len(issuer.issued) != 1 || issuer.issued[0] != ready.ID {
		t.Fatalf("expected exactly the ready pool to pay out, got %+v", issuer.issued)
	}
}

func TestSweepDuePayoutsToleratesRaces(t *testing.T) {
	pool := activePool(3)
	issuer := &stubIssuer{
		pools: map[uuid.UUID]*domain.Pool{pool.ID: pool},
		errs:  map[uuid.UUID]error{pool.ID: store.ErrAlreadyPaid},
	}
	finder := &stubFinder{due: []uuid.UUID{pool.ID}}

	jobs := NewJobs(finder, issuer, slog.Default())
	// Must not panic or issue anything; the race loser just moves on.
	jobs.SweepDuePayouts()

	if len(issuer.issued) != 0 {
		t.Fatalf("expected no payouts issued, got %+v", issuer.issued)
	}
}
