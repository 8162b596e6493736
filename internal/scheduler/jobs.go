/**
 * @description
 * Scheduled job implementations for the pool-service. The payout sweep finds
 * pools whose current round has reached its natural payout date and issues the
 * payout for each, skipping rounds whose contribution ledger is incomplete.
 */
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
)

// PayoutIssuer is the slice of the application service the sweep needs.
type PayoutIssuer interface {
	GetPool(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error)
	IssuePayout(ctx context.Context, poolID uuid.UUID, round int) (*domain.PayoutResult, error)
}

// DueFinder locates pools whose current round's payout date has arrived.
type DueFinder interface {
	FindPoolsDueForPayout(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	finder DueFinder
	issuer PayoutIssuer
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(finder DueFinder, issuer PayoutIssuer, logger *slog.Logger) *Jobs {
	return &Jobs{
		finder: finder,
		issuer: issuer,
		logger: logger,
	}
}

// SweepDuePayouts issues the current round's payout for every pool whose
// natural schedule date has passed. An incomplete ledger is expected and only
// logged; members who never confirmed simply delay their pool's round.
func (j *Jobs) SweepDuePayouts() {
	j.logger.Info("starting payout sweep job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	poolIDs, err := j.finder.FindPoolsDueForPayout(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("failed to find due pools", "error", err)
		return
	}

	issued, skipped := 0, 0
	for _, poolID := range poolIDs {
		pool, err := j.issuer.GetPool(ctx, poolID)
		if err != nil {
			j.logger.Error("failed to load due pool", "pool_id", poolID, "error", err)
			continue
		}
		if pool.Status != domain.PoolStatusActive || pool.IsCompleted() {
			continue
		}

		_, err = j.issuer.IssuePayout(ctx, poolID, pool.CurrentRound)
		switch {
		case err == nil:
			issued++
		case errors.Is(err, store.ErrRoundNotComplete):
			skipped++
			j.logger.Info("round not complete, payout deferred", "pool_id", poolID, "round", pool.CurrentRound)
		case errors.Is(err, store.ErrAlreadyPaid):
			// Another instance won the race; nothing to do.
		default:
			j.logger.Error("failed to issue scheduled payout", "pool_id", poolID, "round", pool.CurrentRound, "error", err)
		}
	}

	j.logger.Info("payout sweep job finished", "due", len(poolIDs), "issued", issued, "deferred", skipped)
}
