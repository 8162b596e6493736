/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the pool-service. The interface keeps
 * the rotation engine's business logic decoupled from PostgreSQL so the app
 * layer can be tested against stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
)

// IssuePayoutParams carries everything the atomic payout operation needs. When
// RequireComplete is set the contribution ledger is re-checked under the pool
// lock, which closes the race between a late undo and an early-payout trigger.
type IssuePayoutParams struct {
	PoolID          uuid.UUID
	Round           int
	RequireComplete bool
	WasEarlyPayout  bool
	Reason          *string
}

// IssuePayoutResult reports the issued payout record together with the round
// transition it caused.
type IssuePayoutResult struct {
	Transaction *domain.Transaction
	NextRound   int
	IsComplete  bool
}

// Repository defines the set of methods for interacting with the database.
// Every mutating method serializes on the pool row (SELECT ... FOR UPDATE) so
// a pool always has exactly one writer at a time.
type Repository interface {
	// Pool lifecycle
	CreatePool(ctx context.Context, pool *domain.Pool, admin *domain.Member) error
	FindPoolByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error)
	CancelPool(ctx context.Context, poolID uuid.UUID) error

	// Roster
	AddMember(ctx context.Context, poolID uuid.UUID, member *domain.Member) error
	ReorderMembers(ctx context.Context, poolID uuid.UUID, order []uuid.UUID) error

	// Contribution ledger
	ConfirmContribution(ctx context.Context, poolID, memberID uuid.UUID, round int, method string, externalTxID *string) (*domain.Contribution, error)
	UndoContribution(ctx context.Context, poolID, memberID uuid.UUID, round int) error

	// Payouts
	IssuePayout(ctx context.Context, params IssuePayoutParams) (*IssuePayoutResult, error)
	ListPayouts(ctx context.Context, poolID uuid.UUID) ([]domain.Transaction, error)

	// Scheduling
	FindPoolsDueForPayout(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}
