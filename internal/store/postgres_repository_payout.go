/**
 * @description
 * Atomic contribution-ledger and payout operations for the PostgreSQL
 * repository. These are the operations where concurrent requests can race
 * (two confirmations, a confirmation against an early payout, two payout
 * attempts for the same round), so each one locks the pool row first and
 * re-validates everything inside the transaction. The unique index on
 * payouts(pool_id, round) is the final backstop: even a bug in the locking
 * could never produce two payouts for one round.
 *
 * @dependencies
 * - context, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: Database transactions and row locking.
 * - internal/domain: Rotation logic evaluated on the locked snapshot.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ajopool/pool-service/internal/domain"
)

// ConfirmContribution marks the (member, round) attestation as confirmed.
// Fails when the member has already confirmed and not undone, or when the
// round's payout has already been issued.
func (r *PostgresRepository) ConfirmContribution(ctx context.Context, poolID, memberID uuid.UUID, round int, method string, externalTxID *string) (*domain.Contribution, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	pool, err := lockPool(ctx, tx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.PoolStatusActive {
		return nil, ErrPoolNotActive
	}

	pool.Members, err = loadMembersTx(ctx, tx, poolID)
	if err != nil {
		return nil, err
	}
	member, ok := pool.MemberByID(memberID)
	if !ok || member.Status == domain.MemberStatusRemoved {
		return nil, ErrMemberNotFound
	}

	closed, err := payoutExistsTx(ctx, tx, poolID, round)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrRoundClosed
	}

	var existingStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM contributions WHERE pool_id = $1 AND member_id = $2 AND round = $3`,
		poolID, memberID, round,
	).Scan(&existingStatus)
	if err != nil && err != pgx.ErrNoRows {
		return nil, classify(fmt.Errorf("failed to check existing contribution: %w", err))
	}
	if existingStatus == domain.ContributionStatusConfirmed {
		return nil, ErrAlreadyContributed
	}

	now := time.Now().UTC()
	contribution := domain.NewConfirmedContribution(poolID, memberID, round, method, now)
	contribution.ExternalTxID = externalTxID

	upsert := `
		INSERT INTO contributions (pool_id, member_id, round, status, method, confirmed_at, external_transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pool_id, member_id, round)
		DO UPDATE SET status = EXCLUDED.status,
		              method = EXCLUDED.method,
		              confirmed_at = EXCLUDED.confirmed_at,
		              external_transaction_id = EXCLUDED.external_transaction_id,
		              failure_reason = NULL
	`
	_, err = tx.Exec(ctx, upsert,
		poolID, memberID, round, contribution.Status, contribution.Method,
		contribution.ConfirmedAt, contribution.ExternalTxID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to upsert contribution: %w", err))
	}

	if err := bumpPoolVersion(ctx, tx, poolID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return &contribution, nil
}

// UndoContribution reverts a confirmed attestation back to pending. Once the
// round's payout has been issued the ledger is frozen and undo fails.
func (r *PostgresRepository) UndoContribution(ctx context.Context, poolID, memberID uuid.UUID, round int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	pool, err := lockPool(ctx, tx, poolID)
	if err != nil {
		return err
	}
	if pool.Status != domain.PoolStatusActive {
		return ErrPoolNotActive
	}

	closed, err := payoutExistsTx(ctx, tx, poolID, round)
	if err != nil {
		return err
	}
	if closed {
		return ErrRoundClosed
	}

	result, err := tx.Exec(ctx,
		`UPDATE contributions
		 SET status = $1, method = NULL, confirmed_at = NULL, external_transaction_id = NULL
		 WHERE pool_id = $2 AND member_id = $3 AND round = $4 AND status = $5`,
		domain.ContributionStatusPending, poolID, memberID, round, domain.ContributionStatusConfirmed,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to undo contribution: %w", err))
	}
	if result.RowsAffected() == 0 {
		// Distinguish "no such member" from "nothing confirmed to undo".
		pool.Members, err = loadMembersTx(ctx, tx, poolID)
		if err != nil {
			return err
		}
		if m, ok := pool.MemberByID(memberID); !ok || m.Status == domain.MemberStatusRemoved {
			return ErrMemberNotFound
		}
		return ErrContributionNotConfirmed
	}

	if err := bumpPoolVersion(ctx, tx, poolID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// IssuePayout atomically closes a round: it validates the pool and round under
// the pool lock, optionally re-checks ledger completeness, inserts the payout
// record with the recipient snapshot, and advances the round counter (flipping
// the pool to completed after the final round). Exactly one payout can ever be
// created per round; a second attempt reports ErrAlreadyPaid.
func (r *PostgresRepository) IssuePayout(ctx context.Context, params IssuePayoutParams) (*IssuePayoutResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	pool, err := lockPool(ctx, tx, params.PoolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != domain.PoolStatusActive {
		return nil, ErrPoolNotActive
	}

	closed, err := payoutExistsTx(ctx, tx, params.PoolID, params.Round)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrAlreadyPaid
	}
	if params.Round != pool.CurrentRound {
		return nil, ErrRoundMismatch
	}

	pool.Members, err = loadMembersTx(ctx, tx, params.PoolID)
	if err != nil {
		return nil, err
	}
	pool.Contributions, err = loadContributionsTx(ctx, tx, params.PoolID, params.Round)
	if err != nil {
		return nil, err
	}

	recipient, ok := pool.Recipient(params.Round)
	if !ok {
		return nil, ErrNoRecipient
	}
	if params.RequireComplete && !pool.IsRoundComplete(params.Round) {
		return nil, ErrRoundNotComplete
	}

	payout := domain.Transaction{
		ID:                uuid.New(),
		PoolID:            params.PoolID,
		Round:             params.Round,
		RecipientMemberID: recipient.ID,
		RecipientName:     recipient.Name,
		Amount:            pool.PayoutAmount(),
		WasEarlyPayout:    params.WasEarlyPayout,
		Reason:            params.Reason,
	}
	insertQuery := `
		INSERT INTO payouts (id, pool_id, round, recipient_member_id, recipient_name, amount,
		                     was_early_payout, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING issued_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		payout.ID, payout.PoolID, payout.Round, payout.RecipientMemberID, payout.RecipientName,
		payout.Amount, payout.WasEarlyPayout, payout.Reason,
	).Scan(&payout.IssuedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyPaid
		}
		return nil, classify(fmt.Errorf("failed to insert payout: %w", err))
	}

	nextRound := params.Round + 1
	newStatus := pool.Status
	if nextRound > pool.TotalRounds {
		newStatus = domain.PoolStatusCompleted
	}

	_, err = tx.Exec(ctx,
		`UPDATE pools SET current_round = $1, status = $2, version = version + 1, updated_at = NOW() WHERE id = $3`,
		nextRound, newStatus, params.PoolID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to advance round: %w", err))
	}

	// Recipient rotation bookkeeping: the paid member is done, the next
	// recipient becomes current.
	if err := refreshMemberRotationStatus(ctx, tx, pool, recipient.ID, nextRound); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return &IssuePayoutResult{
		Transaction: &payout,
		NextRound:   nextRound,
		IsComplete:  nextRound > pool.TotalRounds,
	}, nil
}

// refreshMemberRotationStatus marks the paid recipient completed and promotes
// the next round's recipient to current.
func refreshMemberRotationStatus(ctx context.Context, tx pgx.Tx, pool *domain.Pool, paidMemberID uuid.UUID, nextRound int) error {
	_, err := tx.Exec(ctx,
		`UPDATE pool_members SET status = $1 WHERE id = $2 AND status <> $3`,
		domain.MemberStatusCompleted, paidMemberID, domain.MemberStatusRemoved,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to mark recipient completed: %w", err))
	}

	if nextRound > pool.TotalRounds {
		return nil
	}
	next, ok := pool.Recipient(nextRound)
	if !ok {
		return nil
	}
	// The next recipient may already be completed when the rotation wraps
	// around (more rounds than members); they become current again for their
	// repeat round.
	_, err = tx.Exec(ctx,
		`UPDATE pool_members SET status = $1 WHERE id = $2 AND status <> $3`,
		domain.MemberStatusCurrent, next.ID, domain.MemberStatusRemoved,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to promote next recipient: %w", err))
	}
	return nil
}
