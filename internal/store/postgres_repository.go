/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for pool lifecycle and roster operations. All mutating queries run inside a
 * transaction that first locks the pool row with SELECT ... FOR UPDATE, which
 * makes each pool a single-writer resource.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajopool/pool-service/internal/domain"
)

var (
	ErrPoolNotFound             = errors.New("pool not found")
	ErrMemberNotFound           = errors.New("member not found")
	ErrPoolNotActive            = errors.New("pool is not active")
	ErrPoolFull                 = errors.New("pool already has its full member count")
	ErrPositionTaken            = errors.New("position is already taken")
	ErrDuplicateEmail           = errors.New("a member with this email already exists in the pool")
	ErrAlreadyContributed       = errors.New("member has already contributed for this round")
	ErrContributionNotConfirmed = errors.New("no confirmed contribution to undo")
	ErrRoundClosed              = errors.New("round payout has already been issued")
	ErrAlreadyPaid              = errors.New("payout already issued for this round")
	ErrRoundMismatch            = errors.New("round is not the pool's current round")
	ErrRoundNotComplete         = errors.New("not all contributions have been received")
	ErrNoRecipient              = errors.New("no active member holds the recipient position")
	ErrInvalidReorder           = errors.New("reorder must be a permutation of the active members")
	ErrSerialization            = errors.New("concurrent update conflict")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isSerializationError reports whether err is a transient conflict worth
// retrying: serialization failure (40001) or deadlock detected (40P01).
func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// classify maps low-level pgx failures onto the repository's sentinel errors
// so the app layer can retry transient conflicts.
func classify(err error) error {
	if isSerializationError(err) {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return err
}

// lockPool reads and row-locks the pool header inside tx. Every mutating
// operation goes through this before validating or writing anything.
func lockPool(ctx context.Context, tx pgx.Tx, poolID uuid.UUID) (*domain.Pool, error) {
	var p domain.Pool
	query := `
		SELECT id, name, contribution_amount, frequency, total_rounds, current_round,
		       member_count, status, COALESCE(shareable_link, ''), COALESCE(qr_code_content, ''),
		       version, created_at, updated_at
		FROM pools
		WHERE id = $1
		FOR UPDATE
	`
	err := tx.QueryRow(ctx, query, poolID).Scan(
		&p.ID, &p.Name, &p.ContributionAmount, &p.Frequency, &p.TotalRounds, &p.CurrentRound,
		&p.MemberCount, &p.Status, &p.ShareableLink, &p.QRCodeContent,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPoolNotFound
		}
		return nil, classify(fmt.Errorf("failed to lock pool: %w", err))
	}
	return &p, nil
}

// bumpPoolVersion records that a mutation happened on the aggregate.
func bumpPoolVersion(ctx context.Context, tx pgx.Tx, poolID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`UPDATE pools SET version = version + 1, updated_at = NOW() WHERE id = $1`,
		poolID,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to bump pool version: %w", err))
	}
	return nil
}

// loadMembersTx fetches the full roster for a pool within tx, ordered by position.
func loadMembersTx(ctx context.Context, tx pgx.Tx, poolID uuid.UUID) ([]domain.Member, error) {
	rows, err := tx.Query(ctx, memberSelectQuery+` WHERE pool_id = $1 ORDER BY position`, poolID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load members: %w", err))
	}
	defer rows.Close()
	return scanMembers(rows)
}

const memberSelectQuery = `
	SELECT id, pool_id, account_id, name, btrim(email), role, position, status, created_at
	FROM pool_members`

func scanMembers(rows pgx.Rows) ([]domain.Member, error) {
	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.PoolID, &m.AccountID, &m.Name, &m.Email, &m.Role, &m.Position, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// loadContributionsTx fetches the contribution ledger for one round within tx.
func loadContributionsTx(ctx context.Context, tx pgx.Tx, poolID uuid.UUID, round int) ([]domain.Contribution, error) {
	query := `
		SELECT pool_id, member_id, round, status, method, confirmed_at, external_transaction_id, failure_reason
		FROM contributions
		WHERE pool_id = $1 AND round = $2
	`
	rows, err := tx.Query(ctx, query, poolID, round)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to load contributions: %w", err))
	}
	defer rows.Close()

	var contributions []domain.Contribution
	for rows.Next() {
		var c domain.Contribution
		if err := rows.Scan(&c.PoolID, &c.MemberID, &c.Round, &c.Status, &c.Method, &c.ConfirmedAt, &c.ExternalTxID, &c.FailureReason); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}
	return contributions, nil
}

// payoutExistsTx reports whether a payout has already been issued for the round.
func payoutExistsTx(ctx context.Context, tx pgx.Tx, poolID uuid.UUID, round int) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payouts WHERE pool_id = $1 AND round = $2)`,
		poolID, round,
	).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("failed to check payout existence: %w", err))
	}
	return exists, nil
}

// CreatePool inserts a new pool together with its admin member, who always
// takes position 1.
func (r *PostgresRepository) CreatePool(ctx context.Context, pool *domain.Pool, admin *domain.Member) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pools (id, name, contribution_amount, frequency, total_rounds, current_round,
		                   member_count, status, shareable_link, qr_code_content, version)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8, $9, 1)
		RETURNING current_round, version, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		pool.ID, pool.Name, pool.ContributionAmount, pool.Frequency, pool.TotalRounds,
		pool.MemberCount, pool.Status, nullable(pool.ShareableLink), nullable(pool.QRCodeContent),
	).Scan(&pool.CurrentRound, &pool.Version, &pool.CreatedAt, &pool.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to insert pool: %w", err))
	}

	admin.PoolID = pool.ID
	admin.Role = domain.MemberRoleAdmin
	admin.Position = 1
	admin.Status = domain.MemberStatusCurrent
	if err := insertMemberTx(ctx, tx, admin); err != nil {
		return err
	}
	pool.Members = []domain.Member{*admin}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func insertMemberTx(ctx context.Context, tx pgx.Tx, m *domain.Member) error {
	query := `
		INSERT INTO pool_members (id, pool_id, account_id, name, email, role, position, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, query,
		m.ID, m.PoolID, m.AccountID, m.Name, m.Email, m.Role, m.Position, m.Status,
	).Scan(&m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return classify(fmt.Errorf("failed to insert member: %w", err))
	}
	return nil
}

// FindPoolByID loads the full pool aggregate: header, roster, the current
// round's contribution ledger, and all issued payouts. Read-only, no locks.
func (r *PostgresRepository) FindPoolByID(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) {
	var p domain.Pool
	query := `
		SELECT id, name, contribution_amount, frequency, total_rounds, current_round,
		       member_count, status, COALESCE(shareable_link, ''), COALESCE(qr_code_content, ''),
		       version, created_at, updated_at
		FROM pools
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, poolID).Scan(
		&p.ID, &p.Name, &p.ContributionAmount, &p.Frequency, &p.TotalRounds, &p.CurrentRound,
		&p.MemberCount, &p.Status, &p.ShareableLink, &p.QRCodeContent,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	rows, err := r.db.Query(ctx, memberSelectQuery+` WHERE pool_id = $1 ORDER BY position`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	p.Members, err = scanMembers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	contribQuery := `
		SELECT pool_id, member_id, round, status, method, confirmed_at, external_transaction_id, failure_reason
		FROM contributions
		WHERE pool_id = $1
		ORDER BY round, member_id
	`
	cRows, err := r.db.Query(ctx, contribQuery, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contributions: %w", err)
	}
	defer cRows.Close()
	for cRows.Next() {
		var c domain.Contribution
		if err := cRows.Scan(&c.PoolID, &c.MemberID, &c.Round, &c.Status, &c.Method, &c.ConfirmedAt, &c.ExternalTxID, &c.FailureReason); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		p.Contributions = append(p.Contributions, c)
	}
	if err := cRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contributions: %w", err)
	}

	p.Payouts, err = r.ListPayouts(ctx, poolID)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// CancelPool marks an active pool as cancelled. Completed or already-cancelled
// pools cannot transition.
func (r *PostgresRepository) CancelPool(ctx context.Context, poolID uuid.UUID) error {
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

	_, err = tx.Exec(ctx,
		`UPDATE pools SET status = $1, version = version + 1, updated_at = NOW() WHERE id = $2`,
		domain.PoolStatusCancelled, poolID,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to cancel pool: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// AddMember appends a member to the roster under the pool lock, assigning the
// next free position. The partial unique indexes on (pool_id, lower(email))
// and (pool_id, position) are the hard backstop against double joins.
func (r *PostgresRepository) AddMember(ctx context.Context, poolID uuid.UUID, member *domain.Member) error {
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

	pool.Members, err = loadMembersTx(ctx, tx, poolID)
	if err != nil {
		return err
	}
	// Removed members keep their rows but free up their email, matching the
	// partial unique index.
	if _, exists := pool.ActiveMemberByEmail(member.Email); exists {
		return ErrDuplicateEmail
	}

	position, ok := pool.NextFreePosition()
	if !ok {
		return ErrPoolFull
	}

	member.PoolID = poolID
	member.Position = position
	if member.Role == "" {
		member.Role = domain.MemberRoleMember
	}
	if member.Status == "" {
		member.Status = domain.MemberStatusUpcoming
	}
	if err := insertMemberTx(ctx, tx, member); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return err
		}
		if isUniqueViolation(err) {
			return ErrPositionTaken
		}
		return err
	}

	if err := bumpPoolVersion(ctx, tx, poolID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// ReorderMembers renumbers the active roster to match the given order. The
// order must be a full permutation of the active members' ids. Issued payouts
// are untouched: they carry their own recipient snapshot.
func (r *PostgresRepository) ReorderMembers(ctx context.Context, poolID uuid.UUID, order []uuid.UUID) error {
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

	pool.Members, err = loadMembersTx(ctx, tx, poolID)
	if err != nil {
		return err
	}
	if !pool.IsReorderPermutation(order) {
		return ErrInvalidReorder
	}

	// Two passes: park every position out of range first so the unique index
	// never sees a transient collision while rows swap places.
	for i, memberID := range order {
		_, err := tx.Exec(ctx,
			`UPDATE pool_members SET position = $1 WHERE id = $2 AND pool_id = $3`,
			-(i + 1), memberID, poolID,
		)
		if err != nil {
			return classify(fmt.Errorf("failed to park member position: %w", err))
		}
	}
	for i, memberID := range order {
		_, err := tx.Exec(ctx,
			`UPDATE pool_members SET position = $1 WHERE id = $2 AND pool_id = $3`,
			i+1, memberID, poolID,
		)
		if err != nil {
			return classify(fmt.Errorf("failed to update member position: %w", err))
		}
	}

	if err := bumpPoolVersion(ctx, tx, poolID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// ListPayouts returns all issued payout records for a pool, oldest round first.
func (r *PostgresRepository) ListPayouts(ctx context.Context, poolID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, pool_id, round, recipient_member_id, recipient_name, amount,
		       was_early_payout, reason, issued_at
		FROM payouts
		WHERE pool_id = $1
		ORDER BY round
	`
	rows, err := r.db.Query(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.PoolID, &t.Round, &t.RecipientMemberID, &t.RecipientName,
			&t.Amount, &t.WasEarlyPayout, &t.Reason, &t.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// FindPoolsDueForPayout returns ids of active pools whose current round has
// reached its natural schedule date: one frequency interval after the previous
// round's payout (or after pool creation for round one).
func (r *PostgresRepository) FindPoolsDueForPayout(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT p.id
		FROM pools p
		LEFT JOIN payouts t ON t.pool_id = p.id AND t.round = p.current_round - 1
		WHERE p.status = 'active'
		  AND COALESCE(t.issued_at, p.created_at) + CASE p.frequency
		        WHEN 'weekly'   THEN INTERVAL '7 days'
		        WHEN 'biweekly' THEN INTERVAL '14 days'
		        WHEN 'monthly'  THEN INTERVAL '1 month'
		      END <= $1
		ORDER BY p.created_at
	`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to find due pools: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pool id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due pools: %w", err)
	}
	return ids, nil
}
