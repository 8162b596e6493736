package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ajopool/pool-service/internal/domain"
	"github.com/ajopool/pool-service/internal/store"
)

func validCreateRequest() domain.CreatePoolRequest {
	return domain.CreatePoolRequest{
		Name:               "lunch circle",
		ContributionAmount: 5,
		Frequency:          domain.FrequencyWeekly,
		TotalRounds:        4,
		MemberCount:        4,
		Admin:              domain.JoinRequest{Name: "Ada", Email: "ada@example.com"},
	}
}

func TestCreatePool(t *testing.T) {
	var createdPool *domain.Pool
	var createdAdmin *domain.Member
	repo := &stubRepository{
		createPoolFn: func(ctx context.Context, pool *domain.Pool, admin *domain.Member) error {
			createdPool = pool
			createdAdmin = admin
			return nil
		},
	}
	svc := newTestService(repo)

	pool, err := svc.CreatePool(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	if createdPool == nil || createdAdmin == nil {
		t.Fatal("pool and admin were not persisted")
	}
	if pool.CurrentRound != 1 || pool.Status != domain.PoolStatusActive {
		t.Fatalf("new pool should start active at round 1, got round=%d status=%s", pool.CurrentRound, pool.Status)
	}
	if createdAdmin.Position != 1 || createdAdmin.Role != domain.MemberRoleAdmin {
		t.Fatalf("creator should be admin at position 1, got position=%d role=%s", createdAdmin.Position, createdAdmin.Role)
	}
	if createdAdmin.Status != domain.MemberStatusCurrent {
		t.Fatalf("position-1 admin should be the current recipient, got %s", createdAdmin.Status)
	}
	if !strings.HasPrefix(pool.ShareableLink, "https://pools.example.com/pools/") {
		t.Fatalf("unexpected shareable link: %s", pool.ShareableLink)
	}
	if pool.QRCodeContent != pool.ShareableLink {
		t.Fatal("QR content should encode the shareable link")
	}
}

func TestCreatePoolValidation(t *testing.T) {
	svc := newTestService(&stubRepository{})

	cases := []struct {
		name    string
		mutate  func(r *domain.CreatePoolRequest)
		wantErr error
	}{
		{"amount too low", func(r *domain.CreatePoolRequest) { r.ContributionAmount = 0 }, ErrInvalidContributionAmount},
		{"amount too high", func(r *domain.CreatePoolRequest) { r.ContributionAmount = 21 }, ErrInvalidContributionAmount},
		{"bad frequency", func(r *domain.CreatePoolRequest) { r.Frequency = "daily" }, ErrInvalidFrequency},
		{"zero rounds", func(r *domain.CreatePoolRequest) { r.TotalRounds = 0 }, ErrInvalidTotalRounds},
		{"zero members", func(r *domain.CreatePoolRequest) { r.MemberCount = 0 }, ErrInvalidMemberCount},
		{"missing admin email", func(r *domain.CreatePoolRequest) { r.Admin.Email = "" }, ErrMissingMemberDetails},
		{"missing name", func(r *domain.CreatePoolRequest) { r.Name = "  " }, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := svc.CreatePool(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if Kind(err) != ErrValidation {
				t.Fatalf("expected validation kind, got %v", Kind(err))
			}
		})
	}
}

func TestJoinPool(t *testing.T) {
	poolID := uuid.New()
	repo := &stubRepository{
		addMemberFn: func(ctx context.Context, pid uuid.UUID, member *domain.Member) error {
			member.Position = 2
			return nil
		},
	}
	svc := newTestService(repo)

	member, err := svc.JoinPool(context.Background(), poolID, domain.JoinRequest{Name: "Grace", Email: "grace@example.com"})
	if err != nil {
		t.Fatalf("JoinPool failed: %v", err)
	}
	if member.Position != 2 {
		t.Fatalf("expected assigned position 2, got %d", member.Position)
	}
	if member.Role != domain.MemberRoleMember || member.Status != domain.MemberStatusUpcoming {
		t.Fatalf("joiner should be an upcoming member, got role=%s status=%s", member.Role, member.Status)
	}
}

func TestJoinPoolFull(t *testing.T) {
	repo := &stubRepository{
		addMemberFn: func(ctx context.Context, pid uuid.UUID, member *domain.Member) error {
			return store.ErrPoolFull
		},
	}
	svc := newTestService(repo)

	_, err := svc.JoinPool(context.Background(), uuid.New(), domain.JoinRequest{Name: "Late", Email: "late@example.com"})
	if !errors.Is(err, store.ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
	if Kind(err) != ErrValidation {
		t.Fatalf("expected validation kind, got %v", Kind(err))
	}
}

func TestJoinPoolMissingDetails(t *testing.T) {
	svc := newTestService(&stubRepository{})

	_, err := svc.JoinPool(context.Background(), uuid.New(), domain.JoinRequest{Name: "NoEmail"})
	if !errors.Is(err, ErrMissingMemberDetails) {
		t.Fatalf("expected ErrMissingMemberDetails, got %v", err)
	}
}

func TestReorderMembers(t *testing.T) {
	pool := newTestPool(3)
	newOrder := []uuid.UUID{pool.Members[2].ID, pool.Members[0].ID, pool.Members[1].ID}

	var gotOrder []uuid.UUID
	repo := &stubRepository{
		reorderFn: func(ctx context.Context, poolID uuid.UUID, order []uuid.UUID) error {
			gotOrder = order
			return nil
		},
		findPoolFn: func(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) { return pool, nil },
	}
	svc := newTestService(repo)

	if _, err := svc.ReorderMembers(context.Background(), pool.ID, domain.ReorderRequest{MemberIDs: newOrder}); err != nil {
		t.Fatalf("ReorderMembers failed: %v", err)
	}
	if len(gotOrder) != 3 || gotOrder[0] != pool.Members[2].ID {
		t.Fatalf("order not forwarded: %+v", gotOrder)
	}
}

func TestReorderMembersInvalidPermutation(t *testing.T) {
	repo := &stubRepository{
		reorderFn: func(ctx context.Context, poolID uuid.UUID, order []uuid.UUID) error {
			return store.ErrInvalidReorder
		},
	}
	svc := newTestService(repo)

	_, err := svc.ReorderMembers(context.Background(), uuid.New(), domain.ReorderRequest{MemberIDs: []uuid.UUID{uuid.New()}})
	if !errors.Is(err, store.ErrInvalidReorder) {
		t.Fatalf("expected ErrInvalidReorder, got %v", err)
	}
	if Kind(err) != ErrValidation {
		t.Fatalf("expected validation kind, got %v", Kind(err))
	}
}

func TestReorderMembersEmptyOrder(t *testing.T) {
	svc := newTestService(&stubRepository{})

	_, err := svc.ReorderMembers(context.Background(), uuid.New(), domain.ReorderRequest{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListPayouts(t *testing.T) {
	pool := newTestPool(3)
	repo := &stubRepository{
		findPoolFn: func(ctx context.Context, poolID uuid.UUID) (*domain.Pool, error) { return pool, nil },
		listPayoutsFn: func(ctx context.Context, poolID uuid.UUID) ([]domain.Transaction, error) {
			return []domain.Transaction{{ID: uuid.New(), PoolID: poolID, Round: 1}}, nil
		},
	}
	svc := newTestService(repo)

	payouts, err := svc.ListPayouts(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("ListPayouts failed: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected one payout, got %d", len(payouts))
	}
}
