package membership

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/internal/platform/directory"
	"github.com/tunehaus/backstage/internal/platform/ledger"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/config"
	"github.com/tunehaus/backstage/pkg/tool"
	"github.com/tunehaus/backstage/pkg/types"
)

// stubLedger is an in-memory ledger.Client with scriptable failures. The
// onMint/onRenew hooks run while the engine waits on the ledger, which is
// exactly the window where a concurrent store write can land.
type stubLedger struct {
	mintCalls  int
	renewCalls int
	mintErr    error
	renewErr   map[string]error
	onMint     func()
	onRenew    func()
	nextToken  int
}

func (s *stubLedger) Mint(ctx context.Context, req *ledger.MintRequest) (*ledger.MintResult, error) {
	s.mintCalls++
	if s.mintErr != nil {
		return nil, s.mintErr
	}
	if s.onMint != nil {
		s.onMint()
	}
	s.nextToken++
	return &ledger.MintResult{
		TokenID: fmt.Sprintf("token-%d", s.nextToken),
		TxHash:  fmt.Sprintf("0xmint%d", s.nextToken),
	}, nil
}

func (s *stubLedger) Renew(ctx context.Context, req *ledger.RenewRequest) (*ledger.RenewResult, error) {
	s.renewCalls++
	if err := s.renewErr[req.TokenID]; err != nil {
		return nil, err
	}
	if s.onRenew != nil {
		s.onRenew()
	}
	return &ledger.RenewResult{TxHash: "0xrenew" + req.TokenID}, nil
}

func (s *stubLedger) Verify(ctx context.Context, tokenID string) (*ledger.TokenStatus, error) {
	return &ledger.TokenStatus{TokenID: tokenID, Valid: true}, nil
}

type testEnv struct {
	svc    *Service
	db     *gorm.DB
	clock  *clock.FakeClock
	ledger *stubLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         glogger.Default.LogMode(glogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Community{}, &models.NFTCollection{},
		&models.Membership{}, &models.Transaction{},
	))

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	lc := &stubLedger{renewErr: map[string]error{}}
	cfg := &config.Config{
		Billing: config.BillingConfig{
			PeriodDays:              30,
			ReminderLookaheadDays:   3,
			AutoRenewLookaheadHours: 24,
		},
	}
	svc := NewService(cfg, db, lc, directory.New(db), clk, zap.NewNop().Sugar())
	return &testEnv{svc: svc, db: db, clock: clk, ledger: lc}
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{
		ID:            tool.GenerateUUIDV7(),
		Email:         email,
		WalletAddress: "0xwallet-" + email,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedCommunity(t *testing.T) *models.Community {
	t.Helper()
	c := &models.Community{
		ID:       tool.GenerateUUIDV7(),
		ArtistID: tool.GenerateUUIDV7(),
		Name:     "test community",
	}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) seedCollection(t *testing.T, communityID string, maxSupply *int64) *models.NFTCollection {
	t.Helper()
	c := &models.NFTCollection{
		ID:              tool.GenerateUUIDV7(),
		CommunityID:     communityID,
		PricePerMonth:   500,
		Currency:        "USDC",
		MaxSupply:       maxSupply,
		ContractAddress: "0xcontract",
		IsActive:        true,
	}
	require.NoError(t, e.db.Create(c).Error)
	return c
}

func (e *testEnv) transactionsFor(t *testing.T, userID string) []*models.Transaction {
	t.Helper()
	var rows []*models.Transaction
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("created_at asc").Find(&rows).Error)
	return rows
}

func TestMintCommunityAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	collection := env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, m.UserID)
	require.Equal(t, community.ID, m.CommunityID)
	require.Equal(t, collection.ID, m.CollectionID)
	require.True(t, m.IsActive)
	require.Equal(t, env.clock.Now().Add(30*24*time.Hour), m.ExpiresAt)
	require.NotEmpty(t, m.TokenID)

	rows := env.transactionsFor(t, user.ID)
	require.Len(t, rows, 1)
	require.Equal(t, types.TransactionTypeMint, rows[0].Type)
	require.True(t, rows[0].Confirmed())
	require.Equal(t, collection.PricePerMonth, rows[0].Amount)
	require.NotEmpty(t, rows[0].Extra.Data().RequestID)
}

func TestMintCommunityAccess_AlreadyMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	_, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)

	_, err = env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.ErrorIs(t, err, ErrAlreadyMember)
	require.Equal(t, 1, env.ledger.mintCalls)
}

func TestMintCommunityAccess_LedgerFailureLeavesNoState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)
	env.ledger.mintErr = errors.New("upstream timeout")

	_, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.ErrorIs(t, err, ErrLedgerMint)

	var memberships, transactions int64
	require.NoError(t, env.db.Model(&models.Membership{}).Count(&memberships).Error)
	require.NoError(t, env.db.Model(&models.Transaction{}).Count(&transactions).Error)
	require.Zero(t, memberships)
	require.Zero(t, transactions)
}

func TestMintCommunityAccess_ConcurrentMintLosesWithConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	collection := env.seedCollection(t, community.ID, nil)

	// A second mint for the same pair commits while this one waits on the
	// ledger; the unique (user, community) index decides the loser.
	env.ledger.onMint = func() {
		require.NoError(t, env.db.Create(&models.Membership{
			ID:           tool.GenerateUUIDV7(),
			UserID:       user.ID,
			CommunityID:  community.ID,
			CollectionID: collection.ID,
			TokenID:      "token-winner",
			IsActive:     true,
			ExpiresAt:    env.clock.Now().Add(30 * 24 * time.Hour),
		}).Error)
	}

	_, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.ErrorIs(t, err, ErrAlreadyMember)

	var memberships int64
	require.NoError(t, env.db.Model(&models.Membership{}).Count(&memberships).Error)
	require.EqualValues(t, 1, memberships)
	require.Empty(t, env.transactionsFor(t, user.ID))
}

func TestMintCommunityAccess_SoldOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	community := env.seedCommunity(t)
	one := int64(1)
	env.seedCollection(t, community.ID, &one)

	first := env.seedUser(t, "first@example.com")
	_, err := env.svc.MintCommunityAccess(ctx, first.Email, community.ID)
	require.NoError(t, err)

	second := env.seedUser(t, "second@example.com")
	_, err = env.svc.MintCommunityAccess(ctx, second.Email, community.ID)
	require.ErrorIs(t, err, ErrCollectionSoldOut)
}

func TestMintCommunityAccess_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)

	_, err := env.svc.MintCommunityAccess(ctx, "nobody@example.com", community.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.svc.MintCommunityAccess(ctx, user.Email, tool.GenerateUUIDV7())
	require.ErrorIs(t, err, ErrCommunityNotFound)

	// Community exists but has no active collection.
	_, err = env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.ErrorIs(t, err, ErrNoActiveCollection)
}

func TestMintCommunityAccess_RemintAfterExpiryReusesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	first, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)

	env.clock.Advance(31 * 24 * time.Hour)
	expired, err := env.svc.ExpireDueMemberships(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	again, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.NotEqual(t, first.TokenID, again.TokenID)
	require.True(t, again.IsActive)
	require.Equal(t, env.clock.Now().Add(30*24*time.Hour), again.ExpiresAt)

	var count int64
	require.NoError(t, env.db.Model(&models.Membership{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRenewMembership_ExtendsFromFutureExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	firstExpiry := m.ExpiresAt

	// Renewing early stacks the new period on the unspent one.
	env.clock.Advance(10 * 24 * time.Hour)
	renewed, err := env.svc.RenewMembership(ctx, user.Email, m.ID)
	require.NoError(t, err)
	require.Equal(t, firstExpiry.Add(30*24*time.Hour), renewed.ExpiresAt)

	rows := env.transactionsFor(t, user.ID)
	require.Len(t, rows, 2)
	require.Equal(t, types.TransactionTypeRenewal, rows[1].Type)
	require.True(t, rows[1].Confirmed())
}

func TestRenewMembership_LapsedRenewStartsFromNow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)

	env.clock.Advance(45 * 24 * time.Hour)
	_, err = env.svc.ExpireDueMemberships(ctx)
	require.NoError(t, err)

	renewed, err := env.svc.RenewMembership(ctx, user.Email, m.ID)
	require.NoError(t, err)
	require.True(t, renewed.IsActive)
	require.Equal(t, env.clock.Now().Add(30*24*time.Hour), renewed.ExpiresAt)
}

func TestRenewMembership_ConcurrentWriteRecomputesFromFreshState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	firstExpiry := m.ExpiresAt

	// Another renewal commits while this one waits on the ledger, moving
	// expires_at forward. The stale-keyed write must miss, reload, and
	// extend from the fresher expiry instead of overwriting it.
	stacked := firstExpiry.Add(30 * 24 * time.Hour)
	env.ledger.onRenew = func() {
		require.NoError(t, env.db.Model(&models.Membership{}).
			Where("id = ?", m.ID).
			Update("expires_at", stacked).Error)
	}

	renewed, err := env.svc.RenewMembership(ctx, user.Email, m.ID)
	require.NoError(t, err)
	require.True(t, renewed.IsActive)
	require.True(t, renewed.ExpiresAt.Equal(stacked.Add(30*24*time.Hour)))

	reloaded, err := env.svc.membershipByID(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, reloaded.IsActive)
	require.True(t, reloaded.ExpiresAt.Equal(renewed.ExpiresAt))
}

func TestRenewMembership_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedUser(t, "owner@example.com")
	other := env.seedUser(t, "other@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, owner.Email, community.ID)
	require.NoError(t, err)

	_, err = env.svc.RenewMembership(ctx, other.Email, m.ID)
	require.ErrorIs(t, err, ErrNotMembershipOwner)

	_, err = env.svc.RenewMembership(ctx, owner.Email, tool.GenerateUUIDV7())
	require.ErrorIs(t, err, ErrMembershipNotFound)

	env.ledger.renewErr[m.TokenID] = errors.New("breaker open")
	_, err = env.svc.RenewMembership(ctx, owner.Email, m.ID)
	require.ErrorIs(t, err, ErrLedgerRenew)

	// The failed renewal must not have touched the expiry.
	reloaded, err := env.svc.membershipByID(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, reloaded.ExpiresAt.Equal(m.ExpiresAt))
}

func TestCheckCommunityAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	// No membership at all.
	info, err := env.svc.CheckCommunityAccess(ctx, user.ID, community.ID)
	require.NoError(t, err)
	require.False(t, info.HasAccess)
	require.Empty(t, info.MembershipID)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)

	info, err = env.svc.CheckCommunityAccess(ctx, user.ID, community.ID)
	require.NoError(t, err)
	require.True(t, info.HasAccess)
	require.Equal(t, m.ID, info.MembershipID)
	require.True(t, info.ExpiresAt.Equal(m.ExpiresAt))

	// Past the expiry instant access is denied even before the sweep
	// flips is_active.
	env.clock.Advance(31 * 24 * time.Hour)
	info, err = env.svc.CheckCommunityAccess(ctx, user.ID, community.ID)
	require.NoError(t, err)
	require.False(t, info.HasAccess)
}

func TestGetUserMemberships_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")

	active := env.seedCommunity(t)
	env.seedCollection(t, active.ID, nil)
	expiredCommunity := env.seedCommunity(t)
	env.seedCollection(t, expiredCommunity.ID, nil)

	_, err := env.svc.MintCommunityAccess(ctx, user.Email, expiredCommunity.ID)
	require.NoError(t, err)
	env.clock.Advance(31 * 24 * time.Hour)
	_, err = env.svc.ExpireDueMemberships(ctx)
	require.NoError(t, err)
	_, err = env.svc.MintCommunityAccess(ctx, user.Email, active.ID)
	require.NoError(t, err)

	all, err := env.svc.GetUserMemberships(ctx, user.ID, types.MembershipStatusFilterAll)
	require.NoError(t, err)
	require.Len(t, all, 2)

	activeOnly, err := env.svc.GetUserMemberships(ctx, user.ID, types.MembershipStatusFilterActive)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	require.Equal(t, active.ID, activeOnly[0].CommunityID)

	expiredOnly, err := env.svc.GetUserMemberships(ctx, user.ID, types.MembershipStatusFilterExpired)
	require.NoError(t, err)
	require.Len(t, expiredOnly, 1)
	require.Equal(t, expiredCommunity.ID, expiredOnly[0].CommunityID)
}

func TestGetUserTransactionHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = env.svc.RenewMembership(ctx, user.Email, m.ID)
		require.NoError(t, err)
	}

	rows, total, err := env.svc.GetUserTransactionHistory(ctx, user.ID, nil)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, rows, 4)

	renewals, total, err := env.svc.GetUserTransactionHistory(ctx, user.ID, &TransactionFilter{
		Type: types.TransactionTypeRenewal,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, renewals, 3)

	paged, total, err := env.svc.GetUserTransactionHistory(ctx, user.ID, &TransactionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.EqualValues(t, 4, total)
	require.Len(t, paged, 2)
}

func TestGetUserTransactionHistory_CapsOversizedLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := tool.GenerateUUIDV7()
	for i := 0; i < 25; i++ {
		require.NoError(t, env.db.Create(&models.Transaction{
			ID:           tool.GenerateUUIDV7(),
			UserID:       userID,
			MembershipID: tool.GenerateUUIDV7(),
			CommunityID:  tool.GenerateUUIDV7(),
			CollectionID: tool.GenerateUUIDV7(),
			Type:         types.TransactionTypeMint,
			Status:       types.TransactionStatusConfirmed,
			Amount:       500,
			Currency:     "USDC",
		}).Error)
	}

	rows, total, err := env.svc.GetUserTransactionHistory(ctx, userID, &TransactionFilter{Limit: 5000})
	require.NoError(t, err)
	require.EqualValues(t, 25, total)
	require.Len(t, rows, 20)
}

func TestScanTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fan@example.com")
	community := env.seedCommunity(t)
	env.seedCollection(t, community.ID, nil)

	m, err := env.svc.MintCommunityAccess(ctx, user.Email, community.ID)
	require.NoError(t, err)
	_, err = env.svc.RenewMembership(ctx, user.Email, m.ID)
	require.NoError(t, err)

	all, err := env.svc.ScanTransactions(ctx, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, all.Total)

	mints, err := env.svc.ScanTransactions(ctx, &ScanTransactionsRequest{
		Filters: []*types.CommonFilter{
			{Field: "type", Operator: types.CommonFilterOperatorEq, Values: []any{"mint"}},
		},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, mints.Total)
	require.Equal(t, types.TransactionTypeMint, mints.Items[0].Type)

	paged, err := env.svc.ScanTransactions(ctx, &ScanTransactionsRequest{From: 1, Size: 1, SortBy: "created_at", SortOrder: "asc"})
	require.NoError(t, err)
	require.EqualValues(t, 2, paged.Total)
	require.Len(t, paged.Items, 1)
}

func TestCreateCollection_RetiresPreviousActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	community := env.seedCommunity(t)
	first := env.seedCollection(t, community.ID, nil)

	second, err := env.svc.CreateCollection(ctx, community.ID, &CollectionParams{
		PricePerMonth:   900,
		Currency:        "USDC",
		ContractAddress: "0xcontract2",
	})
	require.NoError(t, err)
	require.True(t, second.IsActive)

	var reloaded models.NFTCollection
	require.NoError(t, env.db.First(&reloaded, "id = ?", first.ID).Error)
	require.False(t, reloaded.IsActive)

	current, err := env.svc.activeCollection(ctx, community.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)
}

func TestCreateCollection_CommunityNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreateCollection(context.Background(), tool.GenerateUUIDV7(), &CollectionParams{})
	require.ErrorIs(t, err, ErrCommunityNotFound)
}

func TestDeactivateCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	community := env.seedCommunity(t)
	collection := env.seedCollection(t, community.ID, nil)

	require.NoError(t, env.svc.DeactivateCollection(ctx, collection.ID))

	var reloaded models.NFTCollection
	require.NoError(t, env.db.First(&reloaded, "id = ?", collection.ID).Error)
	require.False(t, reloaded.IsActive)

	err := env.svc.DeactivateCollection(ctx, tool.GenerateUUIDV7())
	require.ErrorIs(t, err, ErrCollectionNotFound)
}
