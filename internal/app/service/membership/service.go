package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/internal/platform/directory"
	"github.com/tunehaus/backstage/internal/platform/ledger"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/config"
	"github.com/tunehaus/backstage/pkg/logctx"
	"github.com/tunehaus/backstage/pkg/tool"
	"github.com/tunehaus/backstage/pkg/types"
)

const (
	triggerAPI  = "api"
	triggerCron = "cron"
)

type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	ledger ledger.Client
	dir    directory.Directory
	clock  clock.Clock
	log    *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, lc ledger.Client, dir directory.Directory, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, ledger: lc, dir: dir, clock: clk, log: log}
}

// MintCommunityAccess is ledger-first: the token mint must confirm before any
// membership or transaction row is written, so a failed or timed-out ledger
// call leaves the store untouched.
func (s *Service) MintCommunityAccess(ctx context.Context, userEmail, communityID string) (*models.Membership, error) {
	user, err := s.dir.UserByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userEmail)
		}
		return nil, err
	}
	if _, err := s.dir.CommunityByID(ctx, communityID); err != nil {
		if errors.Is(err, directory.ErrCommunityNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCommunityNotFound, communityID)
		}
		return nil, err
	}

	collection, err := s.activeCollection(ctx, communityID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	existing, err := s.membershipByUserAndCommunity(ctx, user.ID, communityID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.ValidAt(now) {
		return nil, fmt.Errorf("%w: community %s", ErrAlreadyMember, communityID)
	}

	if collection.MaxSupply != nil {
		var minted int64
		if err := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("collection_id = ?", collection.ID).Count(&minted).Error; err != nil {
			return nil, fmt.Errorf("failed to count minted memberships: %w", err)
		}
		if minted >= *collection.MaxSupply {
			return nil, fmt.Errorf("%w: collection %s", ErrCollectionSoldOut, collection.ID)
		}
	}

	requestID := tool.GenerateUUIDV7()
	minted, err := s.ledger.Mint(ctx, &ledger.MintRequest{
		RequestID:       requestID,
		WalletAddress:   user.WalletAddress,
		ContractAddress: collection.ContractAddress,
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("ledger mint failed",
			"user_id", user.ID, "community_id", communityID, "request_id", requestID, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrLedgerMint, err)
	}

	m := existing
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m == nil {
			m = &models.Membership{
				ID:           tool.GenerateUUIDV7(),
				UserID:       user.ID,
				CommunityID:  communityID,
				CollectionID: collection.ID,
				TokenID:      minted.TokenID,
				IsActive:     true,
				ExpiresAt:    now.Add(s.cfg.Billing.Period()),
			}
			if err := tx.Create(m).Error; err != nil {
				// A racing mint for the same (user, community) lands on
				// the unique index; the loser surfaces as a conflict.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: community %s", ErrAlreadyMember, communityID)
				}
				return fmt.Errorf("failed to create membership: %w", err)
			}
		} else {
			// Re-mint of an expired membership reuses the unique
			// (user, community) row with the fresh token.
			m.CollectionID = collection.ID
			m.TokenID = minted.TokenID
			m.IsActive = true
			m.ExpiresAt = now.Add(s.cfg.Billing.Period())
			if err := tx.Save(m).Error; err != nil {
				return fmt.Errorf("failed to reactivate membership: %w", err)
			}
		}

		return s.appendTransaction(ctx, tx, m, collection, types.TransactionTypeMint, types.TransactionStatusConfirmed, &models.TransactionExtra{
			RequestID: requestID,
			Trigger:   triggerAPI,
		}, minted.TxHash)
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("membership minted",
		"membership_id", m.ID, "user_id", user.ID, "community_id", communityID, "token_id", minted.TokenID)
	return m, nil
}

// RenewMembership extends access by one billing period. The write is a
// compare-and-set on expires_at so a concurrent expiry sweep or renewal can
// never shorten remaining access: the new expiry is always computed from the
// freshest row state as max(now, expiresAt) + period.
func (s *Service) RenewMembership(ctx context.Context, userEmail, membershipID string) (*models.Membership, error) {
	user, err := s.dir.UserByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userEmail)
		}
		return nil, err
	}

	m, err := s.membershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.UserID != user.ID {
		return nil, fmt.Errorf("%w: membership %s", ErrNotMembershipOwner, membershipID)
	}

	collection, err := s.collectionByID(ctx, m.CollectionID)
	if err != nil {
		return nil, err
	}

	requestID := tool.GenerateUUIDV7()
	renewed, err := s.ledger.Renew(ctx, &ledger.RenewRequest{RequestID: requestID, TokenID: m.TokenID})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("ledger renewal failed",
			"membership_id", m.ID, "request_id", requestID, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrLedgerRenew, err)
	}

	if m, err = s.extendMembership(ctx, m); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.appendTransaction(ctx, tx, m, collection, types.TransactionTypeRenewal, types.TransactionStatusConfirmed, &models.TransactionExtra{
			RequestID: requestID,
			Trigger:   triggerAPI,
		}, renewed.TxHash)
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("membership renewed",
		"membership_id", m.ID, "expires_at", m.ExpiresAt)
	return m, nil
}

// extendMembership applies the renewal write with a CAS retry loop on
// expires_at. Whichever write commits last determines final state, and that
// state is always Active with a forward-moved expiry.
func (s *Service) extendMembership(ctx context.Context, m *models.Membership) (*models.Membership, error) {
	for attempt := 0; ; attempt++ {
		prev := m.ExpiresAt
		next := s.renewExpiry(prev)

		res := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("id = ? AND expires_at = ?", m.ID, prev).
			Updates(map[string]any{"is_active": true, "expires_at": next})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to extend membership: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			m.IsActive = true
			m.ExpiresAt = next
			return m, nil
		}

		// A concurrent write (expiry sweep or another renewal) landed
		// between read and update; reload and recompute.
		if attempt >= 3 {
			return nil, fmt.Errorf("failed to extend membership %s: too many concurrent updates", m.ID)
		}
		reloaded, err := s.membershipByID(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m = reloaded
	}
}

// renewExpiry is the billing policy for renewals: extend from the current
// expiry when it is still in the future, from now when the membership has
// already lapsed. Access granted after expiry starts at the renewal moment
// instead of being back-dated.
func (s *Service) renewExpiry(current time.Time) time.Time {
	base := current
	if now := s.clock.Now(); now.After(base) {
		base = now
	}
	return base.Add(s.cfg.Billing.Period())
}

// CheckCommunityAccess trusts the local ledger-confirmed snapshot; it never
// round-trips to chain and never mutates. Expiry is owned by the scheduler,
// so staleness is bounded by one expire-job tick.
func (s *Service) CheckCommunityAccess(ctx context.Context, userID, communityID string) (*types.AccessInfo, error) {
	m, err := s.membershipByUserAndCommunity(ctx, userID, communityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.AccessInfo{HasAccess: false}, nil
		}
		return nil, err
	}
	info := &types.AccessInfo{
		HasAccess:    m.ValidAt(s.clock.Now()),
		MembershipID: m.ID,
		ExpiresAt:    &m.ExpiresAt,
	}
	return info, nil
}

func (s *Service) GetUserMemberships(ctx context.Context, userID string, status types.MembershipStatusFilter) ([]*models.Membership, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	now := s.clock.Now()
	switch status {
	case types.MembershipStatusFilterActive:
		q = q.Where("is_active = ? AND expires_at > ?", true, now)
	case types.MembershipStatusFilterExpired:
		q = q.Where("is_active = ? OR expires_at <= ?", false, now)
	}
	var items []*models.Membership
	if err := q.Order("created_at desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return items, nil
}

func (s *Service) GetUserTransactionHistory(ctx context.Context, userID string, filter *TransactionFilter) ([]*models.Transaction, int64, error) {
	if filter == nil {
		filter = &TransactionFilter{}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []*models.Transaction
	if err := q.Order("created_at desc").Limit(filter.Limit).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

// Data access helpers.

func (s *Service) membershipByID(ctx context.Context, id string) (*models.Membership, error) {
	var m models.Membership
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMembershipNotFound, id)
		}
		return nil, err
	}
	return &m, nil
}

func (s *Service) membershipByUserAndCommunity(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) activeCollection(ctx context.Context, communityID string) (*models.NFTCollection, error) {
	var c models.NFTCollection
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND is_active = ?", communityID, true).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: community %s", ErrNoActiveCollection, communityID)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) collectionByID(ctx context.Context, id string) (*models.NFTCollection, error) {
	var c models.NFTCollection
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

// appendTransaction writes one immutable log entry. Transactions are only
// ever created; nothing in the engine updates or deletes them.
func (s *Service) appendTransaction(ctx context.Context, tx *gorm.DB, m *models.Membership, c *models.NFTCollection, typ types.TransactionType, status types.TransactionStatus, extra *models.TransactionExtra, txHash string) error {
	record := &models.Transaction{
		ID:           tool.GenerateUUIDV7(),
		UserID:       m.UserID,
		MembershipID: m.ID,
		CommunityID:  m.CommunityID,
		CollectionID: c.ID,
		Type:         typ,
		Status:       status,
		Amount:       c.PricePerMonth,
		Currency:     c.Currency,
		TxHash:       txHash,
		TokenID:      m.TokenID,
		Extra:        datatypes.NewJSONType(extra),
	}
	if err := tx.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}
