package membership

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/internal/platform/ledger"
	"github.com/tunehaus/backstage/pkg/logctx"
	"github.com/tunehaus/backstage/pkg/tool"
	"github.com/tunehaus/backstage/pkg/types"
)

// Scheduler-owned batch operations. Expiry lives here and only here; read
// paths never flip is_active, so concurrent access checks cannot disagree
// because of a read-side write.

// ExpireDueMemberships deactivates every active membership whose expiry has
// passed. One UPDATE, idempotent: a second immediate run matches zero rows.
func (s *Service) ExpireDueMemberships(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("is_active = ? AND expires_at <= ?", true, s.clock.Now()).
		Update("is_active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire memberships: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListExpiring returns active memberships whose expiry falls inside the
// lookahead window, filtered by the auto_renew flag.
func (s *Service) ListExpiring(ctx context.Context, within time.Duration, autoRenew bool) ([]*models.Membership, error) {
	now := s.clock.Now()
	var items []*models.Membership
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND auto_renew = ? AND expires_at > ? AND expires_at <= ?",
			true, autoRenew, now, now.Add(within)).
		Order("expires_at asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring memberships: %w", err)
	}
	return items, nil
}

// AutoRenewDue renews every auto_renew membership expiring within the
// configured lookahead. Memberships are independent: a failed ledger call is
// recorded as a failed transaction and the batch continues.
func (s *Service) AutoRenewDue(ctx context.Context) (int, int, error) {
	due, err := s.ListExpiring(ctx, s.cfg.Billing.AutoRenewLookahead(), true)
	if err != nil {
		return 0, 0, err
	}

	renewed, failed := 0, 0
	collections := make(map[string]*models.NFTCollection, len(due))
	for _, m := range due {
		collection, ok := collections[m.CollectionID]
		if !ok {
			collection, err = s.collectionByID(ctx, m.CollectionID)
			if err != nil {
				logctx.FromCtx(ctx, s.log).Errorw("auto-renew skipped, collection missing",
					"membership_id", m.ID, "collection_id", m.CollectionID, "err", err)
				failed++
				continue
			}
			collections[m.CollectionID] = collection
		}

		if err := s.renewScheduled(ctx, m, collection); err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("auto-renew failed",
				"membership_id", m.ID, "user_id", m.UserID, "err", err)
			failed++
			continue
		}
		renewed++
	}
	return renewed, failed, nil
}

// renewScheduled is the cron-path renewal for one membership: same
// ledger-first flow as the API path, but a ledger failure is persisted as a
// failed transaction for the history instead of surfacing to a caller.
func (s *Service) renewScheduled(ctx context.Context, m *models.Membership, collection *models.NFTCollection) error {
	requestID := tool.GenerateUUIDV7()
	renewed, err := s.ledger.Renew(ctx, &ledger.RenewRequest{RequestID: requestID, TokenID: m.TokenID})
	if err != nil {
		s.recordFailedRenewal(ctx, m, collection, requestID, err)
		return fmt.Errorf("%w: %s", ErrLedgerRenew, err)
	}

	if _, err := s.extendMembership(ctx, m); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.appendTransaction(ctx, tx, m, collection, types.TransactionTypeRenewal, types.TransactionStatusConfirmed, &models.TransactionExtra{
			RequestID: requestID,
			Trigger:   triggerCron,
		}, renewed.TxHash)
	})
}

func (s *Service) recordFailedRenewal(ctx context.Context, m *models.Membership, collection *models.NFTCollection, requestID string, cause error) {
	record := &models.Transaction{
		ID:           tool.GenerateUUIDV7(),
		UserID:       m.UserID,
		MembershipID: m.ID,
		CommunityID:  m.CommunityID,
		CollectionID: collection.ID,
		Type:         types.TransactionTypeRenewal,
		Status:       types.TransactionStatusFailed,
		Amount:       collection.PricePerMonth,
		Currency:     collection.Currency,
		TokenID:      m.TokenID,
		Extra: datatypes.NewJSONType(&models.TransactionExtra{
			RequestID:     requestID,
			FailureReason: cause.Error(),
			Trigger:       triggerCron,
		}),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to record failed renewal: %v", err)
	}
}
