package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/logctx"
	"github.com/tunehaus/backstage/pkg/tool"
	"github.com/tunehaus/backstage/pkg/types"
)

// MaterializeDaily rebuilds the per-community rollup for one UTC day from
// the transaction log. Rerunning for the same day overwrites the previous
// rollup, so a partially failed job is safe to retry.
func (s *Service) MaterializeDaily(ctx context.Context, day time.Time) (int, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	statDate := dayStart.Format("2006-01-02")

	var rows []*models.Transaction
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at >= ? AND created_at < ?", types.TransactionStatusConfirmed, dayStart, dayEnd).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions for %s: %w", statDate, err)
	}

	artistIDs, err := s.artistIndex(ctx, lo.Uniq(lo.Map(rows, func(t *models.Transaction, _ int) string {
		return t.CommunityID
	})))
	if err != nil {
		return 0, err
	}

	byCommunity := lo.GroupBy(rows, func(t *models.Transaction) string { return t.CommunityID })
	stats := make([]*models.CommunityDailyStat, 0, len(byCommunity))
	for communityID, events := range byCommunity {
		stat := &models.CommunityDailyStat{
			ID:          tool.GenerateUUIDV7(),
			CommunityID: communityID,
			ArtistID:    artistIDs[communityID],
			StatDate:    statDate,
		}
		for _, event := range events {
			switch event.Type {
			case types.TransactionTypeMint:
				stat.NewMembers++
			case types.TransactionTypeRenewal:
				stat.Renewals++
			}
			stat.Earnings += event.Amount
			stat.Currency = event.Currency
		}

		if err := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("community_id = ? AND is_active = ? AND expires_at > ?", communityID, true, dayEnd).
			Count(&stat.ActiveMembers).Error; err != nil {
			return 0, fmt.Errorf("failed to count active members: %w", err)
		}
		stats = append(stats, stat)
	}

	if len(stats) > 0 {
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "community_id"}, {Name: "stat_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"new_members", "renewals", "active_members", "earnings", "currency", "updated_at",
			}),
		}).Create(&stats).Error
		if err != nil {
			return 0, fmt.Errorf("failed to upsert daily stats: %w", err)
		}
	}

	logctx.FromCtx(ctx, s.log).Infow("daily analytics materialized",
		"stat_date", statDate, "communities", len(stats))
	return len(stats), nil
}

func (s *Service) artistIndex(ctx context.Context, communityIDs []string) (map[string]string, error) {
	if len(communityIDs) == 0 {
		return map[string]string{}, nil
	}
	var communities []*models.Community
	if err := s.db.WithContext(ctx).Where("id IN ?", communityIDs).Find(&communities).Error; err != nil {
		return nil, fmt.Errorf("failed to load communities: %w", err)
	}
	return lo.SliceToMap(communities, func(c *models.Community) (string, string) {
		return c.ID, c.ArtistID
	}), nil
}
