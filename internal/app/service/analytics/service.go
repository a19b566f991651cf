package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/clock"
	"github.com/tunehaus/backstage/pkg/types"
)

// Service answers read-side analytics queries from the materialized daily
// rollups and the transaction log. Queries never touch membership rows for
// writes.
type Service struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.SugaredLogger
}

func New(db *gorm.DB, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{db: db, clock: clk, log: log}
}

type EarningsPoint struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type EarningsTotal struct {
	Currency string `json:"currency"`
	Total    int64  `json:"total"`
}

type EarningsReport struct {
	ArtistID string          `json:"artist_id"`
	Totals   []EarningsTotal `json:"totals"`
	Daily    []EarningsPoint `json:"daily"`
}

// EarningsOverview sums an artist's earnings across all their communities
// over the trailing window, per currency, with a daily series.
func (s *Service) EarningsOverview(ctx context.Context, artistID string, days int) (*EarningsReport, error) {
	since := s.windowStart(days)
	report := &EarningsReport{ArtistID: artistID}

	err := s.db.WithContext(ctx).Table((models.CommunityDailyStat{}).TableName()).
		Select("currency, SUM(earnings) as total").
		Where("artist_id = ? AND stat_date >= ?", artistID, since).
		Group("currency").
		Order("currency").
		Find(&report.Totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum earnings: %w", err)
	}

	err = s.db.WithContext(ctx).Table((models.CommunityDailyStat{}).TableName()).
		Select("stat_date as date, currency as label, SUM(earnings) as value").
		Where("artist_id = ? AND stat_date >= ?", artistID, since).
		Group("stat_date").
		Group("currency").
		Order("date desc").
		Find(&report.Daily).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily earnings: %w", err)
	}
	return report, nil
}

type EngagementReport struct {
	CommunityID     string `json:"community_id"`
	ActiveMembers   int64  `json:"active_members"`
	NewMembers      int64  `json:"new_members"`
	Renewals        int64  `json:"renewals"`
	ChurnedInWindow int64  `json:"churned_in_window"`
}

// CommunityEngagement reports the community's current active member count
// plus joins, renewals, and churn over the trailing window.
func (s *Service) CommunityEngagement(ctx context.Context, communityID string, days int) (*EngagementReport, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := s.windowStart(days)
	now := s.clock.Now()
	report := &EngagementReport{CommunityID: communityID}

	err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("community_id = ? AND is_active = ? AND expires_at > ?", communityID, true, now).
		Count(&report.ActiveMembers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active members: %w", err)
	}

	err = s.db.WithContext(ctx).Table((models.CommunityDailyStat{}).TableName()).
		Select("COALESCE(SUM(new_members), 0) as new_members, COALESCE(SUM(renewals), 0) as renewals").
		Where("community_id = ? AND stat_date >= ?", communityID, since).
		Scan(report).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum engagement rollups: %w", err)
	}

	err = s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("community_id = ? AND is_active = ? AND expires_at >= ?", communityID, false, s.clock.Now().AddDate(0, 0, -days)).
		Count(&report.ChurnedInWindow).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count churned members: %w", err)
	}
	return report, nil
}

type CommunityRank struct {
	CommunityID   string `json:"community_id"`
	ArtistID      string `json:"artist_id"`
	Earnings      int64  `json:"earnings"`
	NewMembers    int64  `json:"new_members"`
	ActiveMembers int64  `json:"active_members"`
}

// TopCommunities ranks the artist's communities by earnings over the
// trailing window.
func (s *Service) TopCommunities(ctx context.Context, artistID string, days, limit int) ([]CommunityRank, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	since := s.windowStart(days)

	var ranks []CommunityRank
	err := s.db.WithContext(ctx).Table((models.CommunityDailyStat{}).TableName()).
		Select("community_id, artist_id, SUM(earnings) as earnings, SUM(new_members) as new_members, MAX(active_members) as active_members").
		Where("artist_id = ? AND stat_date >= ?", artistID, since).
		Group("community_id").
		Group("artist_id").
		Order("earnings desc").
		Limit(limit).
		Find(&ranks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank communities: %w", err)
	}
	return ranks, nil
}

type TrendPoint struct {
	Date     string `json:"date"`
	Mints    int64  `json:"mints"`
	Renewals int64  `json:"renewals"`
	Failures int64  `json:"failures"`
}

// SubscriptionTrends returns a gap-free daily series of mint, renewal, and
// failed-renewal counts across the artist's communities, straight from the
// transaction log so the current day is included before the nightly rollup.
func (s *Service) SubscriptionTrends(ctx context.Context, artistID string, days int) ([]TrendPoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	var points []TrendPoint
	err := s.db.WithContext(ctx).Raw(`
WITH days AS (
    SELECT generate_series(
        DATE(NOW()) - (? - 1) * INTERVAL '1 day',
        DATE(NOW()),
        '1 day'::interval
    )::date AS date
),
daily AS (
    SELECT DATE(created_at) AS date,
           COUNT(*) FILTER (WHERE type = ? AND status = ?)  AS mints,
           COUNT(*) FILTER (WHERE type = ? AND status = ?)  AS renewals,
           COUNT(*) FILTER (WHERE status = ?)               AS failures
    FROM transactions
    WHERE community_id IN (SELECT id FROM communities WHERE artist_id = ?)
    GROUP BY DATE(created_at)
)
SELECT TO_CHAR(d.date, 'YYYY-MM-DD') AS date,
       COALESCE(t.mints, 0)    AS mints,
       COALESCE(t.renewals, 0) AS renewals,
       COALESCE(t.failures, 0) AS failures
FROM days d
LEFT JOIN daily t ON t.date = d.date
ORDER BY d.date
`, days,
		types.TransactionTypeMint, types.TransactionStatusConfirmed,
		types.TransactionTypeRenewal, types.TransactionStatusConfirmed,
		types.TransactionStatusFailed,
		artistID,
	).Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription trends: %w", err)
	}
	return points, nil
}

// windowStart returns the stat_date lower bound for a trailing window.
func (s *Service) windowStart(days int) string {
	if days <= 0 || days > 365 {
		days = 30
	}
	return s.clock.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
}
