package models

import "time"

// CommunityDailyStat is a materialized per-day analytics rollup, rebuilt
// idempotently by the update-daily-analytics job.
type CommunityDailyStat struct {
	ID          string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CommunityID string `gorm:"column:community_id;type:uuid;not null;uniqueIndex:unique_community_id_stat_date,priority:1" json:"community_id"`
	ArtistID    string `gorm:"column:artist_id;type:uuid;not null;index" json:"artist_id"`
	// StatDate is the rollup day in YYYY-MM-DD form.
	StatDate      string    `gorm:"column:stat_date;type:varchar(10);not null;uniqueIndex:unique_community_id_stat_date,priority:2" json:"stat_date"`
	NewMembers    int64     `gorm:"column:new_members;not null;default:0" json:"new_members"`
	Renewals      int64     `gorm:"column:renewals;not null;default:0" json:"renewals"`
	ActiveMembers int64     `gorm:"column:active_members;not null;default:0" json:"active_members"`
	Earnings      int64     `gorm:"column:earnings;type:bigint;not null;default:0" json:"earnings"`
	Currency      string    `gorm:"column:currency;type:varchar(16)" json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (CommunityDailyStat) TableName() string {
	return "community_daily_stats"
}
