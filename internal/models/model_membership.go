package models

import "time"

// Membership is a user's time-bound access to one community. The (user,
// community) pair is unique; expiry is a state transition (IsActive=false),
// never a row delete, so transaction history and analytics stay intact.
// Use ValidAt to decide access.
type Membership struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID       string `gorm:"column:user_id;type:uuid;not null;uniqueIndex:unique_user_id_community_id,priority:1" json:"user_id"`
	CommunityID  string `gorm:"column:community_id;type:uuid;not null;uniqueIndex:unique_user_id_community_id,priority:2" json:"community_id"`
	CollectionID string `gorm:"column:collection_id;type:uuid;not null" json:"collection_id"`
	// TokenID is the ledger token backing this membership, set on mint.
	TokenID  string `gorm:"column:token_id;type:varchar(128);not null" json:"token_id"`
	IsActive bool   `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	// ExpiresAt only ever moves forward; renewals extend from
	// max(now, ExpiresAt) so paid-for time is never lost.
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	AutoRenew bool      `gorm:"column:auto_renew;not null;default:false" json:"auto_renew"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

// ValidAt reports whether the membership grants access at t.
func (m *Membership) ValidAt(t time.Time) bool {
	return m != nil && m.IsActive && m.ExpiresAt.After(t)
}
