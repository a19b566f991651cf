package models

import "time"

// Community is a creator-owned space. Paid access is gated by the
// community's active NFT collection.
type Community struct {
	ID          string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ArtistID    string    `gorm:"column:artist_id;type:uuid;not null;index" json:"artist_id"`
	Name        string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Community) TableName() string {
	return "communities"
}
