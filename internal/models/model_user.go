package models

import "time"

// User is the minimal account record the subscription core needs: identity,
// the wallet receiving membership tokens, and the artist flag. Full profile
// CRUD lives in the main platform service.
type User struct {
	ID            string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email         string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	WalletAddress string    `gorm:"column:wallet_address;type:varchar(128);not null" json:"wallet_address"`
	DisplayName   string    `gorm:"column:display_name;type:varchar(128)" json:"display_name"`
	IsArtist      bool      `gorm:"column:is_artist;not null;default:false" json:"is_artist"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
