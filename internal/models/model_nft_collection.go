package models

import "time"

// NFTCollection is the mintable definition of a community's paid tier.
// At most one collection per community has IsActive=true; superseded
// collections are deactivated, never deleted.
type NFTCollection struct {
	ID              string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CommunityID     string    `gorm:"column:community_id;type:uuid;not null;index" json:"community_id"`
	PricePerMonth   int64     `gorm:"column:price_per_month;type:bigint;not null" json:"price_per_month"`
	Currency        string    `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	MaxSupply       *int64    `gorm:"column:max_supply;default:null" json:"max_supply"`
	ContractAddress string    `gorm:"column:contract_address;type:varchar(128);not null" json:"contract_address"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (NFTCollection) TableName() string {
	return "nft_collections"
}
