package models

import (
	"github.com/tunehaus/backstage/pkg/types"
	"time"

	"gorm.io/datatypes"
)

// TransactionExtra carries per-event context that does not warrant columns.
type TransactionExtra struct {
	// RequestID is the dedup key sent to the ledger for this call.
	RequestID string `json:"request_id,omitempty"`
	// FailureReason is set on failed ledger events.
	FailureReason string `json:"failure_reason,omitempty"`
	// Trigger distinguishes API-initiated events from scheduled ones.
	Trigger string `json:"trigger,omitempty"`
}

// Transaction is the append-only log of ledger-linked membership events.
// Rows are only ever created and queried, never updated or deleted.
type Transaction struct {
	ID           string                `gorm:"column:id;primary_key;type:uuid;index:idx_user_id_created_at,priority:2,sort:desc" json:"id"`
	UserID       string                `gorm:"column:user_id;type:uuid;not null;index:idx_user_id_created_at,priority:1" json:"user_id"`
	MembershipID string                `gorm:"column:membership_id;type:uuid;not null;index" json:"membership_id"`
	CommunityID  string                `gorm:"column:community_id;type:uuid;not null;index" json:"community_id"`
	CollectionID string                `gorm:"column:collection_id;type:uuid;not null" json:"collection_id"`
	Type         types.TransactionType `gorm:"column:type;type:varchar(32);not null;index" json:"type"`
	Status       types.TransactionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Amount       int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency     string                `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	// TxHash is the on-chain transaction hash reported by the ledger.
	TxHash  string                                 `gorm:"column:tx_hash;type:varchar(128)" json:"tx_hash"`
	TokenID string                                 `gorm:"column:token_id;type:varchar(128)" json:"token_id"`
	Extra   datatypes.JSONType[*TransactionExtra] `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`

	CreatedAt time.Time `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) Confirmed() bool {
	return t != nil && t.Status == types.TransactionStatusConfirmed
}
