package membership

import (
	"context"
	"time"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/types"
)

// TransactionFilter narrows and pages a user's transaction history.
type TransactionFilter struct {
	Type   types.TransactionType   `json:"type,omitempty"`
	Status types.TransactionStatus `json:"status,omitempty"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// CollectionParams describes a new NFT collection for a community's paid tier.
type CollectionParams struct {
	PricePerMonth   int64  `json:"price_per_month"`
	Currency        string `json:"currency"`
	MaxSupply       *int64 `json:"max_supply,omitempty"`
	ContractAddress string `json:"contract_address"`
}

// Engine is the subscription core's operation surface. HTTP handlers and the
// scheduler depend on this interface; *Service implements it.
type Engine interface {
	// MintCommunityAccess grants the user a fresh billing period in the
	// community, ledger-first: no store state is written unless the mint
	// confirms.
	MintCommunityAccess(ctx context.Context, userEmail, communityID string) (*models.Membership, error)
	// RenewMembership extends the membership by one billing period from
	// max(now, expiresAt); it never shortens remaining access.
	RenewMembership(ctx context.Context, userEmail, membershipID string) (*models.Membership, error)
	// CheckCommunityAccess is read-only: no ledger call, no expiry write.
	CheckCommunityAccess(ctx context.Context, userID, communityID string) (*types.AccessInfo, error)
	GetUserMemberships(ctx context.Context, userID string, status types.MembershipStatusFilter) ([]*models.Membership, error)
	GetUserTransactionHistory(ctx context.Context, userID string, filter *TransactionFilter) ([]*models.Transaction, int64, error)

	// Scheduler-owned batch operations.
	ExpireDueMemberships(ctx context.Context) (int, error)
	ListExpiring(ctx context.Context, within time.Duration, autoRenew bool) ([]*models.Membership, error)
	AutoRenewDue(ctx context.Context) (renewed int, failed int, err error)

	CreateCollection(ctx context.Context, communityID string, params *CollectionParams) (*models.NFTCollection, error)
	DeactivateCollection(ctx context.Context, collectionID string) error

	// ScanTransactions is the admin view over the whole transaction log.
	ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error)
}
