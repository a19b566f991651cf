package membership

import "errors"

// Engine error taxonomy. The HTTP boundary maps these to statuses; the
// scheduler swallows-and-records them per membership on batch paths.
var (
	ErrCommunityNotFound  = errors.New("community not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNoActiveCollection = errors.New("community has no active collection")
	ErrAlreadyMember      = errors.New("user already has an active membership")
	ErrNotMembershipOwner = errors.New("membership does not belong to user")
	ErrCollectionSoldOut  = errors.New("collection max supply reached")
	ErrLedgerMint         = errors.New("ledger mint failed")
	ErrLedgerRenew        = errors.New("ledger renewal failed")
)
