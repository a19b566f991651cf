package types

import (
	"fmt"
	"time"
)

// MembershipStatusFilter is the closed set of values accepted by the
// `status` query parameter on membership listings.
type MembershipStatusFilter string

const (
	MembershipStatusFilterActive  MembershipStatusFilter = "active"
	MembershipStatusFilterExpired MembershipStatusFilter = "expired"
	MembershipStatusFilterAll     MembershipStatusFilter = "all"
)

// ParseMembershipStatusFilter parses a raw query value. An empty value
// defaults to "all".
func ParseMembershipStatusFilter(raw string) (MembershipStatusFilter, error) {
	switch MembershipStatusFilter(raw) {
	case MembershipStatusFilterActive, MembershipStatusFilterExpired, MembershipStatusFilterAll:
		return MembershipStatusFilter(raw), nil
	case "":
		return MembershipStatusFilterAll, nil
	default:
		return "", fmt.Errorf("invalid membership status filter: %q", raw)
	}
}

type TransactionType string

const (
	TransactionTypeMint    TransactionType = "mint"
	TransactionTypeRenewal TransactionType = "renewal"
)

type TransactionStatus string

const (
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// AccessInfo is the result of an access check against a community.
type AccessInfo struct {
	HasAccess    bool       `json:"has_access"`
	MembershipID string     `json:"membership_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
