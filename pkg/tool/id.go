package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered UUID string. Used for entity ids
// and as the per-call request id sent to the ledger.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}
