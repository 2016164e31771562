package credential

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// Credential is a durable provider access token bound to one user.
// AccessToken is plaintext and only ever lives in memory.
type Credential struct {
	ID          string
	UserID      string
	AccessToken string
	ItemID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// AccountsSyncedAt is nil until the credential's accounts were first
	// registered.
	AccountsSyncedAt *time.Time
}

// AccountsSynced reports whether the credential's accounts were ever
// registered.
func (c *Credential) AccountsSynced() bool {
	return c.AccountsSyncedAt != nil
}

// Record is the at-rest form of a Credential.
type Record struct {
	ID          string
	UserID      string
	SealedToken string
	ItemID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	AccountsSyncedAt *time.Time
}
