package credential

import "context"

// Repository persists sealed credentials. Implemented in infrastructure/postgres.
type Repository interface {
	// Upsert inserts the record or, when the ID already exists, rebinds it to
	// rec.UserID and replaces the sealed token and item ID.
	Upsert(ctx context.Context, rec *Record) error

	// ListByUserID returns the user's records ordered by created_at, then id.
	ListByUserID(ctx context.Context, userID string) ([]*Record, error)

	// MarkAccountsSynced stamps the record's accounts_synced_at. Unknown IDs
	// are a no-op.
	MarkAccountsSynced(ctx context.Context, id string) error
}

// Cipher seals tokens at rest and derives their stable IDs.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Fingerprint(value string) string
}
