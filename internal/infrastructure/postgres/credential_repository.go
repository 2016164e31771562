package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"finlink/internal/domain/credential"
)

// CredentialRepository implements credential.Repository for PostgreSQL.
// It only ever sees sealed tokens.
type CredentialRepository struct {
	db *DB
}

func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Upsert(ctx context.Context, rec *credential.Record) error {
	query := `
		INSERT INTO credentials (id, user_id, sealed_token, item_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			user_id      = EXCLUDED.user_id,
			sealed_token = EXCLUDED.sealed_token,
			item_id      = EXCLUDED.item_id,
			updated_at   = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, rec.ID, rec.UserID, rec.SealedToken, rec.ItemID).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// ListByUserID lists a user's credentials in creation order. An ID that is
// not a UUID belongs to no user and yields an empty list.
func (r *CredentialRepository) ListByUserID(ctx context.Context, userID string) ([]*credential.Record, error) {
	id, ok := parseUserID(userID)
	if !ok {
		return nil, nil
	}

	query := `
		SELECT id, user_id, sealed_token, item_id, created_at, updated_at, accounts_synced_at
		FROM credentials
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var recs []*credential.Record
	for rows.Next() {
		var rec credential.Record
		var syncedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SealedToken, &rec.ItemID, &rec.CreatedAt, &rec.UpdatedAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		if syncedAt.Valid {
			rec.AccountsSyncedAt = &syncedAt.Time
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credentials: %w", err)
	}
	return recs, nil
}

func (r *CredentialRepository) MarkAccountsSynced(ctx context.Context, id string) error {
	query := `UPDATE credentials SET accounts_synced_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark credential %s synced: %w", id, err)
	}
	return nil
}

// parseUserID returns the canonical form of a user UUID, accepting any case.
func parseUserID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
