// Package credential is the per-user vault of provider access tokens.
package credential

import (
	"context"
	"fmt"
	"strings"

	"finlink/internal/domain/user"
)

// Service binds access tokens to users and hands them back decrypted.
type Service struct {
	repo   Repository
	users  user.Repository
	cipher Cipher
}

func NewService(repo Repository, users user.Repository, cipher Cipher) *Service {
	return &Service{repo: repo, users: users, cipher: cipher}
}

// IDFor returns the credential ID an access token is stored under.
func (s *Service) IDFor(accessToken string) string {
	return s.cipher.Fingerprint(accessToken)
}

// GetUser returns user.ErrUserNotFound when userID is unknown.
func (s *Service) GetUser(ctx context.Context, userID string) (*user.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	return s.users.GetByID(ctx, userID)
}

// Put binds accessToken to userID. Storing the same token again for the same
// user is a no-op; storing it for a different user moves the binding.
// Unknown users are rejected with user.ErrUserNotFound.
func (s *Service) Put(ctx context.Context, userID, accessToken, itemID string) (*Credential, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrInvalidInput)
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}

	rec := &Record{
		ID:          s.IDFor(accessToken),
		UserID:      userID,
		SealedToken: sealed,
		ItemID:      itemID,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return &Credential{
		ID:          rec.ID,
		UserID:      rec.UserID,
		AccessToken: accessToken,
		ItemID:      rec.ItemID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

// ListForUser returns the user's credentials in creation order. An unknown
// user simply has none.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Credential, error) {
	recs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	creds := make([]*Credential, 0, len(recs))
	for _, rec := range recs {
		token, err := s.cipher.Decrypt(rec.SealedToken)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential %s: %w", rec.ID, err)
		}
		creds = append(creds, &Credential{
			ID:          rec.ID,
			UserID:      rec.UserID,
			AccessToken: token,
			ItemID:      rec.ItemID,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,

			AccountsSyncedAt: rec.AccountsSyncedAt,
		})
	}
	return creds, nil
}

// MarkAccountsSynced records that the credential's accounts are registered.
func (s *Service) MarkAccountsSynced(ctx context.Context, credentialID string) error {
	if err := s.repo.MarkAccountsSynced(ctx, credentialID); err != nil {
		return fmt.Errorf("failed to mark credential synced: %w", err)
	}
	return nil
}

// ListLinkedUsers returns every user holding at least one credential.
func (s *Service) ListLinkedUsers(ctx context.Context) ([]*user.User, error) {
	return s.users.ListWithCredentials(ctx)
}
