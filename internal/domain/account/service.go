package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
}

// NewService creates a new account service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertAccount creates or updates an account with validation
func (s *Service) UpsertAccount(ctx context.Context, params UpsertParams) (*Account, error) {
	if params.Type == "" {
		params.Type = TypeUnknown
	}
	if params.Subtype == "" {
		params.Subtype = SubtypeUnknown
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.repo.Upsert(ctx, params)
}

// UpdateBalance updates the balance of a known account. Unknown IDs are a
// no-op and report false.
func (s *Service) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	return s.repo.UpdateBalance(ctx, accountID, balance)
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

// ListAccounts returns every registered account ordered by ID
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

// ResolveName returns the registered name for accountID, or UnknownName when
// the account is missing or has an empty name.
func (s *Service) ResolveName(ctx context.Context, accountID string) (string, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return UnknownName, nil
	}
	if err != nil {
		return "", err
	}
	if acc.Name == "" {
		return UnknownName, nil
	}
	return acc.Name, nil
}
