package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Upsert replaces every column of the account with the given ID,
	// inserting it when absent
	Upsert(ctx context.Context, params UpsertParams) (*Account, error)

	// UpdateBalance sets only the available balance. It reports false when
	// no account has the given ID.
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (bool, error)

	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// List returns every account ordered by ID
	List(ctx context.Context) ([]*Account, error)
}
