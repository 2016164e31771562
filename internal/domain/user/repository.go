package user

import "context"

// Repository defines the interface for user data access
type Repository interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ListWithCredentials returns users holding at least one credential,
	// for the scheduler.
	ListWithCredentials(ctx context.Context) ([]*User, error)
}
