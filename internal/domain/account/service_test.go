package account

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	UpsertFunc        func(ctx context.Context, params UpsertParams) (*Account, error)
	UpdateBalanceFunc func(ctx context.Context, id string, balance decimal.Decimal) (bool, error)
	GetByIDFunc       func(ctx context.Context, id string) (*Account, error)
	ListFunc          func(ctx context.Context) ([]*Account, error)
}

func (m *MockRepository) Upsert(ctx context.Context, params UpsertParams) (*Account, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, params)
	}
	return &Account{ID: params.ID, Name: params.Name, Type: params.Type, Subtype: params.Subtype}, nil
}

func (m *MockRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (bool, error) {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, id, balance)
	}
	return false, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, ErrAccountNotFound
}

func (m *MockRepository) List(ctx context.Context) ([]*Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func TestService_UpsertAccount(t *testing.T) {
	var got UpsertParams
	repo := &MockRepository{
		UpsertFunc: func(ctx context.Context, params UpsertParams) (*Account, error) {
			got = params
			return &Account{ID: params.ID}, nil
		},
	}
	svc := NewService(repo)

	_, err := svc.UpsertAccount(context.Background(), UpsertParams{
		ID:               "a1",
		Name:             "Checking",
		Type:             TypeDepository,
		Subtype:          SubtypeChecking,
		AvailableBalance: decimal.RequireFromString("100.25"),
	})
	if err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if got.ID != "a1" || got.Type != TypeDepository || got.Subtype != SubtypeChecking {
		t.Errorf("unexpected params passed to repo: %+v", got)
	}
	if !got.AvailableBalance.Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("AvailableBalance = %s, want 100.25", got.AvailableBalance)
	}
}

func TestService_UpsertAccount_DefaultsEnums(t *testing.T) {
	var got UpsertParams
	repo := &MockRepository{
		UpsertFunc: func(ctx context.Context, params UpsertParams) (*Account, error) {
			got = params
			return &Account{ID: params.ID}, nil
		},
	}
	svc := NewService(repo)

	if _, err := svc.UpsertAccount(context.Background(), UpsertParams{ID: "a1"}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	if got.Type != TypeUnknown || got.Subtype != SubtypeUnknown {
		t.Errorf("Type/Subtype = %q/%q, want unknown/unknown", got.Type, got.Subtype)
	}
}

func TestService_UpsertAccount_MissingID(t *testing.T) {
	called := false
	repo := &MockRepository{
		UpsertFunc: func(ctx context.Context, params UpsertParams) (*Account, error) {
			called = true
			return nil, nil
		},
	}
	svc := NewService(repo)

	_, err := svc.UpsertAccount(context.Background(), UpsertParams{Name: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("UpsertAccount() error = %v, want ErrInvalidInput", err)
	}
	if called {
		t.Error("repo should not be called for invalid params")
	}
}

func TestService_UpdateBalance(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		found   bool
		want    bool
		wantHit bool
	}{
		{"known account", "a1", true, true, true},
		{"unknown account", "zz", false, false, true},
		{"empty id", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := false
			repo := &MockRepository{
				UpdateBalanceFunc: func(ctx context.Context, id string, balance decimal.Decimal) (bool, error) {
					hit = true
					return tt.found, nil
				},
			}
			svc := NewService(repo)

			got, err := svc.UpdateBalance(context.Background(), tt.id, decimal.NewFromInt(5))
			if err != nil {
				t.Fatalf("UpdateBalance() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UpdateBalance() = %v, want %v", got, tt.want)
			}
			if hit != tt.wantHit {
				t.Errorf("repo called = %v, want %v", hit, tt.wantHit)
			}
		})
	}
}

func TestService_ResolveName(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &MockRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Account, error) {
			switch id {
			case "a1":
				return &Account{ID: "a1", Name: "Checking"}, nil
			case "blank":
				return &Account{ID: "blank"}, nil
			case "broken":
				return nil, dbErr
			}
			return nil, ErrAccountNotFound
		},
	}
	svc := NewService(repo)

	tests := []struct {
		id      string
		want    string
		wantErr error
	}{
		{"a1", "Checking", nil},
		{"blank", UnknownName, nil},
		{"missing", UnknownName, nil},
		{"broken", "", dbErr},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := svc.ResolveName(context.Background(), tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResolveName() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveName() = %q, want %q", got, tt.want)
			}
		})
	}
}
