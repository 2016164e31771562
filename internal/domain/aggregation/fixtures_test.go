package aggregation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finlink/internal/domain/account"
	"finlink/internal/domain/credential"
	"finlink/internal/domain/user"
	"finlink/internal/infrastructure/plaid"
)

// MockClient implements plaid.ClientInterface
type MockClient struct {
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error)
	GetAccountsFunc         func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error)
	GetBalancesFunc         func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error)
	GetTransactionsFunc     func(ctx context.Context, req plaid.TransactionsRequest) (*plaid.TransactionsResponse, error)

	mu    sync.Mutex
	calls int
}

func (m *MockClient) called() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	m.called()
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return nil, errors.New("unexpected ExchangePublicToken call")
}

func (m *MockClient) GetAccounts(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
	m.called()
	if m.GetAccountsFunc != nil {
		return m.GetAccountsFunc(ctx, accessToken)
	}
	return &plaid.AccountsResponse{}, nil
}

func (m *MockClient) GetBalances(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
	m.called()
	if m.GetBalancesFunc != nil {
		return m.GetBalancesFunc(ctx, accessToken)
	}
	return &plaid.AccountsResponse{}, nil
}

func (m *MockClient) GetTransactions(ctx context.Context, req plaid.TransactionsRequest) (*plaid.TransactionsResponse, error) {
	m.called()
	if m.GetTransactionsFunc != nil {
		return m.GetTransactionsFunc(ctx, req)
	}
	return &plaid.TransactionsResponse{}, nil
}

type memUsers struct {
	users map[string]*user.User
}

func (r *memUsers) Create(ctx context.Context, p user.CreateUserParams) (*user.User, error) {
	u := &user.User{ID: p.Email, Email: p.Email}
	r.users[u.ID] = u
	return u, nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*user.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (r *memUsers) ListWithCredentials(ctx context.Context) ([]*user.User, error) {
	return nil, nil
}

type memCredentials struct {
	mu   sync.Mutex
	seq  int
	recs map[string]*credential.Record
}

func (r *memCredentials) Upsert(ctx context.Context, rec *credential.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.recs[rec.ID]; ok {
		existing.UserID, existing.SealedToken, existing.ItemID = rec.UserID, rec.SealedToken, rec.ItemID
		return nil
	}
	r.seq++
	cp := *rec
	cp.CreatedAt = time.Unix(int64(r.seq), 0)
	r.recs[rec.ID] = &cp
	return nil
}

func (r *memCredentials) ListByUserID(ctx context.Context, userID string) ([]*credential.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*credential.Record
	for _, rec := range r.recs {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memCredentials) MarkAccountsSynced(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[id]; ok {
		at := time.Unix(int64(r.seq), 0)
		rec.AccountsSyncedAt = &at
	}
	return nil
}

type memAccounts struct {
	mu   sync.Mutex
	rows map[string]*account.Account
}

func (r *memAccounts) Upsert(ctx context.Context, p account.UpsertParams) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := &account.Account{
		ID:               p.ID,
		Name:             p.Name,
		Type:             p.Type,
		Subtype:          p.Subtype,
		Mask:             p.Mask,
		OfficialName:     p.OfficialName,
		AvailableBalance: p.AvailableBalance,
	}
	r.rows[p.ID] = acc
	cp := *acc
	return &cp, nil
}

func (r *memAccounts) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	acc.AvailableBalance = balance
	return true, nil
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.rows[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (r *memAccounts) List(ctx context.Context) ([]*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*account.Account, 0, len(r.rows))
	for _, acc := range r.rows {
		cp := *acc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type prefixCipher struct{}

func (prefixCipher) Encrypt(s string) (string, error) { return "enc:" + s, nil }
func (prefixCipher) Decrypt(s string) (string, error) { return strings.TrimPrefix(s, "enc:"), nil }
func (prefixCipher) Fingerprint(s string) string      { return "id-" + s }

type fixture struct {
	client      *MockClient
	users       *memUsers
	creds       *memCredentials
	accounts    *memAccounts
	credentials *credential.Service
	registry    *account.Service
}

func newFixture(userIDs ...string) *fixture {
	f := &fixture{
		client:   &MockClient{},
		users:    &memUsers{users: make(map[string]*user.User)},
		creds:    &memCredentials{recs: make(map[string]*credential.Record)},
		accounts: &memAccounts{rows: make(map[string]*account.Account)},
	}
	for _, id := range userIDs {
		f.users.users[id] = &user.User{ID: id}
	}
	f.credentials = credential.NewService(f.creds, f.users, prefixCipher{})
	f.registry = account.NewService(f.accounts)
	return f
}

func (f *fixture) service(opts Options, options ...Option) *Service {
	return NewService(f.client, f.credentials, f.registry, opts, options...)
}

// link stores accessToken for userID without going through the provider.
func (f *fixture) link(userID string, accessTokens ...string) {
	for _, tok := range accessTokens {
		if _, err := f.credentials.Put(context.Background(), userID, tok, "item-"+tok); err != nil {
			panic(err)
		}
	}
}

func (f *fixture) seedAccount(id, name string, balance string) {
	f.accounts.rows[id] = &account.Account{
		ID:               id,
		Name:             name,
		Type:             account.TypeDepository,
		Subtype:          account.SubtypeChecking,
		AvailableBalance: decimal.RequireFromString(balance),
	}
}

func strPtr(s string) *string { return &s }

func plaidAccount(id, name, typ string, available *float64) plaid.Account {
	a := plaid.Account{AccountID: id, Name: name, Type: typ}
	if available != nil {
		a.Balances.Available = decimal.NewNullDecimal(decimal.NewFromFloat(*available))
	}
	return a
}

func f64(v float64) *float64 { return &v }
