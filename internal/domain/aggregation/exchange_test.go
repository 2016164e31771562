package aggregation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"finlink/internal/domain/account"
	"finlink/internal/infrastructure/plaid"
)

type memGuard struct {
	mu      sync.Mutex
	claimed  map[string]bool
	released []string
	err      error
}

func (g *memGuard) Claim(ctx context.Context, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *memGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, key)
	delete(g.claimed, key)
	return nil
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.events = append(p.events, e)
	return p.err
}

func exchangeTo(accessToken string) func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
	return func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		return &plaid.ExchangeResponse{AccessToken: accessToken, ItemID: "item-1"}, nil
	}
}

func TestExchangeAndLink_LinksCredentialAndAccounts(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		if publicToken != "pub-123" {
			t.Errorf("publicToken = %q, want pub-123", publicToken)
		}
		return &plaid.ExchangeResponse{AccessToken: "acc-1", ItemID: "item-1"}, nil
	}
	f.client.GetAccountsFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
		if accessToken != "acc-1" {
			t.Errorf("accessToken = %q, want acc-1", accessToken)
		}
		return &plaid.AccountsResponse{Accounts: []plaid.Account{
			plaidAccount("a1", "Checking", "depository", f64(100)),
		}}, nil
	}
	svc := f.service(DefaultOptions())

	res, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-123")
	if err != nil {
		t.Fatalf("ExchangeAndLink() error = %v", err)
	}
	if res.AccountsLinked != 1 || res.ItemID != "item-1" || res.CredentialID != "id-acc-1" {
		t.Errorf("unexpected result: %+v", res)
	}

	accounts, _ := f.registry.ListAccounts(context.Background())
	if len(accounts) != 1 {
		t.Fatalf("registry holds %d accounts, want 1", len(accounts))
	}
	if accounts[0].ID != "a1" || accounts[0].Name != "Checking" {
		t.Errorf("account = %+v, want a1/Checking", accounts[0])
	}

	creds, _ := f.credentials.ListForUser(context.Background(), "u1")
	if len(creds) != 1 || creds[0].AccessToken != "acc-1" {
		t.Errorf("credentials = %+v, want [acc-1]", creds)
	}
}

func TestExchangeAndLink_TwoArtifactsYieldTwoCredentials(t *testing.T) {
	f := newFixture("u1")
	tokens := map[string]string{"pub-1": "acc-1", "pub-2": "acc-2"}
	f.client.ExchangePublicTokenFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		return &plaid.ExchangeResponse{AccessToken: tokens[publicToken]}, nil
	}
	svc := f.service(DefaultOptions())

	for _, pub := range []string{"pub-1", "pub-2"} {
		if _, err := svc.ExchangeAndLink(context.Background(), "u1", pub); err != nil {
			t.Fatalf("ExchangeAndLink(%s) error = %v", pub, err)
		}
	}

	creds, err := f.credentials.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(creds) != 2 {
		t.Fatalf("len(creds) = %d, want 2", len(creds))
	}
	if creds[0].AccessToken != "acc-1" || creds[1].AccessToken != "acc-2" {
		t.Errorf("credentials out of order: %s, %s", creds[0].AccessToken, creds[1].AccessToken)
	}
}

func TestExchangeAndLink_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		token  string
	}{
		{"empty token", "u1", ""},
		{"whitespace token", "u1", "  \t"},
		{"empty user", "", "pub-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("u1")
			svc := f.service(DefaultOptions())

			_, err := svc.ExchangeAndLink(context.Background(), tt.userID, tt.token)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			if f.client.Calls() != 0 {
				t.Errorf("provider called %d times, want 0", f.client.Calls())
			}
		})
	}
}

func TestExchangeAndLink_UnknownUser(t *testing.T) {
	f := newFixture()
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	svc := f.service(DefaultOptions())

	_, err := svc.ExchangeAndLink(context.Background(), "ghost", "pub-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if f.client.Calls() != 0 {
		t.Error("link token must not be spent for an unknown user")
	}
}

func TestExchangeAndLink_ExchangeRejected(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
		return nil, &plaid.Error{
			StatusCode:   http.StatusBadRequest,
			ErrorType:    "INVALID_INPUT",
			ErrorCode:    "INVALID_PUBLIC_TOKEN",
			ErrorMessage: "provided public token is invalid",
		}
	}
	svc := f.service(DefaultOptions())

	_, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-bad")

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Op != "exchange" || pe.Code != "INVALID_PUBLIC_TOKEN" || pe.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected provider error: %+v", pe)
	}
	if len(f.creds.recs) != 0 {
		t.Error("no credential should be stored when the exchange fails")
	}
}

func TestExchangeAndLink_EmptyAccessToken(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("")
	svc := f.service(DefaultOptions())

	_, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1")

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if len(f.creds.recs) != 0 {
		t.Error("no credential should be stored without an access token")
	}
}

func TestExchangeAndLink_AccountPullFailsLeavesCredential(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	f.client.GetAccountsFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
		return nil, &plaid.Error{StatusCode: http.StatusInternalServerError, ErrorType: "API_ERROR", ErrorCode: "INTERNAL_SERVER_ERROR"}
	}
	svc := f.service(DefaultOptions())

	_, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Op != "accounts" {
		t.Fatalf("error = %v, want accounts *ProviderError", err)
	}

	creds, _ := f.credentials.ListForUser(context.Background(), "u1")
	if len(creds) != 1 {
		t.Fatalf("credential should remain linked, got %d", len(creds))
	}

	// A later sync repairs the empty registry.
	f.client.GetAccountsFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
		return &plaid.AccountsResponse{Accounts: []plaid.Account{plaidAccount("a1", "Checking", "depository", nil)}}, nil
	}
	report, err := svc.SyncAccounts(context.Background(), "u1")
	if err != nil || report.Err() != nil {
		t.Fatalf("SyncAccounts() error = %v / %v", err, report.Err())
	}
	if _, err := f.registry.GetAccount(context.Background(), "a1"); err != nil {
		t.Errorf("account a1 not registered after sync: %v", err)
	}
}

func TestExchangeAndLink_MapsEnumsAndMissingBalance(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	f.client.GetAccountsFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
		known := plaidAccount("a1", "Card", "credit", f64(12.5))
		known.Subtype = strPtr("credit card")
		known.Mask = strPtr("4242")
		odd := plaidAccount("a2", "Mystery", "crypto", nil)
		odd.Subtype = strPtr("wallet")
		return &plaid.AccountsResponse{Accounts: []plaid.Account{known, odd}}, nil
	}
	svc := f.service(DefaultOptions())

	if _, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1"); err != nil {
		t.Fatalf("ExchangeAndLink() error = %v", err)
	}

	a1, _ := f.registry.GetAccount(context.Background(), "a1")
	if a1.Type != account.TypeCredit || a1.Subtype != account.SubtypeCreditCard || a1.Mask != "4242" {
		t.Errorf("a1 = %+v", a1)
	}
	if a1.AvailableBalance.String() != "12.5" {
		t.Errorf("a1 balance = %s, want 12.5", a1.AvailableBalance)
	}

	a2, _ := f.registry.GetAccount(context.Background(), "a2")
	if a2.Type != account.TypeUnknown || a2.Subtype != account.SubtypeUnknown {
		t.Errorf("a2 type/subtype = %s/%s, want unknown/unknown", a2.Type, a2.Subtype)
	}
	if !a2.AvailableBalance.IsZero() {
		t.Errorf("a2 balance = %s, want 0", a2.AvailableBalance)
	}
}

func TestExchangeAndLink_ReplayGuard(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	guard := &memGuard{claimed: make(map[string]bool)}
	svc := f.service(DefaultOptions(), WithLinkGuard(guard))

	if _, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1"); err != nil {
		t.Fatalf("first ExchangeAndLink() error = %v", err)
	}
	calls := f.client.Calls()

	_, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("replayed ExchangeAndLink() error = %v, want ErrInvalidInput", err)
	}
	if f.client.Calls() != calls {
		t.Error("replayed token must not reach the provider")
	}
}

func TestExchangeAndLink_RetryAfterProviderFailure(t *testing.T) {
	tests := []struct {
		name      string
		firstResp *plaid.ExchangeResponse
		firstErr  error
	}{
		{"provider 500", nil, &plaid.Error{StatusCode: http.StatusInternalServerError, ErrorType: "API_ERROR", ErrorMessage: "internal"}},
		{"timeout", nil, context.DeadlineExceeded},
		{"no access token", &plaid.ExchangeResponse{ItemID: "item-1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("u1")
			exchanges := 0
			f.client.ExchangePublicTokenFunc = func(ctx context.Context, publicToken string) (*plaid.ExchangeResponse, error) {
				exchanges++
				if exchanges == 1 {
					return tt.firstResp, tt.firstErr
				}
				return &plaid.ExchangeResponse{AccessToken: "acc-1", ItemID: "item-1"}, nil
			}
			guard := &memGuard{claimed: make(map[string]bool)}
			svc := f.service(DefaultOptions(), WithLinkGuard(guard))

			_, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1")
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("first ExchangeAndLink() error = %v, want *ProviderError", err)
			}
			if len(guard.released) != 1 {
				t.Errorf("released = %v, want one release", guard.released)
			}

			res, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1")
			if err != nil {
				t.Fatalf("retried ExchangeAndLink() error = %v", err)
			}
			if exchanges != 2 {
				t.Errorf("provider exchanges = %d, want 2", exchanges)
			}
			if res.CredentialID == "" {
				t.Error("retry produced no credential")
			}

			// Once consumed the claim is kept.
			if _, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1"); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("third ExchangeAndLink() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestExchangeAndLink_GuardUnavailable(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	guard := &memGuard{err: errors.New("redis down")}
	svc := f.service(DefaultOptions(), WithLinkGuard(guard))

	if _, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1"); err != nil {
		t.Fatalf("ExchangeAndLink() error = %v, want success when guard is unavailable", err)
	}
}

func TestExchangeAndLink_PublishesEvent(t *testing.T) {
	f := newFixture("u1")
	f.client.ExchangePublicTokenFunc = exchangeTo("acc-1")
	f.client.GetAccountsFunc = func(ctx context.Context, accessToken string) (*plaid.AccountsResponse, error) {
		return &plaid.AccountsResponse{Accounts: []plaid.Account{plaidAccount("a1", "Checking", "depository", nil)}}, nil
	}
	pub := &recordingPublisher{err: errors.New("stream unavailable")}
	svc := f.service(DefaultOptions(), WithEventPublisher(pub))

	if _, err := svc.ExchangeAndLink(context.Background(), "u1", "pub-1"); err != nil {
		t.Fatalf("ExchangeAndLink() error = %v, publish failures must not fail the link", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != EventCredentialLinked || e.UserID != "u1" || e.CredentialID != "id-acc-1" || e.AccountsLinked != 1 {
		t.Errorf("unexpected event: %+v", e)
	}
}
