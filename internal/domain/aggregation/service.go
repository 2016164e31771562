// Package aggregation links provider credentials to users and pulls their
// accounts, balances and transactions.
package aggregation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"finlink/internal/domain/account"
	"finlink/internal/domain/credential"
	"finlink/internal/infrastructure/plaid"
)

var (
	aggTracer              = otel.Tracer("finlink/aggregation")
	aggMeter               = otel.Meter("finlink/aggregation")
	providerCalls, _       = aggMeter.Int64Counter("aggregation.provider.calls", metric.WithDescription("Provider calls by operation and status"))
	providerCallLatency, _ = aggMeter.Float64Histogram("aggregation.provider.duration", metric.WithDescription("Provider call duration in seconds"), metric.WithUnit("s"))
)

// LinkGuard claims a one-time link token so it cannot be exchanged twice.
// Release drops a claim whose token the provider never consumed.
type LinkGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher receives domain events after they are committed.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event types
const (
	EventCredentialLinked = "credential.linked"
)

type Event struct {
	Type           string
	UserID         string
	CredentialID   string
	ItemID         string
	AccountsLinked int
}

// Options tunes the aggregation loops.
type Options struct {
	WindowDays  int
	PageSize    int
	MaxPages    int
	Concurrency int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{WindowDays: 30, PageSize: 100, MaxPages: 50, Concurrency: 4}
}

// Service runs token exchange, account sync, transaction aggregation and
// balance refresh for one provider.
type Service struct {
	client      plaid.ClientInterface
	credentials *credential.Service
	accounts    *account.Service
	opts        Options

	guard  LinkGuard
	events EventPublisher
	now    func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithLinkGuard enables replay protection for link tokens.
func WithLinkGuard(g LinkGuard) Option {
	return func(s *Service) { s.guard = g }
}

// WithEventPublisher publishes credential.linked events.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock overrides time.Now for the transaction window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	client plaid.ClientInterface,
	credentials *credential.Service,
	accounts *account.Service,
	opts Options,
	options ...Option,
) *Service {
	def := DefaultOptions()
	if opts.WindowDays < 1 {
		opts.WindowDays = def.WindowDays
	}
	if opts.PageSize < 1 {
		opts.PageSize = def.PageSize
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = def.MaxPages
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}

	s := &Service{
		client:      client,
		credentials: credentials,
		accounts:    accounts,
		opts:        opts,
		now:         time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// linkedCredentials lists the user's credentials, failing with
// ErrUserNotLinked when there are none.
func (s *Service) linkedCredentials(ctx context.Context, userID string) ([]*credential.Credential, error) {
	creds, err := s.credentials.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrUserNotLinked
	}
	return creds, nil
}

// forEachCredential runs fn for every credential with bounded parallelism.
// fn writes only to its own slot so results keep the listing order. It
// returns early only when ctx is cancelled.
func (s *Service) forEachCredential(ctx context.Context, creds []*credential.Credential, fn func(ctx context.Context, i int, c *credential.Credential)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, c := range creds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, i, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// observe records one provider call.
func observe(ctx context.Context, op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("status", status))
	providerCalls.Add(ctx, 1, attrs)
	providerCallLatency.Record(ctx, time.Since(start).Seconds(), attrs)
}

// accountParams converts a provider account into registry upsert params.
func accountParams(a plaid.Account) account.UpsertParams {
	p := account.UpsertParams{
		ID:               a.AccountID,
		Name:             a.Name,
		Type:             account.ParseType(a.Type),
		Subtype:          account.SubtypeUnknown,
		AvailableBalance: a.Balances.AvailableOrZero(),
	}
	if a.Subtype != nil {
		p.Subtype = account.ParseSubtype(*a.Subtype)
	}
	if a.Mask != nil {
		p.Mask = *a.Mask
	}
	if a.OfficialName != nil {
		p.OfficialName = *a.OfficialName
	}
	return p
}
