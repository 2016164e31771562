package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LinkResult identifies the credential created by ExchangeAndLink. It never
// carries account data.
type LinkResult struct {
	CredentialID   string `json:"credentialId"`
	ItemID         string `json:"itemId"`
	AccountsLinked int    `json:"accountsLinked"`
}

// ExchangeAndLink swaps a one-time link token for an access credential,
// binds it to userID and registers the credential's accounts.
//
// The two stores are not updated atomically. If the account pull fails the
// credential stays linked and the *ProviderError is returned; SyncAccounts
// repairs that state.
func (s *Service) ExchangeAndLink(ctx context.Context, userID, publicToken string) (*LinkResult, error) {
	ctx, span := aggTracer.Start(ctx, "aggregation.ExchangeAndLink", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	res, err := s.exchangeAndLink(ctx, userID, publicToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) exchangeAndLink(ctx context.Context, userID, publicToken string) (*LinkResult, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, fmt.Errorf("%w: public token is required", ErrInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}

	// The token is single use, so reject unknown users before spending it.
	if _, err := s.credentials.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	guardKey := s.credentials.IDFor(publicToken)
	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, guardKey)
		if err != nil {
			log.Printf("User %s: link guard unavailable, continuing without it: %v", userID, err)
		} else if !ok {
			return nil, fmt.Errorf("%w: link token already used", ErrInvalidInput)
		}
		claimed = ok
	}

	start := time.Now()
	exch, err := s.client.ExchangePublicToken(ctx, publicToken)
	observe(ctx, "exchange", start, err)
	if err == nil && exch.AccessToken == "" {
		err = errors.New("response carried no access token")
	}
	if err != nil {
		// The provider did not hand out a credential, so the token may still
		// be spendable and the caller is free to retry.
		if claimed {
			s.releaseClaim(ctx, userID, guardKey)
		}
		return nil, newProviderError("exchange", err)
	}

	cred, err := s.credentials.Put(ctx, userID, exch.AccessToken, exch.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to bind credential: %w", err)
	}
	log.Printf("User %s: linked credential %s (item %s)", userID, short(cred.ID), exch.ItemID)

	result := &LinkResult{CredentialID: cred.ID, ItemID: exch.ItemID}

	start = time.Now()
	resp, err := s.client.GetAccounts(ctx, exch.AccessToken)
	observe(ctx, "accounts", start, err)
	if err != nil {
		log.Printf("User %s: credential %s linked but account pull failed: %v", userID, short(cred.ID), err)
		return nil, newProviderError("accounts", err)
	}

	for _, a := range resp.Accounts {
		if _, err := s.accounts.UpsertAccount(ctx, accountParams(a)); err != nil {
			return nil, fmt.Errorf("failed to upsert account %s: %w", a.AccountID, err)
		}
		result.AccountsLinked++
	}
	s.markSynced(ctx, userID, cred.ID)

	s.publish(ctx, Event{
		Type:           EventCredentialLinked,
		UserID:         userID,
		CredentialID:   cred.ID,
		ItemID:         exch.ItemID,
		AccountsLinked: result.AccountsLinked,
	})

	log.Printf("User %s: Link complete - Accounts: %d", userID, result.AccountsLinked)
	return result, nil
}

func (s *Service) releaseClaim(ctx context.Context, userID, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, key); err != nil {
		log.Printf("User %s: failed to release link guard: %v", userID, err)
	}
}

// markSynced stamps the credential so a pending repair can skip it. A
// failure only costs a redundant account pull later.
func (s *Service) markSynced(ctx context.Context, userID, credentialID string) {
	if err := s.credentials.MarkAccountsSynced(ctx, credentialID); err != nil {
		log.Printf("User %s: %v", userID, err)
	}
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		log.Printf("User %s: failed to publish %s: %v", e.UserID, e.Type, err)
	}
}

// short trims a credential ID for log lines.
func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
