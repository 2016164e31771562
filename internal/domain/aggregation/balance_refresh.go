package aggregation

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"finlink/internal/domain/credential"
)

// RefreshBalances re-reads live balances for every credential of userID and
// updates accounts already in the registry. Accounts the registry does not
// know are counted as skipped and never created.
func (s *Service) RefreshBalances(ctx context.Context, userID string) (*SyncReport, error) {
	ctx, span := aggTracer.Start(ctx, "aggregation.RefreshBalances", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	creds, err := s.linkedCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := newSyncReport(userID, len(creds))

	err = s.forEachCredential(ctx, creds, func(ctx context.Context, i int, c *credential.Credential) {
		out := &report.Credentials[i]
		out.CredentialID, out.ItemID, out.Status = c.ID, c.ItemID, StatusOK

		if err := s.refreshCredentialBalances(ctx, c, out); err != nil {
			out.fail(err)
			log.Printf("User %s: credential %s balance refresh failed: %v", userID, short(c.ID), err)
		}
	})
	if err != nil {
		return nil, err
	}

	report.tally()
	log.Printf("User %s: Balance refresh complete - Updated: %d, Skipped: %d, Failed credentials: %d",
		userID, report.Accounts, report.Skipped, report.Failed())

	return report, nil
}

func (s *Service) refreshCredentialBalances(ctx context.Context, c *credential.Credential, out *CredentialOutcome) error {
	start := time.Now()
	resp, err := s.client.GetBalances(ctx, c.AccessToken)
	observe(ctx, "balances", start, err)
	if err != nil {
		return newProviderError("balances", err)
	}

	for _, a := range resp.Accounts {
		updated, err := s.accounts.UpdateBalance(ctx, a.AccountID, a.Balances.AvailableOrZero())
		if err != nil {
			return fmt.Errorf("failed to update balance for %s: %w", a.AccountID, err)
		}
		if updated {
			out.Accounts++
		} else {
			out.Skipped++
		}
	}
	return nil
}
