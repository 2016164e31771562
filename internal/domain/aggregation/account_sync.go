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

// SyncAccounts pulls the account list behind every credential of userID and
// upserts each account. A failing credential is recorded in the report and
// does not stop the others.
func (s *Service) SyncAccounts(ctx context.Context, userID string) (*SyncReport, error) {
	ctx, span := aggTracer.Start(ctx, "aggregation.SyncAccounts", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	creds, err := s.linkedCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := newSyncReport(userID, len(creds))
	log.Printf("User %s: Syncing accounts for %d credentials", userID, len(creds))

	err = s.forEachCredential(ctx, creds, func(ctx context.Context, i int, c *credential.Credential) {
		out := &report.Credentials[i]
		out.CredentialID, out.ItemID, out.Status = c.ID, c.ItemID, StatusOK

		if err := s.syncCredentialAccounts(ctx, c, out); err != nil {
			out.fail(err)
			log.Printf("User %s: credential %s account sync failed: %v", userID, short(c.ID), err)
		}
	})
	if err != nil {
		return nil, err
	}

	report.tally()
	span.SetAttributes(attribute.Int("accounts", report.Accounts), attribute.Int("failed", report.Failed()))
	log.Printf("User %s: Account sync complete - Accounts: %d, Failed credentials: %d",
		userID, report.Accounts, report.Failed())

	return report, nil
}

func (s *Service) syncCredentialAccounts(ctx context.Context, c *credential.Credential, out *CredentialOutcome) error {
	start := time.Now()
	resp, err := s.client.GetAccounts(ctx, c.AccessToken)
	observe(ctx, "accounts", start, err)
	if err != nil {
		return newProviderError("accounts", err)
	}

	for _, a := range resp.Accounts {
		if _, err := s.accounts.UpsertAccount(ctx, accountParams(a)); err != nil {
			return fmt.Errorf("failed to upsert account %s: %w", a.AccountID, err)
		}
		out.Accounts++
	}
	s.markSynced(ctx, c.UserID, c.ID)
	return nil
}

// RepairCredential registers the accounts of one credential whose link
// never finished its account pull. A credential that was already synced is
// reported as StatusUpToDate without calling the provider. A credential no
// longer bound to userID yields ErrUserNotLinked.
func (s *Service) RepairCredential(ctx context.Context, userID, credentialID string) (*SyncReport, error) {
	ctx, span := aggTracer.Start(ctx, "aggregation.RepairCredential", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("credential.id", short(credentialID)),
	))
	defer span.End()

	creds, err := s.linkedCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	var target *credential.Credential
	for _, c := range creds {
		if c.ID == credentialID {
			target = c
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: credential %s", ErrUserNotLinked, short(credentialID))
	}

	report := newSyncReport(userID, 1)
	out := &report.Credentials[0]
	out.CredentialID, out.ItemID, out.Status = target.ID, target.ItemID, StatusOK

	if target.AccountsSynced() {
		out.Status = StatusUpToDate
		return report, nil
	}

	log.Printf("User %s: repairing accounts of credential %s", userID, short(target.ID))
	if err := s.syncCredentialAccounts(ctx, target, out); err != nil {
		out.fail(err)
		log.Printf("User %s: credential %s repair failed: %v", userID, short(target.ID), err)
	}
	report.tally()
	return report, nil
}
