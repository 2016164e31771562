package aggregation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"finlink/internal/domain/credential"
	"finlink/internal/infrastructure/plaid"
)

const dateLayout = "2006-01-02"

// Window returns the inclusive [start, end] dates, as YYYY-MM-DD in UTC,
// that GetTransactions would query right now.
func (s *Service) Window() (string, string) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.opts.WindowDays)
	return start.Format(dateLayout), end.Format(dateLayout)
}

// GetTransactions merges the recent transactions of every credential of
// userID. Output keeps the credential listing order, then the provider's
// order; nothing is re-sorted. Credentials that fail are listed in the
// report and their transactions are left out.
func (s *Service) GetTransactions(ctx context.Context, userID string) (*TransactionReport, error) {
	ctx, span := aggTracer.Start(ctx, "aggregation.GetTransactions", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	creds, err := s.linkedCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	startDate, endDate := s.Window()
	report := &TransactionReport{
		RunID:       uuid.NewString(),
		UserID:      userID,
		StartDate:   startDate,
		EndDate:     endDate,
		Credentials: make([]CredentialOutcome, len(creds)),
	}
	slots := make([][]Transaction, len(creds))

	err = s.forEachCredential(ctx, creds, func(ctx context.Context, i int, c *credential.Credential) {
		out := &report.Credentials[i]
		out.CredentialID, out.ItemID, out.Status = c.ID, c.ItemID, StatusOK

		txs, truncated, err := s.fetchTransactions(ctx, c, startDate, endDate)
		if err != nil {
			out.fail(err)
			log.Printf("User %s: credential %s transaction fetch failed: %v", userID, short(c.ID), err)
			return
		}
		if truncated {
			out.Status = StatusTruncated
			log.Printf("User %s: credential %s stopped after %d pages", userID, short(c.ID), s.opts.MaxPages)
		}
		out.Transactions = len(txs)
		slots[i] = txs
	})
	if err != nil {
		return nil, err
	}

	report.Transactions = make([]Transaction, 0)
	for _, txs := range slots {
		report.Transactions = append(report.Transactions, txs...)
	}

	span.SetAttributes(attribute.Int("transactions", len(report.Transactions)))
	log.Printf("User %s: Aggregated %d transactions from %d credentials (%d failed)",
		userID, len(report.Transactions), len(creds), report.Failed())

	return report, nil
}

// fetchTransactions walks the provider's pages for one credential until the
// reported total is reached, a page comes back empty, or MaxPages is hit.
func (s *Service) fetchTransactions(ctx context.Context, c *credential.Credential, startDate, endDate string) ([]Transaction, bool, error) {
	names := make(map[string]string)
	var txs []Transaction
	offset := 0

	for page := 0; page < s.opts.MaxPages; page++ {
		start := time.Now()
		resp, err := s.client.GetTransactions(ctx, plaid.TransactionsRequest{
			AccessToken: c.AccessToken,
			StartDate:   startDate,
			EndDate:     endDate,
			Count:       s.opts.PageSize,
			Offset:      offset,
		})
		observe(ctx, "transactions", start, err)
		if err != nil {
			return nil, false, newProviderError("transactions", err)
		}

		for _, pt := range resp.Transactions {
			tx, err := s.toTransaction(ctx, pt, names)
			if err != nil {
				return nil, false, err
			}
			txs = append(txs, tx)
		}

		offset += len(resp.Transactions)
		if len(resp.Transactions) == 0 || offset >= resp.TotalTransactions {
			return txs, false, nil
		}
	}

	return txs, true, nil
}

// toTransaction applies the category and account-name fallbacks. names
// caches registry lookups for the duration of one credential.
func (s *Service) toTransaction(ctx context.Context, pt plaid.Transaction, names map[string]string) (Transaction, error) {
	name, ok := names[pt.AccountID]
	if !ok {
		var err error
		name, err = s.accounts.ResolveName(ctx, pt.AccountID)
		if err != nil {
			return Transaction{}, err
		}
		names[pt.AccountID] = name
	}

	category := pt.PrimaryCategory()
	if category == "" {
		category = DefaultCategory
	}

	return Transaction{
		Name:        pt.Name,
		Date:        pt.Date,
		Amount:      pt.Amount,
		Category:    category,
		AccountID:   pt.AccountID,
		AccountName: name,
	}, nil
}
