package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finlink/internal/domain/aggregation"
	"finlink/internal/domain/user"
	"finlink/internal/shared/auth"
)

var errUsage = errors.New("invalid arguments")

func runCreateUser(args []string) error {
	fs := newFlagSet("create-user", "admin create-user --email=ana@example.com --issue-token")
	email := fs.String("email", "", "Email of the new user")
	issueToken := fs.Bool("issue-token", false, "Print a 24h session token for the user")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := user.CreateUserParams{Email: *email}
	params.Normalize()
	if err := params.Validate(); err != nil {
		fs.Usage()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	u, err := e.users.Create(ctx, params)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s)\n", u.ID, u.Email)

	if *issueToken {
		token, err := auth.NewJWT(e.cfg.JWT.Secret).Generate(u.ID, u.Email)
		if err != nil {
			return err
		}
		fmt.Printf("Token: %s\n", token)
	}
	return nil
}

// batchFlags are shared by the commands that run once per user.
type batchFlags struct {
	userIDs []string
	all     bool
	workers int
	timeout time.Duration
}

func parseBatchFlags(name string, args []string) (*batchFlags, error) {
	fs := newFlagSet(name,
		"admin "+name+" --user-id=<id>",
		"admin "+name+" --user-id=<id1>,<id2>",
		"admin "+name+" --all --workers=8 --timeout=1h",
	)

	var bf batchFlags
	fs.StringSliceVar(&bf.userIDs, "user-id", nil, "User ID(s) to process (comma-separated for multiple)")
	fs.BoolVar(&bf.all, "all", false, "Process every user with a linked credential")
	fs.IntVar(&bf.workers, "workers", 4, "Number of users processed concurrently")
	fs.DurationVar(&bf.timeout, "timeout", 30*time.Minute, "Timeout for the whole run")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	bf.userIDs = cleanIDs(bf.userIDs)
	if len(bf.userIDs) == 0 && !bf.all {
		fmt.Println("Error: must specify --user-id or --all")
		fs.Usage()
		return nil, errUsage
	}
	if bf.workers < 1 {
		bf.workers = 1
	}
	return &bf, nil
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type userRun func(ctx context.Context, userID string) (*aggregation.SyncReport, error)

// runBatch calls run for every selected user, at most bf.workers at a time,
// and prints each report. One user's failure does not stop the others.
func runBatch(name string, args []string, pick func(*env) userRun) error {
	bf, err := parseBatchFlags(name, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), bf.timeout)
	defer cancel()

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	userIDs, err := e.resolveUsers(ctx, bf.userIDs, bf.all)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		log.Println("No users to process")
		return nil
	}

	log.Printf("Starting %s for %d user(s) with %d workers", name, len(userIDs), bf.workers)
	start := time.Now()
	run := pick(e)

	var (
		mu     sync.Mutex
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.workers)
	for _, id := range userIDs {
		g.Go(func() error {
			report, err := run(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("\n=== User %s ===\n  Error: %v\n", id, err)
				return nil
			}
			if report.Err() != nil {
				failed++
			}
			printSyncReport(os.Stdout, report)
			return nil
		})
	}
	g.Wait()

	log.Printf("%s completed in %v (%d/%d users with failures)", name, time.Since(start).Round(time.Millisecond), failed, len(userIDs))
	if failed > 0 {
		return fmt.Errorf("%d of %d users had failures", failed, len(userIDs))
	}
	return nil
}

func runSyncAccounts(args []string) error {
	return runBatch("sync-accounts", args, func(e *env) userRun { return e.aggregator.SyncAccounts })
}

func runRefreshBalances(args []string) error {
	return runBatch("refresh-balances", args, func(e *env) userRun { return e.aggregator.RefreshBalances })
}

func printSyncReport(w io.Writer, r *aggregation.SyncReport) {
	fmt.Fprintf(w, "\n=== User %s ===\n", r.UserID)
	fmt.Fprintf(w, "  Run:          %s\n", r.RunID)
	fmt.Fprintf(w, "  Credentials:  %d (%d failed)\n", len(r.Credentials), r.Failed())
	fmt.Fprintf(w, "  Accounts:     %d\n", r.Accounts)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:      %d\n", r.Skipped)
	}
	for _, o := range r.Credentials {
		if o.Status == aggregation.StatusFailed {
			fmt.Fprintf(w, "    - %s: %s\n", shortID(o.CredentialID), o.Error)
		}
	}
}

func runTransactions(args []string) error {
	fs := newFlagSet("transactions", "admin transactions --user-id=<id>", "admin transactions --user-id=<id> --json")
	userID := fs.String("user-id", "", "User whose transactions to print")
	asJSON := fs.Bool("json", false, "Print the full report as JSON")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.aggregator.GetTransactions(ctx, strings.TrimSpace(*userID))
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printTransactions(os.Stdout, report)
	}
	return report.Err()
}

func printTransactions(w io.Writer, r *aggregation.TransactionReport) {
	fmt.Fprintf(w, "Transactions for user %s, %s to %s\n\n", r.UserID, r.StartDate, r.EndDate)
	for _, tx := range r.Transactions {
		fmt.Fprintf(w, "%s  %12s  %-24s  %-20s  %s\n",
			tx.Date, tx.Amount.StringFixed(2), truncate(tx.Category, 24), truncate(tx.AccountName, 20), tx.Name)
	}
	fmt.Fprintf(w, "\n%d transactions from %d credentials\n", len(r.Transactions), len(r.Credentials))
	for _, o := range r.Credentials {
		switch o.Status {
		case aggregation.StatusFailed:
			fmt.Fprintf(w, "  failed:    %s: %s\n", shortID(o.CredentialID), o.Error)
		case aggregation.StatusTruncated:
			fmt.Fprintf(w, "  truncated: %s\n", shortID(o.CredentialID))
		}
	}
}

func runListAccounts(args []string) error {
	fs := newFlagSet("list-accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	accounts, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		fmt.Printf("%-40s  %-24s  %-12s  %-16s  %12s\n",
			a.ID, truncate(a.Name, 24), a.Type, a.Subtype, a.AvailableBalance.StringFixed(2))
	}
	fmt.Printf("\n%d accounts\n", len(accounts))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
