package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"finlink/internal/domain/aggregation"
)

func TestCleanIDs(t *testing.T) {
	got := cleanIDs([]string{" u1 ", "", "u2", "u1"})
	if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("cleanIDs() = %v, want [u1 u2]", got)
	}
}

func TestParseBatchFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantUsers   []string
		wantAll     bool
		wantWorkers int
	}{
		{"single user", []string{"--user-id=u1"}, false, []string{"u1"}, false, 4},
		{"comma list", []string{"--user-id=u1,u2", "--workers=8"}, false, []string{"u1", "u2"}, false, 8},
		{"repeated flag", []string{"--user-id", "u1", "--user-id", "u2"}, false, []string{"u1", "u2"}, false, 4},
		{"all users", []string{"--all"}, false, []string{}, true, 4},
		{"zero workers clamps", []string{"--all", "--workers=0"}, false, []string{}, true, 1},
		{"nothing selected", []string{}, true, nil, false, 0},
		{"unknown flag", []string{"--bogus"}, true, nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bf, err := parseBatchFlags("sync-accounts", tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBatchFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if strings.Join(bf.userIDs, ",") != strings.Join(tt.wantUsers, ",") {
				t.Errorf("userIDs = %v, want %v", bf.userIDs, tt.wantUsers)
			}
			if bf.all != tt.wantAll || bf.workers != tt.wantWorkers {
				t.Errorf("all/workers = %v/%d, want %v/%d", bf.all, bf.workers, tt.wantAll, tt.wantWorkers)
			}
		})
	}
}

func TestParseBatchFlags_NothingSelectedIsUsageError(t *testing.T) {
	_, err := parseBatchFlags("refresh-balances", nil)
	if !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want errUsage", err)
	}
}

func TestPrintSyncReport(t *testing.T) {
	var buf bytes.Buffer
	printSyncReport(&buf, &aggregation.SyncReport{
		RunID:  "run-1",
		UserID: "u1",
		Credentials: []aggregation.CredentialOutcome{
			{CredentialID: "c1", Status: aggregation.StatusOK, Accounts: 2},
			{CredentialID: "c2", Status: aggregation.StatusFailed, Error: "provider accounts failed: boom"},
		},
		Accounts: 2,
		Skipped:  1,
	})

	out := buf.String()
	for _, want := range []string{"=== User u1 ===", "2 (1 failed)", "Skipped:      1", "c2: provider accounts failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTransactions(t *testing.T) {
	var buf bytes.Buffer
	printTransactions(&buf, &aggregation.TransactionReport{
		UserID:    "u1",
		StartDate: "2024-05-02",
		EndDate:   "2024-06-01",
		Transactions: []aggregation.Transaction{{
			Name:        "Coffee",
			Date:        "2024-05-30",
			Amount:      decimal.RequireFromString("4.5"),
			Category:    "FOOD_AND_DRINK",
			AccountName: "Checking",
		}},
		Credentials: []aggregation.CredentialOutcome{
			{CredentialID: "c1", Status: aggregation.StatusTruncated},
		},
	})

	out := buf.String()
	for _, want := range []string{"2024-05-02 to 2024-06-01", "4.50", "Coffee", "truncated: c1", "1 transactions from 1 credentials"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Checking", 20); got != "Checking" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate() = %q, want abc…", got)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	out := buf.String()

	if out != usage {
		t.Error("printUsage() altered the usage text")
	}
	if strings.HasSuffix(out, "\n\n") {
		t.Error("usage ends with a blank line")
	}
	for name := range commands {
		if !strings.Contains(out, name) {
			t.Errorf("usage does not mention %q", name)
		}
	}
}
