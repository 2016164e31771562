package aggregation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCategory is used when the provider sends no primary category.
const DefaultCategory = "Uncategorized"

type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusTruncated Status = "truncated"
	StatusUpToDate  Status = "up_to_date"
)

// CredentialOutcome is the per-credential result of one run.
type CredentialOutcome struct {
	CredentialID string `json:"credentialId"`
	ItemID       string `json:"itemId,omitempty"`
	Status       Status `json:"status"`
	Accounts     int    `json:"accounts"`
	Skipped      int    `json:"skipped,omitempty"`
	Transactions int    `json:"transactions,omitempty"`
	Error        string `json:"error,omitempty"`

	err error
}

func (o *CredentialOutcome) fail(err error) {
	o.Status = StatusFailed
	o.Error = err.Error()
	o.err = err
}

type outcomes []CredentialOutcome

func (oc outcomes) failed() int {
	n := 0
	for _, o := range oc {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// err returns nil when every credential succeeded, the first failure when
// all of them failed, and a *PartialFailureError otherwise.
func (oc outcomes) err() error {
	failed := oc.failed()
	switch {
	case failed == 0:
		return nil
	case failed == len(oc):
		for _, o := range oc {
			if o.err != nil {
				return o.err
			}
		}
	}
	return &PartialFailureError{Failed: failed, Total: len(oc)}
}

// SyncReport summarises an account sync or balance refresh.
type SyncReport struct {
	RunID       string              `json:"runId"`
	UserID      string              `json:"userId"`
	Credentials []CredentialOutcome `json:"credentials"`
	Accounts    int                 `json:"accounts"`
	Skipped     int                 `json:"skipped"`
}

func newSyncReport(userID string, n int) *SyncReport {
	return &SyncReport{
		RunID:       uuid.NewString(),
		UserID:      userID,
		Credentials: make([]CredentialOutcome, n),
	}
}

func (r *SyncReport) tally() {
	r.Accounts, r.Skipped = 0, 0
	for _, o := range r.Credentials {
		r.Accounts += o.Accounts
		r.Skipped += o.Skipped
	}
}

// Failed returns the number of credentials that failed.
func (r *SyncReport) Failed() int {
	return outcomes(r.Credentials).failed()
}

// Err summarises the per-credential failures.
func (r *SyncReport) Err() error {
	return outcomes(r.Credentials).err()
}

// Transaction is one provider transaction as shown to the user. It is
// never persisted.
type Transaction struct {
	Name        string          `json:"name"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	AccountID   string          `json:"accountId"`
	AccountName string          `json:"accountName"`
}

// TransactionReport is the merged transaction view across a user's credentials.
type TransactionReport struct {
	RunID        string              `json:"runId"`
	UserID       string              `json:"userId"`
	StartDate    string              `json:"startDate"`
	EndDate      string              `json:"endDate"`
	Transactions []Transaction       `json:"transactions"`
	Credentials  []CredentialOutcome `json:"credentials"`
}

// Failed returns the number of credentials whose transactions could not be
// fetched.
func (r *TransactionReport) Failed() int {
	return outcomes(r.Credentials).failed()
}

// Err summarises the per-credential failures.
func (r *TransactionReport) Err() error {
	return outcomes(r.Credentials).err()
}
