package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"finlink/internal/domain/aggregation"
	"finlink/internal/domain/user"
)

// UserSyncer is the part of the aggregation service a sync job drives.
type UserSyncer interface {
	SyncAccounts(ctx context.Context, userID string) (*aggregation.SyncReport, error)
	RefreshBalances(ctx context.Context, userID string) (*aggregation.SyncReport, error)
}

// LinkedUserLister lists users holding at least one credential.
type LinkedUserLister interface {
	ListLinkedUsers(ctx context.Context) ([]*user.User, error)
}

// UserSyncJob syncs a user's accounts and then refreshes their balances.
// Accounts go first so that balances of newly added accounts are not
// skipped as unknown.
type UserSyncJob struct {
	userID string
	syncer UserSyncer
}

// NewUserSyncJob creates a sync job for userID.
func NewUserSyncJob(userID string, syncer UserSyncer) *UserSyncJob {
	return &UserSyncJob{userID: userID, syncer: syncer}
}

// Execute runs the account sync, then the balance refresh. A partial
// account sync failure does not skip the refresh; both failures are
// returned together.
func (j *UserSyncJob) Execute(ctx context.Context) error {
	report, err := j.syncer.SyncAccounts(ctx, j.userID)
	if errors.Is(err, aggregation.ErrUserNotLinked) {
		log.Printf("User %s: no credentials left, skipping sync", j.userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("account sync failed: %w", err)
	}
	syncErr := report.Err()
	if syncErr != nil {
		log.Printf("User %s: account sync completed with %d failed credentials", j.userID, report.Failed())
	}

	report, err = j.syncer.RefreshBalances(ctx, j.userID)
	if err != nil {
		return errors.Join(syncErr, fmt.Errorf("balance refresh failed: %w", err))
	}
	if refreshErr := report.Err(); refreshErr != nil {
		return errors.Join(syncErr, fmt.Errorf("balance refresh: %w", refreshErr))
	}
	if syncErr != nil {
		return fmt.Errorf("account sync: %w", syncErr)
	}

	log.Printf("User %s: Sync complete - Accounts: %d, Skipped: %d", j.userID, report.Accounts, report.Skipped)
	return nil
}

// UserID returns the user the job syncs.
func (j *UserSyncJob) UserID() string {
	return j.userID
}

// Description returns a human-readable description of the job.
func (j *UserSyncJob) Description() string {
	return fmt.Sprintf("Account sync + balance refresh for user %s", j.userID)
}

// UserSyncJobs returns a JobProvider yielding one UserSyncJob per linked
// user.
func UserSyncJobs(users LinkedUserLister, syncer UserSyncer) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		linked, err := users.ListLinkedUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list linked users: %w", err)
		}

		jobs := make([]Job, 0, len(linked))
		for _, u := range linked {
			jobs = append(jobs, NewUserSyncJob(u.ID, syncer))
		}
		return jobs, nil
	}
}

// CredentialRepairer registers the accounts of a single credential.
type CredentialRepairer interface {
	RepairCredential(ctx context.Context, userID, credentialID string) (*aggregation.SyncReport, error)
}

// CredentialRepairJob finishes a link whose account pull did not complete.
// It is queued from the credential_linked notification and costs no provider
// call when the link already registered its accounts.
type CredentialRepairJob struct {
	userID       string
	credentialID string
	repairer     CredentialRepairer
}

// NewCredentialRepairJob creates a repair job for one credential of userID.
func NewCredentialRepairJob(userID, credentialID string, repairer CredentialRepairer) *CredentialRepairJob {
	return &CredentialRepairJob{userID: userID, credentialID: credentialID, repairer: repairer}
}

func (j *CredentialRepairJob) Execute(ctx context.Context) error {
	report, err := j.repairer.RepairCredential(ctx, j.userID, j.credentialID)
	if errors.Is(err, aggregation.ErrUserNotLinked) {
		log.Printf("User %s: credential %s is no longer linked, skipping repair", j.userID, j.credentialID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential repair failed: %w", err)
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("credential repair: %w", err)
	}
	if report.Credentials[0].Status == aggregation.StatusOK {
		log.Printf("User %s: repaired credential %s - Accounts: %d", j.userID, j.credentialID, report.Accounts)
	}
	return nil
}

func (j *CredentialRepairJob) UserID() string {
	return j.userID
}

func (j *CredentialRepairJob) Description() string {
	return fmt.Sprintf("Account repair for credential %s of user %s", j.credentialID, j.userID)
}
