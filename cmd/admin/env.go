package main

import (
	"context"
	"fmt"
	"log"

	"finlink/internal/domain/account"
	"finlink/internal/domain/aggregation"
	"finlink/internal/domain/credential"
	"finlink/internal/infrastructure/crypto"
	"finlink/internal/infrastructure/plaid"
	"finlink/internal/infrastructure/postgres"
	"finlink/internal/shared/config"
)

// env is the service graph a command runs against. Redis is not wired:
// the CLI never exchanges link tokens.
type env struct {
	cfg         *config.Config
	db          *postgres.DB
	users       *postgres.UserRepository
	credentials *credential.Service
	accounts    *account.Service
	aggregator  *aggregation.Service
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	users := postgres.NewUserRepository(db)
	credentials := credential.NewService(postgres.NewCredentialRepository(db), users, encryptor)
	accounts := account.NewService(postgres.NewAccountRepository(db))
	client := plaid.NewClient(cfg.Plaid.PlaidBaseURL(), cfg.Plaid.ClientID, cfg.Plaid.Secret,
		plaid.WithTimeout(cfg.Plaid.Timeout))

	return &env{
		cfg:         cfg,
		db:          db,
		users:       users,
		credentials: credentials,
		accounts:    accounts,
		aggregator: aggregation.NewService(client, credentials, accounts, aggregation.Options{
			WindowDays:  cfg.Aggregation.WindowDays,
			PageSize:    cfg.Aggregation.PageSize,
			MaxPages:    cfg.Aggregation.MaxPages,
			Concurrency: cfg.Aggregation.Concurrency,
		}),
	}, nil
}

func (e *env) Close() {
	e.db.Close()
}

// resolveUsers returns the explicit IDs, or every linked user when all is set.
func (e *env) resolveUsers(ctx context.Context, ids []string, all bool) ([]string, error) {
	if !all {
		return ids, nil
	}

	linked, err := e.credentials.ListLinkedUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(linked))
	for _, u := range linked {
		out = append(out, u.ID)
	}
	log.Printf("Found %d users with linked credentials", len(out))
	return out, nil
}
