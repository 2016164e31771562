package main

import (
	"context"
	"log"

	"finlink/internal/domain/account"
	"finlink/internal/domain/aggregation"
	"finlink/internal/domain/credential"
	"finlink/internal/infrastructure/crypto"
	"finlink/internal/infrastructure/plaid"
	"finlink/internal/infrastructure/postgres"
	"finlink/internal/infrastructure/redis"
	httphandlers "finlink/internal/interfaces/http"
	"finlink/internal/shared/auth"
	"finlink/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *redis.Client

	// Handlers
	LinkHandler        *httphandlers.LinkHandler
	AccountHandler     *httphandlers.AccountHandler
	BalanceHandler     *httphandlers.BalanceHandler
	TransactionHandler *httphandlers.TransactionHandler

	JWT *auth.JWT

	// Used by the scheduler and the credential listener
	Aggregator  *aggregation.Service
	Credentials *credential.Service
}

// NewDependencies connects to the stores and builds the service graph.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, err
	}

	userRepo := postgres.NewUserRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db)
	accountRepo := postgres.NewAccountRepository(db)

	credentialService := credential.NewService(credentialRepo, userRepo, encryptor)
	accountService := account.NewService(accountRepo)

	plaidClient := plaid.NewClient(
		cfg.Plaid.PlaidBaseURL(),
		cfg.Plaid.ClientID,
		cfg.Plaid.Secret,
		plaid.WithTimeout(cfg.Plaid.Timeout),
	)
	log.Printf("Plaid client configured for %s", cfg.Plaid.PlaidBaseURL())

	deps := &Dependencies{DB: db, Credentials: credentialService}

	var options []aggregation.Option
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// Redis only backs the replay guard and the event stream.
			log.Printf("Warning: Redis unavailable, continuing without link guard and events: %v", err)
		} else {
			deps.Redis = rdb
			options = append(options,
				aggregation.WithLinkGuard(redis.NewLinkGuard(rdb.Client, cfg.Redis.LinkGuardTTL)),
				aggregation.WithEventPublisher(redis.NewPublisher(rdb.Client, cfg.Redis.EventStream)),
			)
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	aggregator := aggregation.NewService(plaidClient, credentialService, accountService, aggregation.Options{
		WindowDays:  cfg.Aggregation.WindowDays,
		PageSize:    cfg.Aggregation.PageSize,
		MaxPages:    cfg.Aggregation.MaxPages,
		Concurrency: cfg.Aggregation.Concurrency,
	}, options...)

	deps.Aggregator = aggregator
	deps.JWT = auth.NewJWT(cfg.JWT.Secret)
	deps.LinkHandler = httphandlers.NewLinkHandler(aggregator)
	deps.AccountHandler = httphandlers.NewAccountHandler(accountService, aggregator)
	deps.BalanceHandler = httphandlers.NewBalanceHandler(aggregator)
	deps.TransactionHandler = httphandlers.NewTransactionHandler(aggregator)

	return deps, nil
}

// ReadinessChecks lists the stores /ready pings.
func (d *Dependencies) ReadinessChecks() map[string]httphandlers.Pinger {
	checks := map[string]httphandlers.Pinger{"postgres": d.DB}
	if d.Redis != nil {
		checks["redis"] = d.Redis
	}
	return checks
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
