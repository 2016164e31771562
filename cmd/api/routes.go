package main

import (
	"net/http"

	httphandlers "finlink/internal/interfaces/http"
	"finlink/internal/shared/config"
	"finlink/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", httphandlers.HandleHealth)
	mux.HandleFunc("/ready", httphandlers.HandleReady(deps.ReadinessChecks()))

	authMiddleware := middleware.Auth(deps.JWT)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	mux.Handle("/api/link/exchange", protect(deps.LinkHandler.HandleExchange))
	mux.Handle("/api/accounts", protect(deps.AccountHandler.HandleListAccounts))
	mux.Handle("/api/accounts/sync", protect(deps.AccountHandler.HandleSyncAccounts))
	mux.Handle("/api/accounts/{id}", protect(deps.AccountHandler.HandleGetAccount))
	mux.Handle("/api/transactions", protect(deps.TransactionHandler.HandleListTransactions))
	mux.Handle("/api/balances/refresh", protect(deps.BalanceHandler.HandleRefresh))

	// Requests pass through HSTS, tracing, the access log and CORS in that order.
	var handler http.Handler = middleware.CORS(cfg.Server.AllowedHosts)(mux)
	handler = middleware.Logging(handler)
	handler = middleware.Tracing(handler)
	return middleware.HSTS(handler)
}
