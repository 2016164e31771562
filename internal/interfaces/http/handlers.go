// Package http exposes the aggregation service over JSON/HTTP. Every route
// here expects middleware.Auth to have put the caller's user ID in the
// request context.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"finlink/internal/domain/aggregation"
	"finlink/internal/shared/middleware"
)

// Aggregator is the subset of aggregation.Service the handlers call.
type Aggregator interface {
	ExchangeAndLink(ctx context.Context, userID, publicToken string) (*aggregation.LinkResult, error)
	SyncAccounts(ctx context.Context, userID string) (*aggregation.SyncReport, error)
	RefreshBalances(ctx context.Context, userID string) (*aggregation.SyncReport, error)
	GetTransactions(ctx context.Context, userID string) (*aggregation.TransactionReport, error)
}

// maxBodyBytes bounds request bodies; every payload here is a few fields.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
	}
	return userID, ok
}

// HandleHealth returns a simple health check response.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Pinger is satisfied by *sql.DB and *redis.Client wrappers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HandleReady reports 503 until every dependency answers a ping.
func HandleReady(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, p := range deps {
			if err := p.PingContext(r.Context()); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
