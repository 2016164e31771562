package http

import (
	"context"
	"net/http"
	"time"

	"finlink/internal/domain/account"
)

// AccountReader is the subset of account.Service the handlers call.
type AccountReader interface {
	ListAccounts(ctx context.Context) ([]*account.Account, error)
	GetAccount(ctx context.Context, accountID string) (*account.Account, error)
}

// AccountHandler serves the account registry and triggers account syncs.
type AccountHandler struct {
	accounts   AccountReader
	aggregator Aggregator
}

func NewAccountHandler(accounts AccountReader, aggregator Aggregator) *AccountHandler {
	return &AccountHandler{accounts: accounts, aggregator: aggregator}
}

// AccountResponse is the wire form of account.Account. Balances are
// rendered as decimal strings.
type AccountResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Subtype          string `json:"subtype"`
	Mask             string `json:"mask,omitempty"`
	OfficialName     string `json:"officialName,omitempty"`
	AvailableBalance string `json:"availableBalance"`
	UpdatedAt        string `json:"updatedAt"`
}

func toAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:               a.ID,
		Name:             a.Name,
		Type:             string(a.Type),
		Subtype:          string(a.Subtype),
		Mask:             a.Mask,
		OfficialName:     a.OfficialName,
		AvailableBalance: a.AvailableBalance.String(),
		UpdatedAt:        a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleListAccounts handles GET /api/accounts.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		writeServiceError(w, userID, "list accounts", err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, response)
}

// HandleGetAccount handles GET /api/accounts/{id}.
func (h *AccountHandler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, userID, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(a))
}

// HandleSyncAccounts handles POST /api/accounts/sync.
func (h *AccountHandler) HandleSyncAccounts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := h.aggregator.SyncAccounts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, userID, "account sync", err)
		return
	}
	writeReport(w, userID, "account sync", report, report.Err())
}

// writeReport writes a run report, or the underlying error when every
// credential failed.
func writeReport(w http.ResponseWriter, userID, op string, report any, runErr error) {
	status := reportStatus(runErr)
	if runErr != nil && status == http.StatusOK {
		writeServiceError(w, userID, op, runErr)
		return
	}
	writeJSON(w, status, report)
}
