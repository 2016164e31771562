package http

import "net/http"

// BalanceHandler refreshes balances of registered accounts.
type BalanceHandler struct {
	aggregator Aggregator
}

func NewBalanceHandler(aggregator Aggregator) *BalanceHandler {
	return &BalanceHandler{aggregator: aggregator}
}

// HandleRefresh handles POST /api/balances/refresh.
func (h *BalanceHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := h.aggregator.RefreshBalances(r.Context(), userID)
	if err != nil {
		writeServiceError(w, userID, "balance refresh", err)
		return
	}
	writeReport(w, userID, "balance refresh", report, report.Err())
}
