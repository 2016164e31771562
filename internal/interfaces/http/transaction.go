package http

import (
	"net/http"

	"finlink/internal/domain/aggregation"
)

// TransactionHandler serves the merged transaction view.
type TransactionHandler struct {
	aggregator Aggregator
}

func NewTransactionHandler(aggregator Aggregator) *TransactionHandler {
	return &TransactionHandler{aggregator: aggregator}
}

// TransactionsResponse carries the merged transactions plus any credential
// that could not be read. Failures is empty on full success.
type TransactionsResponse struct {
	RunID        string                          `json:"runId"`
	StartDate    string                          `json:"startDate"`
	EndDate      string                          `json:"endDate"`
	Transactions []aggregation.Transaction       `json:"transactions"`
	Failures     []aggregation.CredentialOutcome `json:"failures"`
	Truncated    []string                        `json:"truncated,omitempty"`
}

func toTransactionsResponse(report *aggregation.TransactionReport) TransactionsResponse {
	resp := TransactionsResponse{
		RunID:        report.RunID,
		StartDate:    report.StartDate,
		EndDate:      report.EndDate,
		Transactions: report.Transactions,
		Failures:     []aggregation.CredentialOutcome{},
	}
	for _, o := range report.Credentials {
		switch o.Status {
		case aggregation.StatusFailed:
			resp.Failures = append(resp.Failures, o)
		case aggregation.StatusTruncated:
			resp.Truncated = append(resp.Truncated, o.CredentialID)
		}
	}
	return resp
}

// HandleListTransactions handles GET /api/transactions.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	report, err := h.aggregator.GetTransactions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, userID, "transactions", err)
		return
	}
	writeReport(w, userID, "transactions", toTransactionsResponse(report), report.Err())
}
