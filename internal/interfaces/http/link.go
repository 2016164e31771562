package http

import (
	"encoding/json"
	"net/http"

	"finlink/internal/shared/middleware"
)

// LinkHandler turns link tokens from the client-side flow into stored
// credentials.
type LinkHandler struct {
	aggregator Aggregator
}

func NewLinkHandler(aggregator Aggregator) *LinkHandler {
	return &LinkHandler{aggregator: aggregator}
}

type ExchangeRequest struct {
	PublicToken string `json:"public_token" validate:"required,max=512"`
}

// HandleExchange handles POST /api/link/exchange.
func (h *LinkHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ExchangeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := middleware.ValidateRequest(req); len(errs) > 0 {
		middleware.RespondWithValidationError(w, errs)
		return
	}

	result, err := h.aggregator.ExchangeAndLink(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeServiceError(w, userID, "exchange", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
