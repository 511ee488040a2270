package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// statusForErr maps domain errors to HTTP status codes.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type createAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Guest bool   `json:"guest"`
}

// handleCreateAccount registers a new account with the weekly token grant.
// POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	account := domain.NewAccount(uuid.NewString(), req.Name, req.Email, req.Guest, s.now())
	if err := s.accounts.PutAccount(r.Context(), account); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GET /api/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type switchSessionRequest struct {
	AccountID string `json:"accountId"`
}

type sessionResponse struct {
	Account  domain.Account `json:"account"`
	Degraded bool           `json:"degraded"`
}

// handleSwitchSession makes an account the active session and loads its
// records into the sync snapshot.
// POST /api/session
func (s *Server) handleSwitchSession(w http.ResponseWriter, r *http.Request) {
	var req switchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := s.accounts.GetAccount(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	if err := s.coordinator.SwitchAccount(r.Context(), *account); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Account: *account, Degraded: s.coordinator.Degraded()})
}

// GET /api/session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	account, ok := s.coordinator.Account()
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Account: account, Degraded: s.coordinator.Degraded()})
}

// sessionAccountID resolves the target account: explicit query parameter
// first, the active session otherwise.
func (s *Server) sessionAccountID(r *http.Request) (string, bool) {
	if id := r.URL.Query().Get("accountId"); id != "" {
		return id, true
	}
	if account, ok := s.coordinator.Account(); ok {
		return account.ID, true
	}
	return "", false
}

// GET /api/account/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.sessionAccountID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no account selected")
		return
	}
	balance, err := s.ledger.Balance(r.Context(), accountID)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accountId": accountID,
		"balance":   balance,
		"display":   balance.String(),
	})
}

// GET /api/ledger/transactions
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.sessionAccountID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no account selected")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	txs, err := s.ledger.Transactions(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accountId":    accountID,
		"transactions": txs,
	})
}
