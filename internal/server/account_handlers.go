package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/giridharan-7/my-paytm/internal/auth"
	"github.com/giridharan-7/my-paytm/internal/models"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

type transferRequest struct {
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transferResponse struct {
	Message       string                   `json:"message"`
	Transaction   models.TransactionRecord `json:"transaction"`
	RecipientName string                   `json:"recipient_name,omitempty"`
	Replayed      bool                     `json:"replayed,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.wallet.Transfer(r.Context(), wallet.TransferRequest{
		FromAccountID:  auth.UserID(r.Context()),
		ToAccountID:    req.To,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		Message:       "transfer successful",
		Transaction:   res.Record,
		RecipientName: res.RecipientName,
		Replayed:      res.Replayed,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.wallet.Balance(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

type statementResponse struct {
	Transactions []models.TransactionRecord `json:"transactions"`
	TotalCount   int                        `json:"total_count"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}

	records, total, err := s.wallet.Statement(r.Context(), auth.UserID(r.Context()), page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statementResponse{
		Transactions: records,
		TotalCount:   total,
		Page:         page,
		PageSize:     pageSize,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
