package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/giridharan-7/my-paytm/internal/wallet"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeDomainError maps the wallet error taxonomy onto status codes.
// Insufficient funds gets 409 so clients can tell it apart from bad input;
// only 500 responses are safe to retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidRequest), errors.Is(err, wallet.ErrSelfTransfer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "something went wrong, try again")
	}
}
