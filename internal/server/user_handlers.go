package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/giridharan-7/my-paytm/internal/auth"
	"github.com/giridharan-7/my-paytm/internal/models"
)

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// handleSignup creates the user and opens their wallet account seeded with
// the configured initial balance, then returns a token.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong, try again")
		return
	}

	u := models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(r.Context(), u); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.wallet.OpenAccount(r.Context(), u.ID); err != nil {
		s.log.Error("account open failed after signup",
			zap.String("user_id", u.ID), zap.Error(err))
		writeDomainError(w, err)
		return
	}

	token, err := s.auth.Issue(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong, try again")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: viewOf(u, true)})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.users.UserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.auth.Issue(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "something went wrong, try again")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: viewOf(*u, true)})
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := models.UserUpdate{FirstName: req.FirstName, LastName: req.LastName}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "something went wrong, try again")
			return
		}
		upd.PasswordHash = &hash
	}

	if err := s.users.UpdateUser(r.Context(), auth.UserID(r.Context()), upd); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated successfully"})
}

// handleSearchUsers backs the recipient picker: match on first or last
// name, excluding the caller.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.SearchUsers(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	self := auth.UserID(r.Context())
	views := []userView{}
	for _, u := range users {
		if u.ID == self {
			continue
		}
		views = append(views, viewOf(u, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func viewOf(u models.User, withEmail bool) userView {
	v := userView{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	if withEmail {
		v.Email = u.Email
	}
	return v
}
