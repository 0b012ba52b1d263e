// Package server is the HTTP layer over the wallet core. Handlers decode
// and validate transport concerns, call the service, and map domain errors
// to status codes; no business rule lives here.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/giridharan-7/my-paytm/internal/auth"
	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

type Server struct {
	wallet *wallet.Service
	users  interfaces.UserStore
	auth   *auth.Manager
	log    *zap.Logger
}

func New(w *wallet.Service, users interfaces.UserStore, am *auth.Manager, log *zap.Logger) *Server {
	return &Server{wallet: w, users: users, auth: am, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/user/signup", s.handleSignup)
		r.Post("/user/signin", s.handleSignin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Put("/user", s.handleUpdateUser)
			r.Get("/user/bulk", s.handleSearchUsers)
			r.Get("/account/balance", s.handleBalance)
			r.Post("/account/transfer", s.handleTransfer)
			r.Get("/account/transactions", s.handleStatement)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
