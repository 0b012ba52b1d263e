package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/giridharan-7/my-paytm/internal/auth"
	"github.com/giridharan-7/my-paytm/internal/config"
	"github.com/giridharan-7/my-paytm/internal/events"
	"github.com/giridharan-7/my-paytm/internal/events/kafka"
	"github.com/giridharan-7/my-paytm/internal/interfaces"
	"github.com/giridharan-7/my-paytm/internal/logger"
	"github.com/giridharan-7/my-paytm/internal/server"
	"github.com/giridharan-7/my-paytm/internal/storage/memory"
	"github.com/giridharan-7/my-paytm/internal/storage/postgres"
	"github.com/giridharan-7/my-paytm/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var (
		ledgerStore interfaces.LedgerStore
		userStore   interfaces.UserStore
		db          *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		if err := db.PingContext(context.Background()); err != nil {
			log.Fatal("ping database", zap.Error(err))
		}
		ledgerStore = postgres.NewLedgerStore(db)
		userStore = postgres.NewUserStore(db)
		log.Info("using postgres store")
	} else {
		ledgerStore = memory.NewLedgerStore()
		userStore = memory.NewUserStore()
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	var publisher interfaces.EventPublisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
		log.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	walletSvc := wallet.NewService(ledgerStore, userStore, publisher, wallet.Config{
		Ceiling:        cfg.TransferCeiling,
		InitialBalance: cfg.InitialBalance,
	}, log)

	authMgr := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	srv := server.New(walletSvc, userStore, authMgr, log)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := publisher.Close(); err != nil {
		log.Error("publisher close failed", zap.Error(err))
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("db close failed", zap.Error(err))
		}
	}
	log.Info("server stopped")
}
