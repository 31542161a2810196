package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"referloop/auth"
	"referloop/config"
	"referloop/credit"
	"referloop/db"
	"referloop/handlers"
	"referloop/listing"
	"referloop/match"
	"referloop/message"
	"referloop/notify"
	"referloop/profile"
	"referloop/proof"
	"referloop/storage"
	"referloop/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}

	uploads, err := storage.NewDiskStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		logger.Fatal("init upload store", zap.Error(err))
	}

	profileRepo := profile.NewRepository(pool)
	profileSvc := profile.NewService(profileRepo)

	ledger := credit.NewLedger(pool)

	listingRepo := listing.NewRepository(pool)
	listingSvc := listing.NewService(listingRepo)

	notifySvc := notify.NewService(notify.NewRepository(pool), logger)

	matchRepo := match.NewRepository(pool)
	matchSvc := match.NewService(pool, matchRepo, ledger, profileRepo, listingRepo).
		WithNotifier(notifySvc)

	proofSvc := proof.NewService(pool, proof.NewRepository(pool), matchRepo, matchSvc).
		WithNotifier(notifySvc)

	messageSvc := message.NewService(message.NewRepository(pool), matchRepo).
		WithNotifier(notifySvc)

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)

	sweep := sweeper.New(matchSvc, logger)
	schedule, err := sweeper.NewScheduler(sweep, cfg.SweepInterval, logger)
	if err != nil {
		logger.Fatal("init sweep scheduler", zap.Error(err))
	}
	schedule.Start()
	defer func() {
		if err := schedule.Stop(); err != nil {
			logger.Warn("stop sweep scheduler", zap.Error(err))
		}
	}()

	if cfg.SweepOnStartup {
		if _, err := sweep.Sweep(ctx); err != nil {
			logger.Warn("startup sweep failed", zap.Error(err))
		}
	}

	server := handlers.NewServer(handlers.Deps{
		Config:        cfg,
		Log:           logger,
		Auth:          authSvc,
		Profiles:      profileSvc,
		Ledger:        ledger,
		Listings:      listingSvc,
		Matches:       matchSvc,
		Proofs:        proofSvc,
		Messages:      messageSvc,
		Notifications: notifySvc,
		Sweeper:       sweep,
		Uploads:       uploads,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("api stopped")
}
