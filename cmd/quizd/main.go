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
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/quizdesk/internal/api/http"
	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/config"
	"github.com/mind-engage/quizdesk/internal/db"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/logger"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, lg)
	stop()
	if err != nil {
		lg.Error("quizd stopped", zap.Error(err))
		_ = lg.Sync()
		os.Exit(1)
	}
	lg.Info("shutdown complete")
	_ = lg.Sync()
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DB.Driver), cfg.DB.DSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	handler := api.NewRouter(api.Deps{
		Auth:           auth.NewAuthService(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL),
		Users:          users.NewStore(dbh),
		Quiz:           quiz.NewSQLStore(dbh),
		Events:         eventlog.NewRepo(dbh, cfg.SiteID),
		Logger:         lg,
		Ready:          dbh.PingContext,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.Env),
			zap.String("db", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
