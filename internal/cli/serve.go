package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/studyden/quiz-battle-backend/internal/config"
	"github.com/studyden/quiz-battle-backend/internal/httpapi"
	"github.com/studyden/quiz-battle-backend/internal/provider"
	"github.com/studyden/quiz-battle-backend/internal/registry"
	"github.com/studyden/quiz-battle-backend/internal/room"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides ADDR)")
	return cmd
}

func runServe(ctx context.Context, addrFlag string) error {
	cfg := config.Load()
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if cfg.AIAPIKey == "" {
		log.Warn("AI_API_KEY not set, question generation will fail until configured")
	}

	qp := provider.NewChatClient(cfg.AIAPIURL, cfg.AIAPIKey, cfg.AIModel,
		time.Duration(cfg.GenerateTimeoutSec)*time.Second, log)

	reg := registry.New(ctx, room.Config{
		MinPlayers:      cfg.MinPlayers,
		QuestionCount:   cfg.QuestionCount,
		QuestionTimeSec: cfg.QuestionTimeSec,
		GenerateTimeout: time.Duration(cfg.GenerateTimeoutSec) * time.Second,
	}, qp, log)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(reg, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.LogDev {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}
