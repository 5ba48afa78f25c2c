// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/jason-s-yu/tictacgo/internal/cache"
	"github.com/jason-s-yu/tictacgo/internal/config"
	"github.com/jason-s-yu/tictacgo/internal/handlers"
	"github.com/jason-s-yu/tictacgo/internal/lobby"
	"github.com/jason-s-yu/tictacgo/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tictacgo",
		Short: "Real-time multiplayer tic-tac-toe lobbies over websockets.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	config.BindFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := cfg.NewLogger()

	tokens, err := loadTokens(cfg, logger)
	if err != nil {
		return err
	}

	storeCfg := lobby.StoreConfig{GracePeriod: cfg.LobbyGrace, Logger: logger}
	var (
		redisClient *cache.Client
		publisher   *cache.Publisher
	)
	if cfg.RedisURL != "" {
		rc := cache.DefaultConfig()
		rc.URL = cfg.RedisURL
		rc.LobbyTTL = cfg.LobbyTTL
		redisClient, err = cache.Connect(ctx, rc)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		publisher = cache.NewPublisher(redisClient, logger, cache.DefaultPublishBuffer)
		storeCfg.Mirror = publisher
		logger.WithField("url", cfg.RedisURL).Info("mirroring lobbies to redis")
	}

	store := lobby.NewStore(storeCfg)
	srv := handlers.NewServer(store, tokens, logger, handlers.WSConfig{
		QueueSize:      cfg.QueueSize,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		OriginPatterns: cfg.AllowedOrigins,
	})
	if cfg.ListingSource == config.ListingRedis {
		srv.Listing = redisClient
	}

	if publisher != nil {
		go publisher.KeepAlive(ctx, cfg.LobbyTTL/3, func() []models.LobbySummary { return store.List() })
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// hijacked websockets are not tracked by Shutdown; closing the store ends them
	store.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	if publisher != nil {
		publisher.Close()
	}
	return nil
}

func loadTokens(cfg *config.Config, logger logrus.FieldLogger) (*auth.Tokens, error) {
	if cfg.TokenPrivateKey != "" {
		return auth.LoadTokens(cfg.TokenPrivateKey, cfg.TokenPublicKey, cfg.TokenTTL)
	}
	logger.Warn("no token keys configured, generating an ephemeral key pair")
	return auth.NewTokens(cfg.TokenTTL)
}
