// cmd/historian/main.go drains the finished-round feed that tictacgo servers
// push to Redis and logs every round.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/tictacgo/internal/cache"
	"github.com/jason-s-yu/tictacgo/internal/config"
	"github.com/jason-s-yu/tictacgo/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(newCmd().Execute())
}

func newCmd() *cobra.Command {
	var (
		redisURL    string
		queue       string
		logLevel    string
		pollTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tictacgo-historian",
		Short: "Consume finished tic-tac-toe rounds from Redis.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logrus.New()
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(lvl)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rc := cache.DefaultConfig()
			rc.URL = redisURL
			rc.RoundsQueue = queue
			client, err := cache.Connect(ctx, rc)
			if err != nil {
				return err
			}
			defer client.Close()

			return historian.New(client, logger, pollTimeout).Run(ctx)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&redisURL, "redis-url", cache.DefaultConfig().URL, "redis to consume from (env: TICTACGO_REDIS_URL)")
	fs.StringVar(&queue, "queue", cache.DefaultConfig().RoundsQueue, "list finished rounds are pushed onto (env: TICTACGO_QUEUE)")
	fs.StringVar(&logLevel, "log-level", "info", "log level (env: TICTACGO_LOG_LEVEL)")
	fs.DurationVar(&pollTimeout, "poll-timeout", historian.DefaultPollTimeout, "BLPOP timeout per poll (env: TICTACGO_POLL_TIMEOUT)")
	config.ApplyEnv(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}
