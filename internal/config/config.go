// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "TICTACGO"

// Listing sources for GET /lobby/list.
const (
	ListingMemory = "memory"
	ListingRedis  = "redis"
)

type Config struct {
	Bind     string
	Port     int
	LogLevel string
	LogJSON  bool

	RedisURL      string
	ListingSource string
	LobbyTTL      time.Duration

	LobbyGrace   time.Duration
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration

	TokenTTL        time.Duration
	TokenPrivateKey string
	TokenPublicKey  string
	AllowedOrigins  []string
}

// BindFlags registers every server flag on fs and seeds unset flags from
// TICTACGO_* environment variables. Flags given on the command line win.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: TICTACGO_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: TICTACGO_PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: TICTACGO_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "emit logs as JSON (env: TICTACGO_LOG_JSON)")

	fs.StringVar(&cfg.RedisURL, "redis-url", "", "mirror lobbies and rounds to this Redis, e.g. redis://localhost:6379/0 (env: TICTACGO_REDIS_URL)")
	fs.StringVar(&cfg.ListingSource, "listing-source", ListingMemory, "where GET /lobby/list reads from: memory or redis (env: TICTACGO_LISTING_SOURCE)")
	fs.DurationVar(&cfg.LobbyTTL, "lobby-ttl", 30*time.Minute, "lifetime of a mirrored lobby without refresh (env: TICTACGO_LOBBY_TTL)")

	fs.DurationVar(&cfg.LobbyGrace, "lobby-grace", 2*time.Minute, "how long an idle lobby lives before it is removed (env: TICTACGO_LOBBY_GRACE)")
	fs.IntVar(&cfg.QueueSize, "queue-size", 64, "outbound events buffered per connection (env: TICTACGO_QUEUE_SIZE)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 10*time.Second, "websocket write deadline (env: TICTACGO_WRITE_TIMEOUT)")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", 30*time.Second, "websocket keepalive ping interval, 0 disables (env: TICTACGO_PING_INTERVAL)")

	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 30*24*time.Hour, "identity token lifetime, 0 never expires (env: TICTACGO_TOKEN_TTL)")
	fs.StringVar(&cfg.TokenPrivateKey, "token-private-key", "", "path to a raw ed25519 private key; a fresh key is generated if empty (env: TICTACGO_TOKEN_PRIVATE_KEY)")
	fs.StringVar(&cfg.TokenPublicKey, "token-public-key", "", "path to the matching raw ed25519 public key (env: TICTACGO_TOKEN_PUBLIC_KEY)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", nil, "websocket origin patterns to accept besides same-origin (env: TICTACGO_ALLOWED_ORIGINS)")

	ApplyEnv(fs)
}

// ApplyEnv copies TICTACGO_* environment values onto flags that have not
// been set explicitly.
func ApplyEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if s, ok := val.([]string); ok {
				val = strings.Join(s, ",")
			}
			_ = fs.Set(f.Name, fmt.Sprintf("%v", val))
		}
	})
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if (c.TokenPrivateKey == "") != (c.TokenPublicKey == "") {
		return errors.New("both --token-private-key and --token-public-key must be provided together")
	}
	switch c.ListingSource {
	case ListingMemory:
	case ListingRedis:
		if c.RedisURL == "" {
			return errors.New("--listing-source=redis requires --redis-url")
		}
	default:
		return fmt.Errorf("unknown listing source %q", c.ListingSource)
	}
	if c.RedisURL != "" && c.LobbyTTL <= 0 {
		return fmt.Errorf("invalid lobby ttl: %s", c.LobbyTTL)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("invalid queue size: %d", c.QueueSize)
	}
	if c.LobbyGrace <= 0 {
		return fmt.Errorf("invalid lobby grace period: %s", c.LobbyGrace)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %s", c.WriteTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	return logrus.ParseLevel(c.LogLevel)
}

// NewLogger builds the process logger from the logging settings.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if lvl, err := c.Level(); err == nil {
		logger.SetLevel(lvl)
	}
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
