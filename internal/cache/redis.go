// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tictacgo"

// Config holds Redis connection and mirror settings.
type Config struct {
	// URL is the Redis connection URL (e.g. redis://localhost:6379/0).
	URL      string
	PoolSize int

	// LobbyTTL is how long a mirrored summary lives without a refresh.
	LobbyTTL time.Duration
	// RoundsQueue is the list finished rounds are pushed onto.
	RoundsQueue string
}

func DefaultConfig() Config {
	return Config{
		URL:         "redis://localhost:6379/0",
		PoolSize:    10,
		LobbyTTL:    30 * time.Minute,
		RoundsQueue: keyPrefix + "_rounds",
	}
}

// Client mirrors lobby summaries into Redis and feeds finished rounds to the
// historian queue.
type Client struct {
	rdb *redis.Client
	cfg Config
}

// Connect parses cfg.URL and pings the server.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, cfg Config) *Client {
	if cfg.RoundsQueue == "" {
		cfg.RoundsQueue = DefaultConfig().RoundsQueue
	}
	return &Client{rdb: rdb, cfg: cfg}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis exposes the underlying client.
func (c *Client) Redis() *redis.Client { return c.rdb }

// RoundsQueue is the list name finished rounds are pushed onto.
func (c *Client) RoundsQueue() string { return c.cfg.RoundsQueue }

func lobbyKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:lobby:%s", keyPrefix, id)
}

// SaveLobby writes a lobby summary, refreshing its TTL.
func (c *Client) SaveLobby(ctx context.Context, s models.LobbySummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal lobby summary: %w", err)
	}
	return c.rdb.Set(ctx, lobbyKey(s.ID), data, c.cfg.LobbyTTL).Err()
}

func (c *Client) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, lobbyKey(id)).Err()
}

// GetLobby returns redis.Nil when the lobby is not mirrored.
func (c *Client) GetLobby(ctx context.Context, id uuid.UUID) (models.LobbySummary, error) {
	var s models.LobbySummary
	data, err := c.rdb.Get(ctx, lobbyKey(id)).Bytes()
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(data, &s)
	return s, err
}

// ListLobbies scans every mirrored lobby and returns the joinable ones.
func (c *Client) ListLobbies(ctx context.Context) ([]models.LobbySummary, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+":lobby:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lobbies: %w", err)
	}

	out := make([]models.LobbySummary, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load lobbies: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var s models.LobbySummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		if s.State.Joinable() {
			out = append(out, s)
		}
	}
	models.SortSummaries(out)
	return out, nil
}

// PushRound appends a finished round to the historian queue.
func (c *Client) PushRound(ctx context.Context, rec models.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}
	if err := c.rdb.RPush(ctx, c.cfg.RoundsQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", c.cfg.RoundsQueue, err)
	}
	return nil
}

// PopRound blocks up to timeout for the next finished round. It returns
// ErrQueueEmpty if none arrived.
func (c *Client) PopRound(ctx context.Context, timeout time.Duration) (models.RoundRecord, error) {
	var rec models.RoundRecord
	res, err := c.rdb.BLPop(ctx, timeout, c.cfg.RoundsQueue).Result()
	if errors.Is(err, redis.Nil) {
		return rec, ErrQueueEmpty
	}
	if err != nil {
		return rec, err
	}
	// res is [queue, value]
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return rec, fmt.Errorf("malformed round record: %w", err)
	}
	return rec, nil
}

// ErrQueueEmpty is returned by PopRound when the wait timed out.
var ErrQueueEmpty = errors.New("round queue empty")
