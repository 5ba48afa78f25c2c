// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/cache"
	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/sirupsen/logrus"
)

const DefaultPollTimeout = 3 * time.Second

// RoundSource yields finished rounds. *cache.Client satisfies it.
type RoundSource interface {
	PopRound(ctx context.Context, timeout time.Duration) (models.RoundRecord, error)
}

// Tally counts round results for one lobby.
type Tally struct {
	Rounds int `json:"rounds"`
	XWins  int `json:"xWins"`
	OWins  int `json:"oWins"`
	Draws  int `json:"draws"`
}

// Historian drains the round feed, logs each finished round and keeps
// per-lobby tallies in memory.
type Historian struct {
	source      RoundSource
	logger      logrus.FieldLogger
	pollTimeout time.Duration

	mu       sync.Mutex
	tally    map[uuid.UUID]*Tally
	total    int
	failures int
}

func New(source RoundSource, logger logrus.FieldLogger, pollTimeout time.Duration) *Historian {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Historian{
		source:      source,
		logger:      logger,
		pollTimeout: pollTimeout,
		tally:       make(map[uuid.UUID]*Tally),
	}
}

// Run pops rounds until ctx is cancelled. Transient source errors are logged
// and retried after a short pause.
func (h *Historian) Run(ctx context.Context) error {
	h.logger.Info("historian started")
	defer h.logger.Info("historian shutting down")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		rec, err := h.source.PopRound(ctx, h.pollTimeout)
		switch {
		case err == nil:
			h.Record(rec)
		case errors.Is(err, cache.ErrQueueEmpty):
		case ctx.Err() != nil:
			return nil
		default:
			h.mu.Lock()
			h.failures++
			h.mu.Unlock()
			h.logger.WithError(err).Error("failed to pop round")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Record applies one finished round to the tallies.
func (h *Historian) Record(rec models.RoundRecord) {
	h.mu.Lock()
	t, ok := h.tally[rec.LobbyID]
	if !ok {
		t = &Tally{}
		h.tally[rec.LobbyID] = t
	}
	t.Rounds++
	switch rec.Result {
	case game.Draw.String():
		t.Draws++
	case game.Win.String():
		switch rec.Winner {
		case game.MarkX:
			t.XWins++
		case game.MarkO:
			t.OWins++
		}
	}
	h.total++
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"lobby":    rec.LobbyID,
		"round":    rec.Round,
		"result":   rec.Result,
		"winner":   rec.Winner,
		"moves":    len(rec.Moves),
		"duration": rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond),
	}).Info("round finished")
}

// Tally returns the counts for one lobby.
func (h *Historian) Tally(lobbyID uuid.UUID) (Tally, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tally[lobbyID]
	if !ok {
		return Tally{}, false
	}
	return *t, true
}

// Total is the number of rounds recorded since start.
func (h *Historian) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// Failures counts source errors other than an empty queue.
func (h *Historian) Failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}
