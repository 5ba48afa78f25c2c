// internal/cache/publisher.go
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPublishBuffer = 256
	publishTimeout       = 2 * time.Second
	tombstoneTTL         = time.Minute
)

type job struct {
	kind    string
	summary models.LobbySummary
	id      uuid.UUID
	round   models.RoundRecord
}

// Publisher forwards lobby changes and finished rounds to Redis from a single
// background worker. Its methods never block the caller; if the queue is full
// the update is dropped and the next change or keep-alive repairs the mirror.
type Publisher struct {
	client *Client
	logger logrus.FieldLogger

	mu      sync.Mutex
	closed  bool
	removed map[uuid.UUID]time.Time
	jobs    chan job
	wg      sync.WaitGroup
}

func NewPublisher(client *Client, logger logrus.FieldLogger, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = DefaultPublishBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Publisher{
		client:  client,
		logger:  logger,
		removed: make(map[uuid.UUID]time.Time),
		jobs:    make(chan job, buffer),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// PublishLobby mirrors s. Summaries of a lobby that was already removed are
// ignored so a late keep-alive cannot bring the entry back.
func (p *Publisher) PublishLobby(s models.LobbySummary) {
	p.enqueue(job{kind: "save", summary: s, id: s.ID})
}

func (p *Publisher) RemoveLobby(id uuid.UUID) {
	p.enqueue(job{kind: "delete", id: id})
}

func (p *Publisher) PublishRound(rec models.RoundRecord) {
	p.enqueue(job{kind: "round", round: rec, id: rec.LobbyID})
}

// KeepAlive republishes every summary returned by source on each tick so
// mirrored entries outlive their TTL while the lobby exists. It returns when
// ctx is done.
func (p *Publisher) KeepAlive(ctx context.Context, interval time.Duration, source func() []models.LobbySummary) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range source() {
				p.PublishLobby(s)
			}
			p.forgetRemoved(time.Now().Add(-max(2*interval, tombstoneTTL)))
		}
	}
}

// Close stops accepting updates and waits for queued ones to be written.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) enqueue(j job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	switch j.kind {
	case "save":
		if _, gone := p.removed[j.id]; gone {
			return
		}
	case "delete":
		// recorded even if the delete itself is dropped below
		p.removed[j.id] = time.Now()
	}
	select {
	case p.jobs <- j:
	default:
		p.logger.WithFields(logrus.Fields{"op": j.kind, "lobby": j.id}).Warn("redis publish queue full, dropping update")
	}
}

// forgetRemoved drops tombstones older than before. By then no keep-alive
// snapshot taken while the lobby still existed can be in flight.
func (p *Publisher) forgetRemoved(before time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, at := range p.removed {
		if at.Before(before) {
			delete(p.removed, id)
		}
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		var err error
		switch j.kind {
		case "save":
			err = p.client.SaveLobby(ctx, j.summary)
		case "delete":
			err = p.client.DeleteLobby(ctx, j.id)
		case "round":
			err = p.client.PushRound(ctx, j.round)
		}
		cancel()
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{"op": j.kind, "lobby": j.id}).Error("redis publish failed")
		}
	}
}
