package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

type RedisSuite struct {
	suite.Suite
	mini   *miniredis.Miniredis
	client *Client
	ctx    context.Context
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	rdb := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	cfg := DefaultConfig()
	cfg.LobbyTTL = time.Minute
	s.client = NewWithClient(rdb, cfg)
	s.ctx = context.Background()
}

func (s *RedisSuite) TearDownTest() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

func summary(name string, state models.LobbyState, created time.Time) models.LobbySummary {
	return models.LobbySummary{
		ID:         uuid.New(),
		Name:       name,
		MaxPlayers: 2,
		State:      state,
		Players:    []models.SeatSummary{},
		CreatedAt:  created,
	}
}

func (s *RedisSuite) TestSaveAndGetLobby() {
	sum := summary("friday", models.StateWaitingForPlayers, time.Now())
	sum.Players = []models.SeatSummary{{ID: "p1", Name: "alice", Mark: game.MarkX}}
	s.Require().NoError(s.client.SaveLobby(s.ctx, sum))

	got, err := s.client.GetLobby(s.ctx, sum.ID)
	s.Require().NoError(err)
	s.Equal(sum.ID, got.ID)
	s.Equal("friday", got.Name)
	s.Require().Len(got.Players, 1)
	s.Equal(game.MarkX, got.Players[0].Mark)

	s.Equal(time.Minute, s.mini.TTL(lobbyKey(sum.ID)))
}

func (s *RedisSuite) TestGetLobbyNotFound() {
	_, err := s.client.GetLobby(s.ctx, uuid.New())
	s.ErrorIs(err, redis.Nil)
}

func (s *RedisSuite) TestListLobbiesFiltersAndSorts() {
	now := time.Now()
	newer := summary("newer", models.StateWaitingForReady, now)
	older := summary("older", models.StateWaitingForPlayers, now.Add(-time.Minute))
	busy := summary("busy", models.StateInProgress, now.Add(-2*time.Minute))
	for _, sum := range []models.LobbySummary{newer, older, busy} {
		s.Require().NoError(s.client.SaveLobby(s.ctx, sum))
	}

	list, err := s.client.ListLobbies(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("older", list[0].Name)
	s.Equal("newer", list[1].Name)
}

func (s *RedisSuite) TestListLobbiesEmpty() {
	list, err := s.client.ListLobbies(s.ctx)
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *RedisSuite) TestLobbyExpires() {
	sum := summary("stale", models.StateWaitingForPlayers, time.Now())
	s.Require().NoError(s.client.SaveLobby(s.ctx, sum))

	s.mini.FastForward(2 * time.Minute)

	list, err := s.client.ListLobbies(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *RedisSuite) TestDeleteLobby() {
	sum := summary("gone", models.StateWaitingForPlayers, time.Now())
	s.Require().NoError(s.client.SaveLobby(s.ctx, sum))
	s.Require().NoError(s.client.DeleteLobby(s.ctx, sum.ID))
	s.False(s.mini.Exists(lobbyKey(sum.ID)))
}

func (s *RedisSuite) TestPushAndPopRound() {
	rec := models.RoundRecord{
		LobbyID: uuid.New(),
		Round:   3,
		Result:  game.Win.String(),
		Winner:  game.MarkO,
		Players: map[game.Mark]string{game.MarkX: "p1", game.MarkO: "p2"},
		Moves:   []models.Move{{Position: 4, Mark: game.MarkX, PlayerID: "p1"}},
	}
	s.Require().NoError(s.client.PushRound(s.ctx, rec))

	got, err := s.client.PopRound(s.ctx, time.Second)
	s.Require().NoError(err)
	s.Equal(rec.LobbyID, got.LobbyID)
	s.Equal(3, got.Round)
	s.Equal("win", got.Result)
	s.Equal(game.MarkO, got.Winner)
	s.Equal("p2", got.Players[game.MarkO])
	s.Equal(rec.Moves, got.Moves)
}

func (s *RedisSuite) TestPopRoundEmpty() {
	_, err := s.client.PopRound(s.ctx, time.Second)
	s.ErrorIs(err, ErrQueueEmpty)
}

func (s *RedisSuite) TestPopRoundMalformed() {
	s.Require().NoError(s.client.Redis().RPush(s.ctx, s.client.RoundsQueue(), "{not json").Err())
	_, err := s.client.PopRound(s.ctx, time.Second)
	s.Error(err)
	s.NotErrorIs(err, ErrQueueEmpty)
}

func (s *RedisSuite) TestPublisherFlushesOnClose() {
	logger, _ := logtest.NewNullLogger()
	p := NewPublisher(s.client, logger, 16)

	keep := summary("keep", models.StateWaitingForPlayers, time.Now())
	drop := summary("drop", models.StateWaitingForPlayers, time.Now())
	p.PublishLobby(keep)
	p.PublishLobby(drop)
	p.RemoveLobby(drop.ID)
	p.PublishRound(models.RoundRecord{LobbyID: keep.ID, Round: 1, Result: "draw"})
	p.Close()

	s.True(s.mini.Exists(lobbyKey(keep.ID)))
	s.False(s.mini.Exists(lobbyKey(drop.ID)))
	n, err := s.client.Redis().LLen(s.ctx, s.client.RoundsQueue()).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	// updates after close are ignored
	p.PublishLobby(summary("late", models.StateWaitingForPlayers, time.Now()))
	p.Close()
}

func (s *RedisSuite) TestPublisherKeepAliveRefreshesTTL() {
	logger, _ := logtest.NewNullLogger()
	p := NewPublisher(s.client, logger, 16)
	defer p.Close()

	sum := summary("alive", models.StateWaitingForPlayers, time.Now())
	s.Require().NoError(s.client.SaveLobby(s.ctx, sum))
	s.mini.FastForward(50 * time.Second)
	s.Less(s.mini.TTL(lobbyKey(sum.ID)), 11*time.Second)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go p.KeepAlive(ctx, 10*time.Millisecond, func() []models.LobbySummary {
		return []models.LobbySummary{sum}
	})

	s.Eventually(func() bool {
		return s.mini.TTL(lobbyKey(sum.ID)) > 30*time.Second
	}, time.Second, 10*time.Millisecond)
}

func (s *RedisSuite) TestPublisherIgnoresSaveAfterRemove() {
	logger, _ := logtest.NewNullLogger()
	p := NewPublisher(s.client, logger, 16)

	sum := summary("deleted", models.StateWaitingForPlayers, time.Now())
	p.PublishLobby(sum)
	p.RemoveLobby(sum.ID)
	// a keep-alive snapshot taken just before the delete
	p.PublishLobby(sum)
	p.Close()

	s.False(s.mini.Exists(lobbyKey(sum.ID)))
}

func (s *RedisSuite) TestPublisherKeepAliveDoesNotResurrect() {
	logger, _ := logtest.NewNullLogger()
	p := NewPublisher(s.client, logger, 16)

	sum := summary("stale snapshot", models.StateWaitingForPlayers, time.Now())
	s.Require().NoError(s.client.SaveLobby(s.ctx, sum))
	p.RemoveLobby(sum.ID)

	ctx, cancel := context.WithCancel(s.ctx)
	ticks := make(chan struct{}, 64)
	go p.KeepAlive(ctx, 5*time.Millisecond, func() []models.LobbySummary {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return []models.LobbySummary{sum}
	})
	for i := 0; i < 3; i++ {
		<-ticks
	}
	cancel()
	p.Close()

	s.False(s.mini.Exists(lobbyKey(sum.ID)))
}

func (s *RedisSuite) TestPublisherForgetsOldTombstones() {
	logger, _ := logtest.NewNullLogger()
	p := NewPublisher(s.client, logger, 16)
	defer p.Close()

	id := uuid.New()
	p.RemoveLobby(id)
	p.forgetRemoved(time.Now().Add(time.Second))

	p.mu.Lock()
	defer p.mu.Unlock()
	s.Empty(p.removed)
}

func (s *RedisSuite) TestPublisherDropsWhenFull() {
	logger, hook := logtest.NewNullLogger()
	// no worker: a zero-capacity queue with nobody reading always overflows
	p := &Publisher{client: s.client, logger: logger, removed: map[uuid.UUID]time.Time{}, jobs: make(chan job)}
	p.PublishLobby(summary("overflow", models.StateWaitingForPlayers, time.Now()))

	s.Require().NotNil(hook.LastEntry())
	s.Contains(hook.LastEntry().Message, "queue full")
}

func (s *RedisSuite) TestConnectBadURL() {
	_, err := Connect(s.ctx, Config{URL: "not-a-url"})
	s.Error(err)
}

func (s *RedisSuite) TestConnect() {
	c, err := Connect(s.ctx, Config{URL: "redis://" + s.mini.Addr()})
	s.Require().NoError(err)
	defer c.Close()
	s.Equal(DefaultConfig().RoundsQueue, c.RoundsQueue())
}
