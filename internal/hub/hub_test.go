package hub

import (
	"encoding/json"
	"testing"

	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/protocol"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Conn) []string {
	var types []string
	for {
		select {
		case frame := <-c.Out():
			var env struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(frame, &env)
			types = append(types, env.Type)
		default:
			return types
		}
	}
}

func TestPublishReachesEveryConnectionInOrder(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	h := New(logger)

	a, b := NewConn("a", 8), NewConn("b", 8)
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))
	require.NoError(t, h.Register(a))
	assert.Equal(t, 2, h.Len())

	h.Publish(protocol.NewStartGame())
	h.Publish(protocol.NewUpdateTurn(game.MarkX))
	h.Publish(protocol.NewReset())

	want := []string{protocol.TypeStartGame, protocol.TypeUpdateTurn, protocol.TypeReset}
	assert.Equal(t, want, drain(a))
	assert.Equal(t, want, drain(b))
}

func TestPublishDropsOnlyTheSlowConnection(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	h := New(logger)

	slow := NewConn("slow", 1)
	fast := NewConn("fast", 8)
	closed := NewConn("closed", 8)
	for _, c := range []*Conn{slow, fast, closed} {
		require.NoError(t, h.Register(c))
	}
	closed.Close(nil)

	h.Publish(protocol.NewStartGame())
	h.Publish(protocol.NewReset())

	assert.Equal(t, []string{protocol.TypeStartGame, protocol.TypeReset}, drain(fast))
	assert.Equal(t, []string{protocol.TypeStartGame}, drain(slow))

	assert.True(t, slow.Closed())
	assert.ErrorIs(t, slow.Reason(), ErrSlowConsumer)
	assert.False(t, h.Has(slow))
	assert.False(t, h.Has(closed))
	assert.True(t, h.Has(fast))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSendTargetsOneConnection(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	h := New(logger)
	a, b := NewConn("a", 4), NewConn("b", 4)
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	require.NoError(t, h.Send(a, protocol.NewNotice("notYourTurn", "not your turn")))
	assert.Equal(t, []string{protocol.TypeError}, drain(a))
	assert.Empty(t, drain(b))

	stranger := NewConn("c", 4)
	assert.ErrorIs(t, h.Send(stranger, protocol.NewReset()), ErrNotRegistered)
}

func TestCloseDropsEveryConnection(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	h := New(logger)
	a := NewConn("a", 4)
	require.NoError(t, h.Register(a))

	h.Close()
	assert.True(t, a.Closed())
	assert.ErrorIs(t, a.Reason(), ErrHubClosed)
	assert.Equal(t, 0, h.Len())
	assert.ErrorIs(t, h.Register(NewConn("b", 4)), ErrHubClosed)
}

func TestConnCloseKeepsFirstReason(t *testing.T) {
	c := NewConn("a", 1)
	c.Close(ErrHubClosed)
	c.Close(ErrSlowConsumer)
	assert.ErrorIs(t, c.Reason(), ErrHubClosed)
	assert.False(t, c.enqueue([]byte("x")))
}
