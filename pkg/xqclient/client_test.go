package xqclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// echoServer answers every envelope with matchmaking_left and records the
// Authorization header. The first connection is dropped when dropFirst is set.
func echoServer(t *testing.T, dropFirst bool) (*httptest.Server, *atomic.Value, *atomic.Int32) {
	t.Helper()
	var auth atomic.Value
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		if n := conns.Add(1); n == 1 && dropFirst {
			_ = c.Close(websocket.StatusGoingAway, "bye")
			return
		}
		ctx := r.Context()
		for {
			var env xiangqidto.Envelope
			if err := wsjson.Read(ctx, c, &env); err != nil {
				return
			}
			out := xiangqidto.Envelope{Type: xiangqidto.TypeMatchmakingLeft, RoomID: env.RoomID}
			if err := wsjson.Write(ctx, c, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &auth, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientSendAndReceive(t *testing.T) {
	srv, auth, _ := echoServer(t, false)
	c := New(wsURL(srv), "guest:ann", WithMaxReconnect(0))

	got := make(chan xiangqidto.Envelope, 1)
	c.OnMessage(func(env xiangqidto.Envelope) { got <- env })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, "Bearer guest:ann", auth.Load())

	require.NoError(t, c.Send(ctx, xiangqidto.TypeLeaveMatchmaking, "r1", nil))
	select {
	case env := <-got:
		assert.Equal(t, xiangqidto.TypeMatchmakingLeft, env.Type)
		assert.Equal(t, "r1", env.RoomID)
	case <-ctx.Done():
		t.Fatal("no reply")
	}

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Send(ctx, xiangqidto.TypeRejoin, "", nil), ErrNotConnected)
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	srv, _, conns := echoServer(t, true)
	c := New(wsURL(srv), "guest:ann", WithMaxReconnect(3))

	var mu sync.Mutex
	var states []State
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	require.Eventually(t, func() bool {
		return conns.Load() >= 2 && c.State() == StateConnected
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Contains(t, states, StateReconnecting)
	mu.Unlock()
	require.NoError(t, c.Close(ctx))
}

func TestConnectFailureWithoutRetries(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", "", WithMaxReconnect(0))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, c.Connect(ctx))
	assert.Equal(t, StateFailed, c.State())
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, backoffDuration(1))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(2))
	assert.Equal(t, 5*time.Second, backoffDuration(10))
}
