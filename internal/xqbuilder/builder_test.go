package xqbuilder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/park285/cheese-xiangqi/internal/config"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		AllowGuests:           true,
		AbandonTimeout:        time.Minute,
		TickInterval:          time.Hour,
		RoomLinger:            time.Hour,
		SnapshotTTL:           time.Hour,
		MaxRooms:              10,
		DefaultTimeControlSec: 600,
		QueueTimeControls:     []int{300, 600},
		DefaultRating:         1200,
	}
}

func TestNewFallsBackToMemoryStores(t *testing.T) {
	d, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	d.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","rooms":0}`, w.Body.String())
}

func TestNewRejectsMissingConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestFinishedGameIsArchivedAndRated(t *testing.T) {
	d, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	red := domain.Player{ID: "u-red", DisplayName: "Red", Rating: 1200}
	black := domain.Player{ID: "u-black", DisplayName: "Black", Rating: 1200}
	r, err := d.Rooms.OpenPairing(red, black, 300)
	require.NoError(t, err)

	snap, err := r.Resign(black.ID)
	require.NoError(t, err)
	require.Equal(t, room.StatusFinished, snap.Status)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		got, err := d.Archive.Load(ctx, r.ID())
		return err == nil && got != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := d.Recorder.Rating(ctx, red.ID)
		return err == nil && n > 1200
	}, 2*time.Second, 10*time.Millisecond)

	ids, err := d.Archive.RoomsForUser(ctx, black.ID)
	require.NoError(t, err)
	assert.Contains(t, ids, r.ID())
}

func TestAuthenticatorChain(t *testing.T) {
	cfg := testConfig()
	chain := authenticator(cfg, nil)
	id, err := chain.Resolve(context.Background(), "guest:zoe")
	require.NoError(t, err)
	assert.True(t, id.IsGuest)

	cfg.AllowGuests = false
	_, err = authenticator(cfg, nil).Resolve(context.Background(), "guest:zoe")
	require.Error(t, err)
}
