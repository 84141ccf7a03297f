package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/results"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/internal/store"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router   *gin.Engine
	rooms    *room.Manager
	archive  *store.MemoryArchive
	queue    *matchmaking.Queue
	recorder *results.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := msgcat.New("")
	require.NoError(t, err)

	f := &fixture{
		rooms: room.NewManager(room.ManagerConfig{
			Rules:          xiangqi.DefaultRules(),
			AbandonTimeout: time.Hour,
			TickInterval:   time.Hour,
			Linger:         time.Hour,
		}),
		archive:  store.NewMemoryArchive(time.Hour),
		queue:    matchmaking.New(nil, nil),
		recorder: results.NewRecorder(results.NewMemoryRepository(), 0, nil),
	}
	t.Cleanup(f.rooms.Close)
	f.router = NewRouter(Deps{
		Rooms:              f.rooms,
		Queue:              f.queue,
		Archive:            f.archive,
		Profiles:           f.recorder,
		Auth:               identity.GuestAuthenticator{},
		Catalog:            cat,
		DefaultTimeControl: 600,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) createRoom(t *testing.T, token string, req xiangqidto.CreateRoomRequest) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/rooms", token, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeJSON[xiangqidto.CreateRoomResponse](t, w).RoomID
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","rooms":0}`, w.Body.String())
}

func TestCreateRoomRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/rooms", "", xiangqidto.CreateRoomRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, xiangqidto.CodeUnauthorized, decodeJSON[xiangqidto.ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/rooms", "not-a-guest", xiangqidto.CreateRoomRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateListAndGetRoom(t *testing.T) {
	f := newFixture(t)
	id := f.createRoom(t, "guest:alice", xiangqidto.CreateRoomRequest{Name: "Friday game"})
	f.createRoom(t, "guest:alice", xiangqidto.CreateRoomRequest{Name: "secret", IsPrivate: true})

	w := f.do(t, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeJSON[struct {
		Rooms []room.Summary `json:"rooms"`
	}](t, w)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, id, list.Rooms[0].ID)
	assert.Equal(t, "Friday game", list.Rooms[0].Name)
	require.NotNil(t, list.Rooms[0].Host)
	assert.Equal(t, "guest:alice", list.Rooms[0].Host.ID)
	assert.Equal(t, 600, list.Rooms[0].TimeControlSeconds)

	w = f.do(t, http.MethodGet, "/api/rooms/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeJSON[room.Snapshot](t, w)
	assert.Equal(t, room.StatusWaiting, snap.Status)
	assert.Equal(t, xiangqi.Initial().FEN(), snap.FEN)
	// the host has not attached over a socket yet
	require.NotNil(t, snap.Red)
	assert.Equal(t, room.ConnConnecting, snap.Red.Connection)

	w = f.do(t, http.MethodGet, "/api/rooms/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, xiangqidto.CodeRoomNotFound, decodeJSON[xiangqidto.ErrorResponse](t, w).Code)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t)
	neg := -5
	w := f.do(t, http.MethodPost, "/api/rooms", "guest:alice", xiangqidto.CreateRoomRequest{TimeControlSeconds: &neg})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, xiangqidto.CodeBadRequest, decodeJSON[xiangqidto.ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/rooms", "guest:alice", xiangqidto.CreateRoomRequest{BotDifficulty: "grandmaster"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	zero := 0
	id := f.createRoom(t, "guest:alice", xiangqidto.CreateRoomRequest{TimeControlSeconds: &zero})
	r, err := f.rooms.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Snapshot().TimeControlSeconds)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t)
	id := f.createRoom(t, "guest:alice", xiangqidto.CreateRoomRequest{})

	w := f.do(t, http.MethodPost, "/api/rooms/"+id+"/join", "guest:bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decodeJSON[room.Snapshot](t, w)
	assert.Equal(t, room.StatusPlaying, snap.Status)
	require.NotNil(t, snap.Black)
	assert.Equal(t, "guest:bob", snap.Black.Player.ID)

	w = f.do(t, http.MethodPost, "/api/rooms/"+id+"/join", "guest:carol", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, xiangqidto.CodeRoomFull, decodeJSON[xiangqidto.ErrorResponse](t, w).Code)

	w = f.do(t, http.MethodPost, "/api/rooms/missing/join", "guest:carol", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchivedRoomsAreStillReadable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.archive.Save(context.Background(), room.Snapshot{
		ID:     "old",
		Name:   "Yesterday",
		Status: room.StatusFinished,
		FEN:    xiangqi.Initial().FEN(),
		Moves: []room.MoveRecord{{
			Ply: 1, Color: "red", FromRow: 7, FromCol: 7, ToRow: 7, ToCol: 4, ICCS: "h2e2",
		}},
		Outcome: &room.Outcome{Result: domain.ResultRedWins, Reason: domain.ReasonResignation, Winner: "red"},
	}))

	w := f.do(t, http.MethodGet, "/api/rooms/old", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Yesterday", decodeJSON[room.Snapshot](t, w).Name)

	w = f.do(t, http.MethodGet, "/api/rooms/old/board.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
}

func TestBoardPNGForLiveRoom(t *testing.T) {
	f := newFixture(t)
	id := f.createRoom(t, "guest:alice", xiangqidto.CreateRoomRequest{Name: "live"})
	w := f.do(t, http.MethodGet, "/api/rooms/"+id+"/board.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	w = f.do(t, http.MethodGet, "/api/rooms/unknown/board.png", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueSizes(t *testing.T) {
	f := newFixture(t)
	_, err := f.queue.Join(context.Background(), domain.Player{ID: "u1", DisplayName: "U1"}, "s1", 300)
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/queue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeJSON[struct {
		Buckets []matchmaking.BucketSize `json:"buckets"`
	}](t, w)
	assert.Equal(t, []matchmaking.BucketSize{{TimeControlSeconds: 300, Waiting: 1}}, got.Buckets)
}

func TestPlayerRating(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/players/alice/rating", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1200, decodeJSON[xiangqidto.RatingResponse](t, w).Rating)

	_, err := f.recorder.Record(context.Background(), domain.GameReport{
		RoomID: "r1",
		Result: domain.ResultRedWins,
		Reason: domain.ReasonCheckmate,
		Red:    domain.Player{ID: "alice", DisplayName: "Alice"},
		Black:  domain.Player{ID: "bob", DisplayName: "Bob"},
	})
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, "/api/players/alice/rating", "", nil)
	got := decodeJSON[xiangqidto.RatingResponse](t, w)
	assert.Equal(t, 1212, got.Rating)
	assert.Equal(t, 1, got.Wins)
	assert.Equal(t, "Alice", got.DisplayName)
}
