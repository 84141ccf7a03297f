package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/engine"
	"github.com/park285/cheese-xiangqi/internal/gateway"
	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/render"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"go.uber.org/zap"
)

const (
	ctxPlayerKey = "player"
	maxRoomName  = 64
)

var errBadRequest = errors.New("bad request")

var statusByCode = map[string]int{
	xiangqidto.CodeBadRequest:     http.StatusBadRequest,
	xiangqidto.CodeUnauthorized:   http.StatusUnauthorized,
	xiangqidto.CodeRoomNotFound:   http.StatusNotFound,
	xiangqidto.CodeRoomFull:       http.StatusConflict,
	xiangqidto.CodeGameOver:       http.StatusConflict,
	xiangqidto.CodeTooManyRooms:   http.StatusServiceUnavailable,
	xiangqidto.CodeNotAPlayer:     http.StatusForbidden,
	xiangqidto.CodeGameNotStarted: http.StatusConflict,
}

func (a *api) fail(c *gin.Context, err error, roomID string) {
	if errors.Is(err, errBadRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, xiangqidto.ErrorResponse{
			Code:    xiangqidto.CodeBadRequest,
			Message: a.Catalog.Text("error.bad_request", map[string]any{"Detail": strings.TrimPrefix(err.Error(), "bad request: ")}, err.Error()),
		})
		return
	}
	de, known := gateway.MapError(a.Catalog, err, roomID)
	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if !known {
		a.logger.Error("http_failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, xiangqidto.ErrorResponse{Code: de.Code, Message: de.Message})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

// authenticate resolves the bearer token and stores the caller as a Player.
func (a *api) authenticate(c *gin.Context) {
	ident, err := a.Auth.Resolve(c.Request.Context(), identity.BearerToken(c.GetHeader("Authorization")))
	if err != nil {
		if !errors.Is(err, identity.ErrUnauthorized) {
			a.logger.Warn("http_identity_failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, xiangqidto.ErrorResponse{
				Code:    xiangqidto.CodeInternal,
				Message: a.Catalog.Text("error.internal", nil, "identity service unavailable"),
			})
			return
		}
		a.fail(c, identity.ErrUnauthorized, "")
		return
	}
	rating := a.DefaultRating
	if !ident.IsGuest && a.Profiles != nil {
		if n, err := a.Profiles.Rating(c.Request.Context(), ident.UserID); err == nil {
			rating = n
		} else {
			a.logger.Warn("http_rating_lookup_failed", zap.String("user_id", ident.UserID), zap.Error(err))
		}
	}
	c.Set(ctxPlayerKey, ident.Player(rating))
	c.Next()
}

func caller(c *gin.Context) domain.Player {
	p, _ := c.MustGet(ctxPlayerKey).(domain.Player)
	return p
}

func (a *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": a.Rooms.Len()})
}

func (a *api) createRoom(c *gin.Context) {
	var req xiangqidto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, badRequest("invalid json"), "")
		return
	}
	tc := a.DefaultTimeControl
	if req.TimeControlSeconds != nil {
		tc = *req.TimeControlSeconds
	}
	if tc < 0 {
		a.fail(c, badRequest("timeControlSeconds must not be negative"), "")
		return
	}
	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) > maxRoomName {
		a.fail(c, badRequest("name longer than %d characters", maxRoomName), "")
		return
	}
	opts := room.CreateOptions{
		Name:               name,
		TimeControlSeconds: tc,
		Private:            req.IsPrivate,
		BotDifficulty:      engine.Difficulty(strings.TrimSpace(req.BotDifficulty)),
	}
	r, err := a.Rooms.Create(caller(c), opts)
	if err != nil {
		a.fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, xiangqidto.CreateRoomResponse{RoomID: r.ID()})
}

func (a *api) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.Rooms.List()})
}

// snapshot finds a live room or, failing that, its archived copy.
func (a *api) snapshot(c *gin.Context, id string) (room.Snapshot, error) {
	r, err := a.Rooms.Get(id)
	if err == nil {
		return r.Snapshot(), nil
	}
	if !errors.Is(err, room.ErrRoomNotFound) || a.Archive == nil {
		return room.Snapshot{}, err
	}
	snap, aerr := a.Archive.Load(c.Request.Context(), id)
	if aerr != nil {
		a.logger.Warn("http_archive_load_failed", zap.String("room_id", id), zap.Error(aerr))
		return room.Snapshot{}, err
	}
	if snap == nil {
		return room.Snapshot{}, err
	}
	return *snap, nil
}

func (a *api) getRoom(c *gin.Context) {
	id := c.Param("id")
	snap, err := a.snapshot(c, id)
	if err != nil {
		a.fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *api) joinRoom(c *gin.Context) {
	id := c.Param("id")
	snap, err := a.Rooms.Join(id, caller(c))
	if err != nil {
		a.fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *api) boardPNG(c *gin.Context) {
	id := c.Param("id")
	snap, err := a.snapshot(c, id)
	if err != nil {
		a.fail(c, err, id)
		return
	}
	board, err := xiangqi.ParseFEN(snap.FEN)
	if err != nil {
		a.fail(c, fmt.Errorf("room %s has unreadable board: %w", id, err), id)
		return
	}
	opts := render.Options{Header: snap.Name, Turn: turnLabel(snap)}
	if last, ok := snap.LastMove(); ok {
		opts.Highlight = &render.MoveHighlight{
			From: xiangqi.Pos(last.FromRow, last.FromCol),
			To:   xiangqi.Pos(last.ToRow, last.ToCol),
		}
	}
	png, err := a.Renderer.RenderPNG(c.Request.Context(), board, opts)
	if err != nil {
		a.fail(c, err, id)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func turnLabel(s room.Snapshot) string {
	switch {
	case s.Outcome != nil && s.Outcome.Winner != "":
		return s.Outcome.Winner + " won"
	case s.Outcome != nil:
		return "draw"
	case s.Status == room.StatusPlaying:
		return s.Turn + " to move"
	}
	return strings.ToLower(string(s.Status))
}

func (a *api) queueSizes(c *gin.Context) {
	if a.Queue == nil {
		c.JSON(http.StatusOK, gin.H{"buckets": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": a.Queue.Snapshot()})
}

func (a *api) rating(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if a.Profiles == nil {
		c.JSON(http.StatusOK, xiangqidto.RatingResponse{PlayerID: id, Rating: a.DefaultRating})
		return
	}
	p, err := a.Profiles.Profile(c.Request.Context(), id)
	if err != nil {
		a.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, xiangqidto.RatingResponse{
		PlayerID:    p.PlayerID,
		DisplayName: p.DisplayName,
		Rating:      p.Rating,
		GamesPlayed: p.GamesPlayed,
		Wins:        p.Wins,
		Losses:      p.Losses,
		Draws:       p.Draws,
		Streak:      p.Streak,
		StreakType:  p.StreakType,
	})
}
