package gateway

import (
	"errors"
	"strings"

	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
)

// errStale marks a message for a room the session is not bound to.
var errStale = errors.New("stale connection")

type badRequest struct{ detail string }

func (e badRequest) Error() string { return "bad request: " + e.detail }

func errBadRequest(detail string) error { return badRequest{detail: detail} }

type errorCase struct {
	target error
	code   string
	key    string
}

var errorTable = []errorCase{
	{room.ErrIllegalMove, xiangqidto.CodeIllegalMove, "error.illegal_move"},
	{room.ErrNotYourTurn, xiangqidto.CodeNotYourTurn, "error.not_your_turn"},
	{room.ErrRoomNotFound, xiangqidto.CodeRoomNotFound, "error.room_not_found"},
	{room.ErrRoomClosed, xiangqidto.CodeRoomNotFound, "error.room_not_found"},
	{room.ErrRoomAborted, xiangqidto.CodeRoomNotFound, "error.room_not_found"},
	{room.ErrRoomFull, xiangqidto.CodeRoomFull, "error.room_full"},
	{room.ErrNotAPlayer, xiangqidto.CodeNotAPlayer, "error.not_a_player"},
	{room.ErrGameOver, xiangqidto.CodeGameOver, "error.game_over"},
	{room.ErrGameNotStarted, xiangqidto.CodeGameNotStarted, "error.game_not_started"},
	{room.ErrDrawPending, xiangqidto.CodeDrawPending, "error.draw_pending"},
	{room.ErrDrawNotPending, xiangqidto.CodeDrawNotPending, "error.draw_not_pending"},
	{room.ErrTooManyRooms, xiangqidto.CodeTooManyRooms, "error.too_many_rooms"},
	{matchmaking.ErrAlreadyQueued, xiangqidto.CodeAlreadyQueued, "error.already_queued"},
	{identity.ErrUnauthorized, xiangqidto.CodeUnauthorized, "error.unauthorized"},
	{errStale, xiangqidto.CodeStaleConnection, "error.stale_connection"},
	{room.ErrInvalidArgs, xiangqidto.CodeBadRequest, "error.bad_request"},
	{matchmaking.ErrInvalidArgs, xiangqidto.CodeBadRequest, "error.bad_request"},
	{matchmaking.ErrUnsupportedTimeControl, xiangqidto.CodeBadRequest, "error.bad_request"},
}

// MapError turns a domain error into its wire form. Unknown errors map to
// INTERNAL; the second return value reports whether err was recognised.
func MapError(cat *msgcat.Catalog, err error, roomID string) (xiangqidto.DomainError, bool) {
	data := map[string]any{"RoomID": roomID, "Detail": detail(err)}
	var br badRequest
	if errors.As(err, &br) {
		data["Detail"] = br.detail
		return xiangqidto.DomainError{
			Code:    xiangqidto.CodeBadRequest,
			Message: cat.Text("error.bad_request", data, br.Error()),
			RoomID:  roomID,
		}, true
	}
	for _, c := range errorTable {
		if !errors.Is(err, c.target) {
			continue
		}
		out := xiangqidto.DomainError{
			Code:    c.code,
			Message: cat.Text(c.key, data, err.Error()),
			RoomID:  roomID,
		}
		if c.target == errStale {
			out.Reconnect = true
		}
		return out, true
	}
	return xiangqidto.DomainError{
		Code:      xiangqidto.CodeInternal,
		Message:   cat.Text("error.internal", data, "internal error"),
		RoomID:    roomID,
		Retryable: true,
	}, false
}

// detail is the part of a wrapped error after the sentinel text.
func detail(err error) string {
	s := err.Error()
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}
