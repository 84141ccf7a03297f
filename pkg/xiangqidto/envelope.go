package xiangqidto

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeJoinRoom         = "join_room"
	TypeLeaveRoom        = "leave_room"
	TypeAbandon          = "abandon"
	TypeSendMove         = "send_move"
	TypeSendChat         = "send_chat"
	TypeResign           = "resign"
	TypeOfferDraw        = "offer_draw"
	TypeRespondDraw      = "respond_draw"
	TypeJoinMatchmaking  = "join_matchmaking"
	TypeLeaveMatchmaking = "leave_matchmaking"
	TypeWatchRoom        = "watch_room"
	TypeRejoin           = "rejoin"
)

// Outbound message types.
const (
	TypeRoomState         = "room_state"
	TypeMoveApplied       = "move_applied"
	TypeChat              = "chat"
	TypeMatchmakingQueued = "matchmaking_queued"
	TypeMatchmakingPaired = "matchmaking_paired"
	TypeMatchmakingLeft   = "matchmaking_left"
	TypeConnectionState   = "connection_state"
	TypeDrawOffered       = "draw_offered"
	TypeDrawDeclined      = "draw_declined"
	TypeGameOver          = "game_over"
	TypeRejoinAvailable   = "rejoin_available"
	TypeError             = "error"
)

// Envelope is the frame used in both directions on the websocket.
type Envelope struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope. A nil payload is omitted.
func NewEnvelope(typ, roomID string, payload any) (Envelope, error) {
	env := Envelope{Type: typ, RoomID: roomID}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the payload into dst. An empty payload leaves dst untouched.
func (e Envelope) Decode(dst any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
