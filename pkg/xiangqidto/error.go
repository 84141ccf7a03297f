package xiangqidto

// Error codes sent in error envelopes and HTTP error bodies.
const (
	CodeIllegalMove     = "ILLEGAL_MOVE"
	CodeNotYourTurn     = "NOT_YOUR_TURN"
	CodeRoomNotFound    = "ROOM_NOT_FOUND"
	CodeRoomFull        = "ROOM_FULL"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeStaleConnection = "STALE_CONNECTION"
	CodeNotAPlayer      = "NOT_A_PLAYER"
	CodeGameOver        = "GAME_OVER"
	CodeGameNotStarted  = "GAME_NOT_STARTED"
	CodeDrawPending     = "DRAW_PENDING"
	CodeDrawNotPending  = "DRAW_NOT_PENDING"
	CodeAlreadyQueued   = "ALREADY_QUEUED"
	CodeTooManyRooms    = "TOO_MANY_ROOMS"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL"
)

// DomainError is an error already translated for clients.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RoomID    string `json:"roomId,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	// Reconnect asks the client to re-send join_room before retrying.
	Reconnect bool `json:"reconnect,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "xiangqi service error"
}
