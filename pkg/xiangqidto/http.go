package xiangqidto

type CreateRoomRequest struct {
	Name               string `json:"name"`
	TimeControlSeconds *int   `json:"timeControlSeconds"`
	IsPrivate          bool   `json:"isPrivate"`
	BotDifficulty      string `json:"botDifficulty,omitempty"`
}

type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RatingResponse struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName,omitempty"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
	Streak      int    `json:"streak"`
	StreakType  string `json:"streakType,omitempty"`
}
