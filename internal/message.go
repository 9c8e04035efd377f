package internal

import "encoding/json"

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound event types.
const (
	EventCreateRoom     = "create_room"
	EventJoinRoom       = "join_room"
	EventStartGame      = "start_game"
	EventSetRoundAnswer = "set_round_answer"
	EventActivateRound  = "activate_round"
	EventSubmitGuess    = "submit_guess"
	EventCloseRound     = "close_round"
)

// Outbound event types.
const (
	EventRoomCreated      = "room_created"
	EventRoomJoined       = "room_joined"
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventGameStarted      = "game_started"
	EventNewQuestion      = "new_question"
	EventRoundAnswerSaved = "round_answer_saved"
	EventGuessAccepted    = "guess_accepted"
	EventGuessReceived    = "guess_received"
	EventRoundResults     = "round_results"
	EventGameFinished     = "game_finished"
	EventHostDisconnected = "host_disconnected"
	EventError            = "error"
)

type InboundMessage = Message[json.RawMessage]

type CreateRoomRequest struct {
	GameID string `json:"game_id"`
	Code   string `json:"code,omitempty"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type JoinRoomRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type SetRoundAnswerRequest struct {
	RoundNumber int              `json:"round_number"`
	Answer      AnswerParameters `json:"answer"`
}

type ActivateRoundRequest struct {
	RoundNumber int `json:"round_number,omitempty"`
}

type SubmitGuessRequest struct {
	RoundNumber int              `json:"round_number"`
	Answer      AnswerParameters `json:"answer"`
}

type CloseRoundRequest struct {
	RoundNumber int `json:"round_number,omitempty"`
}

type RoomCreatedData struct {
	Code        string           `json:"code"`
	GameID      string           `json:"game_id"`
	TotalRounds int              `json:"total_rounds"`
	Players     []PlayerSnapshot `json:"players"`
}

type RoomJoinedData struct {
	Code         string           `json:"code"`
	GameID       string           `json:"game_id"`
	Phase        GamePhase        `json:"phase"`
	TotalRounds  int              `json:"total_rounds"`
	Players      []PlayerSnapshot `json:"players"`
	CurrentRound int              `json:"current_round"`
	RoundActive  bool             `json:"round_active"`
	Reconnected  bool             `json:"reconnected"`
}

type PlayerJoinedData struct {
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Players     []PlayerSnapshot `json:"players"`
	PlayerCount int              `json:"player_count"`
}

type PlayerLeftData struct {
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Players     []PlayerSnapshot `json:"players"`
	PlayerCount int              `json:"player_count"`
}

type GameStartedData struct {
	TotalRounds int `json:"total_rounds"`
	PlayerCount int `json:"player_count"`
	StartsInMs  int `json:"starts_in_ms"`
}

// QuestionData is the player-safe view of a round: the answer is never
// included.
type QuestionData struct {
	RoundNumber int    `json:"round_number"`
	TotalRounds int    `json:"total_rounds"`
	PhotoURL    string `json:"photo_url,omitempty"`
	DeadlineMs  int64  `json:"deadline_ms,omitempty"`
}

type RoundAnswerSavedData struct {
	RoundNumber int `json:"round_number"`
}

type GuessAcceptedData struct {
	RoundNumber int `json:"round_number"`
}

type GuessReceivedData struct {
	RoundNumber int    `json:"round_number"`
	UserID      string `json:"user_id"`
	Answered    int    `json:"answered"`
	PlayerCount int    `json:"player_count"`
}

type PlayerRoundResult struct {
	UserID     string                 `json:"user_id"`
	Name       string                 `json:"name"`
	Answered   bool                   `json:"answered"`
	Guess      *AnswerParameters      `json:"guess,omitempty"`
	Breakdown  map[string]FieldResult `json:"breakdown,omitempty"`
	RoundScore int                    `json:"round_score"`
	TotalScore int                    `json:"total_score"`
}

type RoundResultsData struct {
	RoundNumber   int                 `json:"round_number"`
	TotalRounds   int                 `json:"total_rounds"`
	CorrectAnswer AnswerParameters    `json:"correct_answer"`
	Results       []PlayerRoundResult `json:"results"`
	IsLastRound   bool                `json:"is_last_round"`
}

type GameFinishedData struct {
	RoundsPlayed int        `json:"rounds_played"`
	Standings    []Standing `json:"standings"`
}

type HostDisconnectedData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
