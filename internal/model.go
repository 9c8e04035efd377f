package internal

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	MaxPlayersPerRoom   = 99
	RoundStartDelay     = 3 * time.Second
	RoomCodePrefix      = "WN-"
	RoomCodeDigits      = 6
	MaxRoomCodeAttempts = 10
)

type GamePhase string

const (
	PhaseWaiting  GamePhase = "WAITING"
	PhasePlaying  GamePhase = "PLAYING"
	PhaseFinished GamePhase = "FINISHED"
)

type RoundStatus string

const (
	RoundCreated RoundStatus = "CREATED"
	RoundActive  RoundStatus = "ACTIVE"
	RoundClosed  RoundStatus = "CLOSED"
)

// CanTransition reports whether a round may move from s to next.
// Rounds only ever move forward: CREATED -> ACTIVE -> CLOSED.
func (s RoundStatus) CanTransition(next RoundStatus) bool {
	switch s {
	case RoundCreated:
		return next == RoundActive
	case RoundActive:
		return next == RoundClosed
	}
	return false
}

// Game is the durable session record a room is attached to.
type Game struct {
	ID           string       `json:"id"`
	Code         string       `json:"code"`
	HostUserID   string       `json:"host_user_id"`
	Status       GamePhase    `json:"status"`
	TotalRounds  int          `json:"total_rounds"`
	CurrentRound int          `json:"current_round"`
	Players      []GamePlayer `json:"players"`
}

type GamePlayer struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	JoinOrder int64  `json:"join_order"`
}

type Round struct {
	GameID   string            `json:"game_id"`
	Number   int               `json:"round_number"`
	Status   RoundStatus       `json:"status"`
	Answer   *AnswerParameters `json:"answer,omitempty"`
	PhotoURL string            `json:"photo_url,omitempty"`
}

// RoundInput describes one round when a game is created. The answer may be
// left for the host to fill in later.
type RoundInput struct {
	PhotoURL string            `json:"photo_url,omitempty"`
	Answer   *AnswerParameters `json:"answer,omitempty"`
}

type FieldResult struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
}

type Guess struct {
	GameID      string                 `json:"game_id"`
	RoundNumber int                    `json:"round_number"`
	UserID      string                 `json:"user_id"`
	Name        string                 `json:"name"`
	Answer      AnswerParameters       `json:"answer"`
	Score       int                    `json:"score"`
	Breakdown   map[string]FieldResult `json:"breakdown"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

type PlayerScore struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	JoinOrder int64  `json:"-"`
}

type Standing struct {
	Position int    `json:"position"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

// RoomSummary is the public HTTP view of a live room.
type RoomSummary struct {
	Code         string    `json:"code"`
	GameID       string    `json:"game_id"`
	Phase        GamePhase `json:"phase"`
	PlayerCount  int       `json:"player_count"`
	MaxPlayers   int       `json:"max_players"`
	TotalRounds  int       `json:"total_rounds"`
	CurrentRound int       `json:"current_round"`
	JoinURL      string    `json:"join_url,omitempty"`
}

// Room is the ephemeral coordination unit for one game. Every field except
// Code is guarded by Mu; the store hands rooms out only under that lock.
type Room struct {
	Code       string
	GameID     string
	HostConnID string
	HostUserID string

	Players     map[string]*Player
	PlayerOrder []string
	MaxPlayers  int

	Phase        GamePhase
	TotalRounds  int
	CurrentRound int
	RoundActive  bool
	Scores       map[string]int
	Answered     map[string]bool

	// Truth is the answer of the active round, cached at activation.
	Truth *AnswerParameters

	CreatedAt time.Time

	Mu      sync.Mutex
	removed atomic.Bool
}
