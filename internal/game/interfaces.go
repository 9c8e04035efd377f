package game

import (
	"context"

	"github.com/scythe504/winenight-backend/internal"
)

// GameService is the durable side of a game: games, rounds, players and
// guesses. Rooms only ever change durable state through it.
type GameService interface {
	GetGame(ctx context.Context, gameID string) (internal.Game, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	AssignCode(ctx context.Context, gameID, code string) error
	AddPlayer(ctx context.Context, gameID, userID, name string) error
	RoundsReady(ctx context.Context, gameID string) (bool, error)
	StartGame(ctx context.Context, gameID string) error

	GetRound(ctx context.Context, gameID string, number int) (internal.Round, error)
	SaveAnswer(ctx context.Context, gameID string, number int, answer internal.AnswerParameters) error
	// ActivateRound moves the round to ACTIVE and records it as the game's
	// current round in one step.
	ActivateRound(ctx context.Context, gameID string, number int) error
	// CloseRound moves the round to CLOSED, and the game to FINISHED when
	// finish is set, in one step.
	CloseRound(ctx context.Context, gameID string, number int, finish bool) error

	// CreateGuess fails with internal.ErrAlreadyAnswered when the user already
	// has a guess for the round.
	CreateGuess(ctx context.Context, guess internal.Guess) error
	ListGuesses(ctx context.Context, gameID string, number int) ([]internal.Guess, error)
	// AggregateScores returns every player of the game with their total, in
	// join order.
	AggregateScores(ctx context.Context, gameID string) ([]internal.PlayerScore, error)
}

// Socket is one client transport. The gorilla implementation lives in
// websocket.go; tests use an in-memory one.
type Socket interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Ping() error
	Close(reason string)
}
