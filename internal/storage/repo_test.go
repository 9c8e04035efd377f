package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/scythe504/winenight-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gameRepo interface {
	CreateGame(ctx context.Context, hostUserID string, rounds []internal.RoundInput) (internal.Game, error)
	GetGame(ctx context.Context, gameID string) (internal.Game, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	AssignCode(ctx context.Context, gameID, code string) error
	AddPlayer(ctx context.Context, gameID, userID, name string) error
	RoundsReady(ctx context.Context, gameID string) (bool, error)
	StartGame(ctx context.Context, gameID string) error
	GetRound(ctx context.Context, gameID string, number int) (internal.Round, error)
	SaveAnswer(ctx context.Context, gameID string, number int, answer internal.AnswerParameters) error
	ActivateRound(ctx context.Context, gameID string, number int) error
	CloseRound(ctx context.Context, gameID string, number int, finish bool) error
	CreateGuess(ctx context.Context, guess internal.Guess) error
	ListGuesses(ctx context.Context, gameID string, number int) ([]internal.Guess, error)
	AggregateScores(ctx context.Context, gameID string) ([]internal.PlayerScore, error)
}

func oak(b bool) *bool { return &b }

func sampleAnswer() internal.AnswerParameters {
	return internal.AnswerParameters{
		GrapeVarieties: []string{"Riesling"},
		Sweetness:      "OFF_DRY",
		Vintage:        2021,
		Country:        "Germany",
		AlcoholContent: 9.5,
		OakAged:        oak(false),
		Color:          "WHITE",
		Composition:    "VARIETAL",
	}
}

// testRepo drives one repository implementation through a whole game.
// codeSuffix keeps room codes unique when implementations share a database.
func testRepo(t *testing.T, repo gameRepo, codeSuffix string) {
	ctx := context.Background()
	answer := sampleAnswer()

	g, err := repo.CreateGame(ctx, "host-1", []internal.RoundInput{
		{Answer: &answer, PhotoURL: "https://img.example/1.jpg"},
		{PhotoURL: "https://img.example/2.jpg"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, g.ID)
	code := "WN-10000" + codeSuffix

	t.Run("CreateGameValidation", func(t *testing.T) {
		_, err := repo.CreateGame(ctx, "host-1", nil)
		assert.ErrorIs(t, err, internal.ErrBadRequest)
	})

	t.Run("RoundsReadyNeedsCompleteAnswers", func(t *testing.T) {
		partial := internal.AnswerParameters{Color: "RED"}
		blank, err := repo.CreateGame(ctx, "host-3", []internal.RoundInput{
			{Answer: &internal.AnswerParameters{}},
			{Answer: &partial},
		})
		require.NoError(t, err)

		ready, err := repo.RoundsReady(ctx, blank.ID)
		require.NoError(t, err)
		assert.False(t, ready)

		require.NoError(t, repo.SaveAnswer(ctx, blank.ID, 1, answer))
		ready, err = repo.RoundsReady(ctx, blank.ID)
		require.NoError(t, err)
		assert.False(t, ready)

		require.NoError(t, repo.SaveAnswer(ctx, blank.ID, 2, answer))
		ready, err = repo.RoundsReady(ctx, blank.ID)
		require.NoError(t, err)
		assert.True(t, ready)
	})

	t.Run("GetGame", func(t *testing.T) {
		got, err := repo.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "host-1", got.HostUserID)
		assert.Equal(t, internal.PhaseWaiting, got.Status)
		assert.Equal(t, 2, got.TotalRounds)
		assert.Empty(t, got.Code)
	})

	t.Run("GetGame_NotFound", func(t *testing.T) {
		_, err := repo.GetGame(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, internal.ErrNotFound)
		_, err = repo.GetGame(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, internal.ErrNotFound)
	})

	t.Run("AssignCode", func(t *testing.T) {
		inUse, err := repo.CodeInUse(ctx, code)
		require.NoError(t, err)
		assert.False(t, inUse)

		require.NoError(t, repo.AssignCode(ctx, g.ID, code))
		inUse, err = repo.CodeInUse(ctx, code)
		require.NoError(t, err)
		assert.True(t, inUse)

		other, err := repo.CreateGame(ctx, "host-2", []internal.RoundInput{{Answer: &answer}})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.AssignCode(ctx, other.ID, code), internal.ErrDuplicateCode)
	})

	t.Run("AddPlayerIsIdempotent", func(t *testing.T) {
		require.NoError(t, repo.AddPlayer(ctx, g.ID, "host-1", "Alice"))
		require.NoError(t, repo.AddPlayer(ctx, g.ID, "p-2", "Bob"))
		require.NoError(t, repo.AddPlayer(ctx, g.ID, "p-2", "Bobby"))

		got, err := repo.GetGame(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, got.Players, 2)
		assert.Equal(t, "host-1", got.Players[0].UserID)
		assert.Equal(t, "Bobby", got.Players[1].Name)
		assert.Less(t, got.Players[0].JoinOrder, got.Players[1].JoinOrder)
	})

	t.Run("RoundsReady", func(t *testing.T) {
		ready, err := repo.RoundsReady(ctx, g.ID)
		require.NoError(t, err)
		assert.False(t, ready)

		require.NoError(t, repo.SaveAnswer(ctx, g.ID, 2, answer))
		ready, err = repo.RoundsReady(ctx, g.ID)
		require.NoError(t, err)
		assert.True(t, ready)
	})

	t.Run("ActivateBeforeStart", func(t *testing.T) {
		assert.ErrorIs(t, repo.ActivateRound(ctx, g.ID, 1), internal.ErrInvalidState)
		round, err := repo.GetRound(ctx, g.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, internal.RoundCreated, round.Status)
	})

	t.Run("PlayRoundOne", func(t *testing.T) {
		require.NoError(t, repo.StartGame(ctx, g.ID))
		assert.ErrorIs(t, repo.StartGame(ctx, g.ID), internal.ErrInvalidState)

		require.NoError(t, repo.ActivateRound(ctx, g.ID, 1))
		assert.ErrorIs(t, repo.ActivateRound(ctx, g.ID, 1), internal.ErrInvalidState)
		assert.ErrorIs(t, repo.SaveAnswer(ctx, g.ID, 1, answer), internal.ErrInvalidState)

		round, err := repo.GetRound(ctx, g.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, internal.RoundActive, round.Status)
		require.NotNil(t, round.Answer)
		assert.Equal(t, "Germany", round.Answer.Country)
		assert.Equal(t, "https://img.example/1.jpg", round.PhotoURL)

		guess := internal.Guess{
			GameID:      g.ID,
			RoundNumber: 1,
			UserID:      "p-2",
			Name:        "Bobby",
			Answer:      internal.AnswerParameters{Color: "WHITE"},
			Score:       10,
			Breakdown:   map[string]internal.FieldResult{internal.FieldColor: {Correct: true, Points: 10}},
			SubmittedAt: time.Now().UTC(),
		}
		require.NoError(t, repo.CreateGuess(ctx, guess))
		assert.ErrorIs(t, repo.CreateGuess(ctx, guess), internal.ErrAlreadyAnswered)

		guesses, err := repo.ListGuesses(ctx, g.ID, 1)
		require.NoError(t, err)
		require.Len(t, guesses, 1)
		assert.Equal(t, "WHITE", guesses[0].Answer.Color)
		assert.Equal(t, 10, guesses[0].Breakdown[internal.FieldColor].Points)

		require.NoError(t, repo.CloseRound(ctx, g.ID, 1, false))
		assert.ErrorIs(t, repo.CloseRound(ctx, g.ID, 1, false), internal.ErrInvalidState)

		guess.UserID = "host-1"
		assert.ErrorIs(t, repo.CreateGuess(ctx, guess), internal.ErrInvalidState)
	})

	t.Run("FinishGame", func(t *testing.T) {
		require.NoError(t, repo.ActivateRound(ctx, g.ID, 2))
		require.NoError(t, repo.CreateGuess(ctx, internal.Guess{
			GameID: g.ID, RoundNumber: 2, UserID: "host-1", Name: "Alice",
			Score: 25, SubmittedAt: time.Now().UTC(),
		}))
		require.NoError(t, repo.CloseRound(ctx, g.ID, 2, true))

		got, err := repo.GetGame(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, internal.PhaseFinished, got.Status)
		assert.Equal(t, 2, got.CurrentRound)

		scores, err := repo.AggregateScores(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, "host-1", scores[0].UserID)
		assert.Equal(t, 25, scores[0].Total)
		assert.Equal(t, "p-2", scores[1].UserID)
		assert.Equal(t, 10, scores[1].Total)
	})

	t.Run("UnknownRound", func(t *testing.T) {
		_, err := repo.GetRound(ctx, g.ID, 9)
		assert.ErrorIs(t, err, internal.ErrNotFound)
	})
}
