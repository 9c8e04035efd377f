package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// GUESS HANDLING
// =============================================================================

// SubmitGuess scores and stores one player's answer for the active round.
// A player gets exactly one guess per round.
func (m *Manager) SubmitGuess(ctx context.Context, connID string, req internal.SubmitGuessRequest) error {
	b, err := m.binding(connID)
	if err != nil {
		return err
	}

	answer := req.Answer.Normalize()
	if err := answer.Validate(); err != nil {
		return internal.WithMessage(err, "Some answer fields are not valid")
	}

	return m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		player, ok := room.Players[b.UserID]
		if !ok {
			return internal.WithMessage(internal.ErrNotFound, "You are not in this room")
		}
		if room.Phase != internal.PhasePlaying || !room.RoundActive || room.Truth == nil {
			return internal.WithMessage(internal.ErrInvalidState, "No round is accepting answers")
		}
		if req.RoundNumber != 0 && req.RoundNumber != room.CurrentRound {
			return internal.WithMessage(internal.ErrInvalidState, "That round is not accepting answers")
		}
		if room.Answered[player.UserID] {
			return internal.ErrAlreadyAnswered
		}

		score, breakdown := m.scorer.Score(*room.Truth, answer)
		guess := internal.Guess{
			GameID:      room.GameID,
			RoundNumber: room.CurrentRound,
			UserID:      player.UserID,
			Name:        player.Name,
			Answer:      answer,
			Score:       score,
			Breakdown:   breakdown,
			SubmittedAt: time.Now().UTC(),
		}

		ctx, cancel := m.opCtx(ctx)
		defer cancel()
		if err := m.games.CreateGuess(ctx, guess); err != nil {
			return persistErr("save guess", err)
		}

		room.Answered[player.UserID] = true

		log.Debug().
			Str("room", room.Code).
			Str("user", player.UserID).
			Int("round", room.CurrentRound).
			Int("score", score).
			Msg("[SubmitGuess] guess stored")

		m.sendTo(connID, internal.EventGuessAccepted, internal.GuessAcceptedData{
			RoundNumber: room.CurrentRound,
		})
		m.broadcast(room, internal.EventGuessReceived, internal.GuessReceivedData{
			RoundNumber: room.CurrentRound,
			UserID:      player.UserID,
			Answered:    len(room.Answered),
			PlayerCount: room.GetPlayerCount(),
		})
		return nil
	})
}
