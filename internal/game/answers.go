package game

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// SetRoundAnswer stores the ground truth of a round that has not been
// played yet. Host only.
func (m *Manager) SetRoundAnswer(ctx context.Context, connID string, req internal.SetRoundAnswerRequest) error {
	b, err := m.binding(connID)
	if err != nil {
		return err
	}

	answer := req.Answer.Normalize()
	if err := answer.Validate(); err != nil {
		return internal.WithMessage(err, "Some answer fields are not valid")
	}
	if !answer.Complete() {
		return internal.WithMessage(internal.ErrBadRequest, "Every answer field is required")
	}

	return m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		if !room.IsHost(connID) {
			return internal.WithMessage(internal.ErrNotAuthorized, "Only the host can set round answers")
		}
		if req.RoundNumber < 1 || req.RoundNumber > room.TotalRounds {
			return internal.WithMessage(internal.ErrBadRequest, "No such round")
		}
		if room.Phase == internal.PhaseFinished {
			return internal.WithMessage(internal.ErrInvalidState, "The game has finished")
		}

		ctx, cancel := m.opCtx(ctx)
		defer cancel()

		round, err := m.games.GetRound(ctx, room.GameID, req.RoundNumber)
		if err != nil {
			return persistErr("load round", err)
		}
		if round.Status != internal.RoundCreated {
			return internal.WithMessage(internal.ErrInvalidState, "Answers are locked once a round starts")
		}
		if err := m.games.SaveAnswer(ctx, room.GameID, req.RoundNumber, answer); err != nil {
			return persistErr("save answer", err)
		}

		log.Info().Str("room", room.Code).Int("round", req.RoundNumber).Msg("[SetRoundAnswer] answer saved")

		m.sendTo(connID, internal.EventRoundAnswerSaved, internal.RoundAnswerSavedData{
			RoundNumber: req.RoundNumber,
		})
		return nil
	})
}
