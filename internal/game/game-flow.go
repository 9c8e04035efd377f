package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// ROUND FLOW
// =============================================================================

// ActivateRound opens the next round for guesses. Host only.
func (m *Manager) ActivateRound(ctx context.Context, connID string, req internal.ActivateRoundRequest) error {
	b, err := m.binding(connID)
	if err != nil {
		return err
	}

	return m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		if !room.IsHost(connID) {
			return internal.WithMessage(internal.ErrNotAuthorized, "Only the host can activate a round")
		}
		if room.Phase != internal.PhasePlaying {
			return internal.WithMessage(internal.ErrInvalidState, "The game is not in progress")
		}
		if room.RoundActive {
			return internal.WithMessage(internal.ErrInvalidState, "Close the current round first")
		}
		number := req.RoundNumber
		if number == 0 {
			number = room.CurrentRound + 1
		}
		if number != room.CurrentRound+1 || number > room.TotalRounds {
			return internal.WithMessage(internal.ErrInvalidState, "Rounds are played in order")
		}
		return m.activateLocked(ctx, room, number)
	})
}

// activateLocked persists the round as ACTIVE, then records it in the room
// and pushes the question. The caller holds room.Mu.
func (m *Manager) activateLocked(ctx context.Context, room *internal.Room, number int) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	round, err := m.games.GetRound(ctx, room.GameID, number)
	if err != nil {
		return persistErr("load round", err)
	}
	if round.Status != internal.RoundCreated {
		return internal.WithMessage(internal.ErrInvalidState, "That round has already been played")
	}
	if round.Answer == nil {
		return internal.WithMessage(internal.ErrInvalidState, "That round has no answer yet")
	}
	if err := m.games.ActivateRound(ctx, room.GameID, number); err != nil {
		return persistErr("activate round", err)
	}

	truth := *round.Answer
	room.ResetRoundState(number, &truth)
	m.scheduler.Cancel(taskKey(room.Code, taskStart))

	question := internal.QuestionData{
		RoundNumber: number,
		TotalRounds: room.TotalRounds,
		PhotoURL:    round.PhotoURL,
	}
	if d := m.opts.RoundDuration; d > 0 {
		code := room.Code
		question.DeadlineMs = time.Now().Add(d).UnixMilli()
		m.scheduler.Schedule(taskKey(code, taskClose), d, func(ctx context.Context) {
			m.closeExpiredRound(ctx, code, number)
		})
	}

	log.Info().Str("room", room.Code).Int("round", number).Msg("[activateRound] round active")

	m.broadcast(room, internal.EventNewQuestion, question)
	return nil
}

// CloseRound ends the active round and publishes its results. Host only.
func (m *Manager) CloseRound(ctx context.Context, connID string, req internal.CloseRoundRequest) error {
	b, err := m.binding(connID)
	if err != nil {
		return err
	}

	return m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		if !room.IsHost(connID) {
			return internal.WithMessage(internal.ErrNotAuthorized, "Only the host can close a round")
		}
		if room.Phase != internal.PhasePlaying || !room.RoundActive {
			return internal.WithMessage(internal.ErrInvalidState, "No round is active")
		}
		if req.RoundNumber != 0 && req.RoundNumber != room.CurrentRound {
			return internal.WithMessage(internal.ErrInvalidState, "That round is not active")
		}
		return m.closeLocked(ctx, room)
	})
}

func (m *Manager) closeExpiredRound(ctx context.Context, code string, number int) {
	err := m.store.WithRoom(code, func(room *internal.Room) error {
		if !room.RoundActive || room.CurrentRound != number {
			return nil
		}
		log.Info().Str("room", code).Int("round", number).Msg("[closeExpiredRound] round timed out")
		return m.closeLocked(ctx, room)
	})
	if err != nil && !errors.Is(err, internal.ErrNotFound) {
		log.Warn().Err(err).Str("room", code).Int("round", number).Msg("[closeExpiredRound] close failed")
	}
}

// closeLocked closes the active round, finishing the game on the last one.
// Everything it needs is read before the single durable write. The caller
// holds room.Mu.
func (m *Manager) closeLocked(ctx context.Context, room *internal.Room) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	number := room.CurrentRound
	last := room.IsLastRound()

	guesses, err := m.games.ListGuesses(ctx, room.GameID, number)
	if err != nil {
		return persistErr("list guesses", err)
	}
	var totals []internal.PlayerScore
	if last {
		if totals, err = m.games.AggregateScores(ctx, room.GameID); err != nil {
			return persistErr("aggregate scores", err)
		}
	}
	if err := m.games.CloseRound(ctx, room.GameID, number, last); err != nil {
		return persistErr("close round", err)
	}

	m.scheduler.Cancel(taskKey(room.Code, taskClose))

	var truth internal.AnswerParameters
	if room.Truth != nil {
		truth = *room.Truth
	}
	points := make(map[string]int, len(guesses))
	for _, g := range guesses {
		points[g.UserID] = g.Score
	}
	room.EndRound(points)

	m.broadcast(room, internal.EventRoundResults, internal.RoundResultsData{
		RoundNumber:   number,
		TotalRounds:   room.TotalRounds,
		CorrectAnswer: truth,
		Results:       roundResults(room, guesses),
		IsLastRound:   last,
	})

	log.Info().
		Str("room", room.Code).
		Int("round", number).
		Int("guesses", len(guesses)).
		Bool("last", last).
		Msg("[closeRound] round closed")

	if last {
		m.finishLocked(room, totals)
	}
	return nil
}

// finishLocked marks the room FINISHED and publishes final standings.
func (m *Manager) finishLocked(room *internal.Room, totals []internal.PlayerScore) {
	room.Phase = internal.PhaseFinished
	standings := Standings(totals)

	log.Info().Str("room", room.Code).Int("players", len(standings)).Msg("[finishGame] game finished")

	m.broadcast(room, internal.EventGameFinished, internal.GameFinishedData{
		RoundsPlayed: room.CurrentRound,
		Standings:    standings,
	})
}

// roundResults lists every roster player in join order, followed by anyone
// who guessed and has since left.
func roundResults(room *internal.Room, guesses []internal.Guess) []internal.PlayerRoundResult {
	byUser := make(map[string]internal.Guess, len(guesses))
	for _, g := range guesses {
		byUser[g.UserID] = g
	}

	results := make([]internal.PlayerRoundResult, 0, len(room.PlayerOrder)+len(guesses))
	seen := make(map[string]bool, len(room.PlayerOrder))
	add := func(userID, name string) {
		seen[userID] = true
		res := internal.PlayerRoundResult{
			UserID:     userID,
			Name:       name,
			TotalScore: room.Scores[userID],
		}
		if g, ok := byUser[userID]; ok {
			answer := g.Answer
			res.Answered = true
			res.Guess = &answer
			res.Breakdown = g.Breakdown
			res.RoundScore = g.Score
		}
		results = append(results, res)
	}

	for _, userID := range room.PlayerOrder {
		add(userID, room.Players[userID].Name)
	}
	for _, g := range guesses {
		if !seen[g.UserID] {
			add(g.UserID, g.Name)
		}
	}
	return results
}
