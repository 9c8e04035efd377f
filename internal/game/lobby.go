package game

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// LOBBY MANAGEMENT
// =============================================================================

// CreateRoom opens the live room of a waiting game for its host. The
// creating connection becomes the room's host connection.
func (m *Manager) CreateRoom(ctx context.Context, connID string, req internal.CreateRoomRequest) error {
	req.GameID = strings.TrimSpace(req.GameID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	req.Code = NormalizeRoomCode(req.Code)
	if req.GameID == "" || req.UserID == "" || req.Name == "" {
		return internal.WithMessage(internal.ErrBadRequest, "game_id, user_id and name are required")
	}
	if req.Code != "" && !ValidRoomCode(req.Code) {
		return internal.WithMessage(internal.ErrBadRequest, "Room codes look like WN-123456")
	}
	if _, bound := m.registry.Lookup(connID); bound {
		return internal.ErrAlreadyBoundElsewhere
	}

	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	game, err := m.games.GetGame(ctx, req.GameID)
	if err != nil {
		return persistErr("load game", err)
	}
	if game.HostUserID != req.UserID {
		return internal.WithMessage(internal.ErrNotAuthorized, "Only the host can open a room for this game")
	}
	if game.Status != internal.PhaseWaiting {
		return internal.WithMessage(internal.ErrInvalidState, "This game has already started")
	}

	code, err := m.roomCodeFor(ctx, game, req.Code)
	if err != nil {
		return err
	}

	if err := m.games.AddPlayer(ctx, game.ID, req.UserID, req.Name); err != nil {
		return persistErr("add host", err)
	}

	if _, err := m.store.CreateRoom(code, game.ID, connID, req.UserID, req.Name, game.TotalRounds); err != nil {
		return internal.WithMessage(err, "A room is already open for this game")
	}

	return m.store.WithRoom(code, func(room *internal.Room) error {
		if err := m.registry.Bind(connID, code, req.UserID); err != nil {
			m.removeRoomLocked(room)
			return err
		}

		log.Info().
			Str("room", code).
			Str("game", game.ID).
			Str("conn", connID).
			Str("user", req.UserID).
			Msg("[CreateRoom] room created")

		m.sendTo(connID, internal.EventRoomCreated, internal.RoomCreatedData{
			Code:        code,
			GameID:      game.ID,
			TotalRounds: room.TotalRounds,
			Players:     room.Roster(),
		})
		return nil
	})
}

// roomCodeFor settles the code of the room about to be opened for game.
func (m *Manager) roomCodeFor(ctx context.Context, game internal.Game, requested string) (string, error) {
	if game.Code != "" {
		if requested != "" && requested != game.Code {
			return "", internal.WithMessage(internal.ErrBadRequest, "Room code does not belong to this game")
		}
		if m.store.Has(game.Code) {
			return "", internal.WithMessage(internal.ErrDuplicateCode, "A room is already open for this game")
		}
		return game.Code, nil
	}

	code := requested
	if code == "" {
		var err error
		if code, err = m.allocateCode(ctx); err != nil {
			return "", err
		}
	} else {
		inUse, err := m.games.CodeInUse(ctx, code)
		if err != nil {
			return "", persistErr("check room code", err)
		}
		if inUse || m.store.Has(code) {
			return "", internal.ErrDuplicateCode
		}
	}

	if err := m.games.AssignCode(ctx, game.ID, code); err != nil {
		return "", persistErr("assign room code", err)
	}
	return code, nil
}

// StartGame moves a waiting room to PLAYING and schedules round one.
func (m *Manager) StartGame(ctx context.Context, connID string) error {
	b, err := m.binding(connID)
	if err != nil {
		return err
	}

	return m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		if !room.IsHost(connID) {
			return internal.WithMessage(internal.ErrNotAuthorized, "Only the host can start the game")
		}
		if room.Phase != internal.PhaseWaiting {
			return internal.WithMessage(internal.ErrInvalidState, "The game has already started")
		}
		if room.GetPlayerCount() < 1 {
			return internal.WithMessage(internal.ErrInvalidState, "At least one player is needed")
		}

		ctx, cancel := m.opCtx(ctx)
		defer cancel()

		ready, err := m.games.RoundsReady(ctx, room.GameID)
		if err != nil {
			return persistErr("check rounds", err)
		}
		if !ready {
			return internal.WithMessage(internal.ErrInvalidState, "Every round needs an answer before the game can start")
		}
		if err := m.games.StartGame(ctx, room.GameID); err != nil {
			return persistErr("start game", err)
		}

		room.Phase = internal.PhasePlaying

		log.Info().
			Str("room", room.Code).
			Int("players", room.GetPlayerCount()).
			Int("rounds", room.TotalRounds).
			Msg("[StartGame] game started")

		m.broadcast(room, internal.EventGameStarted, internal.GameStartedData{
			TotalRounds: room.TotalRounds,
			PlayerCount: room.GetPlayerCount(),
			StartsInMs:  int(m.opts.RoundStartDelay.Milliseconds()),
		})

		code := room.Code
		m.scheduler.Schedule(taskKey(code, taskStart), m.opts.RoundStartDelay, func(ctx context.Context) {
			m.startFirstRound(ctx, code)
		})
		return nil
	})
}

// startFirstRound is the delayed half of StartGame. It does nothing when the
// room is gone or the host already activated round one.
func (m *Manager) startFirstRound(ctx context.Context, code string) {
	err := m.store.WithRoom(code, func(room *internal.Room) error {
		if room.Phase != internal.PhasePlaying || room.CurrentRound != 0 || room.RoundActive {
			return nil
		}
		return m.activateLocked(ctx, room, 1)
	})
	switch {
	case errors.Is(err, internal.ErrNotFound):
		log.Debug().Str("room", code).Msg("[startFirstRound] room is gone")
	case err != nil:
		log.Warn().Err(err).Str("room", code).Msg("[startFirstRound] round one not activated")
	}
}
