package game

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// ROOM MANAGEMENT
// =============================================================================

// JoinRoom adds a player to a live room, or reattaches them when the user is
// already on the roster.
func (m *Manager) JoinRoom(ctx context.Context, connID string, req internal.JoinRoomRequest) error {
	code := NormalizeRoomCode(req.Code)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == "" || req.Name == "" {
		return internal.WithMessage(internal.ErrBadRequest, "user_id and name are required")
	}
	if !ValidRoomCode(code) {
		return internal.ErrNotFound
	}
	if b, bound := m.registry.Lookup(connID); bound && (b.RoomCode != code || b.UserID != req.UserID) {
		return internal.ErrAlreadyBoundElsewhere
	}

	return m.store.WithRoom(code, func(room *internal.Room) error {
		_, returning := room.Players[req.UserID]
		if !returning && room.GetPlayerCount() >= room.MaxPlayers {
			return internal.ErrRoomFull
		}

		ctx, cancel := m.opCtx(ctx)
		defer cancel()
		if err := m.games.AddPlayer(ctx, room.GameID, req.UserID, req.Name); err != nil {
			return persistErr("add player", err)
		}

		if err := m.registry.Bind(connID, code, req.UserID); err != nil {
			return err
		}
		previous, reconnected, err := room.AddPlayer(req.UserID, req.Name, connID)
		if err != nil {
			m.registry.Unbind(connID)
			return err
		}
		if reconnected && previous != connID && previous != room.HostConnID {
			m.registry.Unbind(previous)
		}

		log.Info().
			Str("room", code).
			Str("conn", connID).
			Str("user", req.UserID).
			Bool("reconnected", reconnected).
			Int("players", room.GetPlayerCount()).
			Msg("[JoinRoom] player joined")

		roster := room.Roster()
		m.broadcast(room, internal.EventPlayerJoined, internal.PlayerJoinedData{
			UserID:      req.UserID,
			Name:        room.Players[req.UserID].Name,
			Players:     roster,
			PlayerCount: len(roster),
		})
		m.sendTo(connID, internal.EventRoomJoined, internal.RoomJoinedData{
			Code:         code,
			GameID:       room.GameID,
			Phase:        room.Phase,
			TotalRounds:  room.TotalRounds,
			Players:      roster,
			CurrentRound: room.CurrentRound,
			RoundActive:  room.RoundActive,
			Reconnected:  reconnected,
		})
		return nil
	})
}

// Disconnect releases everything a closed connection held. Losing the host
// connection deletes the room; losing the last player does too.
func (m *Manager) Disconnect(connID string) {
	b, ok := m.registry.Forget(connID)
	if !ok {
		return
	}

	err := m.store.WithRoom(b.RoomCode, func(room *internal.Room) error {
		if room.IsHost(connID) {
			log.Info().Str("room", room.Code).Str("conn", connID).Msg("[Disconnect] host left, closing room")
			m.broadcast(room, internal.EventHostDisconnected, internal.HostDisconnectedData{
				Code:    room.Code,
				Message: "The host left, this room is closed",
			})
			m.removeRoomLocked(room)
			return nil
		}

		player, ok := room.Players[b.UserID]
		if !ok || player.ConnID != connID {
			return nil
		}
		// The host user's entry falls back to the host connection, which
		// is still live while the room exists.
		if player.UserID == room.HostUserID {
			if hb, bound := m.registry.Lookup(room.HostConnID); bound && hb.RoomCode == room.Code {
				player.ConnID = room.HostConnID
				log.Info().
					Str("room", room.Code).
					Str("conn", connID).
					Msg("[Disconnect] host tab closed, entry back on host connection")
				return nil
			}
		}
		if empty := m.store.removePlayerLocked(room, b.UserID, func() { m.releaseRoomLocked(room) }); empty {
			return nil
		}

		log.Info().
			Str("room", room.Code).
			Str("user", b.UserID).
			Int("players", room.GetPlayerCount()).
			Msg("[Disconnect] player left")

		roster := room.Roster()
		m.broadcast(room, internal.EventPlayerLeft, internal.PlayerLeftData{
			UserID:      player.UserID,
			Name:        player.Name,
			Players:     roster,
			PlayerCount: len(roster),
		})
		return nil
	})
	if err != nil && !errors.Is(err, internal.ErrNotFound) {
		log.Error().Err(err).Str("conn", connID).Msg("[Disconnect] cleanup failed")
	}
}
