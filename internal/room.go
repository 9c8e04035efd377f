package internal

import (
	"slices"
	"time"
)

func NewRoom(code, gameID, hostConnID, hostUserID, hostName string, maxPlayers int) *Room {
	if maxPlayers <= 0 {
		maxPlayers = MaxPlayersPerRoom
	}
	r := &Room{
		Code:        code,
		GameID:      gameID,
		HostConnID:  hostConnID,
		HostUserID:  hostUserID,
		Players:     make(map[string]*Player),
		PlayerOrder: make([]string, 0, 8),
		MaxPlayers:  maxPlayers,
		Phase:       PhaseWaiting,
		Scores:      make(map[string]int),
		Answered:    make(map[string]bool),
		CreatedAt:   time.Now(),
	}
	r.AddPlayer(hostUserID, hostName, hostConnID)
	return r
}

// Methods (Room Struct). Callers hold r.Mu.

// AddPlayer inserts or reattaches a player. An existing userID keeps its
// roster position and only has its connection replaced; the previous
// connection id is returned so the caller can drop its binding.
func (r *Room) AddPlayer(userID, name, connID string) (previousConnID string, reconnected bool, err error) {
	if p, ok := r.Players[userID]; ok {
		previousConnID = p.ConnID
		p.ConnID = connID
		if name != "" {
			p.Name = name
		}
		return previousConnID, true, nil
	}
	if len(r.Players) >= r.MaxPlayers {
		return "", false, ErrRoomFull
	}
	r.Players[userID] = &Player{
		UserID:   userID,
		Name:     name,
		ConnID:   connID,
		JoinedAt: time.Now(),
	}
	r.PlayerOrder = append(r.PlayerOrder, userID)
	return "", false, nil
}

// RemovePlayer drops userID from the roster and reports whether the room is
// now empty.
func (r *Room) RemovePlayer(userID string) (empty bool) {
	if _, ok := r.Players[userID]; ok {
		delete(r.Players, userID)
		r.PlayerOrder = slices.DeleteFunc(r.PlayerOrder, func(id string) bool {
			return id == userID
		})
	}
	return len(r.Players) == 0
}

func (r *Room) GetPlayerCount() int {
	return len(r.Players)
}

func (r *Room) PlayerByConn(connID string) *Player {
	for _, id := range r.PlayerOrder {
		if p := r.Players[id]; p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) IsHost(connID string) bool {
	return connID != "" && r.HostConnID == connID
}

// Roster returns the players in join order.
func (r *Room) Roster() []PlayerSnapshot {
	out := make([]PlayerSnapshot, 0, len(r.PlayerOrder))
	for _, id := range r.PlayerOrder {
		p := r.Players[id]
		out = append(out, CreatePlayerSnapshot(p, p.UserID == r.HostUserID, r.Scores[id]))
	}
	return out
}

// Recipients lists every connection that receives room broadcasts: roster
// connections in join order, then the host connection if its user entry has
// been reattached elsewhere.
func (r *Room) Recipients() []string {
	out := make([]string, 0, len(r.PlayerOrder)+1)
	seenHost := false
	for _, id := range r.PlayerOrder {
		connID := r.Players[id].ConnID
		if connID == r.HostConnID {
			seenHost = true
		}
		out = append(out, connID)
	}
	if !seenHost && r.HostConnID != "" {
		out = append(out, r.HostConnID)
	}
	return out
}

// ResetRoundState clears per-round bookkeeping when a new round activates.
func (r *Room) ResetRoundState(roundNumber int, truth *AnswerParameters) {
	r.CurrentRound = roundNumber
	r.RoundActive = true
	r.Truth = truth
	r.Answered = make(map[string]bool)
}

// EndRound marks the active round as closed and adds its points to the
// cumulative scores.
func (r *Room) EndRound(points map[string]int) {
	for userID, p := range points {
		r.Scores[userID] += p
	}
	r.RoundActive = false
	r.Truth = nil
}

func (r *Room) IsLastRound() bool {
	return r.TotalRounds > 0 && r.CurrentRound >= r.TotalRounds
}

func (r *Room) MarkRemoved() {
	r.removed.Store(true)
}

func (r *Room) Removed() bool {
	return r.removed.Load()
}
