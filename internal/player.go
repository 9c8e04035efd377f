package internal

import "time"

// Player is one roster entry. ConnID is the connection currently delivering
// this user's events.
type Player struct {
	UserID   string
	Name     string
	ConnID   string
	JoinedAt time.Time
}

type PlayerSnapshot struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
	Score  int    `json:"score"`
}

func CreatePlayerSnapshot(p *Player, isHost bool, score int) PlayerSnapshot {
	return PlayerSnapshot{
		UserID: p.UserID,
		Name:   p.Name,
		IsHost: isHost,
		Score:  score,
	}
}
