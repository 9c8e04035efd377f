package game

import (
	"fmt"
	"slices"
	"sync"

	"github.com/scythe504/winenight-backend/internal"
)

// =============================================================================
// ROOM STORE
// =============================================================================

// Store owns the live rooms of one process. The map lock is always taken
// after a room lock, never before.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string]*internal.Room
	maxPlayers int
}

func NewStore(maxPlayers int) *Store {
	if maxPlayers <= 0 {
		maxPlayers = internal.MaxPlayersPerRoom
	}
	return &Store{
		rooms:      make(map[string]*internal.Room),
		maxPlayers: maxPlayers,
	}
}

// CreateRoom registers a new room with the host as its only player.
// totalRounds is copied from the game so round bookkeeping needs no store
// round trip.
func (s *Store) CreateRoom(code, gameID, hostConnID, hostUserID, hostName string, totalRounds int) (*internal.Room, error) {
	room := internal.NewRoom(code, gameID, hostConnID, hostUserID, hostName, s.maxPlayers)
	room.TotalRounds = totalRounds

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[code]; exists {
		return nil, fmt.Errorf("%w: %s", internal.ErrDuplicateCode, code)
	}
	s.rooms[code] = room
	return room, nil
}

// GetRoom returns the room without locking it. Callers that read or write
// room fields must go through WithRoom.
func (s *Store) GetRoom(code string) (*internal.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", internal.ErrNotFound, code)
	}
	return room, nil
}

func (s *Store) Has(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[code]
	return ok
}

// WithRoom runs fn while holding the room's lock, so operations on one room
// run one at a time in arrival order. A room deleted while the caller waited
// reports ErrNotFound.
func (s *Store) WithRoom(code string, fn func(room *internal.Room) error) error {
	room, err := s.GetRoom(code)
	if err != nil {
		return err
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	if room.Removed() {
		return fmt.Errorf("%w: room %s", internal.ErrNotFound, code)
	}
	return fn(room)
}

// AddPlayer adds or reattaches a player. See internal.Room.AddPlayer.
func (s *Store) AddPlayer(code, userID, name, connID string) (previousConnID string, reconnected bool, err error) {
	err = s.WithRoom(code, func(room *internal.Room) error {
		previousConnID, reconnected, err = room.AddPlayer(userID, name, connID)
		return err
	})
	return previousConnID, reconnected, err
}

// RemovePlayer drops userID and deletes the room once its roster is empty.
func (s *Store) RemovePlayer(code, userID string) (empty bool, err error) {
	err = s.WithRoom(code, func(room *internal.Room) error {
		empty = s.removePlayerLocked(room, userID, nil)
		return nil
	})
	return empty, err
}

// removePlayerLocked is RemovePlayer for callers already holding room.Mu.
// When the roster empties, release runs before the room leaves the store.
func (s *Store) removePlayerLocked(room *internal.Room, userID string, release func()) (empty bool) {
	if empty = room.RemovePlayer(userID); empty {
		if release != nil {
			release()
		}
		s.RemoveRoom(room.Code)
	}
	return empty
}

// RemoveRoom deletes the room. Safe to call with the room lock held.
func (s *Store) RemoveRoom(code string) {
	s.mu.Lock()
	room, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if ok {
		room.MarkRemoved()
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) Codes() []string {
	s.mu.RLock()
	codes := make([]string, 0, len(s.rooms))
	for code := range s.rooms {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	slices.Sort(codes)
	return codes
}
