package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/scythe504/winenight-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(0)

	room, err := s.CreateRoom("WN-123456", "g1", "conn-host", "u1", "Alice", 3)
	require.NoError(t, err)
	assert.Equal(t, internal.PhaseWaiting, room.Phase)
	assert.Equal(t, internal.MaxPlayersPerRoom, room.MaxPlayers)
	assert.Equal(t, 3, room.TotalRounds)

	_, err = s.CreateRoom("WN-123456", "g2", "conn-other", "u9", "Zed", 1)
	assert.ErrorIs(t, err, internal.ErrDuplicateCode)

	got, err := s.GetRoom("WN-123456")
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = s.GetRoom("WN-000000")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"WN-123456"}, s.Codes())
}

func TestStore_AddPlayer(t *testing.T) {
	s := NewStore(3)
	_, err := s.CreateRoom("WN-000001", "g1", "c1", "u1", "Alice", 1)
	require.NoError(t, err)

	_, reconnected, err := s.AddPlayer("WN-000001", "u2", "Bob", "c2")
	require.NoError(t, err)
	assert.False(t, reconnected)

	prev, reconnected, err := s.AddPlayer("WN-000001", "u2", "Bob", "c2b")
	require.NoError(t, err)
	assert.True(t, reconnected)
	assert.Equal(t, "c2", prev)

	_, _, err = s.AddPlayer("WN-000001", "u3", "Cleo", "c3")
	require.NoError(t, err)

	_, _, err = s.AddPlayer("WN-000001", "u4", "Dan", "c4")
	assert.ErrorIs(t, err, internal.ErrRoomFull)

	_, _, err = s.AddPlayer("WN-999999", "u4", "Dan", "c4")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	room, err := s.GetRoom("WN-000001")
	require.NoError(t, err)
	want := []internal.PlayerSnapshot{
		{UserID: "u1", Name: "Alice", IsHost: true},
		{UserID: "u2", Name: "Bob"},
		{UserID: "u3", Name: "Cleo"},
	}
	if diff := cmp.Diff(want, room.Roster()); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "c2b", room.Players["u2"].ConnID)
}

func TestStore_RemovePlayerDeletesEmptyRoom(t *testing.T) {
	s := NewStore(0)
	_, err := s.CreateRoom("WN-000001", "g1", "c1", "u1", "Alice", 1)
	require.NoError(t, err)
	_, _, err = s.AddPlayer("WN-000001", "u2", "Bob", "c2")
	require.NoError(t, err)

	empty, err := s.RemovePlayer("WN-000001", "u2")
	require.NoError(t, err)
	assert.False(t, empty)

	empty, err = s.RemovePlayer("WN-000001", "u1")
	require.NoError(t, err)
	assert.True(t, empty)

	_, err = s.GetRoom("WN-000001")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func TestStore_RemovePlayerLockedReleasesBeforeDelete(t *testing.T) {
	s := NewStore(0)
	_, err := s.CreateRoom("WN-000001", "g1", "c1", "u1", "Alice", 1)
	require.NoError(t, err)

	released := false
	require.NoError(t, s.WithRoom("WN-000001", func(room *internal.Room) error {
		assert.False(t, s.removePlayerLocked(room, "u9", func() { released = true }))
		assert.True(t, s.removePlayerLocked(room, "u1", func() {
			released = true
			assert.True(t, s.Has("WN-000001"), "room left the store before release")
		}))
		assert.True(t, room.Removed())
		return nil
	}))
	assert.True(t, released)
	assert.Zero(t, s.Len())
}

func TestStore_WithRoomSeesRemoval(t *testing.T) {
	s := NewStore(0)
	_, err := s.CreateRoom("WN-000001", "g1", "c1", "u1", "Alice", 1)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.WithRoom("WN-000001", func(room *internal.Room) error {
			close(entered)
			<-release
			s.RemoveRoom(room.Code)
			return nil
		})
	}()

	<-entered
	result := make(chan error, 1)
	go func() {
		result <- s.WithRoom("WN-000001", func(room *internal.Room) error {
			t.Error("ran on a removed room")
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.ErrorIs(t, <-result, internal.ErrNotFound)
}

func TestStore_WithRoomSerializes(t *testing.T) {
	s := NewStore(0)
	_, err := s.CreateRoom("WN-000001", "g1", "c1", "u1", "Alice", 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithRoom("WN-000001", func(room *internal.Room) error {
				room.CurrentRound++
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.WithRoom("WN-000001", func(room *internal.Room) error {
		assert.Equal(t, 50, room.CurrentRound)
		return nil
	}))
}
