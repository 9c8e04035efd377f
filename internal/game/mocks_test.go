package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scythe504/winenight-backend/internal"
	"github.com/scythe504/winenight-backend/internal/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- GameService ---

type MockGameService struct {
	mock.Mock
}

func (m *MockGameService) GetGame(ctx context.Context, gameID string) (internal.Game, error) {
	args := m.Called(ctx, gameID)
	return args.Get(0).(internal.Game), args.Error(1)
}

func (m *MockGameService) CodeInUse(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameService) AssignCode(ctx context.Context, gameID, code string) error {
	return m.Called(ctx, gameID, code).Error(0)
}

func (m *MockGameService) AddPlayer(ctx context.Context, gameID, userID, name string) error {
	return m.Called(ctx, gameID, userID, name).Error(0)
}

func (m *MockGameService) RoundsReady(ctx context.Context, gameID string) (bool, error) {
	args := m.Called(ctx, gameID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameService) StartGame(ctx context.Context, gameID string) error {
	return m.Called(ctx, gameID).Error(0)
}

func (m *MockGameService) GetRound(ctx context.Context, gameID string, number int) (internal.Round, error) {
	args := m.Called(ctx, gameID, number)
	return args.Get(0).(internal.Round), args.Error(1)
}

func (m *MockGameService) SaveAnswer(ctx context.Context, gameID string, number int, answer internal.AnswerParameters) error {
	return m.Called(ctx, gameID, number, answer).Error(0)
}

func (m *MockGameService) ActivateRound(ctx context.Context, gameID string, number int) error {
	return m.Called(ctx, gameID, number).Error(0)
}

func (m *MockGameService) CloseRound(ctx context.Context, gameID string, number int, finish bool) error {
	return m.Called(ctx, gameID, number, finish).Error(0)
}

func (m *MockGameService) CreateGuess(ctx context.Context, guess internal.Guess) error {
	return m.Called(ctx, guess).Error(0)
}

func (m *MockGameService) ListGuesses(ctx context.Context, gameID string, number int) ([]internal.Guess, error) {
	args := m.Called(ctx, gameID, number)
	return args.Get(0).([]internal.Guess), args.Error(1)
}

func (m *MockGameService) AggregateScores(ctx context.Context, gameID string) ([]internal.PlayerScore, error) {
	args := m.Called(ctx, gameID)
	return args.Get(0).([]internal.PlayerScore), args.Error(1)
}

// --- Socket ---

type fakeSocket struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
	reason  string
	failOn  int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan []byte, 16)}
}

func (s *fakeSocket) Read() ([]byte, error) {
	data, ok := <-s.inbound
	if !ok {
		return nil, errors.New("socket closed")
	}
	return data, nil
}

func (s *fakeSocket) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn > 0 && len(s.written)+1 >= s.failOn {
		return errors.New("broken pipe")
	}
	s.written = append(s.written, data)
	return nil
}

func (s *fakeSocket) Ping() error { return nil }

func (s *fakeSocket) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.reason = reason
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

// --- helpers ---

func boolPtr(b bool) *bool { return &b }

// redBlend is a complete round answer used across tests.
func redBlend() internal.AnswerParameters {
	return internal.AnswerParameters{
		GrapeVarieties: []string{"Cabernet Sauvignon", "Merlot"},
		Sweetness:      "DRY",
		Vintage:        2018,
		Country:        "France",
		AlcoholContent: 13.5,
		OakAged:        boolPtr(true),
		Color:          "RED",
		Composition:    "BLEND",
	}
}

func newTestManager(t *testing.T, games GameService, opts Options) *Manager {
	t.Helper()
	m := NewManager(games, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

type fixture struct {
	m    *Manager
	repo *storage.MemoryRepo
	game internal.Game
}

// newFixture builds a manager over an in-memory repo holding one waiting
// game hosted by u1 whose rounds all have the redBlend answer.
func newFixture(t *testing.T, rounds int, opts Options) *fixture {
	t.Helper()
	repo := storage.NewMemoryRepo()
	inputs := make([]internal.RoundInput, rounds)
	for i := range inputs {
		answer := redBlend()
		inputs[i] = internal.RoundInput{Answer: &answer, PhotoURL: "https://img.example/bottle.jpg"}
	}
	g, err := repo.CreateGame(context.Background(), "u1", inputs)
	require.NoError(t, err)

	if opts.RoundStartDelay == 0 {
		opts.RoundStartDelay = time.Hour
	}
	return &fixture{m: newTestManager(t, repo, opts), repo: repo, game: g}
}

func (f *fixture) connect() *Client {
	return f.m.Attach(newFakeSocket())
}

// openRoom creates room code as host u1/Alice and consumes room_created.
func (f *fixture) openRoom(t *testing.T, code string) *Client {
	t.Helper()
	host := f.connect()
	require.NoError(t, f.m.CreateRoom(context.Background(), host.ID, internal.CreateRoomRequest{
		GameID: f.game.ID, Code: code, UserID: "u1", Name: "Alice",
	}))
	expect[internal.RoomCreatedData](t, host, internal.EventRoomCreated)
	return host
}

// join adds a player and consumes the player_joined/room_joined pair on the
// joiner.
func (f *fixture) join(t *testing.T, code, userID, name string) *Client {
	t.Helper()
	c := f.connect()
	require.NoError(t, f.m.JoinRoom(context.Background(), c.ID, internal.JoinRoomRequest{
		Code: code, UserID: userID, Name: name,
	}))
	expect[internal.PlayerJoinedData](t, c, internal.EventPlayerJoined)
	expect[internal.RoomJoinedData](t, c, internal.EventRoomJoined)
	return c
}

func recv(t *testing.T, c *Client) internal.Message[json.RawMessage] {
	t.Helper()
	var msg internal.Message[json.RawMessage]
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "client %s was closed", c.ID)
		require.NoError(t, json.Unmarshal(data, &msg))
	case <-time.After(2 * time.Second):
		t.Fatalf("no message for client %s", c.ID)
	}
	return msg
}

func expect[T any](t *testing.T, c *Client, msgType string) T {
	t.Helper()
	msg := recv(t, c)
	require.Equal(t, msgType, msg.Type, "payload: %s", msg.Data)
	var out T
	require.NoError(t, json.Unmarshal(msg.Data, &out))
	return out
}

func expectError(t *testing.T, c *Client, code string) internal.ErrorData {
	t.Helper()
	data := expect[internal.ErrorData](t, c, internal.EventError)
	require.Equal(t, code, data.Code, "message: %s", data.Message)
	return data
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message for client %s: %s", c.ID, data)
	default:
	}
}

// roomState reads room fields under the room lock.
func roomState(t *testing.T, m *Manager, code string) (phase internal.GamePhase, current int, active bool) {
	t.Helper()
	require.NoError(t, m.store.WithRoom(code, func(room *internal.Room) error {
		phase, current, active = room.Phase, room.CurrentRound, room.RoundActive
		return nil
	}))
	return phase, current, active
}
