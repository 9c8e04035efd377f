package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

type Options struct {
	MaxPlayers      int
	RoundStartDelay time.Duration
	// RoundDuration closes an active round automatically. Zero disables it.
	RoundDuration time.Duration
	CodeAttempts  int
	StoreTimeout  time.Duration

	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int

	Scorer        *Scorer
	CodeGenerator func() (string, error)
}

func (o Options) withDefaults() Options {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = internal.MaxPlayersPerRoom
	}
	if o.RoundStartDelay < 0 {
		o.RoundStartDelay = 0
	}
	if o.CodeAttempts <= 0 {
		o.CodeAttempts = internal.MaxRoomCodeAttempts
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 1
	}
	if o.Scorer == nil {
		o.Scorer = NewScorer(nil)
	}
	if o.CodeGenerator == nil {
		o.CodeGenerator = GenerateRoomCode
	}
	return o
}

// Manager coordinates rooms: it owns the room store, the connection registry
// and the scheduled tasks, and talks to the durable GameService.
type Manager struct {
	store     *Store
	registry  *Registry
	scheduler *Scheduler
	games     GameService
	scorer    *Scorer
	opts      Options

	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewManager(games GameService, opts Options) *Manager {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     NewStore(opts.MaxPlayers),
		registry:  NewRegistry(),
		scheduler: NewScheduler(),
		games:     games,
		scorer:    opts.Scorer,
		opts:      opts,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

func (m *Manager) Store() *Store         { return m.store }
func (m *Manager) Registry() *Registry   { return m.registry }
func (m *Manager) Scheduler() *Scheduler { return m.scheduler }

// Summary returns the public view of a live room.
func (m *Manager) Summary(code string) (internal.RoomSummary, error) {
	var summary internal.RoomSummary
	err := m.store.WithRoom(NormalizeRoomCode(code), func(room *internal.Room) error {
		summary = internal.RoomSummary{
			Code:         room.Code,
			GameID:       room.GameID,
			Phase:        room.Phase,
			PlayerCount:  room.GetPlayerCount(),
			MaxPlayers:   room.MaxPlayers,
			TotalRounds:  room.TotalRounds,
			CurrentRound: room.CurrentRound,
		}
		return nil
	})
	return summary, err
}

// Shutdown cancels pending room tasks and closes every connection.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.scheduler.Stop()
		close(done)
	}()

	for _, c := range m.registry.Clients() {
		c.Close("server shutting down")
	}

	select {
	case <-done:
		log.Info().Int("rooms", m.store.Len()).Msg("[Shutdown] room manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// opCtx bounds one durable call.
func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opts.StoreTimeout)
}

var domainErrors = []error{
	internal.ErrNotFound,
	internal.ErrNotAuthorized,
	internal.ErrRoomFull,
	internal.ErrAlreadyAnswered,
	internal.ErrInvalidState,
	internal.ErrPersistenceFailure,
	internal.ErrDuplicateCode,
	internal.ErrBadRequest,
}

// persistErr keeps domain errors from the GameService as they are and turns
// everything else into ErrPersistenceFailure.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", internal.ErrPersistenceFailure, op, err)
}

// binding resolves the room a connection is in.
func (m *Manager) binding(connID string) (Binding, error) {
	b, ok := m.registry.Lookup(connID)
	if !ok {
		return Binding{}, internal.WithMessage(internal.ErrNotFound, "Join a room first")
	}
	return b, nil
}

// removeRoomLocked deletes the room, its tasks and every binding into it.
// The caller holds room.Mu.
func (m *Manager) removeRoomLocked(room *internal.Room) {
	m.releaseRoomLocked(room)
	m.store.RemoveRoom(room.Code)
}

// releaseRoomLocked cancels the room's tasks and unbinds its connections
// while the room is still in the store.
func (m *Manager) releaseRoomLocked(room *internal.Room) {
	tasks := m.scheduler.CancelRoom(room.Code)
	conns := m.registry.UnbindRoom(room.Code)
	log.Info().
		Str("room", room.Code).
		Int("tasks_cancelled", tasks).
		Int("unbound", len(conns)).
		Msg("[removeRoom] room deleted")
}
