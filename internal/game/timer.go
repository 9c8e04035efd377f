package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// TIMER MANAGEMENT
// =============================================================================

const (
	taskStart = "start"
	taskClose = "close"
)

func taskKey(roomCode, name string) string {
	return roomCode + "/" + name
}

type scheduledTask struct {
	seq    uint64
	cancel context.CancelFunc
}

// Scheduler runs delayed room tasks keyed "<code>/<name>". Scheduling a key
// that is already pending replaces it.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]scheduledTask
	seq    uint64
	wg     sync.WaitGroup
	base   context.Context
	stop   context.CancelFunc
	closed bool
}

func NewScheduler() *Scheduler {
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		tasks: make(map[string]scheduledTask),
		base:  base,
		stop:  stop,
	}
}

// Schedule runs fn after delay unless the key is cancelled first. fn gets a
// context that is only cancelled by Stop.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithTimeout(s.base, delay)
	s.tasks[key] = scheduledTask{seq: seq, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		cancel()

		if ctx.Err() != context.DeadlineExceeded {
			log.Debug().Str("task", key).Msg("[Scheduler] task cancelled")
			return
		}

		s.mu.Lock()
		current, ok := s.tasks[key]
		if !ok || current.seq != seq {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()

		log.Debug().Str("task", key).Dur("delay", delay).Msg("[Scheduler] task fired")
		fn(s.base)
	}()
}

// Cancel stops a pending task and reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if ok {
		t.cancel()
		delete(s.tasks, key)
	}
	return ok
}

// CancelRoom stops every pending task of a room.
func (s *Scheduler) CancelRoom(roomCode string) int {
	prefix := roomCode + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, t := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			t.cancel()
			delete(s.tasks, key)
			n++
		}
	}
	return n
}

func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop cancels everything and waits for running tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.tasks = make(map[string]scheduledTask)
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}
