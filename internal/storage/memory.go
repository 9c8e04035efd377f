package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/scythe504/winenight-backend/internal"
)

type memoryGame struct {
	game    internal.Game
	players []internal.GamePlayer
	rounds  []internal.Round
	// guesses per round number, in submission order.
	guesses map[int][]internal.Guess
}

// MemoryRepo keeps games in process memory. It backs local development and
// tests, and enforces the same transitions as PostgresRepo.
type MemoryRepo struct {
	mu      sync.Mutex
	games   map[string]*memoryGame
	joinSeq int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{games: make(map[string]*memoryGame)}
}

func (r *MemoryRepo) CreateGame(ctx context.Context, hostUserID string, rounds []internal.RoundInput) (internal.Game, error) {
	if hostUserID == "" || len(rounds) == 0 {
		return internal.Game{}, fmt.Errorf("%w: a game needs a host and at least one round", internal.ErrBadRequest)
	}

	g := &memoryGame{
		game: internal.Game{
			ID:          uuid.NewString(),
			HostUserID:  hostUserID,
			Status:      internal.PhaseWaiting,
			TotalRounds: len(rounds),
		},
		guesses: make(map[int][]internal.Guess),
	}
	for i, in := range rounds {
		g.rounds = append(g.rounds, internal.Round{
			GameID:   g.game.ID,
			Number:   i + 1,
			Status:   internal.RoundCreated,
			Answer:   cloneAnswer(in.Answer),
			PhotoURL: in.PhotoURL,
		})
	}

	r.mu.Lock()
	r.games[g.game.ID] = g
	r.mu.Unlock()
	return g.game, nil
}

func (r *MemoryRepo) GetGame(ctx context.Context, gameID string) (internal.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return internal.Game{}, err
	}
	game := g.game
	game.Players = slices.Clone(g.players)
	return game, nil
}

func (r *MemoryRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		if g.game.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) AssignCode(ctx context.Context, gameID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return err
	}
	for id, other := range r.games {
		if id != gameID && other.game.Code == code {
			return fmt.Errorf("%w: %s", internal.ErrDuplicateCode, code)
		}
	}
	g.game.Code = code
	return nil
}

func (r *MemoryRepo) AddPlayer(ctx context.Context, gameID, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return err
	}
	for i := range g.players {
		if g.players[i].UserID == userID {
			g.players[i].Name = name
			return nil
		}
	}
	r.joinSeq++
	g.players = append(g.players, internal.GamePlayer{UserID: userID, Name: name, JoinOrder: r.joinSeq})
	return nil
}

func (r *MemoryRepo) RoundsReady(ctx context.Context, gameID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return false, err
	}
	if len(g.rounds) == 0 {
		return false, nil
	}
	for _, round := range g.rounds {
		if round.Answer == nil || !round.Answer.Complete() {
			return false, nil
		}
	}
	return true, nil
}

func (r *MemoryRepo) StartGame(ctx context.Context, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return err
	}
	if g.game.Status != internal.PhaseWaiting {
		return fmt.Errorf("%w: game %s is %s", internal.ErrInvalidState, gameID, g.game.Status)
	}
	g.game.Status = internal.PhasePlaying
	return nil
}

func (r *MemoryRepo) GetRound(ctx context.Context, gameID string, number int) (internal.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, err := r.round(gameID, number)
	if err != nil {
		return internal.Round{}, err
	}
	out := *round
	out.Answer = cloneAnswer(round.Answer)
	return out, nil
}

func (r *MemoryRepo) SaveAnswer(ctx context.Context, gameID string, number int, answer internal.AnswerParameters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, err := r.round(gameID, number)
	if err != nil {
		return err
	}
	if round.Status != internal.RoundCreated {
		return fmt.Errorf("%w: round %d is %s", internal.ErrInvalidState, number, round.Status)
	}
	round.Answer = cloneAnswer(&answer)
	return nil
}

func (r *MemoryRepo) ActivateRound(ctx context.Context, gameID string, number int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return err
	}
	round, err := r.round(gameID, number)
	if err != nil {
		return err
	}
	if g.game.Status != internal.PhasePlaying || !round.Status.CanTransition(internal.RoundActive) {
		return fmt.Errorf("%w: cannot activate round %d", internal.ErrInvalidState, number)
	}
	round.Status = internal.RoundActive
	g.game.CurrentRound = number
	return nil
}

func (r *MemoryRepo) CloseRound(ctx context.Context, gameID string, number int, finish bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return err
	}
	round, err := r.round(gameID, number)
	if err != nil {
		return err
	}
	if !round.Status.CanTransition(internal.RoundClosed) {
		return fmt.Errorf("%w: round %d is %s", internal.ErrInvalidState, number, round.Status)
	}
	round.Status = internal.RoundClosed
	if finish {
		g.game.Status = internal.PhaseFinished
	}
	return nil
}

func (r *MemoryRepo) CreateGuess(ctx context.Context, guess internal.Guess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(guess.GameID)
	if err != nil {
		return err
	}
	round, err := r.round(guess.GameID, guess.RoundNumber)
	if err != nil {
		return err
	}
	if round.Status != internal.RoundActive {
		return fmt.Errorf("%w: round %d is %s", internal.ErrInvalidState, guess.RoundNumber, round.Status)
	}
	for _, existing := range g.guesses[guess.RoundNumber] {
		if existing.UserID == guess.UserID {
			return internal.ErrAlreadyAnswered
		}
	}
	guess.Breakdown = maps.Clone(guess.Breakdown)
	g.guesses[guess.RoundNumber] = append(g.guesses[guess.RoundNumber], guess)
	return nil
}

func (r *MemoryRepo) ListGuesses(ctx context.Context, gameID string, number int) ([]internal.Guess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(g.guesses[number]), nil
}

func (r *MemoryRepo) AggregateScores(ctx context.Context, gameID string) ([]internal.PlayerScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := r.lookup(gameID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int)
	for _, guesses := range g.guesses {
		for _, guess := range guesses {
			totals[guess.UserID] += guess.Score
		}
	}
	scores := make([]internal.PlayerScore, 0, len(g.players))
	for _, p := range g.players {
		scores = append(scores, internal.PlayerScore{
			UserID:    p.UserID,
			Name:      p.Name,
			Total:     totals[p.UserID],
			JoinOrder: p.JoinOrder,
		})
	}
	return scores, nil
}

func (r *MemoryRepo) lookup(gameID string) (*memoryGame, error) {
	g, ok := r.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", internal.ErrNotFound, gameID)
	}
	return g, nil
}

func (r *MemoryRepo) round(gameID string, number int) (*internal.Round, error) {
	g, err := r.lookup(gameID)
	if err != nil {
		return nil, err
	}
	if number < 1 || number > len(g.rounds) {
		return nil, fmt.Errorf("%w: round %d of game %s", internal.ErrNotFound, number, gameID)
	}
	return &g.rounds[number-1], nil
}

func cloneAnswer(a *internal.AnswerParameters) *internal.AnswerParameters {
	if a == nil {
		return nil
	}
	out := *a
	out.GrapeVarieties = slices.Clone(a.GrapeVarieties)
	if a.OakAged != nil {
		oak := *a.OakAged
		out.OakAged = &oak
	}
	return &out
}
