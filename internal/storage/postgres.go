package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scythe504/winenight-backend/internal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (pg *PostgresRepo) Close() {
	pg.pool.Close()
}

// classify maps driver errors onto the domain error set. Context errors are
// passed through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", internal.ErrNotFound, op)
	case errors.As(err, &pgErr) && (pgErr.Code == pgInvalidText || pgErr.Code == pgForeignKeyViolation):
		return fmt.Errorf("%w: %s: %s", internal.ErrNotFound, op, pgErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", internal.ErrPersistenceFailure, op, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (pg *PostgresRepo) CreateGame(ctx context.Context, hostUserID string, rounds []internal.RoundInput) (internal.Game, error) {
	if hostUserID == "" || len(rounds) == 0 {
		return internal.Game{}, fmt.Errorf("%w: a game needs a host and at least one round", internal.ErrBadRequest)
	}

	game := internal.Game{
		HostUserID:  hostUserID,
		Status:      internal.PhaseWaiting,
		TotalRounds: len(rounds),
	}
	err := pgx.BeginFunc(ctx, pg.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO games (host_user_id, total_rounds) VALUES ($1, $2) RETURNING id::text`,
			hostUserID, len(rounds))
		if err := row.Scan(&game.ID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, in := range rounds {
			answer, err := marshalAnswer(in.Answer)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO rounds (game_id, round_number, answer, photo_url) VALUES ($1, $2, $3, $4)`,
				game.ID, i+1, answer, in.PhotoURL)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return internal.Game{}, classify("create game", err)
	}
	return game, nil
}

func (pg *PostgresRepo) GetGame(ctx context.Context, gameID string) (internal.Game, error) {
	game := internal.Game{ID: gameID}
	var code *string
	row := pg.pool.QueryRow(ctx,
		`SELECT code, host_user_id, status, total_rounds, current_round FROM games WHERE id = $1`,
		gameID)
	if err := row.Scan(&code, &game.HostUserID, &game.Status, &game.TotalRounds, &game.CurrentRound); err != nil {
		return internal.Game{}, classify("get game", err)
	}
	if code != nil {
		game.Code = *code
	}

	rows, err := pg.pool.Query(ctx,
		`SELECT user_id, name, join_seq FROM game_players WHERE game_id = $1 ORDER BY join_seq`,
		gameID)
	if err != nil {
		return internal.Game{}, classify("list players", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p internal.GamePlayer
		if err := rows.Scan(&p.UserID, &p.Name, &p.JoinOrder); err != nil {
			return internal.Game{}, classify("scan player", err)
		}
		game.Players = append(game.Players, p)
	}
	if err := rows.Err(); err != nil {
		return internal.Game{}, classify("list players", err)
	}
	return game, nil
}

func (pg *PostgresRepo) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	row := pg.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE code = $1)`, code)
	if err := row.Scan(&exists); err != nil {
		return false, classify("check code", err)
	}
	return exists, nil
}

func (pg *PostgresRepo) AssignCode(ctx context.Context, gameID, code string) error {
	tag, err := pg.pool.Exec(ctx, `UPDATE games SET code = $2 WHERE id = $1`, gameID, code)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", internal.ErrDuplicateCode, code)
		}
		return classify("assign code", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: game %s", internal.ErrNotFound, gameID)
	}
	return nil
}

func (pg *PostgresRepo) AddPlayer(ctx context.Context, gameID, userID, name string) error {
	_, err := pg.pool.Exec(ctx,
		`INSERT INTO game_players (game_id, user_id, name) VALUES ($1, $2, $3)
		 ON CONFLICT (game_id, user_id) DO UPDATE SET name = EXCLUDED.name`,
		gameID, userID, name)
	return classify("add player", err)
}

// RoundsReady reports whether every round carries a complete answer.
func (pg *PostgresRepo) RoundsReady(ctx context.Context, gameID string) (bool, error) {
	rows, err := pg.pool.Query(ctx,
		`SELECT answer FROM rounds WHERE game_id = $1 ORDER BY round_number`, gameID)
	if err != nil {
		return false, classify("check rounds", err)
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		total++
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return false, classify("scan round", err)
		}
		if data == nil {
			return false, nil
		}
		var answer internal.AnswerParameters
		if err := json.Unmarshal(data, &answer); err != nil {
			return false, classify("decode answer", err)
		}
		if !answer.Complete() {
			return false, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, classify("check rounds", err)
	}
	return total > 0, nil
}

func (pg *PostgresRepo) StartGame(ctx context.Context, gameID string) error {
	tag, err := pg.pool.Exec(ctx,
		`UPDATE games SET status = 'PLAYING' WHERE id = $1 AND status = 'WAITING'`, gameID)
	if err != nil {
		return classify("start game", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: game %s is not waiting", internal.ErrInvalidState, gameID)
	}
	return nil
}

func (pg *PostgresRepo) GetRound(ctx context.Context, gameID string, number int) (internal.Round, error) {
	round := internal.Round{GameID: gameID, Number: number}
	var answer []byte
	row := pg.pool.QueryRow(ctx,
		`SELECT status, answer, photo_url FROM rounds WHERE game_id = $1 AND round_number = $2`,
		gameID, number)
	if err := row.Scan(&round.Status, &answer, &round.PhotoURL); err != nil {
		return internal.Round{}, classify("get round", err)
	}
	if answer != nil {
		round.Answer = &internal.AnswerParameters{}
		if err := json.Unmarshal(answer, round.Answer); err != nil {
			return internal.Round{}, classify("decode answer", err)
		}
	}
	return round, nil
}

func (pg *PostgresRepo) SaveAnswer(ctx context.Context, gameID string, number int, answer internal.AnswerParameters) error {
	data, err := marshalAnswer(&answer)
	if err != nil {
		return classify("encode answer", err)
	}
	tag, err := pg.pool.Exec(ctx,
		`UPDATE rounds SET answer = $3 WHERE game_id = $1 AND round_number = $2 AND status = 'CREATED'`,
		gameID, number, data)
	if err != nil {
		return classify("save answer", err)
	}
	if tag.RowsAffected() == 0 {
		return pg.explainRound(ctx, gameID, number)
	}
	return nil
}

func (pg *PostgresRepo) ActivateRound(ctx context.Context, gameID string, number int) error {
	err := pgx.BeginFunc(ctx, pg.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE rounds SET status = 'ACTIVE' WHERE game_id = $1 AND round_number = $2 AND status = 'CREATED'`,
			gameID, number)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: round %d is not waiting to start", internal.ErrInvalidState, number)
		}
		tag, err = tx.Exec(ctx,
			`UPDATE games SET current_round = $2 WHERE id = $1 AND status = 'PLAYING'`,
			gameID, number)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: game %s is not playing", internal.ErrInvalidState, gameID)
		}
		return nil
	})
	if errors.Is(err, internal.ErrInvalidState) {
		return err
	}
	return classify("activate round", err)
}

func (pg *PostgresRepo) CloseRound(ctx context.Context, gameID string, number int, finish bool) error {
	err := pgx.BeginFunc(ctx, pg.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE rounds SET status = 'CLOSED' WHERE game_id = $1 AND round_number = $2 AND status = 'ACTIVE'`,
			gameID, number)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: round %d is not active", internal.ErrInvalidState, number)
		}
		if !finish {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE games SET status = 'FINISHED' WHERE id = $1`, gameID)
		return err
	})
	if errors.Is(err, internal.ErrInvalidState) {
		return err
	}
	return classify("close round", err)
}

func (pg *PostgresRepo) CreateGuess(ctx context.Context, guess internal.Guess) error {
	answer, err := json.Marshal(guess.Answer)
	if err != nil {
		return classify("encode guess", err)
	}
	breakdown, err := json.Marshal(guess.Breakdown)
	if err != nil {
		return classify("encode breakdown", err)
	}

	tag, err := pg.pool.Exec(ctx,
		`INSERT INTO guesses (game_id, round_number, user_id, name, answer, score, breakdown, submitted_at)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8
		 WHERE EXISTS (SELECT 1 FROM rounds WHERE game_id = $1 AND round_number = $2 AND status = 'ACTIVE')`,
		guess.GameID, guess.RoundNumber, guess.UserID, guess.Name, answer, guess.Score, breakdown, guess.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return internal.ErrAlreadyAnswered
		}
		return classify("create guess", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: round %d is not active", internal.ErrInvalidState, guess.RoundNumber)
	}
	return nil
}

func (pg *PostgresRepo) ListGuesses(ctx context.Context, gameID string, number int) ([]internal.Guess, error) {
	rows, err := pg.pool.Query(ctx,
		`SELECT user_id, name, answer, score, breakdown, submitted_at
		   FROM guesses WHERE game_id = $1 AND round_number = $2
		  ORDER BY submitted_at, user_id`,
		gameID, number)
	if err != nil {
		return nil, classify("list guesses", err)
	}
	defer rows.Close()

	var guesses []internal.Guess
	for rows.Next() {
		g := internal.Guess{GameID: gameID, RoundNumber: number}
		var answer, breakdown []byte
		if err := rows.Scan(&g.UserID, &g.Name, &answer, &g.Score, &breakdown, &g.SubmittedAt); err != nil {
			return nil, classify("scan guess", err)
		}
		if err := json.Unmarshal(answer, &g.Answer); err != nil {
			return nil, classify("decode guess", err)
		}
		if err := json.Unmarshal(breakdown, &g.Breakdown); err != nil {
			return nil, classify("decode breakdown", err)
		}
		guesses = append(guesses, g)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list guesses", err)
	}
	return guesses, nil
}

func (pg *PostgresRepo) AggregateScores(ctx context.Context, gameID string) ([]internal.PlayerScore, error) {
	rows, err := pg.pool.Query(ctx,
		`SELECT p.user_id, p.name, COALESCE(SUM(g.score), 0)::int, p.join_seq
		   FROM game_players p
		   LEFT JOIN guesses g ON g.game_id = p.game_id AND g.user_id = p.user_id
		  WHERE p.game_id = $1
		  GROUP BY p.user_id, p.name, p.join_seq
		  ORDER BY p.join_seq`,
		gameID)
	if err != nil {
		return nil, classify("aggregate scores", err)
	}
	defer rows.Close()

	var scores []internal.PlayerScore
	for rows.Next() {
		var s internal.PlayerScore
		if err := rows.Scan(&s.UserID, &s.Name, &s.Total, &s.JoinOrder); err != nil {
			return nil, classify("scan score", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("aggregate scores", err)
	}
	return scores, nil
}

// explainRound turns a conditional update that matched nothing into
// ErrNotFound or ErrInvalidState.
func (pg *PostgresRepo) explainRound(ctx context.Context, gameID string, number int) error {
	round, err := pg.GetRound(ctx, gameID, number)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: round %d is %s", internal.ErrInvalidState, number, round.Status)
}

func marshalAnswer(a *internal.AnswerParameters) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}
