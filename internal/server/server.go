package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
	"github.com/scythe504/winenight-backend/internal/config"
	"github.com/scythe504/winenight-backend/internal/game"
	"golang.org/x/sync/errgroup"
)

// GameCreator sets up new durable games ahead of their rooms.
type GameCreator interface {
	CreateGame(ctx context.Context, hostUserID string, rounds []internal.RoundInput) (internal.Game, error)
}

type Server struct {
	cfg      config.Config
	manager  *game.Manager
	games    GameCreator
	upgrader *websocket.Upgrader
}

func New(cfg config.Config, manager *game.Manager, games GameCreator) *Server {
	return &Server{
		cfg:      cfg,
		manager:  manager,
		games:    games,
		upgrader: game.NewUpgrader(cfg.Origins()),
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down the listener and
// the room manager.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.RegisterRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("[Server] listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("[Server] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.manager.Shutdown(shutdownCtx)
		return errors.Join(err, httpServer.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
