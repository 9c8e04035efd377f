package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal/config"
	"github.com/scythe504/winenight-backend/internal/game"
	"github.com/scythe504/winenight-backend/internal/logger"
	"github.com/scythe504/winenight-backend/internal/server"
	"github.com/scythe504/winenight-backend/internal/storage"
	"github.com/scythe504/winenight-backend/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "0.1.0"

// durableStore is what the server needs from a storage backend.
type durableStore interface {
	game.GameService
	server.GameCreator
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	cfg := config.Default()
	cobra.CheckErr(newCmd(&cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WINENIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "winenight",
		Short:   "Room and round coordination server for Wine Night quiz games.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), *cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: WINENIGHT_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: WINENIGHT_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "base url used in join links and qr codes (env: WINENIGHT_PUBLIC_URL)")
	fs.StringVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "comma separated list of allowed origins (env: WINENIGHT_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres connection string, in-memory storage when empty (env: WINENIGHT_DATABASE_URL)")
	fs.BoolVar(&cfg.Migrate, "migrate", cfg.Migrate, "apply database migrations on startup (env: WINENIGHT_MIGRATE)")
	fs.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "maximum players per room (env: WINENIGHT_MAX_PLAYERS)")
	fs.DurationVar(&cfg.RoundStartDelay, "round-start-delay", cfg.RoundStartDelay, "delay between game start and round one (env: WINENIGHT_ROUND_START_DELAY)")
	fs.DurationVar(&cfg.RoundDuration, "round-duration", cfg.RoundDuration, "close rounds automatically after this long, 0 disables (env: WINENIGHT_ROUND_DURATION)")
	fs.IntVar(&cfg.CodeAttempts, "code-attempts", cfg.CodeAttempts, "room code generation attempts (env: WINENIGHT_CODE_ATTEMPTS)")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "timeout for each storage call (env: WINENIGHT_STORE_TIMEOUT)")
	fs.Float64Var(&cfg.MessagesPerSecond, "messages-per-second", cfg.MessagesPerSecond, "inbound messages allowed per connection per second, 0 disables (env: WINENIGHT_MESSAGES_PER_SECOND)")
	fs.IntVar(&cfg.MessageBurst, "message-burst", cfg.MessageBurst, "inbound message burst per connection (env: WINENIGHT_MESSAGE_BURST)")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "outbound messages queued per connection before it is dropped (env: WINENIGHT_SEND_BUFFER)")
	fs.StringVar(&cfg.GrapeAliases, "grape-aliases", cfg.GrapeAliases, "csv file of grape aliases, built-in list when empty (env: WINENIGHT_GRAPE_ALIASES)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (env: WINENIGHT_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format, console or json (env: WINENIGHT_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("winenight v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	aliases, err := utils.LoadGrapeAliases(cfg.GrapeAliases)
	if err != nil {
		return err
	}

	manager := game.NewManager(store, game.Options{
		MaxPlayers:        cfg.MaxPlayers,
		RoundStartDelay:   cfg.RoundStartDelay,
		RoundDuration:     cfg.RoundDuration,
		CodeAttempts:      cfg.CodeAttempts,
		StoreTimeout:      cfg.StoreTimeout,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		SendBuffer:        cfg.SendBuffer,
		Scorer:            game.NewScorer(aliases),
	})

	log.Info().
		Str("addr", cfg.Address()).
		Bool("postgres", cfg.DatabaseURL != "").
		Int("grape_aliases", len(aliases)).
		Msg("[run] starting wine night server")

	return server.New(cfg, manager, store).Run(ctx)
}

func openStore(ctx context.Context, cfg config.Config) (durableStore, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("[openStore] no database url, games are kept in memory")
		return storage.NewMemoryRepo(), func() {}, nil
	}

	if cfg.Migrate {
		if err := storage.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}

	repo, err := storage.NewPostgresRepo(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return repo, repo.Close, nil
}
