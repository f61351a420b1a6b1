package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/raptaro/meditrakk-sub001/config"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
	"github.com/raptaro/meditrakk-sub001/pkg/storage/mariadb"
	"github.com/raptaro/meditrakk-sub001/pkg/storage/postgres"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "meditrakk",
		Short:         "Walk-in patient queue for the clinic front desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(boardCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// migrator is implemented by the SQL-backed stores.
type migrator interface {
	Migrate(ctx context.Context) error
}

// openStore builds the store selected by QUEUE_STORE. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (services.Store, func(), error) {
	switch cfg.QueueStore {
	case config.StoreMySQL:
		db, err := mariadb.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return services.NewMySQLStore(db), func() { db.Close() }, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("connected to PostgreSQL")
		return services.NewPostgresStore(pool), pool.Close, nil
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory queue store, entries are lost on restart")
		return services.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue store %q", cfg.QueueStore)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
