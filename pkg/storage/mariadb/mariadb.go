package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/config"
)

// Connect membuka koneksi ke database MariaDB/MySQL dan memastikan server bisa di-ping.
// Semua kredensial diambil dari config (env / .env).
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, fmt.Errorf("open mariadb: %w", err)
	}
	db.SetMaxOpenConns(int(cfg.DBMaxConns))
	db.SetMaxIdleConns(int(cfg.DBMinConns))
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mariadb: %w", err)
	}

	logger.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to MariaDB")
	return db, nil
}
