// Package database stores finished-game results in Postgres for audit.
// Like the Redis history sink it is optional: when DB is nil every store
// is a no-op. Live room state is never persisted; rooms are memory-only
// and do not survive a restart.
package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool, nil unless Connect has succeeded.
var DB *pgxpool.Pool

// PlayerResult is one player's final standing, amounts in cents.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Balance  int64  `json:"balance"`
	Profit   int64  `json:"profit"`
}

// Connect opens the pool and ensures the results table exists.
func Connect(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			room_code TEXT NOT NULL,
			total_rounds INT NOT NULL,
			standings JSONB NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return err
	}
	DB = pool
	return nil
}

// Close shuts down the pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// StoreGameResult inserts the final standings of a finished game. Failures
// are logged, never fatal, since audit output must not take a room down.
func StoreGameResult(roomCode string, totalRounds int, standings []PlayerResult) {
	if DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(standings)
	if err != nil {
		log.Printf("database: marshal standings for room %s: %v", roomCode, err)
		return
	}
	_, err = DB.Exec(ctx,
		`INSERT INTO game_results (room_code, total_rounds, standings) VALUES ($1, $2, $3)`,
		roomCode, totalRounds, data)
	if err != nil {
		log.Printf("database: store result for room %s: %v", roomCode, err)
	}
}
