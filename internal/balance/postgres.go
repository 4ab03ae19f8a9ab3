// internal/balance/postgres.go
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// PostgresService keeps balances in the player_balances table. A player seen for
// the first time starts from the opening balance.
type PostgresService struct {
	pool    *pgxpool.Pool
	opening int
}

func NewPostgresService(pool *pgxpool.Pool, opening int) *PostgresService {
	return &PostgresService{pool: pool, opening: opening}
}

// ReportProfit applies profit and appends a history row in one transaction.
// Balances never go below zero.
func (s *PostgresService) ReportProfit(ctx context.Context, nickname string, profit int) (int, error) {
	var balance int
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO player_balances (nickname, balance)
			VALUES ($1, GREATEST($2 + $3, 0))
			ON CONFLICT (nickname) DO UPDATE
			SET balance = GREATEST(player_balances.balance + $3, 0), updated_at = now()
			RETURNING balance
		`
		if e := tx.QueryRow(ctx, upsert, nickname, s.opening, profit).Scan(&balance); e != nil {
			return e
		}
		insHist := `INSERT INTO balance_history (nickname, delta, balance) VALUES ($1, $2, $3)`
		_, e := tx.Exec(ctx, insHist, nickname, profit, balance)
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("update balance for %s: %w: %w", nickname, models.ErrExternalServiceUnavailable, err)
	}
	return balance, nil
}

// Balance returns the stored balance of a player, or false if none is recorded.
func (s *PostgresService) Balance(ctx context.Context, nickname string) (int, bool, error) {
	var balance int
	err := s.pool.QueryRow(ctx, `SELECT balance FROM player_balances WHERE nickname = $1`, nickname).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read balance for %s: %w", nickname, err)
	}
	return balance, true, nil
}
