package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	query := `
		SELECT id, name, status, games_played, bingos, total_won, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Status,
		&user.GamesPlayed,
		&user.Bingos,
		&user.TotalWon,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetOrCreateUser upserts the player record. IDs come from the auth domain,
// so the row is keyed on the caller's id and only the name is refreshed.
func (s *UserStore) GetOrCreateUser(ctx context.Context, userID int, name string) (*models.User, error) {
	query := `
		INSERT INTO users (id, name, status, games_played, bingos, total_won, created_at, updated_at)
		VALUES ($1, $2, 'active', 0, 0, 0, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id, name, status, games_played, bingos, total_won, created_at, updated_at
	`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, userID, name).Scan(
		&user.ID,
		&user.Name,
		&user.Status,
		&user.GamesPlayed,
		&user.Bingos,
		&user.TotalWon,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	return user, nil
}

// ApplyGameResult bumps the lifetime counters after a game closes.
func (s *UserStore) ApplyGameResult(ctx context.Context, userID int, won bool, amount decimal.Decimal) error {
	query := `
		UPDATE users
		SET games_played = games_played + 1,
		    bingos = bingos + CASE WHEN $2 THEN 1 ELSE 0 END,
		    total_won = total_won + $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.db.Exec(ctx, query, userID, won, amount)
	if err != nil {
		return fmt.Errorf("failed to apply game result: %w", err)
	}

	return nil
}
