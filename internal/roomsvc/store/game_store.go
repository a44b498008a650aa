package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) CreateGame(ctx context.Context, roomCode string, createdBy int, isPrivate bool, entryFee decimal.Decimal) (*models.Game, error) {
	query := `
		INSERT INTO games (room_code, status, entry_fee, tot_prize, created_by, is_private, created_at, updated_at)
		VALUES ($1, 'waiting', $2, 0, $3, $4, NOW(), NOW())
		RETURNING id, room_code, status, entry_fee, tot_prize, created_by, is_private,
		          winner_id, reason, drawn, created_at, started_at, finished_at, updated_at
	`

	game := &models.Game{}
	err := s.db.QueryRow(ctx, query, roomCode, entryFee, createdBy, isPrivate).Scan(
		&game.ID,
		&game.RoomCode,
		&game.Status,
		&game.EntryFee,
		&game.TotPrize,
		&game.CreatedBy,
		&game.IsPrivate,
		&game.WinnerID,
		&game.Reason,
		&game.Drawn,
		&game.CreatedAt,
		&game.StartedAt,
		&game.FinishedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return game, nil
}

func (s *GameStore) GetGameByID(ctx context.Context, gameID int) (*models.Game, error) {
	query := `
		SELECT id, room_code, status, entry_fee, tot_prize, created_by, is_private,
		       winner_id, reason, drawn, created_at, started_at, finished_at, updated_at
		FROM games
		WHERE id = $1
	`

	game := &models.Game{}
	err := s.db.QueryRow(ctx, query, gameID).Scan(
		&game.ID,
		&game.RoomCode,
		&game.Status,
		&game.EntryFee,
		&game.TotPrize,
		&game.CreatedBy,
		&game.IsPrivate,
		&game.WinnerID,
		&game.Reason,
		&game.Drawn,
		&game.CreatedAt,
		&game.StartedAt,
		&game.FinishedAt,
		&game.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Game not found
		}
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}

	return game, nil
}

// GetOpenGameByRoomCode finds the room's game that is still waiting or active.
// Finished games keep the room code for history, so the status filter matters.
func (s *GameStore) GetOpenGameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	query := `
		SELECT id, room_code, status, entry_fee, tot_prize, created_by, is_private,
		       winner_id, reason, drawn, created_at, started_at, finished_at, updated_at
		FROM games
		WHERE room_code = $1 AND status IN ('waiting', 'active')
		ORDER BY id DESC
		LIMIT 1
	`

	game := &models.Game{}
	err := s.db.QueryRow(ctx, query, roomCode).Scan(
		&game.ID,
		&game.RoomCode,
		&game.Status,
		&game.EntryFee,
		&game.TotPrize,
		&game.CreatedBy,
		&game.IsPrivate,
		&game.WinnerID,
		&game.Reason,
		&game.Drawn,
		&game.CreatedAt,
		&game.StartedAt,
		&game.FinishedAt,
		&game.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game by room code: %w", err)
	}

	return game, nil
}

func (s *GameStore) ListGamesByStatus(ctx context.Context, status string) ([]*models.Game, error) {
	query := `
		SELECT id, room_code, status, entry_fee, tot_prize, created_by, is_private,
		       winner_id, reason, drawn, created_at, started_at, finished_at, updated_at
		FROM games
		WHERE status = $1
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		var g models.Game
		err := rows.Scan(
			&g.ID,
			&g.RoomCode,
			&g.Status,
			&g.EntryFee,
			&g.TotPrize,
			&g.CreatedBy,
			&g.IsPrivate,
			&g.WinnerID,
			&g.Reason,
			&g.Drawn,
			&g.CreatedAt,
			&g.StartedAt,
			&g.FinishedAt,
			&g.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		games = append(games, &g)
	}

	return games, nil
}

// ActivateGame moves a waiting game to active and freezes the prize pool.
// RowsAffected guards against a double start racing through two brokers.
func (s *GameStore) ActivateGame(ctx context.Context, gameID int, totPrize decimal.Decimal, startedAt time.Time) error {
	query := `
		UPDATE games
		SET status = 'active', tot_prize = $2, started_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`

	tag, err := s.db.Exec(ctx, query, gameID, totPrize, startedAt)
	if err != nil {
		return fmt.Errorf("failed to activate game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %d is not waiting", gameID)
	}

	return nil
}

func (s *GameStore) UpdateDrawn(ctx context.Context, gameID int, drawn string) error {
	query := `
		UPDATE games
		SET drawn = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := s.db.Exec(ctx, query, gameID, drawn)
	if err != nil {
		return fmt.Errorf("failed to update drawn numbers: %w", err)
	}

	return nil
}

// FinishGame closes the game exactly once. winnerID is nil when the pool
// ran out with no bingo.
func (s *GameStore) FinishGame(ctx context.Context, gameID int, winnerID *int, reason string, drawn string, finishedAt time.Time) error {
	var winner sql.NullInt64
	if winnerID != nil {
		winner = sql.NullInt64{Int64: int64(*winnerID), Valid: true}
	}

	query := `
		UPDATE games
		SET status = 'finished', winner_id = $2, reason = $3, drawn = $4, finished_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	tag, err := s.db.Exec(ctx, query, gameID, winner, reason, drawn, finishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %d is not active", gameID)
	}

	return nil
}
