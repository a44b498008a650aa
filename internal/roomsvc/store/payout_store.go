package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PayoutStore struct {
	db *pgxpool.Pool
}

func NewPayoutStore(db *pgxpool.Pool) *PayoutStore {
	return &PayoutStore{db: db}
}

// CreatePending records a payout owed to a player. The tref unique
// constraint makes retries harmless: the second insert is a no-op.
func (s *PayoutStore) CreatePending(ctx context.Context, gameID, userID int, kind string, amount decimal.Decimal, tref string) (*models.Payout, error) {
	query := `
		INSERT INTO payouts (game_id, user_id, kind, amount, tref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
		RETURNING id, game_id, user_id, kind, amount, tref, status, created_at, settled_at
	`

	p := &models.Payout{}
	err := s.db.QueryRow(ctx, query, gameID, userID, kind, amount, tref).Scan(
		&p.ID,
		&p.GameID,
		&p.UserID,
		&p.Kind,
		&p.Amount,
		&p.TRef,
		&p.Status,
		&p.CreatedAt,
		&p.SettledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return s.GetByTRef(ctx, tref)
		}
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	return p, nil
}

func (s *PayoutStore) GetByTRef(ctx context.Context, tref string) (*models.Payout, error) {
	query := `
		SELECT id, game_id, user_id, kind, amount, tref, status, created_at, settled_at
		FROM payouts
		WHERE tref = $1
	`

	p := &models.Payout{}
	err := s.db.QueryRow(ctx, query, tref).Scan(
		&p.ID,
		&p.GameID,
		&p.UserID,
		&p.Kind,
		&p.Amount,
		&p.TRef,
		&p.Status,
		&p.CreatedAt,
		&p.SettledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout by tref: %w", err)
	}

	return p, nil
}

func (s *PayoutStore) ListPending(ctx context.Context, limit int) ([]*models.Payout, error) {
	query := `
		SELECT id, game_id, user_id, kind, amount, tref, status, created_at, settled_at
		FROM payouts
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		var p models.Payout
		err := rows.Scan(
			&p.ID,
			&p.GameID,
			&p.UserID,
			&p.Kind,
			&p.Amount,
			&p.TRef,
			&p.Status,
			&p.CreatedAt,
			&p.SettledAt,
		)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, &p)
	}

	return payouts, nil
}

// MarkSettled closes a pending payout. RowsAffected guards against two
// settlers racing over the same row.
func (s *PayoutStore) MarkSettled(ctx context.Context, payoutID int, settledAt time.Time) (bool, error) {
	query := `
		UPDATE payouts
		SET status = 'settled', settled_at = $2
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := s.db.Exec(ctx, query, payoutID, settledAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark payout settled: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
