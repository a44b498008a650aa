package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

// Store is the Postgres card inventory. Reservation state lives in the
// reserved_by column (room code), so card ownership survives restarts and
// is arbitrated by the database across rooms.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CardRow is a catalog listing entry for the card-selection UI.
type CardRow struct {
	CardNo   int    `json:"card_no"`
	Data     string `json:"data"`
	Reserved bool   `json:"reserved"`
}

// Get loads and validates one card, bingo.ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, cardNo int) (*bingo.Card, error) {
	var data string
	err := s.db.QueryRow(ctx,
		`SELECT data FROM cards WHERE card_no = $1`, cardNo,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("card %d: %w", cardNo, bingo.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card %d: %w", cardNo, err)
	}
	return bingo.ParseCard(cardNo, data)
}

// Reserve takes the card for a room. The conditional update decides the
// race: zero rows affected means another room already holds it.
func (s *Store) Reserve(ctx context.Context, cardNo int, room string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE cards
		   SET reserved_by = $2, updated_at = $3
		 WHERE card_no = $1
		   AND (reserved_by IS NULL OR reserved_by = $2)
	`, cardNo, room, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reserve card %d: %w", cardNo, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %d: %w", cardNo, bingo.ErrCardTaken)
	}
	return nil
}

// ReleaseRoom frees every card a finished room was holding.
func (s *Store) ReleaseRoom(ctx context.Context, room string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE cards SET reserved_by = NULL, updated_at = $2 WHERE reserved_by = $1
	`, room, time.Now())
	if err != nil {
		return fmt.Errorf("failed to release cards for room %s: %w", room, err)
	}
	return nil
}

// Insert seeds one card; an existing card_no is left untouched so seeding
// is idempotent. Reports whether a row was written.
func (s *Store) Insert(ctx context.Context, card *bingo.Card) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO cards (card_no, data, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (card_no) DO NOTHING
	`, card.No, card.Data(), time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to insert card %d: %w", card.No, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Count reports the catalog size.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// List returns up to limit catalog entries for the selection UI.
func (s *Store) List(ctx context.Context, limit int) ([]*CardRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT card_no, data, reserved_by IS NOT NULL
		  FROM cards
		 ORDER BY card_no
		 LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var out []*CardRow
	for rows.Next() {
		var r CardRow
		if err := rows.Scan(&r.CardNo, &r.Data, &r.Reserved); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
