package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type GamePlayerStore struct {
	db *pgxpool.Pool
}

func NewGamePlayerStore(db *pgxpool.Pool) *GamePlayerStore {
	return &GamePlayerStore{db: db}
}

func (s *GamePlayerStore) GetPlayersByGameID(ctx context.Context, gameID int) ([]*models.GamePlayer, error) {
	query := `
		SELECT id, game_id, user_id, card_no, marked, entry_fee, win_amount, status, created_at, updated_at
		FROM game_players
		WHERE game_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*models.GamePlayer
	for rows.Next() {
		var gp models.GamePlayer
		err := rows.Scan(
			&gp.ID,
			&gp.GameID,
			&gp.UserID,
			&gp.CardNo,
			&gp.Marked,
			&gp.EntryFee,
			&gp.WinAmount,
			&gp.Status,
			&gp.CreatedAt,
			&gp.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		players = append(players, &gp)
	}

	return players, nil
}

// CreatePlayerIfAvailable seats a player on a card in a single statement.
// The CTE locks the game row and enforces status='waiting', so a join can
// never slip in after the first number is drawn. Unique constraints carry
// the seat rules:
// - unique_game_card: one owner per card in a game
// - unique_game_user: one card per user in a game
func (s *GamePlayerStore) CreatePlayerIfAvailable(ctx context.Context, gameID int, userID int, cardNo int, entryFee decimal.Decimal) (*models.GamePlayer, error) {
	if gameID <= 0 {
		return nil, fmt.Errorf("invalid game ID: %d", gameID)
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user ID: %d", userID)
	}
	if cardNo <= 0 {
		return nil, fmt.Errorf("invalid card number: %d", cardNo)
	}

	const query = `
WITH locked_game AS (
  SELECT id
  FROM games
  WHERE id = $1
    AND status = 'waiting'
  FOR UPDATE
)
INSERT INTO game_players (game_id, user_id, card_no, marked, entry_fee, win_amount, status)
SELECT lg.id, $2, $3, '', $4, 0, 'pending'
FROM locked_game lg
RETURNING id, game_id, user_id, card_no, marked, entry_fee, win_amount, status, created_at, updated_at;
`
	gp := &models.GamePlayer{}
	err := s.db.QueryRow(ctx, query, gameID, userID, cardNo, entryFee).Scan(
		&gp.ID,
		&gp.GameID,
		&gp.UserID,
		&gp.CardNo,
		&gp.Marked,
		&gp.EntryFee,
		&gp.WinAmount,
		&gp.Status,
		&gp.CreatedAt,
		&gp.UpdatedAt,
	)
	if err != nil {
		// zero rows means the game isn't waiting (or doesn't exist)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("game %d: %w", gameID, bingo.ErrInvalidState)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "unique_game_card":
				return nil, fmt.Errorf("card %d in game %d: %w", cardNo, gameID, bingo.ErrCardTaken)
			case "unique_game_user":
				return nil, fmt.Errorf("user %d in game %d: %w", userID, gameID, bingo.ErrAlreadyJoined)
			}
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("invalid reference: %s", pgErr.Message)
		}
		return nil, fmt.Errorf("failed to create game player: %w", err)
	}

	return gp, nil
}

func (s *GamePlayerStore) UpdateMarked(ctx context.Context, gameID, userID int, marked string) error {
	query := `
		UPDATE game_players
		SET marked = $3, updated_at = NOW()
		WHERE game_id = $1 AND user_id = $2
	`

	tag, err := s.db.Exec(ctx, query, gameID, userID, marked)
	if err != nil {
		return fmt.Errorf("failed to update marked numbers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %d in game %d: %w", userID, gameID, bingo.ErrNotFound)
	}

	return nil
}

// SettleWinner flips one player to 'win' with the prize and the rest to 'loose'.
func (s *GamePlayerStore) SettleWinner(ctx context.Context, gameID, winnerID int, prize decimal.Decimal) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin settle: %w", err)
	}
	defer tx.Rollback(ctx)

	winQuery := `
		UPDATE game_players
		SET status = 'win', win_amount = $3, updated_at = NOW()
		WHERE game_id = $1 AND user_id = $2 AND status = 'pending'
	`
	tag, err := tx.Exec(ctx, winQuery, gameID, winnerID, prize)
	if err != nil {
		return fmt.Errorf("failed to settle winner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("winner %d in game %d: %w", winnerID, gameID, bingo.ErrNotFound)
	}

	looseQuery := `
		UPDATE game_players
		SET status = 'loose', updated_at = NOW()
		WHERE game_id = $1 AND status = 'pending'
	`
	if _, err := tx.Exec(ctx, looseQuery, gameID); err != nil {
		return fmt.Errorf("failed to settle losers: %w", err)
	}

	return tx.Commit(ctx)
}

// SettleRefunds marks every pending player refunded when the pool runs dry.
func (s *GamePlayerStore) SettleRefunds(ctx context.Context, gameID int) error {
	query := `
		UPDATE game_players
		SET status = 'refunded', updated_at = NOW()
		WHERE game_id = $1 AND status = 'pending'
	`

	_, err := s.db.Exec(ctx, query, gameID)
	if err != nil {
		return fmt.Errorf("failed to settle refunds: %w", err)
	}

	return nil
}
