// Package wallet implements the balance collaborator as a Postgres dr/cr
// ledger. A dr row adds funds to a user, a cr row removes them; the balance
// is sum(dr) minus sum(cr) over verified rows. Every movement carries a
// caller-supplied tref, and a tref that already exists is treated as
// applied, so retried debits and credits settle at most once.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

type Ledger struct {
	db *pgxpool.Pool
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

// Balance computes the user's spendable balance.
func (l *Ledger) Balance(ctx context.Context, userId int64) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal
	err := l.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'verified'
    `, userId).Scan(&totalDr, &totalCr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance for user %d: %w", userId, err)
	}
	return totalDr.Sub(totalCr), nil
}

// Debit charges the user inside one transaction: the user's ledger rows are
// locked, the balance recomputed, and the cr row written only if it covers
// the amount. Fails with bingo.ErrInsufficientFunds otherwise.
func (l *Ledger) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var applied bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM balances WHERE tref = $1)`, ref,
	).Scan(&applied); err != nil {
		return fmt.Errorf("failed to check tref %s: %w", ref, err)
	}
	if applied {
		return nil
	}

	rows, err := tx.Query(ctx, `
		SELECT dr, cr
		FROM balances
		WHERE user_id = $1 AND status = 'verified'
		FOR UPDATE
	`, userId)
	if err != nil {
		return fmt.Errorf("failed to lock balance rows for user %d: %w", userId, err)
	}

	var totalDr, totalCr decimal.Decimal
	for rows.Next() {
		var dr, cr decimal.Decimal
		if err := rows.Scan(&dr, &cr); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan balance row: %w", err)
		}
		totalDr = totalDr.Add(dr)
		totalCr = totalCr.Add(cr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read balance rows: %w", err)
	}

	balance := totalDr.Sub(totalCr)
	if balance.LessThan(amount) {
		return fmt.Errorf("user %d balance %s below %s: %w",
			userId, balance.StringFixed(2), amount.StringFixed(2), bingo.ErrInsufficientFunds)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, status, created_at)
		VALUES ($1, $2, 0, $3, $4, 'verified', $5)
	`, userId, ttypeForRef(ref), amount, ref, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert debit row: %w", err)
	}

	return tx.Commit(ctx)
}

// Credit pays the user. Idempotent on ref like Debit.
func (l *Ledger) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var applied bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM balances WHERE tref = $1)`, ref,
	).Scan(&applied); err != nil {
		return fmt.Errorf("failed to check tref %s: %w", ref, err)
	}
	if applied {
		return nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, status, created_at)
		VALUES ($1, $2, $3, 0, $4, 'verified', $5)
	`, userId, ttypeForRef(ref), amount, ref, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert credit row: %w", err)
	}

	return tx.Commit(ctx)
}

// ttypeForRef classifies a ledger row by the reference it settles.
func ttypeForRef(ref string) string {
	switch {
	case strings.HasPrefix(ref, "FEE-"):
		return "game_entry"
	case strings.HasPrefix(ref, "PRZ-"):
		return "prize"
	case strings.HasPrefix(ref, "RFD-"):
		return "refund"
	case strings.HasPrefix(ref, "RVT-"):
		return "refund"
	default:
		return "adjustment"
	}
}
