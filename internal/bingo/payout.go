package bingo

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Wallet is the external balance collaborator. Refs are deterministic per
// (game, user, kind) so a retried call settles at most once downstream.
type Wallet interface {
	// Debit charges the user, or fails with ErrInsufficientFunds.
	Debit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error
	// Credit pays the user.
	Credit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error
}

type PayoutKind string

const (
	PayoutPrize  PayoutKind = "prize"
	PayoutRefund PayoutKind = "refund"
)

// PayoutRecord is the intent to move money out of a finished game's pool.
// It is created inside the session lock at the finish transition; the
// wallet credit that realizes it always runs outside the lock.
type PayoutRecord struct {
	GameId    int64
	UserId    int64
	Kind      PayoutKind
	Amount    decimal.Decimal
	Ref       string
	Committed bool
}

// Ledger computes prizes and settles payout records against the wallet.
type Ledger struct {
	mu     sync.Mutex
	wallet Wallet
	share  decimal.Decimal // winner's fraction of the pool, (0,1]
}

// DefaultWinnerShare is the fraction of the pool paid to the winner when no
// share is configured. The remainder is retained as the house fee.
var DefaultWinnerShare = decimal.RequireFromString("0.80")

func NewLedger(wallet Wallet, share decimal.Decimal) (*Ledger, error) {
	if share.LessThanOrEqual(decimal.Zero) || share.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("winner share %s out of range (0,1]", share)
	}
	return &Ledger{wallet: wallet, share: share}, nil
}

// Prize computes the winner's cut of the pool, rounded to cents.
func (l *Ledger) Prize(pool decimal.Decimal) decimal.Decimal {
	return pool.Mul(l.share).Round(2)
}

// Share returns the configured winner fraction.
func (l *Ledger) Share() decimal.Decimal {
	return l.share
}

// Commit settles one record with the wallet. A record already committed is
// a no-op, never a second credit. On wallet failure the record stays
// uncommitted and ErrPayoutFailed is returned; the game outcome is already
// public, so the caller must keep the record pending and retry, never
// reverse the finish.
func (l *Ledger) Commit(ctx context.Context, rec *PayoutRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Committed {
		return nil
	}
	if err := l.wallet.Credit(ctx, rec.UserId, rec.Amount, rec.Ref); err != nil {
		return fmt.Errorf("%w: %s %s to user %d: %v", ErrPayoutFailed, rec.Kind, rec.Amount.StringFixed(2), rec.UserId, err)
	}
	rec.Committed = true
	return nil
}

// Refunds builds one full-entry-fee refund record per participant, used
// when a game finishes with no winner.
func (l *Ledger) Refunds(gameId int64, ps []*Participant, entryFee decimal.Decimal) []*PayoutRecord {
	recs := make([]*PayoutRecord, 0, len(ps))
	for _, p := range ps {
		recs = append(recs, &PayoutRecord{
			GameId: gameId,
			UserId: p.User.Id,
			Kind:   PayoutRefund,
			Amount: entryFee,
			Ref:    RefundRef(gameId, p.User.Id),
		})
	}
	return recs
}

// PrizeRef and friends name ledger transactions deterministically.
func PrizeRef(gameId, userId int64) string {
	return fmt.Sprintf("PRZ-%d-%d", gameId, userId)
}

func RefundRef(gameId, userId int64) string {
	return fmt.Sprintf("RFD-%d-%d", gameId, userId)
}

func EntryFeeRef(gameId, userId int64) string {
	return fmt.Sprintf("FEE-%d-%d", gameId, userId)
}

func RevertRef(gameId, userId int64) string {
	return fmt.Sprintf("RVT-%d-%d", gameId, userId)
}
