package bingo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPrize(t *testing.T) {
	tests := []struct {
		name  string
		share string
		pool  string
		want  string
	}{
		{"default 80 percent of 100", "0.80", "100.00", "80.00"},
		{"default 80 percent of 15", "0.80", "15.00", "12.00"},
		{"odd pool rounds to cents", "0.80", "12.51", "10.01"},
		{"half share", "0.50", "33.00", "16.50"},
		{"full share pays the pool", "1", "40.00", "40.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, err := NewLedger(newMemWallet(), decimal.RequireFromString(tt.share))
			require.NoError(t, err)
			got := ledger.Prize(decimal.RequireFromString(tt.pool))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestNewLedgerRejectsBadShare(t *testing.T) {
	for _, share := range []string{"0", "-0.2", "1.01", "80"} {
		t.Run(share, func(t *testing.T) {
			_, err := NewLedger(newMemWallet(), decimal.RequireFromString(share))
			assert.Error(t, err)
		})
	}
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("failure keeps the record pending", func(t *testing.T) {
		wallet := newMemWallet(9)
		ledger, err := NewLedger(wallet, DefaultWinnerShare)
		require.NoError(t, err)

		rec := &PayoutRecord{GameId: 4, UserId: 9, Kind: PayoutPrize,
			Amount: decimal.RequireFromString("80.00"), Ref: PrizeRef(4, 9)}

		wallet.failCredit = true
		err = ledger.Commit(ctx, rec)
		assert.ErrorIs(t, err, ErrPayoutFailed)
		assert.False(t, rec.Committed)
		assert.Equal(t, "100.00", wallet.balance(9).StringFixed(2))
	})

	t.Run("success commits exactly once", func(t *testing.T) {
		wallet := newMemWallet(9)
		ledger, err := NewLedger(wallet, DefaultWinnerShare)
		require.NoError(t, err)

		rec := &PayoutRecord{GameId: 4, UserId: 9, Kind: PayoutPrize,
			Amount: decimal.RequireFromString("80.00"), Ref: PrizeRef(4, 9)}

		require.NoError(t, ledger.Commit(ctx, rec))
		assert.True(t, rec.Committed)
		assert.Equal(t, "180.00", wallet.balance(9).StringFixed(2))

		require.NoError(t, ledger.Commit(ctx, rec))
		assert.Equal(t, "180.00", wallet.balance(9).StringFixed(2), "no double credit")
		assert.Len(t, wallet.credits, 1)
	})
}

func TestLedgerRefunds(t *testing.T) {
	ledger, err := NewLedger(newMemWallet(), DefaultWinnerShare)
	require.NoError(t, err)

	ps := []*Participant{
		{User: user(1), CardNo: 11},
		{User: user(2), CardNo: 12},
		{User: user(3), CardNo: 13},
	}
	fee := decimal.RequireFromString("5.00")

	recs := ledger.Refunds(8, ps, fee)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, int64(8), rec.GameId)
		assert.Equal(t, ps[i].User.Id, rec.UserId)
		assert.Equal(t, PayoutRefund, rec.Kind)
		assert.True(t, fee.Equal(rec.Amount))
		assert.Equal(t, RefundRef(8, ps[i].User.Id), rec.Ref)
		assert.False(t, rec.Committed)
	}
}
