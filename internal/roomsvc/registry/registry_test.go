package registry

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCardData = "1,16,31,46,61,2,17,32,47,62,7,22,0,49,64,4,19,38,50,65,5,20,35,51,66"

type stubCatalog struct{}

func (stubCatalog) Get(ctx context.Context, cardNo int) (*bingo.Card, error) {
	return bingo.ParseCard(cardNo, testCardData)
}
func (stubCatalog) Reserve(ctx context.Context, cardNo int, room string) error { return nil }

type stubWallet struct{}

func (stubWallet) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	return nil
}
func (stubWallet) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	return nil
}

func newTestSession(t *testing.T, id int64, room string) *bingo.Session {
	t.Helper()
	ledger, err := bingo.NewLedger(stubWallet{}, bingo.DefaultWinnerShare)
	require.NoError(t, err)
	return bingo.NewSession(bingo.Config{
		Id:       id,
		Room:     room,
		Creator:  1,
		EntryFee: decimal.RequireFromString("5.00"),
		Catalog:  stubCatalog{},
		Wallet:   stubWallet{},
		Ledger:   ledger,
	})
}

func TestNewRoomCodeFormat(t *testing.T) {
	r := NewRegistry()
	pattern := regexp.MustCompile(`^[0-9A-F]{6}$`)

	for i := 0; i < 50; i++ {
		code, err := r.NewRoomCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)

		require.NoError(t, r.Put(code, newTestSession(t, int64(i+1), code)))
	}
	assert.Equal(t, 50, r.Len())
}

func TestPutGetRemove(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(t, 1, "4A9F21")

	require.NoError(t, r.Put("4A9F21", s))

	got, err := r.Get("4A9F21")
	require.NoError(t, err)
	assert.Same(t, s, got)

	err = r.Put("4A9F21", newTestSession(t, 2, "4A9F21"))
	assert.ErrorIs(t, err, bingo.ErrRoomTaken)

	_, err = r.Get("FFFFFF")
	assert.ErrorIs(t, err, bingo.ErrNotFound)

	r.Remove("4A9F21")
	_, err = r.Get("4A9F21")
	assert.ErrorIs(t, err, bingo.ErrNotFound)
}

func TestWaitingFiltersStartedSessions(t *testing.T) {
	r := NewRegistry()

	open := newTestSession(t, 1, "AAAAAA")
	started := newTestSession(t, 2, "BBBBBB")
	require.NoError(t, r.Put("AAAAAA", open))
	require.NoError(t, r.Put("BBBBBB", started))

	_, err := started.Join(context.Background(), bingo.User{Id: 1, Name: "abebe"}, 7)
	require.NoError(t, err)
	_, err = started.AutoStart()
	require.NoError(t, err)

	waiting := r.Waiting()
	require.Len(t, waiting, 1)
	assert.Equal(t, "AAAAAA", waiting[0].Room())

	assert.Len(t, r.List(), 2)
}

func TestNewRoomCodeNeverPublic(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 200; i++ {
		code, err := r.NewRoomCode()
		require.NoError(t, err)
		assert.NotEqual(t, PublicRoom, code, fmt.Sprintf("iteration %d", i))
	}
}
