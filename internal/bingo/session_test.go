package bingo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// midRowCard has 7,22,49,64 on its middle row around the free center and
// 38 elsewhere, so drawing and marking 7,22,38,49,64 completes a line.
const midRowCard = "1,16,31,46,61,2,17,32,47,62,7,22,0,49,64,4,19,38,50,65,5,20,35,51,66"

// testCard builds a deterministic valid card; different numbers per row,
// offset by no so distinct ids give distinct cards.
func testCard(no int) *Card {
	c := &Card{No: no}
	for col := 0; col < GridSize; col++ {
		low := col*ColumnSpan + 1
		for row := 0; row < GridSize; row++ {
			c.Grid[row][col] = low + (3*row+no)%ColumnSpan
		}
	}
	c.Grid[2][2] = FreeCell
	return c
}

type memCatalog struct {
	mu       sync.Mutex
	cards    map[int]*Card
	reserved map[int]string
}

func newMemCatalog(cards ...*Card) *memCatalog {
	c := &memCatalog{cards: make(map[int]*Card), reserved: make(map[int]string)}
	for _, card := range cards {
		c.cards[card.No] = card
	}
	return c
}

func (c *memCatalog) Get(_ context.Context, cardNo int) (*Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.cards[cardNo]
	if !ok {
		return nil, fmt.Errorf("card %d: %w", cardNo, ErrNotFound)
	}
	return card, nil
}

func (c *memCatalog) Reserve(_ context.Context, cardNo int, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if holder, ok := c.reserved[cardNo]; ok && holder != room {
		return fmt.Errorf("card %d reserved by %s: %w", cardNo, holder, ErrCardTaken)
	}
	c.reserved[cardNo] = room
	return nil
}

type memWallet struct {
	mu         sync.Mutex
	balances   map[int64]decimal.Decimal
	failCredit bool
	debits     []string
	credits    []string
}

func newMemWallet(userIds ...int64) *memWallet {
	w := &memWallet{balances: make(map[int64]decimal.Decimal)}
	for _, id := range userIds {
		w.balances[id] = decimal.RequireFromString("100.00")
	}
	return w
}

func (w *memWallet) Debit(_ context.Context, userId int64, amount decimal.Decimal, ref string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	bal := w.balances[userId]
	if bal.LessThan(amount) {
		return fmt.Errorf("user %d balance %s: %w", userId, bal.StringFixed(2), ErrInsufficientFunds)
	}
	w.balances[userId] = bal.Sub(amount)
	w.debits = append(w.debits, ref)
	return nil
}

func (w *memWallet) Credit(_ context.Context, userId int64, amount decimal.Decimal, ref string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failCredit {
		return errors.New("wallet unavailable")
	}
	w.balances[userId] = w.balances[userId].Add(amount)
	w.credits = append(w.credits, ref)
	return nil
}

func (w *memWallet) balance(userId int64) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userId]
}

type testEnv struct {
	catalog *memCatalog
	wallet  *memWallet
	ledger  *Ledger
}

func newTestEnv(t *testing.T, cards ...*Card) *testEnv {
	t.Helper()
	wallet := newMemWallet(1, 2, 3, 4, 5, 6, 7, 8, 9)
	ledger, err := NewLedger(wallet, DefaultWinnerShare)
	require.NoError(t, err)
	return &testEnv{catalog: newMemCatalog(cards...), wallet: wallet, ledger: ledger}
}

func (e *testEnv) session(cfg Config) *Session {
	if cfg.Id == 0 {
		cfg.Id = 1
	}
	if cfg.Room == "" {
		cfg.Room = "4A9F21"
	}
	if cfg.Creator == 0 {
		cfg.Creator = 1
	}
	if cfg.EntryFee.IsZero() {
		cfg.EntryFee = decimal.RequireFromString("5.00")
	}
	cfg.Catalog = e.catalog
	cfg.Wallet = e.wallet
	cfg.Ledger = e.ledger
	return NewSession(cfg)
}

func user(id int64) User {
	return User{Id: id, Name: fmt.Sprintf("player-%d", id)}
}

func drawAll(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; i < HighNumber; i++ {
		_, err := s.Draw()
		require.NoError(t, err)
	}
}

func TestJoinAccumulatesPrizePool(t *testing.T) {
	env := newTestEnv(t, testCard(1), testCard(2), testCard(3))
	s := env.session(Config{})

	for i := int64(1); i <= 3; i++ {
		res, err := s.Join(context.Background(), user(i), int(i))
		require.NoError(t, err)
		assert.Equal(t, int(i), res.TotalPlayers)
	}

	info := s.Snapshot()
	assert.Equal(t, "15.00", info.Prize.StringFixed(2))
	assert.Equal(t, StatusWaiting, info.Status)
	assert.Equal(t, "95.00", env.wallet.balance(1).StringFixed(2))
}

func TestJoinValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("already joined", func(t *testing.T) {
		env := newTestEnv(t, testCard(1), testCard(2))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Join(ctx, user(1), 2)
		assert.ErrorIs(t, err, ErrAlreadyJoined)
	})

	t.Run("card held by another player", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Join(ctx, user(2), 1)
		assert.ErrorIs(t, err, ErrCardTaken)
	})

	t.Run("unknown card", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("room full", func(t *testing.T) {
		env := newTestEnv(t, testCard(1), testCard(2), testCard(3))
		s := env.session(Config{MaxPlayers: 2})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Join(ctx, user(2), 2)
		require.NoError(t, err)
		_, err = s.Join(ctx, user(3), 3)
		assert.ErrorIs(t, err, ErrRoomFull)
	})

	t.Run("join after start", func(t *testing.T) {
		env := newTestEnv(t, testCard(1), testCard(2))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Start(1)
		require.NoError(t, err)
		_, err = s.Join(ctx, user(2), 2)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("insufficient funds leaves state untouched", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		env.wallet.balances[7] = decimal.RequireFromString("2.00")
		s := env.session(Config{})

		_, err := s.Join(ctx, user(7), 1)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		info := s.Snapshot()
		assert.Empty(t, info.Players)
		assert.True(t, info.Prize.IsZero())
		assert.Empty(t, env.catalog.reserved, "card must not stay reserved after a rejected join")
	})

	t.Run("catalog reservation conflict refunds the fee", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		require.NoError(t, env.catalog.Reserve(ctx, 1, "OTHER1"))
		s := env.session(Config{})

		_, err := s.Join(ctx, user(2), 1)
		assert.ErrorIs(t, err, ErrCardTaken)
		assert.Equal(t, "100.00", env.wallet.balance(2).StringFixed(2))
		assert.Contains(t, env.wallet.credits, RevertRef(1, 2))
		assert.Empty(t, s.Snapshot().Players)
	})
}

func TestStartAuthorization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testCard(1), testCard(2))
	s := env.session(Config{Creator: 1, MinPlayers: 2})

	_, err := s.Join(ctx, user(1), 1)
	require.NoError(t, err)

	_, err = s.Start(2)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Start(1)
	assert.ErrorIs(t, err, ErrInvalidState, "below minimum players")

	_, err = s.Join(ctx, user(2), 2)
	require.NoError(t, err)

	res, err := s.Start(1)
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Prize.StringFixed(2))
	assert.Equal(t, StatusActive, s.Status())

	_, err = s.Start(1)
	assert.ErrorIs(t, err, ErrInvalidState, "no second start")
}

func TestAutoStart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testCard(1), testCard(2))
	s := env.session(Config{Creator: 1, MinPlayers: 2})

	_, err := s.AutoStart()
	assert.ErrorIs(t, err, ErrInvalidState, "empty room must not auto start")

	_, err = s.Join(ctx, user(2), 1)
	require.NoError(t, err)
	_, err = s.Join(ctx, user(3), 2)
	require.NoError(t, err)

	_, err = s.AutoStart()
	require.NoError(t, err, "auto start skips the creator check")
	assert.Equal(t, StatusActive, s.Status())
}

func TestDrawSequence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testCard(1))
	s := env.session(Config{})

	_, err := s.Draw()
	assert.ErrorIs(t, err, ErrInvalidState, "no draws before start")

	_, err = s.Join(ctx, user(1), 1)
	require.NoError(t, err)
	_, err = s.Start(1)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for i := 1; i <= 20; i++ {
		res, err := s.Draw()
		require.NoError(t, err)
		assert.Equal(t, i, res.TotalDrawn)
		assert.GreaterOrEqual(t, res.Number, LowNumber)
		assert.LessOrEqual(t, res.Number, HighNumber)
		assert.False(t, seen[res.Number], "number %d drawn twice", res.Number)
		seen[res.Number] = true
	}

	info := s.Snapshot()
	assert.Len(t, info.Drawn, 20)
}

func TestMark(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Session, *Card) {
		card, err := ParseCard(1, midRowCard)
		require.NoError(t, err)
		env := newTestEnv(t, card)
		s := env.session(Config{})
		_, err = s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		return s, card
	}

	t.Run("before start", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Mark(1, 7)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("number not drawn", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Start(1)
		require.NoError(t, err)

		_, err = s.Mark(1, 7)
		assert.ErrorIs(t, err, ErrNotDrawn)
		assert.Empty(t, s.Snapshot().Players[0].Marked, "marked set unchanged after rejection")
	})

	t.Run("number not on card", func(t *testing.T) {
		s, card := setup(t)
		_, err := s.Start(1)
		require.NoError(t, err)
		drawAll(t, s)

		off := 0
		for n := LowNumber; n <= HighNumber; n++ {
			if !card.Contains(n) {
				off = n
				break
			}
		}
		_, err = s.Mark(1, off)
		assert.ErrorIs(t, err, ErrNotOnCard)
	})

	t.Run("unknown participant", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Start(1)
		require.NoError(t, err)
		drawAll(t, s)

		_, err = s.Mark(42, 7)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("idempotent", func(t *testing.T) {
		s, _ := setup(t)
		_, err := s.Start(1)
		require.NoError(t, err)
		drawAll(t, s)

		first, err := s.Mark(1, 7)
		require.NoError(t, err)
		assert.False(t, first.Already)
		assert.Equal(t, 1, first.TotalMarked)

		second, err := s.Mark(1, 7)
		require.NoError(t, err)
		assert.True(t, second.Already)
		assert.Equal(t, 1, second.TotalMarked)
		assert.Equal(t, []int{7}, s.Snapshot().Players[0].Marked)
	})
}

func TestMarkedNumbersAlwaysDrawnAndOnCard(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		card := testCard(1)
		wallet := newMemWallet(1)
		ledger, err := NewLedger(wallet, DefaultWinnerShare)
		if err != nil {
			t.Fatal(err)
		}
		s := NewSession(Config{
			Id: 1, Room: "AB12CD", Creator: 1,
			EntryFee: decimal.RequireFromString("5.00"),
			Catalog:  newMemCatalog(card), Wallet: wallet, Ledger: ledger,
		})
		if _, err := s.Join(ctx, user(1), 1); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Start(1); err != nil {
			t.Fatal(err)
		}

		draws := rapid.IntRange(0, HighNumber).Draw(t, "draws")
		for i := 0; i < draws; i++ {
			if _, err := s.Draw(); err != nil {
				t.Fatal(err)
			}
		}

		attempts := rapid.IntRange(0, 60).Draw(t, "attempts")
		for i := 0; i < attempts; i++ {
			n := rapid.IntRange(-5, HighNumber+10).Draw(t, "number")
			_, _ = s.Mark(1, n)
		}

		info := s.Snapshot()
		drawn := make(map[int]bool, len(info.Drawn))
		for _, n := range info.Drawn {
			drawn[n] = true
		}
		for _, n := range info.Players[0].Marked {
			if !card.Contains(n) {
				t.Fatalf("marked %d is not on the card", n)
			}
			if !drawn[n] {
				t.Fatalf("marked %d was never drawn", n)
			}
		}
	})
}

func TestClaimWinningMiddleRow(t *testing.T) {
	ctx := context.Background()
	card, err := ParseCard(1, midRowCard)
	require.NoError(t, err)
	env := newTestEnv(t, card, testCard(2))
	s := env.session(Config{})

	_, err = s.Join(ctx, user(1), 1)
	require.NoError(t, err)
	_, err = s.Join(ctx, user(2), 2)
	require.NoError(t, err)
	_, err = s.Start(1)
	require.NoError(t, err)
	drawAll(t, s)

	for _, n := range []int{7, 22, 38, 49, 64} {
		_, err := s.Mark(1, n)
		require.NoError(t, err)
	}

	res, err := s.Claim(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Winner.Id)
	assert.Equal(t, "8.00", res.Prize.StringFixed(2), "80%% of the 10.00 pool")
	require.NotNil(t, res.Record)
	assert.False(t, res.Record.Committed, "credit happens outside the session lock")

	info := s.Snapshot()
	assert.Equal(t, StatusFinished, info.Status)
	require.NotNil(t, info.Winner)
	assert.Equal(t, int64(1), info.Winner.Id)
	assert.Equal(t, ReasonBingo, info.Reason)
}

func TestClaimValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("waiting game", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Claim(1)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown participant", func(t *testing.T) {
		env := newTestEnv(t, testCard(1))
		s := env.session(Config{})
		_, err := s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Start(1)
		require.NoError(t, err)
		_, err = s.Claim(42)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("marks alone decide, drawn numbers do not", func(t *testing.T) {
		card, err := ParseCard(1, midRowCard)
		require.NoError(t, err)
		env := newTestEnv(t, card)
		s := env.session(Config{})
		_, err = s.Join(ctx, user(1), 1)
		require.NoError(t, err)
		_, err = s.Start(1)
		require.NoError(t, err)
		drawAll(t, s)

		for _, n := range []int{7, 22, 49} { // one short of the middle row
			_, err := s.Mark(1, n)
			require.NoError(t, err)
		}
		_, err = s.Claim(1)
		assert.ErrorIs(t, err, ErrNotAWin)
		assert.Equal(t, StatusActive, s.Status(), "failed claim must not end the game")
	})
}

func TestClaimRace(t *testing.T) {
	ctx := context.Background()

	for _, players := range []int{2, 5} {
		t.Run(fmt.Sprintf("%d claimants", players), func(t *testing.T) {
			cards := make([]*Card, 0, players)
			for i := 1; i <= players; i++ {
				cards = append(cards, testCard(i))
			}
			env := newTestEnv(t, cards...)
			s := env.session(Config{})

			for i := 1; i <= players; i++ {
				_, err := s.Join(ctx, user(int64(i)), i)
				require.NoError(t, err)
			}
			_, err := s.Start(1)
			require.NoError(t, err)
			drawAll(t, s)

			// every player marks their full top row
			for i := 1; i <= players; i++ {
				card := cards[i-1]
				for col := 0; col < GridSize; col++ {
					_, err := s.Mark(int64(i), card.CellAt(0, col))
					require.NoError(t, err)
				}
			}

			ready := make(chan struct{})
			winners := make(chan int64, players)
			errs := make(chan error, players)
			var wg sync.WaitGroup
			for i := 1; i <= players; i++ {
				wg.Add(1)
				go func(uid int64) {
					defer wg.Done()
					<-ready
					res, err := s.Claim(uid)
					if err != nil {
						errs <- err
						return
					}
					winners <- res.Winner.Id
				}(int64(i))
			}
			close(ready)
			wg.Wait()
			close(winners)
			close(errs)

			var wins []int64
			for id := range winners {
				wins = append(wins, id)
			}
			require.Len(t, wins, 1, "exactly one claim succeeds")

			lateClaims := 0
			for err := range errs {
				assert.ErrorIs(t, err, ErrAlreadyFinished)
				lateClaims++
			}
			assert.Equal(t, players-1, lateClaims)

			info := s.Snapshot()
			require.NotNil(t, info.Winner)
			assert.Equal(t, wins[0], info.Winner.Id)
			require.NotNil(t, s.Payout())
			assert.Equal(t, wins[0], s.Payout().UserId)
		})
	}
}

func TestExhaustionFinishesWithoutWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, testCard(1), testCard(2))
	s := env.session(Config{})

	_, err := s.Join(ctx, user(1), 1)
	require.NoError(t, err)
	_, err = s.Join(ctx, user(2), 2)
	require.NoError(t, err)
	_, err = s.Start(1)
	require.NoError(t, err)
	drawAll(t, s)

	_, err = s.Draw()
	assert.ErrorIs(t, err, ErrExhausted)

	info := s.Snapshot()
	assert.Equal(t, StatusFinished, info.Status)
	assert.Nil(t, info.Winner)
	assert.Equal(t, ReasonExhausted, info.Reason)

	refunds := s.Refunds()
	require.Len(t, refunds, 2)
	for i, rec := range refunds {
		assert.Equal(t, PayoutRefund, rec.Kind)
		assert.Equal(t, "5.00", rec.Amount.StringFixed(2))
		assert.Equal(t, int64(i+1), rec.UserId)
		assert.False(t, rec.Committed)
	}

	_, err = s.Draw()
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = s.Claim(1)
	assert.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestPayoutCommitAfterClaim(t *testing.T) {
	ctx := context.Background()
	card, err := ParseCard(1, midRowCard)
	require.NoError(t, err)
	env := newTestEnv(t, card)
	s := env.session(Config{})

	_, err = s.Join(ctx, user(1), 1)
	require.NoError(t, err)
	_, err = s.Start(1)
	require.NoError(t, err)
	drawAll(t, s)
	for _, n := range []int{7, 22, 49, 64} {
		_, err := s.Mark(1, n)
		require.NoError(t, err)
	}

	res, err := s.Claim(1)
	require.NoError(t, err)

	env.wallet.failCredit = true
	err = env.ledger.Commit(ctx, res.Record)
	assert.ErrorIs(t, err, ErrPayoutFailed)
	assert.False(t, res.Record.Committed)
	assert.Equal(t, StatusFinished, s.Status(), "credit failure never reopens the game")
	require.NotNil(t, s.Snapshot().Winner)

	env.wallet.failCredit = false
	require.NoError(t, env.ledger.Commit(ctx, res.Record))
	assert.True(t, res.Record.Committed)

	require.NoError(t, env.ledger.Commit(ctx, res.Record), "re-commit is a no-op")
	count := 0
	for _, ref := range env.wallet.credits {
		if ref == res.Record.Ref {
			count++
		}
	}
	assert.Equal(t, 1, count, "winner credited exactly once")
}
