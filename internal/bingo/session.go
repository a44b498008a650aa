// Package bingo holds the authoritative game core: cards, the draw pool,
// win detection, the per-room session state machine and payout accounting.
// A session is the single source of truth for its room; clients only see
// projections of it through published events.
package bingo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Finish reasons recorded at the terminal transition.
const (
	ReasonBingo     = "bingo"
	ReasonExhausted = "exhausted"
)

const DefaultMaxPlayers = 100

type User struct {
	Id   int64
	Name string
}

// Participant is one user's seat in a session: the assigned card and the
// numbers they have explicitly marked. The free center is implicit and
// never appears in the marked set.
type Participant struct {
	User     User
	CardNo   int
	JoinedAt time.Time

	card   *Card
	marked map[int]bool
}

// Card returns the participant's card.
func (p *Participant) Card() *Card {
	return p.card
}

// Marked returns the marked numbers in ascending order.
func (p *Participant) Marked() []int {
	nums := make([]int, 0, len(p.marked))
	for n := range p.marked {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Config carries the knobs and collaborators a session needs. Zero
// MinPlayers/MaxPlayers fall back to 1 and DefaultMaxPlayers.
type Config struct {
	Id       int64
	Room     string
	Creator  int64
	Private  bool
	EntryFee decimal.Decimal

	MinPlayers int
	MaxPlayers int

	Catalog CardCatalog
	Wallet  Wallet
	Ledger  *Ledger
}

// Session is the state machine for one game room. Every operation takes the
// session mutex, validates fully, then applies, so concurrent joins, marks,
// draws and claims are totally ordered and a failed call never leaves the
// state half mutated. Transitions only move forward: waiting, active,
// finished.
type Session struct {
	mu sync.Mutex

	id       int64
	room     string
	creator  int64
	private  bool
	entryFee decimal.Decimal
	minP     int
	maxP     int

	catalog CardCatalog
	wallet  Wallet
	ledger  *Ledger

	status    Status
	players   map[int64]*Participant
	cardOwner map[int]int64
	joinOrder []int64

	pool     *DrawPool
	drawn    []int
	drawnSet map[int]bool

	prize   decimal.Decimal
	winner  *Participant
	payout  *PayoutRecord
	refunds []*PayoutRecord
	reason  string

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

func NewSession(cfg Config) *Session {
	minP := cfg.MinPlayers
	if minP < 1 {
		minP = 1
	}
	maxP := cfg.MaxPlayers
	if maxP < 1 {
		maxP = DefaultMaxPlayers
	}
	return &Session{
		id:        cfg.Id,
		room:      cfg.Room,
		creator:   cfg.Creator,
		private:   cfg.Private,
		entryFee:  cfg.EntryFee,
		minP:      minP,
		maxP:      maxP,
		catalog:   cfg.Catalog,
		wallet:    cfg.Wallet,
		ledger:    cfg.Ledger,
		status:    StatusWaiting,
		players:   make(map[int64]*Participant),
		cardOwner: make(map[int]int64),
		drawnSet:  make(map[int]bool),
		prize:     decimal.Zero,
		createdAt: time.Now(),
	}
}

type JoinResult struct {
	User         User
	CardNo       int
	TotalPlayers int
}

// Join seats a user with the requested card and collects the entry fee.
// Waiting state only. The card must be free in this session and in the
// catalog; the debit happens after local validation so a rejected join
// never charges, and a failed catalog reservation refunds the fee.
func (s *Session) Join(ctx context.Context, user User, cardNo int) (*JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusWaiting {
		return nil, fmt.Errorf("join: %w: game is %s", ErrInvalidState, s.status)
	}
	if _, ok := s.players[user.Id]; ok {
		return nil, ErrAlreadyJoined
	}
	if len(s.players) >= s.maxP {
		return nil, ErrRoomFull
	}
	if owner, ok := s.cardOwner[cardNo]; ok {
		return nil, fmt.Errorf("%w: card %d held by user %d", ErrCardTaken, cardNo, owner)
	}

	card, err := s.catalog.Get(ctx, cardNo)
	if err != nil {
		return nil, err
	}
	if err := s.wallet.Debit(ctx, user.Id, s.entryFee, EntryFeeRef(s.id, user.Id)); err != nil {
		return nil, err
	}
	if err := s.catalog.Reserve(ctx, cardNo, s.room); err != nil {
		if cerr := s.wallet.Credit(ctx, user.Id, s.entryFee, RevertRef(s.id, user.Id)); cerr != nil {
			return nil, fmt.Errorf("reserve card %d: %w (entry fee revert also failed: %v)", cardNo, err, cerr)
		}
		return nil, err
	}

	p := &Participant{
		User:     user,
		CardNo:   cardNo,
		JoinedAt: time.Now(),
		card:     card,
		marked:   make(map[int]bool),
	}
	s.players[user.Id] = p
	s.cardOwner[cardNo] = user.Id
	s.joinOrder = append(s.joinOrder, user.Id)
	s.prize = s.prize.Add(s.entryFee)

	return &JoinResult{User: user, CardNo: cardNo, TotalPlayers: len(s.players)}, nil
}

type StartResult struct {
	Prize   decimal.Decimal
	Players int
}

// Start activates a waiting game. Only the creator may start; the roster
// must have reached the minimum. The prize pool is frozen from here on.
func (s *Session) Start(requester int64) (*StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requester != s.creator {
		return nil, fmt.Errorf("start: %w: user %d is not the creator", ErrForbidden, requester)
	}
	return s.startLocked()
}

// AutoStart is the scheduler entry point: same transition as Start without
// the creator check.
func (s *Session) AutoStart() (*StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() (*StartResult, error) {
	if s.status != StatusWaiting {
		return nil, fmt.Errorf("start: %w: game is %s", ErrInvalidState, s.status)
	}
	if len(s.players) < s.minP {
		return nil, fmt.Errorf("start: %w: %d of %d players", ErrInvalidState, len(s.players), s.minP)
	}

	s.pool = NewDrawPool()
	s.status = StatusActive
	s.startedAt = time.Now()
	return &StartResult{Prize: s.prize, Players: len(s.players)}, nil
}

type DrawResult struct {
	Number     int
	TotalDrawn int
	History    []int
}

// Draw reveals the next number. Active state only. When the pool runs dry
// the game finishes with no winner and every participant gets a pending
// entry-fee refund; the caller observes that terminal draw as ErrExhausted.
func (s *Session) Draw() (*DrawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, fmt.Errorf("draw: %w: game is %s", ErrInvalidState, s.status)
	}

	n, err := s.pool.Draw()
	if err != nil {
		s.finishLocked(nil, ReasonExhausted)
		s.refunds = s.ledger.Refunds(s.id, s.participantsLocked(), s.entryFee)
		return nil, err
	}

	s.drawn = append(s.drawn, n)
	s.drawnSet[n] = true
	return &DrawResult{
		Number:     n,
		TotalDrawn: len(s.drawn),
		History:    append([]int(nil), s.drawn...),
	}, nil
}

type MarkResult struct {
	Number      int
	TotalMarked int
	Already     bool
}

// Mark records a participant's acknowledgment of a called number. Active
// state only; the number must be both drawn and on the caller's card.
// Re-marking is a no-op success, so the marked set only ever grows.
func (s *Session) Mark(userId int64, number int) (*MarkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, fmt.Errorf("mark: %w: game is %s", ErrInvalidState, s.status)
	}
	p, ok := s.players[userId]
	if !ok {
		return nil, fmt.Errorf("mark: %w: user %d not in game", ErrNotFound, userId)
	}
	if !s.drawnSet[number] {
		return nil, fmt.Errorf("mark: %w: %d", ErrNotDrawn, number)
	}
	if !p.card.Contains(number) {
		return nil, fmt.Errorf("mark: %w: %d", ErrNotOnCard, number)
	}

	if p.marked[number] {
		return &MarkResult{Number: number, TotalMarked: len(p.marked), Already: true}, nil
	}
	p.marked[number] = true
	return &MarkResult{Number: number, TotalMarked: len(p.marked)}, nil
}

type ClaimResult struct {
	Winner User
	CardNo int
	Prize  decimal.Decimal
	Record *PayoutRecord
}

// Claim arbitrates a bingo call. The mark grid, not raw drawn membership,
// decides the win. The first valid claim records the winner, computes the
// prize, creates the pending payout record and finishes the game in one
// critical section; every later claim, winning grid or not, gets
// ErrAlreadyFinished. The wallet credit for the record runs outside the
// lock via Ledger.Commit.
func (s *Session) Claim(userId int64) (*ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished:
		return nil, ErrAlreadyFinished
	case StatusWaiting:
		return nil, fmt.Errorf("claim: %w: game is %s", ErrInvalidState, s.status)
	}
	p, ok := s.players[userId]
	if !ok {
		return nil, fmt.Errorf("claim: %w: user %d not in game", ErrNotFound, userId)
	}

	if !HasBingo(MarkGrid(p.card, p.marked)) {
		return nil, ErrNotAWin
	}

	prize := s.ledger.Prize(s.prize)
	rec := &PayoutRecord{
		GameId: s.id,
		UserId: userId,
		Kind:   PayoutPrize,
		Amount: prize,
		Ref:    PrizeRef(s.id, userId),
	}
	s.payout = rec
	s.finishLocked(p, ReasonBingo)

	return &ClaimResult{Winner: p.User, CardNo: p.CardNo, Prize: prize, Record: rec}, nil
}

func (s *Session) finishLocked(winner *Participant, reason string) {
	s.status = StatusFinished
	s.winner = winner
	s.reason = reason
	s.finishedAt = time.Now()
}

func (s *Session) participantsLocked() []*Participant {
	ps := make([]*Participant, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		ps = append(ps, s.players[id])
	}
	return ps
}

func (s *Session) Id() int64                 { return s.id }
func (s *Session) Room() string              { return s.room }
func (s *Session) Creator() int64            { return s.creator }
func (s *Session) Private() bool             { return s.private }
func (s *Session) EntryFee() decimal.Decimal { return s.entryFee }

// Status returns the current state under the session lock.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Payout returns the winner's payout record, nil before a bingo finish.
func (s *Session) Payout() *PayoutRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payout
}

// Refunds returns the refund records of a no-winner finish, nil otherwise.
func (s *Session) Refunds() []*PayoutRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*PayoutRecord(nil), s.refunds...)
}

type PlayerInfo struct {
	User     User
	CardNo   int
	Marked   []int
	JoinedAt time.Time
}

type RoomInfo struct {
	Id       int64
	Room     string
	Status   Status
	Private  bool
	Creator  int64
	EntryFee decimal.Decimal
	Prize    decimal.Decimal

	Players []PlayerInfo
	Drawn   []int

	Winner *User
	Reason string

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot returns a consistent copy of the room for listings and state
// replies. Nothing in the result aliases session internals.
func (s *Session) Snapshot() RoomInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := RoomInfo{
		Id:         s.id,
		Room:       s.room,
		Status:     s.status,
		Private:    s.private,
		Creator:    s.creator,
		EntryFee:   s.entryFee,
		Prize:      s.prize,
		Drawn:      append([]int(nil), s.drawn...),
		Reason:     s.reason,
		CreatedAt:  s.createdAt,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	for _, id := range s.joinOrder {
		p := s.players[id]
		info.Players = append(info.Players, PlayerInfo{
			User:     p.User,
			CardNo:   p.CardNo,
			Marked:   p.Marked(),
			JoinedAt: p.JoinedAt,
		})
	}
	if s.winner != nil {
		u := s.winner.User
		info.Winner = &u
	}
	return info
}
