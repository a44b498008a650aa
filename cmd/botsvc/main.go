package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/catalog"
	"github.com/avvvet/bingo-rooms/internal/comm"
	natscli "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/avvvet/bingo-rooms/internal/wallet"
)

const SERVICE_NAME = "bot"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// Bot user IDs - sequential starting from 9000000001
var botUserIDs = []int64{
	9000000001, 9000000002, 9000000003, 9000000004, 9000000005,
	9000000006, 9000000007, 9000000008, 9000000009, 9000000010,
}

// Bot names - mix of first names only and first+last names
var botNames = []string{
	"Selam", "natnael", "Meklit Abera", "eyob", "Hanna",
	"Biniyam Tadesse", "saron", "Yared Kassa", "tsion", "Elias",
}

// seedAmount funds a fresh bot wallet once; the fixed tref keeps the
// deposit from ever applying twice.
var seedAmount = decimal.NewFromInt(500)

// botState tracks one seated bot for the lifetime of a game.
type botState struct {
	Room    string
	UserID  int64
	Card    *bingo.Card
	Marked  map[int]bool
	Claimed bool
}

type botSvc struct {
	nc            *natscli.Nats
	userService   *service.UserService
	gameService   *service.GameService
	playerService *service.PlayerService
	catalog       *catalog.Store
	wallet        *wallet.Ledger

	fillTo int // total seats (humans + bots) to aim for per public room

	mu     sync.Mutex
	states map[string]*botState // key: room_userID
}

func isBotUserID(userID int64) bool {
	for _, id := range botUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func botName(userID int64) string {
	for i, id := range botUserIDs {
		if id == userID {
			return botNames[i]
		}
	}
	return fmt.Sprintf("bot %d", userID)
}

func stateKey(room string, userID int64) string {
	return fmt.Sprintf("%s_%d", room, userID)
}

// ensureBotAccounts creates the bot user rows if they don't exist.
func (s *botSvc) ensureBotAccounts(ctx context.Context) error {
	for i, userID := range botUserIDs {
		user, err := s.userService.GetOrCreateUser(ctx, int(userID), botNames[i])
		if err != nil {
			return fmt.Errorf("failed to ensure bot account %d: %w", userID, err)
		}
		log.Printf("Bot account ready: ID=%d, Name='%s'", user.ID, user.Name)
	}
	return nil
}

// seedBotWallets funds bots that have never held a balance.
func (s *botSvc) seedBotWallets(ctx context.Context) {
	for _, userID := range botUserIDs {
		bal, err := s.wallet.Balance(ctx, userID)
		if err != nil {
			log.Errorf("Error [Ledger.Balance] bot %d: %s", userID, err)
			continue
		}

		if !bal.IsZero() {
			log.Printf("Bot %d already holds %s, skipping seed", userID, bal.StringFixed(2))
			continue
		}

		tref := fmt.Sprintf("BOT-INIT-%d", userID)
		if err := s.wallet.Credit(ctx, userID, seedAmount, tref); err != nil {
			log.Errorf("Error [Ledger.Credit] bot %d: %s", userID, err)
			continue
		}
		log.Printf("Seeded bot %d wallet with %s", userID, seedAmount.StringFixed(2))
	}
}

// publishIntent sends an intent the same way the socket gateway does,
// with no socket id since nothing needs to answer a bot directly.
func (s *botSvc) publishIntent(msgType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.nc.PublishJSON(comm.TopicRoomIntent, &comm.WSMessage{Type: msgType, Data: data})
}

// sweep tops up every waiting public room that already has a human in it.
// Bots never seed an empty room: an all-bot game would auto-start and
// grind the catalog with nobody watching.
func (s *botSvc) sweep(ctx context.Context) {
	games, err := s.gameService.ListGamesByStatus(ctx, "waiting")
	if err != nil {
		log.Errorf("Error [GameService.ListGamesByStatus]: %s", err)
		return
	}

	for _, game := range games {
		if game.IsPrivate {
			continue
		}
		if err := s.fillRoom(ctx, game); err != nil {
			log.Errorf("Error filling room %s: %s", game.RoomCode, err)
		}
	}
}

// fillRoom adds at most one bot per sweep so seats fill at a human pace.
func (s *botSvc) fillRoom(ctx context.Context, game *models.Game) error {
	players, err := s.playerService.GetPlayersByGameID(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("get game players: %w", err)
	}

	humans := 0
	seated := make(map[int64]bool)
	for _, p := range players {
		if isBotUserID(int64(p.UserID)) {
			seated[int64(p.UserID)] = true
		} else {
			humans++
		}
	}

	if humans == 0 || len(players) >= s.fillTo {
		return nil
	}

	available := make([]int64, 0, len(botUserIDs))
	for _, id := range botUserIDs {
		if !seated[id] {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		log.Warnf("No free bots left for room %s", game.RoomCode)
		return nil
	}

	botID := available[rand.Intn(len(available))]

	bal, err := s.wallet.Balance(ctx, botID)
	if err != nil {
		return fmt.Errorf("check bot %d balance: %w", botID, err)
	}
	if bal.LessThan(game.EntryFee) {
		log.Warnf("Bot %d balance %s below entry fee %s for room %s, skipping",
			botID, bal.StringFixed(2), game.EntryFee.StringFixed(2), game.RoomCode)
		return nil
	}

	cardNo, err := s.pickFreeCard(ctx)
	if err != nil {
		return err
	}

	log.Printf("Bot %d joining room %s with card %d (%d/%d seats filled)",
		botID, game.RoomCode, cardNo, len(players), s.fillTo)

	return s.publishIntent(comm.TypeJoin, comm.JoinRequest{
		Room:   game.RoomCode,
		UserId: botID,
		Name:   botName(botID),
		CardNo: cardNo,
	})
}

// pickFreeCard picks a random unreserved card from the catalog. A lost
// race on the reservation just fails the join; the next sweep retries.
func (s *botSvc) pickFreeCard(ctx context.Context) (int, error) {
	rows, err := s.catalog.List(ctx, 400)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}

	free := make([]int, 0, len(rows))
	for _, row := range rows {
		if !row.Reserved {
			free = append(free, row.CardNo)
		}
	}
	if len(free) == 0 {
		return 0, fmt.Errorf("no unreserved cards in the catalog")
	}

	return free[rand.Intn(len(free))], nil
}

// handleEvent follows the room event stream so bots can mark their own
// cards and shout bingo like everyone else.
func (s *botSvc) handleEvent(m *nats.Msg) {
	var ws comm.WSMessage
	if err := json.Unmarshal(m.Data, &ws); err != nil {
		log.Errorf("Error [botSvc.handleEvent]: %s", err)
		return
	}

	switch ws.Type {
	case comm.TypePlayerJoined:
		s.onPlayerJoined(ws)
	case comm.TypeNumberDrawn:
		s.onNumberDrawn(ws)
	case comm.TypeBingo, comm.TypeGameFinished:
		s.onRoomFinished(ws.Room)
	}
}

// onPlayerJoined loads the card grid when a seated player turns out to be
// one of ours.
func (s *botSvc) onPlayerJoined(ws comm.WSMessage) {
	var ev comm.PlayerJoined
	if err := json.Unmarshal(ws.Data, &ev); err != nil {
		log.Errorf("Error [botSvc.onPlayerJoined]: %s", err)
		return
	}

	if !isBotUserID(ev.UserId) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	card, err := s.catalog.Get(ctx, ev.CardNo)
	if err != nil {
		log.Errorf("Error loading card %d for bot %d: %s", ev.CardNo, ev.UserId, err)
		return
	}

	s.mu.Lock()
	s.states[stateKey(ws.Room, ev.UserId)] = &botState{
		Room:   ws.Room,
		UserID: ev.UserId,
		Card:   card,
		Marked: make(map[int]bool),
	}
	s.mu.Unlock()

	log.Printf("Bot %d seated in room %s with card %d", ev.UserId, ws.Room, ev.CardNo)
}

// onNumberDrawn marks the called number on every bot card in the room and
// claims when a line completes.
func (s *botSvc) onNumberDrawn(ws comm.WSMessage) {
	var ev comm.NumberDrawn
	if err := json.Unmarshal(ws.Data, &ev); err != nil {
		log.Errorf("Error [botSvc.onNumberDrawn]: %s", err)
		return
	}

	var marks []comm.MarkRequest
	var claims []comm.ClaimRequest

	s.mu.Lock()
	for _, st := range s.states {
		if st.Room != ev.Room || st.Claimed {
			continue
		}
		if !st.Card.Contains(ev.Number) || st.Marked[ev.Number] {
			continue
		}

		st.Marked[ev.Number] = true
		marks = append(marks, comm.MarkRequest{Room: st.Room, UserId: st.UserID, Number: ev.Number})

		if bingo.HasBingo(bingo.MarkGrid(st.Card, st.Marked)) {
			st.Claimed = true
			claims = append(claims, comm.ClaimRequest{Room: st.Room, UserId: st.UserID})
		}
	}
	s.mu.Unlock()

	for _, mark := range marks {
		if err := s.publishIntent(comm.TypeMark, mark); err != nil {
			log.Errorf("Error publishing mark for bot %d: %s", mark.UserId, err)
		}
	}

	for _, claim := range claims {
		// small pause before claiming so bots don't read as instant
		delay := time.Duration(1+rand.Intn(3)) * time.Second
		log.Printf("🎉 Bot %d has bingo in room %s, claiming in %s", claim.UserId, claim.Room, delay)

		go func(claim comm.ClaimRequest) {
			time.Sleep(delay)
			if err := s.publishIntent(comm.TypeClaimBingo, claim); err != nil {
				log.Errorf("Error publishing claim for bot %d: %s", claim.UserId, err)
				return
			}
			log.Printf("📢 Bot %d published bingo claim for room %s", claim.UserId, claim.Room)
		}(claim)
	}
}

// onRoomFinished drops the bot states of a settled room.
func (s *botSvc) onRoomFinished(room string) {
	if room == "" {
		return
	}

	s.mu.Lock()
	cleaned := 0
	for key, st := range s.states {
		if st.Room == room {
			delete(s.states, key)
			cleaned++
		}
	}
	s.mu.Unlock()

	if cleaned > 0 {
		log.Printf("Room %s finished, cleared %d bot states", room, cleaned)
	}
}

func main() {
	fillTo := 4
	if v := os.Getenv("BOT_FILL_TO"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid BOT_FILL_TO value: %s", v)
		}
		fillTo = n
	}

	sweepEvery := 5 * time.Second
	if v := os.Getenv("BOT_SWEEP_SECS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid BOT_SWEEP_SECS value: %s", v)
		}
		sweepEvery = time.Duration(n) * time.Second
	}

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	svc := &botSvc{
		nc:            n,
		userService:   service.NewUserService(store.NewUserStore(dbpool)),
		gameService:   service.NewGameService(store.NewGameStore(dbpool)),
		playerService: service.NewPlayerService(store.NewGamePlayerStore(dbpool)),
		catalog:       catalog.NewStore(dbpool),
		wallet:        wallet.NewLedger(dbpool),
		fillTo:        fillTo,
		states:        make(map[string]*botState),
	}

	ctx := context.Background()

	if err := svc.ensureBotAccounts(ctx); err != nil {
		log.Fatalf("Failed to ensure bot accounts: %v", err)
	}
	svc.seedBotWallets(ctx)

	sub, err := n.Conn.Subscribe(comm.TopicRoomEvents, svc.handleEvent)
	if err != nil {
		log.Errorf("Error: unable to subscribe to room events %v", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	log.Infof("%s service watching public rooms every %s", SERVICE_NAME, sweepEvery)
	for {
		select {
		case <-ticker.C:
			svc.sweep(ctx)
		case <-stop:
			log.Infof("%s service gracefully stopped", SERVICE_NAME)
			return
		}
	}
}
