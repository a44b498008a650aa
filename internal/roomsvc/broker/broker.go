// Package broker is the room service's NATS edge. It fans intents from
// the socket gateway into the live sessions, writes results through to
// postgres, and publishes room events back for the gateway to deliver.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/catalog"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/caller"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/config"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/registry"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/wallet"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	natsConn *nats.Conn

	reg     *registry.Registry
	catalog *catalog.Store
	wallet  *wallet.Ledger
	ledger  *bingo.Ledger
	cfg     *config.Config

	gameService   *service.GameService
	playerService *service.PlayerService
	userService   *service.UserService
	payoutService *service.PayoutService

	drawInterval time.Duration
}

func NewBroker(
	natsConn *nats.Conn,
	reg *registry.Registry,
	cat *catalog.Store,
	wal *wallet.Ledger,
	ledger *bingo.Ledger,
	cfg *config.Config,
	gameService *service.GameService,
	playerService *service.PlayerService,
	userService *service.UserService,
	payoutService *service.PayoutService,
) *Broker {
	return &Broker{
		natsConn:      natsConn,
		reg:           reg,
		catalog:       cat,
		wallet:        wal,
		ledger:        ledger,
		cfg:           cfg,
		gameService:   gameService,
		playerService: playerService,
		userService:   userService,
		payoutService: payoutService,
		drawInterval:  time.Duration(cfg.DrawIntervalSecs) * time.Second,
	}
}

// QueueSubscribeIntents binds the intent topic. The queue group keeps a
// restarted instance from double handling while the old one drains.
func (b *Broker) QueueSubscribeIntents(queueGroup string) (*nats.Subscription, error) {
	return b.natsConn.QueueSubscribe(comm.TopicRoomIntent, queueGroup, b.HandleIntent)
}

func (b *Broker) Publish(topic string, data []byte) error {
	return b.natsConn.Publish(topic, data)
}

func (b *Broker) HandleIntent(m *nats.Msg) {
	var msg comm.WSMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Errorf("Error unmarshalling intent envelope: %s", err)
		return
	}

	switch msg.Type {
	case comm.TypeCreateRoom:
		var req comm.CreateRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling create_room: %s", err)
			return
		}
		b.handleCreateRoom(&req, msg.SocketId)

	case comm.TypeJoin:
		var req comm.JoinRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling join: %s", err)
			return
		}
		b.handleJoin(&req, msg.SocketId)

	case comm.TypeStartGame:
		var req comm.StartRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling start_game: %s", err)
			return
		}
		b.handleStart(&req, msg.SocketId)

	case comm.TypeDraw:
		var req comm.DrawRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling draw: %s", err)
			return
		}
		b.handleDraw(&req, msg.SocketId)

	case comm.TypeMark:
		var req comm.MarkRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling mark: %s", err)
			return
		}
		b.handleMark(&req, msg.SocketId)

	case comm.TypeClaimBingo:
		var req comm.ClaimRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling claim_bingo: %s", err)
			return
		}
		b.handleClaim(&req, msg.SocketId)

	case comm.TypeRoomState:
		var req comm.RoomStateRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error unmarshalling room_state: %s", err)
			return
		}
		b.handleRoomState(&req, msg.SocketId)

	default:
		log.Warnf("Unknown intent type: %s", msg.Type)
	}
}

func (b *Broker) handleCreateRoom(req *comm.CreateRoomRequest, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fee := b.cfg.EntryFee
	if req.EntryFee != "" {
		parsed, err := decimal.NewFromString(req.EntryFee)
		if err != nil || parsed.LessThanOrEqual(decimal.Zero) {
			b.PublishError(socketId, fmt.Errorf("entry fee must be a positive amount: %w", bingo.ErrBadRequest))
			return
		}
		fee = parsed
	}

	if _, err := b.userService.GetOrCreateUser(ctx, int(req.UserId), req.Name); err != nil {
		log.Errorf("Error [UserService.GetOrCreateUser]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	code, err := b.reg.NewRoomCode()
	if err != nil {
		log.Errorf("Error [Registry.NewRoomCode]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	game, err := b.gameService.CreateGame(ctx, code, int(req.UserId), req.Private, fee)
	if err != nil {
		log.Errorf("Error [GameService.CreateGame]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	s := bingo.NewSession(bingo.Config{
		Id:         int64(game.ID),
		Room:       code,
		Creator:    req.UserId,
		Private:    req.Private,
		EntryFee:   fee,
		MinPlayers: b.cfg.MinPlayers,
		MaxPlayers: b.cfg.MaxPlayers,
		Catalog:    b.catalog,
		Wallet:     b.wallet,
		Ledger:     b.ledger,
	})
	if err := b.reg.Put(code, s); err != nil {
		log.Errorf("Error [Registry.Put]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	log.Infof("room %s created by user %d, game %d", code, req.UserId, game.ID)
	b.PublishRoomCreated(socketId, comm.RoomCreated{
		Room:     code,
		EntryFee: fee.StringFixed(2),
		Private:  req.Private,
		Creator:  req.UserId,
	})
}

func (b *Broker) handleJoin(req *comm.JoinRequest, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room := req.Room
	if room == "" {
		room = registry.PublicRoom
	}
	s, err := b.reg.Get(room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}

	res, err := s.Join(ctx, bingo.User{Id: req.UserId, Name: req.Name}, req.CardNo)
	if err != nil {
		log.Errorf("Error [Session.Join]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	// postgres trails the session; a failed write is logged, not unwound
	if _, err := b.userService.GetOrCreateUser(ctx, int(req.UserId), req.Name); err != nil {
		log.Errorf("Error [UserService.GetOrCreateUser]: %s", err)
	}
	if _, err := b.playerService.CreatePlayerIfAvailable(ctx, int(s.Id()), int(req.UserId), req.CardNo, s.EntryFee()); err != nil {
		log.Errorf("Error [PlayerService.CreatePlayerIfAvailable]: %s", err)
	}

	card, err := b.catalog.Get(ctx, req.CardNo)
	if err != nil {
		log.Errorf("Error [Catalog.Get]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	b.PublishJoined(socketId, comm.JoinedReply{
		Room:         room,
		CardNo:       res.CardNo,
		Grid:         gridRows(card),
		EntryFee:     s.EntryFee().StringFixed(2),
		TotalPlayers: res.TotalPlayers,
	})
	b.PublishPlayerJoined(room, comm.PlayerJoined{
		UserId:       req.UserId,
		Name:         req.Name,
		CardNo:       res.CardNo,
		TotalPlayers: res.TotalPlayers,
	})
}

func (b *Broker) handleStart(req *comm.StartRequest, socketId string) {
	s, err := b.reg.Get(req.Room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}

	res, err := s.Start(req.UserId)
	if err != nil {
		log.Errorf("Error [Session.Start]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	b.GameStarted(s, res)
}

// GameStarted persists the activation, announces it and spins up the
// number caller. Shared by the creator's start intent and the auto starter.
func (b *Broker) GameStarted(s *bingo.Session, res *bingo.StartResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := s.Snapshot()
	if err := b.gameService.ActivateGame(ctx, int(s.Id()), res.Prize, snap.StartedAt); err != nil {
		log.Errorf("Error [GameService.ActivateGame]: %s", err)
	}

	log.Infof("room %s started with %d players, prize %s", s.Room(), res.Players, res.Prize.StringFixed(2))
	b.PublishGameStarted(s.Room(), comm.GameStarted{
		Room:      s.Room(),
		PrizePool: res.Prize.StringFixed(2),
	})
	b.startCaller(s)
}

func (b *Broker) startCaller(s *bingo.Session) {
	c := caller.New(b.drawInterval, b.onDraw, b.onExhausted)
	go c.Run(context.Background(), s)
}

func (b *Broker) onDraw(s *bingo.Session, res *bingo.DrawResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.gameService.UpdateDrawn(ctx, int(s.Id()), res.History); err != nil {
		log.Errorf("Error [GameService.UpdateDrawn]: %s", err)
	}
	b.PublishNumberDrawn(s.Room(), comm.NumberDrawn{
		Room:       s.Room(),
		Number:     res.Number,
		TotalDrawn: res.TotalDrawn,
		History:    res.History,
	})
}

func (b *Broker) onExhausted(s *bingo.Session) {
	b.finishExhausted(s)
}

func (b *Broker) handleDraw(req *comm.DrawRequest, socketId string) {
	s, err := b.reg.Get(req.Room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}
	if req.UserId != s.Creator() {
		b.PublishError(socketId, bingo.ErrForbidden)
		return
	}

	res, err := s.Draw()
	if err != nil {
		if errors.Is(err, bingo.ErrExhausted) {
			b.finishExhausted(s)
			return
		}
		log.Errorf("Error [Session.Draw]: %s", err)
		b.PublishError(socketId, err)
		return
	}
	b.onDraw(s, res)
}

func (b *Broker) handleMark(req *comm.MarkRequest, socketId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := b.reg.Get(req.Room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}

	res, err := s.Mark(req.UserId, req.Number)
	if err != nil {
		log.Errorf("Error [Session.Mark]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	if !res.Already {
		snap := s.Snapshot()
		for _, p := range snap.Players {
			if p.User.Id == req.UserId {
				if err := b.playerService.UpdateMarked(ctx, int(s.Id()), int(req.UserId), p.Marked); err != nil {
					log.Errorf("Error [PlayerService.UpdateMarked]: %s", err)
				}
				break
			}
		}
	}

	b.PublishMarked(socketId, comm.MarkedReply{
		Room:        req.Room,
		Number:      res.Number,
		TotalMarked: res.TotalMarked,
		Already:     res.Already,
	})
}

func (b *Broker) handleClaim(req *comm.ClaimRequest, socketId string) {
	s, err := b.reg.Get(req.Room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}

	res, err := s.Claim(req.UserId)
	if err != nil {
		log.Errorf("Error [Session.Claim]: %s", err)
		b.PublishError(socketId, err)
		return
	}

	log.Infof("room %s bingo by user %d, prize %s", s.Room(), res.Winner.Id, res.Prize.StringFixed(2))
	b.PublishBingo(s.Room(), comm.BingoWin{
		Room:        s.Room(),
		WinnerId:    res.Winner.Id,
		WinnerName:  res.Winner.Name,
		PrizeAmount: res.Prize.StringFixed(2),
	})
	b.finishBingo(s, res)
}

// finishBingo settles a claimed win: close the game row, flip player
// results, bump lifetime stats, pay the prize and tear the room down.
func (b *Broker) finishBingo(s *bingo.Session, res *bingo.ClaimResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := s.Snapshot()
	gameID := int(s.Id())
	winnerID := int(res.Winner.Id)

	if err := b.gameService.FinishGame(ctx, gameID, &winnerID, bingo.ReasonBingo, snap.Drawn, snap.FinishedAt); err != nil {
		log.Errorf("Error [GameService.FinishGame]: %s", err)
	}
	if err := b.playerService.SettleWinner(ctx, gameID, winnerID, res.Prize); err != nil {
		log.Errorf("Error [PlayerService.SettleWinner]: %s", err)
	}
	for _, p := range snap.Players {
		won := p.User.Id == res.Winner.Id
		amount := decimal.Zero
		if won {
			amount = res.Prize
		}
		if err := b.userService.ApplyGameResult(ctx, int(p.User.Id), won, amount); err != nil {
			log.Errorf("Error [UserService.ApplyGameResult]: %s", err)
		}
	}

	payout, err := b.payoutService.CreatePending(ctx, gameID, winnerID, string(bingo.PayoutPrize), res.Prize, res.Record.Ref)
	if err != nil {
		log.Errorf("Error [PayoutService.CreatePending]: %s", err)
	}
	if err := b.ledger.Commit(ctx, res.Record); err != nil {
		// leave the payout row pending; the settle worker retries it
		log.Errorf("Error [Ledger.Commit]: %s", err)
		b.PublishSettle(s.Id())
	} else if payout != nil {
		if _, err := b.payoutService.MarkSettled(ctx, payout.ID, time.Now()); err != nil {
			log.Errorf("Error [PayoutService.MarkSettled]: %s", err)
		}
	}

	b.teardownRoom(ctx, s)
}

// finishExhausted settles a no-winner finish: everyone gets the entry
// fee back and the game row records the exhausted reason.
func (b *Broker) finishExhausted(s *bingo.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := s.Snapshot()
	gameID := int(s.Id())

	if err := b.gameService.FinishGame(ctx, gameID, nil, bingo.ReasonExhausted, snap.Drawn, snap.FinishedAt); err != nil {
		log.Errorf("Error [GameService.FinishGame]: %s", err)
	}
	if err := b.playerService.SettleRefunds(ctx, gameID); err != nil {
		log.Errorf("Error [PlayerService.SettleRefunds]: %s", err)
	}
	for _, p := range snap.Players {
		if err := b.userService.ApplyGameResult(ctx, int(p.User.Id), false, decimal.Zero); err != nil {
			log.Errorf("Error [UserService.ApplyGameResult]: %s", err)
		}
	}

	retryNeeded := false
	for _, rec := range s.Refunds() {
		payout, err := b.payoutService.CreatePending(ctx, gameID, int(rec.UserId), string(bingo.PayoutRefund), rec.Amount, rec.Ref)
		if err != nil {
			log.Errorf("Error [PayoutService.CreatePending]: %s", err)
			continue
		}
		if err := b.ledger.Commit(ctx, rec); err != nil {
			log.Errorf("Error [Ledger.Commit]: %s", err)
			retryNeeded = true
			continue
		}
		if _, err := b.payoutService.MarkSettled(ctx, payout.ID, time.Now()); err != nil {
			log.Errorf("Error [PayoutService.MarkSettled]: %s", err)
		}
	}
	if retryNeeded {
		b.PublishSettle(s.Id())
	}

	log.Infof("room %s exhausted the pool, %d refunds", s.Room(), len(snap.Players))
	b.PublishGameFinished(s.Room(), comm.GameFinished{
		Room:   s.Room(),
		Reason: bingo.ReasonExhausted,
	})

	b.teardownRoom(ctx, s)
}

// teardownRoom frees the cards, unregisters the session and, for the
// public lobby, opens the next game immediately.
func (b *Broker) teardownRoom(ctx context.Context, s *bingo.Session) {
	if err := b.catalog.ReleaseRoom(ctx, s.Room()); err != nil {
		log.Errorf("Error [Catalog.ReleaseRoom]: %s", err)
	}
	b.reg.Remove(s.Room())

	if s.Room() == registry.PublicRoom {
		if err := b.EnsurePublicRoom(context.Background()); err != nil {
			log.Errorf("Error [Broker.EnsurePublicRoom]: %s", err)
		}
	}
}

func (b *Broker) handleRoomState(req *comm.RoomStateRequest, socketId string) {
	s, err := b.reg.Get(req.Room)
	if err != nil {
		b.PublishError(socketId, err)
		return
	}

	snap := s.Snapshot()
	state := comm.RoomState{
		Room:      snap.Room,
		Status:    string(snap.Status),
		EntryFee:  snap.EntryFee.StringFixed(2),
		PrizePool: snap.Prize.StringFixed(2),
		Creator:   snap.Creator,
		Drawn:     snap.Drawn,
		Reason:    snap.Reason,
	}
	if snap.Winner != nil {
		state.WinnerId = snap.Winner.Id
	}
	for _, p := range snap.Players {
		ps := comm.PlayerState{
			UserId: p.User.Id,
			Name:   p.User.Name,
			CardNo: p.CardNo,
		}
		if p.User.Id == req.UserId {
			ps.Marked = p.Marked
		}
		state.Players = append(state.Players, ps)
	}

	b.PublishRoomState(socketId, state)
}

// EnsurePublicRoom opens the always-on lobby game if it is not already
// registered. Called at boot and whenever a public game closes.
func (b *Broker) EnsurePublicRoom(ctx context.Context) error {
	if _, err := b.reg.Get(registry.PublicRoom); err == nil {
		return nil
	}

	game, err := b.gameService.CreateGame(ctx, registry.PublicRoom, 0, false, b.cfg.EntryFee)
	if err != nil {
		return err
	}

	s := bingo.NewSession(bingo.Config{
		Id:         int64(game.ID),
		Room:       registry.PublicRoom,
		Creator:    0,
		Private:    false,
		EntryFee:   b.cfg.EntryFee,
		MinPlayers: b.cfg.MinPlayers,
		MaxPlayers: b.cfg.MaxPlayers,
		Catalog:    b.catalog,
		Wallet:     b.wallet,
		Ledger:     b.ledger,
	})
	if err := b.reg.Put(registry.PublicRoom, s); err != nil {
		return err
	}

	log.Infof("public room open, game %d", game.ID)
	return nil
}

func gridRows(card *bingo.Card) [][]int {
	rows := make([][]int, bingo.GridSize)
	for r := 0; r < bingo.GridSize; r++ {
		rows[r] = make([]int, bingo.GridSize)
		for c := 0; c < bingo.GridSize; c++ {
			rows[r][c] = card.CellAt(r, c)
		}
	}
	return rows
}

// publish wraps a payload in the socket envelope and sends it on the
// events topic. Room targets a fan-out, SocketId a single client.
func (b *Broker) publish(msgType, room, socketId string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Error marshalling %s payload: %s", msgType, err)
		return
	}
	msg := &comm.WSMessage{Type: msgType, Data: data, SocketId: socketId, Room: room}
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshalling %s message: %s", msgType, err)
		return
	}
	if err := b.natsConn.Publish(comm.TopicRoomEvents, raw); err != nil {
		log.Errorf("Error publishing %s: %s", msgType, err)
	}
}

func (b *Broker) PublishRoomCreated(socketId string, p comm.RoomCreated) {
	b.publish(comm.TypeRoomCreated, "", socketId, p)
}

func (b *Broker) PublishJoined(socketId string, p comm.JoinedReply) {
	b.publish(comm.TypeJoined, "", socketId, p)
}

func (b *Broker) PublishPlayerJoined(room string, p comm.PlayerJoined) {
	b.publish(comm.TypePlayerJoined, room, "", p)
}

func (b *Broker) PublishGameStarted(room string, p comm.GameStarted) {
	b.publish(comm.TypeGameStarted, room, "", p)
}

func (b *Broker) PublishNumberDrawn(room string, p comm.NumberDrawn) {
	b.publish(comm.TypeNumberDrawn, room, "", p)
}

func (b *Broker) PublishMarked(socketId string, p comm.MarkedReply) {
	b.publish(comm.TypeMarked, "", socketId, p)
}

func (b *Broker) PublishBingo(room string, p comm.BingoWin) {
	b.publish(comm.TypeBingo, room, "", p)
}

func (b *Broker) PublishGameFinished(room string, p comm.GameFinished) {
	b.publish(comm.TypeGameFinished, room, "", p)
}

func (b *Broker) PublishRoomState(socketId string, p comm.RoomState) {
	b.publish(comm.TypeRoomState, "", socketId, p)
}

func (b *Broker) PublishError(socketId string, err error) {
	b.publish(comm.TypeError, "", socketId, comm.ErrorReply{
		Code:    bingo.Code(err),
		Message: err.Error(),
	})
}

// PublishSettle nudges the settlement worker on its own topic.
func (b *Broker) PublishSettle(gameId int64) {
	data, err := json.Marshal(comm.SettleRequest{GameId: gameId})
	if err != nil {
		log.Errorf("Error marshalling settle request: %s", err)
		return
	}
	msg := &comm.WSMessage{Type: comm.TypeSettle, Data: data}
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshalling settle message: %s", err)
		return
	}
	if err := b.natsConn.Publish(comm.TopicSettle, raw); err != nil {
		log.Errorf("Error publishing settle request: %s", err)
	}
}
