package comm

import (
	"encoding/json"
)

// Topics shared by the services.
const (
	TopicRoomIntent = "room.intent"
	TopicRoomEvents = "room.events"
	TopicSettle     = "room.settle"
)

// PublicRoom is the room code of the always-on lobby.
const PublicRoom = "public"

// WSMessage is the envelope for every message crossing the socket/NATS
// bridge. Room, when set on an outbound event, asks the gateway to fan the
// message out to every socket joined to that room; otherwise SocketId
// addresses a single client.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join", "number_drawn"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	Room     string          `json:"room,omitempty"`
}

// Inbound intent types.
const (
	TypeCreateRoom = "create_room"
	TypeJoin       = "join"
	TypeStartGame  = "start_game"
	TypeMark       = "mark"
	TypeClaimBingo = "claim_bingo"
	TypeDraw       = "draw"
	TypeRoomState  = "room_state"
)

// TypeSettle rides the settle topic between the room and settlement
// services, never the socket bridge.
const TypeSettle = "settle"

// Outbound event types.
const (
	TypeRoomCreated  = "room_created"
	TypeJoined       = "joined"
	TypePlayerJoined = "player_joined"
	TypeGameStarted  = "game_started"
	TypeNumberDrawn  = "number_drawn"
	TypeMarked       = "marked"
	TypeBingo        = "bingo"
	TypeGameFinished = "game_finished"
	TypeError        = "error"
)

type CreateRoomRequest struct {
	UserId   int64  `json:"userId"`
	Name     string `json:"name"`
	Private  bool   `json:"private"`
	EntryFee string `json:"entryFee,omitempty"` // default applies when empty
}

type JoinRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
	Name   string `json:"name"`
	CardNo int    `json:"cardId"`
}

type StartRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
}

type MarkRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
	Number int    `json:"number"`
}

type ClaimRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
}

type DrawRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
}

type RoomStateRequest struct {
	Room   string `json:"room"`
	UserId int64  `json:"userId"`
}

type RoomCreated struct {
	Room     string `json:"room"`
	EntryFee string `json:"entryFee"`
	Private  bool   `json:"private"`
	Creator  int64  `json:"createdBy"`
}

// JoinedReply goes to the joining socket alone; the card grid is the
// player's private view and never rides a room broadcast.
type JoinedReply struct {
	Room         string  `json:"room"`
	CardNo       int     `json:"cardId"`
	Grid         [][]int `json:"grid"` // 5x5, 0 is the free center
	EntryFee     string  `json:"entryFee"`
	TotalPlayers int     `json:"totalPlayers"`
}

type PlayerJoined struct {
	UserId       int64  `json:"userId"`
	Name         string `json:"name"`
	CardNo       int    `json:"cardId"`
	TotalPlayers int    `json:"totalPlayers"`
}

type GameStarted struct {
	Room      string `json:"room"`
	PrizePool string `json:"prizePool"`
}

type NumberDrawn struct {
	Room       string `json:"room"`
	Number     int    `json:"number"`
	TotalDrawn int    `json:"totalDrawn"`
	History    []int  `json:"history"` // full draw order, lets late sockets resync
}

type MarkedReply struct {
	Room        string `json:"room"`
	Number      int    `json:"number"`
	TotalMarked int    `json:"totalMarked"`
	Already     bool   `json:"already,omitempty"`
}

type BingoWin struct {
	Room        string `json:"room"`
	WinnerId    int64  `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	PrizeAmount string `json:"prizeAmount"`
}

// GameFinished is published for finishes that crown no winner, with the
// reason ("exhausted") so clients can tell it apart from a bingo.
type GameFinished struct {
	Room   string `json:"room"`
	Reason string `json:"reason"`
}

type PlayerState struct {
	UserId int64  `json:"userId"`
	Name   string `json:"name"`
	CardNo int    `json:"cardId"`
	Marked []int  `json:"marked,omitempty"` // only filled for the requesting player
}

type RoomState struct {
	Room      string        `json:"room"`
	Status    string        `json:"status"`
	EntryFee  string        `json:"entryFee"`
	PrizePool string        `json:"prizePool"`
	Creator   int64         `json:"createdBy"`
	Players   []PlayerState `json:"players"`
	Drawn     []int         `json:"drawn"`
	WinnerId  int64         `json:"winnerId,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// ErrorReply is addressed to the socket whose intent was rejected.
type ErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SettleRequest nudges the settlement worker to pick up pending payouts for
// a finished game without waiting for its next sweep.
type SettleRequest struct {
	GameId int64 `json:"gameId"`
}
