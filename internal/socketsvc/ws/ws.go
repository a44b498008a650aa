package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/broker"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	roomMap sync.Map // to keep track of roomId with socketId
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage relays a client's intent to the room service. The
// gateway never interprets game rules; it only remembers which room a
// socket sits in so events can fan back out.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeJoin:
		s.handleJoin(socketId, message)
	case comm.TypeRoomState:
		s.handleRoomState(socketId, message)
	case comm.TypeCreateRoom, comm.TypeStartGame, comm.TypeMark, comm.TypeClaimBingo, comm.TypeDraw:
		s.forward(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleJoin(socketId string, msg *comm.WSMessage) {
	var payload comm.JoinRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_join_data Malformed join payload %s", err)
		return
	}

	// Ensure required fields are present
	if payload.UserId == 0 {
		log.Error("Invalid join payload: missing required user fields")
		return
	}

	room := payload.Room
	if room == "" {
		room = comm.PublicRoom
	}
	s.StoreRoom(socketId, room)
	s.forward(socketId, msg)
}

// handleRoomState re-binds the socket to the room before forwarding, so
// a reconnecting client starts receiving the room's events again.
func (s *Ws) handleRoomState(socketId string, msg *comm.WSMessage) {
	var payload comm.RoomStateRequest
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_room_state_data Malformed payload %s", err)
		return
	}
	if payload.Room != "" {
		s.StoreRoom(socketId, payload.Room)
	}
	s.forward(socketId, msg)
}

func (s *Ws) forward(socketId string, msg *comm.WSMessage) {
	// Update message with socket ID
	msg.SocketId = socketId

	// Marshal message for NATS
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(comm.TopicRoomIntent, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", comm.TopicRoomIntent, err)
		return
	}

	log.Debugf("forwarded %s intent for socket %s", msg.Type, socketId)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

// HandleDisconnect drops the socket's connection and room binding.
func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
}
