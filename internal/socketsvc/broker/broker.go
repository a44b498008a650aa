package broker

import (
	"encoding/json"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn           *nats.Conn
	GetConnection  func(string) (*websocket.Conn, bool)
	GetRoomSockets func(string) ([]string, bool)
	StoreRoom      func(socketId, roomId string)
}

func NewBroker(conn *nats.Conn,
	fncGetConnection func(string) (*websocket.Conn, bool),
	fncGetRoomSockets func(string) ([]string, bool),
	fncStoreRoom func(socketId, roomId string),
) *Broker {
	return &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetRoomSockets: fncGetRoomSockets,
		StoreRoom:      fncStoreRoom,
	}
}

// consume room events from the room service
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// consume room events from the room service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to the room service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages delivers room service events to web clients. An event
// with a Room fans out to every socket in the room; otherwise it goes
// to the single socket the SocketId names. The gateway does not keep a
// list of event types: whatever rides the events topic is delivered.
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	// the creator's socket joins its new room before any fan out
	if message.Type == comm.TypeRoomCreated && message.SocketId != "" {
		var created comm.RoomCreated
		if err := json.Unmarshal(message.Data, &created); err == nil && created.Room != "" {
			b.StoreRoom(message.SocketId, created.Room)
		}
	}

	if message.Room != "" {
		b.broadcast(message)
		return
	}
	b.sendMessage(message)
}

// broadcast fans a room event out to every socket in the room.
func (b *Broker) broadcast(m *comm.WSMessage) {
	sockets, ok := b.GetRoomSockets(m.Room)
	if !ok {
		return
	}
	for _, socketId := range sockets {
		if conn, ok := b.GetConnection(socketId); ok {
			if err := conn.WriteJSON(m); err != nil {
				log.Println(err)
			}
		}
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(m *comm.WSMessage) {
	socketId := m.SocketId
	if conn, ok := b.GetConnection(socketId); ok {
		if err := conn.WriteJSON(m); err != nil {
			log.Println(err)
		}
	}
}
