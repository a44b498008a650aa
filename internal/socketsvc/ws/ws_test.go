package ws

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomBookkeeping(t *testing.T) {
	s := NewWs()

	s.StoreRoom("sock-1", "4A9F21")
	s.StoreRoom("sock-2", "4A9F21")
	s.StoreRoom("sock-3", "public")

	room, ok := s.GetRoom("sock-1")
	assert.True(t, ok)
	assert.Equal(t, "4A9F21", room)

	sockets, ok := s.GetRoomSockets("4A9F21")
	assert.True(t, ok)
	sort.Strings(sockets)
	assert.Equal(t, []string{"sock-1", "sock-2"}, sockets)

	_, ok = s.GetRoomSockets("FFFFFF")
	assert.False(t, ok)
}

func TestRebindMovesSocketBetweenRooms(t *testing.T) {
	s := NewWs()

	s.StoreRoom("sock-1", "public")
	s.StoreRoom("sock-1", "4A9F21")

	room, ok := s.GetRoom("sock-1")
	assert.True(t, ok)
	assert.Equal(t, "4A9F21", room)

	// the old room no longer lists the socket
	_, ok = s.GetRoomSockets("public")
	assert.False(t, ok)
}

func TestHandleDisconnectClearsBindings(t *testing.T) {
	s := NewWs()

	s.StoreRoom("sock-1", "4A9F21")
	s.StoreRoom("sock-2", "4A9F21")

	s.HandleDisconnect("sock-1")

	_, ok := s.GetRoom("sock-1")
	assert.False(t, ok)

	sockets, ok := s.GetRoomSockets("4A9F21")
	assert.True(t, ok)
	assert.Equal(t, []string{"sock-2"}, sockets)
}
