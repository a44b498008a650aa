// Package registry tracks the live bingo sessions by room code. The
// registry is the in-memory source of truth while a game is open; rows
// in postgres trail it for history and recovery.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
)

// PublicRoom is the always-on lobby. It can never be claimed as a
// private room code.
const PublicRoom = comm.PublicRoom

type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*bingo.Session
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*bingo.Session),
	}
}

// NewRoomCode returns a fresh six character uppercase hex code that is
// not in use. Collisions retry; the space is 16 million codes so a few
// tries always suffice.
func (r *Registry) NewRoomCode() (string, error) {
	for i := 0; i < 10; i++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if code == strings.ToUpper(PublicRoom) {
			continue
		}
		r.mu.RLock()
		_, taken := r.rooms[code]
		r.mu.RUnlock()
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate room code: space exhausted")
}

// Put registers a session under its room code.
func (r *Registry) Put(room string, s *bingo.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room]; ok {
		return fmt.Errorf("room %s: %w", room, bingo.ErrRoomTaken)
	}
	r.rooms[room] = s
	return nil
}

func (r *Registry) Get(room string) (*bingo.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[room]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", room, bingo.ErrNotFound)
	}
	return s, nil
}

func (r *Registry) Remove(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
}

// List snapshots every registered session.
func (r *Registry) List() []*bingo.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*bingo.Session, 0, len(r.rooms))
	for _, s := range r.rooms {
		out = append(out, s)
	}
	return out
}

// Waiting returns the sessions still accepting players.
func (r *Registry) Waiting() []*bingo.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*bingo.Session
	for _, s := range r.rooms {
		if s.Status() == bingo.StatusWaiting {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
