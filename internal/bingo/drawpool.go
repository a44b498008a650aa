package bingo

import (
	"math/rand"
)

// DrawPool holds one session's shuffled deck of 1-75. Numbers come out in
// deck order, so a draw can never repeat within a session. The pool is not
// safe for concurrent use on its own; the owning session serializes access.
type DrawPool struct {
	deck   []int
	cursor int
}

// NewDrawPool shuffles a fresh deck. A new pool is created per session and
// never reused.
func NewDrawPool() *DrawPool {
	deck := rand.Perm(HighNumber)
	for i := range deck {
		deck[i]++
	}
	return &DrawPool{deck: deck}
}

// Draw reveals the next number, or ErrExhausted once all 75 are out.
func (p *DrawPool) Draw() (int, error) {
	if p.cursor >= len(p.deck) {
		return 0, ErrExhausted
	}
	n := p.deck[p.cursor]
	p.cursor++
	return n, nil
}

// Drawn returns a copy of the draw order so far.
func (p *DrawPool) Drawn() []int {
	return append([]int(nil), p.deck[:p.cursor]...)
}

// Remaining reports how many numbers are still undrawn.
func (p *DrawPool) Remaining() int {
	return len(p.deck) - p.cursor
}
