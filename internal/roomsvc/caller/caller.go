// Package caller drives the timed parts of a room: the number caller
// that ticks out draws for an active game, and the auto starter that
// flips waiting rooms to active once they are old enough and full enough.
package caller

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/registry"
)

// Caller draws numbers for one active session on a fixed interval.
type Caller struct {
	interval   time.Duration
	onDraw     func(*bingo.Session, *bingo.DrawResult)
	onFinished func(*bingo.Session)
}

// New builds a caller. onDraw fires after every successful draw and
// onFinished fires once if the pool runs dry; either may be nil.
func New(interval time.Duration, onDraw func(*bingo.Session, *bingo.DrawResult), onFinished func(*bingo.Session)) *Caller {
	return &Caller{interval: interval, onDraw: onDraw, onFinished: onFinished}
}

// Run ticks draws until the session leaves the active state or ctx is
// canceled. A bingo claim finishes the game between ticks; the next draw
// then fails with an invalid state and the loop exits on its own.
func (c *Caller) Run(ctx context.Context, s *bingo.Session) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Draw()
			if err != nil {
				if errors.Is(err, bingo.ErrExhausted) && c.onFinished != nil {
					c.onFinished(s)
				}
				return
			}
			if c.onDraw != nil {
				c.onDraw(s, res)
			}
		}
	}
}

// AutoStarter sweeps the registry and starts waiting rooms that have
// been open for at least delay. Rooms below their player minimum are
// left alone until a later sweep.
type AutoStarter struct {
	reg       *registry.Registry
	delay     time.Duration
	interval  time.Duration
	onStarted func(*bingo.Session, *bingo.StartResult)
}

func NewAutoStarter(reg *registry.Registry, delay, interval time.Duration, onStarted func(*bingo.Session, *bingo.StartResult)) *AutoStarter {
	return &AutoStarter{reg: reg, delay: delay, interval: interval, onStarted: onStarted}
}

func (a *AutoStarter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep()
		}
	}
}

// Sweep is one pass over the waiting rooms.
func (a *AutoStarter) Sweep() {
	for _, s := range a.reg.Waiting() {
		if time.Since(s.Snapshot().CreatedAt) < a.delay {
			continue
		}
		res, err := s.AutoStart()
		if err != nil {
			// below the minimum, or another path started it first
			continue
		}
		if a.onStarted != nil {
			a.onStarted(s, res)
		}
	}
}
