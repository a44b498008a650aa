package bingo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	// GridSize is the side of a standard 75-ball card.
	GridSize = 5

	// FreeCell marks the center cell in card data.
	FreeCell = 0

	// LowNumber and HighNumber bound the callable range.
	LowNumber  = 1
	HighNumber = 75

	// ColumnSpan is the sub-range of numbers each column draws from:
	// B 1-15, I 16-30, N 31-45, G 46-60, O 61-75.
	ColumnSpan = 15
)

// Card is an immutable 5x5 grid issued from the pre-generated catalog.
// The center cell Grid[2][2] is always FreeCell.
type Card struct {
	No   int
	Grid [GridSize][GridSize]int
}

// CardCatalog is the external card inventory the session draws from.
// Reservations are released per room by the owning service once the
// game closes, not by the session.
type CardCatalog interface {
	// Get returns the card for cardNo, or ErrNotFound.
	Get(ctx context.Context, cardNo int) (*Card, error)
	// Reserve takes the card out of the inventory for a room, or fails
	// with ErrCardTaken when another room holds it.
	Reserve(ctx context.Context, cardNo int, room string) error
}

// ParseCard builds a Card from the catalog's CSV form: 25 row-major cells,
// center 0. Column ranges, the free center and in-card uniqueness are
// enforced here so a corrupt catalog row never reaches a session.
func ParseCard(cardNo int, data string) (*Card, error) {
	parts := strings.Split(data, ",")
	if len(parts) != GridSize*GridSize {
		return nil, fmt.Errorf("card %d: expected %d cells, got %d", cardNo, GridSize*GridSize, len(parts))
	}

	c := &Card{No: cardNo}
	seen := make(map[int]bool, GridSize*GridSize)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("card %d: invalid cell %q: %w", cardNo, p, err)
		}
		row, col := i/GridSize, i%GridSize

		if row == GridSize/2 && col == GridSize/2 {
			if n != FreeCell {
				return nil, fmt.Errorf("card %d: center cell must be free, got %d", cardNo, n)
			}
			c.Grid[row][col] = FreeCell
			continue
		}

		low := col*ColumnSpan + 1
		high := low + ColumnSpan - 1
		if n < low || n > high {
			return nil, fmt.Errorf("card %d: cell [%d,%d]=%d outside column range %d-%d", cardNo, row, col, n, low, high)
		}
		if seen[n] {
			return nil, fmt.Errorf("card %d: duplicate number %d", cardNo, n)
		}
		seen[n] = true
		c.Grid[row][col] = n
	}
	return c, nil
}

// Data renders the card back to its catalog CSV form.
func (c *Card) Data() string {
	parts := make([]string, 0, GridSize*GridSize)
	for r := 0; r < GridSize; r++ {
		for col := 0; col < GridSize; col++ {
			parts = append(parts, strconv.Itoa(c.Grid[r][col]))
		}
	}
	return strings.Join(parts, ",")
}

// Contains reports whether n appears on the card. The free center never
// matches a callable number.
func (c *Card) Contains(n int) bool {
	if n == FreeCell {
		return false
	}
	for r := 0; r < GridSize; r++ {
		for col := 0; col < GridSize; col++ {
			if c.Grid[r][col] == n {
				return true
			}
		}
	}
	return false
}

// CellAt returns the number at the given position, FreeCell for the center.
func (c *Card) CellAt(row, col int) int {
	return c.Grid[row][col]
}

// Numbers returns the 24 callable numbers of the card in row-major order.
func (c *Card) Numbers() []int {
	nums := make([]int, 0, GridSize*GridSize-1)
	for r := 0; r < GridSize; r++ {
		for col := 0; col < GridSize; col++ {
			if n := c.Grid[r][col]; n != FreeCell {
				nums = append(nums, n)
			}
		}
	}
	return nums
}
