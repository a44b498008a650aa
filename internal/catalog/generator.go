// Package catalog manages the pre-generated card inventory: generation of
// unique cards and the Postgres-backed lookup/reservation store sessions
// draw from.
package catalog

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

// Generate builds one card: five sorted numbers per column from that
// column's 15-number span, free center. Sorting per column matches the
// printed-card look players expect.
func Generate(cardNo int) *bingo.Card {
	c := &bingo.Card{No: cardNo}
	for col := 0; col < bingo.GridSize; col++ {
		low := col*bingo.ColumnSpan + 1

		picks := rand.Perm(bingo.ColumnSpan)[:bingo.GridSize]
		sort.Ints(picks)

		for row := 0; row < bingo.GridSize; row++ {
			c.Grid[row][col] = low + picks[row]
		}
	}
	c.Grid[bingo.GridSize/2][bingo.GridSize/2] = bingo.FreeCell
	return c
}

// GenerateSet builds n distinct cards numbered 1..n. Card identity is the
// full grid, so two cards never share the same layout. The retry cap only
// trips if n is far beyond what the number space supports.
func GenerateSet(n int) ([]*bingo.Card, error) {
	cards := make([]*bingo.Card, 0, n)
	seen := make(map[string]bool, n)

	const maxRetries = 1000
	retries := 0
	for len(cards) < n {
		c := Generate(len(cards) + 1)
		sig := c.Data()
		if seen[sig] {
			retries++
			if retries > maxRetries {
				return nil, fmt.Errorf("could not generate %d unique cards after %d retries", n, maxRetries)
			}
			continue
		}
		seen[sig] = true
		cards = append(cards, c)
	}
	return cards, nil
}
