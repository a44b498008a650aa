package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDrawPoolCoversRangeOnce(t *testing.T) {
	p := NewDrawPool()

	seen := make(map[int]bool)
	for i := 0; i < HighNumber; i++ {
		n, err := p.Draw()
		require.NoError(t, err)
		assert.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
	}

	assert.Len(t, seen, HighNumber)
	for n := LowNumber; n <= HighNumber; n++ {
		assert.True(t, seen[n], "number %d never drawn", n)
	}

	_, err := p.Draw()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 0, p.Remaining())
}

func TestDrawPoolProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := NewDrawPool()
		k := rapid.IntRange(0, HighNumber).Draw(t, "draws")

		seen := make(map[int]bool)
		for i := 0; i < k; i++ {
			n, err := p.Draw()
			if err != nil {
				t.Fatalf("draw %d failed: %v", i, err)
			}
			if n < LowNumber || n > HighNumber {
				t.Fatalf("draw %d out of range: %d", i, n)
			}
			if seen[n] {
				t.Fatalf("number %d repeated", n)
			}
			seen[n] = true
		}

		if got := p.Remaining(); got != HighNumber-k {
			t.Fatalf("remaining = %d, want %d", got, HighNumber-k)
		}
		if got := len(p.Drawn()); got != k {
			t.Fatalf("drawn history = %d entries, want %d", got, k)
		}
	})
}

func TestDrawPoolHistoryIsCopy(t *testing.T) {
	p := NewDrawPool()
	first, err := p.Draw()
	require.NoError(t, err)

	h := p.Drawn()
	h[0] = -1
	assert.Equal(t, first, p.Drawn()[0])
}
