package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTtypeForRef(t *testing.T) {
	assert.Equal(t, "game_entry", ttypeForRef("FEE-12-9"))
	assert.Equal(t, "prize", ttypeForRef("PRZ-12-9"))
	assert.Equal(t, "refund", ttypeForRef("RFD-12-9"))
	assert.Equal(t, "refund", ttypeForRef("RVT-12-9"))
	assert.Equal(t, "adjustment", ttypeForRef("BOT-INIT-9000000001"))
}
