package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Payout struct {
	ID        int             `json:"id"`
	GameID    int             `json:"game_id"`
	UserID    int             `json:"user_id"`
	Kind      string          `json:"kind"` // "prize", "refund"
	Amount    decimal.Decimal `json:"amount"`
	TRef      string          `json:"tref"`
	Status    string          `json:"status"` // "pending", "settled"
	CreatedAt time.Time       `json:"created_at"`
	SettledAt sql.NullTime    `json:"settled_at"`
}
