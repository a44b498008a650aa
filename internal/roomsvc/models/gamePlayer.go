package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GamePlayer struct {
	ID        int             `json:"id"`
	GameID    int             `json:"game_id"`
	UserID    int             `json:"user_id"`
	CardNo    int             `json:"card_no"`
	Marked    string          `json:"marked"` // marked numbers, comma separated
	EntryFee  decimal.Decimal `json:"entry_fee"`
	WinAmount decimal.Decimal `json:"win_amount"`
	Status    string          `json:"status"` // "pending", "win", "loose", "refunded"
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
