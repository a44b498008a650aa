package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"` // "active", "blocked"
	GamesPlayed int             `json:"games_played"`
	Bingos      int             `json:"bingos"`
	TotalWon    decimal.Decimal `json:"total_won"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
