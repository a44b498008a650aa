package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Game struct {
	ID         int             `json:"id"`
	RoomCode   string          `json:"room_code"`
	Status     string          `json:"status"` // "waiting", "active", "finished"
	EntryFee   decimal.Decimal `json:"entry_fee"`
	TotPrize   decimal.Decimal `json:"tot_prize"`
	CreatedBy  int             `json:"created_by"`
	IsPrivate  bool            `json:"is_private"`
	WinnerID   sql.NullInt64   `json:"winner_id"`
	Reason     string          `json:"reason"` // "bingo", "exhausted" once finished
	Drawn      string          `json:"drawn"`  // call history, comma separated
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  sql.NullTime    `json:"started_at"`
	FinishedAt sql.NullTime    `json:"finished_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
