package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port string

	EntryFee    decimal.Decimal
	WinnerShare decimal.Decimal

	MinPlayers int
	MaxPlayers int

	DrawIntervalSecs int
	AutoStartSecs    int
}

func NewConfig() *Config {
	port := os.Getenv("ROOM_SERVICE_PORT")
	if port == "" {
		port = "8091"
	}

	return &Config{
		Port:             port,
		EntryFee:         envDecimal("ENTRY_FEE", "5.00"),
		WinnerShare:      envDecimal("WINNER_SHARE", "0.80"),
		MinPlayers:       envInt("MIN_PLAYERS", 2),
		MaxPlayers:       envInt("MAX_PLAYERS", 100),
		DrawIntervalSecs: envInt("DRAW_INTERVAL_SECS", 5),
		AutoStartSecs:    envInt("AUTO_START_SECS", 60),
	}
}

func envDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
