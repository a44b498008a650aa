package main

import (
	"context"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/catalog"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
)

const SERVICE_NAME = "cardgen"

func init() {
	config.Logging(SERVICE_NAME)
	config.LoadEnv(SERVICE_NAME)
}

// cardgen seeds the card catalog. Existing card numbers are left
// untouched, so rerunning it only fills the gaps.
func main() {
	count := 400
	if v := os.Getenv("CARD_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid CARD_COUNT value: %s", v)
		}
		count = n
	}

	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	cards, err := catalog.GenerateSet(count)
	if err != nil {
		log.Fatalf("Failed to generate cards: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := catalog.NewStore(dbpool)
	inserted := 0
	for _, card := range cards {
		ok, err := store.Insert(ctx, card)
		if err != nil {
			log.Fatalf("Failed to insert card %d: %v", card.No, err)
		}
		if ok {
			inserted++
		}
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count cards: %v", err)
	}
	log.Infof("card catalog ready: %d inserted, %d total", inserted, total)
}
