package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/archive"
	"github.com/avvvet/bingo-rooms/internal/comm"
	natscli "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/nats-io/nats.go"
)

const SERVICE_NAME = "archive"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func retention() time.Duration {
	days := 7
	if v := os.Getenv("EVENTS_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

func main() {
	// mongo connection
	mongodb, cancel, err := archive.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cancel()
	log.Printf("mongo connection established successfully")

	events := archive.NewStore(mongodb, retention())

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// every room event gets archived, whatever its type
	sub, err := n.Conn.Subscribe(comm.TopicRoomEvents, func(m *nats.Msg) {
		var msg comm.WSMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Errorf("Error unmarshalling event envelope: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := events.SaveEvent(ctx, &msg); err != nil {
			log.Errorf("Error [Archive.SaveEvent]: %s", err)
		}
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe %v", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Infof("%s service archiving room events", SERVICE_NAME)

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
