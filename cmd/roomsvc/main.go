package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/catalog"
	nats "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/caller"
	roomcfg "github.com/avvvet/bingo-rooms/internal/roomsvc/config"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
	handlers "github.com/avvvet/bingo-rooms/internal/roomsvc/handlers"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/registry"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/avvvet/bingo-rooms/internal/wallet"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "room"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	cfg := roomcfg.NewConfig()

	userStore := store.NewUserStore(dbpool)
	userService := service.NewUserService(userStore)

	gameStore := store.NewGameStore(dbpool)
	gameService := service.NewGameService(gameStore)

	playerStore := store.NewGamePlayerStore(dbpool)
	playerService := service.NewPlayerService(playerStore)

	payoutStore := store.NewPayoutStore(dbpool)
	payoutService := service.NewPayoutService(payoutStore)

	cardCatalog := catalog.NewStore(dbpool)
	walletLedger := wallet.NewLedger(dbpool)

	ledger, err := bingo.NewLedger(walletLedger, cfg.WinnerShare)
	if err != nil {
		log.Fatalf("Invalid WINNER_SHARE value: %v", err)
	}

	reg := registry.NewRegistry()

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// init room message broker
	broker := broker.NewBroker(n.Conn, reg, cardCatalog, walletLedger, ledger, cfg,
		gameService, playerService, userService, payoutService)

	// subscribe to player intents from the socket gateway
	sub, err := broker.QueueSubscribeIntents("room-service")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the public lobby is always open
	if err := broker.EnsurePublicRoom(ctx); err != nil {
		log.Fatalf("Failed to open public room: %v", err)
	}

	// waiting rooms start on a timer once they reach the player minimum
	starter := caller.NewAutoStarter(reg,
		time.Duration(cfg.AutoStartSecs)*time.Second,
		5*time.Second,
		broker.GameStarted)
	go starter.Run(ctx)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(reg, cardCatalog, userService)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
