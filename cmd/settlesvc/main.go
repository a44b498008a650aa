package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bingo-rooms/configs"
	"github.com/avvvet/bingo-rooms/internal/comm"
	natscli "github.com/avvvet/bingo-rooms/internal/nats"
	"github.com/avvvet/bingo-rooms/internal/notify"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/db"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/avvvet/bingo-rooms/internal/wallet"
	"github.com/nats-io/nats.go"
)

const SERVICE_NAME = "settle"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// settleWorker pays out pending prize and refund rows. The wallet credit
// is idempotent by tref, so sweeping a row twice can never double pay.
type settleWorker struct {
	payoutService *service.PayoutService
	wallet        *wallet.Ledger
	notifier      *notify.TelegramNotifier
}

func (w *settleWorker) sweep(ctx context.Context) {
	pending, err := w.payoutService.ListPending(ctx, 100)
	if err != nil {
		log.Errorf("Error [PayoutService.ListPending]: %s", err)
		return
	}

	for _, p := range pending {
		if err := w.settle(ctx, p); err != nil {
			log.Errorf("Error settling payout %d (%s): %s", p.ID, p.TRef, err)
			w.notifier.SendNotification(
				fmt.Sprintf("⚠️ payout %s for user %d stuck: %v", p.TRef, p.UserID, err))
		}
	}
}

func (w *settleWorker) settle(ctx context.Context, p *models.Payout) error {
	if err := w.wallet.Credit(ctx, int64(p.UserID), p.Amount, p.TRef); err != nil {
		return err
	}

	settled, err := w.payoutService.MarkSettled(ctx, p.ID, time.Now())
	if err != nil {
		return err
	}
	if !settled {
		// another settler won the row after our credit; the tref guard
		// already made that credit a no-op
		return nil
	}

	log.Infof("settled %s payout %s, user %d amount %s (game %d)",
		p.Kind, p.TRef, p.UserID, p.Amount.StringFixed(2), p.GameID)
	w.notifier.SendNotification(
		fmt.Sprintf("💰 %s %s paid to user %d (game %d)",
			p.Kind, p.Amount.StringFixed(2), p.UserID, p.GameID))
	return nil
}

func main() {
	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	n, err := natscli.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	payoutStore := store.NewPayoutStore(dbpool)
	payoutService := service.NewPayoutService(payoutStore)

	worker := &settleWorker{
		payoutService: payoutService,
		wallet:        wallet.NewLedger(dbpool),
		notifier:      notify.InitFromEnv(),
	}

	ctx := context.Background()

	// the room service nudges this topic when an inline payout fails
	sub, err := n.Conn.QueueSubscribe(comm.TopicSettle, "settle-service", func(m *nats.Msg) {
		worker.sweep(ctx)
	})
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	log.Infof("%s service sweeping pending payouts", SERVICE_NAME)
	for {
		select {
		case <-ticker.C:
			worker.sweep(ctx)
		case <-stop:
			log.Infof("%s service gracefully stopped", SERVICE_NAME)
			return
		}
	}
}
