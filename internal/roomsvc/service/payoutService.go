package service

import (
	"context"
	"time"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/shopspring/decimal"
)

type PayoutService struct {
	payoutStore *store.PayoutStore
}

func NewPayoutService(payoutStore *store.PayoutStore) *PayoutService {
	return &PayoutService{payoutStore: payoutStore}
}

func (s *PayoutService) CreatePending(ctx context.Context, gameID, userID int, kind string, amount decimal.Decimal, tref string) (*models.Payout, error) {
	return s.payoutStore.CreatePending(ctx, gameID, userID, kind, amount, tref)
}

func (s *PayoutService) GetByTRef(ctx context.Context, tref string) (*models.Payout, error) {
	return s.payoutStore.GetByTRef(ctx, tref)
}

func (s *PayoutService) ListPending(ctx context.Context, limit int) ([]*models.Payout, error) {
	return s.payoutStore.ListPending(ctx, limit)
}

func (s *PayoutService) MarkSettled(ctx context.Context, payoutID int, settledAt time.Time) (bool, error) {
	return s.payoutStore.MarkSettled(ctx, payoutID, settledAt)
}
