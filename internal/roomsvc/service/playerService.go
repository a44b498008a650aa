package service

import (
	"context"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/shopspring/decimal"
)

type PlayerService struct {
	playerStore *store.GamePlayerStore
}

func NewPlayerService(playerStore *store.GamePlayerStore) *PlayerService {
	return &PlayerService{playerStore: playerStore}
}

func (s *PlayerService) GetPlayersByGameID(ctx context.Context, gameID int) ([]*models.GamePlayer, error) {
	return s.playerStore.GetPlayersByGameID(ctx, gameID)
}

func (s *PlayerService) CreatePlayerIfAvailable(ctx context.Context, gameID, userID, cardNo int, entryFee decimal.Decimal) (*models.GamePlayer, error) {
	return s.playerStore.CreatePlayerIfAvailable(ctx, gameID, userID, cardNo, entryFee)
}

func (s *PlayerService) UpdateMarked(ctx context.Context, gameID, userID int, marked []int) error {
	return s.playerStore.UpdateMarked(ctx, gameID, userID, JoinNumbers(marked))
}

func (s *PlayerService) SettleWinner(ctx context.Context, gameID, winnerID int, prize decimal.Decimal) error {
	return s.playerStore.SettleWinner(ctx, gameID, winnerID, prize)
}

func (s *PlayerService) SettleRefunds(ctx context.Context, gameID int) error {
	return s.playerStore.SettleRefunds(ctx, gameID)
}
