package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/shopspring/decimal"
)

type GameService struct {
	gameStore *store.GameStore
}

func NewGameService(gameStore *store.GameStore) *GameService {
	return &GameService{gameStore: gameStore}
}

func (s *GameService) CreateGame(ctx context.Context, roomCode string, createdBy int, isPrivate bool, entryFee decimal.Decimal) (*models.Game, error) {
	return s.gameStore.CreateGame(ctx, roomCode, createdBy, isPrivate, entryFee)
}

func (s *GameService) GetGameByID(ctx context.Context, gameID int) (*models.Game, error) {
	return s.gameStore.GetGameByID(ctx, gameID)
}

func (s *GameService) GetOpenGameByRoomCode(ctx context.Context, roomCode string) (*models.Game, error) {
	return s.gameStore.GetOpenGameByRoomCode(ctx, roomCode)
}

func (s *GameService) ListGamesByStatus(ctx context.Context, status string) ([]*models.Game, error) {
	return s.gameStore.ListGamesByStatus(ctx, status)
}

func (s *GameService) ActivateGame(ctx context.Context, gameID int, totPrize decimal.Decimal, startedAt time.Time) error {
	return s.gameStore.ActivateGame(ctx, gameID, totPrize, startedAt)
}

func (s *GameService) UpdateDrawn(ctx context.Context, gameID int, drawn []int) error {
	return s.gameStore.UpdateDrawn(ctx, gameID, JoinNumbers(drawn))
}

func (s *GameService) FinishGame(ctx context.Context, gameID int, winnerID *int, reason string, drawn []int, finishedAt time.Time) error {
	return s.gameStore.FinishGame(ctx, gameID, winnerID, reason, JoinNumbers(drawn), finishedAt)
}

// JoinNumbers renders a call history as "12,75,3" for the drawn column.
func JoinNumbers(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
