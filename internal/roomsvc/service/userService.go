package service

import (
	"context"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/shopspring/decimal"
)

type UserService struct {
	userStore *store.UserStore
}

func NewUserService(userStore *store.UserStore) *UserService {
	return &UserService{userStore: userStore}
}

func (s *UserService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	return s.userStore.GetUserByID(ctx, userID)
}

func (s *UserService) GetOrCreateUser(ctx context.Context, userID int, name string) (*models.User, error) {
	return s.userStore.GetOrCreateUser(ctx, userID, name)
}

func (s *UserService) ApplyGameResult(ctx context.Context, userID int, won bool, amount decimal.Decimal) error {
	return s.userStore.ApplyGameResult(ctx, userID, won, amount)
}
