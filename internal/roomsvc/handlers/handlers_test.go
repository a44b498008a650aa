package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/registry"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCardData = "1,16,31,46,61,2,17,32,47,62,7,22,0,49,64,4,19,38,50,65,5,20,35,51,66"

type stubCatalog struct{}

func (stubCatalog) Get(ctx context.Context, cardNo int) (*bingo.Card, error) {
	return bingo.ParseCard(cardNo, testCardData)
}
func (stubCatalog) Reserve(ctx context.Context, cardNo int, room string) error { return nil }

type stubWallet struct{}

func (stubWallet) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	return nil
}
func (stubWallet) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ref string) error {
	return nil
}

func seedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	ledger, err := bingo.NewLedger(stubWallet{}, bingo.DefaultWinnerShare)
	require.NoError(t, err)

	reg := registry.NewRegistry()

	lobby := bingo.NewSession(bingo.Config{
		Id: 1, Room: registry.PublicRoom,
		EntryFee: decimal.RequireFromString("5.00"),
		Catalog:  stubCatalog{}, Wallet: stubWallet{}, Ledger: ledger,
	})
	_, err = lobby.Join(context.Background(), bingo.User{Id: 1, Name: "abebe"}, 7)
	require.NoError(t, err)
	_, err = lobby.Join(context.Background(), bingo.User{Id: 2, Name: "bekele"}, 9)
	require.NoError(t, err)
	require.NoError(t, reg.Put(registry.PublicRoom, lobby))

	hidden := bingo.NewSession(bingo.Config{
		Id: 2, Room: "4A9F21", Creator: 3, Private: true,
		EntryFee: decimal.RequireFromString("10.00"),
		Catalog:  stubCatalog{}, Wallet: stubWallet{}, Ledger: ledger,
	})
	require.NoError(t, reg.Put("4A9F21", hidden))

	return reg
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/v1/rooms", h.ListRoomsHandler)
	r.Get("/v1/rooms/{code}", h.GetRoomHandler)
	return r
}

func TestListRoomsHidesPrivate(t *testing.T) {
	h := NewHandler(seedRegistry(t), nil, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rsp struct {
		Code int           `json:"code"`
		Data []RoomSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	require.Len(t, rsp.Data, 1)

	lobby := rsp.Data[0]
	assert.Equal(t, registry.PublicRoom, lobby.Room)
	assert.Equal(t, "waiting", lobby.Status)
	assert.Equal(t, 2, lobby.Players)
	assert.Equal(t, "5.00", lobby.EntryFee)
	assert.Equal(t, "10.00", lobby.PrizePool)
}

func TestGetRoomDetail(t *testing.T) {
	h := NewHandler(seedRegistry(t), nil, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/public", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rsp struct {
		Code int        `json:"code"`
		Data RoomDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))

	assert.Equal(t, registry.PublicRoom, rsp.Data.Room)
	assert.Equal(t, "waiting", rsp.Data.Status)
	require.Len(t, rsp.Data.Players, 2)
	assert.Equal(t, int64(1), rsp.Data.Players[0].UserId)
	assert.Equal(t, 7, rsp.Data.Players[0].CardNo)
	assert.Empty(t, rsp.Data.Drawn)
}

func TestGetRoomNotFound(t *testing.T) {
	h := NewHandler(seedRegistry(t), nil, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/FFFFFF", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var rsp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, "room not found", rsp.Error)
}

// Private rooms are reachable by code even though the lobby hides them.
func TestGetPrivateRoomByCode(t *testing.T) {
	h := NewHandler(seedRegistry(t), nil, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/4A9F21", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var rsp struct {
		Data RoomDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, "4A9F21", rsp.Data.Room)
	assert.Equal(t, "10.00", rsp.Data.EntryFee)
}
