package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"strconv"

	"github.com/avvvet/bingo-rooms/internal/catalog"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/registry"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/service"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth

	reg         *registry.Registry
	catalog     *catalog.Store
	userService *service.UserService
}

func NewHandler(reg *registry.Registry, cat *catalog.Store, userService *service.UserService) *Handler {
	return &Handler{reg: reg, catalog: cat, userService: userService}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "room service is running at port " + os.Getenv("ROOM_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

// RoomSummary is the lobby projection of a live room.
type RoomSummary struct {
	Room      string `json:"room"`
	Status    string `json:"status"`
	Players   int    `json:"players"`
	EntryFee  string `json:"entryFee"`
	PrizePool string `json:"prizePool"`
}

// ListRoomsHandler lists joinable rooms. Private rooms stay off the
// lobby; their code is the invitation.
func (h *Handler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	var out []RoomSummary
	for _, s := range h.reg.List() {
		snap := s.Snapshot()
		if snap.Private {
			continue
		}
		out = append(out, RoomSummary{
			Room:      snap.Room,
			Status:    string(snap.Status),
			Players:   len(snap.Players),
			EntryFee:  snap.EntryFee.StringFixed(2),
			PrizePool: snap.Prize.StringFixed(2),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })

	h.CreateResponse(w, Response{Code: 200, Data: out})
}

type RoomPlayer struct {
	UserId int64  `json:"userId"`
	Name   string `json:"name"`
	CardNo int    `json:"cardId"`
}

type RoomDetail struct {
	Room      string       `json:"room"`
	Status    string       `json:"status"`
	EntryFee  string       `json:"entryFee"`
	PrizePool string       `json:"prizePool"`
	Players   []RoomPlayer `json:"players"`
	Drawn     []int        `json:"drawn"`
	WinnerId  int64        `json:"winnerId,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	s, err := h.reg.Get(code)
	if err != nil {
		h.CreateResponse(w, Response{Code: 404, Error: "room not found"})
		return
	}

	snap := s.Snapshot()
	detail := RoomDetail{
		Room:      snap.Room,
		Status:    string(snap.Status),
		EntryFee:  snap.EntryFee.StringFixed(2),
		PrizePool: snap.Prize.StringFixed(2),
		Drawn:     snap.Drawn,
		Reason:    snap.Reason,
	}
	if snap.Winner != nil {
		detail.WinnerId = snap.Winner.Id
	}
	for _, p := range snap.Players {
		detail.Players = append(detail.Players, RoomPlayer{
			UserId: p.User.Id,
			Name:   p.User.Name,
			CardNo: p.CardNo,
		})
	}

	h.CreateResponse(w, Response{Code: 200, Data: detail})
}

// ListCardsHandler serves the card picker. Reserved cards are included
// with their flag so the client can grey them out.
func (h *Handler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.CreateResponse(w, Response{Code: 400, Error: "invalid limit"})
			return
		}
		if n > 400 {
			n = 400
		}
		limit = n
	}

	cards, err := h.catalog.List(r.Context(), limit)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "failed to list cards"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: cards})
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		h.CreateResponse(w, Response{Code: 400, Error: "invalid user id"})
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), id)
	if err != nil {
		h.CreateResponse(w, Response{Code: 500, Error: "failed to get user"})
		return
	}
	if user == nil {
		h.CreateResponse(w, Response{Code: 404, Error: "user not found"})
		return
	}

	h.CreateResponse(w, Response{Code: 200, Data: user})
}
