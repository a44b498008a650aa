package bingo

import "errors"

// Sentinel errors returned by session operations and collaborators.
// Callers discriminate with errors.Is; wrapped variants carry detail.
var (
	ErrInvalidState      = errors.New("operation not allowed in current game state")
	ErrForbidden         = errors.New("not allowed for this user")
	ErrAlreadyJoined     = errors.New("user already holds a card in this game")
	ErrCardTaken         = errors.New("card already taken")
	ErrRoomFull          = errors.New("room is full")
	ErrNotDrawn          = errors.New("number has not been called")
	ErrNotOnCard         = errors.New("number is not on the card")
	ErrNotAWin           = errors.New("marked cells do not form a winning line")
	ErrAlreadyFinished   = errors.New("game already finished")
	ErrExhausted         = errors.New("no numbers left to call")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPayoutFailed      = errors.New("payout could not be settled")
	ErrRoomTaken         = errors.New("room code already in use")
	ErrBadRequest        = errors.New("malformed request")
)

// Code maps an error to the short code clients receive in error replies.
func Code(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrAlreadyJoined):
		return "ALREADY_JOINED"
	case errors.Is(err, ErrCardTaken):
		return "CARD_TAKEN"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrNotDrawn):
		return "NOT_DRAWN"
	case errors.Is(err, ErrNotOnCard):
		return "NOT_ON_CARD"
	case errors.Is(err, ErrNotAWin):
		return "NOT_A_WIN"
	case errors.Is(err, ErrAlreadyFinished):
		return "ALREADY_FINISHED"
	case errors.Is(err, ErrExhausted):
		return "EXHAUSTED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInsufficientFunds):
		return "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrPayoutFailed):
		return "PAYOUT_FAILED"
	case errors.Is(err, ErrRoomTaken):
		return "ROOM_TAKEN"
	case errors.Is(err, ErrBadRequest):
		return "BAD_REQUEST"
	default:
		return "INTERNAL"
	}
}
