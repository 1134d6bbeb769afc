package watchlist

import (
	"errors"
	"time"
)

// ErrDuplicateSymbol means the symbol is already on the user's watchlist
var ErrDuplicateSymbol = errors.New("symbol already in watchlist")

// Entry is one watched symbol for a user
type Entry struct {
	ID      int64     `json:"id"`
	UserID  string    `json:"user_id"`
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}
