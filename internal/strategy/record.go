package strategy

import "time"

// Record is a persisted strategy: a named Logic bound to a symbol and
// timeframe, with a running flag the live engine watches.
type Record struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	TF        int       `json:"tf"` // timeframe in seconds
	Logic     Logic     `json:"logic"`
	Running   bool      `json:"is_running"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
