package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists order fills to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		strategy    TEXT NOT NULL,
		action      TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		qty         REAL NOT NULL,
		price       REAL NOT NULL,
		slippage    REAL DEFAULT 0,
		reason      TEXT,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_strategy ON fills(strategy);
	CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened fill journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill to the journal.
func (j *Journal) RecordFill(fill Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, strategy, action, symbol, qty, price, slippage, reason, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID,
		fill.Signal.StrategyName,
		string(fill.Signal.Action),
		fill.Signal.Symbol,
		fill.FillQty,
		fill.FillPrice,
		fill.Slippage,
		fill.Signal.Reason,
		fill.FilledAt.Format(time.RFC3339),
	)
	return err
}

// FillRecord represents a row from the fills table.
type FillRecord struct {
	ID       int64   `json:"id"`
	OrderID  string  `json:"order_id"`
	Strategy string  `json:"strategy"`
	Action   string  `json:"action"`
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Slippage float64 `json:"slippage"`
	Reason   string  `json:"reason"`
	FilledAt string  `json:"filled_at"`
}

// GetFills returns the last N fills, newest first.
func (j *Journal) GetFills(limit int) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, strategy, action, symbol, qty, price, slippage, reason, filled_at
		 FROM fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Strategy, &f.Action, &f.Symbol,
			&f.Qty, &f.Price, &f.Slippage, &f.Reason, &f.FilledAt); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	return fills, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
