package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stratlab/internal/strategy"
)

// ErrStrategyNotFound is returned when an ID does not exist.
var ErrStrategyNotFound = fmt.Errorf("strategy not found")

// CreateStrategy stores a new strategy and returns it with its assigned ID.
func (s *Store) CreateStrategy(rec strategy.Record) (strategy.Record, error) {
	logicJSON, err := json.Marshal(rec.Logic)
	if err != nil {
		return strategy.Record{}, fmt.Errorf("marshal logic: %w", err)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := s.db.Exec(`
		INSERT INTO strategies (name, symbol, tf, logic, is_running, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Name, rec.Symbol, rec.TF, string(logicJSON), boolToInt(rec.Running), now.Unix(), now.Unix())
	if err != nil {
		return strategy.Record{}, fmt.Errorf("sqlite insert strategy: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return strategy.Record{}, err
	}
	return rec, nil
}

// UpdateStrategy replaces the mutable fields of an existing strategy.
func (s *Store) UpdateStrategy(rec strategy.Record) error {
	logicJSON, err := json.Marshal(rec.Logic)
	if err != nil {
		return fmt.Errorf("marshal logic: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE strategies SET name = ?, symbol = ?, tf = ?, logic = ?, updated_at = ?
		WHERE id = ?
	`, rec.Name, rec.Symbol, rec.TF, string(logicJSON), time.Now().UTC().Unix(), rec.ID)
	if err != nil {
		return fmt.Errorf("sqlite update strategy: %w", err)
	}
	return requireRow(res)
}

// SetStrategyRunning flips the running flag the live engine watches.
func (s *Store) SetStrategyRunning(id int64, running bool) error {
	res, err := s.db.Exec(`
		UPDATE strategies SET is_running = ?, updated_at = ? WHERE id = ?
	`, boolToInt(running), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("sqlite toggle strategy: %w", err)
	}
	return requireRow(res)
}

// DeleteStrategy removes a strategy by ID.
func (s *Store) DeleteStrategy(id int64) error {
	res, err := s.db.Exec(`DELETE FROM strategies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete strategy: %w", err)
	}
	return requireRow(res)
}

// GetStrategy loads one strategy by ID.
func (s *Store) GetStrategy(id int64) (strategy.Record, error) {
	row := s.db.QueryRow(`
		SELECT id, name, symbol, tf, logic, is_running, created_at, updated_at
		FROM strategies WHERE id = ?
	`, id)
	rec, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return strategy.Record{}, ErrStrategyNotFound
	}
	return rec, err
}

// ListStrategies returns all strategies, oldest first.
func (s *Store) ListStrategies() ([]strategy.Record, error) {
	rows, err := s.db.Query(`
		SELECT id, name, symbol, tf, logic, is_running, created_at, updated_at
		FROM strategies ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query strategies: %w", err)
	}
	defer rows.Close()

	var recs []strategy.Record
	for rows.Next() {
		rec, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RunningStrategies returns the strategies the live engine should host.
func (s *Store) RunningStrategies() ([]strategy.Record, error) {
	all, err := s.ListStrategies()
	if err != nil {
		return nil, err
	}
	running := all[:0]
	for _, rec := range all {
		if rec.Running {
			running = append(running, rec)
		}
	}
	return running, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row rowScanner) (strategy.Record, error) {
	var (
		rec       strategy.Record
		logicJSON string
		running   int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Symbol, &rec.TF, &logicJSON, &running, &createdAt, &updatedAt); err != nil {
		return strategy.Record{}, err
	}
	if err := json.Unmarshal([]byte(logicJSON), &rec.Logic); err != nil {
		return strategy.Record{}, fmt.Errorf("unmarshal strategy logic: %w", err)
	}
	rec.Logic.ApplyDefaults()
	rec.Running = running != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
