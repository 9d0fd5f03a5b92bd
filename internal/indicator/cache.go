package indicator

import (
	"stratlab/internal/model"
)

// Column is one computed indicator series attached to a candle series.
// Values has the same length as the series; indexes below DefinedFrom
// hold the 0 warm-up sentinel, not real values.
type Column struct {
	Values      []float64
	DefinedFrom int
}

// Cache memoizes indicator columns for the lifetime of one simulation
// run. Columns are keyed "{name}_{length}"; bollinger variants with the
// same name and length but a different deviation resolve to the column
// computed first, mirroring how the strategy schema keys columns.
//
// A Cache is bound to one immutable series and is never shared across
// concurrent evaluations — each run builds its own.
type Cache struct {
	series model.Series
	cols   map[string]*Column
}

// NewCache creates an empty cache over the given series.
func NewCache(s model.Series) *Cache {
	return &Cache{
		series: s,
		cols:   make(map[string]*Column, 8),
	}
}

// ColumnKey returns the memoization key for an indicator reference.
func ColumnKey(name string, length int) string {
	return name + "_" + model.Itoa(length)
}

// Column returns the memoized column for (name, params), computing it on
// first use.
func (c *Cache) Column(name string, p Params) (*Column, error) {
	key := ColumnKey(name, p.Length)
	if col, ok := c.cols[key]; ok {
		return col, nil
	}
	values, definedFrom, err := Compute(name, c.series, p)
	if err != nil {
		return nil, err
	}
	col := &Column{Values: values, DefinedFrom: definedFrom}
	c.cols[key] = col
	return col, nil
}

// Len returns the number of bars in the underlying series.
func (c *Cache) Len() int { return len(c.series) }
