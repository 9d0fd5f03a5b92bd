package live

import (
	"log"
	"sync"
)

// RiskLimits defines configurable risk thresholds for the live engine.
type RiskLimits struct {
	MaxPositionQty   float64 `json:"max_position_qty"`   // max qty per entry
	MaxDailyLoss     float64 `json:"max_daily_loss"`     // max daily realized loss
	MaxOpenPositions int     `json:"max_open_positions"` // max concurrent positions across strategies
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`   // max drawdown percentage (0-100)
}

// DefaultRiskLimits returns conservative default limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionQty:   100,
		MaxDailyLoss:     5000,
		MaxOpenPositions: 5,
		MaxDrawdownPct:   5.0,
	}
}

// RiskGuard vets entries against risk limits and tracks realized equity.
// Exits are never vetoed — a position that must close, closes.
type RiskGuard struct {
	mu     sync.RWMutex
	limits RiskLimits

	openPositions int
	dailyPnL      float64
	equity        float64
	peakEquity    float64

	// OnVeto, when set, observes every denied entry.
	OnVeto func(reason string)
}

// NewRiskGuard creates a RiskGuard with the given limits and starting equity.
func NewRiskGuard(limits RiskLimits, initialEquity float64) *RiskGuard {
	return &RiskGuard{
		limits:     limits,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// CanEnter checks if a new entry would violate any risk limit.
// Returns true if the entry is allowed, false with a reason if not.
func (g *RiskGuard) CanEnter(qty float64) (bool, string) {
	if reason := g.checkEntry(qty); reason != "" {
		if g.OnVeto != nil {
			g.OnVeto(reason)
		}
		return false, reason
	}
	return true, ""
}

func (g *RiskGuard) checkEntry(qty float64) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.openPositions >= g.limits.MaxOpenPositions {
		return "max open positions reached"
	}
	if g.limits.MaxPositionQty > 0 && qty > g.limits.MaxPositionQty {
		return "position size exceeds limit"
	}
	if g.limits.MaxDailyLoss > 0 && g.dailyPnL < -g.limits.MaxDailyLoss {
		return "max daily loss reached"
	}
	if g.peakEquity > 0 && g.limits.MaxDrawdownPct > 0 {
		drawdown := (g.peakEquity - g.equity) / g.peakEquity * 100
		if drawdown > g.limits.MaxDrawdownPct {
			return "max drawdown exceeded"
		}
	}
	return ""
}

// PositionOpened registers a new open position.
func (g *RiskGuard) PositionOpened() {
	g.mu.Lock()
	g.openPositions++
	g.mu.Unlock()
}

// PositionClosed records the realized P&L of a closed position.
func (g *RiskGuard) PositionClosed(pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.openPositions > 0 {
		g.openPositions--
	}
	g.dailyPnL += pnl
	g.equity += pnl
	if g.equity > g.peakEquity {
		g.peakEquity = g.equity
	}

	log.Printf("[risk] daily P&L: %.2f, equity: %.2f, peak: %.2f", g.dailyPnL, g.equity, g.peakEquity)
}

// ResetDaily resets the daily P&L counter.
func (g *RiskGuard) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyPnL = 0
}

// Status returns the current risk state for the diagnostics endpoint.
func (g *RiskGuard) Status() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	drawdown := 0.0
	if g.peakEquity > 0 {
		drawdown = (g.peakEquity - g.equity) / g.peakEquity * 100
	}

	return map[string]interface{}{
		"open_positions": g.openPositions,
		"daily_pnl":      g.dailyPnL,
		"equity":         g.equity,
		"peak_equity":    g.peakEquity,
		"drawdown_pct":   drawdown,
		"limits":         g.limits,
	}
}
