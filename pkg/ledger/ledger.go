// Package ledger defines the plain-data records produced by a backtest run:
// price ticks, executed trades and the portfolio that accumulates them.
//
// Everything in this package is value data. A Portfolio can be cloned and
// handed across a worker boundary without carrying any live simulation state.
package ledger

import (
	"fmt"
	"time"
)

// ============================================================================
// TICKS
// ============================================================================

// Tick represents one OHLCV price sample
type Tick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ============================================================================
// TRADES
// ============================================================================

// TradeReason identifies why a trade was issued
type TradeReason string

const (
	ReasonEnterLong  TradeReason = "enter_long"
	ReasonExitLong   TradeReason = "exit_long"
	ReasonStopLoss   TradeReason = "stop_loss"
	ReasonTakeProfit TradeReason = "take_profit"
	ReasonEndOfData  TradeReason = "end_of_data"
)

// Trade represents one executed fill. Size is signed: positive opens or adds
// to a long position, negative closes it.
type Trade struct {
	Timestamp time.Time   `json:"timestamp"`
	Size      float64     `json:"size"`
	Price     float64     `json:"price"`
	Reason    TradeReason `json:"reason"`
}

// IsEntry reports whether the trade opened a position
func (t Trade) IsEntry() bool {
	return t.Size > 0
}

// ============================================================================
// PORTFOLIO
// ============================================================================

// Portfolio is the full record of one backtest run: current position, the
// chronologically ordered trade history and the cumulative realized P&L in
// percent. It is mutated only by the backtest runner during simulation and
// read-only afterward.
type Portfolio struct {
	PositionSize   float64 `json:"position_size"`
	EntryPrice     float64 `json:"entry_price"`
	Trades         []Trade `json:"trades"`
	RealizedPnLPct float64 `json:"realized_pnl_pct"`
	Debug          bool    `json:"debug"`
}

// NewPortfolio creates an empty portfolio
func NewPortfolio() *Portfolio {
	return &Portfolio{
		Trades: []Trade{},
	}
}

// IsFlat reports whether the portfolio has no open position
func (p *Portfolio) IsFlat() bool {
	return p.PositionSize == 0
}

// OpenLong opens a long position. Returns an error if a position is already
// open or the trade would break chronological order.
func (p *Portfolio) OpenLong(ts time.Time, size, price float64) error {
	if !p.IsFlat() {
		return fmt.Errorf("cannot open long: position of %f already open", p.PositionSize)
	}
	if size <= 0 {
		return fmt.Errorf("cannot open long: invalid size %f", size)
	}
	if err := p.checkOrder(ts); err != nil {
		return err
	}

	p.PositionSize = size
	p.EntryPrice = price
	p.Trades = append(p.Trades, Trade{
		Timestamp: ts,
		Size:      size,
		Price:     price,
		Reason:    ReasonEnterLong,
	})

	return nil
}

// CloseLong closes the open long position, realizing its P&L. The reason
// records whether the close was signal-driven, a stop or a take-profit.
func (p *Portfolio) CloseLong(ts time.Time, price float64, reason TradeReason) error {
	if p.IsFlat() {
		return fmt.Errorf("cannot close long: no open position")
	}
	if err := p.checkOrder(ts); err != nil {
		return err
	}

	p.Trades = append(p.Trades, Trade{
		Timestamp: ts,
		Size:      -p.PositionSize,
		Price:     price,
		Reason:    reason,
	})

	p.RealizedPnLPct += pnlPct(p.EntryPrice, price)
	p.PositionSize = 0
	p.EntryPrice = 0

	return nil
}

// checkOrder enforces the chronological trade-history invariant
func (p *Portfolio) checkOrder(ts time.Time) error {
	if n := len(p.Trades); n > 0 && ts.Before(p.Trades[n-1].Timestamp) {
		return fmt.Errorf("trade at %s is before last trade at %s", ts, p.Trades[n-1].Timestamp)
	}
	return nil
}

// ClosedTradePnLs replays the trade history and returns the P&L percent of
// every closed round trip, in execution order.
func (p *Portfolio) ClosedTradePnLs() []float64 {
	pnls := []float64{}
	var entryPrice float64
	open := false

	for _, t := range p.Trades {
		if t.IsEntry() {
			entryPrice = t.Price
			open = true
			continue
		}
		if open {
			pnls = append(pnls, pnlPct(entryPrice, t.Price))
			open = false
		}
	}

	return pnls
}

// RecomputeRealizedPnL rebuilds the cumulative realized P&L percent from the
// trade history. It must always equal RealizedPnLPct; the ledger tests hold
// the two together.
func (p *Portfolio) RecomputeRealizedPnL() float64 {
	total := 0.0
	for _, pnl := range p.ClosedTradePnLs() {
		total += pnl
	}
	return total
}

// ClosedTrades returns the number of completed round trips
func (p *Portfolio) ClosedTrades() int {
	return len(p.ClosedTradePnLs())
}

// Clone returns an independent deep copy of the portfolio. The copy shares
// no memory with the original, so it is safe to hand across a worker
// boundary.
func (p *Portfolio) Clone() *Portfolio {
	clone := &Portfolio{
		PositionSize:   p.PositionSize,
		EntryPrice:     p.EntryPrice,
		RealizedPnLPct: p.RealizedPnLPct,
		Debug:          p.Debug,
		Trades:         make([]Trade, len(p.Trades)),
	}
	copy(clone.Trades, p.Trades)
	return clone
}

func pnlPct(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	return (exit - entry) / entry * 100.0
}
