// Objective functions: pure ledger-to-score functions selected by name
package optimize

import (
	"fmt"

	"github.com/stratevolve/stratevolve/pkg/ledger"
)

// ObjectiveFunc scores one completed portfolio. All objectives are oriented
// so that bigger is better; minimized quantities return their negation, the
// way drawdown does below.
type ObjectiveFunc func(*ledger.Portfolio) float64

// ObjectiveSpec selects a registered objective and assigns it the weight
// used for weighted-sum tie-breaking between Pareto-equivalent individuals.
type ObjectiveSpec struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Registered objective names
const (
	ObjectiveTotalPnL     = "total_pnl"
	ObjectiveMaxDrawdown  = "max_drawdown"
	ObjectiveWinRate      = "win_rate"
	ObjectiveProfitFactor = "profit_factor"
)

var objectiveRegistry = map[string]ObjectiveFunc{
	// Cumulative realized P&L percent
	ObjectiveTotalPnL: func(p *ledger.Portfolio) float64 {
		return p.RealizedPnLPct
	},

	// Negated because drawdown is minimized
	ObjectiveMaxDrawdown: func(p *ledger.Portfolio) float64 {
		return -MaxDrawdownPct(p)
	},

	ObjectiveWinRate: func(p *ledger.Portfolio) float64 {
		pnls := p.ClosedTradePnLs()
		if len(pnls) == 0 {
			return 0
		}
		wins := 0
		for _, pnl := range pnls {
			if pnl > 0 {
				wins++
			}
		}
		return float64(wins) / float64(len(pnls)) * 100.0
	},

	ObjectiveProfitFactor: func(p *ledger.Portfolio) float64 {
		var profit, loss float64
		for _, pnl := range p.ClosedTradePnLs() {
			if pnl > 0 {
				profit += pnl
			} else {
				loss -= pnl
			}
		}
		if loss == 0 {
			return profit
		}
		return profit / loss
	},
}

// ObjectiveByName looks up a registered objective function
func ObjectiveByName(name string) (ObjectiveFunc, error) {
	fn, ok := objectiveRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective: %s", name)
	}
	return fn, nil
}

// DefaultObjectives is the standard two-objective setup: maximize total P&L,
// minimize max drawdown.
func DefaultObjectives() []ObjectiveSpec {
	return []ObjectiveSpec{
		{Name: ObjectiveTotalPnL, Weight: 1.0},
		{Name: ObjectiveMaxDrawdown, Weight: 1.0},
	}
}

// MaxDrawdownPct returns the worst peak-to-trough fall of the cumulative
// closed-trade P&L curve, in percentage points.
func MaxDrawdownPct(p *ledger.Portfolio) float64 {
	var cumulative, peak, maxDrawdown float64

	for _, pnl := range p.ClosedTradePnLs() {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	return maxDrawdown
}
