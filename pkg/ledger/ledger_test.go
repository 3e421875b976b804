package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func TestPortfolio_OpenClose(t *testing.T) {
	p := NewPortfolio()
	require.True(t, p.IsFlat())

	require.NoError(t, p.OpenLong(ts(1), 1.0, 100.0))
	assert.False(t, p.IsFlat())
	assert.Equal(t, 100.0, p.EntryPrice)

	require.NoError(t, p.CloseLong(ts(2), 110.0, ReasonExitLong))
	assert.True(t, p.IsFlat())
	assert.InDelta(t, 10.0, p.RealizedPnLPct, 1e-9)
	assert.Len(t, p.Trades, 2)
	assert.Equal(t, ReasonExitLong, p.Trades[1].Reason)
}

func TestPortfolio_DoubleOpenRejected(t *testing.T) {
	p := NewPortfolio()
	require.NoError(t, p.OpenLong(ts(1), 1.0, 100.0))

	err := p.OpenLong(ts(2), 1.0, 105.0)
	assert.Error(t, err)
}

func TestPortfolio_CloseWithoutOpenRejected(t *testing.T) {
	p := NewPortfolio()
	assert.Error(t, p.CloseLong(ts(1), 100.0, ReasonExitLong))
}

func TestPortfolio_ChronologicalOrderEnforced(t *testing.T) {
	p := NewPortfolio()
	require.NoError(t, p.OpenLong(ts(5), 1.0, 100.0))

	err := p.CloseLong(ts(4), 110.0, ReasonExitLong)
	assert.Error(t, err)
}

func TestPortfolio_RealizedPnLRoundTrip(t *testing.T) {
	// The cumulative realized P&L must always equal the sum of closed-trade
	// P&L recovered by replaying the trade history.
	p := NewPortfolio()

	require.NoError(t, p.OpenLong(ts(1), 1.0, 100.0))
	require.NoError(t, p.CloseLong(ts(2), 110.0, ReasonTakeProfit))
	require.NoError(t, p.OpenLong(ts(3), 2.0, 110.0))
	require.NoError(t, p.CloseLong(ts(4), 99.0, ReasonStopLoss))
	require.NoError(t, p.OpenLong(ts(5), 1.0, 99.0))
	require.NoError(t, p.CloseLong(ts(6), 99.0, ReasonEndOfData))

	assert.InDelta(t, p.RealizedPnLPct, p.RecomputeRealizedPnL(), 1e-9)
	assert.Equal(t, 3, p.ClosedTrades())

	pnls := p.ClosedTradePnLs()
	require.Len(t, pnls, 3)
	assert.InDelta(t, 10.0, pnls[0], 1e-9)
	assert.InDelta(t, -10.0, pnls[1], 1e-9)
	assert.InDelta(t, 0.0, pnls[2], 1e-9)
}

func TestPortfolio_CloneIsIndependent(t *testing.T) {
	p := NewPortfolio()
	require.NoError(t, p.OpenLong(ts(1), 1.0, 100.0))
	require.NoError(t, p.CloseLong(ts(2), 105.0, ReasonExitLong))

	clone := p.Clone()
	require.Equal(t, p, clone)

	clone.Trades[0].Price = 999.0
	clone.RealizedPnLPct = -1

	assert.Equal(t, 100.0, p.Trades[0].Price)
	assert.InDelta(t, 5.0, p.RealizedPnLPct, 1e-9)
}
