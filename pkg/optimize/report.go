// ============================================================================
// REPORT GENERATION
// ============================================================================
package optimize

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenerateReport renders a human-readable summary of a finished run: the
// termination outcome, the convergence history and the elite front.
func GenerateReport(result *Result, objectives []ObjectiveSpec) string {
	var b strings.Builder

	b.WriteString(`
================================================================================
OPTIMIZATION REPORT
================================================================================

`)
	b.WriteString(fmt.Sprintf(`OVERVIEW
--------
Termination:      %s
Generations:      %d
Elapsed:          %s
Elite Front Size: %d

`,
		result.Reason,
		result.Generations,
		result.Elapsed.Round(time.Millisecond),
		len(result.EliteFront),
	))

	b.WriteString("CONVERGENCE\n-----------\n")
	for _, rec := range result.History {
		b.WriteString(fmt.Sprintf("Gen %3d  best score %10.4f  evaluated %3d  failed %2d\n",
			rec.Generation, rec.BestWeightedScore, rec.Evaluated, rec.Failed))
	}
	b.WriteString("\n")

	b.WriteString("ELITE FRONT\n-----------\n")
	for i, s := range result.EliteFront {
		b.WriteString(fmt.Sprintf("#%d  score %.4f\n", i+1, s.WeightedScore(objectives)))
		for j, obj := range objectives {
			if j < len(s.Fitness) {
				b.WriteString(fmt.Sprintf("    %-16s %10.4f\n", obj.Name, s.Fitness[j]))
			}
		}
		b.WriteString(fmt.Sprintf(`    Total Trades:    %d
    Winning Trades:  %d
    Losing Trades:   %d
    Total P&L:       %.2f%%
    Average Win:     %.2f%%
    Average Loss:    %.2f%%
    Max Drawdown:    %.2f%%
    Market Return:   %.2f%%
`,
			s.TotalTrades,
			s.WinningTrades,
			s.LosingTrades,
			s.TotalPnLPct,
			s.AverageWinPct,
			s.AverageLossPct,
			s.MaxDrawdownPct,
			s.MarketReturnPct,
		))
		b.WriteString("    Genes:\n")
		for _, name := range sortedGeneNames(s.Individual) {
			b.WriteString(fmt.Sprintf("      %-24s %g\n", name, s.Individual.Genes[name]))
		}
		b.WriteString("\n")
	}

	b.WriteString("================================================================================\n")
	return b.String()
}

func sortedGeneNames(ind Individual) []string {
	names := make([]string, 0, len(ind.Genes))
	for name := range ind.Genes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
