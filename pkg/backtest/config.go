// Monitor configuration: the searchable description of a trading strategy
package backtest

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratevolve/stratevolve/internal/indicators"
)

// ============================================================================
// PARAMETER RANGES
// ============================================================================

// ParamRange declares one tunable parameter: its bounds and whether values
// are rounded to integers. A range with Min == Max is a fixed parameter and
// is excluded from mutation.
type ParamRange struct {
	Name    string  `yaml:"name" json:"name"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Integer bool    `yaml:"integer" json:"integer"`
}

// Fixed reports whether the range pins a single value
func (r ParamRange) Fixed() bool {
	return r.Min == r.Max
}

// Clamp forces a value into the range, rounding integer-typed parameters
func (r ParamRange) Clamp(v float64) float64 {
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	if r.Integer {
		v = math.Round(v)
		// Rounding can step outside a non-integer boundary
		if v < r.Min {
			v = math.Ceil(r.Min)
		}
		if v > r.Max {
			v = math.Floor(r.Max)
		}
	}
	return v
}

// Default returns the midpoint of the range, used when an individual does
// not carry a value for the parameter
func (r ParamRange) Default() float64 {
	return r.Clamp(r.Min + (r.Max-r.Min)/2)
}

func (r ParamRange) validate() error {
	if r.Name == "" {
		return fmt.Errorf("parameter range has no name")
	}
	if r.Min > r.Max {
		return fmt.Errorf("parameter %q: min %f greater than max %f", r.Name, r.Min, r.Max)
	}
	return nil
}

// ============================================================================
// MONITOR CONFIGURATION
// ============================================================================

// IndicatorSpec declares one indicator instance and the ranges of its
// tunable parameters
type IndicatorSpec struct {
	Name   string       `yaml:"name" json:"name"` // unique instance name, e.g. "rsi_fast"
	Kind   string       `yaml:"kind" json:"kind"` // rsi, ema, sma, macd, bollinger
	Params []ParamRange `yaml:"params" json:"params"`
}

// BarWeight binds one indicator instance into a bar with a tunable weight
type BarWeight struct {
	Indicator string     `yaml:"indicator" json:"indicator"`
	Weight    ParamRange `yaml:"weight" json:"weight"`
}

// BarSpec declares a composite bar: a weighted sum of indicator signals
type BarSpec struct {
	Name    string      `yaml:"name" json:"name"`
	Weights []BarWeight `yaml:"weights" json:"weights"`
}

// ExecutorConfig holds the trade-executor policy applied during simulation.
// Stop-loss and take-profit are percentages of the entry price; zero
// disables the check.
type ExecutorConfig struct {
	PositionSize  float64 `yaml:"position_size" json:"position_size"`
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`
}

// MonitorConfig is the full searchable strategy description: indicators with
// parameter ranges, bars with weight ranges, entry/exit threshold ranges and
// the executor policy. It arrives already parsed from a configuration
// collaborator; LoadMonitorConfig reads the YAML form.
type MonitorConfig struct {
	Name           string          `yaml:"name" json:"name"`
	Indicators     []IndicatorSpec `yaml:"indicators" json:"indicators"`
	Bars           []BarSpec       `yaml:"bars" json:"bars"`
	EntryBar       string          `yaml:"entry_bar" json:"entry_bar"` // defaults to the first bar
	ExitBar        string          `yaml:"exit_bar" json:"exit_bar"`   // defaults to the entry bar
	EntryThreshold ParamRange      `yaml:"entry_threshold" json:"entry_threshold"`
	ExitThreshold  ParamRange      `yaml:"exit_threshold" json:"exit_threshold"`
	Executor       ExecutorConfig  `yaml:"executor" json:"executor"`
}

// Gene name layout: indicator parameters are addressed as
// "<indicator>.<param>", bar weights as "<bar>.w.<indicator>" and the two
// thresholds by their own names.
const (
	GeneEntryThreshold = "entry_threshold"
	GeneExitThreshold  = "exit_threshold"
)

// GeneName builds the gene name of an indicator parameter
func GeneName(indicator, param string) string {
	return indicator + "." + param
}

// WeightGeneName builds the gene name of a bar weight
func WeightGeneName(bar, indicator string) string {
	return bar + ".w." + indicator
}

// ParamRanges flattens every tunable parameter of the configuration into a
// single named range list: indicator parameters, bar weights and the entry
// and exit thresholds. This is the genome the optimizer searches.
func (c *MonitorConfig) ParamRanges() []ParamRange {
	var ranges []ParamRange

	for _, ind := range c.Indicators {
		for _, p := range ind.Params {
			r := p
			r.Name = GeneName(ind.Name, p.Name)
			ranges = append(ranges, r)
		}
	}

	for _, bar := range c.Bars {
		for _, w := range bar.Weights {
			r := w.Weight
			r.Name = WeightGeneName(bar.Name, w.Indicator)
			ranges = append(ranges, r)
		}
	}

	entry := c.EntryThreshold
	entry.Name = GeneEntryThreshold
	exit := c.ExitThreshold
	exit.Name = GeneExitThreshold
	ranges = append(ranges, entry, exit)

	return ranges
}

// Validate checks the configuration for generation-fatal problems: inverted
// ranges, unknown indicator kinds and bars referencing undeclared indicators.
func (c *MonitorConfig) Validate() error {
	if len(c.Indicators) == 0 {
		return fmt.Errorf("monitor config %q declares no indicators", c.Name)
	}
	if len(c.Bars) == 0 {
		return fmt.Errorf("monitor config %q declares no bars", c.Name)
	}

	names := make(map[string]bool, len(c.Indicators))
	for _, ind := range c.Indicators {
		if ind.Name == "" {
			return fmt.Errorf("indicator of kind %q has no name", ind.Kind)
		}
		if names[ind.Name] {
			return fmt.Errorf("duplicate indicator name %q", ind.Name)
		}
		names[ind.Name] = true

		if !indicators.ValidKind(indicators.Kind(ind.Kind)) {
			return fmt.Errorf("indicator %q: unknown kind %q", ind.Name, ind.Kind)
		}
		for _, p := range ind.Params {
			if err := p.validate(); err != nil {
				return fmt.Errorf("indicator %q: %w", ind.Name, err)
			}
		}
	}

	for _, bar := range c.Bars {
		if bar.Name == "" {
			return fmt.Errorf("bar has no name")
		}
		if len(bar.Weights) == 0 {
			return fmt.Errorf("bar %q has no weights", bar.Name)
		}
		for _, w := range bar.Weights {
			if !names[w.Indicator] {
				return fmt.Errorf("bar %q references unknown indicator %q", bar.Name, w.Indicator)
			}
			weight := w.Weight
			weight.Name = WeightGeneName(bar.Name, w.Indicator)
			if err := weight.validate(); err != nil {
				return fmt.Errorf("bar %q: %w", bar.Name, err)
			}
		}
	}

	if c.EntryBar != "" && c.findBar(c.EntryBar) == nil {
		return fmt.Errorf("entry bar %q not declared", c.EntryBar)
	}
	if c.ExitBar != "" && c.findBar(c.ExitBar) == nil {
		return fmt.Errorf("exit bar %q not declared", c.ExitBar)
	}

	entry := c.EntryThreshold
	entry.Name = GeneEntryThreshold
	if err := entry.validate(); err != nil {
		return err
	}
	exit := c.ExitThreshold
	exit.Name = GeneExitThreshold
	if err := exit.validate(); err != nil {
		return err
	}

	if c.Executor.PositionSize <= 0 {
		return fmt.Errorf("executor position size must be positive, got %f", c.Executor.PositionSize)
	}
	if c.Executor.StopLossPct < 0 || c.Executor.TakeProfitPct < 0 {
		return fmt.Errorf("stop-loss and take-profit percentages cannot be negative")
	}

	return nil
}

func (c *MonitorConfig) findBar(name string) *BarSpec {
	for i := range c.Bars {
		if c.Bars[i].Name == name {
			return &c.Bars[i]
		}
	}
	return nil
}

// entryBar resolves the bar driving entries, defaulting to the first bar
func (c *MonitorConfig) entryBar() *BarSpec {
	if c.EntryBar != "" {
		return c.findBar(c.EntryBar)
	}
	return &c.Bars[0]
}

// exitBar resolves the bar driving exits, defaulting to the entry bar
func (c *MonitorConfig) exitBar() *BarSpec {
	if c.ExitBar != "" {
		return c.findBar(c.ExitBar)
	}
	return c.entryBar()
}

// LoadMonitorConfig reads and validates a monitor configuration from a YAML
// file
func LoadMonitorConfig(path string) (*MonitorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitor config: %w", err)
	}

	var cfg MonitorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse monitor config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	return &cfg, nil
}
