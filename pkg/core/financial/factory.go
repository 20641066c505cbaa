package financial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finstat/pkg/core/filing"
	"finstat/pkg/core/rule"
)

// Factory turns a Filing into a Report by evaluating every definition of
// its catalogue in order.
type Factory struct {
	catalogue *Catalogue
	logger    *slog.Logger
}

// NewFactory creates a factory over catalogue. A nil logger falls back to
// slog.Default.
func NewFactory(catalogue *Catalogue, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{catalogue: catalogue, logger: logger}
}

// Create derives a report from f. Any rule failure aborts the run and no
// report is returned.
func (fac *Factory) Create(ctx context.Context, f *filing.Filing) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New("financial: nil filing")
	}

	report := NewReport(f)
	src := NewSource(f, report)
	dst := NewTarget(report)

	trace := func(r rule.Rule, amt rule.Amount) {
		fac.logger.Debug("rule applied", "rule", r.Tag, "unit", amt.Unit, "value", amt.Value)
	}

	for _, def := range fac.catalogue.Definitions() {
		report.AddStatement(NewStatement(def.Type))
		if def.Rules == nil {
			continue
		}
		if err := def.Rules.Apply(src, dst, trace); err != nil {
			fac.logger.Warn("derivation aborted",
				"symbol", f.Symbol,
				"period", f.PeriodEndDate,
				"statement", def.Type,
				"error", err)
			return nil, fmt.Errorf("derive %s statement for %s %s: %w", def.Type, f.Symbol, f.PeriodEndDate, err)
		}
	}

	fac.logger.Info("derived report",
		"symbol", f.Symbol,
		"period", f.PeriodEndDate,
		"statements", len(report.order))
	return report, nil
}
