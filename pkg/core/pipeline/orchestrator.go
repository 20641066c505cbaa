// Package pipeline wires fetching, parsing, derivation and storage into
// one run per filing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finstat/pkg/core/filing"
	"finstat/pkg/core/financial"
	"finstat/pkg/core/ingest"
	"finstat/pkg/core/store"
)

// DocumentFetcher retrieves the raw instance document for a filing.
// Implementations may fetch from live SEC EDGAR or a local cache.
type DocumentFetcher interface {
	Fetch(ctx context.Context, loc ingest.Locator) ([]byte, error)
}

// FilingRepository persists parsed filings.
type FilingRepository interface {
	Save(ctx context.Context, f *filing.Filing) error
	FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*filing.Filing, error)
}

// ReportRepository persists derived reports.
type ReportRepository interface {
	Save(ctx context.Context, r *financial.Report) error
	FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*financial.Report, error)
}

// Outcome statuses, also used as the result metric label.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const defaultConcurrency = 4

// Outcome is the result of running one filing through the pipeline.
type Outcome struct {
	Locator ingest.Locator
	Status  string
	Report  *financial.Report
	Err     error
}

// Orchestrator manages the end-to-end flow:
// fetch -> parse -> derive -> save filing -> save report.
type Orchestrator struct {
	fetcher     DocumentFetcher
	parser      *filing.Parser
	factory     *financial.Factory
	filings     FilingRepository
	reports     ReportRepository
	concurrency int
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator with all required dependencies.
func NewOrchestrator(
	fetcher DocumentFetcher,
	parser *filing.Parser,
	factory *financial.Factory,
	filings FilingRepository,
	reports ReportRepository,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		parser:      parser,
		factory:     factory,
		filings:     filings,
		reports:     reports,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// SetConcurrency bounds how many filings RunBatch processes at once.
func (o *Orchestrator) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	o.concurrency = n
}

// Run processes one filing. A filing whose report is already stored under
// the same accession number is skipped.
func (o *Orchestrator) Run(ctx context.Context, loc ingest.Locator) (Outcome, error) {
	out, err := o.run(ctx, loc)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
	}
	filingsProcessed.WithLabelValues(out.Status).Inc()
	return out, err
}

func (o *Orchestrator) run(ctx context.Context, loc ingest.Locator) (Outcome, error) {
	out := Outcome{Locator: loc}

	doc, err := o.fetcher.Fetch(ctx, loc)
	if err != nil {
		return out, fmt.Errorf("fetch %s: %w", loc, err)
	}

	f, err := o.parser.ParseBytes(ctx, doc, filing.ParseOptions{Accession: loc.Accession, ReportDate: loc.FilingDate})
	if err != nil {
		return out, fmt.Errorf("parse %s: %w", loc, err)
	}
	factsParsed.Observe(float64(f.Len()))

	// Smart ingestion: a report for the same accession is already up to date.
	existing, err := o.reports.FindBySymbolAndPeriod(ctx, f.Symbol, f.PeriodEndDate)
	switch {
	case err == nil && existing.Accession != "" && existing.Accession == f.Accession:
		o.logger.Info("skipping filing, already processed",
			"symbol", f.Symbol, "period", f.PeriodEndDate, "accession", f.Accession)
		out.Status = StatusSkipped
		out.Report = existing
		return out, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return out, fmt.Errorf("check existing report for %s: %w", loc, err)
	}

	// Facts are kept even when derivation fails so the filing can be
	// rederived once the catalogue changes.
	if err := o.filings.Save(ctx, f); err != nil {
		return out, fmt.Errorf("save filing %s: %w", loc, err)
	}

	start := time.Now()
	report, err := o.factory.Create(ctx, f)
	derivationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return out, err
	}
	if err := o.reports.Save(ctx, report); err != nil {
		return out, fmt.Errorf("save report %s: %w", loc, err)
	}

	o.logger.Info("processed filing",
		"symbol", f.Symbol, "period", f.PeriodEndDate, "accession", f.Accession, "facts", f.Len())
	out.Status = StatusProcessed
	out.Report = report
	return out, nil
}

// RunBatch processes locs concurrently. A failing filing is logged and
// recorded in its Outcome without stopping the others; only cancellation
// of ctx fails the batch. Outcomes are returned in the order of locs.
func (o *Orchestrator) RunBatch(ctx context.Context, locs []ingest.Locator) ([]Outcome, error) {
	outcomes := make([]Outcome, len(locs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, loc := range locs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				outcomes[i] = Outcome{Locator: loc, Status: StatusFailed, Err: err}
				return err
			}
			out, err := o.Run(gCtx, loc)
			if err != nil {
				o.logger.Warn("filing failed, skipping", "filing", loc.String(), "error", err)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) map[string]int {
	counts := make(map[string]int, 3)
	for _, out := range outcomes {
		counts[out.Status]++
	}
	return counts
}
