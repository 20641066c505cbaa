package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"finstat/pkg/api/report"
	"finstat/pkg/core/filing"
	"finstat/pkg/core/financial"
	"finstat/pkg/core/ingest"
	"finstat/pkg/core/pipeline"
	"finstat/pkg/core/render"
	"finstat/pkg/core/store"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse an XBRL instance document and list its facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filing.NewParser(a.logger).ParseFile(cmd.Context(), args[0], filing.ParseOptions{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, f)
			for _, fact := range f.Facts() {
				fmt.Fprintln(out, fact)
			}
			return nil
		},
	}
}

func newDeriveCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "derive <file>",
		Short: "Derive statements from an XBRL instance document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filing.NewParser(a.logger).ParseFile(cmd.Context(), args[0], filing.ParseOptions{})
			if err != nil {
				return err
			}
			catalogue, err := financial.DefaultCatalogue()
			if err != nil {
				return err
			}
			rep, err := financial.NewFactory(catalogue, a.logger).Create(cmd.Context(), f)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, html or json")
	return cmd
}

func writeReport(cmd *cobra.Command, rep *financial.Report, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case "markdown", "md":
		_, err := fmt.Fprint(out, render.Markdown(rep))
		return err
	case "html":
		body, err := render.HTML(rep)
		if err != nil {
			return err
		}
		_, err = out.Write(body)
		return err
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return fmt.Errorf("unknown format %q", format)
}

func newIngestCmd(a *app) *cobra.Command {
	var forms []string
	cmd := &cobra.Command{
		Use:   "ingest <symbol>",
		Short: "Download a company's filings from EDGAR, derive and store their reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := store.OpenPool(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			client := ingest.NewEDGARClient(ingest.ClientOptions{
				UserAgent:         a.cfg.EDGAR.UserAgent,
				Timeout:           a.cfg.EDGAR.Timeout,
				RequestsPerSecond: a.cfg.EDGAR.RequestsPerSecond,
				MaxRetries:        a.cfg.EDGAR.MaxRetries,
			}, a.logger)
			fetcher := ingest.NewSECFetcher(client, a.cfg.EDGAR.CacheDir, a.logger)

			locs, err := fetcher.Locate(ctx, args[0], a.cfg.Pipeline.IndexCount, forms...)
			if err != nil {
				return err
			}

			catalogue, err := financial.DefaultCatalogue()
			if err != nil {
				return err
			}
			orch := pipeline.NewOrchestrator(
				fetcher,
				filing.NewParser(a.logger),
				financial.NewFactory(catalogue, a.logger),
				store.NewFilingRepo(pool),
				store.NewReportRepo(pool),
				a.logger,
			)
			orch.SetConcurrency(a.cfg.Pipeline.Concurrency)

			outcomes, err := orch.RunBatch(ctx, locs)
			counts := pipeline.Summarize(outcomes)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processed, %d skipped, %d failed\n", args[0],
				counts[pipeline.StatusProcessed], counts[pipeline.StatusSkipped], counts[pipeline.StatusFailed])
			return err
		},
	}
	cmd.Flags().StringSliceVar(&forms, "form", nil, "form types to fetch (default 10-K,10-Q)")
	return cmd
}

func newRederiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rederive <symbol>",
		Short: "Rebuild a company's stored reports from its stored facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := store.OpenPool(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			filings, err := store.NewFilingRepo(pool).FindAllBySymbol(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			catalogue, err := financial.DefaultCatalogue()
			if err != nil {
				return err
			}
			return rederive(ctx, financial.NewFactory(catalogue, a.logger), store.NewReportRepo(pool), filings, cmd.OutOrStdout(), a.logger)
		},
	}
}

// rederive derives and saves a report for every filing. A filing that
// cannot be derived is logged and skipped.
func rederive(ctx context.Context, factory *financial.Factory, reports pipeline.ReportRepository, filings []*filing.Filing, out io.Writer, logger *slog.Logger) error {
	var saved, failed int
	for _, f := range filings {
		rep, err := factory.Create(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("rederive failed, skipping", "filing", f.String(), "error", err)
			failed++
			continue
		}
		if err := reports.Save(ctx, rep); err != nil {
			return err
		}
		saved++
	}
	fmt.Fprintf(out, "%d reports saved, %d failed\n", saved, failed)
	return nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve stored reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := store.OpenPool(ctx, a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			mux := http.NewServeMux()
			mux.HandleFunc("/api/report", report.NewHandler(store.NewReportRepo(pool), a.logger).HandleReport)
			mux.Handle("/metrics", promhttp.Handler())

			srv := &http.Server{Addr: a.cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("API server starting", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := store.OpenPool(cmd.Context(), a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.EnsureSchema(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}
