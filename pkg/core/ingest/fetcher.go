package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// Locator identifies one instance document to fetch.
type Locator struct {
	Symbol     string
	Form       string
	URL        string
	Accession  string
	FilingDate string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s %s %s", l.Symbol, l.Form, l.Accession)
}

// SECFetcher downloads instance documents from EDGAR.
// If cacheDir is set, documents are stored under cacheDir/symbol/accession/
// and served from there on later calls.
type SECFetcher struct {
	client   *EDGARClient
	cacheDir string
	logger   *slog.Logger
}

// NewSECFetcher creates a fetcher over client.
func NewSECFetcher(client *EDGARClient, cacheDir string, logger *slog.Logger) *SECFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SECFetcher{client: client, cacheDir: cacheDir, logger: logger}
}

// Fetch returns the document bytes for loc.
func (f *SECFetcher) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	cachePath := f.cachePath(loc)
	if cachePath != "" {
		if content, err := os.ReadFile(cachePath); err == nil && len(content) > 0 {
			f.logger.Debug("document served from cache", "path", cachePath)
			return content, nil
		}
	}

	content, err := f.client.Get(ctx, loc.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", loc, err)
	}

	if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			f.logger.Warn("cannot create cache directory", "path", cachePath, "error", err)
		} else if err := os.WriteFile(cachePath, content, 0o644); err != nil {
			f.logger.Warn("cannot write cache file", "path", cachePath, "error", err)
		}
	}
	return content, nil
}

// Locate lists the instance documents of symbol's filings for forms.
// Filings without an instance document are skipped.
func (f *SECFetcher) Locate(ctx context.Context, symbol string, count int, forms ...string) ([]Locator, error) {
	group, err := f.client.LoadIndexGroup(ctx, symbol, count, forms...)
	if err != nil {
		return nil, err
	}

	locs := make([]Locator, 0, len(group.Indexes))
	for _, idx := range group.Indexes {
		link, ok := idx.InstanceDocument()
		if !ok {
			f.logger.Warn("filing has no instance document", "url", idx.URL)
			continue
		}
		locs = append(locs, Locator{
			Symbol:     symbol,
			Form:       idx.Form,
			URL:        link,
			Accession:  idx.Accession,
			FilingDate: idx.Date,
		})
	}
	f.logger.Info("located filings", "symbol", symbol, "count", len(locs))
	return locs, nil
}

func (f *SECFetcher) cachePath(loc Locator) string {
	if f.cacheDir == "" || loc.URL == "" {
		return ""
	}
	accession := loc.Accession
	if accession == "" {
		accession = "unknown"
	}
	return filepath.Join(f.cacheDir, loc.Symbol, accession, path.Base(loc.URL))
}
