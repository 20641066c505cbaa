package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstat/pkg/core/filing"
	"finstat/pkg/core/financial"
	"finstat/pkg/core/ingest"
	"finstat/pkg/core/rule"
	"finstat/pkg/core/store"
)

// --- Mocks ---

type MockFetcher struct {
	FetchFunc func(ctx context.Context, loc ingest.Locator) ([]byte, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, loc ingest.Locator) ([]byte, error) {
	return m.FetchFunc(ctx, loc)
}

type MockFilingRepo struct {
	mu    sync.Mutex
	Saved []*filing.Filing
}

func (m *MockFilingRepo) Save(ctx context.Context, f *filing.Filing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, f)
	return nil
}

func (m *MockFilingRepo) FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*filing.Filing, error) {
	return nil, store.ErrNotFound
}

type MockReportRepo struct {
	mu       sync.Mutex
	Reports  map[string]*financial.Report
	FindFunc func(ctx context.Context, symbol, period string) (*financial.Report, error)
}

func (m *MockReportRepo) Save(ctx context.Context, r *financial.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Reports == nil {
		m.Reports = make(map[string]*financial.Report)
	}
	m.Reports[r.Symbol+"@"+r.PeriodEndDate] = r
	return nil
}

func (m *MockReportRepo) FindBySymbolAndPeriod(ctx context.Context, symbol, period string) (*financial.Report, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, symbol, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.Reports[symbol+"@"+period]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

// --- Helpers ---

func sampleDocument(t *testing.T) []byte {
	t.Helper()
	doc, err := os.ReadFile("../filing/testdata/sample_10q.xml")
	require.NoError(t, err)
	return doc
}

func grossProfitFactory(t *testing.T) *financial.Factory {
	t.Helper()
	b := rule.NewBuilder()
	require.NoError(t, b.Rule("income/GrossProfit", "",
		rule.Factor{Tag: "income/Revenue", Weight: 1},
		rule.Factor{Tag: "income/CostOfRevenue", Weight: -1}))
	require.NoError(t, b.Simple("income/Revenue", "filling/us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax"))
	require.NoError(t, b.Simple("income/CostOfRevenue", "filling/us-gaap:CostOfRevenue"))
	g, err := b.Build()
	require.NoError(t, err)
	return financial.NewFactory(financial.NewCatalogue(financial.StatementDefinition{Type: financial.StatementIncome, Rules: g}), nil)
}

func newTestOrchestrator(t *testing.T, fetcher DocumentFetcher, reports *MockReportRepo) (*Orchestrator, *MockFilingRepo) {
	t.Helper()
	filings := &MockFilingRepo{}
	return NewOrchestrator(fetcher, filing.NewParser(nil), grossProfitFactory(t), filings, reports, nil), filings
}

var loc = ingest.Locator{Symbol: "TEST", Form: "10-Q", URL: "http://example/test.xml", Accession: "0000000001-21-000002", FilingDate: "2021-04-29"}

// --- Tests ---

func TestOrchestrator_Run(t *testing.T) {
	doc := sampleDocument(t)
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) { return doc, nil }}
	reports := &MockReportRepo{}
	o, filings := newTestOrchestrator(t, fetcher, reports)

	before := testutil.ToFloat64(filingsProcessed.WithLabelValues(StatusProcessed))
	out, err := o.Run(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, StatusProcessed, out.Status)
	require.NotNil(t, out.Report)
	amt, ok := out.Report.ItemValue(financial.StatementIncome, "GrossProfit")
	require.True(t, ok)
	assert.Equal(t, 60.0, amt.Value)
	assert.Equal(t, loc.Accession, out.Report.Accession)
	assert.Equal(t, loc.FilingDate, out.Report.ReportDate)

	require.Len(t, filings.Saved, 1)
	assert.Equal(t, 7, filings.Saved[0].Len())
	assert.Contains(t, reports.Reports, "TEST@2021-04-01")
	assert.Equal(t, before+1, testutil.ToFloat64(filingsProcessed.WithLabelValues(StatusProcessed)))
}

func TestOrchestrator_SkipsProcessedAccession(t *testing.T) {
	doc := sampleDocument(t)
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) { return doc, nil }}
	existing := &financial.Report{Symbol: "TEST", PeriodEndDate: "2021-04-01", Accession: loc.Accession}
	reports := &MockReportRepo{Reports: map[string]*financial.Report{"TEST@2021-04-01": existing}}
	o, filings := newTestOrchestrator(t, fetcher, reports)

	out, err := o.Run(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Same(t, existing, out.Report)
	assert.Empty(t, filings.Saved)
}

func TestOrchestrator_ReprocessesNewAccession(t *testing.T) {
	doc := sampleDocument(t)
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) { return doc, nil }}
	stale := &financial.Report{Symbol: "TEST", PeriodEndDate: "2021-04-01", Accession: "older"}
	reports := &MockReportRepo{Reports: map[string]*financial.Report{"TEST@2021-04-01": stale}}
	o, _ := newTestOrchestrator(t, fetcher, reports)

	out, err := o.Run(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, out.Status)
	assert.NotSame(t, stale, reports.Reports["TEST@2021-04-01"])
}

func TestOrchestrator_RunFailures(t *testing.T) {
	doc := sampleDocument(t)
	tests := []struct {
		name    string
		fetch   func(ctx context.Context, l ingest.Locator) ([]byte, error)
		find    func(ctx context.Context, symbol, period string) (*financial.Report, error)
		wantErr error
	}{
		{
			name:    "fetch error",
			fetch:   func(ctx context.Context, l ingest.Locator) ([]byte, error) { return nil, errors.New("boom") },
		},
		{
			name:    "malformed document",
			fetch:   func(ctx context.Context, l ingest.Locator) ([]byte, error) { return []byte("<html></html>"), nil },
			wantErr: filing.ErrDocumentStructure,
		},
		{
			name:  "repository error",
			fetch: func(ctx context.Context, l ingest.Locator) ([]byte, error) { return doc, nil },
			find: func(ctx context.Context, symbol, period string) (*financial.Report, error) {
				return nil, errors.New("connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, filings := newTestOrchestrator(t, &MockFetcher{FetchFunc: tt.fetch}, &MockReportRepo{FindFunc: tt.find})
			out, err := o.Run(context.Background(), loc)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, StatusFailed, out.Status)
			assert.Nil(t, out.Report)
			assert.Empty(t, filings.Saved)
		})
	}
}

func TestOrchestrator_RunBatch(t *testing.T) {
	doc := sampleDocument(t)
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) {
		if l.Accession == "bad" {
			return nil, fmt.Errorf("not found")
		}
		return doc, nil
	}}
	o, _ := newTestOrchestrator(t, fetcher, &MockReportRepo{})
	o.SetConcurrency(2)

	bad := loc
	bad.Accession = "bad"
	locs := []ingest.Locator{loc, bad, loc}

	outcomes, err := o.RunBatch(context.Background(), locs)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Equal(t, "bad", outcomes[1].Locator.Accession)

	counts := Summarize(outcomes)
	assert.Equal(t, 1, counts[StatusFailed])
	assert.Equal(t, 2, counts[StatusProcessed]+counts[StatusSkipped])
}

func TestOrchestrator_RunBatchCancelled(t *testing.T) {
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) {
		return nil, ctx.Err()
	}}
	o, _ := newTestOrchestrator(t, fetcher, &MockReportRepo{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, err := o.RunBatch(ctx, []ingest.Locator{loc, loc})
	assert.ErrorIs(t, err, context.Canceled)
	for _, out := range outcomes {
		assert.Equal(t, StatusFailed, out.Status)
	}
}

func TestOrchestrator_KeepsFilingWhenDerivationFails(t *testing.T) {
	doc := sampleDocument(t)
	fetcher := &MockFetcher{FetchFunc: func(ctx context.Context, l ingest.Locator) ([]byte, error) { return doc, nil }}
	cat, err := financial.DefaultCatalogue()
	require.NoError(t, err)

	filings := &MockFilingRepo{}
	reports := &MockReportRepo{}
	o := NewOrchestrator(fetcher, filing.NewParser(nil), financial.NewFactory(cat, nil), filings, reports, nil)

	// The sample carries only a few income concepts.
	out, err := o.Run(context.Background(), loc)
	require.ErrorIs(t, err, rule.ErrMissingValue)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Nil(t, out.Report)

	require.Len(t, filings.Saved, 1)
	assert.Equal(t, loc.Accession, filings.Saved[0].Accession)
	assert.Empty(t, reports.Reports)
}
