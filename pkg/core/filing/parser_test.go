package filing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func parseSample(t *testing.T) *Filing {
	t.Helper()
	f, err := newTestParser().ParseFile(context.Background(), filepath.Join("testdata", "sample_10q.xml"),
		ParseOptions{Accession: "0000000001-21-000001"})
	require.NoError(t, err)
	return f
}

func TestParser_Headers(t *testing.T) {
	f := parseSample(t)
	assert.Equal(t, "TEST", f.Symbol)
	assert.Equal(t, Type10Q, f.Type)
	assert.Equal(t, "2021-04-01", f.PeriodEndDate)
	assert.Equal(t, "0000000001-21-000001", f.Accession)
}

func TestParser_Facts(t *testing.T) {
	f := parseSample(t)

	// Seven distinct keys. The repeated revenue facts share a key with the
	// first one; dangling context, non-numeric value, dropped context and
	// missing unit are skipped.
	assert.Equal(t, 7, f.Len())

	rev, ok := f.Fact("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax", "", nil)
	require.True(t, ok)
	assert.Equal(t, 100.0, rev.Value(), "first insertion wins")
	assert.Equal(t, "usd", rev.Unit())
	assert.Equal(t, 1, rev.Quarters())

	for _, tag := range []string{"us-gaap:Liabilities", "us-gaap:Goodwill", "us-gaap:StockholdersEquity", "us-gaap:Cash"} {
		_, ok := f.Fact(tag, "", nil)
		assert.False(t, ok, tag)
	}
}

func TestParser_QuarterSpans(t *testing.T) {
	f := parseSample(t)

	assets, ok := f.Fact("us-gaap:Assets", "", nil)
	require.True(t, ok)
	assert.Equal(t, 0, assets.Quarters(), "instant context")

	eps, ok := f.Fact("us-gaap:EarningsPerShareBasic", "", nil)
	require.True(t, ok)
	assert.Equal(t, 1, eps.Quarters())

	// The six month revenue shares tag and end date with the quarter's fact
	// but has a different quarter span; the key does not include the span,
	// so the quarter fact inserted first is the one retained.
	rev, ok := f.Fact("us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax", "", nil)
	require.True(t, ok)
	assert.Equal(t, 1, rev.Quarters())
}

func TestParser_MemberSuffixStripped(t *testing.T) {
	f := parseSample(t)

	got, err := f.FactByKeyString("us-gaap:AllocatedShareBasedCompensationExpense#us-gaap:IncomeStatementLocationAxis=us-gaap:CostOfSales", "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.Value())

	plain, err := f.FactByKeyString("us-gaap:AllocatedShareBasedCompensationExpense", "")
	require.NoError(t, err)
	assert.Equal(t, 30.0, plain.Value())
}

func TestQuarterSpan(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(dateLayout, s)
		require.NoError(t, err)
		return d
	}
	tests := []struct {
		start, end string
		want       int
	}{
		{"2021-01-01", "2021-04-01", 1},
		{"2020-10-01", "2021-04-01", 2},
		{"2020-01-01", "2021-01-01", 4},
		{"2021-01-01", "2021-03-31", 0},
		{"2021-04-01", "2021-04-01", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuarterSpan(day(tt.start), day(tt.end)), "%s..%s", tt.start, tt.end)
	}
}

func TestNormalizeMember(t *testing.T) {
	assert.Equal(t, "CostOfSales", NormalizeMember("CostOfSalesMember"))
	assert.Equal(t, "us-gaap:CostOfSales", NormalizeMember(" us-gaap:CostOfSalesMember\n"))
	assert.Equal(t, "Segment", NormalizeMember("Segment"))
}

func TestParsePeriodDate(t *testing.T) {
	d, err := parsePeriodDate(" 2021-04-01T00:00:00 ")
	require.NoError(t, err)
	assert.Equal(t, "2021-04-01", d.Format(dateLayout))

	_, err = parsePeriodDate("2021-04")
	assert.Error(t, err)
}

const minimalHeaders = `
<dei:DocumentType contextRef="c1">10-K</dei:DocumentType>
<dei:DocumentPeriodEndDate contextRef="c1">2021-12-31</dei:DocumentPeriodEndDate>
<dei:TradingSymbol contextRef="c1">ABC</dei:TradingSymbol>`

func TestParser_DocumentStructureErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"no root", `<html><body><p>hello</p></body></html>`, "xbrl"},
		{"missing symbol", `<xbrl>
			<dei:DocumentType contextRef="c1">10-K</dei:DocumentType>
			<dei:DocumentPeriodEndDate contextRef="c1">2021-12-31</dei:DocumentPeriodEndDate>
		</xbrl>`, headerSymbol},
		{"missing type", `<xbrl>
			<dei:TradingSymbol contextRef="c1">ABC</dei:TradingSymbol>
			<dei:DocumentPeriodEndDate contextRef="c1">2021-12-31</dei:DocumentPeriodEndDate>
		</xbrl>`, headerDocType},
		{"missing period", `<xbrl>
			<dei:TradingSymbol contextRef="c1">ABC</dei:TradingSymbol>
			<dei:DocumentType contextRef="c1">10-K</dei:DocumentType>
		</xbrl>`, headerPeriodEnd},
		{"repeated symbol", `<xbrl>` + minimalHeaders + `
			<dei:TradingSymbol contextRef="c1">XYZ</dei:TradingSymbol>
		</xbrl>`, headerSymbol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newTestParser().ParseBytes(context.Background(), []byte(tt.doc), ParseOptions{})
			require.Error(t, err)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrDocumentStructure)

			var dse *DocumentStructureError
			require.True(t, errors.As(err, &dse))
			assert.Equal(t, tt.field, dse.Field)
		})
	}
}

func TestParser_PrefixedRootAndSelfClosingElements(t *testing.T) {
	doc := `<xbrli:xbrl>
		<link:schemaRef xlink:href="abc.xsd"/>
		<xbrli:context id="c1">
			<xbrli:entity><xbrli:identifier scheme="cik">1</xbrli:identifier></xbrli:entity>
			<xbrli:period><xbrli:instant>2021-12-31</xbrli:instant></xbrli:period>
		</xbrli:context>
		<xbrli:context id="c2">
			<xbrli:entity><xbrli:identifier scheme="cik">1</xbrli:identifier></xbrli:entity>
			<xbrli:period><xbrli:startDate>2021-01-01</xbrli:startDate><xbrli:endDate>2021-12-31</xbrli:endDate></xbrli:period>
		</xbrli:context>
		<xbrli:unit id="usd"><xbrli:measure>iso4217:USD</xbrli:measure></xbrli:unit>` + minimalHeaders + `
		<us-gaap:Assets contextRef="c1" unitRef="usd">10</us-gaap:Assets>
		<us-gaap:NetIncomeLoss contextRef="c2" unitRef="usd">-2.5</us-gaap:NetIncomeLoss>
	</xbrli:xbrl>`

	f, err := newTestParser().ParseBytes(context.Background(), []byte(doc), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ABC", f.Symbol)
	require.Equal(t, 2, f.Len())

	ni, ok := f.Fact("us-gaap:NetIncomeLoss", "", nil)
	require.True(t, ok)
	assert.Equal(t, -2.5, ni.Value())
	assert.Equal(t, 4, ni.Quarters())
}

func TestParser_SymbolUpperCased(t *testing.T) {
	doc := `<xbrli:xbrl>
		<xbrli:context id="c1">
			<xbrli:entity><xbrli:identifier scheme="cik">1</xbrli:identifier></xbrli:entity>
			<xbrli:period><xbrli:instant>2021-12-31</xbrli:instant></xbrli:period>
		</xbrli:context>
		<dei:DocumentType contextRef="c1">10-K</dei:DocumentType>
		<dei:DocumentPeriodEndDate contextRef="c1">2021-12-31</dei:DocumentPeriodEndDate>
		<dei:TradingSymbol contextRef="c1">abc</dei:TradingSymbol>
	</xbrli:xbrl>`

	f, err := newTestParser().ParseBytes(context.Background(), []byte(doc), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ABC", f.Symbol)
}

func TestParser_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestParser().Parse(ctx, strings.NewReader("<xbrl></xbrl>"), ParseOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
