package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstat/pkg/core/financial"
)

func sampleReport() *financial.Report {
	r := &financial.Report{Symbol: "TEST", Type: "10-Q", PeriodEndDate: "2021-04-01", Accession: "0000000001-21-000002"}
	income := financial.NewStatement(financial.StatementIncome)
	income.AddItem("Revenue", "usd", 100)
	income.AddItem("GrossProfit", "usd", 60)
	income.AddItem("EarningsPerShareBasic", "usdPerShare", 1.25)
	r.AddStatement(income)
	r.AddStatement(financial.NewStatement("balance"))
	return r
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleReport())

	assert.Contains(t, out, "# TEST 10-Q 2021-04-01\n")
	assert.Contains(t, out, "Accession: 0000000001-21-000002")
	assert.Contains(t, out, "## income\n")
	assert.Contains(t, out, "| EarningsPerShareBasic | usdPerShare | 1.25 |\n| GrossProfit | usd | 60 |\n| Revenue | usd | 100 |\n")
	assert.Contains(t, out, "## balance\n\n_No line items._\n")

	assert.Contains(t, out, "### income common size\n\n| Item | % of Revenue |\n|---|---:|\n")
	assert.Contains(t, out, "| GrossProfit | 60.0% |\n| Revenue | 100.0% |\n")
	assert.NotContains(t, out, "| EarningsPerShareBasic | 1.3% |")
}

func TestHTML(t *testing.T) {
	out, err := HTML(sampleReport())
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<h2>income</h2>")
	assert.Contains(t, html, "<td>GrossProfit</td>")
	assert.Contains(t, html, ">60</td>")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "48000000", formatValue(48e6))
	assert.Equal(t, "-0.5", formatValue(-0.5))
}
