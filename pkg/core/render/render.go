// Package render formats derived reports for people: Markdown tables for
// the terminal and HTML for the browser.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"finstat/pkg/core/calc"
	"finstat/pkg/core/financial"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders every statement of report as a table, line items sorted
// by tag. Statements carrying revenue are followed by a common-size table.
func Markdown(report *financial.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s %s\n", report.Symbol, report.Type, report.PeriodEndDate)
	if report.Accession != "" {
		fmt.Fprintf(&b, "\nAccession: %s\n", report.Accession)
	}

	for _, stat := range report.Statements() {
		fmt.Fprintf(&b, "\n## %s\n\n", stat.Type)
		items := stat.Items()
		if len(items) == 0 {
			b.WriteString("_No line items._\n")
			continue
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Tag < items[j].Tag })

		b.WriteString("| Item | Unit | Value |\n")
		b.WriteString("|---|---|---:|\n")
		for _, item := range items {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escape(item.Tag), escape(item.Unit), formatValue(item.Value))
		}

		if rows, ok := calc.CommonSize(stat, calc.CommonSizeBase); ok {
			fmt.Fprintf(&b, "\n### %s common size\n\n", stat.Type)
			fmt.Fprintf(&b, "| Item | %% of %s |\n", calc.CommonSizeBase)
			b.WriteString("|---|---:|\n")
			for _, row := range rows {
				fmt.Fprintf(&b, "| %s | %.1f%% |\n", escape(row.Tag), row.Percent*100)
			}
		}
	}
	return b.String()
}

// HTML renders report to an HTML fragment via its Markdown form.
func HTML(report *financial.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(report)), &buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
