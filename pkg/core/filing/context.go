package filing

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	dateLayout     = "2006-01-02"
	daysPerQuarter = 90
	memberSuffix   = "Member"
)

// Context binds a document-local id to a period and a member set. It only
// exists while a document is being parsed.
type Context struct {
	ID       string
	EndDate  time.Time
	Quarters int
	Members  map[string]string
}

// EndDateString formats the end date the way fact keys store it.
func (c *Context) EndDateString() string {
	return c.EndDate.Format(dateLayout)
}

// QuarterSpan returns floor(days/90) for the period. Spans of 89 or 91 days
// land on either side of a quarter boundary; the heuristic is kept as is.
func QuarterSpan(start, end time.Time) int {
	days := int(end.Sub(start) / (24 * time.Hour))
	return days / daysPerQuarter
}

// NormalizeMember strips the taxonomy "Member" suffix so dimension values
// compare across filings ("us-gaap:CostOfSalesMember" -> "us-gaap:CostOfSales").
func NormalizeMember(value string) string {
	value = strings.TrimSpace(value)
	return strings.TrimSuffix(value, memberSuffix)
}

// parsePeriodDate keeps the digits of a period marker and reads the first
// eight as YYYYMMDD, so "2021-04-01" and "2021-04-01T00:00:00" both parse.
func parsePeriodDate(text string) (time.Time, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	if len(digits) < 8 {
		return time.Time{}, fmt.Errorf("period date %q has fewer than 8 digits", text)
	}
	return time.Parse("20060102", digits[:8])
}
