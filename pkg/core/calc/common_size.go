// Package calc holds analysis computed over derived statements.
package calc

import (
	"sort"

	"finstat/pkg/core/financial"
)

// CommonSizeBase is the line item income statements are normalised by.
const CommonSizeBase = "Revenue"

// CommonSizeRow is one line item expressed as a fraction of the base item.
type CommonSizeRow struct {
	Tag     string
	Value   float64
	Percent float64 // Value / base, e.g. 0.42 for 42%
}

// CommonSize expresses every item of stat that shares the base item's unit
// as a fraction of it. Rows are sorted by tag. It returns false when the
// base item is absent or zero.
func CommonSize(stat *financial.Statement, base string) ([]CommonSizeRow, bool) {
	baseItem, ok := stat.Item(base)
	if !ok || baseItem.Value == 0 {
		return nil, false
	}

	var rows []CommonSizeRow
	for _, item := range stat.Items() {
		if item.Unit != baseItem.Unit {
			continue
		}
		rows = append(rows, CommonSizeRow{
			Tag:     item.Tag,
			Value:   item.Value,
			Percent: item.Value / baseItem.Value,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Tag < rows[j].Tag })
	return rows, true
}
