// Package financial derives standardized statements from a parsed filing.
// A Catalogue of statement definitions, each holding an ordered rule group,
// is evaluated against one Filing to populate one Report.
package financial

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finstat/pkg/core/filing"
	"finstat/pkg/core/rule"
)

// ErrStatementNotDeclared is returned when a value is written to a
// statement type the report has not declared.
var ErrStatementNotDeclared = errors.New("financial: statement not declared")

// Statement types.
const (
	StatementIncome = "income"
)

// =============================================================================
// STATEMENT
// =============================================================================

// StatementItem is one derived line item.
type StatementItem struct {
	Tag   string  `json:"tag"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

func (i StatementItem) String() string {
	return fmt.Sprintf("%s %s %v", i.Tag, i.Unit, i.Value)
}

// Statement groups line items of one statement type. Items keep the order
// in which they were first added.
type Statement struct {
	Type  string
	items map[string]StatementItem
	order []string
}

// NewStatement creates an empty statement.
func NewStatement(statType string) *Statement {
	return &Statement{Type: statType, items: make(map[string]StatementItem)}
}

// AddItem adds a line item from its parts.
func (s *Statement) AddItem(tag, unit string, value float64) {
	s.PutItem(StatementItem{Tag: tag, Unit: unit, Value: value})
}

// PutItem adds a pre-built line item, replacing any item with the same tag.
func (s *Statement) PutItem(item StatementItem) {
	if _, exists := s.items[item.Tag]; !exists {
		s.order = append(s.order, item.Tag)
	}
	s.items[item.Tag] = item
}

// Item returns the line item for tag.
func (s *Statement) Item(tag string) (StatementItem, bool) {
	item, ok := s.items[tag]
	return item, ok
}

// Items returns the line items in insertion order.
func (s *Statement) Items() []StatementItem {
	out := make([]StatementItem, 0, len(s.order))
	for _, tag := range s.order {
		out = append(out, s.items[tag])
	}
	return out
}

// Len returns the number of line items.
func (s *Statement) Len() int { return len(s.order) }

func (s *Statement) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "======%s========\n", s.Type)
	for _, item := range s.Items() {
		fmt.Fprintf(&b, "%s: %v\n", item.Tag, item.Value)
	}
	return b.String()
}

// =============================================================================
// REPORT
// =============================================================================

// Report holds every derived statement for one filing period. It is built
// by a single derivation run and read-only once handed to callers.
type Report struct {
	ID            string
	Symbol        string
	Type          string
	PeriodEndDate string
	ReportDate    string
	Accession     string

	statements map[string]*Statement
	order      []string
}

// NewReport creates an empty report carrying the filing's header fields.
func NewReport(f *filing.Filing) *Report {
	r := &Report{statements: make(map[string]*Statement)}
	if f != nil {
		r.Symbol = f.Symbol
		r.Type = f.Type
		r.PeriodEndDate = f.PeriodEndDate
		r.ReportDate = f.ReportDate
		r.Accession = f.Accession
	}
	return r
}

// AddStatement declares a statement, replacing one of the same type.
func (r *Report) AddStatement(stat *Statement) {
	if r.statements == nil {
		r.statements = make(map[string]*Statement)
	}
	if _, exists := r.statements[stat.Type]; !exists {
		r.order = append(r.order, stat.Type)
	}
	r.statements[stat.Type] = stat
}

// Statement returns the statement of the given type.
func (r *Report) Statement(statType string) (*Statement, bool) {
	s, ok := r.statements[statType]
	return s, ok
}

// Statements returns the statements in declaration order.
func (r *Report) Statements() []*Statement {
	out := make([]*Statement, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.statements[t])
	}
	return out
}

// StatementItem returns a derived line item.
func (r *Report) StatementItem(statType, tag string) (StatementItem, bool) {
	s, ok := r.statements[statType]
	if !ok {
		return StatementItem{}, false
	}
	return s.Item(tag)
}

// ItemValue returns a derived line item as a unit/value pair.
func (r *Report) ItemValue(statType, tag string) (rule.Amount, bool) {
	item, ok := r.StatementItem(statType, tag)
	if !ok {
		return rule.Amount{}, false
	}
	return rule.Amount{Unit: item.Unit, Value: item.Value}, true
}

// AddStatementItem writes item into a declared statement.
func (r *Report) AddStatementItem(statType string, item StatementItem) error {
	s, ok := r.statements[statType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStatementNotDeclared, statType)
	}
	s.PutItem(item)
	return nil
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("REPORT STATEMENTS:\n")
	for _, s := range r.Statements() {
		b.WriteString(s.String())
	}
	return b.String()
}

// reportJSON is the wire form used by storage and the HTTP API. Statements
// and items are arrays so their order survives a round trip.
type reportJSON struct {
	ID            string          `json:"id,omitempty"`
	Symbol        string          `json:"symbol"`
	Type          string          `json:"type"`
	PeriodEndDate string          `json:"period_end_date"`
	ReportDate    string          `json:"report_date,omitempty"`
	Accession     string          `json:"accession,omitempty"`
	Statements    []statementJSON `json:"statements"`
}

type statementJSON struct {
	Type  string          `json:"type"`
	Items []StatementItem `json:"items"`
}

func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		ID:            r.ID,
		Symbol:        r.Symbol,
		Type:          r.Type,
		PeriodEndDate: r.PeriodEndDate,
		ReportDate:    r.ReportDate,
		Accession:     r.Accession,
		Statements:    make([]statementJSON, 0, len(r.order)),
	}
	for _, s := range r.Statements() {
		out.Statements = append(out.Statements, statementJSON{Type: s.Type, Items: s.Items()})
	}
	return json.Marshal(out)
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var in reportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Report{
		ID:            in.ID,
		Symbol:        in.Symbol,
		Type:          in.Type,
		PeriodEndDate: in.PeriodEndDate,
		ReportDate:    in.ReportDate,
		Accession:     in.Accession,
		statements:    make(map[string]*Statement, len(in.Statements)),
	}
	for _, sj := range in.Statements {
		s := NewStatement(sj.Type)
		for _, item := range sj.Items {
			s.PutItem(item)
		}
		r.AddStatement(s)
	}
	return nil
}
