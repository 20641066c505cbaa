package financial

import (
	"errors"
	"fmt"
	"strings"

	"finstat/pkg/core/filing"
	"finstat/pkg/core/rule"
)

// FilingNamespace is the tag namespace that addresses raw filing facts.
// Every other namespace names a statement type.
const FilingNamespace = "filling"

// ErrMalformedTag is returned for tags not of the form "namespace/name".
var ErrMalformedTag = errors.New("financial: malformed tag")

// TagRef is a parsed "<namespace>/<name>" tag. For the filing namespace,
// Name may carry "#dim=val;..." member assignments.
type TagRef struct {
	Namespace string
	Name      string
}

// ParseTag splits a rule tag into namespace and name.
func ParseTag(tag string) (TagRef, error) {
	parts := strings.Split(tag, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TagRef{}, fmt.Errorf("%w: %q", ErrMalformedTag, tag)
	}
	return TagRef{Namespace: parts[0], Name: parts[1]}, nil
}

func (t TagRef) String() string { return t.Namespace + "/" + t.Name }

// Source resolves rule inputs from the filing's raw facts or from values
// already derived into the report.
type Source struct {
	filing *filing.Filing
	report *Report
}

// NewSource binds a source to one filing and the report being built from it.
func NewSource(f *filing.Filing, r *Report) *Source {
	return &Source{filing: f, report: r}
}

// Lookup implements rule.ValueSource.
func (s *Source) Lookup(tag string) (rule.Amount, bool, error) {
	ref, err := ParseTag(tag)
	if err != nil {
		return rule.Amount{}, false, err
	}

	if ref.Namespace == FilingNamespace {
		fact, err := s.filing.FactByKeyString(ref.Name, "")
		switch {
		case errors.Is(err, filing.ErrFactNotFound):
			return rule.Amount{}, false, nil
		case err != nil:
			return rule.Amount{}, false, err
		}
		return rule.Amount{Unit: fact.Unit(), Value: fact.Value()}, true, nil
	}

	amt, ok := s.report.ItemValue(ref.Namespace, ref.Name)
	return amt, ok, nil
}

// Target writes rule results into the report's statements.
type Target struct {
	report *Report
}

// NewTarget binds a target to the report being built.
func NewTarget(r *Report) *Target {
	return &Target{report: r}
}

// Store implements rule.ValueTarget.
func (t *Target) Store(tag, unit string, value float64) error {
	ref, err := ParseTag(tag)
	if err != nil {
		return err
	}
	return t.report.AddStatementItem(ref.Namespace, StatementItem{Tag: ref.Name, Unit: unit, Value: value})
}
