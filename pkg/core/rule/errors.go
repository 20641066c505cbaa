package rule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateRule is returned when an output tag is registered twice.
	ErrDuplicateRule = errors.New("rule: duplicate rule")

	// ErrCycle is returned when the registered rules cannot be ordered.
	ErrCycle = errors.New("rule: dependency cycle")

	// ErrMissingValue is returned when a factor resolves to no value.
	ErrMissingValue = errors.New("rule: missing value")

	// ErrUnitMismatch is returned when factors of one rule disagree on unit.
	ErrUnitMismatch = errors.New("rule: unit mismatch")

	// ErrAlreadyBuilt is returned when a Builder is used after Build.
	ErrAlreadyBuilt = errors.New("rule: builder already built")
)

// DuplicateRuleError names the tag that already has a rule.
type DuplicateRuleError struct {
	Tag string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("rule: tag already exists: %s", e.Tag)
}

func (e *DuplicateRuleError) Unwrap() error { return ErrDuplicateRule }

// CycleError lists the rule tags that could not be resolved.
type CycleError struct {
	Tags []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("rule: illegal rule graph, cycle among: %s", strings.Join(e.Tags, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// MissingValueError names the rule and the factor that resolved to nothing.
type MissingValueError struct {
	Rule   string
	Factor string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("rule %s: value not found: %s", e.Rule, e.Factor)
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// UnitMismatchError reports the established unit and the offending factor.
type UnitMismatchError struct {
	Rule   string
	Factor string
	Want   string
	Got    string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("rule %s: unit not same for %s: want %s, but %s", e.Rule, e.Factor, e.Want, e.Got)
}

func (e *UnitMismatchError) Unwrap() error { return ErrUnitMismatch }
