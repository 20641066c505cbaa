// Package rule holds declarative derivation rules and the builder that
// orders them. A rule computes one output tag as a weighted sum of input
// tags; the builder linearizes a rule set so that every rule runs after the
// rules producing its inputs.
package rule

import (
	"fmt"
	"strings"
)

// Amount is a value together with its unit of measure.
type Amount struct {
	Unit  string
	Value float64
}

// ValueSource resolves an input tag. ok is false when the tag has no value;
// err is reserved for tags the source cannot interpret at all.
type ValueSource interface {
	Lookup(tag string) (amount Amount, ok bool, err error)
}

// ValueTarget receives the result of a rule.
type ValueTarget interface {
	Store(tag, unit string, value float64) error
}

// Factor is one weighted input of a rule.
type Factor struct {
	Tag    string
	Weight float64
}

// Rule computes Tag as the weighted sum of its factors. An empty Unit means
// the unit is taken from the first factor that supplies one.
type Rule struct {
	Tag     string
	Unit    string
	Factors []Factor
}

// Apply evaluates the rule against src and writes the result to dst.
func (r Rule) Apply(src ValueSource, dst ValueTarget) (Amount, error) {
	unit := r.Unit
	total := 0.0
	for _, f := range r.Factors {
		amt, ok, err := src.Lookup(f.Tag)
		if err != nil {
			return Amount{}, fmt.Errorf("rule %s: resolve %s: %w", r.Tag, f.Tag, err)
		}
		if !ok {
			return Amount{}, &MissingValueError{Rule: r.Tag, Factor: f.Tag}
		}
		switch {
		case amt.Unit == "":
		case unit == "":
			unit = amt.Unit
		case unit != amt.Unit:
			return Amount{}, &UnitMismatchError{Rule: r.Tag, Factor: f.Tag, Want: unit, Got: amt.Unit}
		}
		total += f.Weight * amt.Value
	}

	if err := dst.Store(r.Tag, unit, total); err != nil {
		return Amount{}, fmt.Errorf("rule %s: store result: %w", r.Tag, err)
	}
	return Amount{Unit: unit, Value: total}, nil
}

func (r Rule) String() string {
	terms := make([]string, len(r.Factors))
	for i, f := range r.Factors {
		terms[i] = fmt.Sprintf("%g*%s", f.Weight, f.Tag)
	}
	return fmt.Sprintf("%s = %s", r.Tag, strings.Join(terms, " + "))
}

// =============================================================================
// GROUP
// =============================================================================

// Group is an immutable, dependency-ordered rule sequence. It is safe to
// share between goroutines.
type Group struct {
	rules []Rule
}

// Hook observes each rule result during Group.Apply.
type Hook func(r Rule, result Amount)

// Apply runs every rule in order and stops at the first error.
func (g *Group) Apply(src ValueSource, dst ValueTarget, hooks ...Hook) error {
	for _, r := range g.rules {
		result, err := r.Apply(src, dst)
		if err != nil {
			return err
		}
		for _, h := range hooks {
			h(r, result)
		}
	}
	return nil
}

// Len returns the number of rules.
func (g *Group) Len() int { return len(g.rules) }

// Tags returns the output tags in evaluation order.
func (g *Group) Tags() []string {
	tags := make([]string, len(g.rules))
	for i, r := range g.rules {
		tags[i] = r.Tag
	}
	return tags
}

// Rules returns copies of the rules in evaluation order.
func (g *Group) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	for i, r := range g.rules {
		out[i] = Rule{Tag: r.Tag, Unit: r.Unit, Factors: append([]Factor(nil), r.Factors...)}
	}
	return out
}

func (g *Group) String() string {
	return fmt.Sprintf("rule count:%d, tags:%s", len(g.rules), strings.Join(g.Tags(), " "))
}
