package rule

import (
	"slices"
)

// Builder accumulates rules and orders them with Build.
//
// Every tag seen, as an output or as a factor, carries a reference count:
// the number of still-unresolved rules that list it as a factor. Build peels
// off zero-count tags in batches, which yields rules most-dependent-first,
// and reverses the result. Ties within a batch follow the order in which
// tags were first seen during registration.
type Builder struct {
	rules  map[string]Rule
	counts map[string]int
	order  []string
	built  bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		rules:  make(map[string]Rule),
		counts: make(map[string]int),
	}
}

// Rule registers tag as the weighted sum of factors. A tag can have only one
// rule, and a rule may not list its own tag as a factor.
func (b *Builder) Rule(tag, unit string, factors ...Factor) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if _, exists := b.rules[tag]; exists {
		return &DuplicateRuleError{Tag: tag}
	}
	for _, f := range factors {
		if f.Tag == tag {
			return &CycleError{Tags: []string{tag}}
		}
	}

	b.rules[tag] = Rule{Tag: tag, Unit: unit, Factors: slices.Clone(factors)}
	b.see(tag)
	for _, f := range factors {
		b.see(f.Tag)
		b.counts[f.Tag]++
	}
	return nil
}

// Simple registers tag as a copy of a single input, unit inherited.
func (b *Builder) Simple(tag, input string) error {
	return b.Rule(tag, "", Factor{Tag: input, Weight: 1})
}

// Build orders the registered rules. It fails with a *CycleError, and
// returns no group, when the rules depend on each other circularly.
func (b *Builder) Build() (*Group, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	counts := make(map[string]int, len(b.counts))
	for tag, n := range b.counts {
		counts[tag] = n
	}
	pending := slices.Clone(b.order)

	var peeled []Rule
	for len(pending) > 0 {
		var batch, rest []string
		for _, tag := range pending {
			if counts[tag] == 0 {
				batch = append(batch, tag)
			} else {
				rest = append(rest, tag)
			}
		}
		if len(batch) == 0 {
			return nil, &CycleError{Tags: b.unresolved(rest)}
		}

		for _, tag := range batch {
			r, ok := b.rules[tag]
			if !ok {
				continue
			}
			for _, f := range r.Factors {
				counts[f.Tag]--
			}
			peeled = append(peeled, r)
		}
		pending = rest
	}

	slices.Reverse(peeled)
	return &Group{rules: peeled}, nil
}

// Len returns the number of registered rules.
func (b *Builder) Len() int { return len(b.rules) }

func (b *Builder) see(tag string) {
	if _, ok := b.counts[tag]; !ok {
		b.counts[tag] = 0
		b.order = append(b.order, tag)
	}
}

// unresolved keeps only the tags that have a rule; raw inputs stuck behind
// a cycle are not part of it.
func (b *Builder) unresolved(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := b.rules[tag]; ok {
			out = append(out, tag)
		}
	}
	return out
}
