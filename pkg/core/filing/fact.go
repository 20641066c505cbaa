// Package filing models a parsed XBRL instance document: the facts it
// discloses, the contexts that give those facts a period and a dimensional
// identity, and the parser that builds a Filing from raw document bytes.
package filing

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// =============================================================================
// FACT KEY
// =============================================================================

// FactKey is the identity of a disclosed fact: concept tag, period end date
// and the dimensional members qualifying it. Tags are stored lower-cased
// because document element names are case-insensitive.
type FactKey struct {
	Tag     string
	EndDate string
	Members map[string]string
}

// bucketKey is the hash identity of a FactKey. Keys that differ only in
// their members share a bucket and are told apart by Equal.
type bucketKey struct {
	tag     string
	endDate string
}

// NewFactKey builds a normalized key. The members map is copied.
func NewFactKey(tag, endDate string, members map[string]string) FactKey {
	m := make(map[string]string, len(members))
	maps.Copy(m, members)
	return FactKey{
		Tag:     strings.ToLower(strings.TrimSpace(tag)),
		EndDate: endDate,
		Members: m,
	}
}

// Equal reports whether tag, end date and the full member map all match.
// A nil and an empty member map are equal.
func (k FactKey) Equal(other FactKey) bool {
	return k.Tag == other.Tag && k.EndDate == other.EndDate && maps.Equal(k.Members, other.Members)
}

func (k FactKey) bucket() bucketKey {
	return bucketKey{tag: k.Tag, endDate: k.EndDate}
}

// KeyString renders the compact form "tag#dim=val;dim=val" with members
// sorted by dimension. An undimensioned key renders as the bare tag.
func (k FactKey) KeyString() string {
	if len(k.Members) == 0 {
		return k.Tag
	}
	dims := make([]string, 0, len(k.Members))
	for d := range k.Members {
		dims = append(dims, d)
	}
	sort.Strings(dims)

	var b strings.Builder
	b.WriteString(k.Tag)
	b.WriteByte('#')
	for i, d := range dims {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(d)
		b.WriteByte('=')
		b.WriteString(k.Members[d])
	}
	return b.String()
}

func (k FactKey) String() string {
	return fmt.Sprintf("%s@%s", k.KeyString(), k.EndDate)
}

// ParseKeyString decodes "tag" or "tag#dim=val;dim=val" into a tag and a
// member map. Every member assignment must have exactly one '='.
func ParseKeyString(s string) (string, map[string]string, error) {
	parts := strings.Split(s, "#")
	switch len(parts) {
	case 1:
		return parts[0], map[string]string{}, nil
	case 2:
	default:
		return "", nil, fmt.Errorf("%w: %q has more than one '#'", ErrMalformedKey, s)
	}

	members := make(map[string]string)
	for _, assignment := range strings.Split(parts[1], ";") {
		kv := strings.Split(assignment, "=")
		if len(kv) != 2 || kv[0] == "" {
			return "", nil, fmt.Errorf("%w: bad member assignment %q in %q", ErrMalformedKey, assignment, s)
		}
		members[kv[0]] = kv[1]
	}
	return parts[0], members, nil
}

// =============================================================================
// FACT
// =============================================================================

// Fact is a single disclosed numeric value. It is immutable once built.
type Fact struct {
	key      FactKey
	unit     string
	value    float64
	quarters int
}

// NewFact builds a fact. quarters is the period span in whole quarters
// (0 for instant facts).
func NewFact(tag, endDate string, members map[string]string, quarters int, unit string, value float64) *Fact {
	return &Fact{
		key:      NewFactKey(tag, endDate, members),
		unit:     unit,
		value:    value,
		quarters: quarters,
	}
}

// Key returns a copy of the fact's identity.
func (f *Fact) Key() FactKey {
	return NewFactKey(f.key.Tag, f.key.EndDate, f.key.Members)
}

func (f *Fact) Tag() string     { return f.key.Tag }
func (f *Fact) EndDate() string { return f.key.EndDate }
func (f *Fact) Unit() string    { return f.unit }
func (f *Fact) Value() float64  { return f.value }
func (f *Fact) Quarters() int   { return f.quarters }

// Members returns a copy of the dimensional members.
func (f *Fact) Members() map[string]string {
	return maps.Clone(f.key.Members)
}

func (f *Fact) String() string {
	return fmt.Sprintf("%s qtrs=%d %s %v", f.key, f.quarters, f.unit, f.value)
}
