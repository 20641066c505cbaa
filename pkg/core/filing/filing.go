package filing

import (
	"fmt"
)

// Document types carried in the dei:DocumentType header.
const (
	Type10K = "10-K"
	Type10Q = "10-Q"
)

// Filing is the aggregate produced by parsing one document. It owns its
// facts exclusively. Facts live in an arena slice; the index maps a
// (tag, end date) bucket to arena positions.
type Filing struct {
	ID            int64
	Symbol        string
	Type          string
	ReportDate    string
	PeriodEndDate string
	Accession     string

	facts []*Fact
	index map[bucketKey][]int
}

// New creates an empty filing with its header fields set.
func New(symbol, docType, periodEndDate string) *Filing {
	return &Filing{
		Symbol:        symbol,
		Type:          docType,
		PeriodEndDate: periodEndDate,
	}
}

// AddFact stores fact unless an equal key is already present, in which case
// the stored fact is left untouched. It reports whether fact was inserted.
func (f *Filing) AddFact(fact *Fact) bool {
	if fact == nil {
		return false
	}
	if f.index == nil {
		f.index = make(map[bucketKey][]int)
	}
	b := fact.key.bucket()
	for _, i := range f.index[b] {
		if f.facts[i].key.Equal(fact.key) {
			return false
		}
	}
	f.facts = append(f.facts, fact)
	f.index[b] = append(f.index[b], len(f.facts)-1)
	return true
}

// Fact looks up a fact by its structured key. An empty endDate means the
// filing's own period end date.
func (f *Filing) Fact(tag, endDate string, members map[string]string) (*Fact, bool) {
	if endDate == "" {
		endDate = f.PeriodEndDate
	}
	key := NewFactKey(tag, endDate, members)
	for _, i := range f.index[key.bucket()] {
		if f.facts[i].key.Equal(key) {
			return f.facts[i], true
		}
	}
	return nil, false
}

// FactByKeyString looks up a fact by its compact "tag#dim=val;..." form.
// It returns ErrMalformedKey for an undecodable string and ErrFactNotFound
// when nothing matches.
func (f *Filing) FactByKeyString(keyString, endDate string) (*Fact, error) {
	tag, members, err := ParseKeyString(keyString)
	if err != nil {
		return nil, err
	}
	fact, ok := f.Fact(tag, endDate, members)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactNotFound, keyString)
	}
	return fact, nil
}

// Facts returns the facts in insertion order.
func (f *Filing) Facts() []*Fact {
	out := make([]*Fact, len(f.facts))
	copy(out, f.facts)
	return out
}

// Len returns the number of stored facts.
func (f *Filing) Len() int { return len(f.facts) }

func (f *Filing) String() string {
	return fmt.Sprintf("%s %s period=%s accession=%s facts=%d", f.Symbol, f.Type, f.PeriodEndDate, f.Accession, len(f.facts))
}
