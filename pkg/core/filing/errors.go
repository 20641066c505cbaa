package filing

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentStructure marks a document that cannot yield a Filing at all.
	ErrDocumentStructure = errors.New("filing: malformed document structure")

	// ErrFactExtraction marks a single fact element that was dropped during parsing.
	ErrFactExtraction = errors.New("filing: fact extraction failed")

	// ErrFactNotFound is returned by lookups when no fact matches the key.
	ErrFactNotFound = errors.New("filing: fact not found")

	// ErrMalformedKey is returned when a compact key string cannot be decoded.
	ErrMalformedKey = errors.New("filing: malformed fact key")
)

// DocumentStructureError reports a missing root element or a required header
// that is absent or repeated. The whole document is rejected.
type DocumentStructureError struct {
	Field  string
	Reason string
}

func (e *DocumentStructureError) Error() string {
	return fmt.Sprintf("filing: document structure: %s: %s", e.Field, e.Reason)
}

func (e *DocumentStructureError) Unwrap() error { return ErrDocumentStructure }

// FactExtractionError describes why one fact element was skipped.
type FactExtractionError struct {
	Element    string
	ContextRef string
	Reason     string
}

func (e *FactExtractionError) Error() string {
	if e.ContextRef == "" {
		return fmt.Sprintf("filing: fact [%s]: %s", e.Element, e.Reason)
	}
	return fmt.Sprintf("filing: fact [%s] context %q: %s", e.Element, e.ContextRef, e.Reason)
}

func (e *FactExtractionError) Unwrap() error { return ErrFactExtraction }
