package filing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Required document-level headers. Element names are lower-cased by the
// HTML tokenizer goquery sits on.
const (
	headerSymbol    = "dei:tradingsymbol"
	headerDocType   = "dei:documenttype"
	headerPeriodEnd = "dei:documentperiodenddate"
)

// selfClosingTag matches "<ns:name .../>". The HTML tokenizer ignores the
// self-closing flag on unknown elements, which would nest every following
// sibling inside them.
var selfClosingTag = regexp.MustCompile(`<([A-Za-z_][\w:.\-]*)(\s[^<>]*?)?/>`)

// ParseOptions carries locator metadata that is not part of the document.
type ParseOptions struct {
	Accession  string
	ReportDate string
}

// Parser builds a Filing from an XBRL instance document. It keeps no state
// between calls and is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile parses the document at path.
func (p *Parser) ParseFile(ctx context.Context, path string, opts ParseOptions) (*Filing, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return p.Parse(ctx, fh, opts)
}

// ParseBytes parses an in-memory document.
func (p *Parser) ParseBytes(ctx context.Context, content []byte, opts ParseOptions) (*Filing, error) {
	return p.Parse(ctx, bytes.NewReader(content), opts)
}

// Parse reads a whole document and returns its Filing. Structural problems
// reject the document with a *DocumentStructureError; individual bad facts
// are logged and skipped.
func (p *Parser) Parse(ctx context.Context, r io.Reader, opts ParseOptions) (*Filing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(expandSelfClosing(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	root := findRoot(doc)
	if root == nil {
		return nil, &DocumentStructureError{Field: "xbrl", Reason: "root element not found"}
	}

	// One pass over the tree sorts elements into headers, contexts and fact candidates.
	headers := make(map[string][]string)
	var contextSels, candidates []*goquery.Selection
	root.Find("*").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		switch {
		case name == headerSymbol || name == headerDocType || name == headerPeriodEnd:
			headers[name] = append(headers[name], strings.TrimSpace(sel.Text()))
		case localName(name) == "context":
			contextSels = append(contextSels, sel)
			return
		case localName(name) == "unit":
			return
		}
		if hasAttr(sel, "contextref") || hasAttr(sel, "unitref") {
			candidates = append(candidates, sel)
		}
	})

	symbol, err := requireHeader(headers, headerSymbol)
	if err != nil {
		return nil, err
	}
	docType, err := requireHeader(headers, headerDocType)
	if err != nil {
		return nil, err
	}
	periodEnd, err := requireHeader(headers, headerPeriodEnd)
	if err != nil {
		return nil, err
	}

	f := New(strings.ToUpper(symbol), docType, periodEnd)
	f.Accession = opts.Accession
	f.ReportDate = opts.ReportDate

	contexts := p.parseContexts(contextSels)

	dropped, duplicates := 0, 0
	for _, sel := range candidates {
		fact, err := parseFact(sel, contexts)
		if err != nil {
			dropped++
			p.logFactError(err)
			continue
		}
		if !f.AddFact(fact) {
			duplicates++
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("parsed filing",
		"symbol", f.Symbol,
		"type", f.Type,
		"period", f.PeriodEndDate,
		"contexts", len(contexts),
		"facts", f.Len(),
		"dropped", dropped,
		"duplicates", duplicates)
	return f, nil
}

// =============================================================================
// CONTEXTS
// =============================================================================

func (p *Parser) parseContexts(sels []*goquery.Selection) map[string]*Context {
	contexts := make(map[string]*Context, len(sels))
	for _, sel := range sels {
		c, err := parseContext(sel)
		if err != nil {
			p.logger.Warn("context dropped", "error", err)
			continue
		}
		contexts[c.ID] = c
	}
	return contexts
}

func parseContext(sel *goquery.Selection) (*Context, error) {
	id, _ := sel.Attr("id")
	if id == "" {
		return nil, fmt.Errorf("context without id")
	}
	period := findByLocalName(sel, "period").First()
	if period.Length() == 0 {
		return nil, fmt.Errorf("context %s: period not present", id)
	}

	c := &Context{ID: id, Members: parseMembers(sel)}

	end, hasEnd, err := periodDate(period, "enddate")
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", id, err)
	}
	if hasEnd {
		c.EndDate = end
		start, hasStart, err := periodDate(period, "startdate")
		if err != nil {
			return nil, fmt.Errorf("context %s: %w", id, err)
		}
		if hasStart {
			c.Quarters = QuarterSpan(start, end)
		}
		return c, nil
	}

	instant, hasInstant, err := periodDate(period, "instant")
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", id, err)
	}
	if !hasInstant {
		return nil, fmt.Errorf("context %s: enddate/instant not present", id)
	}
	c.EndDate = instant
	return c, nil
}

func parseMembers(sel *goquery.Selection) map[string]string {
	members := make(map[string]string)
	findByLocalName(sel, "explicitmember").Each(func(_ int, m *goquery.Selection) {
		dim, ok := m.Attr("dimension")
		if !ok || dim == "" {
			return
		}
		members[dim] = NormalizeMember(m.Text())
	})
	return members
}

func periodDate(period *goquery.Selection, name string) (date time.Time, found bool, err error) {
	sel := findByLocalName(period, name).First()
	if sel.Length() == 0 {
		return time.Time{}, false, nil
	}
	t, err := parsePeriodDate(sel.Text())
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// =============================================================================
// FACTS
// =============================================================================

func parseFact(sel *goquery.Selection, contexts map[string]*Context) (*Fact, error) {
	element := goquery.NodeName(sel)
	ref, hasRef := sel.Attr("contextref")
	unit, hasUnit := sel.Attr("unitref")
	if !hasRef || !hasUnit {
		return nil, &FactExtractionError{Element: element, ContextRef: ref, Reason: "no contextRef/unitRef attribute"}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(sel.Text()), 64)
	if err != nil {
		return nil, &FactExtractionError{Element: element, ContextRef: ref, Reason: "element text is not a number"}
	}

	c, ok := contexts[ref]
	if !ok {
		return nil, &FactExtractionError{Element: element, ContextRef: ref, Reason: "context not found"}
	}

	return NewFact(element, c.EndDateString(), c.Members, c.Quarters, unit, value), nil
}

// logFactError logs dropped facts. Text facts (dei headers, text blocks)
// never carry a unitRef, so those are only worth a debug line.
func (p *Parser) logFactError(err error) {
	fe, ok := err.(*FactExtractionError)
	if ok && strings.HasPrefix(fe.Reason, "no contextRef/unitRef") {
		p.logger.Debug("fact skipped", "element", fe.Element, "context", fe.ContextRef, "error", err)
		return
	}
	p.logger.Warn("fact dropped", "error", err)
}

// =============================================================================
// HELPERS
// =============================================================================

func expandSelfClosing(raw []byte) []byte {
	return selfClosingTag.ReplaceAll(raw, []byte("<${1}${2}></${1}>"))
}

func findRoot(doc *goquery.Document) *goquery.Selection {
	root := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return localName(goquery.NodeName(s)) == "xbrl"
	}).First()
	if root.Length() == 0 {
		return nil
	}
	return root
}

func requireHeader(headers map[string][]string, name string) (string, error) {
	values := headers[name]
	switch {
	case len(values) == 0:
		return "", &DocumentStructureError{Field: name, Reason: "header not present"}
	case len(values) > 1:
		return "", &DocumentStructureError{Field: name, Reason: fmt.Sprintf("header present %d times", len(values))}
	case values[0] == "":
		return "", &DocumentStructureError{Field: name, Reason: "header is empty"}
	}
	return values[0], nil
}

func findByLocalName(sel *goquery.Selection, name string) *goquery.Selection {
	return sel.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return localName(goquery.NodeName(s)) == name
	})
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}
