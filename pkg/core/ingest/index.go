package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form types fetched when none are requested.
var DefaultForms = []string{"10-K", "10-Q"}

// ErrInvalidIndexPage is returned when EDGAR answers with a page that is not
// a company filing list or a filing index.
var ErrInvalidIndexPage = errors.New("ingest: invalid index page")

// Linkbase and schema files shipped next to the instance document.
var ignoredSuffixes = []string{"_cal.xml", "_def.xml", "_lab.xml", "_pre.xml", ".xsd"}

const browsePath = "/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=%s&dateb=&owner=exclude&count=%d"

// FilingIndex is one filing's index page: its filing date and the data
// file links worth downloading.
type FilingIndex struct {
	URL       string
	Accession string
	Form      string
	Date      string
	FileLinks []string
}

// InstanceDocument returns the XBRL instance link, if the index has one.
func (idx *FilingIndex) InstanceDocument() (string, bool) {
	for _, link := range idx.FileLinks {
		if strings.HasSuffix(strings.ToLower(link), ".xml") {
			return link, true
		}
	}
	return "", false
}

// FilingIndexGroup collects the filing indexes of one company.
type FilingIndexGroup struct {
	Symbol    string
	IndexURLs []string
	Indexes   []*FilingIndex
}

// IndexURLs lists the filing index pages of symbol for one form type,
// newest first, at most count of them.
func (c *EDGARClient) IndexURLs(ctx context.Context, symbol, form string, count int) ([]string, error) {
	if count <= 0 {
		count = 40
	}
	link := c.baseURL + fmt.Sprintf(browsePath, url.QueryEscape(symbol), url.QueryEscape(form), count)

	page, err := c.Get(ctx, link)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse filings page: %w", err)
	}
	if doc.Find(`table[summary="Results"]`).Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIndexPage, link)
	}

	var urls []string
	doc.Find("a#documentsbutton").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			urls = append(urls, c.absolute(href))
		}
	})
	return urls, nil
}

// FilingIndex loads one filing index page.
func (c *EDGARClient) FilingIndex(ctx context.Context, indexURL string) (*FilingIndex, error) {
	page, err := c.Get(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse filing index: %w", err)
	}

	idx := &FilingIndex{URL: indexURL, Accession: AccessionFromIndexURL(indexURL)}

	doc.Find("div.formGrouping > div").Each(func(_ int, sel *goquery.Selection) {
		if idx.Date == "" && strings.Contains(sel.Text(), "Filing Date") {
			idx.Date = strings.TrimSpace(sel.Next().Text())
		}
	})
	if idx.Date == "" {
		return nil, fmt.Errorf("%w: no filing date in %s", ErrInvalidIndexPage, indexURL)
	}

	if form := strings.TrimSpace(doc.Find("div#formName strong").First().Text()); form != "" {
		idx.Form = strings.TrimPrefix(form, "Form ")
	}

	doc.Find(`table.tableFile[summary="Data Files"] td a`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || ignored(href) {
			return
		}
		idx.FileLinks = append(idx.FileLinks, c.absolute(href))
	})
	return idx, nil
}

// LoadIndexGroup collects every filing index of symbol for the given forms.
// Index pages that fail to load are logged and skipped.
func (c *EDGARClient) LoadIndexGroup(ctx context.Context, symbol string, count int, forms ...string) (*FilingIndexGroup, error) {
	if len(forms) == 0 {
		forms = DefaultForms
	}
	group := &FilingIndexGroup{Symbol: symbol}
	formOf := make(map[string]string)

	for _, form := range forms {
		urls, err := c.IndexURLs(ctx, symbol, form, count)
		if err != nil {
			if errors.Is(err, ErrInvalidIndexPage) {
				c.logger.Warn("no filing list for symbol", "symbol", symbol, "form", form)
				continue
			}
			return nil, fmt.Errorf("list %s filings for %s: %w", form, symbol, err)
		}
		for _, u := range urls {
			formOf[u] = form
		}
		group.IndexURLs = append(group.IndexURLs, urls...)
	}

	for _, u := range group.IndexURLs {
		idx, err := c.FilingIndex(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("skipping filing index", "url", u, "error", err)
			continue
		}
		if idx.Form == "" {
			idx.Form = formOf[u]
		}
		group.Indexes = append(group.Indexes, idx)
	}
	return group, nil
}

// AccessionFromIndexURL extracts the accession number from a filing index
// URL such as ".../0000320193-21-000065-index.htm".
func AccessionFromIndexURL(indexURL string) string {
	base := path.Base(indexURL)
	for _, suffix := range []string{"-index.html", "-index.htm"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return ""
}

func (c *EDGARClient) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return c.baseURL + href
}

func ignored(link string) bool {
	name := path.Base(link)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
