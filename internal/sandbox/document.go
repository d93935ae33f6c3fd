package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// scriptBlock is one inline script and the document line it starts on.
type scriptBlock struct {
	Source string
	Line   int
}

// page is a parsed preview document.
type page struct {
	doc     *goquery.Document
	scripts []scriptBlock
	styles  []string
}

// parsePage parses document and locates its inline scripts. External
// scripts (src attribute) are skipped: the preview has no network.
func parsePage(document string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	p := &page{doc: doc}

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		p.styles = append(p.styles, s.Text())
	})

	cursor := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if typ, ok := s.Attr("type"); ok && !isJavaScriptType(typ) {
			return
		}
		src := s.Text()
		line := 1
		if idx := strings.Index(document[cursor:], src); idx >= 0 && src != "" {
			line = 1 + strings.Count(document[:cursor+idx], "\n")
			cursor += idx + len(src)
		}
		p.scripts = append(p.scripts, scriptBlock{Source: src, Line: line})
	})

	return p, nil
}

func isJavaScriptType(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "text/javascript", "application/javascript", "module":
		return true
	}
	return false
}

// title returns the document title.
func (p *page) title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// body returns a copy of the body with script elements removed.
func (p *page) body() *goquery.Selection {
	body := p.doc.Find("body").First().Clone()
	body.Find("script").Remove()
	return body
}
