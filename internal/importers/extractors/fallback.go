package extractors

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mrlokans/patterns/internal/importers"
)

// NameFallback identifies the fallback extractor.
const NameFallback = "fallback"

const (
	fallbackName            = "Imported Pattern"
	fallbackDescriptionSize = 500
)

var _ importers.Extractor = (*FallbackExtractor)(nil)

// FallbackExtractor builds a minimal record from any content. It never fails,
// so a chain ending with it always produces something once content is fetched.
type FallbackExtractor struct{}

func NewFallbackExtractor() *FallbackExtractor { return &FallbackExtractor{} }

func (e *FallbackExtractor) Name() string { return NameFallback }

func (e *FallbackExtractor) CanExtract(importers.RawContent) bool { return true }

func (e *FallbackExtractor) Extract(_ context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	var title, text string
	switch c.Type {
	case importers.ContentTypeHTML:
		title, text = htmlText(c.TextContent())
	case importers.ContentTypeImage, importers.ContentTypePDF:
	default:
		text = c.TextContent()
	}
	if title == "" {
		title = firstLine(text)
	}

	data := &importers.ExtractedData{
		Name:        truncateRunes(firstNonEmpty(hints.Name, title, nameFromOrigin(c), fallbackName), maxNameRunes),
		Description: truncateRunes(collapseSpace(text), fallbackDescriptionSize),
		Link:        c.SourceURL,
	}
	if c.Type == importers.ContentTypeImage && c.SourceURL != "" {
		data.ImageURLs = []string{c.SourceURL}
	}
	data.ApplyHints(hints)
	return data, nil
}

// htmlText returns the <title> and the visible body text of a page.
// Unparseable markup is returned verbatim as text.
func htmlText(raw string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", raw
	}
	doc.Find("script, style, noscript, template").Remove()
	title := collapseSpace(doc.Find("title").First().Text())
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return title, body.Text()
}
