// Package extractors turns fetched content into pattern records. Each
// extractor handles a subset of content types; the pipeline tries them in
// order until one succeeds.
package extractors

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/segment"
	"github.com/mrlokans/patterns/internal/workpool"
)

// NameHTML identifies the HTML extractor in results and warnings.
const NameHTML = "html"

var errNoStructure = errors.New("no pattern structure found")

var _ importers.Extractor = (*HTMLExtractor)(nil)

// HTMLExtractor reads web pages and plain text with the rule-based segmenter.
type HTMLExtractor struct {
	seg    *segment.Segmenter
	pool   *workpool.Pool
	logger *zap.Logger
}

// NewHTMLExtractor creates an HTML extractor. A nil segmenter uses the default
// vocabulary; a nil pool runs segmentation inline.
func NewHTMLExtractor(seg *segment.Segmenter, pool *workpool.Pool, logger *zap.Logger) *HTMLExtractor {
	if seg == nil {
		seg = segment.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLExtractor{seg: seg, pool: pool, logger: logger}
}

func (e *HTMLExtractor) Name() string { return NameHTML }

// CanExtract accepts HTML and plain text that decodes to something.
func (e *HTMLExtractor) CanExtract(c importers.RawContent) bool {
	switch c.Type {
	case importers.ContentTypeHTML, importers.ContentTypeText:
		return c.IsTextDecodable()
	}
	return false
}

func (e *HTMLExtractor) Extract(ctx context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	if c.Type == importers.ContentTypeText {
		return e.extractText(ctx, c, hints)
	}
	return e.extractHTML(ctx, c, hints)
}

func (e *HTMLExtractor) extractText(ctx context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	res, err := segmentText(ctx, e.pool, e.seg, c.TextContent(), nil)
	if err != nil {
		return nil, importers.NewExtractorError(NameHTML, err)
	}
	if !hasStructure(res) {
		return nil, importers.NewExtractorError(NameHTML, errNoStructure)
	}
	data := fromSegments(res)
	data.Name = truncateRunes(firstNonEmpty(firstLine(res.Intro), nameFromOrigin(c)), maxNameRunes)
	data.Description = truncateRunes(res.Intro, maxDescriptionRunes)
	data.ImageURLs = galleryFrom(nil, res)
	data.Link = c.SourceURL
	data.ApplyHints(hints)
	return data, nil
}

func (e *HTMLExtractor) extractHTML(ctx context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	raw := c.TextContent()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, importers.NewExtractorError(NameHTML, err)
	}
	base := baseURL(doc, c.SourceURL)
	meta := readMeta(doc, base)
	h1 := collapseSpace(doc.Find("h1").First().Text())

	var article readability.Article
	pageURL := base
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	parser := readability.NewParser()
	if parsed, err := parser.Parse(strings.NewReader(raw), pageURL); err != nil {
		e.logger.Debug("readability failed", zap.String("origin", c.Origin()), zap.Error(err))
	} else {
		article = parsed
	}

	if sel := strings.Join(e.seg.Vocabulary().NoiseSelectors, ", "); sel != "" {
		doc.Find(sel).Remove()
	}
	root := mainContent(doc)
	labeled := labeledValues(root)
	text, _ := renderOutline(root, base)

	res, err := segmentText(ctx, e.pool, e.seg, text, labeled)
	if err != nil {
		return nil, importers.NewExtractorError(NameHTML, err)
	}
	if !hasStructure(res) {
		return nil, importers.NewExtractorError(NameHTML, errNoStructure)
	}

	data := fromSegments(res)
	data.Name = truncateRunes(firstNonEmpty(meta.OGTitle, article.Title, h1, meta.Title, firstLine(res.Intro), nameFromOrigin(c)), maxNameRunes)
	data.Description = truncateRunes(firstNonEmpty(article.Excerpt, meta.Description, res.Intro), maxDescriptionRunes)

	lead := meta.Images
	if article.Image != "" {
		lead = append(lead, resolveURL(base, article.Image))
	}
	data.ImageURLs = galleryFrom(lead, res)
	data.Link = c.SourceURL

	if site := firstNonEmpty(meta.SiteName, article.SiteName); site != "" {
		_ = data.Extras.Set("site_name", site)
	}
	if article.Byline != "" {
		_ = data.Extras.Set("author", collapseSpace(article.Byline))
	}
	data.ApplyHints(hints)
	return data, nil
}

// galleryFrom lists lead images first, then inline images that are not
// diagrams. Step images are removed later by Finalize.
func galleryFrom(lead []string, res segment.Result) []string {
	diagrams := make(map[string]bool, len(res.Diagrams))
	for _, d := range res.Diagrams {
		diagrams[d] = true
	}
	out := make([]string, 0, len(lead)+len(res.Images))
	for _, u := range lead {
		if u != "" {
			out = append(out, u)
		}
	}
	for _, u := range res.Images {
		if !diagrams[u] {
			out = append(out, u)
		}
	}
	return out
}

// baseURL honours <base href> and falls back to the fetch URL.
func baseURL(doc *goquery.Document, source string) *url.URL {
	src, _ := url.Parse(source)
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			if src != nil {
				return src.ResolveReference(b)
			}
			return b
		}
	}
	return src
}
