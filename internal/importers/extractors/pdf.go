package extractors

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/segment"
	"github.com/mrlokans/patterns/internal/workpool"
)

// NamePDF identifies the PDF extractor.
const NamePDF = "pdf"

// minTextLetters is the smallest text layer treated as real text.
// Scanned documents usually yield a handful of stray glyphs.
const minTextLetters = 20

var _ importers.Extractor = (*PDFExtractor)(nil)

// PDFExtractor reads the text layer of a PDF and segments it.
type PDFExtractor struct {
	seg    *segment.Segmenter
	pool   *workpool.Pool
	logger *zap.Logger
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(seg *segment.Segmenter, pool *workpool.Pool, logger *zap.Logger) *PDFExtractor {
	if seg == nil {
		seg = segment.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{seg: seg, pool: pool, logger: logger}
}

func (e *PDFExtractor) Name() string { return NamePDF }

func (e *PDFExtractor) CanExtract(c importers.RawContent) bool {
	return c.Type == importers.ContentTypePDF && len(c.Data) > 0
}

func (e *PDFExtractor) Extract(ctx context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	text, err := workpool.Run(ctx, e.pool, func() (string, error) {
		return PlainText(c.Data)
	})
	if err != nil {
		return nil, importers.NewExtractorError(NamePDF, err)
	}
	if countLetters(text) < minTextLetters {
		e.logger.Debug("pdf has no text layer", zap.String("origin", c.Origin()))
		return nil, importers.NewExtractorError(NamePDF, fmt.Errorf("empty text layer: %w", importers.ErrNoText))
	}

	res, err := segmentText(ctx, e.pool, e.seg, text, nil)
	if err != nil {
		return nil, importers.NewExtractorError(NamePDF, err)
	}
	data := fromSegments(res)
	data.Name = truncateRunes(firstNonEmpty(nameFromOrigin(c), firstLine(res.Intro), firstLine(text)), maxNameRunes)
	data.Description = truncateRunes(firstNonEmpty(res.Intro, text), maxDescriptionRunes)
	data.Link = c.SourceURL
	data.ApplyHints(hints)
	return data, nil
}

// PlainText returns the text layer of a PDF, one page per paragraph.
// Malformed documents return an error rather than panicking.
func PlainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
