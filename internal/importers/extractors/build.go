package extractors

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/segment"
	"github.com/mrlokans/patterns/internal/workpool"
)

const (
	maxDescriptionRunes = 1000
	maxNameRunes        = 200
)

// segmentText runs the segmenter on the pool.
func segmentText(ctx context.Context, pool *workpool.Pool, seg *segment.Segmenter, text string, labeled map[string]string) (segment.Result, error) {
	return workpool.Run(ctx, pool, func() (segment.Result, error) {
		return seg.Segment(text, labeled), nil
	})
}

// hasStructure reports whether segmentation found anything beyond prose:
// a metadata field or a titled step.
func hasStructure(res segment.Result) bool {
	if len(res.Metadata) > 0 {
		return true
	}
	for _, s := range res.Steps {
		if s.Title != "" {
			return true
		}
	}
	return false
}

// fromSegments maps a segmentation result onto a record.
func fromSegments(res segment.Result) *importers.ExtractedData {
	d := &importers.ExtractedData{
		Yarn:    res.Metadata[segment.FieldYarn],
		Needles: res.Metadata[segment.FieldNeedles],
		Gauge:   res.Metadata[segment.FieldGauge],
		Size:    res.Metadata[segment.FieldSize],
		Steps:   res.Steps,
	}
	if d.Yarn != "" {
		d.Yarns = segment.ParseYarns(d.Yarn)
	}
	if d.Gauge != "" {
		d.GaugeStitches, d.GaugeRows = segment.ParseGauge(d.Gauge)
	}
	if notions := res.Metadata[segment.FieldNotions]; notions != "" {
		_ = d.Extras.Set("notions", notions)
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// truncateRunes cuts s to at most n runes, preferring a word boundary.
func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// firstLine returns the first non-empty line of text.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#*-• "))
		if line != "" {
			return truncateRunes(line, maxNameRunes)
		}
	}
	return ""
}

// nameFromOrigin turns a file name or URL path into a readable name.
func nameFromOrigin(c importers.RawContent) string {
	var base string
	switch {
	case c.SourcePath != "":
		base = filepath.Base(c.SourcePath)
	case c.Metadata != nil && c.Metadata["filename"] != nil:
		base, _ = c.Metadata["filename"].(string)
	case c.SourceURL != "":
		if u, err := url.Parse(c.SourceURL); err == nil {
			base = path.Base(strings.TrimRight(u.Path, "/"))
			if base == "." || base == "/" || base == "" {
				base = u.Hostname()
			}
		}
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
