package importers

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// ContentType classifies fetched content and gates which extractors may run.
type ContentType string

const (
	ContentTypeHTML     ContentType = "html"
	ContentTypeText     ContentType = "text"
	ContentTypePDF      ContentType = "pdf"
	ContentTypeImage    ContentType = "image"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeUnknown  ContentType = "unknown"
)

var extensionTypes = map[string]ContentType{
	".html":     ContentTypeHTML,
	".htm":      ContentTypeHTML,
	".xhtml":    ContentTypeHTML,
	".txt":      ContentTypeText,
	".text":     ContentTypeText,
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".pdf":      ContentTypePDF,
	".jpg":      ContentTypeImage,
	".jpeg":     ContentTypeImage,
	".png":      ContentTypeImage,
	".webp":     ContentTypeImage,
	".gif":      ContentTypeImage,
}

var mimeTypes = map[string]ContentType{
	"text/html":             ContentTypeHTML,
	"application/xhtml+xml": ContentTypeHTML,
	"text/plain":            ContentTypeText,
	"text/markdown":         ContentTypeMarkdown,
	"text/x-markdown":       ContentTypeMarkdown,
	"application/pdf":       ContentTypePDF,
	"image/jpeg":            ContentTypeImage,
	"image/jpg":             ContentTypeImage,
	"image/png":             ContentTypeImage,
	"image/webp":            ContentTypeImage,
	"image/gif":             ContentTypeImage,
}

// ContentTypeFromExtension classifies a file name or URL path by extension.
func ContentTypeFromExtension(name string) ContentType {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	return ContentTypeUnknown
}

// ContentTypeFromMIME classifies a Content-Type header value.
// Parameters such as charset are ignored.
func ContentTypeFromMIME(mime string) ContentType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if ct, ok := mimeTypes[mime]; ok {
		return ct
	}
	return ContentTypeUnknown
}

// RawContent is the output of a single Source.Fetch call. It is not modified
// after creation.
type RawContent struct {
	Data       []byte
	Text       string
	Type       ContentType
	MIMEType   string
	SourceURL  string
	SourcePath string
	Metadata   map[string]any
}

// TextContent returns the decoded text, falling back to Data when it is valid UTF-8.
func (c RawContent) TextContent() string {
	if c.Text != "" {
		return c.Text
	}
	if len(c.Data) > 0 && c.Type != ContentTypeImage && c.Type != ContentTypePDF && utf8.Valid(c.Data) {
		return string(c.Data)
	}
	return ""
}

// IsTextDecodable reports whether the content carries usable text.
func (c RawContent) IsTextDecodable() bool {
	return strings.TrimSpace(c.TextContent()) != ""
}

// Origin returns the URL or path the content came from.
func (c RawContent) Origin() string {
	if c.SourceURL != "" {
		return c.SourceURL
	}
	return c.SourcePath
}

// Hints are caller-supplied values that take precedence over detected ones.
type Hints struct {
	Name     string
	Category string
	Brand    string
	Link     string
}

// StepKind separates instructional steps from reference material.
type StepKind string

const (
	StepKindInstruction StepKind = "instruction"
	StepKindLegend      StepKind = "legend"
)

// ExtractedStep is one instruction block.
type ExtractedStep struct {
	StepNumber  int      `json:"step_number"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images,omitempty"`
	Kind        StepKind `json:"kind,omitempty"`
}

// ExtractedYarn is one detected material reference.
type ExtractedYarn struct {
	Name           string `json:"name"`
	Brand          string `json:"brand,omitempty"`
	Colorway       string `json:"colorway,omitempty"`
	Weight         string `json:"weight,omitempty"`
	Length         string `json:"length,omitempty"`
	WeightCategory string `json:"weight_category,omitempty"`
	FiberContent   string `json:"fiber_content,omitempty"`
	Link           string `json:"link,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// ExtractedData is the structured record produced by one extraction attempt.
type ExtractedData struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category,omitempty"`
	Yarn          string          `json:"yarn,omitempty"`
	Yarns         []ExtractedYarn `json:"yarns,omitempty"`
	Needles       string          `json:"needles,omitempty"`
	Gauge         string          `json:"gauge,omitempty"`
	GaugeStitches float64         `json:"gauge_stitches,omitempty"`
	GaugeRows     float64         `json:"gauge_rows,omitempty"`
	Size          string          `json:"size,omitempty"`
	Steps         []ExtractedStep `json:"steps,omitempty"`
	ImageURLs     []string        `json:"image_urls,omitempty"`
	Link          string          `json:"link,omitempty"`
	Brand         string          `json:"brand,omitempty"`
	Extras        Extras          `json:"extras,omitempty"`
}

// ApplyHints overwrites detected values with non-empty hints.
func (d *ExtractedData) ApplyHints(h Hints) {
	if h.Name != "" {
		d.Name = h.Name
	}
	if h.Category != "" {
		d.Category = h.Category
	}
	if h.Brand != "" {
		d.Brand = h.Brand
	}
	if h.Link != "" {
		d.Link = h.Link
	}
}

// Finalize puts the record into its persisted shape: steps deduplicated by
// (title, description) with the legend step last, step numbers 1..N,
// gallery URLs deduplicated, stripped of step images, and capped at maxImages.
// A maxImages <= 0 leaves the gallery length unbounded.
func (d *ExtractedData) Finalize(maxImages int) {
	type stepKey struct{ title, body string }
	seen := make(map[stepKey]bool, len(d.Steps))

	var steps []ExtractedStep
	var legend *ExtractedStep
	stepImages := make(map[string]bool)

	for _, s := range d.Steps {
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		if s.Title == "" && s.Description == "" && len(s.Images) == 0 {
			continue
		}
		if s.Kind == "" {
			s.Kind = StepKindInstruction
		}
		s.Images = dedupStrings(s.Images)
		for _, img := range s.Images {
			stepImages[img] = true
		}

		if s.Kind == StepKindLegend {
			if legend == nil {
				cp := s
				legend = &cp
			} else {
				legend.Description = joinNonEmpty(legend.Description, s.Description)
				legend.Images = dedupStrings(append(legend.Images, s.Images...))
			}
			continue
		}

		key := stepKey{strings.ToLower(s.Title), s.Description}
		if seen[key] {
			continue
		}
		seen[key] = true
		steps = append(steps, s)
	}
	if legend != nil {
		steps = append(steps, *legend)
	}
	for i := range steps {
		steps[i].StepNumber = i + 1
	}
	d.Steps = steps

	var gallery []string
	for _, u := range dedupStrings(d.ImageURLs) {
		if stepImages[u] {
			continue
		}
		gallery = append(gallery, u)
	}
	if maxImages > 0 && len(gallery) > maxImages {
		gallery = gallery[:maxImages]
	}
	d.ImageURLs = gallery
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}

func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Extra is a field the record has no typed slot for. Value holds the
// original JSON so nothing is lost on the way to the store.
type Extra struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Extras holds unparsed fields in key order.
type Extras []Extra

// Set stores v under key, replacing an existing entry.
func (e *Extras) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.SetRaw(key, raw)
	return nil
}

// SetRaw stores already-encoded JSON under key.
func (e *Extras) SetRaw(key string, raw json.RawMessage) {
	for i := range *e {
		if (*e)[i].Key == key {
			(*e)[i].Value = raw
			return
		}
	}
	*e = append(*e, Extra{Key: key, Value: raw})
	sort.SliceStable(*e, func(i, j int) bool { return (*e)[i].Key < (*e)[j].Key })
}

// Get returns the raw value stored under key.
func (e Extras) Get(key string) (json.RawMessage, bool) {
	for _, x := range e {
		if x.Key == key {
			return x.Value, true
		}
	}
	return nil, false
}

// GetString decodes a string extra.
func (e Extras) GetString(key string) string {
	raw, ok := e.Get(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// Keys returns the stored keys in order.
func (e Extras) Keys() []string {
	keys := make([]string, len(e))
	for i, x := range e {
		keys[i] = x.Key
	}
	return keys
}

// MarshalJSON renders extras as a single JSON object.
func (e Extras) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(e))
	for _, x := range e {
		m[x.Key] = x.Value
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a JSON object into extras.
func (e *Extras) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*e = (*e)[:0]
	for k, v := range m {
		e.SetRaw(k, v)
	}
	return nil
}
