package extractors

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrlokans/patterns/internal/images"
	"github.com/mrlokans/patterns/internal/importers"
)

// NameAI identifies the AI extractor.
const NameAI = "ai"

// Defaults applied to zero AIConfig fields.
const (
	DefaultAIModel          = "gpt-4o-mini"
	DefaultAIMaxTokens      = 4096
	DefaultAITemperature    = 0.1
	DefaultAITimeout        = 60 * time.Second
	DefaultAIImageDimension = 1568

	defaultMaxPromptRunes = 30000
	defaultMaxPDFPages    = 4
)

// 50 requests per minute, bursts of 5.
const (
	defaultAIRateLimit = 50.0 / 60.0
	defaultAIBurst     = 5
)

// Completer is the slice of llms.Model the extractor needs.
type Completer interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// PageRenderer rasterises PDF pages so they can be sent as images.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error)
}

// AIConfig configures the AI extractor.
type AIConfig struct {
	Enabled           bool
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxImageDimension int
	MaxPromptRunes    int
	MaxPDFPages       int
}

func (c *AIConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultAIModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultAIMaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultAITemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultAITimeout
	}
	if c.MaxImageDimension <= 0 {
		c.MaxImageDimension = DefaultAIImageDimension
	}
	if c.MaxPromptRunes <= 0 {
		c.MaxPromptRunes = defaultMaxPromptRunes
	}
	if c.MaxPDFPages <= 0 {
		c.MaxPDFPages = defaultMaxPDFPages
	}
}

// NewOpenAICompleter builds a completer for an OpenAI-compatible endpoint.
func NewOpenAICompleter(cfg AIConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key required")
	}
	cfg.applyDefaults()
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ai: create client: %w", err)
	}
	return llm, nil
}

// AIOption configures an AIExtractor.
type AIOption func(*AIExtractor)

// WithRenderer makes PDFs eligible by sending rendered pages.
func WithRenderer(r PageRenderer) AIOption {
	return func(e *AIExtractor) { e.renderer = r }
}

// WithLimiter replaces the default request pacing.
func WithLimiter(l *rate.Limiter) AIOption {
	return func(e *AIExtractor) { e.limiter = l }
}

// WithAILogger sets the logger.
func WithAILogger(l *zap.Logger) AIOption {
	return func(e *AIExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

var _ importers.Extractor = (*AIExtractor)(nil)

// AIExtractor asks a language model for the pattern as one JSON object.
type AIExtractor struct {
	cfg       AIConfig
	completer Completer
	renderer  PageRenderer
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewAIExtractor creates an AI extractor. A nil completer disables it.
func NewAIExtractor(cfg AIConfig, completer Completer, opts ...AIOption) *AIExtractor {
	cfg.applyDefaults()
	e := &AIExtractor{
		cfg:       cfg,
		completer: completer,
		limiter:   rate.NewLimiter(rate.Limit(defaultAIRateLimit), defaultAIBurst),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *AIExtractor) Name() string { return NameAI }

// CanExtract requires the extractor to be enabled with a key, and content it
// can put into a prompt.
func (e *AIExtractor) CanExtract(c importers.RawContent) bool {
	if !e.cfg.Enabled || e.cfg.APIKey == "" || e.completer == nil {
		return false
	}
	switch c.Type {
	case importers.ContentTypeImage:
		return len(c.Data) > 0
	case importers.ContentTypePDF:
		return e.renderer != nil && len(c.Data) > 0
	}
	return c.IsTextDecodable()
}

func (e *AIExtractor) Extract(ctx context.Context, c importers.RawContent, hints importers.Hints) (*importers.ExtractedData, error) {
	parts, err := e.userParts(ctx, c, hints)
	if err != nil {
		return nil, importers.NewExtractorError(NameAI, err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, importers.NewExtractorError(NameAI, fmt.Errorf("rate limiter: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}
	started := time.Now()
	resp, err := e.completer.GenerateContent(callCtx, messages,
		llms.WithJSONMode(),
		llms.WithMaxTokens(e.cfg.MaxTokens),
		llms.WithTemperature(e.cfg.Temperature),
	)
	if err != nil {
		return nil, importers.NewExtractorError(NameAI, fmt.Errorf("completion: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, importers.NewExtractorError(NameAI, errors.New("empty completion"))
	}
	e.logger.Debug("ai completion",
		zap.String("origin", c.Origin()),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("stop_reason", resp.Choices[0].StopReason))

	data, err := ParseAIResponse(resp.Choices[0].Content)
	if err != nil {
		return nil, importers.NewExtractorError(NameAI, err)
	}
	data.Link = firstNonEmpty(data.Link, c.SourceURL)
	data.ApplyHints(hints)
	if data.Name == "" {
		data.Name = nameFromOrigin(c)
	}
	return data, nil
}

func (e *AIExtractor) userParts(ctx context.Context, c importers.RawContent, hints importers.Hints) ([]llms.ContentPart, error) {
	intro := "Extract the pattern from this content."
	if hints.Name != "" {
		intro += " The pattern is called " + hints.Name + "."
	}
	parts := []llms.ContentPart{llms.TextPart(intro)}

	switch c.Type {
	case importers.ContentTypeImage:
		part, err := e.imagePart(c.Data)
		if err != nil {
			return nil, err
		}
		return append(parts, part), nil
	case importers.ContentTypePDF:
		pages, err := e.renderer.RenderPages(ctx, c.Data, e.cfg.MaxPDFPages)
		if err != nil {
			return nil, fmt.Errorf("render pdf: %w", err)
		}
		if len(pages) == 0 {
			return nil, fmt.Errorf("render pdf: %w", importers.ErrNoText)
		}
		for _, page := range pages {
			part, err := e.imagePart(page)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		return parts, nil
	}

	text := strings.TrimSpace(c.TextContent())
	if text == "" {
		return nil, importers.ErrNoText
	}
	return append(parts, llms.TextPart(truncateRunes(text, e.cfg.MaxPromptRunes))), nil
}

func (e *AIExtractor) imagePart(data []byte) (llms.ContentPart, error) {
	jpg, err := images.Downscale(data, e.cfg.MaxImageDimension)
	if err != nil {
		return nil, err
	}
	return llms.ImageURLPart("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpg)), nil
}

const systemPrompt = `You extract knitting and crochet patterns into JSON.

Respond with one JSON object and nothing else. Use these keys when the
content provides them:
- "name": pattern name
- "description": one or two sentence summary
- "category": garment type such as hat, sweater, shawl
- "yarn": materials exactly as written
- "yarns": array of {"name", "brand", "colorway", "weight", "length", "weight_category", "fiber_content"}
- "needles": needles or hook sizes
- "gauge": gauge as written
- "gauge_stitches", "gauge_rows": numbers per 10 cm / 4 in
- "size": sizes or finished measurements
- "steps": array of {"step_number", "title", "description"} in order
- "brand": designer or publisher
- "image_urls": array of image URLs found in the content

Add any other useful fields under their own keys. Do not invent values.`

// ParseAIResponse decodes a model reply into a record. Markdown code fences
// and text around the outermost object are ignored. Keys without a typed
// field are kept in Extras.
func ParseAIResponse(content string) (*importers.ExtractedData, error) {
	body, err := jsonObject(content)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	d := &importers.ExtractedData{}
	for _, key := range keys {
		raw := fields[key]
		if string(raw) == "null" && typedFields[key] {
			continue
		}
		if err := assignField(d, key, raw); err != nil {
			// Wrong shape for a typed field: keep it verbatim.
			d.Extras.SetRaw(key, compactJSON(raw))
		}
	}
	if d.Name == "" && d.Description == "" && len(d.Steps) == 0 {
		return nil, errors.New("response has no name, description or steps")
	}
	for i := range d.Steps {
		if d.Steps[i].Title == "" {
			d.Steps[i].Title = fmt.Sprintf("Step %d", i+1)
		}
	}
	if d.Yarn == "" && len(d.Yarns) > 0 {
		names := make([]string, 0, len(d.Yarns))
		for _, y := range d.Yarns {
			if y.Name != "" {
				names = append(names, y.Name)
			}
		}
		d.Yarn = strings.Join(names, "; ")
	}
	return d, nil
}

// typedFields are the reply keys with a slot on ExtractedData.
var typedFields = map[string]bool{
	"name": true, "description": true, "category": true, "yarn": true,
	"needles": true, "gauge": true, "size": true, "brand": true, "link": true,
	"gauge_stitches": true, "gauge_rows": true, "yarns": true,
	"image_urls": true, "steps": true,
}

type aiStep struct {
	StepNumber  int    `json:"step_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func assignField(d *importers.ExtractedData, key string, raw json.RawMessage) error {
	str := func(dst *string) error { return decodeInto(raw, dst) }
	num := func(dst *float64) error { return decodeInto(raw, dst) }

	switch key {
	case "name":
		return str(&d.Name)
	case "description":
		return str(&d.Description)
	case "category":
		return str(&d.Category)
	case "yarn":
		return str(&d.Yarn)
	case "needles":
		return str(&d.Needles)
	case "gauge":
		return str(&d.Gauge)
	case "size":
		return str(&d.Size)
	case "brand":
		return str(&d.Brand)
	case "link":
		return str(&d.Link)
	case "gauge_stitches":
		return num(&d.GaugeStitches)
	case "gauge_rows":
		return num(&d.GaugeRows)
	case "yarns":
		return decodeInto(raw, &d.Yarns)
	case "image_urls":
		return decodeInto(raw, &d.ImageURLs)
	case "steps":
		var steps []aiStep
		if err := json.Unmarshal(raw, &steps); err != nil {
			return err
		}
		for _, s := range steps {
			d.Steps = append(d.Steps, importers.ExtractedStep{
				StepNumber:  s.StepNumber,
				Title:       strings.TrimSpace(s.Title),
				Description: strings.TrimSpace(s.Description),
			})
		}
		return nil
	}
	d.Extras.SetRaw(key, compactJSON(raw))
	return nil
}

// decodeInto leaves dst untouched when raw does not fit its type.
func decodeInto[T any](raw json.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// jsonObject strips code fences and returns the outermost {...} span.
func jsonObject(content string) (string, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", errors.New("response contains no JSON object")
	}
	return s[start : end+1], nil
}
