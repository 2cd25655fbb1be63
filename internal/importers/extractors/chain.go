package extractors

import (
	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/importers"
	"github.com/mrlokans/patterns/internal/segment"
	"github.com/mrlokans/patterns/internal/workpool"
)

// Deps are shared collaborators of the default chain. Zero values are valid.
type Deps struct {
	Segmenter *segment.Segmenter
	Pool      *workpool.Pool
	Logger    *zap.Logger
	// Completer overrides the OpenAI client built from AIConfig.
	Completer Completer
	Renderer  PageRenderer
}

// DefaultChain returns HTML, PDF, AI and fallback extractors in that order.
func DefaultChain(ai AIConfig, deps Deps) []importers.Extractor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seg := deps.Segmenter
	if seg == nil {
		seg = segment.New(nil)
	}

	completer := deps.Completer
	if completer == nil && ai.Enabled && ai.APIKey != "" {
		c, err := NewOpenAICompleter(ai)
		if err != nil {
			logger.Warn("ai extractor disabled", zap.Error(err))
		} else {
			completer = c
		}
	}
	aiOpts := []AIOption{WithAILogger(logger.Named("ai"))}
	if deps.Renderer != nil {
		aiOpts = append(aiOpts, WithRenderer(deps.Renderer))
	}

	return []importers.Extractor{
		NewHTMLExtractor(seg, deps.Pool, logger.Named("html")),
		NewPDFExtractor(seg, deps.Pool, logger.Named("pdf")),
		NewAIExtractor(ai, completer, aiOpts...),
		NewFallbackExtractor(),
	}
}
