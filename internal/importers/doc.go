// Package importers turns external content into pattern records.
//
// # Architecture
//
// An import run is a linear sequence of stages:
//
//	Source.Fetch → RawContent → Extractor chain → ExtractedData → Target.Create → ImportResult
//
// A Source acquires bytes or text (a URL, an uploaded file, a rendered page).
// Extractors are tried strictly in the order they were registered; the first
// one that both accepts the content (CanExtract) and succeeds (Extract) wins.
// Failed attempts are kept as warnings when a later extractor succeeds, or
// as errors when the whole chain is exhausted. The Target persists the record
// and reports counts back through ImportResult.
//
// # Adding a New Extractor
//
//  1. Implement the Extractor interface in internal/importers/extractors:
//
//     type RavelryExtractor struct{}
//
//     func (e *RavelryExtractor) Name() string { return "ravelry" }
//     func (e *RavelryExtractor) CanExtract(c importers.RawContent) bool { ... }
//     func (e *RavelryExtractor) Extract(ctx context.Context, c importers.RawContent, h importers.Hints) (*importers.ExtractedData, error) { ... }
//
//     var _ importers.Extractor = (*RavelryExtractor)(nil)
//
//  2. Register it in extractors.DefaultChain at the position it should be tried.
//
// The pipeline itself never needs to change.
//
// # Example Usage
//
//	pipeline := importers.NewPipeline(target, chain,
//		importers.WithLogger(logger),
//		importers.WithTracer(metrics),
//	)
//	result := pipeline.Run(ctx, sources.NewURLSource(url, cfg), importers.Hints{})
package importers
