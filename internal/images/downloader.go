package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/patterns/internal/workpool"
)

// Skip reasons.
const (
	SkipDuplicateChecksum = "duplicate_checksum"
	SkipSimilarExisting   = "similar_existing"
	SkipThumbnail         = "thumbnail"
	SkipSuperseded        = "superseded"
	SkipTooSmall          = "too_small"
	SkipTooLarge          = "too_large"
	SkipUnsupportedType   = "unsupported_type"
)

// Outcome labels reported to a Recorder.
const (
	OutcomeAccepted = "accepted"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

const defaultAccept = "image/avif,image/webp,image/apng,image/png,image/jpeg,image/gif,image/*;q=0.8,*/*;q=0.5"

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Config controls validation and deduplication.
type Config struct {
	MaxBytes            int64
	MaxCount            int
	MinDimension        int
	SimilarityThreshold float64
	Timeout             time.Duration
	UserAgent           string
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxBytes:            10 << 20,
		MaxCount:            10,
		MinDimension:        100,
		SimilarityThreshold: 0.95,
		Timeout:             10 * time.Second,
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}
}

// Recorder receives one outcome per processed candidate.
type Recorder interface {
	ImageOutcome(outcome, reason string)
}

// DownloadedImage is an accepted candidate. Data holds the full bytes.
type DownloadedImage struct {
	URL         string
	Data        []byte
	ContentType string
	Inspection
}

// SkippedImage is a candidate rejected by validation or deduplication.
type SkippedImage struct {
	URL    string
	Reason string
}

// FailedImage is a candidate that could not be fetched or decoded.
type FailedImage struct {
	URL string
	Err error
}

// Batch is one download request.
type Batch struct {
	URLs []string
	// ExistingChecksums and ExistingSignatures describe images the target
	// already stores. They are read once at the start of the batch.
	ExistingChecksums  []string
	ExistingSignatures []Signature
	// Limit caps accepted images. Zero uses Config.MaxCount.
	Limit int
	// Referer is sent with every request.
	Referer string
}

// BatchResult classifies every candidate that was processed. Candidates
// after the limit was reached do not appear anywhere.
type BatchResult struct {
	Accepted []DownloadedImage
	Skipped  []SkippedImage
	Errors   []FailedImage
}

// Downloader fetches candidate images sequentially over one shared client.
type Downloader struct {
	cfg      Config
	client   *http.Client
	pool     *workpool.Pool
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithPool sets the worker pool used for decoding.
func WithPool(p *workpool.Pool) Option {
	return func(d *Downloader) { d.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// WithRecorder installs an outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Downloader) { d.recorder = r }
}

// NewDownloader creates a downloader.
func NewDownloader(cfg Config, opts ...Option) *Downloader {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = def.MaxCount
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	d := &Downloader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Downloader) Config() Config { return d.cfg }

// Inspect decodes image bytes on the downloader's pool.
func (d *Downloader) Inspect(ctx context.Context, data []byte) (Inspection, error) {
	return Inspect(ctx, d.pool, data)
}

// skipError marks a validation failure that is reported as a skip.
type skipError struct{ reason, detail string }

func (e *skipError) Error() string { return e.reason + ": " + e.detail }

// Download processes candidates in order until the accepted count reaches
// the limit. Dedup checks, first match wins:
//  1. checksum equal to an existing or already accepted image
//  2. similar to an existing image, regardless of size
//  3. similar to an accepted image: skipped unless strictly larger, in which
//     case the smaller accepted copies are evicted
//
// Eviction is order-dependent: it does not guarantee the largest copy in the
// whole batch wins when several similar copies arrive in mixed order.
func (d *Downloader) Download(ctx context.Context, batch Batch) *BatchResult {
	limit := batch.Limit
	if limit <= 0 {
		limit = d.cfg.MaxCount
	}

	existing := make(map[string]bool, len(batch.ExistingChecksums))
	for _, c := range batch.ExistingChecksums {
		existing[c] = true
	}
	accepted := make(map[string]bool)
	result := &BatchResult{}

	for _, raw := range dedupURLs(batch.URLs) {
		if len(result.Accepted) >= limit {
			break
		}
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, FailedImage{URL: raw, Err: ctx.Err()})
			break
		}

		img, err := d.fetch(ctx, raw, batch.Referer)
		if err != nil {
			var skip *skipError
			if errors.As(err, &skip) {
				d.skip(result, raw, skip.reason)
				d.logger.Debug("image skipped", zap.String("url", raw), zap.String("reason", skip.detail))
			} else {
				d.fail(result, raw, err)
			}
			continue
		}

		if existing[img.Checksum] || accepted[img.Checksum] {
			d.skip(result, raw, SkipDuplicateChecksum)
			continue
		}
		if d.similarToExisting(img.Signature, batch.ExistingSignatures) {
			d.skip(result, raw, SkipSimilarExisting)
			continue
		}

		matches, dominated := d.similarAccepted(img, result.Accepted)
		if dominated {
			d.skip(result, raw, SkipThumbnail)
			continue
		}
		if len(matches) > 0 {
			result.Accepted = evict(result.Accepted, matches, func(old DownloadedImage) {
				delete(accepted, old.Checksum)
				d.skip(result, old.URL, SkipSuperseded)
			})
		}

		accepted[img.Checksum] = true
		result.Accepted = append(result.Accepted, img)
		d.record(OutcomeAccepted, "")
	}

	d.logger.Info("image batch done",
		zap.Int("candidates", len(batch.URLs)),
		zap.Int("accepted", len(result.Accepted)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("errors", len(result.Errors)))
	return result
}

func (d *Downloader) similarToExisting(sig Signature, existing []Signature) bool {
	for _, e := range existing {
		if IsSimilar(sig, e, d.cfg.SimilarityThreshold) {
			return true
		}
	}
	return false
}

// similarAccepted returns indices of accepted images similar to img and
// whether any of them is at least as large.
func (d *Downloader) similarAccepted(img DownloadedImage, accepted []DownloadedImage) ([]int, bool) {
	var matches []int
	for i, a := range accepted {
		if !IsSimilar(img.Signature, a.Signature, d.cfg.SimilarityThreshold) {
			continue
		}
		if img.Signature.PixelCount() <= a.Signature.PixelCount() {
			return nil, true
		}
		matches = append(matches, i)
	}
	return matches, false
}

func evict(accepted []DownloadedImage, idx []int, onEvict func(DownloadedImage)) []DownloadedImage {
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	kept := accepted[:0]
	for i, a := range accepted {
		if drop[i] {
			onEvict(a)
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func (d *Downloader) skip(r *BatchResult, u, reason string) {
	r.Skipped = append(r.Skipped, SkippedImage{URL: u, Reason: reason})
	d.record(OutcomeSkipped, reason)
}

func (d *Downloader) fail(r *BatchResult, u string, err error) {
	r.Errors = append(r.Errors, FailedImage{URL: u, Err: err})
	d.record(OutcomeError, "")
	d.logger.Warn("image download failed", zap.String("url", u), zap.Error(err))
}

func (d *Downloader) record(outcome, reason string) {
	if d.recorder != nil {
		d.recorder.ImageOutcome(outcome, reason)
	}
}

// fetch downloads and validates one candidate. Nothing is written anywhere;
// bytes of rejected candidates are discarded.
func (d *Downloader) fetch(ctx context.Context, raw, referer string) (DownloadedImage, error) {
	u, err := validateURL(raw)
	if err != nil {
		return DownloadedImage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return DownloadedImage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", defaultAccept)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DownloadedImage{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DownloadedImage{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	contentType, ok := classify(resp.Header.Get("Content-Type"), u.Path)
	if !ok {
		return DownloadedImage{}, &skipError{SkipUnsupportedType, resp.Header.Get("Content-Type")}
	}
	if resp.ContentLength > d.cfg.MaxBytes {
		return DownloadedImage{}, &skipError{SkipTooLarge, fmt.Sprintf("content-length %d", resp.ContentLength)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return DownloadedImage{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return DownloadedImage{}, &skipError{SkipTooLarge, fmt.Sprintf("body exceeds %d bytes", d.cfg.MaxBytes)}
	}

	w, h, _, err := Dimensions(data)
	if err != nil {
		return DownloadedImage{}, err
	}
	if w < d.cfg.MinDimension || h < d.cfg.MinDimension {
		return DownloadedImage{}, &skipError{SkipTooSmall, fmt.Sprintf("%dx%d", w, h)}
	}

	insp, err := Inspect(ctx, d.pool, data)
	if err != nil {
		return DownloadedImage{}, err
	}
	return DownloadedImage{URL: raw, Data: data, ContentType: contentType, Inspection: insp}, nil
}

func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid image url %q: unsupported scheme", raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid image url %q: missing host", raw)
	}
	return u, nil
}

// classify applies the type allow-list. A generic or missing header falls
// back to the URL extension.
func classify(header, urlPath string) (string, bool) {
	mt, _, err := mime.ParseMediaType(header)
	if err == nil {
		mt = strings.ToLower(mt)
		if allowedTypes[mt] {
			if mt == "image/jpg" {
				mt = "image/jpeg"
			}
			return mt, true
		}
		if mt != "application/octet-stream" && mt != "binary/octet-stream" {
			return "", false
		}
	}
	ct, ok := allowedExtensions[strings.ToLower(path.Ext(urlPath))]
	return ct, ok
}

func dedupURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
