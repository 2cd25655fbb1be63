// Package sources implements importers.Source for URLs, rendered web pages,
// local files and in-memory uploads.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/mrlokans/patterns/internal/importers"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 10 << 20
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	documentAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,text/plain;q=0.8,image/*;q=0.7,*/*;q=0.5"
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs with a host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrTooLarge is returned when a body exceeds the configured ceiling.
	ErrTooLarge = errors.New("document exceeds size limit")
)

// URLOptions configures HTTP fetching.
type URLOptions struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
}

func (o URLOptions) withDefaults() URLOptions {
	if o.Client == nil {
		o.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

// URLSource fetches one document with a single GET request.
type URLSource struct {
	rawURL string
	opts   URLOptions
}

var _ importers.Source = (*URLSource)(nil)

// NewURLSource creates a source for rawURL.
func NewURLSource(rawURL string, opts URLOptions) *URLSource {
	return &URLSource{rawURL: strings.TrimSpace(rawURL), opts: opts.withDefaults()}
}

// CanFetch validates scheme and host without any I/O.
func (s *URLSource) CanFetch() bool {
	_, err := ParseHTTPURL(s.rawURL)
	return err == nil
}

// Fetch issues the request, follows redirects and classifies the response.
func (s *URLSource) Fetch(ctx context.Context) (importers.RawContent, error) {
	u, err := ParseHTTPURL(s.rawURL)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, err)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", documentAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	mimeType := resp.Header.Get("Content-Type")
	contentType := importers.ContentTypeFromMIME(mimeType)
	if contentType == importers.ContentTypeUnknown {
		contentType = importers.ContentTypeFromExtension(path.Base(final.Path))
	}

	data, err := readLimited(resp.Body, s.opts.MaxBytes)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, err)
	}

	content := importers.RawContent{
		Type:      contentType,
		MIMEType:  mimeType,
		SourceURL: final.String(),
		Metadata: map[string]any{
			"status_code": resp.StatusCode,
		},
	}
	if isTextual(contentType) {
		text, err := decodeText(data, mimeType)
		if err != nil {
			return importers.RawContent{}, importers.NewSourceError("url", s.rawURL, err)
		}
		content.Text = text
	} else {
		content.Data = data
	}
	return content, nil
}

// ParseHTTPURL accepts absolute http and https URLs with a host.
func ParseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

func isTextual(ct importers.ContentType) bool {
	switch ct {
	case importers.ContentTypeHTML, importers.ContentTypeText, importers.ContentTypeMarkdown:
		return true
	}
	return false
}

// decodeText converts data to UTF-8 using the declared charset, a <meta>
// declaration or content sniffing.
func decodeText(data []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}
