package sources

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mrlokans/patterns/internal/importers"
)

// BrowserOptions configures headless rendering.
type BrowserOptions struct {
	Timeout   time.Duration
	UserAgent string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// BrowserSource renders a page in headless Chrome and returns the
// resulting DOM as HTML. It is used for pages that build their content with
// JavaScript.
type BrowserSource struct {
	rawURL string
	opts   BrowserOptions
}

var _ importers.Source = (*BrowserSource)(nil)

// NewBrowserSource creates a rendering source for rawURL.
func NewBrowserSource(rawURL string, opts BrowserOptions) *BrowserSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &BrowserSource{rawURL: rawURL, opts: opts}
}

func (s *BrowserSource) CanFetch() bool {
	_, err := ParseHTTPURL(s.rawURL)
	return err == nil
}

func (s *BrowserSource) Fetch(ctx context.Context) (importers.RawContent, error) {
	u, err := ParseHTTPURL(s.rawURL)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("browser", s.rawURL, err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.opts.UserAgent),
	)
	if s.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, s.opts.Timeout)
	defer cancelTimeout()

	var html, location string
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(u.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return importers.RawContent{}, importers.NewSourceError("browser", s.rawURL, err)
	}
	if location == "" {
		location = u.String()
	}

	return importers.RawContent{
		Text:      html,
		Type:      importers.ContentTypeHTML,
		MIMEType:  "text/html",
		SourceURL: location,
		Metadata:  map[string]any{"rendered": true},
	}, nil
}
