package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/patterns/internal/workpool"
)

// blockImage renders an 8x8 grid of random gray blocks. The same seed gives
// the same picture at any size.
func blockImage(seed int64, size int) *image.Gray {
	const grid = 8
	rng := rand.New(rand.NewSource(seed))
	var values [grid][grid]uint8
	for y := range values {
		for x := range values[y] {
			values[y][x] = uint8(rng.Intn(256))
		}
	}
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: values[y*grid/size][x*grid/size]})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type asset struct {
	contentType string
	body        []byte
}

type imageServer struct {
	*httptest.Server
	mu      sync.Mutex
	assets  map[string]asset
	hits    map[string]int
	headers map[string]http.Header
}

func newImageServer(t *testing.T) *imageServer {
	s := &imageServer{
		assets:  make(map[string]asset),
		hits:    make(map[string]int),
		headers: make(map[string]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.headers[r.URL.Path] = r.Header.Clone()
		a, ok := s.assets[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", a.contentType)
		_, _ = w.Write(a.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) add(path, contentType string, body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[path] = asset{contentType: contentType, body: body}
	return s.URL + path
}

func (s *imageServer) header(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[path]
}

func (s *imageServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ImageOutcome(outcome, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func newTestDownloader(opts ...Option) *Downloader {
	cfg := DefaultConfig()
	return NewDownloader(cfg, append([]Option{WithPool(workpool.New(2))}, opts...)...)
}

func acceptedURLs(r *BatchResult) []string {
	out := make([]string, len(r.Accepted))
	for i, a := range r.Accepted {
		out[i] = a.URL
	}
	return out
}

func TestDownloader_KeepsLargestOfSimilarPair(t *testing.T) {
	srv := newImageServer(t)
	big := srv.add("/big.png", "image/png", encodePNG(t, blockImage(1, 800)))
	small := srv.add("/small.png", "image/png", encodePNG(t, blockImage(1, 400)))

	res := newTestDownloader().Download(context.Background(), Batch{URLs: []string{big, small}})

	assert.Equal(t, []string{big}, acceptedURLs(res))
	assert.Equal(t, []SkippedImage{{URL: small, Reason: SkipThumbnail}}, res.Skipped)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 800, res.Accepted[0].Width)
	assert.Equal(t, "image/png", res.Accepted[0].ContentType)
}

func TestDownloader_LargerCopySupersedesAcceptedThumbnail(t *testing.T) {
	srv := newImageServer(t)
	small := srv.add("/small.png", "image/png", encodePNG(t, blockImage(1, 400)))
	big := srv.add("/big.png", "image/png", encodePNG(t, blockImage(1, 800)))
	other := srv.add("/other.png", "image/png", encodePNG(t, blockImage(2, 400)))
	rec := &countingRecorder{}

	res := newTestDownloader(WithRecorder(rec)).Download(context.Background(), Batch{URLs: []string{small, other, big}})

	assert.Equal(t, []string{other, big}, acceptedURLs(res))
	assert.Equal(t, []SkippedImage{{URL: small, Reason: SkipSuperseded}}, res.Skipped)
	assert.Equal(t, 3, rec.outcomes[OutcomeAccepted])
	assert.Equal(t, 1, rec.outcomes[OutcomeSkipped])
}

func TestDownloader_StopsFetchingAtLimit(t *testing.T) {
	srv := newImageServer(t)
	var urls []string
	for i := 0; i < 15; i++ {
		urls = append(urls, srv.add(fmt.Sprintf("/img%d.png", i), "image/png", encodePNG(t, blockImage(int64(100+i), 200))))
	}

	res := newTestDownloader().Download(context.Background(), Batch{URLs: urls, Limit: 10})

	assert.Len(t, res.Accepted, 10)
	assert.Empty(t, res.Skipped)
	assert.Empty(t, res.Errors)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, srv.hitCount(fmt.Sprintf("/img%d.png", i)))
	}
	for i := 10; i < 15; i++ {
		assert.Zero(t, srv.hitCount(fmt.Sprintf("/img%d.png", i)), "url %d must not be requested", i)
	}
}

func TestDownloader_ChecksumDuplicates(t *testing.T) {
	srv := newImageServer(t)
	data := encodePNG(t, blockImage(3, 300))
	stored := encodePNG(t, blockImage(4, 300))
	a := srv.add("/a.png", "image/png", data)
	b := srv.add("/b.png", "image/png", data)
	c := srv.add("/c.png", "image/png", stored)

	res := newTestDownloader().Download(context.Background(), Batch{
		URLs:              []string{a, b, c, a},
		ExistingChecksums: []string{Checksum(stored)},
	})

	assert.Equal(t, []string{a}, acceptedURLs(res))
	assert.Equal(t, []SkippedImage{
		{URL: b, Reason: SkipDuplicateChecksum},
		{URL: c, Reason: SkipDuplicateChecksum},
	}, res.Skipped)
	assert.Equal(t, 1, srv.hitCount("/a.png"))
}

func TestDownloader_SimilarToExistingRegardlessOfSize(t *testing.T) {
	srv := newImageServer(t)
	big := srv.add("/big.png", "image/png", encodePNG(t, blockImage(5, 800)))
	existing := NewSignature(blockImage(5, 200))

	res := newTestDownloader().Download(context.Background(), Batch{
		URLs:               []string{big},
		ExistingSignatures: []Signature{existing},
	})

	assert.Empty(t, res.Accepted)
	assert.Equal(t, []SkippedImage{{URL: big, Reason: SkipSimilarExisting}}, res.Skipped)
}

func TestDownloader_Validation(t *testing.T) {
	srv := newImageServer(t)
	tiny := srv.add("/tiny.png", "image/png", encodePNG(t, blockImage(6, 50)))
	page := srv.add("/page.png", "text/html", []byte("<html></html>"))
	generic := srv.add("/generic.png", "application/octet-stream", encodePNG(t, blockImage(7, 200)))
	broken := srv.add("/broken.jpg", "image/jpeg", []byte("not really a jpeg"))
	missing := srv.URL + "/missing.png"

	d := newTestDownloader()
	res := d.Download(context.Background(), Batch{URLs: []string{tiny, page, generic, broken, missing, "ftp://example.com/a.png", "https:///nohost.png"}})

	assert.Equal(t, []string{generic}, acceptedURLs(res))
	assert.Equal(t, []SkippedImage{
		{URL: tiny, Reason: SkipTooSmall},
		{URL: page, Reason: SkipUnsupportedType},
	}, res.Skipped)
	require.Len(t, res.Errors, 4)
	assert.Equal(t, broken, res.Errors[0].URL)
	assert.Equal(t, missing, res.Errors[1].URL)
	assert.Contains(t, res.Errors[1].Err.Error(), "404")
}

func TestDownloader_ByteCeiling(t *testing.T) {
	srv := newImageServer(t)
	big := srv.add("/big.png", "image/png", encodePNG(t, blockImage(8, 400)))

	cfg := DefaultConfig()
	cfg.MaxBytes = 64
	res := NewDownloader(cfg).Download(context.Background(), Batch{URLs: []string{big}})

	assert.Empty(t, res.Accepted)
	assert.Equal(t, []SkippedImage{{URL: big, Reason: SkipTooLarge}}, res.Skipped)
}

func TestDownloader_SendsSharedHeaders(t *testing.T) {
	srv := newImageServer(t)
	u := srv.add("/a.png", "image/png", encodePNG(t, blockImage(9, 200)))

	newTestDownloader().Download(context.Background(), Batch{URLs: []string{u}, Referer: "https://patterns.example/hat"})

	h := srv.header("/a.png")
	assert.Equal(t, "https://patterns.example/hat", h.Get("Referer"))
	assert.Contains(t, h.Get("User-Agent"), "Mozilla")
	assert.Contains(t, h.Get("Accept"), "image/webp")
}

func TestDownloader_CancelledContext(t *testing.T) {
	srv := newImageServer(t)
	u := srv.add("/a.png", "image/png", encodePNG(t, blockImage(10, 200)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestDownloader().Download(ctx, Batch{URLs: []string{u}})

	assert.Empty(t, res.Accepted)
	require.Len(t, res.Errors, 1)
	assert.Zero(t, srv.hitCount("/a.png"))
}
