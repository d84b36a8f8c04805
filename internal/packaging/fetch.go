package packaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pressworks/disseminator/internal/checksum"
	"github.com/pressworks/disseminator/internal/model"
)

// Fetcher streams content files from their canonical locations. Nothing is
// cached on disk; every attempt fetches fresh bytes.
type Fetcher struct {
	httpc           *http.Client
	verifyChecksums bool
	verifyPDF       bool
}

// NewFetcher constructs a Fetcher with a bounded per-request timeout.
func NewFetcher(timeout time.Duration, verifyChecksums, verifyPDF bool) *Fetcher {
	return &Fetcher{
		httpc:           &http.Client{Timeout: timeout},
		verifyChecksums: verifyChecksums,
		verifyPDF:       verifyPDF,
	}
}

// FetchPayload downloads one canonical location into a FilePayload named
// name. It cross-checks content length and checksum where the registry
// knows them, and structurally verifies PDFs when configured.
func (f *Fetcher) FetchPayload(ctx context.Context, loc model.CanonicalLocation, name, mime string) (*model.FilePayload, error) {
	data, err := f.download(ctx, loc.URL, mime)
	if err != nil {
		return nil, err
	}
	if loc.ContentLength > 0 && int64(len(data)) != loc.ContentLength {
		return nil, fmt.Errorf("size mismatch for %q: expected %d bytes, got %d", loc.URL, loc.ContentLength, len(data))
	}
	if f.verifyChecksums && loc.Checksum != "" {
		if err := checksum.Verify(loc.Checksum, data); err != nil {
			return nil, fmt.Errorf("verify %q: %w", loc.URL, err)
		}
	}
	if f.verifyPDF && mime == "application/pdf" {
		if err := VerifyPDF(data); err != nil {
			return nil, fmt.Errorf("verify %q: %w", loc.URL, err)
		}
	}
	return &model.FilePayload{Name: name, MIME: mime, Data: data}, nil
}

// FetchCover downloads the work's cover image. allowedExts restricts the
// acceptable image types ("jpg", "png"); empty means either.
func (f *Fetcher) FetchCover(ctx context.Context, coverURL, root string, allowedExts []string) (*model.FilePayload, error) {
	ext := coverExt(coverURL)
	mime, ok := coverMIMEs[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported cover image format at %q", coverURL)
	}
	if len(allowedExts) > 0 && !contains(allowedExts, ext) {
		return nil, fmt.Errorf("cover image has format %q, platform accepts %s", ext, strings.Join(allowedExts, "/"))
	}
	data, err := f.download(ctx, coverURL, mime)
	if err != nil {
		return nil, err
	}
	return &model.FilePayload{Name: root + "." + ext, MIME: mime, Data: data}, nil
}

var coverMIMEs = map[string]string{
	"jpg": "image/jpeg",
	"png": "image/png",
}

func coverExt(coverURL string) string {
	u, err := url.Parse(coverURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	return ext
}

func (f *Fetcher) download(ctx context.Context, rawURL, expectedMIME string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", rawURL, err)
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %q: status %d: %s", rawURL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if expectedMIME != "" {
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, expectedMIME) {
			return nil, fmt.Errorf("data at %q is %q, expected %q", rawURL, ct, expectedMIME)
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rawURL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch %q: empty response body", rawURL)
	}
	return data, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
