package platforms

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/disseminator/internal/checksum"
)

// fakeS3 is a minimal path-style S3 endpoint: it stores PUT bodies keyed by
// "<bucket>/<key>", answers HEAD with the stored object's MD5 ETag, and
// honors DELETE. Keys in deny are rejected with AccessDenied so tests can
// force a mid-package failure.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	deny    map[string]bool
}

func newFakeS3(t *testing.T) (*fakeS3, string) {
	t.Helper()
	f := &fakeS3{objects: map[string][]byte{}, deny: map[string]bool{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, strings.TrimPrefix(srv.URL, "http://")
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0"?><LocationConstraint>us-east-1</LocationConstraint>`)
	case r.Method == http.MethodPut:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.deny[key] {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
			body = decodeAWSChunks(body)
		}
		f.objects[key] = body
		f.puts = append(f.puts, key)
		w.Header().Set("ETag", `"`+checksum.MD5Hex(body)+`"`)
	case r.Method == http.MethodHead:
		f.mu.Lock()
		defer f.mu.Unlock()
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"`+checksum.MD5Hex(data)+`"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	case r.Method == http.MethodDelete:
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// decodeAWSChunks strips the streaming-signature chunk framing:
// "<hex-size>;chunk-signature=...\r\n<data>\r\n" repeated, terminated by a
// zero-size chunk.
func decodeAWSChunks(body []byte) []byte {
	var out []byte
	rest := body
	for {
		idx := bytes.Index(rest, []byte("\r\n"))
		if idx < 0 {
			break
		}
		header := string(rest[:idx])
		rest = rest[idx+2:]
		if semi := strings.IndexByte(header, ';'); semi >= 0 {
			header = header[:semi]
		}
		size, err := strconv.ParseInt(header, 16, 64)
		if err != nil || size <= 0 || size > int64(len(rest)) {
			break
		}
		out = append(out, rest[:size]...)
		rest = rest[size+2:]
	}
	return out
}

func newTestObjectStore(t *testing.T, endpoint string, force bool) *ObjectStore {
	t.Helper()
	store, err := NewObjectStore(endpoint, "us-east-1", "ingest",
		"https://archive.example.org/details", false, force, "ak", "sk")
	require.NoError(t, err)
	return store
}

func TestObjectStoreDeliver(t *testing.T) {
	f, endpoint := newFakeS3(t)
	store := newTestObjectStore(t, endpoint, false)

	pkg := flatPackage()
	loc, err := store.Deliver(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, "9781234567897", loc.ID)
	assert.Equal(t, "https://archive.example.org/details/9781234567897", loc.URL)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, pkg.Metadata.Data, f.objects["ingest/9781234567897/9781234567897.csv"])
	assert.Equal(t, pkg.Files[0].Data, f.objects["ingest/9781234567897/9781234567897.pdf"])
}

func TestObjectStoreRefusesIdenticalUnlessForced(t *testing.T) {
	f, endpoint := newFakeS3(t)
	store := newTestObjectStore(t, endpoint, false)

	_, err := store.Deliver(context.Background(), flatPackage())
	require.NoError(t, err)

	// Re-delivering the same bytes is refused without force.
	_, err = store.Deliver(context.Background(), flatPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already present with identical content")

	forced := newTestObjectStore(t, endpoint, true)
	_, err = forced.Deliver(context.Background(), flatPackage())
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.objects, 2)
}

func TestObjectStoreRejectsDifferentContent(t *testing.T) {
	f, endpoint := newFakeS3(t)
	store := newTestObjectStore(t, endpoint, false)

	f.mu.Lock()
	f.objects["ingest/9781234567897/9781234567897.csv"] = []byte("previously uploaded bytes")
	f.mu.Unlock()

	_, err := store.Deliver(context.Background(), flatPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different content")
}

func TestObjectStoreRemovesPartialWrite(t *testing.T) {
	f, endpoint := newFakeS3(t)
	store := newTestObjectStore(t, endpoint, false)

	// Metadata uploads first; denying the content file fails the package
	// after one object is already written.
	f.mu.Lock()
	f.deny["ingest/9781234567897/9781234567897.pdf"] = true
	f.mu.Unlock()

	_, err := store.Deliver(context.Background(), flatPackage())
	require.Error(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.objects, "failed delivery must leave no objects behind")
}
