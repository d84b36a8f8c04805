package platforms

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/disseminator/internal/model"
	"github.com/pressworks/disseminator/internal/packaging"
)

func multipartPackage() *packaging.Package {
	return &packaging.Package{
		WorkID:   "work-3",
		Root:     "work-3",
		Shape:    packaging.ShapeMultipart,
		Metadata: model.FilePayload{Name: "work-3.xml", MIME: "application/atom+xml", Data: []byte("<entry/>")},
		Files: []model.FilePayload{
			{Name: "work-3.zip", MIME: "application/zip", Data: []byte("PK zip bytes")},
		},
	}
}

func TestSwordDeliver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "depositor", user)
		assert.Equal(t, "hunter2", pass)
		assert.Equal(t, "false", r.Header.Get("In-Progress"))

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/related", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		entry, err := mr.NextPart()
		require.NoError(t, err)
		assert.Contains(t, entry.Header.Get("Content-Type"), "application/atom+xml")
		entryBody, _ := io.ReadAll(entry)
		assert.Equal(t, "<entry/>", string(entryBody))

		media, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "application/zip", media.Header.Get("Content-Type"))
		assert.Equal(t, "work-3.zip", media.FileName())

		w.Header().Set("Location", "https://deposit.example.org/entry/88")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><entry xmlns="http://www.w3.org/2005/Atom"><id>entry-88</id></entry>`))
	}))
	defer srv.Close()

	client := NewSwordDeposit(srv.URL, "depositor", "hunter2", 0, time.Millisecond)
	loc, err := client.Deliver(context.Background(), multipartPackage())
	require.NoError(t, err)
	assert.Equal(t, "https://deposit.example.org/entry/88", loc.URL)
	assert.Equal(t, "entry-88", loc.ID)
}

func TestSwordRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		// The body must be intact on the retried request.
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/related", mediaType)
		mr := multipart.NewReader(r.Body, params["boundary"])
		_, err = mr.NextPart()
		require.NoError(t, err)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewSwordDeposit(srv.URL, "u", "p", 2, time.Millisecond)
	_, err := client.Deliver(context.Background(), multipartPackage())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSwordRejectionNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "collection does not accept packaging", http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	client := NewSwordDeposit(srv.URL, "u", "p", 3, time.Millisecond)
	_, err := client.Deliver(context.Background(), multipartPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 412")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSwordRequiresSingleMediaFile(t *testing.T) {
	pkg := multipartPackage()
	pkg.Files = append(pkg.Files, model.FilePayload{Name: "extra.pdf"})

	client := NewSwordDeposit("http://example.invalid", "u", "p", 0, time.Millisecond)
	_, err := client.Deliver(context.Background(), pkg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single media archive")
}
