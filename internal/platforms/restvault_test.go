package platforms

import (
	"context"
	"encoding/json"
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

func flatPackage() *packaging.Package {
	return &packaging.Package{
		WorkID:      "work-1",
		PublisherID: "press-01",
		Root:        "9781234567897",
		Shape:       packaging.ShapeFlat,
		Metadata:    model.FilePayload{Name: "9781234567897.csv", MIME: "text/csv", Data: []byte("id,title\n")},
		Files: []model.FilePayload{
			{Name: "9781234567897.pdf", MIME: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	}
}

func TestRestVaultDeliver(t *testing.T) {
	var steps []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		steps = append(steps, "search")
		_, _ = w.Write([]byte(`{"records":[]}`))
	})
	mux.HandleFunc("POST /records", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "create")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "9781234567897", body["title"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"rec-55"}`))
	})
	mux.HandleFunc("PUT /records/rec-55/files/", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "file")
	})
	mux.HandleFunc("PUT /records/rec-55/metadata", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "metadata")
	})
	mux.HandleFunc("POST /records/rec-55/publish", func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, "publish")
		_, _ = w.Write([]byte(`{"id":"rec-55","url":"https://vault.example.org/records/rec-55"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewRestVault(srv.URL, "tok-123", 0, time.Millisecond)
	loc, err := client.Deliver(context.Background(), flatPackage())
	require.NoError(t, err)
	assert.Equal(t, "rec-55", loc.ID)
	assert.Equal(t, "https://vault.example.org/records/rec-55", loc.URL)
	// Metadata entry plus every content file go through the files endpoint,
	// then the metadata document, only then publish.
	assert.Equal(t, []string{"search", "create", "file", "file", "metadata", "publish"}, steps)
}

func TestRestVaultRefusesDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[{"id":"rec-1","title":"9781234567897"}]}`))
	}))
	defer srv.Close()

	client := NewRestVault(srv.URL, "tok", 0, time.Millisecond)
	_, err := client.Deliver(context.Background(), flatPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRestVaultCleansUpDraftOnFailure(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"records":[]}`))
	})
	mux.HandleFunc("POST /records", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"rec-9"}`))
	})
	mux.HandleFunc("PUT /records/rec-9/files/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	})
	mux.HandleFunc("DELETE /records/rec-9", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewRestVault(srv.URL, "tok", 0, time.Millisecond)
	_, err := client.Deliver(context.Background(), flatPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.True(t, deleted.Load(), "failed delivery must delete the draft")
}

func TestRestVaultRetriesTransientStatus(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", func(w http.ResponseWriter, r *http.Request) {
		if searches.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"records":[]}`))
	})
	mux.HandleFunc("POST /records", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"rec-2"}`))
	})
	mux.HandleFunc("PUT /", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /records/rec-2/publish", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"rec-2","doi":"10.9999/x.1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewRestVault(srv.URL, "tok", 2, time.Millisecond)
	loc, err := client.Deliver(context.Background(), flatPackage())
	require.NoError(t, err)
	assert.Equal(t, int32(2), searches.Load())
	assert.Equal(t, "https://doi.org/10.9999/x.1", loc.URL)
}

func TestRestVaultPermanentRejectionNotRetried(t *testing.T) {
	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewRestVault(srv.URL, "tok", 3, time.Millisecond)
	_, err := client.Deliver(context.Background(), flatPackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), searches.Load(), "4xx must not be retried")
}
