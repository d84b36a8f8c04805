package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressworks/disseminator/internal/model"
)

func TestGetWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "work-1", req.Variables["workId"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"work": map[string]any{
					"id":            "work-1",
					"title":         "Fetched Work",
					"publisherId":   "press-01",
					"publisherName": "Example Press",
					"publications": []map[string]any{
						{
							"format": "PDF",
							"isbn":   "978-1-234567-89-7",
							"locations": []map[string]any{
								{"url": "https://cdn.example.org/work-1.pdf", "contentLength": 2048},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	rec, err := client.GetWork(context.Background(), "work-1")
	require.NoError(t, err)
	assert.Equal(t, "Fetched Work", rec.Title)
	assert.Equal(t, "9781234567897", rec.ISBNFor(model.FormatPDF))

	pub, ok := rec.PublicationOf(model.FormatPDF)
	require.True(t, ok)
	loc, ok := pub.CanonicalURL()
	require.True(t, ok)
	assert.Equal(t, int64(2048), loc.ContentLength)
}

func TestGetWorkNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"work":null}}`))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	_, err := client.GetWork(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetWorkNotFoundViaErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"work":null},"errors":[{"message":"Work not found: missing"}]}`))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	_, err := client.GetWork(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetWorkExecutionErrorIsNotNotFound(t *testing.T) {
	// A registry-side failure with null data must not be mistaken for an
	// unknown identifier; callers treat not-found as fatal per item but an
	// execution error as a batch-stopping outage.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"work":null},"errors":[{"message":"database connection refused"}]}`))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	_, err := client.GetWork(context.Background(), "work-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "database connection refused")
}

func TestGetWorkUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	_, err := client.GetWork(context.Background(), "work-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGetWorkMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	_, err := client.GetWork(context.Background(), "work-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed registry response")
}

func TestPutLocation(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Variables
		_, _ = w.Write([]byte(`{"data":{"createLocation":{"workId":"work-1"}}}`))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	err := client.PutLocation(context.Background(), model.LocationRecord{
		WorkID:     "work-1",
		Platform:   "openarchive",
		Location:   "https://openarchive.example.org/details/9781234567897",
		RecordedAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "openarchive", got["platform"])
	assert.Equal(t, "2024-03-15T12:00:00Z", got["recordedAt"])
}

func TestPutLocationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"duplicate location"}]}`))
	}))
	defer srv.Close()

	client := NewGraphQL(srv.URL, 5*time.Second)
	err := client.PutLocation(context.Background(), model.LocationRecord{WorkID: "work-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate location")
}
