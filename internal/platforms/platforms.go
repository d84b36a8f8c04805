// Package platforms holds the protocol-specific transport clients, one per
// platform family, behind a single delivery contract. Clients authenticate
// lazily: sessions are opened inside Deliver and torn down on every exit
// path. A failure after some but not all files were written is always
// surfaced as failure, with any partial writes removed where the protocol
// allows it.
package platforms

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pressworks/disseminator/internal/packaging"
)

// Location is the platform-assigned durable reference for a delivered work.
// Some platforms assign only an identifier, some only a URL.
type Location struct {
	ID  string
	URL string
}

// Value returns the preferred single-string form of the location.
func (l Location) Value() string {
	if l.URL != "" {
		return l.URL
	}
	return l.ID
}

// Client transmits one delivery package and reports where it ended up.
type Client interface {
	Deliver(ctx context.Context, pkg *packaging.Package) (Location, error)
}

// bodySnippet reads a bounded portion of an HTTP response body so error
// messages carry the platform's raw diagnostic text without flooding logs.
func bodySnippet(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return strings.TrimSpace(string(data))
}

// retryableStatus reports whether an HTTP status is a transport-layer
// transient (retried with backoff) rather than a permanent rejection.
func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
