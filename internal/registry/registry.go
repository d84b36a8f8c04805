// Package registry talks to the bibliographic registry: reading work
// snapshots and writing back location records once a platform has accepted
// a delivery.
package registry

import (
	"context"
	"errors"

	"github.com/pressworks/disseminator/internal/model"
)

// ErrNotFound is returned when the registry has no work for the given ID.
var ErrNotFound = errors.New("work not found")

// Client is the read/write surface of the registry collaborator. Any other
// failure mode than ErrNotFound means the registry is unreachable or
// returned a malformed response.
type Client interface {
	// GetWork retrieves a normalized, read-only snapshot of one work.
	GetWork(ctx context.Context, workID string) (*model.WorkRecord, error)
	// PutLocation records where a platform has made the work available.
	PutLocation(ctx context.Context, rec model.LocationRecord) error
}
