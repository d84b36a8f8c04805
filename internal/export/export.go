// Package export maps a work snapshot into the serialized metadata artifact
// a platform family expects. Every transform is a pure function of the
// WorkRecord: identical input yields a byte-identical artifact, which bulk
// dry-run comparison and the tests rely on.
package export

import (
	"errors"

	"github.com/pressworks/disseminator/internal/model"
)

// ErrDerivation indicates a required derived field could not be computed
// from the work snapshot (a metadata problem upstream, never retried).
var ErrDerivation = errors.New("cannot derive metadata field")

// Artifact is a serialized metadata document ready for packaging. The
// filename is decided later by the platform's naming policy; the artifact
// carries only extension and MIME type.
type Artifact struct {
	Ext     string
	MIME    string
	Content []byte
}

// TransformFunc converts a work snapshot into one platform family's
// metadata artifact.
type TransformFunc func(rec *model.WorkRecord) (*Artifact, error)
