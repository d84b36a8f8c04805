// Package model contains the registry-facing data structures shared across
// the dissemination pipeline. A WorkRecord is an immutable snapshot for the
// duration of one attempt; only LocationRecord outlives an invocation.
package model

import (
	"strings"
	"time"
)

// PublicationFormat tags one publication of a work (digital or physical).
type PublicationFormat string

const (
	FormatPDF       PublicationFormat = "PDF"
	FormatEPUB      PublicationFormat = "EPUB"
	FormatHTML      PublicationFormat = "HTML"
	FormatXML       PublicationFormat = "XML"
	FormatPaperback PublicationFormat = "PAPERBACK"
	FormatHardback  PublicationFormat = "HARDBACK"
)

// CanonicalLocation is the registry-recorded authoritative URL for a
// publication's content file. ContentLength and Checksum are optional;
// zero/empty means the registry does not know them.
type CanonicalLocation struct {
	URL           string `json:"url"`
	ContentLength int64  `json:"contentLength,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
}

// Publication is one format of a work, with its ISBN and ordered locations.
type Publication struct {
	Format    PublicationFormat   `json:"format"`
	ISBN      string              `json:"isbn,omitempty"`
	Locations []CanonicalLocation `json:"locations,omitempty"`
}

// CanonicalURL returns the first location with a non-empty URL, or the zero
// value when the publication has no usable location.
func (p Publication) CanonicalURL() (CanonicalLocation, bool) {
	for _, loc := range p.Locations {
		if loc.URL != "" {
			return loc, true
		}
	}
	return CanonicalLocation{}, false
}

// Contributor is an ordered entry in a work's contributor list.
type Contributor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Subject carries a classification code and the scheme it belongs to
// (e.g. BIC, THEMA, KEYWORD).
type Subject struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

// LocationRecord confirms that a work was accepted by a platform. It is
// written back to the registry and drives the already-disseminated check on
// later runs.
type LocationRecord struct {
	WorkID     string    `json:"workId"`
	Platform   string    `json:"platform"`
	Location   string    `json:"location"`
	RecordedAt time.Time `json:"recordedAt"`
}

// WorkRecord is the normalized metadata snapshot for one work. Optional
// fields are represented by their zero value so validators can distinguish
// "missing" from "present"; nothing is defaulted silently.
type WorkRecord struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Subtitle        string           `json:"subtitle,omitempty"`
	Abstract        string           `json:"abstract,omitempty"`
	LicenceURL      string           `json:"licenceUrl,omitempty"`
	DOI             string           `json:"doi,omitempty"`
	PublicationDate string           `json:"publicationDate,omitempty"`
	PublisherID     string           `json:"publisherId"`
	PublisherName   string           `json:"publisherName"`
	CoverURL        string           `json:"coverUrl,omitempty"`
	Contributors    []Contributor    `json:"contributors,omitempty"`
	Subjects        []Subject        `json:"subjects,omitempty"`
	Publications    []Publication    `json:"publications,omitempty"`
	Locations       []LocationRecord `json:"locations,omitempty"`
}

// PublicationOf returns the work's publication of the given format. The
// registry guarantees at most one publication per format.
func (w *WorkRecord) PublicationOf(format PublicationFormat) (Publication, bool) {
	for _, pub := range w.Publications {
		if pub.Format == format {
			return pub, true
		}
	}
	return Publication{}, false
}

// ISBNFor returns the hyphen-stripped ISBN of the given format, or "" when
// the format is absent or carries no ISBN.
func (w *WorkRecord) ISBNFor(format PublicationFormat) string {
	pub, ok := w.PublicationOf(format)
	if !ok {
		return ""
	}
	return strings.ReplaceAll(pub.ISBN, "-", "")
}

// HasLocationFor reports whether a location record for the given platform is
// already present on the work.
func (w *WorkRecord) HasLocationFor(platform string) bool {
	for _, loc := range w.Locations {
		if loc.Platform == platform {
			return true
		}
	}
	return false
}

// FilePayload is one file selected for delivery: bytes plus the name and
// MIME type the platform should see. Payloads live only for the duration of
// a single attempt.
type FilePayload struct {
	Name string
	MIME string
	Data []byte
}
