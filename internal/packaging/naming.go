// Package packaging assembles the delivery package for one attempt: it
// derives the platform's filename root, fetches the content files from
// their canonical locations, and lays everything out in the shape the
// platform expects (flat set, single archive, or multipart deposit).
package packaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/pressworks/disseminator/internal/model"
)

// Per-format file extension and MIME type, as served by registry locations.
var formatFiles = map[model.PublicationFormat]struct {
	Ext  string
	MIME string
}{
	model.FormatPDF:  {".pdf", "application/pdf"},
	model.FormatEPUB: {".epub", "application/epub+zip"},
	model.FormatHTML: {".xhtml", "application/xhtml+xml"},
	// Registry XML publications point at zip bundles, not bare XML.
	model.FormatXML: {".zip", "application/zip"},
}

// MetadataPattern selects how the metadata artifact is named.
type MetadataPattern int

const (
	// MetadataRoot names the artifact "<root><ext>".
	MetadataRoot MetadataPattern = iota
	// MetadataPublisherDated names it "<Publisher>_<root>_<yyyymmdd><ext>";
	// crawl-ingest platforms key manifest freshness off the date component.
	MetadataPublisherDated
)

// NamingPolicy is the per-platform filename policy. Which ISBN supplies the
// root differs by platform and has shifted over time, so the precedence is
// an explicit ordered list here rather than an inline conditional.
type NamingPolicy struct {
	// ISBNPreference is tried in order; the first format with an ISBN wins.
	ISBNPreference []model.PublicationFormat
	// UseWorkID falls back to the work identifier when no preferred ISBN
	// exists (deposit platforms that never see the files as named objects).
	UseWorkID bool
	// Metadata selects the artifact filename pattern.
	Metadata MetadataPattern
}

// Root derives the filename root for a work, hyphen-stripped.
func (p NamingPolicy) Root(rec *model.WorkRecord) (string, error) {
	for _, format := range p.ISBNPreference {
		if isbn := rec.ISBNFor(format); isbn != "" {
			return isbn, nil
		}
	}
	if p.UseWorkID {
		return rec.ID, nil
	}
	return "", fmt.Errorf("no naming root: work %s has no ISBN for %v", rec.ID, p.ISBNPreference)
}

// MetadataFilename applies the policy's pattern. The date is injected by
// the caller so metadata transforms themselves stay deterministic.
func (p NamingPolicy) MetadataFilename(rec *model.WorkRecord, root, ext string, now time.Time) string {
	switch p.Metadata {
	case MetadataPublisherDated:
		publisher := strings.ReplaceAll(rec.PublisherName, " ", "")
		return fmt.Sprintf("%s_%s_%s%s", publisher, root, now.UTC().Format("20060102"), ext)
	default:
		return root + ext
	}
}
