package packaging

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pressworks/disseminator/internal/export"
	"github.com/pressworks/disseminator/internal/model"
)

// Shape is the byte layout a platform expects.
type Shape int

const (
	// ShapeFlat delivers the metadata artifact and content files as
	// individual objects.
	ShapeFlat Shape = iota
	// ShapeArchive bundles metadata and content into one zip per work.
	ShapeArchive
	// ShapeMultipart keeps the metadata artifact separate as the deposit
	// entry and bundles the content files into a single media zip.
	ShapeMultipart
)

// BuildSpec is the per-platform packaging policy, selected once per attempt
// from the adapter table.
type BuildSpec struct {
	Platform string
	Shape    Shape
	Naming   NamingPolicy
	// Formats are the accepted content formats, in preference order. At
	// least one must be retrievable; the rest are best-effort.
	Formats []model.PublicationFormat
	// IncludeCover adds the work's cover image to the package.
	IncludeCover bool
	// CoverExts restricts acceptable cover types ("jpg", "png"); empty
	// means either.
	CoverExts []string
}

// Package is the ephemeral delivery aggregate for one attempt. Metadata is
// the zero value for ShapeArchive, where the artifact lives inside the
// bundle instead.
type Package struct {
	WorkID        string
	PublisherID   string
	PublisherName string
	Root          string
	Shape         Shape
	Metadata      model.FilePayload
	Files         []model.FilePayload
}

// Builder turns a work snapshot plus its metadata artifact into a Package.
type Builder struct {
	fetcher *Fetcher
	clock   func() time.Time
}

// NewBuilder constructs a Builder. clock may be nil, defaulting to UTC now;
// tests pin it for stable metadata filenames.
func NewBuilder(fetcher *Fetcher, clock func() time.Time) *Builder {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{fetcher: fetcher, clock: clock}
}

// Build fetches the accepted content files and lays the package out in the
// platform's shape. Any retrieval or derivation failure aborts the build;
// the caller treats the whole attempt as failed (no partial packages).
func (b *Builder) Build(ctx context.Context, rec *model.WorkRecord, art *export.Artifact, spec BuildSpec) (*Package, error) {
	root, err := spec.Naming.Root(rec)
	if err != nil {
		return nil, err
	}

	var files []model.FilePayload
	var fetchErrs []error
	for _, format := range spec.Formats {
		pub, ok := rec.PublicationOf(format)
		if !ok {
			continue
		}
		loc, ok := pub.CanonicalURL()
		if !ok {
			continue
		}
		ff, known := formatFiles[format]
		if !known {
			continue
		}
		payload, err := b.fetcher.FetchPayload(ctx, loc, root+ff.Ext, ff.MIME)
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			continue
		}
		files = append(files, *payload)
	}
	if len(files) == 0 {
		if len(fetchErrs) > 0 {
			return nil, fmt.Errorf("no content file retrievable: %w", errors.Join(fetchErrs...))
		}
		return nil, fmt.Errorf("work %s has no content file in an accepted format", rec.ID)
	}

	if spec.IncludeCover {
		cover, err := b.fetcher.FetchCover(ctx, rec.CoverURL, root, spec.CoverExts)
		if err != nil {
			return nil, fmt.Errorf("cover: %w", err)
		}
		files = append(files, *cover)
	}

	metadata := model.FilePayload{
		Name: spec.Naming.MetadataFilename(rec, root, art.Ext, b.clock()),
		MIME: art.MIME,
		Data: art.Content,
	}

	pkg := &Package{
		WorkID:        rec.ID,
		PublisherID:   rec.PublisherID,
		PublisherName: rec.PublisherName,
		Root:          root,
		Shape:         spec.Shape,
	}

	switch spec.Shape {
	case ShapeArchive:
		bundle, err := zipPayload(root+".zip", append([]model.FilePayload{metadata}, files...))
		if err != nil {
			return nil, err
		}
		pkg.Files = []model.FilePayload{*bundle}
	case ShapeMultipart:
		media, err := zipPayload(root+".zip", files)
		if err != nil {
			return nil, err
		}
		pkg.Metadata = metadata
		pkg.Files = []model.FilePayload{*media}
	default:
		pkg.Metadata = metadata
		pkg.Files = files
	}
	return pkg, nil
}

// Payloads returns every payload in the package, metadata first when
// present. Clients use it for uniform upload loops.
func (p *Package) Payloads() []model.FilePayload {
	if p.Metadata.Name == "" {
		return p.Files
	}
	return append([]model.FilePayload{p.Metadata}, p.Files...)
}

func zipPayload(name string, files []model.FilePayload) (*model.FilePayload, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range files {
		w, err := zw.Create(file.Name)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", file.Name, err)
		}
		if _, err := w.Write(file.Data); err != nil {
			return nil, fmt.Errorf("bundle %s: %w", file.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}
	return &model.FilePayload{Name: name, MIME: "application/zip", Data: buf.Bytes()}, nil
}
