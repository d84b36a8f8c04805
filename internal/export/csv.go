package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/pressworks/disseminator/internal/model"
)

var descriptiveHeader = []string{
	"id", "title", "subtitle", "publisher", "date", "licence", "doi",
	"abstract", "contributors", "isbns", "subjects",
}

// DescriptiveCSV is the flat subset transform used by platforms that only
// display metadata (openarchive, researchvault). Repeatable fields are
// joined with semicolons in registry order.
func DescriptiveCSV(rec *model.WorkRecord) (*Artifact, error) {
	contributors := make([]string, 0, len(rec.Contributors))
	for _, c := range rec.Contributors {
		contributors = append(contributors, c.Name)
	}
	isbns := make([]string, 0, len(rec.Publications))
	for _, pub := range rec.Publications {
		if pub.ISBN != "" {
			isbns = append(isbns, rec.ISBNFor(pub.Format))
		}
	}
	subjects := make([]string, 0, len(rec.Subjects))
	for _, s := range rec.Subjects {
		subjects = append(subjects, s.Code)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		descriptiveHeader,
		{
			rec.ID,
			rec.Title,
			rec.Subtitle,
			rec.PublisherName,
			rec.PublicationDate,
			rec.LicenceURL,
			rec.DOI,
			rec.Abstract,
			strings.Join(contributors, ";"),
			strings.Join(isbns, ";"),
			strings.Join(subjects, ";"),
		},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write descriptive csv: %w", err)
	}
	return &Artifact{
		Ext:     ".csv",
		MIME:    "text/csv",
		Content: buf.Bytes(),
	}, nil
}
