package export

import (
	"encoding/xml"
	"fmt"

	"github.com/pressworks/disseminator/internal/model"
)

type atomEntry struct {
	XMLName    xml.Name `xml:"entry"`
	Namespace  string   `xml:"xmlns,attr"`
	DCNS       string   `xml:"xmlns:dcterms,attr"`
	Title      string   `xml:"title"`
	Identifier string   `xml:"dcterms:identifier"`
	Issued     string   `xml:"dcterms:issued,omitempty"`
	Licence    string   `xml:"dcterms:license,omitempty"`
	Publisher  string   `xml:"dcterms:publisher,omitempty"`
}

// DepositEntry is the minimal transform for deposit-protocol platforms that
// only need a pointer record (scholardeposit). The issued date comes from
// the registry snapshot, never from the clock, to keep output deterministic.
func DepositEntry(rec *model.WorkRecord) (*Artifact, error) {
	if rec.Title == "" {
		return nil, fmt.Errorf("%w: work %s has no title", ErrDerivation, rec.ID)
	}
	entry := atomEntry{
		Namespace:  "http://www.w3.org/2005/Atom",
		DCNS:       "http://purl.org/dc/terms/",
		Title:      rec.Title,
		Identifier: rec.ID,
		Issued:     rec.PublicationDate,
		Licence:    rec.LicenceURL,
		Publisher:  rec.PublisherName,
	}
	out, err := xml.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal deposit entry: %w", err)
	}
	return &Artifact{
		Ext:     ".xml",
		MIME:    "application/atom+xml",
		Content: append([]byte(xml.Header), out...),
	}, nil
}
