package export

import (
	"encoding/xml"
	"fmt"

	"github.com/pressworks/disseminator/internal/model"
)

// Wire structs for the bibliographic exchange format. Field order is fixed
// by the struct definitions, keeping serialization deterministic.

type onixMessage struct {
	XMLName xml.Name    `xml:"BibliographicMessage"`
	Release string      `xml:"release,attr"`
	Product onixProduct `xml:"Product"`
}

type onixProduct struct {
	RecordReference string            `xml:"RecordReference"`
	Identifiers     []onixIdentifier  `xml:"ProductIdentifier"`
	Form            string            `xml:"ProductForm"`
	Title           onixTitle         `xml:"Title"`
	Contributors    []onixContributor `xml:"Contributor"`
	Subjects        []onixSubject     `xml:"Subject,omitempty"`
	Abstract        string            `xml:"Abstract,omitempty"`
	Licence         string            `xml:"LicenceURL,omitempty"`
	Publisher       onixPublisher     `xml:"Publisher"`
	PublicationDate string            `xml:"PublicationDate,omitempty"`
	RelatedForms    []onixRelated     `xml:"RelatedProduct,omitempty"`
}

type onixIdentifier struct {
	Type  string `xml:"IDType"`
	Value string `xml:"IDValue"`
}

type onixTitle struct {
	Text     string `xml:"TitleText"`
	Subtitle string `xml:"Subtitle,omitempty"`
}

type onixContributor struct {
	Sequence int    `xml:"SequenceNumber"`
	Role     string `xml:"ContributorRole"`
	Name     string `xml:"PersonName"`
}

type onixSubject struct {
	Scheme string `xml:"SubjectScheme"`
	Code   string `xml:"SubjectCode"`
}

type onixPublisher struct {
	Name string `xml:"PublisherName"`
}

type onixRelated struct {
	Form string `xml:"ProductForm"`
	ISBN string `xml:"ISBN"`
}

// BibliographicXML is the structured exchange transform used by platforms
// that ingest full bibliographic records (bookstream, crawldirect). The
// product identifier is taken from the first publication carrying an ISBN,
// in registry order; remaining ISBNs are listed as related products.
func BibliographicXML(rec *model.WorkRecord) (*Artifact, error) {
	primary, ok := primaryPublication(rec)
	if !ok {
		return nil, fmt.Errorf("%w: work %s has no publication with an ISBN", ErrDerivation, rec.ID)
	}

	product := onixProduct{
		RecordReference: rec.ID,
		Identifiers: []onixIdentifier{
			{Type: "ISBN13", Value: rec.ISBNFor(primary.Format)},
		},
		Form: productForm(primary.Format),
		Title: onixTitle{
			Text:     rec.Title,
			Subtitle: rec.Subtitle,
		},
		Abstract:        rec.Abstract,
		Licence:         rec.LicenceURL,
		Publisher:       onixPublisher{Name: rec.PublisherName},
		PublicationDate: rec.PublicationDate,
	}
	for i, contrib := range rec.Contributors {
		product.Contributors = append(product.Contributors, onixContributor{
			Sequence: i + 1,
			Role:     roleCode(contrib.Role),
			Name:     contrib.Name,
		})
	}
	for _, subj := range rec.Subjects {
		product.Subjects = append(product.Subjects, onixSubject{
			Scheme: subj.Type,
			Code:   subj.Code,
		})
	}
	for _, pub := range rec.Publications {
		if pub.Format == primary.Format || pub.ISBN == "" {
			continue
		}
		product.RelatedForms = append(product.RelatedForms, onixRelated{
			Form: productForm(pub.Format),
			ISBN: rec.ISBNFor(pub.Format),
		})
	}

	out, err := xml.MarshalIndent(onixMessage{Release: "1.0", Product: product}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bibliographic message: %w", err)
	}
	return &Artifact{
		Ext:     ".xml",
		MIME:    "application/xml",
		Content: append([]byte(xml.Header), out...),
	}, nil
}

func primaryPublication(rec *model.WorkRecord) (model.Publication, bool) {
	for _, pub := range rec.Publications {
		if pub.ISBN != "" {
			return pub, true
		}
	}
	return model.Publication{}, false
}
