package platforms

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pressworks/disseminator/internal/packaging"
)

// SwordDeposit performs an AtomPub multipart deposit: one POST carrying
// the atom entry document and the zipped content as a related media part.
// The platform responds with a deposit receipt whose Location header (or
// atom id) becomes the recorded location.
type SwordDeposit struct {
	httpc      *http.Client
	collection string
	user       string
	password   string
	attempts   int
	baseDelay  time.Duration
}

// NewSwordDeposit configures a deposit client against a collection URL.
func NewSwordDeposit(collectionURL, user, password string, attempts int, baseDelay time.Duration) *SwordDeposit {
	return &SwordDeposit{
		httpc:      &http.Client{Timeout: 2 * time.Minute},
		collection: collectionURL,
		user:       user,
		password:   password,
		attempts:   attempts,
		baseDelay:  baseDelay,
	}
}

type depositReceipt struct {
	XMLName xml.Name `xml:"entry"`
	ID      string   `xml:"id"`
}

// Deliver posts the multipart deposit. The body is rebuilt on every retry
// because a drained multipart reader cannot be replayed.
func (s *SwordDeposit) Deliver(ctx context.Context, pkg *packaging.Package) (Location, error) {
	var loc Location
	err := withRetry(ctx, s.attempts, s.baseDelay, func(ctx context.Context) error {
		body, contentType, err := s.buildBody(pkg)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.collection, body)
		if err != nil {
			return fmt.Errorf("build deposit request: %w", err)
		}
		req.SetBasicAuth(s.user, s.password)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("In-Progress", "false")

		resp, err := s.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post deposit: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("deposit rejected: status %d: %s", resp.StatusCode, bodySnippet(resp))
			if retryableStatus(resp.StatusCode) {
				return retry.RetryableError(err)
			}
			return err
		}

		loc = receiptLocation(resp)
		return nil
	})
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// buildBody assembles the multipart/related body: the atom entry first,
// then the zip archive as the media part, per the deposit profile.
func (s *SwordDeposit) buildBody(pkg *packaging.Package) (io.Reader, string, error) {
	if len(pkg.Files) != 1 {
		return nil, "", fmt.Errorf("deposit expects a single media archive, got %d files", len(pkg.Files))
	}
	media := pkg.Files[0]

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	entryHeader := textproto.MIMEHeader{}
	entryHeader.Set("Content-Type", "application/atom+xml; type=entry")
	entryHeader.Set("Content-Disposition", `attachment; name="atom"`)
	part, err := w.CreatePart(entryHeader)
	if err != nil {
		return nil, "", fmt.Errorf("build entry part: %w", err)
	}
	if _, err := part.Write(pkg.Metadata.Data); err != nil {
		return nil, "", fmt.Errorf("write entry part: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", media.MIME)
	mediaHeader.Set("Content-Disposition", fmt.Sprintf(`attachment; name="payload"; filename=%q`, media.Name))
	mediaHeader.Set("Packaging", "http://purl.org/net/sword/package/SimpleZip")
	part, err = w.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", fmt.Errorf("build media part: %w", err)
	}
	if _, err := part.Write(media.Data); err != nil {
		return nil, "", fmt.Errorf("write media part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize deposit body: %w", err)
	}

	contentType := fmt.Sprintf(`multipart/related; boundary=%q; type="application/atom+xml"`, w.Boundary())
	return &buf, contentType, nil
}

func receiptLocation(resp *http.Response) Location {
	loc := Location{URL: resp.Header.Get("Location")}
	var receipt depositReceipt
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := xml.Unmarshal(data, &receipt); err == nil {
		loc.ID = receipt.ID
	}
	if loc.URL == "" {
		loc.URL = loc.ID
	}
	return loc
}
