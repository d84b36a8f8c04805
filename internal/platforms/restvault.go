package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pressworks/disseminator/internal/packaging"
)

// RestVault delivers through a token-authenticated REST repository API.
// A delivery is a multi-step conversation: search for an existing record,
// create a draft, upload each file, attach metadata, then publish. Any
// failure after the draft exists deletes the draft so nothing half-made
// is left behind.
type RestVault struct {
	httpc     *http.Client
	baseURL   string
	token     string
	attempts  int
	baseDelay time.Duration
}

// NewRestVault configures a client against the repository's API root.
func NewRestVault(baseURL, token string, attempts int, baseDelay time.Duration) *RestVault {
	return &RestVault{
		httpc:     &http.Client{Timeout: 2 * time.Minute},
		baseURL:   baseURL,
		token:     token,
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

type vaultRecord struct {
	ID        string `json:"id"`
	URL       string `json:"url,omitempty"`
	DOI       string `json:"doi,omitempty"`
	Title     string `json:"title,omitempty"`
	Published bool   `json:"published,omitempty"`
}

type vaultSearchResult struct {
	Records []vaultRecord `json:"records"`
}

// Deliver runs the full conversation. Each step retries independently, so
// a transient failure during file upload does not repeat the draft create.
func (v *RestVault) Deliver(ctx context.Context, pkg *packaging.Package) (Location, error) {
	if existing, err := v.findExisting(ctx, pkg.Root); err != nil {
		return Location{}, err
	} else if existing != nil {
		return Location{}, fmt.Errorf("record %q already exists as %s", pkg.Root, existing.ID)
	}

	record, err := v.createDraft(ctx, pkg)
	if err != nil {
		return Location{}, err
	}

	published, err := v.populateAndPublish(ctx, record.ID, pkg)
	if err != nil {
		v.deleteDraft(record.ID)
		return Location{}, err
	}

	loc := Location{ID: published.ID, URL: published.URL}
	if loc.URL == "" && published.DOI != "" {
		loc.URL = "https://doi.org/" + published.DOI
	}
	return loc, nil
}

func (v *RestVault) findExisting(ctx context.Context, root string) (*vaultRecord, error) {
	endpoint := fmt.Sprintf("%s/records?q=%s", v.baseURL, url.QueryEscape(root))
	var result vaultSearchResult
	if err := v.doJSON(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("search existing records: %w", err)
	}
	for i := range result.Records {
		if result.Records[i].Title == root || result.Records[i].ID == root {
			return &result.Records[i], nil
		}
	}
	return nil, nil
}

func (v *RestVault) createDraft(ctx context.Context, pkg *packaging.Package) (*vaultRecord, error) {
	payload := map[string]string{"title": pkg.Root}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	var record vaultRecord
	if err := v.doJSON(ctx, http.MethodPost, v.baseURL+"/records", body, &record); err != nil {
		return nil, fmt.Errorf("create draft record: %w", err)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("create draft record: response carries no id")
	}
	return &record, nil
}

func (v *RestVault) populateAndPublish(ctx context.Context, id string, pkg *packaging.Package) (*vaultRecord, error) {
	for _, payload := range pkg.Payloads() {
		endpoint := fmt.Sprintf("%s/records/%s/files/%s", v.baseURL, id, url.PathEscape(payload.Name))
		if err := v.doRaw(ctx, http.MethodPut, endpoint, payload.Data, payload.MIME); err != nil {
			return nil, fmt.Errorf("upload %s: %w", payload.Name, err)
		}
	}

	if err := v.doRaw(ctx, http.MethodPut, fmt.Sprintf("%s/records/%s/metadata", v.baseURL, id), pkg.Metadata.Data, pkg.Metadata.MIME); err != nil {
		return nil, fmt.Errorf("attach metadata: %w", err)
	}

	var published vaultRecord
	if err := v.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/records/%s/publish", v.baseURL, id), nil, &published); err != nil {
		return nil, fmt.Errorf("publish record %s: %w", id, err)
	}
	if published.ID == "" {
		published.ID = id
	}
	return &published, nil
}

// deleteDraft is best effort and runs on its own deadline: the delivery
// context may already be cancelled when cleanup is needed.
func (v *RestVault) deleteDraft(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/records/%s", v.baseURL, id), nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+v.token)
	resp, err := v.httpc.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// doJSON sends a JSON request and decodes a JSON response, with retries.
func (v *RestVault) doJSON(ctx context.Context, method, endpoint string, body []byte, out any) error {
	return withRetry(ctx, v.attempts, v.baseDelay, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+v.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := v.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("status %d: %s", resp.StatusCode, bodySnippet(resp))
			if retryableStatus(resp.StatusCode) {
				return retry.RetryableError(err)
			}
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// doRaw sends an opaque payload (file content) without decoding a body.
func (v *RestVault) doRaw(ctx context.Context, method, endpoint string, data []byte, mime string) error {
	return withRetry(ctx, v.attempts, v.baseDelay, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+v.token)
		req.Header.Set("Content-Type", mime)

		resp, err := v.httpc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("status %d: %s", resp.StatusCode, bodySnippet(resp))
			if retryableStatus(resp.StatusCode) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
