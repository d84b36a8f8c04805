package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pressworks/disseminator/internal/model"
)

const workQuery = `query($workId: ID!) {
  work(id: $workId) {
    id title subtitle abstract licenceUrl doi publicationDate
    publisherId publisherName coverUrl
    contributors { name role }
    subjects { code type }
    publications { format isbn locations { url contentLength checksum } }
    locations { workId platform location recordedAt }
  }
}`

const createLocationMutation = `mutation($workId: ID!, $platform: String!, $location: String!, $recordedAt: String!) {
  createLocation(workId: $workId, platform: $platform, location: $location, recordedAt: $recordedAt) { workId }
}`

// GraphQLClient implements Client against the registry's GraphQL endpoint.
type GraphQLClient struct {
	endpoint string
	httpc    *http.Client
}

// NewGraphQL constructs a client with a bounded request timeout.
func NewGraphQL(endpoint string, timeout time.Duration) *GraphQLClient {
	return &GraphQLClient{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// GetWork retrieves one work snapshot. A null work in the response maps to
// ErrNotFound; everything else unexpected is an upstream failure.
func (c *GraphQLClient) GetWork(ctx context.Context, workID string) (*model.WorkRecord, error) {
	var payload struct {
		Data struct {
			Work *model.WorkRecord `json:"work"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}
	err := c.do(ctx, graphqlRequest{
		Query:     workQuery,
		Variables: map[string]any{"workId": workID},
	}, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Data.Work == nil {
		if len(payload.Errors) > 0 {
			// Null data with an errors array can mean either an unknown
			// identifier or a registry-side execution failure; only the
			// former maps to ErrNotFound.
			if isUnknownWork(payload.Errors) {
				return nil, fmt.Errorf("%w: %s: %s", ErrNotFound, workID, joinMessages(payload.Errors))
			}
			return nil, fmt.Errorf("registry returned errors: %s", joinMessages(payload.Errors))
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workID)
	}
	if len(payload.Errors) > 0 {
		return nil, fmt.Errorf("registry returned errors: %s", joinMessages(payload.Errors))
	}
	return payload.Data.Work, nil
}

// PutLocation writes a location record back to the registry.
func (c *GraphQLClient) PutLocation(ctx context.Context, rec model.LocationRecord) error {
	var payload struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	err := c.do(ctx, graphqlRequest{
		Query: createLocationMutation,
		Variables: map[string]any{
			"workId":     rec.WorkID,
			"platform":   rec.Platform,
			"location":   rec.Location,
			"recordedAt": rec.RecordedAt.UTC().Format(time.RFC3339),
		},
	}, &payload)
	if err != nil {
		return err
	}
	if len(payload.Errors) > 0 {
		return fmt.Errorf("registry rejected location: %s", joinMessages(payload.Errors))
	}
	return nil
}

func (c *GraphQLClient) do(ctx context.Context, reqBody graphqlRequest, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal registry request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("registry unreachable: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read registry response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed registry response: %w", err)
	}
	return nil
}

// isUnknownWork reports whether the error messages describe a missing
// identifier rather than an execution failure.
func isUnknownWork(errs []graphqlError) bool {
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "not found") ||
			strings.Contains(msg, "does not exist") ||
			strings.Contains(msg, "unknown") ||
			strings.Contains(msg, "invalid id") {
			return true
		}
	}
	return false
}

func joinMessages(errs []graphqlError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
