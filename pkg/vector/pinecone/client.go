package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Pinecone control-plane endpoint.
	DefaultBaseURL = "https://api.pinecone.io"

	apiVersion = "2025-01"
)

// Client is the control-plane surface of the remote service: index
// lifecycle plus a handle to an index's data plane. The REST implementation
// is the production path; tests inject their own.
type Client interface {
	// ListIndexes returns all indexes visible to the configured key.
	ListIndexes(ctx context.Context) ([]IndexModel, error)

	// CreateIndex provisions a new index.
	CreateIndex(ctx context.Context, req CreateIndexRequest) (*IndexModel, error)

	// DescribeIndex returns the index's current description.
	DescribeIndex(ctx context.Context, name string) (*IndexModel, error)

	// DeleteIndex removes an index and all its vectors.
	DeleteIndex(ctx context.Context, name string) error

	// Index resolves the data-plane handle for an index.
	Index(ctx context.Context, name string) (Index, error)
}

// Index is the data-plane surface of a single index.
type Index interface {
	// Upsert writes vectors, overwriting any with the same id.
	Upsert(ctx context.Context, vectors []Vector) error

	// Query returns the nearest matches for a vector.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// Fetch retrieves vectors by id. Missing ids are absent from the
	// response rather than errors.
	Fetch(ctx context.Context, ids []string) (*FetchResponse, error)

	// Delete removes vectors by id.
	Delete(ctx context.Context, ids []string) error
}

// ClientConfig configures the REST client.
type ClientConfig struct {
	// APIKey authenticates every request.
	APIKey string

	// BaseURL overrides the control-plane endpoint. Defaults to
	// DefaultBaseURL.
	BaseURL string

	// HTTPClient overrides the HTTP client. Defaults to a client with a
	// 60 second timeout.
	HTTPClient *http.Client
}

type restClient struct {
	apiKey  string
	baseURL string
	hc      *http.Client
}

// NewClient creates a REST Client against the Pinecone API.
func NewClient(c ClientConfig) (Client, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}

	return &restClient{
		apiKey:  c.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
	}, nil
}

func (c *restClient) ListIndexes(ctx context.Context) ([]IndexModel, error) {
	var out listIndexesResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/indexes", nil, &out); err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	return out.Indexes, nil
}

func (c *restClient) CreateIndex(ctx context.Context, req CreateIndexRequest) (*IndexModel, error) {
	var out IndexModel
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/indexes", req, &out); err != nil {
		return nil, fmt.Errorf("creating index %q: %w", req.Name, err)
	}
	return &out, nil
}

func (c *restClient) DescribeIndex(ctx context.Context, name string) (*IndexModel, error) {
	var out IndexModel
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/indexes/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, fmt.Errorf("describing index %q: %w", name, err)
	}
	return &out, nil
}

func (c *restClient) DeleteIndex(ctx context.Context, name string) error {
	if err := c.do(ctx, http.MethodDelete, c.baseURL+"/indexes/"+url.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("deleting index %q: %w", name, err)
	}
	return nil
}

func (c *restClient) Index(ctx context.Context, name string) (Index, error) {
	model, err := c.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	if model.Host == "" {
		return nil, fmt.Errorf("index %q has no data-plane host", name)
	}

	host := model.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}

	return &restIndex{
		host:   strings.TrimRight(host, "/"),
		apiKey: c.apiKey,
		hc:     c.hc,
	}, nil
}

type restIndex struct {
	host   string
	apiKey string
	hc     *http.Client
}

func (ix *restIndex) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	req := upsertRequest{Vectors: vectors}
	if err := doJSON(ctx, ix.hc, ix.apiKey, http.MethodPost, ix.host+"/vectors/upsert", req, nil); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}
	return nil
}

func (ix *restIndex) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var out QueryResponse
	if err := doJSON(ctx, ix.hc, ix.apiKey, http.MethodPost, ix.host+"/query", req, &out); err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return &out, nil
}

func (ix *restIndex) Fetch(ctx context.Context, ids []string) (*FetchResponse, error) {
	params := url.Values{}
	for _, id := range ids {
		params.Add("ids", id)
	}

	var out FetchResponse
	if err := doJSON(ctx, ix.hc, ix.apiKey, http.MethodGet, ix.host+"/vectors/fetch?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("fetching vectors: %w", err)
	}
	return &out, nil
}

func (ix *restIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	req := deleteRequest{IDs: ids}
	if err := doJSON(ctx, ix.hc, ix.apiKey, http.MethodPost, ix.host+"/vectors/delete", req, nil); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

func (c *restClient) do(ctx context.Context, method, url string, body, out any) error {
	return doJSON(ctx, c.hc, c.apiKey, method, url, body, out)
}

// doJSON runs one JSON request against the service. Non-2xx responses are
// returned as errors carrying the backend's status and body verbatim.
func doJSON(ctx context.Context, hc *http.Client, apiKey, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Api-Key", apiKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
