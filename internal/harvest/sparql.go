package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Value is one cell of a SPARQL-JSON binding.
type Value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Binding is one result row, keyed by the variable names the query declares.
type Binding map[string]Value

type sparqlResponse struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// SPARQLClient talks to a public SPARQL endpoint. Transport failures are
// retried once; anything beyond that aborts the harvest so no partial output
// is ever produced.
type SPARQLClient struct {
	Endpoint string
	HTTP     *http.Client
	Log      *zap.Logger

	// RetryDelay between the first failure and the retry.
	RetryDelay time.Duration
}

func NewSPARQLClient(endpoint string, timeout time.Duration, log *zap.Logger) *SPARQLClient {
	return &SPARQLClient{
		Endpoint:   endpoint,
		HTTP:       &http.Client{Timeout: timeout},
		Log:        log,
		RetryDelay: 2 * time.Second,
	}
}

// Select runs a query and returns the parsed bindings.
func (c *SPARQLClient) Select(ctx context.Context, query string) ([]Binding, error) {
	bindings, err := c.selectOnce(ctx, query)
	if err == nil {
		return bindings, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.Log.Warn("sparql request failed, retrying once", zap.Error(err))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.RetryDelay):
	}

	bindings, retryErr := c.selectOnce(ctx, query)
	if retryErr != nil {
		return nil, fmt.Errorf("sparql query failed after retry: %w", retryErr)
	}
	return bindings, nil
}

func (c *SPARQLClient) selectOnce(ctx context.Context, query string) ([]Binding, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build sparql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", "figura/1.0 (knowledge graph ingestion)")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sparql endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode sparql response: %w", err)
	}
	return parsed.Results.Bindings, nil
}
