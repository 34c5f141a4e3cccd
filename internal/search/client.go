// Package search is the pipeline's transport to the OpenSearch domain. It
// wraps the official client with SigV4 request signing, per-call timeouts,
// and bounded retry on transient server errors, and exposes exactly the
// endpoints the pipeline consumes: anomaly-detector lifecycle, aggregation
// search, and index-template / saved-object administration.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/cenkalti/backoff/v4"
	"github.com/opensearch-project/opensearch-go/v2"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
	"go.uber.org/zap"
)

// StatusError is returned for any non-2xx response from the search engine.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opensearch returned status %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the search engine. Deletion
// paths treat 404 as success so teardown stays idempotent.
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Status == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the search engine. Saved
// object creation treats 409 as "already exists".
func IsConflict(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Status == http.StatusConflict
}

// Client is a thin, concurrency-safe wrapper over the OpenSearch transport.
type Client struct {
	os      *opensearch.Client
	timeout time.Duration
	log     *zap.Logger
}

// NewClient builds a SigV4-signing client for the domain at host. Every
// request is bounded by timeout and transient 5xx responses are retried up
// to five times with exponential backoff, matching the deployed system's
// retry policy.
func NewClient(awsCfg aws.Config, host string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	signer, err := requestsigner.NewSignerWithService(awsCfg, "es")
	if err != nil {
		return nil, fmt.Errorf("create request signer: %w", err)
	}

	retryBackoff := backoff.NewExponentialBackOff()
	osc, err := opensearch.NewClient(opensearch.Config{
		Addresses:     []string{"https://" + host},
		Signer:        signer,
		MaxRetries:    5,
		RetryOnStatus: []int{502, 503, 504},
		RetryBackoff: func(attempt int) time.Duration {
			if attempt == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	return &Client{os: osc, timeout: timeout, log: log}, nil
}

// NewClientForTransport builds a Client against an explicit base URL without
// request signing. Used by tests to point the client at an httptest server.
func NewClientForTransport(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	osc, err := opensearch.NewClient(opensearch.Config{Addresses: []string{baseURL}})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return &Client{os: osc, timeout: timeout, log: log}, nil
}

// do executes one request against the domain. body (when non-nil) is JSON
// encoded; out (when non-nil) receives the decoded JSON response. Non-2xx
// responses become *StatusError.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.os.Perform(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response for %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Status: res.StatusCode, Body: string(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response for %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Search executes POST /{index}/_search with the given request body and
// decodes the response into out.
func (c *Client) Search(ctx context.Context, index string, body, out any) error {
	return c.do(ctx, http.MethodPost, "/"+index+"/_search", nil, body, out)
}
