package search

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

const detectorsPath = "/_plugins/_anomaly_detection/detectors"

// DetectorSummary identifies one registered detector.
type DetectorSummary struct {
	ID   string
	Name string
}

// CreateDetector registers spec with the anomaly-detection plugin and
// returns the assigned detector id. Registration does not start the
// detector; callers must StartDetector separately.
func (c *Client) CreateDetector(ctx context.Context, spec models.DetectorSpec) (string, error) {
	var out struct {
		ID string `json:"_id"`
	}
	if err := c.do(ctx, http.MethodPost, detectorsPath, nil, spec, &out); err != nil {
		return "", fmt.Errorf("create detector %q: %w", spec.Name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create detector %q: response carried no _id", spec.Name)
	}
	return out.ID, nil
}

// StartDetector activates a registered detector. A created-but-not-started
// detector is a distinct failure mode surfaced to the caller.
func (c *Client) StartDetector(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, detectorsPath+"/"+id+"/_start", nil, nil, nil); err != nil {
		return fmt.Errorf("start detector %s: %w", id, err)
	}
	return nil
}

// StopDetector halts a running detector. Stopping an already-stopped or
// absent detector is treated as success.
func (c *Client) StopDetector(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPost, detectorsPath+"/"+id+"/_stop", nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("stop detector %s: %w", id, err)
	}
	return nil
}

// DeleteDetector removes a detector. Deleting an absent detector reports
// success so teardown is idempotent.
func (c *Client) DeleteDetector(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, detectorsPath+"/"+id, nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete detector %s: %w", id, err)
	}
	return nil
}

// ListDetectors returns all detectors whose name matches the given wildcard
// pattern. A 404 (plugin state not yet initialised) yields an empty list.
func (c *Client) ListDetectors(ctx context.Context, namePattern string) ([]DetectorSummary, error) {
	body := map[string]any{
		"query": map[string]any{
			"wildcard": map[string]any{
				"name": map[string]any{"value": namePattern},
			},
		},
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					Name string `json:"name"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	err := c.do(ctx, http.MethodPost, detectorsPath+"/_search", nil, body, &out)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("search detectors %q: %w", namePattern, err)
	}

	summaries := make([]DetectorSummary, 0, len(out.Hits.Hits))
	for _, hit := range out.Hits.Hits {
		summaries = append(summaries, DetectorSummary{ID: hit.ID, Name: hit.Source.Name})
	}
	return summaries, nil
}
