package search

import (
	"context"
	"fmt"
	"net/http"
)

// Saved-object requests must carry the dashboards XSRF header.
var dashboardsHeaders = map[string]string{"osd-xsrf": "true"}

// PutIndexTemplate creates or replaces the named index template.
func (c *Client) PutIndexTemplate(ctx context.Context, name string, body any) error {
	if err := c.do(ctx, http.MethodPut, "/_index_template/"+name, nil, body, nil); err != nil {
		return fmt.Errorf("put index template %q: %w", name, err)
	}
	return nil
}

// DeleteIndexTemplate removes the named index template; an absent template
// reports success.
func (c *Client) DeleteIndexTemplate(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "/_index_template/"+name, nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete index template %q: %w", name, err)
	}
	return nil
}

// CreateSavedObject creates a dashboards saved object (index-pattern,
// visualization) with a fixed id. A 409 means the object already exists and
// is treated as success so provisioning stays idempotent.
func (c *Client) CreateSavedObject(ctx context.Context, objType, id string, body any) error {
	path := "/_dashboards/api/saved_objects/" + objType + "/" + id
	err := c.do(ctx, http.MethodPost, path, dashboardsHeaders, body, nil)
	if err != nil && !IsConflict(err) {
		return fmt.Errorf("create saved object %s/%s: %w", objType, id, err)
	}
	return nil
}

// DeleteSavedObject removes a dashboards saved object; an absent object
// reports success.
func (c *Client) DeleteSavedObject(ctx context.Context, objType, id string) error {
	path := "/_dashboards/api/saved_objects/" + objType + "/" + id
	err := c.do(ctx, http.MethodDelete, path, dashboardsHeaders, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete saved object %s/%s: %w", objType, id, err)
	}
	return nil
}
