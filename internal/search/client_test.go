package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClientForTransport(srv.URL, 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClientForTransport: %v", err)
	}
	return client
}

func TestCreateDetector(t *testing.T) {
	t.Run("returns the assigned id", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotSpec map[string]any

		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod, gotPath = r.Method, r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotSpec)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"_id": "det-42", "_version": 1}`))
		}))

		spec := models.DetectorSpec{Name: "multi-account-ec2-usage-anomaly"}
		id, err := client.CreateDetector(context.Background(), spec)
		if err != nil {
			t.Fatalf("CreateDetector: %v", err)
		}
		if id != "det-42" {
			t.Errorf("id = %q; want det-42", id)
		}
		if gotMethod != http.MethodPost || gotPath != "/_plugins/_anomaly_detection/detectors" {
			t.Errorf("request = %s %s", gotMethod, gotPath)
		}
		if gotSpec["name"] != "multi-account-ec2-usage-anomaly" {
			t.Errorf("posted name = %v", gotSpec["name"])
		}
	})

	t.Run("missing id in response is an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		if _, err := client.CreateDetector(context.Background(), models.DetectorSpec{Name: "x"}); err == nil {
			t.Fatal("expected an error when the response has no _id")
		}
	})
}

func TestDeleteDetector_AbsentIsSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "detector not found"}`, http.StatusNotFound)
	}))

	if err := client.DeleteDetector(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteDetector on absent id: %v", err)
	}
	if err := client.StopDetector(context.Background(), "gone"); err != nil {
		t.Fatalf("StopDetector on absent id: %v", err)
	}
}

func TestDeleteDetector_OtherErrorsSurface(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
	}))

	if err := client.DeleteDetector(context.Background(), "x"); err == nil {
		t.Fatal("expected a 403 to surface")
	}
}

func TestListDetectors(t *testing.T) {
	t.Run("parses hits", func(t *testing.T) {
		var gotBody map[string]any
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{
				"hits": {"hits": [
					{"_id": "a1", "_source": {"name": "multi-account-ec2-usage-anomaly"}},
					{"_id": "b2", "_source": {"name": "multi-account-ebs-usage-anomaly"}}
				]}
			}`))
		}))

		got, err := client.ListDetectors(context.Background(), "multi-account-*")
		if err != nil {
			t.Fatalf("ListDetectors: %v", err)
		}
		if len(got) != 2 || got[0].ID != "a1" || got[1].Name != "multi-account-ebs-usage-anomaly" {
			t.Errorf("summaries = %+v", got)
		}
	})

	t.Run("uninitialised plugin yields empty list", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "no detector index"}`, http.StatusNotFound)
		}))
		got, err := client.ListDetectors(context.Background(), "multi-account-*")
		if err != nil {
			t.Fatalf("ListDetectors: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("summaries = %+v; want empty", got)
		}
	})
}

func TestCreateSavedObject(t *testing.T) {
	t.Run("sends the XSRF header", func(t *testing.T) {
		var gotHeader string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotHeader = r.Header.Get("osd-xsrf")
			w.Write([]byte(`{}`))
		}))

		if err := client.CreateSavedObject(context.Background(), "index-pattern", "p1", map[string]any{}); err != nil {
			t.Fatalf("CreateSavedObject: %v", err)
		}
		if gotHeader != "true" {
			t.Errorf("osd-xsrf header = %q; want true", gotHeader)
		}
	})

	t.Run("conflict means already provisioned", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "version conflict"}`, http.StatusConflict)
		}))
		if err := client.CreateSavedObject(context.Background(), "visualization", "v1", map[string]any{}); err != nil {
			t.Fatalf("CreateSavedObject on conflict: %v", err)
		}
	})
}

func TestStatusErrorHelpers(t *testing.T) {
	if !IsNotFound(&StatusError{Status: 404}) {
		t.Error("IsNotFound(404) = false")
	}
	if IsNotFound(&StatusError{Status: 500}) {
		t.Error("IsNotFound(500) = true")
	}
	if !IsConflict(&StatusError{Status: 409}) {
		t.Error("IsConflict(409) = false")
	}
	if IsConflict(nil) {
		t.Error("IsConflict(nil) = true")
	}
}
