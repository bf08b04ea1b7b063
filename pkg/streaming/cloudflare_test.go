package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *CloudflareClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewCloudflareClient("acc-1", "token-1")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c.WithBaseURL(srv.URL)
}

func TestDirectUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts/acc-1/stream/direct_upload" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Fatalf("authorization = %q", got)
		}
		var body directUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.MaxDurationSeconds != 3600 || len(body.AllowedOrigins) != 1 {
			t.Fatalf("unexpected body: %+v", body)
		}
		_, _ = w.Write([]byte(`{"success":true,"result":{"uid":"vid-9","uploadURL":"https://upload.example/vid-9"}}`))
	})

	up, err := c.DirectUpload(context.Background(), UploadRequest{AllowedOrigins: []string{"http://localhost:5173"}})
	if err != nil {
		t.Fatalf("direct upload: %v", err)
	}
	if up.UID != "vid-9" || up.UploadURL != "https://upload.example/vid-9" {
		t.Fatalf("unexpected upload: %+v", up)
	}
}

func TestVideoDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acc-1/stream/vid-9" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"result":{"uid":"vid-9","thumbnail":"https://t/1.jpg","duration":30.5,"readyToStream":true,"playback":{"hls":"https://p/vid-9.m3u8"},"status":{"state":"ready"}}}`))
	})

	d, err := c.VideoDetails(context.Background(), "vid-9")
	if err != nil {
		t.Fatalf("video details: %v", err)
	}
	if d.PlaybackURL != "https://p/vid-9.m3u8" || d.Status != "ready" || !d.ReadyToStream || d.Duration != 30.5 {
		t.Fatalf("unexpected details: %+v", d)
	}
}

func TestCloudflareErrorsSurfaceMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":10000,"message":"Authentication error"}]}`))
	})
	_, err := c.VideoDetails(context.Background(), "vid-9")
	if err == nil || err.Error() != "video details: cloudflare api error: Authentication error" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewCloudflareClientRequiresCredentials(t *testing.T) {
	if _, err := NewCloudflareClient("", "t"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
