package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// DefaultMaxDurationSeconds caps direct uploads at one hour.
const DefaultMaxDurationSeconds = 3600

// ErrNotConfigured is returned when no account or token is set.
var ErrNotConfigured = errors.New("video hosting not configured")

// Uploader issues direct-upload URLs and reports on hosted videos.
type Uploader interface {
	DirectUpload(ctx context.Context, req UploadRequest) (Upload, error)
	VideoDetails(ctx context.Context, uid string) (VideoDetails, error)
}

type UploadRequest struct {
	MaxDurationSeconds int
	AllowedOrigins     []string
}

// Upload is a one-time URL the browser posts the file to.
type Upload struct {
	UID       string `json:"uid"`
	UploadURL string `json:"uploadURL"`
}

type VideoDetails struct {
	UID           string  `json:"id"`
	PlaybackURL   string  `json:"playbackUrl"`
	Thumbnail     string  `json:"thumbnail"`
	Duration      float64 `json:"duration"`
	Status        string  `json:"status"`
	ReadyToStream bool    `json:"readyToStream"`
}

// CloudflareClient calls the Cloudflare Stream API.
type CloudflareClient struct {
	accountID  string
	apiToken   string
	baseURL    string
	httpClient *http.Client
}

// NewCloudflareClient constructs a client for one account.
func NewCloudflareClient(accountID, apiToken string) (*CloudflareClient, error) {
	accountID = strings.TrimSpace(accountID)
	apiToken = strings.TrimSpace(apiToken)
	if accountID == "" || apiToken == "" {
		return nil, ErrNotConfigured
	}
	return &CloudflareClient{
		accountID:  accountID,
		apiToken:   apiToken,
		baseURL:    defaultCloudflareBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// WithBaseURL points the client at another API root.
func (c *CloudflareClient) WithBaseURL(baseURL string) *CloudflareClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// DirectUpload requests a one-time upload URL.
func (c *CloudflareClient) DirectUpload(ctx context.Context, req UploadRequest) (Upload, error) {
	if req.MaxDurationSeconds <= 0 {
		req.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	payload := directUploadRequest{
		MaxDurationSeconds: req.MaxDurationSeconds,
		AllowedOrigins:     req.AllowedOrigins,
	}
	var resp envelope[directUploadResult]
	if err := c.doJSON(ctx, http.MethodPost, c.accountURL("stream", "direct_upload"), payload, &resp); err != nil {
		return Upload{}, fmt.Errorf("direct upload: %w", err)
	}
	if resp.Result.UploadURL == "" {
		return Upload{}, errors.New("direct upload: empty upload url")
	}
	return Upload{UID: resp.Result.UID, UploadURL: resp.Result.UploadURL}, nil
}

// VideoDetails fetches processing state and playback URLs.
func (c *CloudflareClient) VideoDetails(ctx context.Context, uid string) (VideoDetails, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return VideoDetails{}, errors.New("video uid required")
	}
	var resp envelope[videoResult]
	if err := c.doJSON(ctx, http.MethodGet, c.accountURL("stream", uid), nil, &resp); err != nil {
		return VideoDetails{}, fmt.Errorf("video details: %w", err)
	}
	r := resp.Result
	return VideoDetails{
		UID:           r.UID,
		PlaybackURL:   r.Playback.HLS,
		Thumbnail:     r.Thumbnail,
		Duration:      r.Duration,
		Status:        r.Status.State,
		ReadyToStream: r.ReadyToStream,
	}, nil
}

func (c *CloudflareClient) accountURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return fmt.Sprintf("%s/accounts/%s/%s", c.baseURL, url.PathEscape(c.accountID), strings.Join(escaped, "/"))
}

func (c *CloudflareClient) doJSON(ctx context.Context, method, url string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp envelope[json.RawMessage]
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		if len(errResp.Errors) > 0 && errResp.Errors[0].Message != "" {
			return fmt.Errorf("cloudflare api error: %s", errResp.Errors[0].Message)
		}
		return fmt.Errorf("cloudflare api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope[T any] struct {
	Success bool       `json:"success"`
	Errors  []apiError `json:"errors"`
	Result  T          `json:"result"`
}

type directUploadRequest struct {
	MaxDurationSeconds int      `json:"maxDurationSeconds"`
	AllowedOrigins     []string `json:"allowedOrigins,omitempty"`
}

type directUploadResult struct {
	UID       string `json:"uid"`
	UploadURL string `json:"uploadURL"`
}

type videoResult struct {
	UID           string  `json:"uid"`
	Thumbnail     string  `json:"thumbnail"`
	Duration      float64 `json:"duration"`
	ReadyToStream bool    `json:"readyToStream"`
	Playback      struct {
		HLS  string `json:"hls"`
		Dash string `json:"dash"`
	} `json:"playback"`
	Status struct {
		State string `json:"state"`
	} `json:"status"`
}
