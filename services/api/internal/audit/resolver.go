package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ivisionary/internal/util"
)

// ErrNoClientIP is returned when no address is attached to the context.
var ErrNoClientIP = errors.New("audit: client ip unavailable")

// IPResolver returns the address recorded on an audit entry.
type IPResolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to IPResolver.
type ResolverFunc func(ctx context.Context) (string, error)

func (f ResolverFunc) ResolveIP(ctx context.Context) (string, error) { return f(ctx) }

// ContextResolver reads the address stored by util.WithClientIP.
type ContextResolver struct{}

func (ContextResolver) ResolveIP(ctx context.Context) (string, error) {
	ip, ok := util.ClientIPFromContext(ctx)
	if !ok {
		return "", ErrNoClientIP
	}
	return ip, nil
}

// LookupResolver asks an ipify-style endpoint ({"ip": "..."}) for the public address.
type LookupResolver struct {
	url        string
	httpClient *http.Client
}

// DefaultLookupURL is the public ipify endpoint.
const DefaultLookupURL = "https://api.ipify.org?format=json"

func NewLookupResolver(url string) *LookupResolver {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultLookupURL
	}
	return &LookupResolver{
		url:        url,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func (r *LookupResolver) ResolveIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ip lookup: status %d", resp.StatusCode)
	}
	var out struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("ip lookup: decode: %w", err)
	}
	if strings.TrimSpace(out.IP) == "" {
		return "", errors.New("ip lookup: empty address")
	}
	return strings.TrimSpace(out.IP), nil
}

// ChainResolver tries each resolver in order and returns the first address.
type ChainResolver []IPResolver

func (c ChainResolver) ResolveIP(ctx context.Context) (string, error) {
	errs := make([]error, 0, len(c))
	for _, r := range c {
		ip, err := r.ResolveIP(ctx)
		if err == nil && ip != "" {
			return ip, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoClientIP
	}
	return "", errors.Join(errs...)
}
