// Package proxy forwards API calls to the backend, swapping browser cookies
// for the Authorization header the backend expects.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsonwriter "github.com/dottapps/api-front/internal/json"
	"github.com/dottapps/api-front/internal/log"
	"github.com/dottapps/api-front/internal/session"
)

// forwardedRequestHeaders is the safelist of request headers passed through
// to the backend. Everything else, cookies and authorization included, is
// dropped and rebuilt from the session credential.
var forwardedRequestHeaders = map[string]bool{
	"content-type":    true,
	"accept":          true,
	"accept-language": true,
	"user-agent":      true,
}

// BackendProxy forwards requests under a path prefix to the backend API
type BackendProxy struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
}

// NewBackendProxy creates a proxy for baseURL. prefix is the local route
// prefix stripped before forwarding, e.g. "/api/backend".
func NewBackendProxy(baseURL, prefix string, timeout time.Duration) *BackendProxy {
	return &BackendProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  strings.TrimRight(prefix, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			// Relay redirects to the caller, don't follow them
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ServeHTTP forwards the request to the backend
func (p *BackendProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	targetPath := p.targetPath(r)
	if err := p.forward(ctx, w, r, targetPath); err != nil {
		log.LogErrorWithFields("backend_proxy", "Proxy request failed", map[string]any{
			"error":  err.Error(),
			"method": r.Method,
			"path":   targetPath,
		})
		// Error already written to response
		return
	}

	log.LogDebugWithFields("backend_proxy", "Request proxied", map[string]any{
		"method":      r.Method,
		"path":        targetPath,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (p *BackendProxy) targetPath(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, p.prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func (p *BackendProxy) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, targetPath string) error {
	upstreamURL := p.baseURL + targetPath
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, body)
	if err != nil {
		jsonwriter.WriteInternalServerError(w, "Backend proxy error")
		return fmt.Errorf("failed to create upstream request: %w", err)
	}

	copyForwardedHeaders(upstreamReq.Header, r.Header)

	cred := session.FromCookies(r)
	cred.Apply(upstreamReq)

	upstreamResp, err := p.httpClient.Do(upstreamReq)
	if err != nil {
		if isTimeout(err) {
			jsonwriter.WriteGatewayTimeout(w, "Backend did not respond in time")
			return fmt.Errorf("upstream request timed out: %w", err)
		}
		jsonwriter.WriteInternalServerError(w, "Backend proxy error")
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer upstreamResp.Body.Close()

	copyResponseHeaders(w.Header(), upstreamResp.Header)
	w.WriteHeader(upstreamResp.StatusCode)

	if _, err := io.Copy(w, upstreamResp.Body); err != nil {
		// Headers are out the door; nothing left to do but log
		return fmt.Errorf("failed to copy response body: %w", err)
	}

	return nil
}

func copyForwardedHeaders(dst, src http.Header) {
	for key, values := range src {
		if !forwardedRequestHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// copyResponseHeaders relays the backend's response headers, dropping
// Set-Cookie so the backend cannot write cookies scoped to this host
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.EqualFold(key, "Set-Cookie") {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
