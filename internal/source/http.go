package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"userstats/internal/etlerr"
)

// HTTP fetches inputs with GET from an http(s):// root, so a run can read
// exports published by another service. Name is resolved relative to root.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP creates an HTTP opener. If client is nil, http.DefaultClient is used.
// A zero timeout means no per-request deadline beyond ctx.
func NewHTTP(client *http.Client, timeout time.Duration) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, timeout: timeout}
}

// IsHTTP reports whether root is an http or https URL.
func IsHTTP(root string) bool {
	r := strings.ToLower(root)
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://")
}

// Open returns the response body. Non-2xx responses are missing-input errors
// carrying the status code and up to 4KB of the body.
func (h *HTTP) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	u, err := resolveURL(root, name)
	if err != nil {
		return nil, etlerr.Config("open "+root, err)
	}

	var cancel context.CancelFunc = func() {}
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, etlerr.Config("new request", err)
	}
	req.Header.Set("User-Agent", "userstats/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		cancel()
		return nil, etlerr.MissingInput("get "+u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		cancel()
		return nil, etlerr.MissingInput("get "+u, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

func resolveURL(root, name string) (string, error) {
	base, err := url.Parse(root)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	ref, err := url.Parse(name)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// cancelOnClose releases the request context when the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
