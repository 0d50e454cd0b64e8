// Package intercept provides a generic after-response hook for outbound HTTP
// traffic. It knows nothing about subtitles: every completed response is
// reported and filtering is left to the consumer.
package intercept

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Exchange is one completed request as seen by a hook.
type Exchange struct {
	URL    string
	Status int
	Body   []byte
}

// Hook is invoked once per completed response.
type Hook func(Exchange)

// Registry holds the hooks of an interception point.
type Registry struct {
	mu    sync.RWMutex
	hooks []Hook
}

// Register adds a hook. Hooks registered later only see later responses.
func (r *Registry) Register(h Hook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Dispatch delivers ex to every registered hook in registration order.
func (r *Registry) Dispatch(ex Exchange) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()

	for _, h := range hooks {
		h(ex)
	}
}

// Transport is an http.RoundTripper middleware reporting every completed
// response to its hooks. The caller still receives an unread body.
type Transport struct {
	Registry

	// Base is the wrapped transport; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// NewTransport wraps base with interception.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	t.Dispatch(Exchange{
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Body:   body,
	})

	return resp, nil
}

// PrefixMatcher selects exchanges whose URL starts with a fixed API path
// prefix. The scheme is ignored on both sides so a protocol-relative prefix
// like "//api.example.com/x" matches "https://api.example.com/x?id=1".
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher builds a matcher for prefix.
func NewPrefixMatcher(prefix string) PrefixMatcher {
	return PrefixMatcher{prefix: stripScheme(prefix)}
}

// Match reports whether url is under the prefix.
func (m PrefixMatcher) Match(url string) bool {
	if m.prefix == "" {
		return false
	}
	return strings.HasPrefix(stripScheme(url), m.prefix)
}

func stripScheme(u string) string {
	for _, scheme := range []string{"https:", "http:"} {
		if len(u) >= len(scheme) && strings.EqualFold(u[:len(scheme)], scheme) {
			return u[len(scheme):]
		}
	}
	return u
}
