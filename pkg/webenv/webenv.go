// Package webenv abstracts the browser primitives the form controller runs
// against: the current location, navigation, the HTTP referrer and a
// session-scoped key/value store. Injecting these keeps the state machine
// testable without a live page context, and lets the CLI stand in a virtual
// page where a browser would supply the real one.
package webenv

import (
	"net/url"
	"strings"
	"sync"
)

// Session storage keys shared between page loads. Flash values are
// write-once/read-once; the return target is cleared when consumed by the
// post-login redirect.
const (
	KeyAlertSuccess = "alertSuccess"
	KeyAlertDanger  = "alertDanger"
	KeyReturnTarget = "ref"
)

// Storage is a session-scoped string key/value store, the equivalent of the
// browser's sessionStorage. Implementations must tolerate removal of absent
// keys.
type Storage interface {
	Get(key string) string
	Set(key, value string)
	Remove(key string)
}

// Navigator exposes the current page location and full-page navigation.
// Navigate may be called with an absolute URL, an absolute path or a bare
// query string ("?"), matching what a browser accepts for location.href.
type Navigator interface {
	Location() *url.URL
	Navigate(rawURL string)
	Referrer() string
}

// MemoryStorage is an in-memory Storage.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemoryStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// VirtualPage is a Navigator over an in-memory location. Navigations are
// resolved against the current location and recorded, which is what the CLI
// and the tests use in place of a real browser tab.
type VirtualPage struct {
	mu       sync.Mutex
	current  *url.URL
	referrer string
	history  []string
}

// NewVirtualPage opens a virtual page at rawURL. Invalid URLs fall back to
// "/".
func NewVirtualPage(rawURL, referrer string) *VirtualPage {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	return &VirtualPage{current: u, referrer: referrer}
}

func (p *VirtualPage) Location() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *p.current
	return &copied
}

func (p *VirtualPage) Referrer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.referrer
}

// SetReferrer overrides the referrer, as if the page had been reached from
// elsewhere.
func (p *VirtualPage) SetReferrer(referrer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.referrer = referrer
}

// Navigate resolves rawURL against the current location and makes it
// current. The previous location becomes the referrer, as it would on a
// same-origin browser navigation.
func (p *VirtualPage) Navigate(rawURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	resolved := p.current.ResolveReference(target)
	if resolved.RawQuery == "" {
		// A bare "?" target resolves with ForceQuery set and would render a
		// trailing "?" in the location and the next referrer.
		resolved.ForceQuery = false
	}
	p.referrer = p.current.String()
	p.current = resolved
	p.history = append(p.history, resolved.String())
}

// History returns every navigation performed so far, oldest first.
func (p *VirtualPage) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.history))
	copy(out, p.history)
	return out
}

// ParseQuery flattens a raw query string ("a=1&b=2") into a map. Only the
// segment between the first and second "=" counts as the value, later
// duplicates win, and a key without "=" maps to the empty string. These are
// the exact semantics the account pages were built against, so they are kept
// rather than delegating to url.ParseQuery.
func ParseQuery(raw string) map[string]string {
	raw = strings.TrimPrefix(raw, "?")
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, "=")
		key := parts[0]
		value := ""
		if len(parts) > 1 {
			if decoded, err := url.QueryUnescape(parts[1]); err == nil {
				value = decoded
			} else {
				value = parts[1]
			}
		}
		out[key] = value
	}
	return out
}
