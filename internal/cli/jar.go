package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/formauth/internal/cli/store"
	"github.com/aussiebroadwan/formauth/pkg/cryptox"
)

// storedCookie is the serializable subset of a cookie the backend sets. The
// refresh credential is path-scoped and long-lived; attribute handling
// beyond name, path and expiry is not needed for a single-origin client.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitzero"`
	MaxAge  int       `json:"max_age,omitempty"`
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// Jar is an http.CookieJar that survives process restarts: its contents are
// sealed with the session key and written to the SQLite store. It is the
// CLI's stand-in for the browser's cookie storage.
type Jar struct {
	mu      sync.Mutex
	cookies map[string][]storedCookie // keyed by host

	sealer *cryptox.Sealer
	store  *store.Store
}

// NewJar loads the sealed jar from the store. A missing jar starts empty; a
// jar sealed under a different secret is an error, not silently discarded.
func NewJar(ctx context.Context, sealer *cryptox.Sealer, st *store.Store) (*Jar, error) {
	jar := &Jar{
		cookies: make(map[string][]storedCookie),
		sealer:  sealer,
		store:   st,
	}

	sealed, err := st.LoadJar(ctx)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return jar, nil
	}

	plain, err := sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("unseal cookie jar: %w", err)
	}
	if err := json.Unmarshal(plain, &jar.cookies); err != nil {
		return nil, fmt.Errorf("decode cookie jar: %w", err)
	}
	return jar, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}

		sc := storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Expires: c.Expires,
			MaxAge:  c.MaxAge,
		}
		if sc.Path == "" {
			sc.Path = defaultPath(u.Path)
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		kept := j.cookies[u.Host][:0]
		for _, existing := range j.cookies[u.Host] {
			if existing.Name != sc.Name || existing.Path != sc.Path {
				kept = append(kept, existing)
			}
		}
		// MaxAge < 0 or an Expires in the past deletes the cookie.
		if c.MaxAge >= 0 && !sc.expired(now) {
			kept = append(kept, sc)
		}
		j.cookies[u.Host] = kept
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	var out []*http.Cookie
	for _, sc := range j.cookies[u.Host] {
		if sc.expired(now) || !pathMatches(sc.Path, u.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: sc.Name, Value: sc.Value})
	}
	return out
}

// Persist seals the jar and writes it to the store.
func (j *Jar) Persist(ctx context.Context) error {
	j.mu.Lock()
	plain, err := json.Marshal(j.cookies)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode cookie jar: %w", err)
	}

	sealed, err := j.sealer.Seal(plain)
	if err != nil {
		return err
	}
	return j.store.SaveJar(ctx, sealed)
}

// defaultPath is the cookie default-path computation from RFC 6265 §5.1.4.
func defaultPath(requestPath string) string {
	if requestPath == "" || !strings.HasPrefix(requestPath, "/") {
		return "/"
	}
	idx := strings.LastIndex(requestPath, "/")
	if idx == 0 {
		return "/"
	}
	return requestPath[:idx]
}

// pathMatches is the cookie path-match rule from RFC 6265 §5.1.4.
func pathMatches(cookiePath, requestPath string) bool {
	if cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}
