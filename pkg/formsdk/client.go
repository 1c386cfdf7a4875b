package formsdk

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/formauth/pkg/notify"
	"github.com/aussiebroadwan/formauth/pkg/slogx"
	"github.com/aussiebroadwan/formauth/pkg/webenv"
)

// Client dispatches authenticated requests against the backend and owns the
// access-token lifecycle. It is shared by every controller on the page.
type Client struct {
	BaseURL    string // backend origin, e.g. "https://app.example.com"
	Paths      Paths
	HTTPClient *http.Client

	// Notify receives transient error/success messages.
	Notify *notify.Queue

	// Tokens holds the in-memory access token. Never persisted.
	Tokens *TokenStore

	// Browser and Storage are the injected page context.
	Browser webenv.Navigator
	Storage webenv.Storage

	// Limiter, when set, throttles outgoing calls client-side. It honors
	// context cancellation.
	Limiter *rate.Limiter

	loading atomic.Bool
}

// New creates a Client bound to a page context. The HTTP client uses the
// logging transport and a conservative timeout; callers may replace it, e.g.
// to install a cookie jar for the refresh credential.
func New(baseURL string, paths Paths, browser webenv.Navigator, storage webenv.Storage) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Paths:   paths,
		HTTPClient: &http.Client{
			Transport: &slogx.Transport{},
			Timeout:   10 * time.Second,
		},
		Notify:  notify.New(),
		Tokens:  NewTokenStore(),
		Browser: browser,
		Storage: storage,
	}
}

// url builds a complete URL by appending the absolute path to the backend
// origin.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// Loading reports whether a dispatched call is in flight. The flag is shared
// by all concurrent calls; the last one to finish resets it.
func (c *Client) Loading() bool {
	return c.loading.Load()
}

// query re-reads the current location's query string. The flattening rules
// are webenv.ParseQuery's.
func (c *Client) query() map[string]string {
	return webenv.ParseQuery(c.Browser.Location().RawQuery)
}

// onLoginPage reports whether the current location is the login route.
func (c *Client) onLoginPage() bool {
	return c.Browser.Location().Path == c.Paths.Page(c.Paths.Login)
}

// notifyError surfaces err's user-facing text at danger severity. This is
// the default error routing for calls with no field to attach the error to.
func (c *Client) notifyError(err error) {
	c.Notify.Alert(notify.KindDanger, ErrorMessage(err))
}
