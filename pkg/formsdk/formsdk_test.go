package formsdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/formauth/pkg/notify"
	"github.com/aussiebroadwan/formauth/pkg/webenv"
)

var testPaths = Paths{
	Base:     "/auth",
	Login:    "/login",
	Register: "/register",
	Account:  "/account",
	Refresh:  "/refresh",
}

type env struct {
	srv     *httptest.Server
	page    *webenv.VirtualPage
	storage *webenv.MemoryStorage
	client  *Client
}

// newEnv stands up a backend and a virtual page at pagePath (path plus
// optional query, relative to the backend origin).
func newEnv(t *testing.T, pagePath string, handler http.Handler) *env {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	page := webenv.NewVirtualPage(srv.URL+pagePath, "")
	storage := webenv.NewMemoryStorage()

	client := New(srv.URL, testPaths, page, storage)
	client.Notify = notify.NewWithTTL(time.Minute)

	return &env{srv: srv, page: page, storage: storage, client: client}
}

// lastNavigation returns the most recent navigation, or empty when none
// happened.
func (e *env) lastNavigation() string {
	history := e.page.History()
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

// signedToken mints a three-segment HS256 token with the given expiry. The
// signature is irrelevant client-side; only the exp claim is read.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

// signedTokenNoExp mints a well-formed token missing the exp claim.
func signedTokenNoExp(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

type fakeCaptcha struct {
	response string
	resets   int
}

func (c *fakeCaptcha) Response() string { return c.response }
func (c *fakeCaptcha) Reset()           { c.resets++; c.response = "" }
