package formsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/formauth/pkg/notify"
	"github.com/aussiebroadwan/formauth/pkg/webenv"
)

// TokenStore holds the current access token in memory. Its lifetime is the
// page's; persistence across loads goes through the refresh credential, not
// this store.
type TokenStore struct {
	mu    sync.Mutex
	token string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// tokenExpiry decodes the token's payload without verifying the signature
// and returns the exp claim. Local decode is a cache-freshness hint only,
// never authentication; the server's 401 remains authoritative.
func tokenExpiry(raw string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

// AccessToken returns a usable access token, refreshing through the backend
// when the held one is absent, expired or undecodable. A refresh rejected
// with 401 redirects to interactive login (unless the page already is the
// login page) and returns ErrLoginRequired; other refresh failures are
// surfaced through the notification queue and returned.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if token := c.Tokens.Get(); token != "" {
		exp, err := tokenExpiry(token)
		switch {
		case err != nil:
			// Malformed is the same as absent, and the bad token goes away.
			c.Tokens.Clear()
		case time.Now().Before(exp):
			return token, nil
		}
	}

	// Send itself redirects to login on a 401 that carried a stale bearer,
	// so page identity has to be read before the call to classify the error.
	wasOnLogin := c.onLoginPage()

	res, err := c.Send(ctx, http.MethodGet, c.Paths.Page(c.Paths.Refresh), nil)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			if !wasOnLogin {
				if !c.onLoginPage() {
					c.ToLogin()
				}
				return "", ErrLoginRequired
			}
			return "", err
		}
		c.notifyError(err)
		return "", err
	}

	var tr TokenResponse
	if err := res.Decode(&tr); err != nil {
		return "", err
	}
	c.Tokens.Set(tr.AccessToken)
	return tr.AccessToken, nil
}

// Logout revokes the refresh credential and navigates to the login page no
// matter what. A failure is stashed as a danger flash so it survives the
// navigation; on success the redirect itself is the confirmation.
func (c *Client) Logout(ctx context.Context) {
	if _, err := c.Send(ctx, http.MethodDelete, c.Paths.Page(c.Paths.Refresh), nil); err != nil {
		c.Flash(notify.KindDanger, ErrorMessage(err))
	}
	c.Tokens.Clear()
	c.Browser.Navigate(c.Paths.Page(c.Paths.Login))
}

// Flash stores a one-shot message for the next page load.
func (c *Client) Flash(kind notify.Kind, text string) {
	c.Storage.Set(flashKey(kind), text)
}

func flashKey(kind notify.Kind) string {
	if kind == notify.KindSuccess {
		return webenv.KeyAlertSuccess
	}
	return webenv.KeyAlertDanger
}
