package formsdk

import (
	"context"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/formauth/pkg/notify"
	"github.com/aussiebroadwan/formauth/pkg/webenv"
)

// ToLogin navigates to the login page, carrying the current path and query
// as a return target in the "r" parameter.
func (c *Client) ToLogin() {
	loc := c.Browser.Location()
	ret := loc.Path
	if loc.RawQuery != "" {
		ret += "?" + loc.RawQuery
	}
	c.Browser.Navigate(c.Paths.Page(c.Paths.Login) + "?r=" + url.QueryEscape(ret))
}

// CaptureReturnTarget persists the deep-link return target for the
// post-login redirect: the "r" query parameter when present, otherwise the
// referrer — provided none is stored yet, the referrer is non-empty, and it
// does not point back at the login or register pages. This lets a user who
// was bounced to login from a deep link still land on it afterwards.
func (c *Client) CaptureReturnTarget() {
	if r := c.query()["r"]; r != "" {
		c.Storage.Set(webenv.KeyReturnTarget, r)
		return
	}

	ref := c.Browser.Referrer()
	if ref == "" || c.Storage.Get(webenv.KeyReturnTarget) != "" {
		return
	}
	if strings.Contains(ref, c.Paths.Page(c.Paths.Login)) ||
		strings.Contains(ref, c.Paths.Page(c.Paths.Register)) {
		return
	}
	c.Storage.Set(webenv.KeyReturnTarget, ref)
}

// ReplayFlashes moves any flash messages left by a prior page into the
// notification queue. Each is consumed exactly once.
func (c *Client) ReplayFlashes() {
	for _, kind := range []notify.Kind{notify.KindSuccess, notify.KindDanger} {
		key := flashKey(kind)
		if msg := c.Storage.Get(key); msg != "" {
			c.Notify.Alert(kind, msg)
			c.Storage.Remove(key)
		}
	}
}

// GoAfterLogin completes a confirmed authentication: it secures a valid
// access token, then navigates to the "r" query parameter, the stored return
// target, or the account home, in that order. The stored target is cleared
// either way.
func (c *Client) GoAfterLogin(ctx context.Context) error {
	if _, err := c.AccessToken(ctx); err != nil {
		return err
	}

	target := c.query()["r"]
	if target == "" {
		target = c.Storage.Get(webenv.KeyReturnTarget)
	}
	if target == "" {
		target = c.Paths.Page(c.Paths.Account)
	}
	c.Storage.Remove(webenv.KeyReturnTarget)
	c.Browser.Navigate(target)
	return nil
}

// reloadBare reloads the current path with an empty query, dropping any
// action parameters so the next load takes the plain path.
func (c *Client) reloadBare() {
	c.Browser.Navigate("?")
}
