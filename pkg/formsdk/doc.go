// Package formsdk is a headless session and form controller for an
// account-management surface (login, registration, password reset, profile
// edit, TOTP enrollment) backed by a JSON auth API.
//
// It owns three cooperating pieces:
//
//   - a token lifecycle with silent refresh and redirect-to-login on
//     irrecoverable authentication failure (Client.AccessToken, Client.Logout)
//   - an authenticated request dispatcher with uniform error routing and a
//     shared loading flag (Client.Send)
//   - a per-page form state machine that drives field input, validation-error
//     mapping, the MFA enrollment sub-flow and submit-outcome routing
//     (Controller)
//
// Browser primitives are injected through webenv.Navigator and
// webenv.Storage, so the same state machine runs under a real page context,
// the CLI's virtual page, or a test harness. Transient messages go through a
// notify.Queue; messages that must survive a full navigation are written as
// one-shot flash entries in session storage and replayed on the next load.
package formsdk
