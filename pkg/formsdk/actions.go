package formsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Action names multiplexed over the action endpoint. The set is closed;
// resetlink, reset and confirmemail travel as form submissions rather than
// standalone calls.
const (
	ActionVerify       = "verify"
	ActionLogin        = "login"
	ActionEmailUpdate  = "emailupdate"
	ActionNewTotpKey   = "newTotpKey"
	ActionNewRecovery  = "newRecovery"
	ActionResetLink    = "resetlink"
	ActionReset        = "reset"
	ActionConfirmEmail = "confirmemail"
)

// actionSuccess maps submission actions to their canned success flash.
var actionSuccess = map[string]string{
	ActionResetLink:    "Reset link sent!",
	ActionReset:        "Password updated!",
	ActionConfirmEmail: "Confirmation link sent!",
}

// Action is one request to the multiplexed action endpoint. Each variant
// fixes its own payload shape, so callers cannot send a malformed
// combination of action name and fields.
type Action interface {
	actionName() string
	actionPayload() map[string]any
}

// VerifyAction activates an account from an emailed verification token.
type VerifyAction struct {
	Token string
}

func (a VerifyAction) actionName() string { return ActionVerify }
func (a VerifyAction) actionPayload() map[string]any {
	return map[string]any{fieldToken: a.Token}
}

// EmailUpdateAction applies a pending email change from an emailed token.
// Requires a bearer token on the wire.
type EmailUpdateAction struct {
	Token string
}

func (a EmailUpdateAction) actionName() string { return ActionEmailUpdate }
func (a EmailUpdateAction) actionPayload() map[string]any {
	return map[string]any{fieldToken: a.Token}
}

// NewTotpKeyAction requests a fresh TOTP enrollment key. Issuer optionally
// overrides the backend's default issuer in the provisioning URI.
type NewTotpKeyAction struct {
	Issuer string
}

func (a NewTotpKeyAction) actionName() string { return ActionNewTotpKey }
func (a NewTotpKeyAction) actionPayload() map[string]any {
	if a.Issuer == "" {
		return nil
	}
	return map[string]any{"issuer": a.Issuer}
}

// NewRecoveryAction requests a fresh set of recovery codes.
type NewRecoveryAction struct{}

func (a NewRecoveryAction) actionName() string         { return ActionNewRecovery }
func (a NewRecoveryAction) actionPayload() map[string]any { return nil }

// DoAction posts one action to the action endpoint.
func (c *Client) DoAction(ctx context.Context, action Action) (*Result, error) {
	payload := map[string]any{fieldAction: action.actionName()}
	for k, v := range action.actionPayload() {
		payload[k] = v
	}
	return c.Send(ctx, http.MethodPost, c.Paths.Action(), payload)
}

// VerifyEmail submits an emailed verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	_, err := c.DoAction(ctx, VerifyAction{Token: token})
	return err
}

// ConfirmEmailUpdate submits an emailed email-change token. The caller must
// hold a valid access token.
func (c *Client) ConfirmEmailUpdate(ctx context.Context, token string) error {
	_, err := c.DoAction(ctx, EmailUpdateAction{Token: token})
	return err
}

// NewTotpKey requests a fresh enrollment key for the authenticated account.
func (c *Client) NewTotpKey(ctx context.Context, issuer string) (*TotpKey, error) {
	res, err := c.DoAction(ctx, NewTotpKeyAction{Issuer: issuer})
	if err != nil {
		return nil, err
	}
	var key TotpKey
	if err := res.Decode(&key); err != nil {
		return nil, err
	}
	return &key, nil
}

// NewRecoveryCodes requests a fresh ordered set of recovery codes. The
// response body is a bare JSON array.
func (c *Client) NewRecoveryCodes(ctx context.Context) ([]string, error) {
	res, err := c.DoAction(ctx, NewRecoveryAction{})
	if err != nil {
		return nil, err
	}
	var codes []string
	if err := res.Decode(&codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// QRImageURL builds the displayable QR image URL for a provisioning URI,
// served by the action endpoint's qr parameter.
func (c *Client) QRImageURL(provisioningURL string) string {
	return c.Paths.Action() + "?qr=" + url.QueryEscape(provisioningURL)
}
