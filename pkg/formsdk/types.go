package formsdk

import "github.com/pquerna/otp"

// Paths holds the page-embedded environment configuration: the base path
// prefix and the relative paths of the known routes. All requests and
// navigations are built from these.
type Paths struct {
	Base     string // path prefix, e.g. "/auth"
	Login    string // e.g. "/login"
	Register string // e.g. "/register"
	Account  string // e.g. "/account"
	Refresh  string // e.g. "/refresh"
}

// actionRoute is the multiplexed action endpoint, relative to Base.
const actionRoute = "/action"

// Page returns Base joined with a relative route.
func (p Paths) Page(route string) string {
	return p.Base + route
}

// Action returns the absolute path of the action endpoint.
func (p Paths) Action() string {
	return p.Base + actionRoute
}

// TokenResponse is the refresh endpoint's success body.
type TokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type,omitempty"`
	ExpiresIn   float64 `json:"expires_in,omitempty"`
}

// TotpKey is the newTotpKey action response: a fresh provisioning URI and
// the shared secret to submit alongside the first code.
type TotpKey struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// Key parses the provisioning URI into an otp.Key, exposing issuer, account
// name and secret for display.
func (k *TotpKey) Key() (*otp.Key, error) {
	return otp.NewKeyFromURL(k.URL)
}

// Account is the account record returned by the account page endpoint. The
// "totpsecret" field is a boolean sentinel (true) when MFA is enabled rather
// than the secret itself.
type Account = map[string]any

// MFAEnabled reports whether the record carries the enabled sentinel.
func MFAEnabled(acct Account) bool {
	v, ok := acct[fieldTOTPSecret].(bool)
	return ok && v
}

// Well-known field names shared with the backend.
const (
	fieldTOTPSecret    = "totpsecret"
	fieldCode          = "code"
	fieldRecoveryCodes = "recoverycodes"
	fieldRecaptcha     = "recaptcha"
	fieldAction        = "action"
	fieldToken         = "token"

	confirmSuffix = "_confirm"
)
