package formsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/formauth/pkg/notify"
)

// Page identifies which of the known routes the controller is driving.
type Page int

const (
	PageOther Page = iota
	PageLogin
	PageRegister
	PageAccount
)

// CaptchaWidget stands in for an embedded challenge widget. Response returns
// the solved-challenge token, empty while unsolved; Reset discards the
// current challenge after a failed submission.
type CaptchaWidget interface {
	Response() string
	Reset()
}

// MFAState exists only during an active enrollment or reset interaction.
type MFAState struct {
	// URL is nil when no enrollment is pending, empty while a key request
	// is in flight, and the displayable QR image URL once one arrived.
	URL *string

	// Secret is the pending shared secret, submitted alongside the first
	// code.
	Secret string

	// Recovery holds freshly generated recovery codes until the next
	// submission bundles and discards them.
	Recovery []string
}

// EnrollmentURL returns the displayable URL, or empty when none is pending.
func (m *MFAState) EnrollmentURL() string {
	if m.URL == nil {
		return ""
	}
	return *m.URL
}

// RecoveryText returns the pending recovery codes newline-joined for
// display.
func (m *MFAState) RecoveryText() string {
	return strings.Join(m.Recovery, "\n")
}

// Options configures a Controller for the fields present on the page.
type Options struct {
	// ConfirmFields lists field names that have a "_confirm" counterpart
	// on the page.
	ConfirmFields []string

	// EmailField is the name of the email input, "email" when empty.
	EmailField string

	// Captcha is the embedded challenge widget, nil when the page has
	// none.
	Captcha CaptchaWidget
}

// Controller is the per-page form state machine. It is not safe for
// concurrent use; like the page it models, everything runs on one logical
// thread.
type Controller struct {
	client *Client
	page   Page
	query  map[string]string
	opts   Options

	// Input is the current draft of the form, mirroring the server's
	// account record when editing one.
	Input map[string]any

	// Errors maps field names to validation messages. It is replaced
	// wholesale on every submission attempt.
	Errors map[string]string

	// MFA is the transient enrollment state.
	MFA MFAState

	// CodeFieldVisible mirrors whether the one-time-code input is shown.
	// Hidden by default; submission errors and enrollment toggle it.
	CodeFieldVisible bool

	// original is a serialized snapshot of the last server-confirmed
	// record, used to discard in-progress edits on tab changes.
	original string
	tab      string
}

// NewController builds the state machine for the current page. Page identity
// is decided once, from the location path.
func NewController(client *Client, opts Options) *Controller {
	if opts.EmailField == "" {
		opts.EmailField = "email"
	}

	page := PageOther
	switch client.Browser.Location().Path {
	case client.Paths.Page(client.Paths.Login):
		page = PageLogin
	case client.Paths.Page(client.Paths.Register):
		page = PageRegister
	case client.Paths.Page(client.Paths.Account):
		page = PageAccount
	}

	return &Controller{
		client: client,
		page:   page,
		query:  client.query(),
		opts:   opts,
		Input:  make(map[string]any),
		Errors: make(map[string]string),
	}
}

// Page returns the page identity decided at construction.
func (f *Controller) Page() Page {
	return f.page
}

// Init runs the once-per-page-load behavior: flash replay, return-target
// capture, and the query-action branches (a=verify, a=login, a=emailupdate)
// or the account fetch. Branches that end in a navigation return right after
// scheduling it; the next page load picks up from there.
func (f *Controller) Init(ctx context.Context) error {
	f.client.ReplayFlashes()
	f.client.CaptureReturnTarget()

	switch f.query["a"] {
	case ActionVerify:
		if err := f.client.VerifyEmail(ctx, f.query["t"]); err != nil {
			f.client.Flash(notify.KindDanger, ErrorMessage(err))
		} else {
			f.client.Flash(notify.KindSuccess, "Email Verified")
		}
		f.client.reloadBare()
		return nil

	case ActionLogin:
		// Magic-link login: the token posts to the current page path.
		loc := f.client.Browser.Location()
		_, err := f.client.Send(ctx, http.MethodPost, loc.Path, map[string]any{fieldToken: f.query["t"]})
		if err != nil {
			f.client.Flash(notify.KindDanger, ErrorMessage(err))
			f.client.reloadBare()
			return nil
		}
		return f.client.GoAfterLogin(ctx)
	}

	if f.page == PageAccount {
		return f.initAccount(ctx)
	}
	return nil
}

func (f *Controller) initAccount(ctx context.Context) error {
	if _, err := f.client.AccessToken(ctx); err != nil {
		return err
	}

	if f.query["a"] == ActionEmailUpdate {
		if err := f.client.ConfirmEmailUpdate(ctx, f.query["t"]); err != nil {
			f.client.notifyError(err)
			return err
		}
		f.client.Flash(notify.KindSuccess, "Email updated!")
		f.client.Browser.Navigate(f.client.Paths.Page(f.client.Paths.Account))
		return nil
	}

	loc := f.client.Browser.Location()
	res, err := f.client.Send(ctx, http.MethodGet, loc.Path, nil)
	if err != nil {
		f.client.notifyError(err)
		return err
	}
	return f.UpdateAccount(ctx, res.Map(), false)
}

// SetTab records the active settings tab. A change while a server snapshot
// exists discards in-progress edits by restoring Input from the snapshot,
// then re-evaluates the enrollment state.
func (f *Controller) SetTab(ctx context.Context, tab string) error {
	f.tab = tab
	if tab == "" || f.original == "" {
		return nil
	}

	restored := make(map[string]any)
	if err := json.Unmarshal([]byte(f.original), &restored); err != nil {
		return err
	}
	f.Input = restored
	return f.UpdateAccount(ctx, nil, false)
}

// UpdateAccount folds a freshly fetched or freshly saved account record into
// the form, then drives the MFA enrollment sub-flow: when MFA is not yet
// enabled and no enrollment is pending (or a reset was requested), it asks
// the backend for a new key, stores the displayable QR URL and shared
// secret, and reveals the code field. When MFA is already enabled and not
// resetting, the code field stays hidden.
func (f *Controller) UpdateAccount(ctx context.Context, acct Account, reset bool) error {
	if acct != nil {
		snapshot, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		f.original = string(snapshot)
		f.Input = acct
		if MFAEnabled(acct) {
			f.MFA.URL = nil
		}
	}

	if f.original == "" {
		return nil
	}

	if MFAEnabled(f.Input) && !reset {
		f.CodeFieldVisible = false
		return nil
	}

	if f.MFA.URL != nil && !reset {
		return nil
	}

	pending := ""
	f.MFA.URL = &pending

	key, err := f.client.NewTotpKey(ctx, "")
	if err != nil {
		f.client.notifyError(err)
		return err
	}

	display := f.client.QRImageURL(key.URL)
	f.MFA.URL = &display
	f.MFA.Secret = key.Secret
	f.CodeFieldVisible = true
	return nil
}

// GenRecovery fetches a fresh set of recovery codes for display. They ride
// along on the next submission and are discarded from memory then.
func (f *Controller) GenRecovery(ctx context.Context) error {
	codes, err := f.client.NewRecoveryCodes(ctx)
	if err != nil {
		f.client.notifyError(err)
		return err
	}
	f.MFA.Recovery = codes
	return nil
}
