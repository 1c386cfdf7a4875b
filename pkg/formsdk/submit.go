package formsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/formauth/pkg/notify"
)

// ErrFieldValidation reports that a submission was rejected by field-level
// validation, client- or server-side. The details are in Controller.Errors.
var ErrFieldValidation = errors.New("field validation failed")

// SubmitEvent carries the triggering control's explicit action name, if any.
type SubmitEvent struct {
	Action string
}

// Submit runs the submission pipeline: clear errors, check confirm-field
// pairs and the captcha client-side, resolve the target (page path or action
// endpoint), build the falsy-stripped payload, dispatch, and route the
// outcome by action and page identity.
func (f *Controller) Submit(ctx context.Context, ev SubmitEvent) error {
	f.Errors = make(map[string]string)

	for _, field := range f.opts.ConfirmFields {
		value := toString(f.Input[field])
		if value != "" && value != toString(f.Input[field+confirmSuffix]) {
			f.Errors[field+confirmSuffix] = "password do not match"
			return ErrFieldValidation
		}
	}

	if f.opts.Captcha != nil {
		response := f.opts.Captcha.Response()
		if response == "" {
			f.Errors[fieldRecaptcha] = "required"
			return ErrFieldValidation
		}
		f.Input[fieldRecaptcha] = response
	}

	path := f.client.Browser.Location().Path
	if f.query["a"] != "" || ev.Action != "" {
		path = f.client.Paths.Action()
		action := f.query["a"]
		if action == "" {
			action = ev.Action
		}
		f.Input[fieldAction] = action
		if f.query["t"] != "" {
			f.Input[fieldToken] = f.query["t"]
		}
	}

	payload, err := buildPayload(f.Input)
	if err != nil {
		return err
	}
	if toString(payload[fieldCode]) != "" && f.MFA.Secret != "" {
		payload[fieldTOTPSecret] = f.MFA.Secret
	}
	if len(f.MFA.Recovery) > 0 {
		payload[fieldRecoveryCodes] = strings.Join(f.MFA.Recovery, "|")
		f.MFA.Recovery = nil
	}

	res, err := f.client.Send(ctx, http.MethodPost, path, payload)
	if err != nil {
		return f.submitFailed(err)
	}
	return f.submitSucceeded(ctx, payload, res)
}

func (f *Controller) submitSucceeded(ctx context.Context, payload map[string]any, res *Result) error {
	if action := toString(payload[fieldAction]); action != "" {
		if msg, ok := actionSuccess[action]; ok {
			f.client.Flash(notify.KindSuccess, msg)
			f.client.reloadBare()
			return nil
		}
	}

	switch f.page {
	case PageLogin:
		// A 201 on a password-less submission means a login link was
		// emailed; stay on the page and say so instead of redirecting.
		if payload["password"] == nil && res.StatusCode == http.StatusCreated {
			email := toString(payload[f.opts.EmailField])
			f.Input[f.opts.EmailField] = nil
			f.client.Notify.Alert(notify.KindSuccess, fmt.Sprintf("An email was sent to %s.", email))
			return nil
		}
		return f.client.GoAfterLogin(ctx)

	case PageRegister:
		msg := "Registration success!"
		if res.StatusCode == http.StatusCreated {
			msg = "Email confirmation link sent to your email."
		}
		f.client.Flash(notify.KindSuccess, msg)
		f.client.Browser.Navigate(f.client.Paths.Page(f.client.Paths.Login))
		return nil

	case PageAccount:
		if err := f.UpdateAccount(ctx, res.Map(), false); err != nil {
			return err
		}
		msg := "Updated!"
		if res.StatusCode == http.StatusCreated {
			msg = "Email update link sent to your email."
		}
		f.client.Notify.Alert(notify.KindSuccess, msg)
		return nil
	}
	return nil
}

func (f *Controller) submitFailed(err error) error {
	if f.opts.Captcha != nil {
		f.opts.Captcha.Reset()
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		f.Errors = valErr.Fields
		if f.Errors == nil {
			f.Errors = make(map[string]string)
		}
		// A code-related rejection on login means the account wants a
		// second factor; reveal the field so the user can supply one.
		if f.page == PageLogin {
			f.CodeFieldVisible = f.Errors[fieldCode] != ""
		}
		return ErrFieldValidation
	}

	f.client.notifyError(err)
	return err
}

// buildPayload deep-copies input through a JSON round trip and removes falsy
// fields: empty strings, zero numbers, false and null are all omitted. That
// means a literal 0 or false can never be sent through this path; the quirk
// is load-bearing for the backend's partial-update semantics, so it stays.
func buildPayload(input map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("copy form input: %w", err)
	}
	payload := make(map[string]any, len(input))
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("copy form input: %w", err)
	}

	for k, v := range payload {
		if isFalsy(v) {
			delete(payload, k)
		}
	}
	return payload, nil
}

// isFalsy matches the loose falsiness of the page scripting environment for
// values that survive a JSON round trip.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case float64:
		return val == 0
	}
	return false
}

// toString returns string values as-is and anything else as empty, matching
// how the form reads its own free-form fields.
func toString(v any) string {
	s, _ := v.(string)
	return s
}
