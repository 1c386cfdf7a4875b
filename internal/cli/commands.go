package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/formauth/pkg/formsdk"
)

func (app *Application) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password; omit to request a magic link")
	code := fs.String("code", "", "one-time or recovery code")
	token := fs.String("token", "", "emailed magic-link token")
	remember := fs.Bool("remember", false, "request a long-lived session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *token != "" {
		app.open(app.client.Paths.Login, "?a=login&t="+url.QueryEscape(*token))
	} else {
		app.open(app.client.Paths.Login, "")
	}

	form := formsdk.NewController(app.client, formsdk.Options{})
	if err := form.Init(ctx); err != nil {
		return err
	}

	if *token != "" {
		if app.client.Tokens.Get() == "" {
			return errors.New("magic-link login failed")
		}
		fmt.Fprintln(app.out, "Logged in.")
		return nil
	}

	form.Input["email"] = *email
	form.Input["password"] = *password
	form.Input["code"] = *code
	form.Input["remember"] = *remember

	err := form.Submit(ctx, formsdk.SubmitEvent{})
	if errors.Is(err, formsdk.ErrFieldValidation) {
		app.printFieldErrors(form.Errors)
		if form.CodeFieldVisible && *code == "" {
			fmt.Fprintln(app.out, "This account wants a second factor; re-run with -code.")
		}
		return err
	}
	if err != nil {
		return err
	}

	if app.client.Tokens.Get() != "" {
		fmt.Fprintln(app.out, "Logged in.")
	}
	return nil
}

func (app *Application) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm", "", "password confirmation, defaults to -password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}

	app.open(app.client.Paths.Register, "")
	form := formsdk.NewController(app.client, formsdk.Options{
		ConfirmFields: []string{"password"},
	})
	if err := form.Init(ctx); err != nil {
		return err
	}

	form.Input["email"] = *email
	form.Input["password"] = *password
	form.Input["password_confirm"] = *confirm

	err := form.Submit(ctx, formsdk.SubmitEvent{})
	if errors.Is(err, formsdk.ErrFieldValidation) {
		app.printFieldErrors(form.Errors)
	}
	return err
}

// stringValues collects repeated -set flags.
type stringValues []string

func (v *stringValues) String() string { return strings.Join(*v, ",") }

func (v *stringValues) Set(value string) error {
	*v = append(*v, value)
	return nil
}

func (app *Application) cmdAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	var sets stringValues
	fs.Var(&sets, "set", "field=value to change, repeatable; omit to just print the account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form, err := app.openAccount(ctx)
	if err != nil {
		return err
	}

	if len(sets) == 0 {
		return app.printAccount(form)
	}

	for _, kv := range sets {
		field, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("-set wants field=value, got %q", kv)
		}
		form.Input[field] = value
	}

	err = form.Submit(ctx, formsdk.SubmitEvent{})
	if errors.Is(err, formsdk.ErrFieldValidation) {
		app.printFieldErrors(form.Errors)
	}
	if err != nil {
		return err
	}
	return app.printAccount(form)
}

func (app *Application) cmdEnroll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ContinueOnError)
	out := fs.String("out", "formauth-qr.png", "file to write the enrollment QR code to")
	complete := fs.Bool("complete", false, "finish enrollment immediately with a locally generated code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form, err := app.openAccount(ctx)
	if err != nil {
		return err
	}

	display := form.MFA.EnrollmentURL()
	if display == "" {
		fmt.Fprintln(app.out, "Two-factor authentication is already enabled.")
		return nil
	}

	// The display URL carries the provisioning URI in its qr parameter;
	// render the same image locally instead of fetching it.
	parsed, err := url.Parse(display)
	if err != nil {
		return err
	}
	provisioning := parsed.Query().Get("qr")

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := writeQR(f, provisioning); err != nil {
		_ = f.Close()
		return fmt.Errorf("render enrollment QR: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Enrollment QR written to %s (secret: %s)\n", *out, form.MFA.Secret)

	if !*complete {
		fmt.Fprintln(app.out, "Scan it, then run: formauth account -set code=<generated code>")
		return nil
	}

	codeValue, err := totp.GenerateCode(form.MFA.Secret, time.Now())
	if err != nil {
		return fmt.Errorf("generate enrollment code: %w", err)
	}
	form.Input["code"] = codeValue

	err = form.Submit(ctx, formsdk.SubmitEvent{})
	if errors.Is(err, formsdk.ErrFieldValidation) {
		app.printFieldErrors(form.Errors)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, "Two-factor authentication enabled.")
	return nil
}

func (app *Application) cmdRecovery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recovery", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	form, err := app.openAccount(ctx)
	if err != nil {
		return err
	}

	if err := form.GenRecovery(ctx); err != nil {
		return err
	}

	fmt.Fprintln(app.out, "New recovery codes (store them now, they are shown once):")
	fmt.Fprintln(app.out, form.MFA.RecoveryText())

	// Saving binds the fresh codes to the account and invalidates the old
	// set.
	err = form.Submit(ctx, formsdk.SubmitEvent{})
	if errors.Is(err, formsdk.ErrFieldValidation) {
		app.printFieldErrors(form.Errors)
	}
	return err
}

func (app *Application) cmdLogout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	app.client.Logout(ctx)
	fmt.Fprintln(app.out, "Logged out.")
	return nil
}

// openAccount navigates to the account page and runs the page-load flow:
// token acquisition, account fetch, and the enrollment sub-flow when MFA is
// not yet enabled.
func (app *Application) openAccount(ctx context.Context) (*formsdk.Controller, error) {
	app.open(app.client.Paths.Account, "")
	form := formsdk.NewController(app.client, formsdk.Options{})
	if err := form.Init(ctx); err != nil {
		if errors.Is(err, formsdk.ErrLoginRequired) {
			return nil, errors.New("not logged in; run formauth login first")
		}
		return nil, err
	}
	return form, nil
}

func (app *Application) printAccount(form *formsdk.Controller) error {
	pretty, err := json.MarshalIndent(form.Input, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, string(pretty))
	return nil
}
