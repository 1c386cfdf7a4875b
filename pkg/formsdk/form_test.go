package formsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/formauth/pkg/notify"
)

// tokenHandler serves the refresh endpoint with a fresh valid token.
func tokenHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, TokenResponse{
			AccessToken: signedToken(t, time.Now().Add(time.Hour)),
			TokenType:   "Bearer",
		})
	}
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body := make(map[string]any)
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestLoginSubmitRedirectsAfterSuccess(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /auth/refresh", tokenHandler(t))
	e := newEnv(t, "/auth/login", mux)

	form := NewController(e.client, Options{})
	require.Equal(t, PageLogin, form.Page())
	form.Input["email"] = "alice@example.com"
	form.Input["password"] = "hunter22"

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
	require.Contains(t, e.lastNavigation(), "/auth/account")
}

func TestLoginMagicLinkRequestStaysOnPage(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "/auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusCreated, nil)
	}))

	form := NewController(e.client, Options{})
	form.Input["email"] = "alice@example.com"

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))

	require.Empty(t, e.page.History())
	require.Nil(t, form.Input["email"])

	entries := e.client.Notify.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "An email was sent to alice@example.com.", entries[0].Text)
}

func TestConfirmFields(t *testing.T) {
	t.Parallel()

	t.Run("mismatch blocks before any request", func(t *testing.T) {
		t.Parallel()

		requests := 0
		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			writeJSON(t, w, http.StatusOK, nil)
		}))

		form := NewController(e.client, Options{ConfirmFields: []string{"password"}})
		form.Input["password"] = "hunter22"
		form.Input["password_confirm"] = "hunter23"

		require.ErrorIs(t, form.Submit(context.Background(), SubmitEvent{}), ErrFieldValidation)
		require.Equal(t, "password do not match", form.Errors["password_confirm"])
		require.Zero(t, requests)
	})

	t.Run("empty field skips the check", func(t *testing.T) {
		t.Parallel()

		requests := 0
		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			writeJSON(t, w, http.StatusOK, nil)
		}))

		form := NewController(e.client, Options{ConfirmFields: []string{"password"}})
		form.Input["email"] = "alice@example.com"
		form.Input["password_confirm"] = "stale"

		require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
		require.Equal(t, 1, requests)
	})

	t.Run("matching pair proceeds", func(t *testing.T) {
		t.Parallel()

		requests := 0
		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			writeJSON(t, w, http.StatusOK, nil)
		}))

		form := NewController(e.client, Options{ConfirmFields: []string{"password"}})
		form.Input["password"] = "hunter22"
		form.Input["password_confirm"] = "hunter22"

		require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
		require.Equal(t, 1, requests)
	})
}

func TestCaptchaGate(t *testing.T) {
	t.Parallel()

	t.Run("unsolved blocks before any request", func(t *testing.T) {
		t.Parallel()

		requests := 0
		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
		}))

		captcha := &fakeCaptcha{}
		form := NewController(e.client, Options{Captcha: captcha})

		require.ErrorIs(t, form.Submit(context.Background(), SubmitEvent{}), ErrFieldValidation)
		require.Equal(t, "required", form.Errors["recaptcha"])
		require.Zero(t, requests)
	})

	t.Run("solved response travels with the payload", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = decodeBody(t, r)
			writeJSON(t, w, http.StatusOK, nil)
		}))

		captcha := &fakeCaptcha{response: "solved-challenge"}
		form := NewController(e.client, Options{Captcha: captcha})
		form.Input["email"] = "alice@example.com"

		require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
		require.Equal(t, "solved-challenge", got["recaptcha"])
	})

	t.Run("reset after server rejection", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": "captcha rejected"})
		}))

		captcha := &fakeCaptcha{response: "stale-challenge"}
		form := NewController(e.client, Options{Captcha: captcha})
		form.Input["email"] = "alice@example.com"

		require.Error(t, form.Submit(context.Background(), SubmitEvent{}))
		require.Equal(t, 1, captcha.resets)
	})
}

func TestSubmitStripsFalsyFields(t *testing.T) {
	t.Parallel()

	var got map[string]any
	e := newEnv(t, "/auth/reset", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	}))

	form := NewController(e.client, Options{})
	require.Equal(t, PageOther, form.Page())
	form.Input["a"] = ""
	form.Input["b"] = 0
	form.Input["c"] = "x"
	form.Input["d"] = nil
	form.Input["e"] = false

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
	require.Equal(t, map[string]any{"c": "x"}, got)
}

func TestLoginValidationTogglesCodeField(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"code": "Invalid code"}
	e := newEnv(t, "/auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": "validation", "data": fields})
	}))

	form := NewController(e.client, Options{})
	form.Input["email"] = "alice@example.com"
	form.Input["password"] = "hunter22"

	require.ErrorIs(t, form.Submit(context.Background(), SubmitEvent{}), ErrFieldValidation)
	require.True(t, form.CodeFieldVisible)
	require.Equal(t, "Invalid code", form.Errors["code"])

	fields = map[string]string{"email": "unknown"}
	require.ErrorIs(t, form.Submit(context.Background(), SubmitEvent{}), ErrFieldValidation)
	require.False(t, form.CodeFieldVisible)
}

func TestActionSubmitFlashesCannedMessage(t *testing.T) {
	t.Parallel()

	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/action", func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	})
	e := newEnv(t, "/auth/login", mux)

	form := NewController(e.client, Options{})
	form.Input["email"] = "alice@example.com"

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{Action: ActionResetLink}))
	require.Equal(t, "resetlink", got["action"])
	require.Equal(t, "alice@example.com", got["email"])

	require.Equal(t, "Reset link sent!", e.storage.Get("alertSuccess"))
	require.Contains(t, e.lastNavigation(), "/auth/login")
}

func TestRegisterSubmitRoutesToLogin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		flash  string
	}{
		{"direct activation", http.StatusOK, "Registration success!"},
		{"email confirmation pending", http.StatusCreated, "Email confirmation link sent to your email."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t, "/auth/register", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tc.status, nil)
			}))

			form := NewController(e.client, Options{})
			require.Equal(t, PageRegister, form.Page())
			form.Input["email"] = "alice@example.com"
			form.Input["password"] = "hunter22"

			require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
			require.Equal(t, tc.flash, e.storage.Get("alertSuccess"))
			require.Contains(t, e.lastNavigation(), "/auth/login")
		})
	}
}

func TestInitVerifyAction(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("POST /auth/action", func(w http.ResponseWriter, r *http.Request) {
			got = decodeBody(t, r)
			writeJSON(t, w, http.StatusOK, nil)
		})
		e := newEnv(t, "/auth/login?a=verify&t=tok-verify", mux)

		form := NewController(e.client, Options{})
		require.NoError(t, form.Init(context.Background()))

		require.Equal(t, map[string]any{"action": "verify", "token": "tok-verify"}, got)
		require.Equal(t, "Email Verified", e.storage.Get("alertSuccess"))
		require.NotEmpty(t, e.page.History())
	})

	t.Run("failure flashes the error", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t, "/auth/login?a=verify&t=tok-bad", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]string{"error": "token expired"})
		}))

		form := NewController(e.client, Options{})
		require.NoError(t, form.Init(context.Background()))
		require.Equal(t, "token expired", e.storage.Get("alertDanger"))
	})
}

func TestInitMagicLinkLogin(t *testing.T) {
	t.Parallel()

	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /auth/refresh", tokenHandler(t))
	e := newEnv(t, "/auth/login?a=login&t=tok-magic", mux)

	form := NewController(e.client, Options{})
	require.NoError(t, form.Init(context.Background()))

	require.Equal(t, map[string]any{"token": "tok-magic"}, got)
	require.Contains(t, e.lastNavigation(), "/auth/account")
	require.NotEmpty(t, e.client.Tokens.Get())
}

func newAccountEnv(t *testing.T, pagePath string, acct Account, actions http.HandlerFunc) *env {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/refresh", tokenHandler(t))
	mux.HandleFunc("GET /auth/account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, acct)
	})
	if actions != nil {
		mux.HandleFunc("POST /auth/action", actions)
	}
	return newEnv(t, pagePath, mux)
}

func TestAccountInitStartsEnrollmentWhenMFADisabled(t *testing.T) {
	t.Parallel()

	var got map[string]any
	e := newAccountEnv(t, "/auth/account",
		Account{"email": "alice@example.com", "totpsecret": false},
		func(w http.ResponseWriter, r *http.Request) {
			got = decodeBody(t, r)
			writeJSON(t, w, http.StatusOK, TotpKey{
				URL:    "otpauth://totp/formauth:alice?secret=JBSWY3DP",
				Secret: "JBSWY3DP",
			})
		})

	form := NewController(e.client, Options{})
	require.Equal(t, PageAccount, form.Page())
	require.NoError(t, form.Init(context.Background()))

	require.Equal(t, map[string]any{"action": "newTotpKey"}, got)
	require.Contains(t, form.MFA.EnrollmentURL(), "/auth/action?qr=")
	require.Contains(t, form.MFA.EnrollmentURL(), "otpauth%3A%2F%2F")
	require.Equal(t, "JBSWY3DP", form.MFA.Secret)
	require.True(t, form.CodeFieldVisible)
	require.Equal(t, "alice@example.com", form.Input["email"])
}

func TestAccountInitKeepsCodeHiddenWhenMFAEnabled(t *testing.T) {
	t.Parallel()

	actionCalls := 0
	e := newAccountEnv(t, "/auth/account",
		Account{"email": "alice@example.com", "totpsecret": true},
		func(w http.ResponseWriter, r *http.Request) {
			actionCalls++
		})

	form := NewController(e.client, Options{})
	require.NoError(t, form.Init(context.Background()))

	require.Zero(t, actionCalls)
	require.False(t, form.CodeFieldVisible)
	require.Empty(t, form.MFA.EnrollmentURL())
}

func TestAccountInitEmailUpdate(t *testing.T) {
	t.Parallel()

	var got map[string]any
	e := newAccountEnv(t, "/auth/account?a=emailupdate&t=tok-email", nil,
		func(w http.ResponseWriter, r *http.Request) {
			got = decodeBody(t, r)
			writeJSON(t, w, http.StatusOK, nil)
		})

	form := NewController(e.client, Options{})
	require.NoError(t, form.Init(context.Background()))

	require.Equal(t, map[string]any{"action": "emailupdate", "token": "tok-email"}, got)
	require.Equal(t, "Email updated!", e.storage.Get("alertSuccess"))
	require.Contains(t, e.lastNavigation(), "/auth/account")
}

func TestAccountSubmitOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		notice string
	}{
		{"saved", http.StatusOK, "Updated!"},
		{"email change pending", http.StatusCreated, "Email update link sent to your email."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			acct := Account{"email": "alice@example.com", "totpsecret": true}
			mux := http.NewServeMux()
			mux.HandleFunc("POST /auth/account", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tc.status, acct)
			})
			e := newEnv(t, "/auth/account", mux)
			e.client.Tokens.Set(signedToken(t, time.Now().Add(time.Hour)))

			form := NewController(e.client, Options{})
			require.NoError(t, form.UpdateAccount(context.Background(), acct, false))

			form.Input["name"] = "Alice"
			require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))

			entries := e.client.Notify.Entries()
			require.Len(t, entries, 1)
			require.Equal(t, notify.KindSuccess, entries[0].Kind)
			require.Equal(t, tc.notice, entries[0].Text)
		})
	}
}

func TestSubmitBundlesEnrollmentSecret(t *testing.T) {
	t.Parallel()

	var got map[string]any
	e := newEnv(t, "/auth/reset", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	}))

	form := NewController(e.client, Options{})
	form.MFA.Secret = "JBSWY3DP"
	form.Input["code"] = "123456"

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
	require.Equal(t, "123456", got["code"])
	require.Equal(t, "JBSWY3DP", got["totpsecret"])
}

func TestSubmitOmitsSecretWithoutEnrollment(t *testing.T) {
	t.Parallel()

	var got map[string]any
	e := newEnv(t, "/auth/reset", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	}))

	form := NewController(e.client, Options{})
	form.Input["code"] = "123456"

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
	require.Equal(t, "123456", got["code"])
	require.NotContains(t, got, "totpsecret")
}

func TestGenRecoveryBundlesOnNextSubmit(t *testing.T) {
	t.Parallel()

	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/action", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []string{"aaaa-1111", "bbbb-2222"})
	})
	mux.HandleFunc("POST /auth/reset", func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		writeJSON(t, w, http.StatusOK, nil)
	})
	e := newEnv(t, "/auth/reset", mux)

	form := NewController(e.client, Options{})
	require.NoError(t, form.GenRecovery(context.Background()))
	require.Equal(t, []string{"aaaa-1111", "bbbb-2222"}, form.MFA.Recovery)
	require.Equal(t, "aaaa-1111\nbbbb-2222", form.MFA.RecoveryText())

	require.NoError(t, form.Submit(context.Background(), SubmitEvent{}))
	require.Equal(t, "aaaa-1111|bbbb-2222", got["recoverycodes"])
	require.Empty(t, form.MFA.Recovery)
}

func TestSetTabRestoresSnapshot(t *testing.T) {
	t.Parallel()

	e := newEnv(t, "/auth/account", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	form := NewController(e.client, Options{})
	require.NoError(t, form.UpdateAccount(context.Background(),
		Account{"name": "Alice", "totpsecret": true}, false))

	form.Input["name"] = "Bob"
	require.NoError(t, form.SetTab(context.Background(), "security"))
	require.Equal(t, "Alice", form.Input["name"])
}
