package webenv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	t.Run("flat pairs", func(t *testing.T) {
		q := ParseQuery("a=verify&t=tok123")
		require.Equal(t, "verify", q["a"])
		require.Equal(t, "tok123", q["t"])
	})

	t.Run("leading question mark", func(t *testing.T) {
		q := ParseQuery("?r=%2Faccount%3Ftab%3D2FA")
		require.Equal(t, "/account?tab=2FA", q["r"])
	})

	t.Run("key without equals maps to empty", func(t *testing.T) {
		q := ParseQuery("flag&a=login")
		v, ok := q["flag"]
		require.True(t, ok)
		require.Empty(t, v)
		require.Equal(t, "login", q["a"])
	})

	t.Run("value stops at second equals", func(t *testing.T) {
		q := ParseQuery("a=b=c")
		require.Equal(t, "b", q["a"])
	})

	t.Run("last duplicate wins", func(t *testing.T) {
		q := ParseQuery("a=1&a=2")
		require.Equal(t, "2", q["a"])
	})

	t.Run("empty input", func(t *testing.T) {
		require.Empty(t, ParseQuery(""))
		require.Empty(t, ParseQuery("?"))
	})
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()

	st := NewMemoryStorage()
	require.Empty(t, st.Get("missing"))

	st.Set("ref", "/account")
	require.Equal(t, "/account", st.Get("ref"))

	st.Remove("ref")
	require.Empty(t, st.Get("ref"))
	st.Remove("ref") // absent key is fine
}

func TestVirtualPageNavigate(t *testing.T) {
	t.Parallel()

	page := NewVirtualPage("https://app.example.com/auth/account?tab=Profile", "")

	loc := page.Location()
	require.Equal(t, "/auth/account", loc.Path)
	require.Equal(t, "tab=Profile", loc.RawQuery)

	t.Run("relative query navigation", func(t *testing.T) {
		page.Navigate("?")
		loc := page.Location()
		require.Equal(t, "/auth/account", loc.Path)
		require.Empty(t, loc.RawQuery)
		// A bare "?" must not leave a dangling question mark behind.
		require.Equal(t, "https://app.example.com/auth/account", page.History()[0])
	})

	t.Run("absolute path keeps referrer", func(t *testing.T) {
		page.Navigate("/auth/login?r=%2Fauth%2Faccount")
		require.Equal(t, "/auth/login", page.Location().Path)
		require.Equal(t, "https://app.example.com/auth/account", page.Referrer())
	})

	require.Len(t, page.History(), 2)
}
