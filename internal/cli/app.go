// Package cli drives the formsdk state machine from the command line. It
// supplies the "browser" pieces the SDK expects to be handed: a virtual page
// for location and navigation, a SQLite store for session values, and a
// sealed persistent cookie jar for the refresh credential.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/formauth/internal/cli/store"
	"github.com/aussiebroadwan/formauth/pkg/cryptox"
	"github.com/aussiebroadwan/formauth/pkg/formsdk"
	"github.com/aussiebroadwan/formauth/pkg/notify"
	"github.com/aussiebroadwan/formauth/pkg/slogx"
	"github.com/aussiebroadwan/formauth/pkg/webenv"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is one CLI invocation over one persisted session.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     *store.Store
	jar    *Jar
	page   *webenv.VirtualPage
	client *formsdk.Client

	out io.Writer
}

// New opens the session database, unseals the cookie jar and builds the SDK
// client around them.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "formauth-cli",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		out: os.Stdout,
	}

	if err := app.initSession(); err != nil {
		return nil, err
	}
	app.initClient()
	return app, nil
}

// Close releases the session database.
func (app *Application) Close() error {
	return app.db.Close()
}

func (app *Application) initSession() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := store.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply session migrations: %w", err)
	}

	ctx := context.Background()
	salt, err := db.SealSalt(ctx)
	if err != nil {
		_ = db.Close()
		return err
	}
	sealer := cryptox.NewSealer([]byte(app.cfg.Secret), salt)

	jar, err := NewJar(ctx, sealer, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	app.jar = jar
	return nil
}

func (app *Application) initClient() {
	paths := formsdk.Paths{
		Base:     app.cfg.Routes.Base,
		Login:    app.cfg.Routes.Login,
		Register: app.cfg.Routes.Register,
		Account:  app.cfg.Routes.Account,
		Refresh:  app.cfg.Routes.Refresh,
	}

	// Each invocation "opens the tab" on the login page; commands navigate
	// from there.
	app.page = webenv.NewVirtualPage(app.cfg.BaseURL+paths.Page(paths.Login), "")

	client := formsdk.New(app.cfg.BaseURL, paths, app.page, app.db)
	client.HTTPClient.Jar = app.jar
	client.HTTPClient.Timeout = app.cfg.Timeout
	client.HTTPClient.Transport = &slogx.Transport{Logger: app.logger}
	client.Limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	app.client = client
}

// Run dispatches one subcommand. The session (cookie jar, flash messages,
// return target) is persisted before returning so the next invocation picks
// up where this one left off.
func (app *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: formauth <login|register|account|enroll|recovery|logout> [flags]")
	}

	var err error
	switch args[0] {
	case "login":
		err = app.cmdLogin(ctx, args[1:])
	case "register":
		err = app.cmdRegister(ctx, args[1:])
	case "account":
		err = app.cmdAccount(ctx, args[1:])
	case "enroll":
		err = app.cmdEnroll(ctx, args[1:])
	case "recovery":
		err = app.cmdRecovery(ctx, args[1:])
	case "logout":
		err = app.cmdLogout(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	app.finish(ctx)
	return err
}

// open points the virtual page at a route, optionally with a raw query
// string ("?a=...").
func (app *Application) open(route, rawQuery string) {
	app.page.Navigate(app.cfg.BaseURL + app.client.Paths.Page(route) + rawQuery)
}

// finish drains pending notifications to the terminal and persists the
// cookie jar. Storage writes (flashes, return target) went straight to
// SQLite as they happened.
func (app *Application) finish(ctx context.Context) {
	for _, entry := range app.client.Notify.Entries() {
		prefix := "ok"
		if entry.Kind == notify.KindDanger {
			prefix = "error"
		}
		fmt.Fprintf(app.out, "[%s] %s\n", prefix, entry.Text)
	}

	if err := app.jar.Persist(ctx); err != nil {
		app.logger.Error("persist cookie jar failed", "error", err)
	}
}

func (app *Application) printFieldErrors(fields map[string]string) {
	for field, msg := range fields {
		fmt.Fprintf(app.out, "[field] %s: %s\n", field, msg)
	}
}
