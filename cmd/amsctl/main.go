package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/db"
	"rotary-ams-gateway/internal/logging"
	"rotary-ams-gateway/internal/session"
	"rotary-ams-gateway/internal/store"
)

const (
	defaultBaseURL = "https://rotary-ams.site"
	// currentSessionKey holds the id of the session the CLI acts as.
	currentSessionKey = "current"
)

var (
	// ErrNotSignedIn indicates no session is stored on this device.
	ErrNotSignedIn = errors.New("not signed in, run amsctl login first")
	// ErrSessionExpired indicates the AMS API rejected the stored token.
	ErrSessionExpired = errors.New("session expired, run amsctl login again")
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	return newApp(os.Stdout, os.Stdin).Run(context.Background(), os.Args)
}

// cliApp carries the terminal the commands talk to.
type cliApp struct {
	out io.Writer
	in  *bufio.Reader
}

func newApp(out io.Writer, in io.Reader) *cli.Command {
	a := &cliApp{out: out, in: bufio.NewReader(in)}

	return &cli.Command{
		Name:  "amsctl",
		Usage: "Rotary club attendance and membership from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "AMS API base URL (env AMS_BASE_URL)",
				Value: envOr("AMS_BASE_URL", defaultBaseURL),
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "path of the device store (env AMSCTL_STORE)",
				Value: envOr("AMSCTL_STORE", defaultStorePath()),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "timeout of each AMS API request",
				Value: 15 * time.Second,
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level of failures that are reported and ignored",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			a.loginCommand(),
			a.logoutCommand(),
			a.homeCommand(),
			a.qrcodeCommand(),
			a.scanCommand(),
			a.todayCommand(),
			a.sheetCommand(),
			a.notificationsCommand(),
			a.publicationsCommand(),
			a.statementsCommand(),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".amsctl", "device.db")
	}
	return filepath.Join(home, ".amsctl", "device.db")
}

// env is everything a command needs once the device store is open.
type env struct {
	client   *amsclient.Client
	kv       store.KV
	sessions *session.Manager
	reporter *logging.Reporter
	close    func()
}

func (a *cliApp) open(c *cli.Command) (*env, error) {
	logger, err := logging.New(c.String("log-level"), false)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	path := c.String("store")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: path, MaxOpenConns: 1}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	httpClient, err := amsclient.NewHTTPClient(config.UpstreamConfig{Timeout: c.Duration("timeout")})
	if err != nil {
		return nil, err
	}
	client := amsclient.New(c.String("base-url"), httpClient)
	kv := store.NewGormStore(gormDB)

	return &env{
		client:   client,
		kv:       kv,
		sessions: session.NewManager(kv, client),
		reporter: logging.NewReporter(logger),
		close: func() {
			if sqlDB, err := gormDB.DB(); err == nil {
				_ = sqlDB.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}

// current loads the session this device is signed in as.
func (e *env) current(ctx context.Context) (*session.Context, error) {
	id, err := e.kv.Get(ctx, currentSessionKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device store: %w", err)
	}

	sess, err := e.sessions.Load(ctx, id)
	if errors.Is(err, session.ErrNoSession) {
		return nil, ErrNotSignedIn
	}
	return sess, err
}

// forget removes the session from the device.
func (e *env) forget(ctx context.Context, id string) error {
	if err := e.sessions.Logout(ctx, id); err != nil {
		return err
	}
	return e.kv.Delete(ctx, currentSessionKey)
}

// upstreamFailed turns a failed AMS call into the message shown to the user.
// A rejected token signs the device out.
func (e *env) upstreamFailed(ctx context.Context, sess *session.Context, op string, err error) error {
	e.reporter.Failed(op, err, zap.String("session_id", sess.ID))
	if amsclient.IsUnauthorized(err) {
		e.reporter.Failed("sign out expired session", e.forget(ctx, sess.ID))
		return ErrSessionExpired
	}
	return errors.New(amsclient.UserMessage(err))
}

type sessionAction func(ctx context.Context, c *cli.Command, e *env, sess *session.Context) error

// withSession opens the device store and loads the current session before action.
func (a *cliApp) withSession(action sessionAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		e, err := a.open(c)
		if err != nil {
			return err
		}
		defer e.close()

		sess, err := e.current(ctx)
		if err != nil {
			return err
		}
		return action(ctx, c, e, sess)
	}
}
