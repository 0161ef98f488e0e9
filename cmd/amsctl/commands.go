package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v3"

	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/attendance"
	"rotary-ams-gateway/internal/notification"
	"rotary-ams-gateway/internal/session"
)

func (a *cliApp) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with your AMS account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "AMS username", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "AMS password, prompted when omitted"},
			&cli.StringFlag{Name: "push-token", Usage: "device push token forwarded to the AMS API"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			password := c.String("password")
			if password == "" {
				var err error
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}

			e, err := a.open(c)
			if err != nil {
				return err
			}
			defer e.close()

			if previous, err := e.current(ctx); err == nil {
				e.reporter.Failed("drop previous session", e.forget(ctx, previous.ID))
			}

			sess, err := e.sessions.Login(ctx, c.String("username"), password, c.String("push-token"))
			if err != nil {
				e.reporter.Failed("login", err)
				return errors.New(amsclient.UserMessage(err))
			}
			if err := e.kv.Set(ctx, currentSessionKey, sess.ID); err != nil {
				return fmt.Errorf("failed to persist session: %w", err)
			}

			renderHome(a.out, sess.User)
			return nil
		},
	}
}

func (a *cliApp) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and forget the stored session",
		Action: a.withSession(func(ctx context.Context, _ *cli.Command, e *env, sess *session.Context) error {
			if err := e.forget(ctx, sess.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		}),
	}
}

func (a *cliApp) homeCommand() *cli.Command {
	return &cli.Command{
		Name:  "home",
		Usage: "Show the signed-in user and the available screens",
		Action: a.withSession(func(_ context.Context, _ *cli.Command, _ *env, sess *session.Context) error {
			renderHome(a.out, sess.User)
			return nil
		}),
	}
}

func (a *cliApp) qrcodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "qrcode",
		Usage: "Show your attendance QR code",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "png", Usage: "write a PNG image to this path instead of printing"},
			&cli.IntFlag{Name: "size", Usage: "PNG size in pixels (64 to 1024)", Value: 300},
		},
		Action: a.withSession(func(_ context.Context, c *cli.Command, _ *env, sess *session.Context) error {
			content := fmt.Sprintf("%d", sess.User.ID)

			if path := c.String("png"); path != "" {
				size := c.Int("size")
				if size < 64 || size > 1024 {
					return errors.New("size must be between 64 and 1024")
				}
				png, err := qrcode.Encode(content, qrcode.Medium, int(size))
				if err != nil {
					return fmt.Errorf("failed to render qr code: %w", err)
				}
				if err := os.WriteFile(path, png, 0o644); err != nil {
					return fmt.Errorf("failed to write qr code: %w", err)
				}
				fmt.Fprintf(a.out, "QR code written to %s\n", path)
				return nil
			}

			code, err := qrcode.New(content, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("failed to render qr code: %w", err)
			}
			fmt.Fprint(a.out, code.ToSmallString(false))
			fmt.Fprintf(a.out, "Member #%d (%s)\n", sess.User.ID, sess.User.Username)
			return nil
		}),
	}
}

func (a *cliApp) scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Log attendance for a scanned member QR code (admins only)",
		ArgsUsage: "DATA",
		Action: a.withSession(func(ctx context.Context, c *cli.Command, e *env, sess *session.Context) error {
			if err := sess.RequireAdmin(); err != nil {
				return err
			}
			if c.NArg() != 1 {
				return errors.New("scan expects exactly one argument, the scanned data")
			}

			res, err := e.client.WithToken(sess.Token).LogAttendance(ctx, c.Args().First())
			if errors.Is(err, amsclient.ErrInvalidScan) {
				return errors.New("Invalid QR code.")
			}
			if err != nil {
				return e.upstreamFailed(ctx, sess, "log attendance", err)
			}
			fmt.Fprintln(a.out, res.Message())
			return nil
		}),
	}
}

func (a *cliApp) todayCommand() *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "List today's attendance",
		Action: a.withSession(func(ctx context.Context, _ *cli.Command, e *env, sess *session.Context) error {
			attendees, err := e.client.WithToken(sess.Token).TodayAttendees(ctx)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "fetch today's attendees", err)
			}
			return renderAttendees(a.out, attendees)
		}),
	}
}

func (a *cliApp) sheetCommand() *cli.Command {
	return &cli.Command{
		Name:  "sheet",
		Usage: "Show the attendance sheet",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "only members whose name contains this text"},
		},
		Action: a.withSession(func(ctx context.Context, c *cli.Command, e *env, sess *session.Context) error {
			sheet, err := e.client.WithToken(sess.Token).AttendanceSheet(ctx)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "fetch attendance sheet", err)
			}
			return renderSheet(a.out, attendance.BuildSheet(*sheet, c.String("search")))
		}),
	}
}

func (a *cliApp) notificationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifications",
		Usage: "Show notifications and mark them as seen",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "delete the notifications already seen"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
		},
		Action: a.withSession(func(ctx context.Context, c *cli.Command, e *env, sess *session.Context) error {
			feed := notification.NewFeed(e.client.WithToken(sess.Token), e.reporter)
			defer feed.Wait()

			view, err := feed.Load(ctx)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "load notifications", err)
			}
			if err := renderNotifications(a.out, view); err != nil {
				return err
			}
			if !c.Bool("clear") {
				return nil
			}

			// Marking as seen must land before the seen ones are cleared.
			feed.Wait()

			confirmed := c.Bool("yes")
			if !confirmed {
				confirmed = a.confirm("Clear all seen notifications?")
			}
			if !confirmed {
				fmt.Fprintln(a.out, "Nothing cleared.")
				return nil
			}

			view, err = feed.Clear(ctx, true)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "clear seen notifications", err)
			}
			fmt.Fprintln(a.out, "Seen notifications cleared.")
			return renderNotifications(a.out, view)
		}),
	}
}

func (a *cliApp) publicationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "publications",
		Usage: "List magazine issues",
		Action: a.withSession(func(ctx context.Context, _ *cli.Command, e *env, sess *session.Context) error {
			pubs, err := e.client.WithToken(sess.Token).Publications(ctx)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "fetch publications", err)
			}
			return renderPublications(a.out, pubs)
		}),
	}
}

func (a *cliApp) statementsCommand() *cli.Command {
	return &cli.Command{
		Name:  "statements",
		Usage: "List financial statements",
		Action: a.withSession(func(ctx context.Context, _ *cli.Command, e *env, sess *session.Context) error {
			links, err := e.client.WithToken(sess.Token).FinancialStatements(ctx)
			if err != nil {
				return e.upstreamFailed(ctx, sess, "fetch financial statements", err)
			}
			return renderStatements(a.out, links)
		}),
	}
}

// prompt prints label and reads one line of input.
func (a *cliApp) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a y/N question. Anything but y or yes declines.
func (a *cliApp) confirm(question string) bool {
	answer, err := a.prompt(question + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
