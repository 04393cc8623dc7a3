// Command evidencectl performs offline maintenance against the evidencevault
// database: applying migrations and restoring admin access.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"evidencevault/internal/config"
	"evidencevault/internal/db"
	"evidencevault/internal/logging"
	"evidencevault/internal/service"
	"evidencevault/internal/store"
	"evidencevault/internal/version"
)

// readPassword is swapped out in tests.
var readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }

const usage = `usage: evidencectl <command> [flags]

commands:
  migrate                         apply pending database migrations
  create-admin -email E [-name N] create an admin, or promote and reset an existing account
  reset-admin  -email E           alias of create-admin
  version                         print build information
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "evidencectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "version":
		fmt.Fprintln(stdout, version.Current().String())
		return nil
	case "migrate":
		return withDB(ctx, func(cfg config.Config, svc *service.Service, applied int) error {
			fmt.Fprintf(stdout, "applied %d migration(s)\n", applied)
			return nil
		})
	case "create-admin", "reset-admin":
		return adminCommand(ctx, args[0], args[1:], stdin, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func adminCommand(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stdout)
	email := fs.String("email", "", "admin email address")
	display := fs.String("name", "System Administrator", "display name for a new account")
	fromStdin := fs.Bool("password-stdin", false, "read the password from the first line of stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	password, err := promptPassword(stdin, stdout, *fromStdin)
	if err != nil {
		return err
	}
	return withDB(ctx, func(cfg config.Config, svc *service.Service, _ int) error {
		u, created, err := svc.EnsureAdmin(ctx, *display, *email, password)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(stdout, "created admin %s (%s)\n", u.Email, u.ID)
		} else {
			fmt.Fprintf(stdout, "restored admin access for %s (%s)\n", u.Email, u.ID)
		}
		return nil
	})
}

func promptPassword(stdin io.Reader, stdout io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(stdout, "Password: ")
	first, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(stdout, "Repeat password: ")
	second, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

// withDB loads configuration, opens and migrates the database, and hands a
// service without a blob store to fn.
func withDB(ctx context.Context, fn func(config.Config, *service.Service, int) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: cfg.LogFormat == "json"})
	if err != nil {
		return err
	}
	conn, dialect, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	applied, err := db.Migrate(ctx, conn, dialect)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	svc := service.New(cfg, store.New(conn, dialect), nil, nil, logger, service.Options{})
	return fn(cfg, svc, applied)
}
