// callboard-users manages staff accounts in the configured document store,
// so the first admin can be created before the service is exposed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"qms/callboard-service/internal/backend"
	"qms/callboard-service/internal/config"
	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/users"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const usage = `Usage: callboard-users <command> [flags]

Commands:
  add     --username NAME --password PASS [--role admin|staff]
  passwd  --username NAME --password PASS
  del     --username NAME
  list

The store is selected with the same environment variables as
callboard-service (STORE_MODE, DATA_DIR, DB_DSN, DYNAMO_*).
`

var errUsage = errors.New("usage")

func main() {
	if err := run(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return errUsage
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dir := users.NewDirectory(docs, users.BcryptVerifier{}, users.Options{}, logger)
	return runCommand(ctx, dir, os.Args[1:], os.Stdout)
}

func runCommand(ctx context.Context, dir *users.Directory, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	var username, password, role string
	flagSet := pflag.NewFlagSet("callboard-users "+command, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&username, "username", "u", "", "account name")
	flagSet.StringVarP(&password, "password", "p", "", "account password")
	flagSet.StringVarP(&role, "role", "r", models.RoleStaff, "account role (admin or staff)")
	if err := flagSet.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, flagSet.Arg(0))
	}

	switch command {
	case "add":
		user, err := dir.Create(ctx, username, password, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
	case "passwd":
		if err := dir.UpdatePassword(ctx, username, password); err != nil {
			return err
		}
		fmt.Fprintf(out, "password updated for %s\n", username)
	case "del":
		if err := dir.Delete(ctx, username); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", username)
	case "list":
		all, err := dir.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tROLE\tCREATED\tID")
		for _, user := range all {
			created := "-"
			if !user.CreatedAt.IsZero() {
				created = user.CreatedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", user.Username, user.Role, created, user.ID)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	return nil
}
