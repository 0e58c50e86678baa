package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/config"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/logging"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/store"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitBlocked = 2
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported its outcome and only the code matters.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type rootOptions struct {
	fixture  string
	format   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Validate CRM import files and scan live data for duplicates",
		Long: `integrity checks Customer, Contact and Payer import workbooks against the
live CRM before anything is written, and scans the CRM for duplicate
identifiers, duplicate names and emails, schools without a payer and
teachers without a school.

By default records are read from the database in DATABASE_URL (a .env file
in the working directory is loaded first). Use --fixture to read them from a
JSON file instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "json" && opts.format != "text" {
				return fmt.Errorf("invalid --format %q: must be json or text", opts.format)
			}
			logging.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.fixture, "fixture", "", "Read CRM records from a JSON fixture instead of the database")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "json", "Output format: json or text")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	cmd.AddCommand(newValidateCmd(&opts), newScanCmd(&opts), newSearchCmd(&opts))
	return cmd
}

// openEngine builds an engine over the fixture or the configured database.
// The returned close func must be called when the command is done.
func openEngine(ctx context.Context, opts *rootOptions) (*integrity.Engine, func(), error) {
	if opts.fixture != "" {
		m, err := store.LoadFixture(opts.fixture)
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("using fixture store", "path", opts.fixture)
		return integrity.NewEngine(m), func() {}, nil
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := store.OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return integrity.NewEngine(store.NewPostgres(pool)), pool.Close, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) && exitErr.err == nil {
		return exitErr.code
	}

	// Known failures get the catalog message only; the technical error
	// goes to the debug log. Unknown ones also print the raw error.
	userErr := integrity.NewUserError(err)
	fmt.Fprintf(stderr, "Error: %s (Code: %s)\n", userErr.User.Message, userErr.User.Code)
	if userErr.User.Action != "" {
		fmt.Fprintf(stderr, "%s\n", userErr.User.Action)
	}
	if integrity.IsUserFacing(err) {
		slog.Debug("command failed", "error", userErr.Technical)
	} else {
		fmt.Fprintf(stderr, "Details: %v\n", userErr.Technical)
	}
	if exitErr != nil {
		return exitErr.code
	}
	return exitFailure
}
