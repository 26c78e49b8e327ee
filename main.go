package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"bookshare/library"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app carries what every command needs once the root pre-run has opened the
// session store.
type app struct {
	cfg    library.Config
	cfgErr error
	log    *slog.Logger
	mgr    *library.LibraryManager
	in     *bufio.Scanner
	out    io.Writer
}

func main() {
	a := &app{}
	a.cfg, a.cfgErr = library.LoadConfig()

	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bookshare",
		Short:         "Browse and share books with a bookshare backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.BackendURL, "backend-url", a.cfg.BackendURL, "backend base URL (BOOKSHARE_BACKEND_URL)")
	flags.StringVar(&a.cfg.SessionDB, "session-db", a.cfg.SessionDB, "session database path (BOOKSHARE_SESSION_DB)")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "debug, info, warn or error (BOOKSHARE_LOG_LEVEL)")
	flags.BoolVar(&a.cfg.Ephemeral, "ephemeral", a.cfg.Ephemeral, "keep the session in memory only")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newBooksCmd(a),
		newShellCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	if a.cfgErr != nil {
		return a.cfgErr
	}
	a.log = library.NewLogger(a.cfg.LogLevel, cmd.ErrOrStderr())
	mgr, err := library.NewLibraryManager(a.cfg, a.log)
	if err != nil {
		return err
	}
	a.mgr = mgr
	a.in = bufio.NewScanner(cmd.InOrStdin())
	a.out = cmd.OutOrStdout()
	return nil
}

func (a *app) close() {
	if a.mgr == nil {
		return
	}
	if err := a.mgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing session store: %v\n", err)
	}
}

// prompt prints label and returns the trimmed next line. ok is false at EOF.
func (a *app) prompt(label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

// promptIfEmpty keeps v when set, otherwise asks for it.
func (a *app) promptIfEmpty(v *string, label string) error {
	if strings.TrimSpace(*v) != "" {
		return nil
	}
	s, ok := a.prompt(label)
	if !ok {
		return io.ErrUnexpectedEOF
	}
	*v = s
	return nil
}

// readPassword securely reads a password with masking. When stdin is not a
// terminal the password is read as a plain line so scripts can pipe it in.
func (a *app) readPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		s, ok := a.prompt(label)
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return s, nil
	}
	fmt.Fprint(a.out, label)
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(a.out) // Add newline after password input
	return strings.TrimSpace(string(b)), nil
}

// report prints a successful result's message or turns a failure into an error.
func report[T any](a *app, res library.Result[T]) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}
