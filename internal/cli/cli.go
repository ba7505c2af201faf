// internal/cli/cli.go
// Package cli implements campusctl, a terminal client for CampusDesk that
// talks to either the hosted BaaS or the self-hosted API, keeps the API
// token and the school and year selection in a state file, and works on
// the roster of the selected year.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

var errHelp = errors.New("help provided")

// Options are the process-level inputs Run needs. Zero fields fall back to
// the real process (os.Stdout, os.Getenv, the default state path, ...).
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	Getenv     func(string) string
	HTTPClient *http.Client

	// ReadPassword prompts for a password without echo.
	ReadPassword func() (string, error)
}

// command is one campusctl sub-command.
type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, cl *CommandLine, fs *flag.FlagSet, args []string) error
	flags   func(fs *flag.FlagSet)
}

// CommandLine carries what every command shares once global flags are
// parsed.
type CommandLine struct {
	Out   io.Writer
	Err   io.Writer
	In    io.Reader
	State *State
	Log   *zap.Logger

	getenv       func(string) string
	httpClient   *http.Client
	readPassword func() (string, error)

	client backend.Client
}

// Run executes campusctl with args (without the program name) and returns
// the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()

	global := flag.NewFlagSet("campusctl", flag.ContinueOnError)
	global.SetOutput(opts.Stderr)
	verbose := global.Bool("v", false, "verbose logging to stderr")
	statePath := global.String("state", "", "state file (default: <user config dir>/campusdesk/state.json)")
	global.Usage = func() { printUsage(opts.Stderr, global) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(opts.Stderr, global)
		return ExitUsage
	}

	cmd, ok := commands()[rest[0]]
	if !ok {
		fmt.Fprintf(opts.Stderr, "campusctl: unknown command %q\n\n", rest[0])
		printUsage(opts.Stderr, global)
		return ExitUsage
	}

	logger := zap.NewNop()
	if *verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	path := *statePath
	if path == "" {
		p, err := DefaultStatePath()
		if err != nil {
			fmt.Fprintf(opts.Stderr, "campusctl: %v\n", err)
			return ExitError
		}
		path = p
	}
	state, err := LoadState(path)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "campusctl: %v\n", err)
		return ExitError
	}

	cl := &CommandLine{
		Out:          opts.Stdout,
		Err:          opts.Stderr,
		In:           opts.Stdin,
		State:        state,
		Log:          logger,
		getenv:       opts.Getenv,
		httpClient:   opts.HTTPClient,
		readPassword: opts.ReadPassword,
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(opts.Stderr, "Usage: campusctl %s %s\n  %s\n", cmd.name, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	if err := cmd.run(ctx, cl, fs, fs.Args()); err != nil {
		if errors.Is(err, errHelp) {
			fs.Usage()
			return ExitUsage
		}
		fmt.Fprintf(opts.Stderr, "campusctl %s: %v\n", cmd.name, err)
		if backend.IsKind(err, backend.KindAuth) {
			fmt.Fprintln(opts.Stderr, "hint: run `campusctl login` to sign in to the self-hosted API")
		}
		logger.Debug("command failed", zap.String("command", cmd.name), zap.Error(err))
		return ExitError
	}
	return ExitOK
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.ReadPassword == nil {
		stderr := o.Stderr
		o.ReadPassword = func() (string, error) {
			fmt.Fprint(stderr, "Password: ")
			pwd, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(stderr)
			return string(pwd), err
		}
	}
	return o
}

// Client returns the configured backend, building it on first use.
func (cl *CommandLine) Client() (backend.Client, error) {
	if cl.client != nil {
		return cl.client, nil
	}
	cfg := backend.ConfigFromEnv(cl.getenv)
	cfg.Tokens = cl.State
	cfg.HTTPClient = cl.httpClient
	c, err := backend.Select(cfg)
	if err != nil {
		return nil, err
	}
	cl.Log.Debug("backend selected", zap.String("backend", string(c.Name())))
	cl.client = c
	return c, nil
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: campusctl [-v] [-state FILE] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := cmds[name]
		fmt.Fprintf(w, "  %-12s %s\n", name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	global.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Backend: set %s=true for the self-hosted API (%s),\n", backend.EnvSelfHosted, backend.EnvAPIURL)
	fmt.Fprintf(w, "otherwise %s and %s are used. A .env file is read if present.\n", backend.EnvBaaSURL, backend.EnvBaaSKey)
}

// trimmedArg returns args[i] trimmed, or "".
func trimmedArg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return strings.TrimSpace(args[i])
}
