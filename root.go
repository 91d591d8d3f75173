package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that load configuration themselves
// because they must work before a host is known (login, runs).
const skipConfigAnnotation = "skipConfig"

// logFilePerms is used when creating logging.log_file.
const logFilePerms = 0o600

// errFoldersFailed signals that a run finished but some folders did not.
// main maps it to exit code 2 without printing it again.
var errFoldersFailed = errors.New("some folders failed")

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	Host       string
	Port       int
	Username   string
	Password   string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and carried
// on the command's context.
type CLIContext struct {
	Flags  CLIFlags
	Env    config.EnvOverrides
	Cfg    *config.Config // nil for commands with skipConfigAnnotation
	Logger *slog.Logger

	logFile io.Closer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. It
// panics if called from a command that bypassed the root command.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("casefill: CLIContext missing from command context")
	}

	return cc
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:   "casefill",
		Short: "Fill case folders to a target document count",
		Long: `casefill brings every folder of one or more Caramel cases to a target
document count by sampling random case documents into each folder, and
reports or clears folders afterwards.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, *flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if cc.logFile != nil {
				return cc.logFile.Close()
			}

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Host, "host", "", "Caramel host name (env "+config.EnvHost+")")
	pf.IntVarP(&flags.Port, "port", "p", 0, "Caramel port (env "+config.EnvPort+")")
	pf.StringVarP(&flags.Username, "user-name", "u", "", "user name (env "+config.EnvUsername+")")
	pf.StringVarP(&flags.Password, "password", "w", "", "password (env "+config.EnvPassword+")")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newFillCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newRunsCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext reads the environment, resolves configuration unless the
// command opts out, and builds the logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	env, err := config.ReadEnvOverrides()
	if err != nil {
		return nil, err
	}

	cc := &CLIContext{Flags: flags, Env: env}

	var logging config.LoggingConfig

	if cmd.Annotations[skipConfigAnnotation] == "" {
		cfg, err := config.Resolve(env, cliOverrides(cmd, flags))
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = cfg
		logging = cfg.Logging
	}

	logger, closer, err := buildLogger(logging, flags, os.Stderr)
	if err != nil {
		return nil, err
	}

	cc.Logger = logger
	cc.logFile = closer

	return cc, nil
}

// cliOverrides passes only the flags the user explicitly set, so an unset
// flag never masks a value from a lower layer.
func cliOverrides(cmd *cobra.Command, flags CLIFlags) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	if cmd.Flags().Changed("host") {
		cli.Host = &flags.Host
	}

	if cmd.Flags().Changed("port") {
		cli.Port = &flags.Port
	}

	if cmd.Flags().Changed("user-name") {
		cli.Username = &flags.Username
	}

	if cmd.Flags().Changed("password") {
		cli.Password = &flags.Password
	}

	return cli
}

// buildLogger creates an slog.Logger from the logging config and CLI
// flags. The config level is the baseline; --verbose and --quiet override
// it. When log_file is set the returned Closer must be closed.
func buildLogger(lc config.LoggingConfig, flags CLIFlags, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo

	switch lc.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	var (
		out    = stderr
		closer io.Closer
	)

	if lc.LogFile != "" {
		f, err := os.OpenFile(lc.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}

	if lc.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts)), closer, nil
	}

	return slog.New(slog.NewTextHandler(out, opts)), closer, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
