package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/mop/internal/cli/config"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// session is what every subcommand shares once the root's persistent flags
// are parsed.
type session struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger *zap.Logger
}

// load reads configuration and builds the logger. Flags win over mop.yaml
// and the environment.
func (s *session) load(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	if s.noColor {
		cfg.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	s.cfg, s.logger = cfg, logger
	return nil
}

// plain reports whether output must be uncolored.
func (s *session) plain() bool {
	return s.cfg == nil || !s.cfg.Color
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "mop",
		Short: "Declare classes, roles and modules and inspect how they compose",
		Long: color.CyanString(`mop - metaobject toolkit

mop loads YAML declaration files describing classes, roles and modules,
composes them with role conflict and requirement checking, and lets you
inspect the result or construct instances and call their methods.

Declaration entries:
  class   a composable, instantiable type with single inheritance
  role    a reusable unit of behaviour with requirements
  module  a namespace segment
  extend  adds to or removes from an existing type`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.configPath, "config", "", "config file (default ./mop.yaml)")
	flags.StringVar(&s.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&s.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newCheckCommand(s))
	rootCmd.AddCommand(newDescribeCommand(s))
	rootCmd.AddCommand(newRunCommand(s))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the mop version, Git commit, build date, and Go version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)
			for _, row := range [][2]string{
				{"mop version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				titleColor.Fprint(out, row[0])
				fmt.Fprintln(out, row[1])
			}
		},
	}
}

// Execute runs the root command. Cancelling ctx stops `check --watch`.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
