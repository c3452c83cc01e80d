package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/mop/internal/cli/ui"
	"github.com/conduit-lang/mop/internal/watch"
)

func newCheckCommand(s *session) *cobra.Command {
	var (
		watchFiles bool
		metrics    bool
	)

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Load declaration files and report every rejected declaration",
		Long: `Load declaration files in order and report every declaration that could
not be composed: unknown parents or roles, role conflicts, missing
requirements, bad modifiers and invalid attribute options.

Examples:
  mop check shapes.yaml
  mop check roles.yaml classes.yaml --metrics
  mop check decls/ --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics") {
				metrics = s.cfg.Metrics
			}
			out := cmd.OutOrStdout()

			err := runCheck(out, s, args, metrics)
			if !watchFiles {
				return err
			}
			if err != nil && !isDeclarationFailure(err) {
				return err
			}
			return watchCheck(cmd, s, args, metrics)
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "re-check whenever a file changes")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print Prometheus metrics for the run")

	return cmd
}

// errDeclarations reports that check found rejected declarations; the
// details were already printed.
type errDeclarations struct{ count int }

func (e errDeclarations) Error() string {
	if e.count == 1 {
		return "1 declaration rejected"
	}
	return fmt.Sprintf("%d declarations rejected", e.count)
}

func isDeclarationFailure(err error) bool {
	_, ok := err.(errDeclarations)
	return ok
}

func runCheck(out io.Writer, s *session, files []string, metrics bool) error {
	ws, err := loadWorkspace(s.logger, files, s.cfg.Watch.Patterns)
	if err != nil {
		return err
	}

	if ws.errors.HasErrors() {
		ui.WriteDeclarationErrors(out, ws.errors, s.plain())
		fmt.Fprintln(out)
	}
	if metrics {
		if err := ws.metrics.WriteText(out); err != nil {
			return err
		}
	}
	if ws.errors.HasErrors() {
		return errDeclarations{count: len(ws.errors)}
	}

	ui.WriteSuccess(out, fmt.Sprintf("%d declarations loaded from %d files", ws.declared, len(ws.files)), s.plain())
	return nil
}

func watchCheck(cmd *cobra.Command, s *session, paths []string, metrics bool) error {
	out := cmd.OutOrStdout()
	fw, err := watch.NewFileWatcher(paths, watch.Options{
		Debounce: s.cfg.Watch.Debounce,
		Patterns: s.cfg.Watch.Patterns,
		Logger:   s.logger,
	}, func([]string) error {
		fmt.Fprintln(out)
		err := runCheck(out, s, paths, metrics)
		if err != nil && !isDeclarationFailure(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("watching declarations", zap.Strings("paths", paths))
	fmt.Fprint(out, ui.FormatError(ui.ErrorOptions{
		Level:   ui.ErrorLevelInfo,
		Problem: "Watching for changes, press Ctrl+C to stop",
		NoColor: s.plain(),
	}))
	return fw.Run(cmd.Context())
}
