package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/mop/internal/cli/config"
	"github.com/conduit-lang/mop/internal/cli/ui"
	"github.com/conduit-lang/mop/pkg/mop"
)

func newRunCommand(s *session) *cobra.Command {
	var (
		className string
		sets      []string
		method    string
		callArgs  []string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "run FILE... --class NAME",
		Short: "Construct an instance of a declared class and call a method on it",
		Long: `Load declaration files, construct an instance of a class with the given
attribute values and optionally call one method on it. Values are parsed as
YAML, so 3 is a number, true a boolean and [a, b] a list.

Examples:
  mop run shapes.yaml --class Circle --set r=2 --call area
  mop run counter.yaml --class Counter --set name=hits --call bump --format json
  mop run greeter.yaml --class Greeter --call greet --arg world`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = s.cfg.Format
			}
			if format != config.FormatTable && format != config.FormatJSON {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}

			props, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			values, err := parseValues(callArgs)
			if err != nil {
				return err
			}

			ws, err := loadWorkspace(s.logger, args, s.cfg.Watch.Patterns)
			if err != nil {
				return err
			}
			if ws.errors.HasErrors() {
				ui.WriteDeclarationErrors(cmd.ErrOrStderr(), ws.errors, s.plain())
				return errDeclarations{count: len(ws.errors)}
			}

			t, ok := ws.lookup(className)
			if !ok {
				fmt.Fprint(cmd.ErrOrStderr(), ui.TypeNotFoundError(className, ui.FindSimilar(className, ws.typeNames()), s.plain()))
				return errTypeNotFound{name: className}
			}
			class, ok := t.(*mop.Class)
			if !ok {
				return fmt.Errorf("%s is a %s; only classes can be constructed", className, t.Kind())
			}

			inst, err := class.New(props)
			if err != nil {
				return fmt.Errorf("constructing %s: %w", className, err)
			}

			rep := runReport{Class: inst.Class().Name(), ID: inst.ID().String()}
			if method != "" {
				rep.Method = method
				rep.Result, err = inst.Call(method, values...)
				if err != nil {
					return fmt.Errorf("calling %s: %w", method, err)
				}
			}
			rep.Slots = inst.Slots()

			if format == config.FormatJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			renderRun(cmd.OutOrStdout(), rep, s.plain())
			return nil
		},
	}

	cmd.Flags().StringVarP(&className, "class", "c", "", "class to construct")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute value as name=value (repeatable)")
	cmd.Flags().StringVar(&method, "call", "", "method to call on the new instance")
	cmd.Flags().StringArrayVar(&callArgs, "arg", nil, "method argument (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", config.FormatTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

type runReport struct {
	Class  string         `json:"class"`
	ID     string         `json:"id"`
	Slots  map[string]any `json:"slots"`
	Method string         `json:"method,omitempty"`
	Result any            `json:"result,omitempty"`
}

func renderRun(w io.Writer, rep runReport, noColor bool) {
	ui.Header(w, rep.Class, noColor)

	names := make([]string, 0, len(rep.Slots))
	for name := range rep.Slots {
		names = append(names, name)
	}
	slices.Sort(names)

	kv := ui.NewKeyValueTable(w, noColor)
	for _, name := range names {
		kv.AddRow(name, fmt.Sprintf("%v", rep.Slots[name]))
	}
	kv.Render()

	if rep.Method != "" {
		fmt.Fprintln(w)
		ui.WriteSuccess(w, fmt.Sprintf("%s => %v", rep.Method, rep.Result), noColor)
	}
}

// parseAssignments turns name=value pairs into constructor properties.
func parseAssignments(pairs []string) (map[string]any, error) {
	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want name=value", pair)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", name, err)
		}
		props[name] = v
	}
	return props, nil
}

func parseValues(raw []string) ([]any, error) {
	out := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := parseValue(r)
		if err != nil {
			return nil, fmt.Errorf("--arg %q: %w", r, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseValue decodes a flag value as YAML; an empty value is an empty string.
func parseValue(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
