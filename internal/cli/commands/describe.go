package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/mop/internal/cli/config"
	"github.com/conduit-lang/mop/internal/cli/ui"
	"github.com/conduit-lang/mop/pkg/mop"
)

func newDescribeCommand(s *session) *cobra.Command {
	var (
		typeName string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "describe FILE... --type NAME",
		Short: "Show the composed attributes, methods, requirements and modifiers of a type",
		Long: `Load declaration files and show what a class, role or module ended up with
after composition: every attribute with its access mode and default, every
method with the type that supplied it, residual requirements of roles,
method modifiers in application order, composed roles and the superclass.

Examples:
  mop describe shapes.yaml --type Circle
  mop describe shapes.yaml --type Shapes.Circle --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = s.cfg.Format
			}
			if format != config.FormatTable && format != config.FormatJSON {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}

			ws, err := loadWorkspace(s.logger, args, s.cfg.Watch.Patterns)
			if err != nil {
				return err
			}
			t, ok := ws.lookup(typeName)
			if !ok {
				fmt.Fprint(cmd.ErrOrStderr(), ui.TypeNotFoundError(typeName, ui.FindSimilar(typeName, ws.typeNames()), s.plain()))
				return errTypeNotFound{name: typeName}
			}

			d := describeType(t.Meta())
			if format == config.FormatJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			renderDescription(cmd.OutOrStdout(), d, s.plain())
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "name of the class, role or module")
	cmd.Flags().StringVarP(&format, "format", "f", config.FormatTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

type typeDescription struct {
	Name         string                   `json:"name"`
	Kind         string                   `json:"kind"`
	Generation   uint64                   `json:"generation"`
	Superclass   string                   `json:"superclass,omitempty"`
	Roles        []string                 `json:"roles"`
	Attributes   []attributeDescription   `json:"attributes"`
	Methods      []methodDescription      `json:"methods"`
	Requirements []requirementDescription `json:"requirements"`
	Modifiers    []modifierDescription    `json:"modifiers"`
}

type attributeDescription struct {
	Name     string `json:"name"`
	Access   string `json:"access"`
	Init     string `json:"init,omitempty"`
	Lazy     bool   `json:"lazy,omitempty"`
	Required bool   `json:"required,omitempty"`
	Source   string `json:"source"`
}

type methodDescription struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Innable  bool   `json:"innable,omitempty"`
	Accessor bool   `json:"accessor,omitempty"`
}

type requirementDescription struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type modifierDescription struct {
	Kind   string `json:"kind"`
	Method string `json:"method"`
	Source string `json:"source"`
}

func describeType(m *mop.Meta) typeDescription {
	d := typeDescription{
		Name:         m.Name(),
		Kind:         m.Kind().String(),
		Generation:   m.Generation(),
		Roles:        []string{},
		Attributes:   []attributeDescription{},
		Methods:      []methodDescription{},
		Requirements: []requirementDescription{},
		Modifiers:    []modifierDescription{},
	}
	if super := m.Superclass(); super != nil {
		d.Superclass = super.Name()
	}
	for _, r := range m.Roles() {
		d.Roles = append(d.Roles, r.Name())
	}
	for a := range m.Attributes() {
		d.Attributes = append(d.Attributes, attributeDescription{
			Name:     a.Name(),
			Access:   a.Access().String(),
			Init:     initString(a.Init()),
			Lazy:     a.Lazy(),
			Required: a.Required(),
			Source:   a.Source(),
		})
	}
	for meth := range m.Methods() {
		d.Methods = append(d.Methods, methodDescription{
			Name:     meth.Name(),
			Source:   meth.Source(),
			Innable:  meth.Innable(),
			Accessor: meth.Accessor(),
		})
	}
	for r := range m.Requirements() {
		d.Requirements = append(d.Requirements, requirementDescription{Name: r.Name(), Source: r.Source()})
	}
	for mod := range m.Modifiers() {
		d.Modifiers = append(d.Modifiers, modifierDescription{
			Kind:   mod.ModifierKind().String(),
			Method: mod.Name(),
			Source: mod.Source(),
		})
	}
	return d
}

// initString renders a default for display. Initializers are computed per
// instance and have no static value.
func initString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case mop.Initializer:
		return "(computed)"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

func renderDescription(w io.Writer, d typeDescription, noColor bool) {
	ui.Header(w, d.Name, noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("Kind", d.Kind)
	kv.AddRow("Generation", strconv.FormatUint(d.Generation, 10))
	if d.Superclass != "" {
		kv.AddRow("Superclass", d.Superclass)
	}
	if len(d.Roles) > 0 {
		kv.AddRow("Roles", strings.Join(d.Roles, ", "))
	}
	kv.Render()

	if len(d.Attributes) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "Attribute", "Access", "Init", "Flags", "Source")
		for _, a := range d.Attributes {
			table.AddRow(a.Name, a.Access, a.Init, flags(a.Lazy, "lazy", a.Required, "required"), a.Source)
		}
		table.Render()
	}

	if len(d.Methods) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "Method", "Flags", "Source")
		for _, m := range d.Methods {
			table.AddRow(m.Name, flags(m.Innable, "innable", m.Accessor, "accessor"), m.Source)
		}
		table.Render()
	}

	if len(d.Requirements) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "Requires", "Source")
		for _, r := range d.Requirements {
			table.AddRow(r.Name, r.Source)
		}
		table.Render()
	}

	if len(d.Modifiers) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "Modifier", "Method", "Source")
		for _, m := range d.Modifiers {
			table.AddRow(m.Kind, m.Method, m.Source)
		}
		table.Render()
	}
}

func flags(a bool, aName string, b bool, bName string) string {
	var out []string
	if a {
		out = append(out, aName)
	}
	if b {
		out = append(out, bName)
	}
	return strings.Join(out, ",")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
