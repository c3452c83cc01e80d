package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/mop/internal/decl"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Location     string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// paint returns a color that honours noColor.
func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// FormatError renders a message with optional location, suggestions and help
// commands:
//
//	✗ MOP201 class Circle: missing requirement
//	   shapes.yaml:12:3
//
//	   Did you mean: Shape?
//
//	   → Describe a type: mop describe FILE --type NAME
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var attr color.Attribute
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		attr, symbol = color.FgYellow, "!"
	case ErrorLevelInfo:
		attr, symbol = color.FgCyan, "i"
	default:
		attr, symbol = color.FgRed, "✗"
	}
	header := paint(opts.NoColor, attr, color.Bold)
	body := paint(opts.NoColor, attr)

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, opts.Context, opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}
	if opts.Location != "" {
		body.Fprintf(&b, "   %s\n", opts.Location)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		paint(opts.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := paint(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	return paint(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// DeclarationError renders one rejected declaration.
func DeclarationError(err *decl.Error, noColor bool) string {
	context := string(err.Code)
	if err.Entry != "" {
		context += " " + err.Entry
	}
	return FormatError(ErrorOptions{
		Level:    ErrorLevelError,
		Context:  context,
		Problem:  err.Message,
		Location: fmt.Sprintf("%s:%d:%d", err.File, err.Line, err.Column),
		NoColor:  noColor,
	})
}

// WriteDeclarationErrors writes every error of list, separated by blank lines.
func WriteDeclarationErrors(w io.Writer, list decl.ErrorList, noColor bool) {
	for i, err := range list {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, DeclarationError(err, noColor))
	}
}

// TypeNotFoundError reports a type name that nothing declared.
func TypeNotFoundError(name string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "TYPE NOT FOUND",
		Problem:     fmt.Sprintf("No class, role or module named '%s'.", name),
		Suggestions: suggestions,
		HelpCommands: []string{
			"Check declarations: mop check FILE...",
			"Get help: mop describe --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
