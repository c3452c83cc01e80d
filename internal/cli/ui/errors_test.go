package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/mop/internal/decl"
	"github.com/conduit-lang/mop/pkg/mop"
)

func TestFormatError(t *testing.T) {
	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name:     "with context",
			opts:     ErrorOptions{Context: "TYPE NOT FOUND", Problem: "No type 'Pnt'."},
			contains: []string{"✗ TYPE NOT FOUND: No type 'Pnt'."},
		},
		{
			name:     "with location",
			opts:     ErrorOptions{Problem: "bad", Location: "a.yaml:3:1"},
			contains: []string{"✗ bad", "   a.yaml:3:1"},
		},
		{
			name:     "with suggestions",
			opts:     ErrorOptions{Problem: "bad", Suggestions: []string{"Point", "Paint"}},
			contains: []string{"Did you mean: Point, Paint?"},
		},
		{
			name:     "with help commands",
			opts:     ErrorOptions{Problem: "bad", HelpCommands: []string{"Get help: mop --help"}},
			contains: []string{"→ Get help: mop --help"},
		},
		{
			name:     "warning",
			opts:     ErrorOptions{Level: ErrorLevelWarning, Problem: "careful"},
			contains: []string{"! careful"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			out := FormatError(tt.opts)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestDeclarationErrors(t *testing.T) {
	list := decl.ErrorList{
		{Code: mop.CodeMissingRequirement, File: "shapes.yaml", Line: 4, Column: 3, Entry: "class Circle", Message: "missing area"},
		{Code: mop.CodeNotFound, File: "shapes.yaml", Line: 9, Column: 3, Message: "type Nope is not declared"},
	}

	var buf bytes.Buffer
	WriteDeclarationErrors(&buf, list, true)

	want := "✗ MOP201 class Circle: missing area\n" +
		"   shapes.yaml:4:3\n" +
		"\n" +
		"✗ MOP300: type Nope is not declared\n" +
		"   shapes.yaml:9:3\n"
	assert.Equal(t, want, buf.String())
}

func TestTypeNotFoundError(t *testing.T) {
	out := TypeNotFoundError("Pont", []string{"Point"}, true)
	assert.Contains(t, out, "TYPE NOT FOUND")
	assert.Contains(t, out, "Did you mean: Point?")
}

func TestSuccessAndWarning(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "3 declarations loaded", true)
	assert.Equal(t, "✓ 3 declarations loaded\n", buf.String())
	assert.Contains(t, Warning("no files", true), "! no files")
}
