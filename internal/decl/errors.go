package decl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/mop/pkg/mop"
)

// Error is one rejected declaration entry.
type Error struct {
	Code    mop.ErrorCode `json:"code"`
	File    string        `json:"file"`
	Line    int           `json:"line"`
	Column  int           `json:"column"`
	Entry   string        `json:"entry,omitempty"`
	Message string        `json:"message"`
	Err     error         `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Format()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format returns a one-line "file:line:col: CODE entry: message" rendering.
func (e *Error) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s", e.File, e.Line, e.Column, e.Code)
	if e.Entry != "" {
		fmt.Fprintf(&b, " %s", e.Entry)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	return b.String()
}

// ErrorList is a collection of declaration errors
type ErrorList []*Error

// Error implements the error interface
func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	var b strings.Builder
	for i, err := range el {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Format())
	}
	return b.String()
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (el ErrorList) Unwrap() []error {
	out := make([]error, len(el))
	for i, err := range el {
		out[i] = err
	}
	return out
}

// HasErrors returns true if the list contains any errors
func (el ErrorList) HasErrors() bool {
	return len(el) > 0
}

// Err returns the list as an error, or nil when it is empty.
func (el ErrorList) Err() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

// ToJSON returns all errors as a JSON array
func (el ErrorList) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// codeOf picks the object model code out of err, defaulting to an invalid
// declaration.
func codeOf(err error) mop.ErrorCode {
	var mopErr *mop.Error
	if errors.As(err, &mopErr) {
		return mopErr.Code
	}
	return mop.CodeInvalidDeclaration
}
