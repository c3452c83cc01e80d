package mop

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a class of failure raised by the object model.
type ErrorCode string

const (
	// Declaration errors (MOP1xx)

	// CodeDuplicateName indicates a name declared twice directly in one stem.
	CodeDuplicateName ErrorCode = "MOP100"
	// CodeInvalidDeclaration indicates a malformed declaration (unknown attribute
	// option, bad access mode, requires on a class, ...).
	CodeInvalidDeclaration ErrorCode = "MOP101"

	// Composition errors (MOP2xx)

	// CodeCompositionConflict indicates a method supplied by several roles at the
	// same level with no explicit definition at the composing level.
	CodeCompositionConflict ErrorCode = "MOP200"
	// CodeMissingRequirement indicates a role requirement with no method in the class.
	CodeMissingRequirement ErrorCode = "MOP201"
	// CodeUnresolvedConflict indicates a read of a conflict marker.
	CodeUnresolvedConflict ErrorCode = "MOP202"
	// CodeNotInnable indicates augment of a method that is not an extension point.
	CodeNotInnable ErrorCode = "MOP203"
	// CodeRoleNotComposed indicates removal of a role that is not composed.
	CodeRoleNotComposed ErrorCode = "MOP204"

	// Runtime errors (MOP3xx)

	// CodeNotFound indicates a lookup miss.
	CodeNotFound ErrorCode = "MOP300"
	// CodeNotInstantiable indicates construction of a role or module.
	CodeNotInstantiable ErrorCode = "MOP301"
	// CodeRequiredAttribute indicates a required attribute left without a value.
	CodeRequiredAttribute ErrorCode = "MOP302"
	// CodeBadConstructorArgs indicates BUILD could not turn the arguments into a mapping.
	CodeBadConstructorArgs ErrorCode = "MOP303"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrDuplicateName       = &Error{Code: CodeDuplicateName}
	ErrInvalidDeclaration  = &Error{Code: CodeInvalidDeclaration}
	ErrCompositionConflict = &Error{Code: CodeCompositionConflict}
	ErrMissingRequirement  = &Error{Code: CodeMissingRequirement}
	ErrUnresolvedConflict  = &Error{Code: CodeUnresolvedConflict}
	ErrNotInnable          = &Error{Code: CodeNotInnable}
	ErrRoleNotComposed     = &Error{Code: CodeRoleNotComposed}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrNotInstantiable     = &Error{Code: CodeNotInstantiable}
	ErrRequiredAttribute   = &Error{Code: CodeRequiredAttribute}
	ErrBadConstructorArgs  = &Error{Code: CodeBadConstructorArgs}
)

// Error is the single error type raised by the object model. Fields other than
// Code and Message are filled in when they apply.
type Error struct {
	Code    ErrorCode
	Message string

	// Type is the class, role or module being declared or operated on.
	Type string

	// Name is the offending property, attribute or role name.
	Name string

	// Names lists every offending name for errors that aggregate several.
	Names []string

	// Sources are the labels of the types that contributed to the failure.
	Sources []string

	// Conflicts holds every unresolved marker for CodeCompositionConflict.
	Conflicts []Conflict

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Type != "" {
		fmt.Fprintf(&b, " [%s]", e.Type)
	}
	b.WriteString(": ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Code.Title())
	}
	if len(e.Conflicts) > 0 {
		parts := make([]string, 0, len(e.Conflicts))
		for _, c := range e.Conflicts {
			parts = append(parts, fmt.Sprintf("%s (from %s)", c.Name, strings.Join(c.Sources, ", ")))
		}
		fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
	} else if len(e.Sources) > 0 {
		fmt.Fprintf(&b, " (from %s)", strings.Join(e.Sources, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Title returns a short human readable name for the code.
func (c ErrorCode) Title() string {
	switch c {
	case CodeDuplicateName:
		return "duplicate name"
	case CodeInvalidDeclaration:
		return "invalid declaration"
	case CodeCompositionConflict:
		return "composition conflict"
	case CodeMissingRequirement:
		return "missing requirement"
	case CodeUnresolvedConflict:
		return "unresolved conflict"
	case CodeNotInnable:
		return "method is not innable"
	case CodeRoleNotComposed:
		return "role not composed"
	case CodeNotFound:
		return "not found"
	case CodeNotInstantiable:
		return "not instantiable"
	case CodeRequiredAttribute:
		return "required attribute missing"
	case CodeBadConstructorArgs:
		return "bad constructor arguments"
	default:
		return "unknown error"
	}
}

func duplicateName(kind Kind, name, source string) *Error {
	return &Error{
		Code:    CodeDuplicateName,
		Message: fmt.Sprintf("%s %q declared more than once", kind, name),
		Name:    name,
		Sources: sourceList(source),
	}
}

func notFound(kind Kind, name string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, name),
		Name:    name,
	}
}

func invalidDeclaration(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidDeclaration,
		Message: fmt.Sprintf(format, args...),
	}
}

func sourceList(source string) []string {
	if source == "" {
		return nil
	}
	return []string{source}
}

// withType stamps the declaring type onto a core error that does not carry one yet.
func withType(err error, typeName string) error {
	if e, ok := err.(*Error); ok && e.Type == "" {
		e.Type = typeName
	}
	return err
}
