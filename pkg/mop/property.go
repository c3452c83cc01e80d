package mop

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is the kind of a Property, and of the PropertySet that holds it.
type Kind uint8

const (
	KindAttribute Kind = iota + 1
	KindMethod
	KindRequirement
	KindModifier
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindMethod:
		return "method"
	case KindRequirement:
		return "requirement"
	case KindModifier:
		return "modifier"
	default:
		return "property"
	}
}

// Property is one declared unit of managed state or behaviour. Properties are
// immutable once created; identity is pointer identity.
type Property interface {
	Name() string
	Kind() Kind
	// Source is the label of the type that declared the property.
	Source() string
}

// Func is the body of a method or a method modifier.
type Func func(c *Call) (any, error)

// Method is a plain method declaration.
type Method struct {
	name     string
	source   string
	body     Func
	innable  bool
	accessor bool
}

func newMethod(name, source string, body Func, innable bool) *Method {
	return &Method{name: name, source: source, body: body, innable: innable}
}

func (m *Method) Name() string   { return m.name }
func (m *Method) Kind() Kind     { return KindMethod }
func (m *Method) Source() string { return m.source }

// Body returns the declared body.
func (m *Method) Body() Func { return m.body }

// Innable reports whether the method is an extension point that subclasses may augment.
func (m *Method) Innable() bool { return m.innable }

// Accessor reports whether the method was synthesized for an attribute.
func (m *Method) Accessor() bool { return m.accessor }

// Requirement is a method name a role demands from whatever composes it.
type Requirement struct {
	name   string
	source string
}

func newRequirement(name, source string) *Requirement {
	return &Requirement{name: name, source: source}
}

func (r *Requirement) Name() string   { return r.name }
func (r *Requirement) Kind() Kind     { return KindRequirement }
func (r *Requirement) Source() string { return r.source }

// ModifierKind selects how a modifier wraps its target method.
type ModifierKind uint8

const (
	// BeforeModifier runs ahead of the target; its result is discarded.
	BeforeModifier ModifierKind = iota + 1
	// AfterModifier runs after the target; its result is discarded.
	AfterModifier
	// AroundModifier receives the target through Call.Original and returns its own result.
	AroundModifier
	// OverrideModifier replaces the target and reaches it through Call.Super.
	OverrideModifier
	// AugmentModifier is spliced into an innable target at its Call.Inner point.
	AugmentModifier
)

// String returns the declaration keyword of the modifier kind
func (k ModifierKind) String() string {
	switch k {
	case BeforeModifier:
		return "before"
	case AfterModifier:
		return "after"
	case AroundModifier:
		return "around"
	case OverrideModifier:
		return "override"
	case AugmentModifier:
		return "augment"
	default:
		return "modifier"
	}
}

// ParseModifierKind maps a declaration keyword to its ModifierKind.
func ParseModifierKind(s string) (ModifierKind, bool) {
	switch s {
	case "before":
		return BeforeModifier, true
	case "after":
		return AfterModifier, true
	case "around":
		return AroundModifier, true
	case "override":
		return OverrideModifier, true
	case "augment":
		return AugmentModifier, true
	}
	return 0, false
}

// Modifier wraps the method with the same name without replacing its declaration.
type Modifier struct {
	name   string
	source string
	kind   ModifierKind
	body   Func
}

func newModifier(kind ModifierKind, name, source string, body Func) *Modifier {
	return &Modifier{name: name, source: source, kind: kind, body: body}
}

func (m *Modifier) Name() string   { return m.name }
func (m *Modifier) Kind() Kind     { return KindModifier }
func (m *Modifier) Source() string { return m.source }

// ModifierKind returns how the modifier wraps its target.
func (m *Modifier) ModifierKind() ModifierKind { return m.kind }

// Body returns the modifier body.
func (m *Modifier) Body() Func { return m.body }

// key identifies a direct modifier declaration within one stem.
func (m *Modifier) key() string {
	return m.kind.String() + ":" + m.name
}

// String renders the modifier as "kind name".
func (m *Modifier) String() string {
	return fmt.Sprintf("%s %s", m.kind, m.name)
}

// accessorName builds "getX"/"setX" style names.
func accessorName(prefix, attr string) string {
	if attr == "" {
		return prefix
	}
	r, size := utf8.DecodeRuneInString(attr)
	var b strings.Builder
	b.Grow(len(prefix) + len(attr))
	b.WriteString(prefix)
	b.WriteRune(unicode.ToUpper(r))
	b.WriteString(attr[size:])
	return b.String()
}
