package mop

import (
	"fmt"
	"sort"
	"strings"
)

// AccessMode controls which accessor methods an attribute synthesizes.
type AccessMode uint8

const (
	// AccessNone synthesizes no accessors; the slot is reached through Instance.Get/Set.
	AccessNone AccessMode = iota
	// AccessRO synthesizes a getter.
	AccessRO
	// AccessRW synthesizes a getter and a setter.
	AccessRW
	// AccessCustom synthesizes accessors under explicitly chosen names.
	AccessCustom
)

// String returns the declaration keyword of the access mode
func (a AccessMode) String() string {
	switch a {
	case AccessRO:
		return "ro"
	case AccessRW:
		return "rw"
	case AccessCustom:
		return "custom"
	default:
		return "none"
	}
}

// ParseAccessMode parses the value of an `is` option.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AccessNone, nil
	case "ro":
		return AccessRO, nil
	case "rw":
		return AccessRW, nil
	}
	return AccessNone, invalidDeclaration("unknown access mode %q (want ro or rw)", s)
}

// Initializer computes an attribute's default for one instance. It is the only
// function type that `init` invokes; any other value is assigned as-is.
type Initializer func(self *Instance) (any, error)

// Attribute describes one slot of instance state.
type Attribute struct {
	name     string
	source   string
	init     any
	access   AccessMode
	getter   string
	setter   string
	lazy     bool
	required bool

	accessors []*Method
}

func (a *Attribute) Name() string   { return a.name }
func (a *Attribute) Kind() Kind     { return KindAttribute }
func (a *Attribute) Source() string { return a.source }

// Init returns the declared default, which may be an Initializer.
func (a *Attribute) Init() any { return a.init }

// Access returns the access mode.
func (a *Attribute) Access() AccessMode { return a.access }

// GetterName returns the synthesized getter name, or "" when there is none.
func (a *Attribute) GetterName() string { return a.getter }

// SetterName returns the synthesized setter name, or "" when there is none.
func (a *Attribute) SetterName() string { return a.setter }

// Lazy reports whether the default is computed on first read.
func (a *Attribute) Lazy() bool { return a.lazy }

// Required reports whether construction must supply a value when there is no default.
func (a *Attribute) Required() bool { return a.required }

// Accessors returns the methods synthesized for this attribute.
func (a *Attribute) Accessors() []*Method { return a.accessors }

func (a *Attribute) defaultValue(self *Instance) (any, error) {
	if init := initializerOf(a.init); init != nil {
		v, err := init(self)
		if err != nil {
			return nil, fmt.Errorf("initializing attribute %q: %w", a.name, err)
		}
		return v, nil
	}
	return a.init, nil
}

func initializerOf(v any) Initializer {
	switch fn := v.(type) {
	case Initializer:
		return fn
	case func(*Instance) (any, error):
		return fn
	}
	return nil
}

// AttributeOptions is the canonical, fully spelled-out attribute declaration.
type AttributeOptions struct {
	Is         AccessMode
	Init       any
	Lazy       bool
	Required   bool
	GetterName string
	SetterName string
}

// attributeOptionKeys are the option names accepted in mapping shorthand.
var attributeOptionKeys = map[string]struct{}{
	"is":         {},
	"init":       {},
	"lazy":       {},
	"required":   {},
	"getterName": {},
	"setterName": {},
}

// NormalizeAttribute turns a shorthand declaration into an Attribute owned by
// source. Accepted forms:
//
//	nil                                    plain slot, no default
//	map[string]any{"is": "ro", "init": v}  option mapping
//	AttributeOptions / *AttributeOptions   canonical form
//	any other value                        shorthand for {init: value}
//
// Unknown mapping keys are an ErrInvalidDeclaration.
func NormalizeAttribute(name, source string, shorthand any) (*Attribute, error) {
	if name == "" {
		return nil, invalidDeclaration("attribute name must not be empty")
	}

	var opts AttributeOptions
	switch v := shorthand.(type) {
	case nil:
	case AttributeOptions:
		opts = v
	case *AttributeOptions:
		if v != nil {
			opts = *v
		}
	case map[string]any:
		parsed, err := parseAttributeMap(name, v)
		if err != nil {
			return nil, err
		}
		opts = parsed
	default:
		opts.Init = v
	}

	if fn, ok := opts.Init.(Initializer); ok && fn == nil {
		opts.Init = nil
	}

	attr := &Attribute{
		name:     name,
		source:   source,
		init:     opts.Init,
		access:   opts.Is,
		lazy:     opts.Lazy,
		required: opts.Required,
	}
	if attr.lazy && attr.init == nil {
		return nil, invalidDeclaration("lazy attribute %q needs an init", name)
	}

	switch {
	case opts.GetterName != "" || opts.SetterName != "":
		attr.access = AccessCustom
		attr.getter = opts.GetterName
		attr.setter = opts.SetterName
	case opts.Is == AccessRO:
		attr.getter = accessorName("get", name)
	case opts.Is == AccessRW:
		attr.getter = accessorName("get", name)
		attr.setter = accessorName("set", name)
	case opts.Is == AccessCustom:
		return nil, invalidDeclaration("attribute %q: custom access needs getterName or setterName", name)
	}
	attr.accessors = buildAccessors(attr)
	return attr, nil
}

func parseAttributeMap(name string, m map[string]any) (AttributeOptions, error) {
	var unknown []string
	for k := range m {
		if _, ok := attributeOptionKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return AttributeOptions{}, invalidDeclaration("attribute %q: unknown option(s) %s",
			name, strings.Join(unknown, ", "))
	}

	var opts AttributeOptions
	if is, ok := m["is"]; ok {
		switch v := is.(type) {
		case AccessMode:
			opts.Is = v
		case string:
			mode, err := ParseAccessMode(v)
			if err != nil {
				return opts, withName(err, name)
			}
			opts.Is = mode
		case nil:
		default:
			return opts, invalidDeclaration("attribute %q: `is` must be a string, got %T", name, is)
		}
	}
	opts.Init = m["init"]

	var err error
	if opts.Lazy, err = boolOption(name, "lazy", m); err != nil {
		return opts, err
	}
	if opts.Required, err = boolOption(name, "required", m); err != nil {
		return opts, err
	}
	if opts.GetterName, err = stringOption(name, "getterName", m); err != nil {
		return opts, err
	}
	if opts.SetterName, err = stringOption(name, "setterName", m); err != nil {
		return opts, err
	}
	return opts, nil
}

func boolOption(attr, key string, m map[string]any) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalidDeclaration("attribute %q: `%s` must be a bool, got %T", attr, key, v)
	}
	return b, nil
}

func stringOption(attr, key string, m map[string]any) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidDeclaration("attribute %q: `%s` must be a string, got %T", attr, key, v)
	}
	return s, nil
}

func withName(err error, name string) error {
	if e, ok := err.(*Error); ok && e.Name == "" {
		e.Name = name
	}
	return err
}

func buildAccessors(attr *Attribute) []*Method {
	var out []*Method
	slot := attr.name
	if attr.getter != "" {
		m := newMethod(attr.getter, attr.source, func(c *Call) (any, error) {
			return c.Self.Get(slot)
		}, false)
		m.accessor = true
		out = append(out, m)
	}
	if attr.setter != "" {
		m := newMethod(attr.setter, attr.source, func(c *Call) (any, error) {
			if len(c.Args) != 1 {
				return nil, fmt.Errorf("%s expects exactly one argument, got %d", c.Method, len(c.Args))
			}
			if err := c.Self.Set(slot, c.Args[0]); err != nil {
				return nil, err
			}
			return c.Self, nil
		}, false)
		m.accessor = true
		out = append(out, m)
	}
	return out
}
