package mop

import (
	"fmt"
	"maps"
)

// Pseudo-options recognised in the mapping BUILD returns. They are removed
// before attribute initialization.
const (
	TraitOption    = "trait"
	TraitsOption   = "traits"
	DetachedOption = "detached"
)

// Constructor replaces the construction workflow of a class. It may call
// class.DefaultConstruct to run the default one.
type Constructor func(class *Class, args ...any) (any, error)

// Construct runs the class's constructor, or DefaultConstruct when it has none.
func (c *Class) Construct(args ...any) (any, error) {
	if ctor := c.load().constructor; ctor != nil {
		return ctor(c, args...)
	}
	return c.DefaultConstruct(args...)
}

// New constructs an instance. It fails if a custom constructor or initialize
// returned something else.
func (c *Class) New(args ...any) (*Instance, error) {
	v, err := c.Construct(args...)
	if err != nil {
		return nil, err
	}
	inst, ok := v.(*Instance)
	if !ok {
		return nil, fmt.Errorf("%s: constructor returned %T, not an instance", c.name, v)
	}
	return inst, nil
}

// DefaultConstruct runs BUILD on the arguments, derives an anonymous subclass
// when the resulting mapping asks for traits or detached, initializes every
// attribute and finally calls initialize with the mapping. A non-nil result
// of initialize is returned in place of the instance.
//
// Attribute initialization order is unspecified. An initializer that reads
// another attribute belongs on a lazy attribute.
func (c *Class) DefaultConstruct(args ...any) (any, error) {
	inst := newInstance(c)

	raw, err := inst.Call("BUILD", args...)
	if err != nil {
		return nil, err
	}
	props, err := propertyMapping(c.name, raw)
	if err != nil {
		return nil, err
	}

	traits, detached, props, err := takePseudoOptions(c.name, props)
	if err != nil {
		return nil, err
	}
	if detached || len(traits) > 0 {
		anon, err := c.builder.detach(c, traits)
		if err != nil {
			return nil, err
		}
		inst.class = anon
	}

	if err := inst.initAttributes(props); err != nil {
		return nil, err
	}

	result, err := inst.Call("initialize", props)
	if err != nil {
		return nil, err
	}
	c.builder.observer.InstanceConstructed(c.name)
	if result != nil {
		return result, nil
	}
	return inst, nil
}

// Detach moves the instance onto a fresh anonymous subclass of its class
// composing traits, so later extensions affect it alone.
func (i *Instance) Detach(traits ...*Role) error {
	anon, err := i.class.builder.detach(i.class, traits)
	if err != nil {
		return err
	}
	i.class = anon
	return i.initNewAttributes()
}

func (i *Instance) initAttributes(props map[string]any) error {
	for attr := range i.class.Meta().Attributes() {
		if v, ok := props[attr.name]; ok {
			i.slots[attr.name] = v
			continue
		}
		// a lazy slot forced by another attribute's initializer
		if _, done := i.slots[attr.name]; done {
			continue
		}
		if err := i.initDefault(attr); err != nil {
			return err
		}
	}
	return nil
}

// initNewAttributes fills slots for attributes the class gained since the
// instance was built.
func (i *Instance) initNewAttributes() error {
	for attr := range i.class.Meta().Attributes() {
		if i.Has(attr.name) {
			continue
		}
		if err := i.initDefault(attr); err != nil {
			return err
		}
	}
	return nil
}

func (i *Instance) initDefault(attr *Attribute) error {
	switch {
	case attr.lazy:
		i.lazy[attr.name] = attr
	case attr.init != nil:
		v, err := attr.defaultValue(i)
		if err != nil {
			return err
		}
		i.slots[attr.name] = v
	case attr.required:
		return &Error{
			Code:    CodeRequiredAttribute,
			Message: fmt.Sprintf("attribute %q is required", attr.name),
			Type:    i.class.name,
			Name:    attr.name,
		}
	default:
		i.slots[attr.name] = nil
	}
	return nil
}

// defaultBuild accepts no arguments or a single property mapping.
func defaultBuild(c *Call) (any, error) {
	switch len(c.Args) {
	case 0:
		return map[string]any{}, nil
	case 1:
		switch v := c.Args[0].(type) {
		case nil:
			return map[string]any{}, nil
		case map[string]any:
			return v, nil
		}
	}
	return nil, &Error{
		Code:    CodeBadConstructorArgs,
		Message: fmt.Sprintf("default BUILD expects a single property mapping, got %d argument(s)", len(c.Args)),
		Type:    c.Self.class.name,
	}
}

func defaultInitialize(*Call) (any, error) {
	return nil, nil
}

func propertyMapping(class string, raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	return nil, &Error{
		Code:    CodeBadConstructorArgs,
		Message: fmt.Sprintf("BUILD must return a property mapping, got %T", raw),
		Type:    class,
	}
}

// takePseudoOptions strips trait, traits and detached from props. The caller's
// mapping is copied before anything is removed.
func takePseudoOptions(class string, props map[string]any) ([]*Role, bool, map[string]any, error) {
	_, hasTrait := props[TraitOption]
	_, hasTraits := props[TraitsOption]
	_, hasDetached := props[DetachedOption]
	if !hasTrait && !hasTraits && !hasDetached {
		return nil, false, props, nil
	}

	out := maps.Clone(props)
	var traits []*Role
	for _, key := range []string{TraitOption, TraitsOption} {
		roles, err := rolesOption(class, key, out[key])
		if err != nil {
			return nil, false, nil, err
		}
		traits = append(traits, roles...)
		delete(out, key)
	}

	detached := false
	if v, ok := out[DetachedOption]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, false, nil, &Error{
				Code:    CodeBadConstructorArgs,
				Message: fmt.Sprintf("%s must be a bool, got %T", DetachedOption, v),
				Type:    class,
			}
		}
		detached = b
	}
	delete(out, DetachedOption)
	return traits, detached, out, nil
}

func rolesOption(class, key string, v any) ([]*Role, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case *Role:
		return []*Role{r}, nil
	case []*Role:
		return r, nil
	case []any:
		out := make([]*Role, 0, len(r))
		for _, item := range r {
			role, ok := item.(*Role)
			if !ok {
				return nil, &Error{
					Code:    CodeBadConstructorArgs,
					Message: fmt.Sprintf("%s entries must be roles, got %T", key, item),
					Type:    class,
				}
			}
			out = append(out, role)
		}
		return out, nil
	}
	return nil, &Error{
		Code:    CodeBadConstructorArgs,
		Message: fmt.Sprintf("%s must be a role or a list of roles, got %T", key, v),
		Type:    class,
	}
}
