package mop

import (
	"slices"
	"sync"
	"sync/atomic"
	"weak"
)

// TypeKind distinguishes classes, roles and modules.
type TypeKind uint8

const (
	ClassType TypeKind = iota + 1
	RoleType
	ModuleType
)

// String returns the string representation of the type kind
func (k TypeKind) String() string {
	switch k {
	case ClassType:
		return "class"
	case RoleType:
		return "role"
	case ModuleType:
		return "module"
	default:
		return "type"
	}
}

// Type is anything a Builder produces.
type Type interface {
	Name() string
	Kind() TypeKind
	Meta() *Meta
	// Construct runs the construction workflow. Roles and modules fail with
	// ErrNotInstantiable.
	Construct(args ...any) (any, error)
}

// state is one immutable generation of a type. Extending a type stores a new
// state; instances and readers holding the old one are unaffected.
type state struct {
	generation uint64

	own        *Stem
	parent     *Class
	parentSnap *state
	roles      []roleRef

	effective *Stem
	dispatch  map[string]*callable

	constructor Constructor
}

// roleRef is a composed role together with the generation that was composed.
type roleRef struct {
	role *Role
	snap *state
}

// does reports whether r is composed anywhere below this state.
func (s *state) does(r *Role) bool {
	for _, ref := range s.roles {
		if ref.role == r || ref.snap.does(r) {
			return true
		}
	}
	if s.parentSnap != nil {
		return s.parentSnap.does(r)
	}
	return false
}

// core is shared by every kind of type.
type core struct {
	name    string
	kind    TypeKind
	builder *Builder
	meta    *Meta

	// mu serializes Extend; readers only Load current
	mu      sync.Mutex
	current atomic.Pointer[state]

	// subclasses, detached ones included; guarded by mu
	children []weak.Pointer[Class]
}

func (c *core) init(b *Builder, kind TypeKind, name string, self Type, st *state) {
	c.name = name
	c.kind = kind
	c.builder = b
	c.meta = &Meta{core: c, self: self}
	c.current.Store(st)
}

func (c *core) Name() string   { return c.name }
func (c *core) Kind() TypeKind { return c.kind }
func (c *core) Meta() *Meta    { return c.meta }

func (c *core) load() *state { return c.current.Load() }

// adopt records child as a subclass. The caller holds c.mu.
func (c *core) adopt(child *Class) {
	// drop collected classes before growing
	if len(c.children) > 0 && len(c.children) == cap(c.children) {
		c.subclasses()
	}
	c.children = append(c.children, weak.Make(child))
}

// disown forgets child again.
func (c *core) disown(child *Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = slices.DeleteFunc(c.children, func(p weak.Pointer[Class]) bool {
		v := p.Value()
		return v == nil || v == child
	})
}

// subclasses returns the subclasses still alive, dropping collected ones.
// The caller holds c.mu.
func (c *core) subclasses() []*Class {
	out := make([]*Class, 0, len(c.children))
	live := c.children[:0]
	for _, p := range c.children {
		if v := p.Value(); v != nil {
			out = append(out, v)
			live = append(live, p)
		}
	}
	clear(c.children[len(live):])
	c.children = live
	return out
}

// Class is an instantiable type with at most one superclass.
type Class struct {
	core
}

// Role is a composable, non-instantiable bundle of behaviour.
type Role struct {
	core
}

// Construct always fails: roles are not instantiable.
func (r *Role) Construct(...any) (any, error) {
	return nil, notInstantiable(r.Kind(), r.name)
}

// Module is a namespace segment. It owns no properties and cannot be
// constructed, but a class or role may later take its place in a namespace.
type Module struct {
	core
}

// Construct always fails: modules are not instantiable.
func (m *Module) Construct(...any) (any, error) {
	return nil, notInstantiable(m.Kind(), m.name)
}

// Placeholder marks a module as replaceable by a later class or role of the
// same name.
func (m *Module) Placeholder() bool { return true }

func notInstantiable(kind TypeKind, name string) *Error {
	return &Error{
		Code:    CodeNotInstantiable,
		Message: kind.String() + " cannot be instantiated",
		Type:    name,
	}
}

var (
	_ Type = (*Class)(nil)
	_ Type = (*Role)(nil)
	_ Type = (*Module)(nil)
)
