package mop

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Meta is the reflective handle of a type. Every read goes to the type's
// current generation, so a Meta obtained before an Extend sees its effects.
type Meta struct {
	core *core
	self Type
}

// Name returns the type name.
func (m *Meta) Name() string { return m.core.name }

// Kind returns the kind of the described type.
func (m *Meta) Kind() TypeKind { return m.core.kind }

// Type returns the described type.
func (m *Meta) Type() Type { return m.self }

// Generation counts successful compositions of the type, starting at 1.
func (m *Meta) Generation() uint64 { return m.core.load().generation }

// Stem returns the current effective stem. Its modifiers are the ones
// Modifiers iterates.
func (m *Meta) Stem() *Stem { return m.core.load().effective }

// OwnStem returns what the type itself declared, extensions included.
func (m *Meta) OwnStem() *Stem { return m.core.load().own }

// Attributes iterates the effective attributes. The sequence is restartable
// and reads the current generation each time it starts.
func (m *Meta) Attributes() iter.Seq[*Attribute] {
	return func(yield func(*Attribute) bool) {
		for p := range m.core.load().effective.Attributes.All() {
			if !yield(p.(*Attribute)) {
				return
			}
		}
	}
}

// Methods iterates the effective methods, accessors included.
func (m *Meta) Methods() iter.Seq[*Method] {
	return func(yield func(*Method) bool) {
		for p := range m.core.load().effective.Methods.All() {
			if !yield(p.(*Method)) {
				return
			}
		}
	}
}

// Requirements iterates unsatisfied requirements. Only roles have any.
func (m *Meta) Requirements() iter.Seq[*Requirement] {
	return func(yield func(*Requirement) bool) {
		for p := range m.core.load().effective.Requirements.All() {
			if !yield(p.(*Requirement)) {
				return
			}
		}
	}
}

// Modifiers iterates the modifiers wrapping the effective methods: those
// inherited from the superclass that still apply, then the roles', then the
// type's own.
func (m *Meta) Modifiers() iter.Seq[*Modifier] {
	return func(yield func(*Modifier) bool) {
		m.core.load().effective.Modifiers.All()(yield)
	}
}

// FindAttribute returns the effective attribute called name.
func (m *Meta) FindAttribute(name string) (*Attribute, error) {
	p, err := m.core.load().effective.Attributes.Get(name)
	if err != nil {
		return nil, withType(err, m.core.name)
	}
	return p.(*Attribute), nil
}

// FindMethod returns the effective method called name.
func (m *Meta) FindMethod(name string) (*Method, error) {
	p, err := m.core.load().effective.Methods.Get(name)
	if err != nil {
		return nil, withType(err, m.core.name)
	}
	return p.(*Method), nil
}

func (m *Meta) HasAttribute(name string) bool {
	return m.core.load().effective.Attributes.Has(name)
}

func (m *Meta) HasMethod(name string) bool {
	return m.core.load().effective.Methods.Has(name)
}

// Superclass returns the direct superclass, or nil for roles, modules and the root.
func (m *Meta) Superclass() *Class { return m.core.load().parent }

// Roles returns the directly composed roles in composition order.
func (m *Meta) Roles() []*Role {
	st := m.core.load()
	out := make([]*Role, 0, len(st.roles))
	for _, ref := range st.roles {
		out = append(out, ref.role)
	}
	return out
}

// Does reports whether r is composed into the type, directly, through another
// role or through a superclass.
func (m *Meta) Does(r *Role) bool {
	if r == nil {
		return false
	}
	if m.self == Type(r) {
		return true
	}
	return m.core.load().does(r)
}

// IsA reports whether the type is c or derives from it.
func (m *Meta) IsA(c *Class) bool {
	if c == nil {
		return false
	}
	if m.self == Type(c) {
		return true
	}
	for st := m.core.load(); st != nil && st.parent != nil; st = st.parentSnap {
		if st.parent == c {
			return true
		}
	}
	return false
}

// Extend adds properties to the type, composes or removes roles and swaps in
// the recomposed result. Extending a class recomposes its subclasses, detached
// ones included, on top of the result, and existing instances of all of them
// observe the new dispatch table. Types that composed a role keep the
// snapshot they were built from. If any recomposition fails nothing changes.
//
// Isa cannot be changed; Requires is valid for roles only; DoesNot names roles
// that must currently be composed directly, else ErrRoleNotComposed.
func (m *Meta) Extend(spec Spec) error {
	return m.core.builder.extend(m.core, m.self, spec)
}

func (b *Builder) extend(c *core, self Type, spec Spec) error {
	start := time.Now()
	err := b.recompose(c, spec)
	if err != nil {
		err = withType(err, c.name)
		b.observer.CompositionFailed(c.kind, c.name, err)
		b.logger.Warn("extension rejected",
			zap.Stringer("kind", c.kind),
			zap.String("type", c.name),
			zap.Error(err))
		return err
	}

	b.observer.TypeExtended(c.kind, c.name, c.load().generation, time.Since(start))
	b.logger.Debug("type extended",
		append(stemFields(c.meta), zap.Duration("elapsed", time.Since(start)))...)

	if spec.Body != nil {
		if err := spec.Body(self); err != nil {
			return fmt.Errorf("%s %s: body: %w", c.kind, c.name, err)
		}
	}
	return nil
}

func (b *Builder) recompose(c *core, spec Spec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.kind == ModuleType:
		return invalidDeclaration("modules cannot be extended")
	case spec.Isa != nil:
		return invalidDeclaration("the superclass cannot be changed by an extension")
	case c.kind == ClassType && len(spec.Requires) > 0:
		return invalidDeclaration("requires is only valid for roles")
	case c.kind == RoleType && spec.Constructor != nil:
		return invalidDeclaration("roles cannot declare a constructor")
	}

	cur := c.load()
	add, err := BuildStem(c.name, spec)
	if err != nil {
		return err
	}
	own := cur.own.overlay(add, c.name)

	refs := slices.Clone(cur.roles)
	for _, r := range spec.DoesNot {
		i := slices.IndexFunc(refs, func(ref roleRef) bool { return ref.role == r })
		if i < 0 {
			name := "<nil>"
			if r != nil {
				name = r.name
			}
			return &Error{
				Code:    CodeRoleNotComposed,
				Message: fmt.Sprintf("role %s is not composed directly", name),
				Name:    name,
			}
		}
		refs = slices.Delete(refs, i, i+1)
	}
	added, err := roleRefs(spec.Does)
	if err != nil {
		return err
	}
	for _, ref := range added {
		if !slices.ContainsFunc(refs, func(have roleRef) bool { return have.role == ref.role }) {
			refs = append(refs, ref)
		}
	}

	next, err := b.composeState(c.kind, c.name, own, cur.parent, cur.parentSnap, refs)
	if err != nil {
		return err
	}
	next.generation = cur.generation + 1
	next.constructor = cur.constructor
	if spec.Constructor != nil {
		next.constructor = spec.Constructor
	}

	var locked []*core
	defer func() {
		for _, l := range slices.Backward(locked) {
			l.mu.Unlock()
		}
	}()
	updates, err := b.rebase(c, next, &locked)
	if err != nil {
		return err
	}

	c.current.Store(next)
	for _, u := range updates {
		u.core.current.Store(u.state)
		b.logger.Debug("subclass recomposed",
			zap.String("type", u.core.name),
			zap.String("extended", c.name),
			zap.Uint64("generation", u.state.generation))
	}
	return nil
}

// update is a recomposed subclass state waiting to be stored.
type update struct {
	core  *core
	state *state
}

// rebase recomposes every live subclass of c on top of next, depth first.
// Subclasses are locked before they are read and appended to locked; the
// caller unlocks them once the updates are stored or dropped. c.mu is held.
func (b *Builder) rebase(c *core, next *state, locked *[]*core) ([]update, error) {
	var updates []update
	for _, sub := range c.subclasses() {
		sub.mu.Lock()
		*locked = append(*locked, &sub.core)

		cur := sub.load()
		st, err := b.composeState(ClassType, sub.name, cur.own, cur.parent, next, cur.roles)
		if err != nil {
			return nil, fmt.Errorf("subclass %s: %w", sub.name, withType(err, sub.name))
		}
		st.generation = cur.generation + 1
		st.constructor = cur.constructor
		updates = append(updates, update{core: &sub.core, state: st})

		below, err := b.rebase(&sub.core, st, locked)
		if err != nil {
			return nil, err
		}
		updates = append(updates, below...)
	}
	return updates, nil
}
