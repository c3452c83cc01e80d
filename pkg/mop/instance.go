package mop

import (
	"maps"

	"github.com/google/uuid"
)

// Instance is an object constructed from a Class. Instances are not safe for
// concurrent use.
type Instance struct {
	id    uuid.UUID
	class *Class
	slots map[string]any
	lazy  map[string]*Attribute
}

func newInstance(c *Class) *Instance {
	return &Instance{
		id:    uuid.New(),
		class: c,
		slots: map[string]any{},
		lazy:  map[string]*Attribute{},
	}
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() uuid.UUID { return i.id }

// Class returns the class the instance was constructed from. For detached
// instances this is the anonymous subclass.
func (i *Instance) Class() *Class { return i.class }

// Meta returns the reflective handle of the instance's class.
func (i *Instance) Meta() *Meta { return i.class.Meta() }

// Get reads a slot, running a pending lazy initializer first. Attributes a
// class gained through an extension after the instance was built have no
// slot until they are Set.
func (i *Instance) Get(name string) (any, error) {
	if v, ok := i.slots[name]; ok {
		return v, nil
	}
	if attr, ok := i.lazy[name]; ok {
		v, err := attr.defaultValue(i)
		if err != nil {
			return nil, err
		}
		delete(i.lazy, name)
		i.slots[name] = v
		return v, nil
	}
	return nil, withType(notFound(KindAttribute, name), i.class.name)
}

// Set writes a slot. The name must be an attribute of the class, which may
// have gained it through an extension after this instance was built.
func (i *Instance) Set(name string, v any) error {
	_, hasSlot := i.slots[name]
	_, pending := i.lazy[name]
	if !hasSlot && !pending && !i.class.Meta().HasAttribute(name) {
		return withType(notFound(KindAttribute, name), i.class.name)
	}
	delete(i.lazy, name)
	i.slots[name] = v
	return nil
}

// Has reports whether the instance holds the slot, initialized or pending.
func (i *Instance) Has(name string) bool {
	if _, ok := i.slots[name]; ok {
		return true
	}
	_, ok := i.lazy[name]
	return ok
}

// Slots returns a copy of the initialized slots. Pending lazy slots are not
// forced.
func (i *Instance) Slots() map[string]any {
	return maps.Clone(i.slots)
}

// CanCall reports whether the class currently has a method called name.
func (i *Instance) CanCall(name string) bool {
	_, ok := i.class.load().dispatch[name]
	return ok
}

// Call invokes a method through the class's current dispatch table.
func (i *Instance) Call(name string, args ...any) (any, error) {
	fn, ok := i.class.load().dispatch[name]
	if !ok {
		return nil, withType(notFound(KindMethod, name), i.class.name)
	}
	return fn.fn(&Call{Self: i, Method: name, Args: args})
}

// Does reports whether the instance's class composes r.
func (i *Instance) Does(r *Role) bool { return i.class.Meta().Does(r) }

// IsA reports whether the instance's class is c or derives from it.
func (i *Instance) IsA(c *Class) bool { return i.class.Meta().IsA(c) }
