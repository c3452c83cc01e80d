package mop

import (
	"iter"
	"slices"
)

// PropertySet is a sealed, ordered collection of properties of one kind, keyed
// by name. Iteration follows insertion order. A PropertySet never changes once
// sealed, so it may be shared between effective stems.
type PropertySet struct {
	kind  Kind
	order []string
	props map[string]Property
}

func emptySet(kind Kind) *PropertySet {
	return &PropertySet{kind: kind, props: map[string]Property{}}
}

// Kind returns the kind of properties held by the set.
func (s *PropertySet) Kind() Kind { return s.kind }

// Len returns the number of properties.
func (s *PropertySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Has reports whether name is present.
func (s *PropertySet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.props[name]
	return ok
}

// Get returns the property called name.
func (s *PropertySet) Get(name string) (Property, error) {
	if s != nil {
		if p, ok := s.props[name]; ok {
			return p, nil
		}
	}
	return nil, notFound(s.kindOrDefault(), name)
}

// Names returns the property names in insertion order.
func (s *PropertySet) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.order)
}

// All iterates the properties in insertion order.
func (s *PropertySet) All() iter.Seq[Property] {
	return func(yield func(Property) bool) {
		if s == nil {
			return
		}
		for _, name := range s.order {
			if !yield(s.props[name]) {
				return
			}
		}
	}
}

func (s *PropertySet) kindOrDefault() Kind {
	if s == nil {
		return 0
	}
	return s.kind
}

// Entry is the state of one name in a Mutable set: either a Resolved property
// or a Conflict marker.
type Entry interface {
	entryName() string
}

// Resolved is an entry holding exactly one property.
type Resolved struct {
	Property Property
	// From is the label of the stem the property was merged from.
	From string
}

func (r Resolved) entryName() string { return r.Property.Name() }

// Conflict marks a name supplied by several unrelated sources with different
// properties. Reading it fails until something resolves it.
type Conflict struct {
	Name    string
	Sources []string

	candidates []Property
}

func (c Conflict) entryName() string { return c.Name }

func (c Conflict) holds(p Property) bool {
	for _, candidate := range c.candidates {
		if candidate == p {
			return true
		}
	}
	return false
}

// Mutable is the composition-time variant of PropertySet. It supports add,
// remove and merge with conflict bookkeeping, and is sealed into a
// PropertySet once composition finishes.
type Mutable struct {
	kind    Kind
	order   []string
	entries map[string]Entry
}

// NewMutable creates an empty mutable set for kind.
func NewMutable(kind Kind) *Mutable {
	return &Mutable{kind: kind, entries: map[string]Entry{}}
}

// mutableFrom seeds a mutable set with the contents of a sealed one.
func mutableFrom(kind Kind, set *PropertySet, label string) *Mutable {
	m := NewMutable(kind)
	for p := range set.All() {
		m.Put(p, label)
	}
	return m
}

// Kind returns the kind of properties held by the set.
func (m *Mutable) Kind() Kind { return m.kind }

// Len returns the number of entries, conflict markers included.
func (m *Mutable) Len() int { return len(m.order) }

// Add inserts a directly declared property. It fails with ErrDuplicateName if
// the name is already held by a resolved entry. Adding over a conflict marker
// resolves it.
func (m *Mutable) Add(p Property) error {
	if e, ok := m.entries[p.Name()]; ok {
		if _, isConflict := e.(Conflict); !isConflict {
			return duplicateName(m.kind, p.Name(), p.Source())
		}
	}
	m.Put(p, p.Source())
	return nil
}

// Put stores p under its name, replacing a plain entry or a conflict marker.
// An explicit definition always beats whatever was there.
func (m *Mutable) Put(p Property, from string) {
	m.set(p.Name(), Resolved{Property: p, From: from})
}

func (m *Mutable) set(name string, e Entry) {
	if _, ok := m.entries[name]; !ok {
		m.order = append(m.order, name)
	}
	m.entries[name] = e
}

// Remove deletes name and reports whether it was present.
func (m *Mutable) Remove(name string) bool {
	if _, ok := m.entries[name]; !ok {
		return false
	}
	delete(m.entries, name)
	m.order = slices.DeleteFunc(m.order, func(n string) bool { return n == name })
	return true
}

// Entry returns the raw entry for name.
func (m *Mutable) Entry(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Get returns the property called name. It fails with ErrNotFound if absent
// and with ErrUnresolvedConflict if the name is a conflict marker.
func (m *Mutable) Get(name string) (Property, error) {
	e, ok := m.entries[name]
	if !ok {
		return nil, notFound(m.kind, name)
	}
	switch v := e.(type) {
	case Resolved:
		return v.Property, nil
	case Conflict:
		return nil, &Error{
			Code:    CodeUnresolvedConflict,
			Message: m.kind.String() + " " + name + " is supplied by several sources",
			Name:    name,
			Sources: slices.Clone(v.Sources),
		}
	}
	return nil, notFound(m.kind, name)
}

// Merge folds another set's properties in under label. Methods with the same
// name and a different property become conflict markers recording every
// contributing label; the same property arriving twice is idempotent.
// Attributes follow last-writer-wins and requirements are a union by name.
func (m *Mutable) Merge(set *PropertySet, label string) {
	for p := range set.All() {
		m.mergeOne(p, label)
	}
}

func (m *Mutable) mergeOne(p Property, label string) {
	name := p.Name()
	existing, ok := m.entries[name]
	if !ok {
		m.Put(p, label)
		return
	}

	switch m.kind {
	case KindAttribute:
		m.Put(p, label)
		return
	case KindRequirement:
		return
	}

	switch e := existing.(type) {
	case Resolved:
		if e.Property == p {
			return
		}
		m.set(name, Conflict{
			Name:       name,
			Sources:    appendUnique([]string{e.From}, label),
			candidates: []Property{e.Property, p},
		})
	case Conflict:
		if e.holds(p) {
			return
		}
		e.Sources = appendUnique(slices.Clone(e.Sources), label)
		e.candidates = append(slices.Clone(e.candidates), p)
		m.set(name, e)
	}
}

// Overlay copies every entry of other over m, conflict markers included.
// Entries of other take precedence over entries already in m.
func (m *Mutable) Overlay(other *Mutable) {
	for _, name := range other.order {
		m.set(name, other.entries[name])
	}
}

// Conflicts returns every conflict marker in insertion order.
func (m *Mutable) Conflicts() []Conflict {
	var out []Conflict
	for _, name := range m.order {
		if c, ok := m.entries[name].(Conflict); ok {
			out = append(out, Conflict{Name: c.Name, Sources: slices.Clone(c.Sources)})
		}
	}
	return out
}

// Seal freezes the set. It fails with ErrCompositionConflict if any conflict
// marker is left.
func (m *Mutable) Seal() (*PropertySet, error) {
	if conflicts := m.Conflicts(); len(conflicts) > 0 {
		names := make([]string, 0, len(conflicts))
		for _, c := range conflicts {
			names = append(names, c.Name)
		}
		return nil, &Error{
			Code:      CodeCompositionConflict,
			Message:   "conflicting " + m.kind.String() + "s must be defined explicitly",
			Names:     names,
			Name:      names[0],
			Conflicts: conflicts,
		}
	}
	s := &PropertySet{
		kind:  m.kind,
		order: slices.Clone(m.order),
		props: make(map[string]Property, len(m.order)),
	}
	for _, name := range m.order {
		s.props[name] = m.entries[name].(Resolved).Property
	}
	return s, nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// ModifierSet is the ordered collection of method modifiers of a stem. Unlike
// a PropertySet several modifiers may target one method; only direct
// declarations are unique per (modifier kind, name).
type ModifierSet struct {
	mods []*Modifier
}

// Len returns the number of modifiers.
func (s *ModifierSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.mods)
}

// All iterates the modifiers in application order.
func (s *ModifierSet) All() iter.Seq[*Modifier] {
	return func(yield func(*Modifier) bool) {
		if s == nil {
			return
		}
		for _, m := range s.mods {
			if !yield(m) {
				return
			}
		}
	}
}

// ForName returns the modifiers targeting name, in application order.
func (s *ModifierSet) ForName(name string) []*Modifier {
	var out []*Modifier
	for m := range s.All() {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

func (s *ModifierSet) addDirect(m *Modifier) error {
	for _, existing := range s.mods {
		if existing.key() == m.key() {
			return duplicateName(KindModifier, m.String(), m.source)
		}
	}
	s.mods = append(s.mods, m)
	return nil
}

func (s *ModifierSet) appendAll(other *ModifierSet) {
	for m := range other.All() {
		if !slices.Contains(s.mods, m) {
			s.mods = append(s.mods, m)
		}
	}
}
