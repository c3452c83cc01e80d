package mop

// Stem is one type's own contribution, or after composition its effective
// specification: attributes, methods, requirements and method modifiers.
type Stem struct {
	Attributes   *PropertySet
	Methods      *PropertySet
	Requirements *PropertySet
	Modifiers    *ModifierSet
}

// NewStem returns a stem with four empty sets.
func NewStem() *Stem {
	return &Stem{
		Attributes:   emptySet(KindAttribute),
		Methods:      emptySet(KindMethod),
		Requirements: emptySet(KindRequirement),
		Modifiers:    &ModifierSet{},
	}
}

// overlay returns a new stem with add layered on top of s: attributes and
// methods of add replace those of s, requirements are united and modifiers
// appended. Neither input is modified.
func (s *Stem) overlay(add *Stem, label string) *Stem {
	attrs := mutableFrom(KindAttribute, s.Attributes, label)
	for p := range add.Attributes.All() {
		attrs.Put(p, label)
	}
	methods := mutableFrom(KindMethod, s.Methods, label)
	for p := range add.Methods.All() {
		methods.Put(p, label)
	}
	reqs := mutableFrom(KindRequirement, s.Requirements, label)
	reqs.Merge(add.Requirements, label)

	mods := &ModifierSet{}
	mods.appendAll(s.Modifiers)
	mods.appendAll(add.Modifiers)

	// none of these sets can hold conflict markers
	out := &Stem{Modifiers: mods}
	out.Attributes, _ = attrs.Seal()
	out.Methods, _ = methods.Seal()
	out.Requirements, _ = reqs.Seal()
	return out
}
