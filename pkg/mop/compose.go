package mop

import (
	"fmt"
	"slices"
	"strings"
)

// Mode selects the composition rules.
type Mode uint8

const (
	// ClassComposition checks requirements immediately and compiles dispatch.
	ClassComposition Mode = iota + 1
	// RoleComposition carries unsatisfied requirements into the result.
	RoleComposition
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ClassComposition:
		return "class"
	case RoleComposition:
		return "role"
	default:
		return "unknown"
	}
}

// Layer is one stem taking part in a composition, labelled for error reports.
type Layer struct {
	Label string
	Stem  *Stem
}

// Composition is the input of Compose. Precedence runs from Inherited (lowest)
// through Roles (one shared level, where differing methods conflict) to Own
// (highest, always wins).
type Composition struct {
	Mode   Mode
	Target string

	Inherited      *Stem
	InheritedLabel string
	Roles          []Layer
	Own            *Stem

	inheritedDispatch map[string]*callable
}

// Composed is the result of a successful composition.
type Composed struct {
	Stem *Stem

	dispatch map[string]*callable
}

// Compose merges the stems of a composition into one effective stem.
//
// Attributes are last-writer-wins. Methods supplied by several roles with
// different bodies become conflict markers unless Own defines the name;
// an inherited method never resolves such a conflict. Requirements must be
// met by the merged methods: for class composition a miss is fatal, for role
// composition it carries over into the result. Modifiers are applied last, in
// order, around whatever method currently holds their target name, and any
// conflict still left fails with ErrCompositionConflict.
func Compose(in Composition) (*Composed, error) {
	out, err := compose(in)
	if err != nil {
		return nil, withType(err, in.Target)
	}
	return out, nil
}

func compose(in Composition) (*Composed, error) {
	own := in.Own
	if own == nil {
		own = NewStem()
	}
	inherited := in.Inherited
	if inherited == nil {
		inherited = NewStem()
	}
	target := in.Target

	// 1-2. attributes, last writer wins
	attrs := mutableFrom(KindAttribute, inherited.Attributes, in.InheritedLabel)
	for _, l := range in.Roles {
		attrs.Merge(l.Stem.Attributes, l.Label)
	}
	for p := range own.Attributes.All() {
		attrs.Put(p, target)
	}
	sealedAttrs, err := attrs.Seal()
	if err != nil {
		return nil, err
	}

	// 1-2. methods: roles conflict among themselves, shadow inherited entries,
	// and lose to explicit definitions at this level
	methods := mutableFrom(KindMethod, inherited.Methods, in.InheritedLabel)
	roleMethods := NewMutable(KindMethod)
	for _, l := range in.Roles {
		roleMethods.Merge(l.Stem.Methods, l.Label)
	}
	methods.Overlay(roleMethods)
	for p := range own.Methods.All() {
		methods.Put(p, target)
	}
	if in.Mode == ClassComposition {
		for p := range sealedAttrs.All() {
			attr := p.(*Attribute)
			for _, acc := range attr.accessors {
				if _, exists := methods.Entry(acc.name); !exists {
					methods.Put(acc, attr.source)
				}
			}
		}
	}

	// 3. requirements
	reqs := mutableFrom(KindRequirement, inherited.Requirements, in.InheritedLabel)
	for _, l := range in.Roles {
		reqs.Merge(l.Stem.Requirements, l.Label)
	}
	reqs.Merge(own.Requirements, target)

	residual := NewMutable(KindRequirement)
	var missing, requiredBy []string
	for _, name := range reqs.order {
		if _, ok := methods.Entry(name); ok {
			continue
		}
		entry := reqs.entries[name].(Resolved)
		if in.Mode == ClassComposition {
			missing = append(missing, name)
			requiredBy = appendUnique(requiredBy, entry.From)
			continue
		}
		residual.Put(entry.Property, entry.From)
	}
	if len(missing) > 0 {
		return nil, &Error{
			Code:    CodeMissingRequirement,
			Message: fmt.Sprintf("required method(s) %s not implemented", strings.Join(missing, ", ")),
			Name:    missing[0],
			Names:   missing,
			Sources: requiredBy,
		}
	}

	// 5. conflicts left in methods are fatal; attributes never conflict
	sealedMethods, err := methods.Seal()
	if err != nil {
		return nil, err
	}
	sealedReqs, _ := residual.Seal()

	// modifiers applied at this level
	mods := &ModifierSet{}
	for _, l := range in.Roles {
		mods.appendAll(l.Stem.Modifiers)
	}
	mods.appendAll(own.Modifiers)

	// the effective set also lists inherited modifiers whose method is still
	// the inherited one
	effectiveMods := &ModifierSet{}
	for m := range inherited.Modifiers.All() {
		if sameMethod(inherited.Methods, sealedMethods, m.name) && !slices.Contains(effectiveMods.mods, m) {
			effectiveMods.mods = append(effectiveMods.mods, m)
		}
	}
	effectiveMods.appendAll(mods)

	out := &Composed{
		Stem: &Stem{
			Attributes:   sealedAttrs,
			Methods:      sealedMethods,
			Requirements: sealedReqs,
			Modifiers:    effectiveMods,
		},
	}

	// 4. modifiers wrap the compiled methods, in declaration order
	if in.Mode == ClassComposition {
		if err := checkOwnModifiers(inherited, in.Roles, own.Modifiers); err != nil {
			return nil, err
		}
		dispatch, err := compileDispatch(inherited, in.inheritedDispatch, sealedMethods, mods)
		if err != nil {
			return nil, err
		}
		out.dispatch = dispatch
	}
	return out, nil
}

// checkOwnModifiers rejects override and augment modifiers declared at this
// level whose method is declared at this level too: they need a base supplied
// by the superclass chain or a composed role.
func checkOwnModifiers(inherited *Stem, roles []Layer, own *ModifierSet) error {
	for mod := range own.All() {
		if mod.kind != OverrideModifier && mod.kind != AugmentModifier {
			continue
		}
		if inherited.Methods.Has(mod.name) {
			continue
		}
		if slices.ContainsFunc(roles, func(l Layer) bool { return l.Stem.Methods.Has(mod.name) }) {
			continue
		}
		return &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("cannot apply %s modifier: no inherited or role method %q", mod.kind, mod.name),
			Name:    mod.name,
			Sources: sourceList(mod.source),
		}
	}
	return nil
}

// sameMethod reports whether name resolves to the same method in both sets.
func sameMethod(a, b *PropertySet, name string) bool {
	pa, err := a.Get(name)
	if err != nil {
		return false
	}
	pb, err := b.Get(name)
	return err == nil && pa == pb
}

// compileDispatch builds the method table of a class. Methods that still come
// from the superclass reuse its compiled entry, so its modifiers keep applying.
func compileDispatch(
	inherited *Stem,
	parent map[string]*callable,
	methods *PropertySet,
	mods *ModifierSet,
) (map[string]*callable, error) {
	dispatch := make(map[string]*callable, methods.Len())
	for p := range methods.All() {
		m := p.(*Method)
		if compiled, ok := parent[m.name]; ok && sameMethod(inherited.Methods, methods, m.name) {
			dispatch[m.name] = compiled
			continue
		}
		dispatch[m.name] = baseCallable(m)
	}

	for mod := range mods.All() {
		target, ok := dispatch[mod.name]
		if !ok {
			return nil, &Error{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("cannot apply %s modifier: no method %q to wrap", mod.kind, mod.name),
				Name:    mod.name,
				Sources: sourceList(mod.source),
			}
		}
		wrapped, err := wrap(target, mod)
		if err != nil {
			return nil, err
		}
		dispatch[mod.name] = wrapped
	}
	return dispatch, nil
}
