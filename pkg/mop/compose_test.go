package mop

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returns(v any) Func {
	return func(*Call) (any, error) { return v, nil }
}

func stem(t *testing.T, label string, spec Spec) *Stem {
	t.Helper()
	s, err := BuildStem(label, spec)
	require.NoError(t, err)
	return s
}

func methodNames(s *Stem) []string {
	return s.Methods.Names()
}

func TestComposeDisjointRolesUnion(t *testing.T) {
	a := stem(t, "A", Spec{Methods: []MethodDecl{Def("a", returns(1))}})
	b := stem(t, "B", Spec{Methods: []MethodDecl{Def("b", returns(2))}})

	out, err := Compose(Composition{
		Mode:   RoleComposition,
		Target: "AB",
		Roles:  []Layer{{Label: "A", Stem: a}, {Label: "B", Stem: b}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, methodNames(out.Stem))
}

func TestComposeSameBodyIsIdempotent(t *testing.T) {
	a := stem(t, "A", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})

	out, err := Compose(Composition{
		Mode:   RoleComposition,
		Target: "AA",
		Roles:  []Layer{{Label: "A", Stem: a}, {Label: "A again", Stem: a}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stem.Methods.Len())
}

func TestComposeConflict(t *testing.T) {
	a := stem(t, "A", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
	b := stem(t, "B", Spec{Methods: []MethodDecl{Def("foo", returns(2))}})
	roles := []Layer{{Label: "A", Stem: a}, {Label: "B", Stem: b}}

	t.Run("unresolved", func(t *testing.T) {
		_, err := Compose(Composition{Mode: ClassComposition, Target: "C", Roles: roles})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCompositionConflict))

		var mopErr *Error
		require.True(t, errors.As(err, &mopErr))
		assert.Equal(t, "C", mopErr.Type)
		assert.Equal(t, "foo", mopErr.Name)
		require.Len(t, mopErr.Conflicts, 1)
		assert.Equal(t, []string{"A", "B"}, mopErr.Conflicts[0].Sources)
	})

	t.Run("resolved by explicit definition", func(t *testing.T) {
		own := stem(t, "C", Spec{Methods: []MethodDecl{Def("foo", returns(3))}})
		out, err := Compose(Composition{Mode: ClassComposition, Target: "C", Roles: roles, Own: own})
		require.NoError(t, err)

		m, err := out.Stem.Methods.Get("foo")
		require.NoError(t, err)
		assert.Equal(t, "C", m.Source())
	})

	t.Run("inherited method does not resolve", func(t *testing.T) {
		parent := stem(t, "P", Spec{Methods: []MethodDecl{Def("foo", returns(0))}})
		_, err := Compose(Composition{
			Mode:           ClassComposition,
			Target:         "C",
			Inherited:      parent,
			InheritedLabel: "P",
			Roles:          roles,
		})
		assert.ErrorIs(t, err, ErrCompositionConflict)
	})

	t.Run("role composition fails too", func(t *testing.T) {
		_, err := Compose(Composition{Mode: RoleComposition, Target: "R", Roles: roles})
		assert.ErrorIs(t, err, ErrCompositionConflict)
	})
}

func TestComposeRequirements(t *testing.T) {
	needsFoo := stem(t, "NeedsFoo", Spec{Requires: []string{"foo"}})

	t.Run("class without the method", func(t *testing.T) {
		_, err := Compose(Composition{
			Mode:   ClassComposition,
			Target: "C",
			Roles:  []Layer{{Label: "NeedsFoo", Stem: needsFoo}},
		})
		require.ErrorIs(t, err, ErrMissingRequirement)

		var mopErr *Error
		require.True(t, errors.As(err, &mopErr))
		assert.Equal(t, []string{"foo"}, mopErr.Names)
		assert.Equal(t, []string{"NeedsFoo"}, mopErr.Sources)
	})

	t.Run("class with the method", func(t *testing.T) {
		own := stem(t, "C", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
		out, err := Compose(Composition{
			Mode:   ClassComposition,
			Target: "C",
			Roles:  []Layer{{Label: "NeedsFoo", Stem: needsFoo}},
			Own:    own,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Stem.Requirements.Len())
	})

	t.Run("satisfied by an inherited method", func(t *testing.T) {
		parent := stem(t, "P", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
		_, err := Compose(Composition{
			Mode:           ClassComposition,
			Target:         "C",
			Inherited:      parent,
			InheritedLabel: "P",
			Roles:          []Layer{{Label: "NeedsFoo", Stem: needsFoo}},
		})
		require.NoError(t, err)
	})

	t.Run("role composition propagates", func(t *testing.T) {
		own := stem(t, "R", Spec{Requires: []string{"bar"}, Methods: []MethodDecl{Def("baz", returns(1))}})
		out, err := Compose(Composition{
			Mode:   RoleComposition,
			Target: "R",
			Roles:  []Layer{{Label: "NeedsFoo", Stem: needsFoo}},
			Own:    own,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"foo", "bar"}, out.Stem.Requirements.Names())
	})

	t.Run("role satisfies its own requirement", func(t *testing.T) {
		own := stem(t, "R", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
		out, err := Compose(Composition{
			Mode:   RoleComposition,
			Target: "R",
			Roles:  []Layer{{Label: "NeedsFoo", Stem: needsFoo}},
			Own:    own,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, out.Stem.Requirements.Len())
	})
}

func TestComposeAttributesLastWriterWins(t *testing.T) {
	parent := stem(t, "P", Spec{Has: []AttributeDecl{Has("x", 1), Has("y", 1)}})
	role := stem(t, "R", Spec{Has: []AttributeDecl{Has("x", 2), Has("z", 2)}})
	own := stem(t, "C", Spec{Has: []AttributeDecl{Has("z", 3)}})

	out, err := Compose(Composition{
		Mode:           ClassComposition,
		Target:         "C",
		Inherited:      parent,
		InheritedLabel: "P",
		Roles:          []Layer{{Label: "R", Stem: role}},
		Own:            own,
	})
	require.NoError(t, err)

	inits := map[string]any{}
	for p := range out.Stem.Attributes.All() {
		inits[p.Name()] = p.(*Attribute).Init()
	}
	assert.Equal(t, map[string]any{"x": 2, "y": 1, "z": 3}, inits)
}

func TestComposeSynthesizesAccessors(t *testing.T) {
	own := stem(t, "C", Spec{
		Has:     []AttributeDecl{Has("x", map[string]any{"is": "rw"})},
		Methods: []MethodDecl{Def("setX", returns("custom"))},
	})

	out, err := Compose(Composition{Mode: ClassComposition, Target: "C", Own: own})
	require.NoError(t, err)
	assert.True(t, slices.Contains(methodNames(out.Stem), "getX"))

	setter, err := out.Stem.Methods.Get("setX")
	require.NoError(t, err)
	assert.False(t, setter.(*Method).Accessor(), "explicit method wins over synthesized accessor")
}

func TestComposeModifierTargets(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		own := stem(t, "C", Spec{Modifiers: []ModifierDecl{Before("nope", noop)}})
		_, err := Compose(Composition{Mode: ClassComposition, Target: "C", Own: own})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("augment of a plain method", func(t *testing.T) {
		parent := stem(t, "P", Spec{Methods: []MethodDecl{Def("render", returns("p"))}})
		own := stem(t, "C", Spec{Modifiers: []ModifierDecl{Augment("render", returns("c"))}})
		_, err := Compose(Composition{
			Mode:           ClassComposition,
			Target:         "C",
			Inherited:      parent,
			InheritedLabel: "P",
			Own:            own,
		})
		assert.ErrorIs(t, err, ErrNotInnable)
	})

	t.Run("override needs a base below this level", func(t *testing.T) {
		own := stem(t, "C", Spec{
			Methods:   []MethodDecl{Def("foo", returns(1))},
			Modifiers: []ModifierDecl{Override("foo", returns(2))},
		})
		_, err := Compose(Composition{Mode: ClassComposition, Target: "C", Own: own})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("augment needs a base below this level", func(t *testing.T) {
		own := stem(t, "C", Spec{
			Methods:   []MethodDecl{DefInnable("render", returns("c"))},
			Modifiers: []ModifierDecl{Augment("render", returns("inner"))},
		})
		_, err := Compose(Composition{Mode: ClassComposition, Target: "C", Own: own})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("override of a role method", func(t *testing.T) {
		role := stem(t, "R", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
		own := stem(t, "C", Spec{Modifiers: []ModifierDecl{Override("foo", func(c *Call) (any, error) {
			v, err := c.Super()
			if err != nil {
				return nil, err
			}
			return v.(int) + 1, nil
		})}})
		out, err := Compose(Composition{
			Mode:   ClassComposition,
			Target: "C",
			Roles:  []Layer{{Label: "R", Stem: role}},
			Own:    own,
		})
		require.NoError(t, err)
		v, err := out.dispatch["foo"].fn(&Call{Method: "foo"})
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("role modifiers are deferred", func(t *testing.T) {
		own := stem(t, "R", Spec{Modifiers: []ModifierDecl{Around("later", noop)}})
		out, err := Compose(Composition{Mode: RoleComposition, Target: "R", Own: own})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Stem.Modifiers.Len())
	})
}

func TestComposeListsInheritedModifiers(t *testing.T) {
	parent := stem(t, "P", Spec{
		Methods:   []MethodDecl{Def("greet", returns("hi")), Def("leave", returns("bye"))},
		Modifiers: []ModifierDecl{Before("greet", noop), After("leave", noop)},
	})
	own := stem(t, "C", Spec{
		Methods:   []MethodDecl{Def("leave", returns("later"))},
		Modifiers: []ModifierDecl{After("greet", noop)},
	})
	out, err := Compose(Composition{
		Mode:           ClassComposition,
		Target:         "C",
		Inherited:      parent,
		InheritedLabel: "P",
		Own:            own,
	})
	require.NoError(t, err)

	var got []string
	for m := range out.Stem.Modifiers.All() {
		got = append(got, m.String()+"@"+m.Source())
	}
	assert.Equal(t, []string{"before greet@P", "after greet@C"}, got,
		"the inherited modifier on a redefined method no longer applies")
}

func TestBuildStemDuplicates(t *testing.T) {
	_, err := BuildStem("C", Spec{Methods: []MethodDecl{Def("a", noop), Def("a", noop)}})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = BuildStem("C", Spec{Has: []AttributeDecl{Has("a", nil), Has("a", 1)}})
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = BuildStem("C", Spec{Methods: []MethodDecl{{Name: "a"}}})
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
}
