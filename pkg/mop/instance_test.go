package mop

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeDefaults(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Bag", Spec{
		Has: []AttributeDecl{
			Has("x", map[string]any{"init": 5}),
			Has("counts", Initializer(func(*Instance) (any, error) { return map[string]int{}, nil })),
			Has("label", nil),
		},
	})
	require.NoError(t, err)

	one, err := c.New()
	require.NoError(t, err)
	two, err := c.New()
	require.NoError(t, err)

	x, err := one.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 5, x)

	label, err := one.Get("label")
	require.NoError(t, err)
	assert.Nil(t, label)

	counts, err := one.Get("counts")
	require.NoError(t, err)
	counts.(map[string]int)["only one"]++
	other, err := two.Get("counts")
	require.NoError(t, err)
	assert.Empty(t, other, "each instance gets a fresh value")

	supplied, err := c.New(map[string]any{"x": 7})
	require.NoError(t, err)
	x, _ = supplied.Get("x")
	assert.Equal(t, 7, x)
}

func TestAccessors(t *testing.T) {
	b := NewBuilder()
	point, err := b.Class("Point", Spec{
		Has: []AttributeDecl{
			Has("x", map[string]any{"is": "rw", "init": 0}),
			Has("y", map[string]any{"is": "ro", "init": 0}),
		},
	})
	require.NoError(t, err)

	p, err := point.New(map[string]any{"y": 2})
	require.NoError(t, err)

	self := call(t, p, "setX", 4)
	assert.Same(t, p, self, "setters return the instance")
	assert.Equal(t, 4, call(t, p, "getX"))
	assert.Equal(t, 2, call(t, p, "getY"))
	assert.False(t, p.CanCall("setY"))

	_, err = p.Call("setX")
	assert.Error(t, err)
}

func TestLazyAttribute(t *testing.T) {
	b := NewBuilder()
	runs := 0
	c, err := b.Class("Report", Spec{
		Has: []AttributeDecl{
			Has("title", "quarterly"),
			Has("heading", map[string]any{
				"lazy": true,
				"init": Initializer(func(self *Instance) (any, error) {
					runs++
					title, err := self.Get("title")
					if err != nil {
						return nil, err
					}
					return "# " + title.(string), nil
				}),
			}),
		},
	})
	require.NoError(t, err)

	r, err := c.New()
	require.NoError(t, err)
	assert.Equal(t, 0, runs)
	assert.True(t, r.Has("heading"))
	assert.NotContains(t, r.Slots(), "heading")

	h, err := r.Get("heading")
	require.NoError(t, err)
	assert.Equal(t, "# quarterly", h)
	_, _ = r.Get("heading")
	assert.Equal(t, 1, runs)
}

func TestInitializersMustNotDependOnOrder(t *testing.T) {
	b := NewBuilder()
	area := Initializer(func(self *Instance) (any, error) {
		side, err := self.Get("side")
		if err != nil {
			return nil, err
		}
		return side.(int) * side.(int), nil
	})

	eager, err := b.Class("EagerSquare", Spec{Has: []AttributeDecl{
		Has("area", map[string]any{"init": area}),
		Has("side", 3),
	}})
	require.NoError(t, err)
	_, err = eager.New()
	assert.ErrorIs(t, err, ErrNotFound, "another attribute may not be initialized yet")

	lazy, err := b.Class("LazySquare", Spec{Has: []AttributeDecl{
		Has("area", map[string]any{"init": area, "lazy": true}),
		Has("side", 3),
	}})
	require.NoError(t, err)
	sq, err := lazy.New()
	require.NoError(t, err)
	v, err := sq.Get("area")
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestRequiredAttribute(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("User", Spec{
		Has: []AttributeDecl{Has("email", map[string]any{"required": true})},
	})
	require.NoError(t, err)

	_, err = c.New()
	assert.ErrorIs(t, err, ErrRequiredAttribute)

	u, err := c.New(map[string]any{"email": "a@b.c"})
	require.NoError(t, err)
	email, _ := u.Get("email")
	assert.Equal(t, "a@b.c", email)
}

func TestConstructionWorkflow(t *testing.T) {
	b := NewBuilder()

	t.Run("bad arguments to default BUILD", func(t *testing.T) {
		c, err := b.Class("Strict", Spec{})
		require.NoError(t, err)
		_, err = c.New(1, 2)
		assert.ErrorIs(t, err, ErrBadConstructorArgs)
		_, err = c.New("x")
		assert.ErrorIs(t, err, ErrBadConstructorArgs)
	})

	t.Run("custom BUILD", func(t *testing.T) {
		c, err := b.Class("Pair", Spec{
			Has: []AttributeDecl{Has("left", nil), Has("right", nil)},
			Methods: []MethodDecl{Def("BUILD", func(c *Call) (any, error) {
				return map[string]any{"left": c.Arg(0), "right": c.Arg(1)}, nil
			})},
		})
		require.NoError(t, err)

		p, err := c.New("a", "b")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"left": "a", "right": "b"}, p.Slots())
	})

	t.Run("initialize sees BUILD result and after modifier runs", func(t *testing.T) {
		var seen map[string]any
		var order []string
		c, err := b.Class("Tracked", Spec{
			Has: []AttributeDecl{Has("n", 0)},
			Methods: []MethodDecl{Def("initialize", func(c *Call) (any, error) {
				seen = c.Arg(0).(map[string]any)
				order = append(order, "initialize")
				return nil, nil
			})},
			Modifiers: []ModifierDecl{After("initialize", func(*Call) (any, error) {
				order = append(order, "after")
				return nil, nil
			})},
		})
		require.NoError(t, err)

		_, err = c.New(map[string]any{"n": 1})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": 1}, seen)
		assert.Equal(t, []string{"initialize", "after"}, order)
	})

	t.Run("initialize result replaces the instance", func(t *testing.T) {
		c, err := b.Class("Factory", Spec{
			Methods: []MethodDecl{Def("initialize", returns("product"))},
		})
		require.NoError(t, err)

		v, err := c.Construct()
		require.NoError(t, err)
		assert.Equal(t, "product", v)

		_, err = c.New()
		assert.Error(t, err)
	})

	t.Run("custom constructor", func(t *testing.T) {
		var singleton *Instance
		c, err := b.Class("Single", Spec{
			Constructor: func(class *Class, args ...any) (any, error) {
				if singleton == nil {
					v, err := class.DefaultConstruct(args...)
					if err != nil {
						return nil, err
					}
					singleton = v.(*Instance)
				}
				return singleton, nil
			},
		})
		require.NoError(t, err)

		one, err := c.New()
		require.NoError(t, err)
		two, err := c.New()
		require.NoError(t, err)
		assert.Same(t, one, two)
	})
}

func TestUnknownSlotsAndMethods(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Thing", Spec{})
	require.NoError(t, err)
	inst, err := c.New()
	require.NoError(t, err)

	_, err = inst.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, inst.Set("nope", 1), ErrNotFound)
	_, err = inst.Call("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	other, err := c.New()
	require.NoError(t, err)
	assert.NotEqual(t, inst.ID(), other.ID())
}

func TestExtendIsVisibleToExistingInstances(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Counter", Spec{Has: []AttributeDecl{Has("n", 1)}})
	require.NoError(t, err)
	old, err := c.New()
	require.NoError(t, err)

	err = c.Meta().Extend(Spec{
		Has: []AttributeDecl{Has("step", 10)},
		Methods: []MethodDecl{Def("next", func(c *Call) (any, error) {
			n, err := c.Self.Get("n")
			if err != nil {
				return nil, err
			}
			return n.(int) + 1, nil
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), c.Meta().Generation())

	assert.Equal(t, 2, call(t, old, "next"), "new methods dispatch on old instances")
	_, err = old.Get("step")
	assert.ErrorIs(t, err, ErrNotFound, "old instances gain no attribute state")
	require.NoError(t, old.Set("step", 3), "but the slot may be written")

	fresh, err := c.New()
	require.NoError(t, err)
	step, err := fresh.Get("step")
	require.NoError(t, err)
	assert.Equal(t, 10, step)
}

func TestExtendFailureLeavesTypeUntouched(t *testing.T) {
	b := NewBuilder()
	r1, err := b.Role("R1", Spec{Methods: []MethodDecl{Def("foo", returns(1))}})
	require.NoError(t, err)
	r2, err := b.Role("R2", Spec{Methods: []MethodDecl{Def("foo", returns(2))}})
	require.NoError(t, err)

	c, err := b.Class("C", Spec{Does: []*Role{r1}})
	require.NoError(t, err)
	before := c.Meta().Stem()

	err = c.Meta().Extend(Spec{Does: []*Role{r2}, Methods: []MethodDecl{Def("bar", noop)}})
	require.ErrorIs(t, err, ErrCompositionConflict)
	assert.Same(t, before, c.Meta().Stem())
	assert.False(t, c.Meta().HasMethod("bar"))
	assert.Equal(t, uint64(1), c.Meta().Generation())
}

func TestExtendRoles(t *testing.T) {
	b := NewBuilder()
	greets, err := b.Role("Greets", Spec{Methods: []MethodDecl{Def("hello", returns("hi"))}})
	require.NoError(t, err)
	other, err := b.Role("Other", Spec{})
	require.NoError(t, err)

	c, err := b.Class("Person", Spec{})
	require.NoError(t, err)
	inst, err := c.New()
	require.NoError(t, err)

	require.NoError(t, c.Meta().Extend(Spec{Does: []*Role{greets}}))
	assert.Equal(t, "hi", call(t, inst, "hello"))
	assert.True(t, inst.Does(greets))

	err = c.Meta().Extend(Spec{DoesNot: []*Role{other}})
	assert.ErrorIs(t, err, ErrRoleNotComposed)

	require.NoError(t, c.Meta().Extend(Spec{DoesNot: []*Role{greets}}))
	assert.False(t, inst.CanCall("hello"))
	assert.False(t, inst.Does(greets))
	assert.Empty(t, c.Meta().Roles())
}

func TestRoleChangesDoNotReachConsumers(t *testing.T) {
	b := NewBuilder()
	r, err := b.Role("Shared", Spec{Methods: []MethodDecl{Def("v", returns(1))}})
	require.NoError(t, err)

	c1, err := b.Class("C1", Spec{Does: []*Role{r}})
	require.NoError(t, err)
	c2, err := b.Class("C2", Spec{Does: []*Role{r}})
	require.NoError(t, err)
	stem1, stem2 := c1.Meta().Stem(), c2.Meta().Stem()

	require.NoError(t, r.Meta().Extend(Spec{Methods: []MethodDecl{Def("v", returns(2)), Def("w", noop)}}))
	assert.True(t, r.Meta().HasMethod("w"))

	assert.Same(t, stem1, c1.Meta().Stem())
	assert.Same(t, stem2, c2.Meta().Stem())
	assert.False(t, c1.Meta().HasMethod("w"))

	inst, err := c1.New()
	require.NoError(t, err)
	assert.Equal(t, 1, call(t, inst, "v"))
}

func TestParentExtensionReachesSubclasses(t *testing.T) {
	b := NewBuilder()
	parent, err := b.Class("Parent", Spec{})
	require.NoError(t, err)
	child, err := b.Class("Child", Spec{
		Isa:     parent,
		Methods: []MethodDecl{Def("who", returns("child"))},
	})
	require.NoError(t, err)
	grandchild, err := b.Class("Grandchild", Spec{Isa: child})
	require.NoError(t, err)

	old, err := child.New()
	require.NoError(t, err)
	oldGrand, err := grandchild.New()
	require.NoError(t, err)

	require.NoError(t, parent.Meta().Extend(Spec{Methods: []MethodDecl{
		Def("late", returns("late")),
		Def("who", returns("parent")),
	}}))

	assert.True(t, child.Meta().HasMethod("late"))
	assert.Equal(t, uint64(2), child.Meta().Generation())
	assert.Equal(t, "late", call(t, old, "late"), "existing subclass instances see the method")
	assert.Equal(t, "late", call(t, oldGrand, "late"))
	assert.Equal(t, "child", call(t, old, "who"), "the subclass's own method still wins")
	assert.True(t, child.Meta().IsA(parent))

	fresh, err := grandchild.New()
	require.NoError(t, err)
	assert.Equal(t, "child", call(t, fresh, "who"))
}

func TestParentExtensionReachesDetachedInstances(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Widget", Spec{})
	require.NoError(t, err)

	detached, err := c.New(map[string]any{DetachedOption: true})
	require.NoError(t, err)
	require.NoError(t, c.Meta().Extend(Spec{Methods: []MethodDecl{Def("later", returns("later"))}}))

	assert.Equal(t, "later", call(t, detached, "later"))
	assert.True(t, detached.IsA(c))
}

func TestParentExtensionBreakingASubclassIsRejected(t *testing.T) {
	b := NewBuilder()
	greets, err := b.Role("Greets", Spec{Methods: []MethodDecl{Def("greet", returns("hi"))}})
	require.NoError(t, err)
	parent, err := b.Class("Host", Spec{Does: []*Role{greets}})
	require.NoError(t, err)
	child, err := b.Class("Guest", Spec{
		Isa:       parent,
		Modifiers: []ModifierDecl{Before("greet", noop)},
	})
	require.NoError(t, err)
	parentStem := parent.Meta().Stem()
	childStem := child.Meta().Stem()

	err = parent.Meta().Extend(Spec{DoesNot: []*Role{greets}})
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "Guest")
	assert.Same(t, parentStem, parent.Meta().Stem())
	assert.Same(t, childStem, child.Meta().Stem())
	assert.Equal(t, uint64(1), parent.Meta().Generation())
}

func TestTraitsAndDetached(t *testing.T) {
	b := NewBuilder()
	loud, err := b.Role("Loud", Spec{
		Has:     []AttributeDecl{Has("volume", 11)},
		Methods: []MethodDecl{Def("shout", returns("HEY"))},
	})
	require.NoError(t, err)
	c, err := b.Class("Speaker", Spec{})
	require.NoError(t, err)

	withTrait, err := c.New(map[string]any{TraitOption: loud})
	require.NoError(t, err)
	assert.Equal(t, "HEY", call(t, withTrait, "shout"))
	assert.True(t, withTrait.Does(loud))
	assert.True(t, withTrait.IsA(c))
	assert.NotSame(t, c, withTrait.Class())
	assert.Contains(t, withTrait.Class().Name(), "Speaker.__ANON__.")
	assert.NotContains(t, withTrait.Slots(), TraitOption)
	volume, err := withTrait.Get("volume")
	require.NoError(t, err)
	assert.Equal(t, 11, volume)

	plain, err := c.New()
	require.NoError(t, err)
	assert.False(t, plain.CanCall("shout"))

	detached, err := c.New(map[string]any{DetachedOption: true})
	require.NoError(t, err)
	require.NoError(t, detached.Meta().Extend(Spec{Methods: []MethodDecl{Def("only", returns("me"))}}))
	assert.Equal(t, "me", call(t, detached, "only"))
	assert.False(t, plain.CanCall("only"))
	assert.False(t, c.Meta().HasMethod("only"))

	_, err = c.New(map[string]any{TraitsOption: "not a role"})
	assert.ErrorIs(t, err, ErrBadConstructorArgs)

	require.NoError(t, plain.Detach(loud))
	assert.Equal(t, "HEY", call(t, plain, "shout"))
	volume, err = plain.Get("volume")
	require.NoError(t, err)
	assert.Equal(t, 11, volume)
}

func TestMetaSequencesFollowExtensions(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Shape", Spec{Has: []AttributeDecl{Has("sides", 0)}})
	require.NoError(t, err)

	attrs := c.Meta().Attributes()
	names := func() []string {
		var out []string
		for a := range attrs {
			out = append(out, a.Name())
		}
		return out
	}
	assert.Equal(t, []string{"sides"}, names())

	require.NoError(t, c.Meta().Extend(Spec{Has: []AttributeDecl{Has("color", "red")}}))
	assert.Equal(t, []string{"sides", "color"}, names())

	methods := slices.Collect(c.Meta().Methods())
	assert.NotEmpty(t, methods)

	_, err = c.Meta().FindAttribute("color")
	require.NoError(t, err)
	_, err = c.Meta().FindMethod("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentExtendAndCall(t *testing.T) {
	b := NewBuilder()
	c, err := b.Class("Busy", Spec{Methods: []MethodDecl{Def("ping", returns("pong"))}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "m" + string(rune('a'+i))
			assert.NoError(t, c.Meta().Extend(Spec{Methods: []MethodDecl{Def(name, noop)}}))
			inst, err := c.New()
			if assert.NoError(t, err) {
				v, err := inst.Call("ping")
				assert.NoError(t, err)
				assert.Equal(t, "pong", v)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(9), c.Meta().Generation())
	for i := 0; i < 8; i++ {
		assert.True(t, c.Meta().HasMethod("m"+string(rune('a'+i))))
	}
}
