package namespace

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type module struct{ name string }

func (m *module) Placeholder() bool { return true }

func TestKeeper(t *testing.T) {
	t.Run("register and resolve", func(t *testing.T) {
		k := NewKeeper()
		require.NoError(t, k.Register("Point", "point"))

		v, err := k.Resolve("Point")
		require.NoError(t, err)
		assert.Equal(t, "point", v)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		k := NewKeeper()
		require.NoError(t, k.Register("Point", "point"))

		err := k.Register("Point", "other")
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("intermediate segments are placeholders", func(t *testing.T) {
		k := NewKeeper()
		require.NoError(t, k.Register("App.Model.User", "user"))

		v, err := k.Resolve("App.Model")
		require.NoError(t, err)
		seg, ok := v.(*Segment)
		require.True(t, ok)
		assert.Equal(t, "App.Model", seg.Path)

		require.NoError(t, k.Register("App", "app class"))
		v, err = k.Resolve("App")
		require.NoError(t, err)
		assert.Equal(t, "app class", v)

		v, err = k.Resolve("App.Model.User")
		require.NoError(t, err)
		assert.Equal(t, "user", v, "children survive replacement")
	})

	t.Run("explicit placeholders are replaceable", func(t *testing.T) {
		k := NewKeeper()
		require.NoError(t, k.Register("App", &module{name: "App"}))
		require.NoError(t, k.Register("App", "class"))
		assert.ErrorIs(t, k.Register("App", &module{name: "App"}), ErrAlreadyRegistered)
	})

	t.Run("invalid paths", func(t *testing.T) {
		k := NewKeeper()
		for _, path := range []string{"", "App.", ".App", "App..User", " "} {
			assert.ErrorIs(t, k.Register(path, 1), ErrInvalidPath, path)
		}
	})

	t.Run("resolve missing", func(t *testing.T) {
		k := NewKeeper()
		_, err := k.Resolve("Nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, k.Has("Nope"))
	})
}

func TestKeeperUnregister(t *testing.T) {
	k := NewKeeper()
	require.NoError(t, k.Register("App.Model.User", "user"))
	require.NoError(t, k.Register("App", "app"))

	assert.True(t, k.Unregister("App"))
	v, err := k.Resolve("App")
	require.NoError(t, err)
	assert.IsType(t, &Segment{}, v, "a path with children falls back to a segment")

	assert.True(t, k.Unregister("App.Model.User"))
	assert.False(t, k.Has("App"), "empty placeholder chains are pruned")
	assert.False(t, k.Unregister("App.Model.User"))
}

func TestKeeperUnregisterRestoresPlaceholder(t *testing.T) {
	k := NewKeeper()
	app := &module{name: "App"}
	require.NoError(t, k.Register("App", app))
	require.NoError(t, k.Register("App", "class"))

	assert.True(t, k.Unregister("App"))
	v, err := k.Resolve("App")
	require.NoError(t, err)
	assert.Same(t, app, v)
	assert.False(t, k.Unregister("App"), "a placeholder is not a real object")

	require.NoError(t, k.Register("App", "again"), "the restored module is still replaceable")
}

func TestKeeperListing(t *testing.T) {
	k := NewKeeper()
	for _, path := range []string{"Shapes.Circle", "Shapes.Square", "Point", "Shapes.Poly.Tri"} {
		require.NoError(t, k.Register(path, path))
	}

	assert.Equal(t, []string{"Point", "Shapes.Circle", "Shapes.Poly.Tri", "Shapes.Square"}, k.Paths())

	top, err := k.Children("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Point", "Shapes"}, top)

	shapes, err := k.Children("Shapes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle", "Poly", "Square"}, shapes)

	_, err = k.Children("Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeeperConcurrentRegister(t *testing.T) {
	k := NewKeeper()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, k.Register(fmt.Sprintf("Pkg.Type%d", i), i))
		}(i)
	}
	wg.Wait()

	children, err := k.Children("Pkg")
	require.NoError(t, err)
	assert.Len(t, children, 20)
}
