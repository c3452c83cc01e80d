// Package namespace provides a registry of named objects under dotted paths
package namespace

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrAlreadyRegistered is returned when a path already holds a real object.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrNotFound is returned when a path holds nothing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath is returned for empty paths or empty segments.
	ErrInvalidPath = errors.New("invalid path")
)

// Placeholder is implemented by objects that a later registration of the same
// path may replace.
type Placeholder interface {
	Placeholder() bool
}

// Segment stands for an intermediate path segment that nothing was registered
// under, e.g. "App" after registering "App.Model.User".
type Segment struct {
	Path string
}

// Placeholder reports true: any declaration may take a segment's place.
func (s *Segment) Placeholder() bool { return true }

func (s *Segment) String() string { return s.Path }

type node struct {
	path     string
	value    any
	children map[string]*node

	// explicit placeholder displaced by value, restored by Unregister
	replaced any
}

func newNode(path string) *node {
	return &node{path: path, value: &Segment{Path: path}, children: map[string]*node{}}
}

func replaceable(v any) bool {
	p, ok := v.(Placeholder)
	return ok && p.Placeholder()
}

// Keeper manages every registered object
type Keeper struct {
	root *node
	mu   sync.RWMutex
}

// NewKeeper creates an empty keeper
func NewKeeper() *Keeper {
	return &Keeper{root: newNode("")}
}

// Register stores obj under path, creating placeholder segments for missing
// parents. A placeholder at path is replaced and its children are kept.
func (k *Keeper) Register(path string, obj any) error {
	segments, err := split(path)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	n := k.root
	for i, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			child = newNode(strings.Join(segments[:i+1], "."))
			n.children[seg] = child
		}
		n = child
	}

	if !replaceable(n.value) {
		return fmt.Errorf("%s is %w", path, ErrAlreadyRegistered)
	}
	if !isSegment(n.value) {
		n.replaced = n.value
	}
	n.value = obj
	return nil
}

// Unregister removes the object at path. The placeholder it replaced comes
// back; otherwise a path with children falls back to a segment. It reports
// whether a real object was removed.
func (k *Keeper) Unregister(path string) bool {
	segments, err := split(path)
	if err != nil {
		return false
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	trail := []*node{k.root}
	n := k.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			return false
		}
		n = child
		trail = append(trail, n)
	}
	if replaceable(n.value) {
		return false
	}
	n.value = &Segment{Path: n.path}
	if n.replaced != nil {
		n.value, n.replaced = n.replaced, nil
	}

	// prune placeholder leaves on the way back up
	for i := len(segments) - 1; i >= 0; i-- {
		cur := trail[i+1]
		if len(cur.children) > 0 || !isSegment(cur.value) {
			break
		}
		delete(trail[i].children, segments[i])
	}
	return true
}

func isSegment(v any) bool {
	_, ok := v.(*Segment)
	return ok
}

// Resolve returns the object at path. Intermediate segments resolve to a
// *Segment.
func (k *Keeper) Resolve(path string) (any, error) {
	segments, err := split(path)
	if err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	n, ok := k.lookup(segments)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return n.value, nil
}

// Has reports whether path holds anything, placeholders included.
func (k *Keeper) Has(path string) bool {
	_, err := k.Resolve(path)
	return err == nil
}

// Children returns the sorted names of the segments directly below path. An
// empty path lists the top level.
func (k *Keeper) Children(path string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	n := k.root
	if path != "" {
		segments, err := split(path)
		if err != nil {
			return nil, err
		}
		var ok bool
		if n, ok = k.lookup(segments); !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Paths returns every path holding a real object, sorted.
func (k *Keeper) Paths() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var paths []string
	var walk func(n *node)
	walk = func(n *node) {
		if n != k.root && !isSegment(n.value) {
			paths = append(paths, n.path)
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(k.root)
	sort.Strings(paths)
	return paths
}

func (k *Keeper) lookup(segments []string) (*node, bool) {
	n := k.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

func split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return segments, nil
}
