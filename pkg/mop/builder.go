package mop

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RootName is the name of the class every class ultimately inherits from.
const RootName = "Object"

// Namespace receives every named type a Builder produces.
type Namespace interface {
	Register(path string, obj any) error
	Unregister(path string) bool
	Resolve(path string) (any, error)
}

// Observer is notified of composition and construction events.
type Observer interface {
	TypeComposed(kind TypeKind, name string, elapsed time.Duration)
	TypeExtended(kind TypeKind, name string, generation uint64, elapsed time.Duration)
	CompositionFailed(kind TypeKind, name string, err error)
	InstanceConstructed(class string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TypeComposed(TypeKind, string, time.Duration)         {}
func (NopObserver) TypeExtended(TypeKind, string, uint64, time.Duration) {}
func (NopObserver) CompositionFailed(TypeKind, string, error)            {}
func (NopObserver) InstanceConstructed(string)                           {}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for composition events.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithNamespace registers every named type in ns.
func WithNamespace(ns Namespace) Option {
	return func(b *Builder) { b.namespace = ns }
}

// WithObserver reports composition and construction events to o.
func WithObserver(o Observer) Option {
	return func(b *Builder) {
		if o != nil {
			b.observer = o
		}
	}
}

// Builder declares classes, roles and modules. Every class it builds derives
// from its own root class.
type Builder struct {
	logger    *zap.Logger
	namespace Namespace
	observer  Observer
	root      *Class
}

// NewBuilder creates a builder and bootstraps its root class.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger:   zap.NewNop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.bootstrap()
	return b
}

// bootstrap creates the root class in two steps: an empty class first, then
// an extension installing the default BUILD and initialize, so the root is
// itself an ordinary class built by the machinery it anchors.
func (b *Builder) bootstrap() {
	root, err := b.newClass(RootName, Spec{}, nil)
	if err != nil {
		panic(fmt.Sprintf("mop: bootstrapping %s: %v", RootName, err))
	}
	b.root = root
	err = root.Meta().Extend(Spec{
		Methods: []MethodDecl{
			Def("BUILD", defaultBuild),
			Def("initialize", defaultInitialize),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("mop: bootstrapping %s: %v", RootName, err))
	}
}

// Root returns the root class.
func (b *Builder) Root() *Class { return b.root }

// Logger returns the builder's logger.
func (b *Builder) Logger() *zap.Logger { return b.logger }

// Class declares a class.
func (b *Builder) Class(name string, spec Spec) (*Class, error) {
	t, err := b.Build(ClassType, name, spec)
	if err != nil {
		return nil, err
	}
	return t.(*Class), nil
}

// Role declares a role.
func (b *Builder) Role(name string, spec Spec) (*Role, error) {
	t, err := b.Build(RoleType, name, spec)
	if err != nil {
		return nil, err
	}
	return t.(*Role), nil
}

// Module declares a namespace segment.
func (b *Builder) Module(name string, body func(t Type) error) (*Module, error) {
	t, err := b.Build(ModuleType, name, Spec{Body: body})
	if err != nil {
		return nil, err
	}
	return t.(*Module), nil
}

// Build declares a type of the given kind. The type is registered in the
// namespace only after it composed successfully, then spec.Body runs; a body
// error unregisters it again, restoring a module it replaced. On failure no
// state is left behind.
func (b *Builder) Build(kind TypeKind, name string, spec Spec) (Type, error) {
	start := time.Now()
	t, err := b.build(kind, name, spec)
	if err != nil {
		b.observer.CompositionFailed(kind, name, err)
		b.logger.Warn("declaration rejected",
			zap.Stringer("kind", kind),
			zap.String("type", name),
			zap.Error(err))
		return nil, err
	}

	b.observer.TypeComposed(kind, name, time.Since(start))
	b.logger.Debug("type composed",
		append(stemFields(t.Meta()), zap.Duration("elapsed", time.Since(start)))...)
	return t, nil
}

func stemFields(m *Meta) []zap.Field {
	s := m.Stem()
	return []zap.Field{
		zap.Stringer("kind", m.Kind()),
		zap.String("type", m.Name()),
		zap.Uint64("generation", m.Generation()),
		zap.Int("attributes", s.Attributes.Len()),
		zap.Int("methods", s.Methods.Len()),
		zap.Int("requirements", s.Requirements.Len()),
		zap.Int("modifiers", s.Modifiers.Len()),
	}
}

func (b *Builder) build(kind TypeKind, name string, spec Spec) (Type, error) {
	if name == "" {
		return nil, invalidDeclaration("%s name must not be empty", kind)
	}

	var t Type
	var err error
	switch kind {
	case ClassType:
		t, err = b.newClass(name, spec, b.root)
	case RoleType:
		t, err = b.newRole(name, spec)
	case ModuleType:
		t, err = b.newModule(name, spec)
	default:
		err = invalidDeclaration("unknown type kind %d", kind)
	}
	if err != nil {
		return nil, withType(err, name)
	}

	if b.namespace != nil {
		if err := b.namespace.Register(name, t); err != nil {
			discard(t)
			return nil, err
		}
	}
	if spec.Body != nil {
		if err := spec.Body(t); err != nil {
			if b.namespace != nil {
				b.namespace.Unregister(name)
			}
			discard(t)
			return nil, fmt.Errorf("%s %s: body: %w", kind, name, err)
		}
	}
	return t, nil
}

// newClass composes a class. defaultParent is used when spec.Isa is nil; it
// is nil only while bootstrapping the root.
func (b *Builder) newClass(name string, spec Spec, defaultParent *Class) (*Class, error) {
	if len(spec.Requires) > 0 {
		return nil, invalidDeclaration("requires is only valid for roles; class %s must implement the methods", name)
	}
	if len(spec.DoesNot) > 0 {
		return nil, invalidDeclaration("doesnot is only valid when extending a type")
	}
	own, err := BuildStem(name, spec)
	if err != nil {
		return nil, err
	}
	parent := spec.Isa
	if parent == nil {
		parent = defaultParent
	}
	refs, err := roleRefs(spec.Does)
	if err != nil {
		return nil, err
	}

	// the parent stays locked until the new class is adopted, so no
	// extension of it can slip in between
	if parent != nil {
		parent.mu.Lock()
		defer parent.mu.Unlock()
	}
	st, err := b.composeState(ClassType, name, own, parent, snapshotOf(parent), refs)
	if err != nil {
		return nil, err
	}
	st.generation = 1
	st.constructor = spec.Constructor

	c := &Class{}
	c.init(b, ClassType, name, c, st)
	if parent != nil {
		parent.adopt(c)
	}
	return c, nil
}

// discard undoes the adoption of a class whose declaration failed after it
// was composed.
func discard(t Type) {
	if c, ok := t.(*Class); ok {
		if parent := c.load().parent; parent != nil {
			parent.disown(c)
		}
	}
}

func (b *Builder) newRole(name string, spec Spec) (*Role, error) {
	if spec.Isa != nil {
		return nil, invalidDeclaration("roles have no superclass")
	}
	if spec.Constructor != nil {
		return nil, invalidDeclaration("roles cannot declare a constructor")
	}
	if len(spec.DoesNot) > 0 {
		return nil, invalidDeclaration("doesnot is only valid when extending a type")
	}
	own, err := BuildStem(name, spec)
	if err != nil {
		return nil, err
	}
	refs, err := roleRefs(spec.Does)
	if err != nil {
		return nil, err
	}
	st, err := b.composeState(RoleType, name, own, nil, nil, refs)
	if err != nil {
		return nil, err
	}
	st.generation = 1

	r := &Role{}
	r.init(b, RoleType, name, r, st)
	return r, nil
}

func (b *Builder) newModule(name string, spec Spec) (*Module, error) {
	if spec.Isa != nil || len(spec.Does) > 0 || len(spec.DoesNot) > 0 ||
		len(spec.Has) > 0 || len(spec.Methods) > 0 || len(spec.Requires) > 0 ||
		len(spec.Modifiers) > 0 || spec.Constructor != nil {
		return nil, invalidDeclaration("modules cannot declare properties")
	}
	m := &Module{}
	m.init(b, ModuleType, name, m, &state{generation: 1, own: NewStem(), effective: NewStem()})
	return m, nil
}

// detach derives an anonymous subclass of c composing traits. Detached
// classes are never registered, but extensions of c reach them like any
// other subclass.
func (b *Builder) detach(c *Class, traits []*Role) (*Class, error) {
	name := c.name + ".__ANON__." + uuid.NewString()
	return b.newClass(name, Spec{Isa: c, Does: traits}, nil)
}

// composeState runs Compose over the given inputs and wraps the result in a
// fresh state. The caller sets generation and constructor.
func (b *Builder) composeState(
	kind TypeKind,
	name string,
	own *Stem,
	parent *Class,
	parentSnap *state,
	refs []roleRef,
) (*state, error) {
	in := Composition{
		Mode:   ClassComposition,
		Target: name,
		Own:    own,
	}
	if kind == RoleType {
		in.Mode = RoleComposition
	}
	if parentSnap != nil {
		in.Inherited = parentSnap.effective
		in.InheritedLabel = parent.name
		in.inheritedDispatch = parentSnap.dispatch
	}
	for _, ref := range refs {
		in.Roles = append(in.Roles, Layer{Label: ref.role.name, Stem: ref.snap.effective})
	}

	out, err := Compose(in)
	if err != nil {
		return nil, err
	}
	return &state{
		own:        own,
		parent:     parent,
		parentSnap: parentSnap,
		roles:      refs,
		effective:  out.Stem,
		dispatch:   out.dispatch,
	}, nil
}

func snapshotOf(c *Class) *state {
	if c == nil {
		return nil
	}
	return c.load()
}

// roleRefs snapshots roles in order, skipping repeats.
func roleRefs(roles []*Role) ([]roleRef, error) {
	refs := make([]roleRef, 0, len(roles))
	seen := make(map[*Role]struct{}, len(roles))
	for i, r := range roles {
		if r == nil {
			return nil, invalidDeclaration("does[%d] is nil", i)
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		refs = append(refs, roleRef{role: r, snap: r.load()})
	}
	return refs, nil
}
