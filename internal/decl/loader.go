// Package decl loads class, role and module declarations from YAML files
package decl

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/mop/pkg/mop"
)

// Entry actions. Every declaration entry carries exactly one.
const (
	ActionClass  = "class"
	ActionRole   = "role"
	ActionModule = "module"
	ActionExtend = "extend"
)

var actions = []string{ActionClass, ActionRole, ActionModule, ActionExtend}

// Resolver looks up previously declared types by dotted name.
type Resolver interface {
	Resolve(path string) (any, error)
}

// Declared records one entry that loaded successfully.
type Declared struct {
	Action string
	Name   string
	Type   mop.Type
	Line   int
}

// Result is the outcome of loading one file. A failing entry is recorded in
// Errors and skipped; later entries still load.
type Result struct {
	File     string
	Declared []Declared
	Errors   ErrorList
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEvaluator shares an expression evaluator, and its program cache,
// between loaders.
func WithEvaluator(e *Evaluator) Option {
	return func(l *Loader) {
		if e != nil {
			l.eval = e
		}
	}
}

// Loader turns declaration files into types built by a mop.Builder. Names in
// isa, does, doesnot and extend are looked up through names, which must be
// the namespace the builder registers into.
type Loader struct {
	builder *mop.Builder
	names   Resolver
	eval    *Evaluator
	logger  *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(b *mop.Builder, names Resolver, opts ...Option) *Loader {
	l := &Loader{
		builder: b,
		names:   names,
		eval:    NewEvaluator(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("decl")
	return l
}

// LoadFile reads and loads one file.
func (l *Loader) LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return l.Load(path, data)
}

// Load loads the declarations in data, in order. It fails only when data is
// not a YAML sequence; declaration errors are collected in the result.
func (l *Loader) Load(file string, data []byte) (*Result, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}

	res := &Result{File: file}
	if len(doc.Content) == 0 {
		return res, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s:%d: top level must be a sequence of declarations", file, root.Line)
	}

	for _, entry := range root.Content {
		d, declErr := l.loadEntry(file, entry)
		if declErr != nil {
			l.logger.Warn("declaration skipped",
				zap.String("file", file),
				zap.Int("line", declErr.Line),
				zap.String("code", string(declErr.Code)),
				zap.Error(declErr.Err))
			res.Errors = append(res.Errors, declErr)
			continue
		}
		l.logger.Debug("declaration loaded",
			zap.String("file", file),
			zap.String("action", d.Action),
			zap.String("name", d.Name))
		res.Declared = append(res.Declared, d)
	}
	return res, nil
}

// entryState carries what is known about the entry being loaded, for errors.
type entryState struct {
	file  string
	label string
}

func (s *entryState) fail(at *yaml.Node, err error) *Error {
	return &Error{
		Code:    codeOf(err),
		File:    s.file,
		Line:    at.Line,
		Column:  at.Column,
		Entry:   s.label,
		Message: err.Error(),
		Err:     err,
	}
}

func (l *Loader) loadEntry(file string, n *yaml.Node) (Declared, *Error) {
	st := &entryState{file: file}
	if n.Kind != yaml.MappingNode {
		return Declared{}, st.fail(n, invalid("a declaration must be a mapping"))
	}

	var action, name string
	var header *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if !slices.Contains(actions, key.Value) {
			continue
		}
		if action != "" {
			return Declared{}, st.fail(key, invalid("entry declares both %s and %s", action, key.Value))
		}
		s, err := scalar(val)
		if err != nil {
			return Declared{}, st.fail(val, fmt.Errorf("%s name: %w", key.Value, err))
		}
		action, name, header = key.Value, s, key
	}
	if action == "" {
		return Declared{}, st.fail(n, invalid("entry needs one of class, role, module or extend"))
	}
	st.label = action + " " + name

	var spec mop.Spec
	seen := map[string]bool{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Value == action {
			continue
		}
		if seen[key.Value] {
			return Declared{}, st.fail(key, invalid("key %q appears twice", key.Value))
		}
		seen[key.Value] = true
		if err := l.applyKey(&spec, key.Value, val); err != nil {
			return Declared{}, st.fail(key, err)
		}
	}

	t, err := l.declare(action, name, spec)
	if err != nil {
		return Declared{}, st.fail(header, err)
	}
	return Declared{Action: action, Name: name, Type: t, Line: header.Line}, nil
}

func (l *Loader) declare(action, name string, spec mop.Spec) (mop.Type, error) {
	switch action {
	case ActionClass:
		return l.builder.Build(mop.ClassType, name, spec)
	case ActionRole:
		return l.builder.Build(mop.RoleType, name, spec)
	case ActionModule:
		return l.builder.Build(mop.ModuleType, name, spec)
	case ActionExtend:
		t, err := l.resolveType(name)
		if err != nil {
			return nil, err
		}
		if err := t.Meta().Extend(spec); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, invalid("unknown action %q", action)
}

func (l *Loader) applyKey(spec *mop.Spec, key string, val *yaml.Node) error {
	if kind, ok := mop.ParseModifierKind(key); ok {
		return forEachPair(val, key, func(name string, body *yaml.Node) error {
			src, err := scalar(body)
			if err != nil {
				return fmt.Errorf("%s %s: %w", key, name, err)
			}
			fn, err := l.eval.Method(src)
			if err != nil {
				return compileError(key+" "+name, err)
			}
			spec.Modifiers = append(spec.Modifiers, mop.ModifierDecl{Kind: kind, Name: name, Body: fn})
			return nil
		})
	}

	switch key {
	case "isa":
		name, err := scalar(val)
		if err != nil {
			return fmt.Errorf("isa: %w", err)
		}
		c, err := l.resolveClass(name)
		if err != nil {
			return err
		}
		spec.Isa = c

	case "does", "doesnot":
		names, err := nameList(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		for _, name := range names {
			r, err := l.resolveRole(name)
			if err != nil {
				return err
			}
			if key == "does" {
				spec.Does = append(spec.Does, r)
			} else {
				spec.DoesNot = append(spec.DoesNot, r)
			}
		}

	case "requires":
		names, err := nameList(val)
		if err != nil {
			return fmt.Errorf("requires: %w", err)
		}
		spec.Requires = append(spec.Requires, names...)

	case "has":
		return forEachPair(val, key, func(name string, n *yaml.Node) error {
			shorthand, err := l.attribute(name, n)
			if err != nil {
				return err
			}
			spec.Has = append(spec.Has, mop.Has(name, shorthand))
			return nil
		})

	case "methods":
		return forEachPair(val, key, func(name string, n *yaml.Node) error {
			m, err := l.method(name, n)
			if err != nil {
				return err
			}
			spec.Methods = append(spec.Methods, m)
			return nil
		})

	default:
		return invalid("unknown key %q", key)
	}
	return nil
}

// attribute decodes one `has` value into the shorthand NormalizeAttribute
// accepts. The loader-only option initExpr becomes an Initializer.
func (l *Loader) attribute(name string, n *yaml.Node) (any, error) {
	if n.Kind != yaml.MappingNode {
		if n.Tag == "!!null" {
			return nil, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		return v, nil
	}

	var opts map[string]any
	if err := n.Decode(&opts); err != nil {
		return nil, fmt.Errorf("attribute %s: %w", name, err)
	}
	src, ok := opts["initExpr"]
	if !ok {
		return opts, nil
	}
	if _, both := opts["init"]; both {
		return nil, invalid("attribute %s: init and initExpr are exclusive", name)
	}
	s, ok := src.(string)
	if !ok {
		return nil, invalid("attribute %s: initExpr must be a string", name)
	}
	init, err := l.eval.Initializer(name, s)
	if err != nil {
		return nil, compileError("attribute "+name, err)
	}
	delete(opts, "initExpr")
	opts["init"] = init
	return opts, nil
}

func (l *Loader) method(name string, n *yaml.Node) (mop.MethodDecl, error) {
	var src string
	var innable bool
	switch n.Kind {
	case yaml.ScalarNode:
		src = n.Value
	case yaml.MappingNode:
		var body struct {
			Expr    string `yaml:"expr"`
			Innable bool   `yaml:"innable"`
		}
		if err := decodeStrict(n, &body); err != nil {
			return mop.MethodDecl{}, fmt.Errorf("method %s: %w", name, err)
		}
		src, innable = body.Expr, body.Innable
	default:
		return mop.MethodDecl{}, invalid("method %s: want an expression or {expr, innable}", name)
	}
	if src == "" {
		return mop.MethodDecl{}, invalid("method %s has no body", name)
	}

	fn, err := l.eval.Method(src)
	if err != nil {
		return mop.MethodDecl{}, compileError("method "+name, err)
	}
	return mop.MethodDecl{Name: name, Body: fn, Innable: innable}, nil
}

func (l *Loader) resolveType(name string) (mop.Type, error) {
	v, err := l.names.Resolve(name)
	if err != nil {
		return nil, &mop.Error{Code: mop.CodeNotFound, Message: fmt.Sprintf("type %s is not declared", name), Name: name, Err: err}
	}
	t, ok := v.(mop.Type)
	if !ok {
		return nil, &mop.Error{Code: mop.CodeNotFound, Message: fmt.Sprintf("%s is a namespace segment, not a type", name), Name: name}
	}
	return t, nil
}

func (l *Loader) resolveClass(name string) (*mop.Class, error) {
	t, err := l.resolveType(name)
	if err != nil {
		return nil, err
	}
	c, ok := t.(*mop.Class)
	if !ok {
		return nil, invalid("%s is a %s, not a class", name, t.Kind())
	}
	return c, nil
}

func (l *Loader) resolveRole(name string) (*mop.Role, error) {
	t, err := l.resolveType(name)
	if err != nil {
		return nil, err
	}
	r, ok := t.(*mop.Role)
	if !ok {
		return nil, invalid("%s is a %s, not a role", name, t.Kind())
	}
	return r, nil
}

func forEachPair(n *yaml.Node, key string, fn func(name string, val *yaml.Node) error) error {
	if n.Kind != yaml.MappingNode {
		return invalid("%s must be a mapping", key)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", invalid("want a non-empty string")
	}
	return n.Value, nil
}

func nameList(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.ScalarNode {
		s, err := scalar(n)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, invalid("want a name or a list of names")
	}
	names := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := scalar(item)
		if err != nil {
			return nil, err
		}
		names = append(names, s)
	}
	return names, nil
}

// decodeStrict decodes a mapping node rejecting unknown fields.
func decodeStrict(n *yaml.Node, out any) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return invalid("%v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return &mop.Error{Code: mop.CodeInvalidDeclaration, Message: fmt.Sprintf(format, args...)}
}

func compileError(what string, err error) error {
	return &mop.Error{
		Code:    mop.CodeInvalidDeclaration,
		Message: what + ": expression does not compile",
		Err:     err,
	}
}
