package decl

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/conduit-lang/mop/pkg/mop"
)

// Evaluator compiles expression bodies for methods, modifiers and attribute
// initializers. Compiled programs are cached by source.
type Evaluator struct {
	cache   map[string]*vm.Program
	cacheMu sync.RWMutex

	envOptions []expr.Option
}

// NewEvaluator creates an evaluator with the helper functions available in
// every expression.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		cache: make(map[string]*vm.Program),
	}
	e.envOptions = []expr.Option{
		// get is an env function bound to the receiver
		expr.DisableBuiltin("get"),
		expr.Function("list", func(params ...any) (any, error) {
			return append([]any{}, params...), nil
		}),
		expr.Function("sprintf", func(params ...any) (any, error) {
			if len(params) < 1 {
				return nil, fmt.Errorf("sprintf requires a format")
			}
			format, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("sprintf format must be a string")
			}
			return fmt.Sprintf(format, params[1:]...), nil
		}),
	}
	return e
}

// Method compiles source into a method or modifier body.
func (e *Evaluator) Method(source string) (mop.Func, error) {
	program, err := e.getOrCompile(source)
	if err != nil {
		return nil, err
	}
	return func(c *mop.Call) (any, error) {
		out, err := expr.Run(program, callEnv(c))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Method, err)
		}
		return out, nil
	}, nil
}

// Initializer compiles source into a per-instance attribute initializer.
func (e *Evaluator) Initializer(attr, source string) (mop.Initializer, error) {
	program, err := e.getOrCompile(source)
	if err != nil {
		return nil, err
	}
	return func(self *mop.Instance) (any, error) {
		out, err := expr.Run(program, callEnv(&mop.Call{Self: self, Method: attr}))
		if err != nil {
			return nil, fmt.Errorf("init %s: %w", attr, err)
		}
		return out, nil
	}, nil
}

// Check compiles source without keeping a body.
func (e *Evaluator) Check(source string) error {
	_, err := e.getOrCompile(source)
	return err
}

// getOrCompile returns a cached compiled program or compiles a new one.
func (e *Evaluator) getOrCompile(source string) (*vm.Program, error) {
	e.cacheMu.RLock()
	program, ok := e.cache[source]
	e.cacheMu.RUnlock()

	if ok {
		return program, nil
	}

	opts := append([]expr.Option{expr.Env(callEnv(nil))}, e.envOptions...)
	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, err
	}

	e.cacheMu.Lock()
	e.cache[source] = program
	e.cacheMu.Unlock()

	return program, nil
}

// callEnv builds the variables and functions an expression sees. A nil call
// yields the sample environment used for type checking.
func callEnv(c *mop.Call) map[string]any {
	if c == nil {
		c = &mop.Call{}
	}
	self := map[string]any{}
	if c.Self != nil {
		self = c.Self.Slots()
	}
	args := c.Args
	if args == nil {
		args = []any{}
	}

	return map[string]any{
		"self":   self,
		"args":   args,
		"method": c.Method,
		"call": func(name string, args ...any) (any, error) {
			if c.Self == nil {
				return nil, errNoReceiver
			}
			return c.Self.Call(name, args...)
		},
		"get": func(name string) (any, error) {
			if c.Self == nil {
				return nil, errNoReceiver
			}
			return c.Self.Get(name)
		},
		"set": func(name string, v any) (any, error) {
			if c.Self == nil {
				return nil, errNoReceiver
			}
			return v, c.Self.Set(name, v)
		},
		"push": func(name string, v any) (any, error) {
			if c.Self == nil {
				return nil, errNoReceiver
			}
			cur, err := c.Self.Get(name)
			if err != nil {
				return nil, err
			}
			list := toList(cur)
			list = append(list, v)
			if err := c.Self.Set(name, list); err != nil {
				return nil, err
			}
			return len(list), nil
		},
		// original, super and inner called without arguments pass the
		// current call's arguments on.
		"original": func(args ...any) (any, error) { return c.Original(forward(c, args)...) },
		"super":    func(args ...any) (any, error) { return c.Super(forward(c, args)...) },
		"inner":    func(args ...any) (any, error) { return c.Inner(forward(c, args)...) },
	}
}

func forward(c *mop.Call, args []any) []any {
	if len(args) == 0 {
		return c.Args
	}
	return args
}

var errNoReceiver = fmt.Errorf("expression has no receiver")

// toList copies any slice into a []any; nil becomes an empty list.
func toList(v any) []any {
	if v == nil {
		return []any{}
	}
	if list, ok := v.([]any); ok {
		return append([]any{}, list...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
