package mop

import (
	"fmt"
)

// Call is the receiver-side view of one method invocation. Modifier bodies
// reach the wrapped method through Original (around), Super (override) or
// Inner (augment).
type Call struct {
	Self   *Instance
	Method string
	Args   []any

	original *callable
	super    *callable
	inner    []Func
}

// Arg returns the i-th argument, or nil when there are fewer arguments.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Original invokes the method wrapped by an around modifier.
func (c *Call) Original(args ...any) (any, error) {
	if c.original == nil {
		return nil, &Error{Code: CodeNotFound, Message: "no original method outside an around modifier", Name: c.Method}
	}
	return c.original.fn(c.next(args))
}

// Super invokes the implementation shadowed by an override modifier.
func (c *Call) Super(args ...any) (any, error) {
	if c.super == nil {
		return nil, &Error{Code: CodeNotFound, Message: "no super method outside an override modifier", Name: c.Method}
	}
	return c.super.fn(c.next(args))
}

// Inner runs the next augmentation spliced into an innable method. With
// nothing left to splice it returns nil, nil.
func (c *Call) Inner(args ...any) (any, error) {
	if len(c.inner) == 0 {
		return nil, nil
	}
	return c.inner[0](&Call{
		Self:   c.Self,
		Method: c.Method,
		Args:   args,
		inner:  c.inner[1:],
	})
}

// next builds the call handed to a wrapped method: same receiver and pending
// augmentations, no modifier-specific links.
func (c *Call) next(args []any) *Call {
	return &Call{Self: c.Self, Method: c.Method, Args: args, inner: c.inner}
}

// callable is a compiled dispatch entry: the base body with every modifier
// applied at composition time.
type callable struct {
	fn      Func
	innable bool
	origin  string
}

func baseCallable(m *Method) *callable {
	return &callable{fn: m.body, innable: m.innable, origin: m.source}
}

// wrap applies one modifier to target and returns the new dispatch entry.
func wrap(target *callable, mod *Modifier) (*callable, error) {
	body := mod.body
	switch mod.kind {
	case BeforeModifier:
		return &callable{
			fn: func(c *Call) (any, error) {
				if _, err := body(c.next(c.Args)); err != nil {
					return nil, err
				}
				return target.fn(c.next(c.Args))
			},
			innable: target.innable,
			origin:  target.origin,
		}, nil

	case AfterModifier:
		return &callable{
			fn: func(c *Call) (any, error) {
				result, err := target.fn(c.next(c.Args))
				if err != nil {
					return nil, err
				}
				if _, err := body(c.next(c.Args)); err != nil {
					return nil, err
				}
				return result, nil
			},
			innable: target.innable,
			origin:  target.origin,
		}, nil

	case AroundModifier:
		return &callable{
			fn: func(c *Call) (any, error) {
				call := c.next(c.Args)
				call.original = target
				return body(call)
			},
			innable: target.innable,
			origin:  target.origin,
		}, nil

	case OverrideModifier:
		return &callable{
			fn: func(c *Call) (any, error) {
				call := c.next(c.Args)
				call.super = target
				return body(call)
			},
			origin: mod.source,
		}, nil

	case AugmentModifier:
		if !target.innable {
			return nil, &Error{
				Code:    CodeNotInnable,
				Message: fmt.Sprintf("cannot augment %q: the method declared by %s is not innable", mod.name, target.origin),
				Name:    mod.name,
				Sources: sourceList(mod.source),
			}
		}
		return &callable{
			fn: func(c *Call) (any, error) {
				call := c.next(c.Args)
				call.inner = append([]Func{body}, c.inner...)
				return target.fn(call)
			},
			innable: true,
			origin:  target.origin,
		}, nil
	}
	return nil, invalidDeclaration("unknown modifier kind %d", mod.kind)
}
