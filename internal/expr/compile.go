package expr

import (
	"fmt"
	"reflect"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/op"
)

// DefaultMaxDepth bounds the nesting depth Compile accepts.
const DefaultMaxDepth = 256

type evalFn func(fr *frame) (reflect.Value, error)

// frame holds the argument values of one lambda activation.
type frame struct {
	vals   []reflect.Value
	parent *frame
}

// scope mirrors frame at compile time.
type scope struct {
	params []*Parameter
	parent *scope
}

func (s *scope) lookup(p *Parameter) (depth, idx int, ok bool) {
	for cur := s; cur != nil; cur = cur.parent {
		for i, q := range cur.params {
			if q == p {
				return depth, i, true
			}
		}
		depth++
	}
	return 0, 0, false
}

// evalPanic carries an evaluation error through reflect.MakeFunc, which
// cannot return one.
type evalPanic struct{ err error }

// Closure is a compiled lambda.
type Closure struct {
	lambda *Lambda
	body   evalFn
}

// CompileOption configures Compile.
type CompileOption func(*compiler)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) CompileOption {
	return func(c *compiler) { c.maxDepth = n }
}

type compiler struct {
	maxDepth int
}

// Compile turns l into an invokable closure. Every Parameter referenced in
// the body must be declared by l or an enclosing lambda; the lookup is by
// pointer identity.
func Compile(l *Lambda, opts ...CompileOption) (*Closure, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil lambda", ErrInvalidExpression)
	}
	c := &compiler{maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(c)
	}
	body, err := c.compile(l.Body, &scope{params: l.Params}, 1)
	if err != nil {
		return nil, err
	}
	return &Closure{lambda: l, body: c.result(body, l.Type().Out(0))}, nil
}

// Lambda returns the compiled tree.
func (c *Closure) Lambda() *Lambda { return c.lambda }

// Call invokes the closure. Arguments must be assignable to the declared
// parameter types; nil stands for the zero value.
func (c *Closure) Call(args ...any) (result any, err error) {
	ft := c.lambda.Type()
	if len(args) != ft.NumIn() {
		return nil, &rerrors.ArityMismatchError{Context: "call of " + ft.String(), Expected: ft.NumIn(), Actual: len(args)}
	}
	vals := make([]reflect.Value, len(args))
	for i, a := range args {
		want := ft.In(i)
		if a == nil {
			vals[i] = reflect.Zero(want)
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(want) {
			return nil, mismatch("argument %d is %s, want %s", i, v.Type(), want)
		}
		vals[i] = coerce(v, want)
	}
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	v, err := c.body(&frame{vals: vals})
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Interface returns the closure as a Go func of the lambda type. Evaluation
// errors panic.
func (c *Closure) Interface() any {
	return makeFunc(c.lambda.Type(), c.body, nil).Interface()
}

func recovered(r any) error {
	if p, ok := r.(*evalPanic); ok {
		return p.err
	}
	if e, ok := r.(error); ok {
		return fmt.Errorf("evaluation panicked: %w", e)
	}
	return fmt.Errorf("evaluation panicked: %v", r)
}

func makeFunc(t reflect.Type, body evalFn, parent *frame) reflect.Value {
	return reflect.MakeFunc(t, func(in []reflect.Value) []reflect.Value {
		v, err := body(&frame{vals: in, parent: parent})
		if err != nil {
			panic(&evalPanic{err: err})
		}
		return []reflect.Value{v}
	})
}

// result coerces the value of fn to t.
func (c *compiler) result(fn evalFn, t reflect.Type) evalFn {
	return func(fr *frame) (reflect.Value, error) {
		v, err := fn(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		return coerce(v, t), nil
	}
}

func (c *compiler) compileAll(list []Expr, s *scope, depth int) ([]evalFn, error) {
	out := make([]evalFn, len(list))
	for i, e := range list {
		fn, err := c.compile(e, s, depth)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

// args evaluates fns and coerces each value to the matching type.
func evalArgs(fr *frame, fns []evalFn, types []reflect.Type) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(fns))
	for i, fn := range fns {
		v, err := fn(fr)
		if err != nil {
			return nil, err
		}
		out[i] = coerce(v, types[i])
	}
	return out, nil
}

func (c *compiler) compile(e Expr, s *scope, depth int) (evalFn, error) {
	if depth > c.maxDepth {
		return nil, &rerrors.RecursionLimitError{Limit: c.maxDepth}
	}
	if e == nil {
		return nil, fmt.Errorf("%w: nil expression", ErrInvalidExpression)
	}
	depth++
	switch n := e.(type) {
	case *Constant:
		v := coerce(reflect.ValueOf(n.Value), n.Type())
		return func(*frame) (reflect.Value, error) { return v, nil }, nil

	case *Parameter:
		d, idx, ok := s.lookup(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundParameter, n)
		}
		return func(fr *frame) (reflect.Value, error) {
			for i := 0; i < d; i++ {
				fr = fr.parent
			}
			return fr.vals[idx], nil
		}, nil

	case *Lambda:
		body, err := c.compile(n.Body, &scope{params: n.Params, parent: s}, depth)
		if err != nil {
			return nil, err
		}
		body = c.result(body, n.Type().Out(0))
		return func(fr *frame) (reflect.Value, error) {
			return makeFunc(n.Type(), body, fr), nil
		}, nil

	case *Unary:
		operand, err := c.compile(n.Operand, s, depth)
		if err != nil {
			return nil, err
		}
		if n.Method != nil {
			params := n.Method.Params()
			return func(fr *frame) (reflect.Value, error) {
				v, err := operand(fr)
				if err != nil {
					return reflect.Value{}, err
				}
				return n.Method.call(reflect.Value{}, []reflect.Value{coerce(v, params[0])})
			}, nil
		}
		return func(fr *frame) (reflect.Value, error) {
			v, err := operand(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return applyUnary(n.Op, v, n.Type())
		}, nil

	case *Binary:
		left, err := c.compile(n.Left, s, depth)
		if err != nil {
			return nil, err
		}
		right, err := c.compile(n.Right, s, depth)
		if err != nil {
			return nil, err
		}
		return c.binary(n, left, right), nil

	case *Conditional:
		fns, err := c.compileAll([]Expr{n.Test, n.IfTrue, n.IfFalse}, s, depth)
		if err != nil {
			return nil, err
		}
		return func(fr *frame) (reflect.Value, error) {
			t, err := fns[0](fr)
			if err != nil {
				return reflect.Value{}, err
			}
			branch := fns[2]
			if t.Bool() {
				branch = fns[1]
			}
			v, err := branch(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return coerce(v, n.Type()), nil
		}, nil

	case *Call:
		var recv evalFn
		if n.Object != nil {
			var err error
			if recv, err = c.compile(n.Object, s, depth); err != nil {
				return nil, err
			}
		}
		args, err := c.compileAll(n.Args, s, depth)
		if err != nil {
			return nil, err
		}
		params := n.Method.Params()
		return func(fr *frame) (reflect.Value, error) {
			var r reflect.Value
			if recv != nil {
				v, err := recv(fr)
				if err != nil {
					return reflect.Value{}, err
				}
				r = coerce(v, n.Method.Receiver())
			}
			in, err := evalArgs(fr, args, params)
			if err != nil {
				return reflect.Value{}, err
			}
			return n.Method.call(r, in)
		}, nil

	case *MemberAccess:
		obj, err := c.compile(n.Object, s, depth)
		if err != nil {
			return nil, err
		}
		return func(fr *frame) (reflect.Value, error) {
			v, err := obj(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			if v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, fmt.Errorf("%w: field %s of nil %s", ErrNilDereference, n.Field.Name, v.Type())
				}
				v = v.Elem()
			}
			return v.FieldByIndex(n.Field.Index), nil
		}, nil

	case *New:
		return c.newValue(n, s, depth)

	case *MemberInit:
		create, err := c.newValue(n.New, s, depth)
		if err != nil {
			return nil, err
		}
		vals := make([]evalFn, len(n.Bindings))
		for i, b := range n.Bindings {
			if vals[i], err = c.compile(b.Value, s, depth); err != nil {
				return nil, err
			}
		}
		return func(fr *frame) (reflect.Value, error) {
			v, err := create(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			target, result := addressable(v)
			if target.Kind() == reflect.Pointer {
				if target.IsNil() {
					return reflect.Value{}, fmt.Errorf("%w: member init of nil %s", ErrNilDereference, v.Type())
				}
				target = target.Elem()
			}
			for i, f := range n.fields {
				fv, err := vals[i](fr)
				if err != nil {
					return reflect.Value{}, err
				}
				target.FieldByIndex(f.Index).Set(coerce(fv, f.Type))
			}
			return result(), nil
		}, nil

	case *ListInit:
		create, err := c.newValue(n.New, s, depth)
		if err != nil {
			return nil, err
		}
		inits := make([][]evalFn, len(n.Inits))
		for i, in := range n.Inits {
			if inits[i], err = c.compileAll(in.Args, s, depth); err != nil {
				return nil, err
			}
		}
		return func(fr *frame) (reflect.Value, error) {
			v, err := create(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			target, result := addressable(v)
			for i, in := range n.Inits {
				args, err := evalArgs(fr, inits[i], in.Add.Params())
				if err != nil {
					return reflect.Value{}, err
				}
				recv := target
				if !recv.Type().AssignableTo(in.Add.Receiver()) {
					recv = target.Addr()
				}
				if _, err := in.Add.call(recv, args); err != nil {
					return reflect.Value{}, err
				}
			}
			return result(), nil
		}, nil

	case *NewArray:
		fns, err := c.compileAll(n.Exprs, s, depth)
		if err != nil {
			return nil, err
		}
		st := n.Type()
		if n.Bounds {
			return func(fr *frame) (reflect.Value, error) {
				lv, err := fns[0](fr)
				if err != nil {
					return reflect.Value{}, err
				}
				var size int64
				if isSigned(lv.Type()) {
					size = lv.Int()
				} else {
					size = int64(lv.Uint())
				}
				if size < 0 {
					return reflect.Value{}, fmt.Errorf("%w: negative length %d", ErrIndexOutOfRange, size)
				}
				return reflect.MakeSlice(st, int(size), int(size)), nil
			}, nil
		}
		return func(fr *frame) (reflect.Value, error) {
			out := reflect.MakeSlice(st, len(fns), len(fns))
			for i, fn := range fns {
				v, err := fn(fr)
				if err != nil {
					return reflect.Value{}, err
				}
				out.Index(i).Set(coerce(v, n.Elem))
			}
			return out, nil
		}, nil

	case *TypeIs:
		operand, err := c.compile(n.Operand, s, depth)
		if err != nil {
			return nil, err
		}
		return func(fr *frame) (reflect.Value, error) {
			v, err := operand(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(typeIs(v, n.Target)), nil
		}, nil

	case *Invoke:
		fn, err := c.compile(n.Func, s, depth)
		if err != nil {
			return nil, err
		}
		args, err := c.compileAll(n.Args, s, depth)
		if err != nil {
			return nil, err
		}
		ft := n.Func.Type()
		params := make([]reflect.Type, ft.NumIn())
		for i := range params {
			params[i] = ft.In(i)
		}
		returnsErr := ft.NumOut() == 2 && ft.Out(1) == errorType
		return func(fr *frame) (reflect.Value, error) {
			f, err := fn(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			if f.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: invoke of nil %s", ErrNilDereference, ft)
			}
			in, err := evalArgs(fr, args, params)
			if err != nil {
				return reflect.Value{}, err
			}
			out := f.Call(in)
			if returnsErr && !out[1].IsNil() {
				return reflect.Value{}, out[1].Interface().(error)
			}
			return out[0], nil
		}, nil

	case *Block:
		fns, err := c.compileAll(n.Exprs, s, depth)
		if err != nil {
			return nil, err
		}
		return func(fr *frame) (reflect.Value, error) {
			var v reflect.Value
			for _, fn := range fns {
				var err error
				if v, err = fn(fr); err != nil {
					return reflect.Value{}, err
				}
			}
			return v, nil
		}, nil

	case *Default:
		z := reflect.Zero(n.Type())
		return func(*frame) (reflect.Value, error) { return z, nil }, nil
	}
	return nil, fmt.Errorf("%w: cannot compile %T", ErrInvalidExpression, e)
}

func (c *compiler) binary(n *Binary, left, right evalFn) evalFn {
	if n.Method != nil {
		params := n.Method.Params()
		return func(fr *frame) (reflect.Value, error) {
			l, err := left(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			r, err := right(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return n.Method.call(reflect.Value{}, []reflect.Value{coerce(l, params[0]), coerce(r, params[1])})
		}
	}
	if n.Op.IsLogical() {
		return func(fr *frame) (reflect.Value, error) {
			l, err := left(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			if l.Bool() == (n.Op == op.OrElse) {
				return reflect.ValueOf(l.Bool()), nil
			}
			r, err := right(fr)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(r.Bool()), nil
		}
	}
	return func(fr *frame) (reflect.Value, error) {
		l, err := left(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		r, err := right(fr)
		if err != nil {
			return reflect.Value{}, err
		}
		return applyBinary(n.Op, l, r, n.Type())
	}
}

func (c *compiler) newValue(n *New, s *scope, depth int) (evalFn, error) {
	t := n.Type()
	if n.Constructor == nil {
		return func(*frame) (reflect.Value, error) {
			if t.Kind() == reflect.Pointer {
				return reflect.New(t.Elem()), nil
			}
			return reflect.New(t).Elem(), nil
		}, nil
	}
	args, err := c.compileAll(n.Args, s, depth)
	if err != nil {
		return nil, err
	}
	params := n.Constructor.Params()
	return func(fr *frame) (reflect.Value, error) {
		in, err := evalArgs(fr, args, params)
		if err != nil {
			return reflect.Value{}, err
		}
		return n.Constructor.call(reflect.Value{}, in)
	}, nil
}

// addressable returns a settable view of v and a func yielding the final
// value once the view has been mutated.
func addressable(v reflect.Value) (reflect.Value, func() reflect.Value) {
	if v.Kind() == reflect.Pointer || v.CanAddr() {
		return v, func() reflect.Value { return v }
	}
	n := reflect.New(v.Type()).Elem()
	n.Set(v)
	return n, func() reflect.Value { return n }
}

func typeIs(v reflect.Value, target reflect.Type) bool {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return false
	}
	if target.Kind() == reflect.Interface {
		return v.Type().Implements(target)
	}
	return v.Type() == target
}
