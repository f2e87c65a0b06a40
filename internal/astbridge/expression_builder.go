package astbridge

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

// ErrNotLambda is returned by FromRepresentation for a non-lambda root.
var ErrNotLambda = errors.New("representation root is not a lambda")

// ExpressionBuilder rebuilds executable expressions from representation
// nodes. It owns the token map of one rebuild: the first declaration of a
// token creates the runtime parameter, and every reference in scope and
// every later sibling declaration resolve to that same parameter. A nested
// redeclaration shadows the outer parameter with a fresh one. A builder must not be shared between
// goroutines.
type ExpressionBuilder struct {
	typeConverter *TypeConverter
	maxDepth      int

	params map[repr.Token]*expr.Parameter
	// scope counts the enclosing lambdas declaring each token
	scope map[repr.Token]int
	nodes int
}

// NewExpressionBuilder creates a builder resolving through typeConverter.
func NewExpressionBuilder(typeConverter *TypeConverter, maxDepth int) *ExpressionBuilder {
	return &ExpressionBuilder{
		typeConverter: typeConverter,
		maxDepth:      maxDepth,
		params:        make(map[repr.Token]*expr.Parameter),
		scope:         make(map[repr.Token]int),
	}
}

// Build rebuilds root. Failures are *errors.ReconstructionError values
// carrying the path of the offending node.
func (eb *ExpressionBuilder) Build(root repr.Node) (expr.Expr, error) {
	if root == nil {
		return nil, rerrors.Reconstruction("<nil>", fmt.Errorf("%w: nil root", repr.ErrMissingChild))
	}
	return eb.build(repr.Path{root.Kind().String()}, root, 1)
}

func (eb *ExpressionBuilder) fail(path repr.Path, err error) error {
	return rerrors.Reconstruction(path.String(), err)
}

func (eb *ExpressionBuilder) resolveType(path repr.Path, d repr.TypeDescriptor) (reflect.Type, error) {
	t, err := eb.typeConverter.ResolveType(d)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return t, nil
}

func (eb *ExpressionBuilder) resolveMember(path repr.Path, d repr.MemberDescriptor) (*expr.Method, error) {
	m, err := eb.typeConverter.ResolveMember(d)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return m, nil
}

func (eb *ExpressionBuilder) resolveOptionalMember(path repr.Path, d *repr.MemberDescriptor) (*expr.Method, error) {
	if d == nil {
		return nil, nil
	}
	return eb.resolveMember(path, *d)
}

// checkType verifies that the rebuilt node has the declared type.
func (eb *ExpressionBuilder) checkType(path repr.Path, e expr.Expr, declared repr.TypeDescriptor) (expr.Expr, error) {
	want, err := eb.resolveType(path, declared)
	if err != nil {
		return nil, err
	}
	if e.Type() != want {
		return nil, eb.fail(path, fmt.Errorf("%w: rebuilt %s, declared %s", expr.ErrTypeMismatch, e.Type(), want))
	}
	return e, nil
}

func (eb *ExpressionBuilder) build(path repr.Path, n repr.Node, depth int) (expr.Expr, error) {
	if depth > eb.maxDepth {
		return nil, eb.fail(path, &rerrors.RecursionLimitError{Limit: eb.maxDepth})
	}
	if n == nil {
		return nil, eb.fail(path, repr.ErrMissingChild)
	}
	eb.nodes++

	switch concrete := n.(type) {
	case *repr.Constant:
		return eb.buildConstant(path, concrete)
	case *repr.Parameter:
		return eb.buildParameter(path, concrete)
	case *repr.Lambda:
		return eb.buildLambda(path, concrete, depth)
	case *repr.Unary:
		return eb.buildUnary(path, concrete, depth)
	case *repr.Binary:
		return eb.buildBinary(path, concrete, depth)
	case *repr.Conditional:
		return eb.buildConditional(path, concrete, depth)
	case *repr.MethodCall:
		return eb.buildCall(path, concrete, depth)
	case *repr.MemberAccess:
		return eb.buildMemberAccess(path, concrete, depth)
	case *repr.New:
		return eb.buildNew(path, concrete, depth)
	case *repr.MemberInit:
		return eb.buildMemberInit(path, concrete, depth)
	case *repr.ListInit:
		return eb.buildListInit(path, concrete, depth)
	case *repr.NewArray:
		return eb.buildNewArray(path, concrete, depth)
	case *repr.TypeBinary:
		return eb.buildTypeBinary(path, concrete, depth)
	case *repr.Invocation:
		return eb.buildInvocation(path, concrete, depth)
	default:
		return nil, eb.fail(path, &rerrors.UnsupportedNodeKindError{Kind: fmt.Sprintf("%T", n)})
	}
}

func (eb *ExpressionBuilder) buildAll(path repr.Path, field string, list []repr.Node, depth int) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(list))
	for i, n := range list {
		e, err := eb.build(path.Child(fmt.Sprintf("%s[%d]", field, i)), n, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// ===== Leaves =====

func (eb *ExpressionBuilder) buildConstant(path repr.Path, c *repr.Constant) (expr.Expr, error) {
	t, err := eb.resolveType(path, c.Type)
	if err != nil {
		return nil, err
	}
	v, err := constantValue(c.Value, t)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	e, err := expr.MakeConstantOf(v, t)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

// constantValue converts numeric payloads that lost their exact type in
// transit, such as an int64 decoded for an int32 constant. The value must
// be representable in t: no overflow and no dropped fraction. Other
// values are passed through unchanged.
func constantValue(v any, t reflect.Type) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() == t {
		return v, nil
	}
	if !isNumberKind(rv.Kind()) || !isNumberKind(t.Kind()) || !rv.Type().ConvertibleTo(t) {
		return v, nil
	}
	if !representable(rv, t) {
		return nil, fmt.Errorf("%w: constant %v (%s) does not fit %s", expr.ErrTypeMismatch, v, rv.Type(), t)
	}
	return rv.Convert(t).Interface(), nil
}

// representable reports whether rv converts to t without changing value.
func representable(rv reflect.Value, t reflect.Type) bool {
	target := reflect.New(t).Elem()
	switch {
	case isIntKind(rv.Kind()):
		n := rv.Int()
		switch {
		case isIntKind(t.Kind()):
			return !target.OverflowInt(n)
		case isUintKind(t.Kind()):
			return n >= 0 && !target.OverflowUint(uint64(n))
		default:
			return int64(rv.Convert(t).Float()) == n
		}
	case isUintKind(rv.Kind()):
		n := rv.Uint()
		switch {
		case isIntKind(t.Kind()):
			return n <= math.MaxInt64 && !target.OverflowInt(int64(n))
		case isUintKind(t.Kind()):
			return !target.OverflowUint(n)
		default:
			return uint64(rv.Convert(t).Float()) == n
		}
	default:
		f := rv.Float()
		switch {
		case isIntKind(t.Kind()):
			return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 && !target.OverflowInt(int64(f))
		case isUintKind(t.Kind()):
			return f == math.Trunc(f) && f >= 0 && f < math.MaxUint64 && !target.OverflowUint(uint64(f))
		default:
			return math.IsNaN(f) || math.IsInf(f, 0) || !target.OverflowFloat(f)
		}
	}
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (eb *ExpressionBuilder) buildParameter(path repr.Path, p *repr.Parameter) (expr.Expr, error) {
	if eb.scope[p.ID] == 0 {
		return nil, eb.fail(path, fmt.Errorf("%w: %s (token %d)", repr.ErrDanglingParameter, p, p.ID))
	}
	param := eb.params[p.ID]
	return eb.checkType(path, param, p.Type)
}

// ===== Lambda =====

func (eb *ExpressionBuilder) buildLambda(path repr.Path, l *repr.Lambda, depth int) (expr.Expr, error) {
	t, err := eb.resolveType(path, l.Type)
	if err != nil {
		return nil, err
	}
	if t.Kind() != reflect.Func {
		return nil, eb.fail(path, fmt.Errorf("%w: lambda type %s is not a func type", expr.ErrTypeMismatch, t))
	}
	if t.NumIn() != len(l.Parameters) {
		return nil, eb.fail(path, &rerrors.ArityMismatchError{Context: "lambda " + t.String(), Expected: t.NumIn(), Actual: len(l.Parameters)})
	}

	params := make([]*expr.Parameter, len(l.Parameters))
	shadowed := make(map[repr.Token]*expr.Parameter, len(l.Parameters))
	declared := make(map[repr.Token]bool, len(l.Parameters))
	defer func() {
		for id := range declared {
			eb.scope[id]--
			if prev, ok := shadowed[id]; ok {
				eb.params[id] = prev
			}
		}
	}()
	for i, p := range l.Parameters {
		ppath := path.Child(fmt.Sprintf("Parameters[%d]", i))
		if p == nil {
			return nil, eb.fail(ppath, repr.ErrMissingChild)
		}
		if declared[p.ID] {
			return nil, eb.fail(ppath, fmt.Errorf("%w: %s", repr.ErrDuplicateParameter, p))
		}
		pt, err := eb.resolveType(ppath, p.Type)
		if err != nil {
			return nil, err
		}
		if pt != t.In(i) {
			return nil, eb.fail(ppath, fmt.Errorf("%w: parameter is %s, lambda expects %s", expr.ErrTypeMismatch, pt, t.In(i)))
		}
		prev, seen := eb.params[p.ID]
		if seen && eb.scope[p.ID] > 0 {
			shadowed[p.ID] = prev
		}
		eb.nodes++
		if seen && eb.scope[p.ID] == 0 && prev.Type() == pt && prev.Name == p.Name {
			// a sibling lambda declared this token: same runtime parameter
			params[i] = prev
		} else {
			params[i] = expr.MakeParameter(pt, p.Name)
		}
		eb.params[p.ID] = params[i]
		eb.scope[p.ID]++
		declared[p.ID] = true
	}

	body, err := eb.build(path.Child("Body"), l.Body, depth+1)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeLambdaOf(t, body, params...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

// ===== Operators =====

func (eb *ExpressionBuilder) buildUnary(path repr.Path, u *repr.Unary, depth int) (expr.Expr, error) {
	operand, err := eb.build(path.Child("Operand"), u.Operand, depth+1)
	if err != nil {
		return nil, err
	}
	method, err := eb.resolveOptionalMember(path, u.Method)
	if err != nil {
		return nil, err
	}
	t, err := eb.resolveType(path, u.Type)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeUnary(u.Op, operand, t, method)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return eb.checkType(path, e, u.Type)
}

func (eb *ExpressionBuilder) buildBinary(path repr.Path, b *repr.Binary, depth int) (expr.Expr, error) {
	left, err := eb.build(path.Child("Left"), b.Left, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := eb.build(path.Child("Right"), b.Right, depth+1)
	if err != nil {
		return nil, err
	}
	method, err := eb.resolveOptionalMember(path, b.Method)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeBinary(b.Op, left, right, method)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return eb.checkType(path, e, b.Type)
}

func (eb *ExpressionBuilder) buildConditional(path repr.Path, c *repr.Conditional, depth int) (expr.Expr, error) {
	test, err := eb.build(path.Child("Test"), c.Test, depth+1)
	if err != nil {
		return nil, err
	}
	ifTrue, err := eb.build(path.Child("IfTrue"), c.IfTrue, depth+1)
	if err != nil {
		return nil, err
	}
	ifFalse, err := eb.build(path.Child("IfFalse"), c.IfFalse, depth+1)
	if err != nil {
		return nil, err
	}
	t, err := eb.resolveType(path, c.Type)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeConditionalOf(t, test, ifTrue, ifFalse)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

func (eb *ExpressionBuilder) buildTypeBinary(path repr.Path, tb *repr.TypeBinary, depth int) (expr.Expr, error) {
	operand, err := eb.build(path.Child("Operand"), tb.Operand, depth+1)
	if err != nil {
		return nil, err
	}
	target, err := eb.resolveType(path, tb.TypeOperand)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeTypeIs(operand, target)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

// ===== Calls and members =====

func (eb *ExpressionBuilder) buildCall(path repr.Path, c *repr.MethodCall, depth int) (expr.Expr, error) {
	var object expr.Expr
	if c.Object != nil {
		var err error
		if object, err = eb.build(path.Child("Object"), c.Object, depth+1); err != nil {
			return nil, err
		}
	}
	method, err := eb.resolveMember(path, c.Method)
	if err != nil {
		return nil, err
	}
	if params := method.Params(); len(params) != len(c.Arguments) {
		return nil, eb.fail(path, &rerrors.ArityMismatchError{Context: method.String(), Expected: len(params), Actual: len(c.Arguments)})
	}
	args, err := eb.buildAll(path, "Arguments", c.Arguments, depth)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeCall(object, method, args...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return eb.checkType(path, e, c.Type)
}

func (eb *ExpressionBuilder) buildMemberAccess(path repr.Path, m *repr.MemberAccess, depth int) (expr.Expr, error) {
	object, err := eb.build(path.Child("Object"), m.Object, depth+1)
	if err != nil {
		return nil, err
	}
	declaring, err := eb.resolveType(path, m.Declaring)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeMemberAccess(object, m.Member)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	if e.Declaring != declaring {
		return nil, eb.fail(path, fmt.Errorf("%w: field %s is declared by %s, not %s", expr.ErrTypeMismatch, m.Member, e.Declaring, declaring))
	}
	return eb.checkType(path, e, m.Type)
}

func (eb *ExpressionBuilder) buildInvocation(path repr.Path, inv *repr.Invocation, depth int) (expr.Expr, error) {
	fn, err := eb.build(path.Child("Expression"), inv.Expression, depth+1)
	if err != nil {
		return nil, err
	}
	if ft := fn.Type(); ft.Kind() == reflect.Func && ft.NumIn() != len(inv.Arguments) {
		return nil, eb.fail(path, &rerrors.ArityMismatchError{Context: "invoke " + ft.String(), Expected: ft.NumIn(), Actual: len(inv.Arguments)})
	}
	args, err := eb.buildAll(path, "Arguments", inv.Arguments, depth)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeInvoke(fn, args...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return eb.checkType(path, e, inv.Type)
}

// ===== Construction =====

func (eb *ExpressionBuilder) newNode(path repr.Path, n *repr.New, depth int) (*expr.New, error) {
	if n == nil {
		return nil, eb.fail(path, repr.ErrMissingChild)
	}
	t, err := eb.resolveType(path, n.Type)
	if err != nil {
		return nil, err
	}
	ctor, err := eb.resolveOptionalMember(path, n.Constructor)
	if err != nil {
		return nil, err
	}
	want := 0
	if ctor != nil {
		want = len(ctor.Params())
	}
	if want != len(n.Arguments) {
		return nil, eb.fail(path, &rerrors.ArityMismatchError{Context: "new " + t.String(), Expected: want, Actual: len(n.Arguments)})
	}
	args, err := eb.buildAll(path, "Arguments", n.Arguments, depth)
	if err != nil {
		return nil, err
	}
	e, err := expr.MakeNew(t, ctor, args...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

func (eb *ExpressionBuilder) buildNew(path repr.Path, n *repr.New, depth int) (expr.Expr, error) {
	return eb.newNode(path, n, depth)
}

func (eb *ExpressionBuilder) buildMemberInit(path repr.Path, m *repr.MemberInit, depth int) (expr.Expr, error) {
	n, err := eb.newNode(path.Child("New"), m.New, depth+1)
	if err != nil {
		return nil, err
	}
	bindings := make([]expr.Binding, len(m.Bindings))
	for i, b := range m.Bindings {
		v, err := eb.build(path.Child(fmt.Sprintf("Bindings[%d].Value", i)), b.Value, depth+1)
		if err != nil {
			return nil, err
		}
		bindings[i] = expr.Binding{Field: b.Member, Value: v}
	}
	e, err := expr.MakeMemberInit(n, bindings...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

func (eb *ExpressionBuilder) buildListInit(path repr.Path, l *repr.ListInit, depth int) (expr.Expr, error) {
	n, err := eb.newNode(path.Child("New"), l.New, depth+1)
	if err != nil {
		return nil, err
	}
	inits := make([]expr.ElementInit, len(l.Initializers))
	for i, in := range l.Initializers {
		ipath := path.Child(fmt.Sprintf("Initializers[%d]", i))
		add, err := eb.resolveMember(ipath, in.AddMethod)
		if err != nil {
			return nil, err
		}
		if params := add.Params(); len(params) != len(in.Arguments) {
			return nil, eb.fail(ipath, &rerrors.ArityMismatchError{Context: add.String(), Expected: len(params), Actual: len(in.Arguments)})
		}
		args, err := eb.buildAll(ipath, "Arguments", in.Arguments, depth)
		if err != nil {
			return nil, err
		}
		inits[i] = expr.ElementInit{Add: add, Args: args}
	}
	e, err := expr.MakeListInit(n, inits...)
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}

func (eb *ExpressionBuilder) buildNewArray(path repr.Path, a *repr.NewArray, depth int) (expr.Expr, error) {
	elem, err := eb.resolveType(path, a.ElementType)
	if err != nil {
		return nil, err
	}
	if a.Bounds && len(a.Expressions) != 1 {
		return nil, eb.fail(path, &rerrors.ArityMismatchError{Context: "array bounds", Expected: 1, Actual: len(a.Expressions)})
	}
	exprs, err := eb.buildAll(path, "Expressions", a.Expressions, depth)
	if err != nil {
		return nil, err
	}
	var e *expr.NewArray
	if a.Bounds {
		e, err = expr.MakeNewArrayBounds(elem, exprs[0])
	} else {
		e, err = expr.MakeNewArray(elem, exprs...)
	}
	if err != nil {
		return nil, eb.fail(path, err)
	}
	return e, nil
}
