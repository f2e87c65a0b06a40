// Package expr is a small executable expression-tree runtime built on
// reflect. Trees are assembled with the Make* constructors, which check
// types eagerly, and turned into invokable closures with Compile.
//
// A *Parameter is a variable: every node that refers to the same variable
// holds the same *Parameter pointer. Two distinct pointers are two distinct
// variables, even when their names and types agree.
package expr

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/op"
)

var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrNilDereference    = errors.New("nil dereference")
	ErrDivideByZero      = errors.New("integer divide by zero")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnboundParameter  = errors.New("unbound parameter")
	ErrInvalidExpression = errors.New("invalid expression")
)

// NodeKind identifies the concrete type of an Expr.
type NodeKind int

const (
	KindConstant NodeKind = iota
	KindParameter
	KindLambda
	KindUnary
	KindBinary
	KindConditional
	KindCall
	KindMemberAccess
	KindNew
	KindMemberInit
	KindListInit
	KindNewArray
	KindTypeIs
	KindInvoke
	KindBlock
	KindDefault
)

var kindNames = [...]string{
	KindConstant:     "Constant",
	KindParameter:    "Parameter",
	KindLambda:       "Lambda",
	KindUnary:        "Unary",
	KindBinary:       "Binary",
	KindConditional:  "Conditional",
	KindCall:         "Call",
	KindMemberAccess: "MemberAccess",
	KindNew:          "New",
	KindMemberInit:   "MemberInit",
	KindListInit:     "ListInit",
	KindNewArray:     "NewArray",
	KindTypeIs:       "TypeIs",
	KindInvoke:       "Invoke",
	KindBlock:        "Block",
	KindDefault:      "Default",
}

func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "NodeKind(" + strconv.Itoa(int(k)) + ")"
}

// Expr is a node of an executable expression tree.
type Expr interface {
	Kind() NodeKind
	// Type is the static type of the value the node evaluates to.
	Type() reflect.Type
	String() string
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}

func assignable(from, to reflect.Type) bool {
	return from == to || from.AssignableTo(to)
}

func joinExprs(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// ===== Constant =====

// Constant is a literal value. Value is carried as is.
type Constant struct {
	Value any
	typ   reflect.Type
}

// MakeConstant creates a constant typed by the dynamic type of v.
func MakeConstant(v any) (*Constant, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: untyped nil constant", ErrInvalidExpression)
	}
	return &Constant{Value: v, typ: reflect.TypeOf(v)}, nil
}

// MakeConstantOf creates a constant of type t. A nil v yields the zero value
// of a nilable t.
func MakeConstantOf(v any, t reflect.Type) (*Constant, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: constant without type", ErrInvalidExpression)
	}
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return &Constant{typ: t}, nil
		}
		return nil, mismatch("nil is not a valid %s", t)
	}
	if vt := reflect.TypeOf(v); !assignable(vt, t) {
		return nil, mismatch("constant of type %s is not assignable to %s", vt, t)
	}
	return &Constant{Value: v, typ: t}, nil
}

func (c *Constant) Kind() NodeKind     { return KindConstant }
func (c *Constant) Type() reflect.Type { return c.typ }
func (c *Constant) String() string {
	if s, ok := c.Value.(string); ok {
		return strconv.Quote(s)
	}
	if c.Value == nil {
		return "nil"
	}
	return fmt.Sprintf("%v", c.Value)
}

// ===== Parameter =====

// Parameter is a variable bound by a Lambda.
type Parameter struct {
	Name string
	typ  reflect.Type
}

// MakeParameter creates a fresh variable of type t.
func MakeParameter(t reflect.Type, name string) *Parameter {
	return &Parameter{Name: name, typ: t}
}

func (p *Parameter) Kind() NodeKind     { return KindParameter }
func (p *Parameter) Type() reflect.Type { return p.typ }
func (p *Parameter) String() string {
	if p.Name == "" {
		return "_"
	}
	return p.Name
}

// ===== Lambda =====

// Lambda is a function literal. Its Type is a func type.
type Lambda struct {
	Params []*Parameter
	Body   Expr
	typ    reflect.Type
}

// MakeLambda creates a lambda whose result type is the body type.
func MakeLambda(body Expr, params ...*Parameter) (*Lambda, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: lambda without body", ErrInvalidExpression)
	}
	in := make([]reflect.Type, len(params))
	for i, p := range params {
		in[i] = p.Type()
	}
	return MakeLambdaOf(reflect.FuncOf(in, []reflect.Type{body.Type()}, false), body, params...)
}

// MakeLambdaOf creates a lambda with the explicit func type t.
func MakeLambdaOf(t reflect.Type, body Expr, params ...*Parameter) (*Lambda, error) {
	if t == nil || t.Kind() != reflect.Func {
		return nil, mismatch("lambda type %v is not a func type", t)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: lambda without body", ErrInvalidExpression)
	}
	if t.NumIn() != len(params) {
		return nil, &rerrors.ArityMismatchError{Context: "lambda " + t.String(), Expected: t.NumIn(), Actual: len(params)}
	}
	seen := make(map[*Parameter]bool, len(params))
	for i, p := range params {
		if p == nil {
			return nil, fmt.Errorf("%w: nil lambda parameter %d", ErrInvalidExpression, i)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: parameter %s declared twice", ErrInvalidExpression, p)
		}
		seen[p] = true
		if p.Type() != t.In(i) {
			return nil, mismatch("parameter %d is %s, lambda expects %s", i, p.Type(), t.In(i))
		}
	}
	if t.NumOut() != 1 {
		return nil, mismatch("lambda type %s must have exactly one result", t)
	}
	if !assignable(body.Type(), t.Out(0)) {
		return nil, mismatch("lambda body %s is not assignable to result %s", body.Type(), t.Out(0))
	}
	return &Lambda{Params: params, Body: body, typ: t}, nil
}

func (l *Lambda) Kind() NodeKind     { return KindLambda }
func (l *Lambda) Type() reflect.Type { return l.typ }
func (l *Lambda) String() string {
	names := make([]string, len(l.Params))
	for i, p := range l.Params {
		names[i] = p.String()
	}
	return "(" + strings.Join(names, ", ") + ") => " + l.Body.String()
}

// ===== Unary =====

// Unary applies a prefix operator, a conversion, len, or a bound method.
type Unary struct {
	Op      op.Unary
	Operand Expr
	Method  *Method
	typ     reflect.Type
}

// MakeUnary creates a unary node. t is required for op.Convert and ignored
// otherwise; method, when set, replaces the built-in operator.
func MakeUnary(o op.Unary, operand Expr, t reflect.Type, method *Method) (*Unary, error) {
	if operand == nil {
		return nil, fmt.Errorf("%w: %s without operand", ErrInvalidExpression, o)
	}
	if method != nil {
		params := method.Params()
		if method.Kind == InstanceMethod || len(params) != 1 {
			return nil, &rerrors.ArityMismatchError{Context: "unary operator " + method.String(), Expected: 1, Actual: len(params)}
		}
		if !assignable(operand.Type(), params[0]) {
			return nil, mismatch("operand %s is not assignable to %s", operand.Type(), params[0])
		}
		if method.Result() == nil {
			return nil, mismatch("operator method %s has no result", method)
		}
		return &Unary{Op: o, Operand: operand, Method: method, typ: method.Result()}, nil
	}
	ot := operand.Type()
	switch o {
	case op.Negate, op.Plus:
		if !isNumeric(ot) {
			return nil, mismatch("operator %s not defined on %s", o, ot)
		}
		t = ot
	case op.BitNot:
		if !isInteger(ot) {
			return nil, mismatch("operator %s not defined on %s", o, ot)
		}
		t = ot
	case op.Not:
		if ot.Kind() != reflect.Bool {
			return nil, mismatch("operator %s not defined on %s", o, ot)
		}
		t = ot
	case op.Convert:
		if t == nil || !(assignable(ot, t) || ot.ConvertibleTo(t)) {
			return nil, mismatch("cannot convert %s to %v", ot, t)
		}
	case op.Len:
		switch ot.Kind() {
		case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
		default:
			return nil, mismatch("len not defined on %s", ot)
		}
		t = reflect.TypeOf(0)
	default:
		return nil, fmt.Errorf("%w: unknown unary operator %s", ErrInvalidExpression, o)
	}
	return &Unary{Op: o, Operand: operand, typ: t}, nil
}

func (u *Unary) Kind() NodeKind     { return KindUnary }
func (u *Unary) Type() reflect.Type { return u.typ }
func (u *Unary) String() string {
	switch {
	case u.Method != nil:
		return u.Method.Name + "(" + u.Operand.String() + ")"
	case u.Op == op.Convert:
		return u.typ.String() + "(" + u.Operand.String() + ")"
	case u.Op == op.Len:
		return "len(" + u.Operand.String() + ")"
	default:
		return u.Op.Symbol() + u.Operand.String()
	}
}

// ===== Binary =====

// Binary applies an infix operator, an index, or a bound method.
type Binary struct {
	Op     op.Binary
	Left   Expr
	Right  Expr
	Method *Method
	typ    reflect.Type
}

// MakeBinary creates a binary node. When method is set it is called with
// both operands instead of the built-in operator.
func MakeBinary(o op.Binary, left, right Expr, method *Method) (*Binary, error) {
	if left == nil || right == nil {
		return nil, fmt.Errorf("%w: %s needs two operands", ErrInvalidExpression, o)
	}
	lt, rt := left.Type(), right.Type()
	if method != nil {
		params := method.Params()
		if method.Kind == InstanceMethod || len(params) != 2 {
			return nil, &rerrors.ArityMismatchError{Context: "binary operator " + method.String(), Expected: 2, Actual: len(params)}
		}
		if !assignable(lt, params[0]) || !assignable(rt, params[1]) {
			return nil, mismatch("operands (%s, %s) do not fit %s", lt, rt, method)
		}
		if method.Result() == nil {
			return nil, mismatch("operator method %s has no result", method)
		}
		return &Binary{Op: o, Left: left, Right: right, Method: method, typ: method.Result()}, nil
	}
	t, err := binaryResultType(o, lt, rt)
	if err != nil {
		return nil, err
	}
	return &Binary{Op: o, Left: left, Right: right, typ: t}, nil
}

func binaryResultType(o op.Binary, lt, rt reflect.Type) (reflect.Type, error) {
	boolType := reflect.TypeOf(false)
	switch o {
	case op.Add:
		if lt == rt && (isNumeric(lt) || lt.Kind() == reflect.String) {
			return lt, nil
		}
	case op.Sub, op.Mul, op.Div:
		if lt == rt && isNumeric(lt) {
			return lt, nil
		}
	case op.Rem, op.And, op.Or, op.Xor, op.AndNot:
		if lt == rt && isInteger(lt) {
			return lt, nil
		}
	case op.Shl, op.Shr:
		if isInteger(lt) && isInteger(rt) {
			return lt, nil
		}
	case op.AndAlso, op.OrElse:
		if lt.Kind() == reflect.Bool && rt.Kind() == reflect.Bool {
			return boolType, nil
		}
	case op.Eq, op.Ne:
		if (assignable(lt, rt) || assignable(rt, lt)) && lt.Comparable() && rt.Comparable() {
			return boolType, nil
		}
	case op.Lt, op.Le, op.Gt, op.Ge:
		if lt == rt && isOrdered(lt) {
			return boolType, nil
		}
	case op.Index:
		switch lt.Kind() {
		case reflect.Slice, reflect.Array:
			if isInteger(rt) {
				return lt.Elem(), nil
			}
		case reflect.String:
			if isInteger(rt) {
				return reflect.TypeOf(byte(0)), nil
			}
		case reflect.Map:
			if assignable(rt, lt.Key()) {
				return lt.Elem(), nil
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown binary operator %s", ErrInvalidExpression, o)
	}
	return nil, mismatch("operator %s not defined on (%s, %s)", o, lt, rt)
}

func (b *Binary) Kind() NodeKind     { return KindBinary }
func (b *Binary) Type() reflect.Type { return b.typ }
func (b *Binary) String() string {
	switch {
	case b.Method != nil:
		return b.Method.Name + "(" + b.Left.String() + ", " + b.Right.String() + ")"
	case b.Op == op.Index:
		return b.Left.String() + "[" + b.Right.String() + "]"
	default:
		return "(" + b.Left.String() + " " + b.Op.Symbol() + " " + b.Right.String() + ")"
	}
}

// ===== Conditional =====

// Conditional evaluates IfTrue or IfFalse depending on Test.
type Conditional struct {
	Test    Expr
	IfTrue  Expr
	IfFalse Expr
	typ     reflect.Type
}

// MakeConditional creates a conditional typed by its IfTrue branch.
func MakeConditional(test, ifTrue, ifFalse Expr) (*Conditional, error) {
	if ifTrue == nil {
		return nil, fmt.Errorf("%w: conditional without branches", ErrInvalidExpression)
	}
	return MakeConditionalOf(ifTrue.Type(), test, ifTrue, ifFalse)
}

// MakeConditionalOf creates a conditional of type t.
func MakeConditionalOf(t reflect.Type, test, ifTrue, ifFalse Expr) (*Conditional, error) {
	if test == nil || ifTrue == nil || ifFalse == nil {
		return nil, fmt.Errorf("%w: conditional needs test and both branches", ErrInvalidExpression)
	}
	if test.Type().Kind() != reflect.Bool {
		return nil, mismatch("conditional test is %s, want bool", test.Type())
	}
	if !assignable(ifTrue.Type(), t) || !assignable(ifFalse.Type(), t) {
		return nil, mismatch("branches (%s, %s) are not assignable to %s", ifTrue.Type(), ifFalse.Type(), t)
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, typ: t}, nil
}

func (c *Conditional) Kind() NodeKind     { return KindConditional }
func (c *Conditional) Type() reflect.Type { return c.typ }
func (c *Conditional) String() string {
	return "(" + c.Test.String() + " ? " + c.IfTrue.String() + " : " + c.IfFalse.String() + ")"
}

// ===== Call =====

// Call invokes Method. Object is nil for static functions and constructors.
type Call struct {
	Object Expr
	Method *Method
	Args   []Expr
}

func checkArgs(context string, params []reflect.Type, args []Expr) error {
	if len(params) != len(args) {
		return &rerrors.ArityMismatchError{Context: context, Expected: len(params), Actual: len(args)}
	}
	for i, a := range args {
		if a == nil {
			return fmt.Errorf("%w: nil argument %d to %s", ErrInvalidExpression, i, context)
		}
		if !assignable(a.Type(), params[i]) {
			return mismatch("argument %d to %s is %s, want %s", i, context, a.Type(), params[i])
		}
	}
	return nil
}

// MakeCall creates a call node.
func MakeCall(object Expr, method *Method, args ...Expr) (*Call, error) {
	if method == nil {
		return nil, fmt.Errorf("%w: call without method", ErrInvalidExpression)
	}
	if method.Kind == InstanceMethod {
		if object == nil {
			return nil, fmt.Errorf("%w: instance method %s called without receiver", ErrInvalidExpression, method)
		}
		if !assignable(object.Type(), method.Receiver()) {
			return nil, mismatch("receiver %s is not assignable to %s", object.Type(), method.Receiver())
		}
	} else if object != nil {
		return nil, fmt.Errorf("%w: %s %s called with a receiver", ErrInvalidExpression, method.Kind, method)
	}
	if method.Result() == nil {
		return nil, mismatch("%s produces no value", method)
	}
	if err := checkArgs(method.String(), method.Params(), args); err != nil {
		return nil, err
	}
	return &Call{Object: object, Method: method, Args: args}, nil
}

func (c *Call) Kind() NodeKind     { return KindCall }
func (c *Call) Type() reflect.Type { return c.Method.Result() }
func (c *Call) String() string {
	if c.Object != nil {
		return c.Object.String() + "." + c.Method.Name + "(" + joinExprs(c.Args) + ")"
	}
	return c.Method.String() + "(" + joinExprs(c.Args) + ")"
}

// ===== MemberAccess =====

// MemberAccess reads a struct field, dereferencing a pointer receiver.
type MemberAccess struct {
	Object    Expr
	Field     reflect.StructField
	Declaring reflect.Type
}

// MakeMemberAccess selects the exported field name of object.
func MakeMemberAccess(object Expr, name string) (*MemberAccess, error) {
	if object == nil {
		return nil, fmt.Errorf("%w: member access %s without receiver", ErrInvalidExpression, name)
	}
	st := object.Type()
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, mismatch("%s has no fields", object.Type())
	}
	f, ok := st.FieldByName(name)
	if !ok || !f.IsExported() {
		return nil, fmt.Errorf("%w: %s has no exported field %s", ErrInvalidExpression, st, name)
	}
	return &MemberAccess{Object: object, Field: f, Declaring: st}, nil
}

func (m *MemberAccess) Kind() NodeKind     { return KindMemberAccess }
func (m *MemberAccess) Type() reflect.Type { return m.Field.Type }
func (m *MemberAccess) String() string     { return m.Object.String() + "." + m.Field.Name }

// ===== New =====

// New constructs a value, either through Constructor or as a zero value.
type New struct {
	Constructor *Method
	Args        []Expr
	typ         reflect.Type
}

// MakeNew creates a constructor call. With a nil constructor the node
// produces the zero value of t, or a pointer to a fresh zero value when t
// is a pointer type.
func MakeNew(t reflect.Type, ctor *Method, args ...Expr) (*New, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: new without type", ErrInvalidExpression)
	}
	if ctor == nil {
		if len(args) != 0 {
			return nil, &rerrors.ArityMismatchError{Context: "new " + t.String(), Expected: 0, Actual: len(args)}
		}
		return &New{typ: t}, nil
	}
	if ctor.Kind != Constructor {
		return nil, fmt.Errorf("%w: %s is not a constructor", ErrInvalidExpression, ctor)
	}
	if ctor.Result() != t {
		return nil, mismatch("constructor %s builds %v, want %s", ctor, ctor.Result(), t)
	}
	if err := checkArgs(ctor.String(), ctor.Params(), args); err != nil {
		return nil, err
	}
	return &New{Constructor: ctor, Args: args, typ: t}, nil
}

func (n *New) Kind() NodeKind     { return KindNew }
func (n *New) Type() reflect.Type { return n.typ }
func (n *New) String() string     { return "new " + n.typ.String() + "(" + joinExprs(n.Args) + ")" }

// ===== MemberInit =====

// Binding assigns Value to the field named Field.
type Binding struct {
	Field string
	Value Expr
}

// MemberInit constructs a struct and assigns fields in order.
type MemberInit struct {
	New      *New
	Bindings []Binding
	fields   []reflect.StructField
}

// MakeMemberInit creates a member-init node over a struct or struct pointer.
func MakeMemberInit(n *New, bindings ...Binding) (*MemberInit, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: member init without new", ErrInvalidExpression)
	}
	st := n.Type()
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, mismatch("member init on non-struct %s", n.Type())
	}
	fields := make([]reflect.StructField, len(bindings))
	for i, b := range bindings {
		f, ok := st.FieldByName(b.Field)
		if !ok || !f.IsExported() {
			return nil, fmt.Errorf("%w: %s has no exported field %s", ErrInvalidExpression, st, b.Field)
		}
		if b.Value == nil || !assignable(b.Value.Type(), f.Type) {
			return nil, mismatch("binding %s: value is not assignable to %s", b.Field, f.Type)
		}
		fields[i] = f
	}
	return &MemberInit{New: n, Bindings: bindings, fields: fields}, nil
}

func (m *MemberInit) Kind() NodeKind     { return KindMemberInit }
func (m *MemberInit) Type() reflect.Type { return m.New.Type() }
func (m *MemberInit) String() string {
	parts := make([]string, len(m.Bindings))
	for i, b := range m.Bindings {
		parts[i] = b.Field + ": " + b.Value.String()
	}
	return m.New.String() + " {" + strings.Join(parts, ", ") + "}"
}

// ===== ListInit =====

// ElementInit calls Add on the collection with Args.
type ElementInit struct {
	Add  *Method
	Args []Expr
}

// ListInit constructs a collection and fills it through its Add method.
type ListInit struct {
	New   *New
	Inits []ElementInit
}

// MakeListInit creates a list-init node. Every Add must be an instance
// method whose receiver accepts the collection or a pointer to it.
func MakeListInit(n *New, inits ...ElementInit) (*ListInit, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: list init without new", ErrInvalidExpression)
	}
	if len(inits) == 0 {
		return nil, fmt.Errorf("%w: list init without elements", ErrInvalidExpression)
	}
	for i, in := range inits {
		if in.Add == nil || in.Add.Kind != InstanceMethod {
			return nil, fmt.Errorf("%w: element %d has no Add method", ErrInvalidExpression, i)
		}
		recv := in.Add.Receiver()
		if !assignable(n.Type(), recv) && !assignable(reflect.PointerTo(n.Type()), recv) {
			return nil, mismatch("element %d: %s does not accept %s", i, in.Add, n.Type())
		}
		if err := checkArgs(in.Add.String(), in.Add.Params(), in.Args); err != nil {
			return nil, err
		}
	}
	return &ListInit{New: n, Inits: inits}, nil
}

func (l *ListInit) Kind() NodeKind     { return KindListInit }
func (l *ListInit) Type() reflect.Type { return l.New.Type() }
func (l *ListInit) String() string {
	parts := make([]string, len(l.Inits))
	for i, in := range l.Inits {
		parts[i] = in.Add.Name + "(" + joinExprs(in.Args) + ")"
	}
	return l.New.String() + " {" + strings.Join(parts, ", ") + "}"
}

// ===== NewArray =====

// NewArray builds a slice from its elements, or with Bounds set, a zeroed
// slice whose length is the single expression.
type NewArray struct {
	Elem   reflect.Type
	Bounds bool
	Exprs  []Expr
}

// MakeNewArray creates a slice literal.
func MakeNewArray(elem reflect.Type, exprs ...Expr) (*NewArray, error) {
	if elem == nil {
		return nil, fmt.Errorf("%w: array without element type", ErrInvalidExpression)
	}
	for i, e := range exprs {
		if e == nil || !assignable(e.Type(), elem) {
			return nil, mismatch("element %d is not assignable to %s", i, elem)
		}
	}
	return &NewArray{Elem: elem, Exprs: exprs}, nil
}

// MakeNewArrayBounds creates make([]elem, length).
func MakeNewArrayBounds(elem reflect.Type, length Expr) (*NewArray, error) {
	if elem == nil || length == nil {
		return nil, fmt.Errorf("%w: array bounds need element type and length", ErrInvalidExpression)
	}
	if !isInteger(length.Type()) {
		return nil, mismatch("array length is %s, want an integer", length.Type())
	}
	return &NewArray{Elem: elem, Bounds: true, Exprs: []Expr{length}}, nil
}

func (a *NewArray) Kind() NodeKind     { return KindNewArray }
func (a *NewArray) Type() reflect.Type { return reflect.SliceOf(a.Elem) }
func (a *NewArray) String() string {
	if a.Bounds {
		return "make([]" + a.Elem.String() + ", " + a.Exprs[0].String() + ")"
	}
	return "[]" + a.Elem.String() + "{" + joinExprs(a.Exprs) + "}"
}

// ===== TypeIs =====

// TypeIs reports whether the dynamic type of Operand is Target, or
// implements it when Target is an interface.
type TypeIs struct {
	Operand Expr
	Target  reflect.Type
}

// MakeTypeIs creates a type test.
func MakeTypeIs(operand Expr, target reflect.Type) (*TypeIs, error) {
	if operand == nil || target == nil {
		return nil, fmt.Errorf("%w: type test needs operand and target", ErrInvalidExpression)
	}
	return &TypeIs{Operand: operand, Target: target}, nil
}

func (t *TypeIs) Kind() NodeKind     { return KindTypeIs }
func (t *TypeIs) Type() reflect.Type { return reflect.TypeOf(false) }
func (t *TypeIs) String() string     { return t.Operand.String() + " is " + t.Target.String() }

// ===== Invoke =====

// Invoke calls the function value produced by Func.
type Invoke struct {
	Func Expr
	Args []Expr
}

// MakeInvoke creates an invocation of a func-typed expression.
func MakeInvoke(fn Expr, args ...Expr) (*Invoke, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: invoke without function", ErrInvalidExpression)
	}
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, mismatch("cannot invoke %s", ft)
	}
	if ft.NumOut() == 0 || ft.Out(0) == errorType {
		return nil, mismatch("%s produces no value", ft)
	}
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	if err := checkArgs("invoke "+ft.String(), params, args); err != nil {
		return nil, err
	}
	return &Invoke{Func: fn, Args: args}, nil
}

func (i *Invoke) Kind() NodeKind     { return KindInvoke }
func (i *Invoke) Type() reflect.Type { return i.Func.Type().Out(0) }
func (i *Invoke) String() string     { return i.Func.String() + "(" + joinExprs(i.Args) + ")" }

// ===== Block and Default =====

// Block evaluates Exprs in order and yields the last value.
type Block struct {
	Exprs []Expr
}

// MakeBlock creates a sequence node.
func MakeBlock(exprs ...Expr) (*Block, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("%w: empty block", ErrInvalidExpression)
	}
	return &Block{Exprs: exprs}, nil
}

func (b *Block) Kind() NodeKind     { return KindBlock }
func (b *Block) Type() reflect.Type { return b.Exprs[len(b.Exprs)-1].Type() }
func (b *Block) String() string     { return "{" + joinExprs(b.Exprs) + "}" }

// Default yields the zero value of its type.
type Default struct {
	typ reflect.Type
}

// MakeDefault creates a zero-value node.
func MakeDefault(t reflect.Type) *Default { return &Default{typ: t} }

func (d *Default) Kind() NodeKind     { return KindDefault }
func (d *Default) Type() reflect.Type { return d.typ }
func (d *Default) String() string     { return "default(" + d.typ.String() + ")" }
