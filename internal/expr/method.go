package expr

import (
	"fmt"
	"reflect"
)

// MethodKind distinguishes the three callable member shapes Go offers.
type MethodKind int

const (
	InstanceMethod MethodKind = iota // receiver is the first input of Func
	StaticFunc                       // plain function attached to a declaring type
	Constructor                      // function returning a value of the declaring type
)

func (k MethodKind) String() string {
	switch k {
	case InstanceMethod:
		return "method"
	case StaticFunc:
		return "func"
	case Constructor:
		return "constructor"
	default:
		return "unknown"
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Method is a runtime handle to a callable member. Handles live only as long
// as the process that created them; descriptors are used to find them again.
type Method struct {
	Kind      MethodKind
	Declaring reflect.Type
	Name      string
	TypeArgs  []reflect.Type
	Func      reflect.Value // invalid for interface methods, which dispatch by Index
	Index     int
}

// MethodOf finds the exported method name in the method set of t.
func MethodOf(t reflect.Type, name string) (*Method, error) {
	if t == nil {
		return nil, fmt.Errorf("method %s: nil declaring type", name)
	}
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("type %s has no method %s", t, name)
	}
	if !m.IsExported() {
		return nil, fmt.Errorf("method %s.%s is not exported", t, name)
	}
	mm := &Method{Kind: InstanceMethod, Declaring: t, Name: name, Index: m.Index}
	if t.Kind() != reflect.Interface {
		mm.Func = m.Func
	}
	return mm, nil
}

// MethodsOf returns every exported method in the method set of t.
func MethodsOf(t reflect.Type) []*Method {
	out := make([]*Method, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		mm := &Method{Kind: InstanceMethod, Declaring: t, Name: m.Name, Index: i}
		if t.Kind() != reflect.Interface {
			mm.Func = m.Func
		}
		out = append(out, mm)
	}
	return out
}

// FuncOf attaches fn to declaring under name. typeArgs records the
// instantiation of a generic function.
func FuncOf(declaring reflect.Type, name string, fn any, typeArgs ...reflect.Type) (*Method, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("func %s: expected a non-nil function, got %T", name, fn)
	}
	return &Method{Kind: StaticFunc, Declaring: declaring, Name: name, TypeArgs: typeArgs, Func: v}, nil
}

// ConstructorOf registers fn as a constructor of declaring. fn must return
// declaring, optionally followed by an error.
func ConstructorOf(declaring reflect.Type, name string, fn any) (*Method, error) {
	m, err := FuncOf(declaring, name, fn)
	if err != nil {
		return nil, err
	}
	m.Kind = Constructor
	if r := m.Result(); r != declaring {
		return nil, fmt.Errorf("constructor %s returns %v, want %s", name, r, declaring)
	}
	return m, nil
}

func (m *Method) funcType() reflect.Type {
	if m.Func.IsValid() {
		return m.Func.Type()
	}
	// interface method: signature without receiver
	return m.Declaring.Method(m.Index).Type
}

// Params returns the parameter types, receiver excluded.
func (m *Method) Params() []reflect.Type {
	ft := m.funcType()
	start := 0
	if m.Kind == InstanceMethod && m.Func.IsValid() {
		start = 1
	}
	out := make([]reflect.Type, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		out = append(out, ft.In(i))
	}
	return out
}

// Receiver returns the receiver type of an instance method and nil otherwise.
func (m *Method) Receiver() reflect.Type {
	if m.Kind != InstanceMethod {
		return nil
	}
	return m.Declaring
}

// Variadic reports whether the last parameter is variadic.
func (m *Method) Variadic() bool { return m.funcType().IsVariadic() }

// Result returns the value type the member produces, or nil when it
// produces none. A trailing error result is not part of the value.
func (m *Method) Result() reflect.Type {
	ft := m.funcType()
	switch {
	case ft.NumOut() == 0:
		return nil
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		return nil
	default:
		return ft.Out(0)
	}
}

// returnsError reports whether the last result is an error.
func (m *Method) returnsError() bool {
	ft := m.funcType()
	return ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType
}

func (m *Method) String() string {
	if m.Declaring == nil {
		return m.Name
	}
	return m.Declaring.String() + "." + m.Name
}

// call invokes the member. recv is ignored unless m is an instance method.
func (m *Method) call(recv reflect.Value, args []reflect.Value) (reflect.Value, error) {
	var fn reflect.Value
	in := args
	switch {
	case m.Kind != InstanceMethod:
		fn = m.Func
	case m.Func.IsValid():
		fn = m.Func
		in = append([]reflect.Value{recv}, args...)
	default:
		if recv.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: call of %s on nil interface", ErrNilDereference, m)
		}
		fn = recv.Method(m.Index)
	}
	var out []reflect.Value
	if fn.Type().IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}
	if m.returnsError() {
		if errV := out[len(out)-1]; !errV.IsNil() {
			return reflect.Value{}, errV.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}
