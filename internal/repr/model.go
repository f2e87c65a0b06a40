package repr

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"reflect"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
)

// Equal reports whether a and b are structurally equal: same variant,
// same descriptors and operators, and pairwise equal children. Parameter
// identity tokens are not compared. Constant payloads compare with
// sameValue.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Constant:
		y := b.(*Constant)
		return x.Type.Equal(y.Type) && sameValue(x.Value, y.Value)
	case *Parameter:
		return equalParameter(x, b.(*Parameter))
	case *Lambda:
		y := b.(*Lambda)
		if !x.Type.Equal(y.Type) || len(x.Parameters) != len(y.Parameters) {
			return false
		}
		for i := range x.Parameters {
			if !equalParameter(x.Parameters[i], y.Parameters[i]) {
				return false
			}
		}
		return Equal(x.Body, y.Body)
	case *Unary:
		y := b.(*Unary)
		return x.Op == y.Op && x.Type.Equal(y.Type) && equalMember(x.Method, y.Method) && Equal(x.Operand, y.Operand)
	case *Binary:
		y := b.(*Binary)
		return x.Op == y.Op && x.Type.Equal(y.Type) && equalMember(x.Method, y.Method) &&
			Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Conditional:
		y := b.(*Conditional)
		return x.Type.Equal(y.Type) && Equal(x.Test, y.Test) && Equal(x.IfTrue, y.IfTrue) && Equal(x.IfFalse, y.IfFalse)
	case *MethodCall:
		y := b.(*MethodCall)
		return x.Method.Equal(y.Method) && x.Type.Equal(y.Type) && Equal(x.Object, y.Object) && equalNodes(x.Arguments, y.Arguments)
	case *MemberAccess:
		y := b.(*MemberAccess)
		return x.Member == y.Member && x.Declaring.Equal(y.Declaring) && x.Type.Equal(y.Type) && Equal(x.Object, y.Object)
	case *New:
		return equalNew(x, b.(*New))
	case *MemberInit:
		y := b.(*MemberInit)
		if !equalNew(x.New, y.New) || len(x.Bindings) != len(y.Bindings) {
			return false
		}
		for i := range x.Bindings {
			if x.Bindings[i].Member != y.Bindings[i].Member || !Equal(x.Bindings[i].Value, y.Bindings[i].Value) {
				return false
			}
		}
		return true
	case *ListInit:
		y := b.(*ListInit)
		if !equalNew(x.New, y.New) || len(x.Initializers) != len(y.Initializers) {
			return false
		}
		for i := range x.Initializers {
			if !x.Initializers[i].AddMethod.Equal(y.Initializers[i].AddMethod) ||
				!equalNodes(x.Initializers[i].Arguments, y.Initializers[i].Arguments) {
				return false
			}
		}
		return true
	case *NewArray:
		y := b.(*NewArray)
		return x.Bounds == y.Bounds && x.ElementType.Equal(y.ElementType) && equalNodes(x.Expressions, y.Expressions)
	case *TypeBinary:
		y := b.(*TypeBinary)
		return x.TypeOperand.Equal(y.TypeOperand) && Equal(x.Operand, y.Operand)
	case *Invocation:
		y := b.(*Invocation)
		return x.Type.Equal(y.Type) && Equal(x.Expression, y.Expression) && equalNodes(x.Arguments, y.Arguments)
	}
	return false
}

func equalParameter(x, y *Parameter) bool {
	if x == nil || y == nil {
		return x == y
	}
	return x.Name == y.Name && x.Type.Equal(y.Type)
}

func equalNew(x, y *New) bool {
	if x == nil || y == nil {
		return x == y
	}
	return x.Type.Equal(y.Type) && equalMember(x.Constructor, y.Constructor) && equalNodes(x.Arguments, y.Arguments)
}

func equalMember(x, y *MemberDescriptor) bool {
	if x == nil || y == nil {
		return x == y
	}
	return x.Equal(*y)
}

func equalNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ===== Hashing =====

type hasher struct {
	h hash.Hash64
}

func (h *hasher) str(s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	h.h.Write(n[:])
	h.h.Write([]byte(s))
}

func (h *hasher) u64(v uint64) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], v)
	h.h.Write(n[:])
}

func (h *hasher) typ(d descriptor.TypeDescriptor) {
	h.str(d.Namespace)
	h.str(d.Name)
	h.u64(uint64(len(d.Args)))
	for _, a := range d.Args {
		h.typ(a)
	}
}

func (h *hasher) member(m *descriptor.MemberDescriptor) {
	if m == nil {
		h.u64(0)
		return
	}
	h.u64(1)
	h.typ(m.Declaring)
	h.str(m.Name)
	h.u64(uint64(len(m.Params)))
	for _, p := range m.Params {
		h.typ(p)
	}
	h.u64(uint64(len(m.TypeArgs)))
	for _, a := range m.TypeArgs {
		h.typ(a)
	}
}

// sameValue compares constant payloads. Floats and complex numbers compare
// by bit pattern, so NaN equals itself and -0 differs from +0. Reference
// kinds holding the same pointer are equal, which makes func payloads
// comparable at all.
func sameValue(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.Float64bits(va.Float()) == math.Float64bits(vb.Float())
	case reflect.Complex64, reflect.Complex128:
		ca, cb := va.Complex(), vb.Complex()
		return math.Float64bits(real(ca)) == math.Float64bits(real(cb)) &&
			math.Float64bits(imag(ca)) == math.Float64bits(imag(cb))
	case reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if va.Pointer() == vb.Pointer() {
			return true
		}
	case reflect.Slice:
		if va.Pointer() == vb.Pointer() && va.Len() == vb.Len() {
			return true
		}
	}
	return reflect.DeepEqual(a, b)
}

// value mixes in scalar payloads only; other payloads contribute nothing.
// Floats hash by bit pattern, matching sameValue.
func (h *hasher) value(v any) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		h.u64(0)
		return
	}
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			h.u64(1)
		} else {
			h.u64(2)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		h.u64(uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		h.u64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		h.u64(math.Float64bits(rv.Float()))
	case reflect.String:
		h.str(rv.String())
	}
}

func (h *hasher) node(n Node) {
	if n == nil {
		h.u64(0)
		return
	}
	h.u64(uint64(n.Kind()))
	switch x := n.(type) {
	case *Constant:
		h.typ(x.Type)
		h.value(x.Value)
	case *Parameter:
		h.typ(x.Type)
		h.str(x.Name)
	case *Lambda:
		h.typ(x.Type)
		h.u64(uint64(len(x.Parameters)))
		for _, p := range x.Parameters {
			h.node(p)
		}
		h.node(x.Body)
	case *Unary:
		h.u64(uint64(x.Op))
		h.typ(x.Type)
		h.member(x.Method)
		h.node(x.Operand)
	case *Binary:
		h.u64(uint64(x.Op))
		h.typ(x.Type)
		h.member(x.Method)
		h.node(x.Left)
		h.node(x.Right)
	case *Conditional:
		h.typ(x.Type)
		h.node(x.Test)
		h.node(x.IfTrue)
		h.node(x.IfFalse)
	case *MethodCall:
		h.member(&x.Method)
		h.typ(x.Type)
		h.node(x.Object)
		h.nodes(x.Arguments)
	case *MemberAccess:
		h.str(x.Member)
		h.typ(x.Declaring)
		h.typ(x.Type)
		h.node(x.Object)
	case *New:
		h.newNode(x)
	case *MemberInit:
		h.newNode(x.New)
		h.u64(uint64(len(x.Bindings)))
		for _, b := range x.Bindings {
			h.str(b.Member)
			h.node(b.Value)
		}
	case *ListInit:
		h.newNode(x.New)
		h.u64(uint64(len(x.Initializers)))
		for i := range x.Initializers {
			h.member(&x.Initializers[i].AddMethod)
			h.nodes(x.Initializers[i].Arguments)
		}
	case *NewArray:
		h.typ(x.ElementType)
		if x.Bounds {
			h.u64(1)
		} else {
			h.u64(2)
		}
		h.nodes(x.Expressions)
	case *TypeBinary:
		h.typ(x.TypeOperand)
		h.node(x.Operand)
	case *Invocation:
		h.typ(x.Type)
		h.node(x.Expression)
		h.nodes(x.Arguments)
	}
}

func (h *hasher) newNode(n *New) {
	if n == nil {
		h.u64(0)
		return
	}
	h.typ(n.Type)
	h.member(n.Constructor)
	h.nodes(n.Arguments)
}

func (h *hasher) nodes(list []Node) {
	h.u64(uint64(len(list)))
	for _, n := range list {
		h.node(n)
	}
}

// Hash returns a 64-bit FNV-1a hash of n consistent with Equal.
func Hash(n Node) uint64 {
	h := &hasher{h: fnv.New64a()}
	h.node(n)
	return h.h.Sum64()
}

// ===== Cloning =====

// Clone returns a deep copy of n. No node, slice or descriptor is shared
// with the original; constant payloads are opaque and copied by value.
// Parameters keep their tokens, so shared variables stay shared.
func Clone(n Node) Node {
	if n == nil {
		return nil
	}
	switch x := n.(type) {
	case *Constant:
		return &Constant{Type: x.Type.Clone(), Value: x.Value}
	case *Parameter:
		return cloneParameter(x)
	case *Lambda:
		params := make([]*Parameter, len(x.Parameters))
		for i, p := range x.Parameters {
			params[i] = cloneParameter(p)
		}
		return &Lambda{Type: x.Type.Clone(), Parameters: params, Body: Clone(x.Body)}
	case *Unary:
		return &Unary{Op: x.Op, Operand: Clone(x.Operand), Type: x.Type.Clone(), Method: cloneMember(x.Method)}
	case *Binary:
		return &Binary{Op: x.Op, Left: Clone(x.Left), Right: Clone(x.Right), Type: x.Type.Clone(), Method: cloneMember(x.Method)}
	case *Conditional:
		return &Conditional{Test: Clone(x.Test), IfTrue: Clone(x.IfTrue), IfFalse: Clone(x.IfFalse), Type: x.Type.Clone()}
	case *MethodCall:
		return &MethodCall{Object: Clone(x.Object), Method: x.Method.Clone(), Arguments: cloneNodes(x.Arguments), Type: x.Type.Clone()}
	case *MemberAccess:
		return &MemberAccess{Object: Clone(x.Object), Member: x.Member, Declaring: x.Declaring.Clone(), Type: x.Type.Clone()}
	case *New:
		return cloneNew(x)
	case *MemberInit:
		bindings := make([]MemberBinding, len(x.Bindings))
		for i, b := range x.Bindings {
			bindings[i] = MemberBinding{Member: b.Member, Value: Clone(b.Value)}
		}
		return &MemberInit{New: cloneNew(x.New), Bindings: bindings}
	case *ListInit:
		inits := make([]ElementInit, len(x.Initializers))
		for i, in := range x.Initializers {
			inits[i] = ElementInit{AddMethod: in.AddMethod.Clone(), Arguments: cloneNodes(in.Arguments)}
		}
		return &ListInit{New: cloneNew(x.New), Initializers: inits}
	case *NewArray:
		return &NewArray{ElementType: x.ElementType.Clone(), Bounds: x.Bounds, Expressions: cloneNodes(x.Expressions)}
	case *TypeBinary:
		return &TypeBinary{Operand: Clone(x.Operand), TypeOperand: x.TypeOperand.Clone()}
	case *Invocation:
		return &Invocation{Expression: Clone(x.Expression), Arguments: cloneNodes(x.Arguments), Type: x.Type.Clone()}
	}
	panic("repr: Clone of unknown node " + n.Kind().String())
}

func cloneParameter(p *Parameter) *Parameter {
	if p == nil {
		return nil
	}
	return &Parameter{Type: p.Type.Clone(), Name: p.Name, ID: p.ID}
}

func cloneNew(n *New) *New {
	if n == nil {
		return nil
	}
	return &New{Type: n.Type.Clone(), Constructor: cloneMember(n.Constructor), Arguments: cloneNodes(n.Arguments)}
}

func cloneMember(m *descriptor.MemberDescriptor) *descriptor.MemberDescriptor {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &c
}

func cloneNodes(list []Node) []Node {
	if list == nil {
		return nil
	}
	out := make([]Node, len(list))
	for i, n := range list {
		out[i] = Clone(n)
	}
	return out
}
