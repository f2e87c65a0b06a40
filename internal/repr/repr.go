// Package repr defines the serializable representation of expression trees.
//
// The hierarchy is closed: Node is implemented only by the thirteen variants
// in this package, and every operation (Equal, Hash, Clone, ChildrenOf)
// switches over them exhaustively. Nodes are treated as immutable once
// built; Clone exists to produce fresh, non-aliased copies.
//
// Parameter nodes carry an identity Token. Structural equality ignores the
// token, so two parameters of the same name and type compare equal even
// when they denote different variables; the reverse builder keys variables
// by token only.
package repr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
	"github.com/orizon-lang/exprrepr/internal/op"
)

// Kind tags a node variant.
type Kind int

const (
	KindConstant Kind = iota + 1
	KindParameter
	KindLambda
	KindUnary
	KindBinary
	KindConditional
	KindMethodCall
	KindMemberAccess
	KindNew
	KindMemberInit
	KindListInit
	KindNewArray
	KindTypeBinary
	KindInvocation
)

var kindNames = map[Kind]string{
	KindConstant:     "Constant",
	KindParameter:    "Parameter",
	KindLambda:       "Lambda",
	KindUnary:        "Unary",
	KindBinary:       "Binary",
	KindConditional:  "Conditional",
	KindMethodCall:   "MethodCall",
	KindMemberAccess: "MemberAccess",
	KindNew:          "New",
	KindMemberInit:   "MemberInit",
	KindListInit:     "ListInit",
	KindNewArray:     "NewArray",
	KindTypeBinary:   "TypeBinary",
	KindInvocation:   "Invocation",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind looks a kind up by name.
func ParseKind(name string) (Kind, error) {
	for k, s := range kindNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", name)
}

// Token is the identity of a logical variable. Tokens are assigned per
// conversion, starting at 1.
type Token uint64

// Node is one node of a representation tree.
type Node interface {
	Kind() Kind
	String() string
	reprNode()
}

// Descriptor aliases so callers need not import the descriptor package.
type (
	TypeDescriptor   = descriptor.TypeDescriptor
	MemberDescriptor = descriptor.MemberDescriptor
)

// ===== Leaves =====

// Constant carries an opaque value of the declared type.
type Constant struct {
	Type  TypeDescriptor
	Value any
}

// Parameter refers to a variable identified by ID.
type Parameter struct {
	Type TypeDescriptor
	Name string
	ID   Token
}

// ===== Composite nodes =====

// Lambda is a function literal.
type Lambda struct {
	Type       TypeDescriptor // func type
	Parameters []*Parameter
	Body       Node
}

// Unary applies op to Operand; Method is set when an operator method was bound.
type Unary struct {
	Op      op.Unary
	Operand Node
	Type    TypeDescriptor
	Method  *MemberDescriptor
}

// Binary applies op to Left and Right; Method is set when an operator method was bound.
type Binary struct {
	Op     op.Binary
	Left   Node
	Right  Node
	Type   TypeDescriptor
	Method *MemberDescriptor
}

// Conditional picks IfTrue or IfFalse depending on Test.
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
	Type    TypeDescriptor
}

// MethodCall calls Method on Object, or statically when Object is nil.
type MethodCall struct {
	Object    Node
	Method    MemberDescriptor
	Arguments []Node
	Type      TypeDescriptor
}

// MemberAccess reads field Member of Object.
type MemberAccess struct {
	Object    Node
	Member    string
	Declaring TypeDescriptor
	Type      TypeDescriptor
}

// New constructs a value of Type, through Constructor when set.
type New struct {
	Type        TypeDescriptor
	Constructor *MemberDescriptor
	Arguments   []Node
}

// MemberBinding assigns Value to field Member.
type MemberBinding struct {
	Member string
	Value  Node
}

// MemberInit constructs a value and assigns its fields.
type MemberInit struct {
	New      *New
	Bindings []MemberBinding
}

// ElementInit is one Add call of a ListInit.
type ElementInit struct {
	AddMethod MemberDescriptor
	Arguments []Node
}

// ListInit constructs a collection and fills it through Add calls.
type ListInit struct {
	New          *New
	Initializers []ElementInit
}

// NewArray builds a slice from Expressions, or with Bounds, a zeroed slice
// whose length is the single expression.
type NewArray struct {
	ElementType TypeDescriptor
	Bounds      bool
	Expressions []Node
}

// TypeBinary tests whether Operand holds a TypeOperand.
type TypeBinary struct {
	Operand     Node
	TypeOperand TypeDescriptor
}

// Invocation calls the function produced by Expression.
type Invocation struct {
	Expression Node
	Arguments  []Node
	Type       TypeDescriptor
}

func (*Constant) Kind() Kind     { return KindConstant }
func (*Parameter) Kind() Kind    { return KindParameter }
func (*Lambda) Kind() Kind       { return KindLambda }
func (*Unary) Kind() Kind        { return KindUnary }
func (*Binary) Kind() Kind       { return KindBinary }
func (*Conditional) Kind() Kind  { return KindConditional }
func (*MethodCall) Kind() Kind   { return KindMethodCall }
func (*MemberAccess) Kind() Kind { return KindMemberAccess }
func (*New) Kind() Kind          { return KindNew }
func (*MemberInit) Kind() Kind   { return KindMemberInit }
func (*ListInit) Kind() Kind     { return KindListInit }
func (*NewArray) Kind() Kind     { return KindNewArray }
func (*TypeBinary) Kind() Kind   { return KindTypeBinary }
func (*Invocation) Kind() Kind   { return KindInvocation }

func (*Constant) reprNode()     {}
func (*Parameter) reprNode()    {}
func (*Lambda) reprNode()       {}
func (*Unary) reprNode()        {}
func (*Binary) reprNode()       {}
func (*Conditional) reprNode()  {}
func (*MethodCall) reprNode()   {}
func (*MemberAccess) reprNode() {}
func (*New) reprNode()          {}
func (*MemberInit) reprNode()   {}
func (*ListInit) reprNode()     {}
func (*NewArray) reprNode()     {}
func (*TypeBinary) reprNode()   {}
func (*Invocation) reprNode()   {}

// ===== Formatting =====

func joinNodes(list []Node) string {
	parts := make([]string, len(list))
	for i, n := range list {
		parts[i] = str(n)
	}
	return strings.Join(parts, ", ")
}

func str(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

func (c *Constant) String() string {
	switch v := c.Value.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (p *Parameter) String() string {
	if p.Name == "" {
		return "$" + strconv.FormatUint(uint64(p.ID), 10)
	}
	return p.Name
}

func (l *Lambda) String() string {
	names := make([]string, len(l.Parameters))
	for i, p := range l.Parameters {
		names[i] = p.String()
	}
	return "(" + strings.Join(names, ", ") + ") => " + str(l.Body)
}

func (u *Unary) String() string {
	switch {
	case u.Method != nil:
		return u.Method.Name + "(" + str(u.Operand) + ")"
	case u.Op == op.Convert:
		return u.Type.String() + "(" + str(u.Operand) + ")"
	case u.Op == op.Len:
		return "len(" + str(u.Operand) + ")"
	default:
		return u.Op.Symbol() + str(u.Operand)
	}
}

func (b *Binary) String() string {
	switch {
	case b.Method != nil:
		return b.Method.Name + "(" + str(b.Left) + ", " + str(b.Right) + ")"
	case b.Op == op.Index:
		return str(b.Left) + "[" + str(b.Right) + "]"
	default:
		return "(" + str(b.Left) + " " + b.Op.Symbol() + " " + str(b.Right) + ")"
	}
}

func (c *Conditional) String() string {
	return "(" + str(c.Test) + " ? " + str(c.IfTrue) + " : " + str(c.IfFalse) + ")"
}

func (m *MethodCall) String() string {
	if m.Object != nil {
		return str(m.Object) + "." + m.Method.Name + "(" + joinNodes(m.Arguments) + ")"
	}
	return m.Method.Declaring.Name + "." + m.Method.Name + "(" + joinNodes(m.Arguments) + ")"
}

func (m *MemberAccess) String() string { return str(m.Object) + "." + m.Member }

func (n *New) String() string {
	return "new " + n.Type.Name + "(" + joinNodes(n.Arguments) + ")"
}

func (m *MemberInit) String() string {
	parts := make([]string, len(m.Bindings))
	for i, b := range m.Bindings {
		parts[i] = b.Member + ": " + str(b.Value)
	}
	return str(m.New) + " {" + strings.Join(parts, ", ") + "}"
}

func (l *ListInit) String() string {
	parts := make([]string, len(l.Initializers))
	for i, in := range l.Initializers {
		parts[i] = in.AddMethod.Name + "(" + joinNodes(in.Arguments) + ")"
	}
	return str(l.New) + " {" + strings.Join(parts, ", ") + "}"
}

func (a *NewArray) String() string {
	if a.Bounds {
		return "make([]" + a.ElementType.String() + ", " + joinNodes(a.Expressions) + ")"
	}
	return "[]" + a.ElementType.String() + "{" + joinNodes(a.Expressions) + "}"
}

func (t *TypeBinary) String() string { return str(t.Operand) + " is " + t.TypeOperand.String() }

func (i *Invocation) String() string {
	return str(i.Expression) + "(" + joinNodes(i.Arguments) + ")"
}
