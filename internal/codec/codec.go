// Package codec serializes representation trees as versioned JSON or YAML
// documents.
//
// A document is an envelope {"format": "1.0.0", "root": node}. Each node is
// an object tagged by "kind"; parameters carry their identity token in
// "id", so a decoded tree rebuilds with the same variable bindings as the
// encoded one. Constant payloads are encoded by the ValueCodec registered
// for the constant's type descriptor.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/op"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

const (
	// FormatVersion is written into every envelope.
	FormatVersion = "1.0.0"
	// FormatConstraint is the range of envelope versions Decode accepts.
	FormatConstraint = "^1.0"

	defaultMaxDepth = 256
)

var (
	// ErrUnsupportedFormat reports an envelope version outside FormatConstraint.
	ErrUnsupportedFormat = errors.New("unsupported representation format")
	// ErrMalformed reports a document that does not describe a valid tree.
	ErrMalformed = errors.New("malformed representation document")

	formatConstraint = mustConstraint(FormatConstraint)
)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Descriptor aliases so callers need not import the descriptor package.
type (
	TypeDescriptor   = descriptor.TypeDescriptor
	MemberDescriptor = descriptor.MemberDescriptor
)

// Envelope is the top-level document.
type Envelope struct {
	Format string          `json:"format"`
	Root   json.RawMessage `json:"root"`
}

type wireNode struct {
	Kind string `json:"kind"`

	Type        *TypeDescriptor   `json:"type,omitempty"`
	Value       json.RawMessage   `json:"value,omitempty"`
	Name        string            `json:"name,omitempty"`
	ID          repr.Token        `json:"id,omitempty"`
	Op          string            `json:"op,omitempty"`
	Method      *MemberDescriptor `json:"method,omitempty"`
	Constructor *MemberDescriptor `json:"constructor,omitempty"`
	Member      string            `json:"member,omitempty"`
	Declaring   *TypeDescriptor   `json:"declaring,omitempty"`
	ElementType *TypeDescriptor   `json:"elementType,omitempty"`
	TypeOperand *TypeDescriptor   `json:"typeOperand,omitempty"`
	Bounds      bool              `json:"bounds,omitempty"`

	Parameters   []*wireNode   `json:"parameters,omitempty"`
	Body         *wireNode     `json:"body,omitempty"`
	Operand      *wireNode     `json:"operand,omitempty"`
	Left         *wireNode     `json:"left,omitempty"`
	Right        *wireNode     `json:"right,omitempty"`
	Test         *wireNode     `json:"test,omitempty"`
	IfTrue       *wireNode     `json:"ifTrue,omitempty"`
	IfFalse      *wireNode     `json:"ifFalse,omitempty"`
	Object       *wireNode     `json:"object,omitempty"`
	Expression   *wireNode     `json:"expression,omitempty"`
	Arguments    []*wireNode   `json:"arguments,omitempty"`
	New          *wireNode     `json:"new,omitempty"`
	Bindings     []wireBinding `json:"bindings,omitempty"`
	Initializers []wireInit    `json:"initializers,omitempty"`
	Expressions  []*wireNode   `json:"expressions,omitempty"`
}

type wireBinding struct {
	Member string    `json:"member"`
	Value  *wireNode `json:"value"`
}

type wireInit struct {
	AddMethod MemberDescriptor `json:"addMethod"`
	Arguments []*wireNode      `json:"arguments,omitempty"`
}

// Codec encodes and decodes representation documents. A Codec is safe for
// concurrent use once its registry is frozen.
type Codec struct {
	values   *Registry
	maxDepth int
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxDepth bounds the nesting depth Decode accepts.
func WithMaxDepth(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// New creates a codec using values for constant payloads. A nil values
// uses a frozen NewRegistry.
func New(values *Registry, opts ...Option) *Codec {
	if values == nil {
		values = NewRegistry().Freeze()
	}
	c := &Codec{values: values, maxDepth: defaultMaxDepth}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Marshal encodes root as an indented JSON envelope.
func (c *Codec) Marshal(root repr.Node) ([]byte, error) {
	w, err := c.encode(root)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(struct {
		Format string    `json:"format"`
		Root   *wireNode `json:"root"`
	}{FormatVersion, w}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// Unmarshal decodes a JSON envelope.
func (c *Codec) Unmarshal(data []byte) (repr.Node, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := CheckFormat(env.Format); err != nil {
		return nil, err
	}
	if len(env.Root) == 0 {
		return nil, fmt.Errorf("%w: missing root", ErrMalformed)
	}
	var w wireNode
	if err := json.Unmarshal(env.Root, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c.decode(&w, 1)
}

// MarshalYAML encodes root as a YAML envelope.
func (c *Codec) MarshalYAML(root repr.Node) ([]byte, error) {
	j, err := c.Marshal(root)
	if err != nil {
		return nil, err
	}
	return yaml.JSONToYAML(j)
}

// UnmarshalYAML decodes a YAML envelope.
func (c *Codec) UnmarshalYAML(data []byte) (repr.Node, error) {
	j, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c.Unmarshal(j)
}

// CheckFormat reports whether version is accepted by this codec.
func CheckFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedFormat, version, err)
	}
	if !formatConstraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedFormat, v, FormatConstraint)
	}
	return nil
}

// ===== Encoding =====

func typePtr(d TypeDescriptor) *TypeDescriptor { return &d }

func (c *Codec) encode(n repr.Node) (*wireNode, error) {
	if n == nil {
		return nil, nil
	}
	w := &wireNode{Kind: n.Kind().String()}
	var err error
	switch x := n.(type) {
	case *repr.Constant:
		w.Type = typePtr(x.Type)
		if x.Value == nil {
			w.Value = json.RawMessage("null")
			break
		}
		vc, lerr := c.values.Lookup(x.Type)
		if lerr != nil {
			return nil, lerr
		}
		if w.Value, err = vc.Encode(x.Value); err != nil {
			return nil, fmt.Errorf("encode constant of %s: %w", x.Type, err)
		}
	case *repr.Parameter:
		w.Type, w.Name, w.ID = typePtr(x.Type), x.Name, x.ID
	case *repr.Lambda:
		w.Type = typePtr(x.Type)
		w.Parameters = make([]*wireNode, len(x.Parameters))
		for i, p := range x.Parameters {
			if w.Parameters[i], err = c.encode(p); err != nil {
				return nil, err
			}
		}
		w.Body, err = c.encode(x.Body)
	case *repr.Unary:
		w.Op, w.Type, w.Method = x.Op.String(), typePtr(x.Type), x.Method
		w.Operand, err = c.encode(x.Operand)
	case *repr.Binary:
		w.Op, w.Type, w.Method = x.Op.String(), typePtr(x.Type), x.Method
		if w.Left, err = c.encode(x.Left); err == nil {
			w.Right, err = c.encode(x.Right)
		}
	case *repr.Conditional:
		w.Type = typePtr(x.Type)
		if w.Test, err = c.encode(x.Test); err == nil {
			if w.IfTrue, err = c.encode(x.IfTrue); err == nil {
				w.IfFalse, err = c.encode(x.IfFalse)
			}
		}
	case *repr.MethodCall:
		m := x.Method
		w.Method, w.Type = &m, typePtr(x.Type)
		if w.Object, err = c.encode(x.Object); err == nil {
			w.Arguments, err = c.encodeAll(x.Arguments)
		}
	case *repr.MemberAccess:
		w.Member, w.Declaring, w.Type = x.Member, typePtr(x.Declaring), typePtr(x.Type)
		w.Object, err = c.encode(x.Object)
	case *repr.New:
		w.Type, w.Constructor = typePtr(x.Type), x.Constructor
		w.Arguments, err = c.encodeAll(x.Arguments)
	case *repr.MemberInit:
		if x.New == nil {
			return nil, fmt.Errorf("%w: member init without new", ErrMalformed)
		}
		if w.New, err = c.encode(x.New); err != nil {
			return nil, err
		}
		w.Bindings = make([]wireBinding, len(x.Bindings))
		for i, b := range x.Bindings {
			w.Bindings[i].Member = b.Member
			if w.Bindings[i].Value, err = c.encode(b.Value); err != nil {
				return nil, err
			}
		}
	case *repr.ListInit:
		if x.New == nil {
			return nil, fmt.Errorf("%w: list init without new", ErrMalformed)
		}
		if w.New, err = c.encode(x.New); err != nil {
			return nil, err
		}
		w.Initializers = make([]wireInit, len(x.Initializers))
		for i, in := range x.Initializers {
			w.Initializers[i].AddMethod = in.AddMethod
			if w.Initializers[i].Arguments, err = c.encodeAll(in.Arguments); err != nil {
				return nil, err
			}
		}
	case *repr.NewArray:
		w.ElementType, w.Bounds = typePtr(x.ElementType), x.Bounds
		w.Expressions, err = c.encodeAll(x.Expressions)
	case *repr.TypeBinary:
		w.TypeOperand = typePtr(x.TypeOperand)
		w.Operand, err = c.encode(x.Operand)
	case *repr.Invocation:
		w.Type = typePtr(x.Type)
		if w.Expression, err = c.encode(x.Expression); err == nil {
			w.Arguments, err = c.encodeAll(x.Arguments)
		}
	default:
		return nil, &rerrors.UnsupportedNodeKindError{Kind: fmt.Sprintf("%T", n)}
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (c *Codec) encodeAll(list []repr.Node) ([]*wireNode, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]*wireNode, len(list))
	for i, n := range list {
		w, err := c.encode(n)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// ===== Decoding =====

func required(w *wireNode, field string) error {
	if w == nil {
		return fmt.Errorf("%w: missing %s", ErrMalformed, field)
	}
	return nil
}

func typeOf(d *TypeDescriptor, kind string) (TypeDescriptor, error) {
	if d == nil {
		return TypeDescriptor{}, fmt.Errorf("%w: %s without type", ErrMalformed, kind)
	}
	return *d, nil
}

func (c *Codec) decode(w *wireNode, depth int) (repr.Node, error) {
	if depth > c.maxDepth {
		return nil, &rerrors.RecursionLimitError{Limit: c.maxDepth}
	}
	if w == nil {
		return nil, fmt.Errorf("%w: null node", ErrMalformed)
	}
	kind, err := repr.ParseKind(w.Kind)
	if err != nil {
		return nil, &rerrors.UnsupportedNodeKindError{Kind: w.Kind}
	}
	child := func(cw *wireNode, field string) (repr.Node, error) {
		if err := required(cw, w.Kind+"."+field); err != nil {
			return nil, err
		}
		return c.decode(cw, depth+1)
	}

	switch kind {
	case repr.KindConstant:
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		if len(w.Value) == 0 || string(w.Value) == "null" {
			return &repr.Constant{Type: t}, nil
		}
		vc, err := c.values.Lookup(t)
		if err != nil {
			return nil, err
		}
		v, err := vc.Decode(w.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: constant of %s: %v", ErrMalformed, t, err)
		}
		return &repr.Constant{Type: t, Value: v}, nil
	case repr.KindParameter:
		return c.decodeParameter(w)
	case repr.KindLambda:
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		params := make([]*repr.Parameter, len(w.Parameters))
		for i, pw := range w.Parameters {
			if err := required(pw, "Lambda.parameters"); err != nil {
				return nil, err
			}
			if params[i], err = c.decodeParameter(pw); err != nil {
				return nil, err
			}
		}
		body, err := child(w.Body, "body")
		if err != nil {
			return nil, err
		}
		return &repr.Lambda{Type: t, Parameters: params, Body: body}, nil
	case repr.KindUnary:
		o, err := op.ParseUnary(w.Op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		operand, err := child(w.Operand, "operand")
		if err != nil {
			return nil, err
		}
		return &repr.Unary{Op: o, Operand: operand, Type: t, Method: w.Method}, nil
	case repr.KindBinary:
		o, err := op.ParseBinary(w.Op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		left, err := child(w.Left, "left")
		if err != nil {
			return nil, err
		}
		right, err := child(w.Right, "right")
		if err != nil {
			return nil, err
		}
		return &repr.Binary{Op: o, Left: left, Right: right, Type: t, Method: w.Method}, nil
	case repr.KindConditional:
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		test, err := child(w.Test, "test")
		if err != nil {
			return nil, err
		}
		ifTrue, err := child(w.IfTrue, "ifTrue")
		if err != nil {
			return nil, err
		}
		ifFalse, err := child(w.IfFalse, "ifFalse")
		if err != nil {
			return nil, err
		}
		return &repr.Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, Type: t}, nil
	case repr.KindMethodCall:
		if w.Method == nil {
			return nil, fmt.Errorf("%w: MethodCall without method", ErrMalformed)
		}
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		var object repr.Node
		if w.Object != nil {
			if object, err = c.decode(w.Object, depth+1); err != nil {
				return nil, err
			}
		}
		args, err := c.decodeAll(w.Arguments, depth)
		if err != nil {
			return nil, err
		}
		return &repr.MethodCall{Object: object, Method: *w.Method, Arguments: args, Type: t}, nil
	case repr.KindMemberAccess:
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		declaring, err := typeOf(w.Declaring, w.Kind)
		if err != nil {
			return nil, err
		}
		object, err := child(w.Object, "object")
		if err != nil {
			return nil, err
		}
		return &repr.MemberAccess{Object: object, Member: w.Member, Declaring: declaring, Type: t}, nil
	case repr.KindNew:
		return c.decodeNew(w, depth)
	case repr.KindMemberInit:
		if err := required(w.New, "MemberInit.new"); err != nil {
			return nil, err
		}
		n, err := c.decodeNew(w.New, depth+1)
		if err != nil {
			return nil, err
		}
		bindings := make([]repr.MemberBinding, len(w.Bindings))
		for i, b := range w.Bindings {
			v, err := child(b.Value, "bindings.value")
			if err != nil {
				return nil, err
			}
			bindings[i] = repr.MemberBinding{Member: b.Member, Value: v}
		}
		return &repr.MemberInit{New: n, Bindings: bindings}, nil
	case repr.KindListInit:
		if err := required(w.New, "ListInit.new"); err != nil {
			return nil, err
		}
		n, err := c.decodeNew(w.New, depth+1)
		if err != nil {
			return nil, err
		}
		inits := make([]repr.ElementInit, len(w.Initializers))
		for i, in := range w.Initializers {
			args, err := c.decodeAll(in.Arguments, depth)
			if err != nil {
				return nil, err
			}
			inits[i] = repr.ElementInit{AddMethod: in.AddMethod, Arguments: args}
		}
		return &repr.ListInit{New: n, Initializers: inits}, nil
	case repr.KindNewArray:
		elem, err := typeOf(w.ElementType, w.Kind)
		if err != nil {
			return nil, err
		}
		exprs, err := c.decodeAll(w.Expressions, depth)
		if err != nil {
			return nil, err
		}
		return &repr.NewArray{ElementType: elem, Bounds: w.Bounds, Expressions: exprs}, nil
	case repr.KindTypeBinary:
		target, err := typeOf(w.TypeOperand, w.Kind)
		if err != nil {
			return nil, err
		}
		operand, err := child(w.Operand, "operand")
		if err != nil {
			return nil, err
		}
		return &repr.TypeBinary{Operand: operand, TypeOperand: target}, nil
	case repr.KindInvocation:
		t, err := typeOf(w.Type, w.Kind)
		if err != nil {
			return nil, err
		}
		fn, err := child(w.Expression, "expression")
		if err != nil {
			return nil, err
		}
		args, err := c.decodeAll(w.Arguments, depth)
		if err != nil {
			return nil, err
		}
		return &repr.Invocation{Expression: fn, Arguments: args, Type: t}, nil
	}
	return nil, &rerrors.UnsupportedNodeKindError{Kind: w.Kind}
}

func (c *Codec) decodeParameter(w *wireNode) (*repr.Parameter, error) {
	if w.Kind != repr.KindParameter.String() {
		return nil, fmt.Errorf("%w: expected Parameter, got %q", ErrMalformed, w.Kind)
	}
	t, err := typeOf(w.Type, w.Kind)
	if err != nil {
		return nil, err
	}
	if w.ID == 0 {
		return nil, fmt.Errorf("%w: parameter %q without token", ErrMalformed, w.Name)
	}
	return &repr.Parameter{Type: t, Name: w.Name, ID: w.ID}, nil
}

func (c *Codec) decodeNew(w *wireNode, depth int) (*repr.New, error) {
	if w.Kind != repr.KindNew.String() {
		return nil, fmt.Errorf("%w: expected New, got %q", ErrMalformed, w.Kind)
	}
	t, err := typeOf(w.Type, w.Kind)
	if err != nil {
		return nil, err
	}
	args, err := c.decodeAll(w.Arguments, depth)
	if err != nil {
		return nil, err
	}
	return &repr.New{Type: t, Constructor: w.Constructor, Arguments: args}, nil
}

func (c *Codec) decodeAll(list []*wireNode, depth int) ([]repr.Node, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]repr.Node, len(list))
	for i, w := range list {
		n, err := c.decode(w, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
