package astbridge

import (
	"fmt"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

// ExpressionConverter converts executable expressions to representation
// nodes. It owns the identity map of one conversion: the first time a
// runtime parameter is seen it gets the next token, and every later
// occurrence, as a declaration or a reference, reuses it. A converter must
// not be shared between goroutines.
type ExpressionConverter struct {
	typeConverter *TypeConverter
	maxDepth      int

	tokens map[*expr.Parameter]repr.Token
	next   repr.Token
	nodes  int
}

// NewExpressionConverter creates a converter with a fresh identity map.
func NewExpressionConverter(typeConverter *TypeConverter, maxDepth int) *ExpressionConverter {
	return &ExpressionConverter{
		typeConverter: typeConverter,
		maxDepth:      maxDepth,
		tokens:        make(map[*expr.Parameter]repr.Token),
	}
}

// Convert converts e and every node below it.
func (ec *ExpressionConverter) Convert(e expr.Expr) (repr.Node, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot convert nil expression")
	}
	return ec.convert(e, 1)
}

func (ec *ExpressionConverter) token(p *expr.Parameter) repr.Token {
	if id, ok := ec.tokens[p]; ok {
		return id
	}
	ec.next++
	ec.tokens[p] = ec.next
	return ec.next
}

func (ec *ExpressionConverter) convert(e expr.Expr, depth int) (repr.Node, error) {
	if depth > ec.maxDepth {
		return nil, &rerrors.RecursionLimitError{Limit: ec.maxDepth}
	}
	ec.nodes++
	tc := ec.typeConverter

	switch concrete := e.(type) {
	case *expr.Constant:
		return &repr.Constant{Type: tc.Describe(concrete.Type()), Value: concrete.Value}, nil
	case *expr.Parameter:
		return ec.fromParameter(concrete), nil
	case *expr.Lambda:
		return ec.fromLambda(concrete, depth)
	case *expr.Unary:
		operand, err := ec.convert(concrete.Operand, depth+1)
		if err != nil {
			return nil, err
		}
		return &repr.Unary{
			Op:      concrete.Op,
			Operand: operand,
			Type:    tc.Describe(concrete.Type()),
			Method:  tc.DescribeMethod(concrete.Method),
		}, nil
	case *expr.Binary:
		left, err := ec.convert(concrete.Left, depth+1)
		if err != nil {
			return nil, err
		}
		right, err := ec.convert(concrete.Right, depth+1)
		if err != nil {
			return nil, err
		}
		return &repr.Binary{
			Op:     concrete.Op,
			Left:   left,
			Right:  right,
			Type:   tc.Describe(concrete.Type()),
			Method: tc.DescribeMethod(concrete.Method),
		}, nil
	case *expr.Conditional:
		list, err := ec.convertAll([]expr.Expr{concrete.Test, concrete.IfTrue, concrete.IfFalse}, depth)
		if err != nil {
			return nil, err
		}
		return &repr.Conditional{Test: list[0], IfTrue: list[1], IfFalse: list[2], Type: tc.Describe(concrete.Type())}, nil
	case *expr.Call:
		return ec.fromCall(concrete, depth)
	case *expr.MemberAccess:
		object, err := ec.convert(concrete.Object, depth+1)
		if err != nil {
			return nil, err
		}
		return &repr.MemberAccess{
			Object:    object,
			Member:    concrete.Field.Name,
			Declaring: tc.Describe(concrete.Declaring),
			Type:      tc.Describe(concrete.Type()),
		}, nil
	case *expr.New:
		return ec.fromNew(concrete, depth)
	case *expr.MemberInit:
		n, err := ec.fromNew(concrete.New, depth+1)
		if err != nil {
			return nil, err
		}
		bindings := make([]repr.MemberBinding, len(concrete.Bindings))
		for i, b := range concrete.Bindings {
			v, err := ec.convert(b.Value, depth+1)
			if err != nil {
				return nil, err
			}
			bindings[i] = repr.MemberBinding{Member: b.Field, Value: v}
		}
		return &repr.MemberInit{New: n, Bindings: bindings}, nil
	case *expr.ListInit:
		n, err := ec.fromNew(concrete.New, depth+1)
		if err != nil {
			return nil, err
		}
		inits := make([]repr.ElementInit, len(concrete.Inits))
		for i, in := range concrete.Inits {
			args, err := ec.convertAll(in.Args, depth)
			if err != nil {
				return nil, err
			}
			inits[i] = repr.ElementInit{AddMethod: *tc.DescribeMethod(in.Add), Arguments: args}
		}
		return &repr.ListInit{New: n, Initializers: inits}, nil
	case *expr.NewArray:
		exprs, err := ec.convertAll(concrete.Exprs, depth)
		if err != nil {
			return nil, err
		}
		return &repr.NewArray{ElementType: tc.Describe(concrete.Elem), Bounds: concrete.Bounds, Expressions: exprs}, nil
	case *expr.TypeIs:
		operand, err := ec.convert(concrete.Operand, depth+1)
		if err != nil {
			return nil, err
		}
		return &repr.TypeBinary{Operand: operand, TypeOperand: tc.Describe(concrete.Target)}, nil
	case *expr.Invoke:
		fn, err := ec.convert(concrete.Func, depth+1)
		if err != nil {
			return nil, err
		}
		args, err := ec.convertAll(concrete.Args, depth)
		if err != nil {
			return nil, err
		}
		return &repr.Invocation{Expression: fn, Arguments: args, Type: tc.Describe(concrete.Type())}, nil
	case *expr.Block, *expr.Default:
		return nil, &rerrors.UnsupportedNodeKindError{Kind: e.Kind().String()}
	default:
		return nil, &rerrors.UnsupportedNodeKindError{Kind: fmt.Sprintf("%T", e)}
	}
}

// convertAll converts list as children of a node at depth.
func (ec *ExpressionConverter) convertAll(list []expr.Expr, depth int) ([]repr.Node, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]repr.Node, len(list))
	for i, e := range list {
		n, err := ec.convert(e, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (ec *ExpressionConverter) fromParameter(p *expr.Parameter) *repr.Parameter {
	return &repr.Parameter{Type: ec.typeConverter.Describe(p.Type()), Name: p.Name, ID: ec.token(p)}
}

// fromLambda numbers the declared parameters before the body so that
// tokens follow declaration order.
func (ec *ExpressionConverter) fromLambda(l *expr.Lambda, depth int) (*repr.Lambda, error) {
	params := make([]*repr.Parameter, len(l.Params))
	for i, p := range l.Params {
		ec.nodes++
		params[i] = ec.fromParameter(p)
	}
	body, err := ec.convert(l.Body, depth+1)
	if err != nil {
		return nil, err
	}
	return &repr.Lambda{Type: ec.typeConverter.Describe(l.Type()), Parameters: params, Body: body}, nil
}

func (ec *ExpressionConverter) fromCall(c *expr.Call, depth int) (*repr.MethodCall, error) {
	var object repr.Node
	if c.Object != nil {
		var err error
		if object, err = ec.convert(c.Object, depth+1); err != nil {
			return nil, err
		}
	}
	args, err := ec.convertAll(c.Args, depth)
	if err != nil {
		return nil, err
	}
	return &repr.MethodCall{
		Object:    object,
		Method:    *ec.typeConverter.DescribeMethod(c.Method),
		Arguments: args,
		Type:      ec.typeConverter.Describe(c.Type()),
	}, nil
}

func (ec *ExpressionConverter) fromNew(n *expr.New, depth int) (*repr.New, error) {
	if depth > ec.maxDepth {
		return nil, &rerrors.RecursionLimitError{Limit: ec.maxDepth}
	}
	args, err := ec.convertAll(n.Args, depth)
	if err != nil {
		return nil, err
	}
	return &repr.New{
		Type:        ec.typeConverter.Describe(n.Type()),
		Constructor: ec.typeConverter.DescribeMethod(n.Constructor),
		Arguments:   args,
	}, nil
}
