package repr

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

var (
	// ErrDanglingParameter reports a parameter used outside every lambda
	// that declares it.
	ErrDanglingParameter = errors.New("parameter is not declared by an enclosing lambda")
	// ErrDuplicateParameter reports a lambda declaring the same token twice.
	ErrDuplicateParameter = errors.New("parameter declared twice")
	// ErrMissingChild reports a nil child where a node is required.
	ErrMissingChild = errors.New("missing child node")

	// SkipChildren, returned from a Walk callback, skips the node's children.
	SkipChildren = errors.New("skip children")
)

// Path locates a node: the root kind followed by field selectors, e.g.
// Lambda.Body.Arguments[1].
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

// Child returns p extended with field. p is not modified.
func (p Path) Child(field string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, field)
}

type edge struct {
	field string
	node  Node
}

func indexed(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

func appendList(out []edge, field string, list []Node) []edge {
	for i, n := range list {
		out = append(out, edge{indexed(field, i), n})
	}
	return out
}

// edges lists the direct children of n in field order. Absent optional
// children (static call receivers, missing New nodes) are omitted.
func edges(n Node) []edge {
	var out []edge
	switch x := n.(type) {
	case *Lambda:
		for i, p := range x.Parameters {
			if p != nil {
				out = append(out, edge{indexed("Parameters", i), p})
			}
		}
		out = append(out, edge{"Body", x.Body})
	case *Unary:
		out = append(out, edge{"Operand", x.Operand})
	case *Binary:
		out = append(out, edge{"Left", x.Left}, edge{"Right", x.Right})
	case *Conditional:
		out = append(out, edge{"Test", x.Test}, edge{"IfTrue", x.IfTrue}, edge{"IfFalse", x.IfFalse})
	case *MethodCall:
		if x.Object != nil {
			out = append(out, edge{"Object", x.Object})
		}
		out = appendList(out, "Arguments", x.Arguments)
	case *MemberAccess:
		out = append(out, edge{"Object", x.Object})
	case *New:
		out = appendList(out, "Arguments", x.Arguments)
	case *MemberInit:
		if x.New != nil {
			out = append(out, edge{"New", x.New})
		}
		for i, b := range x.Bindings {
			out = append(out, edge{indexed("Bindings", i) + ".Value", b.Value})
		}
	case *ListInit:
		if x.New != nil {
			out = append(out, edge{"New", x.New})
		}
		for i, in := range x.Initializers {
			out = appendList(out, indexed("Initializers", i)+".Arguments", in.Arguments)
		}
	case *NewArray:
		out = appendList(out, "Expressions", x.Expressions)
	case *TypeBinary:
		out = append(out, edge{"Operand", x.Operand})
	case *Invocation:
		out = append(out, edge{"Expression", x.Expression})
		out = appendList(out, "Arguments", x.Arguments)
	}
	return out
}

// ChildrenOf returns the direct children of n in field order: lambda
// parameters before the body, initializer arguments in list order. Leaves
// have no children.
func ChildrenOf(n Node) []Node {
	es := edges(n)
	out := make([]Node, 0, len(es))
	for _, e := range es {
		if e.node != nil {
			out = append(out, e.node)
		}
	}
	return out
}

// VisitAllNodes yields every node reachable from root in post-order:
// children before their parent, siblings in field order. A node reachable
// through several parents is yielded once per path. The sequence can be
// ranged over any number of times.
func VisitAllNodes(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		if root != nil {
			postOrder(root, yield)
		}
	}
}

func postOrder(n Node, yield func(Node) bool) bool {
	for _, c := range ChildrenOf(n) {
		if !postOrder(c, yield) {
			return false
		}
	}
	return yield(n)
}

// AllNodes collects VisitAllNodes(root).
func AllNodes(root Node) []Node {
	var out []Node
	for n := range VisitAllNodes(root) {
		out = append(out, n)
	}
	return out
}

// Walk calls fn for every node in pre-order with the node's path. Returning
// SkipChildren skips the node's subtree; any other error stops the walk and
// is returned.
func Walk(root Node, fn func(path Path, n Node) error) error {
	if root == nil {
		return nil
	}
	err := walk(Path{root.Kind().String()}, root, fn)
	if errors.Is(err, SkipChildren) {
		return nil
	}
	return err
}

func walk(path Path, n Node, fn func(Path, Node) error) error {
	if err := fn(path, n); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, e := range edges(n) {
		if e.node == nil {
			continue
		}
		if err := walk(path.Child(e.field), e.node, fn); err != nil {
			return err
		}
	}
	return nil
}

// PathError attaches a node path to a validation failure.
type PathError struct {
	Path Path
	Err  error
}

func (e *PathError) Error() string { return e.Path.String() + ": " + e.Err.Error() }

func (e *PathError) Unwrap() error { return e.Err }

// Validate checks the structural invariants a builder relies on: required
// children are present, every parameter reference is declared by an
// enclosing lambda and no lambda declares a token twice. Tokens of inner
// lambdas may shadow outer ones.
func Validate(root Node) error {
	if root == nil {
		return ErrMissingChild
	}
	return validate(Path{root.Kind().String()}, root, map[Token]int{})
}

func validate(path Path, n Node, scope map[Token]int) error {
	switch x := n.(type) {
	case *Parameter:
		if scope[x.ID] == 0 {
			return &PathError{path, fmt.Errorf("%w: %s (token %d)", ErrDanglingParameter, x, x.ID)}
		}
		return nil
	case *Lambda:
		seen := make(map[Token]bool, len(x.Parameters))
		for i, p := range x.Parameters {
			if p == nil {
				return &PathError{path.Child(indexed("Parameters", i)), ErrMissingChild}
			}
			if seen[p.ID] {
				return &PathError{path.Child(indexed("Parameters", i)), fmt.Errorf("%w: %s", ErrDuplicateParameter, p)}
			}
			seen[p.ID] = true
		}
		if x.Body == nil {
			return &PathError{path.Child("Body"), ErrMissingChild}
		}
		for id := range seen {
			scope[id]++
		}
		err := validate(path.Child("Body"), x.Body, scope)
		for id := range seen {
			scope[id]--
		}
		return err
	case *MemberInit:
		if x.New == nil {
			return &PathError{path.Child("New"), ErrMissingChild}
		}
	case *ListInit:
		if x.New == nil {
			return &PathError{path.Child("New"), ErrMissingChild}
		}
	}
	for _, e := range edges(n) {
		if e.node == nil {
			return &PathError{path.Child(e.field), ErrMissingChild}
		}
		if err := validate(path.Child(e.field), e.node, scope); err != nil {
			return err
		}
	}
	return nil
}
