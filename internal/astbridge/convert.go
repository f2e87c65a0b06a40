// Package astbridge converts between executable expression trees and their
// serializable representation.
//
// ToRepresentation walks an expr tree and produces a repr tree whose
// parameters carry conversion-scoped identity tokens. Rebuild walks a repr
// tree bottom-up, resolves every descriptor through a catalog and produces
// an expr tree in which all occurrences of one token are the same runtime
// parameter. FromRepresentation additionally compiles the rebuilt lambda.
package astbridge

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/metrics"
	"github.com/orizon-lang/exprrepr/internal/repr"
)

// DefaultMaxDepth bounds the nesting depth both directions accept.
const DefaultMaxDepth = expr.DefaultMaxDepth

// Compiler turns a rebuilt lambda into an invokable closure.
type Compiler interface {
	Compile(l *expr.Lambda) (*expr.Closure, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(l *expr.Lambda) (*expr.Closure, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(l *expr.Lambda) (*expr.Closure, error) { return f(l) }

// Option configures a conversion.
type Option func(*options)

type options struct {
	maxDepth int
	logger   logr.Logger
	compiler Compiler
	metrics  *metrics.Metrics
}

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets the logger; conversions log at V(1).
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCompiler replaces the default compiler used by FromRepresentation.
func WithCompiler(c Compiler) Option {
	return func(o *options) { o.compiler = c }
}

// WithMetrics records conversions into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) *options {
	o := &options{maxDepth: DefaultMaxDepth, logger: logr.Discard()}
	for _, fn := range opts {
		fn(o)
	}
	if o.compiler == nil {
		depth := o.maxDepth
		o.compiler = CompilerFunc(func(l *expr.Lambda) (*expr.Closure, error) {
			return expr.Compile(l, expr.WithMaxDepth(depth))
		})
	}
	return o
}

// ToRepresentation converts e into its representation. Each call numbers
// parameters afresh starting at token 1.
func ToRepresentation(e expr.Expr, opts ...Option) (repr.Node, error) {
	o := newOptions(opts)
	start := time.Now()
	ec := NewExpressionConverter(NewTypeConverter(nil), o.maxDepth)
	node, err := ec.Convert(e)
	o.metrics.ObserveConversion(metrics.ToRepresentation, time.Since(start), ec.nodes, err)
	if err != nil {
		o.logger.V(1).Info("conversion to representation failed", "error", err.Error())
		return nil, err
	}
	o.logger.V(1).Info("converted to representation", "kind", node.Kind().String(), "nodes", ec.nodes, "parameters", len(ec.tokens))
	return node, nil
}

// Rebuild reconstructs the executable tree of root, resolving descriptors
// through catalog.
func Rebuild(root repr.Node, catalog descriptor.Catalog, opts ...Option) (expr.Expr, error) {
	return rebuild(root, catalog, newOptions(opts))
}

func rebuild(root repr.Node, catalog descriptor.Catalog, o *options) (expr.Expr, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rebuild: nil catalog")
	}
	start := time.Now()
	eb := NewExpressionBuilder(NewTypeConverter(catalog), o.maxDepth)
	e, err := eb.Build(root)
	o.metrics.ObserveConversion(metrics.FromRepresentation, time.Since(start), eb.nodes, err)
	if err != nil {
		o.logger.V(1).Info("rebuild failed", "error", err.Error())
		return nil, err
	}
	o.logger.V(1).Info("rebuilt expression", "kind", e.Kind().String(), "nodes", eb.nodes, "parameters", len(eb.params))
	return e, nil
}

// FromRepresentation rebuilds root, which must be a lambda, and compiles it.
func FromRepresentation(root repr.Node, catalog descriptor.Catalog, opts ...Option) (*expr.Closure, error) {
	o := newOptions(opts)
	if _, ok := root.(*repr.Lambda); !ok {
		kind := "<nil>"
		if root != nil {
			kind = root.Kind().String()
		}
		return nil, rerrors.Reconstruction(rootPath(root).String(), fmt.Errorf("%w: root is %s", ErrNotLambda, kind))
	}
	e, err := rebuild(root, catalog, o)
	if err != nil {
		return nil, err
	}
	closure, err := o.compiler.Compile(e.(*expr.Lambda))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", e, err)
	}
	return closure, nil
}

func rootPath(root repr.Node) repr.Path {
	if root == nil {
		return repr.Path{"<nil>"}
	}
	return repr.Path{root.Kind().String()}
}
