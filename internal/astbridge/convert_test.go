package astbridge

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/metrics"
	"github.com/orizon-lang/exprrepr/internal/op"
	"github.com/orizon-lang/exprrepr/internal/repr"
	"github.com/orizon-lang/exprrepr/internal/sample"
)

func sampleCatalog(t *testing.T) *descriptor.Snapshot {
	t.Helper()
	cat, err := sample.Catalog()
	if err != nil {
		t.Fatalf("sample catalog: %v", err)
	}
	return cat
}

func mustExample(t *testing.T, name string) sample.Example {
	t.Helper()
	ex, err := sample.ExampleNamed(name)
	if err != nil {
		t.Fatalf("example %s: %v", name, err)
	}
	return ex
}

func TestRoundTripExamples(t *testing.T) {
	cat := sampleCatalog(t)
	examples, err := sample.Examples()
	if err != nil {
		t.Fatalf("examples: %v", err)
	}
	for _, ex := range examples {
		t.Run(ex.Name, func(t *testing.T) {
			direct, err := expr.Compile(ex.Lambda)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			want, err := direct.Call(ex.Args...)
			if err != nil {
				t.Fatalf("direct call: %v", err)
			}

			node, err := ToRepresentation(ex.Lambda)
			if err != nil {
				t.Fatalf("ToRepresentation: %v", err)
			}
			closure, err := FromRepresentation(node, cat, WithLogger(testr.New(t)))
			if err != nil {
				t.Fatalf("FromRepresentation(%s): %v", node, err)
			}
			got, err := closure.Call(ex.Args...)
			if err != nil {
				t.Fatalf("rebuilt call: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("rebuilt result %#v, direct result %#v", got, want)
			}
			if !reflect.DeepEqual(got, ex.Want) {
				t.Fatalf("result %#v, want %#v", got, ex.Want)
			}

			// converting the rebuilt tree yields the same representation
			again, err := ToRepresentation(closure.Lambda())
			if err != nil {
				t.Fatalf("second conversion: %v", err)
			}
			if !repr.Equal(node, again) {
				t.Fatalf("representation changed across round trip:\n%s\n%s", node, again)
			}
		})
	}
}

func TestOutputOpen(t *testing.T) {
	ex := mustExample(t, "output")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	closure, err := FromRepresentation(node, sampleCatalog(t))
	if err != nil {
		t.Fatalf("FromRepresentation: %v", err)
	}
	got, err := closure.Call(sample.Input("hello"))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	want := sample.Output{Input: sample.Input("hello"), Extra: "open"}
	if got != want {
		t.Fatalf("got %#v, want %#v", got, want)
	}

	fn, ok := closure.Interface().(func(sample.Input) sample.Output)
	if !ok {
		t.Fatalf("Interface() is %T", closure.Interface())
	}
	if out := fn("typed"); out.Extra != "open" || out.Input != "typed" {
		t.Fatalf("typed call returned %#v", out)
	}
}

func TestStructuralEqualityIdempotence(t *testing.T) {
	ex := mustExample(t, "money")
	a, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	b, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("second conversion: %v", err)
	}
	if a == b {
		t.Fatalf("conversions must produce fresh trees")
	}
	if !repr.Equal(a, b) || repr.Hash(a) != repr.Hash(b) {
		t.Fatalf("repeated conversions differ:\n%s\n%s", a, b)
	}

	c := repr.Clone(a)
	if c == a || !repr.Equal(c, a) {
		t.Fatalf("clone must be a structurally equal fresh tree")
	}
}

func TestParameterIdentity(t *testing.T) {
	ex := mustExample(t, "join")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	l := node.(*repr.Lambda)
	if l.Parameters[0].ID != 1 {
		t.Fatalf("first token is %d, want 1", l.Parameters[0].ID)
	}
	call := l.Body.(*repr.MethodCall)
	for i, a := range call.Arguments {
		p, ok := a.(*repr.Parameter)
		if !ok || p.ID != l.Parameters[0].ID {
			t.Fatalf("argument %d is %v, want parameter token %d", i, a, l.Parameters[0].ID)
		}
	}

	rebuilt, err := Rebuild(node, sampleCatalog(t))
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	rl := rebuilt.(*expr.Lambda)
	rc := rl.Body.(*expr.Call)
	if rc.Args[0] != expr.Expr(rl.Params[0]) || rc.Args[1] != expr.Expr(rl.Params[0]) {
		t.Fatalf("both arguments must be the lambda's single parameter")
	}
}

func TestDistinctParametersKeepDistinctTokens(t *testing.T) {
	ex := mustExample(t, "arithmetic")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	l := node.(*repr.Lambda)
	if l.Parameters[0].ID == l.Parameters[1].ID {
		t.Fatalf("x and y share token %d", l.Parameters[0].ID)
	}

	// same name, same type, different variables
	x1 := expr.MakeParameter(reflect.TypeOf(0), "x")
	x2 := expr.MakeParameter(reflect.TypeOf(0), "x")
	sum, _ := expr.MakeBinary(op.Add, x1, x2, nil)
	lam, err := expr.MakeLambda(sum, x1, x2)
	if err != nil {
		t.Fatalf("MakeLambda: %v", err)
	}
	node, err = ToRepresentation(lam)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	closure, err := FromRepresentation(node, sampleCatalog(t))
	if err != nil {
		t.Fatalf("FromRepresentation: %v", err)
	}
	got, err := closure.Call(1, 10)
	if err != nil || got != 11 {
		t.Fatalf("call = %v, %v; want 11", got, err)
	}
}

func TestSiblingLambdasShareParameter(t *testing.T) {
	x := expr.MakeParameter(reflect.TypeOf(0), "x")
	one, _ := expr.MakeConstant(1)
	identity, err := expr.MakeLambda(x, x)
	if err != nil {
		t.Fatalf("MakeLambda: %v", err)
	}
	sum, _ := expr.MakeBinary(op.Add, x, one, nil)
	inc, err := expr.MakeLambda(sum, x)
	if err != nil {
		t.Fatalf("MakeLambda: %v", err)
	}
	arr, err := expr.MakeNewArray(reflect.TypeOf(func(int) int(nil)), identity, inc)
	if err != nil {
		t.Fatalf("MakeNewArray: %v", err)
	}

	node, err := ToRepresentation(arr)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	exprs := node.(*repr.NewArray).Expressions
	if a, b := exprs[0].(*repr.Lambda).Parameters[0].ID, exprs[1].(*repr.Lambda).Parameters[0].ID; a != b {
		t.Fatalf("shared parameter got tokens %d and %d", a, b)
	}

	rebuilt, err := Rebuild(node, sampleCatalog(t))
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	got := rebuilt.(*expr.NewArray).Exprs
	first, second := got[0].(*expr.Lambda), got[1].(*expr.Lambda)
	if first.Params[0] != second.Params[0] {
		t.Fatalf("sibling lambdas rebuilt with distinct parameters")
	}
	if second.Body.(*expr.Binary).Left != expr.Expr(first.Params[0]) {
		t.Fatalf("body reference does not resolve to the shared parameter")
	}
}

func TestUnsupportedNodeKind(t *testing.T) {
	c, _ := expr.MakeConstant(1)
	block, _ := expr.MakeBlock(c)
	lam, err := expr.MakeLambda(block)
	if err != nil {
		t.Fatalf("MakeLambda: %v", err)
	}
	for _, e := range []expr.Expr{lam, expr.MakeDefault(reflect.TypeOf(0))} {
		node, err := ToRepresentation(e)
		var unsupported *rerrors.UnsupportedNodeKindError
		if !errors.As(err, &unsupported) {
			t.Fatalf("ToRepresentation(%s) = %v, %v; want UnsupportedNodeKindError", e, node, err)
		}
		if node != nil {
			t.Fatalf("unexpected node %v", node)
		}
	}
	if _, err := ToRepresentation(nil); err == nil {
		t.Fatalf("nil expression must fail")
	}
}

func TestLookupFailures(t *testing.T) {
	ex := mustExample(t, "output")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}

	empty, err := descriptor.NewSnapshot()
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	_, err = FromRepresentation(node, empty)
	var lookup *rerrors.LookupError
	if !errors.As(err, &lookup) || lookup.Found != 0 {
		t.Fatalf("empty catalog: got %v, want LookupError{Found: 0}", err)
	}
	var recon *rerrors.ReconstructionError
	if !errors.As(err, &recon) || recon.Path != "Lambda" {
		t.Fatalf("expected ReconstructionError at Lambda, got %v", err)
	}

	doubled, err := sampleCatalog(t).With(sample.Module())
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	_, err = FromRepresentation(node, doubled)
	var ambiguous *rerrors.AmbiguousLookupError
	if !errors.As(err, &ambiguous) || ambiguous.Found != 2 || len(ambiguous.Candidates) != 2 {
		t.Fatalf("doubled catalog: got %v, want AmbiguousLookupError{Found: 2}", err)
	}

	// the caller may retry after fixing its catalog
	if _, err := FromRepresentation(node, sampleCatalog(t)); err != nil {
		t.Fatalf("retry with a valid catalog: %v", err)
	}
}

func TestLookupFailurePath(t *testing.T) {
	ex := mustExample(t, "output")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	broken := repr.Clone(node).(*repr.Lambda)
	broken.Body.(*repr.New).Constructor.Name = "Missing"

	_, err = Rebuild(broken, sampleCatalog(t))
	var recon *rerrors.ReconstructionError
	if !errors.As(err, &recon) {
		t.Fatalf("expected ReconstructionError, got %v", err)
	}
	if recon.Path != "Lambda.Body" {
		t.Fatalf("path = %q, want Lambda.Body", recon.Path)
	}
	var lookup *rerrors.LookupError
	if !errors.As(err, &lookup) || lookup.What != "member" {
		t.Fatalf("expected member LookupError, got %v", err)
	}
}

func TestArityMismatch(t *testing.T) {
	ex := mustExample(t, "join")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	cat := sampleCatalog(t)

	extraParam := repr.Clone(node).(*repr.Lambda)
	extraParam.Parameters = append(extraParam.Parameters, &repr.Parameter{
		Type: descriptor.TypeDescriptor{Name: "string"}, Name: "y", ID: 7,
	})
	_, err = Rebuild(extraParam, cat)
	var arity *rerrors.ArityMismatchError
	if !errors.As(err, &arity) || arity.Expected != 1 || arity.Actual != 2 {
		t.Fatalf("lambda arity: got %v", err)
	}

	extraArg := repr.Clone(node).(*repr.Lambda)
	call := extraArg.Body.(*repr.MethodCall)
	call.Arguments = append(call.Arguments, &repr.Constant{Type: descriptor.TypeDescriptor{Name: "string"}, Value: "z"})
	_, err = Rebuild(extraArg, cat)
	if !errors.As(err, &arity) || arity.Expected != 2 || arity.Actual != 3 {
		t.Fatalf("call arity: got %v", err)
	}
}

func TestDanglingParameter(t *testing.T) {
	ex := mustExample(t, "join")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	dangling := repr.Clone(node).(*repr.Lambda)
	dangling.Body.(*repr.MethodCall).Arguments[1] = &repr.Parameter{
		Type: descriptor.TypeDescriptor{Name: "string"}, Name: "ghost", ID: 99,
	}
	_, err = Rebuild(dangling, sampleCatalog(t))
	if !errors.Is(err, repr.ErrDanglingParameter) {
		t.Fatalf("expected ErrDanglingParameter, got %v", err)
	}
	var recon *rerrors.ReconstructionError
	if !errors.As(err, &recon) || recon.Path != "Lambda.Body.Arguments[1]" {
		t.Fatalf("unexpected error shape %v", err)
	}
}

func TestDeclaredTypeMismatch(t *testing.T) {
	ex := mustExample(t, "arithmetic")
	node, err := ToRepresentation(ex.Lambda)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	bad := repr.Clone(node).(*repr.Lambda)
	bad.Body.(*repr.Conditional).IfTrue.(*repr.Binary).Type = descriptor.TypeDescriptor{Name: "string"}
	_, err = Rebuild(bad, sampleCatalog(t))
	if !errors.Is(err, expr.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestConstantNarrowing(t *testing.T) {
	cat := sampleCatalog(t)
	typ := func(name string) descriptor.TypeDescriptor { return descriptor.TypeDescriptor{Name: name} }

	accepted := []struct {
		typ   string
		value any
		want  any
	}{
		{"int32", int64(7), int32(7)},
		{"int8", -128, int8(-128)},
		{"uint8", 255, uint8(255)},
		{"int", 2.0, 2},
		{"float32", 1.5, float32(1.5)},
		{"float64", int64(3), 3.0},
	}
	for _, tc := range accepted {
		e, err := Rebuild(&repr.Constant{Type: typ(tc.typ), Value: tc.value}, cat)
		if err != nil {
			t.Fatalf("%s %v: %v", tc.typ, tc.value, err)
		}
		if got := e.(*expr.Constant).Value; got != tc.want {
			t.Errorf("%s %v: got %#v, want %#v", tc.typ, tc.value, got, tc.want)
		}
	}

	rejected := []struct {
		typ   string
		value any
	}{
		{"int8", 300},
		{"int8", -129},
		{"uint8", -1},
		{"uint16", uint64(1 << 20)},
		{"int", 1.9},
		{"uint", -2.0},
		{"int64", uint64(1 << 63)},
		{"float32", 1e300},
	}
	for _, tc := range rejected {
		_, err := Rebuild(&repr.Constant{Type: typ(tc.typ), Value: tc.value}, cat)
		if !errors.Is(err, expr.ErrTypeMismatch) {
			t.Errorf("%s %v: expected ErrTypeMismatch, got %v", tc.typ, tc.value, err)
			continue
		}
		var recon *rerrors.ReconstructionError
		if !errors.As(err, &recon) || recon.Path != "Constant" {
			t.Errorf("%s %v: unexpected error shape %v", tc.typ, tc.value, err)
		}
	}
}

func deepSum(t *testing.T, n int) *expr.Lambda {
	t.Helper()
	x := expr.MakeParameter(reflect.TypeOf(0), "x")
	one, _ := expr.MakeConstant(1)
	var body expr.Expr = x
	for i := 0; i < n; i++ {
		b, err := expr.MakeBinary(op.Add, body, one, nil)
		if err != nil {
			t.Fatalf("MakeBinary: %v", err)
		}
		body = b
	}
	l, err := expr.MakeLambda(body, x)
	if err != nil {
		t.Fatalf("MakeLambda: %v", err)
	}
	return l
}

func TestRecursionLimit(t *testing.T) {
	l := deepSum(t, 20)
	var limit *rerrors.RecursionLimitError

	if _, err := ToRepresentation(l, WithMaxDepth(10)); !errors.As(err, &limit) || limit.Limit != 10 {
		t.Fatalf("forward: expected RecursionLimitError{10}, got %v", err)
	}

	node, err := ToRepresentation(l)
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}
	if _, err := Rebuild(node, sampleCatalog(t), WithMaxDepth(10)); !errors.As(err, &limit) {
		t.Fatalf("reverse: expected RecursionLimitError, got %v", err)
	}
	closure, err := FromRepresentation(node, sampleCatalog(t))
	if err != nil {
		t.Fatalf("default depth: %v", err)
	}
	if got, _ := closure.Call(1); got != 21 {
		t.Fatalf("deep sum = %v, want 21", got)
	}
}

func TestFromRepresentationRequiresLambda(t *testing.T) {
	c := &repr.Constant{Type: descriptor.TypeDescriptor{Name: "int"}, Value: 1}
	if _, err := FromRepresentation(c, sampleCatalog(t)); !errors.Is(err, ErrNotLambda) {
		t.Fatalf("expected ErrNotLambda, got %v", err)
	}
	if _, err := FromRepresentation(nil, sampleCatalog(t)); !errors.Is(err, ErrNotLambda) {
		t.Fatalf("expected ErrNotLambda for nil root, got %v", err)
	}

	// Rebuild accepts any root
	e, err := Rebuild(c, sampleCatalog(t))
	if err != nil || e.Kind() != expr.KindConstant {
		t.Fatalf("Rebuild(constant) = %v, %v", e, err)
	}
}

func TestOptions(t *testing.T) {
	ex := mustExample(t, "tags")
	node, err := ToRepresentation(ex.Lambda, WithMetrics(metrics.New()))
	if err != nil {
		t.Fatalf("ToRepresentation: %v", err)
	}

	calls := 0
	compiler := CompilerFunc(func(l *expr.Lambda) (*expr.Closure, error) {
		calls++
		return expr.Compile(l)
	})
	closure, err := FromRepresentation(node, sampleCatalog(t), WithCompiler(compiler), WithMetrics(metrics.New()))
	if err != nil {
		t.Fatalf("FromRepresentation: %v", err)
	}
	if calls != 1 {
		t.Fatalf("compiler called %d times", calls)
	}
	if got, err := closure.Call("a"); err != nil || got != 2 {
		t.Fatalf("call = %v, %v", got, err)
	}

	failing := CompilerFunc(func(*expr.Lambda) (*expr.Closure, error) { return nil, errors.New("no jit") })
	if _, err := FromRepresentation(node, sampleCatalog(t), WithCompiler(failing)); err == nil {
		t.Fatalf("compiler errors must propagate")
	}
}
