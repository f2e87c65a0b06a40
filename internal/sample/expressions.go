package sample

import (
	"fmt"
	"reflect"

	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/op"
)

// Example is a canonical lambda with one known invocation.
type Example struct {
	Name   string
	Lambda *expr.Lambda
	Args   []any
	Want   any
}

type buildError struct{ err error }

func must[T any](v T, err error) T {
	if err != nil {
		panic(buildError{err})
	}
	return v
}

var (
	intType    = reflect.TypeOf(0)
	stringType = reflect.TypeOf("")
	floatType  = reflect.TypeOf(0.0)
)

// Examples builds the canonical expressions. Every call returns fresh
// trees with fresh parameters.
func Examples() (out []Example, err error) {
	defer func() {
		if r := recover(); r != nil {
			be, ok := r.(buildError)
			if !ok {
				panic(r)
			}
			out, err = nil, fmt.Errorf("build sample expressions: %w", be.err)
		}
	}()
	return []Example{
		outputExample(),
		joinExample(),
		arithmeticExample(),
		pointExample(),
		tagsExample(),
		moneyExample(),
		shapeExample(),
		sliceExample(),
		invokeExample(),
		pairExample(),
		convertExample(),
	}, nil
}

// ExampleNamed returns the example called name.
func ExampleNamed(name string) (Example, error) {
	all, err := Examples()
	if err != nil {
		return Example{}, err
	}
	for _, e := range all {
		if e.Name == name {
			return e, nil
		}
	}
	return Example{}, fmt.Errorf("no sample expression named %q", name)
}

// x => NewOutput(x, "open")
func outputExample() Example {
	x := expr.MakeParameter(inputType, "x")
	ctor := must(expr.ConstructorOf(outputType, "NewOutput", NewOutput))
	body := must(expr.MakeNew(outputType, ctor, x, must(expr.MakeConstant("open"))))
	return Example{
		Name:   "output",
		Lambda: must(expr.MakeLambda(body, x)),
		Args:   []any{Input("hello")},
		Want:   Output{Input: "hello", Extra: "open"},
	}
}

// x => Join(x, x)
func joinExample() Example {
	x := expr.MakeParameter(stringType, "x")
	join := must(expr.FuncOf(inputType, "Join", Join))
	return Example{
		Name:   "join",
		Lambda: must(expr.MakeLambda(must(expr.MakeCall(nil, join, x, x)), x)),
		Args:   []any{"ab"},
		Want:   "ab-ab",
	}
}

// (x, y) => x > y ? (x - y) * 2 : (y - x) % 3
func arithmeticExample() Example {
	x := expr.MakeParameter(intType, "x")
	y := expr.MakeParameter(intType, "y")
	gt := must(expr.MakeBinary(op.Gt, x, y, nil))
	ifTrue := must(expr.MakeBinary(op.Mul, must(expr.MakeBinary(op.Sub, x, y, nil)), must(expr.MakeConstant(2)), nil))
	ifFalse := must(expr.MakeBinary(op.Rem, must(expr.MakeBinary(op.Sub, y, x, nil)), must(expr.MakeConstant(3)), nil))
	return Example{
		Name:   "arithmetic",
		Lambda: must(expr.MakeLambda(must(expr.MakeConditional(gt, ifTrue, ifFalse)), x, y)),
		Args:   []any{7, 3},
		Want:   8,
	}
}

// x => Point{X: x, Y: x + 1}.Dist2()
func pointExample() Example {
	x := expr.MakeParameter(intType, "x")
	next := must(expr.MakeBinary(op.Add, x, must(expr.MakeConstant(1)), nil))
	init := must(expr.MakeMemberInit(must(expr.MakeNew(pointType, nil)),
		expr.Binding{Field: "X", Value: x},
		expr.Binding{Field: "Y", Value: next},
	))
	dist := must(expr.MethodOf(pointType, "Dist2"))
	return Example{
		Name:   "point",
		Lambda: must(expr.MakeLambda(must(expr.MakeCall(init, dist)), x)),
		Args:   []any{1},
		Want:   5,
	}
}

// s => (&Tags{} {Add(s), Add("fixed")}).Len()
func tagsExample() Example {
	s := expr.MakeParameter(stringType, "s")
	add := must(expr.MethodOf(tagsType, "Add"))
	list := must(expr.MakeListInit(must(expr.MakeNew(tagsType, nil)),
		expr.ElementInit{Add: add, Args: []expr.Expr{s}},
		expr.ElementInit{Add: add, Args: []expr.Expr{must(expr.MakeConstant("fixed"))}},
	))
	length := must(expr.MethodOf(tagsType, "Len"))
	return Example{
		Name:   "tags",
		Lambda: must(expr.MakeLambda(must(expr.MakeCall(list, length)), s)),
		Args:   []any{"a"},
		Want:   2,
	}
}

// (a, b) => Add(a, Neg(b)).Cents
func moneyExample() Example {
	a := expr.MakeParameter(moneyType, "a")
	b := expr.MakeParameter(moneyType, "b")
	add := must(expr.FuncOf(moneyType, "Add", AddMoney))
	neg := must(expr.FuncOf(moneyType, "Neg", NegMoney))
	sum := must(expr.MakeBinary(op.Add, a, must(expr.MakeUnary(op.Negate, b, nil, neg)), add))
	return Example{
		Name:   "money",
		Lambda: must(expr.MakeLambda(must(expr.MakeMemberAccess(sum, "Cents")), a, b)),
		Args:   []any{Money{Cents: 500}, Money{Cents: 200}},
		Want:   int64(300),
	}
}

// s => s is Square ? s.Area() : 0.0
func shapeExample() Example {
	s := expr.MakeParameter(shapeType, "s")
	area := must(expr.MethodOf(shapeType, "Area"))
	body := must(expr.MakeConditional(
		must(expr.MakeTypeIs(s, squareType)),
		must(expr.MakeCall(s, area)),
		must(expr.MakeConstant(0.0)),
	))
	return Example{
		Name:   "shape",
		Lambda: must(expr.MakeLambda(body, s)),
		Args:   []any{Square{Side: 2}},
		Want:   4.0,
	}
}

// n => len(make([]string, n)) + len([]int{n, n})
func sliceExample() Example {
	n := expr.MakeParameter(intType, "n")
	made := must(expr.MakeUnary(op.Len, must(expr.MakeNewArrayBounds(stringType, n)), nil, nil))
	lit := must(expr.MakeUnary(op.Len, must(expr.MakeNewArray(intType, n, n)), nil, nil))
	return Example{
		Name:   "slice",
		Lambda: must(expr.MakeLambda(must(expr.MakeBinary(op.Add, made, lit, nil)), n)),
		Args:   []any{3},
		Want:   5,
	}
}

// x => (y => x * y)(x + 1)
func invokeExample() Example {
	x := expr.MakeParameter(intType, "x")
	y := expr.MakeParameter(intType, "y")
	inner := must(expr.MakeLambda(must(expr.MakeBinary(op.Mul, x, y, nil)), y))
	arg := must(expr.MakeBinary(op.Add, x, must(expr.MakeConstant(1)), nil))
	return Example{
		Name:   "invoke",
		Lambda: must(expr.MakeLambda(must(expr.MakeInvoke(inner, arg)), x)),
		Args:   []any{3},
		Want:   12,
	}
}

// x => Pair[int](x, x * 2)[1]
func pairExample() Example {
	x := expr.MakeParameter(intType, "x")
	pair := must(expr.FuncOf(inputType, "Pair", Pair[int], intType))
	double := must(expr.MakeBinary(op.Mul, x, must(expr.MakeConstant(2)), nil))
	call := must(expr.MakeCall(nil, pair, x, double))
	return Example{
		Name:   "pair",
		Lambda: must(expr.MakeLambda(must(expr.MakeBinary(op.Index, call, must(expr.MakeConstant(1)), nil)), x)),
		Args:   []any{4},
		Want:   8,
	}
}

// x => float64(x) / 2.0
func convertExample() Example {
	x := expr.MakeParameter(intType, "x")
	f := must(expr.MakeUnary(op.Convert, x, floatType, nil))
	return Example{
		Name:   "convert",
		Lambda: must(expr.MakeLambda(must(expr.MakeBinary(op.Div, f, must(expr.MakeConstant(2.0)), nil)), x)),
		Args:   []any{3},
		Want:   1.5,
	}
}
