// Package sample provides a small domain model, its catalog module and a set
// of canonical expressions over it. The CLI uses it for demos and the remote
// server preloads it.
package sample

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
)

// Input is a raw message.
type Input string

// Output pairs an input with extra text.
type Output struct {
	Input Input
	Extra string
}

// NewOutput is the Output constructor.
func NewOutput(in Input, extra string) Output {
	return Output{Input: in, Extra: extra}
}

// Describe renders o for humans.
func (o Output) Describe() string { return string(o.Input) + "/" + o.Extra }

// Join concatenates a and b with a separator.
func Join(a, b string) string { return a + "-" + b }

// Repeat returns n copies of s. Negative counts fail.
func Repeat(s string, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("repeat %q: negative count %d", s, n)
	}
	return strings.Repeat(s, n), nil
}

// Pair builds a two element slice.
func Pair[T any](a, b T) []T { return []T{a, b} }

// Tags is a collection filled through Add.
type Tags struct {
	items []string
}

// Add appends tag.
func (t *Tags) Add(tag string) { t.items = append(t.items, tag) }

// Len returns the number of tags.
func (t *Tags) Len() int { return len(t.items) }

// Items returns a copy of the tags.
func (t *Tags) Items() []string { return append([]string(nil), t.items...) }

// Point is a plain struct for member init and field access.
type Point struct {
	X, Y int
}

// Dist2 is the squared distance from the origin.
func (p Point) Dist2() int { return p.X*p.X + p.Y*p.Y }

// Money is an amount in cents with operator functions.
type Money struct {
	Cents int64
}

// AddMoney is the + operator on Money.
func AddMoney(a, b Money) Money { return Money{Cents: a.Cents + b.Cents} }

// NegMoney is the unary - operator on Money.
func NegMoney(a Money) Money { return Money{Cents: -a.Cents} }

// Shape has an area.
type Shape interface {
	Area() float64
}

// Square is a Shape.
type Square struct {
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

// Circle is a Shape.
type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

// NewSquare validates the side.
func NewSquare(side float64) (Square, error) {
	if side < 0 {
		return Square{}, errors.New("negative side")
	}
	return Square{Side: side}, nil
}

// ModuleName is the name the sample module registers under.
const ModuleName = "sample"

var (
	inputType  = reflect.TypeOf(Input(""))
	outputType = reflect.TypeOf(Output{})
	tagsType   = reflect.TypeOf(&Tags{})
	pointType  = reflect.TypeOf(Point{})
	moneyType  = reflect.TypeOf(Money{})
	shapeType  = reflect.TypeOf((*Shape)(nil)).Elem()
	squareType = reflect.TypeOf(Square{})
	circleType = reflect.TypeOf(Circle{})
)

// Module registers the sample types, their methods and functions.
func Module() *descriptor.Module {
	return descriptor.NewModule(ModuleName).
		AddType(inputType, moneyType, reflect.TypeOf(Tags{})).
		AddMethods(outputType).
		AddMethods(tagsType).
		AddMethods(pointType).
		AddMethods(shapeType).
		AddMethods(squareType).
		AddMethods(circleType).
		AddConstructor(outputType, "NewOutput", NewOutput).
		AddConstructor(squareType, "NewSquare", NewSquare).
		AddFunc(inputType, "Join", Join).
		AddFunc(inputType, "Repeat", Repeat).
		AddFunc(inputType, "Pair", Pair[int], reflect.TypeOf(0)).
		AddFunc(moneyType, "Add", AddMoney).
		AddFunc(moneyType, "Neg", NegMoney)
}

// Catalog returns a snapshot holding the sample module.
func Catalog() (*descriptor.Snapshot, error) {
	return descriptor.NewSnapshot(Module())
}

// ValueTypes lists the sample types that can appear as constant payloads or
// call arguments on the wire.
func ValueTypes() []reflect.Type {
	return []reflect.Type{inputType, outputType, pointType, moneyType, squareType, circleType}
}
