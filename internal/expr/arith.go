package expr

import (
	"fmt"
	"reflect"

	"github.com/orizon-lang/exprrepr/internal/op"
)

func isSigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isInteger(t reflect.Type) bool { return isSigned(t) || isUnsigned(t) }

func isFloat(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func isComplex(t reflect.Type) bool {
	return t.Kind() == reflect.Complex64 || t.Kind() == reflect.Complex128
}

func isNumeric(t reflect.Type) bool { return isInteger(t) || isFloat(t) || isComplex(t) }

func isOrdered(t reflect.Type) bool {
	return isInteger(t) || isFloat(t) || t.Kind() == reflect.String
}

// coerce returns v as a value of type t. Invalid values become the zero
// value; concrete values stored into interfaces are boxed.
func coerce(v reflect.Value, t reflect.Type) reflect.Value {
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type() == t {
		return v
	}
	if v.Type().AssignableTo(t) {
		n := reflect.New(t).Elem()
		n.Set(v)
		return n
	}
	return v.Convert(t)
}

func applyUnary(o op.Unary, v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch o {
	case op.Plus:
		return v, nil
	case op.Negate:
		out := reflect.New(t).Elem()
		switch {
		case isSigned(t):
			out.SetInt(-v.Int())
		case isUnsigned(t):
			out.SetUint(-v.Uint())
		case isFloat(t):
			out.SetFloat(-v.Float())
		case isComplex(t):
			out.SetComplex(-v.Complex())
		}
		return out, nil
	case op.BitNot:
		out := reflect.New(t).Elem()
		if isSigned(t) {
			out.SetInt(^v.Int())
		} else {
			out.SetUint(^v.Uint())
		}
		return out, nil
	case op.Not:
		return reflect.ValueOf(!v.Bool()).Convert(t), nil
	case op.Convert:
		return coerce(v, t), nil
	case op.Len:
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return reflect.ValueOf(0), nil
		}
		return reflect.ValueOf(v.Len()), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: unknown unary operator %s", ErrInvalidExpression, o)
}

func applyBinary(o op.Binary, l, r reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case o == op.Index:
		return index(l, r)
	case o == op.Eq:
		return reflect.ValueOf(equalValues(l, r)), nil
	case o == op.Ne:
		return reflect.ValueOf(!equalValues(l, r)), nil
	case o.IsComparison():
		return reflect.ValueOf(compare(o, l, r)), nil
	case o == op.Shl || o == op.Shr:
		return shift(o, l, r, t)
	}
	out := reflect.New(t).Elem()
	switch {
	case isSigned(t):
		a, b := l.Int(), r.Int()
		if (o == op.Div || o == op.Rem) && b == 0 {
			return reflect.Value{}, ErrDivideByZero
		}
		var res int64
		switch o {
		case op.Add:
			res = a + b
		case op.Sub:
			res = a - b
		case op.Mul:
			res = a * b
		case op.Div:
			res = a / b
		case op.Rem:
			res = a % b
		case op.And:
			res = a & b
		case op.Or:
			res = a | b
		case op.Xor:
			res = a ^ b
		case op.AndNot:
			res = a &^ b
		}
		out.SetInt(res)
	case isUnsigned(t):
		a, b := l.Uint(), r.Uint()
		if (o == op.Div || o == op.Rem) && b == 0 {
			return reflect.Value{}, ErrDivideByZero
		}
		var res uint64
		switch o {
		case op.Add:
			res = a + b
		case op.Sub:
			res = a - b
		case op.Mul:
			res = a * b
		case op.Div:
			res = a / b
		case op.Rem:
			res = a % b
		case op.And:
			res = a & b
		case op.Or:
			res = a | b
		case op.Xor:
			res = a ^ b
		case op.AndNot:
			res = a &^ b
		}
		out.SetUint(res)
	case isFloat(t):
		a, b := l.Float(), r.Float()
		switch o {
		case op.Add:
			out.SetFloat(a + b)
		case op.Sub:
			out.SetFloat(a - b)
		case op.Mul:
			out.SetFloat(a * b)
		case op.Div:
			out.SetFloat(a / b)
		}
	case isComplex(t):
		a, b := l.Complex(), r.Complex()
		switch o {
		case op.Add:
			out.SetComplex(a + b)
		case op.Sub:
			out.SetComplex(a - b)
		case op.Mul:
			out.SetComplex(a * b)
		case op.Div:
			out.SetComplex(a / b)
		}
	case t.Kind() == reflect.String:
		out.SetString(l.String() + r.String())
	default:
		return reflect.Value{}, fmt.Errorf("%w: operator %s on %s", ErrTypeMismatch, o, t)
	}
	return out, nil
}

func equalValues(l, r reflect.Value) bool {
	if l.Type() != r.Type() {
		// one side is an interface the other is assignable to
		if l.Kind() == reflect.Interface {
			if l.IsNil() {
				return false
			}
			l = l.Elem()
		}
		if r.Kind() == reflect.Interface {
			if r.IsNil() {
				return false
			}
			r = r.Elem()
		}
		if l.Type() != r.Type() {
			return false
		}
	}
	return l.Equal(r)
}

func compare(o op.Binary, l, r reflect.Value) bool {
	var c int
	t := l.Type()
	switch {
	case isSigned(t):
		c = cmp3(l.Int(), r.Int())
	case isUnsigned(t):
		c = cmp3(l.Uint(), r.Uint())
	case isFloat(t):
		c = cmp3(l.Float(), r.Float())
	default:
		c = cmp3(l.String(), r.String())
	}
	switch o {
	case op.Lt:
		return c < 0
	case op.Le:
		return c <= 0
	case op.Gt:
		return c > 0
	default:
		return c >= 0
	}
}

func cmp3[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func shift(o op.Binary, l, r reflect.Value, t reflect.Type) (reflect.Value, error) {
	var n uint64
	if isSigned(r.Type()) {
		if r.Int() < 0 {
			return reflect.Value{}, fmt.Errorf("%w: negative shift amount %d", ErrInvalidExpression, r.Int())
		}
		n = uint64(r.Int())
	} else {
		n = r.Uint()
	}
	out := reflect.New(t).Elem()
	if isSigned(t) {
		if o == op.Shl {
			out.SetInt(l.Int() << n)
		} else {
			out.SetInt(l.Int() >> n)
		}
	} else {
		if o == op.Shl {
			out.SetUint(l.Uint() << n)
		} else {
			out.SetUint(l.Uint() >> n)
		}
	}
	return out, nil
}

func index(l, r reflect.Value) (reflect.Value, error) {
	if l.Kind() == reflect.Map {
		v := l.MapIndex(coerce(r, l.Type().Key()))
		if !v.IsValid() {
			return reflect.Zero(l.Type().Elem()), nil
		}
		return v, nil
	}
	var i int
	if isSigned(r.Type()) {
		i = int(r.Int())
	} else {
		i = int(r.Uint())
	}
	if i < 0 || i >= l.Len() {
		return reflect.Value{}, fmt.Errorf("%w: index %d with length %d", ErrIndexOutOfRange, i, l.Len())
	}
	return l.Index(i), nil
}
