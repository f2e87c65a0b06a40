// Package op defines the operator tags shared by executable expression trees
// and their serializable representation.
package op

import "fmt"

// Unary identifies a unary operator.
type Unary int

const (
	InvalidUnary Unary = iota
	Negate             // -x
	Plus               // +x
	Not                // !x
	BitNot             // ^x
	Convert            // T(x)
	Len                // len(x)
)

var unaryNames = map[Unary]string{
	Negate:  "Negate",
	Plus:    "Plus",
	Not:     "Not",
	BitNot:  "BitNot",
	Convert: "Convert",
	Len:     "Len",
}

var unarySymbols = map[Unary]string{
	Negate: "-",
	Plus:   "+",
	Not:    "!",
	BitNot: "^",
}

func (u Unary) String() string {
	if s, ok := unaryNames[u]; ok {
		return s
	}
	return fmt.Sprintf("Unary(%d)", int(u))
}

// Symbol returns the Go spelling of u, or an empty string when u is not
// written as a prefix operator.
func (u Unary) Symbol() string {
	return unarySymbols[u]
}

// Valid reports whether u names a known operator.
func (u Unary) Valid() bool {
	_, ok := unaryNames[u]
	return ok
}

// ParseUnary looks up a unary operator by its String form.
func ParseUnary(name string) (Unary, error) {
	for u, s := range unaryNames {
		if s == name {
			return u, nil
		}
	}
	return InvalidUnary, fmt.Errorf("unknown unary operator %q", name)
}

// Binary identifies a binary operator.
type Binary int

const (
	InvalidBinary Binary = iota
	Add
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	AndNot
	Shl
	Shr
	AndAlso
	OrElse
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Index
)

var binaryNames = map[Binary]string{
	Add:     "Add",
	Sub:     "Sub",
	Mul:     "Mul",
	Div:     "Div",
	Rem:     "Rem",
	And:     "And",
	Or:      "Or",
	Xor:     "Xor",
	AndNot:  "AndNot",
	Shl:     "Shl",
	Shr:     "Shr",
	AndAlso: "AndAlso",
	OrElse:  "OrElse",
	Eq:      "Eq",
	Ne:      "Ne",
	Lt:      "Lt",
	Le:      "Le",
	Gt:      "Gt",
	Ge:      "Ge",
	Index:   "Index",
}

var binarySymbols = map[Binary]string{
	Add:     "+",
	Sub:     "-",
	Mul:     "*",
	Div:     "/",
	Rem:     "%",
	And:     "&",
	Or:      "|",
	Xor:     "^",
	AndNot:  "&^",
	Shl:     "<<",
	Shr:     ">>",
	AndAlso: "&&",
	OrElse:  "||",
	Eq:      "==",
	Ne:      "!=",
	Lt:      "<",
	Le:      "<=",
	Gt:      ">",
	Ge:      ">=",
}

func (b Binary) String() string {
	if s, ok := binaryNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Binary(%d)", int(b))
}

// Symbol returns the infix spelling of b. Index has no infix symbol.
func (b Binary) Symbol() string {
	return binarySymbols[b]
}

// Valid reports whether b names a known operator.
func (b Binary) Valid() bool {
	_, ok := binaryNames[b]
	return ok
}

// IsComparison reports whether b yields a boolean from two comparable operands.
func (b Binary) IsComparison() bool {
	switch b {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	default:
		return false
	}
}

// IsLogical reports whether b short-circuits.
func (b Binary) IsLogical() bool {
	return b == AndAlso || b == OrElse
}

// ParseBinary looks up a binary operator by its String form.
func ParseBinary(name string) (Binary, error) {
	for b, s := range binaryNames {
		if s == name {
			return b, nil
		}
	}
	return InvalidBinary, fmt.Errorf("unknown binary operator %q", name)
}
