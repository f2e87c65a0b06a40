// Package descriptor provides structural, process-independent identifiers
// for Go types and callable members, and the catalog that maps them back to
// runtime handles.
package descriptor

import (
	"strings"
)

// TypeDescriptor identifies a type by package path, name and type
// arguments. Composite types use reserved names ("*", "[]", "[N]", "map",
// "chan", "func(N)") and carry their element types in Args.
type TypeDescriptor struct {
	Namespace string           `json:"namespace,omitempty"`
	Name      string           `json:"name"`
	Args      []TypeDescriptor `json:"args,omitempty"`
}

// IsZero reports whether d describes nothing.
func (d TypeDescriptor) IsZero() bool {
	return d.Namespace == "" && d.Name == "" && len(d.Args) == 0
}

// Equal compares d and o structurally.
func (d TypeDescriptor) Equal(o TypeDescriptor) bool {
	if d.Namespace != o.Namespace || d.Name != o.Name || len(d.Args) != len(o.Args) {
		return false
	}
	for i := range d.Args {
		if !d.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of d.
func (d TypeDescriptor) Clone() TypeDescriptor {
	out := TypeDescriptor{Namespace: d.Namespace, Name: d.Name}
	if d.Args != nil {
		out.Args = make([]TypeDescriptor, len(d.Args))
		for i, a := range d.Args {
			out.Args[i] = a.Clone()
		}
	}
	return out
}

// String renders d in Go syntax, qualified with the full package path.
func (d TypeDescriptor) String() string {
	var b strings.Builder
	d.write(&b)
	return b.String()
}

func (d TypeDescriptor) write(b *strings.Builder) {
	arg := func(i int) {
		if i < len(d.Args) {
			d.Args[i].write(b)
		} else {
			b.WriteString("?")
		}
	}
	switch {
	case d.Namespace != "":
	case d.Name == "*", d.Name == "[]", isArrayName(d.Name):
		b.WriteString(d.Name)
		arg(0)
		return
	case d.Name == "map":
		b.WriteString("map[")
		arg(0)
		b.WriteString("]")
		arg(1)
		return
	case d.Name == "chan", d.Name == "<-chan", d.Name == "chan<-":
		b.WriteString(d.Name + " ")
		arg(0)
		return
	case strings.HasPrefix(d.Name, "func("):
		in, variadic, ok := parseFuncName(d.Name)
		if ok {
			b.WriteString("func(")
			for i := 0; i < in; i++ {
				if i > 0 {
					b.WriteString(", ")
				}
				if variadic && i == in-1 {
					b.WriteString("...")
				}
				arg(i)
			}
			b.WriteString(")")
			outs := len(d.Args) - in
			if outs == 1 {
				b.WriteString(" ")
				arg(in)
			} else if outs > 1 {
				b.WriteString(" (")
				for i := in; i < len(d.Args); i++ {
					if i > in {
						b.WriteString(", ")
					}
					arg(i)
				}
				b.WriteString(")")
			}
			return
		}
	}
	if d.Namespace != "" {
		b.WriteString(d.Namespace)
		b.WriteString(".")
	}
	b.WriteString(d.Name)
	if len(d.Args) > 0 {
		b.WriteString("[")
		for i := range d.Args {
			if i > 0 {
				b.WriteString(",")
			}
			d.Args[i].write(b)
		}
		b.WriteString("]")
	}
}

// MemberDescriptor identifies a method, function or constructor by its
// declaring type, name and parameter signature.
type MemberDescriptor struct {
	Declaring TypeDescriptor   `json:"declaring"`
	Name      string           `json:"name"`
	Params    []TypeDescriptor `json:"params,omitempty"`
	TypeArgs  []TypeDescriptor `json:"typeArgs,omitempty"`
}

// Equal compares m and o structurally. Parameters are compared by position.
func (m MemberDescriptor) Equal(o MemberDescriptor) bool {
	return m.Name == o.Name &&
		m.Declaring.Equal(o.Declaring) &&
		equalList(m.Params, o.Params) &&
		equalList(m.TypeArgs, o.TypeArgs)
}

// Clone returns a deep copy of m.
func (m MemberDescriptor) Clone() MemberDescriptor {
	return MemberDescriptor{
		Declaring: m.Declaring.Clone(),
		Name:      m.Name,
		Params:    cloneList(m.Params),
		TypeArgs:  cloneList(m.TypeArgs),
	}
}

func (m MemberDescriptor) String() string {
	var b strings.Builder
	b.WriteString(m.Declaring.String())
	b.WriteString(".")
	b.WriteString(m.Name)
	if len(m.TypeArgs) > 0 {
		b.WriteString("[")
		for i, a := range m.TypeArgs {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(a.String())
		}
		b.WriteString("]")
	}
	b.WriteString("(")
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(")")
	return b.String()
}

func equalList(a, b []TypeDescriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneList(in []TypeDescriptor) []TypeDescriptor {
	if in == nil {
		return nil
	}
	out := make([]TypeDescriptor, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}
