package descriptor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/orizon-lang/exprrepr/internal/expr"
)

// Describe returns the descriptor of t. Named types keep their package path
// and have instantiated type arguments parsed out of the reflect name.
func Describe(t reflect.Type) TypeDescriptor {
	if t == nil {
		return TypeDescriptor{}
	}
	if name := t.Name(); name != "" {
		base, args := splitGeneric(name)
		return TypeDescriptor{Namespace: t.PkgPath(), Name: base, Args: args}
	}
	switch t.Kind() {
	case reflect.Pointer:
		return TypeDescriptor{Name: "*", Args: []TypeDescriptor{Describe(t.Elem())}}
	case reflect.Slice:
		return TypeDescriptor{Name: "[]", Args: []TypeDescriptor{Describe(t.Elem())}}
	case reflect.Array:
		return TypeDescriptor{Name: "[" + strconv.Itoa(t.Len()) + "]", Args: []TypeDescriptor{Describe(t.Elem())}}
	case reflect.Map:
		return TypeDescriptor{Name: "map", Args: []TypeDescriptor{Describe(t.Key()), Describe(t.Elem())}}
	case reflect.Chan:
		name := "chan"
		switch t.ChanDir() {
		case reflect.RecvDir:
			name = "<-chan"
		case reflect.SendDir:
			name = "chan<-"
		}
		return TypeDescriptor{Name: name, Args: []TypeDescriptor{Describe(t.Elem())}}
	case reflect.Func:
		args := make([]TypeDescriptor, 0, t.NumIn()+t.NumOut())
		for i := 0; i < t.NumIn(); i++ {
			args = append(args, Describe(t.In(i)))
		}
		for i := 0; i < t.NumOut(); i++ {
			args = append(args, Describe(t.Out(i)))
		}
		return TypeDescriptor{Name: funcName(t.NumIn(), t.IsVariadic()), Args: args}
	}
	// empty interface, anonymous structs and interfaces
	return TypeDescriptor{Name: t.String()}
}

// DescribeMethod returns the descriptor of m.
func DescribeMethod(m *expr.Method) MemberDescriptor {
	params := m.Params()
	out := MemberDescriptor{
		Declaring: Describe(m.Declaring),
		Name:      m.Name,
	}
	if len(params) > 0 {
		out.Params = make([]TypeDescriptor, len(params))
		for i, p := range params {
			out.Params[i] = Describe(p)
		}
	}
	if len(m.TypeArgs) > 0 {
		out.TypeArgs = make([]TypeDescriptor, len(m.TypeArgs))
		for i, a := range m.TypeArgs {
			out.TypeArgs[i] = Describe(a)
		}
	}
	return out
}

func funcName(in int, variadic bool) string {
	if variadic {
		return fmt.Sprintf("func(%d...)", in)
	}
	return fmt.Sprintf("func(%d)", in)
}

func parseFuncName(name string) (in int, variadic bool, ok bool) {
	if !strings.HasPrefix(name, "func(") || !strings.HasSuffix(name, ")") {
		return 0, false, false
	}
	body := name[len("func(") : len(name)-1]
	if strings.HasSuffix(body, "...") {
		variadic = true
		body = strings.TrimSuffix(body, "...")
	}
	n, err := strconv.Atoi(body)
	if err != nil || n < 0 {
		return 0, false, false
	}
	return n, variadic, true
}

func isArrayName(name string) bool {
	_, ok := arrayLen(name)
	return ok
}

func arrayLen(name string) (int, bool) {
	if len(name) < 3 || name[0] != '[' || name[len(name)-1] != ']' {
		return 0, false
	}
	n, err := strconv.Atoi(name[1 : len(name)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// splitGeneric splits "Box[int,example.com/p.T]" into its base name and
// parsed type arguments.
func splitGeneric(name string) (string, []TypeDescriptor) {
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}
	parts := splitTopLevel(name[open+1 : len(name)-1])
	args := make([]TypeDescriptor, len(parts))
	for i, p := range parts {
		args[i] = parseTypeString(p)
	}
	return name[:open], args
}

// splitTopLevel splits s on commas that are not nested in brackets or
// parentheses.
func splitTopLevel(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// parseTypeString parses the type spellings reflect uses inside generic
// instantiation names. Forms it does not understand are kept verbatim in
// Name, which still compares consistently since Describe is deterministic.
func parseTypeString(s string) TypeDescriptor {
	switch {
	case strings.HasPrefix(s, "*"):
		return TypeDescriptor{Name: "*", Args: []TypeDescriptor{parseTypeString(s[1:])}}
	case strings.HasPrefix(s, "[]"):
		return TypeDescriptor{Name: "[]", Args: []TypeDescriptor{parseTypeString(s[2:])}}
	case strings.HasPrefix(s, "map["):
		depth := 0
		for i := 3; i < len(s); i++ {
			switch s[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return TypeDescriptor{Name: "map", Args: []TypeDescriptor{
						parseTypeString(s[4:i]), parseTypeString(s[i+1:]),
					}}
				}
			}
		}
	case strings.HasPrefix(s, "["):
		if end := strings.IndexByte(s, ']'); end > 0 {
			if _, ok := arrayLen(s[:end+1]); ok {
				return TypeDescriptor{Name: s[:end+1], Args: []TypeDescriptor{parseTypeString(s[end+1:])}}
			}
		}
	case s == "interface {}", strings.HasPrefix(s, "func("), strings.HasPrefix(s, "chan"),
		strings.HasPrefix(s, "<-chan"), strings.HasPrefix(s, "struct"):
		return TypeDescriptor{Name: s}
	}
	// qualified name: the package path ends at the last dot before any
	// type argument list
	head := s
	if open := strings.IndexByte(s, '['); open > 0 {
		head = s[:open]
	}
	ns := ""
	if dot := strings.LastIndexByte(head, '.'); dot > 0 && dot > strings.LastIndexByte(head, '/') {
		ns = s[:dot]
		s = s[dot+1:]
	}
	base, args := splitGeneric(s)
	return TypeDescriptor{Namespace: ns, Name: base, Args: args}
}
