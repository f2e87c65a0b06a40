package descriptor

import (
	"fmt"
	"reflect"
	"strings"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/expr"
)

// Catalog maps descriptors back to runtime handles. Implementations must
// report zero matches with *errors.LookupError and several matches with
// *errors.AmbiguousLookupError, never choosing one of them.
type Catalog interface {
	ResolveType(d TypeDescriptor) (reflect.Type, error)
	ResolveMember(d MemberDescriptor) (*expr.Method, error)
}

// predeclared holds the types that resolve without registration.
var predeclared = map[string]reflect.Type{
	"bool":       reflect.TypeOf(false),
	"string":     reflect.TypeOf(""),
	"int":        reflect.TypeOf(int(0)),
	"int8":       reflect.TypeOf(int8(0)),
	"int16":      reflect.TypeOf(int16(0)),
	"int32":      reflect.TypeOf(int32(0)),
	"int64":      reflect.TypeOf(int64(0)),
	"uint":       reflect.TypeOf(uint(0)),
	"uint8":      reflect.TypeOf(uint8(0)),
	"uint16":     reflect.TypeOf(uint16(0)),
	"uint32":     reflect.TypeOf(uint32(0)),
	"uint64":     reflect.TypeOf(uint64(0)),
	"uintptr":    reflect.TypeOf(uintptr(0)),
	"float32":    reflect.TypeOf(float32(0)),
	"float64":    reflect.TypeOf(float64(0)),
	"complex64":  reflect.TypeOf(complex64(0)),
	"complex128": reflect.TypeOf(complex128(0)),

	"error":        reflect.TypeOf((*error)(nil)).Elem(),
	"interface {}": reflect.TypeOf((*any)(nil)).Elem(),
}

// Predeclared returns the builtin type named name, if any.
func Predeclared(name string) (reflect.Type, bool) {
	t, ok := predeclared[name]
	return t, ok
}

type typeEntry struct {
	module string
	typ    reflect.Type
	desc   TypeDescriptor
}

type memberEntry struct {
	module string
	method *expr.Method
	desc   MemberDescriptor
}

// Module is a named group of registrations, the unit callers load into a
// catalog. Registration errors are sticky and reported by Err and by
// NewSnapshot.
type Module struct {
	name    string
	types   []typeEntry
	members []memberEntry
	err     error
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{name: name}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Err returns the first registration error.
func (m *Module) Err() error { return m.err }

func (m *Module) fail(err error) *Module {
	if m.err == nil {
		m.err = fmt.Errorf("module %s: %w", m.name, err)
	}
	return m
}

// AddType registers types. Types the module already holds are skipped.
func (m *Module) AddType(types ...reflect.Type) *Module {
	for _, t := range types {
		if t == nil {
			return m.fail(fmt.Errorf("nil type"))
		}
		if _, ok := predeclared[t.String()]; ok && t.PkgPath() == "" {
			continue
		}
		d := Describe(t)
		if m.holdsType(d) {
			continue
		}
		m.types = append(m.types, typeEntry{module: m.name, typ: t, desc: d})
	}
	return m
}

// AddMethods registers t and every exported method in its method set.
func (m *Module) AddMethods(t reflect.Type) *Module {
	if t == nil {
		return m.fail(fmt.Errorf("nil type"))
	}
	m.AddType(t)
	for _, mm := range expr.MethodsOf(t) {
		m.addMember(mm)
	}
	return m
}

// AddFunc registers fn as a static function of declaring.
func (m *Module) AddFunc(declaring reflect.Type, name string, fn any, typeArgs ...reflect.Type) *Module {
	mm, err := expr.FuncOf(declaring, name, fn, typeArgs...)
	if err != nil {
		return m.fail(err)
	}
	return m.addMember(mm)
}

// AddConstructor registers fn as a constructor of declaring.
func (m *Module) AddConstructor(declaring reflect.Type, name string, fn any) *Module {
	mm, err := expr.ConstructorOf(declaring, name, fn)
	if err != nil {
		return m.fail(err)
	}
	return m.addMember(mm)
}

func (m *Module) addMember(mm *expr.Method) *Module {
	d := DescribeMethod(mm)
	for _, e := range m.members {
		if e.method.Kind == mm.Kind && e.desc.Equal(d) {
			return m
		}
	}
	m.members = append(m.members, memberEntry{module: m.name, method: mm, desc: d})
	return m
}

func (m *Module) holdsType(d TypeDescriptor) bool {
	for _, e := range m.types {
		if e.desc.Equal(d) {
			return true
		}
	}
	return false
}

// Snapshot is an immutable Catalog built from modules. It is safe for
// concurrent use.
type Snapshot struct {
	modules []string
	types   []typeEntry
	members []memberEntry
}

var _ Catalog = (*Snapshot)(nil)

// NewSnapshot freezes modules into a catalog.
func NewSnapshot(modules ...*Module) (*Snapshot, error) {
	return (&Snapshot{}).With(modules...)
}

// With returns a new snapshot extended with modules. s is not modified.
func (s *Snapshot) With(modules ...*Module) (*Snapshot, error) {
	out := &Snapshot{
		modules: append([]string(nil), s.modules...),
		types:   append([]typeEntry(nil), s.types...),
		members: append([]memberEntry(nil), s.members...),
	}
	for _, m := range modules {
		if m == nil {
			continue
		}
		if m.err != nil {
			return nil, m.err
		}
		out.modules = append(out.modules, m.name)
		out.types = append(out.types, m.types...)
		out.members = append(out.members, m.members...)
	}
	return out, nil
}

// Modules lists the module names in load order.
func (s *Snapshot) Modules() []string {
	return append([]string(nil), s.modules...)
}

// ResolveType implements Catalog. Predeclared types and composites of
// resolvable types need no registration.
func (s *Snapshot) ResolveType(d TypeDescriptor) (reflect.Type, error) {
	if d.Namespace == "" {
		if t, ok := predeclared[d.Name]; ok && len(d.Args) == 0 {
			return t, nil
		}
		if t, ok, err := s.resolveComposite(d); ok {
			return t, err
		}
	}
	var found []typeEntry
	for _, e := range s.types {
		if e.desc.Equal(d) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, &rerrors.LookupError{What: "type", Descriptor: d.String(), Found: 0}
	case 1:
		return found[0].typ, nil
	}
	candidates := make([]string, len(found))
	for i, e := range found {
		candidates[i] = e.module + ":" + e.desc.String()
	}
	return nil, &rerrors.AmbiguousLookupError{What: "type", Descriptor: d.String(), Found: len(found), Candidates: candidates}
}

func (s *Snapshot) resolveArgs(d TypeDescriptor, want int) ([]reflect.Type, error) {
	if want >= 0 && len(d.Args) != want {
		return nil, fmt.Errorf("descriptor %s: expected %d type argument(s), got %d", d, want, len(d.Args))
	}
	out := make([]reflect.Type, len(d.Args))
	for i, a := range d.Args {
		t, err := s.ResolveType(a)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (s *Snapshot) resolveComposite(d TypeDescriptor) (t reflect.Type, ok bool, err error) {
	defer func() {
		// reflect constructors panic on invalid combinations such as
		// non-comparable map keys
		if r := recover(); r != nil {
			t, ok, err = nil, true, fmt.Errorf("descriptor %s: %v", d, r)
		}
	}()
	switch {
	case d.Name == "*":
		args, err := s.resolveArgs(d, 1)
		if err != nil {
			return nil, true, err
		}
		return reflect.PointerTo(args[0]), true, nil
	case d.Name == "[]":
		args, err := s.resolveArgs(d, 1)
		if err != nil {
			return nil, true, err
		}
		return reflect.SliceOf(args[0]), true, nil
	case d.Name == "map":
		args, err := s.resolveArgs(d, 2)
		if err != nil {
			return nil, true, err
		}
		return reflect.MapOf(args[0], args[1]), true, nil
	case d.Name == "chan", d.Name == "<-chan", d.Name == "chan<-":
		args, err := s.resolveArgs(d, 1)
		if err != nil {
			return nil, true, err
		}
		dir := reflect.BothDir
		if d.Name == "<-chan" {
			dir = reflect.RecvDir
		} else if d.Name == "chan<-" {
			dir = reflect.SendDir
		}
		return reflect.ChanOf(dir, args[0]), true, nil
	case strings.HasPrefix(d.Name, "func("):
		in, variadic, valid := parseFuncName(d.Name)
		if !valid || in > len(d.Args) {
			return nil, true, fmt.Errorf("malformed func descriptor %s", d)
		}
		args, err := s.resolveArgs(d, -1)
		if err != nil {
			return nil, true, err
		}
		return reflect.FuncOf(args[:in], args[in:], variadic), true, nil
	}
	if n, isArray := arrayLen(d.Name); isArray {
		args, err := s.resolveArgs(d, 1)
		if err != nil {
			return nil, true, err
		}
		return reflect.ArrayOf(n, args[0]), true, nil
	}
	return nil, false, nil
}

// ResolveMember implements Catalog. Matching is by exact signature.
func (s *Snapshot) ResolveMember(d MemberDescriptor) (*expr.Method, error) {
	var found []memberEntry
	for _, e := range s.members {
		if e.desc.Equal(d) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil, &rerrors.LookupError{What: "member", Descriptor: d.String(), Found: 0}
	case 1:
		return found[0].method, nil
	}
	candidates := make([]string, len(found))
	for i, e := range found {
		candidates[i] = e.module + ":" + e.method.Kind.String() + " " + e.desc.String()
	}
	return nil, &rerrors.AmbiguousLookupError{What: "member", Descriptor: d.String(), Found: len(found), Candidates: candidates}
}
