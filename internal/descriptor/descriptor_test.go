package descriptor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
)

type widget struct {
	Name string
}

func (w widget) Label(prefix string) string { return prefix + w.Name }

func newWidget(name string) widget { return widget{Name: name} }

type box[T any] struct {
	Value T
}

const pkg = "github.com/orizon-lang/exprrepr/internal/descriptor"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want string
	}{
		{"predeclared", reflect.TypeOf(0), "int"},
		{"named", reflect.TypeOf(widget{}), pkg + ".widget"},
		{"pointer", reflect.TypeOf(&widget{}), "*" + pkg + ".widget"},
		{"slice", reflect.TypeOf([]string{}), "[]string"},
		{"array", reflect.TypeOf([3]int{}), "[3]int"},
		{"map", reflect.TypeOf(map[string]int{}), "map[string]int"},
		{"func", reflect.TypeOf(func(int, string) bool { return false }), "func(int, string) bool"},
		{"variadic", reflect.TypeOf(func(...int) {}), "func(...[]int)"},
		{"any", reflect.TypeOf((*any)(nil)).Elem(), "interface {}"},
		{"error", reflect.TypeOf((*error)(nil)).Elem(), "error"},
		{"generic", reflect.TypeOf(box[int]{}), pkg + ".box[int]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.typ).String())
		})
	}
}

func TestDescribeGenericArgs(t *testing.T) {
	d := Describe(reflect.TypeOf(box[widget]{}))
	assert.Equal(t, "box", d.Name)
	assert.Equal(t, pkg, d.Namespace)
	require.Len(t, d.Args, 1)
	assert.Equal(t, TypeDescriptor{Namespace: pkg, Name: "widget"}, d.Args[0])

	d = Describe(reflect.TypeOf(box[map[string][]int]{}))
	require.Len(t, d.Args, 1)
	assert.Equal(t, "map[string][]int", d.Args[0].String())
}

func TestTypeDescriptorEquality(t *testing.T) {
	a := TypeDescriptor{Namespace: "p", Name: "T", Args: []TypeDescriptor{{Name: "int"}}}
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Args[0].Name = "string"
	assert.False(t, a.Equal(b))
	assert.Equal(t, "int", a.Args[0].Name, "clone must not alias args")

	assert.False(t, TypeDescriptor{Name: "T"}.Equal(TypeDescriptor{Name: "t"}), "names are case sensitive")
}

func TestMemberDescriptorEquality(t *testing.T) {
	decl := TypeDescriptor{Namespace: "p", Name: "T"}
	a := MemberDescriptor{Declaring: decl, Name: "F", Params: []TypeDescriptor{{Name: "int"}, {Name: "string"}}}
	b := MemberDescriptor{Declaring: decl, Name: "F", Params: []TypeDescriptor{{Name: "string"}, {Name: "int"}}}
	assert.False(t, a.Equal(b), "parameter order matters")
	assert.True(t, a.Equal(a.Clone()))
	assert.Equal(t, "p.T.F(int, string)", a.String())
}

func testModule(name string) *Module {
	wt := reflect.TypeOf(widget{})
	return NewModule(name).
		AddMethods(wt).
		AddConstructor(wt, "New", newWidget)
}

func TestSnapshotResolve(t *testing.T) {
	cat, err := NewSnapshot(testModule("widgets"))
	require.NoError(t, err)

	wt := reflect.TypeOf(widget{})
	got, err := cat.ResolveType(Describe(wt))
	require.NoError(t, err)
	assert.Equal(t, wt, got)

	for _, typ := range []reflect.Type{
		reflect.TypeOf([]widget{}),
		reflect.TypeOf(map[string]*widget{}),
		reflect.TypeOf([2]widget{}),
		reflect.TypeOf(func(widget) (int, error) { return 0, nil }),
		reflect.ChanOf(reflect.RecvDir, reflect.TypeOf(0)),
		reflect.TypeOf(uint16(0)),
	} {
		got, err := cat.ResolveType(Describe(typ))
		require.NoError(t, err, typ.String())
		assert.Equal(t, typ, got)
	}

	label, err := cat.ResolveMember(MemberDescriptor{
		Declaring: Describe(wt),
		Name:      "Label",
		Params:    []TypeDescriptor{{Name: "string"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Label", label.Name)
}

func TestSnapshotLookupErrors(t *testing.T) {
	cat, err := NewSnapshot(testModule("a"))
	require.NoError(t, err)

	_, err = cat.ResolveType(TypeDescriptor{Namespace: "nowhere", Name: "Missing"})
	var lookup *rerrors.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, 0, lookup.Found)

	_, err = cat.ResolveMember(MemberDescriptor{Declaring: Describe(reflect.TypeOf(widget{})), Name: "Label"})
	require.True(t, errors.As(err, &lookup), "signature must match exactly")

	both, err := cat.With(testModule("b"))
	require.NoError(t, err)
	_, err = both.ResolveType(Describe(reflect.TypeOf(widget{})))
	var ambiguous *rerrors.AmbiguousLookupError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, 2, ambiguous.Found)
	assert.Len(t, ambiguous.Candidates, 2)

	// the original snapshot is unchanged
	_, err = cat.ResolveType(Describe(reflect.TypeOf(widget{})))
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, cat.Modules())
}

func TestModuleRegistersOnce(t *testing.T) {
	wt := reflect.TypeOf(widget{})
	m := NewModule("widgets").AddType(wt).AddMethods(wt).AddMethods(wt).AddType(wt)
	require.NoError(t, m.Err())
	cat, err := NewSnapshot(m)
	require.NoError(t, err)

	got, err := cat.ResolveType(Describe(wt))
	require.NoError(t, err)
	assert.Equal(t, wt, got)

	_, err = cat.ResolveMember(MemberDescriptor{
		Declaring: Describe(wt),
		Name:      "Label",
		Params:    []TypeDescriptor{{Name: "string"}},
	})
	assert.NoError(t, err)
}

func TestModuleRegistrationErrors(t *testing.T) {
	m := NewModule("bad").AddConstructor(reflect.TypeOf(widget{}), "New", func() int { return 1 })
	require.Error(t, m.Err())
	_, err := NewSnapshot(m)
	assert.Error(t, err)
}
