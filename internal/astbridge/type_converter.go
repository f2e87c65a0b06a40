package astbridge

import (
	"reflect"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
	"github.com/orizon-lang/exprrepr/internal/expr"
)

// TypeConverter maps runtime types and members to descriptors and back.
// Both directions are memoized for the lifetime of one conversion, so a
// type used at many nodes is described or resolved once.
type TypeConverter struct {
	// catalog resolves descriptors; nil for forward-only converters
	catalog descriptor.Catalog

	described map[reflect.Type]descriptor.TypeDescriptor
	resolved  map[string]resolvedType
	members   map[string]resolvedMember
}

// cache entries keep the descriptor since String is a display form
type resolvedType struct {
	desc descriptor.TypeDescriptor
	typ  reflect.Type
}

type resolvedMember struct {
	desc   descriptor.MemberDescriptor
	method *expr.Method
}

// NewTypeConverter creates a type converter. catalog may be nil when only
// the forward direction is needed.
func NewTypeConverter(catalog descriptor.Catalog) *TypeConverter {
	return &TypeConverter{
		catalog:   catalog,
		described: make(map[reflect.Type]descriptor.TypeDescriptor),
		resolved:  make(map[string]resolvedType),
		members:   make(map[string]resolvedMember),
	}
}

// Describe returns the descriptor of t. The result is a fresh copy and may
// be stored in a representation node.
func (tc *TypeConverter) Describe(t reflect.Type) descriptor.TypeDescriptor {
	d, ok := tc.described[t]
	if !ok {
		d = descriptor.Describe(t)
		tc.described[t] = d
	}
	return d.Clone()
}

// DescribeMethod returns the descriptor of m, or nil for a nil method.
func (tc *TypeConverter) DescribeMethod(m *expr.Method) *descriptor.MemberDescriptor {
	if m == nil {
		return nil
	}
	d := descriptor.DescribeMethod(m)
	return &d
}

// ResolveType resolves d through the catalog.
func (tc *TypeConverter) ResolveType(d descriptor.TypeDescriptor) (reflect.Type, error) {
	key := d.String()
	if e, ok := tc.resolved[key]; ok && e.desc.Equal(d) {
		return e.typ, nil
	}
	t, err := tc.catalog.ResolveType(d)
	if err != nil {
		return nil, err
	}
	tc.resolved[key] = resolvedType{desc: d.Clone(), typ: t}
	return t, nil
}

// ResolveMember resolves d through the catalog.
func (tc *TypeConverter) ResolveMember(d descriptor.MemberDescriptor) (*expr.Method, error) {
	key := d.String()
	if e, ok := tc.members[key]; ok && e.desc.Equal(d) {
		return e.method, nil
	}
	m, err := tc.catalog.ResolveMember(d)
	if err != nil {
		return nil, err
	}
	tc.members[key] = resolvedMember{desc: d.Clone(), method: m}
	return m, nil
}
