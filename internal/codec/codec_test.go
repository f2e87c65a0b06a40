package codec

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/descriptor"
	rerrors "github.com/orizon-lang/exprrepr/internal/errors"
	"github.com/orizon-lang/exprrepr/internal/repr"
	"github.com/orizon-lang/exprrepr/internal/sample"
)

func tokens(n repr.Node) []repr.Token {
	var out []repr.Token
	for node := range repr.VisitAllNodes(n) {
		if p, ok := node.(*repr.Parameter); ok {
			out = append(out, p.ID)
		}
	}
	return out
}

func sampleNodes(t *testing.T) map[string]repr.Node {
	t.Helper()
	examples, err := sample.Examples()
	require.NoError(t, err)
	out := make(map[string]repr.Node, len(examples))
	for _, ex := range examples {
		n, err := astbridge.ToRepresentation(ex.Lambda)
		require.NoError(t, err, ex.Name)
		out[ex.Name] = n
	}
	return out
}

func TestRoundTripJSONAndYAML(t *testing.T) {
	c := New(nil)
	for name, node := range sampleNodes(t) {
		t.Run(name, func(t *testing.T) {
			data, err := c.Marshal(node)
			require.NoError(t, err)

			got, err := c.Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, repr.Equal(node, got), "json:\n%s", data)
			assert.Equal(t, tokens(node), tokens(got))

			y, err := c.MarshalYAML(node)
			require.NoError(t, err)
			got, err = c.UnmarshalYAML(y)
			require.NoError(t, err)
			assert.True(t, repr.Equal(node, got), "yaml:\n%s", y)
			assert.Equal(t, tokens(node), tokens(got))
		})
	}
}

func TestDecodedTreeRebuilds(t *testing.T) {
	ex, err := sample.ExampleNamed("output")
	require.NoError(t, err)
	node, err := astbridge.ToRepresentation(ex.Lambda)
	require.NoError(t, err)

	c := New(nil)
	data, err := c.Marshal(node)
	require.NoError(t, err)
	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)

	cat, err := sample.Catalog()
	require.NoError(t, err)
	closure, err := astbridge.FromRepresentation(decoded, cat)
	require.NoError(t, err)
	got, err := closure.Call(sample.Input("hello"))
	require.NoError(t, err)
	assert.Equal(t, sample.Output{Input: "hello", Extra: "open"}, got)
}

func TestEnvelopeShape(t *testing.T) {
	x := &repr.Parameter{Type: descriptor.TypeDescriptor{Name: "int"}, Name: "x", ID: 1}
	l := &repr.Lambda{
		Type:       descriptor.TypeDescriptor{Name: "func(1)", Args: []descriptor.TypeDescriptor{{Name: "int"}, {Name: "int"}}},
		Parameters: []*repr.Parameter{x},
		Body:       x,
	}
	data, err := New(nil).Marshal(l)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, FormatVersion, env["format"])
	root := env["root"].(map[string]any)
	assert.Equal(t, "Lambda", root["kind"])
	body := root["body"].(map[string]any)
	assert.Equal(t, "Parameter", body["kind"])
	assert.Equal(t, 1.0, body["id"])
}

func TestFormatVersion(t *testing.T) {
	assert.NoError(t, CheckFormat("1.0.0"))
	assert.NoError(t, CheckFormat("1.4.2"))
	assert.ErrorIs(t, CheckFormat("2.0.0"), ErrUnsupportedFormat)
	assert.ErrorIs(t, CheckFormat("0.9.0"), ErrUnsupportedFormat)
	assert.ErrorIs(t, CheckFormat("banana"), ErrUnsupportedFormat)

	c := New(nil)
	_, err := c.Unmarshal([]byte(`{"format": "2.0.0", "root": {"kind": "Constant"}}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = c.Unmarshal([]byte(`{"format": "1.0.0"}`))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = c.Unmarshal([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValueCodecs(t *testing.T) {
	input := descriptor.Describe(reflect.TypeOf(sample.Input("")))
	node := &repr.Constant{Type: input, Value: sample.Input("hi")}

	_, err := New(nil).Marshal(node)
	require.ErrorIs(t, err, ErrNoValueCodec)

	values := NewRegistry()
	require.NoError(t, values.Register(input, JSONValue[sample.Input]()))
	assert.Error(t, values.Register(input, JSONValue[sample.Input]()), "duplicate registration")
	values.Freeze()
	assert.ErrorIs(t, values.RegisterType(reflect.TypeOf(sample.Point{}), JSONValue[sample.Point]()), ErrRegistryFrozen)

	c := New(values)
	data, err := c.Marshal(node)
	require.NoError(t, err)
	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, sample.Input("hi"), got.(*repr.Constant).Value)

	// wrong payload type for the declared descriptor
	_, err = c.Marshal(&repr.Constant{Type: input, Value: 42})
	assert.Error(t, err)
}

func TestReflectValues(t *testing.T) {
	values := NewRegistry()
	for _, typ := range sample.ValueTypes() {
		require.NoError(t, values.RegisterType(typ, ReflectValue(typ)))
	}
	c := New(values.Freeze())

	point := descriptor.Describe(reflect.TypeOf(sample.Point{}))
	data, err := c.Marshal(&repr.Constant{Type: point, Value: sample.Point{X: 3, Y: 4}})
	require.NoError(t, err)
	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, sample.Point{X: 3, Y: 4}, got.(*repr.Constant).Value)

	_, err = c.Marshal(&repr.Constant{Type: point, Value: sample.Money{Cents: 1}})
	assert.Error(t, err)
}

func TestNilConstant(t *testing.T) {
	ptr := descriptor.Describe(reflect.TypeOf(&sample.Point{}))
	c := New(nil)
	data, err := c.Marshal(&repr.Constant{Type: ptr})
	require.NoError(t, err)
	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Nil(t, got.(*repr.Constant).Value)
	assert.True(t, got.(*repr.Constant).Type.Equal(ptr))
}

func TestMalformedDocuments(t *testing.T) {
	c := New(nil)
	cases := map[string]string{
		"unknown kind":     `{"kind": "Block"}`,
		"missing type":     `{"kind": "Parameter", "name": "x", "id": 1}`,
		"missing token":    `{"kind": "Parameter", "name": "x", "type": {"name": "int"}}`,
		"missing operand":  `{"kind": "Unary", "op": "Negate", "type": {"name": "int"}}`,
		"bad operator":     `{"kind": "Binary", "op": "Pow", "type": {"name": "int"}}`,
		"call w/o method":  `{"kind": "MethodCall", "type": {"name": "int"}}`,
		"init without new": `{"kind": "MemberInit"}`,
	}
	for name, root := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Unmarshal([]byte(`{"format": "1.0.0", "root": ` + root + `}`))
			require.Error(t, err)
			var unsupported *rerrors.UnsupportedNodeKindError
			assert.True(t, errors.Is(err, ErrMalformed) || errors.As(err, &unsupported), "%v", err)
		})
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	inner := `{"kind": "Constant", "type": {"name": "int"}, "value": 1}`
	for i := 0; i < 10; i++ {
		inner = `{"kind": "Unary", "op": "Negate", "type": {"name": "int"}, "operand": ` + inner + `}`
	}
	doc := []byte(`{"format": "1.0.0", "root": ` + inner + `}`)

	_, err := New(nil, WithMaxDepth(5)).Unmarshal(doc)
	var limit *rerrors.RecursionLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 5, limit.Limit)

	n, err := New(nil).Unmarshal(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(n.String(), "--"))
}
