package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/orizon-lang/exprrepr/internal/descriptor"
)

var (
	// ErrNoValueCodec reports a constant whose type has no registered codec.
	ErrNoValueCodec = errors.New("no value codec registered")
	// ErrRegistryFrozen reports a registration after Freeze.
	ErrRegistryFrozen = errors.New("value registry is frozen")
)

// ValueCodec encodes constant payloads of one type.
type ValueCodec interface {
	Encode(v any) (json.RawMessage, error)
	Decode(data json.RawMessage) (any, error)
}

// jsonValue round-trips values of T through encoding/json.
type jsonValue[T any] struct{}

// JSONValue returns a codec that encodes T with encoding/json and decodes
// into a T.
func JSONValue[T any]() ValueCodec { return jsonValue[T]{} }

func (jsonValue[T]) Encode(v any) (json.RawMessage, error) {
	tv, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("value codec %s: got %T", reflect.TypeFor[T](), v)
	}
	return json.Marshal(tv)
}

func (jsonValue[T]) Decode(data json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// reflectValue is JSONValue for a type known only at run time.
type reflectValue struct{ t reflect.Type }

// ReflectValue returns a JSON codec for values of t.
func ReflectValue(t reflect.Type) ValueCodec { return reflectValue{t} }

func (r reflectValue) Encode(v any) (json.RawMessage, error) {
	if v == nil || reflect.TypeOf(v) != r.t {
		return nil, fmt.Errorf("value codec %s: got %T", r.t, v)
	}
	return json.Marshal(v)
}

func (r reflectValue) Decode(data json.RawMessage) (any, error) {
	out := reflect.New(r.t)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}

type valueEntry struct {
	desc  descriptor.TypeDescriptor
	codec ValueCodec
}

// Registry maps type descriptors to value codecs. It is built with Register
// and then frozen; a frozen registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string][]valueEntry
	frozen bool
}

// NewRegistry returns a registry preloaded with codecs for the predeclared
// bool, string and numeric types.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string][]valueEntry)}
	builtins := []struct {
		t reflect.Type
		c ValueCodec
	}{
		{reflect.TypeFor[bool](), JSONValue[bool]()},
		{reflect.TypeFor[string](), JSONValue[string]()},
		{reflect.TypeFor[int](), JSONValue[int]()},
		{reflect.TypeFor[int8](), JSONValue[int8]()},
		{reflect.TypeFor[int16](), JSONValue[int16]()},
		{reflect.TypeFor[int32](), JSONValue[int32]()},
		{reflect.TypeFor[int64](), JSONValue[int64]()},
		{reflect.TypeFor[uint](), JSONValue[uint]()},
		{reflect.TypeFor[uint8](), JSONValue[uint8]()},
		{reflect.TypeFor[uint16](), JSONValue[uint16]()},
		{reflect.TypeFor[uint32](), JSONValue[uint32]()},
		{reflect.TypeFor[uint64](), JSONValue[uint64]()},
		{reflect.TypeFor[float32](), JSONValue[float32]()},
		{reflect.TypeFor[float64](), JSONValue[float64]()},
	}
	for _, b := range builtins {
		d := descriptor.Describe(b.t)
		r.codecs[d.String()] = []valueEntry{{desc: d, codec: b.c}}
	}
	return r
}

// Register adds c for d. Registering a descriptor twice fails.
func (r *Registry) Register(d descriptor.TypeDescriptor, c ValueCodec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	key := d.String()
	for _, e := range r.codecs[key] {
		if e.desc.Equal(d) {
			return fmt.Errorf("value codec for %s already registered", d)
		}
	}
	r.codecs[key] = append(r.codecs[key], valueEntry{desc: d.Clone(), codec: c})
	return nil
}

// RegisterType is Register for the descriptor of t.
func (r *Registry) RegisterType(t reflect.Type, c ValueCodec) error {
	return r.Register(descriptor.Describe(t), c)
}

// Freeze stops further registration and returns r.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
	return r
}

// Lookup returns the codec for d.
func (r *Registry) Lookup(d descriptor.TypeDescriptor) (ValueCodec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.codecs[d.String()] {
		if e.desc.Equal(d) {
			return e.codec, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrNoValueCodec, d)
}
