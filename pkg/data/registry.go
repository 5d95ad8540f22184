package data

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/2008Choco/Networking/pkg/buffer"
)

// ErrUnknownType is returned when neither a value's type nor any of its
// registered supertypes has a serialization entry.
var ErrUnknownType = errors.New("no serializer registered for type")

type typeEntry struct {
	typ         reflect.Type
	serialize   func(buf *buffer.ByteBuffer, value any) error
	deserialize func(buf *buffer.ByteBuffer) (any, error)
}

// CustomTypeRegistry maps declared types to serializer and deserializer
// functions. Lookup tries the exact type first, then scans entries in
// registration order for the first whose declared type the runtime type is
// assignable to, so interface registrations cover all their implementations.
//
// Registration happens during protocol configuration only; once messages
// flow the registry is a read-only lookup table shared across goroutines.
type CustomTypeRegistry struct {
	entries []typeEntry
	index   map[reflect.Type]int
}

// NewCustomTypeRegistry returns an empty registry.
func NewCustomTypeRegistry() *CustomTypeRegistry {
	return &CustomTypeRegistry{index: make(map[reflect.Type]int)}
}

// RegisterType registers serialization functions for T. Registering the same
// type again replaces the previous entry in place.
func RegisterType[T any](r *CustomTypeRegistry, serialize func(buf *buffer.ByteBuffer, value T) error, deserialize func(buf *buffer.ByteBuffer) (T, error)) {
	entry := typeEntry{
		typ: reflect.TypeOf((*T)(nil)).Elem(),
		serialize: func(buf *buffer.ByteBuffer, value any) error {
			return serialize(buf, value.(T))
		},
		deserialize: func(buf *buffer.ByteBuffer) (any, error) {
			return deserialize(buf)
		},
	}

	if i, ok := r.index[entry.typ]; ok {
		r.entries[i] = entry
		return
	}
	r.index[entry.typ] = len(r.entries)
	r.entries = append(r.entries, entry)
}

// RegisterDataType registers a type that serializes itself through the Data
// interface, so only a deserialization function is needed.
func RegisterDataType[T Data](r *CustomTypeRegistry, deserialize func(buf *buffer.ByteBuffer) (T, error)) {
	RegisterType(r, func(buf *buffer.ByteBuffer, value T) error {
		return value.WriteTo(buf)
	}, deserialize)
}

// Serialize writes value using the entry resolved from its runtime type.
// Satisfies buffer.TypeCodec.
func (r *CustomTypeRegistry) Serialize(buf *buffer.ByteBuffer, value any) error {
	entry, err := r.resolve(reflect.TypeOf(value))
	if err != nil {
		return err
	}
	return entry.serialize(buf, value)
}

// Deserialize reads a value of the requested type. Satisfies
// buffer.TypeCodec.
func (r *CustomTypeRegistry) Deserialize(buf *buffer.ByteBuffer, target reflect.Type) (any, error) {
	entry, err := r.resolve(target)
	if err != nil {
		return nil, err
	}
	return entry.deserialize(buf)
}

func (r *CustomTypeRegistry) resolve(typ reflect.Type) (typeEntry, error) {
	if i, ok := r.index[typ]; ok {
		return r.entries[i], nil
	}

	// Fall back to the first registered entry whose declared type is a
	// supertype of the runtime type. Registration order makes the scan
	// deterministic.
	for _, entry := range r.entries {
		if typ.AssignableTo(entry.typ) {
			return entry, nil
		}
	}

	return typeEntry{}, fmt.Errorf("%w %s: is it or one of its parent types registered?", ErrUnknownType, typ)
}
