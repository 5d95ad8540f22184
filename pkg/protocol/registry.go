package protocol

import (
	"fmt"
	"reflect"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/message"
)

// Registry maps the message types of one direction to dense integer wire
// ids and reconstruction functions. A type's id is its registration index:
// the first registered message has id 0, the next id 1, and so on. Ids are
// never reused or renumbered within a process lifetime.
//
// Registration happens while the owning protocol is being constructed; once
// channels are bound the registry is sealed and shared read-only.
type Registry[T any] struct {
	ids          map[reflect.Type]int
	constructors []func(buf *buffer.ByteBuffer) (message.Message[T], error)
	sealed       bool
}

func newRegistry[T any]() *Registry[T] {
	return &Registry[T]{ids: make(map[reflect.Type]int)}
}

// RegisterMessage registers concrete message type M with its reconstruction
// function and assigns it the next id in sequence. Registering the same type
// twice, or registering after the protocol's channels are bound, is a fatal
// configuration error and panics.
func RegisterMessage[T any, M message.Message[T]](r *Registry[T], constructor func(buf *buffer.ByteBuffer) (M, error)) *Registry[T] {
	if r.sealed {
		panic("cannot register messages after channels are bound")
	}

	typ := reflect.TypeOf((*M)(nil)).Elem()
	if existing, ok := r.ids[typ]; ok {
		panic(fmt.Sprintf("attempted to register message %s but it is already registered with id %d", typ, existing))
	}

	r.ids[typ] = len(r.constructors)
	r.constructors = append(r.constructors, func(buf *buffer.ByteBuffer) (message.Message[T], error) {
		return constructor(buf)
	})
	return r
}

// IDOf returns the wire id registered for the given message type, or -1 if
// the type is not registered.
func (r *Registry[T]) IDOf(typ reflect.Type) int {
	if id, ok := r.ids[typ]; ok {
		return id
	}
	return -1
}

// Count returns the number of registered messages.
func (r *Registry[T]) Count() int {
	return len(r.constructors)
}

// New reconstructs the message registered under id from the buffer. An id
// outside the registered range is not an error: it returns (nil, nil) and
// the caller decides how to report the unknown message. Errors raised by the
// reconstruction function are propagated.
func (r *Registry[T]) New(id int, buf *buffer.ByteBuffer) (message.Message[T], error) {
	if id < 0 || id >= len(r.constructors) {
		return nil, nil
	}
	return r.constructors[id](buf)
}

// RegisteredMessages returns a snapshot of every registered message type and
// its id. Intended for diagnostics and tests.
func (r *Registry[T]) RegisteredMessages() map[reflect.Type]int {
	snapshot := make(map[reflect.Type]int, len(r.ids))
	for typ, id := range r.ids {
		snapshot[typ] = id
	}
	return snapshot
}

func (r *Registry[T]) seal() {
	r.sealed = true
}
