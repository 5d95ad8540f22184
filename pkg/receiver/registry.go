package receiver

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/2008Choco/Networking/pkg/data"
)

// ErrNoProxy is returned when neither a receiver's type nor any of its
// registered supertypes has a proxy entry.
var ErrNoProxy = errors.New("no proxy registered for type")

type proxyEntry struct {
	typ  reflect.Type
	send func(receiver any, channel data.NamespacedKey, payload []byte) error
}

// ProxyRegistry maps declared receiver types to send strategies. Lookup uses
// the same discipline as the custom type registry: exact type first, then
// the first entry in registration order whose declared type the runtime type
// is assignable to.
//
// Like the other registries, proxies are registered during protocol
// configuration only and read concurrently afterwards.
type ProxyRegistry struct {
	entries []proxyEntry
	index   map[reflect.Type]int
}

// NewProxyRegistry returns an empty registry.
func NewProxyRegistry() *ProxyRegistry {
	return &ProxyRegistry{index: make(map[reflect.Type]int)}
}

// RegisterProxy registers a send strategy for receivers of type T.
// Registering the same type again replaces the previous entry in place.
func RegisterProxy[T any](r *ProxyRegistry, send func(receiver T, channel data.NamespacedKey, payload []byte) error) {
	entry := proxyEntry{
		typ: reflect.TypeOf((*T)(nil)).Elem(),
		send: func(receiver any, channel data.NamespacedKey, payload []byte) error {
			return send(receiver.(T), channel, payload)
		},
	}

	if i, ok := r.index[entry.typ]; ok {
		r.entries[i] = entry
		return
	}
	r.index[entry.typ] = len(r.entries)
	r.entries = append(r.entries, entry)
}

// SendMessage delivers payload to receiver through the proxy resolved from
// its runtime type.
func (r *ProxyRegistry) SendMessage(receiver any, channel data.NamespacedKey, payload []byte) error {
	entry, err := r.resolve(reflect.TypeOf(receiver))
	if err != nil {
		return err
	}
	return entry.send(receiver, channel, payload)
}

// Knows reports whether the registry resolves a proxy for typ. Used by the
// protocol to fail fast at configuration time.
func (r *ProxyRegistry) Knows(typ reflect.Type) bool {
	_, err := r.resolve(typ)
	return err == nil
}

func (r *ProxyRegistry) resolve(typ reflect.Type) (proxyEntry, error) {
	if i, ok := r.index[typ]; ok {
		return r.entries[i], nil
	}

	for _, entry := range r.entries {
		if typ.AssignableTo(entry.typ) {
			return entry, nil
		}
	}

	return proxyEntry{}, fmt.Errorf("%w %s: is it or one of its parent types registered?", ErrNoProxy, typ)
}
