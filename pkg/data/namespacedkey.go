// Package data holds the value types a protocol can put on the wire beyond
// primitives, and the registry that teaches a protocol how to serialize
// host-specific types.
package data

import (
	"fmt"
	"strings"

	"github.com/2008Choco/Networking/pkg/buffer"
)

// NamespacedKey is a unique key under a namespace, written as
// "namespace:key". The namespace may contain [a-z0-9._-], the key
// additionally '/'. Both parts must be non-empty. NamespacedKeys are value
// types, comparable and usable as map keys.
type NamespacedKey struct {
	namespace string
	key       string
}

// NewKey validates and constructs a NamespacedKey.
func NewKey(namespace, key string) (NamespacedKey, error) {
	if !isValidNamespace(namespace) {
		return NamespacedKey{}, fmt.Errorf("invalid namespace %q, must match [a-z0-9._-]", namespace)
	}
	if !isValidKey(key) {
		return NamespacedKey{}, fmt.Errorf("invalid key %q, must match [a-z0-9._-/]", key)
	}
	return NamespacedKey{namespace: namespace, key: key}, nil
}

// MustKey is NewKey but panics on invalid input. Intended for package-level
// channel declarations where the parts are compile-time constants.
func MustKey(namespace, key string) NamespacedKey {
	k, err := NewKey(namespace, key)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseKey parses a key from its "namespace:key" string form. Input without
// a namespace separator is keyed under defaultNamespace.
func ParseKey(input, defaultNamespace string) (NamespacedKey, error) {
	if namespace, key, found := strings.Cut(input, ":"); found {
		return NewKey(namespace, key)
	}
	return NewKey(defaultNamespace, input)
}

// ReadKey reads a NamespacedKey from the buffer's next string, falling back
// to defaultNamespace if the string carries no namespace.
func ReadKey(buf *buffer.ByteBuffer, defaultNamespace string) (NamespacedKey, error) {
	input, err := buf.ReadString()
	if err != nil {
		return NamespacedKey{}, err
	}
	return ParseKey(input, defaultNamespace)
}

// Namespace returns the namespace component.
func (k NamespacedKey) Namespace() string {
	return k.namespace
}

// Key returns the key component.
func (k NamespacedKey) Key() string {
	return k.key
}

// String returns the canonical "namespace:key" form.
func (k NamespacedKey) String() string {
	return k.namespace + ":" + k.key
}

// WriteTo writes the key's canonical string form. Satisfies Data.
func (k NamespacedKey) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteString(k.String())
}

func isValidNamespaceChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
}

func isValidKeyChar(c rune) bool {
	return isValidNamespaceChar(c) || c == '/'
}

func isValidNamespace(namespace string) bool {
	if len(namespace) == 0 {
		return false
	}
	for _, c := range namespace {
		if !isValidNamespaceChar(c) {
			return false
		}
	}
	return true
}

func isValidKey(key string) bool {
	if len(key) == 0 {
		return false
	}
	for _, c := range key {
		if !isValidKeyChar(c) {
			return false
		}
	}
	return true
}
