// Package message defines the unit of communication exchanged over a
// protocol channel.
package message

import "github.com/2008Choco/Networking/pkg/buffer"

// Message is a strongly typed message bound to one direction through its
// listener type T. A message serializes its own fields with WriteTo and
// selects the listener operation appropriate to its concrete type in Handle.
//
// By convention an implementation has two constructors: one taking field
// values for sending, and one reading a ByteBuffer for receiving. Both must
// produce equivalent instances for the same logical content. For example:
//
//	type SetName struct{ Name string }
//
//	func ReadSetName(buf *buffer.ByteBuffer) (*SetName, error) {
//		name, err := buf.ReadString()
//		return &SetName{Name: name}, err
//	}
//
//	func (m *SetName) WriteTo(buf *buffer.ByteBuffer) error {
//		return buf.WriteString(m.Name)
//	}
//
//	func (m *SetName) Handle(listener ServerboundListener) {
//		listener.HandleSetName(m)
//	}
type Message[T any] interface {
	// WriteTo writes this message's fields to the buffer.
	WriteTo(buf *buffer.ByteBuffer) error

	// Handle dispatches this message to the listener operation that
	// handles its concrete type.
	Handle(listener T)
}
