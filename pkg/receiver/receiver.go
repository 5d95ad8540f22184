// Package receiver defines what it means to be a target of a message: the
// native MessageReceiver capability, and proxies that let host objects
// outside our control act as receivers anyway.
package receiver

import "github.com/2008Choco/Networking/pkg/data"

// MessageReceiver is a target capable of being sent raw message bytes on a
// channel. Host bindings implement this on their connection types.
type MessageReceiver interface {
	// SendMessage sends the payload on the given channel.
	SendMessage(channel data.NamespacedKey, payload []byte) error
}
