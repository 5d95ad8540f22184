package protocol

import "github.com/2008Choco/Networking/pkg/data"

// ChannelRegistrar binds a protocol to a real transport. Implementations
// register receive callbacks with the host platform for each direction they
// care about; a binding that only ever sends in one direction may ignore the
// other registration entirely.
//
// The receive side of a registrar must follow the Inbound algorithm: decode
// the leading varint message id, report unknown ids without failing, decode
// the remainder into a message, resolve a listener (or none) and let the
// message dispatch itself; any read error is reported per message rather
// than propagated.
type ChannelRegistrar[S, C any] interface {
	// RegisterServerboundHandler registers handling for messages arriving
	// from clients on the given channel.
	RegisterServerboundHandler(channel data.NamespacedKey, registry *Registry[S])

	// RegisterClientboundHandler registers handling for messages arriving
	// from the server on the given channel.
	RegisterClientboundHandler(channel data.NamespacedKey, registry *Registry[C])
}
