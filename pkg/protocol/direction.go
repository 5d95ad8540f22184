// Package protocol ties the codec, registries and receivers together into a
// versioned message protocol bound to a single channel.
package protocol

// Direction is the direction a message travels in. A protocol keeps one
// message registry per direction.
type Direction int

const (
	// Serverbound messages travel from client to server.
	Serverbound Direction = iota
	// Clientbound messages travel from server to client.
	Clientbound
)

// Directions lists every direction in ordinal order.
var Directions = []Direction{Serverbound, Clientbound}

func (d Direction) String() string {
	switch d {
	case Serverbound:
		return "serverbound"
	case Clientbound:
		return "clientbound"
	default:
		return "unknown"
	}
}
