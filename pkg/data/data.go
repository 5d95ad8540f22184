package data

import "github.com/2008Choco/Networking/pkg/buffer"

// Data is a value that knows how to write itself to a ByteBuffer. Types
// implementing Data can be registered with RegisterDataType without a
// separate serialization function.
type Data interface {
	WriteTo(buf *buffer.ByteBuffer) error
}
