package protocol

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/message"
)

// Inbound runs the receive-side algorithm for one direction of a protocol.
// Registrar implementations hand each raw payload delivered by the host
// transport to Receive.
//
// Resolve maps a decoded message to the listener instance that should handle
// it; returning false drops the message after decoding, which is not an
// error. OnUnknown and OnReadError report the two recognized failure
// conditions; when nil they log through Logger (or the logrus standard
// logger). Neither condition ever propagates out of Receive, so a malformed
// message cannot take down a shared receive loop.
type Inbound[T any] struct {
	Registry *Registry[T]
	Types    buffer.TypeCodec

	Resolve     func(msg message.Message[T]) (T, bool)
	OnUnknown   func(id int, payload []byte)
	OnReadError func(payload []byte, err error)

	Logger *log.Logger
}

// Receive decodes and dispatches a single raw payload.
func (in *Inbound[T]) Receive(payload []byte) {
	defer func() {
		// User-supplied constructors and handlers may panic; contain it to
		// this message.
		if r := recover(); r != nil {
			in.readError(payload, fmt.Errorf("panic while handling message: %v", r))
		}
	}()

	buf := buffer.NewReader(in.Types, payload)

	id, err := buf.ReadVarInt()
	if err != nil {
		in.readError(payload, err)
		return
	}

	msg, err := in.Registry.New(int(id), buf)
	if err != nil {
		in.readError(payload, err)
		return
	}
	if msg == nil {
		in.unknown(int(id), payload)
		return
	}

	if in.Resolve == nil {
		return
	}
	listener, ok := in.Resolve(msg)
	if !ok {
		return
	}

	msg.Handle(listener)
}

func (in *Inbound[T]) unknown(id int, payload []byte) {
	if in.OnUnknown != nil {
		in.OnUnknown(id, payload)
		return
	}
	in.logger().Warnf("Received unknown message with id %d (%d bytes). Ignoring.", id, len(payload))
}

func (in *Inbound[T]) readError(payload []byte, err error) {
	if in.OnReadError != nil {
		in.OnReadError(payload, err)
		return
	}
	in.logger().Warnf("Failed to read message (%d bytes): %v. Received erroneous data.", len(payload), err)
}

func (in *Inbound[T]) logger() *log.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return log.StandardLogger()
}
