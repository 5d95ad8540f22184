// Package transport provides host bindings that carry protocol payloads
// over a real channel: a framed TCP binding and an in-process loopback.
// Both implement protocol.ChannelRegistrar and perform the inbound
// algorithm via protocol.Inbound.
package transport

import (
	"fmt"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/message"
	"github.com/2008Choco/Networking/pkg/protocol"
	"github.com/2008Choco/Networking/pkg/receiver"
)

// Loopback is an in-process channel binding: payloads sent to its endpoints
// are decoded and dispatched synchronously on the sending goroutine. Useful
// for tests and for wiring two protocol sides in the same process.
//
// Set the resolver fields before passing the loopback to RegisterChannels.
type Loopback[S, C any] struct {
	// Types is the sending protocol's custom type registry, used to decode
	// inbound payloads. Typically Protocol.CustomTypes().
	Types buffer.TypeCodec

	// ResolveServerbound and ResolveClientbound pick the listener for a
	// decoded message, or decline it.
	ResolveServerbound func(msg message.Message[S]) (S, bool)
	ResolveClientbound func(msg message.Message[C]) (C, bool)

	// OnUnknown and OnReadError override the default logging for the two
	// reportable receive conditions.
	OnUnknown   func(direction protocol.Direction, id int, payload []byte)
	OnReadError func(direction protocol.Direction, payload []byte, err error)

	serverbound *protocol.Inbound[S]
	clientbound *protocol.Inbound[C]
}

// NewLoopback returns a loopback binding decoding through the given type
// codec.
func NewLoopback[S, C any](types buffer.TypeCodec) *Loopback[S, C] {
	return &Loopback[S, C]{Types: types}
}

// RegisterServerboundHandler satisfies protocol.ChannelRegistrar.
func (l *Loopback[S, C]) RegisterServerboundHandler(channel data.NamespacedKey, registry *protocol.Registry[S]) {
	l.serverbound = &protocol.Inbound[S]{
		Registry: registry,
		Types:    l.Types,
		Resolve: func(msg message.Message[S]) (S, bool) {
			var zero S
			if l.ResolveServerbound == nil {
				return zero, false
			}
			return l.ResolveServerbound(msg)
		},
		OnUnknown:   l.unknownFunc(protocol.Serverbound),
		OnReadError: l.readErrorFunc(protocol.Serverbound),
	}
}

// RegisterClientboundHandler satisfies protocol.ChannelRegistrar.
func (l *Loopback[S, C]) RegisterClientboundHandler(channel data.NamespacedKey, registry *protocol.Registry[C]) {
	l.clientbound = &protocol.Inbound[C]{
		Registry: registry,
		Types:    l.Types,
		Resolve: func(msg message.Message[C]) (C, bool) {
			var zero C
			if l.ResolveClientbound == nil {
				return zero, false
			}
			return l.ResolveClientbound(msg)
		},
		OnUnknown:   l.unknownFunc(protocol.Clientbound),
		OnReadError: l.readErrorFunc(protocol.Clientbound),
	}
}

// Server returns the receiver serverbound messages should be sent to.
func (l *Loopback[S, C]) Server() receiver.MessageReceiver {
	return endpoint{name: "server", deliver: func(payload []byte) error {
		if l.serverbound == nil {
			return fmt.Errorf("loopback has no serverbound handler, were channels registered?")
		}
		l.serverbound.Receive(payload)
		return nil
	}}
}

// Client returns the receiver clientbound messages should be sent to.
func (l *Loopback[S, C]) Client() receiver.MessageReceiver {
	return endpoint{name: "client", deliver: func(payload []byte) error {
		if l.clientbound == nil {
			return fmt.Errorf("loopback has no clientbound handler, were channels registered?")
		}
		l.clientbound.Receive(payload)
		return nil
	}}
}

func (l *Loopback[S, C]) unknownFunc(direction protocol.Direction) func(id int, payload []byte) {
	if l.OnUnknown == nil {
		return nil
	}
	return func(id int, payload []byte) {
		l.OnUnknown(direction, id, payload)
	}
}

func (l *Loopback[S, C]) readErrorFunc(direction protocol.Direction) func(payload []byte, err error) {
	if l.OnReadError == nil {
		return nil
	}
	return func(payload []byte, err error) {
		l.OnReadError(direction, payload, err)
	}
}

type endpoint struct {
	name    string
	deliver func(payload []byte) error
}

func (e endpoint) SendMessage(channel data.NamespacedKey, payload []byte) error {
	return e.deliver(payload)
}
