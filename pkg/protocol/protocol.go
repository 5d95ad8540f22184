package protocol

import (
	"errors"
	"fmt"
	"reflect"

	log "github.com/sirupsen/logrus"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/logs"
	"github.com/2008Choco/Networking/pkg/message"
	"github.com/2008Choco/Networking/pkg/receiver"
)

// ErrUnregisteredMessage is returned when sending a message whose type was
// never registered in the relevant direction's registry.
var ErrUnregisteredMessage = errors.New("message type not registered")

// Configuration applies startup configuration to a protocol, typically
// registering custom data types and proxied receivers. Configurations run
// before channels are bound.
type Configuration[S, C any] func(p *Protocol[S, C])

// Protocol is a versioned message protocol on a single channel. S and C are
// the listener types handling serverbound and clientbound messages
// respectively.
//
// A protocol is created once at startup, configured, bound to a transport
// through RegisterChannels, and structurally immutable from then on. All
// registration must complete before the first message is sent or received;
// afterwards the registries are shared read-only across any number of
// goroutines.
//
//	var Proto = protocol.New[ServerboundListener, ClientboundListener](
//		data.MustKey("example", "demo"), 1,
//		func(serverbound *protocol.Registry[ServerboundListener]) {
//			protocol.RegisterMessage(serverbound, ReadSetName) // 0x00
//		},
//		func(clientbound *protocol.Registry[ClientboundListener]) {
//			protocol.RegisterMessage(clientbound, ReadBroadcast) // 0x00
//		},
//	)
type Protocol[S, C any] struct {
	channel data.NamespacedKey
	version int

	serverbound *Registry[S]
	clientbound *Registry[C]
	types       *data.CustomTypeRegistry
	proxies     *receiver.ProxyRegistry

	bound  bool
	logger *log.Logger
}

// New constructs a protocol on the given channel. The two callbacks populate
// the serverbound and clientbound message registries; registration order
// determines wire ids.
func New[S, C any](channel data.NamespacedKey, version int, serverbound func(r *Registry[S]), clientbound func(r *Registry[C])) *Protocol[S, C] {
	p := &Protocol[S, C]{
		channel:     channel,
		version:     version,
		serverbound: newRegistry[S](),
		clientbound: newRegistry[C](),
		types:       data.NewCustomTypeRegistry(),
		proxies:     receiver.NewProxyRegistry(),
		logger:      logs.NewLogger("Protocol/" + channel.String()),
	}

	serverbound(p.serverbound)
	clientbound(p.clientbound)

	// NamespacedKey is serializable on every protocol out of the box. Keys
	// read without an explicit namespace default to the channel's.
	data.RegisterDataType(p.types, func(buf *buffer.ByteBuffer) (data.NamespacedKey, error) {
		return data.ReadKey(buf, channel.Namespace())
	})

	return p
}

// Channel returns the channel this protocol is bound to.
func (p *Protocol[S, C]) Channel() data.NamespacedKey {
	return p.channel
}

// Version returns the declared protocol version. Version negotiation is the
// host's concern; the core only carries the number.
func (p *Protocol[S, C]) Version() int {
	return p.version
}

// CustomTypes returns the protocol's custom type registry for use as a
// buffer type codec.
func (p *Protocol[S, C]) CustomTypes() *data.CustomTypeRegistry {
	return p.types
}

// NewReader returns a read-mode buffer over payload wired to this protocol's
// custom types.
func (p *Protocol[S, C]) NewReader(payload []byte) *buffer.ByteBuffer {
	return buffer.NewReader(p.types, payload)
}

// SendToServer sends a serverbound message to the given receiver. The
// receiver is used directly when it implements receiver.MessageReceiver and
// resolved through the proxy registry otherwise.
func (p *Protocol[S, C]) SendToServer(to any, msg message.Message[S]) error {
	return send(p, p.serverbound, to, msg)
}

// SendToClient sends a clientbound message to the given receiver. The
// receiver is used directly when it implements receiver.MessageReceiver and
// resolved through the proxy registry otherwise.
func (p *Protocol[S, C]) SendToClient(to any, msg message.Message[C]) error {
	return send(p, p.clientbound, to, msg)
}

// Configure applies a configuration and returns the protocol for chaining.
func (p *Protocol[S, C]) Configure(configuration Configuration[S, C]) *Protocol[S, C] {
	configuration(p)
	return p
}

// RegisterChannels hands both message registries to the registrar so it can
// bind the live transport, then seals the protocol: no further message,
// custom type or proxy registration is permitted.
func (p *Protocol[S, C]) RegisterChannels(registrar ChannelRegistrar[S, C]) {
	registrar.RegisterServerboundHandler(p.channel, p.serverbound)
	registrar.RegisterClientboundHandler(p.channel, p.clientbound)

	p.serverbound.seal()
	p.clientbound.seal()
	p.bound = true
}

// RegisterCustomType registers serialization functions for values of type T
// written and read through buffer.WriteCustom and buffer.ReadCustom.
// Registration after channels are bound is a fatal configuration error.
func RegisterCustomType[S, C, T any](p *Protocol[S, C], serialize func(buf *buffer.ByteBuffer, value T) error, deserialize func(buf *buffer.ByteBuffer) (T, error)) *Protocol[S, C] {
	p.ensureConfigurable("custom types")
	data.RegisterType(p.types, serialize, deserialize)
	return p
}

// RegisterCustomDataType registers a self-serializing data.Data type,
// needing only a deserialization function.
func RegisterCustomDataType[S, C any, T data.Data](p *Protocol[S, C], deserialize func(buf *buffer.ByteBuffer) (T, error)) *Protocol[S, C] {
	p.ensureConfigurable("custom types")
	data.RegisterDataType(p.types, deserialize)
	return p
}

// RegisterProxiedReceiver registers a send strategy for receivers of type T
// that cannot implement receiver.MessageReceiver themselves. Proxying a type
// that already implements MessageReceiver is a configuration error, as is
// registration after channels are bound.
func RegisterProxiedReceiver[S, C, T any](p *Protocol[S, C], sendFn func(to T, channel data.NamespacedKey, payload []byte) error) *Protocol[S, C] {
	p.ensureConfigurable("proxied receivers")

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Implements(reflect.TypeOf((*receiver.MessageReceiver)(nil)).Elem()) {
		panic(fmt.Sprintf("cannot proxy a type that implements (or is) MessageReceiver: %s", typ))
	}

	receiver.RegisterProxy(p.proxies, sendFn)
	return p
}

func (p *Protocol[S, C]) ensureConfigurable(what string) {
	if p.bound {
		panic(fmt.Sprintf("cannot register %s after channels are bound", what))
	}
}

func send[S, C, T any](p *Protocol[S, C], registry *Registry[T], to any, msg message.Message[T]) error {
	payload, err := encode(p, registry, msg)
	if err != nil {
		return err
	}

	if direct, ok := to.(receiver.MessageReceiver); ok {
		return direct.SendMessage(p.channel, payload)
	}
	return p.proxies.SendMessage(to, p.channel, payload)
}

func encode[S, C, T any](p *Protocol[S, C], registry *Registry[T], msg message.Message[T]) ([]byte, error) {
	id := registry.IDOf(reflect.TypeOf(msg))
	if id < 0 {
		return nil, fmt.Errorf("%w: %T, is it registered?", ErrUnregisteredMessage, msg)
	}

	buf := buffer.NewWriter(p.types)
	if err := buf.WriteVarInt(uint32(id)); err != nil {
		return nil, err
	}
	if err := msg.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write message %T to buffer: %w", msg, err)
	}

	p.logger.Debugf("Encoded message %T with id %d (%d bytes)", msg, id, len(buf.Bytes()))
	return buf.Bytes(), nil
}
