package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/panjf2000/ants"
	log "github.com/sirupsen/logrus"
	"github.com/smallnest/goframe"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/logs"
	"github.com/2008Choco/Networking/pkg/message"
	"github.com/2008Choco/Networking/pkg/protocol"
)

const defaultWorkers = 32

var (
	tcpEncoderConfig = goframe.EncoderConfig{
		ByteOrder:                       binary.BigEndian,
		LengthFieldLength:               4,
		LengthAdjustment:                0,
		LengthIncludesLengthFieldLength: false,
	}

	tcpDecoderConfig = goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldOffset:   0,
		LengthFieldLength:   4,
		LengthAdjustment:    0,
		InitialBytesToStrip: 4,
	}
)

// Side selects which half of the protocol a TCP binding plays. A server
// receives serverbound messages, a client clientbound ones; the opposite
// direction registration is a no-op on each side.
type Side int

const (
	Client Side = iota
	Server
)

func (s Side) String() string {
	if s == Server {
		return "server"
	}
	return "client"
}

// TCPConfig configures a TCP binding.
type TCPConfig struct {
	// Workers caps the goroutine pool handling inbound messages. Defaults
	// to 32.
	Workers int
	Logger  *log.Logger
}

// TCP is a ChannelRegistrar carrying protocol payloads over framed TCP
// connections. One instance serves one side of one or more protocols
// sharing the same listener types.
//
// Set the resolver and lifecycle fields before binding channels.
type TCP[S, C any] struct {
	// ResolveServerbound and ResolveClientbound pick the listener for a
	// decoded message arriving on a connection, or decline it.
	ResolveServerbound func(conn *Conn, msg message.Message[S]) (S, bool)
	ResolveClientbound func(conn *Conn, msg message.Message[C]) (C, bool)

	// OnConnect and OnDisconnect observe connection lifecycle. A server
	// typically tracks conns here to send clientbound messages later.
	OnConnect    func(conn *Conn)
	OnDisconnect func(conn *Conn, err error)

	side   Side
	types  buffer.TypeCodec
	pool   *ants.Pool
	logger *log.Logger

	mu          sync.Mutex
	serverbound map[data.NamespacedKey]*protocol.Registry[S]
	clientbound map[data.NamespacedKey]*protocol.Registry[C]
	listener    net.Listener
}

// NewTCP returns a TCP binding for the given side, decoding custom types
// through the given codec (typically Protocol.CustomTypes()).
func NewTCP[S, C any](side Side, types buffer.TypeCodec, conf TCPConfig) (*TCP[S, C], error) {
	workers := conf.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	logger := conf.Logger
	if logger == nil {
		logger = logs.NewLogger("TCP/" + side.String())
	}

	return &TCP[S, C]{
		side:        side,
		types:       types,
		pool:        pool,
		logger:      logger,
		serverbound: make(map[data.NamespacedKey]*protocol.Registry[S]),
		clientbound: make(map[data.NamespacedKey]*protocol.Registry[C]),
	}, nil
}

// RegisterServerboundHandler satisfies protocol.ChannelRegistrar. Only the
// server side receives serverbound messages.
func (t *TCP[S, C]) RegisterServerboundHandler(channel data.NamespacedKey, registry *protocol.Registry[S]) {
	if t.side != Server {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.serverbound[channel] = registry
}

// RegisterClientboundHandler satisfies protocol.ChannelRegistrar. Only the
// client side receives clientbound messages.
func (t *TCP[S, C]) RegisterClientboundHandler(channel data.NamespacedKey, registry *protocol.Registry[C]) {
	if t.side != Client {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clientbound[channel] = registry
}

// Listen starts accepting connections on addr. Server side only. Accepted
// connections are served on their own goroutines until the binding closes.
func (t *TCP[S, C]) Listen(addr string) error {
	if t.side != Server {
		return fmt.Errorf("cannot listen on a %s binding", t.side)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	go t.acceptLoop(listener)
	return nil
}

// Addr returns the listen address, once Listen has been called.
func (t *TCP[S, C]) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Dial connects to a server at addr and starts reading frames from it.
// Client side only. The returned Conn is the receiver to pass to
// Protocol.SendToServer.
func (t *TCP[S, C]) Dial(addr string) (*Conn, error) {
	if t.side != Client {
		return nil, fmt.Errorf("cannot dial from a %s binding", t.side)
	}

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	conn := newConn(raw)
	if t.OnConnect != nil {
		t.OnConnect(conn)
	}
	go t.readLoop(conn)
	return conn, nil
}

// Close stops the listener, if any, and releases the worker pool. Open
// connections are left to their owners.
func (t *TCP[S, C]) Close() error {
	t.mu.Lock()
	listener := t.listener
	t.listener = nil
	t.mu.Unlock()

	t.pool.Release()
	if listener != nil {
		return listener.Close()
	}
	return nil
}

func (t *TCP[S, C]) acceptLoop(listener net.Listener) {
	for {
		raw, err := listener.Accept()
		if err != nil {
			return
		}

		conn := newConn(raw)
		t.logger.Infof("Accepted connection from %s", conn.RemoteAddr())
		if t.OnConnect != nil {
			t.OnConnect(conn)
		}
		go t.readLoop(conn)
	}
}

func (t *TCP[S, C]) readLoop(conn *Conn) {
	for {
		frame, err := conn.fc.ReadFrame()
		if err != nil {
			if t.OnDisconnect != nil {
				t.OnDisconnect(conn, err)
			}
			return
		}

		channel, payload, err := splitFrame(frame)
		if err != nil {
			t.logger.Warnf("Discarding malformed frame from %s: %v", conn.RemoteAddr(), err)
			continue
		}

		t.dispatch(conn, channel, payload)
	}
}

func (t *TCP[S, C]) dispatch(conn *Conn, channel data.NamespacedKey, payload []byte) {
	receive := t.receiverFor(conn, channel)
	if receive == nil {
		t.logger.Warnf("Received message on unregistered channel %q from %s. Ignoring.", channel, conn.RemoteAddr())
		return
	}

	if err := t.pool.Submit(func() {
		receive(payload)
	}); err != nil {
		// Pool refused the task (closed or saturated); handle inline
		// rather than dropping the message.
		receive(payload)
	}
}

func (t *TCP[S, C]) receiverFor(conn *Conn, channel data.NamespacedKey) func(payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.side == Server {
		registry, ok := t.serverbound[channel]
		if !ok {
			return nil
		}
		in := &protocol.Inbound[S]{
			Registry: registry,
			Types:    t.types,
			Resolve: func(msg message.Message[S]) (S, bool) {
				var zero S
				if t.ResolveServerbound == nil {
					return zero, false
				}
				return t.ResolveServerbound(conn, msg)
			},
			Logger: t.logger,
		}
		return in.Receive
	}

	registry, ok := t.clientbound[channel]
	if !ok {
		return nil
	}
	in := &protocol.Inbound[C]{
		Registry: registry,
		Types:    t.types,
		Resolve: func(msg message.Message[C]) (C, bool) {
			var zero C
			if t.ResolveClientbound == nil {
				return zero, false
			}
			return t.ResolveClientbound(conn, msg)
		},
		Logger: t.logger,
	}
	return in.Receive
}
