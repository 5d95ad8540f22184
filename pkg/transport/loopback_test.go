package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/message"
	"github.com/2008Choco/Networking/pkg/protocol"
	"github.com/2008Choco/Networking/pkg/transport"
)

var testChannel = data.MustKey("example", "test")

type serverListener interface {
	handlePing(msg *ping)
}

type clientListener interface {
	handlePong(msg *pong)
}

type ping struct {
	seq int32
}

func readPing(buf *buffer.ByteBuffer) (*ping, error) {
	seq, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &ping{seq: seq}, nil
}

func (m *ping) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteInt32(m.seq)
}

func (m *ping) Handle(listener serverListener) {
	listener.handlePing(m)
}

type pong struct {
	seq int32
}

func readPong(buf *buffer.ByteBuffer) (*pong, error) {
	seq, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &pong{seq: seq}, nil
}

func (m *pong) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteInt32(m.seq)
}

func (m *pong) Handle(listener clientListener) {
	listener.handlePong(m)
}

type recorder struct {
	pings chan *ping
	pongs chan *pong
}

func newRecorder() *recorder {
	return &recorder{pings: make(chan *ping, 16), pongs: make(chan *pong, 16)}
}

func (r *recorder) handlePing(msg *ping) { r.pings <- msg }
func (r *recorder) handlePong(msg *pong) { r.pongs <- msg }

func newPingPongProtocol() *protocol.Protocol[serverListener, clientListener] {
	return protocol.New[serverListener, clientListener](testChannel, 1,
		func(serverbound *protocol.Registry[serverListener]) {
			protocol.RegisterMessage(serverbound, readPing) // 0x00
		},
		func(clientbound *protocol.Registry[clientListener]) {
			protocol.RegisterMessage(clientbound, readPong) // 0x00
		},
	)
}

func TestLoopbackBothDirections(t *testing.T) {
	proto := newPingPongProtocol()
	rec := newRecorder()

	loopback := transport.NewLoopback[serverListener, clientListener](proto.CustomTypes())
	loopback.ResolveServerbound = func(msg message.Message[serverListener]) (serverListener, bool) {
		return rec, true
	}
	loopback.ResolveClientbound = func(msg message.Message[clientListener]) (clientListener, bool) {
		return rec, true
	}
	proto.RegisterChannels(loopback)

	require.NoError(t, proto.SendToServer(loopback.Server(), &ping{seq: 1}))
	require.NoError(t, proto.SendToClient(loopback.Client(), &pong{seq: 2}))

	// Loopback delivery is synchronous.
	require.Len(t, rec.pings, 1)
	assert.Equal(t, int32(1), (<-rec.pings).seq)
	require.Len(t, rec.pongs, 1)
	assert.Equal(t, int32(2), (<-rec.pongs).seq)
}

func TestLoopbackReportsConditions(t *testing.T) {
	proto := newPingPongProtocol()

	var unknown []int
	var readErrs []error

	loopback := transport.NewLoopback[serverListener, clientListener](proto.CustomTypes())
	loopback.OnUnknown = func(direction protocol.Direction, id int, payload []byte) {
		assert.Equal(t, protocol.Serverbound, direction)
		unknown = append(unknown, id)
	}
	loopback.OnReadError = func(direction protocol.Direction, payload []byte, err error) {
		readErrs = append(readErrs, err)
	}
	proto.RegisterChannels(loopback)

	// Unknown message id.
	require.NoError(t, loopback.Server().SendMessage(testChannel, []byte{0x07}))
	assert.Equal(t, []int{7}, unknown)

	// Truncated payload.
	require.NoError(t, loopback.Server().SendMessage(testChannel, []byte{0x00, 0x01}))
	require.Len(t, readErrs, 1)
	assert.ErrorIs(t, readErrs[0], buffer.ErrBufferUnderrun)
}

func TestLoopbackBeforeBinding(t *testing.T) {
	proto := newPingPongProtocol()
	loopback := transport.NewLoopback[serverListener, clientListener](proto.CustomTypes())

	err := proto.SendToServer(loopback.Server(), &ping{seq: 1})
	assert.Error(t, err)
}
