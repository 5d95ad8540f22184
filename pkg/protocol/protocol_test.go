package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/protocol"
	"github.com/2008Choco/Networking/pkg/receiver"
)

var testChannel = data.MustKey("example", "test")

// Test listener surfaces. Handlers record what they saw.
type serverListener interface {
	handleGreeting(msg *greeting)
	handleCount(msg *count)
}

type clientListener interface {
	handleBroadcast(msg *broadcast)
}

type greeting struct {
	text string
}

func readGreeting(buf *buffer.ByteBuffer) (*greeting, error) {
	text, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return &greeting{text: text}, nil
}

func (m *greeting) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteString(m.text)
}

func (m *greeting) Handle(listener serverListener) {
	listener.handleGreeting(m)
}

type count struct {
	value int32
}

func readCount(buf *buffer.ByteBuffer) (*count, error) {
	value, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &count{value: value}, nil
}

func (m *count) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteInt32(m.value)
}

func (m *count) Handle(listener serverListener) {
	listener.handleCount(m)
}

type broadcast struct {
	text string
}

func readBroadcast(buf *buffer.ByteBuffer) (*broadcast, error) {
	text, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	return &broadcast{text: text}, nil
}

func (m *broadcast) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteString(m.text)
}

func (m *broadcast) Handle(listener clientListener) {
	listener.handleBroadcast(m)
}

// rogue is never registered anywhere.
type rogue struct{}

func (m *rogue) WriteTo(buf *buffer.ByteBuffer) error { return nil }
func (m *rogue) Handle(listener serverListener)       {}

// recordingListener implements both listener surfaces.
type recordingListener struct {
	greetings  []*greeting
	counts     []*count
	broadcasts []*broadcast
}

func (l *recordingListener) handleGreeting(msg *greeting)   { l.greetings = append(l.greetings, msg) }
func (l *recordingListener) handleCount(msg *count)         { l.counts = append(l.counts, msg) }
func (l *recordingListener) handleBroadcast(msg *broadcast) { l.broadcasts = append(l.broadcasts, msg) }

// capture implements receiver.MessageReceiver and records every payload.
type capture struct {
	channel  data.NamespacedKey
	payloads [][]byte
}

func (c *capture) SendMessage(channel data.NamespacedKey, payload []byte) error {
	c.channel = channel
	c.payloads = append(c.payloads, payload)
	return nil
}

func newTestProtocol() *protocol.Protocol[serverListener, clientListener] {
	return protocol.New[serverListener, clientListener](testChannel, 1,
		func(serverbound *protocol.Registry[serverListener]) {
			protocol.RegisterMessage(serverbound, readGreeting) // 0x00
			protocol.RegisterMessage(serverbound, readCount)    // 0x01
		},
		func(clientbound *protocol.Registry[clientListener]) {
			protocol.RegisterMessage(clientbound, readBroadcast) // 0x00
		},
	)
}

func TestSendEncodesIdAndPayload(t *testing.T) {
	proto := newTestProtocol()
	to := &capture{}

	require.NoError(t, proto.SendToServer(to, &greeting{text: "hi"}))

	require.Len(t, to.payloads, 1)
	assert.Equal(t, []byte{0x00, 0x02, 0x68, 0x69}, to.payloads[0])
	assert.Equal(t, testChannel, to.channel)
}

func TestSendSecondMessageId(t *testing.T) {
	proto := newTestProtocol()
	to := &capture{}

	require.NoError(t, proto.SendToServer(to, &count{value: 7}))

	require.Len(t, to.payloads, 1)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x07}, to.payloads[0])
}

func TestSendUnregisteredMessage(t *testing.T) {
	proto := newTestProtocol()
	to := &capture{}

	err := proto.SendToServer(to, &rogue{})
	assert.ErrorIs(t, err, protocol.ErrUnregisteredMessage)
	assert.Empty(t, to.payloads)
}

func TestSendToClient(t *testing.T) {
	proto := newTestProtocol()
	to := &capture{}

	require.NoError(t, proto.SendToClient(to, &broadcast{text: "yo"}))

	require.Len(t, to.payloads, 1)
	assert.Equal(t, []byte{0x00, 0x02, 0x79, 0x6f}, to.payloads[0])
}

type room struct {
	members []*capture
}

func TestSendThroughProxy(t *testing.T) {
	proto := newTestProtocol()
	proto.Configure(func(p *protocol.Protocol[serverListener, clientListener]) {
		protocol.RegisterProxiedReceiver(p, func(to *room, channel data.NamespacedKey, payload []byte) error {
			for _, member := range to.members {
				if err := member.SendMessage(channel, payload); err != nil {
					return err
				}
			}
			return nil
		})
	})

	a, b := &capture{}, &capture{}
	require.NoError(t, proto.SendToClient(&room{members: []*capture{a, b}}, &broadcast{text: "yo"}))

	require.Len(t, a.payloads, 1)
	require.Len(t, b.payloads, 1)
	assert.Equal(t, a.payloads[0], b.payloads[0])
}

func TestSendToUnproxiedReceiver(t *testing.T) {
	proto := newTestProtocol()

	err := proto.SendToServer("not a receiver", &greeting{text: "hi"})
	assert.ErrorIs(t, err, receiver.ErrNoProxy)
}

func TestDirectReceiverBypassesProxies(t *testing.T) {
	proto := newTestProtocol()

	// No proxies registered at all; a native receiver must still work.
	to := &capture{}
	require.NoError(t, proto.SendToServer(to, &greeting{text: "hi"}))
	assert.Len(t, to.payloads, 1)
}

func TestConfigureChains(t *testing.T) {
	proto := newTestProtocol()
	configured := false

	got := proto.Configure(func(p *protocol.Protocol[serverListener, clientListener]) {
		configured = true
	})

	assert.True(t, configured)
	assert.Same(t, proto, got)
}

func TestCannotProxyMessageReceiver(t *testing.T) {
	proto := newTestProtocol()

	assert.Panics(t, func() {
		protocol.RegisterProxiedReceiver(proto, func(to *capture, channel data.NamespacedKey, payload []byte) error {
			return nil
		})
	})
}

type fakeRegistrar struct {
	serverboundChannel data.NamespacedKey
	clientboundChannel data.NamespacedKey
	serverbound        *protocol.Registry[serverListener]
	clientbound        *protocol.Registry[clientListener]
}

func (r *fakeRegistrar) RegisterServerboundHandler(channel data.NamespacedKey, registry *protocol.Registry[serverListener]) {
	r.serverboundChannel = channel
	r.serverbound = registry
}

func (r *fakeRegistrar) RegisterClientboundHandler(channel data.NamespacedKey, registry *protocol.Registry[clientListener]) {
	r.clientboundChannel = channel
	r.clientbound = registry
}

func TestRegisterChannels(t *testing.T) {
	proto := newTestProtocol()
	registrar := &fakeRegistrar{}

	proto.RegisterChannels(registrar)

	assert.Equal(t, testChannel, registrar.serverboundChannel)
	assert.Equal(t, testChannel, registrar.clientboundChannel)
	require.NotNil(t, registrar.serverbound)
	require.NotNil(t, registrar.clientbound)
	assert.Equal(t, 2, registrar.serverbound.Count())
	assert.Equal(t, 1, registrar.clientbound.Count())
}

func TestNoRegistrationAfterBinding(t *testing.T) {
	proto := newTestProtocol()
	proto.RegisterChannels(&fakeRegistrar{})

	assert.Panics(t, func() {
		protocol.RegisterCustomType(proto, func(buf *buffer.ByteBuffer, value int32) error {
			return buf.WriteInt32(value)
		}, func(buf *buffer.ByteBuffer) (int32, error) {
			return buf.ReadInt32()
		})
	})
	assert.Panics(t, func() {
		protocol.RegisterProxiedReceiver(proto, func(to *room, channel data.NamespacedKey, payload []byte) error {
			return nil
		})
	})
}

func TestNamespacedKeyRegisteredByDefault(t *testing.T) {
	proto := newTestProtocol()
	k := data.MustKey("example", "rooms/lobby")

	w := buffer.NewWriter(proto.CustomTypes())
	require.NoError(t, w.WriteCustom(k))

	r := proto.NewReader(w.Bytes())
	got, err := buffer.ReadCustom[data.NamespacedKey](r)
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestChannelAndVersion(t *testing.T) {
	proto := newTestProtocol()
	assert.Equal(t, testChannel, proto.Channel())
	assert.Equal(t, 1, proto.Version())
}
