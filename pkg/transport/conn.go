package transport

import (
	"net"
	"sync"

	"github.com/smallnest/goframe"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
)

// Conn is one framed TCP connection. Each frame carries a channel key
// followed by a single protocol payload, so one payload always arrives as
// one unit. Conn implements receiver.MessageReceiver and can be handed
// directly to Protocol.SendToServer / SendToClient.
type Conn struct {
	fc  goframe.FrameConn
	raw net.Conn

	writeMu sync.Mutex
}

func newConn(raw net.Conn) *Conn {
	return &Conn{
		fc:  goframe.NewLengthFieldBasedFrameConn(tcpEncoderConfig, tcpDecoderConfig, raw),
		raw: raw,
	}
}

// SendMessage writes one frame containing the channel key and the payload.
func (c *Conn) SendMessage(channel data.NamespacedKey, payload []byte) error {
	buf := buffer.NewWriter(nil)
	if err := buf.WriteString(channel.String()); err != nil {
		return err
	}
	if err := buf.WriteBytes(payload); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.fc.WriteFrame(buf.Bytes())
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.fc.Close()
}

// splitFrame separates a received frame into its channel key and payload.
func splitFrame(frame []byte) (data.NamespacedKey, []byte, error) {
	buf := buffer.NewReader(nil, frame)

	channelString, err := buf.ReadString()
	if err != nil {
		return data.NamespacedKey{}, nil, err
	}
	channel, err := data.ParseKey(channelString, "")
	if err != nil {
		return data.NamespacedKey{}, nil, err
	}

	payload, err := buf.ReadBytes()
	if err != nil {
		return data.NamespacedKey{}, nil, err
	}
	return channel, payload, nil
}
