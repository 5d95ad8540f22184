// Command pingpong runs one side of a minimal ping/pong exchange over TCP.
// Start a server first, then any number of clients against it:
//
//	pingpong -server -p 1234
//	pingpong -connect localhost:1234 -n 3
package main

import (
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/2008Choco/Networking/pkg/buffer"
	"github.com/2008Choco/Networking/pkg/data"
	"github.com/2008Choco/Networking/pkg/logs"
	"github.com/2008Choco/Networking/pkg/message"
	"github.com/2008Choco/Networking/pkg/protocol"
	"github.com/2008Choco/Networking/pkg/transport"
)

var channel = data.MustKey("pingpong", "v1")

type ServerboundListener interface {
	HandlePing(msg *Ping)
}

type ClientboundListener interface {
	HandlePong(msg *Pong)
}

type Ping struct {
	Seq int32
}

func ReadPing(buf *buffer.ByteBuffer) (*Ping, error) {
	seq, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &Ping{Seq: seq}, nil
}

func (m *Ping) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteInt32(m.Seq)
}

func (m *Ping) Handle(listener ServerboundListener) {
	listener.HandlePing(m)
}

type Pong struct {
	Seq int32
}

func ReadPong(buf *buffer.ByteBuffer) (*Pong, error) {
	seq, err := buf.ReadInt32()
	if err != nil {
		return nil, err
	}
	return &Pong{Seq: seq}, nil
}

func (m *Pong) WriteTo(buf *buffer.ByteBuffer) error {
	return buf.WriteInt32(m.Seq)
}

func (m *Pong) Handle(listener ClientboundListener) {
	listener.HandlePong(m)
}

func newProtocol() *protocol.Protocol[ServerboundListener, ClientboundListener] {
	return protocol.New[ServerboundListener, ClientboundListener](channel, 1,
		func(serverbound *protocol.Registry[ServerboundListener]) {
			protocol.RegisterMessage(serverbound, ReadPing) // 0x00
		},
		func(clientbound *protocol.Registry[ClientboundListener]) {
			protocol.RegisterMessage(clientbound, ReadPong) // 0x00
		},
	)
}

func main() {
	var (
		serverMode bool
		port       int
		connect    string
		count      int
	)
	flag.BoolVar(&serverMode, "server", false, "run as the server")
	flag.IntVar(&port, "p", 1234, "server listen port")
	flag.StringVar(&connect, "connect", "localhost:1234", "server address to dial")
	flag.IntVar(&count, "n", 3, "number of pings to send")
	flag.Parse()

	proto := newProtocol()
	if serverMode {
		runServer(proto, fmt.Sprintf("localhost:%d", port))
	} else {
		runClient(proto, connect, count)
	}
}

func runServer(proto *protocol.Protocol[ServerboundListener, ClientboundListener], addr string) {
	logger := logs.NewLogger("pingpong/server")

	tcp, err := transport.NewTCP[ServerboundListener, ClientboundListener](transport.Server, proto.CustomTypes(), transport.TCPConfig{Logger: logger})
	if err != nil {
		panic(err)
	}
	tcp.ResolveServerbound = func(conn *transport.Conn, msg message.Message[ServerboundListener]) (ServerboundListener, bool) {
		return &echoServer{proto: proto, conn: conn, logger: logger}, true
	}
	proto.RegisterChannels(tcp)

	if err := tcp.Listen(addr); err != nil {
		panic(err)
	}
	logger.Infof("Listening on %s", tcp.Addr())
	select {}
}

type echoServer struct {
	proto  *protocol.Protocol[ServerboundListener, ClientboundListener]
	conn   *transport.Conn
	logger *log.Logger
}

func (s *echoServer) HandlePing(msg *Ping) {
	s.logger.Infof("Ping %d from %s", msg.Seq, s.conn.RemoteAddr())
	if err := s.proto.SendToClient(s.conn, &Pong{Seq: msg.Seq}); err != nil {
		panic(err)
	}
}

type pongCounter struct {
	logger *log.Logger
	done   chan int32
}

func (c *pongCounter) HandlePong(msg *Pong) {
	c.logger.Infof("Pong %d", msg.Seq)
	c.done <- msg.Seq
}

func runClient(proto *protocol.Protocol[ServerboundListener, ClientboundListener], addr string, count int) {
	logger := logs.NewLogger("pingpong/client")

	tcp, err := transport.NewTCP[ServerboundListener, ClientboundListener](transport.Client, proto.CustomTypes(), transport.TCPConfig{Logger: logger})
	if err != nil {
		panic(err)
	}
	counter := &pongCounter{logger: logger, done: make(chan int32, count)}
	tcp.ResolveClientbound = func(conn *transport.Conn, msg message.Message[ClientboundListener]) (ClientboundListener, bool) {
		return counter, true
	}
	proto.RegisterChannels(tcp)

	conn, err := tcp.Dial(addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	for seq := 1; seq <= count; seq++ {
		if err := proto.SendToServer(conn, &Ping{Seq: int32(seq)}); err != nil {
			panic(err)
		}
	}
	for seq := 1; seq <= count; seq++ {
		<-counter.done
	}
	logger.Infof("Exchanged %d pings", count)
}
