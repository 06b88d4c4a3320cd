// Package udp implements transport.Transport over a single UDP socket.
// The peer's source address and port form its endpoint.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/transport"
)

const maxDatagramSize = 1500

var bufferPool = &sync.Pool{
	New: func() any {
		buf := make([]byte, maxDatagramSize)
		return &buf
	},
}

type Transport struct {
	conn   net.PacketConn
	inbox  *transport.Inbox
	logger axlog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

type Options struct {
	// InboxLimit bounds queued datagrams; zero means unbounded.
	InboxLimit int
	Logger     axlog.Logger
}

// Listen binds addr and starts reading.
func Listen(addr string, o Options) (*Transport, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}

	logger := o.Logger
	if logger == nil {
		logger = axlog.Nop()
	}

	t := &Transport{
		conn:   conn,
		inbox:  transport.NewInbox(o.InboxLimit),
		logger: logger,
		done:   make(chan struct{}),
	}

	go t.readLoop()
	return t, nil
}

func (t *Transport) Addr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *Transport) readLoop() {
	defer close(t.done)

	for {
		bufp := bufferPool.Get().(*[]byte)
		buf := *bufp

		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			bufferPool.Put(bufp)
			if errors.Is(err, net.ErrClosed) || t.closed.Load() {
				return
			}
			t.logger.Error("Failed to read datagram", "error", err)
			continue
		}

		from, err := transport.EndpointFromAddr(addr)
		if err != nil {
			bufferPool.Put(bufp)
			t.logger.Warn("Dropped datagram from unparsable address", "addr", addr, "error", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		bufferPool.Put(bufp)

		if !t.inbox.Push(transport.Datagram{Data: data, From: from}) {
			t.logger.Warn("Inbox full, dropped datagram", "from", from)
		}
	}
}

func (t *Transport) TryReceive() (transport.Datagram, bool) {
	return t.inbox.Pop()
}

func (t *Transport) Pending() int {
	return t.inbox.Len()
}

func (t *Transport) Send(to transport.Endpoint, data []byte) error {
	if t.closed.Load() {
		return transport.ErrTransportClosed
	}

	addr, err := resolve(to)
	if err != nil {
		return err
	}

	n, err := t.conn.WriteTo(data, addr)
	if err != nil {
		return fmt.Errorf("write to %s: %w", to, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write to %s: %d of %d bytes", to, n, len(data))
	}
	return nil
}

func resolve(ep transport.Endpoint) (*net.UDPAddr, error) {
	if ip := net.ParseIP(ep.Address); ip != nil {
		return &net.UDPAddr{IP: ip, Port: ep.Port}, nil
	}
	addr, err := net.ResolveUDPAddr("udp", ep.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrInvalidAddress, err)
	}
	return addr, nil
}

// Close stops the read loop and releases the socket.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.conn.Close()
		<-t.done
		t.inbox.Clear()
	})
	return err
}
