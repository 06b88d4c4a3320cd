package quic

import (
	"context"
	"errors"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/ticksim/pkg/transport"
)

// sendBufferSize bounds one peer's outgoing datagrams. A join resyncs
// every avatar to every earlier peer, so past this many clients a single
// tick overflows it and the extra spawn notices are dropped.
const sendBufferSize = 256

var ErrSendBufferFull = errors.New("peer send buffer is full")

type peer struct {
	endpoint transport.Endpoint
	conn     *quic.Conn
	send     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(ep transport.Endpoint, conn *quic.Conn) *peer {
	return &peer{
		endpoint: ep,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

func (p *peer) enqueue(data []byte) error {
	select {
	case <-p.done:
		return transport.ErrEndpointNotFound
	default:
	}

	select {
	case p.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *peer) close(reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.CloseWithError(0, reason)
	})
}

func (p *peer) datagramPump(ctx context.Context, t *QuicTransport) {
	defer t.unregister(p)

	for {
		data, err := p.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}

		if !t.inbox.Push(transport.Datagram{Data: data, From: p.endpoint}) {
			t.logger.Warn("Inbox full, dropped datagram", "from", p.endpoint)
		}
	}
}

// writePump is the only writer of a peer, so datagrams to one endpoint
// leave in Send order.
func (p *peer) writePump(ctx context.Context, t *QuicTransport) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.conn.SendDatagram(data); err != nil {
				t.logger.Warn("Failed sending datagram", "to", p.endpoint, "error", err)
			}
		}
	}
}
