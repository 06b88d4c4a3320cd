package websockets

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/QYUbit/ticksim/pkg/transport"
)

var ErrSendBufferFull = errors.New("peer send buffer is full")

type peer struct {
	endpoint transport.Endpoint
	conn     *websocket.Conn
	send     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(ep transport.Endpoint, conn *websocket.Conn) *peer {
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

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		p.conn.Close()
	})
}

func (p *peer) readPump(t *Transport) {
	defer t.unregister(p)

	for {
		typ, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("Unexpected close", "endpoint", p.endpoint, "error", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}

		if !t.inbox.Push(transport.Datagram{Data: data, From: p.endpoint}) {
			t.logger.Warn("Inbox full, dropped message", "from", p.endpoint)
		}
	}
}

func (p *peer) writePump(t *Transport) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				t.logger.Warn("Failed writing message", "to", p.endpoint, "error", err)
				t.unregister(p)
				return
			}
		}
	}
}
