// Package websockets implements transport.Transport over WebSocket binary
// messages using gorilla/websocket. Mount the transport as an
// http.Handler; every upgraded connection is one endpoint.
package websockets

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/transport"
)

const (
	writeWait = 10 * time.Second

	// Past this many clients one join's resync overflows a peer's buffer.
	sendBufferSize = 256
	maxMessageSize = 1500
)

type Transport struct {
	upgrader *websocket.Upgrader
	inbox    *transport.Inbox
	logger   axlog.Logger

	peers   map[transport.Endpoint]*peer
	peersMu sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
}

type Options struct {
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
	InboxLimit  int
	Logger      axlog.Logger
}

func NewTransport(o Options) *Transport {
	checkOrigin := o.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	logger := o.Logger
	if logger == nil {
		logger = axlog.Nop()
	}

	return &Transport{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  maxMessageSize,
			WriteBufferSize: maxMessageSize,
			CheckOrigin:     checkOrigin,
		},
		inbox:  transport.NewInbox(o.InboxLimit),
		logger: logger,
		peers:  make(map[transport.Endpoint]*peer),
	}
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.closed.Load() {
		http.Error(w, transport.ErrTransportClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ep, err := transport.ParseEndpoint(r.RemoteAddr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("Failed upgrading connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	p := newPeer(ep, conn)

	t.peersMu.Lock()
	if old, ok := t.peers[ep]; ok {
		old.close()
	}
	t.peers[ep] = p
	t.peersMu.Unlock()

	t.logger.Debug("Peer connected", "endpoint", ep)

	go p.writePump(t)
	p.readPump(t)
}

func (t *Transport) unregister(p *peer) {
	t.peersMu.Lock()
	if t.peers[p.endpoint] == p {
		delete(t.peers, p.endpoint)
	}
	t.peersMu.Unlock()

	p.close()
	t.logger.Debug("Peer disconnected", "endpoint", p.endpoint)
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

	t.peersMu.RLock()
	p, ok := t.peers[to]
	t.peersMu.RUnlock()

	if !ok {
		return transport.ErrEndpointNotFound
	}
	return p.enqueue(data)
}

// Close disconnects every peer. The http.Server hosting the transport is
// shut down by its owner.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)

		t.peersMu.Lock()
		for ep, p := range t.peers {
			p.close()
			delete(t.peers, ep)
		}
		t.peersMu.Unlock()

		t.inbox.Clear()
	})
	return nil
}
