// Package webtransport implements transport.Transport with WebTransport
// datagrams served over HTTP/3. Each session is one endpoint, named by
// the session's remote address.
package webtransport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/transport"
)

const (
	DefaultPath = "/webtransport"

	// Past this many clients one join's resync overflows a peer's buffer.
	sendBufferSize = 256
)

var ErrSendBufferFull = errors.New("peer send buffer is full")

// WebTransport implements transport.Transport using WebTransport protocol
type WebTransport struct {
	server *webtransport.Server
	conn   net.PacketConn
	inbox  *transport.Inbox
	logger axlog.Logger

	peers   map[transport.Endpoint]*peer
	peersMu sync.RWMutex

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
	ctx       context.Context
	serveDone chan struct{}
}

type Options struct {
	TLSConfig   *tls.Config
	Path        string
	CheckOrigin func(r *http.Request) bool
	InboxLimit  int
	Logger      axlog.Logger
}

func NewWebTransport(address string, o Options) *WebTransport {
	logger := o.Logger
	if logger == nil {
		logger = axlog.Nop()
	}

	path := o.Path
	if path == "" {
		path = DefaultPath
	}

	t := &WebTransport{
		inbox:  transport.NewInbox(o.InboxLimit),
		logger: logger,
		peers:  make(map[transport.Endpoint]*peer),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, t.HandleUpgrade)

	t.server = &webtransport.Server{
		H3: http3.Server{
			Addr:            address,
			TLSConfig:       o.TLSConfig,
			EnableDatagrams: true,
			Handler:         mux,
		},
		CheckOrigin: o.CheckOrigin,
	}

	return t
}

// Start binds the UDP socket before returning, so an unusable address
// is reported here rather than from the serving goroutine.
func (t *WebTransport) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", t.server.H3.Addr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", t.server.H3.Addr, err)
	}
	t.conn = conn

	ctx, cancel := context.WithCancel(ctx)
	t.ctx = ctx
	t.cancel = cancel
	t.serveDone = make(chan struct{})

	go func() {
		defer close(t.serveDone)
		if err := t.server.Serve(conn); err != nil && !errors.Is(err, http.ErrServerClosed) && !t.closed.Load() {
			t.logger.Error("WebTransport server failed", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (t *WebTransport) Addr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.LocalAddr().String()
}

func (t *WebTransport) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	if t.closed.Load() || t.ctx == nil {
		http.Error(w, transport.ErrTransportClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	session, err := t.server.Upgrade(w, r)
	if err != nil {
		t.logger.Warn("Failed upgrading connection", "remote", r.RemoteAddr, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ep, err := transport.EndpointFromAddr(session.RemoteAddr())
	if err != nil {
		session.CloseWithError(0, "invalid address")
		return
	}

	p := newPeer(ep, session)

	t.peersMu.Lock()
	if old, ok := t.peers[ep]; ok {
		old.close("replaced")
	}
	t.peers[ep] = p
	t.peersMu.Unlock()

	t.logger.Debug("Peer connected", "endpoint", ep)

	go p.datagramPump(t.ctx, t)
	go p.writePump(t.ctx, t)
}

func (t *WebTransport) unregister(p *peer) {
	t.peersMu.Lock()
	if t.peers[p.endpoint] == p {
		delete(t.peers, p.endpoint)
	}
	t.peersMu.Unlock()

	p.close("disconnected")
	t.logger.Debug("Peer disconnected", "endpoint", p.endpoint)
}

func (t *WebTransport) TryReceive() (transport.Datagram, bool) {
	return t.inbox.Pop()
}

func (t *WebTransport) Pending() int {
	return t.inbox.Len()
}

func (t *WebTransport) Send(to transport.Endpoint, data []byte) error {
	if t.closed.Load() {
		return transport.ErrTransportClosed
	}

	t.peersMu.RLock()
	p, ok := t.peers[to]
	t.peersMu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrEndpointNotFound, to)
	}
	return p.enqueue(data)
}

func (t *WebTransport) Close() error {
	var lastError error

	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.cancel != nil {
			t.cancel()
		}

		t.peersMu.Lock()
		for ep, p := range t.peers {
			p.close("server closing")
			delete(t.peers, ep)
		}
		t.peersMu.Unlock()

		lastError = t.server.Close()
		if t.conn != nil {
			if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) && lastError == nil {
				lastError = err
			}
		}
		if t.serveDone != nil {
			<-t.serveDone
		}

		t.inbox.Clear()
	})

	return lastError
}

type peer struct {
	endpoint transport.Endpoint
	session  *webtransport.Session
	send     chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(ep transport.Endpoint, session *webtransport.Session) *peer {
	return &peer{
		endpoint: ep,
		session:  session,
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
		p.session.CloseWithError(0, reason)
	})
}

func (p *peer) datagramPump(ctx context.Context, t *WebTransport) {
	defer t.unregister(p)

	for {
		data, err := p.session.ReceiveDatagram(ctx)
		if err != nil {
			return
		}

		if !t.inbox.Push(transport.Datagram{Data: data, From: p.endpoint}) {
			t.logger.Warn("Inbox full, dropped datagram", "from", p.endpoint)
		}
	}
}

func (p *peer) writePump(ctx context.Context, t *WebTransport) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.session.SendDatagram(data); err != nil {
				t.logger.Warn("Failed sending datagram", "to", p.endpoint, "error", err)
			}
		}
	}
}
