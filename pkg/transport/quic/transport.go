// Package quic implements transport.Transport with QUIC datagrams using
// quic-go. Each accepted connection is one endpoint, named by its remote
// address.
package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/transport"
)

const NextProto = "ticksim-quic"

var ErrTransportNotStarted = errors.New("quic transport has not been started")

// Implements transport.Transport
type QuicTransport struct {
	address    string
	tlsConfig  *tls.Config
	quicConfig *quic.Config
	logger     axlog.Logger

	listener *quic.Listener
	inbox    *transport.Inbox

	peers   map[transport.Endpoint]*peer
	peersMu sync.RWMutex

	closed          atomic.Bool
	closeOnce       sync.Once
	cancel          context.CancelFunc
	connectionsDone chan struct{}
}

type Options struct {
	TLSConfig  *tls.Config
	QuicConfig *quic.Config
	InboxLimit int
	Logger     axlog.Logger
}

func NewQuicTransport(address string, o Options) *QuicTransport {
	var config *quic.Config
	if o.QuicConfig != nil {
		config = o.QuicConfig.Clone()
	} else {
		config = &quic.Config{}
	}
	config.EnableDatagrams = true

	logger := o.Logger
	if logger == nil {
		logger = axlog.Nop()
	}

	return &QuicTransport{
		address:    address,
		tlsConfig:  o.TLSConfig,
		quicConfig: config,
		logger:     logger,
		inbox:      transport.NewInbox(o.InboxLimit),
		peers:      make(map[transport.Endpoint]*peer),
	}
}

func (t *QuicTransport) Start(ctx context.Context) error {
	listener, err := quic.ListenAddr(t.address, t.tlsConfig, t.quicConfig)
	if err != nil {
		return fmt.Errorf("listen quic %s: %w", t.address, err)
	}
	t.listener = listener

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.connectionsDone = make(chan struct{})

	go t.acceptConnections(ctx)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (t *QuicTransport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *QuicTransport) acceptConnections(ctx context.Context) {
	defer close(t.connectionsDone)

	for {
		conn, err := t.listener.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, quic.ErrServerClosed) {
				return
			}
			t.logger.Error("Failed accepting connection", "error", err)
			continue
		}

		ep, err := transport.EndpointFromAddr(conn.RemoteAddr())
		if err != nil {
			conn.CloseWithError(0x0a, "invalid address")
			continue
		}

		t.register(ctx, newPeer(ep, conn))
	}
}

func (t *QuicTransport) register(ctx context.Context, p *peer) {
	t.peersMu.Lock()
	if old, ok := t.peers[p.endpoint]; ok {
		old.close("replaced")
	}
	t.peers[p.endpoint] = p
	t.peersMu.Unlock()

	t.logger.Debug("Peer connected", "endpoint", p.endpoint)

	go p.datagramPump(ctx, t)
	go p.writePump(ctx, t)
}

func (t *QuicTransport) unregister(p *peer) {
	t.peersMu.Lock()
	if t.peers[p.endpoint] == p {
		delete(t.peers, p.endpoint)
	}
	t.peersMu.Unlock()

	p.close("disconnected")
	t.logger.Debug("Peer disconnected", "endpoint", p.endpoint)
}

func (t *QuicTransport) TryReceive() (transport.Datagram, bool) {
	return t.inbox.Pop()
}

func (t *QuicTransport) Pending() int {
	return t.inbox.Len()
}

func (t *QuicTransport) Send(to transport.Endpoint, data []byte) error {
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

// Peers lists the endpoints with an open connection.
func (t *QuicTransport) Peers() []transport.Endpoint {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()

	eps := make([]transport.Endpoint, 0, len(t.peers))
	for ep := range t.peers {
		eps = append(eps, ep)
	}
	return eps
}

func (t *QuicTransport) Close() error {
	if t.listener == nil {
		return ErrTransportNotStarted
	}

	var lastError error

	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.cancel()

		lastError = t.listener.Close()
		<-t.connectionsDone

		t.peersMu.Lock()
		for ep, p := range t.peers {
			p.close("server closing")
			delete(t.peers, ep)
		}
		t.peersMu.Unlock()

		t.inbox.Clear()
	})

	return lastError
}
