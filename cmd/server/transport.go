package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/QYUbit/ticksim/internal/config"
	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/transport"
	"github.com/QYUbit/ticksim/pkg/transport/quic"
	"github.com/QYUbit/ticksim/pkg/transport/tlsconf"
	"github.com/QYUbit/ticksim/pkg/transport/udp"
	"github.com/QYUbit/ticksim/pkg/transport/webtransport"
	websockets "github.com/QYUbit/ticksim/pkg/transport/websocket"
)

// serverTransport is a transport the process owns and must close.
type serverTransport interface {
	transport.Transport
	Close() error
	Addr() string
}

func openTransport(ctx context.Context, cfg config.Config, logger axlog.Logger) (serverTransport, error) {
	switch cfg.Transport {
	case config.TransportUDP:
		t, err := udp.Listen(cfg.Addr, udp.Options{InboxLimit: cfg.InboxLimit, Logger: logger})
		if err != nil {
			return nil, err
		}
		return udpTransport{t}, nil

	case config.TransportQUIC:
		tlsCfg, err := loadTLS(cfg, quic.NextProto)
		if err != nil {
			return nil, err
		}
		t := quic.NewQuicTransport(cfg.Addr, quic.Options{
			TLSConfig:  tlsCfg,
			InboxLimit: cfg.InboxLimit,
			Logger:     logger,
		})
		if err := t.Start(ctx); err != nil {
			return nil, err
		}
		return t, nil

	case config.TransportWebSocket:
		return openWebSocket(cfg, logger)

	case config.TransportWebTransport:
		tlsCfg, err := loadTLS(cfg, "h3")
		if err != nil {
			return nil, err
		}
		t := webtransport.NewWebTransport(cfg.Addr, webtransport.Options{
			TLSConfig:  tlsCfg,
			InboxLimit: cfg.InboxLimit,
			Logger:     logger,
		})
		if err := t.Start(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}

	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

func loadTLS(cfg config.Config, nextProto string) (*tls.Config, error) {
	if cfg.TLSCert != "" {
		return tlsconf.Load(cfg.TLSCert, cfg.TLSKey, nextProto)
	}
	return tlsconf.SelfSigned(24*time.Hour, nextProto)
}

type udpTransport struct {
	*udp.Transport
}

func (t udpTransport) Addr() string {
	return t.Transport.Addr().String()
}

type webSocketTransport struct {
	*websockets.Transport
	server   *http.Server
	listener net.Listener
}

func openWebSocket(cfg config.Config, logger axlog.Logger) (serverTransport, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", cfg.Addr, err)
	}

	t := websockets.NewTransport(websockets.Options{InboxLimit: cfg.InboxLimit, Logger: logger})

	mux := http.NewServeMux()
	mux.Handle("/ws", t)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return webSocketTransport{Transport: t, server: srv, listener: ln}, nil
}

func (t webSocketTransport) Addr() string {
	return t.listener.Addr().String()
}

func (t webSocketTransport) Close() error {
	t.Transport.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}
