package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"testing"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/QYUbit/ticksim/pkg/transport"
	"github.com/QYUbit/ticksim/pkg/transport/tlsconf"
)

func startTransport(t *testing.T) *QuicTransport {
	t.Helper()

	tlsCfg, err := tlsconf.SelfSigned(time.Hour, NextProto)
	if err != nil {
		t.Fatalf("SelfSigned failed: %v", err)
	}

	tr := NewQuicTransport("127.0.0.1:0", Options{TLSConfig: tlsCfg})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestDatagramRoundTrip(t *testing.T) {
	tr := startTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(ctx, tr.Addr(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{NextProto},
	}, &quic.Config{EnableDatagrams: true})
	if err != nil {
		t.Fatalf("DialAddr failed: %v", err)
	}
	defer conn.CloseWithError(0, "")

	if err := conn.SendDatagram([]byte{0}); err != nil {
		t.Fatalf("SendDatagram failed: %v", err)
	}

	var d transport.Datagram
	for {
		var ok bool
		if d, ok = tr.TryReceive(); ok {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("Timed out waiting for datagram")
		case <-time.After(time.Millisecond):
		}
	}

	if len(d.Data) != 1 || d.Data[0] != 0 {
		t.Errorf("Unexpected payload %v", d.Data)
	}

	peers := tr.Peers()
	if len(peers) != 1 || peers[0] != d.From {
		t.Errorf("Expected peers [%s], got %v", d.From, peers)
	}

	if err := tr.Send(d.From, []byte{1, 2}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	reply, err := conn.ReceiveDatagram(ctx)
	if err != nil {
		t.Fatalf("ReceiveDatagram failed: %v", err)
	}
	if len(reply) != 2 || reply[1] != 2 {
		t.Errorf("Unexpected reply %v", reply)
	}
}

func TestSendToUnknownEndpoint(t *testing.T) {
	tr := startTransport(t)

	err := tr.Send(transport.Endpoint{Address: "127.0.0.1", Port: 1}, []byte{0})
	if !errors.Is(err, transport.ErrEndpointNotFound) {
		t.Errorf("Expected ErrEndpointNotFound, got %v", err)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	tr := NewQuicTransport("127.0.0.1:0", Options{})
	if err := tr.Close(); !errors.Is(err, ErrTransportNotStarted) {
		t.Errorf("Expected ErrTransportNotStarted, got %v", err)
	}
	if !tr.quicConfig.EnableDatagrams {
		t.Error("Expected datagrams to be enabled")
	}
}
