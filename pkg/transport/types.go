// Package transport serves as the network abstraction consumed by the
// simulation. The simulation never blocks on it: it drains whatever is
// queued with TryReceive and hands replies to Send.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrTransportClosed  = errors.New("transport is closed")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrEndpointNotFound = errors.New("endpoint not connected")
)

// Endpoint identifies a peer. Two endpoints with the same address and a
// different port are different peers.
type Endpoint struct {
	Address string
	Port    int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// EndpointFromAddr converts a net.Addr of the form host:port.
func EndpointFromAddr(addr net.Addr) (Endpoint, error) {
	if addr == nil {
		return Endpoint{}, fmt.Errorf("nil addr: %w", ErrInvalidAddress)
	}
	switch a := addr.(type) {
	case *net.UDPAddr:
		return Endpoint{Address: a.IP.String(), Port: a.Port}, nil
	case *net.TCPAddr:
		return Endpoint{Address: a.IP.String(), Port: a.Port}, nil
	}
	return ParseEndpoint(addr.String())
}

func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q", ErrInvalidAddress, port)
	}
	return Endpoint{Address: host, Port: p}, nil
}

type Datagram struct {
	Data []byte
	From Endpoint
}

type Transport interface {
	// TryReceive returns the oldest pending datagram, or false when none
	// is queued. It never blocks.
	TryReceive() (Datagram, bool)
	// Pending reports how many datagrams are queued right now.
	Pending() int
	// Send is best effort. Datagrams to the same endpoint leave in the
	// order they were sent.
	Send(to Endpoint, data []byte) error
}
