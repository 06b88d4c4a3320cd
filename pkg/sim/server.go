// Package sim is the authoritative simulation core. A Server advances in
// discrete ticks: each call to Step drains the transport, applies every
// packet and flushes the replies.
package sim

import (
	"errors"
	"fmt"

	"github.com/QYUbit/ticksim/pkg/axlog"
	"github.com/QYUbit/ticksim/pkg/entity"
	"github.com/QYUbit/ticksim/pkg/protocol"
	"github.com/QYUbit/ticksim/pkg/session"
	"github.com/QYUbit/ticksim/pkg/transport"
)

var (
	ErrUnauthorizedMutation = errors.New("client does not own the entity")
	ErrUnknownSender        = errors.New("sender has not joined")
	ErrUnexpectedPacket     = errors.New("packet kind is not accepted from clients")
)

// Stats counts what happened to inbound packets since the server was
// created.
type Stats struct {
	Received     uint64
	Malformed    uint64
	Unauthorized uint64
	Unknown      uint64
	Unexpected   uint64
	Sent         uint64
	SendFailures uint64
}

type outgoing struct {
	to   transport.Endpoint
	data []byte
}

// Server is not safe for concurrent use. Exactly one goroutine may call
// Step; the getters must be called from that goroutine or between ticks.
type Server struct {
	transport transport.Transport
	logger    axlog.Logger

	tick     uint64
	sequence uint32
	entities *entity.Store
	clients  *session.Registry

	outbox []outgoing
	stats  Stats
}

type Option func(*Server)

func WithLogger(logger axlog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(t transport.Transport, opts ...Option) *Server {
	s := &Server{
		transport: t,
		logger:    axlog.Nop(),
		entities:  entity.NewStore(),
	}
	s.clients = session.NewRegistry(s.Now)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current tick, 0 before the first Step. During Step it
// is the tick being processed.
func (s *Server) Now() uint64 {
	return s.tick
}

func (s *Server) ClientCount() int {
	return s.clients.Count()
}

func (s *Server) EntityCount() int {
	return s.entities.Count()
}

// Entity looks up an entity by id. Unknown ids return an error wrapping
// entity.ErrNotFound.
func (s *Server) Entity(id entity.ID) (entity.Entity, error) {
	return s.entities.Get(id)
}

func (s *Server) Stats() Stats {
	return s.stats
}

// Step runs one tick to completion. Bad input is dropped per packet and
// never aborts the tick.
func (s *Server) Step() {
	s.tick++

	// Datagrams arriving during the drain wait for the next tick.
	pending := s.transport.Pending()
	for range pending {
		d, ok := s.transport.TryReceive()
		if !ok {
			break
		}
		s.stats.Received++

		if err := s.handle(d); err != nil {
			s.logger.Debug("Dropped packet", "tick", s.tick, "from", d.From, "error", err)
		}
	}

	s.flush()
}

func (s *Server) handle(d transport.Datagram) error {
	p, err := protocol.Decode(d.Data)
	if err != nil {
		s.stats.Malformed++
		return err
	}

	switch p := p.(type) {
	case protocol.Join:
		s.handleJoin(d.From)
		return nil
	case protocol.Move:
		return s.handleMove(d.From, p)
	case protocol.Welcome, protocol.Spawn:
		s.stats.Unexpected++
		return fmt.Errorf("%w: %s", ErrUnexpectedPacket, p.Kind())
	}

	panic(fmt.Sprintf("sim: unhandled packet %T", p))
}

func (s *Server) handleJoin(from transport.Endpoint) {
	client, isNew := s.clients.ResolveOrCreate(from)
	if !isNew {
		return
	}

	id := s.entities.CreateEntity()
	if err := s.clients.AssignEntity(client, id); err != nil {
		// A fresh client cannot already own an entity.
		panic(fmt.Sprintf("sim: assign entity %d to %s: %v", id, from, err))
	}

	s.logger.Info("Client joined", "tick", s.tick, "session", client.ID, "endpoint", from, "entity", id)

	s.announce(client, id)
}

// announce queues the join fan-out for a new client owning avatar.
// Every earlier client is resynced with all avatars, then the newcomer
// gets its welcome followed by every other avatar. The Nth join queues
// N*N packets, N of them to each client.
func (s *Server) announce(newcomer *session.Client, avatar entity.ID) {
	ids := s.entities.IDs()

	for _, c := range s.clients.Clients() {
		if c == newcomer {
			continue
		}
		for _, id := range ids {
			s.enqueueEntity(c.Endpoint, protocol.KindSpawn, id)
		}
	}

	s.enqueueEntity(newcomer.Endpoint, protocol.KindWelcome, avatar)
	for _, id := range ids {
		if id != avatar {
			s.enqueueEntity(newcomer.Endpoint, protocol.KindSpawn, id)
		}
	}
}

func (s *Server) handleMove(from transport.Endpoint, p protocol.Move) error {
	client, ok := s.clients.Lookup(from)
	if !ok {
		s.stats.Unknown++
		return ErrUnknownSender
	}

	if !s.clients.OwnsEntity(client, p.Target) {
		s.stats.Unauthorized++
		return fmt.Errorf("%w: %s moving %d", ErrUnauthorizedMutation, client.ID, p.Target)
	}

	return s.entities.SetPosition(p.Target, p.Position)
}

func (s *Server) enqueueEntity(to transport.Endpoint, kind protocol.Kind, id entity.ID) {
	e, err := s.entities.Get(id)
	if err != nil {
		s.logger.Error("Skipped notice for missing entity", "entity", id, "error", err)
		return
	}

	s.sequence++

	var data []byte
	switch kind {
	case protocol.KindWelcome:
		data = protocol.EncodeWelcome(s.sequence, e)
	default:
		data = protocol.EncodeSpawnNotice(s.sequence, e)
	}

	s.outbox = append(s.outbox, outgoing{to: to, data: data})
}

func (s *Server) flush() {
	for _, out := range s.outbox {
		if err := s.transport.Send(out.to, out.data); err != nil {
			s.stats.SendFailures++
			s.logger.Warn("Failed to send packet", "tick", s.tick, "to", out.to, "error", err)
			continue
		}
		s.stats.Sent++
	}

	clear(s.outbox)
	s.outbox = s.outbox[:0]
}
