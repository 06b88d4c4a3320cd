// Package session tracks the clients known to a simulation, keyed by the
// network endpoint they send from.
package session

import (
	"errors"

	"github.com/google/uuid"

	"github.com/QYUbit/ticksim/pkg/entity"
	"github.com/QYUbit/ticksim/pkg/transport"
)

var (
	ErrUnknownClient  = errors.New("client is not registered")
	ErrEntityAssigned = errors.New("client already owns an entity")
)

type Client struct {
	// ID only names the session in logs. It never goes on the wire.
	ID       uuid.UUID
	Endpoint transport.Endpoint
	JoinedAt uint64

	entity    entity.ID
	hasEntity bool
}

// Entity returns the avatar bound to the client, if any.
func (c *Client) Entity() (entity.ID, bool) {
	return c.entity, c.hasEntity
}

// Registry holds at most one client per endpoint. Clients are never
// removed. Like the entity store it is owned by the simulation and not
// safe for concurrent use.
type Registry struct {
	clients map[transport.Endpoint]*Client
	order   []*Client
	clock   func() uint64
}

// NewRegistry creates a registry. clock stamps JoinedAt and may be nil.
func NewRegistry(clock func() uint64) *Registry {
	if clock == nil {
		clock = func() uint64 { return 0 }
	}
	return &Registry{
		clients: make(map[transport.Endpoint]*Client),
		clock:   clock,
	}
}

// ResolveOrCreate returns the client for ep, registering a new one without
// an entity when ep has not been seen before.
func (r *Registry) ResolveOrCreate(ep transport.Endpoint) (*Client, bool) {
	if c, ok := r.clients[ep]; ok {
		return c, false
	}

	c := &Client{
		ID:       uuid.New(),
		Endpoint: ep,
		JoinedAt: r.clock(),
	}
	r.clients[ep] = c
	r.order = append(r.order, c)
	return c, true
}

func (r *Registry) Lookup(ep transport.Endpoint) (*Client, bool) {
	c, ok := r.clients[ep]
	return c, ok
}

// AssignEntity binds id as the avatar of c. It may be called once per
// client.
func (r *Registry) AssignEntity(c *Client, id entity.ID) error {
	if c == nil || r.clients[c.Endpoint] != c {
		return ErrUnknownClient
	}
	if c.hasEntity {
		return ErrEntityAssigned
	}
	c.entity = id
	c.hasEntity = true
	return nil
}

func (r *Registry) OwnsEntity(c *Client, id entity.ID) bool {
	if c == nil || !c.hasEntity {
		return false
	}
	return c.entity == id
}

func (r *Registry) Count() int {
	return len(r.order)
}

// Clients returns all clients in registration order.
func (r *Registry) Clients() []*Client {
	clients := make([]*Client, len(r.order))
	copy(clients, r.order)
	return clients
}
