// Package entity holds the spawned world objects of a simulation.
//
// The store is a plain data container: it allocates identifiers and
// answers lookups, but knows nothing about who may mutate what. Ownership
// is enforced by the caller.
package entity

import (
	"errors"
	"fmt"
	"slices"
)

var ErrNotFound = errors.New("entity not found")

// ID identifies an entity. The first allocated ID is 1; zero is never
// handed out.
type ID uint32

type Position struct {
	X, Y, Z float32
}

func (p Position) String() string {
	return fmt.Sprintf("{%.2f, %.2f, %.2f}", p.X, p.Y, p.Z)
}

type Entity struct {
	ID       ID
	Position Position
}

// Store is not safe for concurrent use. The simulation owns it and only
// touches it from inside a tick.
type Store struct {
	lastID   ID
	entities map[ID]*Entity
}

func NewStore() *Store {
	return &Store{
		entities: make(map[ID]*Entity),
	}
}

// CreateEntity allocates the next identifier and spawns an entity at the
// origin.
func (s *Store) CreateEntity() ID {
	s.lastID++
	id := s.lastID
	s.entities[id] = &Entity{ID: id}
	return id
}

// Get returns a copy of the entity.
func (s *Store) Get(id ID) (Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("get %d: %w", id, ErrNotFound)
	}
	return *e, nil
}

func (s *Store) SetPosition(id ID, pos Position) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("set position of %d: %w", id, ErrNotFound)
	}
	e.Position = pos
	return nil
}

func (s *Store) Count() int {
	return len(s.entities)
}

// IDs lists all identifiers in ascending order.
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
