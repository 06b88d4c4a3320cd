// Package protocol defines the fixed-layout binary packets exchanged
// between clients and the simulation.
//
// Every packet starts with a one byte kind and a little-endian uint32
// sequence number. Packets that carry an entity put its ID at offset 5
// followed by three float32 coordinates:
//
//	0      1          5         9     13    17    21
//	| kind | sequence | entity  |  x  |  y  |  z  |
package protocol

import "github.com/QYUbit/ticksim/pkg/entity"

type Kind uint8

const (
	KindJoin Kind = iota
	KindWelcome
	KindSpawn
	KindMove
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindWelcome:
		return "welcome"
	case KindSpawn:
		return "spawn"
	case KindMove:
		return "move"
	}
	return "unknown"
}

const (
	HeaderSize = 5
	EntitySize = HeaderSize + 4 + 3*4

	offsetSequence = 1
	offsetEntity   = 5
	offsetX        = 9
	offsetY        = 13
	offsetZ        = 17
)

// Packet is one of Join, Move, Welcome or Spawn.
type Packet interface {
	Kind() Kind
	Sequence() uint32
	sealed()
}

// Join asks the server for an avatar.
type Join struct {
	Seq uint32
}

// Move asks the server to place Target at Position.
type Move struct {
	Seq      uint32
	Target   entity.ID
	Position entity.Position
}

// Welcome tells a client which avatar it was granted.
type Welcome struct {
	Seq    uint32
	Entity entity.Entity
}

// Spawn tells a client that an avatar exists.
type Spawn struct {
	Seq    uint32
	Entity entity.Entity
}

func (Join) Kind() Kind    { return KindJoin }
func (Move) Kind() Kind    { return KindMove }
func (Welcome) Kind() Kind { return KindWelcome }
func (Spawn) Kind() Kind   { return KindSpawn }

func (p Join) Sequence() uint32    { return p.Seq }
func (p Move) Sequence() uint32    { return p.Seq }
func (p Welcome) Sequence() uint32 { return p.Seq }
func (p Spawn) Sequence() uint32   { return p.Seq }

func (Join) sealed()    {}
func (Move) sealed()    {}
func (Welcome) sealed() {}
func (Spawn) sealed()   {}
