package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/QYUbit/ticksim/pkg/entity"
)

var ErrMalformedPacket = errors.New("malformed packet")

var byteOrder = binary.LittleEndian

// Decode parses b. Any buffer that is empty, too short for its kind, of an
// unknown kind or carrying non-finite coordinates yields an error wrapping
// ErrMalformedPacket.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedPacket)
	}

	kind := Kind(b[0])
	switch kind {
	case KindJoin:
		return Join{Seq: readSequence(b)}, nil

	case KindMove:
		seq, e, err := decodeEntity(kind, b)
		if err != nil {
			return nil, err
		}
		return Move{Seq: seq, Target: e.ID, Position: e.Position}, nil

	case KindWelcome:
		seq, e, err := decodeEntity(kind, b)
		if err != nil {
			return nil, err
		}
		return Welcome{Seq: seq, Entity: e}, nil

	case KindSpawn:
		seq, e, err := decodeEntity(kind, b)
		if err != nil {
			return nil, err
		}
		return Spawn{Seq: seq, Entity: e}, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedPacket, b[0])
}

// Join only needs its kind byte. A truncated header reads as sequence 0.
func readSequence(b []byte) uint32 {
	if len(b) < HeaderSize {
		return 0
	}
	return byteOrder.Uint32(b[offsetSequence:])
}

func decodeEntity(kind Kind, b []byte) (uint32, entity.Entity, error) {
	if len(b) < EntitySize {
		return 0, entity.Entity{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrMalformedPacket, kind, EntitySize, len(b))
	}

	pos := entity.Position{
		X: math.Float32frombits(byteOrder.Uint32(b[offsetX:])),
		Y: math.Float32frombits(byteOrder.Uint32(b[offsetY:])),
		Z: math.Float32frombits(byteOrder.Uint32(b[offsetZ:])),
	}
	if !finite(pos.X) || !finite(pos.Y) || !finite(pos.Z) {
		return 0, entity.Entity{}, fmt.Errorf("%w: %s has non-finite position", ErrMalformedPacket, kind)
	}

	e := entity.Entity{
		ID:       entity.ID(byteOrder.Uint32(b[offsetEntity:])),
		Position: pos,
	}
	return byteOrder.Uint32(b[offsetSequence:]), e, nil
}

func finite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Encode serializes any packet.
func Encode(p Packet) []byte {
	switch p := p.(type) {
	case Join:
		return EncodeJoin(p.Seq)
	case Move:
		return EncodeMove(p.Seq, p.Target, p.Position)
	case Welcome:
		return EncodeWelcome(p.Seq, p.Entity)
	case Spawn:
		return EncodeSpawnNotice(p.Seq, p.Entity)
	}
	panic(fmt.Sprintf("protocol: unexpected packet %T", p))
}

func EncodeJoin(seq uint32) []byte {
	b := make([]byte, HeaderSize)
	putHeader(b, KindJoin, seq)
	return b
}

func EncodeMove(seq uint32, target entity.ID, pos entity.Position) []byte {
	return encodeEntity(KindMove, seq, entity.Entity{ID: target, Position: pos})
}

// EncodeWelcome acknowledges a join and names the granted avatar.
func EncodeWelcome(seq uint32, e entity.Entity) []byte {
	return encodeEntity(KindWelcome, seq, e)
}

// EncodeSpawnNotice announces an avatar, possibly one owned by another
// client.
func EncodeSpawnNotice(seq uint32, e entity.Entity) []byte {
	return encodeEntity(KindSpawn, seq, e)
}

func putHeader(b []byte, kind Kind, seq uint32) {
	b[0] = byte(kind)
	byteOrder.PutUint32(b[offsetSequence:], seq)
}

func encodeEntity(kind Kind, seq uint32, e entity.Entity) []byte {
	b := make([]byte, EntitySize)
	putHeader(b, kind, seq)
	byteOrder.PutUint32(b[offsetEntity:], uint32(e.ID))
	byteOrder.PutUint32(b[offsetX:], math.Float32bits(e.Position.X))
	byteOrder.PutUint32(b[offsetY:], math.Float32bits(e.Position.Y))
	byteOrder.PutUint32(b[offsetZ:], math.Float32bits(e.Position.Z))
	return b
}
