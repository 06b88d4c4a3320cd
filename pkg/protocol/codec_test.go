package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/QYUbit/ticksim/pkg/entity"
)

func TestDecodeJoin(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want Packet
	}{
		{"kind only", []byte{0}, Join{}},
		{"full header", []byte{0, 7, 0, 0, 0}, Join{Seq: 7}},
		{"trailing bytes", []byte{0, 1, 0, 0, 0, 99, 99}, Join{Seq: 1}},
	}

	for _, tt := range tests {
		got, err := Decode(tt.in)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %#v, want %#v", tt.name, got, tt.want)
		}
	}
}

func TestDecodeMoveFixedOffsets(t *testing.T) {
	b := make([]byte, EntitySize)
	b[0] = 3
	binary.LittleEndian.PutUint32(b[1:], 11)
	binary.LittleEndian.PutUint32(b[5:], 2)
	binary.LittleEndian.PutUint32(b[9:], math.Float32bits(1.0))
	binary.LittleEndian.PutUint32(b[13:], math.Float32bits(1.0))
	binary.LittleEndian.PutUint32(b[17:], math.Float32bits(2.0))

	p, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := Move{Seq: 11, Target: 2, Position: entity.Position{X: 1, Y: 1, Z: 2}}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Got %#v, want %#v", p, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	nan := EncodeMove(0, 1, entity.Position{})
	binary.LittleEndian.PutUint32(nan[13:], math.Float32bits(float32(math.NaN())))

	inf := EncodeMove(0, 1, entity.Position{})
	binary.LittleEndian.PutUint32(inf[17:], math.Float32bits(float32(math.Inf(1))))

	tests := []struct {
		name string
		in   []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"unknown kind", []byte{4, 0, 0, 0, 0}},
		{"high kind", []byte{255}},
		{"move kind only", []byte{3}},
		{"move short", EncodeMove(0, 1, entity.Position{})[:EntitySize-1]},
		{"welcome short", []byte{1, 0, 0, 0, 0, 1, 0, 0, 0}},
		{"spawn short", []byte{2}},
		{"move nan", nan},
		{"move inf", inf},
	}

	for _, tt := range tests {
		p, err := Decode(tt.in)
		if !errors.Is(err, ErrMalformedPacket) {
			t.Errorf("%s: expected ErrMalformedPacket, got %v (%#v)", tt.name, err, p)
		}
	}
}

func TestEncodeWelcomeLayout(t *testing.T) {
	b := EncodeWelcome(3, entity.Entity{ID: 1, Position: entity.Position{X: 0.5, Y: -1, Z: 4}})

	if len(b) != EntitySize {
		t.Fatalf("Expected %d bytes, got %d", EntitySize, len(b))
	}
	if b[0] != 1 {
		t.Errorf("Expected kind byte 1, got %d", b[0])
	}
	if seq := binary.LittleEndian.Uint32(b[1:]); seq != 3 {
		t.Errorf("Expected sequence 3, got %d", seq)
	}
	if id := binary.LittleEndian.Uint32(b[5:]); id != 1 {
		t.Errorf("Expected entity 1 at offset 5, got %d", id)
	}
	if x := math.Float32frombits(binary.LittleEndian.Uint32(b[9:])); x != 0.5 {
		t.Errorf("Expected x 0.5, got %v", x)
	}
	if z := math.Float32frombits(binary.LittleEndian.Uint32(b[17:])); z != 4 {
		t.Errorf("Expected z 4, got %v", z)
	}
}

func TestEncodeSpawnNoticeLayout(t *testing.T) {
	b := EncodeSpawnNotice(9, entity.Entity{ID: 42})

	if b[0] != byte(KindSpawn) {
		t.Errorf("Expected kind byte %d, got %d", KindSpawn, b[0])
	}
	if id := binary.LittleEndian.Uint32(b[5:]); id != 42 {
		t.Errorf("Expected entity 42 at offset 5, got %d", id)
	}

	p, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if _, ok := p.(Spawn); !ok {
		t.Errorf("Expected Spawn, got %T", p)
	}
}

func TestEncodeJoin(t *testing.T) {
	b := EncodeJoin(5)
	if len(b) != HeaderSize || b[0] != 0 {
		t.Fatalf("Unexpected join bytes %v", b)
	}
	if p, _ := Decode(b); p.Sequence() != 5 {
		t.Errorf("Expected sequence 5, got %d", p.Sequence())
	}
}

func TestEncodeDispatchesByKind(t *testing.T) {
	e := entity.Entity{ID: 2, Position: entity.Position{X: 1, Y: 2, Z: 3}}
	packets := []Packet{
		Join{Seq: 1},
		Move{Seq: 2, Target: 2, Position: e.Position},
		Welcome{Seq: 3, Entity: e},
		Spawn{Seq: 4, Entity: e},
	}

	for _, p := range packets {
		b := Encode(p)
		if Kind(b[0]) != p.Kind() {
			t.Errorf("%T: kind byte %d, want %d", p, b[0], p.Kind())
		}
		got, err := Decode(b)
		if err != nil {
			t.Errorf("%T: decode failed: %v", p, err)
			continue
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("Got %#v, want %#v", got, p)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindMove.String() != "move" || Kind(77).String() != "unknown" {
		t.Errorf("Unexpected kind names %q %q", KindMove, Kind(77))
	}
}
