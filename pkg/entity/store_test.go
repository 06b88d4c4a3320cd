package entity

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewStoreIsEmpty(t *testing.T) {
	s := NewStore()
	if s.Count() != 0 {
		t.Errorf("Expected 0 entities, got %d", s.Count())
	}
	if ids := s.IDs(); len(ids) != 0 {
		t.Errorf("Expected no ids, got %v", ids)
	}
}

func TestCreateEntityAllocatesSequentialIDs(t *testing.T) {
	s := NewStore()

	for want := ID(1); want <= 5; want++ {
		if got := s.CreateEntity(); got != want {
			t.Fatalf("Expected id %d, got %d", want, got)
		}
	}

	if s.Count() != 5 {
		t.Errorf("Expected 5 entities, got %d", s.Count())
	}
}

func TestCreateEntitySpawnsAtOrigin(t *testing.T) {
	s := NewStore()
	id := s.CreateEntity()

	e, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if e.ID != id {
		t.Errorf("Expected id %d, got %d", id, e.ID)
	}
	if e.Position != (Position{}) {
		t.Errorf("Expected origin, got %v", e.Position)
	}
}

func TestGetUnknownEntity(t *testing.T) {
	s := NewStore()
	s.CreateEntity()

	for _, id := range []ID{0, 2, 100} {
		if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%d): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestSetPosition(t *testing.T) {
	s := NewStore()
	id := s.CreateEntity()

	if err := s.SetPosition(id, Position{X: 1, Y: 1, Z: 2}); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}
	if err := s.SetPosition(id, Position{X: -3.5, Y: 0, Z: 9}); err != nil {
		t.Fatalf("SetPosition failed: %v", err)
	}

	e, _ := s.Get(id)
	if want := (Position{X: -3.5, Y: 0, Z: 9}); e.Position != want {
		t.Errorf("Expected %v, got %v", want, e.Position)
	}
}

func TestSetPositionUnknownEntity(t *testing.T) {
	s := NewStore()

	if err := s.SetPosition(7, Position{X: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("SetPosition must not create entities, got %d", s.Count())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	id := s.CreateEntity()

	e, _ := s.Get(id)
	e.Position.X = 42

	stored, _ := s.Get(id)
	if stored.Position.X != 0 {
		t.Errorf("Mutating a returned entity changed the store: %v", stored.Position)
	}
}

func TestIDsAscending(t *testing.T) {
	s := NewStore()
	for range 4 {
		s.CreateEntity()
	}

	if got, want := s.IDs(), []ID{1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
