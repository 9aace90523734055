package state

import (
	"testing"

	"custodia/storage"
)

type record struct {
	Amount string
	Count  uint64
}

func TestManagerRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	stored := record{Amount: "12345", Count: 7}
	if err := manager.KVPut([]byte("custody/test"), stored); err != nil {
		t.Fatalf("put: %v", err)
	}
	var loaded record
	ok, err := manager.KVGet([]byte("custody/test"), &loaded)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if loaded != stored {
		t.Fatalf("unexpected record %+v", loaded)
	}
}

func TestManagerMissingKey(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	var loaded record
	ok, err := manager.KVGet([]byte("custody/absent"), &loaded)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key")
	}
}

func TestManagerDistinctPrefixes(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	if err := manager.KVPut([]byte("custody/a"), record{Amount: "1"}); err != nil {
		t.Fatalf("put a: %v", err)
	}
	if err := manager.KVPut([]byte("custody/b"), record{Amount: "2"}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	var a, b record
	if _, err := manager.KVGet([]byte("custody/a"), &a); err != nil {
		t.Fatalf("get a: %v", err)
	}
	if _, err := manager.KVGet([]byte("custody/b"), &b); err != nil {
		t.Fatalf("get b: %v", err)
	}
	if a.Amount != "1" || b.Amount != "2" {
		t.Fatalf("keys collided: a=%+v b=%+v", a, b)
	}
}
