package xscript

import (
	"sync"
	"testing"
)

func TestStateSetGetRoundTrip(t *testing.T) {
	s := NewState()
	s.SetString("name", "alice")
	s.SetLong("age", 30)

	if got := s.Get("name"); got != "alice" {
		t.Errorf("Get(name) = %q, want alice", got)
	}
	age, ok := s.AsLong("age")
	if !ok || age != 30 {
		t.Errorf("AsLong(age) = %d, %v, want 30, true", age, ok)
	}
}

func TestStateGetMissingReturnsEmpty(t *testing.T) {
	s := NewState()
	if got := s.Get("nope"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if _, ok := s.AsLong("nope"); ok {
		t.Error("expected ok=false for missing key")
	}
	if s.Has("nope") {
		t.Error("expected Has=false for missing key")
	}
}

func TestStateIsTruthiness(t *testing.T) {
	s := NewState()
	s.SetString("zero_string", "0")
	s.SetLong("zero_long", 0)
	s.SetString("false_word", "false")
	s.SetString("present", "yes")

	if !s.Is("zero_string") {
		t.Error("literal string \"0\" should be truthy per spec.md §8")
	}
	if s.Is("zero_long") {
		t.Error("numeric zero should be falsy")
	}
	if s.Is("false_word") {
		t.Error("\"false\" should be falsy")
	}
	if !s.Is("present") {
		t.Error("non-empty string should be truthy")
	}
	if s.Is("missing") {
		t.Error("missing key should be falsy")
	}
}

func TestStateErasePrefix(t *testing.T) {
	s := NewState()
	s.SetString("a.1", "x")
	s.SetString("a.2", "y")
	s.SetString("b.1", "z")

	n := s.ErasePrefix("a.")
	if n != 2 {
		t.Fatalf("ErasePrefix removed %d, want 2", n)
	}
	if s.Has("a.1") || s.Has("a.2") {
		t.Error("expected prefixed keys erased")
	}
	if !s.Has("b.1") {
		t.Error("expected unrelated key to survive")
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetLong("k", int64(i))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Get("k")
		}()
	}
	wg.Wait()
}
