package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResponseCacheSetThenGetHit(t *testing.T) {
	c := newResponseCache(false, true)
	r := httptest.NewRequest(http.MethodGet, "/page?x=1", nil)
	headers := http.Header{"Content-Type": {"text/xml"}}

	c.Set(r, time.Minute, 200, headers, []byte("body"))

	entry := c.Get(r)
	if entry == nil {
		t.Fatal("expected cache hit")
	}
	if entry.status != 200 || string(entry.body) != "body" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestResponseCacheMissForDifferentQuery(t *testing.T) {
	c := newResponseCache(false, true)
	set := httptest.NewRequest(http.MethodGet, "/page?x=1", nil)
	c.Set(set, time.Minute, 200, http.Header{}, []byte("body"))

	other := httptest.NewRequest(http.MethodGet, "/page?x=2", nil)
	if c.Get(other) != nil {
		t.Error("expected miss for a different query string")
	}
}

func TestResponseCacheExpiredEntryEvicted(t *testing.T) {
	c := newResponseCache(false, true)
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	c.Set(r, time.Nanosecond, 200, http.Header{}, []byte("body"))
	time.Sleep(time.Millisecond)

	if c.Get(r) != nil {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry removed, Size()=%d", c.Size())
	}
}

func TestResponseCacheZeroTTLNeverStores(t *testing.T) {
	c := newResponseCache(false, true)
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	c.Set(r, 0, 200, http.Header{}, []byte("body"))
	if c.Get(r) != nil {
		t.Error("expected zero-TTL Set to be a no-op")
	}
}

func TestResponseCacheDisabledInDevModeWithoutOverride(t *testing.T) {
	c := newResponseCache(true, false)
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	c.Set(r, time.Minute, 200, http.Header{}, []byte("body"))
	if c.Get(r) != nil {
		t.Error("expected caching disabled in dev mode")
	}
}

func TestResponseCacheClearRemovesAllEntries(t *testing.T) {
	c := newResponseCache(false, true)
	r := httptest.NewRequest(http.MethodGet, "/page", nil)
	c.Set(r, time.Minute, 200, http.Header{}, []byte("body"))
	if c.Size() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Size())
	}
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("expected cache cleared, Size()=%d", c.Size())
	}
}

func TestResponseCachePruneRemovesOnlyExpired(t *testing.T) {
	c := newResponseCache(false, true)
	live := httptest.NewRequest(http.MethodGet, "/live", nil)
	dead := httptest.NewRequest(http.MethodGet, "/dead", nil)
	c.Set(live, time.Minute, 200, http.Header{}, []byte("live"))
	c.Set(dead, time.Nanosecond, 200, http.Header{}, []byte("dead"))
	time.Sleep(time.Millisecond)

	pruned := c.Prune()
	if pruned != 1 {
		t.Errorf("Prune() = %d, want 1", pruned)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}
