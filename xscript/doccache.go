package xscript

import (
	"container/list"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheCounters exposes the {hits, misses, stored, excluded, expired}
// observability surface every cache strategy carries (spec.md §4.7).
type CacheCounters struct {
	Hits, Misses, Stored, Excluded, Expired int64
}

// CacheEntry is one stored block result: the serialized document bytes,
// its Tag, and the bookkeeping needed for expiry/prefetch (spec.md §4.7
// "Freshness").
type CacheEntry struct {
	Data             []byte
	Tag              Tag
	StoredAt         time.Time
	PrefetchRequested bool
}

// DocCache is the two-tier strategy cache: an in-process LRU per strategy
// name, with an optional distributed database/sql backend shared across
// process instances (spec.md §4.7). Grounded on the teacher's
// server/fragment_cache.go in-memory LRU-with-expiry shape, generalized
// to (a) hold arbitrary strategies by name rather than one fragment
// cache, and (b) fall through to a SQL-backed distributed tier when
// configured.
type DocCache struct {
	mu           sync.Mutex
	maxEntries   int
	prefetchRatio float64
	entries      map[string]*list.Element // key -> lru element
	order        *list.List               // list of *cacheNode, front = most recently used
	counters     CacheCounters
	perStrategy  map[string]*CacheCounters // supplemented from cache_usage_counter*.cpp (SPEC_FULL §10)

	distributed *sql.DB // optional; nil disables the distributed tier
}

type cacheNode struct {
	key   string
	entry CacheEntry
}

// NewDocCache returns a DocCache with the given in-process capacity and
// prefetch ratio (0 disables prefetch-before-expiry). db may be nil.
func NewDocCache(maxEntries int, prefetchRatio float64, db *sql.DB) *DocCache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &DocCache{
		maxEntries:    maxEntries,
		prefetchRatio: prefetchRatio,
		entries:       make(map[string]*list.Element),
		order:         list.New(),
		perStrategy:   make(map[string]*CacheCounters),
		distributed:   db,
	}
}

// FingerprintKey composes the cache key from the fixed-order components
// in spec.md §4.7 "Key composition": block identity, stylesheet mtimes,
// invoke arguments, selected headers, selected query args (sorted unless
// order-preserving), selected cookies.
func FingerprintKey(scriptPath string, blockIndex int, method, namespace string, stylesheetMtimes []time.Time, args []string, headerContribution []byte, selectedArgs map[string]string, preserveArgOrder bool, selectedCookies map[string]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00", scriptPath, blockIndex, method, namespace)
	for _, t := range stylesheetMtimes {
		fmt.Fprintf(h, "%d\x00", t.UnixNano())
	}
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	h.Write(headerContribution)
	h.Write([]byte{0})
	writeSortedMap(h, selectedArgs, preserveArgOrder)
	writeSortedMap(h, selectedCookies, false)
	return hex.EncodeToString(h.Sum(nil))
}

func writeSortedMap(h interface{ Write([]byte) (int, error) }, m map[string]string, preserveOrder bool) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	if !preserveOrder {
		sort.Strings(names)
	}
	for _, k := range names {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(m[k]))
		h.Write([]byte{0})
	}
}

// Load looks up key. It reports a miss if the entry is absent, expired
// (removed on the way out), or inside the prefetch window (the entry and
// its stale bytes are still returned so the caller can serve-while-revalidate,
// but ok is false so the caller knows to refresh it) — spec.md §4.7.
func (c *DocCache) Load(key string) (entry CacheEntry, stale []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.entries[key]
	if !found {
		if c.distributed != nil {
			if e, ok := c.loadDistributed(key); ok {
				c.counters.Hits++
				return e, nil, true
			}
		}
		c.counters.Misses++
		return CacheEntry{}, nil, false
	}
	node := el.Value.(*cacheNode)
	now := contextNow()

	if !node.entry.Tag.ExpireTime.IsZero() && now.After(node.entry.Tag.ExpireTime) {
		c.removeLocked(el)
		c.counters.Expired++
		c.counters.Misses++
		return CacheEntry{}, nil, false
	}

	if c.prefetchRatio > 0 && c.prefetchRatio < 1 && !node.entry.Tag.ExpireTime.IsZero() {
		window := node.entry.Tag.ExpireTime.Sub(node.entry.StoredAt)
		threshold := node.entry.StoredAt.Add(time.Duration(float64(window) * c.prefetchRatio))
		if !now.Before(threshold) && !node.entry.PrefetchRequested {
			node.entry.PrefetchRequested = true
			c.counters.Misses++
			return node.entry, node.entry.Data, false
		}
	}

	c.order.MoveToFront(el)
	c.counters.Hits++
	return node.entry, nil, true
}

// Save stores an entry, evicting the least-recently-used entry if the
// in-process tier is at capacity.
func (c *DocCache) Save(key string, data []byte, tag Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := CacheEntry{Data: data, Tag: tag, StoredAt: contextNow()}
	if el, found := c.entries[key]; found {
		el.Value.(*cacheNode).entry = entry
		c.order.MoveToFront(el)
	} else {
		if c.order.Len() >= c.maxEntries {
			back := c.order.Back()
			if back != nil {
				c.removeLocked(back)
			}
		}
		el := c.order.PushFront(&cacheNode{key: key, entry: entry})
		c.entries[key] = el
	}
	c.counters.Stored++
	if c.distributed != nil {
		c.saveDistributed(key, entry)
	}
}

// Exclude records that a result was not cached; invokeOne calls it when
// a block's result is an error or carries no document, and when a stale
// copy is served after a failed or timed-out refresh.
func (c *DocCache) Exclude() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Excluded++
}

func (c *DocCache) removeLocked(el *list.Element) {
	node := el.Value.(*cacheNode)
	delete(c.entries, node.key)
	c.order.Remove(el)
}

// Counters returns a snapshot of the observability counters.
func (c *DocCache) Counters() CacheCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// noteStrategy records one outcome ("hit", "miss", "stale-revalidate",
// "excluded") against the named cache strategy, supplementing the
// aggregate Counters() with a per-strategy breakdown (SPEC_FULL §10
// "Cache usage counters per strategy name", grounded on
// cache_usage_counter*.cpp) for the daemon's /__/devtools inspector.
func (c *DocCache) noteStrategy(name, outcome string) {
	if name == "" || outcome == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	counters, ok := c.perStrategy[name]
	if !ok {
		counters = &CacheCounters{}
		c.perStrategy[name] = counters
	}
	switch outcome {
	case "hit":
		counters.Hits++
	case "miss":
		counters.Misses++
	case "stale-revalidate":
		counters.Misses++
	case "excluded":
		counters.Excluded++
	}
}

// StrategyCounters returns a snapshot of the per-strategy-name
// observability counters.
func (c *DocCache) StrategyCounters() map[string]CacheCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]CacheCounters, len(c.perStrategy))
	for name, counters := range c.perStrategy {
		out[name] = *counters
	}
	return out
}

// loadDistributed/saveDistributed implement the distributed tier as the
// table xscript_cache keyed by cache_key (the fingerprint): `data` holds
// the entry's raw document bytes and the Tag's Last-Modified and expire
// times are stored as UnixNano integers in their own columns. The binary
// entry format of EncodeCacheEntry is not used here. Driver-agnostic: works unchanged over
// modernc.org/sqlite, go-sql-driver/mysql or lib/pq since it only uses
// parameterized placeholders and a BLOB/ bytea column.
func (c *DocCache) loadDistributed(key string) (CacheEntry, bool) {
	var blob []byte
	var lastModified, expireTime int64
	row := c.distributed.QueryRow(`SELECT data, last_modified, expire_time FROM xscript_cache WHERE cache_key = ?`, key)
	if err := row.Scan(&blob, &lastModified, &expireTime); err != nil {
		return CacheEntry{}, false
	}
	tag := Tag{Modified: true}
	if lastModified > 0 {
		tag.LastModified = time.Unix(0, lastModified)
	}
	if expireTime > 0 {
		tag.ExpireTime = time.Unix(0, expireTime)
	}
	return CacheEntry{Data: blob, Tag: tag, StoredAt: contextNow()}, true
}

func (c *DocCache) saveDistributed(key string, entry CacheEntry) {
	_, _ = c.distributed.Exec(
		`INSERT INTO xscript_cache (cache_key, data, last_modified, expire_time) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET data=excluded.data, last_modified=excluded.last_modified, expire_time=excluded.expire_time`,
		key, entry.Data, entry.Tag.LastModified.UnixNano(), entry.Tag.ExpireTime.UnixNano(),
	)
}

// EncodeCacheEntry renders an entry in the wire format from spec.md §6:
// an optional "Elapsed-time:" meta line, then length-prefixed key/value
// tuples for every reserved and user field.
func EncodeCacheEntry(elapsedMs int32, fields map[string][]byte) []byte {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("Elapsed-time:%d\r\n", elapsedMs))...)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		out = appendLengthPrefixed(out, []byte(k))
		out = appendLengthPrefixed(out, fields[k])
	}
	return out
}

// reservedCacheKeys lists keys that never carry user data (spec.md §6).
var reservedCacheKeys = map[string]bool{
	"elapsed-time": true, "expire-time": true, "last-modified": true,
}

func isReservedCacheKey(k string) bool { return reservedCacheKeys[strings.ToLower(k)] }
