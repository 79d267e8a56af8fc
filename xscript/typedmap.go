package xscript

import (
	"encoding/binary"
	"strings"
)

// TypedMap is an ordered string→TypedValue mapping with exact-match key
// comparison. Insertion order is preserved for iteration and for the
// canonical textual form; Erase/Set do not reorder existing keys.
type TypedMap struct {
	keys   []string
	values map[string]TypedValue
}

// NewTypedMap returns an empty TypedMap.
func NewTypedMap() *TypedMap {
	return &TypedMap{values: make(map[string]TypedValue)}
}

// Set inserts or overwrites a key's value, appending to the key order only
// on first insertion.
func (m *TypedMap) Set(key string, value TypedValue) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *TypedMap) Get(key string) (TypedValue, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Erase removes a single key.
func (m *TypedMap) Erase(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// ErasePrefix removes every key beginning with prefix, returning the count removed.
func (m *TypedMap) ErasePrefix(prefix string) int {
	var toRemove []string
	for _, k := range m.keys {
		if strings.HasPrefix(k, prefix) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		m.Erase(k)
	}
	return len(toRemove)
}

// Keys returns keys in insertion order.
func (m *TypedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *TypedMap) Len() int { return len(m.keys) }

// AsString renders the map as "key=value" pairs separated by "&", in
// insertion order — used as part of a TypedValue's canonical textual form.
func (m *TypedMap) AsString() string {
	var b strings.Builder
	for i, k := range m.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.values[k].AsString())
	}
	return b.String()
}

// Encode writes the length-prefixed key/value binary encoding (spec.md §6;
// the distributed cache tier does not use it): a u32 entry count followed by
// (u32 key_len, key_bytes, encoded TypedValue) tuples, in insertion order.
func (m *TypedMap) Encode() []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint32(out, uint32(len(m.keys)))
	for _, k := range m.keys {
		out = appendLengthPrefixed(out, []byte(k))
		out = append(out, m.values[k].Encode()...)
	}
	return out
}

// DecodeTypedMap reads a TypedMap previously produced by Encode, returning
// the map and the number of bytes consumed.
func DecodeTypedMap(b []byte) (*TypedMap, int, error) {
	if len(b) < 4 {
		return nil, 0, errTruncated("typed map count")
	}
	count := int(binary.LittleEndian.Uint32(b))
	pos := 4
	m := NewTypedMap()
	for i := 0; i < count; i++ {
		keyBytes, n, err := readLengthPrefixed(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		val, n, err := DecodeTypedValue(b[pos:])
		if err != nil {
			return nil, 0, err
		}
		pos += n
		m.Set(string(keyBytes), val)
	}
	return m, pos, nil
}
