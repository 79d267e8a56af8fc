package xscript

import "bytes"

// Range is a half-open view [Begin, End) into borrowed bytes, so that a
// value can be sliced, not copied, until it needs to outlive its source
// buffer. The request parser (parser.go) works on strings and does not
// use Range.
type Range struct {
	data  []byte
	Begin int
	End   int
}

// NewRange wraps the whole of data as a Range.
func NewRange(data []byte) Range {
	return Range{data: data, Begin: 0, End: len(data)}
}

// Bytes returns the borrowed slice this Range denotes.
func (r Range) Bytes() []byte {
	return r.data[r.Begin:r.End]
}

// String copies the Range's bytes into a new string.
func (r Range) String() string {
	return string(r.Bytes())
}

// Len returns the number of bytes in the Range.
func (r Range) Len() int {
	return r.End - r.Begin
}

// Empty reports whether the Range has zero length.
func (r Range) Empty() bool {
	return r.Begin >= r.End
}

// Slice returns the sub-range [begin, end) relative to this Range, clamped
// to its bounds.
func (r Range) Slice(begin, end int) Range {
	if begin < 0 {
		begin = 0
	}
	if end > r.Len() {
		end = r.Len()
	}
	if begin > end {
		begin = end
	}
	return Range{data: r.data, Begin: r.Begin + begin, End: r.Begin + end}
}

// Split divides the Range on every occurrence of sep, like bytes.Split but
// without allocating copies of the pieces.
func (r Range) Split(sep byte) []Range {
	var out []Range
	start := 0
	b := r.Bytes()
	for i := 0; i < len(b); i++ {
		if b[i] == sep {
			out = append(out, r.Slice(start, i))
			start = i + 1
		}
	}
	out = append(out, r.Slice(start, len(b)))
	return out
}

// TrimSpace returns the Range with leading/trailing ASCII whitespace removed.
func (r Range) TrimSpace() Range {
	b := r.Bytes()
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	j := len(b)
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return r.Slice(i, j)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// IndexByte returns the index of the first occurrence of c, or -1.
func (r Range) IndexByte(c byte) int {
	return bytes.IndexByte(r.Bytes(), c)
}

// Equal reports whether two Ranges hold bytewise-equal content.
func (r Range) Equal(other Range) bool {
	return bytes.Equal(r.Bytes(), other.Bytes())
}
