package xscript

import "golang.org/x/net/idna"

// ToASCII/ToUnicode implement the RFC 3492 punycode hostname handling
// supplemented from original_source/ (vhost lookup there normalizes
// internationalized domain names before matching a vhost's Host
// configuration; the spec's distillation does not mention this, but any
// deployment serving non-ASCII hostnames needs it — see DESIGN.md §10).
// Grounded on x/net/idna, the ecosystem's IDNA/punycode implementation,
// rather than hand-rolling RFC 3492.
func ToASCII(hostname string) (string, error) { return idna.Lookup.ToASCII(hostname) }

func ToUnicode(hostname string) (string, error) { return idna.Lookup.ToUnicode(hostname) }
