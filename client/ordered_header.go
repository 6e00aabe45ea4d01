package client

import (
	"net/http"
	"sort"
)

// headerEntry stores a single header key/value pair with its original casing.
type headerEntry struct {
	key   string
	value string
}

// OrderedHeader is a header list that keeps the exact casing and insertion
// order of its keys.
//
// The vendor's mobile app sends lowercase keys such as "x-client-version"
// alongside canonical ones such as "User-Agent". http.Header would
// canonicalise all of them, so the relay builds requests from an
// OrderedHeader instead.
//
// OrderedHeader is not safe for concurrent mutation. The relay builds a new
// one per vendor call.
type OrderedHeader struct {
	entries []headerEntry
}

// Add appends key/value, preserving the exact casing of key.
func (h *OrderedHeader) Add(key, value string) {
	h.entries = append(h.entries, headerEntry{key: key, value: value})
}

// Set replaces the first entry whose key matches key case-insensitively,
// keeping its position, and drops later duplicates. The surviving entry
// takes the casing of key. Without a match Set appends.
func (h *OrderedHeader) Set(key, value string) {
	canonKey := http.CanonicalHeaderKey(key)
	replaced := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) != canonKey {
			out = append(out, e)
			continue
		}
		if !replaced {
			out = append(out, headerEntry{key: key, value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, headerEntry{key: key, value: value})
	}
	h.entries = out
}

// Merge applies extra on top of h with Set semantics. Keys that are not yet
// present are appended in sorted order so the result is deterministic.
func (h *OrderedHeader) Merge(extra map[string]string) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, extra[k])
	}
}

// Del removes all entries whose key matches key case-insensitively.
func (h *OrderedHeader) Del(key string) {
	canonKey := http.CanonicalHeaderKey(key)
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) != canonKey {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the value of the first entry matching key case-insensitively,
// or "".
func (h *OrderedHeader) Get(key string) string {
	canonKey := http.CanonicalHeaderKey(key)
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) == canonKey {
			return e.value
		}
	}
	return ""
}

// Keys returns the entry keys in order, with their original casing.
func (h *OrderedHeader) Keys() []string {
	keys := make([]string, len(h.entries))
	for i, e := range h.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of entries (including duplicates).
func (h *OrderedHeader) Len() int { return len(h.entries) }

// Clone returns an independent copy.
func (h *OrderedHeader) Clone() *OrderedHeader {
	c := &OrderedHeader{entries: make([]headerEntry, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// ApplyToRequest replaces req.Header with the entries of h. Keys are written
// straight into the map so net/http keeps their casing on the wire.
func (h *OrderedHeader) ApplyToRequest(req *http.Request) {
	req.Header = h.ToHTTPHeader()
}

// ToHTTPHeader converts h to an http.Header keyed by the raw (non-canonical)
// keys. Order is lost; casing is kept.
func (h *OrderedHeader) ToHTTPHeader() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		out[e.key] = append(out[e.key], e.value)
	}
	return out
}
