// Package engine implements the concurrent inverted index for short-lived
// event documents: per-term posting lists, a wall-clock/capacity driven
// expiration table, a single-writer changeset, the periodic maintenance
// loop that publishes staged edits, a bounded update pipeline, and the
// query executor that ranks candidate documents.
package engine

import "math"

// DocId uniquely identifies a document across its lifetime. Assigned by
// the client, not generated internally.
type DocId uint64

// TermId is an opaque 64-bit feature identifier. The high bits conventionally
// encode a feature-space namespace and the low bits a within-space feature,
// but the engine never interprets either half — it only needs equality and
// hashability.
type TermId uint64

// TermWeight is the weight attached to a single (doc, term) posting.
type TermWeight float32

// ExpireTime is a monotonic seconds-since-epoch deadline.
type ExpireTime int64

// Valid reports whether w is usable as a posting weight: finite and
// non-negative.
func (w TermWeight) Valid() bool {
	f := float64(w)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}
