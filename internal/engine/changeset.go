package engine

// EditOp identifies the kind of edit a Changeset entry applies.
type EditOp uint8

const (
	// OpUpsert inserts or replaces a (term, doc) posting.
	OpUpsert EditOp = iota
	// OpDelete removes a (term, doc) posting; a no-op if absent.
	OpDelete
)

// Edit is one staged mutation of the PostingIndex.
type Edit struct {
	Op     EditOp
	Term   TermId
	Doc    DocId
	Weight TermWeight
}

// Changeset is an ordered, write-only log of pending edits. It accumulates
// everything staged by update/batch_update between two apply calls; apply
// drains it in one pass and clears it. Not safe for concurrent use — the
// EventIndex only ever touches it while holding its changeset mutex.
type Changeset struct {
	edits []Edit
}

// Stage appends e to the end of the log.
func (c *Changeset) Stage(e Edit) {
	c.edits = append(c.edits, e)
}

// Len returns the number of staged edits.
func (c *Changeset) Len() int {
	return len(c.edits)
}

// Clear empties the log. Called once its contents have been published.
func (c *Changeset) Clear() {
	c.edits = c.edits[:0]
}

// drain returns edits prefixed by expireDeletes and clears the changeset.
// Prepending the expiration-driven deletes means that if the changeset also
// holds a later upsert for the same (term, doc) — staged by a producer
// before this apply ran — the upsert is reduced after the delete and wins,
// preserving re-insert-wins semantics.
func (c *Changeset) drain(expireDeletes []Edit) []Edit {
	combined := make([]Edit, 0, len(expireDeletes)+len(c.edits))
	combined = append(combined, expireDeletes...)
	combined = append(combined, c.edits...)
	c.Clear()
	return combined
}
