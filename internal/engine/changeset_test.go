package engine

import "testing"

func TestChangesetStageAndLen(t *testing.T) {
	var c Changeset
	c.Stage(Edit{Op: OpUpsert, Term: 1, Doc: 1, Weight: 1.0})
	c.Stage(Edit{Op: OpUpsert, Term: 1, Doc: 2, Weight: 2.0})

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestChangesetDrainPrependsExpireDeletes(t *testing.T) {
	var c Changeset
	upsert := Edit{Op: OpUpsert, Term: 1, Doc: 1, Weight: 5.0}
	c.Stage(upsert)

	expireDelete := Edit{Op: OpDelete, Term: 1, Doc: 1}
	combined := c.drain([]Edit{expireDelete})

	if len(combined) != 2 {
		t.Fatalf("len(combined) = %d, want 2", len(combined))
	}
	if combined[0].Op != OpDelete {
		t.Errorf("combined[0].Op = %v, want OpDelete (expire deletes must come first)", combined[0].Op)
	}
	if combined[1] != upsert {
		t.Errorf("combined[1] = %+v, want the staged upsert to follow the delete", combined[1])
	}
}

func TestChangesetDrainClearsTheLog(t *testing.T) {
	var c Changeset
	c.Stage(Edit{Op: OpUpsert, Term: 1, Doc: 1, Weight: 1.0})
	c.drain(nil)

	if c.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", c.Len())
	}
}

func TestChangesetDrainWithNoExpireDeletes(t *testing.T) {
	var c Changeset
	c.Stage(Edit{Op: OpUpsert, Term: 1, Doc: 1, Weight: 1.0})
	combined := c.drain(nil)
	if len(combined) != 1 {
		t.Errorf("len(combined) = %d, want 1", len(combined))
	}
}
