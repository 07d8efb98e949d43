package engine

import (
	"bytes"
	"testing"
)

func TestPostingsSectionRoundTrip(t *testing.T) {
	idx := NewPostingIndex(4)
	idx.publish(1, PostingList{{Doc: 1, Weight: 1.5}, {Doc: 2, Weight: 2.5}})
	idx.publish(2, PostingList{{Doc: 3, Weight: 3.5}})

	var buf bytes.Buffer
	if err := WritePostingsSection(&buf, idx); err != nil {
		t.Fatalf("WritePostingsSection() error = %v", err)
	}

	restored, err := ReadPostingsSection(&buf)
	if err != nil {
		t.Fatalf("ReadPostingsSection() error = %v", err)
	}

	if restored.TermCount() != 2 {
		t.Fatalf("TermCount() = %d, want 2", restored.TermCount())
	}
	got := restored.Lookup(1)
	if len(got) != 2 || got[0].Doc != 1 || got[1].Doc != 2 {
		t.Errorf("Lookup(1) = %+v, want postings for docs 1 and 2", got)
	}
}

func TestPostingsSectionRejectsBadMagic(t *testing.T) {
	idx := NewPostingIndex(1)
	var buf bytes.Buffer
	if err := WritePostingsSection(&buf, idx); err != nil {
		t.Fatalf("WritePostingsSection() error = %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0] ^= 0xFF

	if _, err := ReadPostingsSection(bytes.NewReader(corrupted)); err == nil {
		t.Error("ReadPostingsSection() with corrupted magic should error")
	}
}

func TestPostingsSectionRejectsCRCMismatch(t *testing.T) {
	idx := NewPostingIndex(1)
	idx.publish(1, PostingList{{Doc: 1, Weight: 1.0}})
	var buf bytes.Buffer
	if err := WritePostingsSection(&buf, idx); err != nil {
		t.Fatalf("WritePostingsSection() error = %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	if _, err := ReadPostingsSection(bytes.NewReader(corrupted)); err == nil {
		t.Error("ReadPostingsSection() with corrupted CRC should error")
	}
}

func TestExpireSectionRoundTrip(t *testing.T) {
	tbl := NewExpireTable(100)
	tbl.Update(ExpireKey{Term: 1, Doc: 1}, 10)
	tbl.Update(ExpireKey{Term: 2, Doc: 2}, 20)

	var buf bytes.Buffer
	if err := WriteExpireSection(&buf, tbl); err != nil {
		t.Fatalf("WriteExpireSection() error = %v", err)
	}

	entries, err := ReadExpireSection(&buf)
	if err != nil {
		t.Fatalf("ReadExpireSection() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestEventIndexDumpLoadRoundTrip(t *testing.T) {
	idx := NewEventIndex(16, 1024)
	idx.Update(1, 100, 1.0, 1000)
	idx.Update(2, 100, 2.0, 2000)
	idx.Apply(0)

	var idxBuf, expBuf bytes.Buffer
	if err := idx.Dump(&idxBuf, &expBuf); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	restored := NewEventIndex(16, 1024)
	if err := restored.Load(&idxBuf, &expBuf); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := restored.Lookup(100)
	if len(got) != 2 {
		t.Fatalf("Lookup(100) after restore = %+v, want 2 postings", got)
	}
	if restored.ExpireTableSize() != 2 {
		t.Errorf("ExpireTableSize() after restore = %d, want 2", restored.ExpireTableSize())
	}
}
