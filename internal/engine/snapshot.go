package engine

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Snapshot files are little-endian, fixed-width, and begin with an 8-byte
// magic value and a 4-byte format version, mirroring the magic+version+CRC
// discipline of a segment file. Each section ends with its own CRC32 so a
// truncated or corrupted file is rejected rather than silently misread.
const (
	postingsMagic uint64 = 0x45564e5458504f53 // "EVNTXPOS"
	expireMagic   uint64 = 0x45564e5458455850 // "EVNTXEXP"
	snapshotVersion uint32 = 1
)

// WritePostingsSection writes idx's postings in deterministic (ascending
// TermId, ascending DocId) order: magic, version, term count, then for each
// term TermId | count | count*(DocId|TermWeight), and a trailing CRC32 over
// everything written after the version field.
func WritePostingsSection(w io.Writer, idx *PostingIndex) error {
	type termSnapshot struct {
		term TermId
		list PostingList
	}
	var terms []termSnapshot
	idx.IterateTerms(func(term TermId, list PostingList) bool {
		terms = append(terms, termSnapshot{term, list})
		return true
	})

	cw := newCRCWriter(w)
	if err := writeUint64(cw, postingsMagic); err != nil {
		return err
	}
	if err := writeUint32(cw, snapshotVersion); err != nil {
		return err
	}
	cw.resetCRC()

	if err := writeUint32(cw, uint32(len(terms))); err != nil {
		return err
	}
	for _, ts := range terms {
		if err := writeUint64(cw, uint64(ts.term)); err != nil {
			return err
		}
		if err := writeUint32(cw, uint32(len(ts.list))); err != nil {
			return err
		}
		for _, p := range ts.list {
			if err := writeUint64(cw, uint64(p.Doc)); err != nil {
				return err
			}
			if err := writeFloat32(cw, float32(p.Weight)); err != nil {
				return err
			}
		}
	}
	return writeUint32(w, cw.sum())
}

// ReadPostingsSection reads a postings section written by
// WritePostingsSection, validating magic, version, and CRC.
func ReadPostingsSection(r io.Reader) (*PostingIndex, error) {
	cr := newCRCReader(r)
	magic, err := readUint64(cr)
	if err != nil {
		return nil, fmt.Errorf("reading postings magic: %w", err)
	}
	if magic != postingsMagic {
		return nil, fmt.Errorf("postings section: bad magic %#x", magic)
	}
	version, err := readUint32(cr)
	if err != nil {
		return nil, fmt.Errorf("reading postings version: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("postings section: unsupported version %d", version)
	}
	cr.resetCRC()

	termCount, err := readUint32(cr)
	if err != nil {
		return nil, fmt.Errorf("reading term count: %w", err)
	}

	idx := NewPostingIndex(int(termCount))
	for t := uint32(0); t < termCount; t++ {
		term, err := readUint64(cr)
		if err != nil {
			return nil, fmt.Errorf("reading term id: %w", err)
		}
		count, err := readUint32(cr)
		if err != nil {
			return nil, fmt.Errorf("reading posting count: %w", err)
		}
		list := make(PostingList, count)
		for i := uint32(0); i < count; i++ {
			doc, err := readUint64(cr)
			if err != nil {
				return nil, fmt.Errorf("reading doc id: %w", err)
			}
			weight, err := readFloat32(cr)
			if err != nil {
				return nil, fmt.Errorf("reading weight: %w", err)
			}
			list[i] = Posting{Doc: DocId(doc), Weight: TermWeight(weight)}
		}
		idx.publish(TermId(term), list)
	}

	wantCRC, err := readTrailingCRC(r, cr)
	if err != nil {
		return nil, err
	}
	if got := cr.sum(); got != wantCRC {
		return nil, fmt.Errorf("postings section: crc mismatch (want %#x, got %#x)", wantCRC, got)
	}
	return idx, nil
}

// WriteExpireSection writes table's entries in ascending-deadline order:
// magic, version, count, then count*(TermId|DocId|ExpireTime), and a CRC32.
func WriteExpireSection(w io.Writer, table *ExpireTable) error {
	cw := newCRCWriter(w)
	if err := writeUint64(cw, expireMagic); err != nil {
		return err
	}
	if err := writeUint32(cw, snapshotVersion); err != nil {
		return err
	}
	cw.resetCRC()

	entries := table.Entries()
	if err := writeUint32(cw, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeUint64(cw, uint64(e.Key.Term)); err != nil {
			return err
		}
		if err := writeUint64(cw, uint64(e.Key.Doc)); err != nil {
			return err
		}
		if err := writeInt64(cw, int64(e.ExpireAt)); err != nil {
			return err
		}
	}
	return writeUint32(w, cw.sum())
}

// ReadExpireSection reads an expiration section written by
// WriteExpireSection, validating magic, version, and CRC.
func ReadExpireSection(r io.Reader) ([]ExpireEntry, error) {
	cr := newCRCReader(r)
	magic, err := readUint64(cr)
	if err != nil {
		return nil, fmt.Errorf("reading expire magic: %w", err)
	}
	if magic != expireMagic {
		return nil, fmt.Errorf("expire section: bad magic %#x", magic)
	}
	version, err := readUint32(cr)
	if err != nil {
		return nil, fmt.Errorf("reading expire version: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("expire section: unsupported version %d", version)
	}
	cr.resetCRC()

	count, err := readUint32(cr)
	if err != nil {
		return nil, fmt.Errorf("reading expire count: %w", err)
	}
	entries := make([]ExpireEntry, count)
	for i := uint32(0); i < count; i++ {
		term, err := readUint64(cr)
		if err != nil {
			return nil, fmt.Errorf("reading term id: %w", err)
		}
		doc, err := readUint64(cr)
		if err != nil {
			return nil, fmt.Errorf("reading doc id: %w", err)
		}
		expireAt, err := readInt64(cr)
		if err != nil {
			return nil, fmt.Errorf("reading expire time: %w", err)
		}
		entries[i] = ExpireEntry{
			Key:      ExpireKey{Term: TermId(term), Doc: DocId(doc)},
			ExpireAt: ExpireTime(expireAt),
		}
	}

	wantCRC, err := readTrailingCRC(r, cr)
	if err != nil {
		return nil, err
	}
	if got := cr.sum(); got != wantCRC {
		return nil, fmt.Errorf("expire section: crc mismatch (want %#x, got %#x)", wantCRC, got)
	}
	return entries, nil
}

// crcWriter tees every byte written through it into a running CRC32,
// restartable via resetCRC so the magic/version preamble can be excluded.
type crcWriter struct {
	w   io.Writer
	crc uint32
}

func newCRCWriter(w io.Writer) *crcWriter { return &crcWriter{w: w} }

func (c *crcWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
	return n, err
}

func (c *crcWriter) resetCRC() { c.crc = 0 }
func (c *crcWriter) sum() uint32 { return c.crc }

// crcReader mirrors crcWriter on the read side.
type crcReader struct {
	r   io.Reader
	crc uint32
}

func newCRCReader(r io.Reader) *crcReader { return &crcReader{r: r} }

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
	return n, err
}

func (c *crcReader) resetCRC() { c.crc = 0 }
func (c *crcReader) sum() uint32 { return c.crc }

// readTrailingCRC reads the 4-byte CRC footer. It reads from the original
// reader rather than cr so the footer itself is not folded into the sum.
func readTrailingCRC(r io.Reader, _ *crcReader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("reading crc footer: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func writeFloat32(w io.Writer, v float32) error {
	return writeUint32(w, math.Float32bits(v))
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readFloat32(r io.Reader) (float32, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}
