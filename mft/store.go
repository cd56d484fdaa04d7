package mft

import (
	"fmt"

	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/volume"
)

// attrChainKey is the cross-record lookup key for chasing
// $ATTRIBUTE_LIST continuations
type attrChainKey struct {
	kind     TypeCode
	nameHash uint64
	instance uint16
}

// SequenceMismatchError is surfaced (not swallowed) so hard-link cycles
// and stale FRNs can be detected by callers.
type SequenceMismatchError struct {
	Segment  uint64
	Expected uint16
	Got      uint16
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("mft: segment %d sequence mismatch: expected %d, got %d", e.Segment, e.Expected, e.Got)
}

const (
	defaultRecordCacheSize  = 4096
	defaultAssemblyCacheSize = 1024
	defaultChainCacheSize    = 2048
)

// Store caches decoded, fix-up-verified MFT records read from a
// volume.Reader, keyed by segment number only.
type Store struct {
	r    volume.Reader
	recs *lruCache[uint64, *Record]

	// baseAssembly caches in-progress attribute reassembly keyed by the
	// base record's FRN; chainLookup resolves cross-record
	// $ATTRIBUTE_LIST entries by (TypeCode, NameHash, Instance).
	baseAssembly *lruCache[FRN, []Attribute]
	chainLookup  *lruCache[attrChainKey, uint64]
}

// NewStore constructs a Store over r with the default cache sizes.
func NewStore(r volume.Reader) *Store {
	return &Store{
		r:            r,
		recs:         newLRUCache[uint64, *Record](defaultRecordCacheSize),
		baseAssembly: newLRUCache[FRN, []Attribute](defaultAssemblyCacheSize),
		chainLookup:  newLRUCache[attrChainKey, uint64](defaultChainCacheSize),
	}
}

// Record returns the decoded record for segment, verifying its fix-up
// stamp and caching the result. expectedSequence, if non-zero, is
// compared against the record's on-disk sequence number; a mismatch is
// returned as *SequenceMismatchError (not swallowed) alongside the
// record itself, which is still usable.
func (s *Store) Record(segment uint64, expectedSequence uint16) (*Record, error) {
	if rec, ok := s.recs.Get(segment); ok {
		return s.checkSequence(rec, expectedSequence)
	}

	recSize := int(s.r.RecordSize())
	mftByteOffset := int64(s.r.MftStartLCN())*int64(s.r.BytesPerCluster()) + int64(segment)*int64(recSize)

	raw, err := s.r.ReadAt(mftByteOffset, recSize)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.ErrIo, fmt.Sprintf("mft: read segment %d", segment), err)
	}
	if len(raw) < recSize {
		return nil, orcerr.Wrap(orcerr.ErrOutOfRange, fmt.Sprintf("mft: short read for segment %d", segment), nil)
	}

	rec, err := ParseRecord(raw, segment)
	if err != nil {
		return nil, err
	}
	s.recs.Put(segment, rec)
	return s.checkSequence(rec, expectedSequence)
}

func (s *Store) checkSequence(rec *Record, expected uint16) (*Record, error) {
	if expected != 0 && rec.SequenceNumber != expected {
		return rec, &SequenceMismatchError{Segment: rec.Segment, Expected: expected, Got: rec.SequenceNumber}
	}
	return rec, nil
}

// CacheAssembly stores a base record's reassembled attribute view for
// reuse while a walk is still in progress over it.
func (s *Store) CacheAssembly(base FRN, attrs []Attribute) {
	s.baseAssembly.Put(base, attrs)
}

func (s *Store) LookupAssembly(base FRN) ([]Attribute, bool) {
	return s.baseAssembly.Get(base)
}

// RememberChainTarget records that the given (type, name, instance)
// attribute lives in continuation segment target, so future chases of
// the same logical attribute can skip the $ATTRIBUTE_LIST scan.
func (s *Store) RememberChainTarget(kind TypeCode, nameHash uint64, instance uint16, target uint64) {
	s.chainLookup.Put(attrChainKey{kind, nameHash, instance}, target)
}

func (s *Store) LookupChainTarget(kind TypeCode, nameHash uint64, instance uint16) (uint64, bool) {
	return s.chainLookup.Get(attrChainKey{kind, nameHash, instance})
}

// ReadAttributeData returns an attribute's bytes: the resident payload
// directly, or the concatenated bytes of every cluster run for a
// non-resident attribute. A short read at the final run's end is
// reported via the truncated return: the short data is returned as-is,
// success, no zero-padding.
func (s *Store) ReadAttributeData(a Attribute) ([]byte, bool, error) {
	if !a.NonResident {
		return a.Resident, false, nil
	}

	bpc := int64(s.r.BytesPerCluster())
	out := make([]byte, 0, a.RealSize)
	truncated := false
	for _, run := range a.Runs {
		length := int64(run.Length) * bpc
		if run.Sparse {
			out = append(out, make([]byte, length)...)
			continue
		}
		buf, err := s.r.ReadAt(int64(run.LCN)*bpc, int(length))
		if err != nil {
			return nil, false, orcerr.Wrap(orcerr.ErrIo, "mft: read attribute run", err)
		}
		if int64(len(buf)) < length {
			truncated = true
		}
		out = append(out, buf...)
	}
	if a.RealSize > 0 && uint64(len(out)) > a.RealSize {
		out = out[:a.RealSize]
	}
	return out, truncated, nil
}
