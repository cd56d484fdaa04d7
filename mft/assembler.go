package mft

import (
	"sort"

	"github.com/evidentia/orc-core/internal/orcerr"
)

// attributeListEntry is one decoded entry of a $ATTRIBUTE_LIST
// attribute: a pointer at a continuation record holding one fragment of
// a logical attribute.
type attributeListEntry struct {
	Kind         TypeCode
	Name         string
	StartingVCN  uint64
	SegmentRef   FRN
	AttributeID  uint16
}

func parseAttributeList(data []byte) ([]attributeListEntry, error) {
	var out []attributeListEntry
	off := 0
	for off+26 <= len(data) {
		kind := TypeCode(leUint32(data[off : off+4]))
		recLen := leUint16(data[off+4 : off+6])
		if recLen == 0 || off+int(recLen) > len(data) {
			return out, orcerr.Wrap(orcerr.ErrCorruptFixup, "mft: attribute list entry overruns buffer", nil)
		}
		nameLen := int(data[off+6])
		nameOffset := int(data[off+7])
		startVCN := leUint64(data[off+8 : off+16])
		segRef := leUint64(data[off+16 : off+24])
		attrID := leUint16(data[off+24 : off+26])

		var name string
		if nameLen > 0 {
			start := off + nameOffset
			name = utf16Decode(data[start : start+nameLen*2])
		}

		out = append(out, attributeListEntry{
			Kind:        kind,
			Name:        name,
			StartingVCN: startVCN,
			SegmentRef:  FRN(segRef),
			AttributeID: attrID,
		})
		off += int(recLen)
	}
	return out, nil
}

func leUint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

// fragmentKey identifies a logical attribute across record continuations.
type fragmentKey struct {
	kind     TypeCode
	nameHash uint64
	instance uint16
}

// Assemble builds the logical attribute view of the file rooted at
// base, following $ATTRIBUTE_LIST continuations into whatever records
// store.Record can reach. strict, when true, drops the whole file's
// attribute set on a missing continuation; when false (best-effort), it
// keeps what it can decode. The attributes lost with a missing
// continuation leave no marker in the returned set.
func Assemble(store *Store, base *Record, strict bool) ([]Attribute, error) {
	baseAttrs, err := ParseAttributes(base)
	if err != nil {
		return nil, err
	}

	fragments := map[fragmentKey][]Attribute{}
	order := []fragmentKey{}
	addFragment := func(a Attribute) {
		k := fragmentKey{a.Kind, a.NameHash(), a.Instance}
		if _, seen := fragments[k]; !seen {
			order = append(order, k)
		}
		fragments[k] = append(fragments[k], a)
	}

	var listAttr *Attribute
	for i := range baseAttrs {
		if baseAttrs[i].Kind == TypeAttributeList {
			listAttr = &baseAttrs[i]
			continue
		}
		addFragment(baseAttrs[i])
	}

	if listAttr != nil {
		data, truncated, rErr := store.ReadAttributeData(*listAttr)
		if rErr != nil {
			if strict {
				return nil, rErr
			}
		} else {
			_ = truncated
			entries, pErr := parseAttributeList(data)
			if pErr != nil && strict {
				return nil, pErr
			}
			for _, e := range entries {
				seg := e.SegmentRef.Segment()
				if seg == base.Segment {
					continue // already covered by the base record's own attributes
				}
				rec, recErr := store.Record(seg, e.SegmentRef.Sequence())
				if recErr != nil {
					if strict {
						return nil, orcerr.Wrap(orcerr.ErrIo, "mft: attribute list continuation missing", recErr)
					}
					continue // best-effort: drop this fragment, keep the rest
				}
				attrs, aErr := ParseAttributes(rec)
				if aErr != nil {
					if strict {
						return nil, aErr
					}
					continue
				}
				for _, a := range attrs {
					if a.Kind == e.Kind && a.Instance == e.AttributeID {
						addFragment(a)
					}
				}
			}
		}
	}

	out := make([]Attribute, 0, len(order))
	for _, k := range order {
		frags := fragments[k]
		merged, mErr := mergeFragments(frags)
		if mErr != nil {
			return nil, mErr
		}
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})

	store.CacheAssembly(base.BaseFileRecordOrSelf(), out)
	return out, nil
}

// BaseFileRecordOrSelf returns the FRN this record's attributes should
// be cached under: its own (segment, sequence) when it is itself a base
// record.
func (r *Record) BaseFileRecordOrSelf() FRN {
	return MakeFRN(r.Segment, r.SequenceNumber)
}

func mergeFragments(frags []Attribute) (Attribute, error) {
	if len(frags) == 1 {
		return frags[0], nil
	}

	first := frags[0]
	if !first.NonResident {
		// Resident attributes cannot span records; keep the first
		// fragment encountered.
		return first, nil
	}

	sort.Slice(frags, func(i, j int) bool { return frags[i].LowestVCN < frags[j].LowestVCN })

	merged := frags[0]
	merged.Runs = nil
	lowest := frags[0].LowestVCN
	highest := frags[0].HighestVCN
	nextExpectedVCN := lowest

	for _, f := range frags {
		if f.HighestVCN > highest {
			highest = f.HighestVCN
		}
		for _, run := range f.Runs {
			if run.VCN > nextExpectedVCN {
				return Attribute{}, orcerr.Wrap(orcerr.ErrRunListGap, "mft: run list gap", nil)
			}
			if run.VCN < nextExpectedVCN {
				return Attribute{}, orcerr.Wrap(orcerr.ErrRunListOverlap, "mft: run list overlap", nil)
			}
			merged.Runs = append(merged.Runs, run)
			nextExpectedVCN = run.VCN + run.Length
		}
	}

	merged.LowestVCN = lowest
	merged.HighestVCN = highest
	if nextExpectedVCN < highest+1 {
		return Attribute{}, orcerr.Wrap(orcerr.ErrRunListGap, "mft: run list does not cover HighestVCN", nil)
	}
	return merged, nil
}
