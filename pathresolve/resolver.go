// Package pathresolve maps an MFT file reference number, plus the
// $FILE_NAME attribute naming it, to a full volume-rooted path by
// climbing the parent chain the walker has already indexed.
package pathresolve

import (
	"golang.org/x/text/unicode/norm"

	"github.com/evidentia/orc-core/mft"
)

// ParentInfo is what the resolver needs to know about an FRN's parent
// relationship: enough to climb one level of the chain.
type ParentInfo struct {
	Parent FRN
	Name   string
}

// FRN re-exports mft.FRN so callers of this package don't need to
// import mft just to build a ParentInfo.
type FRN = mft.FRN

// Index is the FRN -> (parent FRN, primary $FILE_NAME) map the resolver
// climbs, built incrementally by the walker as it visits records.
type Index struct {
	parents    map[FRN]ParentInfo
	scope      map[FRN]struct{} // empty means "all in scope"
	normalize  bool
}

// EnableUnicodeNormalization makes Remember run every $FILE_NAME
// segment through NFC normalization before storing it, mirroring the
// optional unicode-normalization behavior the local filesystem backend
// offers for names that differ only by combining-character
// composition. Off by default: most volumes never need it.
func (idx *Index) EnableUnicodeNormalization() { idx.normalize = true }

// NewIndex builds a resolver index scoped to the given set of
// location-root FRNs (empty/nil means unscoped: everything is emitted).
func NewIndex(scopeRoots []FRN) *Index {
	idx := &Index{parents: make(map[FRN]ParentInfo)}
	if len(scopeRoots) > 0 {
		idx.scope = make(map[FRN]struct{}, len(scopeRoots))
		for _, f := range scopeRoots {
			idx.scope[f] = struct{}{}
		}
	}
	return idx
}

// Remember records frn's parent chain entry as the walker encounters it.
func (idx *Index) Remember(frn FRN, parent FRN, name string) {
	if idx.normalize {
		name = norm.NFC.String(name)
	}
	idx.parents[frn] = ParentInfo{Parent: parent, Name: name}
}

// Lookup returns what's known about frn's parent/name, if anything.
func (idx *Index) Lookup(frn FRN) (ParentInfo, bool) {
	pi, ok := idx.parents[frn]
	return pi, ok
}

// VolumeRootLabel is the "\\.\Volume{…}" prefix, computed once per
// volume and passed to Resolve.
type VolumeRootLabel string

// Resolve climbs the parent chain from frn, writing path segments into
// a reusable, geometrically-growing scratch buffer in reverse (so each
// segment is prepended without shifting what's already written), and
// returns the full path.
//
// The climb terminates when the parent is the root FRN (prepend the
// volume root) or when the parent isn't in idx (prepend the synthetic
// placeholder to signal a break).
func (idx *Index) Resolve(frn FRN, leafName string, volumeRoot VolumeRootLabel) string {
	var scratch scratchBuffer
	scratch.prependRaw(leafName) // leaf carries no trailing separator

	cur := frn
	for {
		pi, ok := idx.Lookup(cur)
		if !ok {
			if cur == mft.RootFRN {
				break
			}
			scratch.prependRaw(cur.Placeholder())
			return string(volumeRoot) + `\` + scratch.String()
		}
		if pi.Parent == mft.RootFRN {
			break
		}
		parentInfo, found := idx.Lookup(pi.Parent)
		if !found {
			scratch.prependRaw(pi.Parent.Placeholder())
			return string(volumeRoot) + `\` + scratch.String()
		}
		scratch.prependSegment(parentInfo.Name)
		cur = pi.Parent
	}
	return string(volumeRoot) + `\` + scratch.String()
}

// InScope reports whether frn (or any ancestor on its known chain) is
// within the configured location filter. An unscoped index (nil scope)
// always reports true.
func (idx *Index) InScope(frn FRN) bool {
	if idx.scope == nil {
		return true
	}
	cur := frn
	visited := map[FRN]bool{}
	for {
		if _, ok := idx.scope[cur]; ok {
			return true
		}
		if visited[cur] {
			return false // cycle, e.g. via a corrupted hard-link chain
		}
		visited[cur] = true
		pi, ok := idx.Lookup(cur)
		if !ok {
			return false
		}
		if pi.Parent == cur {
			return false
		}
		cur = pi.Parent
	}
}

// scratchBuffer accumulates path segments from the leaf backward,
// growing geometrically rather than reallocating per segment.
type scratchBuffer struct {
	buf []byte
}

func (s *scratchBuffer) ensure(extra int) {
	need := len(s.buf) + extra
	if cap(s.buf) >= need {
		return
	}
	newCap := cap(s.buf)*2 + extra
	if newCap < 64 {
		newCap = 64
	}
	grown := make([]byte, len(s.buf), newCap)
	copy(grown, s.buf)
	s.buf = grown
}

func (s *scratchBuffer) prependSegment(name string) {
	s.prependRaw(name + `\`)
}

func (s *scratchBuffer) prependRaw(segment string) {
	s.ensure(len(segment))
	old := s.buf
	s.buf = make([]byte, 0, len(old)+len(segment))
	s.buf = append(s.buf, segment...)
	s.buf = append(s.buf, old...)
}

func (s *scratchBuffer) String() string {
	return string(s.buf)
}
