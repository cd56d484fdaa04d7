package walker

import (
	"errors"

	"github.com/evidentia/orc-core/internal/config"
	"github.com/evidentia/orc-core/internal/orcerr"
	"github.com/evidentia/orc-core/mft"
	"github.com/evidentia/orc-core/pathresolve"
	"github.com/evidentia/orc-core/volume"
)

// secureFileSegment is $Secure's well-known MFT segment number.
const secureFileSegment = 9

// maxConsecutiveFixupFailures is the run length of unreadable records
// that aborts the walk entirely.
const maxConsecutiveFixupFailures = 256

// Summary reports how a Walk concluded.
type Summary struct {
	Processed uint64
	Skipped   uint64
	Fatal     error
}

// Walker drives traversal over one volume's MFT, following a fixed
// callback ordering: for each in-scope record in segment order, one
// Element, then per $FILE_NAME a FileName followed by a Directory (for
// a directory) or a FileNameAndData per $DATA, then one Attribute per
// attribute and, for a directory, its Index entries; the security
// descriptors follow after the last record.
type Walker struct {
	vol        volume.Reader
	store      *mft.Store
	resolver   *pathresolve.Index
	volumeRoot pathresolve.VolumeRootLabel
	mode       config.ResurrectMode
	sink       Sink
}

// New builds a Walker. resolver should be scoped (via
// pathresolve.NewIndex) to whatever subpaths the caller's
// configuration restricts the walk to; an unscoped index walks the
// whole volume.
func New(vol volume.Reader, store *mft.Store, resolver *pathresolve.Index, volumeRoot pathresolve.VolumeRootLabel, mode config.ResurrectMode, sink Sink) *Walker {
	return &Walker{vol: vol, store: store, resolver: resolver, volumeRoot: volumeRoot, mode: mode, sink: sink}
}

// Walk traverses every in-scope record once and returns a summary. It
// runs two passes: the first populates the path resolver's parent
// index across the whole volume (so path resolution doesn't depend on
// scan order), the second fires the callback sequence.
func (w *Walker) Walk() Summary {
	total, err := w.totalRecords()
	if err != nil {
		return Summary{Fatal: orcerr.MakeFatal(err)}
	}
	if total == 0 {
		return Summary{}
	}

	w.buildParentIndex(total)
	summary := w.emit(total)
	w.emitSecurityDescriptors()
	return summary
}

// totalRecords derives the MFT's record count from $MFT's own $DATA
// attribute, the standard self-referential way to size an NTFS MFT
// without trusting volume-size arithmetic.
func (w *Walker) totalRecords() (uint64, error) {
	mftRec, err := w.store.Record(0, 0)
	if err != nil {
		return 0, err
	}
	attrs, err := mft.Assemble(w.store, mftRec, false)
	if err != nil {
		return 0, err
	}
	recordSize := uint64(w.vol.RecordSize())
	if recordSize == 0 {
		return 0, orcerr.Wrap(orcerr.ErrConfig, "walker: volume record size is zero", nil)
	}
	for _, a := range attrs {
		if a.Kind == mft.TypeData && a.Name == "" {
			return a.RealSize / recordSize, nil
		}
	}
	return 0, orcerr.Wrap(orcerr.ErrConfig, "walker: $MFT has no unnamed $DATA attribute", nil)
}

func (w *Walker) buildParentIndex(total uint64) {
	for seg := uint64(0); seg < total; seg++ {
		rec, err := w.store.Record(seg, 0)
		if err != nil || !rec.IsBase() || !shouldConsider(w.mode, rec.InUse()) {
			continue
		}
		attrs, aErr := mft.Assemble(w.store, rec, assembleStrict(w.mode, rec.InUse()))
		if aErr != nil && attrs == nil {
			continue
		}
		frn := mft.MakeFRN(seg, rec.SequenceNumber)
		for _, a := range attrs {
			if a.Kind != mft.TypeFileName {
				continue
			}
			fn, dErr := mft.DecodeFileName(a.Resident)
			if dErr != nil {
				continue
			}
			w.resolver.Remember(frn, fn.Parent, fn.Name)
		}
	}
}

func (w *Walker) emit(total uint64) Summary {
	var summary Summary
	consecutiveFixupFailures := 0
	lastPercent := -1

	for seg := uint64(0); seg < total; seg++ {
		rec, err := w.store.Record(seg, 0)
		if err != nil {
			summary.Skipped++
			if errors.Is(err, orcerr.ErrCorruptFixup) {
				consecutiveFixupFailures++
				if consecutiveFixupFailures >= maxConsecutiveFixupFailures {
					summary.Fatal = orcerr.MakeFatal(orcerr.Wrap(orcerr.ErrCorruptFixup, "walker: too many consecutive fix-up failures", err))
					return summary
				}
			}
			w.reportProgress(&lastPercent, seg, total)
			continue
		}
		consecutiveFixupFailures = 0

		w.emitRecord(rec, &summary)
		w.reportProgress(&lastPercent, seg, total)
	}
	return summary
}

func (w *Walker) reportProgress(lastPercent *int, seg, total uint64) {
	percent := int((seg + 1) * 100 / total)
	if percent > *lastPercent {
		w.sink.Progress(percent)
		*lastPercent = percent
	}
}

func (w *Walker) emitRecord(rec *mft.Record, summary *Summary) {
	if !rec.IsBase() {
		return // continuation records are folded into their base by Assemble
	}
	if !shouldConsider(w.mode, rec.InUse()) {
		return
	}

	frn := mft.MakeFRN(rec.Segment, rec.SequenceNumber)
	if !w.resolver.InScope(frn) {
		return
	}

	attrs, aErr := mft.Assemble(w.store, rec, assembleStrict(w.mode, rec.InUse()))
	if !shouldKeepResurrected(w.mode, rec.InUse(), aErr) {
		summary.Skipped++
		return
	}
	if aErr != nil && attrs == nil {
		summary.Skipped++
		return
	}

	w.sink.Element(w.vol, rec)
	summary.Processed++

	var fileNames []mft.FileNameAttr
	for _, a := range attrs {
		if a.Kind != mft.TypeFileName {
			continue
		}
		fn, dErr := mft.DecodeFileName(a.Resident)
		if dErr == nil {
			fileNames = append(fileNames, fn)
		}
	}

	for _, fn := range fileNames {
		path := w.resolver.Resolve(frn, fn.Name, w.volumeRoot)
		w.sink.FileName(w.vol, rec, fn, path)

		if rec.IsDirectory() {
			w.sink.Directory(w.vol, rec, fn, path, firstAttr(attrs, mft.TypeIndexAllocation))
			continue
		}
		for _, a := range attrs {
			if a.Kind == mft.TypeData {
				w.sink.FileNameAndData(w.vol, rec, fn, path, a)
			}
		}
	}

	for _, a := range attrs {
		w.sink.Attribute(w.vol, rec, a)
	}

	if rec.IsDirectory() && len(fileNames) > 0 {
		entries := collectDirectoryEntries(w.store, attrs, maxSegmentHint(rec.Segment))
		for _, e := range entries {
			w.sink.Index(w.vol, rec, IndexEntry{FileRef: e.fileRef, FileName: e.fn, Carved: e.carved}, fileNames[0])
		}
	}
}

// maxSegmentHint widens a single observed segment into a generous
// sanity bound for carved-entry recovery: carved entries only need a
// plausible upper bound on segment numbers, not an exact volume size.
func maxSegmentHint(seg uint64) uint64 {
	bound := seg * 4
	if bound < 1<<20 {
		bound = 1 << 20
	}
	return bound
}

func firstAttr(attrs []mft.Attribute, kind mft.TypeCode) *mft.Attribute {
	for i := range attrs {
		if attrs[i].Kind == kind {
			return &attrs[i]
		}
	}
	return nil
}

func (w *Walker) emitSecurityDescriptors() {
	secRec, err := w.store.Record(secureFileSegment, 0)
	if err != nil {
		return
	}
	attrs, err := mft.Assemble(w.store, secRec, false)
	if err != nil {
		return
	}
	sds := firstNamedData(attrs, "$SDS")
	if sds == nil {
		return
	}
	data, _, err := w.store.ReadAttributeData(*sds)
	if err != nil {
		return
	}

	seen := map[uint32]bool{}
	for _, e := range parseSecurityDescriptorStream(data) {
		if seen[e.SecurityID] {
			continue
		}
		seen[e.SecurityID] = true
		w.sink.SecDesc(w.vol, e)
	}
}

func firstNamedData(attrs []mft.Attribute, name string) *mft.Attribute {
	for i := range attrs {
		if attrs[i].Kind == mft.TypeData && attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}
