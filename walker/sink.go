// Package walker drives traversal over an MftStore, emitting one of a
// fixed sequence of callbacks per in-scope record. The callback set is
// modeled as a visitor interface with no-op defaults, so a consumer
// only overrides what it cares about.
package walker

import (
	"github.com/evidentia/orc-core/mft"
	"github.com/evidentia/orc-core/volume"
)

// IndexEntry is one decoded $FILE_NAME-shaped entry found in a
// directory's $INDEX_ROOT or $INDEX_ALLOCATION, including entries
// recovered from index slack.
type IndexEntry struct {
	FileRef  mft.FRN
	FileName mft.FileNameAttr
	Carved   bool
}

// SecurityDescriptorEntry is one distinct security descriptor drawn
// from the volume's $Secure:$SDS stream.
type SecurityDescriptorEntry struct {
	SecurityID uint32
	Hash       uint32
	Descriptor []byte
}

// Sink receives the walker's callback sequence. Embed BaseSink to get
// no-op defaults for the events a consumer doesn't care about.
type Sink interface {
	Element(vol volume.Reader, rec *mft.Record)
	FileName(vol volume.Reader, rec *mft.Record, name mft.FileNameAttr, path string)
	FileNameAndData(vol volume.Reader, rec *mft.Record, name mft.FileNameAttr, path string, data mft.Attribute)
	Directory(vol volume.Reader, rec *mft.Record, name mft.FileNameAttr, path string, indexAlloc *mft.Attribute)
	Attribute(vol volume.Reader, rec *mft.Record, attr mft.Attribute)
	Index(vol volume.Reader, rec *mft.Record, entry IndexEntry, parentName mft.FileNameAttr)
	SecDesc(vol volume.Reader, entry SecurityDescriptorEntry)
	Progress(percent int)
}

// BaseSink implements Sink with every method a no-op, so a consumer
// can embed it and override only what it needs.
type BaseSink struct{}

func (BaseSink) Element(volume.Reader, *mft.Record)                                  {}
func (BaseSink) FileName(volume.Reader, *mft.Record, mft.FileNameAttr, string)        {}
func (BaseSink) FileNameAndData(volume.Reader, *mft.Record, mft.FileNameAttr, string, mft.Attribute) {
}
func (BaseSink) Directory(volume.Reader, *mft.Record, mft.FileNameAttr, string, *mft.Attribute) {}
func (BaseSink) Attribute(volume.Reader, *mft.Record, mft.Attribute)                  {}
func (BaseSink) Index(volume.Reader, *mft.Record, IndexEntry, mft.FileNameAttr)       {}
func (BaseSink) SecDesc(volume.Reader, SecurityDescriptorEntry)                       {}
func (BaseSink) Progress(int)                                                         {}

var _ Sink = BaseSink{}
