package custody

import (
	"github.com/dtn6/bplib-go/bundle"
)

// dacsHeaderLen is the one-byte administrative record type tag every
// DACS payload starts with.
const dacsHeaderLen = 1

// Write emits a distributed aggregate custody signal into recordBuf: the
// administrative record type byte, followed by a sequence of SDNV
// (start, length) fills, one per disjoint range in tree, in ascending
// order. At most maxFills ranges are written; if tree holds more than
// that, or the buffer is too small to hold the next fill, Write stops and
// leaves the remainder in tree for a later call. It returns the number
// of bytes written.
//
// Grounded on spec.md §4.5's DACS codec description -- dacs.c itself was
// never retrieved, so the fill layout (two variable-width SDNVs per
// range) follows the prose directly, using this module's existing SDNV
// Field/Write rather than inventing a parallel encoder.
func Write(recordBuf []byte, maxFills int, tree *RangeTree, flags *bundle.ErrorFlags) int {
	if len(recordBuf) < dacsHeaderLen {
		return 0
	}
	recordBuf[0] = bundle.AdminRecordTypeAggregateCustodySignal
	index := dacsHeaderLen

	for fills := 0; fills < maxFills; fills++ {
		r, ok := tree.PopLeftmost()
		if !ok {
			break
		}

		length := r.Hi - r.Lo + 1
		need := bundle.Field{Value: r.Lo}.EncodedLen() + bundle.Field{Value: length}.EncodedLen()
		if index+need > len(recordBuf) {
			// Doesn't fit: put the range back and stop.
			tree.InsertRange(r.Lo, r.Hi)
			break
		}

		index = bundle.Write(recordBuf, bundle.Field{Value: r.Lo, Index: index}, flags)
		index = bundle.Write(recordBuf, bundle.Field{Value: length, Index: index}, flags)
	}

	return index
}

// RemoveFunc is invoked once per acknowledged custody id decoded from a
// DACS record, in ascending order, so the caller can clear its active
// buffer slot and relinquish the stored bundle.
type RemoveFunc func(parm interface{}, cid uint64, flags *bundle.ErrorFlags)

// Read parses a DACS record's (start, length) fills and invokes remove
// for every custody id they cover, in ascending order. It returns the
// number of acknowledgements delivered. recordBuf must start with the
// administrative record type byte; Read does not itself verify it is
// AdminRecordTypeAggregateCustodySignal, since dispatch already
// established that before handing the payload here.
func Read(recordBuf []byte, remove RemoveFunc, parm interface{}, flags *bundle.ErrorFlags) int {
	index := dacsHeaderLen
	numAcks := 0

	for index < len(recordBuf) {
		startField := bundle.Field{Index: index}
		index = bundle.Read(recordBuf, &startField, flags)
		if index > len(recordBuf) {
			break
		}
		lengthField := bundle.Field{Index: index}
		index = bundle.Read(recordBuf, &lengthField, flags)
		if index > len(recordBuf) {
			break
		}

		for i := uint64(0); i < lengthField.Value; i++ {
			remove(parm, startField.Value+i, flags)
			numAcks++
		}
	}

	return numAcks
}
