package bundle

import "strings"

// BlockProcessingFlags is the per-extension-block bit mask governing what a
// receiver does with a block it cannot process. Bit assignments taken from
// v6.c's block-walk handling of
// NOTIFYNOPROC/DELETENOPROC/DROPNOPROC/FORWARDNOPROC.
type BlockProcessingFlags uint8

const (
	// ReplicateInEveryFragment (REPALL): this block must be copied into every
	// fragment of the bundle it belongs to. Set by bib_write unconditionally,
	// per bib.c.
	ReplicateInEveryFragment BlockProcessingFlags = 0x01

	// NotifyNoProcess (NOTIFYNOPROC): log a non-compliance notice if this
	// block can't be processed; never fatal by itself.
	NotifyNoProcess BlockProcessingFlags = 0x02

	// DeleteNoProcess (DELETENOPROC): the whole bundle must be dropped if
	// this block can't be processed.
	DeleteNoProcess BlockProcessingFlags = 0x04

	// LastBlock marks this as the final block in the bundle.
	LastBlock BlockProcessingFlags = 0x08

	// DropNoProcess (DROPNOPROC): this block alone is excluded from any
	// forwarded copy if it can't be processed; the rest of the bundle
	// proceeds.
	DropNoProcess BlockProcessingFlags = 0x10

	// ForwardNoProcess (FORWARDNOPROC): set by a receiver, in its rebuilt copy
	// of the block, to record that it could not process this block but is
	// forwarding it anyway.
	ForwardNoProcess BlockProcessingFlags = 0x20

	// EIDReference: this block contains an EID reference into the (unused,
	// BPv6-dictionary-free) compressed EID dictionary. Receive does not test
	// this bit; a bundle carrying a dictionary is already refused by
	// ReadPrimaryBlock's non-zero dictionary-length check.
	EIDReference BlockProcessingFlags = 0x40
)

var blockProcessingFlagNames = []struct {
	field BlockProcessingFlags
	text  string
}{
	{ReplicateInEveryFragment, "REPALL"},
	{NotifyNoProcess, "NOTIFYNOPROC"},
	{DeleteNoProcess, "DELETENOPROC"},
	{LastBlock, "LASTBLOCK"},
	{DropNoProcess, "DROPNOPROC"},
	{ForwardNoProcess, "FORWARDNOPROC"},
	{EIDReference, "EIDREF"},
}

// Has returns true if every bit set in flag is also set in bpf.
func (bpf BlockProcessingFlags) Has(flag BlockProcessingFlags) bool {
	return bpf&flag == flag
}

func (bpf BlockProcessingFlags) String() string {
	var fields []string
	for _, c := range blockProcessingFlagNames {
		if bpf.Has(c.field) {
			fields = append(fields, c.text)
		}
	}
	return strings.Join(fields, ",")
}
