package bundle

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// bpVersion is the only supported Bundle Protocol version.
const bpVersion uint64 = 6

// Frozen SDNV byte offsets and widths for the primary block, taken
// field-for-field from _examples/original_source/v6/v6.c's static const
// bundle_pri_blk template. Freezing every field at a fixed width means the
// whole primary block has a constant 52-byte length, letting later
// in-place rewrites (createseq bump, CID stamp elsewhere) never shift
// anything downstream.
const (
	priOffsetPCF        = 1
	priWidthPCF         = 3
	priOffsetBlockLen   = 4
	priWidthBlockLen    = 1
	priOffsetDstNode    = 5
	priWidthDstNode     = 4
	priOffsetDstServ    = 9
	priWidthDstServ     = 2
	priOffsetSrcNode    = 11
	priWidthSrcNode     = 4
	priOffsetSrcServ    = 15
	priWidthSrcServ     = 2
	priOffsetRptNode    = 17
	priWidthRptNode     = 4
	priOffsetRptServ    = 21
	priWidthRptServ     = 2
	priOffsetCstNode    = 23
	priWidthCstNode     = 4
	priOffsetCstServ    = 27
	priWidthCstServ     = 2
	priOffsetCreateSec  = 29
	priWidthCreateSec   = 6
	priOffsetCreateSeq  = 35
	priWidthCreateSeq   = 2
	priOffsetLifetime   = 37
	priWidthLifetime    = 6
	priOffsetDictLen    = 43
	priWidthDictLen     = 1
	priOffsetFragOffset = 44
	priWidthFragOffset  = 4
	priOffsetPayLen     = 48
	priWidthPayLen      = 4

	// PrimaryBlockLen is the frozen total size of the encoded primary block.
	PrimaryBlockLen = 52
)

// PrimaryBlock is the BPv6 primary bundle block: version, processing
// control flags, addressing endpoints, creation timestamp, lifetime, and
// fragmentation fields. Encoded with the SDNV/fixed-offset layout v6.c
// uses, since BPv6 has no CBOR wire format.
type PrimaryBlock struct {
	Version     uint64
	PCF         ProcessingControlFlags
	Destination EndpointID
	Source      EndpointID
	ReportTo    EndpointID
	Custodian   EndpointID

	CreationTimestamp CreationTimestamp
	Lifetime          uint64

	FragmentOffset  uint64
	TotalDataLength uint64
}

// IsFragment reports whether the processing control flags mark this as a
// bundle fragment.
func (pb PrimaryBlock) IsFragment() bool {
	return pb.PCF.Has(PCFIsFragment)
}

// IsAdminRecord reports whether this bundle's payload is an administrative
// record.
func (pb PrimaryBlock) IsAdminRecord() bool {
	return pb.PCF.Has(PCFAdminRecordPayload)
}

// CustodyRequested reports whether custody transfer was requested.
func (pb PrimaryBlock) CustodyRequested() bool {
	return pb.PCF.Has(PCFCustodyRequested)
}

func (pb PrimaryBlock) checkValid() (errs error) {
	if pb.Version != bpVersion {
		errs = multierror.Append(errs, newBundleError(
			fmt.Sprintf("PrimaryBlock: wrong version, %d instead of %d", pb.Version, bpVersion)))
	}
	if pb.Destination.IsNull() {
		errs = multierror.Append(errs, newBundleError("PrimaryBlock: destination must not be the null endpoint"))
	}
	if pb.PCF.Has(PCFIsFragment) && pb.PCF.Has(PCFDoNotFragment) {
		errs = multierror.Append(errs, newBundleError(
			"PrimaryBlock: both is-fragment and do-not-fragment are set"))
	}
	return
}

func (pb PrimaryBlock) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: %d, ", pb.Version)
	fmt.Fprintf(&b, "pcf: %s, ", pb.PCF)
	fmt.Fprintf(&b, "destination: %v, source: %v, report-to: %v, custodian: %v, ",
		pb.Destination, pb.Source, pb.ReportTo, pb.Custodian)
	fmt.Fprintf(&b, "creation timestamp: %v, lifetime: %d", pb.CreationTimestamp, pb.Lifetime)
	if pb.IsFragment() {
		fmt.Fprintf(&b, ", fragment offset: %d, total data length: %d", pb.FragmentOffset, pb.TotalDataLength)
	}
	return b.String()
}

// WritePrimaryBlock encodes pb into block starting at offset 0, and returns
// the number of bytes written (always PrimaryBlockLen on success).
// updateIndices selects index-update mode (initial layout, recomputing
// every SDNV's index as it walks the buffer -- in this implementation a
// no-op, since the primary block's layout is static) vs index-follow mode
// (the offsets above are authoritative either way; the parameter is kept
// for symmetry with the CTEB and BIB codecs, which also use frozen offsets
// and likewise ignore it).
func WritePrimaryBlock(block []byte, pb *PrimaryBlock, updateIndices bool, flags *ErrorFlags) (int, error) {
	if len(block) < PrimaryBlockLen {
		return 0, newCoreError("PrimaryBlock.Write: buffer too small", BundleTooLarge)
	}

	block[0] = byte(pb.Version)
	Write(block, Field{Value: uint64(pb.PCF), Index: priOffsetPCF, Width: priWidthPCF}, flags)
	Write(block, Field{Value: pb.Destination.Node, Index: priOffsetDstNode, Width: priWidthDstNode}, flags)
	Write(block, Field{Value: pb.Destination.Service, Index: priOffsetDstServ, Width: priWidthDstServ}, flags)
	Write(block, Field{Value: pb.Source.Node, Index: priOffsetSrcNode, Width: priWidthSrcNode}, flags)
	Write(block, Field{Value: pb.Source.Service, Index: priOffsetSrcServ, Width: priWidthSrcServ}, flags)
	Write(block, Field{Value: pb.ReportTo.Node, Index: priOffsetRptNode, Width: priWidthRptNode}, flags)
	Write(block, Field{Value: pb.ReportTo.Service, Index: priOffsetRptServ, Width: priWidthRptServ}, flags)
	Write(block, Field{Value: pb.Custodian.Node, Index: priOffsetCstNode, Width: priWidthCstNode}, flags)
	Write(block, Field{Value: pb.Custodian.Service, Index: priOffsetCstServ, Width: priWidthCstServ}, flags)
	Write(block, Field{Value: uint64(pb.CreationTimestamp.DtnTime()), Index: priOffsetCreateSec, Width: priWidthCreateSec}, flags)
	Write(block, Field{Value: pb.CreationTimestamp.SequenceNumber(), Index: priOffsetCreateSeq, Width: priWidthCreateSeq}, flags)
	Write(block, Field{Value: pb.Lifetime, Index: priOffsetLifetime, Width: priWidthLifetime}, flags)
	Write(block, Field{Value: 0, Index: priOffsetDictLen, Width: priWidthDictLen}, flags)
	Write(block, Field{Value: pb.FragmentOffset, Index: priOffsetFragOffset, Width: priWidthFragOffset}, flags)
	Write(block, Field{Value: pb.TotalDataLength, Index: priOffsetPayLen, Width: priWidthPayLen}, flags)

	// blklen covers every byte after itself to the end of the primary block.
	blklen := PrimaryBlockLen - (priOffsetBlockLen + priWidthBlockLen)
	Write(block, Field{Value: uint64(blklen), Index: priOffsetBlockLen, Width: priWidthBlockLen}, flags)

	return PrimaryBlockLen, nil
}

// ReadPrimaryBlock decodes a PrimaryBlock from block starting at offset 0.
// Fails with FailedToParse if the version isn't 6, and with Noncompliant if
// the dictionary length field is non-zero -- no compressed EID
// dictionaries are supported.
// flags may be nil: a route-inspection-only caller that doesn't care about
// anomalies can pass nil and every routine here tolerates it.
func ReadPrimaryBlock(block []byte, pb *PrimaryBlock, updateIndices bool, flags *ErrorFlags) (int, error) {
	if len(block) < PrimaryBlockLen {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("PrimaryBlock.Read: buffer too small", FailedToParse)
	}

	pb.Version = uint64(block[0])
	if pb.Version != bpVersion {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("PrimaryBlock.Read: unsupported version", FailedToParse)
	}

	var f Field

	f = Field{Index: priOffsetPCF, Width: priWidthPCF}
	Read(block, &f, flags)
	pb.PCF = ProcessingControlFlags(f.Value)

	f = Field{Index: priOffsetDstNode, Width: priWidthDstNode}
	Read(block, &f, flags)
	pb.Destination.Node = f.Value
	f = Field{Index: priOffsetDstServ, Width: priWidthDstServ}
	Read(block, &f, flags)
	pb.Destination.Service = f.Value

	f = Field{Index: priOffsetSrcNode, Width: priWidthSrcNode}
	Read(block, &f, flags)
	pb.Source.Node = f.Value
	f = Field{Index: priOffsetSrcServ, Width: priWidthSrcServ}
	Read(block, &f, flags)
	pb.Source.Service = f.Value

	f = Field{Index: priOffsetRptNode, Width: priWidthRptNode}
	Read(block, &f, flags)
	pb.ReportTo.Node = f.Value
	f = Field{Index: priOffsetRptServ, Width: priWidthRptServ}
	Read(block, &f, flags)
	pb.ReportTo.Service = f.Value

	f = Field{Index: priOffsetCstNode, Width: priWidthCstNode}
	Read(block, &f, flags)
	pb.Custodian.Node = f.Value
	f = Field{Index: priOffsetCstServ, Width: priWidthCstServ}
	Read(block, &f, flags)
	pb.Custodian.Service = f.Value

	f = Field{Index: priOffsetCreateSec, Width: priWidthCreateSec}
	Read(block, &f, flags)
	createSec := DtnTime(f.Value)
	f = Field{Index: priOffsetCreateSeq, Width: priWidthCreateSeq}
	Read(block, &f, flags)
	pb.CreationTimestamp = NewCreationTimestamp(createSec, f.Value)

	f = Field{Index: priOffsetLifetime, Width: priWidthLifetime}
	Read(block, &f, flags)
	pb.Lifetime = f.Value

	f = Field{Index: priOffsetDictLen, Width: priWidthDictLen}
	Read(block, &f, flags)
	if f.Value != 0 {
		setFlag(flags, Noncompliant)
		return 0, newCoreError("PrimaryBlock.Read: non-zero dictionary length", Noncompliant)
	}

	f = Field{Index: priOffsetFragOffset, Width: priWidthFragOffset}
	Read(block, &f, flags)
	pb.FragmentOffset = f.Value

	f = Field{Index: priOffsetPayLen, Width: priWidthPayLen}
	Read(block, &f, flags)
	pb.TotalDataLength = f.Value

	if flags != nil && (flags.Has(SDNVOverflow) || flags.Has(SDNVIncomplete)) {
		return 0, newCoreError("PrimaryBlock.Read: malformed SDNV field", FailedToParse)
	}

	return PrimaryBlockLen, nil
}
