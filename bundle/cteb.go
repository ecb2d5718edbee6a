package bundle

import "fmt"

// Frozen relative offsets within a CTEB, taken from v6.c's static const
// bundle_cteb_blk template: the block-type tag byte at 0, then bf@1/w1,
// blklen@2/w1 and cid@3/w4, followed by the custodian node@7/w4 and
// service@11/w2. The leading type byte is what the extension block walk in
// lifecycle.go dispatches on, as it does for bib.go's.
const (
	ctebOffsetType    = 0
	ctebOffsetFlags   = 1
	ctebWidthFlags    = 1
	ctebOffsetBlkLen  = 2
	ctebWidthBlkLen   = 1
	ctebOffsetCID     = 3
	ctebWidthCID      = 4
	ctebOffsetCstNode = 7
	ctebWidthCstNode  = 4
	ctebOffsetCstServ = 11
	ctebWidthCstServ  = 2

	// CTEBLen is the frozen total size of an encoded CTEB.
	CTEBLen = 13
)

// BlockTypeCTEB is this extension block's wire type code, the canonical
// value used by the BPv6/CTEB community (RFC 6257's custody-transfer block
// registration).
const BlockTypeCTEB uint8 = 0x0A

// CTEB is the Custody Transfer Extension Block: it carries the custody id
// used to match outgoing bundles against incoming DACS ranges, plus the
// custodian EID a receiver should acknowledge to.
type CTEB struct {
	Flags      BlockProcessingFlags
	CustodyID  uint64
	Custodian  EndpointID
}

func (c CTEB) checkValid() error {
	return nil
}

// WriteCTEB encodes the whole of c into block at the given base offset, at
// the frozen offsets above. updateIndices has no effect, since the layout
// is fixed; rewriting only the CID of an already-laid-out CTEB is done by
// UpdateCID below.
func WriteCTEB(block []byte, base int, c *CTEB, updateIndices bool, flags *ErrorFlags) (int, error) {
	if base+CTEBLen > len(block) {
		return 0, newCoreError("CTEB.Write: buffer too small", BundleTooLarge)
	}

	block[base+ctebOffsetType] = BlockTypeCTEB
	Write(block, Field{Value: uint64(c.Flags | ReplicateInEveryFragment), Index: base + ctebOffsetFlags, Width: ctebWidthFlags}, flags)
	Write(block, Field{Value: c.CustodyID, Index: base + ctebOffsetCID, Width: ctebWidthCID}, flags)
	Write(block, Field{Value: c.Custodian.Node, Index: base + ctebOffsetCstNode, Width: ctebWidthCstNode}, flags)
	Write(block, Field{Value: c.Custodian.Service, Index: base + ctebOffsetCstServ, Width: ctebWidthCstServ}, flags)
	Write(block, Field{Value: CTEBLen - (ctebOffsetBlkLen + ctebWidthBlkLen), Index: base + ctebOffsetBlkLen, Width: ctebWidthBlkLen}, flags)

	return CTEBLen, nil
}

// ReadCTEB decodes a CTEB from block at the given base offset.
func ReadCTEB(block []byte, base int, c *CTEB, updateIndices bool, flags *ErrorFlags) (int, error) {
	if base+CTEBLen > len(block) {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("CTEB.Read: buffer too small", FailedToParse)
	}
	if block[base+ctebOffsetType] != BlockTypeCTEB {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("CTEB.Read: wrong block type tag", FailedToParse)
	}

	var f Field

	f = Field{Index: base + ctebOffsetFlags, Width: ctebWidthFlags}
	Read(block, &f, flags)
	c.Flags = BlockProcessingFlags(f.Value)

	f = Field{Index: base + ctebOffsetCID, Width: ctebWidthCID}
	Read(block, &f, flags)
	c.CustodyID = f.Value

	f = Field{Index: base + ctebOffsetCstNode, Width: ctebWidthCstNode}
	Read(block, &f, flags)
	c.Custodian.Node = f.Value

	f = Field{Index: base + ctebOffsetCstServ, Width: ctebWidthCstServ}
	Read(block, &f, flags)
	c.Custodian.Service = f.Value

	if flags != nil && (flags.Has(SDNVOverflow) || flags.Has(SDNVIncomplete)) {
		return 0, newCoreError("CTEB.Read: malformed SDNV field", FailedToParse)
	}

	return CTEBLen, nil
}

// UpdateCID rewrites just the custody-id field of an already-laid-out CTEB
// in place, the in-place "stamp the CID after storage assigns one" update
// v6_update_bundle performs via a second sdnv_write call once the storage
// adapter has handed back a custody id.
func UpdateCID(block []byte, base int, cid uint64, flags *ErrorFlags) {
	Write(block, Field{Value: cid, Index: base + ctebOffsetCID, Width: ctebWidthCID}, flags)
}

func (c CTEB) String() string {
	return fmt.Sprintf("cid: %d, custodian: %v", c.CustodyID, c.Custodian)
}
