package bundle

// PayloadBlock is the BPv6 payload block: block-flags, block-length, and a
// borrowed view into the bundle's payload bytes. Data is kept as a
// borrowed slice -- the caller must keep the source buffer alive until the
// payload has been consumed or copied.
//
// The fixed header buffer a Bundle is staged into never holds the actual
// payload bytes, only this block's small "static portion" (flags and
// block-length) -- the payload itself can be arbitrarily larger than the
// header buffer, and is concatenated onto the wire separately by whatever
// writes the bundle out (the storage create callback, in this module's
// lifecycle).
type PayloadBlock struct {
	Flags BlockProcessingFlags
	Data  []byte
}

const (
	payOffsetType   = 0
	payOffsetFlags  = 1
	payWidthFlags   = 1
	payOffsetBlkLen = 2
	payWidthBlkLen  = 4
	payOffsetData   = 6

	// payHeaderLen is the static portion preceding the raw payload bytes.
	payHeaderLen = payOffsetData
)

func (p PayloadBlock) checkValid() error {
	return nil
}

// WritePayloadBlock writes the payload block's static header (type, flags,
// and a block-length of paylen) at base, returning payHeaderLen. It never
// touches p.Data -- the payload bytes are handed to the storage layer
// directly by the lifecycle's send loop, not staged through this buffer.
func WritePayloadBlock(block []byte, base int, p *PayloadBlock, paylen int, flags *ErrorFlags) (int, error) {
	if base+payHeaderLen > len(block) {
		return 0, newCoreError("PayloadBlock.Write: buffer too small", BundleTooLarge)
	}

	block[base+payOffsetType] = BlockTypePayload
	Write(block, Field{Value: uint64(p.Flags | LastBlock), Index: base + payOffsetFlags, Width: payWidthFlags}, flags)
	Write(block, Field{Value: uint64(paylen), Index: base + payOffsetBlkLen, Width: payWidthBlkLen}, flags)

	return payHeaderLen, nil
}

// ReadPayloadBlock decodes a payload block's header at base and returns a
// borrowed view into block for the payload bytes; the caller must keep
// block alive as long as the returned PayloadBlock.Data is used, or copy it.
func ReadPayloadBlock(block []byte, base int, p *PayloadBlock, flags *ErrorFlags) (int, error) {
	if base+payHeaderLen > len(block) {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("PayloadBlock.Read: buffer too small", FailedToParse)
	}
	if block[base+payOffsetType] != BlockTypePayload {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("PayloadBlock.Read: wrong block type tag", FailedToParse)
	}

	var f Field
	f = Field{Index: base + payOffsetFlags, Width: payWidthFlags}
	Read(block, &f, flags)
	p.Flags = BlockProcessingFlags(f.Value)

	f = Field{Index: base + payOffsetBlkLen, Width: payWidthBlkLen}
	Read(block, &f, flags)
	paylen := int(f.Value)

	n := payHeaderLen + paylen
	if base+n > len(block) {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("PayloadBlock.Read: declared length exceeds buffer", FailedToParse)
	}

	p.Data = block[base+payOffsetData : base+n]

	if flags != nil && (flags.Has(SDNVOverflow) || flags.Has(SDNVIncomplete)) {
		return 0, newCoreError("PayloadBlock.Read: malformed SDNV field", FailedToParse)
	}

	return n, nil
}
