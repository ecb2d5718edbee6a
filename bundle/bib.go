package bundle

import "fmt"

// Frozen relative offsets within a BIB, adapted from v6.c's static const
// bundle_bib_blk template and bib.c's read/write layout: a leading
// block-type tag byte at 0 (as in CTEB), then one-byte fields for flags
// (1), block length (2), security-target count (3), target type (4),
// cipher suite id (5), cipher suite flags (6), compound length (7),
// security-result type (8) and security-result length (9), with the raw
// result bytes starting at 10.
const (
	bibOffsetType          = 0
	bibOffsetFlags         = 1
	bibWidthFlags          = 1
	bibOffsetBlkLen        = 2
	bibWidthBlkLen         = 1
	bibOffsetTargetCount   = 3
	bibWidthTargetCount    = 1
	bibOffsetTargetType    = 4
	bibWidthTargetType     = 1
	bibOffsetCipherID      = 5
	bibWidthCipherID       = 1
	bibOffsetCipherFlags   = 6
	bibWidthCipherFlags    = 1
	bibOffsetCompoundLen   = 7
	bibWidthCompoundLen    = 1
	bibOffsetResultType    = 8
	bibWidthResultType     = 1
	bibOffsetResultLen     = 9
	bibWidthResultLen      = 1
	bibOffsetResultData    = 10

	// bibHeaderLen is the fixed portion preceding the variable-width raw CRC
	// bytes.
	bibHeaderLen = bibOffsetResultData
)

// BlockTypeBIB is this extension block's wire type code (RFC 6257's BIB
// registration, security-target-type payload-block, integrity-signature
// result).
const BlockTypeBIB uint8 = 0x0D

// BlockTypePayload is the canonical payload block type code (RFC 5050).
const BlockTypePayload uint8 = 0x01

// securityResultTypeIntegritySignature is the only BIB security-result-type
// this implementation accepts.
const securityResultTypeIntegritySignature uint8 = 0x01

// BIB is the Bundle Integrity Block: a CRC over the payload, tied to one of
// the two supported cipher suites.
type BIB struct {
	Flags  BlockProcessingFlags
	Suite  CipherSuite
	Result []byte
}

// BIBLen returns the total encoded length of a BIB using the given suite.
func BIBLen(suite CipherSuite) int {
	return bibHeaderLen + suite.ResultLen()
}

func (b BIB) checkValid() error {
	if err := b.Suite.checkValid(); err != nil {
		return err
	}
	return nil
}

// WriteBIB lays out a BIB at the given base offset with a zeroed result
// field (the result is filled in later, per fragment, by UpdateBIB).
func WriteBIB(block []byte, base int, b *BIB, updateIndices bool, flags *ErrorFlags) (int, error) {
	n := BIBLen(b.Suite)
	if base+n > len(block) {
		return 0, newCoreError("BIB.Write: buffer too small", BundleTooLarge)
	}

	block[base+bibOffsetType] = BlockTypeBIB
	Write(block, Field{Value: uint64(b.Flags | ReplicateInEveryFragment), Index: base + bibOffsetFlags, Width: bibWidthFlags}, flags)
	Write(block, Field{Value: 1, Index: base + bibOffsetTargetCount, Width: bibWidthTargetCount}, flags)
	Write(block, Field{Value: uint64(BlockTypePayload), Index: base + bibOffsetTargetType, Width: bibWidthTargetType}, flags)
	Write(block, Field{Value: uint64(b.Suite), Index: base + bibOffsetCipherID, Width: bibWidthCipherID}, flags)
	Write(block, Field{Value: 0, Index: base + bibOffsetCipherFlags, Width: bibWidthCipherFlags}, flags)
	Write(block, Field{Value: 0, Index: base + bibOffsetCompoundLen, Width: bibWidthCompoundLen}, flags)
	Write(block, Field{Value: uint64(securityResultTypeIntegritySignature), Index: base + bibOffsetResultType, Width: bibWidthResultType}, flags)
	Write(block, Field{Value: uint64(b.Suite.ResultLen()), Index: base + bibOffsetResultLen, Width: bibWidthResultLen}, flags)
	Write(block, Field{Value: uint64(n - (bibOffsetBlkLen + bibWidthBlkLen)), Index: base + bibOffsetBlkLen, Width: bibWidthBlkLen}, flags)

	for i := 0; i < b.Suite.ResultLen(); i++ {
		block[base+bibOffsetResultData+i] = 0
	}

	return n, nil
}

// ReadBIB decodes a BIB from block at the given base offset. It fails if
// target-type is not the payload block type, if the security-result-type
// is not the integrity-signature constant, or if the cipher suite is not
// one of the two supported.
func ReadBIB(block []byte, base int, b *BIB, updateIndices bool, flags *ErrorFlags) (int, error) {
	if base+bibHeaderLen > len(block) {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("BIB.Read: buffer too small", FailedToParse)
	}
	if block[base+bibOffsetType] != BlockTypeBIB {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("BIB.Read: wrong block type tag", FailedToParse)
	}

	var f Field

	f = Field{Index: base + bibOffsetFlags, Width: bibWidthFlags}
	Read(block, &f, flags)
	b.Flags = BlockProcessingFlags(f.Value)

	f = Field{Index: base + bibOffsetTargetType, Width: bibWidthTargetType}
	Read(block, &f, flags)
	if uint8(f.Value) != BlockTypePayload {
		setFlag(flags, InvalidBIBTargetType)
		return 0, newCoreError("BIB.Read: security-target-type is not the payload block", InvalidBIBTargetType)
	}

	f = Field{Index: base + bibOffsetResultType, Width: bibWidthResultType}
	Read(block, &f, flags)
	if uint8(f.Value) != securityResultTypeIntegritySignature {
		setFlag(flags, InvalidBIBResultType)
		return 0, newCoreError("BIB.Read: security-result-type is not integrity-signature", InvalidBIBResultType)
	}

	f = Field{Index: base + bibOffsetCipherID, Width: bibWidthCipherID}
	Read(block, &f, flags)
	suite := CipherSuite(f.Value)
	if err := suite.checkValid(); err != nil {
		setFlag(flags, InvalidCipherSuiteID)
		return 0, newCoreError("BIB.Read: unknown cipher suite id", InvalidCipherSuiteID)
	}
	b.Suite = suite

	f = Field{Index: base + bibOffsetResultLen, Width: bibWidthResultLen}
	Read(block, &f, flags)
	if int(f.Value) != suite.ResultLen() {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("BIB.Read: security-result-length does not match cipher suite", FailedToParse)
	}

	n := BIBLen(suite)
	if base+n > len(block) {
		setFlag(flags, FailedToParse)
		return 0, newCoreError("BIB.Read: buffer too small for result", FailedToParse)
	}
	b.Result = make([]byte, suite.ResultLen())
	copy(b.Result, block[base+bibOffsetResultData:base+n])

	if flags != nil && (flags.Has(SDNVOverflow) || flags.Has(SDNVIncomplete)) {
		return 0, newCoreError("BIB.Read: malformed SDNV field", FailedToParse)
	}

	return n, nil
}

// UpdateBIB computes the CRC over payload and writes it into the BIB's
// already-laid-out result field at base, mirroring bib.c's bib_update:
// called once per outgoing fragment in the send loop, over that fragment's
// bytes only.
func UpdateBIB(block []byte, base int, b *BIB, payload []byte) {
	result := ComputeCRC(b.Suite, payload)
	n := BIBLen(b.Suite)
	copy(block[base+bibOffsetResultData:base+n], result)
	b.Result = result
}

// VerifyBIB recomputes the CRC over payload and compares it against b's
// stored result, mirroring bib.c's bib_verify.
func VerifyBIB(b BIB, payload []byte) bool {
	expect := ComputeCRC(b.Suite, payload)
	if len(expect) != len(b.Result) {
		return false
	}
	for i := range expect {
		if expect[i] != b.Result[i] {
			return false
		}
	}
	return true
}

func (b BIB) String() string {
	return fmt.Sprintf("suite: %v, result: %x", b.Suite, b.Result)
}
