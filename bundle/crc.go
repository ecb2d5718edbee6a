package bundle

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/howeyc/crc16"
)

// CipherSuite identifies a BIB integrity algorithm: a fully specified CRC
// parameter set (polynomial, init, reflect, xorout), not just a generic
// CRC width selector, so the wrapping below adds explicit init/xorout
// handling on top of github.com/howeyc/crc16 and stdlib hash/crc32.
type CipherSuite uint8

const (
	CipherSuiteCRC16X25        CipherSuite = 0
	CipherSuiteCRC32Castagnoli CipherSuite = 1
)

func (cs CipherSuite) checkValid() error {
	switch cs {
	case CipherSuiteCRC16X25, CipherSuiteCRC32Castagnoli:
		return nil
	default:
		return newBundleError("CipherSuite: unknown cipher suite id")
	}
}

func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteCRC16X25:
		return "CRC16-X25"
	case CipherSuiteCRC32Castagnoli:
		return "CRC32-Castagnoli"
	default:
		return "unknown"
	}
}

// ResultLen returns the width in bytes of this suite's raw CRC result (2 or
// 4, matching the BIB's security-result-length field).
func (cs CipherSuite) ResultLen() int {
	switch cs {
	case CipherSuiteCRC16X25:
		return 2
	case CipherSuiteCRC32Castagnoli:
		return 4
	default:
		return 0
	}
}

// x25Table is the CRC-16/X.25 polynomial (0x1021) supplied in its
// bit-reflected form (0x8408), since howeyc/crc16.MakeTable builds a
// reflected (LSB-first) table exactly like hash/crc32's tables do.
var (
	x25Table    = crc16.MakeTable(0x8408)
	crc32cTable = crc32.MakeTable(crc32.Castagnoli)
)

// ComputeCRC16X25 computes the CRC-16/X.25 checksum over data: init 0xFFFF,
// reflected in/out (handled by the table), xorout 0xFFFF.
func ComputeCRC16X25(data []byte) uint16 {
	crc := crc16.Update(0xFFFF, x25Table, data)
	return crc ^ 0xFFFF
}

// ComputeCRC32Castagnoli computes the CRC-32C checksum over data. Its
// init/xorout of 0xFFFFFFFF is already baked into hash/crc32's
// implementation.
func ComputeCRC32Castagnoli(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// ComputeCRC computes the raw big-endian CRC bytes for data under the given
// cipher suite, sized per ResultLen.
func ComputeCRC(suite CipherSuite, data []byte) []byte {
	switch suite {
	case CipherSuiteCRC16X25:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, ComputeCRC16X25(data))
		return out
	case CipherSuiteCRC32Castagnoli:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, ComputeCRC32Castagnoli(data))
		return out
	default:
		return nil
	}
}
