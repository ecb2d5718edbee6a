package bundle

// Administrative record type codes: the first byte of an administrative
// record's payload, dispatched in Receive's administrative-record branch.
// Values follow the published BPv6 registry (RFC 5050 §6.1's status
// report, RFC 5050's original per-bundle custody signal, RFC 6257's
// aggregate custody signal); the underlying v6.c dispatches on the same
// three record kinds (ACS_REC_TYPE/CS_REC_TYPE/STAT_REC_TYPE) but its
// numeric values weren't available, so the registry's published values are
// used here instead.
const (
	AdminRecordTypeStatusReport   uint8 = 1
	AdminRecordTypeCustodySignal  uint8 = 2
	AdminRecordTypeAggregateCustodySignal uint8 = 4
)

// AdminRecordType reads the dispatch byte from the front of an
// administrative record's payload. The caller must already know
// len(payload) >= 1 (enforced by Receive's "paysize >= 2 for administrative
// records" check).
func AdminRecordType(payload []byte) uint8 {
	return payload[0]
}
