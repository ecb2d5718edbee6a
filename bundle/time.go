package bundle

import (
	"fmt"
	"time"
)

// DtnTime counts seconds elapsed since the year 2000 epoch on the UTC
// scale, as used throughout RFC 5050. Unlike a generic wall-clock
// timestamp it never travels through CBOR, only through an SDNV field.
type DtnTime uint64

// seconds1970To2k is the offset between the Unix epoch and the DTN epoch
// (2000-01-01T00:00:00Z), matching bplib's UNIX_SECS_AT_2000
// (os/posix.c).
const seconds1970To2k = 946684800

// DtnTimeEpoch is the zero DtnTime value.
const DtnTimeEpoch DtnTime = 0

// Creation-timestamp sentinels. UnknownCreationTime marks a bundle whose
// originating node had no reliable system clock at build time;
// TTLCreationTime marks a request that lifetime be interpreted as a pure
// TTL extension rather than an absolute deadline. Both propagate unchanged
// through expiration-time arithmetic. Values chosen to sit outside any
// value DtnTimeNow() can produce for decades, per bplib's own sentinel
// placement at the top of the SDNV-encodable range.
const (
	UnknownCreationTime DtnTime = 0xFFFFFFFFFFFFFFFF
	TTLCreationTime     DtnTime = 0xFFFFFFFFFFFFFFFE

	// MaxEncodedValue is the saturation value written when exprtime
	// computation overflows.
	MaxEncodedValue uint64 = 0xFFFFFFFFFFFFFFFE

	// BestEffortLifetime is forced onto a bundle's lifetime field when the
	// system clock is unreliable at build time, so a receiver with a
	// correct clock never treats the bundle as prematurely expired.
	BestEffortLifetime uint64 = MaxEncodedValue
)

// Unix returns the Unix timestamp for this DtnTime.
func (t DtnTime) Unix() int64 {
	return int64(t) + seconds1970To2k
}

// Time returns a UTC-based time.Time for this DtnTime.
func (t DtnTime) Time() time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func (t DtnTime) String() string {
	switch t {
	case UnknownCreationTime:
		return "unknown"
	case TTLCreationTime:
		return "ttl"
	default:
		return t.Time().Format("2006-01-02 15:04:05")
	}
}

// DtnTimeFromTime returns the DtnTime for the given time.Time.
func DtnTimeFromTime(t time.Time) DtnTime {
	return DtnTime(t.UTC().Unix() - seconds1970To2k)
}

// DtnTimeNow returns the current UTC time as a DtnTime, together with a
// reliability flag mirroring bplib_os_systime's sanity checks in
// os/posix.c: the clock is unreliable if it reports a time before the DTN
// epoch or goes backwards relative to the previous call.
var lastSystemTime time.Time

func DtnTimeNow() (now DtnTime, reliable bool) {
	t := time.Now().UTC()
	now = DtnTimeFromTime(t)
	reliable = !t.Before(time.Unix(seconds1970To2k, 0).UTC()) && !t.Before(lastSystemTime)
	lastSystemTime = t
	return
}

// CreationTimestamp pairs a DtnTime with a sequence number, disambiguating
// bundles created by the same source within the same second.
type CreationTimestamp [2]uint64

// NewCreationTimestamp creates a CreationTimestamp from a DtnTime and a
// sequence number.
func NewCreationTimestamp(t DtnTime, sequence uint64) CreationTimestamp {
	return CreationTimestamp{uint64(t), sequence}
}

// DtnTime returns the creation timestamp's time part.
func (ct CreationTimestamp) DtnTime() DtnTime {
	return DtnTime(ct[0])
}

// SequenceNumber returns the creation timestamp's sequence number.
func (ct CreationTimestamp) SequenceNumber() uint64 {
	return ct[1]
}

func (ct CreationTimestamp) String() string {
	return fmt.Sprintf("(%v, %d)", DtnTime(ct[0]), ct[1])
}

// ExpirationTime computes exprtime from a creation time and a lifetime in
// seconds: the sentinels propagate unchanged, and an ordinary addition
// that would overflow the encodable range saturates to MaxEncodedValue
// with SDNVOverflow set.
func ExpirationTime(created DtnTime, lifetime uint64, flags *ErrorFlags) DtnTime {
	switch created {
	case UnknownCreationTime, TTLCreationTime:
		return created
	}

	sum := uint64(created) + lifetime
	if sum < uint64(created) || sum >= MaxEncodedValue {
		setFlag(flags, SDNVOverflow)
		return DtnTime(MaxEncodedValue)
	}
	return DtnTime(sum)
}

// IsExpired implements the expiration predicate: true iff the clock was
// reliable, the channel isn't ignoring expiration, exprtime is neither
// sentinel, and sysnow has reached exprtime.
func IsExpired(timeReliable, ignoreExpiration bool, exprtime DtnTime, sysnow DtnTime) bool {
	if !timeReliable || ignoreExpiration {
		return false
	}
	if exprtime == UnknownCreationTime || exprtime == TTLCreationTime {
		return false
	}
	return sysnow >= exprtime
}
