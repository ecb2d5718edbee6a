package bundle

import (
	"testing"
	"time"
)

func TestDtnTimeFromTimeAndUnixRoundTrip(t *testing.T) {
	unix := int64(1700000000)
	dt := DtnTimeFromTime(time.Unix(unix, 0))
	if dt.Unix() != unix {
		t.Fatalf("Unix() = %d, want %d", dt.Unix(), unix)
	}
}

func TestExpirationTimePropagatesSentinelsUnchanged(t *testing.T) {
	var flags ErrorFlags
	if got := ExpirationTime(UnknownCreationTime, 3600, &flags); got != UnknownCreationTime {
		t.Fatalf("expected UnknownCreationTime to propagate, got %v", got)
	}
	if got := ExpirationTime(TTLCreationTime, 3600, &flags); got != TTLCreationTime {
		t.Fatalf("expected TTLCreationTime to propagate, got %v", got)
	}
	if flags != 0 {
		t.Fatalf("expected no flags for sentinel propagation, got %v", flags)
	}
}

func TestExpirationTimeOrdinaryAddition(t *testing.T) {
	var flags ErrorFlags
	got := ExpirationTime(1000, 500, &flags)
	if got != 1500 {
		t.Fatalf("ExpirationTime(1000, 500) = %d, want 1500", got)
	}
	if flags != 0 {
		t.Fatalf("expected no overflow flag for an ordinary addition, got %v", flags)
	}
}

func TestExpirationTimeSaturatesOnOverflow(t *testing.T) {
	var flags ErrorFlags
	got := ExpirationTime(DtnTime(MaxEncodedValue-1), 100, &flags)
	if got != DtnTime(MaxEncodedValue) {
		t.Fatalf("expected saturation to MaxEncodedValue, got %d", got)
	}
	if !flags.Has(SDNVOverflow) {
		t.Fatalf("expected SDNVOverflow on saturation, got %v", flags)
	}
}

func TestIsExpired(t *testing.T) {
	cases := []struct {
		name             string
		timeReliable     bool
		ignoreExpiration bool
		exprtime         DtnTime
		sysnow           DtnTime
		want             bool
	}{
		{"unreliable clock never expires", false, false, 100, 200, false},
		{"ignored expiration never expires", true, true, 100, 200, false},
		{"unknown sentinel never expires", true, false, UnknownCreationTime, 200, false},
		{"ttl sentinel never expires", true, false, TTLCreationTime, 200, false},
		{"reached deadline expires", true, false, 100, 100, true},
		{"past deadline expires", true, false, 100, 200, true},
		{"before deadline does not expire", true, false, 100, 50, false},
	}
	for _, c := range cases {
		if got := IsExpired(c.timeReliable, c.ignoreExpiration, c.exprtime, c.sysnow); got != c.want {
			t.Errorf("%s: IsExpired(...) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestCreationTimestampAccessors(t *testing.T) {
	ct := NewCreationTimestamp(12345, 7)
	if ct.DtnTime() != 12345 {
		t.Fatalf("DtnTime() = %d, want 12345", ct.DtnTime())
	}
	if ct.SequenceNumber() != 7 {
		t.Fatalf("SequenceNumber() = %d, want 7", ct.SequenceNumber())
	}
}
