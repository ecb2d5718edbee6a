package bundle

import (
	"bytes"
	"testing"
	"time"
)

// memoryStore is a minimal CreateFunc target for lifecycle tests: it
// keeps every fragment handed to it, keyed by an incrementing id. Send
// only ever hands a fragment's payload bytes to CreateFunc (mirroring
// v6_send_bundle, whose create callback never sees the header buffer
// either) so memoryStore.fragments alone isn't a receivable wire image;
// buildAndSend's own wrapper prepends the bundle's current header
// snapshot before storing, giving tests a full wire buffer to feed
// straight into Receive.
type memoryStore struct {
	fragments map[uint64][]byte
	nextID    uint64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{fragments: make(map[uint64][]byte)}
}

func (s *memoryStore) create(isAdminRecord bool, data []byte, timeout time.Duration) (uint64, error) {
	s.nextID++
	stored := make([]byte, len(data))
	copy(stored, data)
	s.fragments[s.nextID] = stored
	return s.nextID, nil
}

func buildAndSend(t *testing.T, route Route, attrs Attributes, payload []byte) (*memoryStore, []uint64) {
	t.Helper()

	bldr := Builder().Source(route.Local).Destination(route.Destination)
	if !route.ReportTo.IsNull() {
		bldr = bldr.ReportTo(route.ReportTo)
	}
	bldr = bldr.Lifetime(attrs.Lifetime).
		RequestCustody(attrs.RequestCustody).
		AllowFragmentation(attrs.AllowFragmentation).
		MaxLength(attrs.MaxLength)
	if attrs.IntegrityCheck {
		bldr = bldr.IntegrityCheck(attrs.CipherSuite)
	}

	b, err := bldr.Build()
	if err != nil {
		t.Fatalf("Builder failed: %v", err)
	}

	var flags ErrorFlags
	if err := Build(b, nil, &flags); err != nil {
		t.Fatalf("Build failed: %v (flags %v)", err, flags)
	}

	store := newMemoryStore()
	wireForFragment := func(isAdminRecord bool, data []byte, timeout time.Duration) (uint64, error) {
		header := b.Data.Header[:b.Data.HeaderSize]
		wire := make([]byte, len(header)+len(data))
		copy(wire, header)
		copy(wire[len(header):], data)
		return store.create(isAdminRecord, wire, timeout)
	}

	ids, err := Send(b, payload, 0, wireForFragment, &flags)
	if err != nil {
		t.Fatalf("Send failed: %v (flags %v)", err, flags)
	}
	return store, ids
}

func TestBuildSendReceiveRoundTrip(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.1"),
	}
	attrs := Attributes{
		Lifetime:  3600,
		MaxLength: HeaderBufferLen + 4096,
	}

	store, ids := buildAndSend(t, route, attrs, []byte("hello dtn"))
	if len(ids) != 1 {
		t.Fatalf("expected a single unfragmented wire image, got %d", len(ids))
	}

	wire := store.fragments[ids[0]]

	local := Route{Local: route.Destination}
	now, _ := DtnTimeNow()

	var flags ErrorFlags
	received, err := Receive(wire, local, Attributes{}, now, true, &flags)
	if err != nil {
		t.Fatalf("Receive failed: %v (flags %v)", err, flags)
	}
	if received.Outcome != PendingAcceptance {
		t.Fatalf("expected PendingAcceptance, got %v", received.Outcome)
	}
	if !bytes.Equal(received.Payload, []byte("hello dtn")) {
		t.Fatalf("payload mismatch: got %q", received.Payload)
	}
}

func TestReceiveWrongChannelReturnsRouteNeeded(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.7"),
	}
	attrs := Attributes{Lifetime: 3600, MaxLength: HeaderBufferLen + 4096}

	store, ids := buildAndSend(t, route, attrs, []byte("x"))
	wire := store.fragments[ids[0]]

	local := Route{Local: MustNewEndpointID("ipn:2.9")} // same node, different service
	now, _ := DtnTimeNow()

	var flags ErrorFlags
	_, err := Receive(wire, local, Attributes{}, now, true, &flags)
	if err == nil {
		t.Fatal("expected a route-needed error")
	}
	if !flags.Has(RouteNeeded) {
		t.Fatalf("expected RouteNeeded flag, got %v", flags)
	}
}

func TestReceiveExpiredBundleReturnsPendingExpiration(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.1"),
	}
	attrs := Attributes{Lifetime: 1, MaxLength: HeaderBufferLen + 4096}

	store, ids := buildAndSend(t, route, attrs, []byte("late"))
	wire := store.fragments[ids[0]]

	local := Route{Local: route.Destination}
	future := DtnTime(^uint64(0)>>1) - 2 // far in the future, clear of both sentinels

	var flags ErrorFlags
	received, err := Receive(wire, local, Attributes{}, future, true, &flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Outcome != PendingExpiration {
		t.Fatalf("expected PendingExpiration, got %v", received.Outcome)
	}
}

func TestSendWithIntegrityCheckVerifiesOnReceive(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.1"),
	}
	attrs := Attributes{
		Lifetime:       3600,
		IntegrityCheck: true,
		CipherSuite:    CipherSuiteCRC16X25,
		MaxLength:      HeaderBufferLen + 4096,
	}

	store, ids := buildAndSend(t, route, attrs, []byte("integrity checked"))
	wire := store.fragments[ids[0]]

	local := Route{Local: route.Destination}
	now, _ := DtnTimeNow()

	var flags ErrorFlags
	received, err := Receive(wire, local, Attributes{}, now, true, &flags)
	if err != nil {
		t.Fatalf("Receive failed: %v (flags %v)", err, flags)
	}
	if flags.Has(FailedIntegrityCheck) {
		t.Fatalf("unexpected integrity failure: %v", flags)
	}
	if !bytes.Equal(received.Payload, []byte("integrity checked")) {
		t.Fatalf("payload mismatch: got %q", received.Payload)
	}
}

func TestReceiveDetectsFlippedPayloadBit(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.1"),
	}
	attrs := Attributes{
		Lifetime:       3600,
		IntegrityCheck: true,
		CipherSuite:    CipherSuiteCRC16X25,
		MaxLength:      HeaderBufferLen + 4096,
	}

	store, ids := buildAndSend(t, route, attrs, []byte("integrity checked"))
	wire := store.fragments[ids[0]]
	wire[len(wire)-1] ^= 0x01 // flip one bit in the trailing payload byte

	local := Route{Local: route.Destination}
	now, _ := DtnTimeNow()

	var flags ErrorFlags
	_, err := Receive(wire, local, Attributes{}, now, true, &flags)
	if err == nil {
		t.Fatal("expected an error for a corrupted payload")
	}
	if !flags.Has(FailedIntegrityCheck) {
		t.Fatalf("expected FailedIntegrityCheck flag, got %v", flags)
	}
}

func TestReceiveSurfacesCustodianFromPrimaryBlockOnACSRecord(t *testing.T) {
	destination := MustNewEndpointID("ipn:2.1")
	source := MustNewEndpointID("ipn:3.0")
	custodian := MustNewEndpointID("ipn:9.0")

	now, _ := DtnTimeNow()
	pb := PrimaryBlock{
		Version:           bpVersion,
		PCF:               PCFAdminRecordPayload,
		Destination:       destination,
		Source:            source,
		ReportTo:          source,
		Custodian:         custodian,
		CreationTimestamp: NewCreationTimestamp(now, 0),
		Lifetime:          3600,
	}

	var wire [PrimaryBlockLen + payHeaderLen + 2]byte
	var flags ErrorFlags
	if _, err := WritePrimaryBlock(wire[:], &pb, true, &flags); err != nil {
		t.Fatalf("WritePrimaryBlock failed: %v", err)
	}
	var pay PayloadBlock
	if _, err := WritePayloadBlock(wire[:], PrimaryBlockLen, &pay, 2, &flags); err != nil {
		t.Fatalf("WritePayloadBlock failed: %v", err)
	}
	wire[PrimaryBlockLen+payHeaderLen] = AdminRecordTypeAggregateCustodySignal
	if flags != 0 {
		t.Fatalf("unexpected flags while constructing the wire image: %v", flags)
	}

	local := Route{Local: destination}

	received, err := Receive(wire[:], local, Attributes{}, now, true, &flags)
	if err != nil {
		t.Fatalf("Receive failed: %v (flags %v)", err, flags)
	}
	if received.AdminRecordType != AdminRecordTypeAggregateCustodySignal {
		t.Fatalf("expected an ACS admin record, got %v", received.AdminRecordType)
	}
	if received.Custodian != custodian {
		t.Fatalf("Custodian = %v, want %v (the primary block's custodian, not its source)", received.Custodian, custodian)
	}
}

func TestFragmentationSplitsOversizedPayload(t *testing.T) {
	route := Route{
		Local:       MustNewEndpointID("ipn:1.0"),
		Destination: MustNewEndpointID("ipn:2.1"),
	}
	attrs := Attributes{
		Lifetime:           3600,
		AllowFragmentation: true,
		MaxLength:          HeaderBufferLen + 16,
	}

	payload := bytes.Repeat([]byte("x"), 200)
	store, ids := buildAndSend(t, route, attrs, payload)
	if len(ids) < 2 {
		t.Fatalf("expected fragmentation to produce multiple fragments, got %d", len(ids))
	}

	var total int
	for _, id := range ids {
		total += len(store.fragments[id])
	}
	if total <= len(payload) {
		t.Fatalf("expected fragment wire bytes to exceed payload length (headers included), got %d", total)
	}
}
