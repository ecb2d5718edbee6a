package bundle

import "testing"

func TestPrimaryBlockWriteReadRoundTrip(t *testing.T) {
	pb := PrimaryBlock{
		Version:           bpVersion,
		PCF:               PCFCustodyRequested,
		Destination:       MustNewEndpointID("ipn:2.1"),
		Source:            MustNewEndpointID("ipn:1.0"),
		ReportTo:          MustNewEndpointID("ipn:1.0"),
		Custodian:         MustNewEndpointID("ipn:1.0"),
		CreationTimestamp: NewCreationTimestamp(1000, 5),
		Lifetime:          3600,
	}

	block := make([]byte, PrimaryBlockLen)
	var flags ErrorFlags
	n, err := WritePrimaryBlock(block, &pb, false, &flags)
	if err != nil {
		t.Fatalf("WritePrimaryBlock failed: %v", err)
	}
	if n != PrimaryBlockLen {
		t.Fatalf("expected %d bytes written, got %d", PrimaryBlockLen, n)
	}

	var got PrimaryBlock
	n, err = ReadPrimaryBlock(block, &got, false, &flags)
	if err != nil {
		t.Fatalf("ReadPrimaryBlock failed: %v (flags %v)", err, flags)
	}
	if n != PrimaryBlockLen {
		t.Fatalf("expected to consume %d bytes, got %d", PrimaryBlockLen, n)
	}
	if got.Destination != pb.Destination || got.Source != pb.Source {
		t.Fatalf("round-tripped endpoints mismatch: %+v", got)
	}
	if got.Lifetime != pb.Lifetime {
		t.Fatalf("Lifetime = %d, want %d", got.Lifetime, pb.Lifetime)
	}
	if !got.CustodyRequested() {
		t.Fatal("expected custody-requested flag to survive the round trip")
	}
}

func TestReadPrimaryBlockRejectsWrongVersion(t *testing.T) {
	block := make([]byte, PrimaryBlockLen)
	block[0] = 7

	var pb PrimaryBlock
	var flags ErrorFlags
	if _, err := ReadPrimaryBlock(block, &pb, false, &flags); err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
	if !flags.Has(FailedToParse) {
		t.Fatalf("expected FailedToParse, got %v", flags)
	}
}

func TestReadPrimaryBlockRejectsTruncatedBuffer(t *testing.T) {
	block := make([]byte, PrimaryBlockLen-1)

	var pb PrimaryBlock
	var flags ErrorFlags
	if _, err := ReadPrimaryBlock(block, &pb, false, &flags); err == nil {
		t.Fatal("expected an error for a too-short buffer")
	}
}

func TestPrimaryBlockCheckValidRejectsNullDestination(t *testing.T) {
	pb := PrimaryBlock{Version: bpVersion, Source: MustNewEndpointID("ipn:1.0")}
	if err := pb.checkValid(); err == nil {
		t.Fatal("expected an error for a null destination")
	}
}

func TestPrimaryBlockCheckValidRejectsFragmentAndDoNotFragmentTogether(t *testing.T) {
	pb := PrimaryBlock{
		Version:     bpVersion,
		Destination: MustNewEndpointID("ipn:2.1"),
		PCF:         PCFIsFragment | PCFDoNotFragment,
	}
	if err := pb.checkValid(); err == nil {
		t.Fatal("expected an error for contradictory fragmentation flags")
	}
}
