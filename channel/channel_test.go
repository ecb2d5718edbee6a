package channel

import (
	"testing"

	"github.com/dtn6/bplib-go/bundle"
	"github.com/dtn6/bplib-go/storage"
)

func openTestChannel(t *testing.T, requestCustody bool) (*Channel, *storage.RAMStore) {
	t.Helper()
	route := bundle.Route{
		Local:       bundle.MustNewEndpointID("ipn:1.0"),
		Destination: bundle.MustNewEndpointID("ipn:2.1"),
	}
	attrs := bundle.Attributes{
		Lifetime:       3600,
		RequestCustody: requestCustody,
		MaxLength:      bundle.HeaderBufferLen + 4096,
	}
	store := storage.NewRAMStore()
	ch, err := Open(route, attrs, store, 64)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(ch.Close)
	return ch, store
}

func TestOpenRejectsInvalidRoute(t *testing.T) {
	store := storage.NewRAMStore()
	_, err := Open(bundle.Route{}, bundle.Attributes{}, store, 0)
	if err == nil {
		t.Fatal("expected Open to reject a route with no local endpoint")
	}
}

func TestOpenDefaultsActiveWindow(t *testing.T) {
	store := storage.NewRAMStore()
	route := bundle.Route{
		Local:       bundle.MustNewEndpointID("ipn:1.0"),
		Destination: bundle.MustNewEndpointID("ipn:2.1"),
	}
	ch, err := Open(route, bundle.Attributes{Lifetime: 3600, MaxLength: bundle.HeaderBufferLen + 4096}, store, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ch.Close()
	if ch.active == nil {
		t.Fatal("expected a default-sized active buffer when activeWindow is 0")
	}
}

func TestSendStoresFragmentAndReservesActiveSlot(t *testing.T) {
	ch, store := openTestChannel(t, true)

	var flags bundle.ErrorFlags
	ids, err := ch.Send([]byte("hello"), 0, &flags)
	if err != nil {
		t.Fatalf("Send failed: %v (flags %v)", err, flags)
	}
	if len(ids) != 1 {
		t.Fatalf("expected a single fragment, got %d", len(ids))
	}
	if store.GetCount() != 1 {
		t.Fatalf("expected the fragment to be stored, got count %d", store.GetCount())
	}
	if ch.active.Count() != 1 {
		t.Fatalf("expected a reserved active-buffer slot, got %d", ch.active.Count())
	}
}

func TestSendWithoutCustodyDoesNotTouchActiveBuffer(t *testing.T) {
	ch, _ := openTestChannel(t, false)

	var flags bundle.ErrorFlags
	if _, err := ch.Send([]byte("hello"), 0, &flags); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if ch.active.Count() != 0 {
		t.Fatalf("expected no active-buffer reservation without RequestCustody, got %d", ch.active.Count())
	}
}

func TestAcknowledgeLocallyPopulatesDACS(t *testing.T) {
	ch, _ := openTestChannel(t, false)

	for cid := uint64(0); cid < 5; cid++ {
		ch.AcknowledgeLocally(cid)
	}

	buf := make([]byte, 64)
	var flags bundle.ErrorFlags
	n := ch.PopulateAcknowledgment(buf, 16, &flags)
	if n <= 1 {
		t.Fatalf("expected a non-trivial DACS record, got %d bytes", n)
	}
}

// Reproduces the full custody ACS cycle at the channel level: channel A
// sends 5 bundles with custody requested, reserving custody ids 0..4;
// channel B acknowledges those same ids locally and populates a DACS
// record; channel A ingests that record via ReceiveAcknowledgment, which
// clears its active-buffer slots and relinquishes the underlying storage.
func TestCustodyACSCycleAcrossChannels(t *testing.T) {
	chanA, storeA := openTestChannel(t, true)
	chanB, _ := openTestChannel(t, false)

	var flags bundle.ErrorFlags
	for i := 0; i < 5; i++ {
		if _, err := chanA.Send([]byte("payload"), 0, &flags); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}
	if chanA.active.Count() != 5 {
		t.Fatalf("expected 5 outstanding custody transfers, got %d", chanA.active.Count())
	}

	for cid := uint64(0); cid < 5; cid++ {
		chanB.AcknowledgeLocally(cid)
	}

	record := make([]byte, 64)
	n := chanB.PopulateAcknowledgment(record, 16, &flags)
	if n <= 1 {
		t.Fatalf("expected PopulateAcknowledgment to emit a non-empty record, got %d bytes", n)
	}

	numAcks := chanA.ReceiveAcknowledgment(record[:n], &flags)
	if numAcks != 5 {
		t.Fatalf("expected 5 acknowledgements ingested, got %d", numAcks)
	}
	if chanA.active.Count() != 0 {
		t.Fatalf("expected channel A's active buffer to drain to 0, got %d", chanA.active.Count())
	}
	if storeA.GetCount() != 0 {
		t.Fatalf("expected every fragment to be relinquished from storage, got count %d", storeA.GetCount())
	}
}
