package custody

import (
	"testing"

	"github.com/dtn6/bplib-go/bundle"
)

func TestDACSWriteReadRoundTrip(t *testing.T) {
	tree := NewRangeTree()
	for _, cid := range []uint64{0, 1, 2, 3, 4, 10, 20, 21} {
		tree.InsertCID(cid)
	}

	buf := make([]byte, 128)
	var flags bundle.ErrorFlags
	n := Write(buf, 16, tree, &flags)
	if n <= dacsHeaderLen {
		t.Fatalf("expected Write to produce more than just the header, got %d bytes", n)
	}
	if buf[0] != bundle.AdminRecordTypeAggregateCustodySignal {
		t.Fatalf("expected admin record type tag, got %d", buf[0])
	}
	if len(tree.Ranges()) != 0 {
		t.Fatalf("expected Write to drain every range that fit, got %v left", tree.Ranges())
	}

	var acked []uint64
	remove := func(parm interface{}, cid uint64, flags *bundle.ErrorFlags) {
		acked = append(acked, cid)
	}
	numAcks := Read(buf[:n], remove, nil, &flags)

	want := []uint64{0, 1, 2, 3, 4, 10, 20, 21}
	if numAcks != len(want) {
		t.Fatalf("expected %d acknowledgements, got %d", len(want), numAcks)
	}
	for i, cid := range want {
		if acked[i] != cid {
			t.Fatalf("got acks %v, want %v", acked, want)
		}
	}
}

func TestDACSWriteRespectsMaxFills(t *testing.T) {
	tree := NewRangeTree()
	tree.InsertCID(0)
	tree.InsertCID(10)
	tree.InsertCID(20)

	buf := make([]byte, 128)
	var flags bundle.ErrorFlags
	n := Write(buf, 2, tree, &flags)
	if n <= dacsHeaderLen {
		t.Fatal("expected some bytes written")
	}
	if len(tree.Ranges()) != 1 {
		t.Fatalf("expected one range left in the tree after writing only 2 fills, got %v", tree.Ranges())
	}

	var acked []uint64
	Read(buf[:n], func(_ interface{}, cid uint64, _ *bundle.ErrorFlags) {
		acked = append(acked, cid)
	}, nil, &flags)
	if len(acked) != 2 {
		t.Fatalf("expected 2 acknowledgements decoded, got %d", len(acked))
	}
}

func TestDACSWriteTruncatesOnOverflowAndLeavesRemainder(t *testing.T) {
	tree := NewRangeTree()
	tree.InsertCID(0)
	tree.InsertCID(1000000)

	// A buffer barely large enough for the header and the first fill pair.
	buf := make([]byte, dacsHeaderLen+2)
	var flags bundle.ErrorFlags
	n := Write(buf, 16, tree, &flags)

	if n <= dacsHeaderLen {
		t.Fatalf("expected at least the first fill to be written, got %d bytes", n)
	}
	remaining := tree.Ranges()
	if len(remaining) != 1 || remaining[0] != (Range{Lo: 1000000, Hi: 1000000}) {
		t.Fatalf("expected the range that didn't fit to be put back, got %v", remaining)
	}
}

// Reproduces the custody ACS cycle: channel A sends 5 bundles with custody
// ids 0..4 into an active buffer; channel B acknowledges all 5 into a range
// tree and writes a DACS record; channel A reads that record back, and its
// remove callback fires exactly 5 times with cids 0..4 in order, driving the
// active buffer's occupancy back to 0.
func TestCustodyACSCycleDrainsActiveBuffer(t *testing.T) {
	active := NewActiveBuffer(16)
	for cid := uint64(0); cid < 5; cid++ {
		ab := bundle.ActiveBundle{StorageID: cid + 1, CustodyID: cid}
		if err := active.Add(ab, false); err != nil {
			t.Fatalf("Add(cid=%d) failed: %v", cid, err)
		}
	}
	if active.Count() != 5 {
		t.Fatalf("expected 5 outstanding custody transfers, got %d", active.Count())
	}

	acked := NewRangeTree()
	for cid := uint64(0); cid < 5; cid++ {
		acked.InsertCID(cid)
	}

	record := make([]byte, 64)
	var flags bundle.ErrorFlags
	n := Write(record, 16, acked, &flags)

	var order []uint64
	numAcks := Read(record[:n], func(_ interface{}, cid uint64, _ *bundle.ErrorFlags) {
		order = append(order, cid)
		active.Remove(cid)
	}, nil, &flags)

	if numAcks != 5 {
		t.Fatalf("expected 5 acknowledgements, got %d", numAcks)
	}
	for i, cid := range order {
		if cid != uint64(i) {
			t.Fatalf("expected remove_fn invoked in order 0..4, got %v", order)
		}
	}
	if active.Count() != 0 {
		t.Fatalf("expected active buffer to drain back to 0, got %d", active.Count())
	}
}
