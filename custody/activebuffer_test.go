package custody

import (
	"testing"

	"github.com/dtn6/bplib-go/bundle"
)

func TestActiveBufferAddAndNext(t *testing.T) {
	buf := NewActiveBuffer(8)

	for cid := uint64(0); cid < 5; cid++ {
		ab := bundle.ActiveBundle{StorageID: cid + 100, CustodyID: cid}
		if err := buf.Add(ab, false); err != nil {
			t.Fatalf("Add(cid=%d) failed: %v", cid, err)
		}
	}
	if buf.Count() != 5 {
		t.Fatalf("expected 5 entries, got %d", buf.Count())
	}

	for cid := uint64(0); cid < 5; cid++ {
		ab, err := buf.Next()
		if err != nil {
			t.Fatalf("Next() failed at cid=%d: %v", cid, err)
		}
		if ab.CustodyID != cid {
			t.Fatalf("Next() returned cid=%d, expected %d", ab.CustodyID, cid)
		}
		buf.Remove(cid)
	}

	if _, err := buf.Next(); err != ErrTimeout {
		t.Fatalf("expected ErrTimeout once drained, got %v", err)
	}
	if buf.Count() != 0 {
		t.Fatalf("expected 0 entries after draining, got %d", buf.Count())
	}
}

// Duplicate CID add: calling Add(cid=7) twice without overwrite returns
// ErrDuplicate the second time, and numEntries is incremented exactly once.
func TestActiveBufferDuplicateAddIsRejected(t *testing.T) {
	buf := NewActiveBuffer(16)

	ab := bundle.ActiveBundle{StorageID: 42, CustodyID: 7}
	if err := buf.Add(ab, false); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := buf.Add(ab, false); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate on second Add, got %v", err)
	}
	if buf.Count() != 1 {
		t.Fatalf("expected numEntries incremented exactly once, got %d", buf.Count())
	}
}

func TestActiveBufferOverwriteBypassesDuplicateCheck(t *testing.T) {
	buf := NewActiveBuffer(16)

	ab := bundle.ActiveBundle{StorageID: 1, CustodyID: 3}
	if err := buf.Add(ab, false); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := buf.Add(ab, true); err != nil {
		t.Fatalf("overwrite Add should not report duplicate: %v", err)
	}
	if buf.Count() != 2 {
		t.Fatalf("overwrite still counts as a new entry per cbuf_add's accounting quirk, got %d", buf.Count())
	}
}

func TestActiveBufferRemoveIgnoresMismatchedSlot(t *testing.T) {
	buf := NewActiveBuffer(4)

	ab := bundle.ActiveBundle{StorageID: 1, CustodyID: 1}
	if err := buf.Add(ab, false); err != nil {
		t.Fatal(err)
	}

	buf.Remove(5) // slot 5%4==1, same slot, different CID: must be a no-op
	if buf.Count() != 1 {
		t.Fatalf("Remove of a mismatched CID should not shrink the buffer, got count=%d", buf.Count())
	}
	if _, ok := buf.Get(1); !ok {
		t.Fatal("expected cid=1 to still be present")
	}
}

func TestActiveBufferGetAndAvailable(t *testing.T) {
	buf := NewActiveBuffer(4)

	if !buf.Available(2) {
		t.Fatal("fresh buffer should report every slot available")
	}

	ab := bundle.ActiveBundle{StorageID: 9, CustodyID: 2}
	if err := buf.Add(ab, false); err != nil {
		t.Fatal(err)
	}
	if buf.Available(2) {
		t.Fatal("occupied slot should no longer be available")
	}

	got, ok := buf.Get(2)
	if !ok || got.StorageID != 9 {
		t.Fatalf("Get(2) = %+v, %v", got, ok)
	}

	if _, ok := buf.Get(6); ok { // 6%4==2, same slot, different CID
		t.Fatal("Get should not return a slot's contents for a non-matching CID")
	}
}
