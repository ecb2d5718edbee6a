// Package custody implements the active-bundle circular buffer, the
// custody range tree, and the DACS codec that ties them together --
// the bookkeeping a channel uses to track outstanding custody transfers
// and to emit or ingest aggregate custody signals.
package custody

import (
	"errors"

	"github.com/dtn6/bplib-go/bundle"
)

// ErrDuplicate is returned by Add when the slot a CID maps to already
// holds that same CID and overwrite was not requested.
var ErrDuplicate = errors.New("custody: duplicate CID")

// ErrTimeout is returned by Next when no occupied slot is found between
// oldest and newest.
var ErrTimeout = errors.New("custody: no active bundle available")

// ActiveBuffer is a fixed-size, modular-indexed table of outstanding
// custody transfers: slot cid%size holds the ActiveBundle for custody id
// cid, if any. Grounded on cbuf.c's bplib_cbuf_t: oldestCID and newestCID
// bound the live window, and numEntries tracks occupancy without a scan.
type ActiveBuffer struct {
	slots      []bundle.ActiveBundle
	numEntries int
	oldestCID  uint64
	newestCID  uint64
}

// NewActiveBuffer returns an ActiveBuffer with size slots, all vacant.
// size must be at least as large as the worst-case outstanding custody
// window a caller expects -- every slot collision beyond that window
// silently overwrites the older entry's slot.
func NewActiveBuffer(size int) *ActiveBuffer {
	slots := make([]bundle.ActiveBundle, size)
	for i := range slots {
		slots[i].StorageID = bundle.VacantStorageID
	}
	return &ActiveBuffer{slots: slots}
}

func (b *ActiveBuffer) slotFor(cid uint64) int {
	return int(cid % uint64(len(b.slots)))
}

// Add stores ab at slot ab.CustodyID%size. If overwrite is false and the
// slot is already occupied by the same CID, Add returns ErrDuplicate and
// leaves the buffer unchanged. Otherwise the slot is written, numEntries
// is incremented, and -- only when this is a fresh (non-overwrite) add --
// newestCID advances to ab.CustodyID+1.
//
// Grounded on cbuf.c's cbuf_add, including its quirk of bumping
// numEntries on every successful add, overwrite or not -- an overwrite
// that replaces an already-occupied slot with a different CID still
// counts as a new entry, since the old CID's accounting was never
// decremented when it was overwritten out from under it.
func (b *ActiveBuffer) Add(ab bundle.ActiveBundle, overwrite bool) error {
	slot := b.slotFor(ab.CustodyID)
	existing := b.slots[slot]

	if !overwrite && !existing.IsVacant() && existing.CustodyID == ab.CustodyID {
		return ErrDuplicate
	}

	b.slots[slot] = ab
	b.numEntries++

	if !overwrite {
		if ab.CustodyID+1 > b.newestCID {
			b.newestCID = ab.CustodyID + 1
		}
	}

	return nil
}

// Next advances oldestCID past vacant slots until it reaches newestCID,
// returning the first occupied slot it finds, regardless of whether that
// slot's own CID still matches oldestCID. It returns ErrTimeout if the
// buffer is exhausted without finding one, mirroring cbuf.c's cbuf_next
// used by the retransmit scan literally: the C original checks only
// table[ati].sid != BP_SID_VACANT, never comparing the slot's CID against
// oldest_cid.
func (b *ActiveBuffer) Next() (bundle.ActiveBundle, error) {
	for b.oldestCID < b.newestCID {
		slot := b.slotFor(b.oldestCID)
		ab := b.slots[slot]
		if !ab.IsVacant() {
			return ab, nil
		}
		b.oldestCID++
	}
	return bundle.ActiveBundle{}, ErrTimeout
}

// Remove clears the slot for cid iff it currently holds that CID,
// decrementing numEntries. Removing a CID the slot doesn't hold (already
// vacated, or overwritten by a different CID) is a no-op.
func (b *ActiveBuffer) Remove(cid uint64) {
	slot := b.slotFor(cid)
	ab := b.slots[slot]
	if ab.IsVacant() || ab.CustodyID != cid {
		return
	}
	b.slots[slot] = bundle.ActiveBundle{StorageID: bundle.VacantStorageID}
	b.numEntries--
}

// Get returns the ActiveBundle stored for cid, if its slot currently
// holds that exact CID.
func (b *ActiveBuffer) Get(cid uint64) (bundle.ActiveBundle, bool) {
	ab := b.slots[b.slotFor(cid)]
	if ab.IsVacant() || ab.CustodyID != cid {
		return bundle.ActiveBundle{}, false
	}
	return ab, true
}

// Available reports whether cid's slot is currently vacant.
func (b *ActiveBuffer) Available(cid uint64) bool {
	return b.slots[b.slotFor(cid)].IsVacant()
}

// Count returns the current occupancy.
func (b *ActiveBuffer) Count() int {
	return b.numEntries
}

// OldestCID and NewestCID expose the buffer's live window, used by a
// retransmit scan to know where to resume.
func (b *ActiveBuffer) OldestCID() uint64 { return b.oldestCID }
func (b *ActiveBuffer) NewestCID() uint64 { return b.newestCID }
