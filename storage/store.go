// Package storage declares the storage adapter interface the bundle engine
// delegates persistence to, plus reference backends that exercise it.
package storage

import "time"

// ID is the opaque storage identifier a create call hands back and every
// other operation is indexed by -- bplib's bp_sid_t, kept as a distinct
// type rather than a bare uint64 so a caller can't confuse it with a
// custody id.
type ID uint64

// VacantID is the sentinel ID meaning "no bundle", mirroring
// bundle.VacantStorageID's role in the active circular buffer.
const VacantID ID = ^ID(0)

// Adapter is the storage service contract a bundle channel is configured
// against: create a fragment's bytes, enqueue/dequeue a FIFO of pending
// work, retrieve a previously stored fragment by id for retransmission,
// and release (drop the enqueue-queue claim on) or relinquish (delete
// entirely) it once custody or delivery has concluded.
//
// Grounded on spec.md's storage adapter interface list
// (create/enqueue/dequeue/retrieve/release/relinquish/getcount), the same
// operation set bplib's storage service layer (store/ram.c, store/
// posix_fifo.c) implements against bplib_store_t function pointers.
type Adapter interface {
	// Create stores a fragment's bytes and returns its id. isRecord marks
	// whether the fragment is an administrative record (ACS, status
	// report) rather than application payload, letting a backend route
	// the two differently.
	Create(isRecord bool, data []byte, timeout time.Duration) (ID, error)

	// Enqueue marks a previously created id as pending delivery.
	Enqueue(id ID) error

	// Dequeue blocks up to timeout for the next pending id in FIFO order,
	// returning its bytes. timeout of -1 blocks forever, 0 returns
	// immediately if nothing is pending.
	Dequeue(timeout time.Duration) (ID, []byte, error)

	// Retrieve returns the bytes stored under id without affecting its
	// queue position, for retransmission scans.
	Retrieve(id ID) ([]byte, error)

	// Release drops this id's claim on the pending queue (it has been
	// dequeued and handed off) without deleting its bytes.
	Release(id ID) error

	// Relinquish deletes id's bytes entirely: custody has concluded, or
	// the bundle was accepted/expired/dropped.
	Relinquish(id ID) error

	// GetCount reports how many ids are currently stored.
	GetCount() int
}

// ErrNotFound is returned by Enqueue/Retrieve/Relinquish (and by
// FileStore's Release) for an id the backend has no record of; the RAM and
// flash backends' Release returns nil for such an id.
type ErrNotFound struct {
	ID ID
}

func (e ErrNotFound) Error() string {
	return "storage: unknown id"
}

// ErrTimeout is returned by Dequeue when no id became pending within the
// requested timeout, mirroring the OS abstraction's waiton timeout
// disposition.
type ErrTimeout struct{}

func (ErrTimeout) Error() string {
	return "storage: dequeue timed out"
}
