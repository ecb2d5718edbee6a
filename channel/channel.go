// Package channel implements the per-channel concurrency and ownership
// unit spec.md's concurrency model describes: a channel owns a Route, a
// set of Attributes, an active-bundle circular buffer, a custody range
// tree, and a storage handle, all guarded by one lock obtained from
// bpos. Two goroutines sharing a Channel must serialize through it; two
// different Channels never contend.
//
// Named Channel rather than bundle.Channel: bundle is a leaf package the
// custody, storage and bpos packages all import, so a Channel type that
// wires them together cannot itself live in bundle without an import
// cycle. See DESIGN.md for the full accounting of this deviation.
package channel

import (
	"fmt"
	"time"

	"github.com/dtn6/bplib-go/bpos"
	"github.com/dtn6/bplib-go/bundle"
	"github.com/dtn6/bplib-go/custody"
	"github.com/dtn6/bplib-go/storage"
)

// DefaultActiveWindow sizes a Channel's active buffer when the caller
// doesn't specify one -- large enough for a modest outstanding-custody
// window without the caller needing to reason about sizing up front.
const DefaultActiveWindow = 1024

// Channel is one open route/attributes pair plus everything needed to
// track its outstanding custody transfers: Send stores a fragment and
// (if custody was requested) reserves an active-buffer slot for it;
// PopulateAcknowledgment drains the range tree into a DACS record;
// ReceiveAcknowledgment ingests a peer's DACS and clears the
// corresponding active-buffer slots and storage entries.
//
// Grounded on v6.c's bplib_open/bplib_close/bplib_send/bplib_recv/
// bplib_populate_acknowledgment/bplib_receive_acknowledgment, which wire
// together exactly these same five pieces behind one channel handle.
type Channel struct {
	Route      bundle.Route
	Attributes bundle.Attributes

	store storage.Adapter
	lock  *bpos.Lock

	active *custody.ActiveBuffer
	acked  *custody.RangeTree

	nextCID uint64
}

// Open returns a Channel ready to send and receive against store, with
// an active buffer sized activeWindow slots (DefaultActiveWindow if
// zero).
func Open(route bundle.Route, attrs bundle.Attributes, store storage.Adapter, activeWindow int) (*Channel, error) {
	if err := bundle.ValidateRoute(route); err != nil {
		return nil, err
	}
	if activeWindow <= 0 {
		activeWindow = DefaultActiveWindow
	}
	return &Channel{
		Route:      route,
		Attributes: attrs,
		store:      store,
		lock:       bpos.CreateLock(),
		active:     custody.NewActiveBuffer(activeWindow),
		acked:      custody.NewRangeTree(),
	}, nil
}

// Close releases a Channel's lock handle. Grounded on bplib_close's
// symmetry with bplib_open; bpos.DestroyLock itself is a no-op since the
// Go runtime reclaims the Lock once unreferenced.
func (c *Channel) Close() {
	bpos.DestroyLock(c.lock)
}

// Send builds and stores a bundle carrying payload, serializing against
// the Channel's lock so concurrent callers on the same Channel can't
// race its creation-sequence or custody-id counters. Each resulting
// fragment is stored and enqueued first; if RequestCustody is set, its
// custody id is then reserved in the active buffer under the storage id
// the store handed back.
func (c *Channel) Send(payload []byte, timeout time.Duration, flags *bundle.ErrorFlags) ([]storage.ID, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	b := &bundle.Bundle{
		Route:      c.Route,
		Attributes: c.Attributes,
		Prebuilt:   true,
	}
	if err := bundle.Build(b, nil, flags); err != nil {
		return nil, err
	}

	var storedIDs []storage.ID
	create := func(isRecord bool, data []byte, timeout time.Duration) (uint64, error) {
		sid, err := c.store.Create(isRecord, data, timeout)
		if err != nil {
			return 0, err
		}
		storedIDs = append(storedIDs, sid)
		if err := c.store.Enqueue(sid); err != nil {
			return 0, err
		}

		if c.Attributes.RequestCustody {
			cid := c.nextCID
			c.nextCID++
			ab := bundle.ActiveBundle{StorageID: uint64(sid), CustodyID: cid}
			if err := c.active.Add(ab, false); err != nil {
				return 0, err
			}
		}

		return uint64(sid), nil
	}

	if _, err := bundle.Send(b, payload, timeout, create, flags); err != nil {
		return nil, err
	}

	return storedIDs, nil
}

// Receive parses wire and dispatches it against this Channel's Route and
// Attributes, under the Channel's lock.
func (c *Channel) Receive(wire []byte, sysnow bundle.DtnTime, timeReliable bool, flags *bundle.ErrorFlags) (*bundle.Received, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return bundle.Receive(wire, c.Route, c.Attributes, sysnow, timeReliable, flags)
}

// PopulateAcknowledgment drains up to maxFills of this Channel's
// acknowledged-but-unreported custody ranges into recordBuf as a DACS
// administrative record, returning the number of bytes written.
func (c *Channel) PopulateAcknowledgment(recordBuf []byte, maxFills int, flags *bundle.ErrorFlags) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return custody.Write(recordBuf, maxFills, c.acked, flags)
}

// ReceiveAcknowledgment ingests a peer's DACS record, clearing this
// Channel's active-buffer slot and relinquishing the corresponding
// storage entry for every acknowledged custody id, in ascending order.
func (c *Channel) ReceiveAcknowledgment(recordBuf []byte, flags *bundle.ErrorFlags) int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return custody.Read(recordBuf, func(_ interface{}, cid uint64, flags *bundle.ErrorFlags) {
		ab, err := c.activeByCID(cid)
		if err != nil {
			return
		}
		c.active.Remove(cid)
		if err := c.store.Relinquish(storage.ID(ab.StorageID)); err != nil {
			bundle.SetFlag(flags, bundle.StoreFailure)
		}
	}, nil, flags)
}

// AcknowledgeLocally records cid as acknowledged in this Channel's range
// tree without going through a DACS record, for a channel acting as the
// custodian that observed the delivery itself.
func (c *Channel) AcknowledgeLocally(cid uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.acked.InsertCID(cid)
}

func (c *Channel) activeByCID(cid uint64) (bundle.ActiveBundle, error) {
	ab, ok := c.active.Get(cid)
	if !ok {
		return bundle.ActiveBundle{}, fmt.Errorf("channel: custody id %d not active", cid)
	}
	return ab, nil
}
