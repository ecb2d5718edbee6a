package bundle

import (
	"fmt"
	"strings"
)

// HeaderBufferLen is the fixed size of a Bundle's pre-serialized header
// buffer, taken from v6.c's static BP_BUNDLE_HDR_BUF_SIZE. Every primary,
// CTEB, BIB and payload-block-header byte laid out by build must fit inside
// this buffer; exceeding it fails the build with BundleTooLarge.
const HeaderBufferLen = 128

// VacantStorageID is the sentinel storage-id marking an active-buffer slot
// as unoccupied, taken from cbuf.c's BP_SID_VACANT.
const VacantStorageID uint64 = ^uint64(0)

// Route holds the three endpoints a channel is configured with: the local
// node this channel speaks for, the bundle's destination, and the endpoint
// status reports should be sent to. Grounded on v6.c's bplib_route_t
// node/service pairs, decomposed here into EndpointID values.
type Route struct {
	Local       EndpointID
	Destination EndpointID
	ReportTo    EndpointID
}

// ValidateRoute is checkValid's exported form, for packages outside
// bundle (a channel opening against a caller-supplied Route, say) that
// need the same check this package applies to its own Routes internally.
func ValidateRoute(r Route) error {
	return r.checkValid()
}

func (r Route) checkValid() error {
	if r.Local.IsNull() {
		return newBundleError("Route: local endpoint must not be the null endpoint")
	}
	return nil
}

func (r Route) String() string {
	return fmt.Sprintf("local: %v, destination: %v, report-to: %v", r.Local, r.Destination, r.ReportTo)
}

// Attributes is a channel's policy, grounded on v6.c's bp_attr_t: how long
// a bundle built on this channel lives, whether it asks for custody
// transfer and integrity checking, whether fragmentation is permitted, and
// the cipher suite and class of service to stamp into new bundles.
type Attributes struct {
	Lifetime           uint64
	RequestCustody     bool
	IntegrityCheck     bool
	AllowFragmentation bool
	AdminRecord        bool
	IgnoreExpiration   bool
	ClassOfService     ClassOfService
	CipherSuite        CipherSuite
	MaxLength          uint64
}

func (a Attributes) checkValid() error {
	if a.MaxLength == 0 {
		return newBundleError("Attributes: maximum bundle length must be positive")
	}
	if a.IntegrityCheck {
		if err := a.CipherSuite.checkValid(); err != nil {
			return err
		}
	}
	return nil
}

func (a Attributes) String() string {
	return fmt.Sprintf(
		"lifetime: %d, custody: %v, integrity: %v, fragmentation: %v, class-of-service: %v",
		a.Lifetime, a.RequestCustody, a.IntegrityCheck, a.AllowFragmentation, a.ClassOfService)
}

// BundleData is a Bundle's pre-serialized wire representation plus the
// bookkeeping build needs to mutate it in place later: the byte offsets of
// the CTEB, BIB and payload block within Header, and the SDNV field
// descriptor build recorded for the CTEB's custody-id so a later custody-id
// assignment can be stamped in without re-walking the buffer.
type BundleData struct {
	Header     [HeaderBufferLen]byte
	HeaderSize int
	BundleSize int

	ExpirationTime DtnTime

	CTEBOffset    int
	BIBOffset     int
	PayloadOffset int

	CIDField Field
}

func (bd *BundleData) hasCTEB() bool {
	return bd.CTEBOffset != 0
}

func (bd *BundleData) hasBIB() bool {
	return bd.BIBOffset != 0
}

// Bundle is a built, owned instance of one bundle on one channel: the
// route and attributes it was built from, its serialized header buffer,
// the Prebuilt flag recording whether this process synthesized the primary
// block itself (originate) or is re-serializing a parsed one (forward),
// and the decoded block values currently reflected in Header.
//
// Grounded on v6.c's bundle_t: the blocks-owned-by-the-bundle arena shape
// is realized here as four struct fields instead of a C union/opaque
// handle, since Go has no need for the original's manual memory layout.
type Bundle struct {
	Route      Route
	Attributes Attributes
	Data       BundleData
	Prebuilt   bool

	Primary PrimaryBlock
	CTEB    CTEB
	BIB     BIB
	Payload PayloadBlock
}

// IsFragment reports whether this Bundle's primary block marks it as a
// fragment.
func (b *Bundle) IsFragment() bool {
	return b.Primary.IsFragment()
}

func (b *Bundle) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "route: {%v}, attributes: {%v}, primary: {%v}", b.Route, b.Attributes, b.Primary)
	if b.Data.hasCTEB() {
		fmt.Fprintf(&s, ", cteb: {%v}", b.CTEB)
	}
	if b.Data.hasBIB() {
		fmt.Fprintf(&s, ", bib: {%v}", b.BIB)
	}
	fmt.Fprintf(&s, ", payload: %d bytes", len(b.Payload.Data))
	return s.String()
}

// ActiveBundle is the triple the active circular buffer stores per
// outstanding custody id: which storage-id holds the bundle's bytes, when
// it should next be retransmitted if unacknowledged, and the custody id
// itself (redundant with the slot index, kept for the vacancy check and
// for the robin-hood map's lookup-by-storage-id path). Grounded on cbuf.c's
// bp_active_bundle_t.
type ActiveBundle struct {
	StorageID      uint64
	RetransmitTime DtnTime
	CustodyID      uint64
}

// IsVacant reports whether this slot holds no bundle.
func (ab ActiveBundle) IsVacant() bool {
	return ab.StorageID == VacantStorageID
}
