package bundle

import (
	"fmt"
	"regexp"
	"strconv"
)

// EndpointID is a CBHE/IPN endpoint identifier: a (node, service) pair,
// textual form "ipn:<node>.<service>". BPv6 with compressed bundle header
// encoding only ever uses this scheme (no dtn: URIs, no dictionary), so
// this is a concrete struct with two uint64 fields, grounded on
// lib/bundle_types.h's plain node/service integer pairs.
type EndpointID struct {
	Node    uint64
	Service uint64
}

var ipnRegexp = regexp.MustCompile(`^ipn:(\d+)\.(\d+)$`)

// NewEndpointID parses the textual form "ipn:<node>.<service>".
func NewEndpointID(s string) (EndpointID, error) {
	m := ipnRegexp.FindStringSubmatch(s)
	if len(m) != 3 {
		return EndpointID{}, newBundleError("EndpointID: does not match ipn:<node>.<service>")
	}

	node, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return EndpointID{}, err
	}
	service, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return EndpointID{}, err
	}

	return EndpointID{Node: node, Service: service}, nil
}

// MustNewEndpointID parses s as NewEndpointID, panicking on error.
func MustNewEndpointID(s string) EndpointID {
	eid, err := NewEndpointID(s)
	if err != nil {
		panic(err)
	}
	return eid
}

// NullEndpointID is the zero-value "no endpoint" sentinel, equal to
// bplib's BP_IPN_NULL. It is a valid report-to/custodian value (meaning
// "none") but never a valid destination; see DESIGN.md's resolution of the
// EID-zero-value question.
func NullEndpointID() EndpointID {
	return EndpointID{}
}

// IsNull reports whether this is the zero/"no endpoint" sentinel.
func (eid EndpointID) IsNull() bool {
	return eid.Node == 0 && eid.Service == 0
}

// checkValid enforces only that node/service are representable; zero is a
// permitted sentinel here; routability (non-null destination) is checked
// contextually by BundleBuilder.Build and PrimaryBlock.checkValid.
func (eid EndpointID) checkValid() error {
	return nil
}

func (eid EndpointID) String() string {
	return fmt.Sprintf("ipn:%d.%d", eid.Node, eid.Service)
}
