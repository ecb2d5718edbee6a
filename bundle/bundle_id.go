package bundle

import (
	"fmt"
	"strings"
)

// BundleID identifies a bundle by its source node, creation timestamp and,
// only if the bundle is a fragment, its fragment offset paired with the
// total data length of the unfragmented bundle. This identity is never
// itself put on the wire -- only used as a map key and for logging -- so
// it carries no marshal/unmarshal pair of its own.
type BundleID struct {
	SourceNode EndpointID
	Timestamp  CreationTimestamp

	IsFragment      bool
	FragmentOffset  uint64
	TotalDataLength uint64
}

// NewBundleID derives the identity of a built or parsed bundle from its
// primary block.
func NewBundleID(pb PrimaryBlock) BundleID {
	bid := BundleID{
		SourceNode: pb.Source,
		Timestamp:  pb.CreationTimestamp,
		IsFragment: pb.IsFragment(),
	}
	if bid.IsFragment {
		bid.FragmentOffset = pb.FragmentOffset
		bid.TotalDataLength = pb.TotalDataLength
	}
	return bid
}

func (bid BundleID) String() string {
	var bldr strings.Builder

	fmt.Fprintf(&bldr, "%v-%d-%d",
		bid.SourceNode, bid.Timestamp[0], bid.Timestamp[1])

	if bid.IsFragment {
		fmt.Fprintf(&bldr, "-%d-%d", bid.FragmentOffset, bid.TotalDataLength)
	}

	return bldr.String()
}

// Len returns the amount of fields composing this identity, dependent on
// fragmentation -- kept so callers that size a fixed-field encoding of a
// BundleID don't need to special-case fragmentation themselves.
func (bid BundleID) Len() uint64 {
	if bid.IsFragment {
		return 4
	}
	return 2
}
