package bundle

import (
	"time"
)

// CreateFunc hands a fragment's raw bytes to a storage adapter and gets
// back the id under which it was stored. isAdminRecord lets the adapter
// route administrative-record fragments differently (the acs bundles never
// belong in the same durable queue as application payload), mirroring the
// create callback v6_send_bundle invokes once per fragment.
type CreateFunc func(isAdminRecord bool, data []byte, timeout time.Duration) (storageID uint64, err error)

// maxExcludeRegions bounds how many excluded byte ranges Receive tracks
// while walking a bundle's extension blocks, mirroring v6.c's fixed-size
// BP_NUM_EXCLUDE_REGIONS array -- a bundle with more holes than this in its
// header is treated as malformed rather than grown without bound.
const maxExcludeRegions = 16

// Build lays out b's header buffer: primary block, then (if requested) a
// CTEB, then (if requested) a BIB, then any forwardedBlocks bytes a
// receiver is carrying along unchanged, leaving b.Data.PayloadOffset
// pointing at where the payload block belongs. forwardedBlocks is nil when
// b.Prebuilt is true (this channel is originating the bundle fresh from
// its Route and Attributes); it holds whatever non-excluded extension
// bytes Receive collected when b.Prebuilt is false (the bundle is being
// forwarded on).
//
// Grounded on v6_build: the same "caller-provided primary vs
// synthesize-from-route" branch, the same primary/CTEB/BIB/forwarded-bytes
// ordering, and the same BundleTooLarge failure once the fixed header
// buffer is exceeded.
func Build(b *Bundle, forwardedBlocks []byte, flags *ErrorFlags) error {
	b.Data = BundleData{}

	if b.Prebuilt {
		if err := b.Route.checkValid(); err != nil {
			return err
		}
		if err := b.Attributes.checkValid(); err != nil {
			return err
		}

		pcf := ProcessingControlFlags(0).WithClassOfService(b.Attributes.ClassOfService)
		pcf |= PCFSingletonDestination
		if b.Attributes.RequestCustody {
			pcf |= PCFCustodyRequested
		}
		if b.Attributes.AdminRecord {
			pcf |= PCFAdminRecordPayload
		}

		b.Primary = PrimaryBlock{
			Version:           bpVersion,
			PCF:               pcf,
			Destination:       b.Route.Destination,
			Source:            b.Route.Local,
			ReportTo:          b.Route.ReportTo,
			Custodian:         NullEndpointID(),
			CreationTimestamp: NewCreationTimestamp(0, 0),
			Lifetime:          b.Attributes.Lifetime,
		}
	}

	index := 0

	n, err := WritePrimaryBlock(b.Data.Header[:], &b.Primary, true, flags)
	if err != nil {
		return err
	}
	index += n

	if b.Attributes.RequestCustody {
		b.Data.CTEBOffset = index
		b.CTEB.Custodian = b.Route.Local
		n, err = WriteCTEB(b.Data.Header[:], index, &b.CTEB, true, flags)
		if err != nil {
			return err
		}
		b.Data.CIDField = Field{Value: b.CTEB.CustodyID, Index: index + ctebOffsetCID, Width: ctebWidthCID}
		index += n
	}

	if b.Attributes.IntegrityCheck {
		b.Data.BIBOffset = index
		b.BIB.Suite = b.Attributes.CipherSuite
		n, err = WriteBIB(b.Data.Header[:], index, &b.BIB, true, flags)
		if err != nil {
			return err
		}
		index += n
	}

	if !b.Prebuilt && len(forwardedBlocks) > 0 {
		if index+len(forwardedBlocks) > HeaderBufferLen {
			setFlag(flags, BundleTooLarge)
			return newCoreError("Build: forwarded header blocks exceed header buffer", BundleTooLarge)
		}
		copy(b.Data.Header[index:], forwardedBlocks)
		index += len(forwardedBlocks)
	}

	if index > HeaderBufferLen {
		setFlag(flags, BundleTooLarge)
		return newCoreError("Build: header exceeds fixed buffer", BundleTooLarge)
	}

	b.Data.PayloadOffset = index
	b.Data.HeaderSize = index
	return nil
}

// Send fragments payload as needed against b.Attributes.MaxLength, stamps
// a fresh creation time and expiration when b.Prebuilt, and hands each
// fragment's bytes to create. It returns the storage id of every fragment
// stored, in fragment order.
//
// Grounded on v6_send_bundle: max_paysize computed against the header
// size recorded by Build (not against the payload block's own small
// header, a quirk carried over unchanged from the original arithmetic);
// the unreliable-clock fallback to BP_UNKNOWN_CREATION_TIME/
// BEST_EFFORT_LIFETIME; the fragment loop updating fragment-offset and
// BIB result per fragment before handing bytes to storage; and the
// post-loop creation-sequence bump for channels that originate bundles.
func Send(b *Bundle, payload []byte, timeout time.Duration, create CreateFunc, flags *ErrorFlags) ([]uint64, error) {
	header := b.Data.Header[:]

	maxPaysize := int64(b.Attributes.MaxLength) - int64(b.Data.PayloadOffset)
	if maxPaysize <= 0 {
		setFlag(flags, BundleTooLarge)
		return nil, newCoreError("Send: header alone exceeds maximum bundle length", BundleTooLarge)
	}

	fragmenting := int64(len(payload)) > maxPaysize
	if fragmenting {
		if !b.Attributes.AllowFragmentation {
			setFlag(flags, BundleTooLarge)
			return nil, newCoreError("Send: payload too large and fragmentation not allowed", BundleTooLarge)
		}
		b.Primary.PCF |= PCFIsFragment
		if _, err := WritePrimaryBlock(header, &b.Primary, false, flags); err != nil {
			return nil, err
		}
	}

	if b.Prebuilt {
		now, reliable := DtnTimeNow()
		seq := b.Primary.CreationTimestamp.SequenceNumber()
		if !reliable {
			setFlag(flags, UnreliableTime)
			b.Primary.CreationTimestamp = NewCreationTimestamp(UnknownCreationTime, seq)
			b.Primary.Lifetime = BestEffortLifetime
			b.Attributes.Lifetime = BestEffortLifetime
		} else {
			b.Primary.CreationTimestamp = NewCreationTimestamp(now, seq)
		}
		if _, err := WritePrimaryBlock(header, &b.Primary, false, flags); err != nil {
			return nil, err
		}
	}

	b.Data.ExpirationTime = ExpirationTime(b.Primary.CreationTimestamp.DtnTime(), b.Attributes.Lifetime, flags)

	var storageIDs []uint64
	payloadOffset := 0
	for payloadOffset < len(payload) {
		fragmentSize := len(payload) - payloadOffset
		if int64(fragmentSize) > maxPaysize {
			fragmentSize = int(maxPaysize)
		}
		fragment := payload[payloadOffset : payloadOffset+fragmentSize]

		if fragmenting {
			b.Primary.FragmentOffset = uint64(payloadOffset)
			b.Primary.TotalDataLength = uint64(len(payload))
			Write(header, Field{Value: b.Primary.FragmentOffset, Index: priOffsetFragOffset, Width: priWidthFragOffset}, flags)
			Write(header, Field{Value: b.Primary.TotalDataLength, Index: priOffsetPayLen, Width: priWidthPayLen}, flags)
		}

		if b.Data.hasBIB() {
			UpdateBIB(header, b.Data.BIBOffset, &b.BIB, fragment)
		}

		n, err := WritePayloadBlock(header, b.Data.PayloadOffset, &b.Payload, fragmentSize, flags)
		if err != nil {
			return storageIDs, err
		}
		b.Data.HeaderSize = b.Data.PayloadOffset + n
		b.Data.BundleSize = b.Data.HeaderSize + fragmentSize

		sid, err := create(b.Primary.IsAdminRecord(), fragment, timeout)
		if err != nil {
			setFlag(flags, StoreFailure)
			return storageIDs, newCoreError("Send: storage create failed", StoreFailure)
		}
		storageIDs = append(storageIDs, sid)
		payloadOffset += fragmentSize
	}

	if b.Prebuilt {
		seqField := Field{Value: b.Primary.CreationTimestamp.SequenceNumber() + 1, Index: priOffsetCreateSeq, Width: priWidthCreateSeq}
		Mask(&seqField)
		Write(header, seqField, flags)
		b.Primary.CreationTimestamp = NewCreationTimestamp(b.Primary.CreationTimestamp.DtnTime(), seqField.Value)
	}

	return storageIDs, nil
}

// blockFlagPatch records a ForwardNoProcess bit that must be set on a
// dropped-no-process-exempt unrecognized block once its bytes are copied
// into a forwarded header buffer, rather than rewritten in place into the
// caller's received wire bytes: the caller's buffer is never mutated by
// Receive, only read.
type blockFlagPatch struct {
	offsetInWire int
	bit          BlockProcessingFlags
}

// excludeRegion marks a byte range within a received wire bundle that a
// forwarded copy must not carry along: the primary block's own span (it
// is rebuilt fresh, not copied), a BIB's span (a forwarded bundle gets its
// own integrity check re-applied when it is re-sent), a drop-no-process
// block's span, or the payload block's span (the payload travels
// separately from the header buffer).
type excludeRegion struct {
	start, end int
}

// Received is everything Receive determined about one incoming wire
// bundle: what should happen to it next, and, if it's being forwarded or
// accepted locally, the rebuilt Bundle ready to hand to Send, plus the
// custodian and custody id surfaced from its CTEB (if it carried one).
type Received struct {
	Outcome   Outcome
	Forward   *Bundle
	Payload   []byte
	Custodian EndpointID
	CustodyID uint64
	HasCTEB   bool

	// AdminRecordType is set only when Outcome is PendingAcknowledgment,
	// naming which administrative record kind the payload held.
	AdminRecordType uint8
}

// Receive parses a received wire bundle, applies the per-block
// processing-flag dispositions (drop, delete-whole-bundle, forward
// anyway), and dispatches on destination and administrative-record type.
//
// Grounded on v6_receive_bundle: the primary-block-first parse, the
// non-zero-dictionary-length rejection, the expiration check ahead of the
// block walk, the exclude-region bookkeeping around BIB and
// drop-no-process blocks (CTEB is read but never excluded -- it always
// rides along with whatever is forwarded), the delete/drop/forward
// dispositions for blocks this implementation doesn't recognize, BIB
// verification against the payload once parsed, and the
// destination-node/destination-service/administrative-record dispatch
// producing PendingForward, RouteNeeded, PendingAcknowledgment,
// PendingAcceptance, Dropped or Noncompliant. Unlike the original, the
// in-place FORWARDNOPROC rewrite is applied to a freshly built forwarding
// buffer instead of the received bytes themselves, so Receive never
// mutates its wire argument.
func Receive(wire []byte, local Route, attrs Attributes, sysnow DtnTime, timeReliable bool, flags *ErrorFlags) (*Received, error) {
	var pb PrimaryBlock
	n, err := ReadPrimaryBlock(wire, &pb, true, flags)
	if err != nil {
		return nil, err
	}

	exprtime := ExpirationTime(pb.CreationTimestamp.DtnTime(), pb.Lifetime, flags)
	if IsExpired(timeReliable, attrs.IgnoreExpiration, exprtime, sysnow) {
		return &Received{Outcome: PendingExpiration}, nil
	}

	excluded := []excludeRegion{{0, n}}
	var patches []blockFlagPatch

	var bib BIB
	haveBIB := false
	var cteb CTEB
	haveCTEB := false

	index := n
	var payload []byte
	var payloadStart int
	dropped := false

loop:
	for index < len(wire) {
		if len(excluded) >= maxExcludeRegions {
			setFlag(flags, Noncompliant)
			return nil, newCoreError("Receive: too many excluded header regions", Noncompliant)
		}

		blockType := wire[index]
		switch blockType {
		case BlockTypeBIB:
			start := index
			nn, err := ReadBIB(wire, index, &bib, true, flags)
			if err != nil {
				return nil, err
			}
			index += nn
			haveBIB = true
			excluded = append(excluded, excludeRegion{start, index})

		case BlockTypeCTEB:
			nn, err := ReadCTEB(wire, index, &cteb, true, flags)
			if err != nil {
				return nil, err
			}
			index += nn
			haveCTEB = true

		case BlockTypePayload:
			start := index
			var pay PayloadBlock
			nn, err := ReadPayloadBlock(wire, index, &pay, flags)
			if err != nil {
				return nil, err
			}
			payloadStart = start
			payload = pay.Data
			index += nn
			excluded = append(excluded, excludeRegion{start, index})
			break loop

		default:
			start := index
			index++
			var flagsField, lenField Field
			flagsField.Index = index
			index = Read(wire, &flagsField, flags)
			lenField.Index = index
			index = Read(wire, &lenField, flags)
			if flags != nil && (flags.Has(SDNVOverflow) || flags.Has(SDNVIncomplete)) {
				return nil, newCoreError("Receive: malformed extension block header", FailedToParse)
			}
			index += int(lenField.Value)

			blkFlags := BlockProcessingFlags(flagsField.Value)
			setFlag(flags, Incomplete)
			if blkFlags.Has(NotifyNoProcess) {
				setFlag(flags, Noncompliant)
			}
			switch {
			case blkFlags.Has(DeleteNoProcess):
				dropped = true
			case blkFlags.Has(DropNoProcess):
				excluded = append(excluded, excludeRegion{start, index})
			default:
				patches = append(patches, blockFlagPatch{offsetInWire: start + 1, bit: ForwardNoProcess})
			}
		}
	}

	if dropped {
		setFlag(flags, Dropped)
		return nil, newCoreError("Receive: unprocessable block requires deleting the bundle", Dropped)
	}
	if payload == nil {
		setFlag(flags, FailedToParse)
		return nil, newCoreError("Receive: no payload block present", FailedToParse)
	}

	if haveBIB {
		if !VerifyBIB(bib, payload) {
			setFlag(flags, FailedIntegrityCheck)
			return nil, newCoreError("Receive: integrity check failed", FailedIntegrityCheck)
		}
	}
	if pb.IsAdminRecord() && len(payload) < 2 {
		setFlag(flags, FailedToParse)
		return nil, newCoreError("Receive: administrative record payload too short", FailedToParse)
	}

	result := &Received{Outcome: Success, Payload: payload, HasCTEB: haveCTEB}
	if haveCTEB {
		result.Custodian = cteb.Custodian
		result.CustodyID = cteb.CustodyID
	}

	switch {
	case pb.Destination.Node != local.Local.Node:
		fwd := buildForward(wire, n, payloadStart, excluded, patches, pb, local, attrs, flags)
		if fwd == nil {
			return nil, newCoreError("Receive: failed to rebuild bundle for forwarding", FailedToParse)
		}
		if pb.CustodyRequested() {
			if !haveCTEB {
				setFlag(flags, Noncompliant)
				return nil, newCoreError("Receive: custody requested without aggregate-custody support", Noncompliant)
			}
		}
		result.Outcome = PendingForward
		result.Forward = fwd
		return result, nil

	case pb.Destination.Service != 0 && pb.Destination.Service != local.Local.Service:
		setFlag(flags, RouteNeeded)
		return nil, newCoreError("Receive: destination service unreachable from this node", RouteNeeded)

	case pb.IsAdminRecord():
		recType := AdminRecordType(payload)
		result.AdminRecordType = recType
		switch recType {
		case AdminRecordTypeAggregateCustodySignal:
			result.Outcome = PendingAcknowledgment
			result.Custodian = pb.Custodian
			return result, nil
		case AdminRecordTypeCustodySignal, AdminRecordTypeStatusReport:
			setFlag(flags, Noncompliant)
			return nil, newCoreError("Receive: unsupported administrative record type", Noncompliant)
		default:
			setFlag(flags, UnknownRecord)
			return nil, newCoreError("Receive: unrecognized administrative record type", UnknownRecord)
		}

	default:
		result.Outcome = PendingAcceptance
		return result, nil
	}
}

// buildForward assembles the non-excluded extension-block bytes lying
// between the primary block and the payload block, applies any pending
// ForwardNoProcess patches to the copies (never to wire itself), rewrites
// the bundle's custody/report-to fields when custody is being taken over,
// and calls Build to produce a ready-to-Send Bundle.
func buildForward(wire []byte, primaryEnd, payloadStart int, excluded []excludeRegion, patches []blockFlagPatch, pb PrimaryBlock, local Route, attrs Attributes, flags *ErrorFlags) *Bundle {
	var buf []byte
	cursor := primaryEnd
	for cursor < payloadStart {
		skipTo := payloadStart
		for _, r := range excluded {
			if r.start >= cursor && r.start < skipTo && r.start != 0 {
				skipTo = r.start
			}
		}
		excludedEnd := cursor
		for _, r := range excluded {
			if r.start == cursor {
				excludedEnd = r.end
			}
		}
		if excludedEnd > cursor {
			cursor = excludedEnd
			continue
		}
		base := len(buf)
		buf = append(buf, wire[cursor:skipTo]...)
		for _, p := range patches {
			if p.offsetInWire >= cursor && p.offsetInWire < skipTo {
				buf[base+(p.offsetInWire-cursor)] |= byte(p.bit)
			}
		}
		cursor = skipTo
	}

	fwd := &Bundle{
		Route:      local,
		Attributes: attrs,
		Prebuilt:   false,
		Primary:    pb,
	}
	if pb.CustodyRequested() {
		fwd.Primary.ReportTo = NullEndpointID()
		fwd.Primary.Custodian = local.Local
	}

	if err := Build(fwd, buf, flags); err != nil {
		return nil
	}
	return fwd
}

// RouteInfo decodes only a wire bundle's primary block into a Route,
// tolerating a nil flags pointer, for diagnostic or routing-table use when
// the caller has no interest in anomaly flags. Grounded on v6_routeinfo,
// which parses the primary with a NULL flags argument and copies its
// source/destination/report-to fields out as a bplib_route_t.
func RouteInfo(wire []byte) (Route, error) {
	var pb PrimaryBlock
	if _, err := ReadPrimaryBlock(wire, &pb, true, nil); err != nil {
		return Route{}, err
	}
	return Route{Local: pb.Source, Destination: pb.Destination, ReportTo: pb.ReportTo}, nil
}
