package bundle

import (
	"fmt"
	"time"
)

// BundleBuilder is a fluent constructor for a channel's Route and
// Attributes, producing a Bundle ready for Build. Grounded on the
// teacher's chained-method BundleBuilder shape (Destination/Source/
// ReportTo/Lifetime/Build, erroring lazily and surfacing the first error
// at Build time), adapted from BPv7's canonical-block list to BPv6's
// route/attributes pair.
type BundleBuilder struct {
	err error

	route Route
	attrs Attributes
}

// Builder starts a new BundleBuilder with the defaults v6.c's bp_attr_t
// uses when a channel doesn't override them: best-effort lifetime, no
// custody or integrity request, fragmentation allowed, normal class of
// service, and a generous but finite maximum bundle length.
func Builder() *BundleBuilder {
	return &BundleBuilder{
		attrs: Attributes{
			Lifetime:           uint64(BestEffortLifetime),
			AllowFragmentation: true,
			ClassOfService:     ClassOfServiceNormal,
			CipherSuite:        CipherSuiteCRC16X25,
			MaxLength:          HeaderBufferLen + 4096,
		},
	}
}

func (bldr *BundleBuilder) Error() error {
	return bldr.err
}

// bldrParseEndpoint returns an EndpointID for a given EndpointID or a
// string representing one in "ipn:<node>.<service>" form.
func bldrParseEndpoint(eid interface{}) (e EndpointID, err error) {
	switch v := eid.(type) {
	case EndpointID:
		e = v
	case string:
		e, err = NewEndpointID(v)
	default:
		err = fmt.Errorf("%T is neither an EndpointID nor a string", eid)
	}
	return
}

// bldrParseLifetime returns a lifetime in seconds for a given uint, int,
// or duration string -- BPv6's lifetime field is whole seconds, unlike
// BPv7's microsecond bundle age.
func bldrParseLifetime(lifetime interface{}) (seconds uint64, err error) {
	switch v := lifetime.(type) {
	case uint64:
		seconds = v
	case uint:
		seconds = uint64(v)
	case int:
		if v <= 0 {
			err = fmt.Errorf("lifetime %d must be positive", v)
		} else {
			seconds = uint64(v)
		}
	case string:
		dur, durErr := time.ParseDuration(v)
		if durErr != nil {
			err = durErr
		} else if dur <= 0 {
			err = fmt.Errorf("lifetime's duration %s <= 0", dur)
		} else {
			seconds = uint64(dur.Seconds())
		}
	default:
		err = fmt.Errorf("%T is neither a uint/int nor a duration string", lifetime)
	}
	return
}

func (bldr *BundleBuilder) Source(eid interface{}) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if e, err := bldrParseEndpoint(eid); err != nil {
		bldr.err = err
	} else {
		bldr.route.Local = e
	}
	return bldr
}

func (bldr *BundleBuilder) Destination(eid interface{}) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if e, err := bldrParseEndpoint(eid); err != nil {
		bldr.err = err
	} else {
		bldr.route.Destination = e
	}
	return bldr
}

func (bldr *BundleBuilder) ReportTo(eid interface{}) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if e, err := bldrParseEndpoint(eid); err != nil {
		bldr.err = err
	} else {
		bldr.route.ReportTo = e
	}
	return bldr
}

func (bldr *BundleBuilder) Lifetime(lifetime interface{}) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if seconds, err := bldrParseLifetime(lifetime); err != nil {
		bldr.err = err
	} else {
		bldr.attrs.Lifetime = seconds
	}
	return bldr
}

func (bldr *BundleBuilder) RequestCustody(request bool) *BundleBuilder {
	if bldr.err == nil {
		bldr.attrs.RequestCustody = request
	}
	return bldr
}

func (bldr *BundleBuilder) IntegrityCheck(suite CipherSuite) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if err := suite.checkValid(); err != nil {
		bldr.err = err
		return bldr
	}
	bldr.attrs.IntegrityCheck = true
	bldr.attrs.CipherSuite = suite
	return bldr
}

func (bldr *BundleBuilder) AllowFragmentation(allow bool) *BundleBuilder {
	if bldr.err == nil {
		bldr.attrs.AllowFragmentation = allow
	}
	return bldr
}

func (bldr *BundleBuilder) AdminRecord(isAdminRecord bool) *BundleBuilder {
	if bldr.err == nil {
		bldr.attrs.AdminRecord = isAdminRecord
	}
	return bldr
}

func (bldr *BundleBuilder) ClassOfService(cos ClassOfService) *BundleBuilder {
	if bldr.err == nil {
		bldr.attrs.ClassOfService = cos
	}
	return bldr
}

func (bldr *BundleBuilder) MaxLength(maxLength uint64) *BundleBuilder {
	if bldr.err != nil {
		return bldr
	}
	if maxLength == 0 {
		bldr.err = fmt.Errorf("MaxLength must be positive")
		return bldr
	}
	bldr.attrs.MaxLength = maxLength
	return bldr
}

func (bldr *BundleBuilder) IgnoreExpiration(ignore bool) *BundleBuilder {
	if bldr.err == nil {
		bldr.attrs.IgnoreExpiration = ignore
	}
	return bldr
}

// Build validates the accumulated Route and Attributes and returns a
// Bundle with Prebuilt set, ready to be passed to bundle.Build to lay out
// its header. ReportTo defaults to the source if it was never set, and
// Source/Destination are both required.
func (bldr *BundleBuilder) Build() (*Bundle, error) {
	if bldr.err != nil {
		return nil, bldr.err
	}

	if bldr.route.ReportTo.IsNull() {
		bldr.route.ReportTo = bldr.route.Local
	}
	if bldr.route.Local.IsNull() || bldr.route.Destination.IsNull() {
		return nil, fmt.Errorf("both Source and Destination must be set")
	}
	if err := bldr.route.checkValid(); err != nil {
		return nil, err
	}
	if err := bldr.attrs.checkValid(); err != nil {
		return nil, err
	}

	return &Bundle{
		Route:      bldr.route,
		Attributes: bldr.attrs,
		Prebuilt:   true,
	}, nil
}
