package bundle

import (
	"fmt"
	"strings"
)

// ErrorFlags is the bitmask carried alongside every core operation,
// accumulating every anomaly noticed along the way without aborting the
// operation outright. The Has()/String() shape follows this package's
// other table-driven flag types; the bit catalogue itself comes from
// bplib's bp_flags_t.
type ErrorFlags uint32

const (
	Noncompliant ErrorFlags = 1 << iota
	Dropped
	BundleTooLarge
	UnknownRecord
	InvalidCipherSuiteID
	InvalidBIBResultType
	InvalidBIBTargetType
	FailedToParse
	APIError
	SDNVOverflow
	SDNVIncomplete
	UnreliableTime
	StoreFailure
	FailedIntegrityCheck
	RouteNeeded
	Incomplete
	Diagnostic
)

var errorFlagNames = []struct {
	field ErrorFlags
	text  string
}{
	{Noncompliant, "NONCOMPLIANT"},
	{Dropped, "DROPPED"},
	{BundleTooLarge, "BUNDLE_TOO_LARGE"},
	{UnknownRecord, "UNKNOWNREC"},
	{InvalidCipherSuiteID, "INVALID_CIPHER_SUITEID"},
	{InvalidBIBResultType, "INVALID_BIB_RESULT_TYPE"},
	{InvalidBIBTargetType, "INVALID_BIB_TARGET_TYPE"},
	{FailedToParse, "FAILED_TO_PARSE"},
	{APIError, "API_ERROR"},
	{SDNVOverflow, "SDNV_OVERFLOW"},
	{SDNVIncomplete, "SDNV_INCOMPLETE"},
	{UnreliableTime, "UNRELIABLE_TIME"},
	{StoreFailure, "STORE_FAILURE"},
	{FailedIntegrityCheck, "FAILED_INTEGRITY_CHECK"},
	{RouteNeeded, "ROUTE_NEEDED"},
	{Incomplete, "INCOMPLETE"},
	{Diagnostic, "DIAGNOSTIC"},
}

// Has returns true if every bit set in flag is also set in ef.
func (ef ErrorFlags) Has(flag ErrorFlags) bool {
	return ef&flag == flag
}

func (ef ErrorFlags) String() string {
	var fields []string
	for _, c := range errorFlagNames {
		if ef.Has(c.field) {
			fields = append(fields, c.text)
		}
	}
	if len(fields) == 0 {
		return "NONE"
	}
	return strings.Join(fields, ",")
}

// setFlag ORs flag into *flags, tolerating a nil flags pointer -- every
// SDNV and block routine accepts flags possibly being nil, per the
// resolved open question that a null flags pointer must never be
// dereferenced, only skipped.
func setFlag(flags *ErrorFlags, flag ErrorFlags) {
	if flags != nil {
		*flags |= flag
	}
}

// SetFlag is setFlag's exported form, for callers outside this package
// (a channel wiring together storage and custody outcomes, say) that
// need to accumulate into the same *ErrorFlags a Bundle operation was
// given.
func SetFlag(flags *ErrorFlags, flag ErrorFlags) {
	setFlag(flags, flag)
}

// Outcome is the disjoint return-code space a lifecycle operation can
// produce beyond plain success: the PENDING_* dispatch codes Receive hands
// back to the caller, plus the active-buffer and storage dispositions
// DUPLICATE/FULL/TIMEOUT. Modeled as a type distinct from error, since none
// of these represent a failure -- they are successor-action requests.
type Outcome int

const (
	Success Outcome = iota
	PendingAcceptance
	PendingForward
	PendingAcknowledgment
	PendingApplication
	PendingExpiration
	Duplicate
	Full
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case PendingAcceptance:
		return "PENDING_ACCEPTANCE"
	case PendingForward:
		return "PENDING_FORWARD"
	case PendingAcknowledgment:
		return "PENDING_ACKNOWLEDGMENT"
	case PendingApplication:
		return "PENDING_APPLICATION"
	case PendingExpiration:
		return "PENDING_EXPIRATION"
	case Duplicate:
		return "DUPLICATE"
	case Full:
		return "FULL"
	case Timeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// CoreError is the error variant of the core's result type: a short
// category describing what went wrong, plus the ErrorFlags accumulated by
// the time the failure was raised. The codec and lifecycle functions report
// their failures as a *CoreError, so a caller can recover the flags behind
// such an error via errors.As; validation (checkValid, ValidateRoute, the
// Builder) returns plain errors that carry no flags.
type CoreError struct {
	Category string
	Flags    ErrorFlags
}

func newCoreError(category string, flags ...ErrorFlags) *CoreError {
	var f ErrorFlags
	for _, x := range flags {
		f |= x
	}
	return &CoreError{Category: category, Flags: f}
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("%s (flags: %v)", e.Category, e.Flags)
}
