package bundle

import "strings"

// ClassOfService is the BPv6 primary block's priority field, packed into
// the processing control flags alongside the boolean bits.
type ClassOfService uint8

const (
	ClassOfServiceBulk      ClassOfService = 0
	ClassOfServiceNormal    ClassOfService = 1
	ClassOfServiceExpedited ClassOfService = 2
	classOfServiceExtended  ClassOfService = 3 // reserved combination, clamped to Expedited
)

// ProcessingControlFlags is the primary block's pcf SDNV field, packing the
// bundle's boolean processing flags and class-of-service together. Bit
// positions follow RFC 5050 §4.2's processing control flags layout.
type ProcessingControlFlags uint32

const (
	PCFIsFragment          ProcessingControlFlags = 0x000001
	PCFAdminRecordPayload  ProcessingControlFlags = 0x000002
	PCFDoNotFragment       ProcessingControlFlags = 0x000004
	PCFCustodyRequested    ProcessingControlFlags = 0x000008
	PCFSingletonDestination ProcessingControlFlags = 0x000010
	PCFAcknowledgementRequested ProcessingControlFlags = 0x000020
	// bit 0x000040 reserved
	pcfCosLowBit  = 7
	pcfCosHighBit = 8
	// bits 0x000180 hold the 2-bit class of service
)

// Has returns true if every bit set in flag is also set in pcf.
func (pcf ProcessingControlFlags) Has(flag ProcessingControlFlags) bool {
	return pcf&flag == flag
}

// ClassOfService extracts the 2-bit priority field.
func (pcf ProcessingControlFlags) ClassOfService() ClassOfService {
	return ClassOfService((pcf >> pcfCosLowBit) & 0x3)
}

// WithClassOfService returns pcf with its class-of-service bits replaced,
// clamping the reserved 0x3 combination down to Expedited, mirroring
// v6.c's clamp to BP_COS_EXPEDITED.
func (pcf ProcessingControlFlags) WithClassOfService(cos ClassOfService) ProcessingControlFlags {
	if cos == classOfServiceExtended {
		cos = ClassOfServiceExpedited
	}
	cleared := pcf &^ (0x3 << pcfCosLowBit)
	return cleared | (ProcessingControlFlags(cos) << pcfCosLowBit)
}

var pcfFlagNames = []struct {
	field ProcessingControlFlags
	text  string
}{
	{PCFIsFragment, "IS_FRAGMENT"},
	{PCFAdminRecordPayload, "ADMIN_RECORD"},
	{PCFDoNotFragment, "DO_NOT_FRAGMENT"},
	{PCFCustodyRequested, "CUSTODY_REQUESTED"},
	{PCFSingletonDestination, "SINGLETON_DESTINATION"},
	{PCFAcknowledgementRequested, "ACK_REQUESTED"},
}

func (pcf ProcessingControlFlags) String() string {
	var fields []string
	for _, c := range pcfFlagNames {
		if pcf.Has(c.field) {
			fields = append(fields, c.text)
		}
	}
	return strings.Join(fields, ",")
}
