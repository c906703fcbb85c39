package vtserver

// VT PGNs.
const (
	PGNECUToVT     uint32 = 0x00E600
	PGNVTToECU     uint32 = 0x00E700
	PGNAcknowledge uint32 = 0x00E800
)

// priorityLowest is the CAN priority used for every VT response frame.
const priorityLowest = 7

// Function is the VT function code carried in byte 0 of every frame on
// the ECU→VT and VT→ECU PGNs.
type Function uint8

// Client-to-server commands and server-to-client messages. Codes are
// direction scoped: LoadVersion and the GetVersions response share 0xD0,
// and GetSupportedObjects shares 0xFE with the VT status message.
const (
	FunctionSoftKeyActivation     Function = 0x00
	FunctionButtonActivation      Function = 0x01
	FunctionPointingEvent         Function = 0x02
	FunctionVTSelectInputObject   Function = 0x03
	FunctionVTESC                 Function = 0x04
	FunctionVTChangeNumericValue  Function = 0x05
	FunctionVTChangeActiveMask    Function = 0x06
	FunctionObjectPoolTransfer    Function = 0x11
	FunctionEndOfObjectPool       Function = 0x12
	FunctionESC                   Function = 0x92
	FunctionHideShowObject        Function = 0xA0
	FunctionEnableDisableObject   Function = 0xA1
	FunctionSelectInputObject     Function = 0xA2
	FunctionControlAudioSignal    Function = 0xA3
	FunctionSetAudioVolume        Function = 0xA4
	FunctionChangeChildLocation   Function = 0xA5
	FunctionChangeActiveMask      Function = 0xA6
	FunctionChangeSoftKeyMask     Function = 0xA7
	FunctionChangeNumericValue    Function = 0xA8
	FunctionChangeFillAttributes  Function = 0xAA
	FunctionChangeSize            Function = 0xAB
	FunctionChangeFontAttributes  Function = 0xAC
	FunctionChangeAttribute       Function = 0xAF
	FunctionChangeListItem        Function = 0xB2
	FunctionChangeStringValue     Function = 0xB3
	FunctionChangeChildPosition   Function = 0xB4
	FunctionGetMemory             Function = 0xC0
	FunctionGetNumberOfSoftKeys   Function = 0xC1
	FunctionGetHardware           Function = 0xC2
	FunctionGetTextFontData       Function = 0xC3
	FunctionGetSupportedWidechars Function = 0xC6
	FunctionLoadVersion           Function = 0xD0
	FunctionGetVersionsResponse   Function = 0xD0
	FunctionStoreVersion          Function = 0xD1
	FunctionGetVersions           Function = 0xDF
	FunctionGetSupportedObjects   Function = 0xFE
	FunctionVTStatus              Function = 0xFE
	FunctionWorkingSetMaintenance Function = 0xFF
)

// Error bit positions shared by the command response bitfields. Each
// response sets (1 << bit).
const (
	errorBitInvalidObjectID = 0
	errorBitInvalidValue    = 1
	errorBitAnyOtherError   = 4
)

// Change active mask response error bits.
const (
	errorBitInvalidWorkingSetObjectID = 0
	errorBitInvalidMaskObjectID       = 1
)

// Change child location/position response error bits.
const (
	errorBitParentObjectMissing = 0
	errorBitTargetObjectMissing = 1
)

// Change soft key mask response error bits.
const (
	errorBitInvalidMaskID        = 0
	errorBitInvalidSoftKeyMaskID = 1
)

// Change list item response error bits.
const (
	errorBitListInvalidObjectID = 0
	errorBitInvalidListItemID   = 1
)

// Change fill attributes response error bits.
const (
	errorBitFillInvalidObjectID  = 0
	errorBitFillInvalidType      = 1
	errorBitFillInvalidPatternID = 2
)

// Change font attributes response error bits.
const (
	errorBitFontInvalidObjectID = 0
	errorBitFontInvalidSize     = 1
)

// Enable/disable response error bits.
const (
	errorBitEnableInvalidObjectID = 0
	errorBitEnableInvalidValue    = 1
)

// acknowledgementNegative is the control byte of a NACK on the
// Acknowledge PGN.
const acknowledgementNegative = 0x01

// Busy code bits reported in the VT status message.
const (
	BusyUpdatingVisibleMask  = 1 << 0
	BusySavingToNonVolatile  = 1 << 1
	BusyExecutingCommand     = 1 << 2
	BusyExecutingMacro       = 1 << 3
	BusyParsingObjectPool    = 1 << 4
	BusyAuxAssignmentPending = 1 << 6
)
