// Package proto defines the wire-level constants shared by the frame
// codec, packet parser, and command encoder: the sync prefix, the maximum
// frame size, and the identifier table partitioning data, response, and
// command identifiers.
package proto

// SyncByte0, SyncByte1 are the two-byte sync prefix that opens every frame.
const (
	SyncByte0 = 0xFA
	SyncByte1 = 0xCE
)

// HeaderLen is sync(2) + id(1) + len(2). TrailerLen is crc(2).
const (
	HeaderLen  = 5
	TrailerLen = 2
)

// MaxBodyLen bounds a declared body length; anything larger is a framing
// fault rather than a real frame.
const MaxBodyLen = 4096

// Data identifiers: unsolicited telemetry.
const (
	IDTelemetry = 0x01
)

// Response identifiers: replies to a command.
const (
	IDDeviceInfo                    = 0x80
	IDDeviceConfig                  = 0x81
	IDCalibrationValues             = 0x82
	IDSetDeviceConfigAck            = 0x83
	IDSetIMUCalibrationAck          = 0x84
	IDSetMagnetometerCalibrationAck = 0x85
	IDMockAck                       = 0x86
	IDCancelAck                     = 0x87
	IDDeviceError                   = 0xFF
)

// Command identifiers: host to device.
const (
	IDGetDeviceInfo                = 0x01
	IDGetDeviceConfig              = 0x02
	IDSetDeviceConfig              = 0x03
	IDGetCalibration               = 0x04
	IDSetIMUCalibration            = 0x05
	IDSetMagnetometerCalibration   = 0x06
	IDMock                         = 0x07
	IDCancel                       = 0x08
	IDReboot                       = 0x09
)

// Family identifies which of the three disjoint identifier ranges an id
// belongs to.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyData
	FamilyResponse
	FamilyCommand
)

// ClassifyDataOrResponse returns the family of an identifier as seen on
// the inbound (device-to-host) side, where only Data and Response ids are
// legal. Command ids are outbound-only and never classified here.
func ClassifyDataOrResponse(id byte) Family {
	switch id {
	case IDTelemetry:
		return FamilyData
	case IDDeviceInfo, IDDeviceConfig, IDCalibrationValues, IDSetDeviceConfigAck,
		IDSetIMUCalibrationAck, IDSetMagnetometerCalibrationAck, IDMockAck,
		IDCancelAck, IDDeviceError:
		return FamilyResponse
	default:
		return FamilyUnknown
	}
}
