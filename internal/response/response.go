// Package response decodes the device's replies to host commands.
package response

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
)

// Kind identifies a response's concrete type without a type switch.
type Kind int

const (
	KindDeviceInfo Kind = iota
	KindDeviceConfig
	KindCalibrationValues
	KindSetDeviceConfigAck
	KindSetIMUCalibrationAck
	KindSetMagnetometerCalibrationAck
	KindMockAck
	KindCancelAck
	KindDeviceError
)

func (k Kind) String() string {
	switch k {
	case KindDeviceInfo:
		return "DeviceInfo"
	case KindDeviceConfig:
		return "DeviceConfig"
	case KindCalibrationValues:
		return "CalibrationValues"
	case KindSetDeviceConfigAck:
		return "SetDeviceConfigAck"
	case KindSetIMUCalibrationAck:
		return "SetIMUCalibrationAck"
	case KindSetMagnetometerCalibrationAck:
		return "SetMagnetometerCalibrationAck"
	case KindMockAck:
		return "MockAck"
	case KindCancelAck:
		return "CancelAck"
	case KindDeviceError:
		return "DeviceError"
	default:
		return "Unknown"
	}
}

// Message is any decoded response. The marker method keeps it a closed
// set implemented only by types in this package.
type Message interface {
	Kind() Kind
	isResponse()
}

// Protocol identifies the transport the device's configuration applies
// to.
type Protocol uint8

const (
	ProtocolUSB Protocol = iota
	ProtocolUART
	ProtocolI2C
	ProtocolSPI
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUSB:
		return "USB"
	case ProtocolUART:
		return "UART"
	case ProtocolI2C:
		return "I2C"
	case ProtocolSPI:
		return "SPI"
	default:
		return "Unknown"
	}
}

// DeviceInfo answers GetDeviceInfo.
type DeviceInfo struct {
	FirmwareVersion string `json:"firmware_version"`
	ID              uint64 `json:"id"`
}

func (DeviceInfo) Kind() Kind  { return KindDeviceInfo }
func (DeviceInfo) isResponse() {}

// DeviceConfig answers GetDeviceConfig.
type DeviceConfig struct {
	Name        string   `json:"name"`
	FrequencyHz uint16   `json:"frequency_hz"`
	Protocol    Protocol `json:"protocol"`
}

func (DeviceConfig) Kind() Kind  { return KindDeviceConfig }
func (DeviceConfig) isResponse() {}

// CalibrationValues answers GetCalibration: accelerometer and gyroscope
// offsets plus their 3x3 scale matrices (row-major), and a magnetometer
// offset plus its 3x3 scale matrix (row-major).
type CalibrationValues struct {
	IMUAccelOffsets [3]float32 `json:"imu_accel_offsets"`
	IMUAccelScale   [9]float32 `json:"imu_accel_scale"`
	IMUGyroOffsets  [3]float32 `json:"imu_gyro_offsets"`
	IMUGyroScale    [9]float32 `json:"imu_gyro_scale"`
	MagOffsets      [3]float32 `json:"mag_offsets"`
	MagScale        [9]float32 `json:"mag_scale"`
}

func (CalibrationValues) Kind() Kind  { return KindCalibrationValues }
func (CalibrationValues) isResponse() {}

// SetDeviceConfigAck acknowledges SetDeviceConfig.
type SetDeviceConfigAck struct{ Accepted bool }

func (SetDeviceConfigAck) Kind() Kind  { return KindSetDeviceConfigAck }
func (SetDeviceConfigAck) isResponse() {}

// SetIMUCalibrationAck acknowledges SetIMUCalibration.
type SetIMUCalibrationAck struct{ Accepted bool }

func (SetIMUCalibrationAck) Kind() Kind  { return KindSetIMUCalibrationAck }
func (SetIMUCalibrationAck) isResponse() {}

// SetMagnetometerCalibrationAck acknowledges SetMagnetometerCalibration.
type SetMagnetometerCalibrationAck struct{ Accepted bool }

func (SetMagnetometerCalibrationAck) Kind() Kind  { return KindSetMagnetometerCalibrationAck }
func (SetMagnetometerCalibrationAck) isResponse() {}

// MockAck acknowledges a Mock command (mock log playback start/stop on
// the device side, when the device itself supports looping a capture).
type MockAck struct{ Accepted bool }

func (MockAck) Kind() Kind  { return KindMockAck }
func (MockAck) isResponse() {}

// CancelAck acknowledges Cancel.
type CancelAck struct{ Accepted bool }

func (CancelAck) Kind() Kind  { return KindCancelAck }
func (CancelAck) isResponse() {}

// DeviceError reports a device-side failure in lieu of a positive ack.
type DeviceError struct {
	Code    uint16 `json:"code"`
	Message string `json:"message"`
}

func (e DeviceError) Error() string { return fmt.Sprintf("device error %d: %s", e.Code, e.Message) }
func (DeviceError) Kind() Kind      { return KindDeviceError }
func (DeviceError) isResponse()     {}

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off : off+4]))
}

func f32s(b []byte, off, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = f32(b, off+i*4)
	}
	return out
}

// Decode dispatches on id and parses body into the matching Message.
func Decode(id byte, body []byte) (Message, error) {
	switch id {
	case proto.IDDeviceInfo:
		if len(body) < 1 {
			return nil, fmt.Errorf("response: malformed DeviceInfo body (%d bytes)", len(body))
		}
		n := int(body[0])
		if len(body) < 1+n+8 {
			return nil, fmt.Errorf("response: malformed DeviceInfo body (%d bytes)", len(body))
		}
		return DeviceInfo{
			FirmwareVersion: string(body[1 : 1+n]),
			ID:              binary.LittleEndian.Uint64(body[1+n : 1+n+8]),
		}, nil

	case proto.IDDeviceConfig:
		if len(body) < 1 {
			return nil, fmt.Errorf("response: malformed DeviceConfig body (%d bytes)", len(body))
		}
		n := int(body[0])
		if len(body) < 1+n+3 {
			return nil, fmt.Errorf("response: malformed DeviceConfig body (%d bytes)", len(body))
		}
		return DeviceConfig{
			Name:        string(body[1 : 1+n]),
			FrequencyHz: binary.LittleEndian.Uint16(body[1+n : 1+n+2]),
			Protocol:    Protocol(body[1+n+2]),
		}, nil

	case proto.IDCalibrationValues:
		const want = 36 * 4
		if len(body) < want {
			return nil, fmt.Errorf("response: malformed CalibrationValues body (%d bytes, want %d)", len(body), want)
		}
		var c CalibrationValues
		copy(c.IMUAccelOffsets[:], f32s(body, 0, 3))
		copy(c.IMUAccelScale[:], f32s(body, 12, 9))
		copy(c.IMUGyroOffsets[:], f32s(body, 48, 3))
		copy(c.IMUGyroScale[:], f32s(body, 60, 9))
		copy(c.MagOffsets[:], f32s(body, 96, 3))
		copy(c.MagScale[:], f32s(body, 108, 9))
		return c, nil

	case proto.IDSetDeviceConfigAck:
		return SetDeviceConfigAck{Accepted: ackByte(body)}, nil
	case proto.IDSetIMUCalibrationAck:
		return SetIMUCalibrationAck{Accepted: ackByte(body)}, nil
	case proto.IDSetMagnetometerCalibrationAck:
		return SetMagnetometerCalibrationAck{Accepted: ackByte(body)}, nil
	case proto.IDMockAck:
		return MockAck{Accepted: ackByte(body)}, nil
	case proto.IDCancelAck:
		return CancelAck{Accepted: ackByte(body)}, nil

	case proto.IDDeviceError:
		if len(body) < 2 {
			return nil, fmt.Errorf("response: malformed DeviceError body (%d bytes)", len(body))
		}
		return DeviceError{
			Code:    binary.LittleEndian.Uint16(body[0:2]),
			Message: string(body[2:]),
		}, nil

	default:
		return nil, fmt.Errorf("response: unrecognized response id %#x", id)
	}
}

func ackByte(body []byte) bool {
	return len(body) > 0 && body[0] != 0
}
