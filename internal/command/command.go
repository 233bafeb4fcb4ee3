// Package command encodes host-to-device commands.
package command

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
)

// Command is any encodable host-to-device message. Encode validates its
// own arguments and returns an error instead of emitting bytes for a
// command the device would reject outright.
type Command interface {
	ID() byte
	Encode() ([]byte, error)
}

// GetDeviceInfo requests the device's firmware identity.
type GetDeviceInfo struct{}

func (GetDeviceInfo) ID() byte                { return proto.IDGetDeviceInfo }
func (GetDeviceInfo) Encode() ([]byte, error) { return nil, nil }

// GetDeviceConfig requests the device's current configuration.
type GetDeviceConfig struct{}

func (GetDeviceConfig) ID() byte                { return proto.IDGetDeviceConfig }
func (GetDeviceConfig) Encode() ([]byte, error) { return nil, nil }

// maxDeviceNameBytes bounds DeviceConfig.Name's UTF-8 encoded length.
const maxDeviceNameBytes = 32

// SetDeviceConfig updates the device's name, sample frequency, and
// active transport protocol.
type SetDeviceConfig struct {
	Name        string
	FrequencyHz uint16
	Protocol    response.Protocol
}

func (SetDeviceConfig) ID() byte { return proto.IDSetDeviceConfig }

func (c SetDeviceConfig) Encode() ([]byte, error) {
	if len(c.Name) > maxDeviceNameBytes {
		return nil, fmt.Errorf("command: SetDeviceConfig.Name exceeds %d UTF-8 bytes (got %d)", maxDeviceNameBytes, len(c.Name))
	}
	if c.FrequencyHz < 1 || c.FrequencyHz > 1000 {
		return nil, fmt.Errorf("command: SetDeviceConfig.FrequencyHz must be in [1, 1000], got %d", c.FrequencyHz)
	}
	body := make([]byte, 1+len(c.Name)+2+1)
	body[0] = byte(len(c.Name))
	n := copy(body[1:], c.Name)
	binary.LittleEndian.PutUint16(body[1+n:1+n+2], c.FrequencyHz)
	body[1+n+2] = byte(c.Protocol)
	return body, nil
}

// GetCalibration requests the device's stored IMU and magnetometer
// calibration values.
type GetCalibration struct{}

func (GetCalibration) ID() byte                { return proto.IDGetCalibration }
func (GetCalibration) Encode() ([]byte, error) { return nil, nil }

// SetIMUCalibration pushes accelerometer and gyroscope offset and
// scale-matrix corrections. AccelScale and GyroScale are row-major 3x3
// matrices.
type SetIMUCalibration struct {
	AccelOffsets [3]float32
	AccelScale   [9]float32
	GyroOffsets  [3]float32
	GyroScale    [9]float32
}

func (SetIMUCalibration) ID() byte { return proto.IDSetIMUCalibration }

func (c SetIMUCalibration) Encode() ([]byte, error) {
	vals := make([]float32, 0, 24)
	vals = append(vals, c.AccelOffsets[:]...)
	vals = append(vals, c.AccelScale[:]...)
	vals = append(vals, c.GyroOffsets[:]...)
	vals = append(vals, c.GyroScale[:]...)
	for _, v := range vals {
		if !isFinite(v) {
			return nil, fmt.Errorf("command: SetIMUCalibration contains a non-finite value")
		}
	}
	body := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(body[i*4:i*4+4], math.Float32bits(v))
	}
	return body, nil
}

// SetMagnetometerCalibration pushes a hard-iron offset and a 3x3
// soft-iron correction matrix, in row-major order.
type SetMagnetometerCalibration struct {
	HardIronX, HardIronY, HardIronZ float32
	SoftIron                        [9]float32
}

func (SetMagnetometerCalibration) ID() byte { return proto.IDSetMagnetometerCalibration }

func (c SetMagnetometerCalibration) Encode() ([]byte, error) {
	if !isFinite(c.HardIronX) || !isFinite(c.HardIronY) || !isFinite(c.HardIronZ) {
		return nil, fmt.Errorf("command: SetMagnetometerCalibration hard-iron offset is not finite")
	}
	for _, v := range c.SoftIron {
		if !isFinite(v) {
			return nil, fmt.Errorf("command: SetMagnetometerCalibration soft-iron matrix is not finite")
		}
	}
	body := make([]byte, (3+9)*4)
	binary.LittleEndian.PutUint32(body[0:4], math.Float32bits(c.HardIronX))
	binary.LittleEndian.PutUint32(body[4:8], math.Float32bits(c.HardIronY))
	binary.LittleEndian.PutUint32(body[8:12], math.Float32bits(c.HardIronZ))
	for i, v := range c.SoftIron {
		off := 12 + i*4
		binary.LittleEndian.PutUint32(body[off:off+4], math.Float32bits(v))
	}
	return body, nil
}

// Mock starts or stops device-side mock data looping (distinct from the
// host-side mock log replay, which never touches the wire).
type Mock struct{ Enable bool }

func (Mock) ID() byte { return proto.IDMock }

func (c Mock) Encode() ([]byte, error) {
	return []byte{boolByte(c.Enable)}, nil
}

// Cancel aborts the device's in-progress operation (e.g. a calibration
// capture), if any.
type Cancel struct{}

func (Cancel) ID() byte                { return proto.IDCancel }
func (Cancel) Encode() ([]byte, error) { return nil, nil }

// Reboot requests the device restart. No response is expected; the
// client returns as soon as the command bytes are written.
type Reboot struct{}

func (Reboot) ID() byte                { return proto.IDReboot }
func (Reboot) Encode() ([]byte, error) { return nil, nil }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
