// Package telemetry decodes the device's unsolicited data packets.
package telemetry

import (
	"encoding/binary"
	"math"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
)

// wireLen is the fixed byte length of an encoded Packet: 28 float32 scalars.
const wireLen = 28 * 4

// Packet is one decoded telemetry sample: a monotonic device timestamp,
// ambient temperature and pressure, raw IMU and magnetometer axes, and
// the device's fused position/velocity/acceleration/angular-rate/
// orientation estimate.
type Packet struct {
	// Timestamp is seconds since device boot, monotonic and
	// non-decreasing within a session.
	Timestamp float32 `json:"timestamp"`

	Temperature float32 `json:"temperature"`
	Pressure    float32 `json:"pressure"`

	AccelX float32 `json:"accel_x"`
	AccelY float32 `json:"accel_y"`
	AccelZ float32 `json:"accel_z"`

	GyroX float32 `json:"gyro_x"`
	GyroY float32 `json:"gyro_y"`
	GyroZ float32 `json:"gyro_z"`

	MagX float32 `json:"mag_x"`
	MagY float32 `json:"mag_y"`
	MagZ float32 `json:"mag_z"`

	// PosX/Y/Z is the fused position estimate, in meters.
	PosX float32 `json:"pos_x"`
	PosY float32 `json:"pos_y"`
	PosZ float32 `json:"pos_z"`

	// VelX/Y/Z is the fused velocity estimate, in meters per second.
	VelX float32 `json:"vel_x"`
	VelY float32 `json:"vel_y"`
	VelZ float32 `json:"vel_z"`

	// EstAccelX/Y/Z is the fused acceleration estimate, in Gs.
	EstAccelX float32 `json:"est_accel_x"`
	EstAccelY float32 `json:"est_accel_y"`
	EstAccelZ float32 `json:"est_accel_z"`

	// AngularRateX/Y/Z is the fused angular rate estimate, in rad/s.
	AngularRateX float32 `json:"angular_rate_x"`
	AngularRateY float32 `json:"angular_rate_y"`
	AngularRateZ float32 `json:"angular_rate_z"`

	QuatW float32 `json:"quat_w"`
	QuatX float32 `json:"quat_x"`
	QuatY float32 `json:"quat_y"`
	QuatZ float32 `json:"quat_z"`
}

// NewPacket returns a Packet with an identity orientation quaternion
// (w=1, x=y=z=0), matching the device's power-on default before any
// fusion estimate has converged.
func NewPacket() Packet {
	return Packet{QuatW: 1}
}

// Decode parses a IDTelemetry frame body into a Packet. All 28 scalars
// are single-precision IEEE-754, little-endian, in declaration order.
func Decode(body []byte) (Packet, error) {
	if len(body) != wireLen {
		return Packet{}, errMalformed("telemetry", len(body), wireLen)
	}
	var scalars [28]float32
	for i := range scalars {
		bits := binary.LittleEndian.Uint32(body[i*4 : i*4+4])
		scalars[i] = math.Float32frombits(bits)
	}

	var p Packet
	p.Timestamp = scalars[0]
	p.Temperature, p.Pressure = scalars[1], scalars[2]
	p.AccelX, p.AccelY, p.AccelZ = scalars[3], scalars[4], scalars[5]
	p.GyroX, p.GyroY, p.GyroZ = scalars[6], scalars[7], scalars[8]
	p.MagX, p.MagY, p.MagZ = scalars[9], scalars[10], scalars[11]
	p.PosX, p.PosY, p.PosZ = scalars[12], scalars[13], scalars[14]
	p.VelX, p.VelY, p.VelZ = scalars[15], scalars[16], scalars[17]
	p.EstAccelX, p.EstAccelY, p.EstAccelZ = scalars[18], scalars[19], scalars[20]
	p.AngularRateX, p.AngularRateY, p.AngularRateZ = scalars[21], scalars[22], scalars[23]
	p.QuatW, p.QuatX, p.QuatY, p.QuatZ = scalars[24], scalars[25], scalars[26], scalars[27]

	return p, nil
}

// ID is the wire identifier this package decodes.
const ID = proto.IDTelemetry

func errMalformed(what string, got, want int) error {
	return &decodeError{what: what, got: got, want: want}
}

type decodeError struct {
	what      string
	got, want int
}

func (e *decodeError) Error() string {
	return "telemetry: malformed " + e.what + " body"
}
