package telemetry

import (
	"encoding/binary"
	"math"
	"testing"
)

func encodeScalars(vals [28]float32) []byte {
	body := make([]byte, wireLen)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(body[i*4:i*4+4], math.Float32bits(v))
	}
	return body
}

func TestNewPacketDefaultQuaternion(t *testing.T) {
	p := NewPacket()
	if p.QuatW != 1 || p.QuatX != 0 || p.QuatY != 0 || p.QuatZ != 0 {
		t.Errorf("default quaternion = (%v,%v,%v,%v), want (1,0,0,0)", p.QuatW, p.QuatX, p.QuatY, p.QuatZ)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	var scalars [28]float32
	for i := range scalars {
		scalars[i] = float32(i) + 0.5
	}
	body := encodeScalars(scalars)

	p, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Timestamp != scalars[0] {
		t.Errorf("Timestamp = %v, want %v", p.Timestamp, scalars[0])
	}
	if p.AccelX != scalars[3] || p.AccelY != scalars[4] || p.AccelZ != scalars[5] {
		t.Errorf("accel mismatch: %v %v %v", p.AccelX, p.AccelY, p.AccelZ)
	}
	if p.PosX != scalars[12] || p.VelX != scalars[15] {
		t.Errorf("pos/vel mismatch: pos=%v vel=%v", p.PosX, p.VelX)
	}
	if p.QuatW != scalars[24] {
		t.Errorf("QuatW = %v, want %v", p.QuatW, scalars[24])
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode(make([]byte, wireLen-4)); err == nil {
		t.Error("expected an error for a short body")
	}
	if _, err := Decode(make([]byte, wireLen+4)); err == nil {
		t.Error("expected an error for an overlong body")
	}
}
