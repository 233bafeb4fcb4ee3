package command

import (
	"math"
	"strings"
	"testing"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
)

func TestSetDeviceConfigRejectsOutOfRangeFrequency(t *testing.T) {
	cases := []uint16{0, 1001}
	for _, hz := range cases {
		c := SetDeviceConfig{Name: "rocket", FrequencyHz: hz}
		if _, err := c.Encode(); err == nil {
			t.Errorf("FrequencyHz=%d: expected an error", hz)
		}
	}
}

func TestSetDeviceConfigRejectsOversizedName(t *testing.T) {
	c := SetDeviceConfig{Name: strings.Repeat("x", 33), FrequencyHz: 100}
	if _, err := c.Encode(); err == nil {
		t.Error("expected an error for a name over 32 bytes")
	}
}

func TestSetDeviceConfigEncode(t *testing.T) {
	c := SetDeviceConfig{Name: "firm-1", FrequencyHz: 200, Protocol: response.ProtocolUART}
	body, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wantLen := 1 + len("firm-1") + 2 + 1
	if len(body) != wantLen {
		t.Fatalf("len(body) = %d, want %d", len(body), wantLen)
	}
	if body[0] != byte(len("firm-1")) || string(body[1:1+6]) != "firm-1" {
		t.Errorf("unexpected name encoding: %v", body)
	}
}

func TestSetIMUCalibrationRejectsNonFinite(t *testing.T) {
	c := SetIMUCalibration{AccelOffsets: [3]float32{float32(math.NaN()), 0, 0}}
	if _, err := c.Encode(); err == nil {
		t.Error("expected an error for a NaN offset")
	}
}

func TestSetIMUCalibrationEncode(t *testing.T) {
	c := SetIMUCalibration{
		AccelOffsets: [3]float32{1, 2, 3},
		AccelScale:   [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
		GyroOffsets:  [3]float32{4, 5, 6},
		GyroScale:    [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	body, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(body) != 24*4 {
		t.Fatalf("len(body) = %d, want %d", len(body), 24*4)
	}
}

func TestSetMagnetometerCalibrationRejectsNaN(t *testing.T) {
	c := SetMagnetometerCalibration{HardIronX: float32(math.NaN())}
	if _, err := c.Encode(); err == nil {
		t.Error("expected an error for a NaN hard-iron offset")
	}
}

func TestSetMagnetometerCalibrationEncode(t *testing.T) {
	c := SetMagnetometerCalibration{HardIronX: 1, HardIronY: 2, HardIronZ: 3}
	c.SoftIron[0] = 1
	body, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(body) != (3+9)*4 {
		t.Fatalf("len(body) = %d, want %d", len(body), (3+9)*4)
	}
}

func TestNoArgCommandsEncodeEmptyBody(t *testing.T) {
	cmds := []Command{GetDeviceInfo{}, GetDeviceConfig{}, GetCalibration{}, Cancel{}, Reboot{}}
	for _, c := range cmds {
		body, err := c.Encode()
		if err != nil {
			t.Fatalf("%T: %v", c, err)
		}
		if len(body) != 0 {
			t.Errorf("%T: len(body) = %d, want 0", c, len(body))
		}
	}
}

func TestIDsAreDistinctPerCommand(t *testing.T) {
	cmds := []Command{
		GetDeviceInfo{}, GetDeviceConfig{}, SetDeviceConfig{Name: "x", FrequencyHz: 1}, GetCalibration{},
		SetIMUCalibration{}, SetMagnetometerCalibration{}, Mock{}, Cancel{}, Reboot{},
	}
	seen := map[byte]bool{}
	for _, c := range cmds {
		if seen[c.ID()] {
			t.Errorf("duplicate command id %#x for %T", c.ID(), c)
		}
		seen[c.ID()] = true
	}
}
