package response

import (
	"encoding/binary"
	"testing"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
)

func TestDecodeDeviceInfo(t *testing.T) {
	version := "1.2.3"
	body := append([]byte{byte(len(version))}, []byte(version)...)
	idBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBuf, 42)
	body = append(body, idBuf...)

	msg, err := Decode(proto.IDDeviceInfo, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	info, ok := msg.(DeviceInfo)
	if !ok {
		t.Fatalf("got %T, want DeviceInfo", msg)
	}
	if info.FirmwareVersion != "1.2.3" || info.ID != 42 {
		t.Errorf("unexpected fields: %+v", info)
	}
	if info.Kind() != KindDeviceInfo {
		t.Errorf("Kind() = %v, want KindDeviceInfo", info.Kind())
	}
}

func TestDecodeDeviceConfig(t *testing.T) {
	name := "firm-1"
	body := append([]byte{byte(len(name))}, []byte(name)...)
	freqBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(freqBuf, 250)
	body = append(body, freqBuf...)
	body = append(body, byte(ProtocolSPI))

	msg, err := Decode(proto.IDDeviceConfig, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cfg, ok := msg.(DeviceConfig)
	if !ok {
		t.Fatalf("got %T, want DeviceConfig", msg)
	}
	if cfg.Name != "firm-1" || cfg.FrequencyHz != 250 || cfg.Protocol != ProtocolSPI {
		t.Errorf("unexpected fields: %+v", cfg)
	}
}

func TestDecodeCalibrationValues(t *testing.T) {
	body := make([]byte, 36*4)
	for i := 0; i < 36; i++ {
		binary.LittleEndian.PutUint32(body[i*4:i*4+4], uint32(i))
	}
	msg, err := Decode(proto.IDCalibrationValues, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	cal, ok := msg.(CalibrationValues)
	if !ok {
		t.Fatalf("got %T, want CalibrationValues", msg)
	}
	if cal.IMUGyroOffsets[0] == 0 && cal.IMUGyroScale[8] == 0 {
		t.Errorf("unexpected zeroed fields: %+v", cal)
	}
}

func TestDecodeDeviceError(t *testing.T) {
	body := append([]byte{0x07, 0x00}, []byte("bad state")...)
	msg, err := Decode(proto.IDDeviceError, body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	de, ok := msg.(DeviceError)
	if !ok {
		t.Fatalf("got %T, want DeviceError", msg)
	}
	if de.Code != 7 || de.Message != "bad state" {
		t.Errorf("unexpected DeviceError: %+v", de)
	}
}

func TestDecodeAcks(t *testing.T) {
	cases := []struct {
		id   byte
		kind Kind
	}{
		{proto.IDSetDeviceConfigAck, KindSetDeviceConfigAck},
		{proto.IDSetIMUCalibrationAck, KindSetIMUCalibrationAck},
		{proto.IDSetMagnetometerCalibrationAck, KindSetMagnetometerCalibrationAck},
		{proto.IDMockAck, KindMockAck},
		{proto.IDCancelAck, KindCancelAck},
	}
	for _, tc := range cases {
		msg, err := Decode(tc.id, []byte{1})
		if err != nil {
			t.Fatalf("id %#x: %v", tc.id, err)
		}
		if msg.Kind() != tc.kind {
			t.Errorf("id %#x: Kind() = %v, want %v", tc.id, msg.Kind(), tc.kind)
		}
	}
}

func TestDecodeUnknownID(t *testing.T) {
	if _, err := Decode(0xE1, nil); err == nil {
		t.Error("expected an error for an unrecognized response id")
	}
}

func TestDecodeShortBodyIsError(t *testing.T) {
	if _, err := Decode(proto.IDDeviceInfo, []byte{9}); err == nil {
		t.Error("expected an error for a truncated DeviceInfo body")
	}
}
