package firm

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/mockdevice"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

func TestRunMagnetometerCalibrationEndToEnd(t *testing.T) {
	dev := mockdevice.New()
	c := New(Config{Port: dev.ClientPort})
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		c.Stop()
		dev.Close()
	}()

	stop := make(chan struct{})
	go func() {
		rng := rand.New(rand.NewSource(7))
		for {
			select {
			case <-stop:
				return
			default:
			}
			theta := rng.Float64() * math.Pi
			phi := rng.Float64() * 2 * math.Pi
			x := 50 * math.Sin(theta) * math.Cos(phi)
			y := 50 * math.Sin(theta) * math.Sin(phi) * 1.1
			z := 50 * math.Cos(theta) * 0.9
			body := make([]byte, 28*4)
			pkt := telemetry.NewPacket()
			pkt.MagX = float32(10 + x)
			pkt.MagY = float32(-5 + y)
			pkt.MagZ = float32(2 + z)
			encodeTelemetryForTest(body, pkt)
			dev.InjectResponse(proto.IDTelemetry, body)
			time.Sleep(time.Millisecond)
		}
	}()

	go func() {
		for {
			id, ok := dev.WaitForCommandIdentifier(2 * time.Second)
			if !ok {
				return
			}
			if id == proto.IDSetMagnetometerCalibration {
				dev.InjectResponse(proto.IDSetMagnetometerCalibrationAck, []byte{1})
				return
			}
		}
	}()

	result, accepted, err := c.RunMagnetometerCalibration(300*time.Millisecond, time.Second)
	close(stop)
	if err != nil {
		t.Fatalf("RunMagnetometerCalibration: %v", err)
	}
	if result == nil {
		t.Fatal("expected a fit result")
	}
	if !accepted {
		t.Error("expected the device to accept the calibration")
	}
}

// encodeTelemetryForTest mirrors telemetry.Packet's wire layout for test
// fixture construction without exporting an Encode from the telemetry
// package, which the client-facing API never needs.
func encodeTelemetryForTest(body []byte, p telemetry.Packet) {
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(body[off:off+4], math.Float32bits(v))
	}
	put(0, p.Timestamp)
	put(4, p.Temperature)
	put(8, p.Pressure)
	put(12, p.AccelX)
	put(16, p.AccelY)
	put(20, p.AccelZ)
	put(24, p.GyroX)
	put(28, p.GyroY)
	put(32, p.GyroZ)
	put(36, p.MagX)
	put(40, p.MagY)
	put(44, p.MagZ)
	put(48, p.PosX)
	put(52, p.PosY)
	put(56, p.PosZ)
	put(60, p.VelX)
	put(64, p.VelY)
	put(68, p.VelZ)
	put(72, p.EstAccelX)
	put(76, p.EstAccelY)
	put(80, p.EstAccelZ)
	put(84, p.AngularRateX)
	put(88, p.AngularRateY)
	put(92, p.AngularRateZ)
	put(96, p.QuatW)
	put(100, p.QuatX)
	put(104, p.QuatY)
	put(108, p.QuatZ)
}
