package firm

import (
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/command"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/magcal"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

// RunMagnetometerCalibration collects magnetometer samples for duration
// by subscribing (non-consuming) to telemetry, fits an ellipsoid
// calibration, and, if the fit succeeds, pushes it to the device and
// waits up to applyTimeout for the ack. It returns the fit result (nil
// if the fit failed) and whether the device accepted it.
func (c *Client) RunMagnetometerCalibration(duration, applyTimeout time.Duration) (*magcal.Result, bool, error) {
	cal := magcal.New()
	if err := cal.Start(); err != nil {
		return nil, false, newErr("RunMagnetometerCalibration", ErrInvalidArgument, err.Error(), err)
	}

	unsub := c.Subscribe(func(p telemetry.Packet) {
		cal.AddSample(p.MagX, p.MagY, p.MagZ)
	})
	time.Sleep(duration)
	unsub()

	if err := cal.Stop(); err != nil {
		return nil, false, newErr("RunMagnetometerCalibration", ErrInvalidArgument, err.Error(), err)
	}

	result, err := cal.Calculate()
	if err != nil {
		return nil, false, newErr("RunMagnetometerCalibration", ErrInvalidArgument, err.Error(), err)
	}
	if result == nil {
		return nil, false, newErr("RunMagnetometerCalibration", ErrCalibrationUnderdetermined, "magnetometer fit did not converge", nil)
	}

	accepted, err := c.SetMagnetometerCalibration(command.SetMagnetometerCalibration{
		HardIronX: float32(result.HardIron[0]),
		HardIronY: float32(result.HardIron[1]),
		HardIronZ: float32(result.HardIron[2]),
		SoftIron: [9]float32{
			float32(result.SoftIron[0][0]), float32(result.SoftIron[0][1]), float32(result.SoftIron[0][2]),
			float32(result.SoftIron[1][0]), float32(result.SoftIron[1][1]), float32(result.SoftIron[1][2]),
			float32(result.SoftIron[2][0]), float32(result.SoftIron[2][1]), float32(result.SoftIron[2][2]),
		},
	}, applyTimeout)
	if err != nil {
		return result, false, err
	}
	return result, accepted, nil
}
