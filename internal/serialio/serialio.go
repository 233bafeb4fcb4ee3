// Package serialio opens the real serial transport FIRM speaks over.
package serialio

import (
	"fmt"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/ioports"
)

// Options configures the serial port the client connects to.
type Options struct {
	PortName string
	BaudRate uint

	// ReadTimeout bounds how long a single Read call may block waiting
	// for the device; zero means block indefinitely.
	ReadTimeout time.Duration
}

// Open opens the named serial port with the 8N1 framing FIRM's device
// firmware expects.
func Open(opts Options) (ioports.Port, error) {
	if opts.PortName == "" {
		return nil, fmt.Errorf("serialio: PortName is required")
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = 115200
	}

	interCharTimeout := uint(0)
	if opts.ReadTimeout > 0 {
		interCharTimeout = uint(opts.ReadTimeout / time.Millisecond)
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: interCharTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", opts.PortName, err)
	}
	return port, nil
}
