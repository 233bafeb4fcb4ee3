// Package mockdevice is an in-process test harness standing in for a
// real FIRM device: it exposes a byte pair where what the client reads
// is what the mock writes, and vice versa, with no real hardware
// involved.
package mockdevice

import (
	"io"
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/frame"
)

// Device is the mock's own side of the pipe pair. ClientPort is handed
// to a firm.Client as its Config.Port.
type Device struct {
	ClientPort io.ReadWriteCloser

	toClient   *io.PipeWriter
	fromClient *io.PipeReader

	mu  sync.Mutex
	dec *frame.Decoder

	cmds chan byte
}

// clientSide bundles the two pipe ends the client reads from and writes
// to into a single io.ReadWriteCloser.
type clientSide struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (c clientSide) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c clientSide) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c clientSide) Close() error {
	_ = c.r.Close()
	return c.w.Close()
}

// New constructs a connected Device/client port pair.
func New() *Device {
	toClientR, toClientW := io.Pipe()
	fromClientR, fromClientW := io.Pipe()

	d := &Device{
		ClientPort: clientSide{r: toClientR, w: fromClientW},
		toClient:   toClientW,
		fromClient: fromClientR,
		dec:        frame.NewDecoder(),
		cmds:       make(chan byte, 64),
	}
	go d.readCommands()
	return d
}

func (d *Device) readCommands() {
	buf := make([]byte, 4096)
	for {
		n, err := d.fromClient.Read(buf)
		if n > 0 {
			d.mu.Lock()
			d.dec.Feed(buf[:n])
			var frames []frame.Frame
			for {
				f, ok := d.dec.Next()
				if !ok {
					break
				}
				frames = append(frames, f)
			}
			d.mu.Unlock()
			for _, f := range frames {
				d.cmds <- f.ID
			}
		}
		if err != nil {
			close(d.cmds)
			return
		}
	}
}

// InjectResponse frames payload under id with the correct CRC and
// writes it to the client's inbound stream, as if the device had sent
// it unsolicited.
func (d *Device) InjectResponse(id byte, payload []byte) error {
	_, err := d.toClient.Write(frame.Encode(id, payload))
	return err
}

// WriteRaw writes raw, already-framed (and possibly corrupted) bytes
// directly to the client's inbound stream, for tests exercising framing
// fault recovery.
func (d *Device) WriteRaw(raw []byte) error {
	_, err := d.toClient.Write(raw)
	return err
}

// Write implements io.Writer over the client's inbound stream, letting
// a Device stand in directly as the destination for a mock log replay.
func (d *Device) Write(p []byte) (int, error) {
	return d.toClient.Write(p)
}

// WaitForCommandIdentifier blocks up to timeout for the next command
// frame from the client and returns its identifier, or ok=false on
// timeout.
func (d *Device) WaitForCommandIdentifier(timeout time.Duration) (id byte, ok bool) {
	select {
	case id, ok = <-d.cmds:
		return id, ok
	case <-time.After(timeout):
		return 0, false
	}
}

// Close tears down both pipe ends.
func (d *Device) Close() error {
	_ = d.toClient.Close()
	_ = d.fromClient.Close()
	return nil
}
