// Package firm is a client for the NCSU High-Powered Rocketry Club's
// FIRM flight-instrumentation device: frame codec, command/response
// correlation, a bounded telemetry queue, and magnetometer calibration,
// all driven off a single background reader.
package firm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/command"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/frame"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/ioports"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/logx"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/mocklog"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/parser"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/pktqueue"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/router"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

// DefaultQueueCapacity bounds the telemetry packet queue when Config
// does not specify one.
const DefaultQueueCapacity = 256

// Config configures a Client.
type Config struct {
	// Port is the byte-stream the client reads frames from and writes
	// commands to — a real serial port, an io.Pipe side from a mock
	// device, or a mock-log replay sink.
	Port ioports.Port

	// QueueCapacity bounds the telemetry packet queue. Zero uses
	// DefaultQueueCapacity.
	QueueCapacity int

	// Logger receives the client's diagnostic log lines. nil uses
	// logx.Default().
	Logger *logx.Logger

	// OnDiagnostic, if set, is invoked (from the reader goroutine, so it
	// must not block) after every read that returned bytes, with the
	// parser's cumulative counters of framing faults, unknown identifiers,
	// and malformed payloads.
	OnDiagnostic func(parser.Stats)
}

// Client owns the background reader, the outbound writer, the telemetry
// queue, and the response router for one connected device.
type Client struct {
	port   ioports.Port
	log    *logx.Logger
	onDiag func(parser.Stats)

	writeMu sync.Mutex

	queue  *pktqueue.Queue[telemetry.Packet]
	router *router.Router

	subMu       sync.Mutex
	subscribers map[int]func(telemetry.Packet)
	nextSubID   int

	ctx        context.Context
	cancel     context.CancelFunc
	readerDone chan struct{}

	mu      sync.Mutex
	running bool
}

// New constructs a Client bound to cfg.Port. Call Start to begin
// reading.
func New(cfg Config) *Client {
	qcap := cfg.QueueCapacity
	if qcap <= 0 {
		qcap = DefaultQueueCapacity
	}
	log := cfg.Logger
	if log == nil {
		log = logx.Default()
	}
	return &Client{
		port:        cfg.Port,
		log:         log,
		onDiag:      cfg.OnDiagnostic,
		queue:       pktqueue.New[telemetry.Packet](qcap),
		router:      router.New(),
		subscribers: make(map[int]func(telemetry.Packet)),
	}
}

// Start launches the reader goroutine and blocks until it is live.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return newErr("Start", ErrAlreadyStarted, "client is already running", nil)
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.readerDone = make(chan struct{})
	c.mu.Unlock()

	started := make(chan struct{})
	go c.readLoop(started)
	<-started
	c.log.Info("client started")
	return nil
}

// Stop cancels the reader, closes the port, and blocks until the reader
// goroutine has exited. It is idempotent: calling Stop when not running
// is a no-op.
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	done := c.readerDone
	c.mu.Unlock()

	cancel()
	_ = c.port.Close()
	<-done
	c.queue.Close()
	c.router.FlushAll()
	c.log.Info("client stopped")
	return nil
}

// IsRunning reports whether the reader goroutine is active.
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// readLoop is the client's single dedicated reader task: it performs
// blocking reads from the port, feeds them to the frame parser, and
// dispatches each decoded item to the packet queue, subscribers, or
// response router. Public operations never block on this goroutine.
func (c *Client) readLoop(started chan<- struct{}) {
	defer close(c.readerDone)
	p := parser.New()
	buf := make([]byte, 4096)
	close(started)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
			for {
				d, ok := p.Next()
				if !ok {
					break
				}
				c.dispatch(d)
			}
			if c.onDiag != nil {
				c.onDiag(p.Stats())
			}
		}
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
				c.log.Warn("read error, reader exiting", "err", err)
				c.mu.Lock()
				c.running = false
				c.mu.Unlock()
				c.cancel()
				_ = c.port.Close()
				c.queue.Close()
				c.router.FlushAll()
				return
			}
		}
	}
}

func (c *Client) dispatch(d parser.Decoded) {
	if d.Packet != nil {
		c.queue.Push(*d.Packet)
		c.subMu.Lock()
		subs := make([]func(telemetry.Packet), 0, len(c.subscribers))
		for _, fn := range c.subscribers {
			subs = append(subs, fn)
		}
		c.subMu.Unlock()
		for _, fn := range subs {
			fn(*d.Packet)
		}
		return
	}
	if d.Response != nil {
		c.router.Dispatch(d.Response)
	}
}

// GetDataPackets returns queued telemetry packets. If block is true and
// none are queued, it waits for at least one; otherwise it returns
// immediately with whatever is already queued (possibly empty).
func (c *Client) GetDataPackets(block bool) []telemetry.Packet {
	if !block {
		return c.queue.DrainAll()
	}
	first, ok := c.queue.Pop()
	if !ok {
		return nil
	}
	rest := c.queue.DrainAll()
	return append([]telemetry.Packet{first}, rest...)
}

// Subscribe registers fn to be invoked, without consuming from the
// queue, on every telemetry packet as it is parsed. It returns an
// unsubscribe function. fn is called from the reader goroutine and must
// not block.
func (c *Client) Subscribe(fn func(telemetry.Packet)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// writeCommand serializes cmd and writes it to the port, serialized
// against other writers by writeMu so callers from any goroutine may
// issue commands concurrently without corrupting the wire.
func (c *Client) writeCommand(cmd command.Command) error {
	body, err := cmd.Encode()
	if err != nil {
		return newErr("writeCommand", ErrInvalidArgument, err.Error(), err)
	}
	raw := frame.Encode(cmd.ID(), body)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.port.Write(raw); err != nil {
		return newErr("writeCommand", ErrIO, "write failed", err)
	}
	return nil
}

func (c *Client) request(cmd command.Command, matches func(response.Message) bool, timeout time.Duration) (response.Message, error) {
	ch, cancelWait := c.router.Register(matches)
	if err := c.writeCommand(cmd); err != nil {
		cancelWait()
		return nil, err
	}
	select {
	case msg, ok := <-ch:
		if !ok || msg == nil {
			return nil, newErr("request", ErrNotRunning, "client stopped while request was pending", nil)
		}
		if de, ok := msg.(response.DeviceError); ok {
			return msg, de
		}
		return msg, nil
	case <-time.After(timeout):
		cancelWait()
		return nil, newErr("request", ErrTimeout, fmt.Sprintf("no response within %s", timeout), nil)
	}
}

// kindMatcher matches either the expected success kind or a device error,
// so a command that the device rejects resolves request() immediately
// instead of waiting out the full timeout for a response that will never
// arrive under the expected kind.
func kindMatcher(k response.Kind) func(response.Message) bool {
	return func(m response.Message) bool { return m.Kind() == k || m.Kind() == response.KindDeviceError }
}

// GetDeviceInfo requests the device's firmware/hardware identity.
func (c *Client) GetDeviceInfo(timeout time.Duration) (*response.DeviceInfo, error) {
	msg, err := c.request(command.GetDeviceInfo{}, kindMatcher(response.KindDeviceInfo), timeout)
	if err != nil {
		return nil, err
	}
	info := msg.(response.DeviceInfo)
	return &info, nil
}

// GetDeviceConfig requests the device's current configuration.
func (c *Client) GetDeviceConfig(timeout time.Duration) (*response.DeviceConfig, error) {
	msg, err := c.request(command.GetDeviceConfig{}, kindMatcher(response.KindDeviceConfig), timeout)
	if err != nil {
		return nil, err
	}
	cfg := msg.(response.DeviceConfig)
	return &cfg, nil
}

// SetDeviceConfig pushes a new configuration and waits for its ack.
func (c *Client) SetDeviceConfig(cfg command.SetDeviceConfig, timeout time.Duration) (bool, error) {
	msg, err := c.request(cfg, kindMatcher(response.KindSetDeviceConfigAck), timeout)
	if err != nil {
		if IsCode(err, ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	return msg.(response.SetDeviceConfigAck).Accepted, nil
}

// GetCalibration requests the device's stored calibration values.
func (c *Client) GetCalibration(timeout time.Duration) (*response.CalibrationValues, error) {
	msg, err := c.request(command.GetCalibration{}, kindMatcher(response.KindCalibrationValues), timeout)
	if err != nil {
		return nil, err
	}
	cal := msg.(response.CalibrationValues)
	return &cal, nil
}

// SetIMUCalibration pushes IMU bias corrections and waits for the ack.
func (c *Client) SetIMUCalibration(cal command.SetIMUCalibration, timeout time.Duration) (bool, error) {
	msg, err := c.request(cal, kindMatcher(response.KindSetIMUCalibrationAck), timeout)
	if err != nil {
		if IsCode(err, ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	return msg.(response.SetIMUCalibrationAck).Accepted, nil
}

// SetMagnetometerCalibration pushes a hard-iron/soft-iron correction and
// waits for the ack.
func (c *Client) SetMagnetometerCalibration(cal command.SetMagnetometerCalibration, timeout time.Duration) (bool, error) {
	msg, err := c.request(cal, kindMatcher(response.KindSetMagnetometerCalibrationAck), timeout)
	if err != nil {
		if IsCode(err, ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	return msg.(response.SetMagnetometerCalibrationAck).Accepted, nil
}

// Cancel aborts the device's in-progress operation, if any.
func (c *Client) Cancel(timeout time.Duration) (bool, error) {
	msg, err := c.request(command.Cancel{}, kindMatcher(response.KindCancelAck), timeout)
	if err != nil {
		if IsCode(err, ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	return msg.(response.CancelAck).Accepted, nil
}

// Reboot writes the reboot command and returns once the bytes are
// written; no response is expected from a rebooting device.
func (c *Client) Reboot() error {
	return c.writeCommand(command.Reboot{})
}

// StartMockLogStream begins replaying a capture file to the device-facing
// side of a mock port (see internal/mockdevice), returning once the
// replay goroutine has accepted the file.
func (c *Client) StartMockLogStream(path string, dst io.Writer, opts mocklog.ReplayOptions) (*MockLogHandle, error) {
	f, openErr := openCapture(path)
	if openErr != nil {
		return nil, newErr("StartMockLogStream", ErrIO, "open capture", openErr)
	}
	r, err := mocklog.NewReader(f)
	if err != nil {
		f.Close()
		return nil, newErr("StartMockLogStream", ErrBadHeader, "read capture header", err)
	}

	done := make(chan struct{})
	h := &MockLogHandle{done: done}
	go func() {
		defer close(done)
		defer f.Close()
		n, err := mocklog.Replay(r, dst, opts)
		h.mu.Lock()
		h.framesSent = n
		h.err = err
		h.mu.Unlock()
	}()
	return h, nil
}

// MockLogHandle represents an in-progress (or completed) mock log
// replay started by StartMockLogStream.
type MockLogHandle struct {
	done chan struct{}

	mu         sync.Mutex
	framesSent int
	err        error
}

// Stop does not interrupt the replay: with join true it blocks until the
// replay goroutine has finished the whole capture and exited; with join
// false it returns at once. Stop is idempotent.
func (h *MockLogHandle) Stop(join bool) {
	if join {
		<-h.done
	}
}

// Result returns the number of frames replayed and any replay error,
// valid once the handle's done channel is closed.
func (h *MockLogHandle) Result() (framesSent int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.framesSent, h.err
}
