// Package mocklog reads and writes capture files: a fixed header
// followed by framed packets, each annotated with its inter-arrival
// delay, and drives replay of a capture against an output sink.
package mocklog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/clock"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/frame"
)

// Magic and Version identify a capture file's header.
const (
	Magic   uint32 = 0x46495243 // "FIRC"
	Version uint16 = 1
)

// headerLen is magic(4) + version(2) + sampleRateHint(2).
const headerLen = 8

// Header is a capture file's fixed-size preamble.
type Header struct {
	SampleRateHint uint16
}

// Record is one captured frame plus the delay that preceded it. On the
// wire a record is delay(4B f32 LE) followed by frame_bytes; frame_bytes
// needs no length of its own because internal/frame's sync/len/CRC
// header already self-delimits it.
type Record struct {
	FrameBytes   []byte
	DelaySeconds float32
}

// ErrBadHeader is returned by NewReader when the magic or version does
// not match.
var ErrBadHeader = fmt.Errorf("mocklog: bad header")

// Reader reads a capture file's header then its records in order.
type Reader struct {
	r      *bufio.Reader
	dec    *frame.Decoder
	Header Header
}

// NewReader reads and validates src's header, returning a Reader
// positioned at the first record.
func NewReader(src io.Reader) (*Reader, error) {
	r := bufio.NewReader(src)
	hdr := make([]byte, headerLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != Magic {
		return nil, ErrBadHeader
	}
	if binary.LittleEndian.Uint16(hdr[4:6]) != Version {
		return nil, ErrBadHeader
	}
	return &Reader{
		r:      r,
		dec:    frame.NewDecoder(),
		Header: Header{SampleRateHint: binary.LittleEndian.Uint16(hdr[6:8])},
	}, nil
}

// Next returns the next record, or io.EOF once the capture is exhausted.
// frame_bytes has no length of its own on the wire; Next reads the
// delay, then feeds the stream to a frame.Decoder a byte at a time until
// one complete frame pops out, and re-encodes it for FrameBytes.
func (r *Reader) Next() (Record, error) {
	var delayBuf [4]byte
	if _, err := io.ReadFull(r.r, delayBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Record{}, err
	}
	delay := math.Float32frombits(binary.LittleEndian.Uint32(delayBuf[:]))

	for {
		if f, ok := r.dec.Next(); ok {
			return Record{FrameBytes: frame.Encode(f.ID, f.Body), DelaySeconds: delay}, nil
		}
		b, err := r.r.ReadByte()
		if err != nil {
			return Record{}, fmt.Errorf("mocklog: truncated record: %w", err)
		}
		r.dec.Feed([]byte{b})
	}
}

// Writer writes a capture file: a header followed by appended records.
type Writer struct {
	w io.Writer
}

// NewWriter writes header to dst and returns a Writer for appending
// records.
func NewWriter(dst io.Writer, hdr Header) (*Writer, error) {
	buf := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	binary.LittleEndian.PutUint16(buf[6:8], hdr.SampleRateHint)
	if _, err := dst.Write(buf); err != nil {
		return nil, fmt.Errorf("mocklog: write header: %w", err)
	}
	return &Writer{w: dst}, nil
}

// WriteRecord appends one record to the capture: delay, then
// rec.FrameBytes verbatim (expected to already be a complete
// frame.Encode output, which self-delimits on replay).
func (w *Writer) WriteRecord(rec Record) error {
	var delayBuf [4]byte
	binary.LittleEndian.PutUint32(delayBuf[:], math.Float32bits(rec.DelaySeconds))
	if _, err := w.w.Write(delayBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(rec.FrameBytes)
	return err
}

// ReplayOptions configures Replay's pacing.
type ReplayOptions struct {
	// Speed scales the wait between batches; must be > 0.
	Speed float64
	// Realtime, when false, sends every record as fast as the sink
	// accepts it with no pacing at all.
	Realtime bool

	// BurstFrames is the number of frames sent unpaced before batch
	// pacing begins. Zero uses the default of 75.
	BurstFrames int
	// BatchFrames is the number of frames per paced batch. Zero uses
	// the default of 10.
	BatchFrames int

	// Clock is injectable for deterministic tests; nil uses clock.Real{}.
	Clock clock.Clock
}

const (
	defaultBurstFrames = 75
	defaultBatchFrames = 10
)

// Replay drains every record from r and writes its frame bytes to dst,
// pacing writes per opts after an initial unpaced burst. It returns the
// number of records replayed.
func Replay(r *Reader, dst io.Writer, opts ReplayOptions) (int, error) {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	burst := opts.BurstFrames
	if burst == 0 {
		burst = defaultBurstFrames
	}
	batch := opts.BatchFrames
	if batch == 0 {
		batch = defaultBatchFrames
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	count := 0
	for count < burst {
		rec, err := r.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if _, err := dst.Write(rec.FrameBytes); err != nil {
			return count, err
		}
		count++
	}

	if !opts.Realtime {
		for {
			rec, err := r.Next()
			if err == io.EOF {
				return count, nil
			}
			if err != nil {
				return count, err
			}
			if _, err := dst.Write(rec.FrameBytes); err != nil {
				return count, err
			}
			count++
		}
	}

	// Batch pacing: pacing is measured against a wall-clock anchor taken
	// once at end-of-burst, so drift within a batch never compounds
	// across the whole replay.
	anchor := clk.Now()
	var pendingDelay float64
	for {
		var batchDelay float64
		n := 0
		for n < batch {
			rec, err := r.Next()
			if err == io.EOF {
				if n > 0 {
					sleepUntilAnchor(clk, &anchor, pendingDelay+batchDelay, opts.Speed)
				}
				return count, nil
			}
			if err != nil {
				return count, err
			}
			if _, err := dst.Write(rec.FrameBytes); err != nil {
				return count, err
			}
			batchDelay += float64(rec.DelaySeconds)
			count++
			n++
		}
		pendingDelay += batchDelay
		sleepUntilAnchor(clk, &anchor, pendingDelay, opts.Speed)
		pendingDelay = 0
	}
}

// sleepUntilAnchor sleeps just long enough that clk.Now() reaches anchor
// + totalDelay/speed, then advances anchor to that point. If the
// deadline has already passed (the sink was slower than real time) it
// does not sleep at all, so the stream catches up instead of falling
// permanently behind.
func sleepUntilAnchor(clk clock.Clock, anchor *time.Time, totalDelaySeconds float64, speed float64) {
	target := anchor.Add(time.Duration(totalDelaySeconds / speed * float64(time.Second)))
	if d := target.Sub(clk.Now()); d > 0 {
		clk.Sleep(d)
	}
	*anchor = target
}
