// Package frame implements the streaming byte-level framer for FIRM's
// wire protocol: sync ∥ id ∥ len(LE) ∥ body ∥ crc(LE). It resynchronizes
// on corruption one byte at a time and never blocks on partial input.
package frame

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/crc"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
)

// Frame is a validated, decoded frame: an identifier and its body bytes.
// Body is a fresh copy owned by the caller; later Feed/Next calls do not
// modify it.
type Frame struct {
	ID   byte
	Body []byte
}

type state int

const (
	huntSync state = iota
	readHeader
	readBody
)

// SoftCapBytes is the input buffer's soft cap. Feeding past it is still
// accepted (telemetry loss is preferred to a fatal error) but increments
// the BufferPressure counter.
const SoftCapBytes = 1 << 20 // 1 MiB

// Stats are the framer's non-fatal diagnostic counters, safe to read
// concurrently with Feed/Next.
type Stats struct {
	FramingFaults  uint64
	BufferPressure uint64
}

// Decoder is a single-pass streaming framer. It is not safe for concurrent
// use by multiple goroutines; callers serialize their own Feed/Next calls
// (the client runtime owns exactly one Decoder from its reader goroutine).
type Decoder struct {
	buf   []byte
	st    state
	id    byte
	blen  int
	stats struct {
		framingFaults  atomic.Uint64
		bufferPressure atomic.Uint64
	}
	mu sync.Mutex // guards buf/st/id/blen; Stats reads only the atomic counters
}

// NewDecoder returns an empty Decoder ready to Feed.
func NewDecoder() *Decoder {
	return &Decoder{st: huntSync}
}

// Feed appends bytes to the internal buffer. It never blocks and never
// allocates per byte; the buffer grows amortized O(1) per appended byte.
func (d *Decoder) Feed(b []byte) {
	d.mu.Lock()
	d.buf = append(d.buf, b...)
	over := len(d.buf) > SoftCapBytes
	d.mu.Unlock()
	if over {
		d.stats.bufferPressure.Add(1)
	}
}

// Next returns the next validated frame, or ok=false if more bytes are
// needed. Call it repeatedly after each Feed until it returns false.
func (d *Decoder) Next() (f Frame, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		switch d.st {
		case huntSync:
			if len(d.buf) < 2 {
				return Frame{}, false
			}
			if d.buf[0] != proto.SyncByte0 || d.buf[1] != proto.SyncByte1 {
				// A byte that cannot open a frame is discarded and counted
				// as a framing fault.
				d.stats.framingFaults.Add(1)
				d.buf = d.buf[1:]
				continue
			}
			d.st = readHeader

		case readHeader:
			if len(d.buf) < proto.HeaderLen {
				return Frame{}, false
			}
			id := d.buf[2]
			blen := int(binary.LittleEndian.Uint16(d.buf[3:5]))
			if blen > proto.MaxBodyLen {
				d.desyncLocked()
				continue
			}
			d.id = id
			d.blen = blen
			d.st = readBody

		case readBody:
			total := proto.HeaderLen + d.blen + proto.TrailerLen
			if len(d.buf) < total {
				return Frame{}, false
			}
			body := d.buf[proto.HeaderLen : proto.HeaderLen+d.blen]
			wantCRC := binary.LittleEndian.Uint16(d.buf[proto.HeaderLen+d.blen : total])
			gotCRC := crc.CCITT(d.buf[2 : proto.HeaderLen+d.blen]) // id ∥ len ∥ body
			if wantCRC != gotCRC {
				d.desyncLocked()
				continue
			}

			out := make([]byte, d.blen)
			copy(out, body)
			d.buf = d.buf[total:]
			d.st = huntSync
			return Frame{ID: d.id, Body: out}, true
		}
	}
}

// desyncLocked handles a framing fault: drop exactly one byte (the first
// sync byte of the misaligned candidate) and re-enter huntSync, so a
// genuine frame sharing a prefix with garbage is still recoverable.
func (d *Decoder) desyncLocked() {
	d.stats.framingFaults.Add(1)
	if len(d.buf) > 0 {
		d.buf = d.buf[1:]
	}
	d.st = huntSync
}

// Stats returns a snapshot of the decoder's diagnostic counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		FramingFaults:  d.stats.framingFaults.Load(),
		BufferPressure: d.stats.bufferPressure.Load(),
	}
}

// Encode frames id and body with the codec's sync/length/CRC layout,
// matching Decoder's expectations exactly (encode∘decode round trip).
func Encode(id byte, body []byte) []byte {
	out := make([]byte, 0, proto.HeaderLen+len(body)+proto.TrailerLen)
	out = append(out, proto.SyncByte0, proto.SyncByte1, id)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, body...)
	sum := crc.CCITT(out[2:])
	var crcBuf [2]byte
	binary.LittleEndian.PutUint16(crcBuf[:], sum)
	out = append(out, crcBuf[:]...)
	return out
}
