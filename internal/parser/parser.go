// Package parser combines the frame codec with the telemetry and
// response decoders, turning a raw byte stream into typed values.
package parser

import (
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/frame"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/response"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/telemetry"
)

// Decoded is one fully parsed item pulled off the wire: exactly one of
// Packet or Response is set, matching the frame's identifier family.
type Decoded struct {
	Packet   *telemetry.Packet
	Response response.Message
}

// Parser wraps a frame.Decoder and dispatches each validated frame to
// the telemetry or response decoder by identifier family. It is not
// safe for concurrent use; the client runtime drives it from a single
// reader goroutine.
type Parser struct {
	dec *frame.Decoder

	malformedPayloads uint64
	unknownIDs        uint64
}

// New returns a Parser with an empty internal frame decoder.
func New() *Parser {
	return &Parser{dec: frame.NewDecoder()}
}

// Feed appends newly read bytes to the underlying frame decoder.
func (p *Parser) Feed(b []byte) { p.dec.Feed(b) }

// Next returns the next decoded item, or ok=false if more bytes are
// needed. A frame that fails payload decoding (wrong length, unknown
// id) is counted and skipped rather than surfaced as an error, so the
// host never blocks on a single corrupt packet from an otherwise
// healthy stream; counts are visible via Stats.
func (p *Parser) Next() (Decoded, bool) {
	for {
		f, ok := p.dec.Next()
		if !ok {
			return Decoded{}, false
		}

		switch proto.ClassifyDataOrResponse(f.ID) {
		case proto.FamilyData:
			pkt, err := telemetry.Decode(f.Body)
			if err != nil {
				p.malformedPayloads++
				continue
			}
			return Decoded{Packet: &pkt}, true

		case proto.FamilyResponse:
			msg, err := response.Decode(f.ID, f.Body)
			if err != nil {
				p.malformedPayloads++
				continue
			}
			return Decoded{Response: msg}, true

		default:
			p.unknownIDs++
			continue
		}
	}
}

// Stats aggregates the underlying frame decoder's counters with this
// parser's own payload-level counters.
type Stats struct {
	FramingFaults     uint64
	BufferPressure    uint64
	MalformedPayloads uint64
	UnknownIDs        uint64
}

// Stats returns a snapshot of all diagnostic counters.
func (p *Parser) Stats() Stats {
	fs := p.dec.Stats()
	return Stats{
		FramingFaults:     fs.FramingFaults,
		BufferPressure:    fs.BufferPressure,
		MalformedPayloads: p.malformedPayloads,
		UnknownIDs:        p.unknownIDs,
	}
}
