package mocklog

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/clock"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/frame"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/internal/proto"
)

// countingClock is a clock.Clock whose Sleep advances its own Now()
// deterministically instead of touching the wall clock, so pacing tests
// run instantly and still exercise the real sleepUntilAnchor deadline
// math against a moving clock.
type countingClock struct {
	now        time.Time
	sleepCalls int
}

func (c *countingClock) Now() time.Time { return c.now }
func (c *countingClock) Sleep(d time.Duration) {
	c.sleepCalls++
	c.now = c.now.Add(d)
}
func (c *countingClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.Sleep(d)
	ch <- c.now
	return ch
}

var _ clock.Clock = (*countingClock)(nil)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{SampleRateHint: 200})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	records := []Record{
		{FrameBytes: frame.Encode(proto.IDTelemetry, []byte{1, 2, 3}), DelaySeconds: 0.01},
		{FrameBytes: frame.Encode(proto.IDDeviceError, []byte{4, 5}), DelaySeconds: 0.02},
	}
	for _, rec := range records {
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header.SampleRateHint != 200 {
		t.Errorf("SampleRateHint = %d, want 200", r.Header.SampleRateHint)
	}
	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !bytes.Equal(got.FrameBytes, want.FrameBytes) || got.DelaySeconds != want.DelaySeconds {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
}

func TestNewReaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 1, 0, 0, 0})
	if _, err := NewReader(buf); err != ErrBadHeader {
		t.Errorf("got %v, want ErrBadHeader", err)
	}
}

func TestReplayNonRealtimeIsUnpaced(t *testing.T) {
	var capture bytes.Buffer
	w, _ := NewWriter(&capture, Header{})
	for i := 0; i < 5; i++ {
		w.WriteRecord(Record{FrameBytes: frame.Encode(proto.IDTelemetry, []byte{byte(i)}), DelaySeconds: 10})
	}

	r, _ := NewReader(&capture)
	var sink bytes.Buffer
	clk := &countingClock{now: time.Unix(0, 0)}
	opts := ReplayOptions{
		Speed:    1,
		Realtime: false,
		Clock:    clk,
	}
	n, err := Replay(r, &sink, opts)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if clk.sleepCalls != 0 {
		t.Error("non-realtime replay should never sleep")
	}
	wantLen := 5 * len(frame.Encode(proto.IDTelemetry, []byte{0}))
	if sink.Len() != wantLen {
		t.Errorf("sink.Len() = %d, want %d", sink.Len(), wantLen)
	}
}

func TestReplayRealtimePacesAfterBurst(t *testing.T) {
	var capture bytes.Buffer
	w, _ := NewWriter(&capture, Header{})
	total := 12
	for i := 0; i < total; i++ {
		w.WriteRecord(Record{FrameBytes: frame.Encode(proto.IDTelemetry, []byte{byte(i)}), DelaySeconds: 1})
	}

	r, _ := NewReader(&capture)
	var sink bytes.Buffer
	clk := &countingClock{now: time.Unix(0, 0)}
	opts := ReplayOptions{
		Speed:       1,
		Realtime:    true,
		BurstFrames: 5,
		BatchFrames: 3,
		Clock:       clk,
	}
	n, err := Replay(r, &sink, opts)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n != total {
		t.Errorf("n = %d, want %d", n, total)
	}
	// 5 burst frames unpaced, then (12-5)=7 frames in batches of 3 -> 3 batches, each paced once.
	if clk.sleepCalls != 3 {
		t.Errorf("sleepCalls = %d, want 3", clk.sleepCalls)
	}
}
