// Package progress provides byte accounting for a single transfer leg.
//
// The tracker is a pure value type: it derives throughput, percentage and ETA
// from cumulative counts and elapsed time, and keeps no history. Emission
// policy (how often callers forward snapshots to a chat or a log) belongs to
// the caller, not here.
package progress

import (
	"io"
	"time"
)

// Snapshot is the derived state of a transfer leg at one instant.
type Snapshot struct {
	BytesDone  int64
	BytesTotal int64
	Elapsed    time.Duration

	ThroughputBytesPerSec float64
	PercentComplete       float64

	// ETASeconds is only meaningful when HasETA is true; the total may be
	// unknown or the leg may not have moved yet.
	ETASeconds float64
	HasETA     bool
}

// Tracker derives snapshots for one transfer leg. The zero value is ready to
// use; Update may be called at arbitrary frequency.
type Tracker struct {
	startedAt time.Time
}

func NewTracker() *Tracker {
	return &Tracker{startedAt: time.Now()}
}

// Update computes a snapshot from cumulative counts and the elapsed time
// since the tracker was created.
func (t *Tracker) Update(bytesDone, bytesTotal int64) Snapshot {
	return Compute(bytesDone, bytesTotal, time.Since(t.startedAt))
}

// Compute derives a snapshot from explicit inputs. Exposed separately so the
// math is testable without a clock.
func Compute(bytesDone, bytesTotal int64, elapsed time.Duration) Snapshot {
	snap := Snapshot{
		BytesDone:  bytesDone,
		BytesTotal: bytesTotal,
		Elapsed:    elapsed,
	}

	if secs := elapsed.Seconds(); secs > 0 {
		snap.ThroughputBytesPerSec = float64(bytesDone) / secs
	}
	if bytesTotal > 0 {
		snap.PercentComplete = 100 * float64(bytesDone) / float64(bytesTotal)
	}
	if snap.ThroughputBytesPerSec > 0 && bytesTotal > bytesDone {
		snap.ETASeconds = float64(bytesTotal-bytesDone) / snap.ThroughputBytesPerSec
		snap.HasETA = true
	}

	return snap
}

// Func receives a snapshot on each chunk boundary of the active leg.
type Func func(Snapshot)

// Writer wraps an io.Writer and reports a snapshot after every write. Used
// for the download leg, where the remote stream is copied into the staged
// file.
type Writer struct {
	w       io.Writer
	total   int64
	tracker *Tracker
	onWrite Func

	written int64
}

func NewWriter(w io.Writer, total int64, cb Func) *Writer {
	return &Writer{w: w, total: total, tracker: NewTracker(), onWrite: cb}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 {
		pw.written += int64(n)
		if pw.onWrite != nil {
			pw.onWrite(pw.tracker.Update(pw.written, pw.total))
		}
	}
	return n, err
}

// Written returns the cumulative byte count seen by the writer.
func (pw *Writer) Written() int64 {
	return pw.written
}

// Reader wraps an io.Reader and reports a snapshot after every read. Used
// for the upload leg, where the staged file is streamed out as a multipart
// field.
type Reader struct {
	r       io.Reader
	total   int64
	tracker *Tracker
	onRead  Func

	read int64
}

func NewReader(r io.Reader, total int64, cb Func) *Reader {
	return &Reader{r: r, total: total, tracker: NewTracker(), onRead: cb}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.onRead != nil {
			pr.onRead(pr.tracker.Update(pr.read, pr.total))
		}
	}
	return n, err
}
