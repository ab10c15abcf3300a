// Package transfer implements the relay pipeline: fetch a message through
// the user session, stage and download its media, enforce the size ceiling,
// and re-upload it through the bot delivery channel.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/lcarvalho/tgrelay/internal/logctx"
	"github.com/lcarvalho/tgrelay/internal/media"
	"github.com/lcarvalho/tgrelay/internal/telemetry"
	"github.com/lcarvalho/tgrelay/internal/transfer/progress"
)

// captionLimit is the Bot API caption ceiling in code units.
const captionLimit = 1024

// Message is a fetched message: its text body and the classified attachment,
// nil when the message carries none.
type Message struct {
	Text  string
	Media *media.Descriptor
}

// Source fetches messages and streams media from the user session.
type Source interface {
	FetchMessage(ctx context.Context, req Request) (Message, error)
	Download(ctx context.Context, desc media.Descriptor, w io.Writer) error
	Thumbnail(ctx context.Context, desc media.Descriptor) ([]byte, error)
}

// Upload describes one staged file handed to the delivery channel.
type Upload struct {
	ChatID     int64
	Kind       media.Kind
	Path       string
	Filename   string
	Caption    string
	Size       int64
	Thumb      []byte // optional thumbnail bytes
	Streaming  bool   // set for video so clients can play while downloading
	OnProgress progress.Func
}

// Delivery pushes a staged file onward through the bot credential.
type Delivery interface {
	Send(ctx context.Context, up Upload) error
}

// Leg names the active half of a relay for progress reporting.
type Leg string

const (
	LegDownload Leg = "download"
	LegUpload   Leg = "upload"
)

// ProgressFunc receives snapshots for whichever leg is active. Exactly one
// leg reports at a time.
type ProgressFunc func(leg Leg, snap progress.Snapshot)

// LegStats summarizes one completed leg.
type LegStats struct {
	Bytes                 int64
	Elapsed               time.Duration
	ThroughputBytesPerSec float64
}

// Result is a completed relay. TextOnly results carry the message body and
// no file statistics.
type Result struct {
	TextOnly bool
	Text     string

	Kind     media.Kind
	Filename string
	Size     int64
	Download LegStats
	Upload   LegStats
}

// Pipeline orchestrates a single relay end to end. Safe for concurrent use;
// each Execute call owns its own staged file.
type Pipeline struct {
	source    Source
	delivery  Delivery
	telemetry *telemetry.Telemetry

	maxFileSize int64
	tempDir     string
}

func NewPipeline(source Source, delivery Delivery, tel *telemetry.Telemetry, maxFileSize int64, tempDir string) *Pipeline {
	return &Pipeline{
		source:      source,
		delivery:    delivery,
		telemetry:   tel,
		maxFileSize: maxFileSize,
		tempDir:     tempDir,
	}
}

// Execute relays the message named by req. onProgress may be nil. The staged
// file never outlives the call, whatever the exit path.
func (p *Pipeline) Execute(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	p.telemetry.IncrementActiveRelays()
	defer p.telemetry.DecrementActiveRelays()

	start := time.Now()
	res, err := p.execute(ctx, req, onProgress)
	p.telemetry.RecordRelay(kindLabel(res), statusLabel(err), time.Since(start))

	return res, err
}

func (p *Pipeline) execute(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("link", req.Link)

	msg, err := p.source.FetchMessage(ctx, req)
	if err != nil {
		return nil, err
	}

	if msg.Media == nil {
		logger.Info("message has no media, relaying text body")
		return &Result{TextOnly: true, Text: msg.Text}, nil
	}
	desc := *msg.Media

	staged, err := os.CreateTemp(p.tempDir, "relay-*"+desc.Ext)
	if err != nil {
		return nil, fmt.Errorf("staging temp file: %w", err)
	}
	stagedPath := staged.Name()
	defer p.removeStaged(ctx, stagedPath)

	logger.Info("downloading media",
		"kind", desc.Kind,
		"filename", desc.Filename,
		"advertised_size", desc.Size,
	)

	downloadStart := time.Now()
	counted := progress.NewWriter(staged, desc.Size, func(s progress.Snapshot) {
		if onProgress != nil {
			onProgress(LegDownload, s)
		}
	})

	downloadErr := p.source.Download(ctx, desc, counted)
	if closeErr := staged.Close(); downloadErr == nil {
		downloadErr = closeErr
	}
	written := counted.Written()
	if downloadErr != nil {
		return nil, &Error{Kind: KindDownloadFailed, Link: req.Link, Size: written, Err: downloadErr}
	}
	downloadElapsed := time.Since(downloadStart)

	// Documents advertise an exact size; a mismatch means a truncated stream.
	if desc.Document != nil && desc.Size > 0 && written != desc.Size {
		return nil, &Error{
			Kind: KindDownloadFailed,
			Link: req.Link,
			Size: written,
			Err:  fmt.Errorf("wrote %d bytes, expected %d", written, desc.Size),
		}
	}

	// The ceiling is enforced after the download: advertised sizes can be
	// absent or wrong, so only the bytes on disk are trusted.
	if written > p.maxFileSize {
		return nil, &Error{Kind: KindTooLarge, Link: req.Link, Size: written, Limit: p.maxFileSize}
	}
	p.telemetry.RecordTransferredBytes(string(LegDownload), written)

	thumb, err := p.source.Thumbnail(ctx, desc)
	if err != nil {
		// A missing thumbnail never fails the relay.
		logger.Warn("thumbnail fetch failed", "error", err)
		thumb = nil
	}

	uploadStart := time.Now()
	err = p.delivery.Send(ctx, Upload{
		ChatID:    req.Target,
		Kind:      desc.Kind,
		Path:      stagedPath,
		Filename:  desc.Filename,
		Caption:   TruncateCaption(msg.Text),
		Size:      written,
		Thumb:     thumb,
		Streaming: desc.Kind == media.KindVideo,
		OnProgress: func(s progress.Snapshot) {
			if onProgress != nil {
				onProgress(LegUpload, s)
			}
		},
	})
	if err != nil {
		return nil, &Error{Kind: KindUploadFailed, Link: req.Link, Size: written, Err: err}
	}
	uploadElapsed := time.Since(uploadStart)
	p.telemetry.RecordTransferredBytes(string(LegUpload), written)

	logger.Info("relay complete",
		"kind", desc.Kind,
		"size", written,
		"download_elapsed", downloadElapsed,
		"upload_elapsed", uploadElapsed,
	)

	return &Result{
		Kind:     desc.Kind,
		Filename: desc.Filename,
		Size:     written,
		Download: legStats(written, downloadElapsed),
		Upload:   legStats(written, uploadElapsed),
	}, nil
}

// removeStaged deletes the staged file. Already-gone files are fine; any
// other failure is logged but never masks the relay's primary error.
func (p *Pipeline) removeStaged(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.telemetry.RecordSystemError("pipeline", "staged_file_cleanup")
		logctx.LoggerFromContext(ctx).Error("failed to remove staged file",
			"path", path,
			"error", err,
		)
	}
}

// TruncateCaption clips a caption to the Bot API limit without splitting a
// code point.
func TruncateCaption(s string) string {
	runes := []rune(s)
	if len(runes) <= captionLimit {
		return s
	}
	return string(runes[:captionLimit])
}

func legStats(bytes int64, elapsed time.Duration) LegStats {
	stats := LegStats{Bytes: bytes, Elapsed: elapsed}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.ThroughputBytesPerSec = float64(bytes) / secs
	}
	return stats
}

func kindLabel(res *Result) string {
	switch {
	case res == nil:
		return "unknown"
	case res.TextOnly:
		return "text"
	default:
		return string(res.Kind)
	}
}

func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var te *Error
	if errors.As(err, &te) {
		return string(te.Kind)
	}
	return "error"
}
