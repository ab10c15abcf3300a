package transfer

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// FailureKind classifies what part of a relay failed.
type FailureKind string

const (
	// KindMessageNotFound means the link resolved but no message (or no
	// accessible message) exists at that id.
	KindMessageNotFound FailureKind = "message_not_found"

	// KindNoMedia means the message exists but carries no downloadable media.
	// The pipeline still relays the text body for this kind.
	KindNoMedia FailureKind = "no_media"

	// KindTooLarge means the downloaded file exceeded the configured ceiling.
	// The ceiling is checked after the download completes.
	KindTooLarge FailureKind = "too_large"

	// KindDownloadFailed covers network or disk errors on the download leg.
	KindDownloadFailed FailureKind = "download_failed"

	// KindUploadFailed covers errors on the bot upload leg.
	KindUploadFailed FailureKind = "upload_failed"
)

// Error represents a failed relay attempt. Kind tells callers which stage
// gave up; Size and Limit are populated for size-ceiling violations.
type Error struct {
	Kind  FailureKind
	Link  string // the message link that was being relayed
	Size  int64  // downloaded size in bytes, when known
	Limit int64  // configured ceiling, for KindTooLarge
	Err   error  // underlying error, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMessageNotFound:
		return fmt.Sprintf("message not found for %s", e.Link)
	case KindNoMedia:
		return fmt.Sprintf("no media in message %s", e.Link)
	case KindTooLarge:
		return fmt.Sprintf("file from %s is %s, exceeds the %s limit",
			e.Link, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
	case KindDownloadFailed:
		return fmt.Sprintf("download failed for %s: %v", e.Link, e.Err)
	case KindUploadFailed:
		return fmt.Sprintf("upload failed for %s: %v", e.Link, e.Err)
	default:
		return fmt.Sprintf("relay failed for %s: %v", e.Link, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is (or wraps) a transfer Error of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == kind
}
