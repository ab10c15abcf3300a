package transfer

import (
	"errors"
	"fmt"
	"testing"
)

// TestError_Error verifies error message formatting per failure kind
func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message not found",
			err:  &Error{Kind: KindMessageNotFound, Link: "https://t.me/somechan/42"},
			want: "message not found for https://t.me/somechan/42",
		},
		{
			name: "no media",
			err:  &Error{Kind: KindNoMedia, Link: "https://t.me/somechan/42"},
			want: "no media in message https://t.me/somechan/42",
		},
		{
			name: "too large",
			err: &Error{
				Kind:  KindTooLarge,
				Link:  "https://t.me/somechan/42",
				Size:  2 << 30,
				Limit: 1 << 30,
			},
			want: "file from https://t.me/somechan/42 is 2.0 GiB, exceeds the 1.0 GiB limit",
		},
		{
			name: "download failed",
			err: &Error{
				Kind: KindDownloadFailed,
				Link: "https://t.me/somechan/42",
				Err:  errors.New("connection reset"),
			},
			want: "download failed for https://t.me/somechan/42: connection reset",
		},
		{
			name: "upload failed",
			err: &Error{
				Kind: KindUploadFailed,
				Link: "https://t.me/somechan/42",
				Err:  errors.New("bad request"),
			},
			want: "upload failed for https://t.me/somechan/42: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestError_Unwrap verifies error chain traversal
func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{Kind: KindDownloadFailed, Link: "https://t.me/c/123/7", Err: cause}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}
}

// TestError_As verifies programmatic error type detection
func TestError_As(t *testing.T) {
	originalErr := &Error{
		Kind:  KindTooLarge,
		Link:  "https://t.me/somechan/42",
		Size:  100,
		Limit: 50,
	}

	wrapped := fmt.Errorf("context: %w", originalErr)

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract transfer.Error from wrapped chain")
	}
	if target.Kind != KindTooLarge {
		t.Errorf("Kind = %q, want %q", target.Kind, KindTooLarge)
	}
	if target.Size != 100 || target.Limit != 50 {
		t.Errorf("Size/Limit = %d/%d, want 100/50", target.Size, target.Limit)
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("relay: %w", &Error{Kind: KindNoMedia, Link: "https://t.me/x/1"})

	if !IsKind(err, KindNoMedia) {
		t.Error("IsKind() should match the wrapped kind")
	}
	if IsKind(err, KindTooLarge) {
		t.Error("IsKind() should not match a different kind")
	}
	if IsKind(errors.New("plain"), KindNoMedia) {
		t.Error("IsKind() should not match a non-transfer error")
	}
}

// TestError_NilErr verifies Unwrap and Error behave when no cause is attached
func TestError_NilErr(t *testing.T) {
	err := &Error{Kind: KindMessageNotFound, Link: "https://t.me/x/1"}

	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
	if err.Error() == "" {
		t.Error("Error() should return non-empty string even when Err is nil")
	}
}
