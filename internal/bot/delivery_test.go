package bot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcarvalho/tgrelay/internal/media"
	"github.com/lcarvalho/tgrelay/internal/transfer"
	"github.com/lcarvalho/tgrelay/internal/transfer/progress"
)

type fakeSender struct {
	sent    []tgbotapi.Chattable
	consume bool // drain file readers like the real client would
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if f.consume {
		if cfg, ok := c.(tgbotapi.DocumentConfig); ok {
			if fr, ok := cfg.File.(tgbotapi.FileReader); ok {
				_, _ = io.Copy(io.Discard, fr.Reader)
			}
		}
	}
	return tgbotapi.Message{}, nil
}

func stageFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDeliveryKindMapping(t *testing.T) {
	tests := []struct {
		kind  media.Kind
		check func(t *testing.T, c tgbotapi.Chattable)
	}{
		{
			kind: media.KindPhoto,
			check: func(t *testing.T, c tgbotapi.Chattable) {
				cfg, ok := c.(tgbotapi.PhotoConfig)
				require.True(t, ok, "got %T", c)
				assert.Equal(t, "hi", cfg.Caption)
			},
		},
		{
			kind: media.KindVideo,
			check: func(t *testing.T, c tgbotapi.Chattable) {
				cfg, ok := c.(tgbotapi.VideoConfig)
				require.True(t, ok, "got %T", c)
				assert.Equal(t, "hi", cfg.Caption)
				assert.True(t, cfg.SupportsStreaming)
				assert.NotNil(t, cfg.Thumb)
			},
		},
		{
			kind: media.KindAudio,
			check: func(t *testing.T, c tgbotapi.Chattable) {
				cfg, ok := c.(tgbotapi.AudioConfig)
				require.True(t, ok, "got %T", c)
				assert.Equal(t, "hi", cfg.Caption)
			},
		},
		{
			kind: media.KindDocument,
			check: func(t *testing.T, c tgbotapi.Chattable) {
				cfg, ok := c.(tgbotapi.DocumentConfig)
				require.True(t, ok, "got %T", c)
				assert.Equal(t, "hi", cfg.Caption)
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			api := &fakeSender{}
			d := NewDelivery(api)

			err := d.Send(context.Background(), transfer.Upload{
				ChatID:    ownerID,
				Kind:      tt.kind,
				Path:      stageFile(t, "payload"),
				Filename:  "file.bin",
				Caption:   "hi",
				Size:      7,
				Thumb:     []byte{0xff},
				Streaming: tt.kind == media.KindVideo,
			})
			require.NoError(t, err)
			require.Len(t, api.sent, 1)
			tt.check(t, api.sent[0])
		})
	}
}

func TestDeliveryReportsUploadProgress(t *testing.T) {
	api := &fakeSender{consume: true}
	d := NewDelivery(api)

	var last progress.Snapshot
	err := d.Send(context.Background(), transfer.Upload{
		ChatID:   ownerID,
		Kind:     media.KindDocument,
		Path:     stageFile(t, "0123456789"),
		Filename: "file.bin",
		Size:     10,
		OnProgress: func(s progress.Snapshot) {
			last = s
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), last.BytesDone)
	assert.Equal(t, int64(10), last.BytesTotal)
}

func TestDeliveryMissingStagedFile(t *testing.T) {
	d := NewDelivery(&fakeSender{})

	err := d.Send(context.Background(), transfer.Upload{
		Kind: media.KindDocument,
		Path: filepath.Join(t.TempDir(), "gone.bin"),
	})
	assert.Error(t, err)
}
