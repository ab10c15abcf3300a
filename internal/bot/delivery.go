package bot

import (
	"context"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lcarvalho/tgrelay/internal/media"
	"github.com/lcarvalho/tgrelay/internal/transfer"
	"github.com/lcarvalho/tgrelay/internal/transfer/progress"
)

// sender is the slice of the Bot API client the delivery needs. Satisfied by
// *tgbotapi.BotAPI.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Delivery pushes staged files through the bot credential, mapping each
// media kind to its own Bot API method and multipart field.
type Delivery struct {
	api sender
}

func NewDelivery(api sender) *Delivery {
	return &Delivery{api: api}
}

// Send uploads the staged file. The file reader is wrapped with progress
// accounting so the upload leg reports like the download leg does.
func (d *Delivery) Send(ctx context.Context, up transfer.Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("opening staged file: %w", err)
	}
	defer f.Close()

	file := tgbotapi.FileReader{
		Name:   up.Filename,
		Reader: progress.NewReader(f, up.Size, up.OnProgress),
	}

	var thumb tgbotapi.RequestFileData
	if len(up.Thumb) > 0 {
		thumb = tgbotapi.FileBytes{Name: "thumb.jpg", Bytes: up.Thumb}
	}

	var msg tgbotapi.Chattable
	switch up.Kind {
	case media.KindPhoto:
		photo := tgbotapi.NewPhoto(up.ChatID, file)
		photo.Caption = up.Caption
		msg = photo
	case media.KindVideo:
		video := tgbotapi.NewVideo(up.ChatID, file)
		video.Caption = up.Caption
		video.SupportsStreaming = up.Streaming
		video.Thumb = thumb
		msg = video
	case media.KindAudio:
		audio := tgbotapi.NewAudio(up.ChatID, file)
		audio.Caption = up.Caption
		audio.Thumb = thumb
		msg = audio
	default:
		doc := tgbotapi.NewDocument(up.ChatID, file)
		doc.Caption = up.Caption
		doc.Thumb = thumb
		msg = doc
	}

	if _, err := d.api.Send(msg); err != nil {
		return fmt.Errorf("sending %s: %w", up.Kind, err)
	}
	return nil
}
