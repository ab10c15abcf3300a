package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/lcarvalho/tgrelay/internal/media"
	"github.com/lcarvalho/tgrelay/internal/transfer"
)

// Source resolves message links and streams media through the bridge. It is
// the pipeline's only path to the user session.
type Source struct {
	bridge *Bridge
}

func NewSource(bridge *Bridge) *Source {
	return &Source{bridge: bridge}
}

// FetchMessage resolves the request's peer and message id to the message
// body and a classified media descriptor (nil when the message is text-only).
func (s *Source) FetchMessage(ctx context.Context, req transfer.Request) (transfer.Message, error) {
	var out transfer.Message

	err := s.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		msg, err := s.fetch(ctx, conn.API, req)
		if err != nil {
			return err
		}

		out.Text = msg.Message
		if msg.Media == nil {
			return nil
		}

		desc, ok := media.Classify(msg.Media)
		if !ok {
			return &transfer.Error{Kind: transfer.KindNoMedia, Link: req.Link}
		}
		out.Media = &desc
		return nil
	})
	if err != nil {
		return transfer.Message{}, err
	}
	return out, nil
}

func (s *Source) fetch(ctx context.Context, api *tg.Client, req transfer.Request) (*tg.Message, error) {
	notFound := &transfer.Error{Kind: transfer.KindMessageNotFound, Link: req.Link}

	var (
		result tg.MessagesMessagesClass
		err    error
	)

	switch {
	case req.ChannelID != 0:
		channel, chanErr := s.resolveChannelID(ctx, api, req.ChannelID)
		if chanErr != nil {
			return nil, chanErr
		}
		if channel == nil {
			return nil, notFound
		}
		result, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: channel,
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: req.MessageID}},
		})
	default:
		username := strings.TrimPrefix(req.Peer, "@")
		resolved, resErr := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
			Username: username,
		})
		if tgerr.Is(resErr, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return nil, notFound
		}
		if resErr != nil {
			return nil, fmt.Errorf("resolving %s: %w", req.Peer, resErr)
		}

		if channel := findChannel(resolved.Chats); channel != nil {
			result, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
				ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: req.MessageID}},
			})
		} else {
			result, err = api.MessagesGetMessages(ctx, []tg.InputMessageClass{
				&tg.InputMessageID{ID: req.MessageID},
			})
		}
	}

	if tgerr.Is(err, "CHANNEL_INVALID", "CHANNEL_PRIVATE", "MESSAGE_IDS_EMPTY") {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching message: %w", err)
	}

	if msg := findMessage(result, req.MessageID); msg != nil {
		return msg, nil
	}
	return nil, notFound
}

// resolveChannelID turns a bare channel id into an InputChannel with the
// access hash the API requires. Returns nil when the session cannot see the
// channel.
func (s *Source) resolveChannelID(ctx context.Context, api *tg.Client, channelID int64) (*tg.InputChannel, error) {
	chats, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{
		&tg.InputChannel{ChannelID: channelID},
	})
	if tgerr.Is(err, "CHANNEL_INVALID", "CHANNEL_PRIVATE") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving channel %d: %w", channelID, err)
	}

	var list []tg.ChatClass
	switch c := chats.(type) {
	case *tg.MessagesChats:
		list = c.Chats
	case *tg.MessagesChatsSlice:
		list = c.Chats
	}
	for _, chat := range list {
		if ch, ok := chat.(*tg.Channel); ok && ch.ID == channelID {
			return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
		}
	}
	return nil, nil
}

func findChannel(chats []tg.ChatClass) *tg.Channel {
	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return ch
		}
	}
	return nil
}

func findMessage(result tg.MessagesMessagesClass, id int) *tg.Message {
	var list []tg.MessageClass
	switch m := result.(type) {
	case *tg.MessagesMessages:
		list = m.Messages
	case *tg.MessagesMessagesSlice:
		list = m.Messages
	case *tg.MessagesChannelMessages:
		list = m.Messages
	}
	for _, raw := range list {
		if msg, ok := raw.(*tg.Message); ok && msg.ID == id {
			return msg
		}
	}
	return nil
}

// Download streams the attachment named by desc into w. The write side is
// expected to be wrapped with progress accounting by the caller.
func (s *Source) Download(ctx context.Context, desc media.Descriptor, w io.Writer) error {
	loc, err := inputLocation(desc)
	if err != nil {
		return err
	}
	return s.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		_, err := downloader.NewDownloader().Download(conn.API, loc).Stream(ctx, w)
		return err
	})
}

// Thumbnail fetches a document's thumbnail rendition. Returns nil bytes when
// the attachment has none.
func (s *Source) Thumbnail(ctx context.Context, desc media.Descriptor) ([]byte, error) {
	if desc.Document == nil || desc.ThumbType == "" {
		return nil, nil
	}

	loc := &tg.InputDocumentFileLocation{
		ID:            desc.Document.ID,
		AccessHash:    desc.Document.AccessHash,
		FileReference: desc.Document.FileReference,
		ThumbSize:     desc.ThumbType,
	}

	var buf bytes.Buffer
	err := s.bridge.Submit(ctx, func(ctx context.Context, conn Conn) error {
		_, err := downloader.NewDownloader().Download(conn.API, loc).Stream(ctx, &buf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func inputLocation(desc media.Descriptor) (tg.InputFileLocationClass, error) {
	switch {
	case desc.Photo != nil:
		return &tg.InputPhotoFileLocation{
			ID:            desc.Photo.ID,
			AccessHash:    desc.Photo.AccessHash,
			FileReference: desc.Photo.FileReference,
			ThumbSize:     desc.PhotoSizeType,
		}, nil
	case desc.Document != nil:
		return desc.Document.AsInputDocumentFileLocation(), nil
	default:
		return nil, fmt.Errorf("descriptor has no downloadable location")
	}
}
