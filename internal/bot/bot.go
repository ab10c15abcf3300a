// Package bot hosts the command surface: a long-polling loop that gates on
// the owner, drives the sign-in conversation, and hands t.me links to the
// relay pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lcarvalho/tgrelay/internal/notifier"
	"github.com/lcarvalho/tgrelay/internal/session"
	"github.com/lcarvalho/tgrelay/internal/telemetry"
	"github.com/lcarvalho/tgrelay/internal/transfer"
	"github.com/lcarvalho/tgrelay/internal/transfer/progress"
)

// statusEditInterval throttles in-place edits of the progress message so a
// long transfer doesn't hammer the Bot API.
const statusEditInterval = 3 * time.Second

// API is the slice of the Bot API client the loop needs. Satisfied by
// *tgbotapi.BotAPI.
type API interface {
	sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Auth drives the sign-in conversation.
type Auth interface {
	State() session.State
	RequestCode(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) error
	SubmitPassword(ctx context.Context, password string) error
	Reset(ctx context.Context) error
	IsAuthenticated(ctx context.Context) (bool, error)
}

// Relayer runs one relay end to end. Satisfied by *transfer.Pipeline.
type Relayer interface {
	Execute(ctx context.Context, req transfer.Request, onProgress transfer.ProgressFunc) (*transfer.Result, error)
}

// Bot is the owner-only command loop.
type Bot struct {
	api       API
	auth      Auth
	pipeline  Relayer
	notify    notifier.Notifier
	telemetry *telemetry.Telemetry
	logger    *slog.Logger

	ownerID     int64
	maxFileSize int64

	editInterval time.Duration

	mu            sync.Mutex
	awaitingPhone bool
}

func New(api API, auth Auth, pipeline Relayer, notify notifier.Notifier, tel *telemetry.Telemetry, logger *slog.Logger, ownerID, maxFileSize int64) *Bot {
	return &Bot{
		api:          api,
		auth:         auth,
		pipeline:     pipeline,
		notify:       notify,
		telemetry:    tel,
		logger:       logger,
		ownerID:      ownerID,
		maxFileSize:  maxFileSize,
		editInterval: statusEditInterval,
	}
}

// Run polls for updates until ctx is cancelled or the update channel closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot loop started", "owner_id", b.ownerID)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.From.ID != b.ownerID {
		b.logger.Warn("rejected message from unauthorized user", "user_id", msg.From.ID)
		b.reply(msg.Chat.ID, "This bot is private.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID,
			"Send me a t.me message link and I'll relay its media here.\n\n"+
				"/login - sign in with your Telegram account\n"+
				"/status - session and limit info\n"+
				"/cancel - abandon the sign-in conversation")
	case "status":
		b.handleStatus(ctx, msg.Chat.ID)
	case "login":
		if err := b.auth.Reset(ctx); err != nil {
			b.reply(msg.Chat.ID, "Could not start sign-in: "+err.Error())
			return
		}
		b.setAwaitingPhone(true)
		b.reply(msg.Chat.ID, "Send your phone number in international format (e.g. +15550001111).")
	case "cancel":
		b.setAwaitingPhone(false)
		if err := b.auth.Reset(ctx); err != nil {
			b.reply(msg.Chat.ID, "Reset failed: "+err.Error())
			return
		}
		b.reply(msg.Chat.ID, "Sign-in conversation cancelled.")
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	authed, err := b.auth.IsAuthenticated(ctx)
	authText := "yes"
	switch {
	case errors.Is(err, session.ErrBridgeClosed):
		authText = "unknown (session worker is down)"
	case err != nil:
		authText = "unknown (" + err.Error() + ")"
	case !authed:
		authText = "no, use /login"
	}

	b.reply(chatID, fmt.Sprintf(
		"Session state: %s\nSigned in: %s\nMax file size: %s",
		b.auth.State(), authText, humanize.IBytes(uint64(b.maxFileSize)),
	))
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	// While a sign-in step is pending, any free text is that step's input,
	// even text that happens to contain a link.
	switch {
	case b.isAwaitingPhone():
		b.handlePhone(ctx, msg)
		return
	case b.auth.State() == session.StateCodeRequested:
		b.handleCode(ctx, msg)
		return
	case b.auth.State() == session.StatePasswordRequired:
		b.handlePassword(ctx, msg)
		return
	}

	if req, ok := transfer.FindMessageLink(msg.Text); ok {
		req.Target = msg.Chat.ID
		go b.relay(ctx, msg.Chat.ID, req)
		return
	}

	b.reply(msg.Chat.ID, "Send a t.me message link, or /help for commands.")
}

func (b *Bot) handlePhone(ctx context.Context, msg *tgbotapi.Message) {
	err := b.auth.RequestCode(ctx, msg.Text)
	b.telemetry.RecordAuthStep("request_code", stepStatus(err))
	if err != nil {
		b.reply(msg.Chat.ID, "Could not request a code: "+authErrorText(err))
		return
	}
	b.setAwaitingPhone(false)
	b.reply(msg.Chat.ID, "Code sent. Reply with the code you received.")
}

func (b *Bot) handleCode(ctx context.Context, msg *tgbotapi.Message) {
	err := b.auth.SubmitCode(ctx, msg.Text)
	b.telemetry.RecordAuthStep("submit_code", stepStatus(err))
	if err != nil {
		b.reply(msg.Chat.ID, authErrorText(err))
		return
	}

	if b.auth.State() == session.StatePasswordRequired {
		b.reply(msg.Chat.ID, "Two-factor authentication is enabled. Send your password.")
		return
	}
	b.reply(msg.Chat.ID, "Signed in. Send me a t.me link to relay.")
}

func (b *Bot) handlePassword(ctx context.Context, msg *tgbotapi.Message) {
	err := b.auth.SubmitPassword(ctx, msg.Text)
	b.telemetry.RecordAuthStep("submit_password", stepStatus(err))
	if err != nil {
		b.reply(msg.Chat.ID, authErrorText(err))
		return
	}
	b.reply(msg.Chat.ID, "Signed in. Send me a t.me link to relay.")
}

func (b *Bot) relay(ctx context.Context, chatID int64, req transfer.Request) {
	status, err := b.api.Send(tgbotapi.NewMessage(chatID, "Fetching message..."))
	if err != nil {
		b.logger.Error("failed to post status message", "error", err)
	}

	var mu sync.Mutex
	lastEdit := time.Now()
	onProgress := func(leg transfer.Leg, snap progress.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if time.Since(lastEdit) < b.editInterval {
			return
		}
		lastEdit = time.Now()
		b.editStatus(chatID, status.MessageID, formatProgress(leg, snap))
	}

	res, err := b.pipeline.Execute(ctx, req, onProgress)
	if err != nil {
		b.editStatus(chatID, status.MessageID, failureText(err))
		b.notifyf(ctx, "relay failed: %s (%v)", req.Link, err)
		return
	}

	if res.TextOnly {
		b.editStatus(chatID, status.MessageID, "That message has no media; here is its text.")
		if res.Text != "" {
			b.reply(chatID, res.Text)
		}
		return
	}

	b.editStatus(chatID, status.MessageID, fmt.Sprintf(
		"Done: %s (%s)\nDownload: %s at %s/s\nUpload: %s at %s/s",
		res.Filename, humanize.IBytes(uint64(res.Size)),
		res.Download.Elapsed.Round(time.Second), humanize.IBytes(uint64(res.Download.ThroughputBytesPerSec)),
		res.Upload.Elapsed.Round(time.Second), humanize.IBytes(uint64(res.Upload.ThroughputBytesPerSec)),
	))
	b.notifyf(ctx, "relayed %s (%s) from %s", res.Filename, humanize.IBytes(uint64(res.Size)), req.Link)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send reply", "error", err)
	}
}

func (b *Bot) editStatus(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Debug("failed to edit status message", "error", err)
	}
}

func (b *Bot) notifyf(ctx context.Context, format string, args ...any) {
	if err := b.notify.Notify(ctx, fmt.Sprintf(format, args...)); err != nil {
		b.logger.Debug("webhook notification failed", "error", err)
	}
}

func (b *Bot) setAwaitingPhone(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaitingPhone = v
}

func (b *Bot) isAwaitingPhone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingPhone
}

func formatProgress(leg transfer.Leg, snap progress.Snapshot) string {
	verb := "Downloading"
	if leg == transfer.LegUpload {
		verb = "Uploading"
	}

	text := fmt.Sprintf("%s... %s", verb, humanize.IBytes(uint64(snap.BytesDone)))
	if snap.BytesTotal > 0 {
		text = fmt.Sprintf("%s... %.1f%% of %s", verb, snap.PercentComplete, humanize.IBytes(uint64(snap.BytesTotal)))
	}
	if snap.ThroughputBytesPerSec > 0 {
		text += fmt.Sprintf(" at %s/s", humanize.IBytes(uint64(snap.ThroughputBytesPerSec)))
	}
	if snap.HasETA {
		text += fmt.Sprintf(", ETA %s", (time.Duration(snap.ETASeconds) * time.Second).Round(time.Second))
	}
	return text
}

func failureText(err error) string {
	var te *transfer.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case transfer.KindMessageNotFound:
			return "Message not found. Check the link and make sure the session can see that chat."
		case transfer.KindNoMedia:
			return "That message has no relayable media."
		case transfer.KindTooLarge:
			return fmt.Sprintf("File is %s, over the %s limit.",
				humanize.IBytes(uint64(te.Size)), humanize.IBytes(uint64(te.Limit)))
		case transfer.KindDownloadFailed:
			return "Download failed: " + te.Error()
		case transfer.KindUploadFailed:
			return "Upload failed: " + te.Error()
		}
	}
	if errors.Is(err, session.ErrBridgeClosed) {
		return "The session worker is down; restart the service."
	}
	return "Relay failed: " + err.Error()
}

func authErrorText(err error) string {
	var ae *session.AuthError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case session.AuthInvalidCode:
			return "Invalid or expired code, try again."
		case session.AuthInvalidPassword:
			return "Wrong password, try again."
		case session.AuthNoPendingRequest:
			return "No sign-in in progress. Use /login to start over."
		case session.AuthNetworkFailure:
			return "Telegram rejected the step: " + ae.Error()
		}
	}
	return err.Error()
}

func stepStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
