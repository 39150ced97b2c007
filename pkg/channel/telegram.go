package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/ratelimit"
)

// TelegramConfig holds Bot API settings, populated from environment variables.
type TelegramConfig struct {
	Token string `env:"TELEGRAM_BOT_TOKEN,required"`
	// Empty means the public Bot API.
	APIURL         string        `env:"TELEGRAM_API_URL"`
	RequestTimeout time.Duration `env:"TELEGRAM_REQUEST_TIMEOUT" envDefault:"15s"`
	// Local send rate across all workers of this process.
	MessagesPerSecond int  `env:"TELEGRAM_MESSAGES_PER_SECOND" envDefault:"25"`
	DisablePreview    bool `env:"TELEGRAM_DISABLE_PREVIEW" envDefault:"false"`
}

// permanentErrors are Bot API answers that will not change on retry.
var permanentErrors = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrNotStartedByUser,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrKickedFromChannel,
	tele.ErrChatNotFound,
}

// Telegram sends HTML messages through the Telegram Bot API.
type Telegram struct {
	bot            *tele.Bot
	pacer          *ratelimit.Pacer
	logger         *slog.Logger
	disablePreview bool
}

// TelegramOption configures a Telegram sender.
type TelegramOption func(*Telegram)

// WithTelegramLogger sets the logger.
func WithTelegramLogger(l *slog.Logger) TelegramOption {
	return func(t *Telegram) {
		t.logger = l
	}
}

// NewTelegram creates a send-only bot. It never polls for updates.
func NewTelegram(cfg TelegramConfig, opts ...TelegramOption) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("channel: create telegram bot: %w", err)
	}

	t := &Telegram{
		bot:            bot,
		pacer:          ratelimit.NewPacer(cfg.MessagesPerSecond),
		logger:         logger.NewNope(),
		disablePreview: cfg.DisablePreview,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send delivers msg to the chat whose numeric id is recipientID.
// A photo is sent when MediaURL is set, with Text as caption.
func (t *Telegram) Send(ctx context.Context, recipientID string, msg Message) error {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return Permanent(fmt.Errorf("%w: %q", ErrInvalidRecipient, recipientID))
	}
	if msg.IsEmpty() {
		return Permanent(ErrEmptyMessage)
	}
	if err := t.pacer.Wait(ctx); err != nil {
		return err
	}

	var what any = msg.Text
	if msg.MediaURL != "" {
		what = &tele.Photo{File: tele.FromURL(msg.MediaURL), Caption: msg.Text}
	}
	opts := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: t.disablePreview,
	}

	// The bot client has no context support; the request is bounded by the
	// HTTP client timeout and abandoned here when ctx ends first.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(tele.ChatID(chatID), what, opts)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			err = classify(err)
			t.logger.DebugContext(ctx, "telegram send failed",
				slog.String("recipient_id", recipientID),
				slog.Bool("permanent", IsPermanent(err)),
				slog.Any("error", err),
			)
		}
		return err
	}
}

// classify maps Bot API errors onto the permanent / transient split.
func classify(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return fmt.Errorf("%w: retry after %ds", ErrFloodControl, flood.RetryAfter)
	}
	for _, perm := range permanentErrors {
		if errors.Is(err, perm) {
			return Permanent(err)
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		return Permanent(err)
	}
	return err
}
