package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aredoff/farmbot/internal/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var (
	ErrNoToken  = errors.New("telegram bot token is empty")
	ErrBadChat  = errors.New("telegram chat id must be numeric or @channel")
	ErrNoChatID = errors.New("telegram chat id is empty")
)

type TelegramConfig struct {
	Token  string
	ChatID string
	// APIEndpoint is a format string taking the token and the method name.
	// Empty means the public Bot API.
	APIEndpoint string
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Telegram posts messages through the Bot API. A fresh bot client is built for
// every message.
type Telegram struct {
	cfg     TelegramConfig
	client  *http.Client
	metrics *metrics.Collectors
	logger  zerolog.Logger
}

func NewTelegram(cfg TelegramConfig, m *metrics.Collectors) *Telegram {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		logger:  cfg.Logger,
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("Failed to send Telegram message")
			t.metrics.ObserveNotification("failed")
		}
	}()

	if err := t.send(ctx, text); err != nil {
		t.logger.Error().Str("error", t.redact(err)).Msg("Failed to send Telegram message")
		t.metrics.ObserveNotification("failed")
		return
	}
	t.logger.Debug().Str("text", text).Msg("Telegram message sent")
	t.metrics.ObserveNotification("sent")
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if t.cfg.Token == "" {
		return ErrNoToken
	}
	msg, err := newMessage(t.cfg.ChatID, text)
	if err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, t.cfg.APIEndpoint, ctxClient{ctx: ctx, client: t.client})
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// redact strips the bot token, which the Bot API embeds in request URLs.
func (t *Telegram) redact(err error) string {
	if t.cfg.Token == "" {
		return err.Error()
	}
	return strings.ReplaceAll(err.Error(), t.cfg.Token, "<token>")
}

func newMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	chatID = strings.TrimSpace(chatID)
	switch {
	case chatID == "":
		return tgbotapi.MessageConfig{}, ErrNoChatID
	case strings.HasPrefix(chatID, "@"):
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("%w: %q", ErrBadChat, chatID)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// ctxClient binds the caller's context to requests made by the bot client.
type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
