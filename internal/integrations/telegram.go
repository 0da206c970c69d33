package integrations

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dynpricing/dashboard-service/internal/api"
	"github.com/dynpricing/dashboard-service/internal/settings"
)

// ErrNoBotToken is returned when a bot operation runs before a token has
// been saved.
var ErrNoBotToken = errors.New("telegram bot token is not configured")

type telegramAPI interface {
	BotStatus(ctx context.Context) (api.BotStatus, error)
	SaveBotSettings(ctx context.Context, token, webhookURL string) (api.BotSettingsResult, error)
	SendBotMessage(ctx context.Context, chatID, message string) (api.ActionResult, error)
	SetBotMenu(ctx context.Context) (api.ActionResult, error)
}

// Telegram manages the notification bot panel. The token is stored
// server-side; the backend holds the actual bot session, so most calls are
// thin pass-throughs with configuration checks in front.
type Telegram struct {
	client telegramAPI
	store  *settings.Store
	logger zerolog.Logger
}

// NewTelegram creates the Telegram integration service.
func NewTelegram(client telegramAPI, store *settings.Store, logger zerolog.Logger) *Telegram {
	return &Telegram{
		client: client,
		store:  store,
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// Configured reports whether a bot token has been saved.
func (s *Telegram) Configured() bool {
	return s.store.Get().TelegramBotToken != ""
}

// MaskedToken returns the stored token in display form.
func (s *Telegram) MaskedToken() string {
	return settings.Mask(s.store.Get().TelegramBotToken)
}

// Status returns the bot's connection state from the backend.
func (s *Telegram) Status(ctx context.Context) (api.BotStatus, error) {
	return s.client.BotStatus(ctx)
}

// SaveToken validates the token shape, pushes it to the backend, and
// persists it locally only after the backend accepted it.
func (s *Telegram) SaveToken(ctx context.Context, token, webhookURL string) (api.BotSettingsResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return api.BotSettingsResult{}, ErrNoBotToken
	}

	res, err := s.client.SaveBotSettings(ctx, token, webhookURL)
	if err != nil {
		return res, err
	}

	if err := s.store.Update(func(st *settings.Settings) {
		st.TelegramBotToken = token
	}); err != nil {
		return res, err
	}
	return res, nil
}

// SendTestMessage sends a message through the bot to verify delivery.
func (s *Telegram) SendTestMessage(ctx context.Context, chatID, message string) (api.ActionResult, error) {
	if !s.Configured() {
		return api.ActionResult{}, ErrNoBotToken
	}
	if message == "" {
		message = "Тестовое сообщение от дашборда динамического ценообразования"
	}
	return s.client.SendBotMessage(ctx, chatID, message)
}

// SetMenu installs the bot's command menu.
func (s *Telegram) SetMenu(ctx context.Context) (api.ActionResult, error) {
	if !s.Configured() {
		return api.ActionResult{}, ErrNoBotToken
	}
	return s.client.SetBotMenu(ctx)
}
