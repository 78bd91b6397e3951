// Package telegram sends operational alerts to a Telegram chat monitored by
// the counselling team.
package telegram

import (
	"context"
	"fmt"
	"time"

	"safecircle/backend/internal/localization"
	"safecircle/backend/internal/logging"
	"safecircle/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// botAPI is the part of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AlertSender posts alerts to one Telegram chat. Sends run in their own
// goroutine so callers on the realtime event loop never wait on Telegram.
type AlertSender struct {
	bot       botAPI
	chatID    int64
	localizer *localization.Localizer
	log       *zap.Logger
}

// NewAlertSender authorizes the bot token and returns a sender for chatID.
func NewAlertSender(token string, chatID int64, loc *localization.Localizer, log *zap.Logger) (*AlertSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	bot.Debug = false
	logging.OrNop(log).Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return newAlertSender(bot, chatID, loc, log), nil
}

func newAlertSender(bot botAPI, chatID int64, loc *localization.Localizer, log *zap.Logger) *AlertSender {
	if loc == nil {
		loc = localization.Default()
	}
	return &AlertSender{bot: bot, chatID: chatID, localizer: loc, log: logging.OrNop(log)}
}

// ChatRequestWaiting alerts that a request was created while no counsellor was online.
func (a *AlertSender) ChatRequestWaiting(ctx context.Context, room models.ChatRoom) {
	text := a.localizer.Format(localization.DefaultLanguage, "notify.chat_waiting", room.ProblemType)
	a.dispatch(ctx, text)
}

// LiveLocationStarted alerts that a new live-location session was opened.
func (a *AlertSender) LiveLocationStarted(ctx context.Context, shareID string) {
	text := a.localizer.Format(localization.DefaultLanguage, "notify.location_started", shareID)
	a.dispatch(ctx, text)
}

func (a *AlertSender) dispatch(ctx context.Context, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := a.send(ctx, text); err != nil {
			a.log.Warn("telegram alert failed", zap.Int64("chat_id", a.chatID), zap.Error(err))
		}
	}()
}

func (a *AlertSender) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(a.chatID, tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	errCh := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(msg)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
