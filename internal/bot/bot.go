package bot

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/notify"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/session"
)

// Bot connects the Telegram transport to the session engine. Updates are
// processed strictly in arrival order so the single session's scratch state
// never sees concurrent writers.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    config.Config
	engine *session.Engine
	sess   *session.Session
	queue  *notify.Queue
	log    *logrus.Entry
}

func New(cfg config.Config, engine *session.Engine, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Bot{
		api:    api,
		cfg:    cfg,
		engine: engine,
		sess:   &session.Session{ChatID: cfg.Telegram.UserID},
		log:    log.WithField("component", "bot"),
	}, nil
}

// SetNotifyQueue attaches the owner notification queue. The queue itself
// sends through this bot, so it is wired after construction.
func (b *Bot) SetNotifyQueue(q *notify.Queue) {
	b.queue = q
}

// Run consumes updates until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.updates(ctx)
	if err != nil {
		return err
	}
	b.log.WithField("account", b.api.Self.UserName).Info("listening for updates")
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

func (b *Bot) updates(ctx context.Context) (tgbotapi.UpdatesChannel, error) {
	if !b.cfg.Telegram.Webhook.Enabled {
		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = 60
		return b.api.GetUpdatesChan(cfg), nil
	}

	wh, err := tgbotapi.NewWebhookWithCert(b.cfg.Telegram.Webhook.URL, tgbotapi.FilePath(b.cfg.Telegram.Webhook.Cert))
	if err != nil {
		return nil, fmt.Errorf("webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return nil, fmt.Errorf("set webhook: %w", err)
	}
	updates := b.api.ListenForWebhook("/" + b.api.Token)
	addr := fmt.Sprintf("%s:%d", b.cfg.Telegram.Webhook.Listen, b.cfg.Telegram.Webhook.Port)
	go func() {
		err := http.ListenAndServeTLS(addr, b.cfg.Telegram.Webhook.Cert, b.cfg.Telegram.Webhook.Key, nil)
		if err != nil && ctx.Err() == nil {
			b.log.WithError(err).Error("webhook server stopped")
		}
	}()
	return updates, nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	if !b.authorized(chatID) {
		b.denyAccess(update.Message)
		return
	}
	for _, reply := range b.engine.Handle(ctx, b.sess, update.Message.Text) {
		if reply.Text == "" && len(reply.Buttons) == 0 {
			continue
		}
		if _, err := b.api.Send(renderReply(chatID, reply)); err != nil {
			b.log.WithError(err).Warn("send failed")
		}
	}
	// A restart replaces the process image, so it must run after the
	// replies above have been handed to the transport.
	if restart := b.engine.PendingRestart(); restart != nil {
		restart()
	}
}

// authorized is the access guard: only the configured principal may reach
// the session engine.
func (b *Bot) authorized(chatID int64) bool {
	return chatID == b.cfg.Telegram.UserID
}

func (b *Bot) denyAccess(msg *tgbotapi.Message) {
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	b.log.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"user":    user,
	}).Warn("access denied")

	// Both the requester echo and the owner notice honor the same toggle.
	if !b.cfg.Notifications.ShowAccessDenied {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Access denied")
	if _, err := b.api.Send(reply); err != nil {
		b.log.WithError(err).Warn("denial echo failed")
	}
	if b.queue != nil {
		b.queue.Push(fmt.Sprintf("Access denied for chat %d (@%s)", msg.Chat.ID, user))
	}
}

// Send delivers a plain text message to the operator. Satisfies
// notify.Sender.
func (b *Bot) Send(text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(b.cfg.Telegram.UserID, text))
	return err
}

// SendProgress sends a message and returns its id for later edits.
func (b *Bot) SendProgress(text string) (int, error) {
	msg, err := b.api.Send(tgbotapi.NewMessage(b.cfg.Telegram.UserID, text))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditProgress replaces the text of a previously sent progress message.
func (b *Bot) EditProgress(messageID int, text string) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(b.cfg.Telegram.UserID, messageID, text))
	return err
}
