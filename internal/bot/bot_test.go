package bot

import (
	"io"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/notify"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/session"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type nopSender struct{}

func (nopSender) Send(text string) error { return nil }

func TestAuthorizedOnlyForConfiguredPrincipal(t *testing.T) {
	b := &Bot{cfg: config.Config{Telegram: config.TelegramConfig{UserID: 42}}}
	if !b.authorized(42) {
		t.Fatal("configured principal rejected")
	}
	if b.authorized(43) {
		t.Fatal("foreign chat accepted")
	}
}

func TestDenyAccessSilentWhenDisabled(t *testing.T) {
	// An unbuffered queue counts every push as a drop, so the counter
	// doubles as a push detector without a running delivery loop.
	q := notify.NewQueue(nopSender{}, 0, testLogger())
	b := &Bot{
		cfg:   config.Config{Telegram: config.TelegramConfig{UserID: 42}},
		queue: q,
		log:   testLogger().WithField("component", "bot"),
	}

	b.denyAccess(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}})
	if q.Dropped() != 0 {
		t.Fatal("owner notified although show_access_denied is off")
	}
}

func TestRenderReplyKeyboard(t *testing.T) {
	msg := renderReply(42, session.Reply{
		Text:    "Buy or sell?",
		Buttons: [][]string{{"BUY", "SELL"}, {"CANCEL"}},
	})
	markup, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("markup type %T", msg.ReplyMarkup)
	}
	if !markup.ResizeKeyboard {
		t.Fatal("keyboard must resize")
	}
	if len(markup.Keyboard) != 2 || len(markup.Keyboard[0]) != 2 {
		t.Fatalf("keyboard shape: %+v", markup.Keyboard)
	}
	if markup.Keyboard[0][0].Text != "BUY" {
		t.Fatalf("first button = %q", markup.Keyboard[0][0].Text)
	}
}

func TestRenderReplyRemoveKeyboard(t *testing.T) {
	msg := renderReply(42, session.Reply{Text: "Enter new value", RemoveKeyboard: true})
	if _, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Fatalf("markup type %T", msg.ReplyMarkup)
	}
}
