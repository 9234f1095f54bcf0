package sink

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"notifyd/internal/model"
	"notifyd/pkg/logx"
)

// TelegramConfig configures the optional Telegram delivery sink.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Telegram forwards delivered notifications to one chat. It is a delivery
// adapter only; it never reads updates.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: cfg.ChatID, log: log}, nil
}

func (t *Telegram) Deliver(ctx context.Context, n model.Notification) error {
	_ = ctx
	_, err := t.bot.Send(tele.ChatID(t.chatID), formatMessage(n), tele.ModeHTML, tele.NoPreview)
	return err
}

func formatMessage(n model.Notification) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(escapeHTML(n.Title))
	b.WriteString("</b>")
	if n.Message != "" {
		b.WriteString("\n")
		b.WriteString(escapeHTML(n.Message))
	}
	b.WriteString("\n\n")
	b.WriteString(string(n.Category))
	b.WriteString(" · ")
	b.WriteString(string(n.Priority))
	if n.Source != "" {
		b.WriteString(" · ")
		b.WriteString(escapeHTML(n.Source))
	}
	if !n.Timestamp.IsZero() {
		b.WriteString(" · ")
		b.WriteString(n.Timestamp.Format(time.RFC822))
	}
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
