// Package telegram implements the transport contracts over the Telegram
// Bot API.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tubewatch/internal/resolver"
	kit "tubewatch/internal/transport"
	logx "tubewatch/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter sends notifications and label edits through one bot account.
// It never long-polls for updates: this service only writes.
type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

// Deliver renders the payload as an HTML message and sends it.
func (a *Adapter) Deliver(ctx context.Context, to kit.ChatTarget, p *resolver.Payload) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	chat := &tele.Chat{ID: to.ChatID}
	opts := &tele.SendOptions{
		ParseMode: tele.ModeHTML,
		ThreadID:  to.ThreadID,
	}
	_, err := a.bot.Send(chat, renderPayload(p), opts)
	return err
}

// SetLabel edits the designated status message in place. The previous text
// stays visible if the edit fails.
func (a *Adapter) SetLabel(ctx context.Context, ref kit.MessageRef, text string) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	_, err := a.bot.Edit(m, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil && errors.Is(err, tele.ErrSameMessageContent) {
		// An unchanged count is not a failure.
		return nil
	}
	return err
}
