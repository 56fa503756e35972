// Package telegram adapts the relay's send primitive onto the Telegram Bot
// API via telebot. The adapter only sends; it never consumes updates, so no
// poller is attached to the bot.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"restockbot/internal/transport"
	logx "restockbot/pkg/logx"
)

const (
	// Telegram hard limits, minus a little slack for safety.
	textLimit    = 4000
	captionLimit = 1024

	maxAlbumImages = 2 // extra images beyond the lead photo
)

type Config struct {
	Token string

	// RequestTimeout bounds each Bot API call so one stuck send cannot
	// stall the rest of the fan-out. Defaults to 15s.
	RequestTimeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

// Send delivers msg to one chat. Failures come back as *transport.SendError.
//
// With images the lead photo carries the caption and buttons; if the photo
// upload fails the adapter falls back to text-only so a dead image URL does
// not cost the subscriber the alert.
func (a *Adapter) Send(ctx context.Context, recipient int64, msg transport.Message) error {
	chat := &tele.Chat{ID: recipient}
	markup := buildMarkup(msg.Buttons)

	if len(msg.Images) > 0 {
		err := a.sendPhoto(ctx, chat, msg, markup)
		if err == nil {
			return nil
		}
		a.log.Debug("photo send failed, falling back to text",
			logx.Int64("chat_id", recipient), logx.Err(err))
	}

	return wrap(a.sendText(ctx, chat, msg.Text, markup))
}

func (a *Adapter) sendPhoto(ctx context.Context, chat *tele.Chat, msg transport.Message, markup *tele.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	caption := truncateRunes(msg.Text, captionLimit)
	photo := &tele.Photo{File: tele.FromURL(msg.Images[0]), Caption: caption}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: markup}
	if _, err := a.bot.Send(chat, photo, opts); err != nil {
		return err
	}

	if len(msg.Images) > 1 {
		album := tele.Album{}
		for _, img := range msg.Images[1:] {
			if len(album) >= maxAlbumImages {
				break
			}
			album = append(album, &tele.Photo{File: tele.FromURL(img)})
		}
		// The alert already went out; album failure is not worth a retry.
		if _, err := a.bot.SendAlbum(chat, album); err != nil {
			a.log.Debug("album send failed", logx.Int64("chat_id", chat.ID), logx.Err(err))
		}
	}
	return nil
}

func (a *Adapter) sendText(ctx context.Context, chat *tele.Chat, text string, markup *tele.ReplyMarkup) error {
	chunks := splitText(text, textLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
		// Attach markup only to the first message.
		if i == 0 {
			opts.ReplyMarkup = markup
		}
		if _, err := a.bot.Send(chat, chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

func buildMarkup(rows [][]transport.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	m := &tele.ReplyMarkup{}
	teleRows := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			btns = append(btns, m.URL(b.Text, b.URL))
		}
		teleRows = append(teleRows, m.Row(btns...))
	}
	m.Inline(teleRows...)
	return m
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &transport.SendError{Class: classify(err), Err: err}
}

// classify maps a Bot API failure onto the relay's taxonomy. The buckets
// mirror the failure modes seen in production: blocked/deleted accounts,
// flood limits, and malformed markup.
func classify(err error) transport.FailureClass {
	if err == nil {
		return transport.FailTransient
	}

	switch {
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrChatNotFound):
		return transport.FailUnreachable
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return transport.FailTransient
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return transport.FailUnreachable
		case apiErr.Code == 429:
			return transport.FailTransient
		case apiErr.Code == 400:
			return transport.FailPermanent
		case apiErr.Code >= 500:
			return transport.FailTransient
		default:
			return transport.FailPermanent
		}
	}

	// Timeouts, connection resets, context expiry.
	return transport.FailTransient
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// splitText splits long messages into chunks that are safe to send to
// Telegram, preferring newline boundaries so HTML lines stay intact.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' {
					// Avoid extremely small chunks.
					if i-start >= limit/3 {
						end = i + 1
					}
					break
				}
			}
		}

		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		out = append(out, chunk)

		start = end
		// Skip leading newlines to avoid empty chunks.
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
