// Package broadcast fans formatted messages out to recipients. One recipient
// failing, whatever the reason, never affects delivery to the others.
package broadcast

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"restockbot/internal/transport"
	logx "restockbot/pkg/logx"
)

// DefaultSendDelay is the pause between consecutive sends. Telegram allows
// roughly 30 messages per second bot-wide; 50ms keeps a healthy margin.
const DefaultSendDelay = 50 * time.Millisecond

// Outgoing pairs a formatted message with the record it came from, so the
// log can say which observation failed for whom.
type Outgoing struct {
	RecordID string
	Message  transport.Message
}

// Report sums up one fan-out. Unreachable IDs are surfaced for whoever
// manages accounts; the broadcaster itself never mutates subscriber state.
type Report struct {
	Delivered   int
	Transient   int
	Unreachable int
	Permanent   int

	UnreachableIDs []int64
}

func (r Report) Failed() int { return r.Transient + r.Unreachable + r.Permanent }

type Broadcaster struct {
	sender  transport.Sender
	limiter *rate.Limiter
	log     logx.Logger
}

func New(sender transport.Sender, sendDelay time.Duration, log logx.Logger) *Broadcaster {
	if sendDelay <= 0 {
		sendDelay = DefaultSendDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Broadcaster{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Every(sendDelay), 1),
		log:     log,
	}
}

// Broadcast delivers every message to every recipient, pacing sends through
// the limiter. Failures are classified, logged, and counted; the batch always
// runs to completion unless the context itself dies.
func (b *Broadcaster) Broadcast(ctx context.Context, msgs []Outgoing, recipients []int64) Report {
	var rep Report
	if len(msgs) == 0 || len(recipients) == 0 {
		return rep
	}

	unreachable := map[int64]struct{}{}
	for _, out := range msgs {
		for _, chatID := range recipients {
			if err := b.limiter.Wait(ctx); err != nil {
				b.log.Warn("broadcast cut short", logx.Err(err))
				return rep
			}

			err := b.sender.Send(ctx, chatID, out.Message)
			if err == nil {
				rep.Delivered++
				continue
			}

			class := transport.FailTransient
			var se *transport.SendError
			if errors.As(err, &se) {
				class = se.Class
			}
			switch class {
			case transport.FailUnreachable:
				rep.Unreachable++
				if _, dup := unreachable[chatID]; !dup {
					unreachable[chatID] = struct{}{}
					rep.UnreachableIDs = append(rep.UnreachableIDs, chatID)
				}
			case transport.FailPermanent:
				rep.Permanent++
			default:
				rep.Transient++
			}
			b.log.Warn("delivery failed",
				logx.Int64("chat_id", chatID),
				logx.String("record_id", out.RecordID),
				logx.String("class", class.String()),
				logx.Err(err))
		}
	}
	return rep
}
