// Package relay runs the per-tick pipeline: poll for novel records, format
// them, resolve the eligible audience, and fan out. The cursor is fully
// advanced and persisted by the poller before the first send happens, so a
// crash mid-broadcast drops deliveries rather than duplicating them.
package relay

import (
	"context"
	"errors"
	"sync/atomic"

	"restockbot/internal/broadcast"
	"restockbot/internal/format"
	"restockbot/internal/record"
	"restockbot/internal/source"
	logx "restockbot/pkg/logx"
)

type Poller interface {
	Poll(ctx context.Context) ([]record.Record, error)
}

type Registry interface {
	Eligible(ctx context.Context) ([]int64, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, msgs []broadcast.Outgoing, recipients []int64) broadcast.Report
}

type Relay struct {
	poller   Poller
	registry Registry
	caster   Broadcaster
	log      logx.Logger

	// busy guards against overlapping cycles. A tick that fires while the
	// previous cycle is still broadcasting is skipped, not queued.
	busy atomic.Bool
}

func New(p Poller, reg Registry, bc Broadcaster, log logx.Logger) *Relay {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Relay{poller: p, registry: reg, caster: bc, log: log}
}

// Cycle runs one complete poll-and-broadcast pass.
//
// A source outage is routine (the store restarts, the network blips): it is
// logged at warn and swallowed so the next tick simply retries. Anything
// else bubbles up.
func (r *Relay) Cycle(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		r.log.Debug("cycle still running, skipping tick")
		return nil
	}
	defer r.busy.Store(false)

	novel, err := r.poller.Poll(ctx)
	if errors.Is(err, source.ErrSourceUnavailable) {
		r.log.Warn("record store unavailable, retrying next tick", logx.Err(err))
		return nil
	}
	if err != nil {
		return err
	}
	if len(novel) == 0 {
		return nil
	}

	msgs := make([]broadcast.Outgoing, 0, len(novel))
	for _, rec := range novel {
		msg, err := format.Format(rec)
		if err != nil {
			// One malformed record must not sink the batch.
			r.log.Warn("skipping unrenderable record",
				logx.String("record_id", rec.StorageID), logx.Err(err))
			continue
		}
		msgs = append(msgs, broadcast.Outgoing{RecordID: rec.StorageID, Message: msg})
	}
	if len(msgs) == 0 {
		return nil
	}

	recipients, err := r.registry.Eligible(ctx)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		r.log.Info("novel records but no eligible subscribers",
			logx.Int("records", len(msgs)))
		return nil
	}

	rep := r.caster.Broadcast(ctx, msgs, recipients)
	r.log.Info("cycle complete",
		logx.Int("records", len(msgs)),
		logx.Int("recipients", len(recipients)),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed()))
	if len(rep.UnreachableIDs) > 0 {
		r.log.Warn("unreachable subscribers", logx.Any("chat_ids", rep.UnreachableIDs))
	}
	return nil
}
