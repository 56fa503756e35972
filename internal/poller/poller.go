// Package poller runs the ingestion side of a cycle: query the record store
// past the cursor, collapse duplicates, advance and persist the cursor.
package poller

import (
	"context"
	"fmt"
	"time"

	"restockbot/internal/cursor"
	"restockbot/internal/record"
	"restockbot/internal/storage"
	logx "restockbot/pkg/logx"
)

// Source is the read-only record store query.
type Source interface {
	FetchSince(ctx context.Context, since time.Time) ([]record.Record, error)
}

type Poller struct {
	source Source
	cur    *cursor.Cursor
	store  storage.Store
	key    string
	log    logx.Logger
}

// New wires a poller around its cursor. The poller is the cursor's only
// writer; callers must not run two polls concurrently.
func New(source Source, cur *cursor.Cursor, store storage.Store, key string, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{source: source, cur: cur, store: store, key: key, log: log}
}

// Cursor exposes the cursor for startup logging.
func (p *Poller) Cursor() *cursor.Cursor { return p.cur }

// Poll returns the novel records of one page, ascending by ingestion time.
//
// On a fetch failure the cursor is left untouched and the error is returned
// for the cycle to abort; the next interval retries from the same position.
// When the store returned any records at all, the cursor advances to the last
// record of the page even if every member was filtered as a duplicate;
// without that, a page full of duplicates would be refetched forever.
//
// An empty result is a normal, frequent outcome.
func (p *Poller) Poll(ctx context.Context) ([]record.Record, error) {
	page, err := p.source.FetchSince(ctx, p.cur.LastSeen())
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	if len(page) == 0 {
		return nil, nil
	}

	var novel []record.Record
	for _, r := range page {
		if p.cur.IsDuplicate(r) {
			p.log.Debug("duplicate suppressed",
				logx.String("storage_id", r.StorageID),
				logx.Time("ingested_at", r.IngestedAt))
			continue
		}
		novel = append(novel, r)
		p.cur.MarkDelivered(r)
	}

	p.cur.Advance(page[len(page)-1].IngestedAt)

	if err := p.cur.Persist(ctx, p.store, p.key); err != nil {
		// Delivery proceeds on stale persisted state; the windows absorb
		// the re-read after a restart.
		p.log.Warn("cursor persist failed", logx.String("key", p.key), logx.Err(err))
	}

	p.log.Debug("poll complete",
		logx.Int("fetched", len(page)),
		logx.Int("novel", len(novel)),
		logx.Time("last_seen", p.cur.LastSeen()))
	return novel, nil
}
