// Package cursor tracks poll progress and recent deliveries: the last-seen
// ingestion timestamp plus two bounded recent-history windows.
//
// The two windows are deliberately independent filters. Storage IDs repeat
// naturally because polling overlaps at the timestamp boundary, so the ID
// window needs a long memory. The signature window only exists to stop
// near-simultaneous re-announcements of the identical event by multiple
// upstream relays; a long memory there would suppress a genuine restock of
// the same product hours later.
package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"restockbot/internal/record"
	"restockbot/internal/storage"
	logx "restockbot/pkg/logx"
)

const (
	// DefaultIDWindow comfortably exceeds the records one polling window
	// can produce, so boundary repeats always hit it.
	DefaultIDWindow = 512

	// DefaultSignatureWindow catches immediate copy-bot re-announcements
	// without remembering events long enough to swallow real restocks.
	DefaultSignatureWindow = 8

	// DefaultGrace bounds how far back a cold-started cursor reaches.
	DefaultGrace = time.Hour
)

// Options sizes the recent-history windows. Zero values use the defaults.
type Options struct {
	IDWindow        int
	SignatureWindow int
}

// Cursor has a single writer (the poller); it is never mutated concurrently.
type Cursor struct {
	lastSeen time.Time
	ids      *window
	sigs     *window
}

func New(opts Options, start time.Time) *Cursor {
	idCap := opts.IDWindow
	if idCap <= 0 {
		idCap = DefaultIDWindow
	}
	sigCap := opts.SignatureWindow
	if sigCap <= 0 {
		sigCap = DefaultSignatureWindow
	}
	return &Cursor{
		lastSeen: start,
		ids:      newWindow(idCap),
		sigs:     newWindow(sigCap),
	}
}

func (c *Cursor) LastSeen() time.Time { return c.lastSeen }

// IsDuplicate reports whether the record was already delivered, either under
// the exact same storage ID or under a different ID with the same content
// signature.
func (c *Cursor) IsDuplicate(r record.Record) bool {
	return c.ids.Contains(r.StorageID) || c.sigs.Contains(record.Signature(r))
}

// MarkDelivered records the storage ID and content signature of a record
// that is about to be broadcast.
func (c *Cursor) MarkDelivered(r record.Record) {
	c.ids.Add(r.StorageID)
	c.sigs.Add(record.Signature(r))
}

// Advance moves lastSeen forward to t. It never regresses, even when called
// with an earlier timestamp.
func (c *Cursor) Advance(t time.Time) {
	if t.After(c.lastSeen) {
		c.lastSeen = t
	}
}

// state is the persisted wire format.
type state struct {
	LastSeenAt       string   `json:"last_seen_at"`
	RecentIDs        []string `json:"recent_ids"`
	RecentSignatures []string `json:"recent_signatures"`
}

// Load restores the cursor from the blob store. A missing or corrupt blob is
// an expected cold-start condition: the cursor falls back to now-grace with
// empty windows and the process keeps going.
func Load(ctx context.Context, store storage.Store, key string, grace time.Duration, opts Options, log logx.Logger) *Cursor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	cold := func() *Cursor { return New(opts, time.Now().UTC().Add(-grace)) }

	if store == nil {
		return cold()
	}

	b, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn("cursor load failed, starting cold", logx.String("key", key), logx.Err(err))
		}
		return cold()
	}

	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		log.Warn("cursor blob corrupt, starting cold", logx.String("key", key), logx.Err(err))
		return cold()
	}
	last, err := time.Parse(time.RFC3339Nano, st.LastSeenAt)
	if err != nil {
		log.Warn("cursor timestamp corrupt, starting cold", logx.String("key", key), logx.Err(err))
		return cold()
	}

	c := New(opts, last)
	for _, id := range st.RecentIDs {
		c.ids.Add(id)
	}
	for _, sig := range st.RecentSignatures {
		c.sigs.Add(sig)
	}
	return c
}

// Persist writes the cursor to the blob store.
func (c *Cursor) Persist(ctx context.Context, store storage.Store, key string) error {
	if store == nil {
		return nil
	}
	b, err := json.Marshal(state{
		LastSeenAt:       c.lastSeen.UTC().Format(time.RFC3339Nano),
		RecentIDs:        c.ids.Items(),
		RecentSignatures: c.sigs.Items(),
	})
	if err != nil {
		return err
	}
	return store.Put(ctx, key, b)
}
