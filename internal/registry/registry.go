// Package registry answers one question per cycle: which subscribers are
// currently entitled to receive broadcasts. Account management (code
// redemption, payment) happens elsewhere and writes the same blob; this side
// only reads it.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"restockbot/internal/storage"
	logx "restockbot/pkg/logx"
)

// Subscriber is one entry of the persisted subscriber blob, keyed by the
// recipient's chat ID rendered as a string.
type Subscriber struct {
	Username    string `json:"username,omitempty"`
	ActiveUntil string `json:"expiry"`
	Paused      bool   `json:"alerts_paused,omitempty"`
	JoinedAt    string `json:"joined_at,omitempty"`
}

type Registry struct {
	store storage.Store
	key   string
	log   logx.Logger
}

func New(store storage.Store, key string, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: store, key: key, log: log}
}

// Eligible returns the chat IDs of subscribers that are active (unexpired)
// and not paused, sorted for deterministic fan-out order. Eligibility is
// recomputed from the blob on every call; nothing is cached across cycles.
//
// A missing blob means no subscribers yet, which is normal. A corrupt blob
// is an error: broadcasting to nobody because of a bad read should be loud,
// not silent.
func (r *Registry) Eligible(ctx context.Context) ([]int64, error) {
	if r.store == nil {
		return nil, nil
	}

	b, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: load %s: %w", r.key, err)
	}

	var subs map[string]Subscriber
	if err := json.Unmarshal(b, &subs); err != nil {
		return nil, fmt.Errorf("registry: corrupt blob %s: %w", r.key, err)
	}

	now := time.Now().UTC()
	out := make([]int64, 0, len(subs))
	for key, sub := range subs {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			r.log.Warn("subscriber key is not a chat id", logx.String("key", key))
			continue
		}
		if sub.Paused {
			continue
		}
		until, err := parseExpiry(sub.ActiveUntil)
		if err != nil {
			r.log.Warn("subscriber has unparsable expiry",
				logx.Int64("chat_id", id), logx.String("expiry", sub.ActiveUntil))
			continue
		}
		if until.After(now) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// parseExpiry accepts RFC 3339 and the account manager's zone-less UTC
// variant. An entry that parses as neither is treated as inactive.
func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing expiry")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparsable expiry %q", s)
}
