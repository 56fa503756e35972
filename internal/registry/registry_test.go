package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"restockbot/internal/storage"
	logx "restockbot/pkg/logx"
)

const blobKey = "relay/subscribers.json"

func writeSubs(t *testing.T, st storage.Store, subs map[string]Subscriber) {
	t.Helper()
	b, err := json.Marshal(subs)
	if err != nil {
		t.Fatalf("marshal subscribers: %v", err)
	}
	if err := st.Put(context.Background(), blobKey, b); err != nil {
		t.Fatalf("put subscribers: %v", err)
	}
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestEligibleFiltersExpiredAndPaused(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	now := time.Now().UTC()
	writeSubs(t, st, map[string]Subscriber{
		"1001": {ActiveUntil: now.Add(24 * time.Hour).Format(time.RFC3339)},
		"1002": {ActiveUntil: now.Add(-time.Hour).Format(time.RFC3339)},                // expired
		"1003": {ActiveUntil: now.Add(24 * time.Hour).Format(time.RFC3339), Paused: true}, // paused
		"1004": {ActiveUntil: now.Add(time.Minute).Format("2006-01-02T15:04:05.999999999")}, // zone-less
		"abc":  {ActiveUntil: now.Add(24 * time.Hour).Format(time.RFC3339)},               // bad key
		"1005": {ActiveUntil: "not-a-time"},
	})

	got, err := New(st, blobKey, logx.Nop()).Eligible(context.Background())
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	want := []int64{1001, 1004}
	if len(got) != len(want) {
		t.Fatalf("Eligible = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Eligible = %v, want %v", got, want)
		}
	}
}

func TestEligibleMissingBlobMeansNoSubscribers(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	got, err := New(st, blobKey, logx.Nop()).Eligible(context.Background())
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Eligible = %v, want empty", got)
	}
}

func TestEligibleCorruptBlobFails(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	if err := st.Put(context.Background(), blobKey, []byte("{oops")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := New(st, blobKey, logx.Nop()).Eligible(context.Background()); err == nil {
		t.Fatal("corrupt blob should be an error")
	}
}

func TestEligibleRecomputedEachCall(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	now := time.Now().UTC()
	r := New(st, blobKey, logx.Nop())

	writeSubs(t, st, map[string]Subscriber{
		"1001": {ActiveUntil: now.Add(time.Hour).Format(time.RFC3339)},
	})
	got, err := r.Eligible(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("first Eligible = %v, %v", got, err)
	}

	// Pause flips between cycles; the next call must see it.
	writeSubs(t, st, map[string]Subscriber{
		"1001": {ActiveUntil: now.Add(time.Hour).Format(time.RFC3339), Paused: true},
	})
	got, err = r.Eligible(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("second Eligible = %v, %v; want empty", got, err)
	}
}
