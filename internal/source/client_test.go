package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSinceQueryShape(t *testing.T) {
	t.Parallel()
	var gotQuery, gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "secret", Table: "restock_records", PageLimit: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recs, err := c.FetchSince(context.Background(), since)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty page, got %d records", len(recs))
	}

	for _, want := range []string{
		"ingested_at=gt.2026-03-01T12%3A00%3A00Z",
		"order=ingested_at.asc",
		"limit=50",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
	if gotAPIKey != "secret" || gotAuth != "Bearer secret" {
		t.Fatalf("auth headers = (%q, %q)", gotAPIKey, gotAuth)
	}
}

func TestFetchSinceDecodesAndSorts(t *testing.T) {
	t.Parallel()
	// Out of order on purpose; 7 and 8 share a timestamp.
	body := `[
		{"id": 8, "ingested_at": "2026-03-01T12:00:10Z", "content": "b"},
		{"id": "7", "ingested_at": "2026-03-01T12:00:10Z", "content": "a",
		 "structured_payload": {"author": {"name": "Restock Bot", "is_bot": true},
		   "retailer": "Argos", "title": "Pokémon Box",
		   "fields": [{"name": "Price", "value": "£10"}],
		   "links": [{"text": "Buy", "url": "https://example.com/buy"}],
		   "images": ["https://example.com/a.png"]}},
		{"id": "6", "ingested_at": "2026-03-01T12:00:05.123456Z", "content": "c"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recs, err := c.FetchSince(context.Background(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].StorageID != "6" || recs[1].StorageID != "7" || recs[2].StorageID != "8" {
		t.Fatalf("order = %s,%s,%s; want 6,7,8", recs[0].StorageID, recs[1].StorageID, recs[2].StorageID)
	}
	p := recs[1].Payload
	if p == nil || p.Retailer != "Argos" || p.Title != "Pokémon Box" || p.Price() != "£10" {
		t.Fatalf("payload not decoded: %+v", p)
	}
	if p.Author != "Restock Bot" || !p.AuthorIsBot {
		t.Fatalf("author not decoded: %+v", p)
	}
}

func TestFetchSinceErrorPaths(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"not":"an array"}`))
			},
		},
		{
			name: "unparsable timestamp",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"id": "1", "ingested_at": "yesterday-ish", "content": "x"}]`))
			},
		},
		{
			name: "missing id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"ingested_at": "2026-03-01T12:00:00Z", "content": "x"}]`))
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c, err := New(Config{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = c.FetchSince(context.Background(), time.Unix(0, 0))
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Fatalf("err = %v, want ErrSourceUnavailable", err)
			}
		})
	}

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()
		c, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := c.FetchSince(context.Background(), time.Unix(0, 0)); !errors.Is(err, ErrSourceUnavailable) {
			t.Fatalf("err = %v, want ErrSourceUnavailable", err)
		}
	})
}

func TestParseTimestampVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in string
		ok bool
	}{
		{"2026-03-01T12:00:00Z", true},
		{"2026-03-01T12:00:00.123456Z", true},
		{"2026-03-01T12:00:00.123456", true}, // producer's zone-less UTC
		{"2026-03-01T12:00:00+01:00", true},
		{"", false},
		{"01/03/2026 12:00", false},
	}
	for _, tt := range tests {
		_, err := parseTimestamp(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseTimestamp(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
}
