package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"restockbot/internal/transport"
)

func TestSplitTextShortPassThrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello\nworld", 100)
	if len(got) != 1 || got[0] != "hello\nworld" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 20))
	}
	text := strings.Join(lines, "\n")

	chunks := splitText(text, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		// Newline-aligned splitting keeps every line whole.
		for _, ln := range strings.Split(c, "\n") {
			if ln != strings.Repeat("x", 20) {
				t.Fatalf("chunk %d has a torn line %q", i, ln)
			}
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatal("rejoined chunks do not reproduce the input")
	}
}

func TestSplitTextNoNewlinesHardSplit(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 250)
	chunks := splitText(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("hard split lost content")
	}
}

func TestTruncateRunesIsRuneSafe(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("é", 10)
	got := truncateRunes(s, 4)
	if got != strings.Repeat("é", 4) {
		t.Fatalf("truncateRunes = %q", got)
	}
	if truncateRunes("abc", 10) != "abc" {
		t.Fatal("short string should pass through")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want transport.FailureClass
	}{
		{"blocked", tele.ErrBlockedByUser, transport.FailUnreachable},
		{"deactivated", tele.ErrUserIsDeactivated, transport.FailUnreachable},
		{"chat gone", tele.ErrChatNotFound, transport.FailUnreachable},
		{"unauthorized", &tele.Error{Code: 401, Description: "Unauthorized"}, transport.FailUnreachable},
		{"forbidden", &tele.Error{Code: 403, Description: "Forbidden"}, transport.FailUnreachable},
		{"flood", tele.FloodError{RetryAfter: 5}, transport.FailTransient},
		{"server error", &tele.Error{Code: 502, Description: "Bad Gateway"}, transport.FailTransient},
		{"bad request", &tele.Error{Code: 400, Description: "Bad Request: can't parse entities"}, transport.FailPermanent},
		{"context deadline", context.DeadlineExceeded, transport.FailTransient},
		{"plain network", errors.New("dial tcp: connection refused"), transport.FailTransient},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(tc.err); got != tc.want {
				t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrapProducesSendError(t *testing.T) {
	t.Parallel()
	if wrap(nil) != nil {
		t.Fatal("wrap(nil) should be nil")
	}
	err := wrap(tele.ErrBlockedByUser)
	var se *transport.SendError
	if !errors.As(err, &se) {
		t.Fatalf("wrap did not produce *transport.SendError: %v", err)
	}
	if se.Class != transport.FailUnreachable {
		t.Fatalf("Class = %v, want unreachable", se.Class)
	}
	if !errors.Is(err, tele.ErrBlockedByUser) {
		t.Fatal("wrapped error lost its cause")
	}
}

func TestBuildMarkup(t *testing.T) {
	t.Parallel()
	if buildMarkup(nil) != nil {
		t.Fatal("empty rows should yield nil markup")
	}
	m := buildMarkup([][]transport.Button{
		{{Text: "Buy", URL: "https://example.com/buy"}, {Text: "eBay", URL: "https://ebay.com/x"}},
		{{Text: "More", URL: "https://example.com/more"}},
	})
	if m == nil || len(m.InlineKeyboard) != 2 {
		t.Fatalf("markup rows = %v", m)
	}
	if len(m.InlineKeyboard[0]) != 2 || m.InlineKeyboard[0][0].Text != "Buy" {
		t.Fatalf("first row = %v", m.InlineKeyboard[0])
	}
	if m.InlineKeyboard[1][0].URL != "https://example.com/more" {
		t.Fatalf("second row URL = %q", m.InlineKeyboard[1][0].URL)
	}
}
