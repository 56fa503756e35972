package format

import (
	"strings"

	"restockbot/internal/record"
	"restockbot/internal/transport"
)

// Button rows in display order: price research first, then analysis tools,
// then direct buy links, then everything else. One row per bucket.
var (
	ebayWords = []string{"sold", "active", "google", "ebay"}
	fbaWords  = []string{"keepa", "amazon", "selleramp", "camel", "fba"}
	buyWords  = []string{"buy", "shop", "purchase", "checkout", "cart"}
)

const (
	maxEbayButtons  = 3
	maxFbaButtons   = 3
	maxBuyButtons   = 2
	maxOtherButtons = 3

	buttonTextLimit = 15
	buyTextLimit    = 18
)

// buildButtons buckets action links into keyboard rows, deduplicating by URL
// so the same eBay search does not appear twice.
func buildButtons(links []record.Link) [][]transport.Button {
	if len(links) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	var ebay, fba, buy, other []record.Link
	for _, l := range links {
		url := strings.TrimSpace(l.URL)
		if !strings.HasPrefix(url, "http") {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		lower := strings.ToLower(l.Text)
		switch {
		case containsAny(lower, ebayWords):
			ebay = append(ebay, record.Link{Text: l.Text, URL: url})
		case containsAny(lower, fbaWords):
			fba = append(fba, record.Link{Text: l.Text, URL: url})
		case containsAny(lower, buyWords):
			buy = append(buy, record.Link{Text: l.Text, URL: url})
		default:
			other = append(other, record.Link{Text: l.Text, URL: url})
		}
	}

	var rows [][]transport.Button
	if row := buttonRow(ebay, maxEbayButtons, buttonTextLimit, ebayEmoji); len(row) > 0 {
		rows = append(rows, row)
	}
	if row := buttonRow(fba, maxFbaButtons, buttonTextLimit, fbaEmoji); len(row) > 0 {
		rows = append(rows, row)
	}
	if row := buttonRow(buy, maxBuyButtons, buyTextLimit, func(string) string { return "🛒" }); len(row) > 0 {
		rows = append(rows, row)
	}
	if row := buttonRow(other, maxOtherButtons, buttonTextLimit, func(string) string { return "🔗" }); len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func buttonRow(links []record.Link, max, textLimit int, emoji func(string) string) []transport.Button {
	if len(links) > max {
		links = links[:max]
	}
	row := make([]transport.Button, 0, len(links))
	for _, l := range links {
		text := l.Text
		if text == "" {
			text = "Link"
		}
		if rs := []rune(text); len(rs) > textLimit {
			text = string(rs[:textLimit])
		}
		row = append(row, transport.Button{
			Text: emoji(strings.ToLower(l.Text)) + " " + text,
			URL:  l.URL,
		})
	}
	return row
}

func ebayEmoji(lower string) string {
	if strings.Contains(lower, "sold") {
		return "💰"
	}
	return "⚡"
}

func fbaEmoji(lower string) string {
	if strings.Contains(lower, "keepa") {
		return "📈"
	}
	return "🔎"
}
