// Package format turns a raw restock record into a presentable Telegram
// message: HTML body, image selection, and categorized action buttons.
package format

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"restockbot/internal/record"
	"restockbot/internal/transport"
)

const (
	descriptionLimit = 400
	rawTextLimit     = 800
	maxImages        = 3
)

// Error marks a record that cannot be rendered. The relay skips the record
// and keeps going; one bad observation must not stall the batch.
type Error struct {
	StorageID string
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("format: record %s: %s", e.StorageID, e.Reason)
}

// Upstream relay branding that leaks into scraped text. Stripped before
// display so subscribers see the product, not the monitor chain.
var noisePhrases = []string{
	"ccn 2.0 | profitable pinger",
	"monitors v2.0.0 | ccn x zephyr monitors #ad",
	"monitors v2.0.0 | ccn x zephyr monitors",
	"@unfiltered",
	"ccn",
}

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)monitors\s+v[\d.]+\s*\|\s*ccn\s+x\s+zephyr\s+monitors\s*\[\d{2}:\d{2}:\d{2}\]`),
	regexp.MustCompile(`(?i)\s*\|\s*ccn\s+x\s+zephyr\s+monitors\s+\[[^\]]+\].*`),
	regexp.MustCompile(`(?i)today\s+at\s+\d{1,2}:\d{2}\s*(?:am|pm)`),
}

// Format renders r for delivery. It returns *Error when the record carries
// nothing displayable.
func Format(r record.Record) (transport.Message, error) {
	p := r.Payload
	if p == nil && strings.TrimSpace(r.RawText) == "" {
		return transport.Message{}, &Error{StorageID: r.StorageID, Reason: "empty record"}
	}

	tag := parseTagLine(r.RawText)

	var b strings.Builder
	writeHeader(&b, p, tag)

	if p != nil {
		writeBody(&b, p, tag, r.IngestedAt)
	} else {
		writeFallback(&b, r.RawText, tag, r.IngestedAt)
	}

	msg := transport.Message{Text: strings.TrimRight(b.String(), "\n")}
	if msg.Text == "" {
		return transport.Message{}, &Error{StorageID: r.StorageID, Reason: "rendered to empty text"}
	}

	if p != nil {
		for _, img := range p.Images {
			if len(msg.Images) >= maxImages {
				break
			}
			if strings.HasPrefix(img, "http") {
				msg.Images = append(msg.Images, img)
			}
		}
		msg.Buttons = buildButtons(p.Links)
	}
	return msg, nil
}

func writeHeader(b *strings.Builder, p *record.Payload, tag tagLine) {
	author := "Unknown"
	badge := "👤"
	if p != nil {
		if name := cleanText(p.Author); name != "" {
			author = name
		}
		if p.AuthorIsBot {
			badge = "🤖"
		}
	} else if tag.Ping != "" {
		author = strings.TrimPrefix(tag.Ping, "@")
	}
	fmt.Fprintf(b, "%s <b>%s</b>\n\n", badge, html.EscapeString(author))
}

func writeBody(b *strings.Builder, p *record.Payload, tag tagLine, at time.Time) {
	retailer := cleanText(p.Retailer)
	if retailer == "" {
		retailer = cleanText(tag.Brand)
	}
	if retailer != "" {
		fmt.Fprintf(b, "🏪 <b>%s</b>\n\n", html.EscapeString(retailer))
	}

	title := cleanText(p.Title)
	if title == "" {
		title = cleanText(tag.ProductCode)
	}
	if title == "" {
		title = "Product Alert"
	}
	if tag.Region != "" {
		title = "[" + tag.Region + "] " + title
	}
	fmt.Fprintf(b, "📦 <b>%s</b>\n", html.EscapeString(title))
	b.WriteString("━━━━━━━━━━━━━━━\n\n")

	if desc := cleanText(p.Description); desc != "" {
		b.WriteString(html.EscapeString(truncate(desc, descriptionLimit)))
		b.WriteString("\n\n")
	}

	writeFields(b, p.Fields)
	b.WriteString("\n")
	writeFooter(b, p.Footer, at)
}

// writeFields renders the non-link key/value fields. Values already shown are
// skipped, so a record that repeats the price in three fields prints it once.
func writeFields(b *strings.Builder, fields []record.Field) {
	seen := map[string]struct{}{}
	for _, f := range fields {
		name := cleanText(f.Name)
		value := cleanText(f.Value)
		if name == "" || value == "" {
			continue
		}
		lower := strings.ToLower(name)
		// Link-ish fields become buttons, not body text.
		if strings.Contains(lower, "link") || strings.Contains(lower, "atc") || strings.Contains(lower, "qt") {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}

		icon := fieldIcon(lower)
		if strings.Contains(lower, "price") {
			fmt.Fprintf(b, "%s <b>%s:</b> <b>%s</b>\n", icon, html.EscapeString(name), html.EscapeString(value))
		} else {
			fmt.Fprintf(b, "%s <b>%s:</b> %s\n", icon, html.EscapeString(name), html.EscapeString(value))
		}
	}
}

func fieldIcon(lowerName string) string {
	switch {
	case strings.Contains(lowerName, "status") || strings.Contains(lowerName, "stock"):
		return "✅"
	case strings.Contains(lowerName, "price") || strings.Contains(lowerName, "cost"):
		return "💰"
	case strings.Contains(lowerName, "resell"):
		return "📈"
	case strings.Contains(lowerName, "member"):
		return "👥"
	case strings.Contains(lowerName, "store") || strings.Contains(lowerName, "shop"):
		return "🏪"
	case strings.Contains(lowerName, "size"):
		return "📏"
	case strings.Contains(lowerName, "product"):
		return "📦"
	default:
		return "•"
	}
}

// writeFooter shows the scraper footer unless it is monitor branding, in
// which case the ingestion time stands in.
func writeFooter(b *strings.Builder, footer string, at time.Time) {
	f := cleanText(footer)
	lower := strings.ToLower(f)
	if f != "" && !strings.Contains(lower, "monitor") {
		fmt.Fprintf(b, "⏰ %s\n", html.EscapeString(f))
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(b, "⏰ %s\n", at.UTC().Format("15:04 UTC"))
}

func writeFallback(b *strings.Builder, raw string, tag tagLine, at time.Time) {
	if tag.ProductCode != "" {
		fmt.Fprintf(b, "📦 <b>%s</b>\n", html.EscapeString(cleanText(tag.ProductCode)))
	}
	if tag.Brand != "" {
		fmt.Fprintf(b, "🏪 %s\n", html.EscapeString(cleanText(tag.Brand)))
	}
	if tag.Action != "" {
		fmt.Fprintf(b, "ℹ️ %s\n", html.EscapeString(cleanText(tag.Action)))
	}
	b.WriteString("\n")
	b.WriteString(html.EscapeString(truncate(cleanText(raw), rawTextLimit)))
	b.WriteString("\n\n")
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(b, "⏰ %s\n", at.UTC().Format("15:04:05 UTC"))
}

// cleanText strips relay branding and collapses whitespace.
func cleanText(s string) string {
	if s == "" {
		return s
	}
	for _, phrase := range noisePhrases {
		s = removeFold(s, phrase)
	}
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// removeFold removes every case-insensitive occurrence of phrase from s.
func removeFold(s, phrase string) string {
	lower := strings.ToLower(s)
	for {
		i := strings.Index(lower, phrase)
		if i < 0 {
			return s
		}
		s = s[:i] + s[i+len(phrase):]
		lower = lower[:i] + lower[i+len(phrase):]
	}
}

func truncate(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "..."
}

// tagLine is the parsed pipe-separated line the relay prepends to embeds,
// e.g. "@Product Flips | [UK] CRW-001-1ER | Casio | Just restocked for £0.00".
type tagLine struct {
	Ping        string
	Region      string
	ProductCode string
	Brand       string
	Action      string
}

var actionWords = []string{"restocked", "in stock", "available"}

func parseTagLine(s string) tagLine {
	var t tagLine
	if strings.TrimSpace(s) == "" {
		return t
	}
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(part, "@"):
			t.Ping = part
		case strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]"):
			t.Region = strings.Trim(part, "[]")
		case containsAny(lower, actionWords):
			t.Action = part
		case t.ProductCode == "":
			t.ProductCode = part
		case t.Brand == "":
			t.Brand = part
		}
	}
	return t
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
