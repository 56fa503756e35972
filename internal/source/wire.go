package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restockbot/internal/record"
)

// wireRecord is the store's row shape. The scraper historically wrote numeric
// IDs and later switched to strings; flexID accepts both.
type wireRecord struct {
	ID         flexID       `json:"id"`
	IngestedAt string       `json:"ingested_at"`
	Content    string       `json:"content"`
	Payload    *wirePayload `json:"structured_payload"`
}

type wirePayload struct {
	Author      *wireAuthor `json:"author"`
	Retailer    string      `json:"retailer"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Footer      string      `json:"footer"`
	Fields      []wireField `json:"fields"`
	Links       []wireLink  `json:"links"`
	Images      []string    `json:"images"`
}

type wireAuthor struct {
	Name  string `json:"name"`
	IsBot bool   `json:"is_bot"`
}

type wireField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireLink struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// flexID decodes a JSON string or number into its text form.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id is neither string nor number")
	}
	*f = flexID(n.String())
	return nil
}

func (w wireRecord) toRecord() (record.Record, error) {
	if w.ID == "" {
		return record.Record{}, errors.New("missing id")
	}
	at, err := parseTimestamp(w.IngestedAt)
	if err != nil {
		return record.Record{}, err
	}

	r := record.Record{
		StorageID:  string(w.ID),
		IngestedAt: at,
		RawText:    w.Content,
	}
	if w.Payload != nil {
		p := &record.Payload{
			Retailer:    w.Payload.Retailer,
			Title:       w.Payload.Title,
			Description: w.Payload.Description,
			Footer:      w.Payload.Footer,
			Images:      w.Payload.Images,
		}
		if w.Payload.Author != nil {
			p.Author = w.Payload.Author.Name
			p.AuthorIsBot = w.Payload.Author.IsBot
		}
		for _, f := range w.Payload.Fields {
			p.Fields = append(p.Fields, record.Field{Name: f.Name, Value: f.Value})
		}
		for _, l := range w.Payload.Links {
			p.Links = append(p.Links, record.Link{Text: l.Text, URL: l.URL})
		}
		r.Payload = p
	}
	return r, nil
}

// parseTimestamp accepts RFC 3339 (with or without fractional seconds) and
// the producer's zone-less UTC variant. Anything else is an error: defaulting
// an unparsable timestamp to "now" would silently corrupt the cursor.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing ingested_at")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparsable ingested_at %q", s)
}
