// Package record defines the immutable restock observation pulled from the
// upstream record store, plus the content signature used to collapse
// near-duplicate observations of the same real-world event.
package record

import "time"

// Record is one observation from the source store. Records are produced once
// by the scraper and never mutated; this side only reads them.
type Record struct {
	// StorageID is assigned by the source. Opaque: not guaranteed numeric
	// or monotonic.
	StorageID string

	// IngestedAt is monotonically non-decreasing across the stream as a
	// whole, but not strictly increasing per record.
	IngestedAt time.Time

	RawText string

	// Payload is the structured part of the observation. Optional; plain
	// relay messages carry only RawText.
	Payload *Payload
}

// Payload mirrors the embed-like structure the scraper extracts.
type Payload struct {
	Author      string
	AuthorIsBot bool
	Retailer    string
	Title       string
	Description string
	Footer      string
	Fields      []Field
	Links       []Link
	Images      []string
}

// Field is a key/value pair such as price, stock status, or resell estimate.
type Field struct {
	Name  string
	Value string
}

// Link is an outbound action link (buy page, eBay search, Keepa, ...).
type Link struct {
	Text string
	URL  string
}

// Price returns the value of the first payload field whose name mentions
// price, or "" when absent. The signature and the formatter both key off it.
func (p *Payload) Price() string {
	if p == nil {
		return ""
	}
	for _, f := range p.Fields {
		if containsFold(f.Name, "price") {
			return f.Value
		}
	}
	return ""
}
