package record

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Signature derives a canonical fingerprint from a record's semantic fields:
// retailer, title and price, each lowercased and whitespace-folded, joined
// with "|" and hashed. Two records with the same signature are the same
// logical event no matter what storage ID the source assigned them.
//
// The scheme (including MD5) matches the upstream producer's content hashes,
// so fingerprints stay comparable across both sides of the pipeline. This is
// a soft duplicate filter, not a security boundary.
//
// Missing fields degrade to the empty string; the function is pure and total.
func Signature(r Record) string {
	var retailer, title, price string
	if p := r.Payload; p != nil {
		retailer = p.Retailer
		title = p.Title
		price = p.Price()
	}
	if title == "" && r.RawText != "" {
		// Plain relay messages carry the product code in the tag line.
		title = primaryIdentifier(r.RawText)
	}

	raw := canonical(retailer) + "|" + canonical(title) + "|" + canonical(price)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// canonical lowercases and collapses all whitespace runs to single spaces so
// incidental formatting differences don't change the fingerprint.
func canonical(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// primaryIdentifier extracts the product code from a pipe-separated tag line
// like "@Product Flips | [UK] CRW-001-1ER | Casio | Just restocked for £0.00":
// the first segment that is neither a ping nor a bracketed region tag.
func primaryIdentifier(text string) string {
	for _, part := range strings.Split(text, "|") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(part, "@") {
			continue
		}
		if strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") {
			continue
		}
		return part
	}
	return ""
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
