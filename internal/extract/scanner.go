package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Scanner recovers product objects that pages serialize as escaped JSON
// inside their markup. A marker regex anchors candidate object starts; at
// each anchor one complete JSON value is parsed and the rest of the document
// is ignored. Anchors that fail to parse are expected (nested occurrences,
// truncated tails) and are skipped silently.
type Scanner struct {
	marker    *regexp.Regexp
	idKey     string
	nameKeys  []string
	valueKeys []string
	logger    *slog.Logger
}

// NewScanner builds a scanner keyed by idKey. nameKeys are the fields a
// record must carry (any one of them) to be considered a product. valueKeys
// mark a record as "complete": on duplicate discriminators the instance
// carrying more of them wins.
func NewScanner(marker *regexp.Regexp, idKey string, nameKeys, valueKeys []string) *Scanner {
	return &Scanner{
		marker:    marker,
		idKey:     idKey,
		nameKeys:  nameKeys,
		valueKeys: valueKeys,
		logger:    slog.Default().With("component", "embedded_scanner"),
	}
}

var escapeNormalizer = strings.NewReplacer(`\"`, `"`, `\\`, `\`)

// Normalize collapses the string-escaping layer wrapping embedded JSON
// payloads. Best effort: the result is not guaranteed to be fully valid
// JSON, only parseable at the anchors that matter.
func Normalize(markup string) string {
	return escapeNormalizer.Replace(markup)
}

// Scan normalizes the markup and returns every embedded product object,
// keyed by discriminator. Never fails; worst case is an empty map.
func (s *Scanner) Scan(markup string) map[string]Record {
	records := make(map[string]Record)
	text := Normalize(markup)

	anchors := s.marker.FindAllStringIndex(text, -1)
	parsed := 0
	for _, loc := range anchors {
		rec, ok := decodeAt(text, loc[0])
		if !ok {
			continue
		}
		parsed++

		id := RecordID(rec, s.idKey)
		if id == "" || rec.String(s.nameKeys...) == "" {
			continue
		}

		existing, seen := records[id]
		if !seen || s.completeness(rec) > s.completeness(existing) {
			records[id] = rec
		}
	}

	s.logger.Debug("embedded scan finished",
		"anchors", len(anchors), "parsed", parsed, "unique", len(records))

	return records
}

// ScanAll returns every parseable product object in anchor order, including
// duplicates. Used by the single-item path, which selects among candidates
// by URL identifier or detail score instead of deduplicating.
func (s *Scanner) ScanAll(markup string) []Record {
	var out []Record
	text := Normalize(markup)

	for _, loc := range s.marker.FindAllStringIndex(text, -1) {
		rec, ok := decodeAt(text, loc[0])
		if !ok {
			continue
		}
		if RecordID(rec, s.idKey) == "" || rec.String(s.nameKeys...) == "" {
			continue
		}
		out = append(out, rec)
	}

	return out
}

// completeness counts how many value-bearing fields the record carries.
func (s *Scanner) completeness(r Record) int {
	n := 0
	for _, k := range s.valueKeys {
		if r.Has(k) {
			n++
		}
	}
	return n
}

// decodeAt parses exactly one JSON value starting at offset, tolerating
// arbitrary trailing text. Only JSON objects are accepted.
func decodeAt(text string, offset int) (Record, bool) {
	dec := json.NewDecoder(strings.NewReader(text[offset:]))

	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	return rec, true
}

// RecordID stringifies the discriminator. Some platforms serialize product
// ids as JSON numbers rather than strings.
func RecordID(r Record, idKey string) string {
	if s := r.String(idKey); s != "" {
		return s
	}
	if f, ok := r.Float(idKey); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
