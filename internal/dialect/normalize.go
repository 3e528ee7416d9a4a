package dialect

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"bibliobridge/internal/entity"
	"bibliobridge/internal/marc"
)

// composed returns a copy of rec with every control and subfield value in
// NFC. rec itself is left as decoded.
func composed(rec *marc.Record) *marc.Record {
	out := &marc.Record{Leader: rec.Leader, Dropped: rec.Dropped}
	if rec.Control != nil {
		out.Control = make(map[string]string, len(rec.Control))
		for tag, v := range rec.Control {
			out.Control[tag] = norm.NFC.String(v)
		}
	}
	out.Fields = make([]marc.DataField, len(rec.Fields))
	for i, f := range rec.Fields {
		subs := make([]marc.Subfield, len(f.Subfields))
		for j, sf := range f.Subfields {
			subs[j] = marc.Subfield{Code: sf.Code, Value: norm.NFC.String(sf.Value)}
		}
		f.Subfields = subs
		out.Fields[i] = f
	}
	return out
}

// CleanTitle drops the ISBD separators cataloguers leave after a title
// ("Le Petit Prince /" → "Le Petit Prince").
func CleanTitle(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " /:;,="))
}

// SplitAuthorName splits "Surname, Given" on the first comma only. The
// given name is empty when nothing follows the comma.
func SplitAuthorName(s string) (surname, given string) {
	before, after, found := strings.Cut(s, ",")
	if !found {
		return cleanName(s), ""
	}
	return cleanName(before), cleanName(after)
}

func cleanName(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ","))
}

func cleanPublisher(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " ,:;"))
}

func cleanPlace(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " :;"))
}

func cleanDate(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " .,;"))
}

func cleanExtent(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, " :;+"))
}

func cleanVolume(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), ";"))
}

// normalizeLanguage accepts three-letter codes only; blanks and fill
// characters ("|||") mean the language is not recorded.
func normalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 3 {
		return ""
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return ""
		}
	}
	return s
}

var normalizeISBN = entity.NormalizeISBN
