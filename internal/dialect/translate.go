package dialect

import (
	"strings"

	"bibliobridge/internal/entity"
	"bibliobridge/internal/marc"
)

// Translate reads rec with the fixed table of dialect d. Text is NFC
// composed first, so drafts compare equal whatever form the server sent.
// Fields the table does not find stay empty; media type and audience fall
// back to the unknown sentinel rather than a guess. Callers check
// Draft.Validate before keeping the result.
func Translate(rec *marc.Record, d Dialect) entity.Draft {
	t := tableFor(d)
	rec = composed(rec)

	draft := entity.Draft{
		ISBN:       firstISBN(rec, t.isbn),
		Title:      CleanTitle(rec.Subfield(t.title.tag, t.title.code)),
		Subtitle:   CleanTitle(rec.Subfield(t.subtitle.tag, t.subtitle.code)),
		Authors:    authors(rec, t),
		Edition:    edition(rec, t),
		MediaType:  lookup(rec, t.media, t.mediaCodes, MediaUnknown),
		Audience:   lookup(rec, t.audience, t.audienceCodes, AudienceUnknown),
		Language:   language(rec, t),
		Abstract:   firstOf(rec, t.abstract),
		Notes:      firstOf(rec, t.notes),
		CallNumber: firstOf(rec, t.callNumber),
		PageExtent: cleanExtent(firstOf(rec, t.extent)),
		Price:      firstOf(rec, t.price),
	}
	draft.Series, draft.Collection = series(rec, t)
	draft.Subject, draft.Keywords = subjects(rec, t)
	return draft
}

func firstISBN(rec *marc.Record, sources []source) string {
	for _, v := range valuesOf(rec, sources) {
		if isbn := normalizeISBN(v); isbn != "" {
			return isbn
		}
	}
	return ""
}

func authors(rec *marc.Record, t *table) []entity.Author {
	var out []entity.Author
	for _, src := range t.authors {
		for _, f := range rec.FieldsByTag(src.tag) {
			var a entity.Author
			if src.given != 0 && f.Has(src.given) {
				a.Surname, a.GivenName = cleanName(value(f, src.surname)), cleanName(value(f, src.given))
			} else {
				a.Surname, a.GivenName = SplitAuthorName(value(f, src.surname))
			}
			if a.Surname == "" {
				continue
			}
			a.Role = strings.TrimSpace(value(f, src.role))
			out = append(out, a)
		}
	}
	return out
}

func edition(rec *marc.Record, t *table) *entity.Edition {
	for _, tag := range t.published {
		for _, f := range rec.FieldsByTag(tag) {
			e := entity.Edition{
				Publisher: cleanPublisher(value(f, t.publisher)),
				Place:     cleanPlace(value(f, t.place)),
				Date:      cleanDate(value(f, t.date)),
			}
			if e != (entity.Edition{}) {
				return &e
			}
		}
	}
	return nil
}

// series separates narrative series from editorial collections. Uniform
// title / linking fields are collections; a series statement carrying an
// ISSN is a collection too, used when no linking field exists.
func series(rec *marc.Record, t *table) (*entity.Series, *entity.Collection) {
	var s *entity.Series
	var c *entity.Collection

collections:
	for _, src := range t.collection {
		for _, f := range rec.FieldsByTag(src.tag) {
			if title := CleanTitle(value(f, src.name)); title != "" {
				c = &entity.Collection{Title: title, ISSN: strings.TrimSpace(value(f, src.issn))}
				break collections
			}
		}
	}

	for _, src := range t.series {
		for _, f := range rec.FieldsByTag(src.tag) {
			name := CleanTitle(value(f, src.name))
			if name == "" {
				continue
			}
			if f.Has(src.issn) {
				if c == nil {
					c = &entity.Collection{Title: name, ISSN: strings.TrimSpace(value(f, src.issn))}
				}
				continue
			}
			if s == nil {
				s = &entity.Series{Name: name, Volume: cleanVolume(value(f, src.volume))}
			}
		}
	}
	return s, c
}

func subjects(rec *marc.Record, t *table) (subject, keywords string) {
	topical := valuesOf(rec, t.subject)
	all := append(valuesOf(rec, t.keywords), topical...)
	keywords = strings.Join(all, ", ")
	if len(topical) > 0 {
		return topical[0], keywords
	}
	return keywords, keywords
}

func language(rec *marc.Record, t *table) string {
	for _, v := range valuesOf(rec, t.language) {
		if lang := normalizeLanguage(v); lang != "" {
			return lang
		}
	}
	if t.languageFixed == nil {
		return ""
	}
	s := text(rec, *t.languageFixed)
	off := t.languageFixed.offset
	if len(s) < off+3 {
		return ""
	}
	return normalizeLanguage(s[off : off+3])
}

// lookup maps the character at p through codes; anything unmapped, or a
// position the record does not reach, yields fallback.
func lookup(rec *marc.Record, p position, codes map[byte]string, fallback string) string {
	s := text(rec, p)
	if p.offset >= len(s) {
		return fallback
	}
	if v, ok := codes[s[p.offset]]; ok {
		return v
	}
	return fallback
}

func text(rec *marc.Record, p position) string {
	switch {
	case p.leader:
		return rec.Leader
	case p.control != "":
		return rec.Control[p.control]
	default:
		return rec.Subfield(p.tag, p.code)
	}
}

func firstOf(rec *marc.Record, sources []source) string {
	if vs := valuesOf(rec, sources); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func valuesOf(rec *marc.Record, sources []source) []string {
	var out []string
	for _, src := range sources {
		for _, v := range rec.Subfields(src.tag, src.code) {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func value(f marc.DataField, code byte) string {
	if code == 0 {
		return ""
	}
	v, _ := f.Get(code)
	return v
}
