package z3950

import (
	"errors"
	"strconv"
	"strings"

	"bibliobridge/internal/entity"
)

// Bib-1 use attributes.
const (
	useTitle   = 4
	useISBN    = 7
	useISSN    = 8
	useSubject = 21
	useAuthor  = 1003
)

var ErrEmptyQuery = errors.New("at least one search term required")

// Query holds structured search terms. Empty fields are ignored.
type Query struct {
	ISBN     string
	ISSN     string
	Title    string
	Author   string
	Keywords string
}

func (q Query) Empty() bool {
	return strings.TrimSpace(q.ISBN+q.ISSN+q.Title+q.Author+q.Keywords) == ""
}

// BuildPQF renders q in Prefix Query Format, every term joined by @and.
func BuildPQF(q Query) (string, error) {
	var terms []string
	add := func(use int, v string) {
		if v = strings.TrimSpace(v); v != "" {
			terms = append(terms, "@attr 1="+strconv.Itoa(use)+" "+quote(v))
		}
	}

	add(useISBN, entity.NormalizeISBN(q.ISBN))
	add(useISSN, q.ISSN)
	add(useTitle, q.Title)
	add(useAuthor, q.Author)
	add(useSubject, q.Keywords)

	if len(terms) == 0 {
		return "", ErrEmptyQuery
	}

	pqf := terms[0]
	for _, t := range terms[1:] {
		pqf = "@and " + pqf + " " + t
	}
	return pqf, nil
}

// quote wraps v in double quotes. Line breaks would end the yaz-client
// command, so they are folded into spaces.
func quote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", " ", "\n", " ")
	return `"` + r.Replace(v) + `"`
}
