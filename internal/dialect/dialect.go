// Package dialect maps MARC21 and UNIMARC records onto entity.Draft.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect selects the tag table a record is read with.
type Dialect int

const (
	MARC21 Dialect = iota
	UNIMARC
)

func (d Dialect) String() string {
	switch d {
	case MARC21:
		return "marc21"
	case UNIMARC:
		return "unimarc"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Syntax is the record syntax name a Z39.50 server expects for the dialect.
func (d Dialect) Syntax() string {
	if d == UNIMARC {
		return "unimarc"
	}
	return "usmarc"
}

// Parse accepts the names servers and configuration files use for each
// dialect: "marc21", "usmarc", "unimarc" (any case).
func Parse(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "marc21", "usmarc", "marc":
		return MARC21, nil
	case "unimarc":
		return UNIMARC, nil
	default:
		return MARC21, fmt.Errorf("unknown record dialect %q", s)
	}
}

func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Dialect) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
