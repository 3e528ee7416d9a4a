package entity

import "errors"

var ErrMissingTitle = errors.New("draft has no title")

// Draft is a bibliographic description normalized from a remote record,
// independent of the dialect it was read from.
type Draft struct {
	Title      string      `json:"title" yaml:"title"`
	Subtitle   string      `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	ISBN       string      `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Authors    []Author    `json:"authors,omitempty" yaml:"authors,omitempty"`
	Edition    *Edition    `json:"edition,omitempty" yaml:"edition,omitempty"`
	Series     *Series     `json:"series,omitempty" yaml:"series,omitempty"`
	Collection *Collection `json:"collection,omitempty" yaml:"collection,omitempty"`
	MediaType  string      `json:"media_type" yaml:"media_type"`
	Audience   string      `json:"audience" yaml:"audience"`
	Language   string      `json:"language,omitempty" yaml:"language,omitempty"`

	Subject    string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Keywords   string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Abstract   string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Notes      string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CallNumber string `json:"call_number,omitempty" yaml:"call_number,omitempty"`
	PageExtent string `json:"page_extent,omitempty" yaml:"page_extent,omitempty"`
	Price      string `json:"price,omitempty" yaml:"price,omitempty"`
}

type Author struct {
	Surname   string `json:"surname" yaml:"surname"`
	GivenName string `json:"given_name,omitempty" yaml:"given_name,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
}

type Edition struct {
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Place     string `json:"place,omitempty" yaml:"place,omitempty"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
}

type Series struct {
	Name   string `json:"name" yaml:"name"`
	Volume string `json:"volume,omitempty" yaml:"volume,omitempty"`
}

type Collection struct {
	Title string `json:"title" yaml:"title"`
	ISSN  string `json:"issn,omitempty" yaml:"issn,omitempty"`
}

func (d Draft) Validate() error {
	if d.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// PublicationDate is the edition date, if any.
func (d Draft) PublicationDate() string {
	if d.Edition == nil {
		return ""
	}
	return d.Edition.Date
}

func (d Draft) FirstAuthor() *Author {
	if len(d.Authors) == 0 {
		return nil
	}
	a := d.Authors[0]
	return &a
}

// DisplayName renders "Surname, Given" or just the surname.
func (a Author) DisplayName() string {
	if a.GivenName == "" {
		return a.Surname
	}
	return a.Surname + ", " + a.GivenName
}
