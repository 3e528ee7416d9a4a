package entity

import "time"

// Entry is a local catalog item as returned by the catalog.
type Entry struct {
	ID            int64      `json:"id"`
	Draft         Draft      `json:"bibliographic"`
	SpecimenCount int        `json:"specimen_count"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Specimen is a physical copy attached to an entry.
type Specimen struct {
	SourceID   *int64 `json:"source_id,omitempty"`
	Barcode    string `json:"barcode" validate:"required,max=64"`
	CallNumber string `json:"call_number,omitempty" validate:"max=64"`
	Status     string `json:"status,omitempty" validate:"max=32"`
}
