// Package importer merges a staged remote record into the local catalog
// without creating duplicate entries.
package importer

import (
	"fmt"

	"bibliobridge/internal/entity"
)

type Action string

const (
	Created             Action = "created"
	MergedBibliographic Action = "merged_bibliographic"
	ReplacedArchived    Action = "replaced_archived"
	ReplacedConfirmed   Action = "replaced_confirmed"
)

// Report says what an import did to the catalog.
type Report struct {
	Action     Action   `json:"action"`
	ExistingID *int64   `json:"existing_id,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// Request identifies the staged record to import. ConfirmID must equal the
// id of a specimen-less, non-archived duplicate for it to be overwritten.
type Request struct {
	Handle    int64
	Specimens []entity.Specimen
	ConfirmID *int64
}

// DuplicateNeedsConfirmationError is returned when the ISBN already belongs
// to a live entry with no specimens. Retrying with ConfirmID = ExistingID
// replaces it.
type DuplicateNeedsConfirmationError struct {
	ExistingID int64
	Message    string
}

func (e *DuplicateNeedsConfirmationError) Error() string {
	return fmt.Sprintf("import: %s (existing entry %d)", e.Message, e.ExistingID)
}
