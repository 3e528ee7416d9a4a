// Package catalog is the port to the local catalog: items, their specimens
// and the sources specimens are acquired from.
package catalog

//go:generate mockgen -source=catalog.go -destination=mock_repository.go -package=catalog

import (
	"context"
	"errors"

	"bibliobridge/internal/entity"
)

var (
	ErrNotFound     = errors.New("catalog entry not found")
	ErrBarcodeTaken = errors.New("specimen barcode already in use")
	ErrNoSource     = errors.New("no default source configured")
)

// DuplicateCandidate is the existing entry an incoming ISBN collides with.
type DuplicateCandidate struct {
	ID              int64
	Archived        bool
	ActiveSpecimens int
}

type Repository interface {
	// FindDuplicate returns the entry holding isbn, preferring non-archived
	// entries, or nil when there is none.
	FindDuplicate(ctx context.Context, isbn string) (*DuplicateCandidate, error)
	// UpdateBibliographic overwrites the descriptive fields of entry id and
	// un-archives it. Specimens are untouched.
	UpdateBibliographic(ctx context.Context, id int64, d entity.Draft) (*entity.Entry, error)
	CreateEntry(ctx context.Context, d entity.Draft, specimens []entity.Specimen) (*entity.Entry, error)
	DefaultSourceID(ctx context.Context) (int64, error)
	GetByISBN(ctx context.Context, isbn string) (*entity.Entry, error)
}
