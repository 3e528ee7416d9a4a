package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"bibliobridge/internal/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const uniqueViolation = "23505"

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const entryColumns = `
	i.id, i.isbn, i.title, i.subtitle, i.authors,
	i.publisher, i.place, i.publication_date,
	i.series_name, i.series_volume, i.collection_title, i.collection_issn,
	i.media_type, i.audience, i.language,
	i.subject, i.keywords, i.abstract, i.notes, i.call_number, i.page_extent, i.price,
	i.archived_at, i.created_at, i.updated_at,
	(SELECT COUNT(*) FROM specimens s WHERE s.item_id = i.id AND s.archived_at IS NULL)`

func (r *PostgresRepo) FindDuplicate(ctx context.Context, isbn string) (*DuplicateCandidate, error) {
	const query = `
		SELECT i.id, i.archived_at IS NOT NULL,
			(SELECT COUNT(*) FROM specimens s WHERE s.item_id = i.id AND s.archived_at IS NULL)
		FROM items i
		WHERE i.isbn = $1
		ORDER BY (i.archived_at IS NOT NULL), i.id
		LIMIT 1`

	var c DuplicateCandidate
	err := r.db.QueryRow(ctx, query, isbn).Scan(&c.ID, &c.Archived, &c.ActiveSpecimens)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find duplicate %s: %w", isbn, err)
	}
	return &c, nil
}

func (r *PostgresRepo) UpdateBibliographic(ctx context.Context, id int64, d entity.Draft) (*entity.Entry, error) {
	authors, err := json.Marshal(authorsOrEmpty(d.Authors))
	if err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}
	f := flatten(d)

	const query = `
		UPDATE items SET
			isbn = $2, title = $3, subtitle = $4, authors = $5,
			publisher = $6, place = $7, publication_date = $8,
			series_name = $9, series_volume = $10, collection_title = $11, collection_issn = $12,
			media_type = $13, audience = $14, language = $15,
			subject = $16, keywords = $17, abstract = $18, notes = $19,
			call_number = $20, page_extent = $21, price = $22,
			archived_at = NULL,
			updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id,
		d.ISBN, d.Title, d.Subtitle, authors,
		f.publisher, f.place, f.date,
		f.seriesName, f.seriesVolume, f.collectionTitle, f.collectionISSN,
		d.MediaType, d.Audience, d.Language,
		d.Subject, d.Keywords, d.Abstract, d.Notes,
		d.CallNumber, d.PageExtent, d.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("update item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.getByID(ctx, r.db, id)
}

func (r *PostgresRepo) CreateEntry(ctx context.Context, d entity.Draft, specimens []entity.Specimen) (*entity.Entry, error) {
	authors, err := json.Marshal(authorsOrEmpty(d.Authors))
	if err != nil {
		return nil, fmt.Errorf("encode authors: %w", err)
	}
	f := flatten(d)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const itemSQL = `
		INSERT INTO items (
			isbn, title, subtitle, authors,
			publisher, place, publication_date,
			series_name, series_volume, collection_title, collection_issn,
			media_type, audience, language,
			subject, keywords, abstract, notes, call_number, page_extent, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`

	var id int64
	err = tx.QueryRow(ctx, itemSQL,
		d.ISBN, d.Title, d.Subtitle, authors,
		f.publisher, f.place, f.date,
		f.seriesName, f.seriesVolume, f.collectionTitle, f.collectionISSN,
		d.MediaType, d.Audience, d.Language,
		d.Subject, d.Keywords, d.Abstract, d.Notes, d.CallNumber, d.PageExtent, d.Price,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	const specimenSQL = `
		INSERT INTO specimens (item_id, source_id, barcode, call_number, status)
		VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, ''), 'available'))`

	for _, s := range specimens {
		if _, err := tx.Exec(ctx, specimenSQL, id, s.SourceID, s.Barcode, s.CallNumber, s.Status); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil, fmt.Errorf("%w: %s", ErrBarcodeTaken, s.Barcode)
			}
			return nil, fmt.Errorf("insert specimen %s: %w", s.Barcode, err)
		}
	}

	entry, err := r.getByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit item: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepo) DefaultSourceID(ctx context.Context) (int64, error) {
	const query = `
		SELECT id FROM sources
		WHERE is_default AND archived_at IS NULL
		ORDER BY id
		LIMIT 1`

	var id int64
	err := r.db.QueryRow(ctx, query).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoSource
	}
	if err != nil {
		return 0, fmt.Errorf("default source: %w", err)
	}
	return id, nil
}

// UpsertSource matches sources by name. Marking a source default clears the
// flag on every other source.
func (r *PostgresRepo) UpsertSource(ctx context.Context, name string, isDefault bool) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin source: %w", err)
	}
	defer tx.Rollback(ctx)

	if isDefault {
		if _, err := tx.Exec(ctx, `UPDATE sources SET is_default = FALSE WHERE is_default AND name <> $1`, name); err != nil {
			return 0, fmt.Errorf("clear default source: %w", err)
		}
	}

	const query = `
		INSERT INTO sources (name, is_default)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET is_default = EXCLUDED.is_default, archived_at = NULL
		RETURNING id`

	var id int64
	if err := tx.QueryRow(ctx, query, name, isDefault).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert source %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit source: %w", err)
	}
	return id, nil
}

func (r *PostgresRepo) GetByISBN(ctx context.Context, isbn string) (*entity.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM items i
		WHERE i.isbn = $1
		ORDER BY (i.archived_at IS NOT NULL), i.id
		LIMIT 1`
	return scanEntry(r.db.QueryRow(ctx, query, isbn))
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepo) getByID(ctx context.Context, q querier, id int64) (*entity.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM items i
		WHERE i.id = $1`
	return scanEntry(q.QueryRow(ctx, query, id))
}

func scanEntry(row pgx.Row) (*entity.Entry, error) {
	var (
		e       entity.Entry
		authors []byte
		f       flatDraft
	)
	d := &e.Draft
	err := row.Scan(
		&e.ID, &d.ISBN, &d.Title, &d.Subtitle, &authors,
		&f.publisher, &f.place, &f.date,
		&f.seriesName, &f.seriesVolume, &f.collectionTitle, &f.collectionISSN,
		&d.MediaType, &d.Audience, &d.Language,
		&d.Subject, &d.Keywords, &d.Abstract, &d.Notes, &d.CallNumber, &d.PageExtent, &d.Price,
		&e.ArchivedAt, &e.CreatedAt, &e.UpdatedAt,
		&e.SpecimenCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	if len(authors) > 0 {
		if err := json.Unmarshal(authors, &d.Authors); err != nil {
			return nil, fmt.Errorf("decode authors of item %d: %w", e.ID, err)
		}
	}
	f.apply(d)
	return &e, nil
}

// flatDraft is the column layout of the optional draft groups.
type flatDraft struct {
	publisher, place, date          string
	seriesName, seriesVolume        string
	collectionTitle, collectionISSN string
}

func flatten(d entity.Draft) flatDraft {
	var f flatDraft
	if d.Edition != nil {
		f.publisher, f.place, f.date = d.Edition.Publisher, d.Edition.Place, d.Edition.Date
	}
	if d.Series != nil {
		f.seriesName, f.seriesVolume = d.Series.Name, d.Series.Volume
	}
	if d.Collection != nil {
		f.collectionTitle, f.collectionISSN = d.Collection.Title, d.Collection.ISSN
	}
	return f
}

func (f flatDraft) apply(d *entity.Draft) {
	if f.publisher != "" || f.place != "" || f.date != "" {
		d.Edition = &entity.Edition{Publisher: f.publisher, Place: f.place, Date: f.date}
	}
	if f.seriesName != "" {
		d.Series = &entity.Series{Name: f.seriesName, Volume: f.seriesVolume}
	}
	if f.collectionTitle != "" {
		d.Collection = &entity.Collection{Title: f.collectionTitle, ISSN: f.collectionISSN}
	}
}

func authorsOrEmpty(a []entity.Author) []entity.Author {
	if a == nil {
		return []entity.Author{}
	}
	return a
}
