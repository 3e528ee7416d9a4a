package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/platform/metrics"
	"bibliobridge/internal/remotecache"
)

const warnNoISBN = "record has no ISBN: duplicate detection skipped"

// Cache hands out exclusive claims on staged records.
type Cache interface {
	Claim(ctx context.Context, handle int64) (*remotecache.Claim, error)
}

type Service struct {
	cache   Cache
	repo    catalog.Repository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewService(cache Cache, repo catalog.Repository, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{cache: cache, repo: repo, metrics: m, log: log}
}

// Import consumes the staged record behind req.Handle. On success the staged
// record is gone; on any failure it is put back so the caller can retry,
// typically after a confirmation round-trip.
func (s *Service) Import(ctx context.Context, req Request) (*entity.Entry, *Report, error) {
	claim, err := s.cache.Claim(ctx, req.Handle)
	if err != nil {
		if errors.Is(err, remotecache.ErrNotFound) {
			s.metrics.ObserveImportFailure("not_found")
		}
		return nil, nil, err
	}

	entry, report, err := s.resolve(ctx, claim.Entry.Draft, req)
	if err != nil {
		if rerr := claim.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.log.Error().Err(rerr).Int64("handle", req.Handle).Msg("staged record lost after failed import")
		}
		s.metrics.ObserveImportFailure(failureReason(err))
		return nil, nil, err
	}

	if err := claim.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Int64("handle", req.Handle).Msg("staged content left to expire")
	}

	s.metrics.ObserveImport(string(report.Action))
	s.log.Info().
		Int64("handle", req.Handle).
		Int64("entry_id", entry.ID).
		Str("action", string(report.Action)).
		Str("origin", claim.Entry.Origin).
		Msg("import resolved")
	return entry, report, nil
}

func (s *Service) resolve(ctx context.Context, d entity.Draft, req Request) (*entity.Entry, *Report, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}

	if d.ISBN == "" {
		return s.create(ctx, d, req.Specimens, []string{warnNoISBN})
	}

	dup, err := s.repo.FindDuplicate(ctx, d.ISBN)
	if err != nil {
		return nil, nil, fmt.Errorf("find duplicate: %w", err)
	}
	if dup == nil {
		return s.create(ctx, d, req.Specimens, nil)
	}

	report := &Report{ExistingID: &dup.ID}
	switch {
	case dup.ActiveSpecimens > 0:
		report.Action = MergedBibliographic
		report.Message = fmt.Sprintf("bibliographic data of entry %d updated; %d existing specimen(s) preserved", dup.ID, dup.ActiveSpecimens)
	case dup.Archived:
		report.Action = ReplacedArchived
		report.Message = fmt.Sprintf("archived entry %d replaced and restored", dup.ID)
	case req.ConfirmID != nil && *req.ConfirmID == dup.ID:
		report.Action = ReplacedConfirmed
		report.Message = fmt.Sprintf("entry %d replaced after confirmation", dup.ID)
	default:
		return nil, nil, &DuplicateNeedsConfirmationError{
			ExistingID: dup.ID,
			Message:    "an entry with this ISBN already exists without specimens; confirm to replace it",
		}
	}

	if n := len(req.Specimens); n > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d specimen(s) ignored: the record was merged into an existing entry", n))
	}

	entry, err := s.repo.UpdateBibliographic(ctx, dup.ID, d)
	if err != nil {
		return nil, nil, fmt.Errorf("update entry %d: %w", dup.ID, err)
	}
	return entry, report, nil
}

func (s *Service) create(ctx context.Context, d entity.Draft, specimens []entity.Specimen, warnings []string) (*entity.Entry, *Report, error) {
	specimens, warnings, err := s.withDefaultSource(ctx, specimens, warnings)
	if err != nil {
		return nil, nil, err
	}

	entry, err := s.repo.CreateEntry(ctx, d, specimens)
	if err != nil {
		return nil, nil, fmt.Errorf("create entry: %w", err)
	}
	return entry, &Report{
		Action:   Created,
		Warnings: warnings,
		Message:  fmt.Sprintf("entry %d created with %d specimen(s)", entry.ID, len(specimens)),
	}, nil
}

// withDefaultSource fills in the default source for specimens that name
// none. The caller's slice is not modified.
func (s *Service) withDefaultSource(ctx context.Context, specimens []entity.Specimen, warnings []string) ([]entity.Specimen, []string, error) {
	var (
		out       []entity.Specimen
		sourceID  int64
		looked    bool
		available bool
	)
	for _, sp := range specimens {
		if sp.SourceID == nil {
			if !looked {
				looked = true
				id, err := s.repo.DefaultSourceID(ctx)
				switch {
				case err == nil:
					sourceID, available = id, true
				case errors.Is(err, catalog.ErrNoSource):
					warnings = append(warnings, "no default source configured: specimens created without a source")
				default:
					return nil, nil, fmt.Errorf("default source: %w", err)
				}
			}
			if available {
				id := sourceID
				sp.SourceID = &id
			}
		}
		out = append(out, sp)
	}
	return out, warnings, nil
}

func failureReason(err error) string {
	var dup *DuplicateNeedsConfirmationError
	switch {
	case errors.As(err, &dup):
		return "needs_confirmation"
	case errors.Is(err, catalog.ErrBarcodeTaken):
		return "barcode_taken"
	case errors.Is(err, entity.ErrMissingTitle):
		return "invalid_record"
	default:
		return "error"
	}
}
