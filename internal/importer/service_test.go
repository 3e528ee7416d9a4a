package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/remotecache"
	"bibliobridge/internal/testutil"
)

type fixture struct {
	svc   *Service
	repo  *catalog.MockRepository
	cache *remotecache.Cache
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	cache, mr := testutil.NewCache(t)
	repo := catalog.NewMockRepository(ctrl)
	return &fixture{
		svc:   NewService(cache, repo, nil, zerolog.Nop()),
		repo:  repo,
		cache: cache,
		mr:    mr,
	}
}

func (f *fixture) stage(t *testing.T, d entity.Draft) int64 {
	t.Helper()
	h, err := f.cache.Stage(context.Background(), d, "bnf")
	require.NoError(t, err)
	return h
}

var stranger = entity.Draft{Title: "L'étranger", ISBN: "9782070408504", MediaType: "b", Audience: "a"}

func int64p(v int64) *int64 { return &v }

func TestImport_CreatesWhenNoDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.stage(t, stranger)

	own := int64p(9)
	specimens := []entity.Specimen{{Barcode: "B1"}, {Barcode: "B2", SourceID: own}}

	f.repo.EXPECT().FindDuplicate(gomock.Any(), "9782070408504").Return(nil, nil)
	f.repo.EXPECT().DefaultSourceID(gomock.Any()).Return(int64(3), nil).Times(1)
	f.repo.EXPECT().CreateEntry(gomock.Any(), stranger, gomock.Any()).
		DoAndReturn(func(_ context.Context, d entity.Draft, got []entity.Specimen) (*entity.Entry, error) {
			require.Len(t, got, 2)
			assert.Equal(t, int64(3), *got[0].SourceID)
			assert.Equal(t, int64(9), *got[1].SourceID)
			return &entity.Entry{ID: 11, Draft: d, SpecimenCount: 2}, nil
		})

	entry, report, err := f.svc.Import(ctx, Request{Handle: h, Specimens: specimens})
	require.NoError(t, err)
	assert.Equal(t, int64(11), entry.ID)
	assert.Equal(t, Created, report.Action)
	assert.Nil(t, report.ExistingID)
	assert.Empty(t, report.Warnings)
	assert.Nil(t, specimens[0].SourceID, "caller's specimens are not modified")

	assert.False(t, f.mr.Exists("z3950:item:isbn:9782070408504"), "content consumed")
}

func TestImport_MergesIntoEntryWithSpecimens(t *testing.T) {
	f := newFixture(t)
	h := f.stage(t, stranger)

	f.repo.EXPECT().FindDuplicate(gomock.Any(), "9782070408504").
		Return(&catalog.DuplicateCandidate{ID: 5, ActiveSpecimens: 2}, nil)
	f.repo.EXPECT().UpdateBibliographic(gomock.Any(), int64(5), stranger).
		Return(&entity.Entry{ID: 5, Draft: stranger, SpecimenCount: 2}, nil)

	entry, report, err := f.svc.Import(context.Background(), Request{
		Handle:    h,
		Specimens: []entity.Specimen{{Barcode: "NEW"}},
	})
	require.NoError(t, err)

	assert.Equal(t, MergedBibliographic, report.Action)
	assert.Equal(t, int64(5), *report.ExistingID)
	assert.Contains(t, report.Message, "2 existing specimen(s) preserved")
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "1 specimen(s) ignored")
	assert.Equal(t, 2, entry.SpecimenCount)
}

func TestImport_ReplacesArchivedEntry(t *testing.T) {
	f := newFixture(t)
	h := f.stage(t, stranger)

	f.repo.EXPECT().FindDuplicate(gomock.Any(), "9782070408504").
		Return(&catalog.DuplicateCandidate{ID: 8, Archived: true}, nil)
	f.repo.EXPECT().UpdateBibliographic(gomock.Any(), int64(8), stranger).
		Return(&entity.Entry{ID: 8, Draft: stranger}, nil)

	_, report, err := f.svc.Import(context.Background(), Request{Handle: h})
	require.NoError(t, err)
	assert.Equal(t, ReplacedArchived, report.Action)
	assert.Equal(t, int64(8), *report.ExistingID)
}

func TestImport_ConfirmationRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.stage(t, stranger)
	live := &catalog.DuplicateCandidate{ID: 42}

	f.repo.EXPECT().FindDuplicate(gomock.Any(), "9782070408504").Return(live, nil).Times(3)

	_, _, err := f.svc.Import(ctx, Request{Handle: h})
	var dup *DuplicateNeedsConfirmationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(42), dup.ExistingID)
	assert.True(t, f.mr.Exists("z3950:handle:1"), "handle restored for the retry")

	_, _, err = f.svc.Import(ctx, Request{Handle: h, ConfirmID: int64p(41)})
	require.ErrorAs(t, err, &dup, "a mismatched confirmation is not a confirmation")

	f.repo.EXPECT().UpdateBibliographic(gomock.Any(), int64(42), stranger).
		Return(&entity.Entry{ID: 42, Draft: stranger}, nil)

	_, report, err := f.svc.Import(ctx, Request{Handle: h, ConfirmID: int64p(42)})
	require.NoError(t, err)
	assert.Equal(t, ReplacedConfirmed, report.Action)
}

func TestImport_HandleIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.stage(t, stranger)

	f.repo.EXPECT().FindDuplicate(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.repo.EXPECT().CreateEntry(gomock.Any(), gomock.Any(), gomock.Any()).Return(&entity.Entry{ID: 1}, nil)

	_, _, err := f.svc.Import(ctx, Request{Handle: h})
	require.NoError(t, err)

	_, _, err = f.svc.Import(ctx, Request{Handle: h})
	assert.ErrorIs(t, err, remotecache.ErrNotFound)
}

func TestImport_UnknownOrExpiredHandle(t *testing.T) {
	f := newFixture(t)
	h := f.stage(t, stranger)
	f.mr.FastForward(2 * time.Hour)

	_, _, err := f.svc.Import(context.Background(), Request{Handle: h})
	assert.ErrorIs(t, err, remotecache.ErrNotFound)

	_, _, err = f.svc.Import(context.Background(), Request{Handle: 12345})
	assert.ErrorIs(t, err, remotecache.ErrNotFound)
}

func TestImport_NoISBNSkipsDuplicateDetection(t *testing.T) {
	f := newFixture(t)
	d := entity.Draft{Title: "Bulletin paroissial", MediaType: "b", Audience: "u"}
	h := f.stage(t, d)

	f.repo.EXPECT().CreateEntry(gomock.Any(), d, gomock.Any()).Return(&entity.Entry{ID: 2, Draft: d}, nil)

	_, report, err := f.svc.Import(context.Background(), Request{Handle: h})
	require.NoError(t, err)
	assert.Equal(t, Created, report.Action)
	assert.Equal(t, []string{warnNoISBN}, report.Warnings)
}

func TestImport_NoDefaultSource(t *testing.T) {
	f := newFixture(t)
	h := f.stage(t, stranger)

	f.repo.EXPECT().FindDuplicate(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.repo.EXPECT().DefaultSourceID(gomock.Any()).Return(int64(0), catalog.ErrNoSource)
	f.repo.EXPECT().CreateEntry(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d entity.Draft, got []entity.Specimen) (*entity.Entry, error) {
			assert.Nil(t, got[0].SourceID)
			return &entity.Entry{ID: 3}, nil
		})

	_, report, err := f.svc.Import(context.Background(), Request{Handle: h, Specimens: []entity.Specimen{{Barcode: "X"}}})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "no default source")
}

func TestImport_CatalogFailureRestoresHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.stage(t, stranger)
	boom := errors.New("connection reset")

	f.repo.EXPECT().FindDuplicate(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.repo.EXPECT().CreateEntry(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	_, _, err := f.svc.Import(ctx, Request{Handle: h})
	require.ErrorIs(t, err, boom)

	e, err := f.cache.Lookup(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, stranger.Title, e.Draft.Title)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "needs_confirmation", failureReason(&DuplicateNeedsConfirmationError{ExistingID: 1}))
	assert.Equal(t, "barcode_taken", failureReason(errors.Join(errors.New("x"), catalog.ErrBarcodeTaken)))
	assert.Equal(t, "error", failureReason(errors.New("x")))
}
