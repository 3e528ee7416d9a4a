package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bibliobridge/internal/dialect"
	"bibliobridge/internal/marc"
	"bibliobridge/internal/remotecache"
	"bibliobridge/internal/testutil"
	"bibliobridge/internal/z3950"
)

type remote struct {
	titles  []string
	dialErr error
	findErr error
	// isbn, when set, goes into 020 of every record.
	isbn string
	// stall makes Dial hang until its context ends.
	stall bool
}

type fakeConn struct {
	r *remote
	d *fakeDialer
}

func (c *fakeConn) Search(ctx context.Context, databases []string, query string) (int, error) {
	c.d.mu.Lock()
	c.d.queries = append(c.d.queries, query)
	c.d.mu.Unlock()
	if c.r.findErr != nil {
		return 0, c.r.findErr
	}
	return len(c.r.titles), nil
}

func (c *fakeConn) Present(ctx context.Context, start, count int) ([][]byte, error) {
	var out [][]byte
	for _, title := range c.r.titles[start-1 : start-1+count] {
		out = append(out, record(c.d.t, title, c.r.isbn))
	}
	return out, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	t       *testing.T
	remotes map[string]*remote

	mu      sync.Mutex
	dialed  []string
	queries []string
}

func (d *fakeDialer) Dial(ctx context.Context, t z3950.Target) (z3950.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, t.Name)
	d.mu.Unlock()

	r, ok := d.remotes[t.Name]
	if !ok {
		return nil, errors.New("no route to host")
	}
	if r.dialErr != nil {
		return nil, r.dialErr
	}
	if r.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &fakeConn{r: r, d: d}, nil
}

func (d *fakeDialer) dials(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.dialed {
		if s == name {
			n++
		}
	}
	return n
}

// record encodes a MARC21 book; an empty title leaves 245 out.
func record(t *testing.T, title, isbn string) []byte {
	fields := []marc.DataField{testutil.Field("100", "aCamus, Albert")}
	if isbn != "" {
		fields = append(fields, testutil.Field("020", "a"+isbn))
	}
	if title != "" {
		fields = append(fields, testutil.Field("245", "a"+title))
	}
	return testutil.EncodeBook(t, fields...)
}

type staticRegistry []Server

func (r staticRegistry) Active(ctx context.Context) ([]Server, error) { return r, nil }

func servers(names ...string) staticRegistry {
	var out staticRegistry
	for i, n := range names {
		out = append(out, Server{ID: int64(i + 1), Name: n, Host: n + ".example.org", Syntax: dialect.MARC21})
	}
	return out
}

func newService(t *testing.T, reg Registry, d *fakeDialer, cfg Config) (*Service, *remotecache.Cache) {
	t.Helper()
	d.t = t
	cache, _ := testutil.NewCache(t)
	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = time.Second
	}
	return NewService(reg, d, cache, cfg, nil, zerolog.Nop()), cache
}

var byTitle = Request{Query: z3950.Query{Title: "étranger"}}

func TestSearch_SkipsFailingServer(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"srv1": {titles: []string{"L'étranger", "L'étranger (poche)"}},
		"srv2": {dialErr: errors.New("connection refused")},
		"srv3": {titles: []string{"The Stranger"}},
	}}
	svc, cache := newService(t, servers("srv1", "srv2", "srv3"), d, Config{})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)

	assert.Equal(t, "srv1, srv3", res.Source)
	assert.Equal(t, []string{"srv2"}, res.FailedServers)
	assert.False(t, res.Outage)
	require.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 3)

	assert.Equal(t, "srv1", res.Items[0].Source)
	assert.Equal(t, "srv1", res.Items[1].Source)
	assert.Equal(t, "srv3", res.Items[2].Source)
	assert.Equal(t, "Camus, Albert", res.Items[0].Author)

	for _, item := range res.Items {
		entry, err := cache.Lookup(context.Background(), item.Handle)
		require.NoError(t, err)
		assert.Equal(t, item.Title, entry.Draft.Title)
		assert.Equal(t, item.Source, entry.Origin)
	}
}

func TestSearch_StalledServerTimesOut(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"a": {titles: []string{"A"}},
		"b": {stall: true},
		"c": {titles: []string{"C"}},
	}}
	svc, _ := newService(t, servers("a", "b", "c"), d, Config{
		Concurrency: 3,
		Session:     z3950.Options{Timeout: 100 * time.Millisecond},
	})

	started := time.Now()
	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, []string{"b"}, res.FailedServers)
	assert.Equal(t, "a, c", res.Source)
	assert.False(t, res.Outage)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "A", res.Items[0].Title)
	assert.Equal(t, "C", res.Items[1].Title)
}

func TestSearch_DeadlineBoundsWholeSearch(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"fast":  {titles: []string{"Fast"}},
		"slow1": {stall: true},
		"slow2": {stall: true},
	}}
	svc, cache := newService(t, servers("fast", "slow1", "slow2"), d, Config{
		Concurrency: 3,
		Deadline:    150 * time.Millisecond,
		Session:     z3950.Options{Timeout: time.Minute},
	})

	started := time.Now()
	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 5*time.Second)
	assert.Equal(t, []string{"slow1", "slow2"}, res.FailedServers)
	assert.Equal(t, "fast", res.Source)
	require.Len(t, res.Items, 1)

	entry, err := cache.Lookup(context.Background(), res.Items[0].Handle)
	require.NoError(t, err)
	assert.Equal(t, "Fast", entry.Draft.Title)
}

func TestSearch_SharedISBNSharesStagedDraft(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"srv1": {titles: []string{"First"}, isbn: "9782070408504"},
		"srv2": {titles: []string{"Second"}, isbn: "9782070408504"},
	}}
	svc, cache := newService(t, servers("srv1", "srv2"), d, Config{Concurrency: 1})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.NotEqual(t, res.Items[0].Handle, res.Items[1].Handle)
	assert.Equal(t, "srv1", res.Items[0].Source)

	for _, item := range res.Items {
		entry, err := cache.Lookup(context.Background(), item.Handle)
		require.NoError(t, err)
		assert.Equal(t, "Second", entry.Draft.Title)
		assert.Equal(t, "srv2", entry.Origin)
	}
}

func TestSearch_NoActiveServers(t *testing.T) {
	svc, _ := newService(t, staticRegistry{}, &fakeDialer{}, Config{})

	_, err := svc.Search(context.Background(), byTitle)
	assert.ErrorIs(t, err, ErrNoActiveServers)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSearch_AllServersFail(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"srv1": {dialErr: errors.New("timeout")},
		"srv2": {findErr: errors.New("bad query")},
	}}
	svc, _ := newService(t, servers("srv1", "srv2"), d, Config{})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)

	assert.Equal(t, SourceCache, res.Source)
	assert.True(t, res.Outage)
	assert.Equal(t, []string{"srv1", "srv2"}, res.FailedServers)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestSearch_ZeroHitsIsNotAFailure(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{"srv1": {}}}
	svc, _ := newService(t, servers("srv1"), d, Config{})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.False(t, res.Outage)
	assert.Empty(t, res.FailedServers)
}

func TestSearch_BudgetStopsLaterServers(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"srv1": {titles: []string{"A", "B"}},
		"srv2": {titles: []string{"C", "D", "E", "F", "G"}},
		"srv3": {titles: []string{"H"}},
	}}
	svc, _ := newService(t, servers("srv1", "srv2", "srv3"), d, Config{Concurrency: 1, MaxResults: 3})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)

	require.Equal(t, 3, res.Total)
	assert.Equal(t, "A", res.Items[0].Title)
	assert.Equal(t, "B", res.Items[1].Title)
	assert.Equal(t, "C", res.Items[2].Title)
	assert.Equal(t, "srv1, srv2", res.Source)
	assert.Zero(t, d.dials("srv3"))
}

func TestSearch_BudgetHoldsUnderConcurrency(t *testing.T) {
	remotes := map[string]*remote{}
	names := []string{"a", "b", "c", "d", "e", "f"}
	for _, n := range names {
		remotes[n] = &remote{titles: []string{n + "1", n + "2", n + "3", n + "4"}}
	}
	svc, _ := newService(t, servers(names...), &fakeDialer{remotes: remotes}, Config{Concurrency: 6, MaxResults: 10})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
}

func TestSearch_LimitIsCapped(t *testing.T) {
	titles := make([]string, 30)
	for i := range titles {
		titles[i] = "T"
	}
	d := &fakeDialer{remotes: map[string]*remote{"srv1": {titles: titles}}}
	svc, _ := newService(t, servers("srv1"), d, Config{MaxResults: 5, MaxResultsCap: 20})

	res, err := svc.Search(context.Background(), Request{Query: byTitle.Query, MaxResults: 500})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Total)

	res, err = svc.Search(context.Background(), byTitle)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
}

func TestSearch_SkipsUntitledRecords(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{"srv1": {titles: []string{"", "Titled", ""}}}}
	svc, _ := newService(t, servers("srv1"), d, Config{})

	res, err := svc.Search(context.Background(), byTitle)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Titled", res.Items[0].Title)
}

func TestSearch_PinnedServer(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{
		"srv1": {titles: []string{"A"}},
		"srv2": {titles: []string{"B"}},
	}}
	svc, _ := newService(t, servers("srv1", "srv2"), d, Config{})

	res, err := svc.Search(context.Background(), Request{Query: byTitle.Query, ServerID: 2})
	require.NoError(t, err)
	assert.Equal(t, "srv2", res.Source)
	assert.Zero(t, d.dials("srv1"))

	_, err = svc.Search(context.Background(), Request{Query: byTitle.Query, ServerID: 9})
	assert.ErrorIs(t, err, ErrNoActiveServers)
}

func TestSearch_Query(t *testing.T) {
	d := &fakeDialer{remotes: map[string]*remote{"srv1": {}}}
	svc, _ := newService(t, servers("srv1"), d, Config{})

	_, err := svc.Search(context.Background(), Request{})
	assert.ErrorIs(t, err, z3950.ErrEmptyQuery)
	assert.Empty(t, d.dialed)

	_, err = svc.Search(context.Background(), Request{Query: z3950.Query{ISBN: "978-2-07-040850-4", Title: "x"}})
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), Request{PQF: `@attr 1=1016 "camus"`, Query: z3950.Query{Title: "ignored"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`@and @attr 1=7 "9782070408504" @attr 1=4 "x"`,
		`@attr 1=1016 "camus"`,
	}, d.queries)
}

func TestServer_Target(t *testing.T) {
	s := Server{Name: "loc", Host: "lx2.loc.gov", Databases: []string{"LCDB"}, Syntax: dialect.MARC21}
	got := s.Target()
	assert.Equal(t, "lx2.loc.gov:210", got.Address)
	assert.Nil(t, got.Credentials)

	s.Port, s.Login, s.Password = 2211, "Z3950", "secret"
	got = s.Target()
	assert.Equal(t, "lx2.loc.gov:2211", got.Address)
	assert.Equal(t, &z3950.Credentials{User: "Z3950", Password: "secret"}, got.Credentials)
}
