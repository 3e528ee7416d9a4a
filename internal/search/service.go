// Package search fans a query out to every active Z39.50 server, stages the
// retrieved records in the remote cache and returns short listings.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bibliobridge/internal/dialect"
	"bibliobridge/internal/entity"
	"bibliobridge/internal/platform/metrics"
	"bibliobridge/internal/z3950"
)

// SourceCache labels a result that no remote server contributed to.
const SourceCache = "cache"

// Stager stores a draft and hands back a handle for a later import.
type Stager interface {
	Stage(ctx context.Context, draft entity.Draft, origin string) (int64, error)
}

type Config struct {
	// Concurrency bounds the servers queried at once.
	Concurrency int
	// MaxResults is the default result budget; MaxResultsCap bounds what a
	// caller may ask for.
	MaxResults    int
	MaxResultsCap int
	// ServerRPS and ServerBurst throttle sessions opened against one server.
	ServerRPS   float64
	ServerBurst int
	// Deadline bounds a whole search. Servers still running when it passes
	// count as failed; entries already staged are returned.
	Deadline time.Duration
	Session  z3950.Options
}

func (c *Config) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 50
	}
	if c.MaxResultsCap < c.MaxResults {
		c.MaxResultsCap = c.MaxResults
	}
	if c.ServerBurst <= 0 {
		c.ServerBurst = 1
	}
}

type Request struct {
	Query z3950.Query
	// PQF, when set, is sent verbatim and Query is ignored.
	PQF string
	// ServerID pins the search to one server.
	ServerID   int64
	MaxResults int
}

// ShortEntry is one listing row. Handle is what an import takes.
//
// Staged content is keyed by ISBN, so entries sharing an ISBN share one
// staged draft: the last server to stage it wins, and the draft's Origin can
// differ from the entry's Source.
type ShortEntry struct {
	Handle    int64  `json:"handle"`
	ISBN      string `json:"isbn,omitempty"`
	Title     string `json:"title"`
	Date      string `json:"date,omitempty"`
	MediaType string `json:"media_type"`
	Author    string `json:"author,omitempty"`
	Source    string `json:"source"`
}

type Result struct {
	Items []ShortEntry `json:"items"`
	Total int          `json:"total"`
	// Source names the servers that contributed, in search order, or
	// SourceCache when none did.
	Source        string   `json:"source"`
	FailedServers []string `json:"failed_servers,omitempty"`
	// Outage is set when every queried server failed.
	Outage bool `json:"outage"`
}

type Service struct {
	registry Registry
	dialer   z3950.Dialer
	cache    Stager
	cfg      Config
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewService(reg Registry, d z3950.Dialer, cache Stager, cfg Config, m *metrics.Metrics, log zerolog.Logger) *Service {
	cfg.defaults()
	cfg.Session.Logger = log
	return &Service{
		registry: reg,
		dialer:   d,
		cache:    cache,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Servers lists the active servers in search order.
func (s *Service) Servers(ctx context.Context) ([]Server, error) {
	return s.registry.Active(ctx)
}

// Search queries the active servers in parallel until the result budget is
// spent or the search deadline passes. A failing server is logged and
// skipped; only configuration problems and invalid queries are returned as
// errors.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	pqf := strings.TrimSpace(req.PQF)
	if pqf == "" {
		var err error
		if pqf, err = z3950.BuildPQF(req.Query); err != nil {
			return nil, err
		}
	}

	servers, err := s.targets(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}

	var budget atomic.Int64
	budget.Store(int64(s.limit(req.MaxResults)))

	found := make([][]ShortEntry, len(servers))
	failed := make([]bool, len(servers))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, srv := range servers {
		g.Go(func() error {
			if budget.Load() <= 0 {
				s.metrics.ObserveServer(srv.Name, metrics.OutcomeSkipped)
				return nil
			}
			entries, err := s.searchServer(ctx, srv, pqf, &budget)
			found[i] = entries
			if err != nil {
				failed[i] = true
				s.metrics.ObserveServer(srv.Name, metrics.OutcomeFailed)
				s.log.Warn().Err(err).Str("server", srv.Name).Msg("z3950 server skipped")
				return nil
			}
			s.metrics.ObserveServer(srv.Name, metrics.OutcomeOK)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Items: []ShortEntry{}}
	var contributors []string
	for i, srv := range servers {
		if failed[i] {
			res.FailedServers = append(res.FailedServers, srv.Name)
		}
		if len(found[i]) > 0 {
			contributors = append(contributors, srv.Name)
			res.Items = append(res.Items, found[i]...)
		}
	}
	res.Total = len(res.Items)
	res.Source = SourceCache
	if len(contributors) > 0 {
		res.Source = strings.Join(contributors, ", ")
	}
	res.Outage = len(res.FailedServers) == len(servers)

	s.metrics.ObserveSearch(time.Since(started), res.Total)
	s.log.Info().
		Str("query", pqf).
		Int("servers", len(servers)).
		Strs("failed", res.FailedServers).
		Int("results", res.Total).
		Dur("elapsed", time.Since(started)).
		Msg("z3950 search")
	return res, nil
}

func (s *Service) targets(ctx context.Context, pinned int64) ([]Server, error) {
	servers, err := s.registry.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	if pinned != 0 {
		var one []Server
		for _, srv := range servers {
			if srv.ID == pinned {
				one = append(one, srv)
			}
		}
		servers = one
	}
	if len(servers) == 0 {
		return nil, ErrNoActiveServers
	}
	return servers, nil
}

func (s *Service) limit(requested int) int {
	if requested <= 0 {
		return s.cfg.MaxResults
	}
	return min(requested, s.cfg.MaxResultsCap)
}

// searchServer runs one session. Entries staged before a failure are still
// returned alongside the error since their handles are valid.
func (s *Service) searchServer(ctx context.Context, srv Server, pqf string, budget *atomic.Int64) ([]ShortEntry, error) {
	if err := s.limiter(srv.Name).Wait(ctx); err != nil {
		return nil, err
	}

	sess := z3950.NewSession(s.dialer, s.cfg.Session)
	defer sess.Close()

	if err := sess.Connect(ctx, srv.Target()); err != nil {
		return nil, err
	}
	hits, err := sess.Search(ctx, nil, pqf)
	if err != nil {
		return nil, err
	}
	want := min(int64(hits), budget.Load())
	if want <= 0 {
		return nil, nil
	}
	records, err := sess.Present(ctx, 1, int(want))
	if err != nil {
		return nil, err
	}

	var out []ShortEntry
	for _, rec := range records {
		draft := dialect.Translate(rec, srv.Syntax)
		if err := draft.Validate(); err != nil {
			s.log.Debug().Err(err).Str("server", srv.Name).Msg("record skipped")
			continue
		}
		if !reserve(budget) {
			break
		}
		handle, err := s.cache.Stage(ctx, draft, srv.Name)
		if err != nil {
			budget.Add(1)
			return out, err
		}
		out = append(out, shortEntry(handle, draft, srv.Name))
	}
	return out, nil
}

func (s *Service) limiter(server string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[server]
	if !ok {
		limit := rate.Inf
		if s.cfg.ServerRPS > 0 {
			limit = rate.Limit(s.cfg.ServerRPS)
		}
		l = rate.NewLimiter(limit, s.cfg.ServerBurst)
		s.limiters[server] = l
	}
	return l
}

// reserve takes one slot from the shared budget.
func reserve(budget *atomic.Int64) bool {
	for {
		n := budget.Load()
		if n <= 0 {
			return false
		}
		if budget.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func shortEntry(handle int64, d entity.Draft, source string) ShortEntry {
	e := ShortEntry{
		Handle:    handle,
		ISBN:      d.ISBN,
		Title:     d.Title,
		Date:      d.PublicationDate(),
		MediaType: d.MediaType,
		Source:    source,
	}
	if a := d.FirstAuthor(); a != nil {
		e.Author = a.DisplayName()
	}
	return e
}
