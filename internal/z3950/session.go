// Package z3950 runs retrieval sessions against remote catalogs: connect,
// search, present a window of records, close.
package z3950

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bibliobridge/internal/marc"
)

type State int

const (
	Disconnected State = iota
	Connected
	Searched
	Presented
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Searched:
		return "searched"
	case Presented:
		return "presented"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxPresent = 50
)

var errInvalidWindow = errors.New("start must be at least 1")

type Options struct {
	// Timeout bounds every network operation. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxPresent caps the records fetched by one Present call.
	MaxPresent int
	Logger     zerolog.Logger
}

// Session is a single-use, single-goroutine conversation with one server.
type Session struct {
	dialer Dialer
	opts   Options
	log    zerolog.Logger

	state  State
	conn   Conn
	target Target
	hits   int
}

func NewSession(d Dialer, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPresent <= 0 {
		opts.MaxPresent = DefaultMaxPresent
	}
	return &Session{dialer: d, opts: opts, log: opts.Logger}
}

func (s *Session) State() State { return s.state }

// Hits is the result count of the last successful search.
func (s *Session) Hits() int { return s.hits }

func (s *Session) Connect(ctx context.Context, t Target) error {
	if s.state != Disconnected {
		return &StateError{Op: "connect", State: s.state}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	conn, err := s.dialer.Dial(ctx, t)
	if err != nil {
		return &ConnectionError{Server: t.Name, Err: err}
	}

	s.conn = conn
	s.target = t
	s.state = Connected
	s.log = s.opts.Logger.With().Str("server", t.Name).Logger()
	s.log.Debug().Str("address", t.Address).Strs("databases", t.Databases).Msg("z3950 connected")
	return nil
}

// Search runs query against databases, or against the target's databases
// when none are given. A zero hit count is a valid outcome.
func (s *Session) Search(ctx context.Context, databases []string, query string) (int, error) {
	if s.state != Connected {
		return 0, &StateError{Op: "search", State: s.state}
	}
	if len(databases) == 0 {
		databases = s.target.Databases
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	hits, err := s.conn.Search(ctx, databases, query)
	if err != nil {
		return 0, &SearchError{Server: s.target.Name, Query: query, Err: err}
	}

	s.hits = hits
	s.state = Searched
	s.log.Debug().Str("query", query).Int("hits", hits).Msg("z3950 search")
	return hits, nil
}

// Present fetches and decodes the 1-based window starting at start. count is
// clamped to the hits remaining and to Options.MaxPresent. Records that fail
// to decode are logged and skipped.
func (s *Session) Present(ctx context.Context, start, count int) ([]*marc.Record, error) {
	if s.state != Searched && s.state != Presented {
		return nil, &StateError{Op: "present", State: s.state}
	}
	if start < 1 {
		return nil, &PresentError{Server: s.target.Name, Start: start, Count: count, Err: errInvalidWindow}
	}

	n := min(count, s.hits-start+1, s.opts.MaxPresent)
	if n <= 0 {
		s.state = Presented
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raws, err := s.conn.Present(ctx, start, n)
	if err != nil {
		return nil, &PresentError{Server: s.target.Name, Start: start, Count: n, Err: err}
	}
	s.state = Presented

	records := make([]*marc.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := marc.Decode(raw)
		if err != nil {
			s.log.Warn().Err(err).Int("position", start+i).Msg("skipping undecodable record")
			continue
		}
		if len(rec.Dropped) > 0 {
			s.log.Warn().Strs("tags", rec.Dropped).Int("position", start+i).Msg("truncated fields dropped")
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the connection. It is safe to call from any state and more
// than once; transport errors on close are logged, not returned.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("z3950 close")
		}
		s.conn = nil
	}
	s.state = Closed
	return nil
}
