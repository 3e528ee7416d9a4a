// Package remotecache holds drafts retrieved by a search until an import
// consumes them. Each staged draft is reachable through a numeric handle.
package remotecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"bibliobridge/internal/entity"
)

const (
	DefaultTTL = time.Hour

	handleSeqKey  = "z3950:handle:seq"
	handlePrefix  = "z3950:handle:"
	isbnKeyPrefix = "z3950:item:isbn:"
	timeKeyPrefix = "z3950:item:t:"
)

var ErrNotFound = errors.New("remote entry not found or expired")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is what a search stages: the translated draft and where it came from.
type Entry struct {
	Draft      entity.Draft `json:"draft"`
	Origin     string       `json:"origin"`
	CapturedAt time.Time    `json:"captured_at"`
}

type Cache struct {
	store Store
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

func New(store Store, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, log: log, now: time.Now}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Stage stores draft and returns a fresh handle for it. The content is
// written before the handle so a handle never points at nothing.
func (c *Cache) Stage(ctx context.Context, draft entity.Draft, origin string) (int64, error) {
	key, err := contentKey(draft)
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(Entry{Draft: draft, Origin: origin, CapturedAt: c.now().UTC()})
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}
	if err := c.store.SetEX(ctx, key, payload, c.ttl); err != nil {
		return 0, fmt.Errorf("stage entry: %w", err)
	}

	handle, err := c.store.Incr(ctx, handleSeqKey)
	if err != nil {
		return 0, fmt.Errorf("mint handle: %w", err)
	}
	if err := c.store.SetEX(ctx, handleKey(handle), []byte(key), c.ttl); err != nil {
		return 0, fmt.Errorf("stage handle: %w", err)
	}
	return handle, nil
}

// Lookup reads the entry behind handle without consuming it.
func (c *Cache) Lookup(ctx context.Context, handle int64) (*Entry, error) {
	key, err := c.store.Get(ctx, handleKey(handle))
	if err != nil {
		return nil, err
	}
	return c.load(ctx, string(key))
}

// Claim takes exclusive ownership of handle. Exactly one concurrent caller
// wins; the others get ErrNotFound. The winner must Commit or Release. When
// the content cannot be read for any reason other than expiry, the handle is
// put back so the claim can be retried.
func (c *Cache) Claim(ctx context.Context, handle int64) (*Claim, error) {
	key, err := c.store.GetDel(ctx, handleKey(handle))
	if err != nil {
		return nil, err
	}
	entry, err := c.load(ctx, string(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.restore(context.WithoutCancel(ctx), handle, string(key))
		}
		return nil, err
	}
	return &Claim{Handle: handle, Entry: *entry, cache: c, contentKey: string(key)}, nil
}

func (c *Cache) load(ctx context.Context, key string) (*Entry, error) {
	payload, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return &e, nil
}

// Claim is a consumed handle whose content is still cached.
type Claim struct {
	Handle int64
	Entry  Entry

	cache      *Cache
	contentKey string
}

// Commit drops the content; the handle is already gone.
func (cl *Claim) Commit(ctx context.Context) error {
	if err := cl.cache.store.Del(ctx, cl.contentKey); err != nil {
		cl.cache.log.Warn().Err(err).Str("key", cl.contentKey).Msg("content key left to expire")
		return err
	}
	return nil
}

// Release puts the handle back, with a fresh TTL, so the caller can retry.
func (cl *Claim) Release(ctx context.Context) error {
	return cl.cache.restore(ctx, cl.Handle, cl.contentKey)
}

func (c *Cache) restore(ctx context.Context, handle int64, key string) error {
	if err := c.store.SetEX(ctx, handleKey(handle), []byte(key), c.ttl); err != nil {
		c.log.Error().Err(err).Int64("handle", handle).Msg("restore handle")
		return err
	}
	return nil
}

func handleKey(h int64) string {
	return handlePrefix + strconv.FormatInt(h, 10)
}

func contentKey(d entity.Draft) (string, error) {
	if isbn := entity.NormalizeISBN(d.ISBN); isbn != "" {
		return isbnKeyPrefix + isbn, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("synthetic key: %w", err)
	}
	return timeKeyPrefix + id.String(), nil
}
