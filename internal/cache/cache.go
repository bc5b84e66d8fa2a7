// Package cache keeps a local copy of the last parsed dataset so the
// dashboard can reload without the hosted store. Datasets are stored in one
// of three tiers chosen by serialized size.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	_ "modernc.org/sqlite"
)

type Tier string

const (
	TierNone       Tier = "none"
	TierDirect     Tier = "direct"
	TierChunked    Tier = "chunked"
	TierStructured Tier = "structured"
)

// DatasetKey is the fixed key the ingestion pipeline caches under.
const DatasetKey = "provisioning_dataset"

var (
	ErrQuotaExceeded = errors.New("cache quota exceeded")
	ErrNotCached     = errors.New("dataset not cached")
)

type Options struct {
	DirectLimitBytes  int
	ChunkedLimitBytes int
	ChunkRows         int
	KVQuotaBytes      int
	// ProjectionQuotaBytes budgets the work order projections separately
	// from datasets.
	ProjectionQuotaBytes int
	// DisableStructured forces large datasets onto the chunked tier.
	DisableStructured bool
}

func (o Options) withDefaults() Options {
	if o.DirectLimitBytes <= 0 {
		o.DirectLimitBytes = 2 << 20
	}
	if o.ChunkedLimitBytes <= 0 {
		o.ChunkedLimitBytes = 5 << 20
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = 500
	}
	if o.KVQuotaBytes <= 0 {
		o.KVQuotaBytes = 5 << 20
	}
	if o.ProjectionQuotaBytes <= 0 {
		o.ProjectionQuotaBytes = 5 << 20
	}
	return o
}

type Cache struct {
	db     *sql.DB
	opts   Options
	logger zerolog.Logger
}

type chunkMeta struct {
	Headers    []string `json:"headers"`
	TotalRows  int      `json:"total_rows"`
	ChunkCount int      `json:"chunk_count"`
}

func metaKey(key string) string         { return key + ":meta" }
func chunkKey(key string, i int) string { return key + ":chunk:" + strconv.Itoa(i) }
func projectionKey(key string) string   { return key + projectionSuffix }

const projectionSuffix = ":work_orders"

// Open opens (creating if needed) the SQLite cache file at path. Use
// ":memory:" for a throwaway cache.
func Open(ctx context.Context, path string, opts Options, logger zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	return &Cache{db: db, opts: opts.withDefaults(), logger: logger.With().Str("component", "cache").Logger()}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Save replaces whatever is cached under key with raw. A failed save leaves
// key uncached rather than partially written.
func (c *Cache) Save(ctx context.Context, key string, raw *models.RawTable) (Tier, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return TierNone, fmt.Errorf("encode dataset: %w", err)
	}

	if err := c.clearDataset(ctx, key); err != nil {
		return TierNone, err
	}

	size := len(data)
	switch {
	case size < c.opts.DirectLimitBytes:
		if err := c.putKV(ctx, key, data); err != nil {
			return TierNone, err
		}
		return TierDirect, nil

	case size <= c.opts.ChunkedLimitBytes:
		if err := c.saveChunked(ctx, key, raw); err != nil {
			return TierNone, err
		}
		return TierChunked, nil
	}

	if !c.opts.DisableStructured {
		err := c.saveStructured(ctx, key, raw)
		if err == nil {
			return TierStructured, nil
		}
		c.logger.Warn().Err(err).Str("key", key).Msg("structured cache unavailable, falling back to chunks")
	}

	if err := c.saveChunked(ctx, key, raw); err != nil {
		return TierNone, err
	}
	return TierChunked, nil
}

// Load reassembles the dataset cached under key.
func (c *Cache) Load(ctx context.Context, key string) (*models.RawTable, Tier, error) {
	if !c.opts.DisableStructured {
		raw, err := c.loadStructured(ctx, key)
		if err == nil {
			return raw, TierStructured, nil
		}
		if !errors.Is(err, ErrNotCached) {
			return nil, TierNone, err
		}
	}

	data, err := c.getKV(ctx, key)
	switch {
	case err == nil:
		var raw models.RawTable
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, TierNone, fmt.Errorf("decode cached dataset: %w", err)
		}
		return &raw, TierDirect, nil
	case !errors.Is(err, ErrNotCached):
		return nil, TierNone, err
	}

	raw, err := c.loadChunked(ctx, key)
	if err != nil {
		return nil, TierNone, err
	}
	return raw, TierChunked, nil
}

// Stat reports which tier holds key without decoding it.
func (c *Cache) Stat(ctx context.Context, key string) (Tier, error) {
	if !c.opts.DisableStructured {
		var n int
		err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE id = ?`, key).Scan(&n)
		if err == nil && n > 0 {
			return TierStructured, nil
		}
	}
	for _, probe := range []struct {
		key  string
		tier Tier
	}{{key, TierDirect}, {metaKey(key), TierChunked}} {
		var n int
		if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key = ?`, probe.key).Scan(&n); err != nil {
			return TierNone, fmt.Errorf("stat cache: %w", err)
		}
		if n > 0 {
			return probe.tier, nil
		}
	}
	return TierNone, nil
}

// Clear removes every tier's copy of key, including any work order projection.
func (c *Cache) Clear(ctx context.Context, key string) error {
	if err := c.clearDataset(ctx, key); err != nil {
		return err
	}
	return c.deleteKV(ctx, projectionKey(key))
}

func (c *Cache) clearDataset(ctx context.Context, key string) error {
	if err := c.deleteKV(ctx, key); err != nil {
		return err
	}
	// Meta goes before chunks so a partial delete never looks complete.
	if err := c.deleteKV(ctx, metaKey(key)); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key LIKE ? ESCAPE '\'`, escapeLike(key)+":chunk:%"); err != nil {
		return fmt.Errorf("clear cache chunks: %w", err)
	}
	if !c.opts.DisableStructured {
		if err := c.deleteStructured(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
