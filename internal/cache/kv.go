package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// putKV writes one entry, refusing writes that would push its budget past
// the quota. Projections and datasets are budgeted separately.
func (c *Cache) putKV(ctx context.Context, key string, value []byte) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback()

	quota, match := c.opts.KVQuotaBytes, "!="
	if strings.HasSuffix(key, projectionSuffix) {
		quota, match = c.opts.ProjectionQuotaBytes, "="
	}
	usage := fmt.Sprintf(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE key != ? AND substr(key, -%d) %s ?`, len(projectionSuffix), match)

	var used int64
	if err := tx.QueryRowContext(ctx, usage, key, projectionSuffix).Scan(&used); err != nil {
		return fmt.Errorf("measure cache usage: %w", err)
	}
	if used+int64(len(value)) > int64(quota) {
		return fmt.Errorf("%s needs %d bytes with %d of %d used: %w", key, len(value), used, quota, ErrQuotaExceeded)
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return tx.Commit()
}

func (c *Cache) getKV(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	return value, nil
}

func (c *Cache) deleteKV(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// saveChunked writes rows in fixed-size chunks and the metadata record last.
// Any failure, including cancellation between chunks, removes the chunks
// already written.
func (c *Cache) saveChunked(ctx context.Context, key string, raw *models.RawTable) (err error) {
	size := c.opts.ChunkRows
	count := (len(raw.Rows) + size - 1) / size

	written := 0
	defer func() {
		if err == nil {
			return
		}
		cleanup := context.WithoutCancel(ctx)
		for i := 0; i < written; i++ {
			if derr := c.deleteKV(cleanup, chunkKey(key, i)); derr != nil {
				c.logger.Error().Err(derr).Str("key", key).Int("chunk", i).Msg("failed to remove partial cache chunk")
			}
		}
	}()

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min((i+1)*size, len(raw.Rows))
		data, err := json.Marshal(raw.Rows[i*size : end])
		if err != nil {
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}
		if err := c.putKV(ctx, chunkKey(key, i), data); err != nil {
			return fmt.Errorf("write chunk %d of %d: %w", i+1, count, err)
		}
		written++
	}

	meta, err := json.Marshal(chunkMeta{Headers: raw.Headers, TotalRows: len(raw.Rows), ChunkCount: count})
	if err != nil {
		return fmt.Errorf("encode chunk metadata: %w", err)
	}
	if err := c.putKV(ctx, metaKey(key), meta); err != nil {
		return fmt.Errorf("write chunk metadata: %w", err)
	}
	return nil
}

func (c *Cache) loadChunked(ctx context.Context, key string) (*models.RawTable, error) {
	data, err := c.getKV(ctx, metaKey(key))
	if err != nil {
		return nil, err
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode chunk metadata: %w", err)
	}

	raw := &models.RawTable{Headers: meta.Headers, Rows: make([][]string, 0, meta.TotalRows)}
	for i := 0; i < meta.ChunkCount; i++ {
		data, err := c.getKV(ctx, chunkKey(key, i))
		if err != nil {
			if errors.Is(err, ErrNotCached) {
				return nil, fmt.Errorf("chunk %d of %d missing for %s", i+1, meta.ChunkCount, key)
			}
			return nil, err
		}
		var rows [][]string
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", i, err)
		}
		raw.Rows = append(raw.Rows, rows...)
	}

	if len(raw.Rows) != meta.TotalRows {
		return nil, fmt.Errorf("cached dataset %s has %d rows, metadata says %d", key, len(raw.Rows), meta.TotalRows)
	}
	return raw, nil
}

// SaveWorkOrders caches at most limit work orders under key for fast reloads
// of the table view. limit <= 0 keeps all of them.
func (c *Cache) SaveWorkOrders(ctx context.Context, key string, orders []models.WorkOrder, limit int) error {
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode work orders: %w", err)
	}
	return c.putKV(ctx, projectionKey(key), data)
}

func (c *Cache) LoadWorkOrders(ctx context.Context, key string) ([]models.WorkOrder, error) {
	data, err := c.getKV(ctx, projectionKey(key))
	if err != nil {
		return nil, err
	}
	var orders []models.WorkOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("decode cached work orders: %w", err)
	}
	return orders, nil
}
