package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// ensureStructured creates the structured store on first use.
func (c *Cache) ensureStructured(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			headers TEXT NOT NULL,
			total_rows INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_rows (
			dataset_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			cells TEXT NOT NULL,
			PRIMARY KEY (dataset_id, idx)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create structured store: %w", err)
		}
	}
	return nil
}

// saveStructured writes the dataset in one transaction.
func (c *Cache) saveStructured(ctx context.Context, key string, raw *models.RawTable) error {
	if err := c.ensureStructured(ctx); err != nil {
		return err
	}

	headers, err := json.Marshal(raw.Headers)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin structured write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = ?`, key); err != nil {
		return fmt.Errorf("clear structured rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO datasets (id, headers, total_rows, saved_at) VALUES (?, ?, ?, ?)`,
		key, string(headers), len(raw.Rows), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write structured dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dataset_rows (dataset_id, idx, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare structured rows: %w", err)
	}
	defer stmt.Close()

	for i, row := range raw.Rows {
		if i%c.opts.ChunkRows == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		cells, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, key, i, string(cells)); err != nil {
			return fmt.Errorf("write structured row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (c *Cache) loadStructured(ctx context.Context, key string) (*models.RawTable, error) {
	if err := c.ensureStructured(ctx); err != nil {
		return nil, err
	}

	var headers string
	var total int
	err := c.db.QueryRowContext(ctx, `SELECT headers, total_rows FROM datasets WHERE id = ?`, key).Scan(&headers, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("read structured dataset: %w", err)
	}

	raw := &models.RawTable{Rows: make([][]string, 0, total)}
	if err := json.Unmarshal([]byte(headers), &raw.Headers); err != nil {
		return nil, fmt.Errorf("decode structured headers: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT cells FROM dataset_rows WHERE dataset_id = ? ORDER BY idx`, key)
	if err != nil {
		return nil, fmt.Errorf("read structured rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan structured row: %w", err)
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, fmt.Errorf("decode structured row: %w", err)
		}
		raw.Rows = append(raw.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate structured rows: %w", err)
	}

	if len(raw.Rows) != total {
		return nil, fmt.Errorf("structured dataset %s has %d rows, expected %d", key, len(raw.Rows), total)
	}
	return raw, nil
}

func (c *Cache) deleteStructured(ctx context.Context, key string) error {
	if err := c.ensureStructured(ctx); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM dataset_rows WHERE dataset_id = ?`, key); err != nil {
		return fmt.Errorf("clear structured rows: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, key); err != nil {
		return fmt.Errorf("clear structured dataset: %w", err)
	}
	return nil
}
