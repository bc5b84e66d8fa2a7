package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/analytics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

const uniqueViolation = "23505"

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return dbpool, nil
}

type PostgresStore struct {
	dbpool *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{dbpool: pool, logger: logger.With().Str("component", "store").Logger()}
}

func (m *PostgresStore) Ping(ctx context.Context) error {
	return m.dbpool.Ping(ctx)
}

func (m *PostgresStore) CreateTables(ctx context.Context) error {
	optional := make([]string, 0, len(models.TextFields))
	for _, f := range models.TextFields[2:] {
		optional = append(optional, fmt.Sprintf("\t\t%s TEXT,", f))
	}

	queries := []struct {
		name  string
		query string
	}{
		{"uploads", `
	CREATE TABLE IF NOT EXISTS uploads (
		id BIGSERIAL PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		total_rows INTEGER NOT NULL,
		total_columns INTEGER NOT NULL,
		upload_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		status VARCHAR(20) NOT NULL CHECK (status IN ('processing', 'completed', 'failed')),
		checksum VARCHAR(32),
		inserted_rows INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	);`},
		{"work_orders", fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS work_orders (
		id BIGSERIAL PRIMARY KEY,
		upload_id BIGINT REFERENCES uploads (id) ON DELETE SET NULL,
		order_id TEXT NOT NULL,
		workorder TEXT NOT NULL,
%s
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		checksum VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`, strings.Join(optional, "\n"))},
		{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(10) NOT NULL CHECK (role IN ('admin', 'user')),
		status VARCHAR(10) NOT NULL CHECK (status IN ('active', 'inactive')),
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	}

	for _, q := range queries {
		if _, err := m.dbpool.Exec(ctx, q.query); err != nil {
			return fmt.Errorf("error creating %s table: %w", q.name, err)
		}
	}

	return nil
}

func (m *PostgresStore) CreateIndexes(ctx context.Context) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_work_orders_order_id ON work_orders (order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_filters ON work_orders (channel, branch, service_area, status_bima);`,
		`DROP INDEX IF EXISTS idx_work_orders_date_created;`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_work_orders_day_created ON work_orders (%s);`, dayOf(models.FieldDateCreated)),
		`CREATE INDEX IF NOT EXISTS idx_uploads_checksum ON uploads (checksum) WHERE status = 'completed';`,
	}

	for _, query := range queries {
		if _, err := m.dbpool.Exec(ctx, query); err != nil {
			return fmt.Errorf("error creating index: %w", err)
		}
	}

	return nil
}

func (m *PostgresStore) InsertUpload(ctx context.Context, upload *models.UploadAudit) (int64, error) {
	query := `
	INSERT INTO uploads (filename, total_rows, total_columns, upload_date, status, checksum)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	RETURNING id;`

	var id int64
	err := m.dbpool.QueryRow(ctx, query,
		upload.Filename, upload.TotalRows, upload.TotalColumns, upload.UploadDate, upload.Status, upload.CheckSum,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting upload record: %w", err)
	}

	return id, nil
}

// UpdateUploadStatus moves a processing upload to its final state. Terminal
// uploads are never changed again.
func (m *PostgresStore) UpdateUploadStatus(ctx context.Context, uploadID int64, status models.UploadStatus, insertedRows int, errMsg *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("upload %d: %q is not a final status", uploadID, status)
	}

	query := `
	UPDATE uploads
	SET status = $1,
		inserted_rows = $2,
		error_message = $3
	WHERE id = $4 AND status = 'processing';`

	tag, err := m.dbpool.Exec(ctx, query, status, insertedRows, errMsg, uploadID)
	if err != nil {
		return fmt.Errorf("error updating upload status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upload %d: %w", uploadID, ErrUploadFinalized)
	}

	return nil
}

const uploadColumns = `id, filename, total_rows, total_columns, upload_date, status, COALESCE(checksum, ''), inserted_rows, error_message`

func scanUpload(row pgx.Row) (*models.UploadAudit, error) {
	var u models.UploadAudit
	err := row.Scan(&u.ID, &u.Filename, &u.TotalRows, &u.TotalColumns, &u.UploadDate, &u.Status, &u.CheckSum, &u.InsertedRows, &u.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *PostgresStore) FindCompletedUploadByChecksum(ctx context.Context, checksum string) (*models.UploadAudit, error) {
	query := `SELECT ` + uploadColumns + `
	FROM uploads
	WHERE checksum = $1 AND status = 'completed'
	ORDER BY id DESC
	LIMIT 1;`

	upload, err := scanUpload(m.dbpool.QueryRow(ctx, query, checksum))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding upload by checksum: %w", err)
	}

	return upload, nil
}

func (m *PostgresStore) ListUploads(ctx context.Context, limit int) ([]models.UploadAudit, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY id DESC LIMIT $1;`

	rows, err := m.dbpool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing uploads: %w", err)
	}
	defer rows.Close()

	uploads := make([]models.UploadAudit, 0)
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over uploads: %w", err)
	}

	return uploads, nil
}

// workOrderInsertColumns must stay in the order workOrderValues produces.
var workOrderInsertColumns = func() []string {
	cols := []string{"upload_id"}
	cols = append(cols, models.TextFields...)
	return append(cols, "latitude", "longitude", "checksum")
}()

func workOrderValues(w *models.WorkOrder) []any {
	values := make([]any, 0, len(workOrderInsertColumns))
	if w.UploadID == 0 {
		values = append(values, nil)
	} else {
		values = append(values, w.UploadID)
	}
	values = append(values, w.OrderID, w.WorkOrder)
	for _, f := range models.TextFields[2:] {
		values = append(values, w.StringField(f))
	}
	return append(values, w.Latitude, w.Longitude, w.CheckSum)
}

// InsertWorkOrders bulk loads one batch in its own transaction.
func (m *PostgresStore) InsertWorkOrders(ctx context.Context, orders []models.WorkOrder) (int64, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		if rx := tx.Rollback(ctx); rx != nil && !errors.Is(rx, pgx.ErrTxClosed) {
			m.logger.Warn().Err(rx).Msg("error rolling back transaction")
		}
	}()

	copySource := pgx.CopyFromSlice(len(orders), func(i int) ([]any, error) {
		return workOrderValues(&orders[i]), nil
	})

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"work_orders"}, workOrderInsertColumns, copySource)
	if err != nil {
		return 0, fmt.Errorf("unable to copy work orders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}

	m.logger.Debug().Int64("rows", n).Msg("inserted work order batch")
	return n, nil
}

var workOrderSelect = func() string {
	cols := []string{"id", "COALESCE(upload_id, 0)"}
	cols = append(cols, models.TextFields...)
	cols = append(cols, "latitude", "longitude", "COALESCE(checksum, '')", "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ", ") + " FROM work_orders"
}()

func scanWorkOrder(row pgx.Row) (*models.WorkOrder, error) {
	var w models.WorkOrder
	optional := make([]*string, len(models.TextFields)-2)

	dest := []any{&w.ID, &w.UploadID, &w.OrderID, &w.WorkOrder}
	for i := range optional {
		dest = append(dest, &optional[i])
	}
	dest = append(dest, &w.Latitude, &w.Longitude, &w.CheckSum, &w.CreatedAt, &w.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, f := range models.TextFields[2:] {
		w.SetStringField(f, optional[i])
	}
	return &w, nil
}

func (m *PostgresStore) queryWorkOrders(ctx context.Context, query string, args ...any) ([]models.WorkOrder, error) {
	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying work orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.WorkOrder, 0)
	for rows.Next() {
		w, err := scanWorkOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning work order: %w", err)
		}
		orders = append(orders, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over work orders: %w", err)
	}

	return orders, nil
}

// FetchWorkOrders returns one page of matching work orders and the total
// number of matches.
func (m *PostgresStore) FetchWorkOrders(ctx context.Context, filter models.WorkOrderFilter, limit, offset int) ([]models.WorkOrder, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := m.dbpool.QueryRow(ctx, "SELECT COUNT(*) FROM work_orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting work orders: %w", err)
	}
	if total == 0 {
		return []models.WorkOrder{}, 0, nil
	}

	query := fmt.Sprintf("%s%s ORDER BY id LIMIT $%d OFFSET $%d", workOrderSelect, where, len(args)+1, len(args)+2)
	orders, err := m.queryWorkOrders(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (m *PostgresStore) AllWorkOrders(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, error) {
	where, args := buildWhere(filter)
	return m.queryWorkOrders(ctx, workOrderSelect+where+" ORDER BY id", args...)
}

func (m *PostgresStore) GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error) {
	w, err := scanWorkOrder(m.dbpool.QueryRow(ctx, workOrderSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding work order %d: %w", id, err)
	}
	return w, nil
}

// UpdateWorkOrderField sets one whitelisted column and returns the updated row.
func (m *PostgresStore) UpdateWorkOrderField(ctx context.Context, id int64, field string, value *string) (*models.WorkOrder, error) {
	if !EditableFields[field] {
		return nil, fmt.Errorf("%q: %w", field, ErrFieldNotEditable)
	}
	if value == nil && requiredFields[field] {
		return nil, fmt.Errorf("%q cannot be empty: %w", field, ErrFieldNotEditable)
	}

	query := fmt.Sprintf(`UPDATE work_orders SET %s = $1, updated_at = now() WHERE id = $2`,
		pgx.Identifier{field}.Sanitize())
	tag, err := m.dbpool.Exec(ctx, query, value, id)
	if err != nil {
		return nil, fmt.Errorf("error updating work order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	return m.GetWorkOrder(ctx, id)
}

// PurgeWorkOrders is the admin bulk delete. It is the only hard delete of
// work orders.
func (m *PostgresStore) PurgeWorkOrders(ctx context.Context) (int64, error) {
	tag, err := m.dbpool.Exec(ctx, `DELETE FROM work_orders;`)
	if err != nil {
		return 0, fmt.Errorf("error purging work orders: %w", err)
	}
	m.logger.Warn().Int64("rows", tag.RowsAffected()).Msg("purged work orders")
	return tag.RowsAffected(), nil
}

// ReportRows reads the report projection of work_orders. The MANJA column is
// derived from booking and creation dates.
func (m *PostgresStore) ReportRows(ctx context.Context, filter models.WorkOrderFilter) ([]models.ReportRow, error) {
	where, args := buildWhere(filter)
	query := `
	SELECT order_id, workorder,
		COALESCE(channel, ''), COALESCE(date_created, ''), COALESCE(booking_date, ''),
		COALESCE(service_area, ''), COALESCE(branch, ''), COALESCE(customer_name, ''),
		COALESCE(status_bima, ''), COALESCE(update_lapangan, ''), COALESCE(tinjut, '')
	FROM work_orders` + where + ` ORDER BY id`

	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying report rows: %w", err)
	}
	defer rows.Close()

	report := make([]models.ReportRow, 0)
	for rows.Next() {
		var r models.ReportRow
		if err := rows.Scan(&r.OrderID, &r.WorkOrder, &r.Channel, &r.DateCreated, &r.BookingDate,
			&r.ServiceArea, &r.Branch, &r.CustomerName, &r.StatusBima, &r.UpdateLapangan, &r.Tinjut); err != nil {
			return nil, fmt.Errorf("error scanning report row: %w", err)
		}
		r.Manja = analytics.ManjaCategory(&r.BookingDate, &r.DateCreated)
		report = append(report, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over report rows: %w", err)
	}

	return report, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
