package database

import (
	"context"
	"errors"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("record already exists")
	ErrFieldNotEditable = errors.New("field cannot be edited")
	ErrUploadFinalized  = errors.New("upload already in a terminal state")
)

// Store is the hosted relational store. Every call is a single round trip
// or a single transaction; callers issue them sequentially.
type Store interface {
	CreateTables(ctx context.Context) error
	CreateIndexes(ctx context.Context) error
	Ping(ctx context.Context) error

	InsertUpload(ctx context.Context, upload *models.UploadAudit) (int64, error)
	UpdateUploadStatus(ctx context.Context, uploadID int64, status models.UploadStatus, insertedRows int, errMsg *string) error
	FindCompletedUploadByChecksum(ctx context.Context, checksum string) (*models.UploadAudit, error)
	ListUploads(ctx context.Context, limit int) ([]models.UploadAudit, error)

	InsertWorkOrders(ctx context.Context, orders []models.WorkOrder) (int64, error)
	FetchWorkOrders(ctx context.Context, filter models.WorkOrderFilter, limit, offset int) ([]models.WorkOrder, int, error)
	AllWorkOrders(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error)
	UpdateWorkOrderField(ctx context.Context, id int64, field string, value *string) (*models.WorkOrder, error)
	PurgeWorkOrders(ctx context.Context) (int64, error)
	ReportRows(ctx context.Context, filter models.WorkOrderFilter) ([]models.ReportRow, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

// EditableFields are the work order columns an admin may change one at a time.
var EditableFields = func() map[string]bool {
	out := make(map[string]bool, len(models.TextFields))
	for _, f := range models.TextFields {
		out[f] = true
	}
	return out
}()

// requiredFields cannot be set to NULL.
var requiredFields = map[string]bool{
	models.FieldOrderID:   true,
	models.FieldWorkOrder: true,
}
