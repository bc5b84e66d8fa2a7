// Package mocks holds testify mocks of the database interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

// MockStore is a mock implementation of database.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateTables(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) CreateIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) InsertUpload(ctx context.Context, upload *models.UploadAudit) (int64, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) UpdateUploadStatus(ctx context.Context, uploadID int64, status models.UploadStatus, insertedRows int, errMsg *string) error {
	args := m.Called(ctx, uploadID, status, insertedRows, errMsg)
	return args.Error(0)
}

func (m *MockStore) FindCompletedUploadByChecksum(ctx context.Context, checksum string) (*models.UploadAudit, error) {
	args := m.Called(ctx, checksum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UploadAudit), args.Error(1)
}

func (m *MockStore) ListUploads(ctx context.Context, limit int) ([]models.UploadAudit, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UploadAudit), args.Error(1)
}

func (m *MockStore) InsertWorkOrders(ctx context.Context, orders []models.WorkOrder) (int64, error) {
	// Copy so expectations see the batch as it was passed, not after reuse.
	batch := append([]models.WorkOrder(nil), orders...)
	args := m.Called(ctx, batch)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) FetchWorkOrders(ctx context.Context, filter models.WorkOrderFilter, limit, offset int) ([]models.WorkOrder, int, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.WorkOrder), args.Int(1), args.Error(2)
}

func (m *MockStore) AllWorkOrders(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrder, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkOrder), args.Error(1)
}

func (m *MockStore) GetWorkOrder(ctx context.Context, id int64) (*models.WorkOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockStore) UpdateWorkOrderField(ctx context.Context, id int64, field string, value *string) (*models.WorkOrder, error) {
	args := m.Called(ctx, id, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkOrder), args.Error(1)
}

func (m *MockStore) PurgeWorkOrders(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ReportRows(ctx context.Context, filter models.WorkOrderFilter) ([]models.ReportRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReportRow), args.Error(1)
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStore) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
