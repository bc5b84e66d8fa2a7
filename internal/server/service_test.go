package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tarisrizki/provisioning-telkom/internal/auth"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/database/mocks"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/ingestion"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/xuri/excelize/v2"
)

// MockIngester is a mock implementation of the Ingester interface.
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Execute(ctx context.Context, upload ingestion.Upload, opts ingestion.Options) (*ingestion.Result, error) {
	body, _ := io.ReadAll(upload.Reader)
	args := m.Called(upload.Name, string(body), upload.Heavy, opts.Force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingestion.Result), args.Error(1)
}

type staticFallback struct {
	orders []models.WorkOrder
}

func (f staticFallback) LoadWorkOrders(context.Context, string) ([]models.WorkOrder, error) {
	return f.orders, nil
}

type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (c *countingMetrics) IncCounter(name string, delta float64, labels metrics.Labels) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = map[string]float64{}
	}
	c.counters[metrics.Key(name, labels)] += delta
}

func (c *countingMetrics) count(name string, labels metrics.Labels) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[metrics.Key(name, labels)]
}

func (c *countingMetrics) ObserveHistogram(string, float64, metrics.Labels) {}
func (c *countingMetrics) Close() error                                     { return nil }

type testServer struct {
	handler  http.Handler
	store    *mocks.MockStore
	ingester *MockIngester
	codec    *auth.SessionCodec
	bus      *events.Bus
}

func newTestServer(t *testing.T, configure ...func(*Deps)) *testServer {
	t.Helper()
	codec, err := auth.NewSessionCodec("test-secret-0123456789", time.Hour, false)
	require.NoError(t, err)

	ts := &testServer{
		store:    new(mocks.MockStore),
		ingester: new(MockIngester),
		codec:    codec,
		bus:      events.NewBus(),
	}
	deps := Deps{
		Store:     ts.store,
		Ingester:  ts.ingester,
		Sessions:  codec,
		Dashboard: NewDashboard(ts.store, zerolog.Nop(), nil),
		Bus:       ts.bus,
		Logger:    zerolog.Nop(),
		PageSize:  50,
	}
	for _, fn := range configure {
		fn(&deps)
	}
	ts.handler = SetupRoutes(NewService(deps), auth.NewGuard(codec, zerolog.Nop()))
	return ts
}

func (ts *testServer) cookie(t *testing.T, id string, role models.Role) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := ts.codec.Issue(rec, &models.User{ID: id, Username: id, Role: role})
	require.NoError(t, err)
	return rec.Result().Cookies()[0]
}

func (ts *testServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func strPtr(s string) *string { return &s }

func TestHealthz(t *testing.T) {
	t.Run("should report ok when the store answers", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("Ping", mock.Anything).Return(nil)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("should report unavailable when the store does not answer", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("Ping", mock.Anything).Return(errors.New("refused"))

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "refused")
	})
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)

	t.Run("should set the session cookie for valid credentials", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("GetUserByUsername", mock.Anything, "ana").
			Return(&models.User{ID: "u1", Username: "ana", PasswordHash: hash, Role: models.RoleAdmin, Status: models.UserActive}, nil)

		rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/login", jsonBody(t, loginRequest{Username: "ana", Password: "correct-horse"})), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.CookieName, cookies[0].Name)
		assert.NotContains(t, rec.Body.String(), hash, "Expect: the password hash is never serialized")
	})

	t.Run("should answer 401 to a wrong password", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("GetUserByUsername", mock.Anything, "ana").
			Return(&models.User{ID: "u1", Username: "ana", PasswordHash: hash, Status: models.UserActive}, nil)

		rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/login", jsonBody(t, loginRequest{Username: "ana", Password: "nope-nope"})), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("should answer 403 to an inactive user", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("GetUserByUsername", mock.Anything, "ana").
			Return(&models.User{ID: "u1", Username: "ana", PasswordHash: hash, Status: models.UserInactive}, nil)

		rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/login", jsonBody(t, loginRequest{Username: "ana", Password: "correct-horse"})), nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("should reject a malformed body", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{")), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/logout", nil), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestListWorkOrders(t *testing.T) {
	t.Run("should require a session", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders", nil), nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("should page through the store with the query filter", func(t *testing.T) {
		ts := newTestServer(t)
		filter := models.WorkOrderFilter{Channel: "MYIH", Month: "2024-02"}
		rows := []models.WorkOrder{{ID: 51, OrderID: "AO51", WorkOrder: "WO51"}}
		ts.store.On("FetchWorkOrders", mock.Anything, filter, 50, 50).Return(rows, 120, nil)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders?page=2&channel=MYIH&month=2024-02", nil), ts.cookie(t, "u1", models.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[map[string]any](t, rec)
		assert.Equal(t, float64(120), page["total_count"])
		assert.Equal(t, float64(2), page["current_page"])
		assert.Equal(t, float64(3), page["total_pages"])
		assert.Equal(t, true, page["has_next_page"])
		assert.Equal(t, true, page["has_previous_page"])
		ts.store.AssertExpectations(t)
	})

	t.Run("should count refetches by the trigger the client reports", func(t *testing.T) {
		recorder := &countingMetrics{}
		ts := newTestServer(t, func(d *Deps) { d.Metrics = recorder })
		ts.store.On("FetchWorkOrders", mock.Anything, models.WorkOrderFilter{}, 50, 0).Return([]models.WorkOrder{}, 0, nil)
		cookie := ts.cookie(t, "u1", models.RoleUser)

		for _, trigger := range []string{"focus", "visible", "focus", ""} {
			rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders?trigger="+trigger, nil), cookie)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		assert.Equal(t, float64(2), recorder.count(metrics.WorkOrderPagesTotal, metrics.Labels{"trigger": "focus", "source": "store"}))
		assert.Equal(t, float64(1), recorder.count(metrics.WorkOrderPagesTotal, metrics.Labels{"trigger": "visible", "source": "store"}))
		assert.Equal(t, float64(1), recorder.count(metrics.WorkOrderPagesTotal, metrics.Labels{"trigger": "navigate", "source": "store"}))
	})

	t.Run("should reject an unknown trigger", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders?trigger=scroll", nil), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject a bad page number", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders?page=zero", nil), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject a bad month", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders?month=Feb", nil), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should hide store errors behind a generic message", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("FetchWorkOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 0, errors.New("pq: connection refused"))

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders", nil), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"failed to load work orders"}`, rec.Body.String())
	})

	t.Run("should serve cached work orders when the store fails", func(t *testing.T) {
		ts := newTestServer(t, func(d *Deps) {
			d.Fallback = staticFallback{orders: []models.WorkOrder{{OrderID: "AO1", WorkOrder: "WO1"}}}
			d.FallbackKey = "dataset"
		})
		ts.store.On("FetchWorkOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, 0, errors.New("offline"))

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders", nil), ts.cookie(t, "u1", models.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[map[string]any](t, rec)
		assert.Equal(t, true, page["from_cache"])
		assert.Equal(t, float64(1), page["total_count"])
	})
}

func TestGetWorkOrder(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.cookie(t, "u1", models.RoleUser)
	ts.store.On("GetWorkOrder", mock.Anything, int64(7)).Return(&models.WorkOrder{ID: 7, OrderID: "AO7", WorkOrder: "WO7"}, nil)
	ts.store.On("GetWorkOrder", mock.Anything, int64(8)).Return(nil, database.ErrNotFound)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders/7", nil), cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AO7", decode[models.WorkOrder](t, rec).OrderID)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders/8", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/work-orders/abc", nil), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchWorkOrder(t *testing.T) {
	t.Run("should forbid non-admins", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodPatch, "/api/work-orders/1", jsonBody(t, fieldUpdate{Field: "channel"})), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		ts.store.AssertNotCalled(t, "UpdateWorkOrderField", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should update one field and announce the change", func(t *testing.T) {
		ts := newTestServer(t)
		var changed int
		ts.bus.Subscribe(events.TopicWorkOrdersChanged, func(events.Event) { changed++ })
		value := "SC-ONE"
		ts.store.On("UpdateWorkOrderField", mock.Anything, int64(1), "channel", &value).
			Return(&models.WorkOrder{ID: 1, OrderID: "AO1", WorkOrder: "WO1", Channel: &value}, nil)

		rec := ts.do(httptest.NewRequest(http.MethodPatch, "/api/work-orders/1", jsonBody(t, fieldUpdate{Field: "channel", Value: &value})), ts.cookie(t, "a1", models.RoleAdmin))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, changed)
	})

	t.Run("should reject a field that cannot be edited", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("UpdateWorkOrderField", mock.Anything, int64(1), "checksum", mock.Anything).Return(nil, database.ErrFieldNotEditable)

		rec := ts.do(httptest.NewRequest(http.MethodPatch, "/api/work-orders/1", jsonBody(t, fieldUpdate{Field: "checksum", Value: strPtr("x")})), ts.cookie(t, "a1", models.RoleAdmin))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPurgeWorkOrders(t *testing.T) {
	ts := newTestServer(t)
	ts.store.On("PurgeWorkOrders", mock.Anything).Return(int64(42), nil)

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/api/work-orders", nil), ts.cookie(t, "a1", models.RoleAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":42}`, rec.Body.String())
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	const content = "Order ID,Work Order\nAO1,WO1\n"

	upload := func(ts *testServer, t *testing.T, fields map[string]string) *httptest.ResponseRecorder {
		body, contentType := multipartUpload(t, "orders.csv", content, fields)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)
		return ts.do(req, ts.cookie(t, "u1", models.RoleUser))
	}

	t.Run("should ingest the file and return the result", func(t *testing.T) {
		ts := newTestServer(t)
		result := &ingestion.Result{RequestID: "r1", Filename: "orders.csv", Rows: 1, Persist: ingestion.ProcessResult{Success: true, InsertedCount: 1}}
		ts.ingester.On("Execute", "orders.csv", content, true, false).Return(result, nil)

		rec := upload(ts, t, map[string]string{"heavy": "true"})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		got := decode[ingestion.Result](t, rec)
		assert.Equal(t, 1, got.Persist.InsertedCount)
		ts.ingester.AssertExpectations(t)
	})

	t.Run("should report missing columns as unprocessable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ingester.On("Execute", mock.Anything, mock.Anything, false, false).
			Return(&ingestion.Result{}, &models.ValidationError{Kind: models.MissingColumns, Message: "missing required columns", Missing: []string{"workorder"}})

		rec := upload(ts, t, nil)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		got := decode[map[string]any](t, rec)
		assert.Equal(t, "missing_columns", got["kind"])
		assert.Equal(t, []any{"workorder"}, got["missing"])
	})

	t.Run("should report a duplicate as a conflict", func(t *testing.T) {
		ts := newTestServer(t)
		ts.ingester.On("Execute", mock.Anything, mock.Anything, false, true).
			Return(nil, &models.ValidationError{Kind: models.DuplicateFile, Message: "already uploaded"})

		rec := upload(ts, t, map[string]string{"force": "true"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("should hide persistence errors but return the partial result", func(t *testing.T) {
		ts := newTestServer(t)
		partial := &ingestion.Result{Persist: ingestion.ProcessResult{InsertedCount: 100}}
		ts.ingester.On("Execute", mock.Anything, mock.Anything, false, false).Return(partial, errors.New("batch failed: timeout"))

		rec := upload(ts, t, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "timeout")
		assert.Contains(t, rec.Body.String(), `"inserted_count":100`)
	})

	t.Run("should reject a request without a file", func(t *testing.T) {
		ts := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("plain"))
		req.Header.Set("Content-Type", "text/plain")

		rec := ts.do(req, ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.ingester.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should reject a body over the upload limit", func(t *testing.T) {
		ts := newTestServer(t, func(d *Deps) { d.MaxUploadBytes = 1 })
		body, contentType := multipartUpload(t, "orders.csv", strings.Repeat("x", 2<<20), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", contentType)

		rec := ts.do(req, ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestListUploads(t *testing.T) {
	ts := newTestServer(t)
	ts.store.On("ListUploads", mock.Anything, 5).Return([]models.UploadAudit{{ID: 1, Filename: "a.csv", Status: models.UploadCompleted}}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/uploads?limit=5", nil), ts.cookie(t, "u1", models.RoleUser))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.UploadAudit](t, rec), 1)
}

func sampleOrders() []models.WorkOrder {
	return []models.WorkOrder{
		{OrderID: "AO1", WorkOrder: "WO1", Channel: strPtr("MYIH"), DateCreated: strPtr("2024-01-05")},
		{OrderID: "AO2", WorkOrder: "WO2", Channel: strPtr("MYIH"), DateCreated: strPtr("2024-02-05")},
		{OrderID: "AO3", WorkOrder: "WO3", Channel: strPtr("SC-ONE"), DateCreated: strPtr("2024-02-06")},
	}
}

func TestStats(t *testing.T) {
	t.Run("should serve the cached snapshot for unfiltered requests", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("AllWorkOrders", mock.Anything, models.WorkOrderFilter{}).Return(sampleOrders(), nil).Once()
		cookie := ts.cookie(t, "u1", models.RoleUser)

		first := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil), cookie)
		second := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil), cookie)

		require.Equal(t, http.StatusOK, first.Code)
		require.Equal(t, http.StatusOK, second.Code)
		stats := decode[map[string]any](t, second)
		assert.Equal(t, float64(3), stats["total"])
		assert.Contains(t, stats, "refreshed_at")
		ts.store.AssertNumberOfCalls(t, "AllWorkOrders", 1)
	})

	t.Run("should rescan for a filtered request", func(t *testing.T) {
		ts := newTestServer(t)
		filter := models.WorkOrderFilter{Channel: "MYIH"}
		ts.store.On("AllWorkOrders", mock.Anything, filter).Return(sampleOrders()[:2], nil)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats?channel=MYIH", nil), ts.cookie(t, "u1", models.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), decode[map[string]any](t, rec)["total"])
	})

	t.Run("should return the top items of a dimension", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("AllWorkOrders", mock.Anything, models.WorkOrderFilter{}).Return(sampleOrders(), nil)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats/top?dimension=channel&n=1", nil), ts.cookie(t, "u1", models.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"dimension":"channel","items":[{"label":"MYIH","count":2}]}`, rec.Body.String())
	})

	t.Run("should reject an unknown dimension", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats/top?dimension=colour", nil), ts.cookie(t, "u1", models.RoleUser))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should return the monthly trend", func(t *testing.T) {
		ts := newTestServer(t)
		ts.store.On("AllWorkOrders", mock.Anything, models.WorkOrderFilter{}).Return(sampleOrders(), nil)

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/stats/monthly", nil), ts.cookie(t, "u1", models.RoleUser))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"month":"2024-01","count":1},{"month":"2024-02","count":2}]`, rec.Body.String())
	})
}

func TestExportReport(t *testing.T) {
	ts := newTestServer(t)
	ts.store.On("ReportRows", mock.Anything, models.WorkOrderFilter{Branch: "Jakarta"}).
		Return([]models.ReportRow{{OrderID: "AO1", WorkOrder: "WO1", Branch: "Jakarta", Manja: "Normal"}}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/reports/export?branch=Jakarta", nil), ts.cookie(t, "u1", models.RoleUser))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Report")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
