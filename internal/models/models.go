package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RawTable is the in-memory result of parsing one uploaded file. Every row has
// exactly len(Headers) cells.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func (t *RawTable) ColumnCount() int {
	return len(t.Headers)
}

func (t *RawTable) RowCount() int {
	return len(t.Rows)
}

// NotFound is the ColumnMapping sentinel for a field with no matching header.
const NotFound = -1

// ColumnMapping maps a logical field name to an index into RawTable.Headers.
type ColumnMapping map[string]int

// Index returns the header index for field, or NotFound.
func (m ColumnMapping) Index(field string) int {
	if idx, ok := m[field]; ok {
		return idx
	}
	return NotFound
}

func (m ColumnMapping) Has(field string) bool {
	return m.Index(field) != NotFound
}

// DateIndex and StatusIndex are the two lookups the dashboard widgets use most.
func (m ColumnMapping) DateIndex() int   { return m.Index(FieldDateCreated) }
func (m ColumnMapping) StatusIndex() int { return m.Index(FieldStatusBima) }

// Logical work order fields, named after the hosted table columns.
const (
	FieldOrderID        = "order_id"
	FieldChannel        = "channel"
	FieldDateCreated    = "date_created"
	FieldWorkOrder      = "workorder"
	FieldServiceArea    = "service_area"
	FieldBranch         = "branch"
	FieldUpdateLapangan = "update_lapangan"
	FieldSymptom        = "symptom"
	FieldEscalation     = "tinjut"
	FieldStatusBima     = "status_bima"
	FieldBookingDate    = "booking_date"
	FieldStatusDate     = "status_date"
	FieldDateModified   = "date_modified"
	FieldCustomerName   = "customer_name"
	FieldAddress        = "address"
	FieldContactPhone   = "contact_phone"
	FieldSTO            = "sto"
	FieldWitel          = "witel"
	FieldServiceNo      = "service_no"
	FieldPackageName    = "package_name"
	FieldTechnician     = "technician"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
)

// TextFields lists every textual WorkOrder field in storage column order.
var TextFields = []string{
	FieldOrderID, FieldWorkOrder, FieldChannel, FieldDateCreated, FieldServiceArea,
	FieldBranch, FieldUpdateLapangan, FieldSymptom, FieldEscalation, FieldStatusBima,
	FieldBookingDate, FieldStatusDate, FieldDateModified, FieldCustomerName, FieldAddress,
	FieldContactPhone, FieldSTO, FieldWitel, FieldServiceNo, FieldPackageName, FieldTechnician,
}

// DateFields are checked, with OR semantics, by the month filter.
var DateFields = []string{FieldDateCreated, FieldBookingDate, FieldStatusDate, FieldDateModified}

// WorkOrder is one provisioning order as stored in the work_orders table.
// Optional fields are nil when the source file had no value for them. Dates
// are kept exactly as they appeared in the source file.
type WorkOrder struct {
	ID             int64     `json:"id"`
	UploadID       int64     `json:"upload_id,omitempty"`
	OrderID        string    `json:"order_id"`
	WorkOrder      string    `json:"workorder"`
	Channel        *string   `json:"channel,omitempty"`
	DateCreated    *string   `json:"date_created,omitempty"`
	ServiceArea    *string   `json:"service_area,omitempty"`
	Branch         *string   `json:"branch,omitempty"`
	UpdateLapangan *string   `json:"update_lapangan,omitempty"`
	Symptom        *string   `json:"symptom,omitempty"`
	Tinjut         *string   `json:"tinjut,omitempty"`
	StatusBima     *string   `json:"status_bima,omitempty"`
	BookingDate    *string   `json:"booking_date,omitempty"`
	StatusDate     *string   `json:"status_date,omitempty"`
	DateModified   *string   `json:"date_modified,omitempty"`
	CustomerName   *string   `json:"customer_name,omitempty"`
	Address        *string   `json:"address,omitempty"`
	ContactPhone   *string   `json:"contact_phone,omitempty"`
	STO            *string   `json:"sto,omitempty"`
	Witel          *string   `json:"witel,omitempty"`
	ServiceNo      *string   `json:"service_no,omitempty"`
	PackageName    *string   `json:"package_name,omitempty"`
	Technician     *string   `json:"technician,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	CheckSum       string    `json:"checksum,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// StringField returns the value of a textual logical field, or nil when the
// field is unset or unknown. Required fields are never nil.
func (w *WorkOrder) StringField(field string) *string {
	switch field {
	case FieldOrderID:
		return &w.OrderID
	case FieldWorkOrder:
		return &w.WorkOrder
	case FieldChannel:
		return w.Channel
	case FieldDateCreated:
		return w.DateCreated
	case FieldServiceArea:
		return w.ServiceArea
	case FieldBranch:
		return w.Branch
	case FieldUpdateLapangan:
		return w.UpdateLapangan
	case FieldSymptom:
		return w.Symptom
	case FieldEscalation:
		return w.Tinjut
	case FieldStatusBima:
		return w.StatusBima
	case FieldBookingDate:
		return w.BookingDate
	case FieldStatusDate:
		return w.StatusDate
	case FieldDateModified:
		return w.DateModified
	case FieldCustomerName:
		return w.CustomerName
	case FieldAddress:
		return w.Address
	case FieldContactPhone:
		return w.ContactPhone
	case FieldSTO:
		return w.STO
	case FieldWitel:
		return w.Witel
	case FieldServiceNo:
		return w.ServiceNo
	case FieldPackageName:
		return w.PackageName
	case FieldTechnician:
		return w.Technician
	}
	return nil
}

// SetStringField assigns a textual logical field. It reports false for
// unknown or non-textual fields.
func (w *WorkOrder) SetStringField(field string, value *string) bool {
	switch field {
	case FieldOrderID:
		if value != nil {
			w.OrderID = *value
		}
	case FieldWorkOrder:
		if value != nil {
			w.WorkOrder = *value
		}
	case FieldChannel:
		w.Channel = value
	case FieldDateCreated:
		w.DateCreated = value
	case FieldServiceArea:
		w.ServiceArea = value
	case FieldBranch:
		w.Branch = value
	case FieldUpdateLapangan:
		w.UpdateLapangan = value
	case FieldSymptom:
		w.Symptom = value
	case FieldEscalation:
		w.Tinjut = value
	case FieldStatusBima:
		w.StatusBima = value
	case FieldBookingDate:
		w.BookingDate = value
	case FieldStatusDate:
		w.StatusDate = value
	case FieldDateModified:
		w.DateModified = value
	case FieldCustomerName:
		w.CustomerName = value
	case FieldAddress:
		w.Address = value
	case FieldContactPhone:
		w.ContactPhone = value
	case FieldSTO:
		w.STO = value
	case FieldWitel:
		w.Witel = value
	case FieldServiceNo:
		w.ServiceNo = value
	case FieldPackageName:
		w.PackageName = value
	case FieldTechnician:
		w.Technician = value
	default:
		return false
	}
	return true
}

// WorkOrderFilter narrows work order reads. Empty fields do not filter.
// From, To and Month compare against the leading YYYY-MM-DD of stored dates.
type WorkOrderFilter struct {
	Channel     string `json:"channel,omitempty"`
	Branch      string `json:"branch,omitempty"`
	ServiceArea string `json:"service_area,omitempty"`
	Status      string `json:"status,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Month       string `json:"month,omitempty"`
}

// MonthRange expands Month (YYYY-MM) into an inclusive day range.
func (f WorkOrderFilter) MonthRange() (first, last string, ok bool) {
	if f.Month == "" {
		return "", "", false
	}
	start, err := time.Parse("2006-01", f.Month)
	if err != nil {
		return "", "", false
	}
	end := start.AddDate(0, 1, -1)
	return start.Format("2006-01-02"), end.Format("2006-01-02"), true
}

// Validate rejects malformed date bounds.
func (f WorkOrderFilter) Validate() error {
	for name, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("invalid %s date %q, use YYYY-MM-DD", name, v)
		}
	}
	if f.Month != "" {
		if _, _, ok := f.MonthRange(); !ok {
			return fmt.Errorf("invalid month %q, use YYYY-MM", f.Month)
		}
	}
	return nil
}

// ReportRow is the projection the report/detail views read. It is a query over
// work_orders, not a separate table.
type ReportRow struct {
	OrderID        string `json:"order_id"`
	WorkOrder      string `json:"workorder"`
	Channel        string `json:"channel"`
	DateCreated    string `json:"date_created"`
	BookingDate    string `json:"booking_date"`
	ServiceArea    string `json:"service_area"`
	Branch         string `json:"branch"`
	CustomerName   string `json:"customer_name"`
	StatusBima     string `json:"status_bima"`
	UpdateLapangan string `json:"update_lapangan"`
	Tinjut         string `json:"tinjut"`
	Manja          string `json:"manja"`
}

type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

func (s UploadStatus) IsTerminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// UploadAudit records one ingestion run.
type UploadAudit struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	TotalRows    int          `json:"total_rows"`
	TotalColumns int          `json:"total_columns"`
	UploadDate   time.Time    `json:"upload_date"`
	Status       UploadStatus `json:"status"`
	CheckSum     string       `json:"checksum,omitempty"`
	InsertedRows int          `json:"inserted_rows"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Progress is reported between parse chunks.
type Progress struct {
	RequestID      string `json:"request_id"`
	BytesProcessed int64  `json:"bytes_processed"`
	RowsProcessed  int    `json:"rows_processed"`
	CurrentChunk   int    `json:"current_chunk"`
	TotalChunks    int    `json:"total_chunks"`
}

type AppError struct {
	UploadID int64
	Message  string
	Err      error
	Row      []string
}

func (e *AppError) Error() string {
	var rowDetails string
	if e.Row != nil {
		rowJSON, err := json.Marshal(e.Row)
		if err != nil {
			rowDetails = "failed to marshal row to JSON"
		} else {
			rowDetails = string(rowJSON)
		}
	}

	if e.Err != nil {
		if rowDetails != "" {
			return fmt.Sprintf("UploadID %d: %s - %v - Row: %s", e.UploadID, e.Message, e.Err, rowDetails)
		}
		return fmt.Sprintf("UploadID %d: %s - %v", e.UploadID, e.Message, e.Err)
	}

	if rowDetails != "" {
		return fmt.Sprintf("UploadID %d: %s - Row: %s", e.UploadID, e.Message, rowDetails)
	}

	return fmt.Sprintf("UploadID %d: %s", e.UploadID, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

var (
	ErrNoContent = errors.New("no non-blank lines")
	ErrNoHeaders = errors.New("header line has no columns")
)

// ParseError is returned when text cannot be turned into a RawTable. Err is
// ErrNoContent or ErrNoHeaders for those two cases.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type ValidationKind string

const (
	InvalidFileType ValidationKind = "invalid_type"
	FileTooLarge    ValidationKind = "too_large"
	EmptyFile       ValidationKind = "empty_file"
	NoHeaders       ValidationKind = "no_headers"
	MissingColumns  ValidationKind = "missing_columns"
	Cancelled       ValidationKind = "cancelled"
	WorkerFailed    ValidationKind = "worker_failed"
	DuplicateFile   ValidationKind = "duplicate_file"
)

// ValidationError is an operator-facing rejection of an upload. It never has
// side effects on the store.
type ValidationError struct {
	Kind    ValidationKind
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Missing, ", "))
	}
	return e.Message
}
