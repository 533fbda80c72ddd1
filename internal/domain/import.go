package domain

import (
	"time"
)

// Row is one loosely-typed parsed record: field name to raw scalar.
type Row map[string]any

// ImportType is the declared type of a tabular upload.
type ImportType string

const (
	ImportCustomers ImportType = "customers"
	ImportProducts  ImportType = "products"
	ImportInvoices  ImportType = "invoices"
)

func (t ImportType) Valid() bool {
	switch t {
	case ImportCustomers, ImportProducts, ImportInvoices:
		return true
	}
	return false
}

// BatchKind classifies a markup batch.
type BatchKind string

const (
	BatchMaster  BatchKind = "MASTER"
	BatchVoucher BatchKind = "VOUCHER"
	// BatchUnknown marks files rejected before classification.
	BatchUnknown BatchKind = "UNKNOWN"
)

type StagingStatus string

const (
	StagingPending   StagingStatus = "pending"
	StagingProcessed StagingStatus = "processed"
)

// StagingImport holds raw rows between upload and sync.
type StagingImport struct {
	ID             string        `json:"id" db:"id"`
	Filename       string        `json:"filename" db:"filename"`
	Source         string        `json:"source" db:"source"`
	Type           ImportType    `json:"type" db:"type"`
	Status         StagingStatus `json:"status" db:"status"`
	RawData        []Row         `json:"raw_data" db:"raw_data"`
	ErrorLog       []RowError    `json:"error_log,omitempty" db:"error_log"`
	ProcessedCount int           `json:"processed_count" db:"processed_count"`
	TotalCount     int           `json:"total_count" db:"total_count"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// GeneralRow marks an error that applies to the whole batch.
const GeneralRow = 0

// RowError records a rejected or skipped row. Row is 1-based and includes
// the header row offset; Ref carries the natural key when known.
type RowError struct {
	Row   int    `json:"row"`
	Ref   string `json:"ref,omitempty"`
	Error string `json:"error"`
	Raw   Row    `json:"raw,omitempty"`
}

// Import meta flag keys.
const (
	MetaIsImporting     = "is_importing"
	MetaFirstImportDone = "first_import_done"
)

type LogStatus string

const (
	LogSuccess LogStatus = "SUCCESS"
	LogPartial LogStatus = "PARTIAL"
	LogFailed  LogStatus = "FAILED"
)

// ImportLog is the audit row written for every markup import.
type ImportLog struct {
	ID            int64     `json:"id" db:"id"`
	SessionID     string    `json:"session_id" db:"session_id"`
	ImportType    BatchKind `json:"import_type" db:"import_type"`
	Status        LogStatus `json:"status" db:"status"`
	TotalRows     int       `json:"total_rows" db:"total_rows"`
	ProcessedRows int       `json:"processed_rows" db:"processed_rows"`
	ErrorSummary  *string   `json:"error_summary,omitempty" db:"error_summary"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ImportStats is returned for every markup import.
type ImportStats struct {
	Total          int  `json:"total"`
	Processed      int  `json:"processed"`
	Groups         *int `json:"groups,omitempty"`
	Ledgers        *int `json:"ledgers,omitempty"`
	SkippedInvalid int  `json:"skippedInvalid"`
	Duplicates     int  `json:"duplicates"`
	Errors         int  `json:"errors"`
}

// LogStatus derives the audit status from the counters.
func (s ImportStats) LogStatus() LogStatus {
	switch {
	case s.Errors == 0:
		return LogSuccess
	case s.Processed+s.Duplicates > 0:
		return LogPartial
	default:
		return LogFailed
	}
}

type MarkupResult struct {
	Message   string      `json:"message"`
	Type      BatchKind   `json:"type"`
	SessionID string      `json:"sessionId"`
	Stats     ImportStats `json:"stats"`
}

type StageResult struct {
	Message   string `json:"message"`
	ImportID  string `json:"importId"`
	TotalRows int    `json:"totalRows"`
	Preview   []Row  `json:"preview"`
}

type SyncResult struct {
	Message          string     `json:"message"`
	Processed        int        `json:"processed"`
	Errors           int        `json:"errors"`
	AlreadyProcessed bool       `json:"alreadyProcessed,omitempty"`
	ErrorLog         []RowError `json:"errorLog,omitempty"`
}
