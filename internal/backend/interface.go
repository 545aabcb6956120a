package backend

import (
	"context"
	"time"

	"andamento/internal/sources"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// PingFunc reports backend readiness
type PingFunc func(ctx context.Context) error

// BackendResult contains the source and its lifecycle hooks. Cleanup and
// Ping may be nil.
type BackendResult struct {
	Source  sources.TransactionSource
	Cleanup CleanupFunc
	Ping    PingFunc
}

// Close runs Cleanup if set
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Ready runs Ping if set
func (r *BackendResult) Ready(ctx context.Context) error {
	if r == nil || r.Ping == nil {
		return nil
	}
	return r.Ping(ctx)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Location anchors zone-less dates in file and sheet sources
	Location *time.Location

	// Memory backend
	DataDirectory string

	// SQLite
	SQLiteDBPath string

	// Postgres
	DatabaseURL string

	// Google Sheets
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
