// Package errors provides structured error handling for Treedex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Schema and registration errors
//   - 2XX: Storage errors
//   - 4XX: Query and validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategorySchema indicates catalog schema and registration errors.
	CategorySchema Category = "SCHEMA"
	// CategoryStorage indicates persistence-layer errors.
	CategoryStorage Category = "STORAGE"
	// CategoryQuery indicates query construction and validation errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Schema errors (100-199). These indicate the declarative schema is
	// wrong and must stop startup.
	ErrCodeDuplicateCatalogType = "ERR_101_DUPLICATE_CATALOG_TYPE"
	ErrCodeUnknownCatalogType   = "ERR_102_UNKNOWN_CATALOG_TYPE"
	ErrCodeDuplicateIndexName   = "ERR_103_DUPLICATE_INDEX_NAME"
	ErrCodeIndexNotFound        = "ERR_104_INDEX_NOT_FOUND"
	ErrCodeInvalidIndexSpec     = "ERR_105_INVALID_INDEX_SPEC"

	// Storage errors (200-299)
	ErrCodeStoreOpen       = "ERR_201_STORE_OPEN"
	ErrCodeCatalogNotFound = "ERR_202_CATALOG_NOT_FOUND"
	ErrCodeSnapshotCorrupt = "ERR_203_SNAPSHOT_CORRUPT"

	// Query and validation errors (400-499)
	ErrCodeTypeMismatch = "ERR_401_TYPE_MISMATCH"
	ErrCodeInvalidQuery = "ERR_402_INVALID_QUERY"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeDiscriminatorFailed = "ERR_502_DISCRIMINATOR_FAILED"
	ErrCodeSyncFailed          = "ERR_503_SYNC_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract the leading digit (e.g. "1" from "ERR_101_...")
	switch code[4] {
	case '1':
		return CategorySchema
	case '2':
		return CategoryStorage
	case '4':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Structural misconfiguration is never silently recovered.
	switch code {
	case ErrCodeDuplicateCatalogType, ErrCodeUnknownCatalogType,
		ErrCodeDuplicateIndexName, ErrCodeInvalidIndexSpec,
		ErrCodeSnapshotCorrupt:
		return SeverityFatal
	}

	// One bad discriminator must not halt the other indexes.
	if code == ErrCodeDiscriminatorFailed {
		return SeverityWarning
	}

	return SeverityError
}
