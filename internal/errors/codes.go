// Package errors provides structured error handling for the search service.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (metadata store, vector index files)
//   - 3XX: Network errors (embedder, feeds, timeouts)
//   - 4XX: Validation errors (queries, ids, dates)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates metadata store and index file errors.
	CategoryStorage Category = "STORAGE"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorage        = "ERR_201_STORAGE"
	ErrCodeCorruptIndex   = "ERR_202_CORRUPT_INDEX"
	ErrCodeIndexNotLoaded = "ERR_203_INDEX_NOT_LOADED"

	// Network errors (300-399)
	ErrCodeTimeout                = "ERR_301_TIMEOUT"
	ErrCodeVectorStoreUnavailable = "ERR_302_VECTOR_STORE_UNAVAILABLE"
	ErrCodeFeedFetch              = "ERR_303_FEED_FETCH"
	ErrCodeEmbeddingFailed        = "ERR_304_EMBEDDING_FAILED"

	// Validation errors (400-499)
	ErrCodeMalformedID  = "ERR_401_MALFORMED_ID"
	ErrCodeQueryTooLong = "ERR_402_QUERY_TOO_LONG"
	ErrCodeInvalidDate  = "ERR_403_INVALID_DATE"
	ErrCodeInvalidInput = "ERR_404_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Search pipeline errors are never retried; feed fetching and embedding
// during ingestion may be.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeFeedFetch, ErrCodeEmbeddingFailed:
		return true
	default:
		return false
	}
}
