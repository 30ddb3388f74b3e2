// Package errors provides structured error handling for Caseflow.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and storage errors
//   - 3XX: Collaborator errors (generation, embedding, classification)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index and metadata storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryCollaborator indicates external collaborator errors.
	CategoryCollaborator Category = "COLLABORATOR"
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
	// Config errors (100-199). Fatal at startup, never per-request.
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeZeroDimensions = "ERR_103_ZERO_DIMENSIONS"

	// Storage errors (200-299)
	ErrCodeCorruptIndex     = "ERR_201_CORRUPT_INDEX"
	ErrCodeIndexUnavailable = "ERR_202_INDEX_UNAVAILABLE"
	ErrCodeMetadataStore    = "ERR_203_METADATA_STORE"

	// Collaborator errors (300-399). Transient unless noted.
	ErrCodeGenerateTimeout   = "ERR_301_GENERATE_TIMEOUT"
	ErrCodeGenerateQuota     = "ERR_302_GENERATE_QUOTA"
	ErrCodeEmbedFailed       = "ERR_303_EMBED_FAILED"
	ErrCodeClassifierOutput  = "ERR_304_CLASSIFIER_OUTPUT"
	ErrCodeCollaboratorError = "ERR_305_COLLABORATOR_ERROR"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the error code prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the error code.
// Config errors abort startup; everything else degrades.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		return SeverityFatal
	case CategoryCollaborator:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// retryableCodes lists codes representing transient failures.
var retryableCodes = map[string]bool{
	ErrCodeGenerateTimeout:   true,
	ErrCodeGenerateQuota:     true,
	ErrCodeEmbedFailed:       true,
	ErrCodeCollaboratorError: true,
}

// isRetryableCode reports whether the code represents a transient failure.
func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
