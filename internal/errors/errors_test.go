package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesAttributesFromCode(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config invalid", ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{"zero dimensions", ErrCodeZeroDimensions, CategoryConfig, SeverityFatal, false},
		{"index unavailable", ErrCodeIndexUnavailable, CategoryStorage, SeverityError, false},
		{"generate timeout", ErrCodeGenerateTimeout, CategoryCollaborator, SeverityWarning, true},
		{"generate quota", ErrCodeGenerateQuota, CategoryCollaborator, SeverityWarning, true},
		{"classifier output", ErrCodeClassifierOutput, CategoryCollaborator, SeverityWarning, false},
		{"invalid input", ErrCodeInvalidInput, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeGenerateTimeout, "first", nil)
	b := New(ErrCodeGenerateTimeout, "second", nil)
	c := New(ErrCodeInternal, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeEmbedFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.Contains(t, err.Error(), ErrCodeEmbedFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeMetadataStore, "save failed", nil).
		WithDetail("table", "chunks").
		WithDetail("count", "12")

	assert.Equal(t, "chunks", err.Details["table"])
	assert.Equal(t, "12", err.Details["count"])
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeGenerateQuota, "quota", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsFatal(ConfigError("bad config", nil)))
	assert.False(t, IsFatal(CollaboratorError("slow", nil)))

	assert.Equal(t, ErrCodeInvalidInput, GetCode(ValidationError("empty query", nil)))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}
