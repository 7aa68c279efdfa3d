package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"credit-risk/internal/scoring"
)

type ErrorCode string

const (
	ErrCodeInputOutOfRange      ErrorCode = "INPUT_OUT_OF_RANGE"
	ErrCodeInvalidCategory      ErrorCode = "INVALID_CATEGORY"
	ErrCodeInputSchemaInvalid   ErrorCode = "INPUT_SCHEMA_INVALID"
	ErrCodeParseError           ErrorCode = "PARSE_ERROR"
	ErrCodeModelArtifactMissing ErrorCode = "MODEL_ARTIFACT_MISSING"
	ErrCodeModelArtifactCorrupt ErrorCode = "MODEL_ARTIFACT_CORRUPT"
	ErrCodeModelOutputInvalid   ErrorCode = "MODEL_OUTPUT_INVALID"
	ErrCodeScoringTimeout       ErrorCode = "SCORING_TIMEOUT"
	ErrCodeScoringCacheFailed   ErrorCode = "SCORING_CACHE_FAILED"
	ErrCodeDecisionLogFailed    ErrorCode = "DECISION_LOG_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputOutOfRangeError(details string) *StandardError {
	return newError(ErrCodeInputOutOfRange, "Applicant attribute outside its allowed range", details, false)
}

func NewInvalidCategoryError(details string) *StandardError {
	return newError(ErrCodeInvalidCategory, "Categorical value outside its allowed set", details, false)
}

func NewInputSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeInputSchemaInvalid, "Job input does not match the activity schema", details, false)
}

func NewParseError(err error) *StandardError {
	return newError(ErrCodeParseError, "Failed to parse job variables", err.Error(), false)
}

func NewModelArtifactMissingError(details string) *StandardError {
	return newError(ErrCodeModelArtifactMissing, "Model bundle is missing", details, true)
}

func NewModelArtifactCorruptError(details string) *StandardError {
	return newError(ErrCodeModelArtifactCorrupt, "Model bundle is corrupt", details, true)
}

func NewModelOutputInvalidError(details string) *StandardError {
	return newError(ErrCodeModelOutputInvalid, "Model returned an invalid probability", details, false)
}

func NewScoringTimeoutError(err error) *StandardError {
	return newError(ErrCodeScoringTimeout, "Scoring timed out", err.Error(), true)
}

func NewScoringCacheFailedError(err error) *StandardError {
	return newError(ErrCodeScoringCacheFailed, "Scoring result cache unavailable", err.Error(), true)
}

func NewDecisionLogFailedError(err error) *StandardError {
	return newError(ErrCodeDecisionLogFailed, "Failed to record scoring decision", err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// FromError maps scoring sentinels and context errors onto StandardError. A
// StandardError anywhere in the chain is returned unchanged.
func FromError(err error) *StandardError {
	var stdErr *StandardError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &stdErr):
		return stdErr
	case stderrors.Is(err, scoring.ErrInputOutOfRange):
		return NewInputOutOfRangeError(err.Error())
	case stderrors.Is(err, scoring.ErrInvalidCategory):
		return NewInvalidCategoryError(err.Error())
	case stderrors.Is(err, scoring.ErrModelArtifactMissing):
		return NewModelArtifactMissingError(err.Error())
	case stderrors.Is(err, scoring.ErrModelArtifactCorrupt):
		return NewModelArtifactCorruptError(err.Error())
	case stderrors.Is(err, scoring.ErrModelOutput):
		return NewModelOutputInvalidError(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewScoringTimeoutError(err)
	default:
		return NewInternalError(err)
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputOutOfRange:      "INPUT_OUT_OF_RANGE",
	ErrCodeInvalidCategory:      "INVALID_CATEGORY",
	ErrCodeInputSchemaInvalid:   "INPUT_SCHEMA_INVALID",
	ErrCodeParseError:           "PARSE_ERROR",
	ErrCodeModelArtifactMissing: "MODEL_ARTIFACT_MISSING",
	ErrCodeModelArtifactCorrupt: "MODEL_ARTIFACT_CORRUPT",
	ErrCodeModelOutputInvalid:   "MODEL_OUTPUT_INVALID",
	ErrCodeScoringTimeout:       "SCORING_TIMEOUT",
	ErrCodeScoringCacheFailed:   "SCORING_CACHE_FAILED",
	ErrCodeDecisionLogFailed:    "DECISION_LOG_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelArtifactMissing,
		ErrCodeModelArtifactCorrupt,
		ErrCodeScoringCacheFailed,
		ErrCodeDecisionLogFailed:
		return 3

	case ErrCodeScoringTimeout:
		return 2

	default:
		return 0 // applicant data errors are routed by the process, not retried
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "MODEL_"):
		return "MODEL"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "DECISION_LOG"):
		return "STORAGE"
	case strings.Contains(codeStr, "INPUT") || strings.Contains(codeStr, "CATEGORY") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}
