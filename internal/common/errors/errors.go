// Package errors provides standardized error handling for HTTP handlers and BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidPlan          ErrorCode = "INVALID_PLAN"
	ErrCodeUnknownPlan          ErrorCode = "UNKNOWN_PLAN"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingUserID        ErrorCode = "MISSING_USER_ID"
	ErrCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"

	ErrCodePaymentsUpstreamFailed  ErrorCode = "PAYMENTS_UPSTREAM_FAILED"
	ErrCodeWebhookSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodeWebhookNotConfigured    ErrorCode = "WEBHOOK_NOT_CONFIGURED"
	ErrCodeIdentityUpstreamFailed  ErrorCode = "IDENTITY_UPSTREAM_FAILED"

	ErrCodeAuditWriteFailed   ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeReconcileAborted   ErrorCode = "RECONCILE_ABORTED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

// NewUnauthorizedError is returned when no identity could be resolved.
func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Unauthorized", details, false, nil)
}

// NewInvalidPlanError is returned for checkout keys outside the checkout table.
func NewInvalidPlanError(planKey string) *StandardError {
	return newError(ErrCodeInvalidPlan, "Invalid plan", fmt.Sprintf("plan: %s", planKey), false, nil)
}

// NewUnknownPlanError is returned when a stored plan identifier is not in the catalog.
func NewUnknownPlanError(raw string) *StandardError {
	return newError(ErrCodeUnknownPlan, "Unknown plan", fmt.Sprintf("plan: %s", raw), false, nil)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Invalid request", details, false, nil)
}

func NewMissingUserIDError() *StandardError {
	return newError(ErrCodeMissingUserID, "Missing user id", "", false, nil)
}

func NewSubscriptionNotFoundError(userID string) *StandardError {
	return newError(ErrCodeSubscriptionNotFound, "Subscription not found", fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewCacheError(operation string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Cache operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

// NewPaymentsUpstreamError wraps a failure returned by the payments provider.
func NewPaymentsUpstreamError(operation string, err error) *StandardError {
	return newError(ErrCodePaymentsUpstreamFailed, "Payments provider error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewWebhookSignatureError(err error) *StandardError {
	return newError(ErrCodeWebhookSignatureInvalid, "Invalid signature", err.Error(), false, err)
}

func NewWebhookNotConfiguredError() *StandardError {
	return newError(ErrCodeWebhookNotConfigured, "Webhook not configured", "", false, nil)
}

func NewIdentityUpstreamError(err error) *StandardError {
	return newError(ErrCodeIdentityUpstreamFailed, "Identity provider error", err.Error(), true, err)
}

func NewAuditWriteError(sink string, err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit log write failed",
		fmt.Sprintf("sink: %s, error: %s", sink, err.Error()), false, err)
}

func NewEventPublishError(eventType string, err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, "Event publish failed",
		fmt.Sprintf("type: %s, error: %s", eventType, err.Error()), true, err)
}

// NewReconcileAbortedError is returned when a page of remote subscriptions could not be listed.
func NewReconcileAbortedError(page int, err error) *StandardError {
	return newError(ErrCodeReconcileAborted, "Reconciliation aborted",
		fmt.Sprintf("page: %d, error: %s", page, err.Error()), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal server error", err.Error(), false, err)
}

// ==========================
// 4. HTTP and BPMN mapping
// ==========================

var httpStatusMapping = map[ErrorCode]int{
	ErrCodeUnauthorized:            http.StatusUnauthorized,
	ErrCodeInvalidPlan:             http.StatusBadRequest,
	ErrCodeUnknownPlan:             http.StatusBadRequest,
	ErrCodeValidationFailed:        http.StatusBadRequest,
	ErrCodeMissingUserID:           http.StatusBadRequest,
	ErrCodeWebhookSignatureInvalid: http.StatusBadRequest,
	ErrCodeSubscriptionNotFound:    http.StatusNotFound,
	ErrCodeWebhookNotConfigured:    http.StatusServiceUnavailable,
}

// HTTPStatus maps an error code onto a response status. Upstream and persistence
// failures fall through to 500.
func HTTPStatus(code ErrorCode) int {
	if status, ok := httpStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodePaymentsUpstreamFailed,
		ErrCodeReconcileAborted:
		return 3

	case ErrCodeCacheFailed,
		ErrCodeEventPublishFailed,
		ErrCodeIdentityUpstreamFailed:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized || strings.Contains(codeStr, "IDENTITY"):
		return "AUTH"
	case strings.Contains(codeStr, "PLAN") || strings.Contains(codeStr, "VALIDATION") || code == ErrCodeMissingUserID:
		return "VALIDATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "PAYMENTS") || strings.Contains(codeStr, "WEBHOOK") || strings.Contains(codeStr, "SUBSCRIPTION") || strings.Contains(codeStr, "RECONCILE"):
		return "BILLING"
	case strings.Contains(codeStr, "AUDIT") || strings.Contains(codeStr, "EVENT") || strings.Contains(codeStr, "CACHE"):
		return "BEST_EFFORT"
	default:
		return "OTHER"
	}
}
