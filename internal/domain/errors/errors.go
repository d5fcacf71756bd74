package errors

import (
	"errors"
	"fmt"
)

// ErrorType은 에러의 종류를 나타냅니다
type ErrorType string

const (
	// ErrorTypeValidation은 원하는 상태가 잘못되었거나 모순됨을 나타냅니다.
	// 백엔드 호출 전에 발생하므로 입력 수정 후 재시도해도 안전합니다
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeDependencyCycle은 인터페이스 의존성 그래프에 순환이 있어
	// 적용 순서를 결정할 수 없음을 나타냅니다
	ErrorTypeDependencyCycle ErrorType = "DEPENDENCY_CYCLE"

	// ErrorTypeBackend는 개별 백엔드 작업이 실패했음을 나타냅니다
	ErrorTypeBackend ErrorType = "BACKEND"

	// ErrorTypeMismatch는 적용 후 상태가 타임아웃 내에 원하는 상태와
	// 일치하지 않음을 나타냅니다
	ErrorTypeMismatch ErrorType = "MISMATCH"

	// ErrorTypeRollbackFailed는 롤백 자체가 수렴하지 못했음을 나타냅니다.
	// 치명적이며 운영자의 수동 개입이 필요합니다
	ErrorTypeRollbackFailed ErrorType = "ROLLBACK_FAILED"

	// ErrorTypeNotFound는 리소스를 찾을 수 없음을 나타냅니다
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeConflict는 충돌이 발생했음을 나타냅니다 (예: 이미 보류 중인
	// 체크포인트가 존재)
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeSystem은 시스템 레벨 에러를 나타냅니다
	ErrorTypeSystem ErrorType = "SYSTEM"

	// ErrorTypeTimeout은 타임아웃 에러를 나타냅니다
	ErrorTypeTimeout ErrorType = "TIMEOUT"
)

// DomainError는 도메인 레벨의 에러를 나타냅니다
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error는 error 인터페이스를 구현합니다
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap은 내부 에러를 반환합니다
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is는 에러 비교를 위한 메서드입니다
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// 생성자 함수들

// NewValidationError는 유효성 검증 에러를 생성합니다
func NewValidationError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeValidation,
		Message: message,
		Cause:   cause,
	}
}

// NewDependencyCycleError는 인터페이스 의존성 순환 에러를 생성합니다
func NewDependencyCycleError(message string) *DomainError {
	return &DomainError{
		Type:    ErrorTypeDependencyCycle,
		Message: message,
	}
}

// NewBackendError는 백엔드 작업 실패 에러를 생성합니다
func NewBackendError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeBackend,
		Message: message,
		Cause:   cause,
	}
}

// NewMismatchError는 검증 불일치 에러를 생성합니다
func NewMismatchError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeMismatch,
		Message: message,
		Cause:   cause,
	}
}

// NewRollbackFailedError는 롤백 실패 에러를 생성합니다
func NewRollbackFailedError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeRollbackFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError는 리소스를 찾을 수 없는 에러를 생성합니다
func NewNotFoundError(message string) *DomainError {
	return &DomainError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewConflictError는 충돌 에러를 생성합니다
func NewConflictError(message string) *DomainError {
	return &DomainError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewSystemError는 시스템 에러를 생성합니다
func NewSystemError(message string, cause error) *DomainError {
	return &DomainError{
		Type:    ErrorTypeSystem,
		Message: message,
		Cause:   cause,
	}
}

// NewTimeoutError는 타임아웃 에러를 생성합니다
func NewTimeoutError(message string) *DomainError {
	return &DomainError{
		Type:    ErrorTypeTimeout,
		Message: message,
	}
}

// 에러 타입 확인 헬퍼 함수들

func typeOf(err error) (ErrorType, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type, true
	}
	return "", false
}

// IsValidationError는 유효성 검증 에러인지 확인합니다
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeValidation
}

// IsDependencyCycleError는 의존성 순환 에러인지 확인합니다
func IsDependencyCycleError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeDependencyCycle
}

// IsBackendError는 백엔드 에러인지 확인합니다
func IsBackendError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeBackend
}

// IsMismatchError는 검증 불일치 에러인지 확인합니다
func IsMismatchError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeMismatch
}

// IsRollbackFailedError는 롤백 실패 에러인지 확인합니다
func IsRollbackFailedError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeRollbackFailed
}

// IsNotFoundError는 리소스를 찾을 수 없는 에러인지 확인합니다
func IsNotFoundError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeNotFound
}

// IsConflictError는 충돌 에러인지 확인합니다
func IsConflictError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeConflict
}

// IsSystemError는 시스템 에러인지 확인합니다
func IsSystemError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeSystem
}

// IsTimeoutError는 타임아웃 에러인지 확인합니다
func IsTimeoutError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrorTypeTimeout
}
