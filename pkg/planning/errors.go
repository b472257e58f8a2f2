package planning

import (
	"errors"
	"fmt"
)

// Common planning errors
// 共通の計画エラー定義

var (
	// ErrNotFound is matched by every NotFoundError
	// 参照先が存在しない場合のエラー
	ErrNotFound = errors.New("参照先が見つかりません")

	// ErrRunInProgress is returned when a planning run is already executing
	// 計画計算が実行中の場合のエラー
	ErrRunInProgress = errors.New("計画計算は既に実行中です")

	// ErrNoResults is returned when shortages are requested before any run
	// 計算結果が存在しない場合のエラー
	ErrNoResults = errors.New("計画計算の結果がありません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// DepthExceededError aborts a run when BOM nesting passes MaxBOMDepth.
// It almost always means a cycle in the sub-assembly graph.
// BOM階層が上限を超えた場合のエラー（循環参照の可能性）
type DepthExceededError struct {
	ProductID int64 `json:"product_id"` // 展開中の製品ID
	Depth     int   `json:"depth"`      // 到達した階層
	Limit     int   `json:"limit"`      // 上限
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("BOM階層が深すぎます (製品ID: %d, 階層: %d, 上限: %d)", e.ProductID, e.Depth, e.Limit)
}

// NotFoundError represents a missing referenced record
// 参照レコードが存在しないことを表現
type NotFoundError struct {
	Entity string `json:"entity"` // エンティティ名
	ID     int64  `json:"id"`     // ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s が見つかりません (ID: %d)", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConcurrencyError represents a concurrency-related error
// 同時実行関連のエラーを表現
type ConcurrencyError struct {
	Operation string `json:"operation"` // 操作名
	Resource  string `json:"resource"`  // リソース
	Message   string `json:"message"`   // エラーメッセージ
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("同時実行エラー [%s:%s]: %s", e.Operation, e.Resource, e.Message)
}

func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrRunInProgress
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewDepthExceededError creates a new depth exceeded error
// 新しい階層超過エラーを作成
func NewDepthExceededError(productID int64, depth int) *DepthExceededError {
	return &DepthExceededError{
		ProductID: productID,
		Depth:     depth,
		Limit:     MaxBOMDepth,
	}
}

// NewNotFoundError creates a new not found error
// 新しい未検出エラーを作成
func NewNotFoundError(entity string, id int64) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewConcurrencyError creates a new concurrency error
// 新しい同時実行エラーを作成
func NewConcurrencyError(operation, resource, message string) *ConcurrencyError {
	return &ConcurrencyError{
		Operation: operation,
		Resource:  resource,
		Message:   message,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
