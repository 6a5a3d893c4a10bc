// Package model は、アプリケーションのデータモデル定義を提供します。
package model

import (
	"errors"
	"strings"
)

// センチネルエラー - タスクが見つからない場合
var ErrTaskNotFound = errors.New("task not found")

// ValidationError はバリデーションエラーを表す型
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// NewValidationError はValidationErrorを生成するヘルパー関数
func NewValidationError(msgs ...string) error {
	return &ValidationError{Messages: msgs}
}

// ConflictError はステータス遷移などのドメインルール違反を表す型
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func newConflictError(msg string) error {
	return &ConflictError{Message: msg}
}
