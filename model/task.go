package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTitleLength は前後の空白を除いたタイトルの最大文字数です。
	MaxTitleLength = 200
	// SLAの範囲（時間）
	MinSLAHours = 1
	MaxSLAHours = 8760
)

// Task はSLAと任意の添付ファイルを持つタスクエンティティを表すモデルです。
// フィールドはメソッドを通してのみ変更されます。
type Task struct {
	id          string
	title       string
	description string
	createdAt   time.Time
	slaHours    int
	dueDate     time.Time
	status      Status
	attachment  Attachment
}

// NewTask は新しいTaskインスタンスを作成します。
// IDはストアへの保存時に割り当てられるため、空のままです。
func NewTask(title string, slaHours int, description string, now time.Time) (*Task, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateSLA(slaHours); err != nil {
		return nil, err
	}

	createdAt := now.UTC()
	return &Task{
		title:       strings.TrimSpace(title),
		description: strings.TrimSpace(description),
		createdAt:   createdAt,
		slaHours:    slaHours,
		dueDate:     dueDate(createdAt, slaHours),
		status:      StatusPending,
	}, nil
}

// LoadTask は保存された値から既存のTaskインスタンスを作成します。
func LoadTask(id, title, description string, createdAt time.Time, slaHours int, status Status, attachment Attachment) (*Task, error) {
	// 読み込んだタスクは必ずIDを持つ
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("id is required for loaded task")
	}
	if createdAt.IsZero() {
		return nil, errors.New("created_at is required")
	}
	if !status.IsValid() {
		return nil, errors.New("invalid status: " + string(status))
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateSLA(slaHours); err != nil {
		return nil, err
	}
	if err := validateAttachment(attachment); err != nil {
		return nil, err
	}

	createdAt = createdAt.UTC()
	return &Task{
		id:          id,
		title:       strings.TrimSpace(title),
		description: strings.TrimSpace(description),
		createdAt:   createdAt,
		slaHours:    slaHours,
		dueDate:     dueDate(createdAt, slaHours),
		status:      status,
		attachment:  attachment,
	}, nil
}

func (t *Task) ID() string { return t.id }
func (t *Task) Title() string { return t.title }
func (t *Task) Description() string { return t.description }
func (t *Task) CreatedAt() time.Time { return t.createdAt }
func (t *Task) SLAHours() int { return t.slaHours }
func (t *Task) DueDate() time.Time { return t.dueDate }
func (t *Task) Status() Status { return t.status }
func (t *Task) Attachment() Attachment { return t.attachment }

// SetID はストアが割り当てたIDを設定します。一度設定したIDは変更できません。
func (t *Task) SetID(id string) error {
	if t.id != "" {
		return errors.New("task id is already assigned")
	}
	if strings.TrimSpace(id) == "" {
		return errors.New("task id cannot be empty")
	}
	t.id = id
	return nil
}

// MarkDone はタスクを完了にします。
func (t *Task) MarkDone() error {
	if t.status == StatusDone {
		return newConflictError("Task is already completed.")
	}
	t.status = StatusDone
	return nil
}

// MarkPending はタスクをPENDINGに戻します。完了済みのタスクは戻せません。
func (t *Task) MarkPending() error {
	if t.status == StatusDone {
		return newConflictError("Cannot mark a completed task as pending.")
	}
	t.status = StatusPending
	return nil
}

// MarkOverdue は期限を過ぎたタスクをOVERDUEにします。
// 完了済みのタスクは変更しません。
func (t *Task) MarkOverdue(now time.Time) error {
	if t.status == StatusDone {
		return nil
	}
	if now.Before(t.dueDate) {
		return newConflictError("Cannot mark a task as overdue before its due date.")
	}
	t.status = StatusOverdue
	return nil
}

// Rename はタイトルを変更します。
func (t *Task) Rename(title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	t.title = strings.TrimSpace(title)
	return nil
}

// Rebudget はSLAを変更します。期限は常に作成日時から計算されます。
func (t *Task) Rebudget(slaHours int) error {
	if err := validateSLA(slaHours); err != nil {
		return err
	}
	t.slaHours = slaHours
	t.dueDate = dueDate(t.createdAt, slaHours)
	return nil
}

// AttachURL は外部ストレージのファイルを添付し、既存の添付ファイルを置き換えます。
func (t *Task) AttachURL(url string) error {
	if err := validateURL(url); err != nil {
		return err
	}
	t.attachment = &ExternalFile{URL: url}
	return nil
}

// AttachInline はファイルのデータをタスクに添付し、既存の添付ファイルを置き換えます。
func (t *Task) AttachInline(data []byte, name, contentType string) error {
	if err := validateInline(data, name, contentType); err != nil {
		return err
	}
	t.attachment = &InlineFile{Data: data, Name: name, ContentType: contentType}
	return nil
}

// DetachFile は添付ファイルを削除します。
func (t *Task) DetachFile() {
	t.attachment = nil
}

// IsSLAExpired はタスクが未完了で期限を過ぎているかを返します。
func (t *Task) IsSLAExpired(now time.Time) bool {
	return t.status != StatusDone && now.After(t.dueDate)
}

// DisplayStatus は now 時点で表示するステータスを返します。
// 未完了で期限を過ぎたタスクはOVERDUEになります。
func (t *Task) DisplayStatus(now time.Time) Status {
	switch {
	case t.status == StatusDone:
		return StatusDone
	case now.After(t.dueDate):
		return StatusOverdue
	default:
		return StatusPending
	}
}

func dueDate(createdAt time.Time, slaHours int) time.Time {
	return createdAt.Add(time.Duration(slaHours) * time.Hour)
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return NewValidationError("Task title is required.")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return NewValidationError("Task title must not exceed 200 characters.")
	}
	return nil
}

func validateSLA(slaHours int) error {
	if slaHours < MinSLAHours {
		return NewValidationError("SLA hours must be greater than zero.")
	}
	if slaHours > MaxSLAHours {
		return NewValidationError("SLA hours must not exceed 8760 (1 year).")
	}
	return nil
}
