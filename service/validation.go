package service

import (
	"io"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/stsysd/taskstation/model"
)

const (
	// MaxFileSize はアップロードできるファイルの最大サイズ（10 MiB）です。
	MaxFileSize = 10 << 20
	// MaxUpdateSLAHours は更新時に指定できるSLAの上限（30日）です。
	MaxUpdateSLAHours = 720
)

// フォーム値の解析エラーを保持するフィールド名
const (
	FieldSLAHours   = "slaHours"
	FieldRemoveFile = "removeFile"
)

// AllowedExtensions は作成時に添付できるファイルの拡張子です。
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".docx", ".xlsx", ".txt", ".zip"}

// FileUpload はリクエストに添付されたファイルです。
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CreateTaskRequest はタスク作成のリクエストです。
type CreateTaskRequest struct {
	Title       string
	SLAHours    int
	Description string
	File        *FileUpload
	// FormErrors は解析できなかったフォーム値のメッセージをフィールド名ごとに保持します。
	FormErrors map[string]string
}

// Validate はリクエストを検証し、失敗したすべてのルールをまとめて返します。
func (r CreateTaskRequest) Validate() error {
	var msgs []string
	msgs = append(msgs, titleRules(r.Title)...)

	if msg, ok := r.FormErrors[FieldSLAHours]; ok {
		msgs = append(msgs, msg)
	} else {
		switch {
		case r.SLAHours <= 0:
			msgs = append(msgs, "SLA hours must be greater than zero.")
		case r.SLAHours > model.MaxSLAHours:
			msgs = append(msgs, "SLA hours must not exceed 8760 (1 year).")
		}
	}

	if r.File != nil {
		if r.File.Size > MaxFileSize {
			msgs = append(msgs, "File size must not exceed 10 MB.")
		}
		if !hasAllowedExtension(r.File.Name) {
			msgs = append(msgs, "Allowed file extensions: "+strings.Join(AllowedExtensions, ", "))
		}
	}

	if len(msgs) > 0 {
		return model.NewValidationError(msgs...)
	}
	return nil
}

// UpdateTaskRequest はタスク更新のリクエストです。
type UpdateTaskRequest struct {
	Title      string
	SLAHours   int
	Status     string
	File       *FileUpload
	RemoveFile bool
	// FormErrors は解析できなかったフォーム値のメッセージをフィールド名ごとに保持します。
	FormErrors map[string]string
}

// Validate はリクエストを検証し、失敗したすべてのルールをまとめて返します。
// 更新時はファイルの検証を行いません。
func (r UpdateTaskRequest) Validate() error {
	var msgs []string
	msgs = append(msgs, titleRules(r.Title)...)

	if msg, ok := r.FormErrors[FieldSLAHours]; ok {
		msgs = append(msgs, msg)
	} else {
		switch {
		case r.SLAHours <= 0:
			msgs = append(msgs, "SLA hours must be greater than zero.")
		case r.SLAHours > MaxUpdateSLAHours:
			msgs = append(msgs, "SLA hours must not exceed 720 (30 days).")
		}
	}

	if strings.TrimSpace(r.Status) == "" {
		msgs = append(msgs, "Status is required.")
	} else if _, ok := model.ParseTransition(r.Status); !ok {
		msgs = append(msgs, "Status must be either PENDING or DONE.")
	}

	if msg, ok := r.FormErrors[FieldRemoveFile]; ok {
		msgs = append(msgs, msg)
	}

	if len(msgs) > 0 {
		return model.NewValidationError(msgs...)
	}
	return nil
}

// UpdateStatusRequest はステータス変更のリクエストです。
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func titleRules(title string) []string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return []string{"Title is required."}
	}
	if utf8.RuneCountInString(trimmed) > model.MaxTitleLength {
		return []string{"Title must not exceed 200 characters."}
	}
	return nil
}

func hasAllowedExtension(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext != "" && slices.Contains(AllowedExtensions, ext)
}
