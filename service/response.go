package service

import (
	"encoding/base64"
	"time"

	"github.com/stsysd/taskstation/model"
)

// TaskResponse はAPIが返すタスクの表現です。
type TaskResponse struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	SLAHours          int       `json:"slaHours"`
	SLAExpirationDate time.Time `json:"slaExpirationDate"`
	// Status は保存されているステータス、DisplayStatus は現在時刻から導出したステータスです。
	Status          model.Status `json:"status"`
	DisplayStatus   model.Status `json:"displayStatus"`
	FileURL         string       `json:"fileUrl,omitempty"`
	FileName        string       `json:"fileName,omitempty"`
	FileContentType string       `json:"fileContentType,omitempty"`
	FileDataBase64  string       `json:"fileDataBase64,omitempty"`
}

// FileURLPath はインライン保存されたファイルのダウンロードパスを返します。
func FileURLPath(id string) string {
	return "/api/tasks/" + id + "/file"
}

// NewTaskResponse はタスクを now 時点のレスポンスに変換します。
func NewTaskResponse(task *model.Task, now time.Time) *TaskResponse {
	resp := &TaskResponse{
		ID:                task.ID(),
		Title:             task.Title(),
		Description:       task.Description(),
		CreatedAt:         task.CreatedAt(),
		SLAHours:          task.SLAHours(),
		SLAExpirationDate: task.DueDate(),
		Status:            task.Status(),
		DisplayStatus:     task.DisplayStatus(now),
	}

	switch file := task.Attachment().(type) {
	case *model.ExternalFile:
		resp.FileURL = file.URL
		resp.FileName = file.FileName()
	case *model.InlineFile:
		if len(file.Data) > 0 {
			resp.FileURL = FileURLPath(task.ID())
			resp.FileName = file.Name
			resp.FileContentType = file.ContentType
			resp.FileDataBase64 = base64.StdEncoding.EncodeToString(file.Data)
		}
	}

	return resp
}

// NewTaskResponses はタスクの一覧をレスポンスに変換します。
func NewTaskResponses(tasks []*model.Task, now time.Time) []*TaskResponse {
	responses := make([]*TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, NewTaskResponse(task, now))
	}
	return responses
}
