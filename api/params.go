package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/stsysd/taskstation/model"
	"github.com/stsysd/taskstation/service"
)

const (
	// maxRequestBodySize はリクエストボディの上限です。ファイルの上限を超えても検証エラーを返せるよう余裕を持たせています。
	maxRequestBodySize = service.MaxFileSize + 2<<20
	// maxMemory はマルチパートフォームをメモリ上に保持する上限です。
	maxMemory = 32 << 20
)

// TaskIDParams represents parameters that identify a task.
type TaskIDParams struct {
	ID *model.TaskID
}

// NewTaskIDParams creates parameters from the path of an HTTP request.
func NewTaskIDParams(r *http.Request) (*TaskIDParams, error) {
	id, err := model.NewTaskID(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	return &TaskIDParams{ID: id}, nil
}

// ListTasksParams represents parameters for listing tasks.
type ListTasksParams struct {
	Status string
}

// NewListTasksParams creates parameters for listing tasks from HTTP request.
// The status value is validated by the service so that the error message
// includes the rejected value.
func NewListTasksParams(r *http.Request) *ListTasksParams {
	return &ListTasksParams{Status: r.URL.Query().Get("status")}
}

// formRequest はマルチパートまたはURLエンコードされたフォームを保持します。
type formRequest struct {
	r *http.Request
}

// parseForm はContent-Typeに応じてフォームを解析します。
func parseForm(w http.ResponseWriter, r *http.Request) (*formRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	return &formRequest{r: r}, nil
}

func (f *formRequest) value(key string) string {
	return f.r.FormValue(key)
}

// file はフォームの file フィールドを返します。添付されていない場合は nil を返します。
func (f *formRequest) file() (*service.FileUpload, func(), error) {
	if f.r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	file, header, err := f.r.FormFile("file")
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file: %w", err)
	}
	return newFileUpload(file, header), func() { file.Close() }, nil
}

// close はマルチパートの一時ファイルを削除します。
func (f *formRequest) close() {
	if f.r.MultipartForm != nil {
		f.r.MultipartForm.RemoveAll()
	}
}

// addFormError はフォーム値の解析エラーをフィールド名で記録します。
func addFormError(formErrors map[string]string, field string, err error) {
	if err != nil {
		formErrors[field] = err.Error()
	}
}

func newFileUpload(file multipart.File, header *multipart.FileHeader) *service.FileUpload {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &service.FileUpload{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	}
}

// CreateTaskParams represents parameters for creating a task.
type CreateTaskParams struct {
	Request service.CreateTaskRequest
	release func()
}

// Close releases the uploaded file, if any.
func (p *CreateTaskParams) Close() {
	if p.release != nil {
		p.release()
	}
}

// NewCreateTaskParams creates parameters for task creation from HTTP request.
// Both multipart forms and JSON bodies are accepted; JSON bodies cannot carry a file.
func NewCreateTaskParams(w http.ResponseWriter, r *http.Request) (*CreateTaskParams, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var requestBody struct {
			Title       string `json:"title"`
			SLAHours    int    `json:"slaHours"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		return &CreateTaskParams{Request: service.CreateTaskRequest{
			Title:       requestBody.Title,
			SLAHours:    requestBody.SLAHours,
			Description: requestBody.Description,
		}}, nil
	}

	form, err := parseForm(w, r)
	if err != nil {
		return nil, err
	}

	// 解析エラーは他の検証エラーとまとめて返すため、リクエストに持たせる
	formErrors := make(map[string]string)
	slaHours, err := model.ParseSLAHours(form.value("slaHours"))
	addFormError(formErrors, service.FieldSLAHours, err)

	file, closeFile, err := form.file()
	if err != nil {
		form.close()
		return nil, err
	}

	return &CreateTaskParams{
		Request: service.CreateTaskRequest{
			Title:       form.value("title"),
			SLAHours:    slaHours,
			Description: form.value("description"),
			File:        file,
			FormErrors:  formErrors,
		},
		release: func() {
			closeFile()
			form.close()
		},
	}, nil
}

// UpdateTaskParams represents parameters for updating a task.
type UpdateTaskParams struct {
	ID      *model.TaskID
	Request service.UpdateTaskRequest
	release func()
}

// Close releases the uploaded file, if any.
func (p *UpdateTaskParams) Close() {
	if p.release != nil {
		p.release()
	}
}

// NewUpdateTaskParams creates parameters for task update from HTTP request.
func NewUpdateTaskParams(w http.ResponseWriter, r *http.Request) (*UpdateTaskParams, error) {
	idParams, err := NewTaskIDParams(r)
	if err != nil {
		return nil, err
	}

	form, err := parseForm(w, r)
	if err != nil {
		return nil, err
	}

	formErrors := make(map[string]string)
	slaHours, err := model.ParseSLAHours(form.value("slaHours"))
	addFormError(formErrors, service.FieldSLAHours, err)
	removeFile, err := model.ParseFlag("removeFile", form.value("removeFile"))
	addFormError(formErrors, service.FieldRemoveFile, err)

	file, closeFile, err := form.file()
	if err != nil {
		form.close()
		return nil, err
	}

	return &UpdateTaskParams{
		ID: idParams.ID,
		Request: service.UpdateTaskRequest{
			Title:      form.value("title"),
			SLAHours:   slaHours,
			Status:     form.value("status"),
			File:       file,
			RemoveFile: removeFile,
			FormErrors: formErrors,
		},
		release: func() {
			closeFile()
			form.close()
		},
	}, nil
}

// UpdateTaskStatusParams represents parameters for changing the status of a task.
type UpdateTaskStatusParams struct {
	ID      *model.TaskID
	Request service.UpdateStatusRequest
}

// NewUpdateTaskStatusParams creates parameters for status change from HTTP request.
func NewUpdateTaskStatusParams(w http.ResponseWriter, r *http.Request) (*UpdateTaskStatusParams, error) {
	idParams, err := NewTaskIDParams(r)
	if err != nil {
		return nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req service.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	req.Status = strings.TrimSpace(req.Status)

	return &UpdateTaskStatusParams{ID: idParams.ID, Request: req}, nil
}
