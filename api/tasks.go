package api

import (
	"errors"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/stsysd/taskstation/model"
)

// writeParamsError はリクエストの解析エラーを返却します。
func writeParamsError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *model.ValidationError
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &validationErr) || errors.As(err, &maxBytesErr) {
		writeServiceError(w, r, err)
		return
	}
	writeJSONError(w, err.Error(), http.StatusBadRequest)
}

// handleCreateTask はタスク作成エンドポイントのハンドラーです。
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	// パラメータを検証
	params, err := NewCreateTaskParams(w, r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}
	defer params.Close()

	task, err := s.tasks.Create(r.Context(), params.Request)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	writeJSON(w, http.StatusCreated, task)
}

// handleListTasks はタスク一覧エンドポイントのハンドラーです。
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	params := NewListTasksParams(r)

	tasks, err := s.tasks.List(r.Context(), params.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask は特定のIDのタスクを取得するハンドラーです。
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	params, err := NewTaskIDParams(r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}

	task, err := s.tasks.Get(r.Context(), params.ID.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask は特定のIDのタスクを更新するハンドラーです。
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	params, err := NewUpdateTaskParams(w, r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}
	defer params.Close()

	task, err := s.tasks.Update(r.Context(), params.ID.String(), params.Request)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTaskStatus は特定のIDのタスクのステータスを変更するハンドラーです。
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	params, err := NewUpdateTaskStatusParams(w, r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}

	task, err := s.tasks.UpdateStatus(r.Context(), params.ID.String(), params.Request)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// handleGetTaskFile はインライン保存された添付ファイルをダウンロードさせるハンドラーです。
func (s *Server) handleGetTaskFile(w http.ResponseWriter, r *http.Request) {
	params, err := NewTaskIDParams(r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}

	file, ok, err := s.tasks.GetFile(r.Context(), params.ID.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeJSONError(w, "File not found for this task", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		log.Printf("Error writing file response: %v", err)
	}
}

// FileInfoResponse は添付ファイルの状態を表すレスポンスです。
type FileInfoResponse struct {
	TaskID            string `json:"taskId"`
	HasFileURL        bool   `json:"hasFileUrl"`
	HasFileName       bool   `json:"hasFileName"`
	FileDataAvailable bool   `json:"fileDataAvailable"`
	FileDataSize      int    `json:"fileDataSize"`
	FileName          string `json:"fileName,omitempty"`
	ContentType       string `json:"contentType,omitempty"`
}

// handleGetTaskFileInfo はファイルをダウンロードせずに添付ファイルの状態を返すハンドラーです。
func (s *Server) handleGetTaskFileInfo(w http.ResponseWriter, r *http.Request) {
	params, err := NewTaskIDParams(r)
	if err != nil {
		writeParamsError(w, r, err)
		return
	}

	task, err := s.tasks.Get(r.Context(), params.ID.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	file, ok, err := s.tasks.GetFile(r.Context(), params.ID.String())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	info := FileInfoResponse{
		TaskID:            task.ID,
		HasFileURL:        task.FileURL != "",
		HasFileName:       task.FileName != "",
		FileDataAvailable: ok,
	}
	if ok {
		info.FileDataSize = len(file.Data)
		info.FileName = file.Name
		info.ContentType = file.ContentType
	}
	writeJSON(w, http.StatusOK, info)
}
