// Package api はtaskstationのAPIサーバー実装を提供します。
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stsysd/taskstation/config"
	"github.com/stsysd/taskstation/metrics"
	"github.com/stsysd/taskstation/model"
	"github.com/stsysd/taskstation/service"
)

// TaskService はAPIが利用するタスク操作のインターフェースです。
type TaskService interface {
	Create(ctx context.Context, req service.CreateTaskRequest) (*service.TaskResponse, error)
	List(ctx context.Context, status string) ([]*service.TaskResponse, error)
	Get(ctx context.Context, id string) (*service.TaskResponse, error)
	Update(ctx context.Context, id string, req service.UpdateTaskRequest) (*service.TaskResponse, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateStatusRequest) (*service.TaskResponse, error)
	GetFile(ctx context.Context, id string) (*model.InlineFile, bool, error)
}

// Server はAPIサーバーの構造体です。
type Server struct {
	router   *http.ServeMux
	handler  http.Handler
	tasks    TaskService
	config   *config.Config
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// ErrorResponse はエラーレスポンスの構造体です。
type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   int      `json:"code"`
	Errors []string `json:"errors,omitempty"`
}

// writeJSONError はJSON形式でエラーレスポンスを返却します。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error: message,
		Code:  statusCode,
	})
}

// writeJSON は値をJSONとして返却します。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeServiceError はサービスのエラーを種類に応じたステータスコードで返却します。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *model.ValidationError
	var conflictErr *model.ConflictError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "One or more validation errors occurred.",
			Code:   http.StatusBadRequest,
			Errors: validationErr.Messages,
		})
	case errors.Is(err, model.ErrTaskNotFound):
		writeJSONError(w, "Task not found", http.StatusNotFound)
	case errors.As(err, &conflictErr):
		writeJSONError(w, conflictErr.Message, http.StatusUnprocessableEntity)
	case errors.As(err, &maxBytesErr):
		writeJSONError(w, "Request body too large", http.StatusRequestEntityTooLarge)
	default:
		log.Printf("Unexpected error on %s %s: %v", r.Method, r.URL.Path, err)
		writeJSONError(w, "An unexpected error occurred.", http.StatusInternalServerError)
	}
}

// NewServer は新しいAPIサーバーインスタンスを生成します。
// m が nil の場合はメトリクスを記録せず、gatherer が nil の場合は /metrics を公開しません。
func NewServer(tasks TaskService, config *config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		tasks:    tasks,
		config:   config,
		metrics:  m,
		gatherer: gatherer,
	}
	s.routes()
	s.handler = s.metricsMiddleware(s.router)
	return s
}

// routes はAPIエンドポイントのルーティングを設定します。
func (s *Server) routes() {
	// ヘルスチェックとメトリクスは認証不要
	s.router.HandleFunc("GET /healthz", s.handleHealthCheck)
	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	securedHandler := http.NewServeMux()

	// Task endpoints
	securedHandler.HandleFunc("POST /api/tasks", s.handleCreateTask)
	securedHandler.HandleFunc("GET /api/tasks", s.handleListTasks)
	securedHandler.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	securedHandler.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	securedHandler.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTaskStatus)
	securedHandler.HandleFunc("GET /api/tasks/{id}/file", s.handleGetTaskFile)
	securedHandler.HandleFunc("GET /api/tasks/{id}/file-info", s.handleGetTaskFileInfo)

	// 認証ミドルウェアを適用し、メインルータにマウント
	s.router.Handle("/api/", s.authMiddleware(securedHandler))
}

// ServeHTTP はServer構造体をhttp.Handlerとして実装します。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealthCheck はヘルスチェックエンドポイントのハンドラーです。
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
