package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stsysd/taskstation/config"
	"github.com/stsysd/taskstation/metrics"
	"github.com/stsysd/taskstation/model"
	"github.com/stsysd/taskstation/service"
)

// テスト用の定数
const testAPIKey = "test-api-key"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// テスト用の設定を生成するヘルパー関数
func newTestConfig() *config.Config {
	return &config.Config{
		DataDir: "./testdata",
		Port:    "8080",
		APIKey:  testAPIKey,
	}
}

// MockTaskStore はテスト用のTaskStoreの実装です。
type MockTaskStore struct {
	tasks map[string]*model.Task
	seq   int
}

func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[string]*model.Task)}
}

func (m *MockTaskStore) sorted(keep func(*model.Task) bool) []*model.Task {
	var tasks []*model.Task
	for _, task := range m.tasks {
		if keep(task) {
			tasks = append(tasks, task)
		}
	}
	// 作成日時の降順にソート（SQLiteの実装と同様に）
	slices.SortFunc(tasks, func(a, b *model.Task) int {
		return b.CreatedAt().Compare(a.CreatedAt())
	})
	return tasks
}

func (m *MockTaskStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrTaskNotFound)
	}
	return task, nil
}

func (m *MockTaskStore) ListTasks(ctx context.Context) ([]*model.Task, error) {
	return m.sorted(func(*model.Task) bool { return true }), nil
}

func (m *MockTaskStore) ListTasksByStatus(ctx context.Context, status model.Status) ([]*model.Task, error) {
	return m.sorted(func(t *model.Task) bool { return t.Status() == status }), nil
}

func (m *MockTaskStore) ListOverdueTasks(ctx context.Context, now time.Time) ([]*model.Task, error) {
	return m.sorted(func(t *model.Task) bool {
		return t.Status() == model.StatusOverdue || (t.Status() == model.StatusPending && t.DueDate().Before(now))
	}), nil
}

func (m *MockTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	m.seq++
	if err := task.SetID(fmt.Sprintf("task-%d", m.seq)); err != nil {
		return err
	}
	m.tasks[task.ID()] = task
	return nil
}

func (m *MockTaskStore) UpdateTask(ctx context.Context, task *model.Task) error {
	if _, ok := m.tasks[task.ID()]; !ok {
		return model.ErrTaskNotFound
	}
	m.tasks[task.ID()] = task
	return nil
}

func (m *MockTaskStore) MarkOverdueTasks(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (m *MockTaskStore) Close() error {
	return nil
}

type testServer struct {
	server   *Server
	store    *MockTaskStore
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := NewMockTaskStore()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	svc, err := service.New(store, nil, service.Options{Now: func() time.Time { return testNow }, Metrics: m})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return &testServer{
		server:   NewServer(svc, newTestConfig(), m, registry),
		store:    store,
		metrics:  m,
		registry: registry,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if req.Header.Get("X-API-Key") == "" {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)
	return w
}

// seed はストアにタスクを直接登録します。
func (ts *testServer) seed(t *testing.T, title string, slaHours int, createdAt time.Time) *model.Task {
	t.Helper()
	task, err := model.NewTask(title, slaHours, "", createdAt)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if err := ts.store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("Failed to store task: %v", err)
	}
	return task
}

type formFile struct {
	name        string
	contentType string
	content     []byte
}

// multipartRequest はマルチパートフォームのリクエストを作成します。
func multipartRequest(t *testing.T, method, target string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write(file.content)
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeTask(t *testing.T, w *httptest.ResponseRecorder) service.TaskResponse {
	t.Helper()
	var resp service.TaskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	// ヘルスチェックは認証不要
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected body: %s", w.Body.String())
	}
}

func TestCreateTaskMultipartWithFile(t *testing.T) {
	ts := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/tasks",
		map[string]string{"title": "Write report", "slaHours": "24", "description": "Q2"},
		&formFile{name: "notes.txt", contentType: "text/plain", content: []byte("hello")},
	)
	w := ts.do(req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/tasks/task-1" {
		t.Errorf("Expected Location /api/tasks/task-1, got %s", loc)
	}

	resp := decodeTask(t, w)
	expected := service.TaskResponse{
		ID:                "task-1",
		Title:             "Write report",
		Description:       "Q2",
		CreatedAt:         testNow,
		SLAHours:          24,
		SLAExpirationDate: testNow.Add(24 * time.Hour),
		Status:            model.StatusPending,
		DisplayStatus:     model.StatusPending,
		FileURL:           "/api/tasks/task-1/file",
		FileName:          "notes.txt",
		FileContentType:   "text/plain",
		FileDataBase64:    base64.StdEncoding.EncodeToString([]byte("hello")),
	}
	if diff := cmp.Diff(expected, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateTaskJSON(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(http.MethodPost, "/api/tasks", `{"title":"From JSON","slaHours":8}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	resp := decodeTask(t, w)
	if resp.Title != "From JSON" || resp.SLAHours != 8 || resp.FileURL != "" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestCreateTaskValidationErrors(t *testing.T) {
	tests := []struct {
		name           string
		req            func(t *testing.T) *http.Request
		expectedErrors []string
		description    string
	}{
		{
			name: "BlankTitleAndZeroSLA",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/tasks", map[string]string{"title": " ", "slaHours": "0"}, nil)
			},
			expectedErrors: []string{"Title is required.", "SLA hours must be greater than zero."},
			description:    "すべての検証エラーがまとめて返されること",
		},
		{
			name: "SLAOverYear",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/tasks", map[string]string{"title": "t", "slaHours": "8761"}, nil)
			},
			expectedErrors: []string{"SLA hours must not exceed 8760 (1 year)."},
			description:    "8761時間はエラーになること",
		},
		{
			name: "NonNumericSLA",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/tasks", map[string]string{"title": "t", "slaHours": "abc"}, nil)
			},
			expectedErrors: []string{"SLA hours must be a whole number, got 'abc'."},
			description:    "数値でないSLAはエラーになること",
		},
		{
			name: "BlankTitleAndNonNumericSLA",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/tasks", map[string]string{"title": "", "slaHours": "abc"}, nil)
			},
			expectedErrors: []string{"Title is required.", "SLA hours must be a whole number, got 'abc'."},
			description:    "解析できないSLAもタイトルのエラーとまとめて返されること",
		},
		{
			name: "DisallowedExtension",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/api/tasks", map[string]string{"title": "t", "slaHours": "1"},
					&formFile{name: "run.exe", contentType: "application/octet-stream", content: []byte("MZ")})
			},
			expectedErrors: []string{"Allowed file extensions: .pdf, .png, .jpg, .jpeg, .docx, .xlsx, .txt, .zip"},
			description:    "許可されていない拡張子はエラーになること",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(tt.req(t))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("%s: expected status code %d, got %d", tt.description, http.StatusBadRequest, w.Code)
			}
			resp := decodeError(t, w)
			if resp.Error != "One or more validation errors occurred." {
				t.Errorf("%s: unexpected message %q", tt.description, resp.Error)
			}
			if diff := cmp.Diff(tt.expectedErrors, resp.Errors); diff != "" {
				t.Errorf("%s: errors mismatch (-want +got):\n%s", tt.description, diff)
			}
			if len(ts.store.tasks) != 0 {
				t.Errorf("%s: expected nothing to be stored", tt.description)
			}
		})
	}
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(http.MethodPost, "/api/tasks", `{"title":`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestListTasks(t *testing.T) {
	ts := newTestServer(t)
	expired := ts.seed(t, "expired", 1, testNow.Add(-3*time.Hour))
	pending := ts.seed(t, "pending", 24, testNow.Add(-1*time.Hour))
	done := ts.seed(t, "done", 24, testNow.Add(-2*time.Hour))
	if err := done.MarkDone(); err != nil {
		t.Fatalf("Failed to mark done: %v", err)
	}

	tests := []struct {
		query       string
		expectedIDs []string
		description string
	}{
		{"", []string{pending.ID(), done.ID(), expired.ID()}, "フィルタなしは作成日時の降順ですべて返すこと"},
		{"?status=overdue", []string{expired.ID()}, "OVERDUEは期限切れのPENDINGを含むこと"},
		{"?status=PENDING", []string{pending.ID(), expired.ID()}, "PENDINGは保存されたステータスで一致すること"},
		{"?status=done", []string{done.ID()}, "大文字小文字を区別しないこと"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("%s: expected status code %d, got %d", tt.description, http.StatusOK, w.Code)
			}
			var resp []service.TaskResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response body: %v", err)
			}
			var ids []string
			for _, r := range resp {
				ids = append(ids, r.ID)
			}
			if diff := cmp.Diff(tt.expectedIDs, ids); diff != "" {
				t.Errorf("%s: ids mismatch (-want +got):\n%s", tt.description, diff)
			}
		})
	}
}

func TestListTasksInvalidFilter(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks?status=LATE", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}
	resp := decodeError(t, w)
	if diff := cmp.Diff([]string{"Invalid status filter: 'LATE'."}, resp.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "expired", 1, testNow.Add(-2*time.Hour))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID(), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	resp := decodeTask(t, w)
	if resp.Status != model.StatusPending || resp.DisplayStatus != model.StatusOverdue {
		t.Errorf("Expected PENDING/OVERDUE, got %s/%s", resp.Status, resp.DisplayStatus)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "draft", 4, testNow.Add(-time.Hour))
	target := "/api/tasks/" + task.ID()

	req := multipartRequest(t, http.MethodPut, target,
		map[string]string{"title": "final", "slaHours": "720", "status": "pending"},
		&formFile{name: "result.pdf", contentType: "application/pdf", content: []byte("%PDF")},
	)
	w := ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp := decodeTask(t, w)
	if resp.Title != "final" || resp.SLAHours != 720 || resp.Status != model.StatusPending {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if resp.FileName != "result.pdf" {
		t.Errorf("Expected result.pdf to be attached, got %q", resp.FileName)
	}

	// ファイルの削除と完了を同時に行う
	req = multipartRequest(t, http.MethodPut, target,
		map[string]string{"title": "final", "slaHours": "720", "status": "done", "removeFile": "true"}, nil)
	w = ts.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp = decodeTask(t, w)
	if resp.FileURL != "" {
		t.Errorf("Expected file to be removed, got %s", resp.FileURL)
	}
	if resp.Status != model.StatusDone {
		t.Errorf("Expected status DONE, got %s", resp.Status)
	}

	// 完了済みのタスクは再度完了にできない
	req = multipartRequest(t, http.MethodPut, target,
		map[string]string{"title": "final", "slaHours": "720", "status": "done"}, nil)
	if w := ts.do(req); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status code %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
}

func TestUpdateTaskReportsAllFormErrors(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "draft", 4, testNow)

	req := multipartRequest(t, http.MethodPut, "/api/tasks/"+task.ID(),
		map[string]string{"title": "", "slaHours": "x", "removeFile": "maybe"}, nil)
	w := ts.do(req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}
	expected := []string{
		"Title is required.",
		"SLA hours must be a whole number, got 'x'.",
		"Status is required.",
		"removeFile must be true or false, got 'maybe'.",
	}
	if diff := cmp.Diff(expected, decodeError(t, w).Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateTaskErrors(t *testing.T) {
	tests := []struct {
		name           string
		done           bool
		target         string
		fields         map[string]string
		expectedStatus int
		description    string
	}{
		{
			name:           "SLAOverMonth",
			fields:         map[string]string{"title": "t", "slaHours": "721", "status": "PENDING"},
			expectedStatus: http.StatusBadRequest,
			description:    "更新時は721時間でエラーになること",
		},
		{
			name:           "InvalidRemoveFile",
			fields:         map[string]string{"title": "t", "slaHours": "1", "status": "PENDING", "removeFile": "maybe"},
			expectedStatus: http.StatusBadRequest,
			description:    "removeFileが真偽値でない場合はエラーになること",
		},
		{
			name:           "DoneToPending",
			done:           true,
			fields:         map[string]string{"title": "t", "slaHours": "1", "status": "PENDING"},
			expectedStatus: http.StatusUnprocessableEntity,
			description:    "完了済みのタスクをPENDINGに戻すとエラーになること",
		},
		{
			name:           "NotFound",
			target:         "/api/tasks/missing",
			fields:         map[string]string{"title": "t", "slaHours": "1", "status": "DONE"},
			expectedStatus: http.StatusNotFound,
			description:    "存在しないタスクは404になること",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			task := ts.seed(t, "existing", 1, testNow)
			if tt.done {
				if err := task.MarkDone(); err != nil {
					t.Fatalf("Failed to mark done: %v", err)
				}
			}
			target := tt.target
			if target == "" {
				target = "/api/tasks/" + task.ID()
			}

			w := ts.do(multipartRequest(t, http.MethodPut, target, tt.fields, nil))
			if w.Code != tt.expectedStatus {
				t.Errorf("%s: expected status code %d, got %d: %s", tt.description, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "todo", 1, testNow)
	target := "/api/tasks/" + task.ID()

	w := ts.do(jsonRequest(http.MethodPatch, target, `{"status":"DONE"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if resp := decodeTask(t, w); resp.Status != model.StatusDone {
		t.Errorf("Expected status DONE, got %s", resp.Status)
	}

	// 2回目の完了は競合になる
	w = ts.do(jsonRequest(http.MethodPatch, target, `{"status":"DONE"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status code %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}
	if resp := decodeError(t, w); resp.Error != "Task is already completed." {
		t.Errorf("Unexpected message %q", resp.Error)
	}

	w = ts.do(jsonRequest(http.MethodPatch, target, `{"status":"OVERDUE"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = ts.do(jsonRequest(http.MethodPatch, target, `not json`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = ts.do(jsonRequest(http.MethodPatch, "/api/tasks/missing", `{"status":"DONE"}`))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGetTaskFile(t *testing.T) {
	ts := newTestServer(t)
	withFile := ts.seed(t, "with file", 1, testNow)
	if err := withFile.AttachInline([]byte("report body"), "月次レポート.txt", "text/plain"); err != nil {
		t.Fatalf("Failed to attach file: %v", err)
	}
	external := ts.seed(t, "external", 1, testNow)
	if err := external.AttachURL("https://files.example.com/tasks/a.pdf"); err != nil {
		t.Fatalf("Failed to attach url: %v", err)
	}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/"+withFile.ID()+"/file", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected Content-Type text/plain, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Expected attachment disposition, got %s", cd)
	}
	if body, _ := io.ReadAll(w.Body); string(body) != "report body" {
		t.Errorf("Unexpected body %q", body)
	}

	// 外部参照のファイルはダウンロードできない
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/"+external.ID()+"/file", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
	}
	if resp := decodeError(t, w); resp.Error != "File not found for this task" {
		t.Errorf("Unexpected message %q", resp.Error)
	}

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/missing/file", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestCreateTaskFileRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	content := []byte("abc\x00\xfe\xff")

	w := ts.do(multipartRequest(t, http.MethodPost, "/api/tasks",
		map[string]string{"title": "upload", "slaHours": "1"},
		&formFile{name: "data.zip", contentType: "application/zip", content: content},
	))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status code %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	created := decodeTask(t, w)

	w = ts.do(httptest.NewRequest(http.MethodGet, created.FileURL, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if body := w.Body.Bytes(); !bytes.Equal(body, content) {
		t.Errorf("Expected %d bytes %q, got %q", len(content), content, body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Expected Content-Type application/zip, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename=data.zip` {
		t.Errorf("Unexpected Content-Disposition %s", cd)
	}
}

func TestGetTaskIdempotent(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "stable", 1, testNow)
	target := "/api/tasks/" + task.ID()

	first := ts.do(httptest.NewRequest(http.MethodGet, target, nil)).Body.String()
	second := ts.do(httptest.NewRequest(http.MethodGet, target, nil)).Body.String()
	if first != second {
		t.Errorf("Expected identical bodies, got\n%s\n%s", first, second)
	}
}

func TestGetTaskFileInfo(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "with file", 1, testNow)
	if err := task.AttachInline([]byte("12345"), "a.txt", "text/plain"); err != nil {
		t.Fatalf("Failed to attach file: %v", err)
	}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID()+"/file-info", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	var info FileInfoResponse
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	expected := FileInfoResponse{
		TaskID:            task.ID(),
		HasFileURL:        true,
		HasFileName:       true,
		FileDataAvailable: true,
		FileDataSize:      5,
		FileName:          "a.txt",
		ContentType:       "text/plain",
	}
	if diff := cmp.Diff(expected, info); diff != "" {
		t.Errorf("file info mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{"ValidKey", testAPIKey, http.StatusOK},
		{"InvalidKey", "wrong", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			req.Header.Set("X-API-Key", tt.apiKey)
			w := httptest.NewRecorder()
			ts.server.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	// ヘッダーなし
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	store := NewMockTaskStore()
	svc, err := service.New(store, nil, service.Options{})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	server := NewServer(svc, &config.Config{}, nil, nil)

	// APIキーが未設定の場合は認証なしでアクセスできる
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}

	// メトリクスのエンドポイントは公開されない
	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, w.Code)
	}
}

// failingService はすべての操作でエラーを返すTaskServiceです。
type failingService struct {
	err error
}

func (f *failingService) Create(context.Context, service.CreateTaskRequest) (*service.TaskResponse, error) {
	return nil, f.err
}
func (f *failingService) List(context.Context, string) ([]*service.TaskResponse, error) {
	return nil, f.err
}
func (f *failingService) Get(context.Context, string) (*service.TaskResponse, error) {
	return nil, f.err
}
func (f *failingService) Update(context.Context, string, service.UpdateTaskRequest) (*service.TaskResponse, error) {
	return nil, f.err
}
func (f *failingService) UpdateStatus(context.Context, string, service.UpdateStatusRequest) (*service.TaskResponse, error) {
	return nil, f.err
}
func (f *failingService) GetFile(context.Context, string) (*model.InlineFile, bool, error) {
	return nil, false, f.err
}

func TestUnexpectedErrorIsHidden(t *testing.T) {
	server := NewServer(&failingService{err: errors.New("database is locked: /var/lib/taskstation.db")}, newTestConfig(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status code %d, got %d", http.StatusInternalServerError, w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error != "An unexpected error occurred." {
		t.Errorf("Unexpected message %q", resp.Error)
	}
	if strings.Contains(w.Body.String(), "database") {
		t.Errorf("Internal detail leaked: %s", w.Body.String())
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	task := ts.seed(t, "t", 1, testNow)

	ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID(), nil))
	ts.do(httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	ts.do(jsonRequest(http.MethodPost, "/api/tasks", `{"title":"new","slaHours":1}`))

	if got := testutil.ToFloat64(ts.metrics.RequestsTotal.WithLabelValues("GET", "GET /api/tasks/{id}", "200")); got != 1 {
		t.Errorf("Expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(ts.metrics.RequestsTotal.WithLabelValues("GET", "GET /api/tasks/{id}", "404")); got != 1 {
		t.Errorf("Expected 1 not found request, got %v", got)
	}
	if got := testutil.ToFloat64(ts.metrics.TasksCreated.WithLabelValues(metrics.StorageInline)); got != 1 {
		t.Errorf("Expected 1 created task, got %v", got)
	}

	// /metrics はPrometheusの形式で公開される
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "taskstation_http_requests_total") {
		t.Errorf("Expected request counter in exposition, got:\n%s", w.Body.String())
	}
}
