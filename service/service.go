// Package service は、タスクに対するアプリケーションの操作を提供します。
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/stsysd/taskstation/metrics"
	"github.com/stsysd/taskstation/model"
)

// TaskStore はタスクの保存と取得を行うインターフェースです。
type TaskStore interface {
	// GetTask は指定されたIDのタスクを取得します。存在しない場合は model.ErrTaskNotFound を返します。
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks はすべてのタスクを作成日時の降順で取得します。
	ListTasks(ctx context.Context) ([]*model.Task, error)
	// ListTasksByStatus は保存されたステータスが一致するタスクを取得します。
	ListTasksByStatus(ctx context.Context, status model.Status) ([]*model.Task, error)
	// ListOverdueTasks はOVERDUEのタスクと、now の時点で期限を過ぎたPENDINGのタスクを取得します。
	ListOverdueTasks(ctx context.Context, now time.Time) ([]*model.Task, error)
	// CreateTask はタスクにIDを割り当てて保存します。
	CreateTask(ctx context.Context, task *model.Task) error
	// UpdateTask はタスクを丸ごと置き換えます。
	UpdateTask(ctx context.Context, task *model.Task) error
	// MarkOverdueTasks は期限を過ぎたPENDINGのタスクをOVERDUEにして、更新件数を返します。
	MarkOverdueTasks(ctx context.Context, now time.Time) (int, error)
	// Close はストアの接続を閉じます。
	Close() error
}

// FileUploader は添付ファイルを外部ストレージに保存し、そのURLを返します。
type FileUploader interface {
	Upload(ctx context.Context, body io.Reader, fileName, contentType string) (string, error)
}

// Options は TaskService の動作設定です。
type Options struct {
	// ExternalStorage が true の場合、添付ファイルを FileUploader に保存します。
	ExternalStorage bool
	// Now は現在時刻を返します。nil の場合は time.Now を使用します。
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// TaskService はタスクの作成・参照・更新を行います。
type TaskService struct {
	store    TaskStore
	uploader FileUploader
	external bool
	now      func() time.Time
	metrics  *metrics.Metrics
}

// New は新しい TaskService を作成します。
func New(store TaskStore, uploader FileUploader, opts Options) (*TaskService, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if opts.ExternalStorage && uploader == nil {
		return nil, ErrUploaderNil
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &TaskService{
		store:    store,
		uploader: uploader,
		external: opts.ExternalStorage,
		now:      now,
		metrics:  opts.Metrics,
	}, nil
}

// Create は新しいタスクを作成します。
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task, err := model.NewTask(req.Title, req.SLAHours, req.Description, s.now())
	if err != nil {
		return nil, err
	}

	if req.File != nil {
		if err := s.attachFile(ctx, task, req.File); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.metrics.TaskCreated(s.storageMode())

	return NewTaskResponse(task, s.now()), nil
}

// List はステータスで絞り込んだタスクの一覧を返します。空文字列の場合はすべてのタスクを返します。
func (s *TaskService) List(ctx context.Context, status string) ([]*TaskResponse, error) {
	filter, err := model.NewStatusFilter(status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var tasks []*model.Task
	switch filter.Kind() {
	case model.FilterAll:
		tasks, err = s.store.ListTasks(ctx)
	case model.FilterOverdue:
		tasks, err = s.store.ListOverdueTasks(ctx, now)
	case model.FilterExact:
		tasks, err = s.store.ListTasksByStatus(ctx, filter.Status())
	}
	if err != nil {
		return nil, err
	}

	return NewTaskResponses(tasks, now), nil
}

// Get は指定されたIDのタスクを返します。
func (s *TaskService) Get(ctx context.Context, id string) (*TaskResponse, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewTaskResponse(task, s.now()), nil
}

// Update はタスクのタイトル・SLA・ステータス・添付ファイルを更新します。
func (s *TaskService) Update(ctx context.Context, id string, req UpdateTaskRequest) (*TaskResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := task.Rename(req.Title); err != nil {
		return nil, err
	}
	if err := task.Rebudget(req.SLAHours); err != nil {
		return nil, err
	}

	// Validate で PENDING か DONE であることを確認済み
	transition, _ := model.ParseTransition(req.Status)
	switch transition {
	case model.TransitionDone:
		err = task.MarkDone()
	case model.TransitionPending:
		err = task.MarkPending()
	}
	if err != nil {
		return nil, err
	}

	// 削除してから新しいファイルを添付するため、両方指定された場合は新しいファイルが残る
	if req.RemoveFile {
		task.DetachFile()
	}
	if req.File != nil {
		if err := s.attachFile(ctx, task, req.File); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	return NewTaskResponse(task, s.now()), nil
}

// UpdateStatus はタスクのステータスのみを変更します。
// PENDING の指定は何も変更しませんが、タスクは保存し直されます。
func (s *TaskService) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*TaskResponse, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	transition, ok := model.ParseTransition(req.Status)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("Invalid status transition: '%s'.", req.Status))
	}
	switch transition {
	case model.TransitionDone:
		if err := task.MarkDone(); err != nil {
			return nil, err
		}
	case model.TransitionPending:
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	return NewTaskResponse(task, s.now()), nil
}

// GetFile はインライン保存された添付ファイルを返します。
// ファイルがない場合や外部ストレージに保存されている場合は false を返します。
func (s *TaskService) GetFile(ctx context.Context, id string) (*model.InlineFile, bool, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, false, err
	}

	file, ok := task.Attachment().(*model.InlineFile)
	if !ok || !file.Complete() {
		return nil, false, nil
	}
	return file, true, nil
}

// SweepOverdue は期限を過ぎたPENDINGのタスクをOVERDUEとして保存し、更新件数を返します。
func (s *TaskService) SweepOverdue(ctx context.Context) (int, error) {
	n, err := s.store.MarkOverdueTasks(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.TasksMarkedOverdue(n)
	return n, nil
}

func (s *TaskService) attachFile(ctx context.Context, task *model.Task, file *FileUpload) error {
	if s.external {
		url, err := s.uploader.Upload(ctx, file.Content, file.Name, file.ContentType)
		if err != nil {
			return fmt.Errorf("failed to upload file: %w", err)
		}
		return task.AttachURL(url)
	}

	data, err := io.ReadAll(file.Content)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return task.AttachInline(data, file.Name, file.ContentType)
}

func (s *TaskService) storageMode() string {
	if s.external {
		return metrics.StorageExternal
	}
	return metrics.StorageInline
}
